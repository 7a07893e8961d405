// chart_behavior binds a fastview host to a charting library: it waits for the library
// to load, keeps the chart's data source filled, and draws the chart after each render.
package chart_behavior

import (
	"fmt"

	"chartview/server/fastview"

	"github.com/rs/zerolog"
)

const (
	// DefaultChartType is the chart type used when none is configured.
	DefaultChartType = "LineChart"
	// DefaultContainerSelector identifies the element that holds the chart.
	DefaultContainerSelector = "[data-chart-container]"
	// DefaultDataEvent is the host event that signals the chart's data changed.
	DefaultDataEvent = "dataUpdated"
)

// Config holds every overridable part of a ChartBehavior. Hooks may call each other
// through the config, so overriding one (e.g. Rows) changes the defaults that use it.
type Config struct {
	// ChartType resolves the chart constructor. It runs at first draw, after the library loaded.
	ChartType func() (Constructor, error)
	// ChartOptions are passed to every Draw.
	ChartOptions Value[Options]
	// ContainerSelector locates the chart's element within the host; an empty result
	// falls back to DefaultContainerSelector. Its content is
	// excluded from the host's template rendering.
	ContainerSelector Value[string]
	// DataEvent is the host event that triggers DataUpdated.
	DataEvent string

	// CreateDataSource creates the data source the first time data is loaded.
	CreateDataSource func() (DataSource, error)
	// InitializeDataSource sets up a newly created data source, e.g. its columns.
	InitializeDataSource func(DataSource) error
	// ResetDataSource prepares an existing data source for new data and returns the
	// data source to use, which may be a new one.
	ResetDataSource func(DataSource) (DataSource, error)
	// FillDataSource loads the current data into the data source.
	FillDataSource func(DataSource) error
	// Rows returns the current rows; nil rows leave the data source empty.
	Rows func() ([]Row, error)

	Log zerolog.Logger
}

// Option overrides part of a ChartBehavior's Config. Options only take effect at construction.
type Option func(*Config)

// WithChartType overrides the chart type resolver.
func WithChartType(resolve func() (Constructor, error)) Option {
	return func(cfg *Config) {
		if resolve != nil {
			cfg.ChartType = resolve
		}
	}
}

// WithChartOptions sets the draw options, either a Literal or a Func.
func WithChartOptions(options Value[Options]) Option {
	return func(cfg *Config) {
		if !options.IsZero() {
			cfg.ChartOptions = options
		}
	}
}

// WithContainerSelector sets the selector of the chart's container, either a Literal or a Func.
func WithContainerSelector(selector Value[string]) Option {
	return func(cfg *Config) {
		if !selector.IsZero() {
			cfg.ContainerSelector = selector
		}
	}
}

// WithDataEvent sets the host event that triggers a data reload.
func WithDataEvent(event string) Option {
	return func(cfg *Config) {
		if event != "" {
			cfg.DataEvent = event
		}
	}
}

// WithCreateDataSource overrides data source creation.
func WithCreateDataSource(create func() (DataSource, error)) Option {
	return func(cfg *Config) {
		if create != nil {
			cfg.CreateDataSource = create
		}
	}
}

// WithInitializeDataSource sets up newly created data sources.
func WithInitializeDataSource(initialize func(DataSource) error) Option {
	return func(cfg *Config) {
		if initialize != nil {
			cfg.InitializeDataSource = initialize
		}
	}
}

// WithResetDataSource overrides how an existing data source is cleared.
func WithResetDataSource(reset func(DataSource) (DataSource, error)) Option {
	return func(cfg *Config) {
		if reset != nil {
			cfg.ResetDataSource = reset
		}
	}
}

// WithFillDataSource overrides how the data source is filled.
func WithFillDataSource(fill func(DataSource) error) Option {
	return func(cfg *Config) {
		if fill != nil {
			cfg.FillDataSource = fill
		}
	}
}

// WithRows sets the producer of the chart's rows.
func WithRows(rows func() ([]Row, error)) Option {
	return func(cfg *Config) {
		if rows != nil {
			cfg.Rows = rows
		}
	}
}

// WithLogger sets the behavior's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(cfg *Config) {
		cfg.Log = log
	}
}

// ChartBehavior is a fastview.Behavior drawing one chart in its host. It is not safe for
// concurrent use; the host calls it from its loop only.
type ChartBehavior struct {
	lib  Library
	cfg  Config
	host fastview.Host

	ready      bool
	chart      Widget
	dataSource DataSource
	disposed   bool
}

var _ fastview.Behavior = (*ChartBehavior)(nil)

// New returns a ChartBehavior drawing with lib. Options left unset keep the defaults:
// a LineChart in DefaultContainerSelector, with no options and no rows.
func New(lib Library, opts ...Option) *ChartBehavior {
	b := &ChartBehavior{lib: lib}
	b.cfg = Config{
		ChartType:            b.defaultChartType,
		ContainerSelector:    Literal(DefaultContainerSelector),
		DataEvent:            DefaultDataEvent,
		CreateDataSource:     b.createDataSource,
		InitializeDataSource: func(DataSource) error { return nil },
		ResetDataSource:      resetDataSource,
		FillDataSource:       b.fillDataSource,
		Rows:                 func() ([]Row, error) { return nil, nil },
		Log:                  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&b.cfg)
	}
	return b
}

// Ready reports whether the charting library has loaded.
func (b *ChartBehavior) Ready() bool {
	return b.ready
}

// Chart returns the constructed widget, or nil before the first draw.
func (b *ChartBehavior) Chart() Widget {
	return b.chart
}

// DataSource returns the current data source, or nil before the first load.
func (b *ChartBehavior) DataSource() DataSource {
	return b.dataSource
}

// Initialize subscribes to the host's data event and adds the chart's container to the
// host's ignore list.
func (b *ChartBehavior) Initialize(host fastview.Host) error {
	b.host = host
	b.ready = false
	host.On(b.cfg.DataEvent, b.DataUpdated)
	host.AddIgnoreElement(b.containerSelector())
	return nil
}

// PostInitialize excludes the chart container from template rendering and waits for the
// library. The load callback may come from any goroutine, so it is dispatched onto the host.
func (b *ChartBehavior) PostInitialize() error {
	b.host.WrapRendererOptions(b.ignoreChartContainer)
	b.lib.OnLoad(func() {
		b.host.Dispatch(b.chartsLoaded)
	})
	return nil
}

// ignoreChartContainer adds the container selector to the options returned by original,
// copying the ignore list so that a list shared by other wrappers is never modified.
func (b *ChartBehavior) ignoreChartContainer(original fastview.RendererOptionsFunc) fastview.RendererOptionsFunc {
	return func() fastview.RendererOptions {
		var opts fastview.RendererOptions
		if original != nil {
			opts = original()
		}
		ignore := make([]string, len(opts.IgnoreElements), len(opts.IgnoreElements)+1)
		copy(ignore, opts.IgnoreElements)
		opts.IgnoreElements = append(ignore, b.containerSelector())
		return opts
	}
}

// chartsLoaded marks the behavior ready, loads any data already available and asks the
// host for a render so that the chart is drawn.
func (b *ChartBehavior) chartsLoaded() error {
	if b.ready {
		return nil
	}
	b.ready = true
	b.cfg.Log.Debug().Str("host", b.host.ID()).Msg("chart library loaded")

	if err := b.DataUpdated(); err != nil {
		return err
	}
	// Every chart on the host loads at once; the host collapses their requests into one render.
	b.host.RequestRender()
	return nil
}

// DataUpdated reloads the data source: created the first time, reset afterwards, then
// filled. It does not render; the next render draws the new data. Before the library
// loaded it does nothing, since loading reloads the data anyway.
func (b *ChartBehavior) DataUpdated() error {
	if !b.ready {
		return nil
	}

	dataSource := b.dataSource
	var err error
	if dataSource == nil {
		if dataSource, err = b.cfg.CreateDataSource(); err != nil {
			return fmt.Errorf("create chart data source: %w", err)
		}
	} else if dataSource, err = b.cfg.ResetDataSource(dataSource); err != nil {
		return fmt.Errorf("reset chart data source: %w", err)
	}

	if err = b.cfg.FillDataSource(dataSource); err != nil {
		return fmt.Errorf("fill chart data source: %w", err)
	}

	b.dataSource = dataSource
	return nil
}

// PostRender constructs the chart on first use and draws the current data source.
// Without a data source there is nothing to draw.
func (b *ChartBehavior) PostRender() error {
	if b.dataSource == nil {
		return nil
	}

	if b.chart == nil {
		newChart, err := b.cfg.ChartType()
		if err != nil {
			return fmt.Errorf("resolve chart type: %w", err)
		}
		container, err := b.host.Find(b.containerSelector())
		if err != nil {
			return err
		}
		if b.chart, err = newChart(container); err != nil {
			return fmt.Errorf("construct chart: %w", err)
		}
		b.cfg.Log.Debug().
			Str("host", b.host.ID()).
			Str("type", b.chart.Type()).
			Str("container", container.Selector()).
			Msg("chart constructed")
	}

	return b.chart.Draw(b.dataSource, b.cfg.ChartOptions.Resolve())
}

// Dispose clears the chart, if one was constructed. Repeat calls do nothing.
func (b *ChartBehavior) Dispose() {
	if b.disposed {
		return
	}
	b.disposed = true
	if b.chart != nil {
		b.chart.ClearChart()
		b.chart = nil
	}
}

// containerSelector resolves the configured selector, using the default for empty ones.
func (b *ChartBehavior) containerSelector() string {
	if selector := b.cfg.ContainerSelector.Resolve(); selector != "" {
		return selector
	}
	return DefaultContainerSelector
}

func (b *ChartBehavior) defaultChartType() (Constructor, error) {
	return b.lib.ChartType(DefaultChartType)
}

// createDataSource returns a new library data source set up by InitializeDataSource.
func (b *ChartBehavior) createDataSource() (DataSource, error) {
	dataSource := b.lib.NewDataSource()
	if err := b.cfg.InitializeDataSource(dataSource); err != nil {
		return nil, err
	}
	return dataSource, nil
}

// resetDataSource removes every row, keeping the data source and its columns.
func resetDataSource(dataSource DataSource) (DataSource, error) {
	if err := dataSource.RemoveRows(0, dataSource.NumberOfRows()); err != nil {
		return nil, err
	}
	return dataSource, nil
}

// fillDataSource adds the rows from Rows, if there are any.
func (b *ChartBehavior) fillDataSource(dataSource DataSource) error {
	rows, err := b.cfg.Rows()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return dataSource.AddRows(rows)
}
