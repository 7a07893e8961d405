package chart_views

import (
	"context"
	"fmt"
	"html/template"

	"chartview/config"
	cb "chartview/server/chart_behavior"
	"chartview/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	TelemetryViewID = "telemetry"
	// SamplesEvent is triggered on the view when a new window arrives.
	SamplesEvent = "samples"
)

const telemetryTemplate = `<div class="telemetry">
	<p class="headline">
		heap <span class="heap">{{ printf "%.2f" .Window.Latest.HeapMB }}</span> MB
		(peak <span class="peak">{{ printf "%.2f" .Window.Latest.PeakHeapMB }}</span> MB),
		<span class="goroutines">{{ .Window.Latest.Goroutines }}</span> goroutines,
		<span class="collections">{{ .Window.Latest.NumGC }}</span> collections
	</p>
	{{ range .Charts }}<div class="chart" data-chart-container="{{ . }}"></div>{{ end }}
</div>`

// ContainerSelector returns the selector of the named chart's container.
func ContainerSelector(name string) string {
	return fmt.Sprintf(`[data-chart-container=%q]`, name)
}

// TelemetryView shows the latest runtime readings and one chart per configured chart,
// each drawn by its own chart behavior on the same host view.
type TelemetryView struct {
	view   *fastview.View
	charts []string
	log    zerolog.Logger

	// Owned by the view's loop.
	window Window
}

// NewTelemetryView builds the view and runs it until ctx is done. Windows received
// from the chan are charted as they arrive; charts appear once lib has loaded.
func NewTelemetryView(
	ctx context.Context,
	windows <-chan Window,
	lib cb.Library,
	charts []config.ChartConfig,
	log zerolog.Logger,
) (*TelemetryView, error) {
	tv := &TelemetryView{log: log}

	behaviors := make([]fastview.Behavior, 0, len(charts))
	for _, chart := range charts {
		behavior, err := tv.newChartBehavior(lib, chart)
		if err != nil {
			return nil, fmt.Errorf("chart %s: %w", chart.Name, err)
		}
		behaviors = append(behaviors, behavior)
		tv.charts = append(tv.charts, chart.Name)
	}

	view, err := fastview.NewView(
		TelemetryViewID,
		telemetryTemplate,
		tv.model,
		fastview.WithBehaviors(behaviors...),
		fastview.WithLogger(log))
	if err != nil {
		return nil, err
	}
	tv.view = view

	view.Dispatch(view.Render)
	go func() {
		if err := view.Run(ctx); err != nil {
			log.Error().Err(err).Msg("telemetry view stopped")
		}
	}()
	go tv.consume(ctx, windows)

	return tv, nil
}

// newChartBehavior binds a chart to the view's window: its rows are the window's
// points projected onto the chart's metrics.
func (tv *TelemetryView) newChartBehavior(lib cb.Library, chart config.ChartConfig) (*cb.ChartBehavior, error) {
	ms, err := lookupMetrics(chart.Metrics)
	if err != nil {
		return nil, err
	}

	return cb.New(lib,
		cb.WithChartType(func() (cb.Constructor, error) {
			return lib.ChartType(chart.Type)
		}),
		cb.WithContainerSelector(cb.Literal(ContainerSelector(chart.Name))),
		cb.WithDataEvent(SamplesEvent),
		cb.WithInitializeDataSource(func(dataSource cb.DataSource) error {
			dataSource.AddColumn(cb.ColumnDateTime, "time")
			for _, name := range chart.Metrics {
				dataSource.AddColumn(cb.ColumnNumber, name)
			}
			return nil
		}),
		cb.WithRows(func() ([]cb.Row, error) {
			return tv.rows(ms), nil
		}),
		cb.WithChartOptions(cb.Func(func() cb.Options {
			return tv.chartOptions(chart.Options)
		})),
		cb.WithLogger(tv.log.With().Str("chart", chart.Name).Logger()),
	), nil
}

// consume hands each window to the view's loop, then signals the charts and re-renders.
func (tv *TelemetryView) consume(ctx context.Context, windows <-chan Window) {
	for window := range channerics.OrDone(ctx.Done(), windows) {
		window := window
		tv.view.Dispatch(func() error {
			tv.window = window
			return nil
		})
		tv.view.Trigger(SamplesEvent)
		tv.view.Dispatch(tv.view.Render)
	}
}

func (tv *TelemetryView) model() any {
	return struct {
		Window Window
		Charts []string
	}{tv.window, tv.charts}
}

func (tv *TelemetryView) rows(ms []metric) []cb.Row {
	return lo.Map(tv.window.Points, func(p Point, _ int) cb.Row {
		row := make(cb.Row, 0, len(ms)+1)
		row = append(row, p.Time)
		for _, m := range ms {
			row = append(row, m(p))
		}
		return row
	})
}

// chartOptions adds a sample count subtitle unless the configured options set one.
func (tv *TelemetryView) chartOptions(configured map[string]interface{}) cb.Options {
	return cb.Options(lo.Assign(
		map[string]interface{}{"subtitle": fmt.Sprintf("last %d samples", len(tv.window.Points))},
		configured,
	))
}

func (tv *TelemetryView) Updates() <-chan []fastview.EleUpdate {
	return tv.view.Updates()
}

func (tv *TelemetryView) Parse(t *template.Template) (string, error) {
	return tv.view.Parse(t)
}

// Snapshot returns the view's last rendered content for serving with the page.
func (tv *TelemetryView) Snapshot() template.HTML {
	return tv.view.Snapshot()
}

// ID returns the id of the view's root element.
func (tv *TelemetryView) ID() string {
	return tv.view.ID()
}
