// chart_lib is a charting library for fastview hosts: charts are rendered with
// go-echarts and drawn into a host node, and data is held in DataTables.
package chart_lib

import (
	"errors"
	"fmt"
	"sync"

	cb "chartview/server/chart_behavior"
	"chartview/server/fastview"

	"github.com/rs/zerolog"
)

const (
	LineChart    = "LineChart"
	AreaChart    = "AreaChart"
	BarChart     = "BarChart"
	ScatterChart = "ScatterChart"
)

// DefaultAssetsHost serves echarts.min.js; pages must load it before charts are drawn.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var (
	// ErrNotLoaded is returned when chart types are requested before Load.
	ErrNotLoaded = errors.New("chart library not loaded")
	// ErrUnknownChartType is returned for chart types the library does not provide.
	ErrUnknownChartType = errors.New("unknown chart type")
	// ErrUnsupportedDataSource is returned when drawing a data source this library did not create.
	ErrUnsupportedDataSource = errors.New("unsupported data source")
)

// Library provides chart types once loaded. Load may happen on any goroutine, at any
// time; callbacks registered with OnLoad run exactly once, after it.
type Library struct {
	log        zerolog.Logger
	assetsHost string
	width      string
	height     string

	mu        sync.Mutex
	loaded    bool
	callbacks []func()
	types     map[string]buildFunc
	nextID    int
}

var _ cb.Library = (*Library)(nil)

// LibraryOption configures a Library.
type LibraryOption func(*Library)

// WithAssetsHost sets where chart pages load echarts from.
func WithAssetsHost(host string) LibraryOption {
	return func(lib *Library) {
		lib.assetsHost = host
	}
}

// WithDefaultSize sets the chart size used when draw options specify none, e.g. "600px".
func WithDefaultSize(width, height string) LibraryOption {
	return func(lib *Library) {
		lib.width, lib.height = width, height
	}
}

// NewLibrary returns an unloaded library.
func NewLibrary(log zerolog.Logger, opts ...LibraryOption) *Library {
	lib := &Library{
		log:        log,
		assetsHost: DefaultAssetsHost,
		width:      "600px",
		height:     "300px",
	}
	for _, opt := range opts {
		opt(lib)
	}
	return lib
}

// Load registers the chart types and runs the pending OnLoad callbacks.
// Calls after the first are no-ops.
func (lib *Library) Load() {
	lib.mu.Lock()
	if lib.loaded {
		lib.mu.Unlock()
		return
	}
	lib.types = map[string]buildFunc{
		LineChart:    buildLine,
		AreaChart:    buildArea,
		BarChart:     buildBar,
		ScatterChart: buildScatter,
	}
	lib.loaded = true
	callbacks := lib.callbacks
	lib.callbacks = nil
	lib.mu.Unlock()

	lib.log.Info().Int("callbacks", len(callbacks)).Msg("chart library loaded")
	for _, callback := range callbacks {
		callback()
	}
}

// Loaded reports whether Load has run.
func (lib *Library) Loaded() bool {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return lib.loaded
}

// OnLoad runs callback after Load: immediately if already loaded, otherwise from Load.
func (lib *Library) OnLoad(callback func()) {
	lib.mu.Lock()
	if !lib.loaded {
		lib.callbacks = append(lib.callbacks, callback)
		lib.mu.Unlock()
		return
	}
	lib.mu.Unlock()
	callback()
}

// ChartType returns the constructor for the named chart type.
func (lib *Library) ChartType(name string) (cb.Constructor, error) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	if !lib.loaded {
		return nil, ErrNotLoaded
	}
	build, ok := lib.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChartType, name)
	}
	return func(container fastview.Node) (cb.Widget, error) {
		return &chart{
			id:        lib.newChartID(),
			kind:      name,
			build:     build,
			container: container,
			lib:       lib,
		}, nil
	}, nil
}

// NewDataSource returns an empty DataTable.
func (lib *Library) NewDataSource() cb.DataSource {
	return NewDataTable()
}

// newChartID returns an id usable both as an element id and a js identifier.
func (lib *Library) newChartID() string {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	lib.nextID++
	return fmt.Sprintf("chart%d", lib.nextID)
}
