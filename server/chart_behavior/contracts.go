package chart_behavior

import "chartview/server/fastview"

// Options are the draw options passed to a chart, e.g. "title" or "width".
// Their interpretation belongs to the charting library.
type Options map[string]any

// Row is one row of a data source: one value per column.
type Row []any

// ColumnType is the value type of a data source column.
type ColumnType string

const (
	ColumnString   ColumnType = "string"
	ColumnNumber   ColumnType = "number"
	ColumnDateTime ColumnType = "datetime"
)

// DataSource is the charting library's table of rows and columns.
type DataSource interface {
	// AddColumn appends a column and returns its index.
	AddColumn(kind ColumnType, label string) int
	AddRows(rows []Row) error
	RemoveRows(start, count int) error
	NumberOfRows() int
}

// Widget is a constructed chart bound to a container node.
type Widget interface {
	// Type names the kind of chart, e.g. "LineChart".
	Type() string
	Draw(dataSource DataSource, options Options) error
	// ClearChart releases the chart's resources and empties its container.
	ClearChart()
}

// Constructor builds a chart widget inside the container node.
type Constructor func(container fastview.Node) (Widget, error)

// Library is the charting engine a ChartBehavior draws with.
type Library interface {
	// OnLoad registers a callback run once the library has loaded, at most once per registration.
	OnLoad(callback func())
	// ChartType returns the constructor for the named chart type.
	ChartType(name string) (Constructor, error)
	NewDataSource() DataSource
}
