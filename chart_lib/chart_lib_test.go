package chart_lib

import (
	"errors"
	"testing"
	"time"

	cb "chartview/server/chart_behavior"

	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

type recordingNode struct {
	content string
	sets    int
}

func (n *recordingNode) Selector() string      { return "#chart" }
func (n *recordingNode) HTML() (string, error) { return n.content, nil }
func (n *recordingNode) SetHTML(content string) error {
	n.content = content
	n.sets++
	return nil
}

func TestDataTable(t *testing.T) {
	Convey("Given a table with two columns", t, func() {
		table := NewDataTable()
		So(table.AddColumn(cb.ColumnString, "label"), ShouldEqual, 0)
		So(table.AddColumn(cb.ColumnNumber, "value"), ShouldEqual, 1)

		Convey("Rows of the right width are added", func() {
			So(table.AddRows([]cb.Row{{"a", 1}, {"b", 2}}), ShouldBeNil)
			So(table.NumberOfRows(), ShouldEqual, 2)
			So(table.Rows()[1], ShouldResemble, cb.Row{"b", 2})
		})

		Convey("A row of the wrong width rejects the whole batch", func() {
			err := table.AddRows([]cb.Row{{"a", 1}, {"b"}})
			So(errors.Is(err, ErrRowWidth), ShouldBeTrue)
			So(table.NumberOfRows(), ShouldEqual, 0)
		})

		Convey("Removing every row empties the table but keeps its columns", func() {
			So(table.AddRows([]cb.Row{{"a", 1}, {"b", 2}, {"c", 3}}), ShouldBeNil)
			So(table.RemoveRows(0, table.NumberOfRows()), ShouldBeNil)
			So(table.NumberOfRows(), ShouldEqual, 0)
			So(table.Columns(), ShouldHaveLength, 2)
		})

		Convey("Removing a middle range keeps the rest in order", func() {
			So(table.AddRows([]cb.Row{{"a", 1}, {"b", 2}, {"c", 3}}), ShouldBeNil)
			So(table.RemoveRows(1, 1), ShouldBeNil)
			So(table.Rows(), ShouldResemble, []cb.Row{{"a", 1}, {"c", 3}})
		})

		Convey("Removing out of bounds fails", func() {
			So(table.AddRows([]cb.Row{{"a", 1}}), ShouldBeNil)
			So(errors.Is(table.RemoveRows(0, 2), ErrRowRange), ShouldBeTrue)
			So(errors.Is(table.RemoveRows(-1, 1), ErrRowRange), ShouldBeTrue)
			So(table.NumberOfRows(), ShouldEqual, 1)
		})

		Convey("Added rows are copied", func() {
			row := cb.Row{"a", 1}
			So(table.AddRows([]cb.Row{row}), ShouldBeNil)
			row[1] = 99
			So(table.Rows()[0][1], ShouldEqual, 1)
		})

		Convey("A column added later pads existing rows", func() {
			So(table.AddRows([]cb.Row{{"a", 1}}), ShouldBeNil)
			table.AddColumn(cb.ColumnNumber, "other")
			So(table.Rows()[0], ShouldResemble, cb.Row{"a", 1, nil})
		})
	})
}

func TestLibrary(t *testing.T) {
	Convey("Given an unloaded library", t, func() {
		lib := NewLibrary(zerolog.Nop())

		Convey("Chart types are unavailable", func() {
			_, err := lib.ChartType(LineChart)
			So(errors.Is(err, ErrNotLoaded), ShouldBeTrue)
			So(lib.Loaded(), ShouldBeFalse)
		})

		Convey("Callbacks wait for the load and run exactly once", func() {
			calls := 0
			lib.OnLoad(func() { calls++ })
			lib.OnLoad(func() { calls++ })
			So(calls, ShouldEqual, 0)

			lib.Load()
			So(calls, ShouldEqual, 2)
			lib.Load()
			So(calls, ShouldEqual, 2)

			Convey("Callbacks registered after the load run immediately", func() {
				lib.OnLoad(func() { calls++ })
				So(calls, ShouldEqual, 3)
			})
		})

		Convey("After loading, unknown chart types are rejected", func() {
			lib.Load()
			_, err := lib.ChartType("PieChart")
			So(errors.Is(err, ErrUnknownChartType), ShouldBeTrue)
		})

		Convey("New data sources are empty tables", func() {
			dataSource := lib.NewDataSource()
			So(dataSource, ShouldHaveSameTypeAs, &DataTable{})
			So(dataSource.NumberOfRows(), ShouldEqual, 0)
		})
	})
}

func TestCharts(t *testing.T) {
	Convey("Given a loaded library and a filled table", t, func() {
		lib := NewLibrary(zerolog.Nop(), WithDefaultSize("400px", "200px"))
		lib.Load()

		table := NewDataTable()
		table.AddColumn(cb.ColumnDateTime, "time")
		table.AddColumn(cb.ColumnNumber, "heap")
		table.AddColumn(cb.ColumnString, "note")
		start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		So(table.AddRows([]cb.Row{
			{start, 1.5, "x"},
			{start.Add(time.Second), 2.5, "y"},
		}), ShouldBeNil)

		for _, kind := range []string{LineChart, AreaChart, BarChart, ScatterChart} {
			kind := kind
			Convey("A "+kind+" draws into its node", func() {
				newChart, err := lib.ChartType(kind)
				So(err, ShouldBeNil)
				node := &recordingNode{}
				widget, err := newChart(node)
				So(err, ShouldBeNil)
				So(widget.Type(), ShouldEqual, kind)

				So(widget.Draw(table, cb.Options{"title": "Heap"}), ShouldBeNil)
				So(node.content, ShouldContainSubstring, "chart1")
				So(node.content, ShouldContainSubstring, "heap")
				So(node.content, ShouldContainSubstring, "Heap")
				So(node.content, ShouldContainSubstring, "400px")
				So(node.content, ShouldNotContainSubstring, "<head>")

				Convey("Clearing empties the node", func() {
					widget.ClearChart()
					So(node.content, ShouldEqual, "")
				})
			})
		}

		Convey("Draw options override the default size", func() {
			newChart, _ := lib.ChartType(LineChart)
			node := &recordingNode{}
			widget, _ := newChart(node)
			So(widget.Draw(table, cb.Options{"width": "123px", "smooth": true}), ShouldBeNil)
			So(node.content, ShouldContainSubstring, "123px")
		})

		Convey("Each chart gets its own id", func() {
			newChart, _ := lib.ChartType(BarChart)
			first, _ := newChart(&recordingNode{})
			second, _ := newChart(&recordingNode{})
			So(first.(*chart).id, ShouldNotEqual, second.(*chart).id)
		})

		Convey("Foreign data sources are rejected", func() {
			newChart, _ := lib.ChartType(LineChart)
			widget, _ := newChart(&recordingNode{})
			err := widget.Draw(foreignSource{}, nil)
			So(errors.Is(err, ErrUnsupportedDataSource), ShouldBeTrue)
		})

		Convey("Projection labels the category axis and skips non-number columns", func() {
			categories, data := project(table)
			So(categories, ShouldResemble, []string{"12:00:00", "12:00:01"})
			So(data, ShouldHaveLength, 1)
			So(data[0].name, ShouldEqual, "heap")
			So(data[0].values, ShouldResemble, []any{1.5, 2.5})
		})
	})
}

type foreignSource struct{}

func (foreignSource) AddColumn(cb.ColumnType, string) int { return 0 }
func (foreignSource) AddRows([]cb.Row) error             { return nil }
func (foreignSource) RemoveRows(int, int) error          { return nil }
func (foreignSource) NumberOfRows() int                  { return 0 }
