package chart_lib

import (
	"bytes"
	"fmt"
	"io"
	"time"

	cb "chartview/server/chart_behavior"
	"chartview/server/fastview"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/samber/lo"
	"github.com/spf13/cast"
)

// renderer is satisfied by every go-echarts chart.
type renderer interface {
	Render(w io.Writer) error
}

// series is one number column of a DataTable.
type series struct {
	name   string
	values []any
}

// buildFunc builds a go-echarts chart of one kind from the projected table.
type buildFunc func(global []charts.GlobalOpts, categories []string, data []series, options cb.Options) renderer

// chart draws a go-echarts chart into its container node.
type chart struct {
	id        string
	kind      string
	build     buildFunc
	container fastview.Node
	lib       *Library
}

func (c *chart) Type() string {
	return c.kind
}

// Draw renders the table as this chart and replaces the container's content with it.
func (c *chart) Draw(dataSource cb.DataSource, options cb.Options) error {
	table, ok := dataSource.(*DataTable)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnsupportedDataSource, dataSource)
	}

	categories, data := project(table)
	rendered := c.build(c.globalOptions(options), categories, data, options)

	var buf bytes.Buffer
	if err := rendered.Render(&buf); err != nil {
		return fmt.Errorf("render %s %s: %w", c.kind, c.id, err)
	}
	content, err := bodyOf(&buf)
	if err != nil {
		return fmt.Errorf("render %s %s: %w", c.kind, c.id, err)
	}
	return c.container.SetHTML(content)
}

// ClearChart empties the container.
func (c *chart) ClearChart() {
	if err := c.container.SetHTML(""); err != nil {
		c.lib.log.Warn().Err(err).Str("chart", c.id).Msg("failed to clear chart")
	}
}

func (c *chart) globalOptions(options cb.Options) []charts.GlobalOpts {
	width, height := c.lib.width, c.lib.height
	if w := cast.ToString(options["width"]); w != "" {
		width = w
	}
	if h := cast.ToString(options["height"]); h != "" {
		height = h
	}

	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{
			ChartID:    c.id,
			Width:      width,
			Height:     height,
			AssetsHost: c.lib.assetsHost,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    cast.ToString(options["title"]),
			Subtitle: cast.ToString(options["subtitle"]),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	}
}

// bodyOf extracts the chart markup from a rendered go-echarts page; the page's head,
// which loads echarts itself, is left to the host page.
func bodyOf(page io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return "", err
	}
	return doc.Find("body").Html()
}

// project splits the table into category labels, from the first column, and one series
// per number column after it.
func project(table *DataTable) (categories []string, data []series) {
	columns := table.Columns()
	if len(columns) == 0 {
		return nil, nil
	}
	rows := table.Rows()

	categories = lo.Map(rows, func(row cb.Row, _ int) string {
		return label(row[0])
	})
	for i, column := range columns[1:] {
		if column.Type != cb.ColumnNumber {
			continue
		}
		data = append(data, series{
			name: column.Label,
			values: lo.Map(rows, func(row cb.Row, _ int) any {
				return row[i+1]
			}),
		})
	}
	return
}

func label(cell any) string {
	if t, ok := cell.(time.Time); ok {
		return t.Format(time.TimeOnly)
	}
	return cast.ToString(cell)
}

func buildLine(global []charts.GlobalOpts, categories []string, data []series, options cb.Options) renderer {
	line := charts.NewLine()
	line.SetGlobalOptions(global...)
	line.SetXAxis(categories)
	for _, s := range data {
		line.AddSeries(s.name, lineData(s.values))
	}
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{
		Smooth: opts.Bool(cast.ToBool(options["smooth"])),
	}))
	return line
}

// buildArea is a line chart with its series filled down to the axis.
func buildArea(global []charts.GlobalOpts, categories []string, data []series, options cb.Options) renderer {
	line := charts.NewLine()
	line.SetGlobalOptions(global...)
	line.SetXAxis(categories)
	for _, s := range data {
		line.AddSeries(s.name, lineData(s.values))
	}
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(cast.ToBool(options["smooth"]))}),
		charts.WithAreaStyleOpts(opts.AreaStyle{}),
	)
	return line
}

func buildBar(global []charts.GlobalOpts, categories []string, data []series, _ cb.Options) renderer {
	bar := charts.NewBar()
	bar.SetGlobalOptions(global...)
	bar.SetXAxis(categories)
	for _, s := range data {
		bar.AddSeries(s.name, lo.Map(s.values, func(v any, _ int) opts.BarData {
			return opts.BarData{Value: v}
		}))
	}
	return bar
}

func buildScatter(global []charts.GlobalOpts, categories []string, data []series, _ cb.Options) renderer {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(global...)
	scatter.SetXAxis(categories)
	for _, s := range data {
		scatter.AddSeries(s.name, lo.Map(s.values, func(v any, _ int) opts.ScatterData {
			return opts.ScatterData{Value: v}
		}))
	}
	return scatter
}

func lineData(values []any) []opts.LineData {
	return lo.Map(values, func(v any, _ int) opts.LineData {
		return opts.LineData{Value: v}
	})
}
