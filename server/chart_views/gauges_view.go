package chart_views

import (
	"fmt"
	"html/template"

	"chartview/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// meterWidth is the width in pixels of a full gauge meter.
const meterWidth = 200

// Gauges shows the latest readings as text and svg meters. Unlike TelemetryView it
// never re-renders; each window becomes attribute and text updates of existing elements.
type Gauges struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewGauges(
	done <-chan struct{},
	windows <-chan Window,
) *Gauges {
	g := &Gauges{id: "gauges"}
	g.updates = channerics.Convert(done, windows, g.onUpdate)
	return g
}

func (g *Gauges) Updates() <-chan []fastview.EleUpdate {
	return g.updates
}

// onUpdate converts a window into updates of the gauge texts and meters. The heap
// meter is scaled against the window's peak, which is never exceeded by definition.
func (g *Gauges) onUpdate(window Window) (ops []fastview.EleUpdate) {
	latest := window.Latest
	heapFill := 0
	if latest.PeakHeapMB > 0 {
		heapFill = int(meterWidth * latest.HeapMB / latest.PeakHeapMB)
	}

	text := func(name, value string) fastview.EleUpdate {
		return fastview.EleUpdate{
			EleId: g.id + "-" + name,
			Ops:   []fastview.Op{{Key: "textContent", Value: value}},
		}
	}

	return []fastview.EleUpdate{
		text("heap", fmt.Sprintf("%.2f MB", latest.HeapMB)),
		text("peak", fmt.Sprintf("%.2f MB", latest.PeakHeapMB)),
		text("goroutines", fmt.Sprintf("%d", latest.Goroutines)),
		text("gc-pause", fmt.Sprintf("%.3f ms", latest.GCPauseMs)),
		{
			EleId: g.id + "-heap-meter",
			Ops: []fastview.Op{
				{Key: "width", Value: fmt.Sprintf("%d", heapFill)},
			},
		},
	}
}

// Parse defines the gauges: a text cell per reading and the heap meter.
func (g *Gauges) Parse(
	t *template.Template,
) (name string, err error) {
	name = g.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<table id="` + g.id + `">
			<tr><td>heap</td><td id="` + g.id + `-heap">-</td>
				<td><svg width="` + fmt.Sprint(meterWidth) + `" height="10">
					<rect width="` + fmt.Sprint(meterWidth) + `" height="10" fill="lightgrey" />
					<rect id="` + g.id + `-heap-meter" width="0" height="10" fill="steelblue" />
				</svg></td></tr>
			<tr><td>peak heap</td><td id="` + g.id + `-peak">-</td></tr>
			<tr><td>goroutines</td><td id="` + g.id + `-goroutines">-</td></tr>
			<tr><td>last gc pause</td><td id="` + g.id + `-gc-pause">-</td></tr>
		</table>
		{{ end }}`)
	return
}
