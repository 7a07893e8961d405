package chart_views

import (
	"bytes"
	"html/template"
	"testing"
	"time"

	"chartview/server/fastview"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGauges(t *testing.T) {
	Convey("Given gauges fed by a window chan", t, func() {
		done := make(chan struct{})
		defer close(done)
		windows := make(chan Window)
		g := NewGauges(done, windows)

		Convey("A window becomes text and meter updates", func() {
			go func() { windows <- Convert(samples(8, 2)) }()

			var updates []fastview.EleUpdate
			select {
			case updates = <-g.Updates():
			case <-time.After(time.Second):
				So("timed out waiting for gauge updates", ShouldBeEmpty)
			}

			byId := map[string]fastview.Op{}
			for _, update := range updates {
				byId[update.EleId] = update.Ops[0]
			}
			So(byId["gauges-heap"], ShouldResemble, fastview.Op{Key: "textContent", Value: "2.00 MB"})
			So(byId["gauges-peak"].Value, ShouldEqual, "8.00 MB")
			So(byId["gauges-goroutines"].Value, ShouldEqual, "11")
			So(byId["gauges-heap-meter"], ShouldResemble, fastview.Op{Key: "width", Value: "50"})
		})

		Convey("An empty window leaves the meter empty", func() {
			updates := g.onUpdate(Convert(nil))
			So(updates[len(updates)-1].Ops[0].Value, ShouldEqual, "0")
		})

		Convey("The template defines every updated element", func() {
			t := template.New("page")
			name, err := g.Parse(t)
			So(err, ShouldBeNil)

			var buf bytes.Buffer
			So(t.ExecuteTemplate(&buf, name, nil), ShouldBeNil)
			for _, update := range g.onUpdate(Convert(samples(1))) {
				So(buf.String(), ShouldContainSubstring, `id="`+update.EleId+`"`)
			}
		})
	})
}
