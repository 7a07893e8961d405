package telemetry

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSampler(t *testing.T) {
	Convey("Given a sampler with a window of three", t, func() {
		s := NewSampler(time.Millisecond, 3)

		Convey("The window keeps the newest samples, oldest first", func() {
			for i := 1; i <= 5; i++ {
				s.Record(Sample{HeapMB: float64(i)})
			}
			window := s.Window()
			So(window, ShouldHaveLength, 3)
			So(window[0].HeapMB, ShouldEqual, 3.0)
			So(window[2].HeapMB, ShouldEqual, 5.0)
		})

		Convey("The latest and peak heap are tracked", func() {
			s.Record(Sample{HeapMB: 10})
			s.Record(Sample{HeapMB: 4})
			So(s.HeapMB(), ShouldEqual, 4.0)
			So(s.PeakHeapMB(), ShouldEqual, 10.0)
		})

		Convey("Returned windows are copies", func() {
			window := s.Record(Sample{HeapMB: 1})
			window[0].HeapMB = 99
			So(s.Window()[0].HeapMB, ShouldEqual, 1.0)
		})
	})

	Convey("A non-positive window size keeps one sample", t, func() {
		s := NewSampler(time.Millisecond, 0)
		s.Record(Sample{Goroutines: 1})
		s.Record(Sample{Goroutines: 2})
		So(s.Window(), ShouldResemble, []Sample{{Goroutines: 2}})
	})

	Convey("Given a running sampler with a fake reader", t, func() {
		reads := 0
		s := NewSampler(time.Millisecond, 2, WithReader(func() Sample {
			reads++
			return Sample{Goroutines: reads}
		}))
		ctx, cancel := context.WithCancel(context.Background())
		windows := s.Run(ctx)

		Convey("Windows grow to the window size and then slide", func() {
			var last []Sample
			for i := 0; i < 3; i++ {
				select {
				case last = <-windows:
				case <-time.After(time.Second):
					So("timed out waiting for a window", ShouldBeEmpty)
				}
			}
			So(last, ShouldHaveLength, 2)
			So(last[1].Goroutines, ShouldEqual, last[0].Goroutines+1)
			cancel()
		})

		Convey("Cancelling closes the windows chan", func() {
			cancel()
			for range windows {
			}
			_, open := <-windows
			So(open, ShouldBeFalse)
		})
	})

	Convey("Reading the runtime returns live values", t, func() {
		sample := ReadRuntime()
		So(sample.Goroutines, ShouldBeGreaterThan, 0)
		So(sample.HeapMB, ShouldBeGreaterThan, 0.0)
		So(sample.Time.IsZero(), ShouldBeFalse)
	})
}
