// chart_views contains views derived from the Window view-model.
package chart_views

import (
	"errors"
	"fmt"
	"math"

	"chartview/telemetry"

	"github.com/samber/lo"
)

// Point is a telemetry sample plus the fields derived from the samples before it.
// As a rule of thumb, Point fields should be immediately usable as chart values.
type Point struct {
	telemetry.Sample
	// PeakHeapMB is the largest heap size up to and including this sample.
	PeakHeapMB float64
}

// Window is the view-model of the telemetry views: the charted points, oldest first,
// and the newest point for headline values.
type Window struct {
	Points []Point
	Latest Point
}

// Convert transforms a window of samples into a Window for consumption by chart views.
func Convert(samples []telemetry.Sample) (window Window) {
	peak := 0.0
	window.Points = lo.Map(samples, func(sample telemetry.Sample, _ int) Point {
		peak = math.Max(peak, sample.HeapMB)
		return Point{Sample: sample, PeakHeapMB: peak}
	})
	if len(window.Points) > 0 {
		window.Latest = window.Points[len(window.Points)-1]
	}
	return
}

// metric reads one chartable value from a point.
type metric func(Point) float64

var metrics = map[string]metric{
	"heap_mb":      func(p Point) float64 { return p.HeapMB },
	"peak_heap_mb": func(p Point) float64 { return p.PeakHeapMB },
	"goroutines":   func(p Point) float64 { return float64(p.Goroutines) },
	"num_gc":       func(p Point) float64 { return float64(p.NumGC) },
	"gc_pause_ms":  func(p Point) float64 { return p.GCPauseMs },
}

// ErrUnknownMetric is returned for chart metrics that points do not provide.
var ErrUnknownMetric = errors.New("unknown metric")

func lookupMetrics(names []string) ([]metric, error) {
	found := make([]metric, 0, len(names))
	for _, name := range names {
		m, ok := metrics[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
		}
		found = append(found, m)
	}
	return found, nil
}
