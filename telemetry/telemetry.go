// telemetry samples the go runtime for the dashboard's charts.
package telemetry

import (
	"context"
	"runtime"
	"sync"
	"time"

	"chartview/atomic_float"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog"
)

const bytesPerMB = 1 << 20

// Sample is a single reading of the runtime.
type Sample struct {
	Time       time.Time
	HeapMB     float64
	Goroutines int
	NumGC      uint32
	// GCPauseMs is the duration of the most recent collection's pause.
	GCPauseMs float64
}

// ReadRuntime reads the current runtime statistics. It briefly stops the world.
func ReadRuntime() Sample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	sample := Sample{
		Time:       time.Now(),
		HeapMB:     float64(ms.HeapAlloc) / bytesPerMB,
		Goroutines: runtime.NumGoroutine(),
		NumGC:      ms.NumGC,
	}
	if ms.NumGC > 0 {
		sample.GCPauseMs = float64(ms.PauseNs[(ms.NumGC+255)%256]) / float64(time.Millisecond)
	}
	return sample
}

// Sampler reads the runtime periodically and keeps a window of the newest samples.
// The latest heap readings are kept in atomic floats for cheap reads from handlers.
type Sampler struct {
	interval time.Duration
	size     int
	read     func() Sample
	log      zerolog.Logger

	heapMB     atomic_float.AtomicFloat64
	peakHeapMB atomic_float.AtomicFloat64

	mu     sync.Mutex
	window []Sample
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithReader replaces ReadRuntime as the source of samples.
func WithReader(read func() Sample) SamplerOption {
	return func(s *Sampler) {
		s.read = read
	}
}

// WithLogger sets the sampler's logger.
func WithLogger(log zerolog.Logger) SamplerOption {
	return func(s *Sampler) {
		s.log = log
	}
}

// NewSampler returns a sampler taking a sample every interval and keeping the newest
// size samples. Non-positive sizes keep a single sample.
func NewSampler(interval time.Duration, size int, opts ...SamplerOption) *Sampler {
	if size < 1 {
		size = 1
	}
	s := &Sampler{
		interval: interval,
		size:     size,
		read:     ReadRuntime,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run samples until ctx is done, sending a copy of the window after each sample.
// The returned chan is closed when sampling stops.
func (s *Sampler) Run(ctx context.Context) <-chan []Sample {
	windows := make(chan []Sample)

	go func() {
		defer close(windows)
		s.log.Info().Dur("interval", s.interval).Int("window", s.size).Msg("sampling runtime")

		for range channerics.NewTicker(ctx.Done(), s.interval) {
			window := s.Record(s.read())
			select {
			case windows <- window:
			case <-ctx.Done():
				return
			}
		}
	}()

	return windows
}

// Record adds a sample to the window, dropping the oldest beyond the window size,
// and returns a copy of the window.
func (s *Sampler) Record(sample Sample) []Sample {
	s.heapMB.Store(sample.HeapMB)
	s.peakHeapMB.Max(sample.HeapMB)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = append(s.window, sample)
	if over := len(s.window) - s.size; over > 0 {
		s.window = append([]Sample(nil), s.window[over:]...)
	}
	s.log.Debug().Float64("heap_mb", sample.HeapMB).Int("goroutines", sample.Goroutines).Msg("sample")
	return append([]Sample(nil), s.window...)
}

// Window returns a copy of the current window, oldest first.
func (s *Sampler) Window() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.window...)
}

// HeapMB returns the heap size of the latest sample.
func (s *Sampler) HeapMB() float64 {
	return s.heapMB.AtomicRead()
}

// PeakHeapMB returns the largest heap size sampled so far.
func (s *Sampler) PeakHeapMB() float64 {
	return s.peakHeapMB.AtomicRead()
}
