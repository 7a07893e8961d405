package atomic_float

import (
	"math"
	"sync/atomic"
)

// AtomicFloat64 is a float64 for lock-free sharing between goroutines, stored as its
// IEEE 754 bits. Telemetry readings are written by the sampler and read by handlers.
// The zero value holds 0.
type AtomicFloat64 struct {
	bits atomic.Uint64
}

// AtomicRead loads the float64.
func (af *AtomicFloat64) AtomicRead() float64 {
	return math.Float64frombits(af.bits.Load())
}

// Store sets the float64 unconditionally.
func (af *AtomicFloat64) Store(val float64) {
	af.bits.Store(math.Float64bits(val))
}

// Max raises the value to val if val is larger, retrying until it wins or loses to a
// larger value. It returns the resulting maximum.
func (af *AtomicFloat64) Max(val float64) float64 {
	for {
		old := af.bits.Load()
		current := math.Float64frombits(old)
		if current >= val {
			return current
		}
		if af.bits.CompareAndSwap(old, math.Float64bits(val)) {
			return val
		}
	}
}
