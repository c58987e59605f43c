package clock

import (
	"sync/atomic"
	"time"

	"lsmkv/pkg/types"
)

type iTimeProvider interface {
	Now() time.Time
}

type systemTime struct{}

func (systemTime) Now() time.Time {
	return time.Now()
}

// AtomicClock hands out wall-clock timestamps in nanoseconds. Every call to
// Next returns a value strictly greater than the previous one, even when the
// underlying time provider stalls or goes backwards.
type AtomicClock struct {
	last atomic.Int64
	tp   iTimeProvider
}

func NewAtomic(tp iTimeProvider) *AtomicClock {
	if tp == nil {
		tp = systemTime{}
	}
	return &AtomicClock{tp: tp}
}

func (ac *AtomicClock) Val() types.Timestamp {
	return types.Timestamp(ac.last.Load())
}

func (ac *AtomicClock) Next() types.Timestamp {
	for {
		last := ac.last.Load()
		next := ac.tp.Now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if ac.last.CompareAndSwap(last, next) {
			return types.Timestamp(next)
		}
	}
}

// Set moves the clock forward to t. It never moves it backwards.
func (ac *AtomicClock) Set(t types.Timestamp) {
	for {
		last := ac.last.Load()
		if int64(t) <= last || ac.last.CompareAndSwap(last, int64(t)) {
			return
		}
	}
}
