package world

import (
	"runtime"
	"time"
)

type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseGenerating
	PhaseReconciling
	PhaseBroadcasting
	PhaseYielding
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseGenerating:
		return "generating"
	case PhaseReconciling:
		return "reconciling"
	case PhaseBroadcasting:
		return "broadcasting"
	case PhaseYielding:
		return "yielding"
	}
	return "unknown"
}

// Yielder is called by the tick loop at the end of each phase with the phase
// that just finished.
type Yielder interface {
	Yield(done Phase)
}

type NopYielder struct{}

func (NopYielder) Yield(Phase) {}

type YieldFunc func(done Phase)

func (f YieldFunc) Yield(done Phase) { f(done) }

// IntervalYielder hands the CPU back to the host scheduler at the end of a
// tick, at most once per Interval. The first call always yields.
type IntervalYielder struct {
	Interval time.Duration
	Delay    time.Duration

	// Now and Sleep default to the time package.
	Now   func() time.Time
	Sleep func(time.Duration)

	last time.Time
}

func (y *IntervalYielder) Yield(done Phase) {
	if done != PhaseYielding {
		return
	}
	now := time.Now
	if y.Now != nil {
		now = y.Now
	}
	t := now()
	if !y.last.IsZero() && t.Sub(y.last) < y.Interval {
		return
	}
	runtime.Gosched()
	if y.Delay > 0 {
		sleep := time.Sleep
		if y.Sleep != nil {
			sleep = y.Sleep
		}
		sleep(y.Delay)
	}
	y.last = t
}
