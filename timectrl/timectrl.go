package timectrl

import (
	"sync"
	"time"
)

// SimClock exposes the current simulation time. Components that only need
// to read the clock depend on this rather than on the concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances one tick per wall-clock tick interval.
	RealTime Mode = iota
	// Accelerated advances as quickly as the listeners can run, still
	// stepping simulation time by Tick per iteration.
	Accelerated
)

// TimeController drives simulation time and notifies registered listeners
// on every tick. Listeners run sequentially on the controller goroutine, so
// a tick only completes once every listener has returned.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time

	listeners []func(time.Time)
	stop      chan struct{}
	stopOnce  sync.Once
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
		stop:        make(chan struct{}),
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime forces the simulation clock to a specific instant. Intended for
// tests and for resuming a run from a checkpointed time.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// AddListener registers a callback invoked with the simulation time of
// every tick. Listeners must be registered before Start.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.listeners = append(tc.listeners, fn)
}

// Stop asks a running controller to finish after the current tick. Safe to
// call more than once.
func (tc *TimeController) Stop() {
	tc.stopOnce.Do(func() { close(tc.stop) })
}

// Start runs the controller on its own goroutine until the given span of
// simulation time has elapsed, or until Stop is called. It returns a channel
// that is closed when the controller finishes. A non-positive duration runs
// until Stop.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		simTime := tc.StartTime
		tc.currentTime = simTime
		tc.mu.Unlock()

		var ticker *time.Ticker
		if tc.Mode == RealTime {
			ticker = time.NewTicker(tc.Tick)
			defer ticker.Stop()
		}

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			if ticker != nil {
				select {
				case <-ticker.C:
				case <-tc.stop:
					return
				}
			} else {
				select {
				case <-tc.stop:
					return
				default:
				}
			}

			simTime = simTime.Add(tc.Tick)
			elapsed += tc.Tick

			tc.mu.Lock()
			tc.currentTime = simTime
			tc.mu.Unlock()

			for _, fn := range tc.listeners {
				fn(simTime)
			}
		}
	}()
	return done
}
