package metrics

import (
	"sync/atomic"
	"time"

	"github.com/standardbeagle/reindex/internal/debug"
)

// Timer measures the latency of one operation. A timer either reports its
// duration once via Stop, or is canceled; it never does both.
type Timer struct {
	name     string
	start    time.Time
	registry *Registry
	done     atomic.Bool
	canceled atomic.Bool
}

// NewTimer starts a timer on the default registry.
func NewTimer(name string) *Timer {
	return NewTimerAt(defaultRegistry, name, time.Now())
}

// NewTimerAt starts a timer with an explicit start time.
func NewTimerAt(r *Registry, name string, start time.Time) *Timer {
	return &Timer{name: name, start: start, registry: r}
}

func (t *Timer) Name() string     { return t.name }
func (t *Timer) Start() time.Time { return t.start }

// Canceled reports whether Cancel won.
func (t *Timer) Canceled() bool { return t.canceled.Load() }

// Done reports whether the timer was stopped or canceled.
func (t *Timer) Done() bool { return t.done.Load() }

// Stop reports the elapsed time. Returns false if the timer was already
// stopped or canceled.
func (t *Timer) Stop() bool {
	if !t.done.CompareAndSwap(false, true) {
		return false
	}
	d := time.Since(t.start)
	t.registry.recordTiming(t.name, d)
	debug.Log("TIMER", "%s took %v", t.name, d)
	return true
}

// Cancel discards the timer without reporting. Returns false if the timer
// was already stopped or canceled.
func (t *Timer) Cancel() bool {
	if !t.done.CompareAndSwap(false, true) {
		return false
	}
	t.canceled.Store(true)
	t.registry.CategoryCounterAdd("timer.canceled", t.name, 1)
	return true
}

// Clone returns a fresh timer with the same name and start time.
func (t *Timer) Clone() *Timer {
	return NewTimerAt(t.registry, t.name, t.start)
}
