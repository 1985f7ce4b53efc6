package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Registry holds process-wide counters and timing summaries.
type Registry struct {
	counters sync.Map // map[string]*atomic.Int64
	timings  sync.Map // map[string]*timingSummary
}

type timingSummary struct {
	count atomic.Int64
	total atomic.Int64 // nanoseconds
}

// TimingStats summarizes the durations reported for one timer name.
type TimingStats struct {
	Count int64
	Total time.Duration
}

var defaultRegistry = &Registry{}

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

func (r *Registry) counter(key string) *atomic.Int64 {
	if c, ok := r.counters.Load(key); ok {
		return c.(*atomic.Int64)
	}
	c, _ := r.counters.LoadOrStore(key, new(atomic.Int64))
	return c.(*atomic.Int64)
}

// CounterAdd adds delta to the named counter.
func (r *Registry) CounterAdd(name string, delta int64) {
	r.counter(name).Add(delta)
}

// CategoryCounterAdd adds delta to the counter "name.category".
func (r *Registry) CategoryCounterAdd(name, category string, delta int64) {
	r.counter(name + "." + category).Add(delta)
}

// Counter returns the current value of a counter (0 if never incremented).
func (r *Registry) Counter(name string) int64 {
	if c, ok := r.counters.Load(name); ok {
		return c.(*atomic.Int64).Load()
	}
	return 0
}

// CategoryCounter returns the value of "name.category".
func (r *Registry) CategoryCounter(name, category string) int64 {
	return r.Counter(name + "." + category)
}

func (r *Registry) recordTiming(name string, d time.Duration) {
	s, _ := r.timings.LoadOrStore(name, &timingSummary{})
	ts := s.(*timingSummary)
	ts.count.Add(1)
	ts.total.Add(int64(d))
}

// Timing returns the summary for a timer name.
func (r *Registry) Timing(name string) TimingStats {
	s, ok := r.timings.Load(name)
	if !ok {
		return TimingStats{}
	}
	ts := s.(*timingSummary)
	return TimingStats{Count: ts.count.Load(), Total: time.Duration(ts.total.Load())}
}

// Snapshot copies every counter.
func (r *Registry) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	r.counters.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}

// CounterNames returns the sorted counter names.
func (r *Registry) CounterNames() []string {
	snap := r.Snapshot()
	names := make([]string, 0, len(snap))
	for k := range snap {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Reset drops every counter and timing. Intended for tests.
func (r *Registry) Reset() {
	r.counters.Range(func(k, _ any) bool {
		r.counters.Delete(k)
		return true
	})
	r.timings.Range(func(k, _ any) bool {
		r.timings.Delete(k)
		return true
	})
}

// CounterInc increments a counter on the default registry.
func CounterInc(name string) {
	defaultRegistry.CounterAdd(name, 1)
}

// CategoryCounterInc increments "name.category" on the default registry.
func CategoryCounterInc(name, category string) {
	defaultRegistry.CategoryCounterAdd(name, category, 1)
}
