package workerpool

import (
	"sync/atomic"
	"time"
)

// ConcurrentBoundedQueue is a fixed-capacity multi-consumer queue. Consumers
// never block: an empty queue means the work is done.
type ConcurrentBoundedQueue[T any] struct {
	items chan T
}

func NewConcurrentBoundedQueue[T any](capacity int) *ConcurrentBoundedQueue[T] {
	return &ConcurrentBoundedQueue[T]{items: make(chan T, capacity)}
}

// Push adds an item. It panics if the queue is already at capacity.
func (q *ConcurrentBoundedQueue[T]) Push(item T) {
	select {
	case q.items <- item:
	default:
		panic("workerpool: push on full ConcurrentBoundedQueue")
	}
}

// TryPop removes one item. ok is false once the queue is drained.
func (q *ConcurrentBoundedQueue[T]) TryPop() (item T, ok bool) {
	select {
	case item = <-q.items:
		return item, true
	default:
		return item, false
	}
}

func (q *ConcurrentBoundedQueue[T]) Len() int { return len(q.items) }

// PopStatus is the outcome of BlockingBoundedQueue.WaitPopTimed.
type PopStatus int

const (
	Popped   PopStatus = iota // an item was returned
	TimedOut                  // nothing arrived within the timeout; call again
	Done                      // all expected weight was pushed and consumed
)

// BlockingBoundedQueue collects results from producers. Each push carries a
// weight, and the queue is done once the pushed weights sum to capacity and
// every pushed item has been popped.
type BlockingBoundedQueue[T any] struct {
	capacity int64
	items    chan T
	pushed   atomic.Int64
	complete chan struct{}
}

func NewBlockingBoundedQueue[T any](capacity int) *BlockingBoundedQueue[T] {
	q := &BlockingBoundedQueue[T]{
		capacity: int64(capacity),
		items:    make(chan T, max(1, capacity)),
		complete: make(chan struct{}),
	}
	if capacity <= 0 {
		close(q.complete)
	}
	return q
}

// Push adds item and accounts weight units of progress toward capacity.
func (q *BlockingBoundedQueue[T]) Push(item T, weight int) {
	q.items <- item
	before := q.pushed.Add(int64(weight)) - int64(weight)
	if before < q.capacity && before+int64(weight) >= q.capacity {
		close(q.complete)
	}
}

// WaitPopTimed waits up to timeout for an item.
func (q *BlockingBoundedQueue[T]) WaitPopTimed(timeout time.Duration) (item T, status PopStatus) {
	select {
	case item = <-q.items:
		return item, Popped
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item = <-q.items:
		return item, Popped
	case <-q.complete:
		// Items are enqueued before their weight is counted, so everything
		// is visible once complete is closed.
		select {
		case item = <-q.items:
			return item, Popped
		default:
			return item, Done
		}
	case <-timer.C:
		return item, TimedOut
	}
}
