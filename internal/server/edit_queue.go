package server

import (
	"context"
	"sync"

	"github.com/standardbeagle/reindex/internal/lsp"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/types"
)

// EditQueue hands client edits from any goroutine to the ingestion loop. It
// stamps every edit with the next epoch as it arrives, so epochs follow
// arrival order.
type EditQueue struct {
	mu        sync.Mutex
	edits     []*lsp.WorkspaceEdit
	nextEpoch types.Epoch
	coalesce  bool
	closed    bool
	notify    chan struct{}
}

// NewEditQueue returns a queue whose first edit gets epoch 1; epoch 0 is the
// initial index.
func NewEditQueue(coalesce bool) *EditQueue {
	return &EditQueue{
		nextEpoch: 1,
		coalesce:  coalesce,
		notify:    make(chan struct{}, 1),
	}
}

// Push stamps edit with an epoch and enqueues it. Edits pushed after Close
// are dropped and their timers canceled; Push then reports false.
func (q *EditQueue) Push(edit *lsp.WorkspaceEdit) (types.Epoch, bool) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		for _, t := range edit.DiagnosticLatencyTimers {
			t.Cancel()
		}
		return 0, false
	}
	edit.Epoch = q.nextEpoch
	q.nextEpoch++
	q.edits = append(q.edits, edit)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return edit.Epoch, true
}

// Pop blocks until an edit is available. With coalescing on, every queued
// edit is merged into one. It returns ok=false once the queue is closed and
// drained, or when ctx is done.
func (q *EditQueue) Pop(ctx context.Context) (*lsp.WorkspaceEdit, bool) {
	for {
		if edit, ok, closed := q.tryPop(); ok || closed {
			return edit, ok
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-q.notify:
		}
	}
}

func (q *EditQueue) tryPop() (edit *lsp.WorkspaceEdit, ok, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.edits) == 0 {
		return nil, false, q.closed
	}
	if !q.coalesce || len(q.edits) == 1 {
		edit = q.edits[0]
		q.edits[0] = nil
		q.edits = q.edits[1:]
		return edit, true, false
	}

	edit = q.edits[0]
	for _, newer := range q.edits[1:] {
		edit.Merge(newer)
	}
	metrics.Default().CounterAdd("server.edits_coalesced", int64(len(q.edits)-1))
	q.edits = nil
	return edit, true, false
}

// Drain removes and returns every queued edit.
func (q *EditQueue) Drain() []*lsp.WorkspaceEdit {
	q.mu.Lock()
	defer q.mu.Unlock()
	edits := q.edits
	q.edits = nil
	return edits
}

// Len is the number of edits waiting.
func (q *EditQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.edits)
}

// Close stops accepting edits. Queued edits can still be popped.
func (q *EditQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
