package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/lsp"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/pipeline"
	"github.com/standardbeagle/reindex/internal/types"
)

// Result is what analysis reports for one batch.
type Result struct {
	Epoch     types.Epoch
	FastPath  bool
	Canceled  bool // the slow path was abandoned for a newer batch
	Preempted bool // ran in the middle of a slow path, on its view
	Files     int  // files analyzed
	Errors    []string
	EditCount int
	Duration  time.Duration

	// View is the file table the batch was analyzed against. It belongs to
	// the analysis goroutine and is only valid during the callback.
	View *core.GlobalState
}

type batch struct {
	update *lsp.FileUpdates
	timers []*metrics.Timer
}

type checkerState int

const (
	stateIdle        checkerState = iota
	stateBusy                     // analyzing a batch that cannot be canceled or preempted
	stateSlowRunning              // a cancelable slow path is in flight
)

// Typechecker is the analysis context. It owns its own GlobalState copy and
// processes committed batches in order on a single goroutine. Slow batches
// can be canceled by the ingestion side through the shared epoch manager,
// and fast batches committed while a slow path runs preempt it.
type Typechecker struct {
	em       *core.EpochManager
	log      *zap.Logger
	onResult func(Result)

	// fileDelay stretches per-file analysis; tests use it to keep a slow
	// path running long enough to be canceled or preempted.
	fileDelay time.Duration

	gs *core.GlobalState

	mu      sync.Mutex
	queue   []batch
	state   checkerState
	started bool
	stopped bool
	// changed is closed and replaced whenever the queue or state changes.
	changed chan struct{}
	notify  chan struct{}
	done    chan struct{}
}

func NewTypechecker(em *core.EpochManager, log *zap.Logger, onResult func(Result)) *Typechecker {
	if onResult == nil {
		onResult = func(Result) {}
	}
	return &Typechecker{
		em:       em,
		log:      log,
		onResult: onResult,
		changed:  make(chan struct{}),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start runs the analysis goroutine.
func (tc *Typechecker) Start() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.started || tc.stopped {
		return
	}
	tc.started = true
	go tc.run()
}

// Enqueue hands a committed batch to analysis. It never blocks, so the
// ingestion side stays free to cancel the batch being analyzed.
func (tc *Typechecker) Enqueue(update *lsp.FileUpdates, timers []*metrics.Timer) {
	tc.mu.Lock()
	if tc.stopped {
		tc.mu.Unlock()
		cancelTimers(timers)
		return
	}
	tc.queue = append(tc.queue, batch{update: update, timers: timers})
	tc.broadcastLocked()
	tc.mu.Unlock()
	select {
	case tc.notify <- struct{}{}:
	default:
	}
}

// WaitReady blocks until every enqueued batch has been picked up and
// analysis is either idle or running a slow path that the next commit may
// cancel or preempt. Committing only when ready keeps at most one slow batch
// between the indexer and analysis. It reports false once the typechecker
// is stopped or ctx is done.
func (tc *Typechecker) WaitReady(ctx context.Context) bool {
	for {
		tc.mu.Lock()
		if tc.stopped {
			tc.mu.Unlock()
			return false
		}
		if len(tc.queue) == 0 && tc.state != stateBusy {
			tc.mu.Unlock()
			return true
		}
		changed := tc.changed
		tc.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return false
		}
	}
}

// Stop finishes the batch in progress, drops the rest and waits for the
// goroutine to exit.
func (tc *Typechecker) Stop() {
	tc.mu.Lock()
	if tc.stopped {
		tc.mu.Unlock()
		return
	}
	tc.stopped = true
	started := tc.started
	dropped := tc.queue
	tc.queue = nil
	tc.broadcastLocked()
	tc.mu.Unlock()
	for _, b := range dropped {
		cancelTimers(b.timers)
	}
	if !started {
		return
	}
	select {
	case tc.notify <- struct{}{}:
	default:
	}
	<-tc.done
}

func (tc *Typechecker) broadcastLocked() {
	close(tc.changed)
	tc.changed = make(chan struct{})
}

func (tc *Typechecker) setState(s checkerState) {
	tc.mu.Lock()
	tc.state = s
	tc.broadcastLocked()
	tc.mu.Unlock()
}

func (tc *Typechecker) popLocked() batch {
	b := tc.queue[0]
	tc.queue[0] = batch{}
	tc.queue = tc.queue[1:]
	tc.broadcastLocked()
	return b
}

func (tc *Typechecker) next() (batch, bool) {
	for {
		tc.mu.Lock()
		if tc.stopped {
			tc.mu.Unlock()
			return batch{}, false
		}
		if len(tc.queue) > 0 {
			// Busy before the queue looks empty, so WaitReady cannot slip in
			// ahead of StartCommitEpoch.
			tc.state = stateBusy
			b := tc.popLocked()
			tc.mu.Unlock()
			return b, true
		}
		tc.mu.Unlock()
		<-tc.notify
	}
}

func (tc *Typechecker) run() {
	defer close(tc.done)
	for {
		b, ok := tc.next()
		if !ok {
			return
		}
		tc.process(b)
		tc.setState(stateIdle)
	}
}

func (tc *Typechecker) process(b batch) {
	u := b.update
	start := time.Now()
	res := Result{Epoch: u.Epoch, FastPath: u.CanTakeFastPath, EditCount: u.EditCount}

	switch {
	case tc.gs == nil:
		// Initial index: never canceled.
		tc.em.TryCommitEpoch(u.Epoch, false, func() {
			tc.gs = u.UpdatedGS
			res.Files, res.Errors = tc.analyze(u.UpdatedFileIndexes, nil)
		})
		res.View = tc.gs
	case u.CanTakeFastPath:
		tc.em.TryCommitEpoch(u.Epoch, false, func() {
			tc.applyFast(tc.gs, u)
			res.Files, res.Errors = tc.analyze(u.UpdatedFileIndexes, nil)
		})
		res.View = tc.gs
	default:
		tc.em.StartCommitEpoch(u.Epoch)
		tc.setState(stateSlowRunning)
		committed := tc.em.TryCommitEpoch(u.Epoch, true, func() {
			res.Files, res.Errors = tc.analyze(u.UpdatedFileIndexes, u.UpdatedGS)
		})
		tc.setState(stateBusy)
		if committed {
			tc.gs = u.UpdatedGS
		} else {
			res.Canceled = true
		}
		res.View = u.UpdatedGS
	}
	res.Duration = time.Since(start)
	tc.finish(b, res)
}

// preempt analyzes the fast batches queued behind a running slow path on
// the slow path's view. A batch that canceled the slow path is left queued:
// it already covers the slow path's edits.
func (tc *Typechecker) preempt(slowView *core.GlobalState) {
	for {
		tc.mu.Lock()
		if tc.stopped || len(tc.queue) == 0 {
			tc.mu.Unlock()
			return
		}
		if u := tc.queue[0].update; !u.CanTakeFastPath || u.CanceledSlowPath {
			tc.mu.Unlock()
			return
		}
		b := tc.popLocked()
		tc.mu.Unlock()

		u := b.update
		start := time.Now()
		res := Result{Epoch: u.Epoch, FastPath: true, Preempted: true, EditCount: u.EditCount, View: slowView}
		tc.applyFast(slowView, u)
		res.Files, res.Errors = tc.analyze(u.UpdatedFileIndexes, nil)
		res.Duration = time.Since(start)
		metrics.CounterInc("typecheck.preempted")
		tc.finish(b, res)
	}
}

func (tc *Typechecker) finish(b batch, res Result) {
	if res.Canceled {
		// The canceling batch carries clones of these timers.
		cancelTimers(b.timers)
		metrics.CounterInc("typecheck.canceled")
		tc.log.Info("slow path canceled", zap.Uint32("epoch", res.Epoch))
	} else {
		for _, t := range b.timers {
			t.Stop()
		}
		metrics.CounterInc("typecheck.committed")
		tc.log.Debug("batch analyzed",
			zap.Uint32("epoch", res.Epoch),
			zap.Bool("fast", res.FastPath),
			zap.Bool("preempted", res.Preempted),
			zap.Int("files", res.Files),
			zap.Int("errors", len(res.Errors)),
			zap.Duration("took", res.Duration))
	}
	tc.onResult(res)
}

// applyFast brings view up to date with a fast batch. A fast batch never
// introduces files, so a path the view does not know is logged and skipped.
func (tc *Typechecker) applyFast(view *core.GlobalState, u *lsp.FileUpdates) {
	for _, f := range u.UpdatedFiles {
		ref := view.FindFileByPath(f.Path())
		if !ref.Exists() {
			tc.log.Debug("fast path file not in analysis view", zap.String("path", f.Path()))
			continue
		}
		view.ReplaceFile(ref, f)
	}
}

// analyze reports syntax diagnostics. With a slowView the run is a
// cancelable slow path: before each file it stops if canceled, then lets
// queued fast batches preempt it.
func (tc *Typechecker) analyze(indexes []pipeline.ParsedFile, slowView *core.GlobalState) (int, []string) {
	var errs []string
	n := 0
	for _, pf := range indexes {
		if slowView != nil {
			if tc.em.WasTypecheckingCanceled() {
				return n, errs
			}
			tc.preempt(slowView)
		}
		if !pf.File.Exists() {
			continue
		}
		if tc.fileDelay > 0 {
			time.Sleep(tc.fileDelay)
		}
		n++
		if pf.HasErrors {
			errs = append(errs, pf.Path)
		}
	}
	return n, errs
}

func cancelTimers(timers []*metrics.Timer) {
	for _, t := range timers {
		t.Cancel()
	}
}
