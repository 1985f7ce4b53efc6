package lsp

import (
	"fmt"

	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/debug"
	"github.com/standardbeagle/reindex/internal/errors"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/types"
)

// phase tracks the slow path most recently handed to analysis, as far as
// the ingestion side can tell.
type phase int

const (
	phaseIdle        phase = iota
	phaseSlowRunning       // a slow batch was committed and has not finished
	phaseCanceled          // the slow path was canceled and has not acknowledged it yet
	phaseCompleted         // the slow path committed
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseSlowRunning:
		return "slow_running"
	case phaseCanceled:
		return "canceled"
	case phaseCompleted:
		return "completed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var allowedTransitions = map[phase][]phase{
	phaseIdle:        {phaseSlowRunning},
	phaseSlowRunning: {phaseSlowRunning, phaseCanceled, phaseCompleted},
	phaseCanceled:    {phaseCanceled, phaseSlowRunning, phaseIdle},
	phaseCompleted:   {phaseIdle, phaseSlowRunning},
}

// pendingState is everything the indexer remembers about edits that the
// current slow path does not yet reflect.
type pendingState struct {
	phase     phase
	slowEpoch types.Epoch // epoch of the last slow batch committed

	// All edits since the last slow path began, merged.
	updates *FileUpdates
	// Per file id, the snapshot from before the pending slow path.
	evictedFiles EvictedFiles
	// Latency timers owned on behalf of the pending slow path.
	timers []*metrics.Timer
}

func newPendingState() *pendingState {
	return &pendingState{
		updates:      &FileUpdates{},
		evictedFiles: EvictedFiles{},
	}
}

func (p *pendingState) transition(to phase) {
	for _, allowed := range allowedTransitions[p.phase] {
		if allowed == to {
			debug.LogEpoch("pending state %s -> %s", p.phase, to)
			p.phase = to
			return
		}
	}
	errors.Raise("illegal pending state transition %s -> %s", p.phase, to)
}

// observe folds in what the epoch manager reports about analysis.
func (p *pendingState) observe(status core.TypecheckingStatus) {
	if status.SlowPathRunning {
		return
	}
	switch p.phase {
	case phaseSlowRunning:
		if status.Epoch == p.slowEpoch {
			p.transition(phaseCompleted)
			p.transition(phaseIdle)
		}
	case phaseCanceled:
		p.transition(phaseIdle)
	}
}

// retireTimers cancels every timer the pending state holds. It is the only
// place pending timers are canceled.
func (p *pendingState) retireTimers() {
	for _, t := range p.timers {
		if t != nil {
			t.Cancel()
		}
	}
	p.timers = nil
}

// takeTimers hands the held timers to the caller without canceling them.
func (p *pendingState) takeTimers() []*metrics.Timer {
	t := p.timers
	p.timers = nil
	return t
}

// adoptTimers retires the held timers and holds clones of newTimers instead.
func (p *pendingState) adoptTimers(newTimers []*metrics.Timer) {
	p.retireTimers()
	p.timers = make([]*metrics.Timer, 0, len(newTimers))
	for _, t := range newTimers {
		p.timers = append(p.timers, t.Clone())
	}
}

// commitSlow records a slow batch that did not cancel its predecessor.
func (p *pendingState) commitSlow(epoch types.Epoch, editTimers []*metrics.Timer) {
	p.transition(phaseSlowRunning)
	p.slowEpoch = epoch
	p.adoptTimers(editTimers)
}

// commitCanceling records a batch that canceled the running slow path. The
// pending timers move into the edit's set, which is returned, and the
// pending state holds clones of the combined set.
func (p *pendingState) commitCanceling(update *FileUpdates, editTimers []*metrics.Timer) []*metrics.Timer {
	p.transition(phaseCanceled)
	combined := append(editTimers, p.takeTimers()...)
	p.adoptTimers(combined)
	if !update.CanTakeFastPath {
		p.transition(phaseSlowRunning)
		p.slowEpoch = update.Epoch
	}
	return combined
}
