package core

import (
	"sync"
	"sync/atomic"

	"github.com/standardbeagle/reindex/internal/debug"
	"github.com/standardbeagle/reindex/internal/errors"
	"github.com/standardbeagle/reindex/internal/types"
)

// TypecheckingStatus is a point-in-time view of the analysis context.
type TypecheckingStatus struct {
	SlowPathRunning bool
	Epoch           types.Epoch // epoch being processed when SlowPathRunning
}

// EpochManager is the only synchronization point between edit ingestion and
// analysis. Analysis is running whenever the processing epoch differs from
// the last committed one; ingestion cancels it by moving the invalidator.
type EpochManager struct {
	mu            sync.Mutex
	processing    atomic.Uint32
	lastCommitted atomic.Uint32
	invalidator   atomic.Uint32
}

func NewEpochManager() *EpochManager {
	return &EpochManager{}
}

// StartCommitEpoch marks the start of a cancelable analysis of epoch.
func (m *EpochManager) StartCommitEpoch(epoch types.Epoch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	errors.Enforce(epoch != m.processing.Load(), "epoch %d is already being processed", epoch)
	m.processing.Store(epoch)
	m.invalidator.Store(epoch)
	debug.LogEpoch("slow path started at epoch %d", epoch)
}

// WasTypecheckingCanceled is polled by the analysis at safe points. Lock-free.
func (m *EpochManager) WasTypecheckingCanceled() bool {
	return m.invalidator.Load() != m.processing.Load()
}

// TryCommitEpoch runs fn for epoch. Non-cancelable work always commits.
// Cancelable work commits only if no cancellation arrived before fn returned;
// otherwise the manager rolls back to the last committed epoch.
func (m *EpochManager) TryCommitEpoch(epoch types.Epoch, cancelable bool, fn func()) bool {
	if !cancelable {
		fn()
		return true
	}

	fn()

	m.mu.Lock()
	defer m.mu.Unlock()
	errors.Enforce(m.processing.Load() == epoch,
		"committing epoch %d but epoch %d is being processed", epoch, m.processing.Load())

	if m.processing.Load() == m.invalidator.Load() {
		m.lastCommitted.Store(epoch)
		debug.LogEpoch("slow path committed at epoch %d", epoch)
		return true
	}

	last := m.lastCommitted.Load()
	m.processing.Store(last)
	m.invalidator.Store(last)
	debug.LogEpoch("slow path at epoch %d canceled", epoch)
	return false
}

func (m *EpochManager) GetStatus() TypecheckingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	processing := m.processing.Load()
	return TypecheckingStatus{
		SlowPathRunning: processing != m.lastCommitted.Load(),
		Epoch:           processing,
	}
}

// TryCancelSlowPath cancels the running slow path in favor of newEpoch.
// Returns false if no slow path is running. Repeated cancels are allowed
// while the canceled run has not yet noticed.
func (m *EpochManager) TryCancelSlowPath(newEpoch types.Epoch) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processing.Load() == m.lastCommitted.Load() {
		return false
	}
	m.invalidator.Store(newEpoch)
	debug.LogEpoch("slow path at epoch %d canceled by epoch %d", m.processing.Load(), newEpoch)
	return true
}
