package lsp

import (
	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/debug"
	"github.com/standardbeagle/reindex/internal/errors"
	"github.com/standardbeagle/reindex/internal/metrics"
)

// tryCancelSlowPath is called while a cancelable slow path is running. It
// merges update with the pending edits and cancels the slow path when the
// merged batch can take the fast path, or when update would take the slow
// path anyway. On success the merged batch replaces update.
//
// newlyEvicted holds the snapshots update itself displaced. Together with the
// pending evictions they are the versions the running slow path started from.
func (ix *Indexer) tryCancelSlowPath(update *FileUpdates, running core.TypecheckingStatus, newlyEvicted EvictedFiles) (*FileUpdates, bool) {
	pending := ix.pending.updates
	// The running slow path covers some prefix of the pending edits.
	errors.Enforce(running.Epoch <= pending.Epoch,
		"running epoch %d is newer than pending epoch %d", running.Epoch, pending.Epoch)
	errors.Enforce(int64(running.Epoch) > int64(pending.Epoch)-int64(pending.EditCount),
		"running epoch %d predates the %d pending edits ending at epoch %d", running.Epoch, pending.EditCount, pending.Epoch)

	baselines := EvictedFiles{}
	baselines.MergeOlder(newlyEvicted)
	baselines.MergeOlder(ix.pending.evictedFiles)

	merged := update.Copy()
	merged.MergeOlder(pending)
	merged.CanTakeFastPath = ix.canTakeFastPathUpdate(merged, baselines)

	if !merged.CanTakeFastPath && update.CanTakeFastPath {
		// Canceling would turn a fast edit into a slow one.
		return nil, false
	}
	if !ix.epochs.TryCancelSlowPath(merged.Epoch) {
		debug.LogEpoch("lost the race to cancel the slow path at epoch %d", running.Epoch)
		metrics.CounterInc("lsp.cancel_race_lost")
		return nil, false
	}

	debug.LogEpoch("canceled slow path at epoch %d in favor of epoch %d", running.Epoch, merged.Epoch)
	metrics.CounterInc("lsp.slow_path_canceled")
	merged.CanceledSlowPath = true
	return merged, true
}
