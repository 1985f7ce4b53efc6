package lsp

import (
	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/debug"
	"github.com/standardbeagle/reindex/internal/errors"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/pipeline"
	"github.com/standardbeagle/reindex/internal/types"
)

// CommitEdit applies edit to the file table and returns the batch analysis
// should run. When a slow path is running, the batch may instead be the
// merge of this edit with everything pending, having canceled that slow path.
//
// The edit's latency timers may be extended with the timers of a canceled
// slow path; the caller stops them once the returned batch is analyzed.
func (ix *Indexer) CommitEdit(edit *WorkspaceEdit) *FileUpdates {
	timer := metrics.NewTimer("commitEdit")
	defer timer.Stop()

	ix.pending.observe(ix.epochs.GetStatus())

	update := &FileUpdates{
		Epoch:     edit.Epoch,
		EditCount: edit.MergeCount + 1,
	}
	// Every file needs a fingerprint before the fast path check.
	ix.ComputeFileHashes(edit.Updates)

	update.UpdatedFiles = edit.Updates
	update.CanTakeFastPath = ix.canTakeFastPathUpdate(update, nil)
	update.CancellationExpected = edit.CancellationExpected
	update.PreemptionsExpected = edit.PreemptionsExpected

	newlyEvicted := EvictedFiles{}
	refs := make([]core.FileRef, 0, len(update.UpdatedFiles))
	for _, f := range update.UpdatedFiles {
		ref := ix.initialGS.FindFileByPath(f.Path())
		if ref.Exists() {
			newlyEvicted[ref.ID()] = ix.initialGS.File(ref)
			ix.initialGS.ReplaceFile(ref, f)
		} else {
			update.HasNewFiles = true
			ref = ix.initialGS.EnterFile(f)
			f.SetStrictLevel(ix.pipeline.DecideStrictLevel(ix.initialGS, ref))
		}
		refs = append(refs, ref)
	}

	// Index output is ordered by file id; put it back in edit order.
	fileToPos := make(map[types.FileID]int, len(refs))
	for i, ref := range refs {
		_, dup := fileToPos[ref.ID()]
		errors.Enforce(!dup, "file %d appears twice in one edit", ref.ID())
		fileToPos[ref.ID()] = i
	}
	update.UpdatedFileIndexes = make([]pipeline.ParsedFile, len(refs))
	for _, pf := range ix.pipeline.Index(ix.initialGS, refs, ix.emptyWorkers) {
		update.UpdatedFileIndexes[fileToPos[pf.File.ID()]] = pf
	}

	if running := ix.epochs.GetStatus(); running.SlowPathRunning {
		if merged, ok := ix.tryCancelSlowPath(update, running, newlyEvicted); ok {
			update = merged
			newlyEvicted.MergeOlder(ix.pending.evictedFiles)
		}
	}

	errors.Enforce(len(update.UpdatedFiles) == len(update.UpdatedFileIndexes),
		"batch has %d files but %d indexes", len(update.UpdatedFiles), len(update.UpdatedFileIndexes))

	switch {
	case update.CanceledSlowPath:
		// This batch contains the canceled slow path's edits, and its timers.
		edit.DiagnosticLatencyTimers = ix.pending.commitCanceling(update, edit.DiagnosticLatencyTimers)
	case !update.CanTakeFastPath:
		ix.pending.commitSlow(update.Epoch, edit.DiagnosticLatencyTimers)
	}

	if update.CanTakeFastPath {
		// Keep the fast edit in pending so it can be replayed if the slow
		// path is canceled later.
		merged := update.Copy()
		merged.MergeOlder(ix.pending.updates)
		if !update.CanceledSlowPath {
			// A slow path may be running; this edit preempted it.
			merged.CommittedEditCount += update.EditCount
		}
		ix.pending.updates = merged
		newlyEvicted.MergeOlder(ix.pending.evictedFiles)
	} else {
		update.UpdatedGS = ix.initialGS.DeepCopy()
		ix.pending.updates = update.Copy()
	}

	// Eviction map is replaced, never appended to.
	ix.pending.evictedFiles = newlyEvicted

	// Expectations only apply to the request that carried them.
	ix.pending.updates.CancellationExpected = false
	ix.pending.updates.PreemptionsExpected = 0

	debug.LogIndexing("committed epoch %d: fast=%v canceled=%v files=%d",
		update.Epoch, update.CanTakeFastPath, update.CanceledSlowPath, len(update.UpdatedFiles))
	if update.CanTakeFastPath {
		metrics.CounterInc("lsp.fast_path")
	} else {
		metrics.CounterInc("lsp.slow_path")
	}
	return update
}
