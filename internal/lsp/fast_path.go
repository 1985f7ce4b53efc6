package lsp

import (
	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/debug"
	"github.com/standardbeagle/reindex/internal/errors"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/types"
)

// Reasons an edit is sent down the slow path, counted under lsp.slow_path_reason.
const (
	ReasonFastPathDisabled  = "fast_path_disabled"
	ReasonNewFile           = "new_file"
	ReasonSyntaxError       = "syntax_error"
	ReasonChangedDefinition = "changed_definition"
)

func slowPathBecause(reason, format string, args ...interface{}) bool {
	debug.LogFastPath("taking slow path because "+format, args...)
	metrics.CategoryCounterInc("lsp.slow_path_reason", reason)
	return false
}

// CanTakeFastPath reports whether changedFiles can be analyzed without a
// full re-analysis, comparing them against the current file table. Every
// file must already be fingerprinted.
func (ix *Indexer) CanTakeFastPath(changedFiles []*types.File) bool {
	return ix.canTakeFastPathFiles(changedFiles, nil)
}

// canTakeFastPathUpdate is the batch-level check. New files cannot be rolled
// back, so a batch that entered any is always slow.
func (ix *Indexer) canTakeFastPathUpdate(update *FileUpdates, evicted EvictedFiles) bool {
	if update.HasNewFiles {
		return slowPathBecause(ReasonNewFile, "update has a new file")
	}
	return ix.canTakeFastPathFiles(update.UpdatedFiles, evicted)
}

// canTakeFastPathFiles compares each file against its baseline: the evicted
// snapshot when evicted has one for the file, otherwise the file table entry.
func (ix *Indexer) canTakeFastPathFiles(changedFiles []*types.File, evicted EvictedFiles) bool {
	timer := metrics.NewTimer("fast_path_decision")
	defer timer.Stop()

	debug.LogFastPath("trying to see if fast path is available after %d file changes", len(changedFiles))
	if ix.cfg.LSP.DisableFastPath {
		return slowPathBecause(ReasonFastPathDisabled, "fast path is disabled")
	}

	for _, f := range changedFiles {
		ref := ix.initialGS.FindFileByPath(f.Path())
		if !ref.Exists() {
			return slowPathBecause(ReasonNewFile, "%s is a new file", f.Path())
		}

		baseline := baselineFile(ref, ix.initialGS, evicted)
		errors.Enforce(baseline.FileHash() != nil, "baseline of %s has no file hash", f.Path())
		errors.Enforce(f.FileHash() != nil, "%s has no file hash", f.Path())
		oldHash := baseline.FileHash().Definitions.HierarchyHash
		newHash := f.FileHash().Definitions.HierarchyHash
		errors.Enforce(oldHash != types.HashStateNotComputed, "baseline hierarchy hash of %s was never computed", f.Path())

		if newHash == types.HashStateInvalid {
			return slowPathBecause(ReasonSyntaxError, "%s has a syntax error", f.Path())
		}
		if newHash != oldHash {
			return slowPathBecause(ReasonChangedDefinition, "%s has changed definitions", f.Path())
		}
	}

	debug.LogFastPath("taking fast path")
	return true
}

func baselineFile(ref core.FileRef, gs *core.GlobalState, evicted EvictedFiles) *types.File {
	if f, ok := evicted[ref.ID()]; ok {
		return f
	}
	return gs.File(ref)
}
