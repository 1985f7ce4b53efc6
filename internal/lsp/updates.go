package lsp

import (
	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/pipeline"
	"github.com/standardbeagle/reindex/internal/types"
)

// WorkspaceEdit is one client edit, possibly several merged together, as it
// arrives at the indexer.
type WorkspaceEdit struct {
	Epoch      types.Epoch
	MergeCount int // edits merged into this one, beyond the first
	Updates    []*types.File

	// Latency timers for the edits contained here; stopped when diagnostics
	// for them are published.
	DiagnosticLatencyTimers []*metrics.Timer

	// Test-only expectations carried through to the analysis context.
	CancellationExpected bool
	PreemptionsExpected  int
}

// Merge folds a newer edit into e. The newer edit's epoch and expectations
// win, and per path the newer file wins.
func (e *WorkspaceEdit) Merge(newer *WorkspaceEdit) {
	e.Epoch = newer.Epoch
	e.MergeCount += newer.MergeCount + 1
	e.Updates = mergeFiles(e.Updates, newer.Updates)
	e.DiagnosticLatencyTimers = append(e.DiagnosticLatencyTimers, newer.DiagnosticLatencyTimers...)
	e.CancellationExpected = newer.CancellationExpected
	e.PreemptionsExpected = newer.PreemptionsExpected
}

// mergeFiles returns older overlaid with newer. Files keep the position of
// their first appearance; a path present in both takes the newer snapshot.
func mergeFiles(older, newer []*types.File) []*types.File {
	out := make([]*types.File, 0, len(older)+len(newer))
	pos := make(map[string]int, len(older)+len(newer))
	for _, f := range older {
		pos[f.Path()] = len(out)
		out = append(out, f)
	}
	for _, f := range newer {
		if i, ok := pos[f.Path()]; ok {
			out[i] = f
			continue
		}
		pos[f.Path()] = len(out)
		out = append(out, f)
	}
	return out
}

// FileUpdates is a committed batch of edits: what analysis needs to bring
// its view up to date, and whether it may do so on the fast path.
type FileUpdates struct {
	Epoch              types.Epoch
	EditCount          int // client edits represented
	CommittedEditCount int // edits that committed as fast paths while a slow path ran

	UpdatedFiles       []*types.File
	UpdatedFileIndexes []pipeline.ParsedFile // parallel to UpdatedFiles

	HasNewFiles      bool
	CanTakeFastPath  bool
	CanceledSlowPath bool

	CancellationExpected bool
	PreemptionsExpected  int

	// Snapshot for slow path analysis. Nil on fast path batches.
	UpdatedGS *core.GlobalState
}

// Copy returns an independent batch. File snapshots and UpdatedGS are shared.
func (u *FileUpdates) Copy() *FileUpdates {
	cp := *u
	cp.UpdatedFiles = append([]*types.File(nil), u.UpdatedFiles...)
	cp.UpdatedFileIndexes = append([]pipeline.ParsedFile(nil), u.UpdatedFileIndexes...)
	return &cp
}

// MergeOlder folds an older batch underneath u. For each path the newer
// file and index win; counts add up; the older files not touched by u keep
// their relative order after u's files.
func (u *FileUpdates) MergeOlder(older *FileUpdates) {
	seen := make(map[string]bool, len(u.UpdatedFiles))
	for _, f := range u.UpdatedFiles {
		seen[f.Path()] = true
	}
	for i, f := range older.UpdatedFiles {
		if seen[f.Path()] {
			continue
		}
		seen[f.Path()] = true
		u.UpdatedFiles = append(u.UpdatedFiles, f)
		u.UpdatedFileIndexes = append(u.UpdatedFileIndexes, older.UpdatedFileIndexes[i])
	}
	u.EditCount += older.EditCount
	u.CommittedEditCount += older.CommittedEditCount
	u.HasNewFiles = u.HasNewFiles || older.HasNewFiles
	u.CancellationExpected = u.CancellationExpected || older.CancellationExpected
	u.PreemptionsExpected += older.PreemptionsExpected
}

// EvictedFiles maps a file id to the snapshot it held before the edits
// pending analysis replaced it.
type EvictedFiles map[types.FileID]*types.File

// MergeOlder copies older's entries over e: per id the older snapshot wins,
// since it is the one from before the pending slow path.
func (e EvictedFiles) MergeOlder(older EvictedFiles) {
	for id, f := range older {
		e[id] = f
	}
}
