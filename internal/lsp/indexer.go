// Package lsp decides, for each committed batch of edits, whether analysis
// can take the fast path, and cancels an in-flight slow path when newer
// edits make it obsolete.
package lsp

import (
	"github.com/standardbeagle/reindex/internal/config"
	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/debug"
	"github.com/standardbeagle/reindex/internal/errors"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/pipeline"
	"github.com/standardbeagle/reindex/internal/types"
	"github.com/standardbeagle/reindex/internal/workerpool"
)

// Options for NewIndexer.
type Options struct {
	// InputFiles are the workspace paths indexed by Initialize.
	InputFiles []string
}

// epochSource is the part of the epoch manager the commit path consults.
type epochSource interface {
	GetStatus() core.TypecheckingStatus
	TryCancelSlowPath(newEpoch types.Epoch) bool
}

// Indexer owns the authoritative file table. It belongs to the ingestion
// goroutine: none of its methods may be called concurrently. The analysis
// goroutine only sees the GlobalState copies carried by committed batches.
type Indexer struct {
	cfg      *config.Config
	opts     Options
	pipeline pipeline.Pipeline

	initialGS   *core.GlobalState
	initialized bool

	// Shared with analysis; gs.EpochManager() outside tests.
	epochs epochSource

	// Zero-size pool: hashing and indexing run inline during commits.
	emptyWorkers *workerpool.WorkerPool

	pending *pendingState
}

// NewIndexer takes ownership of gs.
func NewIndexer(cfg *config.Config, gs *core.GlobalState, p pipeline.Pipeline, opts Options) *Indexer {
	return &Indexer{
		cfg:          cfg,
		opts:         opts,
		pipeline:     p,
		initialGS:    gs,
		epochs:       gs.EpochManager(),
		emptyWorkers: workerpool.New(0),
		pending:      newPendingState(),
	}
}

// Initialize indexes every input file and fills updates with the epoch 0
// batch. It can only be called once.
func (ix *Indexer) Initialize(updates *FileUpdates, workers *workerpool.WorkerPool) error {
	if ix.initialized {
		errors.Raise("indexer is already initialized; cannot initialize a second time")
	}
	ix.initialized = true

	timer := metrics.NewTimer("initial_index")
	defer timer.Stop()

	refs, reserveErr := ix.pipeline.ReserveFiles(ix.initialGS, ix.opts.InputFiles)
	if reserveErr != nil {
		debug.Warnf(debug.ComponentIndex, "some input files were skipped: %v", reserveErr)
	}

	// Indexed by file id, sized to the whole table.
	indexed := make([]pipeline.ParsedFile, len(ix.initialGS.Files()))
	for _, pf := range ix.pipeline.Index(ix.initialGS, refs, workers) {
		indexed[pf.File.ID()] = pf
	}

	ix.ComputeFileHashesWith(ix.initialGS.Files(), workers)

	updates.Epoch = 0
	updates.CanTakeFastPath = false
	updates.UpdatedFileIndexes = indexed
	updates.UpdatedGS = ix.initialGS.DeepCopy()

	debug.LogIndexing("initialized with %d files", ix.initialGS.FileCount())
	return reserveErr
}

// GlobalState exposes the file table for read-only inspection by the owner goroutine.
func (ix *Indexer) GlobalState() *core.GlobalState { return ix.initialGS }

// Close cancels every latency timer still waiting on a slow path.
func (ix *Indexer) Close() {
	ix.pending.retireTimers()
}
