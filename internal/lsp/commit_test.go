package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/reindex/internal/config"
	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/types"
	"github.com/standardbeagle/reindex/internal/workerpool"
)

func TestInitialize(t *testing.T) {
	ix, init := newTestIndexer(t, nil, tf("a.rb", "def a\n"), tf("b.rb", "def b\n"))

	assert.Equal(t, types.Epoch(0), init.Epoch)
	assert.False(t, init.CanTakeFastPath)
	require.Len(t, init.UpdatedFileIndexes, 3, "one slot per file id, including the reserved slot")
	assert.Equal(t, "a.rb", init.UpdatedFileIndexes[1].Path)
	assert.Equal(t, "b.rb", init.UpdatedFileIndexes[2].Path)

	gs := ix.GlobalState()
	require.NotNil(t, init.UpdatedGS)
	assert.NotSame(t, gs, init.UpdatedGS)
	assert.Equal(t, 2, init.UpdatedGS.FileCount())
	for _, f := range gs.Files()[1:] {
		assert.NotNil(t, f.FileHash(), "%s is hashed", f.Path())
		assert.Equal(t, types.StrictTrue, f.StrictLevel())
	}
}

func TestInitialize_Twice(t *testing.T) {
	ix, _ := newTestIndexer(t, nil, tf("a.rb", "def a\n"))
	assert.Panics(t, func() { _ = ix.Initialize(&FileUpdates{}, workerpool.New(0)) })
}

func TestInitialize_ReportsUnreadableFiles(t *testing.T) {
	p := &fakePipeline{disk: map[string]string{"a.rb": "def a\n"}}
	ix := NewIndexer(config.Default("/ws"), core.NewGlobalState(), p, Options{InputFiles: []string{"a.rb", "missing.rb"}})
	defer ix.Close()

	init := &FileUpdates{}
	err := ix.Initialize(init, workerpool.New(0))
	assert.Error(t, err)
	assert.Equal(t, 1, ix.GlobalState().FileCount())
	assert.NotNil(t, init.UpdatedGS, "the batch is filled in anyway")
}

func TestCommitEdit_FastPath(t *testing.T) {
	ix, _ := newTestIndexer(t, nil, tf("a.rb", "def a\n  1\n"), tf("b.rb", "def b\n"))
	original := ix.GlobalState().Files()[1]
	before := metrics.Default().Counter("lsp.fast_path")

	u := ix.CommitEdit(edit(1, tf("a.rb", "def a\n  2\n")))

	assert.True(t, u.CanTakeFastPath)
	assert.False(t, u.CanceledSlowPath)
	assert.False(t, u.HasNewFiles)
	assert.Nil(t, u.UpdatedGS, "fast batches carry no snapshot")
	assert.Equal(t, 1, u.EditCount)
	assert.Equal(t, []string{"a.rb"}, paths(u.UpdatedFiles))
	require.Len(t, u.UpdatedFileIndexes, 1)
	assert.Equal(t, "a.rb", u.UpdatedFileIndexes[0].Path)
	assert.Equal(t, before+1, metrics.Default().Counter("lsp.fast_path"))

	// The table holds the new snapshot; the old one is kept as the baseline.
	assert.Equal(t, "def a\n  2\n", string(ix.GlobalState().Files()[1].Source()))
	assert.Equal(t, types.StrictTrue, ix.GlobalState().Files()[1].StrictLevel())
	assert.Same(t, original, ix.pending.evictedFiles[1])
	assert.Equal(t, 1, ix.pending.updates.CommittedEditCount, "a fast edit counts as committed")
}

func TestCommitEdit_SlowPath(t *testing.T) {
	ix, _ := newTestIndexer(t, nil, tf("a.rb", "def a\n"), tf("b.rb", "def b\n"))
	before := metrics.Default().Counter("lsp.slow_path")

	u := ix.CommitEdit(edit(1, tf("a.rb", "def a(x)\n")))

	assert.False(t, u.CanTakeFastPath)
	require.NotNil(t, u.UpdatedGS)
	assert.Equal(t, "def a(x)\n", string(u.UpdatedGS.Files()[1].Source()))
	assert.Equal(t, before+1, metrics.Default().Counter("lsp.slow_path"))
	assert.Equal(t, phaseSlowRunning, ix.pending.phase)
	assert.Equal(t, types.Epoch(1), ix.pending.slowEpoch)

	// Later edits do not leak into the snapshot handed to analysis.
	ix.CommitEdit(edit(2, tf("b.rb", "def b\n  body\n")))
	assert.Equal(t, "def b\n", string(u.UpdatedGS.Files()[2].Source()))
}

func TestCommitEdit_NewFile(t *testing.T) {
	ix, _ := newTestIndexer(t, nil, tf("a.rb", "def a\n"))

	u := ix.CommitEdit(edit(1, tf("new.rb", "def n\n")))

	assert.True(t, u.HasNewFiles)
	assert.False(t, u.CanTakeFastPath)
	assert.Equal(t, 2, ix.GlobalState().FileCount())
	assert.Equal(t, types.StrictTrue, ix.GlobalState().Files()[2].StrictLevel())
	assert.Empty(t, ix.pending.evictedFiles, "new files evict nothing")
}

func TestCommitEdit_SyntaxErrorGoesSlow(t *testing.T) {
	ix, _ := newTestIndexer(t, nil, tf("a.rb", "def a\n"))
	u := ix.CommitEdit(edit(1, tf("a.rb", "def a\nSYNTAX_ERROR\n")))
	assert.False(t, u.CanTakeFastPath)
	assert.True(t, u.UpdatedFiles[0].FileHash().IsInvalid())
}

func TestCommitEdit_IndexesFollowEditOrder(t *testing.T) {
	ix, _ := newTestIndexer(t, nil, tf("a.rb", "def a\n"), tf("b.rb", "def b\n"))

	u := ix.CommitEdit(edit(1, tf("b.rb", "def b\n  1\n"), tf("new.rb", "def n\n"), tf("a.rb", "def a\n  1\n")))

	require.Len(t, u.UpdatedFileIndexes, 3)
	for i, f := range u.UpdatedFiles {
		assert.Equal(t, f.Path(), u.UpdatedFileIndexes[i].Path)
	}
}

func TestCommitEdit_DuplicatePathPanics(t *testing.T) {
	ix, _ := newTestIndexer(t, nil, tf("a.rb", "def a\n"))
	assert.Panics(t, func() {
		ix.CommitEdit(edit(1, tf("a.rb", "def a\n  1\n"), tf("a.rb", "def a\n  2\n")))
	})
}

func TestCommitEdit_MergeCountBecomesEditCount(t *testing.T) {
	ix, _ := newTestIndexer(t, nil, tf("a.rb", "def a\n"))
	e := edit(3, tf("a.rb", "def a\n  1\n"))
	e.MergeCount = 2
	assert.Equal(t, 3, ix.CommitEdit(e).EditCount)
}

func TestCommitEdit_EvictionKeepsOldestAcrossFastEdits(t *testing.T) {
	ix, _ := newTestIndexer(t, nil, tf("a.rb", "def a\n"))
	original := ix.GlobalState().Files()[1]

	ix.CommitEdit(edit(1, tf("a.rb", "def a\n  1\n")))
	ix.CommitEdit(edit(2, tf("a.rb", "def a\n  2\n")))

	assert.Same(t, original, ix.pending.evictedFiles[1])
	assert.Equal(t, []string{"def a\n  2\n"}, sources(ix.pending.updates.UpdatedFiles))
	assert.Equal(t, 2, ix.pending.updates.EditCount)
}

func TestCommitEdit_SlowEditReplacesEvictions(t *testing.T) {
	ix, _ := newTestIndexer(t, nil, tf("a.rb", "def a\n"), tf("b.rb", "def b\n"))

	ix.CommitEdit(edit(1, tf("b.rb", "def b\n  1\n")))
	a1 := ix.GlobalState().Files()[1]
	ix.CommitEdit(edit(2, tf("a.rb", "def a(x)\n")))

	assert.Equal(t, EvictedFiles{1: a1}, ix.pending.evictedFiles)
	assert.Equal(t, []string{"a.rb"}, paths(ix.pending.updates.UpdatedFiles), "a slow path starts a fresh pending set")
	assert.Equal(t, 1, ix.pending.updates.EditCount)
}

func TestCommitEdit_ExpectationsDoNotPersist(t *testing.T) {
	ix, _ := newTestIndexer(t, nil, tf("a.rb", "def a\n"))
	e := edit(1, tf("a.rb", "def a(x)\n"))
	e.CancellationExpected = true
	e.PreemptionsExpected = 2

	u := ix.CommitEdit(e)

	assert.True(t, u.CancellationExpected)
	assert.Equal(t, 2, u.PreemptionsExpected)
	assert.False(t, ix.pending.updates.CancellationExpected)
	assert.Zero(t, ix.pending.updates.PreemptionsExpected)
}

func TestCommitEdit_DisabledFastPath(t *testing.T) {
	cfg := config.Default("/ws")
	cfg.LSP.DisableFastPath = true
	ix, _ := newTestIndexer(t, cfg, tf("a.rb", "def a\n"))

	u := ix.CommitEdit(edit(1, tf("a.rb", "def a\n  1\n")))
	assert.False(t, u.CanTakeFastPath)
	assert.NotNil(t, u.UpdatedGS)
}

func TestCommitEdit_TimersOnSlowPath(t *testing.T) {
	ix, _ := newTestIndexer(t, nil, tf("a.rb", "def a\n"))

	e1, t1 := editWithTimer(1, tf("a.rb", "def a(x)\n"))
	ix.CommitEdit(e1)
	require.Len(t, ix.pending.timers, 1)
	held := ix.pending.timers[0]
	assert.NotSame(t, t1, held, "pending holds a clone")
	assert.Equal(t, t1.Start(), held.Start())
	assert.False(t, t1.Done())

	// A second slow edit that does not cancel retires the held clone.
	e2, t2 := editWithTimer(2, tf("a.rb", "def a(x, y)\n"))
	ix.CommitEdit(e2)
	assert.True(t, held.Canceled())
	assert.False(t, t1.Done(), "the caller owns the edit's own timers")
	assert.False(t, t2.Done())

	ix.Close()
	require.Len(t, ix.pending.timers, 0)
}

func TestClose_CancelsHeldTimers(t *testing.T) {
	ix, _ := newTestIndexer(t, nil, tf("a.rb", "def a\n"))
	e, _ := editWithTimer(1, tf("a.rb", "def a(x)\n"))
	ix.CommitEdit(e)
	held := ix.pending.timers[0]

	ix.Close()
	assert.True(t, held.Canceled())
	assert.False(t, held.Stop(), "retired exactly once")
	ix.Close()
}
