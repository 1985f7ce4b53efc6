package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/pipeline"
	"github.com/standardbeagle/reindex/internal/types"
)

func TestWorkspaceEdit_Merge(t *testing.T) {
	older, t1 := editWithTimer(3, tf("a.rb", "old a"), tf("b.rb", "old b"))
	older.CancellationExpected = true
	newer, t2 := editWithTimer(5, tf("c.rb", "c"), tf("a.rb", "new a"))
	newer.MergeCount = 1
	newer.PreemptionsExpected = 2

	older.Merge(newer)

	assert.Equal(t, types.Epoch(5), older.Epoch)
	assert.Equal(t, 2, older.MergeCount, "one for newer itself plus the edit already merged into it")
	assert.Equal(t, []string{"a.rb", "b.rb", "c.rb"}, paths(older.Updates))
	assert.Equal(t, []string{"new a", "old b", "c"}, sources(older.Updates))
	assert.Equal(t, []*metrics.Timer{t1, t2}, older.DiagnosticLatencyTimers)
	assert.False(t, older.CancellationExpected, "expectations come from the newer edit")
	assert.Equal(t, 2, older.PreemptionsExpected)
}

func batch(epoch types.Epoch, editCount int, files ...testFile) *FileUpdates {
	u := &FileUpdates{Epoch: epoch, EditCount: editCount}
	for i, f := range files {
		u.UpdatedFiles = append(u.UpdatedFiles, types.NewFile(f.path, []byte(f.source)))
		u.UpdatedFileIndexes = append(u.UpdatedFileIndexes, pipeline.ParsedFile{
			File: core.NewFileRef(types.FileID(i + 1)),
			Path: f.path,
		})
	}
	return u
}

func TestFileUpdates_MergeOlder(t *testing.T) {
	newer := batch(7, 1, tf("b.rb", "b2"), tf("c.rb", "c1"))
	newer.CommittedEditCount = 1
	older := batch(5, 2, tf("a.rb", "a1"), tf("b.rb", "b1"))
	older.CommittedEditCount = 2
	older.HasNewFiles = true
	older.CancellationExpected = true
	older.PreemptionsExpected = 1
	newer.PreemptionsExpected = 2

	newer.MergeOlder(older)

	assert.Equal(t, types.Epoch(7), newer.Epoch)
	assert.Equal(t, []string{"b.rb", "c.rb", "a.rb"}, paths(newer.UpdatedFiles))
	assert.Equal(t, []string{"b2", "c1", "a1"}, sources(newer.UpdatedFiles))
	require.Len(t, newer.UpdatedFileIndexes, 3)
	for i, f := range newer.UpdatedFiles {
		assert.Equal(t, f.Path(), newer.UpdatedFileIndexes[i].Path, "indexes stay parallel to files")
	}
	assert.Equal(t, 3, newer.EditCount)
	assert.Equal(t, 3, newer.CommittedEditCount)
	assert.True(t, newer.HasNewFiles)
	assert.True(t, newer.CancellationExpected)
	assert.Equal(t, 3, newer.PreemptionsExpected)

	// The older batch is untouched.
	assert.Equal(t, []string{"a.rb", "b.rb"}, paths(older.UpdatedFiles))
}

func TestFileUpdates_MergeOlderIntoEmpty(t *testing.T) {
	u := &FileUpdates{Epoch: 4, EditCount: 1}
	u.MergeOlder(&FileUpdates{})
	assert.Empty(t, u.UpdatedFiles)
	assert.Equal(t, 1, u.EditCount)
}

func TestFileUpdates_Copy(t *testing.T) {
	gs := core.NewGlobalState()
	orig := batch(2, 1, tf("a.rb", "a"))
	orig.UpdatedGS = gs

	cp := orig.Copy()
	cp.UpdatedFiles = append(cp.UpdatedFiles, types.NewFile("b.rb", nil))
	cp.UpdatedFileIndexes[0].Path = "changed"
	cp.EditCount = 9

	assert.Len(t, orig.UpdatedFiles, 1)
	assert.Equal(t, "a.rb", orig.UpdatedFileIndexes[0].Path)
	assert.Equal(t, 1, orig.EditCount)
	assert.Same(t, orig.UpdatedFiles[0], cp.UpdatedFiles[0], "file snapshots are shared")
	assert.Same(t, gs, cp.UpdatedGS)
}

func TestEvictedFiles_OldestWins(t *testing.T) {
	oldest := types.NewFile("a.rb", []byte("v0"))
	middle := types.NewFile("a.rb", []byte("v1"))
	other := types.NewFile("b.rb", []byte("b0"))

	newer := EvictedFiles{1: middle, 2: other}
	newer.MergeOlder(EvictedFiles{1: oldest})

	assert.Same(t, oldest, newer[1])
	assert.Same(t, other, newer[2])
}
