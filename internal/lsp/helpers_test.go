package lsp

import (
	"bytes"
	"fmt"
	"sort"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/reindex/internal/config"
	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/errors"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/pipeline"
	"github.com/standardbeagle/reindex/internal/types"
	"github.com/standardbeagle/reindex/internal/workerpool"
)

// fakePipeline treats the first line of a file as its definitions and the
// rest as bodies. A file containing SYNTAX_ERROR fails to parse.
type fakePipeline struct {
	disk map[string]string
}

func (p *fakePipeline) ComputeFileHash(f *types.File) types.FileHash {
	src := f.Source()
	h := types.FileHash{ContentHash: xxhash.Sum64(src)}
	if bytes.Contains(src, []byte("SYNTAX_ERROR")) {
		h.Definitions.HierarchyHash = types.HashStateInvalid
		return h
	}
	first, _, _ := bytes.Cut(src, []byte("\n"))
	hh := xxhash.Sum64(first)
	if hh <= types.HashStateInvalid {
		hh += 2
	}
	h.Definitions.HierarchyHash = hh
	h.Definitions.DefinitionCount = 1
	return h
}

func (p *fakePipeline) Index(gs *core.GlobalState, refs []core.FileRef, _ *workerpool.WorkerPool) []pipeline.ParsedFile {
	out := make([]pipeline.ParsedFile, 0, len(refs))
	for _, ref := range refs {
		if f := gs.File(ref); f.StrictLevel() == types.StrictNone {
			f.SetStrictLevel(p.DecideStrictLevel(gs, ref))
		}
		out = append(out, pipeline.ParsedFile{File: ref, Path: gs.File(ref).Path()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File.ID() < out[j].File.ID() })
	return out
}

func (p *fakePipeline) DecideStrictLevel(*core.GlobalState, core.FileRef) types.StrictLevel {
	return types.StrictTrue
}

func (p *fakePipeline) ReserveFiles(gs *core.GlobalState, paths []string) ([]core.FileRef, error) {
	var refs []core.FileRef
	var errs []error
	for _, path := range paths {
		src, ok := p.disk[path]
		if !ok {
			errs = append(errs, errors.NewFileError("read", path, fmt.Errorf("no such file")))
			continue
		}
		f := types.NewFile(path, []byte(src))
		ref := gs.FindFileByPath(path)
		if ref.Exists() {
			gs.ReplaceFile(ref, f)
		} else {
			ref = gs.EnterFile(f)
		}
		f.SetStrictLevel(p.DecideStrictLevel(gs, ref))
		refs = append(refs, ref)
	}
	if len(errs) > 0 {
		return refs, errors.NewMultiError(errs)
	}
	return refs, nil
}

type testFile struct {
	path   string
	source string
}

func tf(path, source string) testFile { return testFile{path: path, source: source} }

// newTestIndexer initializes an indexer over files, in order, so that the
// i-th file gets id i+1.
func newTestIndexer(t *testing.T, cfg *config.Config, files ...testFile) (*Indexer, *FileUpdates) {
	t.Helper()
	if cfg == nil {
		cfg = config.Default("/ws")
	}
	disk := make(map[string]string, len(files))
	paths := make([]string, 0, len(files))
	for _, f := range files {
		disk[f.path] = f.source
		paths = append(paths, f.path)
	}
	ix := NewIndexer(cfg, core.NewGlobalState(), &fakePipeline{disk: disk}, Options{InputFiles: paths})
	init := &FileUpdates{}
	require.NoError(t, ix.Initialize(init, workerpool.New(2)))
	t.Cleanup(ix.Close)
	return ix, init
}

func edit(epoch types.Epoch, files ...testFile) *WorkspaceEdit {
	e := &WorkspaceEdit{Epoch: epoch}
	for _, f := range files {
		e.Updates = append(e.Updates, types.NewFile(f.path, []byte(f.source)))
	}
	return e
}

func editWithTimer(epoch types.Epoch, files ...testFile) (*WorkspaceEdit, *metrics.Timer) {
	e := edit(epoch, files...)
	t := metrics.NewTimer("last_diagnostic_latency")
	e.DiagnosticLatencyTimers = []*metrics.Timer{t}
	return e, t
}

func paths(files []*types.File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path())
	}
	return out
}

func sources(files []*types.File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, string(f.Source()))
	}
	return out
}

// runningSlowPath simulates analysis picking up the slow batch at epoch.
func runningSlowPath(ix *Indexer, epoch types.Epoch) {
	ix.GlobalState().EpochManager().StartCommitEpoch(epoch)
}

// finishSlowPath simulates analysis reaching the end of the slow batch at
// epoch, and reports whether it committed.
func finishSlowPath(ix *Indexer, epoch types.Epoch) bool {
	return ix.GlobalState().EpochManager().TryCommitEpoch(epoch, true, func() {})
}
