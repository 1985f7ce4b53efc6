// Package pipeline is the parse and index front end: it fingerprints files,
// extracts their definitions with tree-sitter and decides strictness.
package pipeline

import (
	"context"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/debug"
	"github.com/standardbeagle/reindex/internal/types"
	"github.com/standardbeagle/reindex/internal/workerpool"
)

// Pipeline is what the indexer needs from the parse front end.
type Pipeline interface {
	// ComputeFileHash fingerprints one file snapshot.
	ComputeFileHash(f *types.File) types.FileHash
	// Index parses the given files and assigns a strictness level to any
	// snapshot that has none. Results are ordered by file id.
	Index(gs *core.GlobalState, files []core.FileRef, workers *workerpool.WorkerPool) []ParsedFile
	// DecideStrictLevel picks the level for a file just entered into gs.
	DecideStrictLevel(gs *core.GlobalState, ref core.FileRef) types.StrictLevel
	// ReserveFiles loads paths from disk and enters them into gs.
	ReserveFiles(gs *core.GlobalState, paths []string) ([]core.FileRef, error)
}

// ParsedFile is the per-file index output consumed by analysis.
type ParsedFile struct {
	File        core.FileRef
	Path        string
	Definitions []Definition
	HasErrors   bool
}

type cacheKey struct {
	lang    string
	content uint64
}

// Options configures a TreeSitterPipeline.
type Options struct {
	HashCacheSize      int
	MaxFileSize        int64
	DefaultStrictLevel types.StrictLevel
}

// TreeSitterPipeline is the default Pipeline. It is safe for concurrent use.
type TreeSitterPipeline struct {
	opts  Options
	cache *lru.Cache[cacheKey, *parseResult]
}

func New(opts Options) (*TreeSitterPipeline, error) {
	if opts.HashCacheSize <= 0 {
		opts.HashCacheSize = types.DefaultHashCacheSize
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = types.DefaultMaxFileSize
	}
	if opts.DefaultStrictLevel == types.StrictNone {
		opts.DefaultStrictLevel = types.StrictFalse
	}
	cache, err := lru.New[cacheKey, *parseResult](opts.HashCacheSize)
	if err != nil {
		return nil, err
	}
	return &TreeSitterPipeline{opts: opts, cache: cache}, nil
}

// parse returns the definitions of f, reusing earlier results for identical content.
func (p *TreeSitterPipeline) parse(lang *Language, f *types.File, content uint64) *parseResult {
	key := cacheKey{lang: lang.Name, content: content}
	if res, ok := p.cache.Get(key); ok {
		return res
	}
	res, err := parseDefinitions(lang, f.Path(), f.Source())
	if err != nil {
		debug.LogHash("parse %s: %v", f.Path(), err)
		res = parseResult{hasErrors: true}
	}
	p.cache.Add(key, &res)
	return &res
}

func (p *TreeSitterPipeline) ComputeFileHash(f *types.File) types.FileHash {
	content := contentHash(f.Source())
	lang := LanguageForPath(f.Path())
	if lang == nil {
		// No grammar: any content change counts as a definition change.
		return types.FileHash{
			Definitions: types.DefinitionsHash{HierarchyHash: avoidSentinels(content)},
			ContentHash: content,
		}
	}

	res := p.parse(lang, f, content)
	h := types.FileHash{ContentHash: content}
	h.Definitions.DefinitionCount = len(res.definitions)
	if res.hasErrors {
		h.Definitions.HierarchyHash = types.HashStateInvalid
	} else {
		h.Definitions.HierarchyHash = hierarchyHash(res.definitions)
	}
	debug.LogHash("%s: hierarchy=%x definitions=%d", f.Path(), h.Definitions.HierarchyHash, h.Definitions.DefinitionCount)
	return h
}

func (p *TreeSitterPipeline) indexOne(gs *core.GlobalState, ref core.FileRef) ParsedFile {
	f := gs.File(ref)
	out := ParsedFile{File: ref}
	if f == nil {
		return out
	}
	out.Path = f.Path()
	if f.StrictLevel() == types.StrictNone {
		// Replaced snapshots get their level when they are indexed.
		f.SetStrictLevel(p.DecideStrictLevel(gs, ref))
	}
	lang := LanguageForPath(f.Path())
	if lang == nil {
		return out
	}
	res := p.parse(lang, f, contentHash(f.Source()))
	out.Definitions = res.definitions
	out.HasErrors = res.hasErrors
	return out
}

func (p *TreeSitterPipeline) Index(gs *core.GlobalState, files []core.FileRef, workers *workerpool.WorkerPool) []ParsedFile {
	if len(files) == 0 {
		return nil
	}

	fileq := workerpool.NewConcurrentBoundedQueue[core.FileRef](len(files))
	for _, ref := range files {
		fileq.Push(ref)
	}
	resultq := workerpool.NewBlockingBoundedQueue[[]ParsedFile](len(files))

	job := workers.MultiplexJob(context.Background(), "indexFiles", func(context.Context) error {
		var threadResult []ParsedFile
		for ref, ok := fileq.TryPop(); ok; ref, ok = fileq.TryPop() {
			threadResult = append(threadResult, p.indexOne(gs, ref))
		}
		if len(threadResult) > 0 {
			resultq.Push(threadResult, len(threadResult))
		}
		return nil
	})

	out := make([]ParsedFile, 0, len(files))
	for batch, status := resultq.WaitPopTimed(workerpool.BlockInterval); status != workerpool.Done; batch, status = resultq.WaitPopTimed(workerpool.BlockInterval) {
		if status == workerpool.TimedOut {
			debug.LogIndexing("indexing: %d/%d files done", len(out), len(files))
			continue
		}
		out = append(out, batch...)
	}
	_ = job.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].File.ID() < out[j].File.ID() })
	return out
}
