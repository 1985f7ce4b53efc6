// Package workspace finds the files to index and turns file system changes
// into workspace edits.
package workspace

import (
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/reindex/internal/config"
	"github.com/standardbeagle/reindex/internal/pipeline"
)

// Filter decides which paths under a project root are indexed. Patterns are
// doublestar globs matched against slash-separated paths relative to the root.
type Filter struct {
	root        string
	include     []string
	exclude     []string
	maxFileSize int64
}

func NewFilter(cfg *config.Config) *Filter {
	return &Filter{
		root:        cfg.Project.Root,
		include:     cfg.Include,
		exclude:     cfg.Exclude,
		maxFileSize: cfg.Index.MaxFileSize,
	}
}

func (f *Filter) rel(p string) string {
	r, err := filepath.Rel(f.root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(r)
}

func matchAny(patterns []string, p string) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// ExcludedDir reports whether everything below dir is excluded, so the walk
// and the watcher can skip it.
func (f *Filter) ExcludedDir(dir string) bool {
	r := f.rel(dir)
	if r == "." {
		return false
	}
	return matchAny(f.exclude, path.Join(r, "_"))
}

// MatchesPath applies the include and exclude patterns and the binary
// extension list. With no include patterns, any file with a grammar matches.
func (f *Filter) MatchesPath(p string) bool {
	r := f.rel(p)
	if matchAny(f.exclude, r) || IsBinaryPath(p) {
		return false
	}
	if len(f.include) == 0 {
		return pipeline.LanguageForPath(p) != nil
	}
	return matchAny(f.include, r)
}

// WithinSizeLimit reports whether a file of size bytes may be indexed.
func (f *Filter) WithinSizeLimit(size int64) bool {
	return f.maxFileSize <= 0 || size <= f.maxFileSize
}

// sniffBinary reads the first bytes of p. Unreadable files count as binary.
func sniffBinary(p string) bool {
	file, err := os.Open(p)
	if err != nil {
		return true
	}
	defer file.Close()

	buf := make([]byte, binarySampleSize)
	n, err := io.ReadFull(file, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return true
	}
	return IsBinaryContent(buf[:n])
}
