package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/standardbeagle/reindex/internal/config"
	"github.com/standardbeagle/reindex/internal/debug"
	"github.com/standardbeagle/reindex/internal/errors"
)

// Scan lists the files under cfg.Project.Root to index, sorted. Files over
// the size limit and binary files are skipped; at most
// cfg.Index.MaxFileCount paths are returned.
func Scan(cfg *config.Config) ([]string, error) {
	root, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		return nil, errors.NewFileError("resolve", cfg.Project.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.NewFileError("stat", root, err)
	}
	if !info.IsDir() {
		return nil, errors.NewFileError("scan", root, fs.ErrInvalid)
	}

	filter := NewFilter(cfg)
	filter.root = root

	var out []string
	var skippedLarge, skippedBinary int
	visited := make(map[string]bool)

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			debug.LogIndexing("scan: skipping %s: %v", p, err)
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !cfg.Index.FollowSymlinks {
				return nil
			}
			target, err := os.Stat(p)
			if err != nil {
				return nil
			}
			if target.IsDir() {
				// WalkDir does not descend into symlinked directories.
				return nil
			}
		}

		if d.IsDir() {
			// Guard against bind mounts and other loops.
			resolved, err := filepath.EvalSymlinks(p)
			if err != nil || visited[resolved] {
				return filepath.SkipDir
			}
			visited[resolved] = true
			if filter.ExcludedDir(p) {
				return filepath.SkipDir
			}
			return nil
		}

		if !filter.MatchesPath(p) {
			return nil
		}
		fi, err := os.Stat(p)
		if err != nil {
			return nil
		}
		if !filter.WithinSizeLimit(fi.Size()) {
			skippedLarge++
			return nil
		}
		if sniffBinary(p) {
			skippedBinary++
			return nil
		}

		out = append(out, p)
		if cfg.Index.MaxFileCount > 0 && len(out) >= cfg.Index.MaxFileCount {
			debug.Warnf(debug.ComponentIndex, "file limit of %d reached, ignoring the rest of %s", cfg.Index.MaxFileCount, root)
			return filepath.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return nil, errors.NewFileError("walk", root, walkErr)
	}

	sort.Strings(out)
	debug.LogIndexing("scan: %d files under %s (%d too large, %d binary)", len(out), root, skippedLarge, skippedBinary)
	return out, nil
}
