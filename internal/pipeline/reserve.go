package pipeline

import (
	"os"

	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/debug"
	"github.com/standardbeagle/reindex/internal/errors"
	"github.com/standardbeagle/reindex/internal/types"
)

// ReserveFiles reads every path and enters it into gs, assigning its strict
// level. Paths already in the table get their current disk contents. Files
// that cannot be read are skipped and reported together in a MultiError.
func (p *TreeSitterPipeline) ReserveFiles(gs *core.GlobalState, paths []string) ([]core.FileRef, error) {
	refs := make([]core.FileRef, 0, len(paths))
	var errs []error

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			errs = append(errs, errors.NewFileError("stat", path, err))
			continue
		}
		if info.Size() > p.opts.MaxFileSize {
			errs = append(errs, errors.NewFileTooLargeError(path, info.Size(), p.opts.MaxFileSize))
			continue
		}
		source, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, errors.NewFileError("read", path, err))
			continue
		}

		f := types.NewFile(path, source)
		ref := gs.FindFileByPath(path)
		if ref.Exists() {
			gs.ReplaceFile(ref, f)
		} else {
			ref = gs.EnterFile(f)
		}
		f.SetStrictLevel(p.DecideStrictLevel(gs, ref))
		refs = append(refs, ref)
	}

	debug.LogIndexing("reserved %d of %d input files", len(refs), len(paths))
	if len(errs) > 0 {
		return refs, errors.NewIndexingError("reserve", errors.NewMultiError(errs)).WithRecoverable(true)
	}
	return refs, nil
}
