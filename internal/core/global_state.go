package core

import (
	"fmt"

	"github.com/standardbeagle/reindex/internal/errors"
	"github.com/standardbeagle/reindex/internal/types"
)

// FileRef is a handle to a slot in a GlobalState file table.
type FileRef struct {
	id types.FileID
}

func NewFileRef(id types.FileID) FileRef { return FileRef{id: id} }

func (r FileRef) ID() types.FileID { return r.id }

// Exists reports whether the ref names a real file.
func (r FileRef) Exists() bool { return r.id != types.NoFileID }

func (r FileRef) String() string { return fmt.Sprintf("FileRef(%d)", r.id) }

// GlobalState is the authoritative file table. It is owned by a single
// goroutine; other goroutines only ever see copies made by DeepCopy.
//
// Slot 0 is reserved so that the zero FileRef never names a file.
type GlobalState struct {
	files        []*types.File
	byPath       map[string]types.FileID
	epochManager *EpochManager
}

func NewGlobalState() *GlobalState {
	return &GlobalState{
		files:        []*types.File{nil},
		byPath:       make(map[string]types.FileID),
		epochManager: NewEpochManager(),
	}
}

// FindFileByPath returns the ref for path, or the zero ref if it is not in the table.
func (gs *GlobalState) FindFileByPath(path string) FileRef {
	return FileRef{id: gs.byPath[path]}
}

// EnterFile appends a file the table has never seen.
func (gs *GlobalState) EnterFile(f *types.File) FileRef {
	errors.Enforce(f != nil, "EnterFile called with nil file")
	_, dup := gs.byPath[f.Path()]
	errors.Enforce(!dup, "file %s is already in the file table", f.Path())

	id := types.FileID(len(gs.files))
	gs.files = append(gs.files, f)
	gs.byPath[f.Path()] = id
	return FileRef{id: id}
}

// ReplaceFile swaps the snapshot stored for ref. The path must not change.
func (gs *GlobalState) ReplaceFile(ref FileRef, f *types.File) {
	errors.Enforce(ref.Exists() && int(ref.id) < len(gs.files), "ReplaceFile on unknown %s", ref)
	errors.Enforce(f != nil && f.Path() == gs.files[ref.id].Path(),
		"ReplaceFile must keep the path of %s", gs.files[ref.id].Path())
	gs.files[ref.id] = f
}

// File returns the snapshot for ref, or nil if ref is out of range.
func (gs *GlobalState) File(ref FileRef) *types.File {
	if int(ref.id) >= len(gs.files) {
		return nil
	}
	return gs.files[ref.id]
}

// Files returns the table indexed by file id, including the nil reserved slot.
// Callers must not modify it.
func (gs *GlobalState) Files() []*types.File { return gs.files }

// FileCount is the number of real files in the table.
func (gs *GlobalState) FileCount() int { return len(gs.files) - 1 }

func (gs *GlobalState) EpochManager() *EpochManager { return gs.epochManager }

// DeepCopy returns an independent table. File snapshots are immutable and are
// shared; the epoch manager is shared so that both sides agree on cancellation.
func (gs *GlobalState) DeepCopy() *GlobalState {
	files := make([]*types.File, len(gs.files))
	copy(files, gs.files)
	byPath := make(map[string]types.FileID, len(gs.byPath))
	for k, v := range gs.byPath {
		byPath[k] = v
	}
	return &GlobalState{
		files:        files,
		byPath:       byPath,
		epochManager: gs.epochManager,
	}
}
