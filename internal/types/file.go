package types

import "sync/atomic"

const (
	// HashStateNotComputed marks a hierarchy hash that was never run.
	HashStateNotComputed uint64 = 0
	// HashStateInvalid marks a file that failed to parse.
	HashStateInvalid uint64 = 1
)

// DefinitionsHash fingerprints the externally-visible definition shape of a file.
type DefinitionsHash struct {
	HierarchyHash   uint64
	DefinitionCount int
}

// FileHash is the structural fingerprint cached on a File.
type FileHash struct {
	Definitions DefinitionsHash
	ContentHash uint64 // xxhash of the raw source
}

// IsInvalid reports whether the file failed to parse.
func (h FileHash) IsInvalid() bool {
	return h.Definitions.HierarchyHash == HashStateInvalid
}

// File is an immutable snapshot of one source file.
//
// The fingerprint is computed once per snapshot and never replaced; the strict
// level is assigned by the file table owner when the file is first entered and
// before the snapshot is shared with any other goroutine.
type File struct {
	path        string
	source      []byte
	strictLevel StrictLevel
	hash        atomic.Pointer[FileHash]
}

// NewFile creates a snapshot. The source slice is owned by the snapshot from now on.
func NewFile(path string, source []byte) *File {
	return &File{path: path, source: source}
}

func (f *File) Path() string   { return f.path }
func (f *File) Source() []byte { return f.source }

func (f *File) StrictLevel() StrictLevel { return f.strictLevel }

// SetStrictLevel is only valid while the snapshot is exclusively owned by the file table.
func (f *File) SetStrictLevel(level StrictLevel) { f.strictLevel = level }

// FileHash returns the cached fingerprint, or nil if it has not been computed.
func (f *File) FileHash() *FileHash { return f.hash.Load() }

// SetFileHash stores the fingerprint. It returns false, leaving the existing
// value untouched, if a fingerprint was already set.
func (f *File) SetFileHash(h *FileHash) bool {
	return f.hash.CompareAndSwap(nil, h)
}
