package types

import (
	"fmt"
	"strings"
)

// Common system-wide constants
const (
	// File size limits
	DefaultMaxFileSize = 10 * 1024 * 1024 // 10MB per file - standard limit for indexing
	// Rationale: Prevents memory exhaustion from large
	// generated files while covering 99.9% of source files.

	// Performance limits
	DefaultMaxFileCount = 10000 // Maximum files reserved during initial indexing

	// Fingerprint memo size (entries, keyed by content hash)
	DefaultHashCacheSize = 4096
)

// FileID identifies a file within the authoritative file table.
// ID 0 is reserved and never refers to a real file.
type FileID uint32

// NoFileID is the reserved "does not exist" id.
const NoFileID FileID = 0

// Epoch identifies a version of accumulated edits.
type Epoch = uint32

// StrictLevel is the analysis level assigned to a file when it enters the file table.
type StrictLevel uint8

const (
	StrictNone StrictLevel = iota // not yet decided
	StrictIgnore
	StrictFalse
	StrictTrue
	StrictStrict
	StrictStrong
)

func (s StrictLevel) String() string {
	switch s {
	case StrictNone:
		return "none"
	case StrictIgnore:
		return "ignore"
	case StrictFalse:
		return "false"
	case StrictTrue:
		return "true"
	case StrictStrict:
		return "strict"
	case StrictStrong:
		return "strong"
	default:
		return fmt.Sprintf("StrictLevel(%d)", uint8(s))
	}
}

// ParseStrictLevel parses a sigil value such as "strict". Matching is case-insensitive.
func ParseStrictLevel(s string) (StrictLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ignore":
		return StrictIgnore, true
	case "false":
		return StrictFalse, true
	case "true":
		return StrictTrue, true
	case "strict":
		return StrictStrict, true
	case "strong":
		return StrictStrong, true
	default:
		return StrictNone, false
	}
}
