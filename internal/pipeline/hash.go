package pipeline

import (
	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/reindex/internal/types"
)

// hierarchyHash fingerprints a canonically ordered definition list.
func hierarchyHash(defs []Definition) uint64 {
	d := xxhash.New()
	for _, def := range defs {
		_, _ = d.WriteString(def.Kind)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(def.Name)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(def.Shape)
		_, _ = d.Write([]byte{'\n'})
	}
	return avoidSentinels(d.Sum64())
}

// avoidSentinels moves real hashes out of the reserved 0/1 range.
func avoidSentinels(h uint64) uint64 {
	if h <= types.HashStateInvalid {
		return h + 2
	}
	return h
}

func contentHash(source []byte) uint64 {
	return xxhash.Sum64(source)
}
