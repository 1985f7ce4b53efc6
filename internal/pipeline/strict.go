package pipeline

import (
	"bufio"
	"bytes"
	"regexp"

	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/types"
)

// sigilScanLines bounds how far into a file the typed: sigil is looked for.
const sigilScanLines = 10

// A sigil is a comment line like "# typed: strict" or "// typed: true".
var sigilPattern = regexp.MustCompile(`^\s*(?:#|//|--|;|/\*|\*)\s*typed:\s*([A-Za-z]+)`)

// ParseSigil returns the strictness named by a typed: sigil in the first lines of source.
func ParseSigil(source []byte) (types.StrictLevel, bool) {
	sc := bufio.NewScanner(bytes.NewReader(source))
	for i := 0; i < sigilScanLines && sc.Scan(); i++ {
		m := sigilPattern.FindSubmatch(sc.Bytes())
		if m == nil {
			continue
		}
		return types.ParseStrictLevel(string(m[1]))
	}
	return types.StrictNone, false
}

func (p *TreeSitterPipeline) DecideStrictLevel(gs *core.GlobalState, ref core.FileRef) types.StrictLevel {
	f := gs.File(ref)
	if f == nil {
		return p.opts.DefaultStrictLevel
	}
	if level, ok := ParseSigil(f.Source()); ok {
		return level
	}
	return p.opts.DefaultStrictLevel
}
