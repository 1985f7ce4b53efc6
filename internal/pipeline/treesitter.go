package pipeline

import (
	"fmt"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/reindex/internal/debug"
)

// Definition is one externally visible declaration. Two files with the same
// definitions, compared as a set, have the same hierarchy hash.
type Definition struct {
	Kind  string // function, method, class, type, ...
	Name  string // qualified by the receiver for Go methods
	Shape string // whitespace-normalized signature text
}

func (d Definition) String() string {
	if d.Shape == "" {
		return d.Kind + " " + d.Name
	}
	return d.Kind + " " + d.Name + " " + d.Shape
}

// Fields that make up a definition's shape. Bodies are never included, so
// edits inside a function leave the shape alone.
var shapeFields = []string{
	"type_parameters",
	"parameters",
	"result",
	"return_type",
	"superclasses",
	"superclass",
	"interfaces",
	"type",
}

type parseResult struct {
	definitions []Definition
	hasErrors   bool
}

// parseDefinitions parses source with lang and extracts its definitions in a
// canonical order.
func parseDefinitions(lang *Language, path string, source []byte) (res parseResult, err error) {
	lang.init()

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang.lang); err != nil {
		return res, fmt.Errorf("set language %s: %w", lang.Name, err)
	}

	// Tree-sitter has crashed on malformed input before; a panic here must
	// not take the indexer down with it.
	defer func() {
		if r := recover(); r != nil {
			debug.Warnf(debug.ComponentHash, "parser panic on %s: %v", path, r)
			res = parseResult{hasErrors: true}
			err = nil
		}
	}()

	// Copy the buffer; the C side may hold on to it while the tree lives.
	buf := make([]byte, len(source))
	copy(buf, source)

	tree := parser.Parse(buf, nil)
	if tree == nil {
		return parseResult{hasErrors: true}, nil
	}
	defer tree.Close()

	root := tree.RootNode()
	res.hasErrors = root.HasError()
	if lang.q == nil {
		return res, nil
	}

	qc := tree_sitter.NewQueryCursor()
	defer qc.Close()
	matches := qc.Matches(lang.q, root, buf)
	captureNames := lang.q.CaptureNames()

	for {
		match := matches.Next()
		if match == nil {
			break
		}

		var def Definition
		var defNode *tree_sitter.Node
		var scope string
		for i := range match.Captures {
			c := &match.Captures[i]
			name := captureNames[c.Index]
			switch {
			case name == "name":
				def.Name = c.Node.Utf8Text(buf)
			case name == "scope":
				scope = receiverType(&c.Node, buf)
			case strings.HasPrefix(name, "def."):
				def.Kind = strings.TrimPrefix(name, "def.")
				node := c.Node
				defNode = &node
			}
		}
		if defNode == nil || def.Name == "" {
			continue
		}
		if scope != "" {
			def.Name = scope + "." + def.Name
		}
		def.Shape = shapeOf(defNode, buf)
		res.definitions = append(res.definitions, def)
	}

	sortDefinitions(res.definitions)
	return res, nil
}

func shapeOf(node *tree_sitter.Node, source []byte) string {
	var parts []string
	for _, field := range shapeFields {
		child := node.ChildByFieldName(field)
		if child == nil {
			continue
		}
		parts = append(parts, field+"="+normalizeSpace(child.Utf8Text(source)))
	}
	return strings.Join(parts, ";")
}

// receiverType reduces a Go receiver list such as "(s *Server)" to "*Server".
func receiverType(node *tree_sitter.Node, source []byte) string {
	text := strings.Trim(node.Utf8Text(source), "()")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sortDefinitions(defs []Definition) {
	sort.Slice(defs, func(i, j int) bool {
		a, b := defs[i], defs[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Shape < b.Shape
	})
}
