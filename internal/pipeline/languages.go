package pipeline

import (
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	tree_sitter_zig "github.com/tree-sitter-grammars/tree-sitter-zig/bindings/go"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/standardbeagle/reindex/internal/debug"
)

// Language is a grammar plus the definition query run against it.
//
// Query captures follow one convention: the definition node is captured as
// @def.<kind>, its name as @name, and an optional qualifier (Go receivers) as
// @scope.
type Language struct {
	Name       string
	Extensions []string

	load  func() unsafe.Pointer
	query string

	once sync.Once
	lang *tree_sitter.Language
	q    *tree_sitter.Query
}

// init compiles the grammar and query once. A query that fails to compile
// leaves the language usable for syntax checking only.
func (l *Language) init() {
	l.once.Do(func() {
		l.lang = tree_sitter.NewLanguage(l.load())
		q, err := tree_sitter.NewQuery(l.lang, l.query)
		// The binding can return a typed nil error, so check the query itself
		if q == nil {
			debug.Warnf(debug.ComponentHash, "definition query for %s failed to compile: %v", l.Name, err)
			return
		}
		l.q = q
	})
}

var languages = []*Language{
	{
		Name:       "go",
		Extensions: []string{".go"},
		load:       tree_sitter_go.Language,
		query: `
        (function_declaration name: (identifier) @name) @def.function
        (method_declaration
            receiver: (parameter_list) @scope
            name: (field_identifier) @name) @def.method
        (type_spec name: (type_identifier) @name) @def.type
    `,
	},
	{
		Name:       "python",
		Extensions: []string{".py", ".pyi"},
		load:       tree_sitter_python.Language,
		query: `
        (function_definition name: (identifier) @name) @def.function
        (class_definition name: (identifier) @name) @def.class
    `,
	},
	{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		load:       tree_sitter_javascript.Language,
		query: `
        (function_declaration name: (identifier) @name) @def.function
        (generator_function_declaration name: (identifier) @name) @def.function
        (method_definition name: (property_identifier) @name) @def.method
        (class_declaration name: (identifier) @name) @def.class
    `,
	},
	{
		Name:       "typescript",
		Extensions: []string{".ts", ".mts", ".cts"},
		load:       tree_sitter_typescript.LanguageTypescript,
		query:      typescriptQuery,
	},
	{
		Name:       "tsx",
		Extensions: []string{".tsx"},
		load:       tree_sitter_typescript.LanguageTSX,
		query:      typescriptQuery,
	},
	{
		Name:       "rust",
		Extensions: []string{".rs"},
		load:       tree_sitter_rust.Language,
		query: `
        (function_item name: (identifier) @name) @def.function
        (struct_item name: (type_identifier) @name) @def.struct
        (enum_item name: (type_identifier) @name) @def.enum
        (trait_item name: (type_identifier) @name) @def.trait
        (type_item name: (type_identifier) @name) @def.type
        (mod_item name: (identifier) @name) @def.module
    `,
	},
	{
		Name:       "java",
		Extensions: []string{".java"},
		load:       tree_sitter_java.Language,
		query: `
        (method_declaration name: (identifier) @name) @def.method
        (constructor_declaration name: (identifier) @name) @def.constructor
        (class_declaration name: (identifier) @name) @def.class
        (record_declaration name: (identifier) @name) @def.class
        (interface_declaration name: (identifier) @name) @def.interface
        (enum_declaration name: (identifier) @name) @def.enum
    `,
	},
	{
		Name:       "cpp",
		Extensions: []string{".cpp", ".cc", ".cxx", ".c", ".h", ".hpp"},
		load:       tree_sitter_cpp.Language,
		query: `
        (function_definition declarator: (function_declarator declarator: (identifier) @name)) @def.function
        (class_specifier name: (type_identifier) @name) @def.class
        (struct_specifier name: (type_identifier) @name) @def.struct
        (enum_specifier name: (type_identifier) @name) @def.enum
    `,
	},
	{
		Name:       "csharp",
		Extensions: []string{".cs"},
		load:       tree_sitter_csharp.Language,
		query: `
        (method_declaration name: (identifier) @name) @def.method
        (constructor_declaration name: (identifier) @name) @def.constructor
        (class_declaration name: (identifier) @name) @def.class
        (interface_declaration name: (identifier) @name) @def.interface
        (struct_declaration name: (identifier) @name) @def.struct
        (record_declaration name: (identifier) @name) @def.record
        (enum_declaration name: (identifier) @name) @def.enum
        (property_declaration name: (identifier) @name) @def.property
    `,
	},
	{
		Name:       "php",
		Extensions: []string{".php", ".phtml"},
		load:       tree_sitter_php.LanguagePHP,
		query: `
        (class_declaration name: (name) @name) @def.class
        (interface_declaration name: (name) @name) @def.interface
        (trait_declaration name: (name) @name) @def.trait
        (enum_declaration name: (name) @name) @def.enum
        (function_definition name: (name) @name) @def.function
        (method_declaration name: (name) @name) @def.method
    `,
	},
	{
		Name:       "zig",
		Extensions: []string{".zig"},
		load:       tree_sitter_zig.Language,
		query: `
        (function_declaration (identifier) @name) @def.function
        (variable_declaration (identifier) @name (struct_declaration)) @def.struct
        (variable_declaration (identifier) @name (union_declaration)) @def.union
    `,
	},
}

const typescriptQuery = `
        (function_declaration name: (identifier) @name) @def.function
        (generator_function_declaration name: (identifier) @name) @def.function
        (method_definition name: (property_identifier) @name) @def.method
        (class_declaration name: (type_identifier) @name) @def.class
        (interface_declaration name: (type_identifier) @name) @def.interface
        (type_alias_declaration name: (type_identifier) @name) @def.type
        (enum_declaration name: (identifier) @name) @def.enum
    `

var byExtension = func() map[string]*Language {
	m := make(map[string]*Language)
	for _, l := range languages {
		for _, ext := range l.Extensions {
			m[ext] = l
		}
	}
	return m
}()

// LanguageForPath returns the grammar for path, or nil for files without one.
func LanguageForPath(path string) *Language {
	return byExtension[strings.ToLower(filepath.Ext(path))]
}
