package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/standardbeagle/reindex/internal/debug"
)

// LoadKDL attempts to load configuration from the .reindex.kdl file in dir
func LoadKDL(dir string) (*Config, error) {
	return loadKDLFile(filepath.Join(dir, KDLFileName), dir)
}

func loadKDLFile(path, dir string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil // No KDL config found, use defaults
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	// Resolve relative roots against the directory holding the config file
	resolveRoot(cfg, dir)
	return cfg, nil
}

// kdlSetter applies one child node of a section to cfg.
type kdlSetter func(cfg *Config, n *document.Node)

func intSetter(set func(*Config, int)) kdlSetter {
	return func(cfg *Config, n *document.Node) {
		if v, ok := firstIntArg(n); ok {
			set(cfg, v)
		}
	}
}

func boolSetter(set func(*Config, bool)) kdlSetter {
	return func(cfg *Config, n *document.Node) {
		if v, ok := firstBoolArg(n); ok {
			set(cfg, v)
		}
	}
}

func stringSetter(set func(*Config, string)) kdlSetter {
	return func(cfg *Config, n *document.Node) {
		if v, ok := firstStringArg(n); ok {
			set(cfg, v)
		}
	}
}

// kdlSections maps section and key names to setters.
var kdlSections = map[string]map[string]kdlSetter{
	"project": {
		"root": stringSetter(func(c *Config, v string) { c.Project.Root = v }),
		"name": stringSetter(func(c *Config, v string) { c.Project.Name = v }),
	},
	"index": {
		// Accepts a byte count or a size string such as "2MB".
		"max_file_size": func(c *Config, n *document.Node) {
			if v, ok := firstIntArg(n); ok {
				c.Index.MaxFileSize = int64(v)
			} else if s, ok := firstStringArg(n); ok {
				if sz, err := parseSize(s); err == nil {
					c.Index.MaxFileSize = sz
				} else {
					debug.Warnf("CONFIG", "index.max_file_size: %v", err)
				}
			}
		},
		"max_file_count":       intSetter(func(c *Config, v int) { c.Index.MaxFileCount = v }),
		"follow_symlinks":      boolSetter(func(c *Config, v bool) { c.Index.FollowSymlinks = v }),
		"watch_mode":           boolSetter(func(c *Config, v bool) { c.Index.WatchMode = v }),
		"watch_debounce_ms":    intSetter(func(c *Config, v int) { c.Index.WatchDebounceMs = v }),
		"default_strict_level": stringSetter(func(c *Config, v string) { c.Index.DefaultStrictLevel = v }),
	},
	"performance": {
		"parallel_file_workers": intSetter(func(c *Config, v int) { c.Performance.ParallelFileWorkers = v }),
		"hash_cache_size":       intSetter(func(c *Config, v int) { c.Performance.HashCacheSize = v }),
	},
	"lsp": {
		"disable_fast_path": boolSetter(func(c *Config, v bool) { c.LSP.DisableFastPath = v }),
		"coalesce_edits":    boolSetter(func(c *Config, v bool) { c.LSP.CoalesceEdits = v }),
	},
}

// parseKDL reads a KDL document on top of the built-in defaults.
func parseKDL(content string) (*Config, error) {
	cfg := Default("")
	cfg.Project.Name = ""

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		name := nodeName(n)
		if section, ok := kdlSections[name]; ok {
			for _, cn := range n.Children {
				if set, ok := section[nodeName(cn)]; ok {
					set(cfg, cn)
				} else {
					debug.Warnf("CONFIG", "ignoring unknown key %s.%s", name, nodeName(cn))
				}
			}
			continue
		}

		switch name {
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			// An exclude node replaces the default exclusions.
			cfg.Exclude = collectStringArgs(n)
		default:
			debug.Warnf("CONFIG", "ignoring unknown config node %q", name)
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	// Inline format: exclude "a" "b"
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	// Block format: exclude { "pattern" }, where the node name is the string value
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

var sizeUnits = []struct {
	suffix string
	scale  int64
}{
	{"GB", 1 << 30},
	{"MB", 1 << 20},
	{"KB", 1 << 10},
	{"B", 1},
}

// parseSize reads sizes like "10MB", "500kb" or a bare byte count.
func parseSize(s string) (int64, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	scale := int64(1)
	for _, u := range sizeUnits {
		if strings.HasSuffix(upper, u.suffix) {
			upper, scale = strings.TrimSuffix(upper, u.suffix), u.scale
			break
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return n * scale, nil
}
