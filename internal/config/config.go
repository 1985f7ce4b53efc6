package config

import (
	"os"
	"path/filepath"

	"github.com/standardbeagle/reindex/internal/types"
)

// Config file names looked up in the home directory and the project root.
const (
	KDLFileName  = ".reindex.kdl"
	TOMLFileName = ".reindex.toml"
)

type Config struct {
	Version     int
	Project     Project
	Index       Index
	Performance Performance
	LSP         LSP
	Include     []string
	Exclude     []string
}

type Project struct {
	Root string
	Name string
}

type Index struct {
	MaxFileSize        int64
	MaxFileCount       int
	FollowSymlinks     bool
	WatchMode          bool   // Enable file system watching for edits
	WatchDebounceMs    int    // Debounce time for file change events
	DefaultStrictLevel string // Applied to new files without a typed: sigil
}

type Performance struct {
	ParallelFileWorkers int // 0 = auto-detect (NumCPU-1)
	HashCacheSize       int // Fingerprint memo entries, keyed by content hash
}

// LSP controls the edit commit path
type LSP struct {
	DisableFastPath bool // Route every edit to the slow path
	CoalesceEdits   bool // Merge queued edits before committing them
}

// Default returns the built-in configuration rooted at root.
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{
			Root: root,
			Name: filepath.Base(root),
		},
		Index: Index{
			MaxFileSize:        types.DefaultMaxFileSize,
			MaxFileCount:       types.DefaultMaxFileCount,
			FollowSymlinks:     false,
			WatchMode:          true,
			WatchDebounceMs:    100,
			DefaultStrictLevel: "false",
		},
		Performance: Performance{
			ParallelFileWorkers: 0,
			HashCacheSize:       types.DefaultHashCacheSize,
		},
		LSP: LSP{
			DisableFastPath: false,
			CoalesceEdits:   true,
		},
		Include: []string{},
		Exclude: getDefaultExclusions(),
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return LoadWithRoot("")
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return LoadWithRoot(filepath.Dir(path))
	}
	return cfg, nil
}

// LoadFile loads a single .kdl or .toml file. Returns nil, nil if it does not exist.
func LoadFile(path string) (*Config, error) {
	dir := filepath.Dir(path)
	switch filepath.Ext(path) {
	case ".toml":
		return loadTOMLFile(path, dir)
	default:
		return loadKDLFile(path, dir)
	}
}

func LoadWithRoot(rootDir string) (*Config, error) {
	// Determine search directory for config files
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}

	// Step 1: Load global base config from ~/.reindex.kdl (if exists)
	homeDir, err := os.UserHomeDir()
	var baseConfig *Config
	if err == nil {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	// Step 2: Load project-specific config, KDL first then TOML
	projectConfig, err := LoadKDL(searchDir)
	if err != nil {
		return nil, err
	}
	if projectConfig == nil {
		projectConfig, err = LoadTOML(searchDir)
		if err != nil {
			return nil, err
		}
	}

	// Step 3: Merge configs (project overrides base, but preserve base exclusions)
	if baseConfig != nil && projectConfig != nil {
		return mergeConfigs(baseConfig, projectConfig), nil
	} else if projectConfig != nil {
		return projectConfig, nil
	} else if baseConfig != nil {
		baseConfig.Project.Root = absOr(searchDir)
		return baseConfig, nil
	}

	return Default(absOr(searchDir)), nil
}

func absOr(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// resolveRoot makes a configured root absolute relative to the config file directory
func resolveRoot(cfg *Config, configDir string) {
	if cfg.Project.Root == "" {
		cfg.Project.Root = absOr(configDir)
	} else if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(absOr(configDir), cfg.Project.Root))
	}
	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}
}

// mergeConfigs merges a base config with a project config
// Project config takes precedence, but base exclusions are preserved
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		combined := make([]string, 0, len(base.Exclude)+len(project.Exclude))
		combined = append(combined, base.Exclude...)
		combined = append(combined, project.Exclude...)
		merged.Exclude = DeduplicatePatterns(combined)
	}

	// Inclusions: project overrides base completely if specified
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

// DeduplicatePatterns removes repeated patterns, keeping first occurrences in order
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func getDefaultExclusions() []string {
	return []string{
		// Git metadata (never indexable)
		"**/.git/**",

		// Package managers & dependencies
		"**/node_modules/**",
		"**/vendor/**",
		"**/bower_components/**",

		// Build artifacts & output
		"**/dist/**",
		"**/build/**",
		"**/out/**",
		"**/target/**", // Rust, Java
		"**/obj/**",    // .NET
		"**/*.min.js",
		"**/*.bundle.js",

		// Python compiled files
		"**/__pycache__/**",
	}
}
