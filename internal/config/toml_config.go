package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// tomlFile mirrors the KDL layout. Pointer fields distinguish unset keys from zero values.
type tomlFile struct {
	Version *int `toml:"version"`
	Project struct {
		Root *string `toml:"root"`
		Name *string `toml:"name"`
	} `toml:"project"`
	Index struct {
		MaxFileSize        any     `toml:"max_file_size"` // bytes or "10MB"
		MaxFileCount       *int    `toml:"max_file_count"`
		FollowSymlinks     *bool   `toml:"follow_symlinks"`
		WatchMode          *bool   `toml:"watch_mode"`
		WatchDebounceMs    *int    `toml:"watch_debounce_ms"`
		DefaultStrictLevel *string `toml:"default_strict_level"`
	} `toml:"index"`
	Performance struct {
		ParallelFileWorkers *int `toml:"parallel_file_workers"`
		HashCacheSize       *int `toml:"hash_cache_size"`
	} `toml:"performance"`
	LSP struct {
		DisableFastPath *bool `toml:"disable_fast_path"`
		CoalesceEdits   *bool `toml:"coalesce_edits"`
	} `toml:"lsp"`
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// LoadTOML attempts to load configuration from the .reindex.toml file in dir
func LoadTOML(dir string) (*Config, error) {
	return loadTOMLFile(filepath.Join(dir, TOMLFileName), dir)
}

func loadTOMLFile(path, dir string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	cfg, err := parseTOML(data)
	if err != nil {
		return nil, err
	}
	resolveRoot(cfg, dir)
	return cfg, nil
}

func parseTOML(data []byte) (*Config, error) {
	var f tomlFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	cfg := Default("")
	cfg.Project.Name = ""

	setInt(&cfg.Version, f.Version)
	setString(&cfg.Project.Root, f.Project.Root)
	setString(&cfg.Project.Name, f.Project.Name)

	switch v := f.Index.MaxFileSize.(type) {
	case nil:
	case int64:
		cfg.Index.MaxFileSize = v
	case string:
		sz, err := parseSize(v)
		if err != nil {
			return nil, fmt.Errorf("index.max_file_size: %w", err)
		}
		cfg.Index.MaxFileSize = sz
	default:
		return nil, fmt.Errorf("index.max_file_size: unsupported value %v", v)
	}
	setInt(&cfg.Index.MaxFileCount, f.Index.MaxFileCount)
	setBool(&cfg.Index.FollowSymlinks, f.Index.FollowSymlinks)
	setBool(&cfg.Index.WatchMode, f.Index.WatchMode)
	setInt(&cfg.Index.WatchDebounceMs, f.Index.WatchDebounceMs)
	setString(&cfg.Index.DefaultStrictLevel, f.Index.DefaultStrictLevel)

	setInt(&cfg.Performance.ParallelFileWorkers, f.Performance.ParallelFileWorkers)
	setInt(&cfg.Performance.HashCacheSize, f.Performance.HashCacheSize)

	setBool(&cfg.LSP.DisableFastPath, f.LSP.DisableFastPath)
	setBool(&cfg.LSP.CoalesceEdits, f.LSP.CoalesceEdits)

	if f.Include != nil {
		cfg.Include = f.Include
	}
	if f.Exclude != nil {
		cfg.Exclude = f.Exclude
	}
	return cfg, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
