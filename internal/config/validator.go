package config

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"

	rerrors "github.com/standardbeagle/reindex/internal/errors"
	"github.com/standardbeagle/reindex/internal/types"
)

// MaxFileSizeLimit caps index.max_file_size; larger files are never worth
// fingerprinting on the edit path.
const MaxFileSizeLimit = 100 * 1024 * 1024

// Validator checks a loaded config and fills in machine-dependent defaults.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults returns a *ConfigError naming the first offending
// key, or applies defaults and returns nil.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return err
	}
	if err := v.validateIndexConfig(&cfg.Index); err != nil {
		return err
	}
	if err := v.validatePerformanceConfig(&cfg.Performance); err != nil {
		return err
	}
	v.setSmartDefaults(cfg)
	return nil
}

func invalid(key string, value any, err error) error {
	return rerrors.NewConfigError(key, fmt.Sprint(value), err)
}

func (v *Validator) validateProjectConfig(project *Project) error {
	switch {
	case project.Root == "":
		return invalid("project.root", "", errors.New("cannot be empty"))
	case project.Name == "":
		return invalid("project.name", "", errors.New("cannot be empty"))
	}
	return nil
}

func (v *Validator) validateIndexConfig(index *Index) error {
	switch {
	case index.MaxFileSize <= 0:
		return invalid("index.max_file_size", index.MaxFileSize, errors.New("must be positive"))
	case index.MaxFileSize > MaxFileSizeLimit:
		return invalid("index.max_file_size", index.MaxFileSize,
			fmt.Errorf("must not exceed %d", MaxFileSizeLimit))
	case index.MaxFileCount <= 0:
		return invalid("index.max_file_count", index.MaxFileCount, errors.New("must be positive"))
	case index.WatchDebounceMs < 0:
		return invalid("index.watch_debounce_ms", index.WatchDebounceMs, errors.New("cannot be negative"))
	}
	if index.DefaultStrictLevel != "" {
		if _, ok := types.ParseStrictLevel(index.DefaultStrictLevel); !ok {
			return invalid("index.default_strict_level", strconv.Quote(index.DefaultStrictLevel),
				errors.New("want ignore, false, true, strict or strong"))
		}
	}
	return nil
}

// Zero values are valid here: they mean "pick for this machine".
func (v *Validator) validatePerformanceConfig(perf *Performance) error {
	if perf.ParallelFileWorkers < 0 {
		return invalid("performance.parallel_file_workers", perf.ParallelFileWorkers, errors.New("cannot be negative"))
	}
	if perf.HashCacheSize < 0 {
		return invalid("performance.hash_cache_size", perf.HashCacheSize, errors.New("cannot be negative"))
	}
	return nil
}

func (v *Validator) setSmartDefaults(cfg *Config) {
	// One core stays free for the edit loop.
	if cfg.Performance.ParallelFileWorkers == 0 {
		cfg.Performance.ParallelFileWorkers = max(1, runtime.NumCPU()-1)
	}
	if cfg.Performance.HashCacheSize == 0 {
		cfg.Performance.HashCacheSize = types.DefaultHashCacheSize
	}
	if cfg.Index.DefaultStrictLevel == "" {
		cfg.Index.DefaultStrictLevel = types.StrictFalse.String()
	}
}

// ValidateConfig validates cfg in place.
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
