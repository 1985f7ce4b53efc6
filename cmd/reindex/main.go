package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/reindex/internal/config"
	"github.com/standardbeagle/reindex/internal/debug"
	"github.com/standardbeagle/reindex/internal/pipeline"
	"github.com/standardbeagle/reindex/internal/types"
	"github.com/standardbeagle/reindex/internal/version"
)

var cleanupFuncs []func()

// loadConfigWithOverrides loads configuration for --root and applies CLI
// flag overrides.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
	}

	cfg, err := config.LoadWithRoot(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load config for %s: %w", absRoot, err)
	}
	cfg.Project.Root = absRoot

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if c.Bool("disable-fast-path") {
		cfg.LSP.DisableFastPath = true
	}
	if c.IsSet("no-coalesce") {
		cfg.LSP.CoalesceEdits = !c.Bool("no-coalesce")
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newPipeline builds the parsing pipeline the config asks for.
func newPipeline(cfg *config.Config) (*pipeline.TreeSitterPipeline, error) {
	level, _ := types.ParseStrictLevel(cfg.Index.DefaultStrictLevel)
	return pipeline.New(pipeline.Options{
		HashCacheSize:      cfg.Performance.HashCacheSize,
		MaxFileSize:        cfg.Index.MaxFileSize,
		DefaultStrictLevel: level,
	})
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "reindex",
		Usage:                  "Incremental re-indexing with fast and slow path analysis",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include files matching glob patterns (e.g., --include '**/*.go')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns",
			},
			&cli.BoolFlag{
				Name:  "disable-fast-path",
				Usage: "Send every edit down the slow path",
			},
			&cli.BoolFlag{
				Name:  "no-coalesce",
				Usage: "Commit queued edits one at a time",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Write debug logs to stderr",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "info",
			},
			&cli.BoolFlag{
				Name:  "debug-file",
				Usage: "Write debug logs to a file in the temp directory",
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "index",
				Aliases: []string{"i"},
				Usage:   "Index the project once and print statistics",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
				Action: indexCommand,
			},
			{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "Index the project and re-index on every change",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-socket",
						Usage: "Do not serve the status socket",
					},
				},
				Action: watchCommand,
			},
			{
				Name:      "check",
				Usage:     "Report whether replacing FILE with NEW would take the fast path",
				ArgsUsage: "FILE NEW",
				Action:    checkCommand,
			},
			{
				Name:  "status",
				Usage: "Show the status of a running watch session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
				Action: statusCommand,
			},
			{
				Name:   "stop",
				Usage:  "Stop a running watch session",
				Action: stopCommand,
			},
		},
		Before: func(c *cli.Context) error {
			if err := debug.SetLevel(c.String("log-level")); err != nil {
				return err
			}
			if c.Bool("debug") {
				debug.EnableDebug = "true"
				debug.SetDebugOutput(os.Stderr)
			}
			if c.Bool("debug-file") {
				debug.EnableDebug = "true"
				path, err := debug.InitDebugLogFile()
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "debug log: %s\n", path)
				cleanupFuncs = append(cleanupFuncs, func() { _ = debug.CloseDebugLog() })
			}
			return nil
		},
		After: func(c *cli.Context) error {
			for i := len(cleanupFuncs) - 1; i >= 0; i-- {
				cleanupFuncs[i]()
			}
			return nil
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
