package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/lsp"
	"github.com/standardbeagle/reindex/internal/server"
	"github.com/standardbeagle/reindex/internal/types"
	"github.com/standardbeagle/reindex/internal/version"
	"github.com/standardbeagle/reindex/internal/workerpool"
	"github.com/standardbeagle/reindex/internal/workspace"
	"github.com/standardbeagle/reindex/pkg/pathutil"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

// IndexReport is the JSON output of the index command.
type IndexReport struct {
	Root         string         `json:"root"`
	FileCount    int            `json:"file_count"`
	Definitions  int            `json:"definitions"`
	FilesInError []string       `json:"files_in_error,omitempty"`
	StrictLevels map[string]int `json:"strict_levels"`
	DurationMs   int64          `json:"duration_ms"`
}

// indexCommand scans and indexes the project once.
func indexCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	files, err := workspace.Scan(cfg)
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	gs := core.NewGlobalState()
	ix := lsp.NewIndexer(cfg, gs, p, lsp.Options{InputFiles: files})
	defer ix.Close()
	init := &lsp.FileUpdates{}
	if err := ix.Initialize(init, workerpool.New(cfg.Performance.ParallelFileWorkers)); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", yellow("warning:"), err)
	}

	report := IndexReport{
		Root:         cfg.Project.Root,
		FileCount:    gs.FileCount(),
		StrictLevels: map[string]int{},
		DurationMs:   time.Since(start).Milliseconds(),
	}
	for _, pf := range init.UpdatedFileIndexes {
		if !pf.File.Exists() {
			continue
		}
		report.Definitions += len(pf.Definitions)
		if pf.HasErrors {
			report.FilesInError = append(report.FilesInError, pathutil.ToRelative(pf.Path, cfg.Project.Root))
		}
		report.StrictLevels[gs.File(pf.File).StrictLevel().String()]++
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("%s %s\n", cyan("Indexed"), report.Root)
	fmt.Printf("  files:       %d\n", report.FileCount)
	fmt.Printf("  definitions: %d\n", report.Definitions)
	fmt.Printf("  took:        %dms\n", report.DurationMs)
	levels := make([]string, 0, len(report.StrictLevels))
	for l := range report.StrictLevels {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	for _, l := range levels {
		fmt.Printf("  typed: %-7s %d\n", l, report.StrictLevels[l])
	}
	for _, f := range report.FilesInError {
		fmt.Printf("  %s %s\n", red("syntax error:"), f)
	}
	return nil
}

// watchCommand runs an indexing session until interrupted or asked to stop
// over the status socket.
func watchCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	files, err := workspace.Scan(cfg)
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	var outMu sync.Mutex
	printf := func(format string, args ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Printf(format, args...)
	}

	opts := server.Options{
		OnCommit: func(ci server.CommitInfo) {
			path := green("fast")
			if !ci.FastPath {
				path = yellow("slow")
			}
			line := fmt.Sprintf("[%d] %s path: %s (%d edit(s))", ci.Epoch, path,
				strings.Join(pathutil.ToRelativeAll(ci.Files, cfg.Project.Root), ", "), ci.EditCount)
			if ci.Canceled {
				line += " " + red("(canceled running slow path)")
			}
			printf("%s\n", line)
		},
		OnResult: func(r server.Result) {
			if r.Canceled {
				printf("[%d] %s\n", r.Epoch, red("slow path abandoned"))
				return
			}
			how := "analyzed"
			if r.Preempted {
				how = "analyzed (preempted slow path)"
			}
			printf("[%d] %s %d file(s) in %v\n", r.Epoch, how, r.Files, r.Duration.Round(time.Microsecond))
			for _, f := range r.Errors {
				printf("    %s %s\n", red("syntax error:"), pathutil.ToRelative(f, cfg.Project.Root))
			}
		},
	}
	if !c.Bool("no-socket") {
		opts.SocketPath = server.SocketPathForRoot(cfg.Project.Root)
	}

	srv := server.New(cfg, p, opts)
	defer srv.Close()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	if err := srv.Initialize(ctx, files); err != nil {
		return err
	}
	printf("%s %s (%d files, session %s)\n", cyan("Watching"), cfg.Project.Root, len(files), srv.SessionID())

	w, err := workspace.NewWatcher(cfg, func(edit *lsp.WorkspaceEdit) {
		srv.Submit(edit)
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		printf("received %v, shutting down\n", sig)
	case <-srv.Done():
		printf("shutdown requested\n")
	case err := <-runErr:
		return err
	}

	// Deferred calls stop the watcher before the session closes.
	cancel()
	<-runErr
	return nil
}

// checkCommand indexes the project, then reports how the indexer would
// commit FILE if its contents were replaced by NEW.
func checkCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: reindex check FILE NEW", 2)
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	target, err := filepath.Abs(c.Args().Get(0))
	if err != nil {
		return err
	}
	replacement, err := os.ReadFile(c.Args().Get(1))
	if err != nil {
		return err
	}

	files, err := workspace.Scan(cfg)
	if err != nil {
		return err
	}
	if !slices.Contains(files, target) {
		files = append(files, target)
	}
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	gs := core.NewGlobalState()
	ix := lsp.NewIndexer(cfg, gs, p, lsp.Options{InputFiles: files})
	defer ix.Close()
	if err := ix.Initialize(&lsp.FileUpdates{}, workerpool.New(cfg.Performance.ParallelFileWorkers)); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", yellow("warning:"), err)
	}

	edited := types.NewFile(target, replacement)
	ix.ComputeFileHashes([]*types.File{edited})
	fast := ix.CanTakeFastPath([]*types.File{edited})

	if ref := gs.FindFileByPath(target); ref.Exists() {
		printHash("before", gs.File(ref).FileHash())
	}
	printHash("after", edited.FileHash())
	if fast {
		fmt.Println(green("fast path"))
	} else {
		fmt.Println(yellow("slow path"))
	}
	return nil
}

func printHash(label string, h *types.FileHash) {
	if h == nil {
		fmt.Printf("  %-6s not fingerprinted\n", label)
		return
	}
	if h.IsInvalid() {
		fmt.Printf("  %-6s %s\n", label, red("syntax error"))
		return
	}
	fmt.Printf("  %-6s hierarchy=%016x definitions=%d\n", label, h.Definitions.HierarchyHash, h.Definitions.DefinitionCount)
}

func statusCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	client := server.NewClient(cfg.Project.Root)
	defer client.Close()

	st, err := client.GetStatus()
	if err != nil {
		return fmt.Errorf("no watch session for %s: %w", cfg.Project.Root, err)
	}
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	if ping, err := client.Ping(); err == nil && ping.BuildID != version.BuildID() {
		fmt.Fprintf(os.Stderr, "%s session runs a different build (%s, this binary %s)\n",
			yellow("warning:"), ping.BuildID, version.BuildID())
	}

	fmt.Printf("%s %s\n", cyan("Session"), st.SessionID)
	fmt.Printf("  root:         %s\n", st.Root)
	fmt.Printf("  ready:        %v\n", st.Ready)
	fmt.Printf("  files:        %d\n", st.FileCount)
	fmt.Printf("  last epoch:   %d\n", st.LastEpoch)
	fmt.Printf("  queued edits: %d\n", st.QueuedEdits)
	if st.SlowPathRunning {
		fmt.Printf("  slow path:    %s at epoch %d\n", yellow("running"), st.RunningEpoch)
	} else {
		fmt.Printf("  slow path:    idle\n")
	}
	fmt.Printf("  uptime:       %.0fs\n", st.UptimeSeconds)

	names := make([]string, 0, len(st.Counters))
	for name := range st.Counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-40s %d\n", name, st.Counters[name])
	}
	return nil
}

func stopCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	client := server.NewClient(cfg.Project.Root)
	defer client.Close()

	resp, err := client.Shutdown()
	if err != nil {
		return fmt.Errorf("no watch session for %s: %w", cfg.Project.Root, err)
	}
	fmt.Println(resp.Message)
	return nil
}
