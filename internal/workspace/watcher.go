package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/reindex/internal/config"
	"github.com/standardbeagle/reindex/internal/debug"
	"github.com/standardbeagle/reindex/internal/lsp"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/types"
)

// EditHandler receives one edit per debounced batch of file events. Epochs
// are left at zero for the edit queue to assign.
type EditHandler func(edit *lsp.WorkspaceEdit)

// Watcher turns file system events under the project root into workspace
// edits carrying the current contents of every changed file.
type Watcher struct {
	watcher   *fsnotify.Watcher
	cfg       *config.Config
	filter    *Filter
	debouncer *eventDebouncer
	onEdit    EditHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type eventKind int

const (
	eventWrite eventKind = iota
	eventRemove
)

func NewWatcher(cfg *config.Config, onEdit EditHandler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher: fw,
		cfg:     cfg,
		filter:  NewFilter(cfg),
		onEdit:  onEdit,
		ctx:     ctx,
		cancel:  cancel,
	}
	delay := time.Duration(cfg.Index.WatchDebounceMs) * time.Millisecond
	w.debouncer = newEventDebouncer(delay, w.flush)
	return w, nil
}

// Start watches every non-excluded directory under the project root.
func (w *Watcher) Start() error {
	root := w.cfg.Project.Root
	debug.Log(debug.ComponentWatch, "watching %s", root)
	if err := w.addWatches(root); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.processEvents()
	return nil
}

// Stop ends watching. Events still being debounced are dropped.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	w.debouncer.stop()
	debug.Log(debug.ComponentWatch, "watcher stopped")
	return err
}

func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil || visited[resolved] {
			return filepath.SkipDir
		}
		visited[resolved] = true
		if w.filter.ExcludedDir(p) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			debug.Warnf(debug.ComponentWatch, "failed to watch %s: %v", p, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			debug.Warnf(debug.ComponentWatch, "watcher error: %v", err)
			metrics.CounterInc("watch.errors")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	p := event.Name
	debug.Log(debug.ComponentWatch, "event %v for %s", event.Op, p)

	info, err := os.Stat(p)
	if err != nil {
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.filter.MatchesPath(p) {
			w.debouncer.add(p, eventRemove)
		}
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && !w.filter.ExcludedDir(p) {
			if err := w.addWatches(p); err != nil {
				debug.Warnf(debug.ComponentWatch, "failed to watch new directory %s: %v", p, err)
			}
		}
		return
	}

	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !w.filter.MatchesPath(p) || !w.filter.WithinSizeLimit(info.Size()) {
		return
	}
	w.debouncer.add(p, eventWrite)
}

// flush reads every changed file and hands the batch on as a single edit. A
// removed file becomes an empty one: the file table never shrinks.
func (w *Watcher) flush(events map[string]eventKind, first time.Time) {
	paths := make([]string, 0, len(events))
	for p := range events {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	edit := &lsp.WorkspaceEdit{}
	for _, p := range paths {
		var source []byte
		if events[p] == eventWrite {
			data, err := os.ReadFile(p)
			if err != nil {
				debug.Log(debug.ComponentWatch, "dropping %s: %v", p, err)
				continue
			}
			if IsBinaryContent(data) {
				continue
			}
			source = data
		}
		edit.Updates = append(edit.Updates, types.NewFile(p, source))
	}
	if len(edit.Updates) == 0 {
		return
	}

	// Latency is measured from the first event of the batch.
	edit.DiagnosticLatencyTimers = []*metrics.Timer{metrics.NewTimerAt(metrics.Default(), "last_diagnostic_latency", first)}
	metrics.CounterInc("watch.edits")
	debug.Log(debug.ComponentWatch, "flushing %d changed files", len(edit.Updates))
	w.onEdit(edit)
}

// eventDebouncer collects events until none has arrived for delay.
type eventDebouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	events  map[string]eventKind
	first   time.Time
	timer   *time.Timer
	stopped bool
	running sync.WaitGroup
	flushFn func(map[string]eventKind, time.Time)
}

func newEventDebouncer(delay time.Duration, flushFn func(map[string]eventKind, time.Time)) *eventDebouncer {
	return &eventDebouncer{
		delay:   delay,
		events:  make(map[string]eventKind),
		flushFn: flushFn,
	}
}

func (d *eventDebouncer) add(path string, kind eventKind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if len(d.events) == 0 {
		d.first = time.Now()
	}
	d.events[path] = kind
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *eventDebouncer) flush() {
	d.mu.Lock()
	if d.stopped || len(d.events) == 0 {
		d.mu.Unlock()
		return
	}
	events, first := d.events, d.first
	d.events = make(map[string]eventKind)
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	d.flushFn(events, first)
}

// stop drops pending events and waits for a flush in progress.
func (d *eventDebouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.running.Wait()
}
