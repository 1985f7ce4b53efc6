package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/reindex/internal/config"
	"github.com/standardbeagle/reindex/internal/lsp"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/pipeline"
	"github.com/standardbeagle/reindex/internal/types"
)

const handlerGo = `package web

func Handle(path string) string {
	return path
}
`

const storeGo = `package web

type Store struct{}
`

type harness struct {
	srv     *Server
	dir     string
	handler string
	store   string
	commits chan CommitInfo
	results chan Result

	// inspect, when set, sees each result on the analysis goroutine while
	// its View is still valid. Set it before submitting edits.
	inspect func(Result)
}

func newHarness(t *testing.T, tweak func(*config.Config, *Options)) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{
		dir:     dir,
		handler: filepath.Join(dir, "handler.go"),
		store:   filepath.Join(dir, "store.go"),
		commits: make(chan CommitInfo, 16),
		results: make(chan Result, 16),
	}
	require.NoError(t, os.WriteFile(h.handler, []byte(handlerGo), 0644))
	require.NoError(t, os.WriteFile(h.store, []byte(storeGo), 0644))

	cfg := config.Default(dir)
	cfg.Performance.ParallelFileWorkers = 2
	opts := Options{
		OnCommit: func(c CommitInfo) { h.commits <- c },
		OnResult: func(r Result) {
			if h.inspect != nil {
				h.inspect(r)
			}
			h.results <- r
		},
	}
	if tweak != nil {
		tweak(cfg, &opts)
	}

	p, err := pipeline.New(pipeline.Options{HashCacheSize: 16})
	require.NoError(t, err)
	h.srv = New(cfg, p, opts)
	t.Cleanup(func() { _ = h.srv.Close() })

	require.NoError(t, h.srv.Initialize(context.Background(), []string{h.handler, h.store}))
	init := waitResult(t, h.results)
	require.Equal(t, types.Epoch(0), init.Epoch)
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- h.srv.Run(context.Background()) }()
	t.Cleanup(func() {
		_ = h.srv.Close()
		<-errc
	})
}

func waitCommit(t *testing.T, commits <-chan CommitInfo) CommitInfo {
	t.Helper()
	select {
	case c := <-commits:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for commit")
		return CommitInfo{}
	}
}

func TestServer_FastAndSlowCommits(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config, _ *Options) { cfg.LSP.CoalesceEdits = false })
	h.run(t)

	epoch, ok := h.srv.Submit(fileEdit(h.handler, `package web

func Handle(path string) string {
	return "/" + path
}
`))
	require.True(t, ok)
	assert.Equal(t, types.Epoch(1), epoch)

	c := waitCommit(t, h.commits)
	assert.Equal(t, types.Epoch(1), c.Epoch)
	assert.True(t, c.FastPath)
	assert.Equal(t, []string{h.handler}, c.Files)
	r := waitResult(t, h.results)
	assert.True(t, r.FastPath)

	h.srv.Submit(fileEdit(h.store, storeGo+`
func (s *Store) Get() {}
`))
	c = waitCommit(t, h.commits)
	assert.Equal(t, types.Epoch(2), c.Epoch)
	assert.False(t, c.FastPath)
	r = waitResult(t, h.results)
	assert.False(t, r.FastPath)
	assert.False(t, r.Canceled)
}

func TestServer_CoalescesQueuedEdits(t *testing.T) {
	h := newHarness(t, nil)

	// Queued before Run starts, so Run pops them as one edit.
	h.srv.Submit(fileEdit(h.handler, handlerGo+"// one\n"))
	h.srv.Submit(fileEdit(h.store, storeGo+"// two\n"))
	h.srv.Submit(fileEdit(h.handler, handlerGo+"// three\n"))
	h.run(t)

	c := waitCommit(t, h.commits)
	assert.Equal(t, types.Epoch(3), c.Epoch)
	assert.Equal(t, 3, c.EditCount)
	assert.True(t, c.FastPath)
	assert.ElementsMatch(t, []string{h.handler, h.store}, c.Files)
}

func TestServer_ReportsSyntaxErrors(t *testing.T) {
	h := newHarness(t, nil)
	h.run(t)

	h.srv.Submit(fileEdit(h.handler, "package web\n\nfunc Handle( {\n"))
	c := waitCommit(t, h.commits)
	assert.False(t, c.FastPath)

	r := waitResult(t, h.results)
	assert.Contains(t, r.Errors, h.handler)
}

func TestServer_CloseCancelsUncommittedTimers(t *testing.T) {
	h := newHarness(t, nil)

	pending := fileEdit(h.handler, handlerGo+"// pending\n")
	timer := metrics.NewTimer("last_diagnostic_latency")
	pending.DiagnosticLatencyTimers = []*metrics.Timer{timer}
	h.srv.Submit(pending)

	require.NoError(t, h.srv.Close())
	assert.True(t, timer.Canceled())

	_, ok := h.srv.Submit(fileEdit(h.store, storeGo))
	assert.False(t, ok)
}

func TestServer_RunStopsOnContext(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.srv.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestServer_RunBeforeInitializePanics(t *testing.T) {
	p, err := pipeline.New(pipeline.Options{})
	require.NoError(t, err)
	srv := New(config.Default(t.TempDir()), p, Options{})
	defer srv.Close()

	assert.Panics(t, func() { _ = srv.Run(context.Background()) })
}


// viewLog keeps, per epoch, the file sources a result was analyzed against.
type viewLog struct {
	mu      sync.Mutex
	byEpoch map[types.Epoch]map[string]string
}

func (h *harness) recordViews() *viewLog {
	l := &viewLog{byEpoch: make(map[types.Epoch]map[string]string)}
	h.inspect = func(r Result) {
		if r.View == nil || r.Canceled {
			return
		}
		sources := make(map[string]string)
		for _, path := range []string{h.handler, h.store} {
			if f := r.View.File(r.View.FindFileByPath(path)); f != nil {
				sources[path] = string(f.Source())
			}
		}
		l.mu.Lock()
		l.byEpoch[r.Epoch] = sources
		l.mu.Unlock()
	}
	return l
}

func (l *viewLog) source(epoch types.Epoch, path string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byEpoch[epoch][path]
}

// waitResults collects results until every epoch in want has reported.
func waitResults(t *testing.T, results <-chan Result, want ...types.Epoch) map[types.Epoch]Result {
	t.Helper()
	got := make(map[types.Epoch]Result)
	for {
		done := true
		for _, e := range want {
			if _, ok := got[e]; !ok {
				done = false
			}
		}
		if done {
			return got
		}
		r := waitResult(t, results)
		got[r.Epoch] = r
	}
}

func handlerReturning(expr string) string {
	return strings.Replace(handlerGo, "return path", "return "+expr, 1)
}

// Slow edits that pile up while analysis is busy with a fast batch must not
// reach the indexer as two slow paths the epoch manager never saw start.
func TestServer_SlowEditsQueuedBehindBusyAnalysis(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config, _ *Options) { cfg.LSP.CoalesceEdits = false })
	h.srv.checker.fileDelay = 100 * time.Millisecond
	views := h.recordViews()
	h.run(t)

	withGet := storeGo + "\nfunc (s *Store) Get() {}\n"
	withPut := withGet + "\nfunc (s *Store) Put() {}\n"
	h.srv.Submit(fileEdit(h.handler, handlerReturning(`"/" + path`)))
	h.srv.Submit(fileEdit(h.store, withGet))
	h.srv.Submit(fileEdit(h.store, withPut))

	c1 := waitCommit(t, h.commits)
	assert.True(t, c1.FastPath)
	c2 := waitCommit(t, h.commits)
	assert.Equal(t, types.Epoch(2), c2.Epoch)
	assert.False(t, c2.FastPath)
	c3 := waitCommit(t, h.commits)
	assert.Equal(t, types.Epoch(3), c3.Epoch)
	assert.True(t, c3.Canceled, "epoch 2 was running when epoch 3 committed")
	assert.Equal(t, 2, c3.EditCount)

	h.srv.Submit(fileEdit(h.handler, handlerReturning(`"//" + path`)))
	c4 := waitCommit(t, h.commits)
	assert.Equal(t, types.Epoch(4), c4.Epoch)
	assert.True(t, c4.FastPath)

	got := waitResults(t, h.results, 1, 2, 3, 4)
	assert.True(t, got[2].Canceled)
	assert.False(t, got[3].Canceled)
	assert.Equal(t, withPut, views.source(3, h.store))
	assert.Equal(t, withPut, views.source(4, h.store))
	assert.Contains(t, views.source(4, h.handler), `"//" + path`)
	assert.False(t, h.srv.gs.EpochManager().GetStatus().SlowPathRunning)
}

// A fast edit committed during a slow path is analyzed on the slow path's
// view, so its result matches the table at its own epoch even when the slow
// path is canceled afterwards.
func TestServer_FastEditPreemptsOnSlowView(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config, _ *Options) { cfg.LSP.CoalesceEdits = false })
	h.srv.checker.fileDelay = 100 * time.Millisecond
	views := h.recordViews()
	h.run(t)

	withGet := storeGo + "\nfunc (s *Store) Get() {}\n"
	h.srv.Submit(&lsp.WorkspaceEdit{Updates: []*types.File{
		types.NewFile(h.store, []byte(withGet)),
		types.NewFile(h.handler, []byte(handlerReturning(`"1" + path`))),
	}})
	c1 := waitCommit(t, h.commits)
	require.False(t, c1.FastPath)
	require.Eventually(t, func() bool {
		return h.srv.gs.EpochManager().GetStatus().SlowPathRunning
	}, 5*time.Second, time.Millisecond)

	h.srv.Submit(fileEdit(h.handler, handlerReturning(`"2" + path`)))
	h.srv.Submit(fileEdit(h.store, withGet+"\nfunc (s *Store) Put() {}\n"))

	c2 := waitCommit(t, h.commits)
	assert.True(t, c2.FastPath)
	assert.False(t, c2.Canceled)
	c3 := waitCommit(t, h.commits)
	assert.False(t, c3.FastPath)

	got := waitResults(t, h.results, 1, 2, 3)
	assert.True(t, got[2].Preempted)
	assert.Contains(t, views.source(2, h.handler), `"2" + path`)
	assert.Equal(t, withGet, views.source(2, h.store), "the store as of epoch 2")
	assert.Contains(t, views.source(3, h.handler), `"2" + path`)
	assert.Contains(t, views.source(3, h.store), "Put()")
}
