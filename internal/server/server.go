// Package server runs the edit loop: edits are queued, committed by the
// indexer on the ingestion goroutine, and analyzed by the typechecker on its
// own goroutine.
package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/standardbeagle/reindex/internal/config"
	"github.com/standardbeagle/reindex/internal/core"
	"github.com/standardbeagle/reindex/internal/debug"
	rerrors "github.com/standardbeagle/reindex/internal/errors"
	"github.com/standardbeagle/reindex/internal/lsp"
	"github.com/standardbeagle/reindex/internal/pipeline"
	"github.com/standardbeagle/reindex/internal/types"
	"github.com/standardbeagle/reindex/internal/workerpool"
)

// CommitInfo describes how one edit was committed.
type CommitInfo struct {
	Epoch     types.Epoch
	FastPath  bool
	Canceled  bool // a running slow path was canceled in favor of this batch
	EditCount int
	Files     []string
}

// Options configures a Server. Callbacks run on the ingestion goroutine
// (OnCommit) and the analysis goroutine (OnResult); they must not block.
type Options struct {
	OnCommit func(CommitInfo)
	OnResult func(Result)
	// SocketPath enables the status socket when set.
	SocketPath string
}

// Server owns one indexing session.
type Server struct {
	cfg       *config.Config
	opts      Options
	sessionID string
	log       *zap.Logger
	startTime time.Time

	pipeline pipeline.Pipeline
	gs       *core.GlobalState
	indexer  *lsp.Indexer
	workers  *workerpool.WorkerPool
	queue    *EditQueue
	checker  *Typechecker
	status   *statusServer

	// Written by the ingestion goroutine, read by status requests.
	ready     atomic.Bool
	lastEpoch atomic.Uint32
	fileCount atomic.Int64

	runMu        sync.Mutex
	closeOnce    sync.Once
	shutdownOnce sync.Once
	shutdown     chan struct{}
}

func New(cfg *config.Config, p pipeline.Pipeline, opts Options) *Server {
	id := uuid.NewString()
	log := debug.Logger().Named(debug.ComponentTypecheck).With(zap.String("session", id))
	gs := core.NewGlobalState()
	return &Server{
		cfg:       cfg,
		opts:      opts,
		sessionID: id,
		log:       log,
		startTime: time.Now(),
		pipeline:  p,
		gs:        gs,
		workers:   workerpool.New(cfg.Performance.ParallelFileWorkers),
		queue:     NewEditQueue(cfg.LSP.CoalesceEdits),
		checker:   NewTypechecker(gs.EpochManager(), log, opts.OnResult),
		shutdown:  make(chan struct{}),
	}
}

func (s *Server) SessionID() string { return s.sessionID }

// Initialize indexes inputFiles, starts analysis of the initial batch and,
// when configured, the status socket. Unreadable input files are logged and
// skipped.
func (s *Server) Initialize(ctx context.Context, inputFiles []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.indexer = lsp.NewIndexer(s.cfg, s.gs, s.pipeline, lsp.Options{InputFiles: inputFiles})
	init := &lsp.FileUpdates{}
	if err := s.indexer.Initialize(init, s.workers); err != nil {
		var ie *rerrors.IndexingError
		if !errors.As(err, &ie) || !ie.IsRecoverable() {
			return err
		}
		s.log.Warn("input files skipped", zap.Error(err))
	}
	s.fileCount.Store(int64(s.gs.FileCount()))
	s.ready.Store(true)
	s.log.Info("initialized", zap.String("root", s.cfg.Project.Root), zap.Int("files", s.gs.FileCount()))

	s.checker.Start()
	s.checker.Enqueue(init, nil)

	if s.opts.SocketPath != "" {
		s.status = newStatusServer(s, s.opts.SocketPath)
		if err := s.status.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Submit queues an edit from any goroutine and returns the epoch it was
// assigned. It reports false once the server is closing.
func (s *Server) Submit(edit *lsp.WorkspaceEdit) (types.Epoch, bool) {
	return s.queue.Push(edit)
}

// Run commits queued edits until ctx is done or the server is closed. It is
// the ingestion goroutine: only one Run may be active.
func (s *Server) Run(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	rerrors.Enforce(s.indexer != nil, "Run called before Initialize")

	for {
		// Commit only once analysis has picked up the previous batch; edits
		// arriving meanwhile coalesce in the queue.
		if !s.checker.WaitReady(ctx) {
			return ctx.Err()
		}
		edit, ok := s.queue.Pop(ctx)
		if !ok {
			return ctx.Err()
		}
		s.commit(edit)
	}
}

func (s *Server) commit(edit *lsp.WorkspaceEdit) {
	u := s.indexer.CommitEdit(edit)
	s.lastEpoch.Store(u.Epoch)
	s.fileCount.Store(int64(s.gs.FileCount()))

	if s.opts.OnCommit != nil {
		files := make([]string, 0, len(u.UpdatedFiles))
		for _, f := range u.UpdatedFiles {
			files = append(files, f.Path())
		}
		s.opts.OnCommit(CommitInfo{
			Epoch:     u.Epoch,
			FastPath:  u.CanTakeFastPath,
			Canceled:  u.CanceledSlowPath,
			EditCount: u.EditCount,
			Files:     files,
		})
	}
	s.checker.Enqueue(u, edit.DiagnosticLatencyTimers)
}

// Done is closed when a client asks the server to shut down.
func (s *Server) Done() <-chan struct{} { return s.shutdown }

func (s *Server) requestShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// Close stops accepting edits, waits for Run to drain the queue and return,
// then stops analysis and the status socket.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.queue.Close()
		s.runMu.Lock()
		defer s.runMu.Unlock()

		// Run returned early on a canceled context.
		for _, edit := range s.queue.Drain() {
			cancelTimers(edit.DiagnosticLatencyTimers)
		}
		s.checker.Stop()
		if s.indexer != nil {
			s.indexer.Close()
		}
		if s.status != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = s.status.Shutdown(ctx)
		}
		s.log.Info("session closed")
	})
	return err
}

func (s *Server) snapshot() StatusResponse {
	st := s.gs.EpochManager().GetStatus()
	resp := StatusResponse{
		SessionID:       s.sessionID,
		Root:            s.cfg.Project.Root,
		Ready:           s.ready.Load(),
		FileCount:       int(s.fileCount.Load()),
		LastEpoch:       s.lastEpoch.Load(),
		SlowPathRunning: st.SlowPathRunning,
		QueuedEdits:     s.queue.Len(),
		UptimeSeconds:   time.Since(s.startTime).Seconds(),
	}
	if st.SlowPathRunning {
		resp.RunningEpoch = st.Epoch
	}
	return resp
}
