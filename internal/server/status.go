package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/reindex/internal/debug"
	"github.com/standardbeagle/reindex/internal/metrics"
	"github.com/standardbeagle/reindex/internal/version"
)

// SocketPathForRoot returns the status socket path for a project root, so
// that servers for different projects can run side by side.
func SocketPathForRoot(root string) string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("reindex-%08x.sock", uint32(xxhash.Sum64String(absRoot))))
}

// statusServer answers status queries over a Unix socket while the session runs.
type statusServer struct {
	owner      *Server
	socketPath string
	listener   net.Listener
	server     *http.Server
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

func newStatusServer(owner *Server, socketPath string) *statusServer {
	return &statusServer{owner: owner, socketPath: socketPath}
}

// Start begins listening for client connections
func (s *statusServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("status server already running")
	}

	// Remove a stale socket left by a crashed server
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	s.listener = listener
	_ = os.Chmod(s.socketPath, 0600)

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/shutdown", s.handleShutdown)
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			debug.Warnf(debug.ComponentIndex, "status server error: %v", err)
		}
	}()

	debug.Infof(debug.ComponentIndex, "status socket listening on %s (pid: %d)", s.socketPath, os.Getpid())
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *statusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := s.owner.snapshot()
	resp.Counters = metrics.Default().Snapshot()
	writeJSON(w, resp)
}

func (s *statusServer) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, PingResponse{
		Uptime:  time.Since(s.owner.startTime).Seconds(),
		Version: version.Version,
		BuildID: version.BuildID(),
	})
}

// handleShutdown answers, then signals the owner. The owner closes the
// session, which in turn shuts this server down.
func (s *statusServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ShutdownResponse{Success: true, Message: "server shutting down"})
	s.owner.requestShutdown()
}

// Shutdown gracefully stops serving and removes the socket.
func (s *statusServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("status server shutdown error: %w", err)
	}
	s.wg.Wait()
	_ = os.Remove(s.socketPath)
	debug.Infof(debug.ComponentIndex, "status socket closed")
	return nil
}
