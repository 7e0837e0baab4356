// Package pprof serves runtime profiles on localhost while a long-running
// command is active.
package pprof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"
)

// Server wraps the net/http/pprof handlers.
type Server struct {
	server   *http.Server
	listener net.Listener
	port     int
	log      *slog.Logger
}

// NewServer creates a profiling server that reports serve errors to log.
func NewServer(log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Server{log: log}
}

// Start binds to localhost on port and serves in the background. Port 0
// picks a free port. It returns the bound port.
func (s *Server) Start(port int) (int, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("bind to %s: %w", addr, err)
	}
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	// dedicated mux so nothing registered on http.DefaultServeMux leaks out
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("pprof server stopped", "error", err)
		}
	}()
	s.log.Debug("pprof listening", "port", s.port)
	return s.port, nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Stop shuts the server down. It is a no-op if Start was never called.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// PrintUsage prints go tool pprof commands for the server on port.
func PrintUsage(w io.Writer, port int) {
	base := fmt.Sprintf("http://127.0.0.1:%d/debug/pprof", port)
	fmt.Fprintf(w, "pprof server: %s/\n", base)
	fmt.Fprintf(w, "  go tool pprof %s/profile?seconds=30   # CPU\n", base)
	fmt.Fprintf(w, "  go tool pprof %s/heap                 # memory\n", base)
	fmt.Fprintf(w, "  curl '%s/goroutine?debug=2'           # stacks\n", base)
}
