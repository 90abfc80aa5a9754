// Package httpserver provides the public HTTP API for DocMesh.
//
// It uses the Go standard library net/http for implementation,
// exposing document ingestion, cluster status and operational
// endpoints. The server's lifetime brackets the node's lifetime:
// main blocks on Run and tears the cluster down once it returns.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// stopTimeout bounds the graceful drain of in-flight requests.
const stopTimeout = 10 * time.Second

// Server is the public API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	stopped    atomic.Bool
}

// New creates a server bound to addr, serving handler.
func New(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until Stop is called. It blocks, mirroring the role of
// the process's main loop, and returns nil on a clean stop.
func (s *Server) Run() error {
	s.logger.Info("api server listening", "addr", s.httpServer.Addr)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop drains in-flight requests and closes the listener. Safe to
// call more than once.
func (s *Server) Stop() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info("api server stopping")
	return s.httpServer.Shutdown(ctx)
}
