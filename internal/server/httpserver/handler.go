// Package httpserver provides the public HTTP API for DocMesh.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/arvhn/docmesh-go/internal/cluster/replication"
	"github.com/arvhn/docmesh-go/internal/indexer"
	"github.com/arvhn/docmesh-go/internal/infra/buildinfo"
	"github.com/arvhn/docmesh-go/internal/infra/pool"
	"github.com/arvhn/docmesh-go/internal/storage"
	"github.com/arvhn/docmesh-go/internal/telemetry/logger"
	"github.com/arvhn/docmesh-go/internal/telemetry/metric"
)

// maxDocumentBytes caps a single ingested document.
const maxDocumentBytes = 4 << 20

// Replicator is the slice of the replication state the API needs.
type Replicator interface {
	Write(w indexer.Write) error
	RefreshCatchupStatus(verbose bool) replication.CatchupStatus
	ReadHealthy() bool
	Stats() map[string]string
	DoSnapshot() error
}

// DocumentReader serves point reads from the local document store.
type DocumentReader interface {
	Get(key []byte) ([]byte, error)
}

// Handler routes API requests to the replication and storage layers.
type Handler struct {
	replication Replicator
	store       DocumentReader
	metrics     *metric.Registry
	workers     *pool.Pool
	logger      *slog.Logger
	mux         *http.ServeMux
}

// NewHandler wires the API routes. workers, when non-nil, is the pool
// mutating requests are executed on.
func NewHandler(rep Replicator, store DocumentReader, metrics *metric.Registry, workers *pool.Pool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		replication: rep,
		store:       store,
		metrics:     metrics,
		workers:     workers,
		logger:      logger,
		mux:         http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes.
func (h *Handler) registerRoutes() {
	// Health and diagnostics
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /status", h.handleStatus)
	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics.Handler())
	}

	// Document endpoints
	h.mux.HandleFunc("GET /documents/{id}", h.handleGetDocument)
	h.mux.HandleFunc("POST /documents/{id}", h.handleUpsertDocument)
	h.mux.HandleFunc("DELETE /documents/{id}", h.handleDeleteDocument)

	// Operational endpoints
	h.mux.HandleFunc("POST /operations/snapshot", h.handleSnapshot)
}

// handleHealth reports whether this replica is caught up enough to
// serve reads. Load balancers key off the status code.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.replication.ReadHealthy() {
		h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	h.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
}

// handleStatus exposes replication diagnostics and build identity.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := h.replication.RefreshCatchupStatus(false)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"build":       buildinfo.Get(),
		"replication": status,
		"raft":        h.replication.Stats(),
	})
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	doc, err := h.store.Get([]byte(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		h.writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		logger.L(r.Context()).Error("document read failed", "doc_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "read failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

func (h *Handler) handleUpsertDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if len(payload) > maxDocumentBytes {
		h.writeError(w, http.StatusRequestEntityTooLarge, "document too large")
		return
	}
	if !json.Valid(payload) {
		h.writeError(w, http.StatusBadRequest, "document must be valid JSON")
		return
	}

	ok, err := h.propose(indexer.Write{DocID: id, Payload: payload, Op: indexer.OpUpsert})
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "not accepting writes")
		return
	}
	if err != nil {
		h.writeReplicationError(r.Context(), w, id, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ok, err := h.propose(indexer.Write{DocID: id, Op: indexer.OpDelete})
	if !ok {
		h.writeError(w, http.StatusServiceUnavailable, "not accepting writes")
		return
	}
	if err != nil {
		h.writeReplicationError(r.Context(), w, id, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

// propose runs the replication proposal on the worker pool when one
// is attached. ok is false when the pool is no longer accepting work.
func (h *Handler) propose(write indexer.Write) (ok bool, err error) {
	if h.workers == nil {
		return true, h.replication.Write(write)
	}

	done := make(chan struct{})
	submitted := h.workers.Submit(func() {
		defer close(done)
		err = h.replication.Write(write)
	})
	if !submitted {
		return false, nil
	}
	<-done
	return true, err
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if err := h.replication.DoSnapshot(); err != nil {
		logger.L(r.Context()).Error("snapshot trigger failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "snapshot failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{"success": true})
}

// writeReplicationError maps proposal failures onto HTTP statuses.
// Non-leader and shutdown conditions are retryable elsewhere, so they
// surface as 503 rather than 500.
func (h *Handler) writeReplicationError(ctx context.Context, w http.ResponseWriter, docID string, err error) {
	if errors.Is(err, replication.ErrShuttingDown) || errors.Is(err, replication.ErrNotStarted) {
		h.writeError(w, http.StatusServiceUnavailable, "not accepting writes")
		return
	}

	logger.L(ctx).Error("document write failed", "doc_id", docID, "error", err)
	h.writeError(w, http.StatusServiceUnavailable, "write not accepted: "+err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"error": message})
}
