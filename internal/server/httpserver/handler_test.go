package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arvhn/docmesh-go/internal/cluster/replication"
	"github.com/arvhn/docmesh-go/internal/indexer"
	"github.com/arvhn/docmesh-go/internal/infra/pool"
	"github.com/arvhn/docmesh-go/internal/storage"
	"github.com/arvhn/docmesh-go/internal/telemetry/metric"
)

type fakeReplicator struct {
	writes      []indexer.Write
	writeErr    error
	readHealthy bool
	snapshots   int
	snapshotErr error
}

func (f *fakeReplicator) Write(w indexer.Write) error {
	f.writes = append(f.writes, w)
	return f.writeErr
}

func (f *fakeReplicator) RefreshCatchupStatus(verbose bool) replication.CatchupStatus {
	return replication.CatchupStatus{ReadHealthy: f.readHealthy, IsLeader: true, Leader: "127.0.0.1:8107"}
}

func (f *fakeReplicator) ReadHealthy() bool { return f.readHealthy }

func (f *fakeReplicator) Stats() map[string]string {
	return map[string]string{"state": "Leader"}
}

func (f *fakeReplicator) DoSnapshot() error {
	f.snapshots++
	return f.snapshotErr
}

type fakeStore struct {
	docs map[string][]byte
}

func (f *fakeStore) Get(key []byte) ([]byte, error) {
	doc, ok := f.docs[string(key)]
	if !ok {
		return nil, storage.ErrKeyNotFound
	}
	return doc, nil
}

func newTestHandler(rep *fakeReplicator, docs map[string][]byte) *Handler {
	return NewHandler(rep, &fakeStore{docs: docs}, metric.NewRegistry(), nil, nil)
}

func TestHandleHealth(t *testing.T) {
	tests := []struct {
		name       string
		healthy    bool
		wantStatus int
	}{
		{"caught up", true, http.StatusOK},
		{"lagging", false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&fakeReplicator{readHealthy: tt.healthy}, nil)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleStatus(t *testing.T) {
	h := newTestHandler(&fakeReplicator{readHealthy: true}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Replication replication.CatchupStatus `json:"replication"`
		Raft        map[string]string         `json:"raft"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Replication.IsLeader {
		t.Error("status should carry the replication view")
	}
	if body.Raft["state"] != "Leader" {
		t.Errorf("raft stats = %v", body.Raft)
	}
}

func TestHandleGetDocument(t *testing.T) {
	doc := []byte(`{"title":"stored"}`)
	h := newTestHandler(&fakeReplicator{}, map[string][]byte{"doc-1": doc})

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/doc-1", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if rec.Body.String() != string(doc) {
			t.Errorf("body = %q, want %q", rec.Body.String(), doc)
		}
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents/absent", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestHandleUpsertDocument(t *testing.T) {
	t.Run("valid document is proposed", func(t *testing.T) {
		rep := &fakeReplicator{}
		h := newTestHandler(rep, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/documents/doc-9", strings.NewReader(`{"a":1}`))
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}
		if len(rep.writes) != 1 {
			t.Fatalf("writes = %d, want 1", len(rep.writes))
		}
		w := rep.writes[0]
		if w.DocID != "doc-9" || w.Op != indexer.OpUpsert || string(w.Payload) != `{"a":1}` {
			t.Errorf("proposed write = %+v", w)
		}
	})

	t.Run("invalid JSON is rejected", func(t *testing.T) {
		rep := &fakeReplicator{}
		h := newTestHandler(rep, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/documents/doc-9", strings.NewReader(`{broken`))
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
		if len(rep.writes) != 0 {
			t.Error("invalid body must not be proposed")
		}
	})

	t.Run("shutdown surfaces as 503", func(t *testing.T) {
		rep := &fakeReplicator{writeErr: replication.ErrShuttingDown}
		h := newTestHandler(rep, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/documents/doc-9", strings.NewReader(`{}`))
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestHandleDeleteDocument(t *testing.T) {
	rep := &fakeReplicator{}
	h := newTestHandler(rep, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/documents/doc-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(rep.writes) != 1 || rep.writes[0].Op != indexer.OpDelete {
		t.Errorf("writes = %+v", rep.writes)
	}
}

func TestHandleSnapshot(t *testing.T) {
	rep := &fakeReplicator{}
	h := newTestHandler(rep, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/operations/snapshot", nil))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if rep.snapshots != 1 {
		t.Errorf("snapshots = %d, want 1", rep.snapshots)
	}
}

func TestHandleUpsertDocument_PooledWrites(t *testing.T) {
	workers, err := pool.New("api-test", 2, nil)
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}

	rep := &fakeReplicator{}
	h := NewHandler(rep, &fakeStore{}, nil, workers, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/documents/doc-p", strings.NewReader(`{"a":1}`))
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if len(rep.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(rep.writes))
	}

	// A drained pool refuses writes instead of blocking them.
	workers.Shutdown()
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/documents/doc-p", strings.NewReader(`{"a":2}`))
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status after pool shutdown = %d, want 503", rec.Code)
	}
}

func TestHandleMetrics(t *testing.T) {
	h := newTestHandler(&fakeReplicator{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "docmesh_") {
		t.Error("metrics output should contain docmesh series")
	}
}
