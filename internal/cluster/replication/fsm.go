// Package replication provides the consensus state machine for DocMesh.
package replication

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/hashicorp/raft"

	"github.com/arvhn/docmesh-go/internal/indexer"
)

// entryOp is the operation carried by a replicated log entry.
type entryOp uint8

const (
	opUpsert entryOp = 1
	opDelete entryOp = 2
)

// logEntry is the wire form of a replicated write.
type logEntry struct {
	Op      entryOp `json:"op"`
	DocID   string  `json:"doc_id"`
	Payload []byte  `json:"payload,omitempty"`
}

// fsm applies committed log entries by handing them to the batch
// indexing pipeline. Apply must stay deterministic: same input, same
// effect, regardless of which node runs it.
type fsm struct {
	pipeline *indexer.BatchIndexer
	logger   *slog.Logger

	appliedIndex atomic.Uint64
}

func newFSM(pipeline *indexer.BatchIndexer, logger *slog.Logger) *fsm {
	if logger == nil {
		logger = slog.Default()
	}
	return &fsm{pipeline: pipeline, logger: logger}
}

// Apply is called by raft for every committed log entry.
func (f *fsm) Apply(l *raft.Log) any {
	var entry logEntry
	if err := json.Unmarshal(l.Data, &entry); err != nil {
		f.logger.Error("undecodable replicated entry, skipping",
			"index", l.Index,
			"error", err)
		f.appliedIndex.Store(l.Index)
		return fmt.Errorf("decode entry at index %d: %w", l.Index, err)
	}

	w := indexer.Write{DocID: entry.DocID, Payload: entry.Payload}
	if entry.Op == opDelete {
		w.Op = indexer.OpDelete
	}

	if !f.pipeline.Enqueue(w) {
		// Pipeline is draining for shutdown; the entry stays in the
		// replicated log and is re-applied on restart.
		f.logger.Warn("indexing pipeline stopped, committed entry deferred to restart",
			"index", l.Index,
			"doc_id", entry.DocID)
	}

	f.appliedIndex.Store(l.Index)
	return nil
}

// AppliedIndex returns the index of the last applied entry.
func (f *fsm) AppliedIndex() uint64 {
	return f.appliedIndex.Load()
}

// fsmState is the serialized snapshot payload.
type fsmState struct {
	AppliedIndex uint64 `json:"applied_index"`
}

// Snapshot captures a point-in-time marker of applied state. Document
// data lives in the store; the snapshot only needs the resume marker.
func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{state: fsmState{AppliedIndex: f.appliedIndex.Load()}}, nil
}

// Restore replaces FSM state from a snapshot stream.
func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	gz, err := gzip.NewReader(rc)
	if err != nil {
		return fmt.Errorf("open snapshot stream: %w", err)
	}
	defer gz.Close()

	var state fsmState
	if err := json.NewDecoder(gz).Decode(&state); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.appliedIndex.Store(state.AppliedIndex)
	return nil
}

// fsmSnapshot persists fsmState gzip-compressed.
type fsmSnapshot struct {
	state fsmState
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	gz := gzip.NewWriter(sink)
	if err := json.NewEncoder(gz).Encode(s.state); err != nil {
		sink.Cancel()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		sink.Cancel()
		return fmt.Errorf("close snapshot stream: %w", err)
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
