// Package replication provides the consensus state machine for DocMesh.
package replication

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/arvhn/docmesh-go/internal/cluster/peering"
	"github.com/arvhn/docmesh-go/internal/indexer"
	"github.com/arvhn/docmesh-go/internal/infra/shutdown"
	"github.com/arvhn/docmesh-go/internal/telemetry/metric"
)

// ErrNotStarted is returned for operations on an unstarted State.
var ErrNotStarted = errors.New("replication: not started")

// ErrShuttingDown is returned when a proposal arrives after Shutdown.
var ErrShuttingDown = errors.New("replication: shutting down")

// applyTimeout bounds a single proposal.
const applyTimeout = 10 * time.Second

// reconfigureTimeout bounds a single membership change.
const reconfigureTimeout = 10 * time.Second

// snapshotRetain is how many completed snapshots are kept on disk.
const snapshotRetain = 2

// Options configures a State.
type Options struct {
	// HealthyReadLag is the applied-log lag above which reads are
	// considered stale.
	HealthyReadLag uint64
	// HealthyWriteLag is the applied-log lag above which writes are
	// considered unhealthy.
	HealthyWriteLag uint64
	// Logger for replication events.
	Logger *slog.Logger
	// Metrics registry; may be nil.
	Metrics *metric.Registry
}

// CatchupStatus is a point-in-time view of this replica's lag.
type CatchupStatus struct {
	AppliedIndex uint64 `json:"applied_index"`
	CommitIndex  uint64 `json:"commit_index"`
	Lag          uint64 `json:"lag"`
	ReadHealthy  bool   `json:"read_healthy"`
	WriteHealthy bool   `json:"write_healthy"`
	Leader       string `json:"leader"`
	IsLeader     bool   `json:"is_leader"`
}

// State is the consensus state machine. It owns the Raft node and its
// on-disk stores, and survives from Start until Shutdown.
type State struct {
	opts     Options
	logger   *slog.Logger
	pipeline *indexer.BatchIndexer

	raft        *raft.Raft
	fsm         *fsm
	logStore    *raftboltdb.BoltStore
	stableStore *raftboltdb.BoltStore

	endpoint peering.Endpoint
	apiPort  uint16
	flag     *shutdown.Flag

	started  atomic.Bool
	stopping atomic.Bool

	// Last computed catch-up view, refreshed by the supervisor.
	readHealthy  atomic.Bool
	writeHealthy atomic.Bool
}

// New creates an unstarted State. Committed writes flow into pipeline.
func New(pipeline *indexer.BatchIndexer, opts Options) *State {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HealthyReadLag == 0 {
		opts.HealthyReadLag = 1000
	}
	if opts.HealthyWriteLag == 0 {
		opts.HealthyWriteLag = 500
	}

	return &State{
		opts:     opts,
		logger:   opts.Logger,
		pipeline: pipeline,
	}
}

// Start brings up the Raft node on the peering transport.
//
// nodesConfig is the already-normalized membership blob; it seeds the
// cluster configuration on first boot. flag is observed to refuse new
// proposals once shutdown has begun.
func (s *State) Start(transport *peering.Transport, endpoint peering.Endpoint, apiPort uint16,
	electionTimeout time.Duration, snapshotInterval time.Duration,
	stateDir string, nodesConfig string, flag *shutdown.Flag) error {

	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	s.endpoint = endpoint
	s.apiPort = apiPort
	s.flag = flag
	s.fsm = newFSM(s.pipeline, s.logger)

	cfg := raft.DefaultConfig()
	cfg.LocalID = raft.ServerID(endpoint.String())
	cfg.Logger = &raftLogger{logger: s.logger}
	if electionTimeout > 0 {
		cfg.ElectionTimeout = electionTimeout
		cfg.HeartbeatTimeout = electionTimeout
		cfg.LeaderLeaseTimeout = electionTimeout / 2
		cfg.CommitTimeout = 50 * time.Millisecond
	}
	if snapshotInterval > 0 {
		cfg.SnapshotInterval = snapshotInterval
	}
	// Manual snapshots are driven by the supervisor's cadence; keep
	// the size-based trigger as a backstop.
	cfg.SnapshotThreshold = 8192

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(stateDir, "raft-log.db"))
	if err != nil {
		return fmt.Errorf("create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(stateDir, "raft-stable.db"))
	if err != nil {
		logStore.Close()
		return fmt.Errorf("create stable store: %w", err)
	}

	snapStore, err := raft.NewFileSnapshotStore(stateDir, snapshotRetain, os.Stderr)
	if err != nil {
		stableStore.Close()
		logStore.Close()
		return fmt.Errorf("create snapshot store: %w", err)
	}

	hasState, err := raft.HasExistingState(logStore, stableStore, snapStore)
	if err != nil {
		stableStore.Close()
		logStore.Close()
		return fmt.Errorf("check existing state: %w", err)
	}

	r, err := raft.NewRaft(cfg, s.fsm, logStore, stableStore, snapStore, transport.Raft())
	if err != nil {
		stableStore.Close()
		logStore.Close()
		return fmt.Errorf("create raft: %w", err)
	}

	s.raft = r
	s.logStore = logStore
	s.stableStore = stableStore

	if !hasState {
		servers, err := serversFromConfig(nodesConfig)
		if err != nil {
			return fmt.Errorf("seed cluster configuration: %w", err)
		}
		if err := r.BootstrapCluster(raft.Configuration{Servers: servers}).Error(); err != nil {
			return fmt.Errorf("bootstrap cluster: %w", err)
		}
		s.logger.Info("cluster configuration seeded",
			"self", endpoint.String(),
			"peers", len(servers))
	}

	s.started.Store(true)
	s.logger.Info("replication state started",
		"state_dir", stateDir,
		"election_timeout", electionTimeout,
		"snapshot_interval", snapshotInterval)
	return nil
}

// serversFromConfig converts a nodes-config blob into a Raft server list.
func serversFromConfig(config string) ([]raft.Server, error) {
	nodes, err := parseNodes(config)
	if err != nil {
		return nil, err
	}

	servers := make([]raft.Server, 0, len(nodes))
	for _, n := range nodes {
		servers = append(servers, raft.Server{
			ID:      raft.ServerID(n.PeerAddr),
			Address: raft.ServerAddress(n.PeerAddr),
		})
	}
	return servers, nil
}

// Write proposes a document mutation through the replicated log.
// Succeeds only on the leader; committed entries reach every node's
// indexing pipeline via the FSM.
func (s *State) Write(w indexer.Write) error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	if s.stopping.Load() || (s.flag != nil && s.flag.IsSet()) {
		return ErrShuttingDown
	}

	entry := logEntry{Op: opUpsert, DocID: w.DocID, Payload: w.Payload}
	if w.Op == indexer.OpDelete {
		entry.Op = opDelete
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	f := s.raft.Apply(data, applyTimeout)
	if err := f.Error(); err != nil {
		return fmt.Errorf("apply entry: %w", err)
	}
	if resp := f.Response(); resp != nil {
		if respErr, ok := resp.(error); ok {
			return respErr
		}
	}
	return nil
}

// RefreshNodes pushes the latest membership view into the cluster.
//
// Followers ignore the call; the leader diffs the desired set against
// the live configuration and issues AddVoter/RemoveServer for the
// changes. Malformed config is an error and leaves membership alone.
func (s *State) RefreshNodes(nodesConfig string) error {
	if !s.started.Load() {
		return ErrNotStarted
	}

	desired, err := parseNodes(nodesConfig)
	if err != nil {
		return err
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.ClusterPeers.Set(float64(len(desired)))
	}

	if s.raft.State() != raft.Leader {
		return nil
	}

	cfgFuture := s.raft.GetConfiguration()
	if err := cfgFuture.Error(); err != nil {
		return fmt.Errorf("get configuration: %w", err)
	}
	current := cfgFuture.Configuration().Servers

	desiredSet := make(map[raft.ServerID]raft.ServerAddress, len(desired))
	for _, n := range desired {
		desiredSet[raft.ServerID(n.PeerAddr)] = raft.ServerAddress(n.PeerAddr)
	}

	currentSet := make(map[raft.ServerID]struct{}, len(current))
	for _, srv := range current {
		currentSet[srv.ID] = struct{}{}
	}

	for id, addr := range desiredSet {
		if _, ok := currentSet[id]; ok {
			continue
		}
		s.logger.Info("adding cluster member", "peer", id)
		if err := s.raft.AddVoter(id, addr, 0, reconfigureTimeout).Error(); err != nil {
			return fmt.Errorf("add voter %s: %w", id, err)
		}
	}

	for _, srv := range current {
		if _, ok := desiredSet[srv.ID]; ok {
			continue
		}
		s.logger.Info("removing cluster member", "peer", srv.ID)
		if err := s.raft.RemoveServer(srv.ID, 0, reconfigureTimeout).Error(); err != nil {
			return fmt.Errorf("remove server %s: %w", srv.ID, err)
		}
	}

	return nil
}

// RefreshCatchupStatus recomputes this replica's lag relative to the
// committed log position. verbose controls whether the outcome is
// logged; metrics and the health gauges update either way.
func (s *State) RefreshCatchupStatus(verbose bool) CatchupStatus {
	if !s.started.Load() {
		return CatchupStatus{}
	}

	applied := s.raft.AppliedIndex()
	commit := s.raft.CommitIndex()

	var lag uint64
	if commit > applied {
		lag = commit - applied
	}

	status := CatchupStatus{
		AppliedIndex: applied,
		CommitIndex:  commit,
		Lag:          lag,
		ReadHealthy:  lag <= s.opts.HealthyReadLag,
		WriteHealthy: lag <= s.opts.HealthyWriteLag,
		IsLeader:     s.raft.State() == raft.Leader,
	}
	addr, _ := s.raft.LeaderWithID()
	status.Leader = string(addr)

	s.readHealthy.Store(status.ReadHealthy)
	s.writeHealthy.Store(status.WriteHealthy)

	if s.opts.Metrics != nil {
		s.opts.Metrics.CatchupLag.Set(float64(lag))
		if status.ReadHealthy {
			s.opts.Metrics.CaughtUp.Set(1)
		} else {
			s.opts.Metrics.CaughtUp.Set(0)
		}
	}

	if verbose {
		s.logger.Info("catch-up status",
			"applied", applied,
			"commit", commit,
			"lag", lag,
			"read_healthy", status.ReadHealthy,
			"write_healthy", status.WriteHealthy,
			"leader", status.Leader)
	}

	return status
}

// ReadHealthy reports whether the last refresh found the replica
// within the healthy read lag.
func (s *State) ReadHealthy() bool {
	return s.readHealthy.Load()
}

// DoSnapshot triggers a log compaction snapshot. A no-op result
// (nothing new since the last snapshot) is absorbed silently.
func (s *State) DoSnapshot() error {
	if !s.started.Load() {
		return ErrNotStarted
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.SnapshotTriggers.Inc()
	}

	err := s.raft.Snapshot().Error()
	if err != nil && errors.Is(err, raft.ErrNothingNewToSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	s.logger.Info("replication snapshot completed")
	return nil
}

// Stats returns the raw Raft statistics for diagnostics.
func (s *State) Stats() map[string]string {
	if !s.started.Load() {
		return nil
	}
	return s.raft.Stats()
}

// Shutdown stops accepting proposals, drains what is pending and
// stops the Raft node. Store close failures are logged, not returned,
// because teardown must keep moving.
func (s *State) Shutdown() error {
	if !s.started.Load() {
		return nil
	}
	s.stopping.Store(true)

	if err := s.raft.Shutdown().Error(); err != nil {
		s.logger.Error("raft shutdown failed", "error", err)
	}

	if err := s.stableStore.Close(); err != nil {
		s.logger.Error("close stable store failed", "error", err)
	}
	if err := s.logStore.Close(); err != nil {
		s.logger.Error("close log store failed", "error", err)
	}

	s.started.Store(false)
	s.logger.Info("replication state stopped")
	return nil
}
