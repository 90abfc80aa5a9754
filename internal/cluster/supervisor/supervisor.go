// Package supervisor drives the periodic cluster maintenance loop.
//
// The loop owns three duties on fixed cadences: refreshing the
// membership view from the nodes file, recomputing catch-up status,
// and triggering log compaction snapshots. It runs until the shutdown
// flag is raised or the peering transport requests quit.
package supervisor

import (
	"log/slog"
	"time"

	"github.com/arvhn/docmesh-go/internal/cluster/nodesfile"
	"github.com/arvhn/docmesh-go/internal/cluster/peering"
	"github.com/arvhn/docmesh-go/internal/cluster/replication"
	"github.com/arvhn/docmesh-go/internal/infra/shutdown"
	"github.com/arvhn/docmesh-go/internal/telemetry/metric"
)

// Cadences, in ticks. One tick is normally one second.
const (
	refreshNodesEvery   = 10
	catchupEvery        = 3
	catchupVerboseEvery = 9
	snapshotEvery       = 60
)

// Replicator is the slice of the replication state the loop drives.
type Replicator interface {
	RefreshNodes(nodesConfig string) error
	RefreshCatchupStatus(verbose bool) replication.CatchupStatus
	DoSnapshot() error
}

// QuitSignaler reports whether a peer-initiated quit has been requested.
type QuitSignaler interface {
	QuitRequested() bool
}

// Supervisor owns the maintenance loop for one node.
type Supervisor struct {
	flag        *shutdown.Flag
	replication Replicator
	transport   QuitSignaler

	endpoint  peering.Endpoint
	apiPort   uint16
	nodesPath string

	logger  *slog.Logger
	metrics *metric.Registry

	// tickInterval is overridable in tests.
	tickInterval time.Duration
}

// Options configures a Supervisor.
type Options struct {
	Flag        *shutdown.Flag
	Replication Replicator
	Transport   QuitSignaler
	Endpoint    peering.Endpoint
	APIPort     uint16
	NodesPath   string
	Logger      *slog.Logger
	Metrics     *metric.Registry
}

// New creates a Supervisor. Flag, Replication and Transport are required.
func New(opts Options) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Supervisor{
		flag:         opts.Flag,
		replication:  opts.Replication,
		transport:    opts.Transport,
		endpoint:     opts.Endpoint,
		apiPort:      opts.APIPort,
		nodesPath:    opts.NodesPath,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		tickInterval: time.Second,
	}
}

// Run executes the maintenance loop until shutdown. It blocks and is
// meant to be the body of the cluster goroutine.
func (s *Supervisor) Run() {
	s.logger.Info("cluster supervisor running",
		"nodes_path", s.nodesPath,
		"endpoint", s.endpoint.String())

	// Ticking before the first sleep makes the boot-time node refresh
	// immediate instead of one interval late.
	counter := 0
	for {
		if s.flag.IsSet() || s.transport.QuitRequested() {
			break
		}

		s.tick(counter)
		counter++
		time.Sleep(s.tickInterval)
	}

	s.logger.Info("cluster supervisor stopped")
}

// tick performs the duties that are due at the given counter value.
func (s *Supervisor) tick(counter int) {
	if s.metrics != nil {
		s.metrics.SupervisorTicks.Inc()
	}

	if counter%refreshNodesEvery == 0 {
		if err := s.refreshNodes(); err != nil {
			s.logger.Warn("membership refresh failed, keeping previous view", "error", err)
			if s.metrics != nil {
				s.metrics.NodesRefreshFailures.Inc()
			}
			// A failed refresh skips the remaining duties; they run
			// again on their next cadence.
			return
		}
	}

	if counter%catchupEvery == 0 {
		verbose := counter%catchupVerboseEvery == 0
		s.replication.RefreshCatchupStatus(verbose)
	}

	if counter%snapshotEvery == 0 {
		if err := s.replication.DoSnapshot(); err != nil {
			s.logger.Warn("periodic snapshot failed", "error", err)
		}
	}
}

// refreshNodes re-reads the nodes file and pushes the view into the
// replication layer. An unconfigured path resolves to single-node mode.
func (s *Supervisor) refreshNodes() error {
	raw, err := nodesfile.Load(s.nodesPath)
	if err != nil {
		return err
	}

	config := replication.NormalizeNodesConfig(s.endpoint, s.apiPort, raw)
	return s.replication.RefreshNodes(config)
}
