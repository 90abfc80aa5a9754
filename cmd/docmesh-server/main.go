// Package main provides the entry point for docmesh-server.
//
// docmesh-server is the node process for DocMesh, a clustered,
// consensus-replicated document indexing service. One process hosts
// the public HTTP API, the peering channel and the replicated
// indexing pipeline.
package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/arvhn/docmesh-go/internal/cluster/nodesfile"
	"github.com/arvhn/docmesh-go/internal/cluster/peering"
	"github.com/arvhn/docmesh-go/internal/cluster/replication"
	"github.com/arvhn/docmesh-go/internal/cluster/supervisor"
	"github.com/arvhn/docmesh-go/internal/indexer"
	"github.com/arvhn/docmesh-go/internal/infra/alloctune"
	"github.com/arvhn/docmesh-go/internal/infra/buildinfo"
	"github.com/arvhn/docmesh-go/internal/infra/confloader"
	"github.com/arvhn/docmesh-go/internal/infra/pool"
	"github.com/arvhn/docmesh-go/internal/infra/shutdown"
	"github.com/arvhn/docmesh-go/internal/server/config"
	"github.com/arvhn/docmesh-go/internal/server/httpserver"
	"github.com/arvhn/docmesh-go/internal/storage"
	"github.com/arvhn/docmesh-go/internal/telemetry/logger"
	"github.com/arvhn/docmesh-go/internal/telemetry/metric"
)

// peeringStopGrace is how long peers get to observe the departure
// before the peering listener is torn down.
const peeringStopGrace = 2 * time.Second

func main() {
	app := &cli.App{
		Name:    "docmesh-server",
		Usage:   "DocMesh document indexing node",
		Version: buildinfo.String(),
		Flags:   serverFlags(),
		Action:  run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// serverFlags returns the CLI flags. Every flag overrides the
// matching config file key.
func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the YAML configuration file",
			EnvVars: []string{"DOCMESH_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "api-address",
			Usage: "Address the public API listens on",
		},
		&cli.UintFlag{
			Name:  "api-port",
			Usage: "Port the public API listens on",
		},
		&cli.StringFlag{
			Name:  "peering-address",
			Usage: "Explicit IPv4 address for the peering channel",
		},
		&cli.UintFlag{
			Name:  "peering-port",
			Usage: "Port the peering channel listens on",
		},
		&cli.StringFlag{
			Name:  "peering-subnet",
			Usage: "CIDR block restricting peering address auto-detection",
		},
		&cli.StringFlag{
			Name:  "nodes",
			Usage: "Path to the cluster membership file",
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Directory holding documents and replication state (must exist)",
		},
		&cli.StringFlag{
			Name:  "node-id",
			Usage: "Stable identifier for this node (generated when empty)",
		},
		&cli.IntFlag{
			Name:  "snapshot-interval-seconds",
			Usage: "Seconds between automatic replication snapshots",
		},
		&cli.IntFlag{
			Name:  "thread-pool-size",
			Usage: "Workers per pool (0 = 8x detected CPUs)",
		},
		&cli.Uint64Flag{
			Name:  "healthy-read-lag",
			Usage: "Applied-log lag beyond which reads degrade",
		},
		&cli.Uint64Flag{
			Name:  "healthy-write-lag",
			Usage: "Applied-log lag beyond which writes degrade",
		},
		&cli.Float64Flag{
			Name:  "max-memory-ratio",
			Usage: "Fraction of machine memory the process may use",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: json, text",
		},
		&cli.StringFlag{
			Name:   "master",
			Usage:  "Removed; use the nodes file to form a cluster",
			Hidden: true,
		},
		&cli.StringFlag{
			Name:   "search-only-api-key",
			Usage:  "Deprecated; use scoped API keys",
			Hidden: true,
		},
	}
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slg, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting docmesh-server",
		"version", buildinfo.Get().Version,
		"commit", buildinfo.Get().Commit,
		"config", c.String("config"))

	if c.IsSet("search-only-api-key") {
		log.Warn("the search-only-api-key option is deprecated and ignored, use scoped API keys")
	}

	if path := c.String("config"); path != "" {
		watcher, werr := watchConfig(path, slg)
		if werr != nil {
			log.Warn("config watcher unavailable", "error", werr)
		} else {
			defer watcher.Stop()
		}
	}

	tuner := alloctune.Probe(cfg.Resources.MaxMemoryRatio, slg)
	tuner.Start()

	nodeID := config.EnsureNodeID(cfg, slg)
	slg = slg.With("node_id", nodeID)

	serverPool, err := pool.New("server", pool.DefaultSize(cfg.Resources.ServerWorkers), slg)
	if err != nil {
		return fmt.Errorf("create server pool: %w", err)
	}
	appPool, err := pool.New("app", pool.DefaultSize(cfg.Resources.AppWorkers), slg)
	if err != nil {
		return fmt.Errorf("create app pool: %w", err)
	}

	// Documents and replication state live side by side under the
	// data dir, so one volume carries the whole node.
	store, err := storage.Open(filepath.Join(cfg.Storage.DataDir, "db"), slg)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	metaDir := filepath.Join(cfg.Storage.DataDir, "meta")

	metrics := metric.NewRegistry()

	pipeline := indexer.New(store, indexer.DefaultConfig(), slg, metrics)
	serverPool.Submit(pipeline.Run)

	state := replication.New(pipeline, replication.Options{
		HealthyReadLag:  cfg.Cluster.HealthyReadLag,
		HealthyWriteLag: cfg.Cluster.HealthyWriteLag,
		Logger:          slg,
		Metrics:         metrics,
	})

	flag := shutdown.NewFlag()
	shutdown.BindSignals(flag)

	endpoint, err := peering.Resolve(cfg.Peering.Address, cfg.Peering.Subnet, cfg.Peering.Port, slg)
	if err != nil {
		return fmt.Errorf("resolve peering endpoint: %w", err)
	}

	raw, err := nodesfile.Load(cfg.Peering.NodesFile)
	if err != nil {
		return fmt.Errorf("read nodes file: %w", err)
	}
	nodesConfig := replication.NormalizeNodesConfig(endpoint, cfg.Server.APIPort, raw)

	transport := peering.NewTransport(slg)
	if err := transport.Attach(endpoint); err != nil {
		return fmt.Errorf("bind peering channel: %w", err)
	}
	if err := transport.Start(endpoint); err != nil {
		return fmt.Errorf("start peering channel: %w", err)
	}

	err = state.Start(transport, endpoint, cfg.Server.APIPort,
		time.Duration(cfg.Cluster.ElectionTimeoutMs)*time.Millisecond,
		time.Duration(cfg.Cluster.SnapshotIntervalSeconds)*time.Second,
		metaDir, nodesConfig, flag)
	if err != nil {
		return fmt.Errorf("start replication: %w", err)
	}

	apiAddr := net.JoinHostPort(cfg.Server.APIAddress, strconv.Itoa(int(cfg.Server.APIPort)))
	handler := httpserver.NewHandler(state, store, metrics, appPool, slg)
	api := httpserver.Chain(handler, httpserver.RequestID(log))
	srv := httpserver.New(apiAddr, api, slg)

	sup := supervisor.New(supervisor.Options{
		Flag:        flag,
		Replication: state,
		Transport:   transport,
		Endpoint:    endpoint,
		APIPort:     cfg.Server.APIPort,
		NodesPath:   cfg.Peering.NodesFile,
		Logger:      slg,
		Metrics:     metrics,
	})

	// The cluster goroutine owns the supervisor loop and, once it
	// exits, the ordered teardown of everything behind the API.
	clusterDone := make(chan struct{})
	go func() {
		defer close(clusterDone)

		sup.Run()

		coord := shutdown.NewCoordinator(
			shutdown.WithLogger(slg),
			shutdown.WithObserver(metrics.ObserveShutdownStep),
		)
		coord.Add("replication", state.Shutdown)
		coord.Add("peering", func() error {
			transport.Stop(peeringStopGrace)
			transport.Join()
			return nil
		})
		coord.Add("indexing", func() error {
			pipeline.Stop()
			<-pipeline.Done()
			return nil
		})
		coord.Add("server-pool", func() error {
			serverPool.Shutdown()
			return nil
		})
		coord.Add("app-pool", func() error {
			appPool.Shutdown()
			return nil
		})
		coord.Add("allocator-tuner", func() error {
			tuner.Stop()
			return nil
		})
		coord.Add("api-server", srv.Stop)
		coord.Add("document-store", store.Close)
		coord.Run()
	}()

	runErr := srv.Run()

	// Covers the listener failing on its own: the flag is raised
	// again so the cluster goroutine tears everything down.
	flag.Set()
	<-clusterDone

	if runErr != nil {
		return fmt.Errorf("api server: %w", runErr)
	}

	log.Info("docmesh-server stopped")
	return nil
}

// loadConfig layers defaults, the config file, environment variables
// and CLI flags, then validates the result.
func loadConfig(c *cli.Context) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if overrides := flagOverrides(c); len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, err
		}
		if err := loader.Unmarshal(cfg); err != nil {
			return nil, err
		}
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// flagOverrides maps set CLI flags onto config keys.
func flagOverrides(c *cli.Context) map[string]any {
	overrides := map[string]any{}

	set := func(flagName, key string, value any) {
		if c.IsSet(flagName) {
			overrides[key] = value
		}
	}

	set("api-address", "server.api_address", c.String("api-address"))
	set("api-port", "server.api_port", c.Uint("api-port"))
	set("peering-address", "peering.address", c.String("peering-address"))
	set("peering-port", "peering.port", c.Uint("peering-port"))
	set("peering-subnet", "peering.subnet", c.String("peering-subnet"))
	set("nodes", "peering.nodes_file", c.String("nodes"))
	set("data-dir", "storage.data_dir", c.String("data-dir"))
	set("node-id", "cluster.node_id", c.String("node-id"))
	set("snapshot-interval-seconds", "cluster.snapshot_interval_seconds", c.Int("snapshot-interval-seconds"))
	set("thread-pool-size", "resources.app_workers", c.Int("thread-pool-size"))
	set("thread-pool-size", "resources.server_workers", c.Int("thread-pool-size"))
	set("healthy-read-lag", "cluster.healthy_read_lag", c.Uint64("healthy-read-lag"))
	set("healthy-write-lag", "cluster.healthy_write_lag", c.Uint64("healthy-write-lag"))
	set("max-memory-ratio", "resources.max_memory_ratio", c.Float64("max-memory-ratio"))
	set("log-level", "log.level", c.String("log-level"))
	set("log-format", "log.format", c.String("log-format"))
	set("master", "master", c.String("master"))

	return overrides
}

// initLogger builds the structured logger and installs it as both the
// package default and the process slog default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, *slog.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return nil, nil, err
	}

	logger.SetDefault(log)
	return log, logger.Slog(log), nil
}

// watchConfig re-reads the config file on change and applies the log
// level. Other settings stay fixed for the process lifetime.
func watchConfig(path string, slg *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(slg))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(path); err != nil {
		watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(changed string) {
		cfg := config.Default()
		loader := confloader.NewLoader(confloader.WithConfigFile(changed))
		if err := loader.Load(cfg); err != nil {
			slg.Warn("config reload failed", "path", changed, "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			slg.Info("log level changed", "level", cfg.Log.Level)
			logger.SetLevel(cfg.Log.Level)
		}
	})

	watcher.StartAsync()
	return watcher, nil
}
