package config

import (
	"errors"
	"fmt"
	"os"
)

// ErrMasterRemoved is returned when the removed single-master setting
// is present in any configuration layer.
var ErrMasterRemoved = errors.New(
	"the master option is no longer supported: use the nodes file to form a cluster, " +
		"see peering.nodes_file")

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if cfg.Master != "" {
		return ErrMasterRemoved
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyCluster(&cfg.Cluster); err != nil {
		return err
	}
	if err := verifyResources(&cfg.Resources); err != nil {
		return err
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}

	// The data directory is deliberately never created: a missing
	// directory usually means a missing volume mount.
	info, err := os.Stat(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("storage.data_dir %s does not exist or is unreadable: %w", cfg.DataDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage.data_dir %s is not a directory", cfg.DataDir)
	}

	return nil
}

func verifyCluster(cfg *ClusterSection) error {
	if cfg.ElectionTimeoutMs <= 0 {
		return errors.New("cluster.election_timeout_ms must be positive")
	}
	if cfg.SnapshotIntervalSeconds <= 0 {
		return errors.New("cluster.snapshot_interval_seconds must be positive")
	}
	if cfg.HealthyWriteLag > cfg.HealthyReadLag {
		return errors.New("cluster.healthy_write_lag must not exceed cluster.healthy_read_lag")
	}
	return nil
}

func verifyResources(cfg *ResourcesSection) error {
	if cfg.MaxMemoryRatio <= 0 || cfg.MaxMemoryRatio > 1 {
		return errors.New("resources.max_memory_ratio must be in (0, 1]")
	}
	if cfg.AppWorkers < 0 || cfg.ServerWorkers < 0 {
		return errors.New("worker pool sizes must not be negative")
	}
	return nil
}
