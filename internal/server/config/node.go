package config

import (
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
)

// EnsureNodeID fills in a generated node ID when none is configured
// and returns the effective value.
func EnsureNodeID(cfg *ServerConfig, logger *slog.Logger) string {
	if cfg.Cluster.NodeID != "" {
		return cfg.Cluster.NodeID
	}

	id := "dm-" + strings.ToLower(ulid.Make().String())
	cfg.Cluster.NodeID = id
	if logger != nil {
		logger.Info("generated node ID", "node_id", id)
	}
	return id
}
