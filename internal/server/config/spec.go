package config

// ServerConfig is the root configuration for docmesh-server.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	Peering   PeeringSection   `koanf:"peering"`
	Storage   StorageSection   `koanf:"storage"`
	Cluster   ClusterSection   `koanf:"cluster"`
	Resources ResourcesSection `koanf:"resources"`
	Log       LogSection       `koanf:"log"`

	// Master is the old single-master replication setting. It is no
	// longer supported; Verify rejects any value here.
	Master string `koanf:"master"`
}

// ServerSection configures the public API endpoint.
type ServerSection struct {
	APIAddress string `koanf:"api_address"`
	APIPort    uint16 `koanf:"api_port"`
}

// PeeringSection configures the cluster-internal channel.
type PeeringSection struct {
	// Address pins the peering endpoint to an explicit IPv4 address.
	// When empty, a private interface address is auto-detected.
	Address string `koanf:"address"`

	// Subnet restricts auto-detection to one CIDR block, for hosts
	// with multiple private interfaces.
	Subnet string `koanf:"subnet"`

	Port uint16 `koanf:"port"`

	// NodesFile is the path to the membership file. Empty means
	// single-node mode.
	NodesFile string `koanf:"nodes_file"`
}

// StorageSection configures on-disk layout.
type StorageSection struct {
	// DataDir must exist before startup; it is never created.
	DataDir string `koanf:"data_dir"`
}

// ClusterSection configures replication behavior.
type ClusterSection struct {
	// NodeID identifies this node in logs and diagnostics. Generated
	// at startup when empty.
	NodeID string `koanf:"node_id"`

	ElectionTimeoutMs       int `koanf:"election_timeout_ms"`
	SnapshotIntervalSeconds int `koanf:"snapshot_interval_seconds"`

	// HealthyReadLag and HealthyWriteLag are applied-log lag bounds
	// beyond which /health degrades.
	HealthyReadLag  uint64 `koanf:"healthy_read_lag"`
	HealthyWriteLag uint64 `koanf:"healthy_write_lag"`
}

// ResourcesSection configures pools and memory behavior.
type ResourcesSection struct {
	// AppWorkers and ServerWorkers size the two worker pools. Zero
	// means NumCPU-proportional.
	AppWorkers    int `koanf:"app_workers"`
	ServerWorkers int `koanf:"server_workers"`

	// MaxMemoryRatio caps the process memory at a fraction of the
	// machine total, when the allocator tuner can determine it.
	MaxMemoryRatio float64 `koanf:"max_memory_ratio"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
