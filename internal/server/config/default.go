package config

// Default configuration values.
const (
	DefaultAPIAddress = "0.0.0.0"
	DefaultAPIPort    = 8108

	DefaultPeeringPort = 8107

	DefaultElectionTimeoutMs       = 1000
	DefaultSnapshotIntervalSeconds = 3600
	DefaultHealthyReadLag          = 1000
	DefaultHealthyWriteLag         = 500

	DefaultMaxMemoryRatio = 1.0

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			APIAddress: DefaultAPIAddress,
			APIPort:    DefaultAPIPort,
		},
		Peering: PeeringSection{
			Port: DefaultPeeringPort,
		},
		Cluster: ClusterSection{
			ElectionTimeoutMs:       DefaultElectionTimeoutMs,
			SnapshotIntervalSeconds: DefaultSnapshotIntervalSeconds,
			HealthyReadLag:          DefaultHealthyReadLag,
			HealthyWriteLag:         DefaultHealthyWriteLag,
		},
		Resources: ResourcesSection{
			MaxMemoryRatio: DefaultMaxMemoryRatio,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
