package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arvhn/docmesh-go/internal/infra/confloader"
)

func validConfig(t *testing.T) *ServerConfig {
	t.Helper()
	cfg := Default()
	cfg.Storage.DataDir = t.TempDir()
	return cfg
}

func TestVerify(t *testing.T) {
	t.Run("defaults with a data dir pass", func(t *testing.T) {
		if err := Verify(validConfig(t)); err != nil {
			t.Errorf("Verify() = %v, want nil", err)
		}
	})

	t.Run("master option is rejected", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Master = "http://old-master:8108"

		err := Verify(cfg)
		if err != ErrMasterRemoved {
			t.Fatalf("Verify() = %v, want ErrMasterRemoved", err)
		}
		if !strings.Contains(err.Error(), "nodes file") {
			t.Error("the error should point at the clustering replacement")
		}
	})

	t.Run("missing data dir fails", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Storage.DataDir = filepath.Join(t.TempDir(), "absent")
		if err := Verify(cfg); err == nil {
			t.Error("an absent data dir must fail verification")
		}
	})

	t.Run("data dir that is a file fails", func(t *testing.T) {
		cfg := validConfig(t)
		path := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		cfg.Storage.DataDir = path
		if err := Verify(cfg); err == nil {
			t.Error("a non-directory data dir must fail verification")
		}
	})

	t.Run("empty data dir fails", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Storage.DataDir = ""
		if err := Verify(cfg); err == nil {
			t.Error("empty data_dir must fail verification")
		}
	})

	t.Run("write lag above read lag fails", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Cluster.HealthyWriteLag = cfg.Cluster.HealthyReadLag + 1
		if err := Verify(cfg); err == nil {
			t.Error("inverted lag thresholds must fail verification")
		}
	})

	t.Run("memory ratio bounds", func(t *testing.T) {
		for _, ratio := range []float64{0, -0.5, 1.5} {
			cfg := validConfig(t)
			cfg.Resources.MaxMemoryRatio = ratio
			if err := Verify(cfg); err == nil {
				t.Errorf("ratio %v must fail verification", ratio)
			}
		}
	})
}

func TestEnsureNodeID(t *testing.T) {
	t.Run("configured ID is kept", func(t *testing.T) {
		cfg := Default()
		cfg.Cluster.NodeID = "node-7"
		if got := EnsureNodeID(cfg, nil); got != "node-7" {
			t.Errorf("EnsureNodeID() = %q, want node-7", got)
		}
	})

	t.Run("empty ID is generated and stored", func(t *testing.T) {
		cfg := Default()
		got := EnsureNodeID(cfg, nil)
		if !strings.HasPrefix(got, "dm-") {
			t.Errorf("generated ID %q should carry the dm- prefix", got)
		}
		if cfg.Cluster.NodeID != got {
			t.Error("generated ID must be written back to the config")
		}
		if again := EnsureNodeID(cfg, nil); again != got {
			t.Error("a second call must not regenerate the ID")
		}
	})
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "docmesh.yaml")
	yaml := `
server:
  api_port: 9200
peering:
  port: 9107
log:
  level: debug
`
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DOCMESH_LOG_FORMAT", "text")
	t.Setenv("DOCMESH_CLUSTER_HEALTHY_READ_LAG", "2500")

	cfg := Default()
	loader := confloader.NewLoader(confloader.WithConfigFile(file))
	if err := loader.Load(cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.APIPort != 9200 {
		t.Errorf("api_port = %d, want 9200 from file", cfg.Server.APIPort)
	}
	if cfg.Peering.Port != 9107 {
		t.Errorf("peering port = %d, want 9107 from file", cfg.Peering.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug from file", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("log format = %q, want text from env", cfg.Log.Format)
	}
	if cfg.Cluster.HealthyReadLag != 2500 {
		t.Errorf("healthy_read_lag = %d, want 2500 from env", cfg.Cluster.HealthyReadLag)
	}
	if cfg.Server.APIAddress != DefaultAPIAddress {
		t.Errorf("api_address = %q, untouched fields must keep defaults", cfg.Server.APIAddress)
	}
}
