package alloctune

import (
	"runtime"
	"testing"
)

func TestProbe_NeverNil(t *testing.T) {
	tn := Probe(1.0, nil)
	if tn == nil {
		t.Fatal("Probe returned nil tuner")
	}

	// Advisory contract: start/stop must always be safe.
	tn.Start()
	tn.Stop()
	tn.Stop()
}

func TestProbe_LinuxCapability(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("capability probe is linux-only")
	}

	tn := Probe(0.5, nil)
	if tn.Name() != "background" {
		t.Errorf("tuner = %q, want background tuner on linux", tn.Name())
	}
	tn.Stop()
}

func TestNoopTuner(t *testing.T) {
	var tn Tuner = noopTuner{}
	if tn.Name() != "noop" {
		t.Errorf("Name() = %q, want noop", tn.Name())
	}
	tn.Start()
	tn.Stop()
}

func TestSystemMemoryBytes(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("meminfo is linux-only")
	}

	n, err := systemMemoryBytes()
	if err != nil {
		t.Fatalf("systemMemoryBytes failed: %v", err)
	}
	if n <= 0 {
		t.Errorf("total memory = %d, want > 0", n)
	}
}
