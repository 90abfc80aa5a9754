package pool

import (
	"math"
	"runtime"
	"sync/atomic"
	"testing"
)

func TestDefaultSize(t *testing.T) {
	if got := DefaultSize(16); got != 16 {
		t.Errorf("DefaultSize(16) = %d, want configured value 16", got)
	}

	want := runtime.NumCPU() * DefaultSizeMultiplier
	if got := DefaultSize(0); got != want {
		t.Errorf("DefaultSize(0) = %d, want %d", got, want)
	}
}

func TestNew_ClampsAndRejects(t *testing.T) {
	p, err := New("app", -3, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p.Size() != 1 {
		t.Errorf("Size() = %d, want 1 for non-positive input", p.Size())
	}
	p.Shutdown()

	if _, err := New("app", math.MaxInt, nil); err == nil {
		t.Error("expected error for absurd worker count")
	}
}

func TestSubmitAndShutdownJoins(t *testing.T) {
	p, err := New("server", 4, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var ran atomic.Int64
	for i := 0; i < 100; i++ {
		if !p.Submit(func() { ran.Add(1) }) {
			t.Fatal("Submit returned false on open pool")
		}
	}

	// Shutdown must join every submitted task.
	p.Shutdown()

	if ran.Load() != 100 {
		t.Errorf("ran %d tasks before Shutdown returned, want 100", ran.Load())
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	p, _ := New("app", 2, nil)
	p.Shutdown()

	if p.Submit(func() {}) {
		t.Error("Submit should return false after Shutdown")
	}

	// Repeat shutdown is a no-op.
	p.Shutdown()
}

func TestWorkerSurvivesPanic(t *testing.T) {
	p, _ := New("app", 1, nil)

	p.Submit(func() { panic("boom") })

	var ran atomic.Bool
	p.Submit(func() { ran.Store(true) })
	p.Shutdown()

	if !ran.Load() {
		t.Error("task after panic did not run; worker died")
	}
}
