// Package alloctune provides best-effort runtime tuning of the memory
// allocator.
//
// The capability is probed at startup: on platforms where total system
// memory can be read, a background maintenance tuner is enabled that
// proactively returns freed memory to the OS to reduce tail latency.
// Where the probe fails, a no-op tuner is used and the process runs
// with default allocator behavior. Tuning is purely advisory and never
// affects correctness or fails the process.
package alloctune

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Tuner is the allocator tuning capability.
//
// Start begins background maintenance and returns immediately; Stop
// halts it. Both are safe to call on every implementation, including
// the no-op default.
type Tuner interface {
	Name() string
	Start()
	Stop()
}

// maintenanceInterval is how often freed memory is returned to the OS.
const maintenanceInterval = time.Minute

// Probe selects the concrete tuner for this process.
//
// maxMemoryRatio is the configured fraction of system memory the
// process may use; values <= 0 or >= 1 leave the soft limit untouched.
func Probe(maxMemoryRatio float64, logger *slog.Logger) Tuner {
	if logger == nil {
		logger = slog.Default()
	}

	totalMem, err := systemMemoryBytes()
	if err != nil {
		logger.Warn("allocator tuning unavailable, using default allocator behavior",
			"error", err)
		return noopTuner{}
	}

	return &backgroundTuner{
		totalMem: totalMem,
		ratio:    maxMemoryRatio,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// noopTuner is the default when the probe finds no tuning capability.
type noopTuner struct{}

func (noopTuner) Name() string { return "noop" }
func (noopTuner) Start()       {}
func (noopTuner) Stop()        {}

// backgroundTuner periodically returns freed memory to the OS and,
// when a memory ratio is configured, applies a soft memory limit.
type backgroundTuner struct {
	totalMem int64
	ratio    float64
	logger   *slog.Logger
	done     chan struct{}
	stopOnce sync.Once
}

func (t *backgroundTuner) Name() string { return "background" }

func (t *backgroundTuner) Start() {
	if t.ratio > 0 && t.ratio < 1 {
		limit := int64(float64(t.totalMem) * t.ratio)
		debug.SetMemoryLimit(limit)
		t.logger.Info("allocator soft memory limit applied",
			"limit_bytes", limit,
			"ratio", t.ratio)
	}

	t.logger.Info("allocator background maintenance enabled",
		"interval", maintenanceInterval)

	go func() {
		ticker := time.NewTicker(maintenanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				debug.FreeOSMemory()
			case <-t.done:
				return
			}
		}
	}()
}

func (t *backgroundTuner) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

// systemMemoryBytes reads total physical memory. Linux only; other
// platforms report the capability as absent.
func systemMemoryBytes() (int64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, fmt.Errorf("read meminfo: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse MemTotal: %w", err)
		}
		return kb * 1024, nil
	}

	return 0, fmt.Errorf("MemTotal not found in meminfo")
}
