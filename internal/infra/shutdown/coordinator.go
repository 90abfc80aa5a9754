// Package shutdown provides process termination handling for DocMesh.
package shutdown

import (
	"log/slog"
	"time"
)

// Step is one teardown action. Stop blocks until the owned subsystem
// has fully stopped.
type Step struct {
	Name string
	Stop func() error
}

// Coordinator executes a fixed, ordered, best-effort teardown.
//
// Unlike a LIFO hook stack, the order here is explicit: steps run in
// the exact order they were added, and step k never starts before
// step k-1 has returned. A failing step is logged and the sequence
// continues; reaching process exit takes priority over a fully clean
// teardown.
type Coordinator struct {
	steps   []Step
	logger  *slog.Logger
	observe func(step string, d time.Duration)
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger used for step reporting.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = logger }
}

// WithObserver registers a callback invoked with each step's duration,
// used to record teardown timings in metrics.
func WithObserver(fn func(step string, d time.Duration)) CoordinatorOption {
	return func(c *Coordinator) { c.observe = fn }
}

// NewCoordinator creates an empty Coordinator.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add appends a step to the teardown sequence.
func (c *Coordinator) Add(name string, stop func() error) {
	c.steps = append(c.steps, Step{Name: name, Stop: stop})
}

// Run executes every step in order. It never returns early: each
// failure is logged and the next step still runs.
func (c *Coordinator) Run() {
	for _, step := range c.steps {
		c.logger.Info("shutdown step starting", "step", step.Name)
		begin := time.Now()

		if err := step.Stop(); err != nil {
			c.logger.Error("shutdown step failed, continuing",
				"step", step.Name,
				"error", err)
		}

		d := time.Since(begin)
		if c.observe != nil {
			c.observe(step.Name, d)
		}
		c.logger.Info("shutdown step done", "step", step.Name, "took", d)
	}
}
