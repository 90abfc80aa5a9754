// Package pool provides fixed-size worker pools for DocMesh.
//
// Two pools exist per process: one for application work (collection
// loading, housekeeping) and one for request handling. Both are sized
// at startup and shut down exactly once, joining all submitted work.
package pool

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
)

// DefaultSizeMultiplier scales detected hardware concurrency when no
// explicit pool size is configured.
const DefaultSizeMultiplier = 8

// MaxWorkers bounds the pool size so the task queue buffer cannot overflow.
const MaxWorkers = math.MaxInt / 2

// ErrTooManyWorkers is returned when the worker count exceeds MaxWorkers.
var ErrTooManyWorkers = fmt.Errorf("pool: worker count exceeds maximum")

// DefaultSize returns the pool size for an unconfigured pool:
// a multiple of detected hardware concurrency.
func DefaultSize(configured int) int {
	if configured > 0 {
		return configured
	}
	procs := runtime.NumCPU()
	if procs < 1 {
		procs = 1
	}
	return procs * DefaultSizeMultiplier
}

// Pool is a fixed-size worker pool.
type Pool struct {
	name    string
	workers int
	tasks   chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards tasks against close during Submit
	closed  bool
	logger  *slog.Logger
}

// New creates a pool with the given number of workers and starts them.
func New(name string, workers int, logger *slog.Logger) (*Pool, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyWorkers, workers, MaxWorkers)
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		name:    name,
		workers: workers,
		tasks:   make(chan func(), workers*2),
		logger:  logger,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.workers
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for task := range p.tasks {
		// A panicking task must not take the worker down with it.
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("worker recovered from task panic",
						"pool", p.name,
						"panic", r)
				}
			}()
			task()
		}()
	}
}

// Submit queues a task. Returns false if the pool is already shut down.
func (p *Pool) Submit(task func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}

	p.tasks <- task
	return true
}

// Shutdown stops accepting tasks and joins all outstanding submitted
// work. Safe to call more than once.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
	p.wg.Wait()
}
