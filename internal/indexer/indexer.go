// Package indexer provides the background batch indexing pipeline.
//
// Accepted writes are queued and applied to the document store
// asynchronously by a dedicated drain loop running on its own
// goroutine. Writes are grouped into buckets by document ID hash so
// one hot collection cannot starve the rest of a batch, and flushes
// are rate-limited to bound I/O pressure during catch-up.
package indexer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
	"golang.org/x/time/rate"

	"github.com/arvhn/docmesh-go/internal/storage"
	"github.com/arvhn/docmesh-go/internal/telemetry/metric"
)

// Op is a write operation kind.
type Op uint8

const (
	// OpUpsert creates or replaces a document.
	OpUpsert Op = iota
	// OpDelete removes a document.
	OpDelete
)

// Write is one queued document mutation.
type Write struct {
	DocID   string
	Payload []byte
	Op      Op
}

// Config tunes the pipeline.
type Config struct {
	// QueueDepth is the write queue capacity.
	QueueDepth int
	// Buckets is the number of hash buckets writes are grouped into.
	Buckets int
	// BatchSize is the flush threshold per drain cycle.
	BatchSize int
	// FlushInterval flushes partial batches on a timer.
	FlushInterval time.Duration
	// MaxFlushesPerSec bounds flush frequency. Zero means unlimited.
	MaxFlushesPerSec float64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		QueueDepth:    4096,
		Buckets:       16,
		BatchSize:     512,
		FlushInterval: 100 * time.Millisecond,
	}
}

// BatchIndexer drains queued writes into the document store.
type BatchIndexer struct {
	cfg     Config
	store   *storage.Store
	logger  *slog.Logger
	metrics *metric.Registry
	limiter *rate.Limiter

	queue chan Write
	quit  chan struct{}
	done  chan struct{}

	stopOnce sync.Once

	mu      sync.Mutex
	stopped bool
}

// New creates a pipeline. metrics may be nil.
func New(store *storage.Store, cfg Config, logger *slog.Logger, metrics *metric.Registry) *BatchIndexer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultConfig().QueueDepth
	}
	if cfg.Buckets <= 0 {
		cfg.Buckets = DefaultConfig().Buckets
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}

	var limiter *rate.Limiter
	if cfg.MaxFlushesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxFlushesPerSec), 1)
	}

	return &BatchIndexer{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		metrics: metrics,
		limiter: limiter,
		queue:   make(chan Write, cfg.QueueDepth),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Enqueue queues a write. Returns false once the pipeline is stopping.
func (b *BatchIndexer) Enqueue(w Write) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return false
	}

	b.queue <- w
	if b.metrics != nil {
		b.metrics.IndexQueueDepth.Set(float64(len(b.queue)))
	}
	return true
}

// Run is the blocking drain loop, invoked on a dedicated goroutine.
// It exits only after Stop, having flushed everything still queued.
func (b *BatchIndexer) Run() {
	defer close(b.done)

	pending := make([]Write, 0, b.cfg.BatchSize)
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case w := <-b.queue:
			pending = append(pending, w)
			if len(pending) >= b.cfg.BatchSize {
				b.flush(pending)
				pending = pending[:0]
			}
		case <-ticker.C:
			if len(pending) > 0 {
				b.flush(pending)
				pending = pending[:0]
			}
		case <-b.quit:
			// Final drain: everything enqueued before Stop is applied.
			for {
				select {
				case w := <-b.queue:
					pending = append(pending, w)
				default:
					if len(pending) > 0 {
						b.flush(pending)
					}
					return
				}
			}
		}
	}
}

// Stop asks the drain loop to flush and exit. The caller joins by
// waiting on Done.
func (b *BatchIndexer) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		b.mu.Unlock()
		close(b.quit)
	})
}

// Done is closed when the drain loop has exited.
func (b *BatchIndexer) Done() <-chan struct{} {
	return b.done
}

// flush applies one batch, grouped into buckets by document ID hash.
func (b *BatchIndexer) flush(writes []Write) {
	if b.limiter != nil {
		_ = b.limiter.Wait(context.Background())
	}

	// The last operation per document wins within a batch, so the
	// batch has the same effect as applying the writes one by one.
	buckets := make(map[uint32]map[string][]byte)
	deleteSet := make(map[string]struct{})

	for _, w := range writes {
		bucket := murmur3.Sum32([]byte(w.DocID)) % uint32(b.cfg.Buckets)
		if w.Op == OpDelete {
			delete(buckets[bucket], w.DocID)
			deleteSet[w.DocID] = struct{}{}
			continue
		}
		delete(deleteSet, w.DocID)
		if buckets[bucket] == nil {
			buckets[bucket] = make(map[string][]byte)
		}
		buckets[bucket][w.DocID] = w.Payload
	}

	for bucket, pairs := range buckets {
		if len(pairs) == 0 {
			continue
		}
		if err := b.store.PutBatch(pairs); err != nil {
			b.logger.Error("index batch apply failed",
				"bucket", bucket,
				"docs", len(pairs),
				"error", err)
			continue
		}
		if b.metrics != nil {
			b.metrics.IndexedBatches.Inc()
		}
	}

	for id := range deleteSet {
		if err := b.store.Delete([]byte(id)); err != nil {
			b.logger.Error("index delete failed", "doc_id", id, "error", err)
		}
	}

	if b.metrics != nil {
		b.metrics.IndexQueueDepth.Set(float64(len(b.queue)))
	}
}
