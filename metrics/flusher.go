package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store is an insert-only sink for finalized records.
type Store interface {
	Insert(ctx context.Context, m GenerationMetrics) error
	Close() error
}

// DefaultQueueSize bounds records waiting to be written.
const DefaultQueueSize = 256

// Flusher writes records to a Store on a background goroutine. The queue is
// bounded; records are dropped when it is full. Store errors are logged and
// swallowed.
type Flusher struct {
	store        Store
	recorder     *Recorder
	logger       *slog.Logger
	queue        chan GenerationMetrics
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// FlusherOption configures a Flusher.
type FlusherOption func(*Flusher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) FlusherOption {
	return func(f *Flusher) {
		f.logger = logger
	}
}

// WithRecorder mirrors flushed records into Prometheus metrics.
func WithRecorder(r *Recorder) FlusherOption {
	return func(f *Flusher) {
		f.recorder = r
	}
}

// WithWriteTimeout bounds each store insert.
func WithWriteTimeout(d time.Duration) FlusherOption {
	return func(f *Flusher) {
		f.writeTimeout = d
	}
}

// NewFlusher starts the background writer.
func NewFlusher(store Store, queueSize int, opts ...FlusherOption) *Flusher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	f := &Flusher{
		store:        store,
		logger:       slog.Default(),
		queue:        make(chan GenerationMetrics, queueSize),
		writeTimeout: 5 * time.Second,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	go f.run()
	return f
}

// Flush enqueues a finalized collector's record and returns immediately.
// It reports whether the record was accepted.
func (f *Flusher) Flush(c *Collector) bool {
	if c.State() != StateFinalized {
		f.logger.Warn("Metrics flush skipped, collector not finalized", "state", c.State().String())
		return false
	}
	m := c.Snapshot()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}

	select {
	case f.queue <- m:
		c.markFlushed()
		return true
	default:
		f.recorder.droppedRecord()
		f.logger.Warn("Metrics queue full, dropping record", "generation_id", m.GenerationID)
		return false
	}
}

func (f *Flusher) run() {
	defer close(f.done)

	for m := range f.queue {
		f.recorder.ObserveGeneration(m)

		ctx, cancel := context.WithTimeout(context.Background(), f.writeTimeout)
		err := f.store.Insert(ctx, m)
		cancel()
		if err != nil {
			f.logger.Warn("Metrics store insert failed",
				"generation_id", m.GenerationID,
				"error", err)
		}
	}
}

// Close stops accepting records, drains the queue and closes the store.
func (f *Flusher) Close(ctx context.Context) error {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()

	select {
	case <-f.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return f.store.Close()
}
