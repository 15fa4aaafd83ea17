// Package outbox relays subscription events to a message broker in batches.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/weather-alerts/internal/domain"
	"github.com/couchcryptid/weather-alerts/internal/observability"
)

// ErrQueueFull is returned by Enqueue when the relay cannot accept more messages.
var ErrQueueFull = errors.New("outbox queue full")

// ErrClosed is returned by Enqueue after Run has returned.
var ErrClosed = errors.New("outbox closed")

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	drainTimeout   = 5 * time.Second
)

// BatchLoader writes multiple outbox messages to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, msgs []domain.OutboxMessage) error
}

// Relay buffers outbox messages in memory and writes them in batches of up
// to batchSize, flushing a partial batch after flushInterval.
type Relay struct {
	queue         chan domain.OutboxMessage
	loader        BatchLoader
	logger        *slog.Logger
	metrics       *observability.Metrics
	batchSize     int
	flushInterval time.Duration

	ready atomic.Bool

	// mu orders Enqueue against drain: once closed is set no message can
	// enter the queue, so drain sees everything that was accepted.
	mu     sync.Mutex
	closed bool
}

// New creates a Relay. queueSize bounds the number of buffered messages.
func New(loader BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int, flushInterval time.Duration, queueSize int) *Relay {
	if batchSize <= 0 {
		batchSize = 1
	}
	if queueSize < batchSize {
		queueSize = batchSize
	}
	return &Relay{
		queue:         make(chan domain.OutboxMessage, queueSize),
		loader:        loader,
		logger:        logger,
		metrics:       metrics,
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

// Enqueue buffers msg without waiting for queue space.
func (r *Relay) Enqueue(ctx context.Context, msg domain.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.metrics.OutboxDropped.Inc()
		return ErrClosed
	}
	select {
	case r.queue <- msg:
		return nil
	default:
		r.metrics.OutboxDropped.Inc()
		return ErrQueueFull
	}
}

// CheckReadiness returns nil while the relay is running and its last write succeeded.
func (r *Relay) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("outbox relay is not running or the broker is unavailable")
	}
	return nil
}

// Run publishes batches until ctx is cancelled, then makes one bounded
// attempt to flush whatever is still buffered.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay started", "batch_size", r.batchSize, "flush_interval", r.flushInterval)
	r.metrics.OutboxRunning.Set(1)
	r.ready.Store(true)
	defer func() {
		r.ready.Store(false)
		r.metrics.OutboxRunning.Set(0)
	}()

	for {
		batch, ok := r.collect(ctx)
		if !ok || !r.publish(ctx, batch) {
			r.drain(ctx, batch)
			return nil
		}
	}
}

// collect waits for the first message, then fills the batch until it is full
// or the flush interval elapses. It returns false once ctx is done.
func (r *Relay) collect(ctx context.Context) ([]domain.OutboxMessage, bool) {
	var first domain.OutboxMessage
	select {
	case <-ctx.Done():
		return nil, false
	case first = <-r.queue:
	}

	batch := make([]domain.OutboxMessage, 1, r.batchSize)
	batch[0] = first

	timer := time.NewTimer(r.flushInterval)
	defer timer.Stop()
	for len(batch) < r.batchSize {
		select {
		case <-ctx.Done():
			return batch, false
		case <-timer.C:
			return batch, true
		case msg := <-r.queue:
			batch = append(batch, msg)
		}
	}
	return batch, true
}

// publish writes batch, retrying with exponential backoff. It returns false if
// ctx ended before the batch was written.
func (r *Relay) publish(ctx context.Context, batch []domain.OutboxMessage) bool {
	backoff := initialBackoff
	for {
		err := r.loader.LoadBatch(ctx, batch)
		if err == nil {
			r.metrics.OutboxPublished.Add(float64(len(batch)))
			r.metrics.OutboxBatchSize.Observe(float64(len(batch)))
			r.ready.Store(true)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		r.metrics.OutboxErrors.Inc()
		r.ready.Store(false)
		r.logger.Error("load batch failed", "error", err, "batch_size", len(batch), "retry_in", backoff)
		if !retry.SleepWithContext(ctx, backoff) {
			return false
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}

// drain stops accepting messages and writes pending plus everything still
// queued, once, within drainTimeout.
func (r *Relay) drain(ctx context.Context, pending []domain.OutboxMessage) {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
drained:
	for {
		select {
		case msg := <-r.queue:
			pending = append(pending, msg)
		default:
			break drained
		}
	}
	if len(pending) == 0 {
		r.logger.Info("outbox relay stopping", "reason", ctx.Err())
		return
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	if err := r.loader.LoadBatch(flushCtx, pending); err != nil {
		r.metrics.OutboxDropped.Add(float64(len(pending)))
		r.logger.Error("final outbox flush failed", "error", err, "dropped", len(pending))
		return
	}
	r.metrics.OutboxPublished.Add(float64(len(pending)))
	r.logger.Info("outbox relay stopping", "reason", ctx.Err(), "flushed", len(pending))
}
