package notification

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/dynamic-mcp/domain/notification"
)

// BatcherConfig configures the event batcher.
type BatcherConfig struct {
	// MaxBatchSize is the maximum number of events per batch.
	MaxBatchSize int
	// MaxWait is the maximum time to wait before flushing a batch.
	MaxWait time.Duration
	// OnBatch is called when a batch is ready to send.
	OnBatch func(ctx context.Context, events []*notification.Event) error
}

// DefaultBatcherConfig returns a sensible default configuration.
func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{
		MaxBatchSize: 50,
		MaxWait:      2 * time.Second,
	}
}

// Batcher accumulates events and flushes them in batches. A burst of
// registrations reaches a webhook as one request.
type Batcher struct {
	config BatcherConfig
	events []*notification.Event
	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewBatcher creates a new event batcher.
func NewBatcher(config BatcherConfig) *Batcher {
	defaults := DefaultBatcherConfig()
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = defaults.MaxBatchSize
	}
	if config.MaxWait <= 0 {
		config.MaxWait = defaults.MaxWait
	}

	return &Batcher{
		config: config,
		events: make([]*notification.Event, 0, config.MaxBatchSize),
	}
}

// Add adds an event to the batch. A full batch is flushed on the caller's
// goroutine; otherwise a timer flushes it after MaxWait.
func (b *Batcher) Add(ctx context.Context, event *notification.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return notification.ErrListenerClosed
	}

	b.events = append(b.events, event)

	if len(b.events) >= b.config.MaxBatchSize {
		return b.flushLocked(ctx)
	}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.config.MaxWait, func() {
			_ = b.Flush(context.Background())
		})
	}

	return nil
}

// Flush flushes any pending events immediately.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(ctx)
}

func (b *Batcher) flushLocked(ctx context.Context) error {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}

	if len(b.events) == 0 {
		return nil
	}

	events := make([]*notification.Event, len(b.events))
	copy(events, b.events)
	b.events = b.events[:0]

	if b.config.OnBatch != nil {
		return b.config.OnBatch(ctx, events)
	}

	return nil
}

// Close stops the batcher and flushes any remaining events.
func (b *Batcher) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	return b.flushLocked(ctx)
}

// PendingCount returns the number of events waiting to be flushed.
func (b *Batcher) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
