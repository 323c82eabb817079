package notification

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/dynamic-mcp/domain/notification"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/logging"
)

// WebhookConfig configures the webhook listener.
type WebhookConfig struct {
	// Endpoints are the webhook endpoints to notify.
	Endpoints []*notification.Endpoint
	// EnableBatching coalesces events into fewer requests.
	EnableBatching bool
	// BatcherConfig configures the batcher (if enabled).
	BatcherConfig BatcherConfig
	// SenderConfig configures the HTTP sender.
	SenderConfig SenderConfig
	// GlobalFilter is applied to all events before endpoint filters.
	GlobalFilter notification.EventFilter
}

// DefaultWebhookConfig returns sensible defaults.
func DefaultWebhookConfig() WebhookConfig {
	return WebhookConfig{
		BatcherConfig: DefaultBatcherConfig(),
		SenderConfig:  DefaultSenderConfig(),
	}
}

// WebhookListener is a broadcaster listener that posts events to HTTP
// endpoints. Endpoint failures are logged and never returned, so the
// broadcaster keeps the listener attached.
type WebhookListener struct {
	config    WebhookConfig
	sender    *Sender
	batcher   *Batcher
	mu        sync.RWMutex
	endpoints []*notification.Endpoint
	closed    bool
}

// NewWebhookListener creates a webhook listener.
func NewWebhookListener(config WebhookConfig) *WebhookListener {
	w := &WebhookListener{
		config:    config,
		sender:    NewSender(config.SenderConfig),
		endpoints: append([]*notification.Endpoint(nil), config.Endpoints...),
	}

	if config.EnableBatching {
		batcherConfig := config.BatcherConfig
		batcherConfig.OnBatch = w.sendToAllEndpoints
		w.batcher = NewBatcher(batcherConfig)
	}

	return w
}

// Deliver sends or batches event. It returns ErrListenerClosed after Close.
func (w *WebhookListener) Deliver(ctx context.Context, event *notification.Event) error {
	w.mu.RLock()
	closed := w.closed
	w.mu.RUnlock()
	if closed {
		return notification.ErrListenerClosed
	}

	if w.config.GlobalFilter != nil && !w.config.GlobalFilter(event) {
		return nil
	}

	if w.batcher != nil {
		return w.batcher.Add(ctx, event)
	}

	return w.sendToAllEndpoints(ctx, []*notification.Event{event})
}

// Flush immediately sends any pending batched events.
func (w *WebhookListener) Flush(ctx context.Context) error {
	if w.batcher != nil {
		return w.batcher.Flush(ctx)
	}
	return nil
}

// Close flushes pending events and marks the listener closed.
func (w *WebhookListener) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	if w.batcher != nil {
		return w.batcher.Close(context.Background())
	}
	return nil
}

// AddEndpoint adds a new endpoint.
func (w *WebhookListener) AddEndpoint(endpoint *notification.Endpoint) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.endpoints = append(w.endpoints, endpoint)
}

// RemoveEndpoint removes an endpoint by URL.
func (w *WebhookListener) RemoveEndpoint(url string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	filtered := make([]*notification.Endpoint, 0, len(w.endpoints))
	for _, ep := range w.endpoints {
		if ep.URL != url {
			filtered = append(filtered, ep)
		}
	}
	w.endpoints = filtered
}

// Endpoints returns the configured endpoints.
func (w *WebhookListener) Endpoints() []*notification.Endpoint {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]*notification.Endpoint(nil), w.endpoints...)
}

// BreakerState returns the circuit breaker state for an endpoint URL.
func (w *WebhookListener) BreakerState(url string) string {
	return w.sender.BreakerState(url)
}

// sendToAllEndpoints posts events to every enabled endpoint concurrently.
func (w *WebhookListener) sendToAllEndpoints(ctx context.Context, events []*notification.Event) error {
	var wg sync.WaitGroup

	for _, endpoint := range w.Endpoints() {
		if !endpoint.Enabled {
			continue
		}

		endpointEvents := events
		if endpoint.Filter != nil {
			endpointEvents = make([]*notification.Event, 0, len(events))
			for _, event := range events {
				if endpoint.Filter(event) {
					endpointEvents = append(endpointEvents, event)
				}
			}
		}

		if len(endpointEvents) == 0 {
			continue
		}

		wg.Add(1)
		go func(ep *notification.Endpoint, evts []*notification.Event) {
			defer wg.Done()

			if err := w.sender.SendBatch(ctx, ep, evts); err != nil {
				logging.Error().
					Add(logging.Component("webhook")).
					Add(logging.Str("endpoint", ep.URL)).
					Add(logging.Str("endpoint_name", ep.Name)).
					Add(logging.Int("event_count", len(evts))).
					Add(logging.ErrorField(err)).
					Msg("webhook delivery failed")
				return
			}
			logging.Debug().
				Add(logging.Component("webhook")).
				Add(logging.Str("endpoint", ep.URL)).
				Add(logging.Int("event_count", len(evts))).
				Msg("webhook delivered")
		}(endpoint, endpointEvents)
	}

	wg.Wait()
	return nil
}

var _ notification.Listener = (*WebhookListener)(nil)
