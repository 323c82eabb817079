package notification

import (
	"context"
	"slices"
)

// Listener receives events from the broadcaster. Deliver may be slow; the
// broadcaster never calls it from the goroutine that mutated the registry.
// Returning an error matching ErrListenerClosed detaches the listener.
type Listener interface {
	Deliver(ctx context.Context, event *Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, event *Event) error

// Deliver calls f(ctx, event).
func (f ListenerFunc) Deliver(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// EventFilter defines a function that filters events.
// Returns true if the event should be sent, false to skip it.
type EventFilter func(event *Event) bool

// FilterByType returns a filter that only allows specified event types.
func FilterByType(types ...EventType) EventFilter {
	typeSet := make(map[EventType]bool)
	for _, t := range types {
		typeSet[t] = true
	}
	return func(event *Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByTool returns a filter that only allows events touching one of the
// named tools.
func FilterByTool(names ...string) EventFilter {
	return func(event *Event) bool {
		var p ToolsChangedPayload
		if err := event.DecodePayload(&p); err != nil {
			return false
		}
		return slices.ContainsFunc(p.Tools, func(n string) bool {
			return slices.Contains(names, n)
		})
	}
}

// CombineFilters returns a filter that requires all provided filters to pass.
func CombineFilters(filters ...EventFilter) EventFilter {
	return func(event *Event) bool {
		for _, f := range filters {
			if !f(event) {
				return false
			}
		}
		return true
	}
}

// Endpoint represents a webhook endpoint configuration.
type Endpoint struct {
	// URL is the webhook endpoint URL.
	URL string `json:"url" yaml:"url"`
	// Secret is the shared secret for HMAC signing.
	Secret string `json:"secret,omitempty" yaml:"secret,omitempty"`
	// Headers are additional HTTP headers to include.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	// Filter is an optional event filter for this endpoint.
	Filter EventFilter `json:"-" yaml:"-"`
	// Enabled indicates if this endpoint is active.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// Name is an optional friendly name for the endpoint.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}
