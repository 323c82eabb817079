// Package notification provides domain models for tool-change notifications.
package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
)

// EventType represents the type of notification event.
type EventType string

// Event types.
const (
	// EventToolsListChanged signals that the tool list changed. Consumers
	// re-fetch the list rather than apply a diff.
	EventToolsListChanged EventType = "tools.list_changed"
)

// Event represents a notification delivered to listeners.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`
	// Type is the event type.
	Type EventType `json:"type"`
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// Revision is the registry revision the event reflects.
	Revision uint64 `json:"revision"`
	// Payload contains the event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ToolsChangedPayload is informational; listeners should not rely on it to
// reconstruct the list.
type ToolsChangedPayload struct {
	Kind  tool.ChangeKind `json:"kind"`
	Tools []string        `json:"tools"`
}

// NewEvent creates a new notification event.
func NewEvent(eventType EventType, revision uint64, payload any) (*Event, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = b
	}

	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Revision:  revision,
		Payload:   payloadBytes,
	}, nil
}

// NewToolsChangedEvent builds the event for a committed registry change.
func NewToolsChangedEvent(change tool.Change) *Event {
	names := change.Names
	if names == nil {
		names = []string{}
	}
	// The payload is plain strings; marshaling cannot fail.
	event, _ := NewEvent(EventToolsListChanged, change.Revision, ToolsChangedPayload{
		Kind:  change.Kind,
		Tools: names,
	})
	return event
}

// DecodePayload unmarshals the event payload into the given struct.
func (e *Event) DecodePayload(v any) error {
	if e.Payload == nil {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}
