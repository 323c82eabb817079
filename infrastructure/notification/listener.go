package notification

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/dynamic-mcp/domain/notification"
)

// ChannelListener hands events to a consumer through a channel. Deliver
// blocks until the consumer receives, the delivery context ends, or the
// listener is closed.
type ChannelListener struct {
	events chan *notification.Event
	done   chan struct{}
	once   sync.Once
}

// NewChannelListener creates a listener with the given channel buffer.
func NewChannelListener(buffer int) *ChannelListener {
	return &ChannelListener{
		events: make(chan *notification.Event, buffer),
		done:   make(chan struct{}),
	}
}

// Deliver implements notification.Listener.
func (l *ChannelListener) Deliver(ctx context.Context, event *notification.Event) error {
	select {
	case <-l.done:
		return notification.ErrListenerClosed
	default:
	}

	select {
	case l.events <- event:
		return nil
	case <-l.done:
		return notification.ErrListenerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events returns the receive side of the listener.
func (l *ChannelListener) Events() <-chan *notification.Event {
	return l.events
}

// Done is closed when the listener is closed.
func (l *ChannelListener) Done() <-chan struct{} {
	return l.done
}

// Close marks the session gone. The next delivery detaches the listener.
func (l *ChannelListener) Close() {
	l.once.Do(func() {
		close(l.done)
	})
}

var _ notification.Listener = (*ChannelListener)(nil)
