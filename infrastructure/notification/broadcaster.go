// Package notification delivers tool-change events to attached listeners
// and webhook endpoints.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/dynamic-mcp/domain/notification"
	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/logging"
)

// Handle identifies one attachment.
type Handle string

// BroadcasterConfig configures the broadcaster.
type BroadcasterConfig struct {
	// QueueSize bounds the pending events per listener. When full, the
	// oldest pending event is dropped.
	QueueSize int
	// DeliveryTimeout bounds a single Deliver call.
	DeliveryTimeout time.Duration
}

// DefaultBroadcasterConfig returns sensible defaults.
func DefaultBroadcasterConfig() BroadcasterConfig {
	return BroadcasterConfig{
		QueueSize:       16,
		DeliveryTimeout: 10 * time.Second,
	}
}

// Broadcaster fans events out to every attached listener. Each listener
// has its own queue and delivery goroutine, so publishing never waits on a
// listener and a slow or failing listener does not affect the others.
type Broadcaster struct {
	config BroadcasterConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	subs   map[Handle]*subscription
	closed bool
	wg     sync.WaitGroup
}

type subscription struct {
	handle   Handle
	listener notification.Listener

	mu    sync.Mutex
	queue []*notification.Event

	wake chan struct{}
	stop chan struct{}
	once sync.Once
}

// NewBroadcaster creates a broadcaster.
func NewBroadcaster(config BroadcasterConfig) *Broadcaster {
	if config.QueueSize <= 0 {
		config.QueueSize = 16
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Broadcaster{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[Handle]*subscription),
	}
}

// Attach registers a listener and returns its handle. The same listener may
// be attached more than once; each attachment is tracked separately.
// Attaching to a closed broadcaster returns a handle that receives nothing.
func (b *Broadcaster) Attach(listener notification.Listener) Handle {
	handle := Handle(uuid.New().String())
	sub := &subscription{
		handle:   handle,
		listener: listener,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		logging.Warn().
			Add(logging.Component("broadcaster")).
			Add(logging.ListenerID(string(handle))).
			Msg("attach after close ignored")
		return handle
	}

	b.subs[handle] = sub
	b.wg.Add(1)
	go b.run(sub)

	logging.Debug().
		Add(logging.Component("broadcaster")).
		Add(logging.ListenerID(string(handle))).
		Msg("listener attached")

	return handle
}

// Detach removes a listener. Detaching an unknown or already detached
// handle is a no-op. Pending events for the listener are discarded.
func (b *Broadcaster) Detach(handle Handle) {
	b.mu.Lock()
	sub, ok := b.subs[handle]
	delete(b.subs, handle)
	b.mu.Unlock()

	if ok {
		sub.close()
		logging.Debug().
			Add(logging.Component("broadcaster")).
			Add(logging.ListenerID(string(handle))).
			Msg("listener detached")
	}
}

// Len returns the number of attached listeners.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// NotifyChanged implements tool.ChangeNotifier.
func (b *Broadcaster) NotifyChanged(change tool.Change) {
	b.Publish(notification.NewToolsChangedEvent(change))
}

// Publish queues event for every attached listener and returns immediately.
func (b *Broadcaster) Publish(event *notification.Event) {
	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.enqueue(event, b.config.QueueSize) {
			logging.Debug().
				Add(logging.Component("broadcaster")).
				Add(logging.ListenerID(string(sub.handle))).
				Add(logging.Revision(event.Revision)).
				Msg("listener queue full, dropped oldest event")
		}
	}
}

// Close detaches every listener and waits for in-flight deliveries.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[Handle]*subscription)
	b.mu.Unlock()

	b.cancel()
	for _, sub := range subs {
		sub.close()
	}
	b.wg.Wait()
	return nil
}

func (b *Broadcaster) run(sub *subscription) {
	defer b.wg.Done()

	for {
		select {
		case <-sub.stop:
			return
		case <-sub.wake:
		}

		for {
			event, ok := sub.next()
			if !ok {
				break
			}
			select {
			case <-sub.stop:
				return
			default:
			}

			err := b.deliver(sub, event)
			if err == nil {
				continue
			}

			if errors.Is(err, notification.ErrListenerClosed) {
				logging.Info().
					Add(logging.Component("broadcaster")).
					Add(logging.ListenerID(string(sub.handle))).
					Add(logging.ErrorField(err)).
					Msg("listener closed, detaching")
				b.Detach(sub.handle)
				return
			}

			logging.Warn().
				Add(logging.Component("broadcaster")).
				Add(logging.ListenerID(string(sub.handle))).
				Add(logging.Revision(event.Revision)).
				Add(logging.ErrorField(err)).
				Msg("notification delivery failed")
		}
	}
}

func (b *Broadcaster) deliver(sub *subscription, event *notification.Event) (err error) {
	ctx, cancel := context.WithTimeout(b.ctx, b.config.DeliveryTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: listener panicked: %v", notification.ErrDeliveryFailed, r)
		}
	}()

	if err := sub.listener.Deliver(ctx, event); err != nil {
		return fmt.Errorf("%w: %w", notification.ErrDeliveryFailed, err)
	}
	return nil
}

// enqueue appends event, dropping the oldest pending one when full. It
// reports whether an event was dropped.
func (s *subscription) enqueue(event *notification.Event, limit int) bool {
	s.mu.Lock()
	dropped := false
	if len(s.queue) >= limit {
		s.queue = s.queue[1:]
		dropped = true
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return dropped
}

func (s *subscription) next() (*notification.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil, false
	}
	event := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return event, true
}

func (s *subscription) close() {
	s.once.Do(func() {
		close(s.stop)
	})
}

var _ tool.ChangeNotifier = (*Broadcaster)(nil)
