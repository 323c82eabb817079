// Package application composes the tool registry, the change broadcaster
// and the invoker into the runtime shared by every transport.
package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"

	domainnotification "github.com/felixgeelhaar/dynamic-mcp/domain/notification"
	"github.com/felixgeelhaar/dynamic-mcp/domain/pack"
	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/logging"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/notification"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/resilience"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/storage/memory"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/telemetry"
)

// RuntimeConfig contains configuration for the runtime.
type RuntimeConfig struct {
	Executor    *resilience.Executor
	Tracer      trace.Tracer
	Metrics     telemetry.Recorder
	Broadcaster notification.BroadcasterConfig
}

// Option configures the runtime.
type Option func(*RuntimeConfig)

// WithExecutor sets the executor handlers run on.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *RuntimeConfig) {
		c.Executor = e
	}
}

// WithTracer sets the tracer used for invocation spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *RuntimeConfig) {
		c.Tracer = t
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Recorder) Option {
	return func(c *RuntimeConfig) {
		c.Metrics = m
	}
}

// WithBroadcasterConfig sets listener queue and delivery limits.
func WithBroadcasterConfig(bc notification.BroadcasterConfig) Option {
	return func(c *RuntimeConfig) {
		c.Broadcaster = bc
	}
}

// Runtime owns one tool registry and everything attached to it. It is
// created once at startup and passed to each transport.
type Runtime struct {
	registry    *memory.ToolRegistry
	broadcaster *notification.Broadcaster
	invoker     *Invoker
	metrics     telemetry.Recorder
}

// NewRuntime creates a runtime with an empty registry.
func NewRuntime(opts ...Option) (*Runtime, error) {
	config := RuntimeConfig{
		Broadcaster: notification.DefaultBroadcasterConfig(),
		Metrics:     telemetry.NoopMetricsProvider{},
	}
	for _, opt := range opts {
		opt(&config)
	}

	rt := &Runtime{
		broadcaster: notification.NewBroadcaster(config.Broadcaster),
		metrics:     config.Metrics,
	}
	rt.registry = memory.NewToolRegistry(memory.WithChangeNotifier(tool.ChangeNotifierFunc(rt.changed)))

	invoker, err := NewInvoker(InvokerConfig{
		Registry: rt.registry,
		Executor: config.Executor,
		Tracer:   config.Tracer,
		Metrics:  config.Metrics,
	})
	if err != nil {
		return nil, err
	}
	rt.invoker = invoker

	return rt, nil
}

func (rt *Runtime) changed(change tool.Change) {
	logging.Info().
		Add(logging.Component("registry")).
		Add(logging.Str("kind", string(change.Kind))).
		Add(logging.Str("tools", fmt.Sprint(change.Names))).
		Add(logging.Revision(change.Revision)).
		Msg("tool list changed")

	rt.metrics.RecordRegistryChange(context.Background(), string(change.Kind), len(change.Names))
	rt.broadcaster.NotifyChanged(change)
}

// Register upserts descriptors as one change.
func (rt *Runtime) Register(descs ...*tool.Descriptor) error {
	return rt.registry.Register(descs...)
}

// RegisterPack registers every tool of p as one change.
func (rt *Runtime) RegisterPack(p *pack.Pack) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := rt.registry.Register(p.Tools...); err != nil {
		return fmt.Errorf("register pack %s: %w", p.Name, err)
	}
	logging.Info().
		Add(logging.Str("pack", p.Name)).
		Add(logging.Str("tools", strings.Join(p.ToolNames(), ","))).
		Msg("pack registered")
	return nil
}

// Unregister removes a tool and reports whether it was present.
func (rt *Runtime) Unregister(name string) (bool, error) {
	return rt.registry.Unregister(name)
}

// List returns the registered tools in registration order.
func (rt *Runtime) List() []*tool.Descriptor {
	return rt.registry.List()
}

// Snapshot returns the tool list with the revision it reflects.
func (rt *Runtime) Snapshot() ([]*tool.Descriptor, uint64) {
	return rt.registry.Snapshot()
}

// Lookup retrieves a tool by name.
func (rt *Runtime) Lookup(name string) (*tool.Descriptor, bool) {
	return rt.registry.Lookup(name)
}

// Revision returns the registry revision.
func (rt *Runtime) Revision() uint64 {
	return rt.registry.Revision()
}

// Invoke calls a tool by name.
func (rt *Runtime) Invoke(ctx context.Context, name string, args tool.Arguments) (Result, error) {
	return rt.invoker.Invoke(ctx, name, args)
}

// InvokeJSON calls a tool with a JSON argument object.
func (rt *Runtime) InvokeJSON(ctx context.Context, name string, raw json.RawMessage) (Result, error) {
	return rt.invoker.InvokeJSON(ctx, name, raw)
}

// Attach subscribes listener to tool-list changes.
func (rt *Runtime) Attach(listener domainnotification.Listener) notification.Handle {
	return rt.broadcaster.Attach(listener)
}

// Detach removes a listener. Unknown handles are ignored.
func (rt *Runtime) Detach(handle notification.Handle) {
	rt.broadcaster.Detach(handle)
}

// Listeners returns the number of attached listeners.
func (rt *Runtime) Listeners() int {
	return rt.broadcaster.Len()
}

// Close detaches every listener.
func (rt *Runtime) Close() error {
	return rt.broadcaster.Close()
}
