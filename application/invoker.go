package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/logging"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/resilience"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/telemetry"
)

// Outcome is the normalized result of an invocation, shared by every
// transport.
type Outcome string

// Invocation outcomes.
const (
	OutcomeSuccess         Outcome = "success"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeValidationError Outcome = "validation_error"
	OutcomeHandlerError    Outcome = "handler_error"
	OutcomeTimeout         Outcome = "timeout"
	OutcomeRejected        Outcome = "rejected"
)

// Classify maps an invocation error to its outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, tool.ErrUnknownTool):
		return OutcomeNotFound
	case errors.Is(err, tool.ErrSchemaMismatch), errors.Is(err, tool.ErrInvalidName):
		return OutcomeValidationError
	case errors.Is(err, tool.ErrInvocationTimeout):
		return OutcomeTimeout
	case errors.Is(err, tool.ErrInvocationRejected):
		return OutcomeRejected
	default:
		return OutcomeHandlerError
	}
}

// Result is a successful invocation.
type Result struct {
	Tool     string        `json:"tool"`
	Value    any           `json:"result"`
	Duration time.Duration `json:"-"`
}

// InvokerConfig contains configuration for the invoker.
type InvokerConfig struct {
	Registry tool.Registry
	Executor *resilience.Executor
	Tracer   trace.Tracer
	Metrics  telemetry.Recorder
}

// Invoker dispatches calls by tool name: lookup, validation, defaults and
// a bounded wait on the handler.
type Invoker struct {
	registry tool.Registry
	executor *resilience.Executor
	tracer   trace.Tracer
	metrics  telemetry.Recorder
}

// NewInvoker creates an invoker.
func NewInvoker(config InvokerConfig) (*Invoker, error) {
	if config.Registry == nil {
		return nil, errors.New("registry is required")
	}

	inv := &Invoker{
		registry: config.Registry,
		executor: config.Executor,
		tracer:   config.Tracer,
		metrics:  config.Metrics,
	}
	if inv.executor == nil {
		inv.executor = resilience.NewDefaultExecutor()
	}
	if inv.tracer == nil {
		inv.tracer = otel.Tracer("github.com/felixgeelhaar/dynamic-mcp/application")
	}
	if inv.metrics == nil {
		inv.metrics = telemetry.NoopMetricsProvider{}
	}
	return inv, nil
}

// Invoke calls the named tool with args.
//
// Errors match tool.ErrUnknownTool, tool.ErrSchemaMismatch (as
// *tool.SchemaMismatchError), tool.ErrHandlerFailure (as
// *tool.HandlerFailureError), tool.ErrInvocationTimeout or
// tool.ErrInvocationRejected when no slot frees up. A handler still
// running when the wait ends is abandoned and its result discarded.
func (i *Invoker) Invoke(ctx context.Context, name string, args tool.Arguments) (Result, error) {
	return i.observe(ctx, name, func(ctx context.Context) (any, error) {
		return i.invoke(ctx, name, args)
	})
}

// InvokeJSON decodes raw as the argument object and invokes the tool.
func (i *Invoker) InvokeJSON(ctx context.Context, name string, raw json.RawMessage) (Result, error) {
	args, err := tool.ParseArguments(raw)
	if err == nil {
		return i.Invoke(ctx, name, args)
	}
	return i.observe(ctx, name, func(context.Context) (any, error) {
		if _, ok := i.registry.Lookup(name); !ok {
			return nil, fmt.Errorf("%w: %q", tool.ErrUnknownTool, name)
		}
		return nil, &tool.SchemaMismatchError{
			Tool:       name,
			Violations: []tool.Violation{{Param: "arguments", Reason: "must be a JSON object"}},
		}
	})
}

// observe wraps one invocation in a span, a log line and metrics.
func (i *Invoker) observe(ctx context.Context, name string, fn func(context.Context) (any, error)) (Result, error) {
	start := time.Now()

	ctx, span := i.tracer.Start(ctx, "tool.invoke",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("tool.name", name)),
	)
	defer span.End()

	value, err := fn(ctx)
	duration := time.Since(start)
	outcome := Classify(err)

	span.SetAttributes(attribute.String("tool.outcome", string(outcome)))
	i.metrics.RecordInvocation(ctx, name, string(outcome), duration)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.Warn().
			Add(logging.ToolName(name)).
			Add(logging.Outcome(string(outcome))).
			Add(logging.Duration(duration)).
			Add(logging.ErrorField(err)).
			Msg("tool invocation failed")
		return Result{}, err
	}

	span.SetStatus(codes.Ok, "")
	logging.Debug().
		Add(logging.ToolName(name)).
		Add(logging.Outcome(string(outcome))).
		Add(logging.Duration(duration)).
		Msg("tool invoked")

	return Result{Tool: name, Value: value, Duration: duration}, nil
}

func (i *Invoker) invoke(ctx context.Context, name string, args tool.Arguments) (any, error) {
	desc, ok := i.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", tool.ErrUnknownTool, name)
	}

	if err := desc.Schema().Validate(args); err != nil {
		var mismatch *tool.SchemaMismatchError
		if errors.As(err, &mismatch) {
			mismatch.Tool = name
		}
		return nil, err
	}
	args = desc.Schema().WithDefaults(args)

	i.metrics.IncrementActiveInvocations(ctx, name)
	defer i.metrics.DecrementActiveInvocations(ctx, name)

	timeout := desc.Annotations().Timeout
	value, err := i.executor.Execute(ctx, timeout, func(ctx context.Context) (any, error) {
		return desc.Call(ctx, args)
	})
	if err == nil {
		return value, nil
	}

	var panicErr *resilience.PanicError
	switch {
	case errors.As(err, &panicErr):
		return nil, &tool.HandlerFailureError{Tool: name, Err: panicErr}
	case errors.Is(err, resilience.ErrSaturated):
		return nil, fmt.Errorf("%w: %q: %w", tool.ErrInvocationRejected, name, err)
	case errors.Is(err, resilience.ErrExecutionTimeout):
		if timeout <= 0 {
			timeout = i.executor.DefaultTimeout()
		}
		return nil, fmt.Errorf("%w: %q after %s: %w", tool.ErrInvocationTimeout, name, timeout, err)
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %q: %w", tool.ErrInvocationTimeout, name, ctx.Err())
	default:
		return nil, &tool.HandlerFailureError{Tool: name, Err: err}
	}
}
