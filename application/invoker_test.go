package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/resilience"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/storage/memory"
)

func newInvoker(t *testing.T, descs ...*tool.Descriptor) *Invoker {
	t.Helper()

	registry := memory.NewToolRegistry()
	if err := registry.Register(descs...); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	inv, err := NewInvoker(InvokerConfig{
		Registry: registry,
		Executor: resilience.NewExecutorWithOptions(resilience.WithTimeout(time.Second)),
	})
	if err != nil {
		t.Fatalf("NewInvoker() error = %v", err)
	}
	return inv
}

func TestNewInvoker_RequiresRegistry(t *testing.T) {
	if _, err := NewInvoker(InvokerConfig{}); err == nil {
		t.Error("NewInvoker() without registry should fail")
	}
}

func TestInvoker_Outcomes(t *testing.T) {
	t.Parallel()

	handlerErr := errors.New("upstream refused")
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	inv := newInvoker(t,
		tool.NewBuilder("ok").
			WithParameters(tool.Parameter{Name: "n", Type: tool.TypeInteger, Default: int64(7)}).
			WithHandler(func(_ context.Context, args tool.Arguments) (any, error) {
				n, _ := args.Int("n")
				return n, nil
			}).MustBuild(),
		tool.NewBuilder("fails").
			WithHandler(func(context.Context, tool.Arguments) (any, error) { return nil, handlerErr }).
			MustBuild(),
		tool.NewBuilder("panics").
			WithHandler(func(context.Context, tool.Arguments) (any, error) { panic("bad state") }).
			MustBuild(),
		tool.NewBuilder("hangs").
			WithTimeout(20*time.Millisecond).
			WithHandler(func(context.Context, tool.Arguments) (any, error) {
				<-release
				return "too late", nil
			}).MustBuild(),
	)

	tests := []struct {
		name    string
		tool    string
		args    tool.Arguments
		want    Outcome
		wantVal any
		check   func(t *testing.T, err error)
	}{
		{name: "default applied", tool: "ok", want: OutcomeSuccess, wantVal: int64(7)},
		{name: "argument wins", tool: "ok", args: tool.Arguments{"n": 3}, want: OutcomeSuccess, wantVal: int64(3)},
		{name: "wrong type", tool: "ok", args: tool.Arguments{"n": "three"}, want: OutcomeValidationError},
		{name: "unknown", tool: "missing", want: OutcomeNotFound},
		{
			name: "handler error", tool: "fails", want: OutcomeHandlerError,
			check: func(t *testing.T, err error) {
				var hf *tool.HandlerFailureError
				if !errors.As(err, &hf) || hf.Tool != "fails" || !errors.Is(err, handlerErr) {
					t.Errorf("error = %v, want HandlerFailureError wrapping the handler's error", err)
				}
			},
		},
		{
			name: "panic", tool: "panics", want: OutcomeHandlerError,
			check: func(t *testing.T, err error) {
				var pe *resilience.PanicError
				if !errors.As(err, &pe) || pe.Value != "bad state" {
					t.Errorf("error = %v, want recovered panic", err)
				}
			},
		},
		{
			name: "timeout", tool: "hangs", want: OutcomeTimeout,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, tool.ErrInvocationTimeout) || !errors.Is(err, context.DeadlineExceeded) {
					t.Errorf("error = %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := inv.Invoke(context.Background(), tt.tool, tt.args)
			if got := Classify(err); got != tt.want {
				t.Fatalf("Classify(%v) = %s, want %s", err, got, tt.want)
			}
			if tt.want == OutcomeSuccess && res.Value != tt.wantVal {
				t.Errorf("Value = %v, want %v", res.Value, tt.wantVal)
			}
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestInvoker_CallerCancellation(t *testing.T) {
	t.Parallel()

	inv := newInvoker(t, tool.NewBuilder("slow").
		WithHandler(func(ctx context.Context, _ tool.Arguments) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).MustBuild())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)

	_, err := inv.Invoke(ctx, "slow", nil)
	if Classify(err) != OutcomeTimeout || !errors.Is(err, context.Canceled) {
		t.Errorf("Invoke() error = %v, want timeout wrapping context.Canceled", err)
	}
}

func TestInvoker_QueuesOverConcurrencyLimit(t *testing.T) {
	t.Parallel()

	inv := newInvoker(t, tool.NewBuilder("slow").
		WithHandler(func(context.Context, tool.Arguments) (any, error) {
			time.Sleep(20 * time.Millisecond)
			return "ok", nil
		}).MustBuild())

	var wg sync.WaitGroup
	errs := make(chan error, 12)
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := inv.Invoke(context.Background(), "slow", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Invoke() error = %v (outcome %s), want success", err, Classify(err))
		}
	}
}

func TestInvoker_RejectedWhenSaturated(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	registry := memory.NewToolRegistry()
	if err := registry.Register(
		tool.NewBuilder("hold").
			WithHandler(func(context.Context, tool.Arguments) (any, error) {
				close(started)
				<-release
				return nil, nil
			}).MustBuild(),
		tool.NewBuilder("quick").
			WithHandler(func(context.Context, tool.Arguments) (any, error) {
				return "ok", nil
			}).MustBuild(),
	); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	inv, err := NewInvoker(InvokerConfig{
		Registry: registry,
		Executor: resilience.NewExecutor(resilience.ExecutorConfig{MaxConcurrent: 1, MaxQueue: -1}),
	})
	if err != nil {
		t.Fatalf("NewInvoker() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = inv.Invoke(context.Background(), "hold", nil)
	}()
	<-started

	_, err = inv.Invoke(context.Background(), "quick", nil)
	close(release)
	<-done

	if got := Classify(err); got != OutcomeRejected {
		t.Fatalf("Classify(%v) = %s, want %s", err, got, OutcomeRejected)
	}
	var failure *tool.HandlerFailureError
	if errors.As(err, &failure) {
		t.Error("a rejected call is not a handler failure")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want Outcome
	}{
		{nil, OutcomeSuccess},
		{fmt.Errorf("%w: x", tool.ErrUnknownTool), OutcomeNotFound},
		{&tool.SchemaMismatchError{}, OutcomeValidationError},
		{&tool.InvalidNameError{Name: ""}, OutcomeValidationError},
		{&tool.HandlerFailureError{Err: errors.New("x")}, OutcomeHandlerError},
		{fmt.Errorf("%w: x", tool.ErrInvocationTimeout), OutcomeTimeout},
		{fmt.Errorf("%w: x", tool.ErrInvocationRejected), OutcomeRejected},
		{errors.New("anything else"), OutcomeHandlerError},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
