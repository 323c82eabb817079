package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/dynamic-mcp/application"
	domainnotification "github.com/felixgeelhaar/dynamic-mcp/domain/notification"
	"github.com/felixgeelhaar/dynamic-mcp/domain/pack"
	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/notification"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/resilience"
)

type addNumbersInput struct {
	A int64 `json:"a"`
	B int64 `json:"b"`
}

func addNumbers(t *testing.T) *tool.Descriptor {
	t.Helper()
	d, err := tool.NewBuilder("add_numbers").
		WithDescription("Add two integers").
		WithParameters(
			tool.Parameter{Name: "a", Type: tool.TypeInteger, Required: true},
			tool.Parameter{Name: "b", Type: tool.TypeInteger, Required: true},
		).
		WithHandler(tool.HandlerFor(func(_ context.Context, in addNumbersInput) (any, error) {
			return in.A + in.B, nil
		})).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return d
}

func echo(name string) *tool.Descriptor {
	return tool.NewBuilder(name).
		WithParameters(tool.Parameter{Name: "message", Type: tool.TypeString, Required: true}).
		WithHandler(func(_ context.Context, args tool.Arguments) (any, error) {
			msg, _ := args.String("message")
			return "Echo: " + msg, nil
		}).
		MustBuild()
}

func newRuntime(t *testing.T, opts ...application.Option) *application.Runtime {
	t.Helper()
	rt, err := application.NewRuntime(opts...)
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestRuntime_RegisterListInvoke(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)
	if err := rt.Register(addNumbers(t)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tools := rt.List()
	if len(tools) != 1 || tools[0].Name() != "add_numbers" {
		t.Fatalf("List() = %v", tools)
	}

	res, err := rt.Invoke(context.Background(), "add_numbers", tool.Arguments{"a": 2, "b": 3})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Value != int64(5) || res.Tool != "add_numbers" {
		t.Errorf("Invoke() = %+v, want 5", res)
	}

	_, err = rt.Invoke(context.Background(), "add_numbers", tool.Arguments{"a": 2})
	var mismatch *tool.SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Invoke() error = %v, want SchemaMismatchError", err)
	}
	if !reflect.DeepEqual(mismatch.Params(), []string{"b"}) || mismatch.Tool != "add_numbers" {
		t.Errorf("mismatch = %+v", mismatch)
	}
}

func TestRuntime_ChangeNotifications(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)
	listener := notification.NewChannelListener(8)
	rt.Attach(listener)

	receive := func() *domainnotification.Event {
		t.Helper()
		select {
		case e := <-listener.Events():
			return e
		case <-time.After(2 * time.Second):
			t.Fatal("no notification delivered")
			return nil
		}
	}

	if err := rt.Register(echo("echo")); err != nil {
		t.Fatal(err)
	}
	first := receive()

	removed, err := rt.Unregister("echo")
	if err != nil || !removed {
		t.Fatalf("Unregister() = %v, %v", removed, err)
	}
	second := receive()
	if second.Revision <= first.Revision {
		t.Errorf("revisions out of order: %d then %d", first.Revision, second.Revision)
	}

	var payload domainnotification.ToolsChangedPayload
	if err := second.DecodePayload(&payload); err != nil || payload.Kind != tool.ChangeUnregistered {
		t.Errorf("payload = %+v, %v", payload, err)
	}

	removed, err = rt.Unregister("echo")
	if err != nil || removed {
		t.Fatalf("second Unregister() = %v, %v; want false, nil", removed, err)
	}
	select {
	case e := <-listener.Events():
		t.Errorf("unexpected third notification: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRuntime_ConcurrentRegistration(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)
	var wg sync.WaitGroup
	for _, name := range []string{"tool_x", "tool_y"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_ = rt.Register(echo(name))
		}(name)
	}
	wg.Wait()

	names := map[string]bool{}
	for _, d := range rt.List() {
		names[d.Name()] = true
	}
	if len(names) != 2 || !names["tool_x"] || !names["tool_y"] {
		t.Errorf("List() names = %v", names)
	}
	if rt.Revision() != 2 {
		t.Errorf("Revision() = %d, want 2", rt.Revision())
	}
}

func TestRuntime_UnknownTool(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)
	_ = rt.Register(echo("echo"))

	_, err := rt.Invoke(context.Background(), "does_not_exist", nil)
	if !errors.Is(err, tool.ErrUnknownTool) {
		t.Fatalf("Invoke() error = %v, want ErrUnknownTool", err)
	}
	if application.Classify(err) != application.OutcomeNotFound {
		t.Errorf("Classify() = %s", application.Classify(err))
	}
	if len(rt.List()) != 1 || rt.Revision() != 1 {
		t.Error("failed invocation changed registry state")
	}
}

func TestRuntime_RegisterPack(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)
	listener := notification.NewChannelListener(8)
	rt.Attach(listener)

	p := pack.NewBuilder("demo").AddTools(echo("a"), echo("b"), echo("c")).Build()
	if err := rt.RegisterPack(p); err != nil {
		t.Fatalf("RegisterPack() error = %v", err)
	}
	if rt.Revision() != 1 {
		t.Errorf("Revision() = %d, a pack registers as one change", rt.Revision())
	}

	bad := pack.NewBuilder("bad").AddTools(echo("a"), echo("a")).Build()
	if err := rt.RegisterPack(bad); !errors.Is(err, pack.ErrInvalidPack) {
		t.Errorf("RegisterPack(bad) error = %v", err)
	}
}

func TestRuntime_DetachAndClose(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t)
	handle := rt.Attach(notification.NewChannelListener(1))
	if rt.Listeners() != 1 {
		t.Fatalf("Listeners() = %d", rt.Listeners())
	}
	rt.Detach(handle)
	rt.Detach(handle)
	if rt.Listeners() != 0 {
		t.Errorf("Listeners() = %d after Detach", rt.Listeners())
	}
	if err := rt.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestRuntime_InvokeJSON(t *testing.T) {
	t.Parallel()

	rt := newRuntime(t, application.WithExecutor(resilience.NewExecutorWithOptions(resilience.WithTimeout(time.Second))))
	_ = rt.Register(echo("echo"))

	res, err := rt.InvokeJSON(context.Background(), "echo", json.RawMessage(`{"message":"hi"}`))
	if err != nil || res.Value != "Echo: hi" {
		t.Fatalf("InvokeJSON() = %+v, %v", res, err)
	}

	if _, err := rt.InvokeJSON(context.Background(), "echo", json.RawMessage(`[1,2]`)); !errors.Is(err, tool.ErrSchemaMismatch) {
		t.Errorf("InvokeJSON(array) error = %v, want ErrSchemaMismatch", err)
	}
	if _, err := rt.InvokeJSON(context.Background(), "nope", json.RawMessage(`[1,2]`)); !errors.Is(err, tool.ErrUnknownTool) {
		t.Errorf("InvokeJSON(unknown) error = %v, want ErrUnknownTool", err)
	}
}
