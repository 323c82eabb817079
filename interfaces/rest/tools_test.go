package rest_test

import (
	"context"
	"errors"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/dynamic-mcp/domain/notification"
	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/resilience"
	"github.com/felixgeelhaar/dynamic-mcp/interfaces/rest"
)

func externalAPI(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"city": r.URL.Query().Get("city"), "temp": 21})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestToolManagement(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	api := externalAPI(t)

	_ = f.runtime.Register(tool.NewBuilder("echo").
		WithParameters(tool.Parameter{Name: "message", Type: tool.TypeString, Required: true}).
		WithHandler(func(_ context.Context, args tool.Arguments) (any, error) {
			s, _ := args.String("message")
			return "Echo: " + s, nil
		}).
		MustBuild())

	register := `{"name":"weather","description":"Current weather","endpoint_url":"` + api.URL + `","tags":["weather"]}`
	status, body := f.do(t, http.MethodPost, "/tools/register", register)
	if status != http.StatusOK || body["status"] != "registered" {
		t.Fatalf("register = %d %v", status, body)
	}
	if tl := body["tool"].(map[string]any); tl["method"] != "GET" || tl["endpoint"] != api.URL {
		t.Errorf("register tool = %v", tl)
	}

	status, body = f.do(t, http.MethodPost, "/tools/register", register)
	if status != http.StatusOK || body["status"] != "updated" {
		t.Errorf("re-register = %d %v", status, body)
	}

	status, body = f.do(t, http.MethodGet, "/tools", "")
	if status != http.StatusOK {
		t.Fatalf("list = %d", status)
	}
	if body["total_tools"] != float64(2) ||
		!reflect.DeepEqual(body["tools"], []any{"echo", "weather"}) ||
		!reflect.DeepEqual(body["external_tools"], []any{"weather"}) ||
		body["revision"] != float64(3) {
		t.Errorf("list = %v", body)
	}

	status, body = f.do(t, http.MethodGet, "/tools/weather", "")
	if status != http.StatusOK || body["name"] != "weather" || body["input_schema"] == nil {
		t.Errorf("get = %d %v", status, body)
	}
	if status, _ := f.do(t, http.MethodGet, "/tools/nope", ""); status != http.StatusNotFound {
		t.Errorf("get missing = %d", status)
	}

	status, body = f.do(t, http.MethodPost, "/tools/weather/call", `{"params":{"city":"Oslo"}}`)
	if status != http.StatusOK {
		t.Fatalf("call = %d %v", status, body)
	}
	if result := body["result"].(map[string]any); result["city"] != "Oslo" || body["tool"] != "weather" {
		t.Errorf("call = %v", body)
	}

	status, body = f.do(t, http.MethodPost, "/tools/register", `{"name":"echo","endpoint_url":"`+api.URL+`"}`)
	if status != http.StatusConflict {
		t.Errorf("register over built-in = %d %v", status, body)
	}

	status, body = f.do(t, http.MethodPost, "/tools/register", `{"name":"bad","endpoint_url":"`+api.URL+`","http_method":"PATCH"}`)
	if status != http.StatusBadRequest || !strings.Contains(body["detail"].(string), "PATCH") {
		t.Errorf("register bad method = %d %v", status, body)
	}

	if state := f.tools.BreakerState("weather"); state != "closed" {
		t.Errorf("breaker before unregister = %s, want closed", state)
	}
	status, body = f.do(t, http.MethodDelete, "/tools/unregister/weather", "")
	if status != http.StatusOK || body["removed"] != true {
		t.Errorf("unregister = %d %v", status, body)
	}
	if state := f.tools.BreakerState("weather"); state != "unknown" {
		t.Errorf("breaker after unregister = %s, want it dropped", state)
	}
	status, body = f.do(t, http.MethodDelete, "/tools/unregister/weather", "")
	if status != http.StatusOK || body["removed"] != false {
		t.Errorf("unregister again = %d %v", status, body)
	}
}

func TestCallTool_StatusMapping(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	_ = f.runtime.Register(
		tool.NewBuilder("add").
			WithParameters(
				tool.Parameter{Name: "a", Type: tool.TypeInteger, Required: true},
				tool.Parameter{Name: "b", Type: tool.TypeInteger, Required: true},
			).
			WithHandler(func(_ context.Context, args tool.Arguments) (any, error) {
				a, _ := args.Int("a")
				b, _ := args.Int("b")
				return a + b, nil
			}).
			MustBuild(),
		tool.NewBuilder("fail").
			WithHandler(func(context.Context, tool.Arguments) (any, error) { return nil, errors.New("upstream down") }).
			MustBuild(),
		tool.NewBuilder("slow").
			WithTimeout(20*time.Millisecond).
			WithHandler(func(context.Context, tool.Arguments) (any, error) { <-release; return nil, nil }).
			MustBuild(),
	)

	tests := []struct {
		name        string
		path        string
		body        string
		wantStatus  int
		wantOutcome string
	}{
		{"success", "/tools/add/call", `{"a":2,"b":3}`, http.StatusOK, ""},
		{"unknown", "/tools/missing/call", `{}`, http.StatusNotFound, "not_found"},
		{"wrong type", "/tools/add/call", `{"a":"two","b":3}`, http.StatusBadRequest, "validation_error"},
		{"missing arg", "/tools/add/call", `{"a":2}`, http.StatusBadRequest, "validation_error"},
		{"not an object", "/tools/add/call", `[1,2]`, http.StatusBadRequest, "validation_error"},
		{"handler error", "/tools/fail/call", ``, http.StatusBadGateway, "handler_error"},
		{"timeout", "/tools/slow/call", ``, http.StatusGatewayTimeout, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodPost, tt.path, tt.body)
			if status != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%v)", status, tt.wantStatus, body)
			}
			if tt.wantOutcome != "" && body["outcome"] != tt.wantOutcome {
				t.Errorf("outcome = %v, want %s", body["outcome"], tt.wantOutcome)
			}
			if tt.wantOutcome == "" && body["result"] != float64(5) {
				t.Errorf("result = %v", body["result"])
			}
		})
	}

	_, body := f.do(t, http.MethodPost, "/tools/add/call", `{"a":"two"}`)
	violations, _ := body["violations"].([]any)
	if len(violations) != 2 {
		t.Errorf("violations = %v, want both parameters reported", body["violations"])
	}
}

func TestCallTool_RejectedWhenSaturated(t *testing.T) {
	t.Parallel()
	f := newFixture(t, resilience.WithMaxConcurrent(1), resilience.WithMaxQueue(-1))

	started := make(chan struct{})
	release := make(chan struct{})
	_ = f.runtime.Register(
		tool.NewBuilder("hold").
			WithHandler(func(context.Context, tool.Arguments) (any, error) {
				close(started)
				<-release
				return "done", nil
			}).
			MustBuild(),
		tool.NewBuilder("quick").
			WithHandler(func(context.Context, tool.Arguments) (any, error) { return "ok", nil }).
			MustBuild(),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.runtime.Invoke(context.Background(), "hold", nil)
	}()
	<-started

	status, body := f.do(t, http.MethodPost, "/tools/quick/call", ``)
	close(release)
	<-done

	if status != http.StatusServiceUnavailable || body["outcome"] != "rejected" {
		t.Errorf("call while saturated = %d %v", status, body)
	}
}

func TestToolEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/tools/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snapshot rest.SnapshotMessage
	if err := conn.ReadJSON(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Type != "tools.snapshot" || snapshot.Revision != 0 || len(snapshot.Tools) != 0 || snapshot.Session == "" {
		t.Errorf("snapshot = %+v", snapshot)
	}

	// The listener is attached before the snapshot is written.
	if f.runtime.Listeners() != 1 {
		t.Fatalf("Listeners() = %d", f.runtime.Listeners())
	}

	_ = f.runtime.Register(tool.NewBuilder("late").
		WithHandler(func(context.Context, tool.Arguments) (any, error) { return nil, nil }).
		MustBuild())

	var event notification.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	var payload notification.ToolsChangedPayload
	if err := event.DecodePayload(&payload); err != nil {
		t.Fatal(err)
	}
	if event.Type != notification.EventToolsListChanged || event.Revision != 1 || !reflect.DeepEqual(payload.Tools, []string{"late"}) {
		t.Errorf("event = %+v payload = %+v", event, payload)
	}

	_ = conn.Close()
	deadline := time.Now().Add(3 * time.Second)
	for f.runtime.Listeners() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if f.runtime.Listeners() != 0 {
		t.Errorf("closing the socket should detach the listener")
	}
}

func TestExposedTools(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tools, err := f.server.ExposedTools()
	if err != nil {
		t.Fatalf("ExposedTools() error = %v", err)
	}
	names := make([]string, len(tools))
	for i, d := range tools {
		names[i] = d.Name()
	}
	want := []string{"list_items", "get_item", "create_item", "update_item", "delete_item", "calculate", "health_check"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v", names)
	}
	if err := f.runtime.Register(tools...); err != nil {
		t.Fatal(err)
	}

	get, _ := f.runtime.Lookup("get_item")
	if !get.Annotations().ReadOnly || !reflect.DeepEqual(get.Tags(), []string{"items", "rest"}) {
		t.Errorf("get_item annotations = %+v tags = %v", get.Annotations(), get.Tags())
	}
	if del, _ := f.runtime.Lookup("delete_item"); !del.Annotations().Destructive {
		t.Error("delete_item should be destructive")
	}
	create, _ := f.runtime.Lookup("create_item")
	if !reflect.DeepEqual(create.Schema().Required(), []string{"name", "price"}) {
		t.Errorf("create_item Required() = %v", create.Schema().Required())
	}

	ctx := context.Background()

	res, err := f.runtime.Invoke(ctx, "get_item", tool.Arguments{"item_id": 1})
	if err != nil {
		t.Fatalf("get_item error = %v", err)
	}
	if res.Value.(map[string]any)["name"] != "Laptop" {
		t.Errorf("get_item = %v", res.Value)
	}

	res, err = f.runtime.Invoke(ctx, "create_item", tool.Arguments{"name": "Desk", "price": 250.0})
	if err != nil || res.Value.(map[string]any)["id"] != float64(4) {
		t.Errorf("create_item = %v, %v", res.Value, err)
	}

	res, err = f.runtime.Invoke(ctx, "calculate", tool.Arguments{"operation": "multiply", "a": 6, "b": 7})
	if err != nil || res.Value.(map[string]any)["result"] != float64(42) {
		t.Errorf("calculate = %v, %v", res.Value, err)
	}

	_, err = f.runtime.Invoke(ctx, "get_item", tool.Arguments{"item_id": 999})
	var routeErr *rest.RouteError
	if !errors.As(err, &routeErr) || routeErr.Status != http.StatusNotFound || !strings.Contains(routeErr.Detail, "not found") {
		t.Errorf("get_item missing error = %v", err)
	}

	status, body := f.do(t, http.MethodPost, "/tools/health_check/call", "")
	if status != http.StatusOK || body["result"].(map[string]any)["status"] != "healthy" {
		t.Errorf("health_check call = %d %v", status, body)
	}
}
