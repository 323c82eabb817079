package httptool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/dynamic-mcp/domain/config"
	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
)

type captured struct {
	Method string
	Query  map[string][]string
	Body   string
	Header http.Header
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []captured
	status   int
	response string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, captured{Method: r.Method, Query: r.URL.Query(), Body: string(body), Header: r.Header.Clone()})
	status, response := f.status, f.response
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, response)
}

func (f *fakeAPI) last() captured {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newServer(t *testing.T, api *fakeAPI) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return srv
}

func TestFactory_BuildDefaults(t *testing.T) {
	t.Parallel()

	d, err := NewFactory().Build(config.ExternalToolConfig{
		Name:        "weather",
		Description: "Current weather",
		EndpointURL: "https://api.example.com/weather",
		Tags:        []string{"weather"},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	params := d.Schema().Parameters()
	if len(params) != 1 || params[0].Name != "params" || params[0].Type != tool.TypeObject || params[0].Required {
		t.Errorf("Parameters() = %+v, want one optional params object", params)
	}
	if !reflect.DeepEqual(d.Tags(), []string{"external", "weather"}) {
		t.Errorf("Tags() = %v", d.Tags())
	}
	if a := d.Annotations(); !a.ReadOnly || !a.OpenWorld || a.Timeout != 30*time.Second {
		t.Errorf("Annotations() = %+v", a)
	}
}

func TestFactory_BuildRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ext     config.ExternalToolConfig
		wantErr error
	}{
		{"patch", config.ExternalToolConfig{Name: "x", EndpointURL: "http://h/p", HTTPMethod: "PATCH"}, ErrUnsupportedMethod},
		{"no url", config.ExternalToolConfig{Name: "x"}, config.ErrValidationFailed},
		{"bad schema", config.ExternalToolConfig{Name: "x", EndpointURL: "http://h/p", Parameters: map[string]any{"type": "array"}}, tool.ErrUnschemaableParameter},
		{"bad name", config.ExternalToolConfig{Name: "has space", EndpointURL: "http://h/p"}, tool.ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewFactory().Build(tt.ext); !errors.Is(err, tt.wantErr) {
				t.Errorf("Build() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEndpointCall_GetSendsQuery(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{response: `{"temp": 21}`}
	srv := newServer(t, api)

	d, err := NewFactory().Build(config.ExternalToolConfig{Name: "weather", EndpointURL: srv.URL + "/weather?v=2"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := d.Call(context.Background(), tool.Arguments{
		"params": map[string]any{"city": "Oslo", "days": float64(3), "fields": []any{"temp", "wind"}},
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !reflect.DeepEqual(got, map[string]any{"temp": float64(21)}) {
		t.Errorf("Call() = %v", got)
	}

	req := api.last()
	wantQuery := map[string][]string{"v": {"2"}, "city": {"Oslo"}, "days": {"3"}, "fields": {"temp", "wind"}}
	if req.Method != http.MethodGet || !reflect.DeepEqual(req.Query, wantQuery) || req.Body != "" {
		t.Errorf("request = %+v", req)
	}
}

func TestEndpointCall_PostSendsBody(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{response: "created"}
	srv := newServer(t, api)

	d, err := NewFactory().Build(config.ExternalToolConfig{
		Name:        "create_ticket",
		EndpointURL: srv.URL,
		HTTPMethod:  "post",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"title": map[string]any{"type": "string"}},
			"required":   []any{"title"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := d.Call(context.Background(), tool.Arguments{"title": "broken"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "created" {
		t.Errorf("non-JSON body should come back as text, got %v", got)
	}

	req := api.last()
	var body map[string]any
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil || body["title"] != "broken" {
		t.Errorf("body = %q", req.Body)
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", req.Header.Get("Content-Type"))
	}
}

func TestEndpointCall_SchemaConstraints(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	srv := newServer(t, api)

	d, err := NewFactory().Build(config.ExternalToolConfig{
		Name:        "lookup",
		EndpointURL: srv.URL,
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"kind": map[string]any{"type": "string", "enum": []any{"a", "b"}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = d.Call(context.Background(), tool.Arguments{"kind": "z"})
	if !errors.Is(err, tool.ErrSchemaMismatch) {
		t.Fatalf("Call() error = %v, want ErrSchemaMismatch", err)
	}
	if api.count() != 0 {
		t.Error("endpoint called despite invalid arguments")
	}
}

func TestEndpointCall_StatusAndBreaker(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{status: http.StatusBadGateway, response: "upstream down"}
	srv := newServer(t, api)

	factory := NewFactory(func(o *Options) {
		o.CircuitBreakerThreshold = 2
		o.CircuitBreakerTimeout = time.Minute
	})
	d, err := factory.Build(config.ExternalToolConfig{Name: "flaky", EndpointURL: srv.URL, HTTPMethod: "DELETE"})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Annotations().Destructive {
		t.Error("DELETE tools should be destructive")
	}

	for i := 0; i < 2; i++ {
		_, err := d.Call(context.Background(), nil)
		var status *StatusError
		if !errors.As(err, &status) || status.StatusCode != http.StatusBadGateway || status.Body != "upstream down" {
			t.Fatalf("call %d error = %v", i, err)
		}
	}

	if _, err := d.Call(context.Background(), nil); err == nil {
		t.Fatal("open circuit should reject the call")
	}
	if api.count() != 2 {
		t.Errorf("requests = %d, open circuit must not reach the endpoint", api.count())
	}
	if state := factory.BreakerState("flaky"); state != "open" {
		t.Errorf("BreakerState() = %q, want open", state)
	}
	if factory.BreakerState("never") != "unknown" {
		t.Error("unknown tool breaker state")
	}

	factory.Forget("flaky")
	if state := factory.BreakerState("flaky"); state != "unknown" {
		t.Errorf("BreakerState() after Forget = %q, want unknown", state)
	}
	d, err = factory.Build(config.ExternalToolConfig{Name: "flaky", EndpointURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	if state := factory.BreakerState("flaky"); state != "closed" {
		t.Errorf("BreakerState() after rebuild = %q, want a fresh closed breaker", state)
	}
}

func TestEndpointCall_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	d, err := NewFactory().Build(config.ExternalToolConfig{
		Name:        "slow",
		EndpointURL: srv.URL,
		Timeout:     config.Duration(50 * time.Millisecond),
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Annotations().Timeout != 50*time.Millisecond {
		t.Errorf("Timeout = %v", d.Annotations().Timeout)
	}

	if _, err := d.Call(context.Background(), nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call() error = %v, want deadline exceeded", err)
	}
}
