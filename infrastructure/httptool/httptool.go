// Package httptool builds tools that forward invocations to external HTTP
// endpoints.
package httptool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"

	"github.com/felixgeelhaar/dynamic-mcp/domain/config"
	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/schema"
)

// defaultParam carries the arguments of a tool declared without a schema.
const defaultParam = "params"

// ErrUnsupportedMethod indicates an HTTP method other than GET, POST, PUT or DELETE.
var ErrUnsupportedMethod = errors.New("unsupported HTTP method")

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// Options configures the factory.
type Options struct {
	// Timeout bounds a request when the tool sets none.
	Timeout time.Duration
	// MaxBodySize limits the response body read.
	MaxBodySize int64
	// CircuitBreakerThreshold is consecutive failures before a tool's circuit opens.
	CircuitBreakerThreshold int
	// CircuitBreakerTimeout is how long an open circuit rejects calls.
	CircuitBreakerTimeout time.Duration
	// UserAgent is the User-Agent header value.
	UserAgent string
	// Client overrides the HTTP client.
	Client *http.Client
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:                 30 * time.Second,
		MaxBodySize:             10 * 1024 * 1024,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		UserAgent:               "dynamic-mcp/1.0",
	}
}

// Factory builds external tools. Each tool name keeps one circuit breaker
// across rebuilds so re-registering a failing endpoint does not reset it.
type Factory struct {
	options Options
	client  *http.Client

	mu       sync.Mutex
	breakers map[string]circuitbreaker.CircuitBreaker[any]
}

// NewFactory creates a factory.
func NewFactory(opts ...func(*Options)) *Factory {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	client := options.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Factory{
		options:  options,
		client:   client,
		breakers: make(map[string]circuitbreaker.CircuitBreaker[any]),
	}
}

// Build turns an external tool definition into a descriptor.
func (f *Factory) Build(ext config.ExternalToolConfig) (*tool.Descriptor, error) {
	if errs := config.ValidateExternalTool(ext); errs.HasErrors() {
		if errs[0].Path == "http_method" {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, ext.HTTPMethod)
		}
		return nil, fmt.Errorf("%w: %v", config.ErrValidationFailed, errs)
	}

	method := strings.ToUpper(ext.HTTPMethod)
	if method == "" {
		method = http.MethodGet
	}

	compiled, err := schema.Compile(ext.Parameters)
	if err != nil {
		return nil, err
	}

	b := tool.NewBuilder(ext.Name).
		WithDescription(ext.Description).
		WithTags(append([]string{tool.TagExternal}, ext.Tags...)...).
		OpenWorld()

	if compiled != nil {
		b = b.WithSchema(compiled.Tool)
	} else {
		b = b.WithParameters(tool.Parameter{
			Name:        defaultParam,
			Type:        tool.TypeObject,
			Description: "Optional parameters to pass to the API.",
		})
	}

	switch method {
	case http.MethodGet:
		b = b.ReadOnly().Idempotent()
	case http.MethodPut:
		b = b.Idempotent()
	case http.MethodDelete:
		b = b.Destructive()
	}

	timeout := ext.Timeout.Duration()
	if timeout <= 0 {
		timeout = f.options.Timeout
	}
	b = b.WithTimeout(timeout)

	call := &endpointCall{
		factory:  f,
		method:   method,
		endpoint: ext.EndpointURL,
		compiled: compiled,
		timeout:  timeout,
		breaker:  f.breaker(ext.Name),
	}
	return b.WithHandler(call.handle).Build()
}

// BreakerState returns the circuit breaker state of the named tool.
func (f *Factory) BreakerState(name string) string {
	f.mu.Lock()
	breaker, ok := f.breakers[name]
	f.mu.Unlock()
	if !ok {
		return "unknown"
	}
	return breaker.State().String()
}

// Forget drops the circuit breaker of a tool that left the registry.
func (f *Factory) Forget(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.breakers, name)
}

func (f *Factory) breaker(name string) circuitbreaker.CircuitBreaker[any] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b, ok := f.breakers[name]; ok {
		return b
	}
	threshold := uint32(max(f.options.CircuitBreakerThreshold, 1)) // #nosec G115 -- clamped positive
	b := circuitbreaker.New[any](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    f.options.CircuitBreakerTimeout,
		Timeout:     f.options.CircuitBreakerTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})
	f.breakers[name] = b
	return b
}

type endpointCall struct {
	factory  *Factory
	method   string
	endpoint string
	compiled *schema.Compiled
	timeout  time.Duration
	breaker  circuitbreaker.CircuitBreaker[any]
}

func (c *endpointCall) handle(ctx context.Context, args tool.Arguments) (any, error) {
	var payload map[string]any
	if c.compiled != nil {
		if err := c.compiled.Validate(args); err != nil {
			return nil, err
		}
		payload = args
	} else if p, ok := args.Object(defaultParam); ok {
		payload = p
	}

	return c.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return c.do(ctx, payload)
	})
}

func (c *endpointCall) do(ctx context.Context, payload map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	switch c.method {
	case http.MethodGet, http.MethodDelete:
		if len(payload) > 0 {
			query := target.Query()
			for key, value := range encodeQuery(payload) {
				for _, v := range value {
					query.Add(key, v)
				}
			}
			target.RawQuery = query.Encode()
		}
	default:
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("encode body: %w", err)
			}
			body = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(ctx, c.method, target.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.factory.options.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.factory.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.factory.options.MaxBodySize))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := data
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data), nil
	}
	return out, nil
}

// encodeQuery flattens payload into query values. Arrays repeat the key;
// objects are sent as JSON.
func encodeQuery(payload map[string]any) url.Values {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		switch v := payload[k].(type) {
		case nil:
		case []any:
			for _, item := range v {
				values.Add(k, scalar(item))
			}
		default:
			values.Add(k, scalar(v))
		}
	}
	return values
}

func scalar(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool, float64, float32, int, int64, int32, json.Number:
		return fmt.Sprint(x)
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	}
}
