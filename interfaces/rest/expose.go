package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
)

// TagREST marks tools generated from REST routes.
const TagREST = "rest"

var pathParamPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// route is one REST endpoint. Routes with an operation id are also exposed
// as tools.
type route struct {
	method      string
	path        string
	operationID string
	resource    string
	summary     string
	body        any
	handler     http.HandlerFunc
}

// RouteError is returned by a route tool when the endpoint answers with an
// error status.
type RouteError struct {
	Status int
	Detail string
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Detail, e.Status)
}

// ExposedTools returns one tool per REST route with an operation id. Calling
// a tool dispatches an in-process request through the router.
func (s *Server) ExposedTools() ([]*tool.Descriptor, error) {
	var tools []*tool.Descriptor
	for _, r := range s.routes {
		if r.operationID == "" {
			continue
		}
		d, err := s.routeTool(r)
		if err != nil {
			return nil, fmt.Errorf("expose %s %s: %w", r.method, r.path, err)
		}
		tools = append(tools, d)
	}
	return tools, nil
}

func (s *Server) routeTool(r route) (*tool.Descriptor, error) {
	pathParams := routePathParams(r.path)

	params := make([]tool.Parameter, 0, len(pathParams))
	for _, name := range pathParams {
		t := tool.TypeString
		if strings.HasSuffix(name, "_id") {
			t = tool.TypeInteger
		}
		params = append(params, tool.Parameter{
			Name:        name,
			Type:        t,
			Required:    true,
			Description: "Path parameter " + name,
		})
	}
	if r.body != nil {
		bodySchema, err := tool.DeriveStruct(r.body)
		if err != nil {
			return nil, err
		}
		params = append(params, bodySchema.Parameters()...)
	}
	schema, err := tool.NewSchema(params...)
	if err != nil {
		return nil, err
	}

	b := tool.NewBuilder(r.operationID).
		WithDescription(fmt.Sprintf("%s\n\nCalls: %s %s", r.summary, r.method, r.path)).
		WithSchema(schema).
		WithTags(TagREST, r.resource)
	switch r.method {
	case http.MethodGet:
		b = b.ReadOnly().Idempotent()
	case http.MethodPut:
		b = b.Idempotent()
	case http.MethodDelete:
		b = b.Destructive()
	}

	return b.WithHandler(func(ctx context.Context, args tool.Arguments) (any, error) {
		return s.dispatch(ctx, r, pathParams, args)
	}).Build()
}

func (s *Server) dispatch(ctx context.Context, r route, pathParams []string, args tool.Arguments) (any, error) {
	path := r.path
	used := make(map[string]bool, len(pathParams))
	for _, name := range pathParams {
		path = strings.Replace(path, "{"+name+"}", pathValue(args, name), 1)
		used[name] = true
	}

	var body io.Reader
	if r.body != nil {
		fields := make(map[string]any, len(args))
		for k, v := range args {
			if !used[k] {
				fields[k] = v
			}
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := newRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.status >= http.StatusBadRequest {
		var errResp ErrorResponse
		if json.Unmarshal(rec.body.Bytes(), &errResp) != nil || errResp.Detail == "" {
			errResp.Detail = strings.TrimSpace(rec.body.String())
		}
		return nil, &RouteError{Status: rec.status, Detail: errResp.Detail}
	}

	var out any
	if err := json.Unmarshal(rec.body.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func routePathParams(path string) []string {
	var names []string
	for _, m := range pathParamPattern.FindAllStringSubmatch(path, -1) {
		names = append(names, m[1])
	}
	return names
}

func pathValue(args tool.Arguments, name string) string {
	if n, ok := args.Int(name); ok {
		return strconv.FormatInt(n, 10)
	}
	if s, ok := args.String(name); ok {
		return url.PathEscape(s)
	}
	return url.PathEscape(fmt.Sprint(args[name]))
}

// recorder captures an in-process response.
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header), status: http.StatusOK}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) Write(b []byte) (int, error) { return r.body.Write(b) }

func (r *recorder) WriteHeader(status int) { r.status = status }
