// Package mcp exposes the tool runtime over the Model Context Protocol
// using github.com/felixgeelhaar/mcp-go.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/protocol"
	"github.com/felixgeelhaar/mcp-go/transport"

	"github.com/felixgeelhaar/dynamic-mcp/domain/notification"
	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/logging"
)

// CallFunc dispatches one tool call and returns its result value.
type CallFunc func(ctx context.Context, name string, raw json.RawMessage) (any, error)

// Config configures a Bridge.
type Config struct {
	// Name is the server name.
	Name string
	// Version is the server version.
	Version string
	// Description is an optional server description.
	Description string
	// Instructions provides usage instructions for clients.
	Instructions string

	// Tools returns the current tool list.
	Tools func() []*tool.Descriptor
	// Call dispatches tool calls. Unknown names must fail with tool.ErrUnknownTool.
	Call CallFunc
}

// Bridge serves registry tools to MCP clients. tools/list and tools/call are
// answered from the registry on every request, so registrations, updates and
// removals are visible immediately. Sessions that carry a notification
// channel receive notifications/tools/list_changed on every change.
type Bridge struct {
	srv    *mcpgo.Server
	config Config

	mu      sync.Mutex
	listed  []string
	senders map[transport.NotificationSender]struct{}
}

// NewBridge creates the MCP server.
func NewBridge(cfg Config) (*Bridge, error) {
	if cfg.Tools == nil || cfg.Call == nil {
		return nil, fmt.Errorf("mcp bridge: Tools and Call are required")
	}

	info := mcpgo.ServerInfo{
		Name:        cfg.Name,
		Version:     cfg.Version,
		Description: cfg.Description,
		Capabilities: mcpgo.Capabilities{
			Tools: true,
		},
	}

	var opts []mcpgo.Option
	if cfg.Instructions != "" {
		opts = append(opts, mcpgo.WithInstructions(cfg.Instructions))
	}

	b := &Bridge{
		srv:     mcpgo.NewServer(info, opts...),
		config:  cfg,
		senders: make(map[transport.NotificationSender]struct{}),
	}
	b.refresh()
	return b, nil
}

// Deliver implements notification.Listener. Every connected session is told
// that the tool list changed.
func (b *Bridge) Deliver(_ context.Context, event *notification.Event) error {
	added, removed := b.refresh()
	if len(added) > 0 || len(removed) > 0 {
		logging.Info().
			Add(logging.Component("mcp")).
			Add(logging.Revision(event.Revision)).
			Add(logging.Str("added", fmt.Sprint(added))).
			Add(logging.Str("removed", fmt.Sprint(removed))).
			Msg("tool list changed")
	}

	b.mu.Lock()
	senders := make([]transport.NotificationSender, 0, len(b.senders))
	for s := range b.senders {
		senders = append(senders, s)
	}
	b.mu.Unlock()

	for _, s := range senders {
		if err := s.SendNotification(protocol.MethodToolListChanged, struct{}{}); err != nil {
			logging.Warn().
				Add(logging.Component("mcp")).
				Add(logging.ErrorField(err)).
				Msg("list_changed notification failed, dropping session")
			b.mu.Lock()
			delete(b.senders, s)
			b.mu.Unlock()
		}
	}
	return nil
}

// Announced returns the names currently listed to MCP clients, sorted.
func (b *Bridge) Announced() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.listed)
}

// Sessions returns the number of sessions that receive change notifications.
func (b *Bridge) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.senders)
}

// Middleware answers tools/list and tools/call from the registry and
// remembers the notification channel of each session. Other methods pass
// through to the mcp-go server.
func (b *Bridge) Middleware() mcpgo.Middleware {
	return func(next mcpgo.MiddlewareHandlerFunc) mcpgo.MiddlewareHandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			logging.Trace().
				Add(logging.Component("mcp")).
				Add(logging.Str("method", req.Method)).
				Msg("mcp request")

			if s := transport.NotificationSenderFromContext(ctx); s != nil {
				b.mu.Lock()
				b.senders[s] = struct{}{}
				b.mu.Unlock()
			}

			switch req.Method {
			case protocol.MethodToolsList:
				return protocol.NewResponse(req.ID, map[string]any{"tools": b.listTools()}), nil
			case protocol.MethodToolsCall:
				return b.callTool(ctx, req)
			default:
				return next(ctx, req)
			}
		}
	}
}

// ServeStdio runs the server over stdin/stdout.
func (b *Bridge) ServeStdio(ctx context.Context, opts ...mcpgo.ServeOption) error {
	return mcpgo.ServeStdio(ctx, b.srv, b.serveOptions(opts)...)
}

// ServeHTTP runs the server over HTTP.
func (b *Bridge) ServeHTTP(ctx context.Context, addr string, opts ...mcpgo.HTTPOption) error {
	return mcpgo.ServeHTTPWithMiddleware(ctx, b.srv, addr, opts, b.serveOptions(nil)...)
}

func (b *Bridge) serveOptions(extra []mcpgo.ServeOption) []mcpgo.ServeOption {
	opts := []mcpgo.ServeOption{
		mcpgo.WithMiddleware(mcpgo.Recover(), mcpgo.RequestID(), b.Middleware()),
	}
	return append(opts, extra...)
}

// Handle dispatches a call and renders its result as text.
func (b *Bridge) Handle(ctx context.Context, name string, input json.RawMessage) (string, error) {
	value, err := b.config.Call(ctx, name, input)
	if err != nil {
		return "", err
	}
	return render(value)
}

func (b *Bridge) callTool(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, protocol.NewInvalidParams(err.Error())
	}

	text, err := b.Handle(ctx, params.Name, params.Arguments)
	if errors.Is(err, tool.ErrUnknownTool) {
		return nil, protocol.NewNotFound("tool not found: " + params.Name)
	}

	result := map[string]any{}
	if err != nil {
		text = err.Error()
		result["isError"] = true
	}
	result["content"] = []map[string]any{{"type": "text", "text": text}}
	return protocol.NewResponse(req.ID, result), nil
}

func (b *Bridge) listTools() []map[string]any {
	descs := b.config.Tools()
	tools := make([]map[string]any, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, map[string]any{
			"name":        d.Name(),
			"description": d.Description(),
			"inputSchema": d.Schema().JSONSchema(),
			"annotations": annotations(d.Annotations()),
		})
	}
	return tools
}

// refresh records the current tool names and reports the difference.
func (b *Bridge) refresh() (added, removed []string) {
	descs := b.config.Tools()
	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name())
	}
	slices.Sort(names)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range names {
		if _, found := slices.BinarySearch(b.listed, n); !found {
			added = append(added, n)
		}
	}
	for _, n := range b.listed {
		if _, found := slices.BinarySearch(names, n); !found {
			removed = append(removed, n)
		}
	}
	b.listed = names
	return added, removed
}

func annotations(a tool.Annotations) mcpgo.ToolAnnotations {
	return mcpgo.ToolAnnotations{
		ReadOnlyHint:    &a.ReadOnly,
		DestructiveHint: &a.Destructive,
		IdempotentHint:  &a.Idempotent,
		OpenWorldHint:   &a.OpenWorld,
	}
}

func render(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "null", nil
	case string:
		return v, nil
	case json.RawMessage:
		return string(v), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

var _ notification.Listener = (*Bridge)(nil)
