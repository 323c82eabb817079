// Package rest serves the HTTP API: the item resource, the calculator,
// runtime tool management and the live tool-change stream.
package rest

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/dynamic-mcp/application"
	"github.com/felixgeelhaar/dynamic-mcp/domain/config"
	"github.com/felixgeelhaar/dynamic-mcp/domain/item"
	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
	"github.com/felixgeelhaar/dynamic-mcp/infrastructure/logging"
)

// ToolFactory builds descriptors for tools registered over the API.
type ToolFactory interface {
	Build(ext config.ExternalToolConfig) (*tool.Descriptor, error)
	// Forget releases state kept for a tool that was unregistered.
	Forget(name string)
}

// Config configures the server.
type Config struct {
	// Address is the HTTP listen address (default "127.0.0.1:8000").
	Address string
	// Runtime is the tool runtime served under /tools.
	Runtime *application.Runtime
	// Items backs the /items resource.
	Items item.Store
	// Tools builds tools posted to /tools/register.
	Tools ToolFactory
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration
	// WriteTimeout is the HTTP write timeout. Websocket sessions are not
	// bound by it.
	WriteTimeout time.Duration
	// PingInterval is the websocket keepalive interval.
	PingInterval time.Duration
}

// Server is the REST API server.
type Server struct {
	config     Config
	mux        *http.ServeMux
	routes     []route
	httpServer *http.Server

	sessionsMu sync.Mutex
	sessions   map[string]context.CancelFunc
	sessionsWG sync.WaitGroup
	closing    bool
}

// New creates a server and registers its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Runtime == nil || cfg.Items == nil || cfg.Tools == nil {
		return nil, errors.New("rest: Runtime, Items and Tools are required")
	}
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:8000"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 30 * time.Second
	}

	s := &Server{
		config:   cfg,
		mux:      http.NewServeMux(),
		sessions: make(map[string]context.CancelFunc),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.routes = []route{
		{method: http.MethodGet, path: "/items", operationID: "list_items", resource: "items",
			summary: "List all items in the inventory.", handler: s.handleListItems},
		{method: http.MethodGet, path: "/items/{item_id}", operationID: "get_item", resource: "items",
			summary: "Get a specific item by its ID.", handler: s.handleGetItem},
		{method: http.MethodPost, path: "/items", operationID: "create_item", resource: "items",
			summary: "Create a new item in the inventory.", body: item.Input{}, handler: s.handleCreateItem},
		{method: http.MethodPut, path: "/items/{item_id}", operationID: "update_item", resource: "items",
			summary: "Update an existing item by its ID.", body: item.Input{}, handler: s.handleUpdateItem},
		{method: http.MethodDelete, path: "/items/{item_id}", operationID: "delete_item", resource: "items",
			summary: "Delete an item from the inventory.", handler: s.handleDeleteItem},
		{method: http.MethodPost, path: "/calculate", operationID: "calculate", resource: "calculate",
			summary: "Perform an arithmetic calculation: add, subtract, multiply or divide.", body: calcBody{}, handler: s.handleCalculate},
		{method: http.MethodGet, path: "/health", operationID: "health_check", resource: "health",
			summary: "Check that the API is running.", handler: s.handleHealth},

		{method: http.MethodGet, path: "/tools", handler: s.handleListTools},
		{method: http.MethodGet, path: "/tools/events", handler: s.handleToolEvents},
		{method: http.MethodGet, path: "/tools/{name}", handler: s.handleGetTool},
		{method: http.MethodPost, path: "/tools/register", handler: s.handleRegisterTool},
		{method: http.MethodDelete, path: "/tools/unregister/{name}", handler: s.handleUnregisterTool},
		{method: http.MethodPost, path: "/tools/{name}/call", handler: s.handleCallTool},
	}

	for _, r := range s.routes {
		s.mux.HandleFunc(r.method+" "+r.path, r.handler)
	}
	if s.config.Metrics != nil {
		s.mux.Handle("GET /metrics", s.config.Metrics)
	}
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.withMiddleware(s.mux)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.ReadTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}

	logging.Info().
		Add(logging.Component("rest")).
		Add(logging.Str("address", ln.Addr().String())).
		Msg("REST API listening")

	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown ends websocket sessions and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessionsMu.Lock()
	s.closing = true
	for _, cancel := range s.sessions {
		cancel()
	}
	s.sessionsMu.Unlock()
	s.sessionsWG.Wait()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// withMiddleware wraps the handler with request logging and panic recovery.
func (s *Server) withMiddleware(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		w.Header().Set("X-Content-Type-Options", "nosniff")

		defer func() {
			if rec := recover(); rec != nil {
				logging.Error().
					Add(logging.Component("rest")).
					Add(logging.Str("method", r.Method)).
					Add(logging.Str("path", r.URL.Path)).
					Add(logging.Str("panic", panicString(rec))).
					Msg("handler panicked")
				if !sw.wrote {
					writeError(sw, http.StatusInternalServerError, "Internal server error")
				}
				return
			}
			logging.Debug().
				Add(logging.Component("rest")).
				Add(logging.Str("method", r.Method)).
				Add(logging.Str("path", r.URL.Path)).
				Add(logging.Int("status", sw.status)).
				Add(logging.Duration(time.Since(start))).
				Msg("request served")
		}()

		handler.ServeHTTP(sw, r)
	})
}
