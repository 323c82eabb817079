// Package demo provides the built-in demonstration tools registered at
// startup: echo, server_info, api_reference, add_numbers and echo tools
// built from configuration.
package demo

import (
	"context"
	"fmt"

	dynamicmcp "github.com/felixgeelhaar/dynamic-mcp"
	"github.com/felixgeelhaar/dynamic-mcp/domain/config"
	"github.com/felixgeelhaar/dynamic-mcp/domain/pack"
	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
)

// Options configures the demo pack.
type Options struct {
	// BaseURL is the REST API address reported by api_reference.
	BaseURL string
	// Configured adds echo tools built with FromConfig.
	Configured []config.DemoToolConfig
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{BaseURL: "http://localhost:8000"}
}

// New creates the demo pack.
func New(opts ...func(*Options)) (*pack.Pack, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	tools := []*tool.Descriptor{
		echoTool(),
		serverInfoTool(),
		apiReferenceTool(options.BaseURL),
		addNumbersTool(),
	}
	for _, c := range options.Configured {
		d, err := FromConfig(c)
		if err != nil {
			return nil, err
		}
		tools = append(tools, d)
	}

	p := pack.NewBuilder("demo").
		WithDescription("Programmatically registered demonstration tools").
		WithVersion(dynamicmcp.Version).
		AddTools(tools...).
		Build()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

type echoInput struct {
	Message string `json:"message" description:"The message to echo back."`
}

func echoTool() *tool.Descriptor {
	return tool.NewBuilder("echo").
		WithDescription("Echo back the provided message. Useful for testing MCP connectivity.").
		WithInput(echoInput{}).
		WithTags("utility", "test").
		ReadOnly().
		Idempotent().
		WithHandler(tool.HandlerFor(func(_ context.Context, in echoInput) (any, error) {
			return "Echo: " + in.Message, nil
		})).
		MustBuild()
}

// ServerInfo is returned by the server_info tool.
type ServerInfo struct {
	Name                 string   `json:"name"`
	Version              string   `json:"version"`
	Description          string   `json:"description"`
	PatternsDemonstrated []string `json:"patterns_demonstrated"`
}

func serverInfoTool() *tool.Descriptor {
	return tool.NewBuilder("server_info").
		WithDescription("Get detailed information about this MCP server and the patterns it demonstrates.").
		WithTags("info", "metadata").
		ReadOnly().
		WithHandler(func(context.Context, tool.Arguments) (any, error) {
			return ServerInfo{
				Name:        "Dynamic MCP Tools Server",
				Version:     dynamicmcp.Version,
				Description: "Runtime tool registration with live change notification",
				PatternsDemonstrated: []string{
					"REST routes exposed as tools",
					"Programmatic tool registration",
					"Runtime registration of external APIs",
				},
			}, nil
		}).
		MustBuild()
}

// Endpoint maps a tool to its REST route.
type Endpoint struct {
	ToolName     string `json:"tool_name"`
	RESTEndpoint string `json:"rest_endpoint"`
	Description  string `json:"description"`
}

// APIReference is returned by the api_reference tool.
type APIReference struct {
	Message        string     `json:"message"`
	RESTAPIBaseURL string     `json:"rest_api_base_url"`
	Endpoints      []Endpoint `json:"endpoints"`
	Note           string     `json:"note"`
}

func apiReferenceTool(baseURL string) *tool.Descriptor {
	ref := APIReference{
		Message:        "This MCP server exposes REST API endpoints as tools.",
		RESTAPIBaseURL: baseURL,
		Endpoints: []Endpoint{
			{"list_items", "GET /items", "List all items in the inventory"},
			{"get_item", "GET /items/{item_id}", "Get a specific item by ID"},
			{"create_item", "POST /items", "Create a new item"},
			{"update_item", "PUT /items/{item_id}", "Update an existing item"},
			{"delete_item", "DELETE /items/{item_id}", "Delete an item"},
			{"calculate", "POST /calculate", "Perform arithmetic calculations"},
		},
		Note: "All tools call the corresponding REST endpoints internally.",
	}
	return tool.NewBuilder("api_reference").
		WithDescription("Get a mapping of MCP tools to their corresponding REST API endpoints.").
		WithTags("info", "api").
		ReadOnly().
		WithHandler(func(context.Context, tool.Arguments) (any, error) {
			return ref, nil
		}).
		MustBuild()
}

type addNumbers struct{}

func (addNumbers) Parameters() []tool.ParamSpec {
	return []tool.ParamSpec{
		{Name: "a", Type: "int", Description: "First addend"},
		{Name: "b", Type: "int", Description: "Second addend"},
	}
}

func addNumbersTool() *tool.Descriptor {
	return tool.NewBuilder("add_numbers").
		WithDescription("Add two integers.").
		WithDescriber(addNumbers{}).
		WithTags("math").
		ReadOnly().
		Idempotent().
		WithHandler(func(_ context.Context, args tool.Arguments) (any, error) {
			a, _ := args.Int("a")
			b, _ := args.Int("b")
			return a + b, nil
		}).
		MustBuild()
}

type inputValue struct {
	InputValue string `json:"input_value"`
}

// FromConfig builds an echo tool that answers "<prefix>: <input_value>".
func FromConfig(c config.DemoToolConfig) (*tool.Descriptor, error) {
	prefix := c.Prefix
	if prefix == "" {
		prefix = "Result"
	}
	description := c.Description
	if description == "" {
		description = "A dynamic tool"
	}
	return tool.NewBuilder(c.Name).
		WithDescription(description).
		WithInput(inputValue{}).
		WithTags("dynamic").
		ReadOnly().
		WithHandler(tool.HandlerFor(func(_ context.Context, in inputValue) (any, error) {
			return fmt.Sprintf("%s: %s", prefix, in.InputValue), nil
		})).
		Build()
}
