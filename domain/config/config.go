// Package config provides domain models for server configuration.
package config

import (
	"time"
)

// ServerConfig represents the complete server configuration.
type ServerConfig struct {
	// Server contains transport settings.
	Server ServerSettings `json:"server" yaml:"server"`
	// Logging contains logger settings.
	Logging LoggingConfig `json:"logging,omitempty" yaml:"logging,omitempty"`
	// Invocation contains tool invocation limits.
	Invocation InvocationConfig `json:"invocation,omitempty" yaml:"invocation,omitempty"`
	// Notification contains change notification settings.
	Notification NotificationConfig `json:"notification,omitempty" yaml:"notification,omitempty"`
	// Tools contains tool sources.
	Tools ToolsConfig `json:"tools,omitempty" yaml:"tools,omitempty"`
	// Storage contains storage backends.
	Storage StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`
	// Tracing contains trace export settings.
	Tracing TelemetryConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	// Metrics contains metrics export settings.
	Metrics TelemetryConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Server modes.
const (
	ModeHTTP  = "http"
	ModeStdio = "stdio"
)

// ServerSettings configures how the server is exposed.
type ServerSettings struct {
	// Name is the MCP server name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Mode is "http" (REST API plus MCP over HTTP) or "stdio" (MCP only).
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"`
	// Host is the REST API bind host.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	// Port is the REST API port.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`
	// MCPAddr is the MCP-over-HTTP listen address in http mode.
	MCPAddr string `json:"mcp_addr,omitempty" yaml:"mcp_addr,omitempty"`
	// Instructions are sent to MCP clients on initialize.
	Instructions string `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	// Environment is reported as the deployment.environment telemetry attribute.
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is "json" or "console".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// InvocationConfig bounds tool invocations.
type InvocationConfig struct {
	// Timeout is the default wait for a handler.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// MaxConcurrent limits concurrent handler executions.
	MaxConcurrent int `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
	// MaxQueue bounds calls waiting for a free slot.
	MaxQueue int `json:"max_queue,omitempty" yaml:"max_queue,omitempty"`
}

// NotificationConfig contains notification settings.
type NotificationConfig struct {
	// QueueSize bounds the pending signals per listener.
	QueueSize int `json:"queue_size,omitempty" yaml:"queue_size,omitempty"`
	// DeliveryTimeout bounds a single delivery.
	DeliveryTimeout Duration `json:"delivery_timeout,omitempty" yaml:"delivery_timeout,omitempty"`
	// Endpoints is the list of webhook endpoints.
	Endpoints []EndpointConfig `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	// Batching configures event batching.
	Batching BatchingConfig `json:"batching,omitempty" yaml:"batching,omitempty"`
}

// EndpointConfig configures a webhook endpoint.
type EndpointConfig struct {
	// Name is a human-readable name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// URL is the webhook URL.
	URL string `json:"url" yaml:"url"`
	// Enabled enables the endpoint.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// Secret is the HMAC signing secret.
	Secret string `json:"secret,omitempty" yaml:"secret,omitempty"`
	// Headers are additional HTTP headers.
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	// Tools limits events to changes naming one of these tools.
	Tools []string `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// BatchingConfig configures event batching.
type BatchingConfig struct {
	// Enabled enables batching.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	// MaxSize is the maximum batch size.
	MaxSize int `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	// MaxWait is the maximum wait before flushing.
	MaxWait Duration `json:"max_wait,omitempty" yaml:"max_wait,omitempty"`
}

// ToolsConfig lists where tools come from.
type ToolsConfig struct {
	// ExposeRoutes registers every REST route with an operation id as a tool.
	ExposeRoutes bool `json:"expose_routes" yaml:"expose_routes"`
	// Demo adds configured echo tools.
	Demo []DemoToolConfig `json:"demo,omitempty" yaml:"demo,omitempty"`
	// External lists HTTP-backed tools registered at startup.
	External []ExternalToolConfig `json:"external,omitempty" yaml:"external,omitempty"`
	// Manifest is a file of external tools kept in sync with the registry.
	Manifest string `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	// Watch re-reads the manifest whenever it changes.
	Watch bool `json:"watch,omitempty" yaml:"watch,omitempty"`
}

// DemoToolConfig configures an echo tool built from configuration.
type DemoToolConfig struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Prefix      string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// ExternalToolConfig describes a tool that forwards to an HTTP endpoint.
type ExternalToolConfig struct {
	// Name is the tool name.
	Name string `json:"name" yaml:"name"`
	// Description describes the tool.
	Description string `json:"description" yaml:"description"`
	// EndpointURL is the URL called on invocation.
	EndpointURL string `json:"endpoint_url" yaml:"endpoint_url"`
	// HTTPMethod is GET, POST, PUT or DELETE (default GET).
	HTTPMethod string `json:"http_method,omitempty" yaml:"http_method,omitempty"`
	// Parameters is an optional JSON Schema object for the arguments.
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	// Tags are attached to the tool.
	Tags []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	// Timeout bounds one call to the endpoint.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// StorageConfig configures storage backends.
type StorageConfig struct {
	// Items configures the store behind the REST item resource.
	Items ItemStoreConfig `json:"items,omitempty" yaml:"items,omitempty"`
}

// Item store drivers.
const (
	DriverMemory = "memory"
	DriverBadger = "badger"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongodb"
)

// ItemStoreConfig selects the item store.
type ItemStoreConfig struct {
	// Driver is memory, badger, sqlite, postgres, redis or mongodb.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	// Path is the badger directory or the sqlite file. Empty keeps the
	// data in memory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// URL is the postgres://, redis:// or mongodb:// connection URL.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// SyncWrites makes badger fsync every write.
	SyncWrites bool `json:"sync_writes,omitempty" yaml:"sync_writes,omitempty"`
	// GCInterval is the badger value log GC period. Zero keeps the default.
	GCInterval Duration `json:"gc_interval,omitempty" yaml:"gc_interval,omitempty"`
	// JournalMode is the sqlite journal mode, WAL by default.
	JournalMode string `json:"journal_mode,omitempty" yaml:"journal_mode,omitempty"`
	// Seed inserts the sample items into an empty store.
	Seed bool `json:"seed" yaml:"seed"`
}

// TelemetryConfig configures an OpenTelemetry signal.
type TelemetryConfig struct {
	Enabled  bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Exporter string `json:"exporter,omitempty" yaml:"exporter,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Insecure bool   `json:"insecure,omitempty" yaml:"insecure,omitempty"`
	// SampleRate applies to tracing only. Zero keeps every span.
	SampleRate float64 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Name:    "dynamic-mcp",
			Mode:    ModeHTTP,
			Host:    "127.0.0.1",
			Port:    8000,
			MCPAddr: "127.0.0.1:8001",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Invocation: InvocationConfig{
			Timeout:       Duration(30 * time.Second),
			MaxConcurrent: 10,
			MaxQueue:      100,
		},
		Notification: NotificationConfig{
			QueueSize:       16,
			DeliveryTimeout: Duration(10 * time.Second),
		},
		Tools: ToolsConfig{
			ExposeRoutes: true,
		},
		Storage: StorageConfig{
			Items: ItemStoreConfig{Driver: DriverMemory, Seed: true},
		},
		Tracing: TelemetryConfig{Exporter: "noop"},
		Metrics: TelemetryConfig{Exporter: "noop"},
	}
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
