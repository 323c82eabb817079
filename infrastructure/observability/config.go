// Package observability wires OpenTelemetry tracing and metrics export.
package observability

import "time"

// ExporterType names a telemetry exporter.
type ExporterType string

// Exporters. Stdout is tracing only, Prometheus is metrics only.
const (
	ExporterOTLP       ExporterType = "otlp"
	ExporterStdout     ExporterType = "stdout"
	ExporterPrometheus ExporterType = "prometheus"
	ExporterNoop       ExporterType = "noop"
)

// Signal selects where one telemetry signal goes. The zero Signal and the
// noop exporter export nothing.
type Signal struct {
	Exporter ExporterType
	// Endpoint is the OTLP gRPC address, e.g. "localhost:4317".
	Endpoint string
	// Insecure dials the OTLP endpoint without TLS.
	Insecure bool
}

func (s Signal) enabled() bool {
	return s.Exporter != "" && s.Exporter != ExporterNoop
}

// Config describes the service resource and its two signals.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	Traces Signal
	// SampleRate is the fraction of traces kept, 1 keeps all.
	SampleRate float64

	Metrics Signal
	// ExportInterval is the OTLP metrics push period.
	ExportInterval time.Duration
}

// DefaultConfig exports nothing.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "dynamic-mcp",
		ServiceVersion: "dev",
		Environment:    "development",
		SampleRate:     1,
		ExportInterval: time.Minute,
	}
}

// Option configures the provider.
type Option func(*Config)

// WithService sets the service name and version resource attributes.
func WithService(name, version string) Option {
	return func(c *Config) {
		c.ServiceName = name
		c.ServiceVersion = version
	}
}

// WithEnvironment sets the deployment environment attribute. Empty keeps
// the default.
func WithEnvironment(env string) Option {
	return func(c *Config) {
		if env != "" {
			c.Environment = env
		}
	}
}

// WithTraces exports spans to s.
func WithTraces(s Signal) Option {
	return func(c *Config) {
		c.Traces = s
	}
}

// WithSampleRate sets the trace sampling ratio.
func WithSampleRate(rate float64) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

// WithMetrics exports metrics to s.
func WithMetrics(s Signal) Option {
	return func(c *Config) {
		c.Metrics = s
	}
}
