package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the JSON path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates server configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *ServerConfig) ValidationErrors {
	v.errors = nil

	v.validateServer(config)
	v.validateLogging(config)
	v.validateInvocation(config)
	v.validateNotification(config)
	v.validateTools(config)
	v.validateStorage(config)
	v.validateTelemetry("tracing", config.Tracing, "stdout", "otlp", "noop")
	v.validateTelemetry("metrics", config.Metrics, "prometheus", "otlp", "noop")

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) validateServer(config *ServerConfig) {
	s := config.Server
	switch s.Mode {
	case ModeHTTP:
		if s.Port <= 0 || s.Port > 65535 {
			v.addError("server.port", "port must be between 1 and 65535")
		}
		if s.MCPAddr == "" {
			v.addError("server.mcp_addr", "mcp_addr is required in http mode")
		}
	case ModeStdio:
	default:
		v.addError("server.mode", fmt.Sprintf("mode must be %q or %q", ModeHTTP, ModeStdio))
	}
}

func (v *Validator) validateLogging(config *ServerConfig) {
	if l := config.Logging.Level; l != "" && !slices.Contains([]string{"trace", "debug", "info", "warn", "error"}, l) {
		v.addError("logging.level", "unknown level "+l)
	}
	if f := config.Logging.Format; f != "" && f != "json" && f != "console" {
		v.addError("logging.format", "format must be json or console")
	}
}

func (v *Validator) validateInvocation(config *ServerConfig) {
	if config.Invocation.Timeout < 0 {
		v.addError("invocation.timeout", "timeout must not be negative")
	}
	if config.Invocation.MaxConcurrent < 0 {
		v.addError("invocation.max_concurrent", "max_concurrent must not be negative")
	}
	if config.Invocation.MaxQueue < 0 {
		v.addError("invocation.max_queue", "max_queue must not be negative")
	}
}

func (v *Validator) validateNotification(config *ServerConfig) {
	for i, ep := range config.Notification.Endpoints {
		path := fmt.Sprintf("notification.endpoints[%d]", i)
		if ep.URL == "" {
			v.addError(path+".url", "URL is required")
			continue
		}
		if u, err := url.Parse(ep.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			v.addError(path+".url", "URL must be http or https")
		}
	}

	if config.Notification.Batching.Enabled && config.Notification.Batching.MaxSize <= 0 {
		v.addError("notification.batching.max_size", "max_size must be positive when enabled")
	}
}

func (v *Validator) validateTools(config *ServerConfig) {
	for i, d := range config.Tools.Demo {
		if d.Name == "" {
			v.addError(fmt.Sprintf("tools.demo[%d].name", i), "name is required")
		}
	}
	for i, ext := range config.Tools.External {
		for _, e := range ValidateExternalTool(ext) {
			v.addError(fmt.Sprintf("tools.external[%d].%s", i, e.Path), e.Message)
		}
	}
	if config.Tools.Watch && config.Tools.Manifest == "" {
		v.addError("tools.watch", "watch requires tools.manifest")
	}
}

func (v *Validator) validateStorage(config *ServerConfig) {
	items := config.Storage.Items
	switch items.Driver {
	case "", DriverMemory, DriverBadger, DriverSQLite:
	case DriverPostgres, DriverRedis, DriverMongo:
		if items.URL == "" {
			v.addError("storage.items.url", "url is required for driver "+items.Driver)
		}
	default:
		v.addError("storage.items.driver", "driver must be one of memory, badger, sqlite, postgres, redis, mongodb")
	}
	if items.GCInterval < 0 {
		v.addError("storage.items.gc_interval", "gc_interval must not be negative")
	}
	if m := items.JournalMode; m != "" && !slices.Contains(journalModes, strings.ToUpper(m)) {
		v.addError("storage.items.journal_mode", "journal_mode must be one of "+strings.Join(journalModes, ", "))
	}
}

var journalModes = []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}

func (v *Validator) validateTelemetry(path string, t TelemetryConfig, exporters ...string) {
	if !t.Enabled {
		return
	}
	if !slices.Contains(exporters, t.Exporter) {
		v.addError(path+".exporter", "exporter must be one of "+strings.Join(exporters, ", "))
	}
	if t.Exporter == "otlp" && t.Endpoint == "" {
		v.addError(path+".endpoint", "endpoint is required for otlp")
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		v.addError(path+".sample_rate", "sample_rate must be between 0 and 1")
	}
}

// ValidateExternalTool checks one external tool definition. Paths in the
// result are relative to the tool.
func ValidateExternalTool(ext ExternalToolConfig) ValidationErrors {
	var errs ValidationErrors
	if ext.Name == "" {
		errs = append(errs, ValidationError{Path: "name", Message: "name is required"})
	}
	if ext.EndpointURL == "" {
		errs = append(errs, ValidationError{Path: "endpoint_url", Message: "endpoint_url is required"})
	} else if u, err := url.Parse(ext.EndpointURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{Path: "endpoint_url", Message: "endpoint_url must be an absolute http(s) URL"})
	}
	switch strings.ToUpper(ext.HTTPMethod) {
	case "", "GET", "POST", "PUT", "DELETE":
	default:
		errs = append(errs, ValidationError{Path: "http_method", Message: "unsupported method " + ext.HTTPMethod})
	}
	return errs
}
