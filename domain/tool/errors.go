package tool

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for the tool system.
var (
	// ErrInvalidName indicates a tool name is empty or malformed.
	ErrInvalidName = errors.New("invalid tool name")

	// ErrUnschemaableParameter indicates a parameter has no usable type.
	ErrUnschemaableParameter = errors.New("parameter cannot be described by a schema")

	// ErrUnknownTool indicates the requested tool is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrSchemaMismatch indicates arguments failed validation against a schema.
	ErrSchemaMismatch = errors.New("arguments do not match tool schema")

	// ErrHandlerFailure indicates the tool handler failed during execution.
	ErrHandlerFailure = errors.New("tool handler failed")

	// ErrInvocationTimeout indicates the caller stopped waiting for a handler.
	ErrInvocationTimeout = errors.New("tool invocation timed out")

	// ErrInvocationRejected indicates the handler never ran because every
	// execution slot and queue position was taken.
	ErrInvocationRejected = errors.New("tool invocation rejected: at capacity")

	// ErrNoHandler indicates a tool was built without a handler.
	ErrNoHandler = errors.New("tool has no handler")

	// ErrNilDescriptor indicates a nil descriptor was passed to a registry.
	ErrNilDescriptor = errors.New("nil tool descriptor")
)

// InvalidNameError describes why a tool name was rejected.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidName, e.Name, e.Reason)
}

// Is reports whether target is ErrInvalidName.
func (e *InvalidNameError) Is(target error) bool {
	return target == ErrInvalidName
}

// UnschemaableParameterError names the parameter that could not be typed.
type UnschemaableParameterError struct {
	Param string
	Type  string
}

func (e *UnschemaableParameterError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s: %q has no declared type", ErrUnschemaableParameter, e.Param)
	}
	return fmt.Sprintf("%s: %q has unsupported type %q", ErrUnschemaableParameter, e.Param, e.Type)
}

// Is reports whether target is ErrUnschemaableParameter.
func (e *UnschemaableParameterError) Is(target error) bool {
	return target == ErrUnschemaableParameter
}

// Violation is a single argument validation failure.
type Violation struct {
	Param  string `json:"param"`
	Reason string `json:"reason"`
}

// SchemaMismatchError lists every parameter that failed validation.
type SchemaMismatchError struct {
	Tool       string
	Violations []Violation
}

func (e *SchemaMismatchError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Param + ": " + v.Reason
	}
	if e.Tool == "" {
		return fmt.Sprintf("%s: %s", ErrSchemaMismatch, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("%s %q: %s", ErrSchemaMismatch, e.Tool, strings.Join(parts, "; "))
}

// Is reports whether target is ErrSchemaMismatch.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// Params returns the offending parameter names in report order.
func (e *SchemaMismatchError) Params() []string {
	names := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		names[i] = v.Param
	}
	return names
}

// HandlerFailureError wraps whatever a handler returned or panicked with.
type HandlerFailureError struct {
	Tool string
	Err  error
}

func (e *HandlerFailureError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrHandlerFailure, e.Tool, e.Err)
}

// Is reports whether target is ErrHandlerFailure.
func (e *HandlerFailureError) Is(target error) bool {
	return target == ErrHandlerFailure
}

// Unwrap returns the handler's own error.
func (e *HandlerFailureError) Unwrap() error {
	return e.Err
}
