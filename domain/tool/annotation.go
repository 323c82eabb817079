// Package tool provides the domain model for runtime-registered tools.
package tool

import "time"

// Annotations describe tool behavior to clients and to the invoker.
type Annotations struct {
	// ReadOnly indicates the tool has no side effects.
	ReadOnly bool `json:"read_only"`

	// Destructive indicates the tool may cause irreversible changes.
	Destructive bool `json:"destructive"`

	// Idempotent indicates repeated calls with the same arguments have the
	// same effect.
	Idempotent bool `json:"idempotent"`

	// OpenWorld indicates the tool reaches systems outside this process.
	OpenWorld bool `json:"open_world"`

	// Timeout bounds a single invocation (0 = invoker default).
	Timeout time.Duration `json:"timeout,omitempty"`
}

// DefaultAnnotations returns annotations with safe defaults.
func DefaultAnnotations() Annotations {
	return Annotations{}
}

// ReadOnlyAnnotations returns annotations for a read-only tool.
func ReadOnlyAnnotations() Annotations {
	return Annotations{
		ReadOnly:   true,
		Idempotent: true,
	}
}

// DestructiveAnnotations returns annotations for a destructive tool.
func DestructiveAnnotations() Annotations {
	return Annotations{
		Destructive: true,
	}
}
