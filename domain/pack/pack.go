// Package pack provides types for reusable tool collections.
package pack

import (
	"fmt"

	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
)

// Pack is a collection of related tools registered together.
type Pack struct {
	// Name is the unique identifier for the pack.
	Name string

	// Description explains what the pack provides.
	Description string

	// Version is the semantic version of the pack.
	Version string

	// Tools is the collection of tools in this pack.
	Tools []*tool.Descriptor
}

// ToolNames returns the names of all tools in the pack.
func (p *Pack) ToolNames() []string {
	names := make([]string, len(p.Tools))
	for i, t := range p.Tools {
		names[i] = t.Name()
	}
	return names
}

// Validate checks that the pack is named and its tools are present with
// distinct names.
func (p *Pack) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPack)
	}
	seen := make(map[string]bool, len(p.Tools))
	for i, t := range p.Tools {
		if t == nil {
			return fmt.Errorf("%w: %s: tool %d is nil", ErrInvalidPack, p.Name, i)
		}
		if seen[t.Name()] {
			return fmt.Errorf("%w: %s: duplicate tool %q", ErrInvalidPack, p.Name, t.Name())
		}
		seen[t.Name()] = true
	}
	return nil
}

// Builder provides a fluent API for constructing packs.
type Builder struct {
	pack *Pack
}

// NewBuilder creates a new pack builder.
func NewBuilder(name string) *Builder {
	return &Builder{
		pack: &Pack{
			Name:  name,
			Tools: make([]*tool.Descriptor, 0),
		},
	}
}

// WithDescription sets the pack description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.pack.Description = desc
	return b
}

// WithVersion sets the pack version.
func (b *Builder) WithVersion(version string) *Builder {
	b.pack.Version = version
	return b
}

// AddTools adds multiple tools to the pack.
func (b *Builder) AddTools(tools ...*tool.Descriptor) *Builder {
	b.pack.Tools = append(b.pack.Tools, tools...)
	return b
}

// Build returns the constructed pack.
func (b *Builder) Build() *Pack {
	return b.pack
}
