package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Handler is the function a tool invocation dispatches to.
type Handler func(ctx context.Context, args Arguments) (any, error)

// HandlerFor adapts a typed handler. Arguments are bound into In before fn
// is called.
func HandlerFor[In any](fn func(ctx context.Context, in In) (any, error)) Handler {
	return func(ctx context.Context, args Arguments) (any, error) {
		var in In
		if err := args.Bind(&in); err != nil {
			return nil, err
		}
		return fn(ctx, in)
	}
}

// Descriptor is the immutable record of one registered tool.
type Descriptor struct {
	name        string
	description string
	schema      Schema
	tags        []string
	annotations Annotations
	handler     Handler
}

// Name returns the tool name.
func (d *Descriptor) Name() string {
	return d.name
}

// Description returns the tool description.
func (d *Descriptor) Description() string {
	return d.description
}

// Schema returns the parameter schema.
func (d *Descriptor) Schema() Schema {
	return d.schema
}

// TagExternal marks tools that forward calls to an external endpoint.
// Only such tools may be replaced or removed through the REST API or a
// manifest.
const TagExternal = "external"

// Tags returns the sorted tag set.
func (d *Descriptor) Tags() []string {
	return slices.Clone(d.tags)
}

// HasTag reports whether the tool carries tag.
func (d *Descriptor) HasTag(tag string) bool {
	_, found := slices.BinarySearch(d.tags, tag)
	return found
}

// Annotations returns the tool annotations.
func (d *Descriptor) Annotations() Annotations {
	return d.annotations
}

// Call runs the handler without validation. Callers normally go through
// the invoker instead.
func (d *Descriptor) Call(ctx context.Context, args Arguments) (any, error) {
	if d.handler == nil {
		return nil, ErrNoHandler
	}
	return d.handler(ctx, args)
}

// View is the client-facing form of a descriptor. The handler is never
// part of it.
type View struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []Parameter     `json:"parameters"`
	InputSchema json.RawMessage `json:"input_schema"`
	Tags        []string        `json:"tags"`
	Annotations Annotations     `json:"annotations"`
}

// View returns the serializable view of the descriptor.
func (d *Descriptor) View() View {
	tags := d.Tags()
	if tags == nil {
		tags = []string{}
	}
	return View{
		Name:        d.name,
		Description: d.description,
		Parameters:  d.schema.Parameters(),
		InputSchema: d.schema.JSONSchema(),
		Tags:        tags,
		Annotations: d.annotations,
	}
}

// Builder provides a fluent API for constructing descriptors.
type Builder struct {
	def *Descriptor
	err error
}

// NewBuilder creates a new tool builder with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{
		def: &Descriptor{
			name:        name,
			annotations: DefaultAnnotations(),
		},
	}
}

// WithDescription sets the tool description.
func (b *Builder) WithDescription(desc string) *Builder {
	if b.err != nil {
		return b
	}
	b.def.description = desc
	return b
}

// WithSchema sets a precomputed schema.
func (b *Builder) WithSchema(schema Schema) *Builder {
	if b.err != nil {
		return b
	}
	b.def.schema = schema
	return b
}

// WithParameters sets the schema from explicit parameters.
func (b *Builder) WithParameters(params ...Parameter) *Builder {
	if b.err != nil {
		return b
	}
	b.def.schema, b.err = NewSchema(params...)
	return b
}

// WithDescriber derives the schema from declared parameters.
func (b *Builder) WithDescriber(d Describer) *Builder {
	if b.err != nil {
		return b
	}
	b.def.schema, b.err = Derive(d.Parameters())
	return b
}

// WithInput derives the schema from the fields of an input struct.
func (b *Builder) WithInput(v any) *Builder {
	if b.err != nil {
		return b
	}
	b.def.schema, b.err = DeriveStruct(v)
	return b
}

// WithAnnotations sets the tool annotations.
func (b *Builder) WithAnnotations(annotations Annotations) *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations = annotations
	return b
}

// ReadOnly marks the tool as read-only.
func (b *Builder) ReadOnly() *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.ReadOnly = true
	b.def.annotations.Idempotent = true
	return b
}

// Destructive marks the tool as destructive.
func (b *Builder) Destructive() *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.Destructive = true
	b.def.annotations.ReadOnly = false
	return b
}

// Idempotent marks the tool as idempotent.
func (b *Builder) Idempotent() *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.Idempotent = true
	return b
}

// OpenWorld marks the tool as reaching outside the process.
func (b *Builder) OpenWorld() *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.OpenWorld = true
	return b
}

// WithTimeout bounds each invocation of the tool.
func (b *Builder) WithTimeout(d time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	b.def.annotations.Timeout = d
	return b
}

// WithTags adds tags to the tool.
func (b *Builder) WithTags(tags ...string) *Builder {
	if b.err != nil {
		return b
	}
	b.def.tags = append(b.def.tags, tags...)
	return b
}

// WithHandler sets the tool handler function.
func (b *Builder) WithHandler(handler Handler) *Builder {
	if b.err != nil {
		return b
	}
	b.def.handler = handler
	return b
}

// Build constructs the descriptor. The descriptor is a copy, so later
// builder calls do not affect it.
func (b *Builder) Build() (*Descriptor, error) {
	if b.err != nil {
		return nil, fmt.Errorf("tool %q: %w", b.def.name, b.err)
	}
	if err := ValidateName(b.def.name); err != nil {
		return nil, err
	}
	if b.def.handler == nil {
		return nil, fmt.Errorf("tool %q: %w", b.def.name, ErrNoHandler)
	}
	d := *b.def
	d.tags = slices.Clone(b.def.tags)
	slices.Sort(d.tags)
	d.tags = slices.Compact(d.tags)
	return &d, nil
}

// MustBuild constructs the descriptor or panics on error.
func (b *Builder) MustBuild() *Descriptor {
	d, err := b.Build()
	if err != nil {
		panic(err)
	}
	return d
}
