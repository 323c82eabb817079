// Package schema compiles JSON Schema documents supplied for external tools
// into tool parameter schemas.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/felixgeelhaar/dynamic-mcp/domain/tool"
)

const resourceURL = "tool-parameters.json"

// Compiled is a parameter schema together with the full JSON Schema it came
// from. The tool schema covers names, types, required and defaults; the
// JSON Schema also enforces constraints such as enum, minimum or pattern.
type Compiled struct {
	Tool   tool.Schema
	schema *jsonschema.Schema
}

// Compile parses doc as a JSON Schema describing an object of parameters.
// A nil or empty document yields nil, meaning the caller picks a default.
func Compile(doc map[string]any) (*Compiled, error) {
	if len(doc) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: encode schema: %v", tool.ErrUnschemaableParameter, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.ExtractAnnotations = true
	if err := compiler.AddResource(resourceURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: invalid schema: %v", tool.ErrUnschemaableParameter, err)
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to compile schema: %v", tool.ErrUnschemaableParameter, err)
	}

	root := resolve(compiled)
	if len(root.Types) > 0 && !slices.Contains(root.Types, "object") {
		return nil, fmt.Errorf("%w: parameters must be an object, got %s", tool.ErrUnschemaableParameter, strings.Join(root.Types, "|"))
	}

	names := make([]string, 0, len(root.Properties))
	for name := range root.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	params := make([]tool.Parameter, 0, len(names))
	for _, name := range names {
		prop := resolve(root.Properties[name])
		t, ok := paramType(prop.Types)
		if !ok {
			return nil, &tool.UnschemaableParameterError{Param: name, Type: strings.Join(prop.Types, "|")}
		}
		params = append(params, tool.Parameter{
			Name:        name,
			Type:        t,
			Required:    slices.Contains(root.Required, name),
			Description: prop.Description,
			Default:     prop.Default,
		})
	}

	s, err := tool.NewSchema(params...)
	if err != nil {
		return nil, err
	}
	return &Compiled{Tool: s, schema: compiled}, nil
}

// Validate checks args against the full JSON Schema.
func (c *Compiled) Validate(args tool.Arguments) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}

	err = c.schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}

	mismatch := &tool.SchemaMismatchError{}
	collect(verr, mismatch)
	return mismatch
}

func collect(verr *jsonschema.ValidationError, into *tool.SchemaMismatchError) {
	if len(verr.Causes) == 0 {
		param, _, _ := strings.Cut(strings.TrimPrefix(verr.InstanceLocation, "/"), "/")
		if param == "" {
			param = "arguments"
		}
		into.Violations = append(into.Violations, tool.Violation{Param: param, Reason: verr.Message})
		return
	}
	for _, cause := range verr.Causes {
		collect(cause, into)
	}
}

// resolve follows a bare $ref to its target.
func resolve(s *jsonschema.Schema) *jsonschema.Schema {
	for s.Ref != nil && len(s.Types) == 0 && len(s.Properties) == 0 {
		s = s.Ref
	}
	return s
}

// paramType picks the single non-null type of a property. Nullable
// properties ("type": ["string", "null"]) keep their concrete type.
func paramType(types []string) (tool.ParamType, bool) {
	var concrete []string
	for _, t := range types {
		if t != "null" {
			concrete = append(concrete, t)
		}
	}
	if len(concrete) != 1 {
		return "", false
	}
	t := tool.ParamType(concrete[0])
	return t, t.Valid()
}
