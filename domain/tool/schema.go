package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// ParamType is the structural type of a tool parameter.
type ParamType string

// Supported parameter types. They map one-to-one onto JSON Schema types.
const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Valid reports whether t is one of the supported parameter types.
func (t ParamType) Valid() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeArray, TypeObject:
		return true
	default:
		return false
	}
}

// Parameter is one entry of a tool's parameter schema.
type Parameter struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
	Default     any       `json:"default,omitempty"`
}

// Schema is the ordered parameter list of a tool. The zero value accepts
// any arguments.
type Schema struct {
	params []Parameter
}

// NewSchema builds a schema from explicit parameters.
func NewSchema(params ...Parameter) (Schema, error) {
	seen := make(map[string]bool, len(params))
	out := make([]Parameter, 0, len(params))
	for _, p := range params {
		if p.Name == "" {
			return Schema{}, &UnschemaableParameterError{Param: p.Name, Type: string(p.Type)}
		}
		if !p.Type.Valid() {
			return Schema{}, &UnschemaableParameterError{Param: p.Name, Type: string(p.Type)}
		}
		if seen[p.Name] {
			return Schema{}, fmt.Errorf("%w: duplicate parameter %q", ErrUnschemaableParameter, p.Name)
		}
		seen[p.Name] = true
		out = append(out, p)
	}
	return Schema{params: out}, nil
}

// MustSchema is like NewSchema but panics on error.
func MustSchema(params ...Parameter) Schema {
	s, err := NewSchema(params...)
	if err != nil {
		panic(err)
	}
	return s
}

// Parameters returns a copy of the parameter list.
func (s Schema) Parameters() []Parameter {
	out := make([]Parameter, len(s.params))
	copy(out, s.params)
	return out
}

// Len returns the number of parameters.
func (s Schema) Len() int {
	return len(s.params)
}

// Parameter returns the named parameter.
func (s Schema) Parameter(name string) (Parameter, bool) {
	for _, p := range s.params {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Required returns the names of the required parameters in order.
func (s Schema) Required() []string {
	var names []string
	for _, p := range s.params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// Validate checks args against the schema. Extra arguments are ignored.
func (s Schema) Validate(args Arguments) error {
	var violations []Violation
	for _, p := range s.params {
		v, ok := args[p.Name]
		if !ok {
			if p.Required {
				violations = append(violations, Violation{Param: p.Name, Reason: "required parameter is missing"})
			}
			continue
		}
		if v == nil {
			if p.Required {
				violations = append(violations, Violation{Param: p.Name, Reason: "required parameter is null"})
			}
			continue
		}
		if !compatible(p.Type, v) {
			violations = append(violations, Violation{
				Param:  p.Name,
				Reason: fmt.Sprintf("expected %s, got %T", p.Type, v),
			})
		}
	}
	if len(violations) > 0 {
		return &SchemaMismatchError{Violations: violations}
	}
	return nil
}

// WithDefaults returns a copy of args with absent optional parameters set
// to their defaults.
func (s Schema) WithDefaults(args Arguments) Arguments {
	out := make(Arguments, len(args)+len(s.params))
	for k, v := range args {
		out[k] = v
	}
	for _, p := range s.params {
		if _, ok := out[p.Name]; !ok && p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

// JSONSchema renders the schema as a JSON Schema object.
func (s Schema) JSONSchema() json.RawMessage {
	properties := make(map[string]any, len(s.params))
	for _, p := range s.params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if required := s.Required(); len(required) > 0 {
		doc["required"] = required
	}
	raw, _ := json.Marshal(doc)
	return raw
}

// MarshalJSON implements json.Marshaler.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s.params == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.params)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var params []Parameter
	if err := json.Unmarshal(data, &params); err != nil {
		return err
	}
	parsed, err := NewSchema(params...)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func compatible(t ParamType, v any) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeInteger:
		return isInteger(v)
	case TypeNumber:
		return isNumber(v)
	case TypeArray:
		k := reflect.TypeOf(v).Kind()
		return k == reflect.Slice || k == reflect.Array
	case TypeObject:
		rt := reflect.TypeOf(v)
		return rt.Kind() == reflect.Map && rt.Key().Kind() == reflect.String
	default:
		return false
	}
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return !math.IsInf(n, 0) && n == math.Trunc(n)
	case float32:
		f := float64(n)
		return !math.IsInf(f, 0) && f == math.Trunc(f)
	case json.Number:
		_, err := n.Int64()
		return err == nil
	default:
		return false
	}
}

func isNumber(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return !math.IsNaN(float64(n))
	case float64:
		return !math.IsNaN(n)
	case json.Number:
		_, err := n.Float64()
		return err == nil
	default:
		return false
	}
}
