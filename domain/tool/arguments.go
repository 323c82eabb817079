package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Arguments is the argument mapping passed to a tool invocation.
type Arguments map[string]any

// ParseArguments decodes a JSON object into Arguments. Empty input and
// JSON null yield an empty mapping.
func ParseArguments(raw json.RawMessage) (Arguments, error) {
	args := Arguments{}
	if len(raw) == 0 || string(raw) == "null" {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: arguments must be a JSON object: %v", ErrSchemaMismatch, err)
	}
	if args == nil {
		args = Arguments{}
	}
	return args, nil
}

// Bind decodes the arguments into v, typically a pointer to an input struct.
func (a Arguments) Bind(v any) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}

// String returns the named string argument.
func (a Arguments) String(name string) (string, bool) {
	s, ok := a[name].(string)
	return s, ok
}

// Bool returns the named boolean argument.
func (a Arguments) Bool(name string) (bool, bool) {
	b, ok := a[name].(bool)
	return b, ok
}

// Float returns the named numeric argument as float64. Every Go integer
// and float kind is accepted, as well as json.Number.
func (a Arguments) Float(name string) (float64, bool) {
	v := a[name]
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

// Int returns the named integral argument as int64. Floats with a
// fractional part and values outside the int64 range are rejected.
func (a Arguments) Int(name string) (int64, bool) {
	v := a[name]
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	} else if v != nil {
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			u := rv.Uint()
			if u > math.MaxInt64 {
				return 0, false
			}
			return int64(u), true
		}
	}
	f, ok := a.Float(name)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Object returns the named object argument.
func (a Arguments) Object(name string) (map[string]any, bool) {
	m, ok := a[name].(map[string]any)
	return m, ok
}
