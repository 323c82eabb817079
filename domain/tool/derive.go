package tool

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ParamSpec is a declared handler parameter before it is typed.
type ParamSpec struct {
	Name        string
	Type        string
	Description string
	HasDefault  bool
	Default     any
}

// Describer is implemented by handler types that declare their own
// parameters. The builder derives the tool schema from it.
type Describer interface {
	Parameters() []ParamSpec
}

var declaredTypes = map[string]ParamType{
	"string":  TypeString,
	"str":     TypeString,
	"integer": TypeInteger,
	"int":     TypeInteger,
	"int64":   TypeInteger,
	"number":  TypeNumber,
	"float":   TypeNumber,
	"float64": TypeNumber,
	"boolean": TypeBoolean,
	"bool":    TypeBoolean,
	"array":   TypeArray,
	"list":    TypeArray,
	"object":  TypeObject,
	"dict":    TypeObject,
	"map":     TypeObject,
}

// ParseParamType maps a declared type name onto a ParamType.
func ParseParamType(declared string) (ParamType, bool) {
	t, ok := declaredTypes[strings.ToLower(strings.TrimSpace(declared))]
	return t, ok
}

// Derive produces a schema from declared parameters. A parameter with a
// default is optional, every other parameter is required.
func Derive(specs []ParamSpec) (Schema, error) {
	params := make([]Parameter, 0, len(specs))
	for _, spec := range specs {
		t, ok := ParseParamType(spec.Type)
		if !ok {
			return Schema{}, &UnschemaableParameterError{Param: spec.Name, Type: spec.Type}
		}
		p := Parameter{
			Name:        spec.Name,
			Type:        t,
			Required:    !spec.HasDefault,
			Description: spec.Description,
		}
		if spec.HasDefault {
			p.Default = spec.Default
		}
		params = append(params, p)
	}
	return NewSchema(params...)
}

var timeType = reflect.TypeOf(time.Time{})

// DeriveStruct produces a schema from the fields of a declared input
// struct. Field names follow the json tag; a field is optional when it is a
// pointer, tagged omitempty, or carries a `default:"..."` tag. A
// `description:"..."` tag documents the parameter.
func DeriveStruct(v any) (Schema, error) {
	rt := reflect.TypeOf(v)
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil || rt.Kind() != reflect.Struct {
		return Schema{}, fmt.Errorf("%w: %v is not a struct", ErrUnschemaableParameter, rt)
	}
	var params []Parameter
	if err := collectFields(rt, &params); err != nil {
		return Schema{}, err
	}
	return NewSchema(params...)
}

func collectFields(rt reflect.Type, params *[]Parameter) error {
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" && opts == "" {
			continue
		}
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			if err := collectFields(f.Type, params); err != nil {
				return err
			}
			continue
		}
		if name == "" {
			name = f.Name
		}

		ft := f.Type
		optional := strings.Contains(opts, "omitempty")
		if ft.Kind() == reflect.Pointer {
			optional = true
			ft = ft.Elem()
		}

		t, ok := kindType(ft)
		if !ok {
			return &UnschemaableParameterError{Param: name, Type: ft.String()}
		}

		p := Parameter{
			Name:        name,
			Type:        t,
			Description: f.Tag.Get("description"),
		}
		if raw, has := f.Tag.Lookup("default"); has {
			def, err := parseDefault(t, raw)
			if err != nil {
				return fmt.Errorf("%w: default for %q: %v", ErrUnschemaableParameter, name, err)
			}
			p.Default = def
			optional = true
		}
		p.Required = !optional
		*params = append(*params, p)
	}
	return nil
}

func kindType(rt reflect.Type) (ParamType, bool) {
	if rt == timeType {
		return TypeString, true
	}
	switch rt.Kind() {
	case reflect.String:
		return TypeString, true
	case reflect.Bool:
		return TypeBoolean, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger, true
	case reflect.Float32, reflect.Float64:
		return TypeNumber, true
	case reflect.Slice:
		if rt.Elem().Kind() == reflect.Uint8 {
			return TypeString, true
		}
		return TypeArray, true
	case reflect.Array:
		return TypeArray, true
	case reflect.Map:
		if rt.Key().Kind() != reflect.String {
			return "", false
		}
		return TypeObject, true
	case reflect.Struct:
		return TypeObject, true
	default:
		return "", false
	}
}

func parseDefault(t ParamType, raw string) (any, error) {
	switch t {
	case TypeString:
		return raw, nil
	case TypeInteger:
		return strconv.ParseInt(raw, 10, 64)
	case TypeNumber:
		return strconv.ParseFloat(raw, 64)
	case TypeBoolean:
		return strconv.ParseBool(raw)
	default:
		return nil, fmt.Errorf("defaults are not supported for %s parameters", t)
	}
}
