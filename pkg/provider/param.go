package provider

import (
	"fmt"
	"strconv"
	"strings"
)

// ParamKind enumerates the parameter types an Operation may declare.
// Unsupported kinds are rejected when the operation is registered,
// not at call time.
type ParamKind string

const (
	KindString     ParamKind = "string"
	KindInt        ParamKind = "int"
	KindFloat      ParamKind = "float"
	KindBool       ParamKind = "bool"
	KindStringList ParamKind = "string_list"
	KindMap        ParamKind = "map"
)

// Valid reports whether the kind is one of the supported parameter kinds.
func (k ParamKind) Valid() bool {
	switch k {
	case KindString, KindInt, KindFloat, KindBool, KindStringList, KindMap:
		return true
	}
	return false
}

// Param declares one parameter of an Operation. It is used both for
// documentation and for runtime coercion and validation.
type Param struct {
	Name        string
	Required    bool
	Kind        ParamKind
	Description string
}

// Coerce converts a raw invocation value to the given kind.
// Numeric strings convert to numbers, numbers render to strings, and so on;
// anything that cannot be represented in the target kind is an error.
func Coerce(kind ParamKind, value any) (any, error) {
	switch kind {
	case KindString:
		return coerceString(value)
	case KindInt:
		return coerceInt(value)
	case KindFloat:
		return coerceFloat(value)
	case KindBool:
		return coerceBool(value)
	case KindStringList:
		return coerceStringList(value)
	case KindMap:
		return coerceMap(value)
	}
	return nil, fmt.Errorf("unsupported parameter kind %q", kind)
}

func coerceString(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return nil, fmt.Errorf("cannot convert %T to string", value)
}

func coerceInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return nil, fmt.Errorf("cannot convert %v to int without truncation", v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to int", v)
		}
		return n, nil
	}
	return nil, fmt.Errorf("cannot convert %T to int", value)
}

func coerceFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to float", v)
		}
		return f, nil
	}
	return nil, fmt.Errorf("cannot convert %T to float", value)
}

func coerceBool(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("cannot convert %q to bool", v)
		}
		return b, nil
	}
	return nil, fmt.Errorf("cannot convert %T to bool", value)
}

func coerceStringList(value any) (any, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := coerceString(item)
			if err != nil {
				return nil, fmt.Errorf("cannot convert list element %T to string", item)
			}
			out = append(out, s.(string))
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %T to string list", value)
}

func coerceMap(value any) (any, error) {
	if m, ok := value.(map[string]any); ok {
		return m, nil
	}
	return nil, fmt.Errorf("cannot convert %T to map", value)
}
