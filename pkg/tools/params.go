package tools

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the coercion target for one argument.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindStringList
	// KindRaw passes the value through unchanged; used for arguments whose
	// shape is structured (e.g. force_relationships' list of {to_id, type}).
	KindRaw
)

// ArgSpec describes one named argument a tool accepts.
type ArgSpec struct {
	Name string
	Kind Kind
}

// validateArgs checks every required arg is present, then coerces every
// present required/optional value to its declared Kind. Loose inputs
// (numbers-as-strings, "true"/"false", comma-separated lists) are accepted
// the way an MCP caller's free-typed argument map actually arrives.
func validateArgs(required, optional []ArgSpec, args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(args))

	for _, spec := range required {
		v, ok := args[spec.Name]
		if !ok || v == nil {
			return nil, fmt.Errorf("missing required argument %q", spec.Name)
		}
		coerced, err := coerce(spec.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", spec.Name, err)
		}
		out[spec.Name] = coerced
	}

	for _, spec := range optional {
		v, ok := args[spec.Name]
		if !ok || v == nil {
			continue
		}
		coerced, err := coerce(spec.Kind, v)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", spec.Name, err)
		}
		out[spec.Name] = coerced
	}

	return out, nil
}

func coerce(kind Kind, v any) (any, error) {
	switch kind {
	case KindString:
		return coerceStringVal(v)
	case KindInt:
		return coerceIntVal(v)
	case KindFloat:
		return coerceFloatVal(v)
	case KindBool:
		return coerceBoolVal(v)
	case KindStringList:
		return coerceStringListVal(v)
	case KindRaw:
		return v, nil
	default:
		return nil, fmt.Errorf("unknown kind %d", kind)
	}
}

func coerceStringVal(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", v), nil
}

func coerceIntVal(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		if math.Trunc(t) != t {
			return 0, fmt.Errorf("expected an integer, got %v", t)
		}
		return int64(t), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected int, got %T", v)
	}
}

func coerceFloatVal(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected float, got %T", v)
	}
}

func coerceBoolVal(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", t)
	default:
		return false, fmt.Errorf("expected bool, got %T", v)
	}
}

func coerceStringListVal(v any) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return t, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, err := coerceStringVal(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
}

// optString reads an already-coerced optional string argument, or def.
func optString(args map[string]any, name, def string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return def
}

func optInt(args map[string]any, name string, def int64) int64 {
	if v, ok := args[name].(int64); ok {
		return v
	}
	return def
}

func optBool(args map[string]any, name string, def bool) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return def
}

func optStringList(args map[string]any, name string) []string {
	if v, ok := args[name].([]string); ok {
		return v
	}
	return nil
}
