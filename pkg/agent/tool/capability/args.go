package capability

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

func invalid(key, reason string) error {
	return goerr.Wrap(ErrInvalidArgument, reason, goerr.V(argKey, key))
}

// rejectUnknown fails when args carries keys outside allowed
func rejectUnknown(args map[string]any, allowed ...string) error {
	var unknown []string
	for k := range args {
		if !slices.Contains(allowed, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return goerr.Wrap(ErrInvalidArgument, "unexpected arguments",
			goerr.V(argKey, strings.Join(unknown, ",")))
	}
	return nil
}

func extractString(args map[string]any, key string, required bool) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return "", invalid(key, fmt.Sprintf("%s is required", key))
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalid(key, fmt.Sprintf("%s must be a string, got %T", key, v))
	}
	s = strings.TrimSpace(s)
	if required && s == "" {
		return "", invalid(key, fmt.Sprintf("%s must not be empty", key))
	}
	return s, nil
}

// extractInt accepts JSON numbers without a fractional part and numeric strings
func extractInt(args map[string]any, key string, required bool) (int, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		if required {
			return 0, false, invalid(key, fmt.Sprintf("%s is required", key))
		}
		return 0, false, nil
	}

	var f float64
	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false, invalid(key, fmt.Sprintf("%s must be an integer", key))
		}
		f = parsed
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false, invalid(key, fmt.Sprintf("%s must be an integer", key))
		}
		return parsed, true, nil
	default:
		return 0, false, invalid(key, fmt.Sprintf("%s must be an integer, got %T", key, v))
	}

	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false, invalid(key, fmt.Sprintf("%s must be an integer", key))
	}
	return int(f), true, nil
}

func extractFloat(args map[string]any, key string) (float64, bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false, nil
	}

	switch n := v.(type) {
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false, invalid(key, fmt.Sprintf("%s must be a finite number", key))
		}
		return n, true, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false, invalid(key, fmt.Sprintf("%s must be a number", key))
		}
		return f, true, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false, invalid(key, fmt.Sprintf("%s must be a number", key))
		}
		return f, true, nil
	default:
		return 0, false, invalid(key, fmt.Sprintf("%s must be a number, got %T", key, v))
	}
}

// extractStringSlice accepts a list of strings. A single string is treated as a
// one-element list.
func extractStringSlice(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}

	var raw []any
	switch list := v.(type) {
	case string:
		raw = []any{list}
	case []string:
		for _, s := range list {
			raw = append(raw, s)
		}
	case []any:
		raw = list
	default:
		return nil, invalid(key, fmt.Sprintf("%s must be a list of strings, got %T", key, v))
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, invalid(key, fmt.Sprintf("%s must only contain strings", key))
		}
		s = strings.TrimSpace(s)
		if s == "" || slices.Contains(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func extractObjects(args map[string]any, key string) ([]map[string]any, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, invalid(key, fmt.Sprintf("%s is required", key))
	}

	var raw []any
	switch list := v.(type) {
	case []any:
		raw = list
	case []map[string]any:
		for _, m := range list {
			raw = append(raw, m)
		}
	default:
		return nil, invalid(key, fmt.Sprintf("%s must be a list of objects, got %T", key, v))
	}

	out := make([]map[string]any, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, invalid(key, fmt.Sprintf("%s[%d] must be an object", key, i))
		}
		out[i] = m
	}
	return out, nil
}
