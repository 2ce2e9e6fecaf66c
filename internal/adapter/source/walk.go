package source

import (
	"fmt"
	"strconv"
	"strings"
)

// walkPath follows a dot-notation path and returns the array found there.
// Anything unexpected along the way yields nil.
func walkPath(v any, path string) []any {
	current := v
	if path != "" {
		for _, part := range strings.Split(path, ".") {
			obj, ok := current.(map[string]any)
			if !ok {
				return nil
			}
			current = obj[part]
		}
	}
	arr, _ := current.([]any)
	return arr
}

// objects keeps only the JSON objects of items.
func objects(items []any) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// field returns the first non-empty string value among keys.
func field(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(asString(obj[k])); s != "" {
			return s
		}
	}
	return ""
}

// nested reads obj[key][sub] as a string, e.g. {"country":{"value":"Chile"}}.
func nested(obj map[string]any, key, sub string) string {
	inner, ok := obj[key].(map[string]any)
	if !ok {
		return ""
	}
	return strings.TrimSpace(asString(inner[sub]))
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", v)
}

// asFloat reports whether v holds a number, accepting numeric strings.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}
