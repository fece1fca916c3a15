package tracing

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"time"
)

// maxSanitizeDepth bounds recursion into nested containers. Anything deeper
// collapses to a placeholder.
const maxSanitizeDepth = 16

// Sanitize converts v into plain serializable data for trace events.
// Primitives pass through, well-known rich types get a textual form, and
// containers are copied with every element sanitized. Values with no safe
// representation become a "<TypeName>" placeholder.
func Sanitize(v any) any {
	return sanitize(v, 0)
}

// SanitizeMap sanitizes every value of m into a fresh map. A nil map yields
// an empty one, so event fields are never null.
func SanitizeMap[M ~map[string]any](m M) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = sanitize(v, 1)
	}
	return out
}

func sanitize(v any, depth int) any {
	if v == nil {
		return nil
	}
	if depth > maxSanitizeDepth {
		return placeholder(v)
	}

	switch x := v.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case time.Duration:
		return x.String()
	case error:
		return fmt.Sprintf("Error: %s", x.Error())
	case *regexp.Regexp:
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = sanitize(e, depth+1)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = sanitize(e, depth+1)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			for _, k := range rv.MapKeys() {
				out[k.String()] = sanitize(rv.MapIndex(k).Interface(), depth+1)
			}
			return out
		}
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = sanitize(rv.Index(i).Interface(), depth+1)
		}
		return out
	}

	// Structs and pointers that marshal cleanly keep their JSON shape.
	if raw, err := json.Marshal(v); err == nil {
		var round any
		if json.Unmarshal(raw, &round) == nil {
			return round
		}
	}

	return placeholder(v)
}

func placeholder(v any) string {
	return fmt.Sprintf("<%T>", v)
}
