package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Outcome is the result of checking one event detail against a contract.
type Outcome struct {
	Valid  bool
	Reason string
}

func valid() Outcome {
	return Outcome{Valid: true}
}

func invalid(format string, args ...any) Outcome {
	return Outcome{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks a detail payload against a contract. Required fields are
// checked first, in the order the contract declares them, and the first
// missing name wins. Then each detail field that has a declared property is
// checked against the declared primitive kind, in sorted key order so the
// reported mismatch is deterministic. The first violation short-circuits.
//
// This is a shallow, single-level check on purpose: no nested objects, no
// array items, no format or enum constraints. Fields present in the detail
// but absent from the contract's properties pass untouched.
func Validate(doc Document, detail map[string]any) Outcome {
	for _, name := range doc.Required {
		if _, ok := detail[name]; !ok {
			return invalid("missing required field '%s'", name)
		}
	}

	keys := make([]string, 0, len(detail))
	for k := range detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		spec, ok := doc.Properties[k]
		if !ok {
			continue
		}
		switch spec.Type {
		case "string":
			if _, ok := detail[k].(string); !ok {
				return invalid("field '%s' type must be string", k)
			}
		case "number":
			if !isNumber(detail[k]) {
				return invalid("field '%s' type must be number", k)
			}
		case "boolean":
			if _, ok := detail[k].(bool); !ok {
				return invalid("field '%s' type must be boolean", k)
			}
		}
	}

	return valid()
}

// isNumber reports whether v is a numeric runtime kind. Details decoded from
// JSON carry float64 (or json.Number when configured); the integer cases
// cover details assembled in-process. Booleans are never numbers.
func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, json.Number:
		return true
	default:
		return false
	}
}
