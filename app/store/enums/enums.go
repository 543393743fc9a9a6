// Package enums provides type-safe enumeration types for the tracker.
//
// Each enum is a small struct type with unexported name and index fields, so the zero value
// is distinguishable from every valid member. All types provide:
//   - String() for the canonical (persisted) representation
//   - Parse functions (e.g. ParseJobStatus) accepting canonical and legacy spellings
//   - MarshalText/UnmarshalText, used transparently by encoding/json
//   - exported Values slices in declaration order
//
// Usage:
//
//	status := enums.JobStatusPlanned
//	fmt.Println(status.Next()) // "in-progress"
//
//	parsed, err := enums.ParseJobType("water")
//	if err != nil {
//	    // handle invalid input
//	}
package enums

import (
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// normalize prepares user or stored input for lookup
func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// lookup finds an enum member by canonical name or alias
func lookup[T any](kind, v string, names map[string]T) (T, error) {
	if res, ok := names[normalize(v)]; ok {
		return res, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s: %q", kind, v)
}

// stringEnumSchema makes JSON schema of a string enum with given names
func stringEnumSchema[T fmt.Stringer](values []T) *jsonschema.Schema {
	res := &jsonschema.Schema{Type: "string"}
	for _, v := range values {
		res.Enum = append(res.Enum, v.String())
	}
	return res
}
