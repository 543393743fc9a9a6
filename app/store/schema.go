//go:generate go run ./internal/schema ../../schema.json

package store

import "github.com/invopop/jsonschema"

// GenerateSchema generates JSON schema of the canonical persisted format,
// both collections described as properties of a single document
func GenerateSchema() *jsonschema.Schema {
	schema := jsonschema.Reflect(&Snapshot{})
	schema.Title = "fieldtrack data schema"
	schema.Description = `Canonical format of "locations" and "jobs" collections`
	return schema
}
