package enums

import "github.com/invopop/jsonschema"

// JobType is the category of a job
type JobType struct {
	name  string
	index int
}

// job types
var (
	JobTypeHeating = JobType{name: "heating", index: 0}
	JobTypeWater   = JobType{name: "water", index: 1}
	JobTypeGas     = JobType{name: "gas", index: 2}
)

// JobTypeValues contains all job types
var JobTypeValues = []JobType{JobTypeHeating, JobTypeWater, JobTypeGas}

var jobTypeNames = map[string]JobType{
	"heating": JobTypeHeating,
	"water":   JobTypeWater,
	"gas":     JobTypeGas,
	"topení":  JobTypeHeating,
	"voda":    JobTypeWater,
	"plyn":    JobTypeGas,
}

// ParseJobType converts a string to JobType, accepting legacy spellings
func ParseJobType(v string) (JobType, error) {
	return lookup("job type", v, jobTypeNames)
}

// String returns canonical type name
func (e JobType) String() string { return e.name }

// Index returns position of the type in JobTypeValues
func (e JobType) Index() int { return e.index }

// IsValid reports whether the type is a member of the category set.
// The zero value is used as "any type" by filters.
func (e JobType) IsValid() bool { return e.name != "" }

// MarshalText implements encoding.TextMarshaler
func (e JobType) MarshalText() ([]byte, error) {
	return []byte(e.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (e *JobType) UnmarshalText(text []byte) error {
	v, err := ParseJobType(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// JSONSchema describes JobType as a string enum
func (JobType) JSONSchema() *jsonschema.Schema {
	return stringEnumSchema(JobTypeValues)
}
