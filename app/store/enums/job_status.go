package enums

import "github.com/invopop/jsonschema"

// JobStatus is the lifecycle status of a job, advancing in a fixed cycle
type JobStatus struct {
	name  string
	index int
}

// job statuses in cycle order
var (
	JobStatusPlanned    = JobStatus{name: "planned", index: 0}
	JobStatusInProgress = JobStatus{name: "in-progress", index: 1}
	JobStatusDone       = JobStatus{name: "done", index: 2}
)

// JobStatusValues contains all job statuses in cycle order
var JobStatusValues = []JobStatus{JobStatusPlanned, JobStatusInProgress, JobStatusDone}

// jobStatusNames maps canonical names and legacy spellings to statuses
var jobStatusNames = map[string]JobStatus{
	"planned":      JobStatusPlanned,
	"in-progress":  JobStatusInProgress,
	"inprogress":   JobStatusInProgress,
	"in_progress":  JobStatusInProgress,
	"done":         JobStatusDone,
	"plánováno":    JobStatusPlanned,
	"rozpracováno": JobStatusInProgress,
	"dokončeno":    JobStatusDone,
}

// ParseJobStatus converts a string to JobStatus, accepting legacy spellings
func ParseJobStatus(v string) (JobStatus, error) {
	return lookup("job status", v, jobStatusNames)
}

// String returns canonical status name
func (e JobStatus) String() string { return e.name }

// Index returns position of the status in the cycle
func (e JobStatus) Index() int { return e.index }

// IsValid reports whether the status is a member of the cycle
func (e JobStatus) IsValid() bool { return e.name != "" }

// Next returns the following status in the cycle, wrapping after the last one.
// The zero value advances to the first status.
func (e JobStatus) Next() JobStatus {
	if !e.IsValid() {
		return JobStatusValues[0]
	}
	return JobStatusValues[(e.index+1)%len(JobStatusValues)]
}

// MarshalText implements encoding.TextMarshaler
func (e JobStatus) MarshalText() ([]byte, error) {
	return []byte(e.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (e *JobStatus) UnmarshalText(text []byte) error {
	v, err := ParseJobStatus(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// JSONSchema describes JobStatus as a string enum
func (JobStatus) JSONSchema() *jsonschema.Schema {
	return stringEnumSchema(JobStatusValues)
}
