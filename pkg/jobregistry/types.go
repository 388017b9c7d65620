package jobregistry

import "time"

// JobState is the lifecycle state of a crawl job.
//
// NOTE: These values are persisted in job.json.
type JobState string

const (
	JobStateRunning   JobState = "running"
	JobStateSuccess   JobState = "success"
	JobStatePartial   JobState = "partial"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
	JobStateUnknown   JobState = "unknown"
)

// IsTerminal reports whether the job has finished.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStateSuccess, JobStatePartial, JobStateFailed, JobStateCancelled:
		return true
	}
	return false
}

// JobSummary holds the counters of a finished crawl.
type JobSummary struct {
	ObjectsListed  int64 `json:"objects_listed" yaml:"objects_listed"`
	ObjectsMatched int64 `json:"objects_matched" yaml:"objects_matched"`
	BytesTotal     int64 `json:"bytes_total" yaml:"bytes_total"`
	PrefixesFound  int64 `json:"prefixes_found" yaml:"prefixes_found"`
	Pages          int64 `json:"pages" yaml:"pages"`
	Errors         int64 `json:"errors" yaml:"errors"`
	DurationMS     int64 `json:"duration_ms" yaml:"duration_ms"`
}

// JobRecord is the persistent record written to job.json.
//
// New fields must be additive so older records keep loading.
type JobRecord struct {
	JobID        string    `json:"job_id" yaml:"job_id"`
	State        JobState  `json:"state" yaml:"state"`
	ManifestPath string    `json:"manifest_path" yaml:"manifest_path"`
	Bucket       string    `json:"bucket" yaml:"bucket"`
	Endpoint     string    `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Destination  string    `json:"destination,omitempty" yaml:"destination,omitempty"`
	PID          int       `json:"pid,omitempty" yaml:"pid,omitempty"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`

	StartedAt *time.Time  `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	EndedAt   *time.Time  `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	Summary   *JobSummary `json:"summary,omitempty" yaml:"summary,omitempty"`
	Error     string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// Finish moves r to state at t. err, when non-nil, is recorded as text.
func (r *JobRecord) Finish(state JobState, summary *JobSummary, err error, t time.Time) {
	t = t.UTC()
	r.State = state
	r.EndedAt = &t
	r.Summary = summary
	r.PID = 0
	if err != nil {
		r.Error = err.Error()
	}
}
