package model

import "time"

// JobStatus is the state of one entity's work item.
// Transitions: pending -> in_progress -> {done, failed}.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further stage applies to a job in this status.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// ScanJob is one entity's work item in a batch run. Jobs are keyed by entity
// number; the processor never creates two jobs for the same number in a run.
type ScanJob struct {
	EntityNumber string     `json:"company_number"`
	Status       JobStatus  `json:"status"`
	Depth        int        `json:"depth"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"last_error,omitempty"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	FromCache    bool       `json:"from_cache,omitempty"`
	EntityName   string     `json:"company_name,omitempty"`
	Mismatches   []Mismatch `json:"mismatches,omitempty"`
	StartedAt    time.Time  `json:"started_at,omitempty"`
	FinishedAt   time.Time  `json:"finished_at,omitempty"`
}
