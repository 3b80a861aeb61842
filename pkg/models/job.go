package models

import "time"

// JobStatus is the derived lifecycle state of a job. There is no stored
// status column: status falls out of the presence of a result and the
// number of open help requests.
type JobStatus string

const (
	JobStatusRunning      JobStatus = "running"       // Dispatched, no result yet, no open help
	JobStatusAwaitingHelp JobStatus = "awaiting_help" // No result yet, at least one open help request
	JobStatusSucceeded    JobStatus = "succeeded"
	JobStatusFailed       JobStatus = "failed"
)

// Job is a unit of dispatched work bound to exactly one task and project.
// A task may accumulate many jobs over its lifetime.
type Job struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id" validate:"required"`
	TaskID    string    `json:"task_id"    validate:"required"`
	Name      string    `json:"name"       validate:"required,min=1"`
	CreatedBy string    `json:"created_by" validate:"required"`
	Assignee  string    `json:"assignee"   validate:"required"`
	CreatedAt time.Time `json:"created_at"`
}

// JobResult is the outcome of a completed job. It is written exactly once,
// at completion, and is immutable thereafter.
type JobResult struct {
	JobID          string    `json:"job_id"`
	CompletionTime time.Time `json:"completion_time"`
	Succeeded      bool      `json:"succeeded"`
	Log            string    `json:"log"`
}

// DeriveJobStatus computes a job's lifecycle state from its result and the
// count of unresolved help requests. A job is blocked while any help request
// remains open; resolution of the last one returns it to running.
func DeriveJobStatus(result *JobResult, openHelp int) JobStatus {
	if result != nil {
		if result.Succeeded {
			return JobStatusSucceeded
		}

		return JobStatusFailed
	}

	if openHelp > 0 {
		return JobStatusAwaitingHelp
	}

	return JobStatusRunning
}
