package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/subseq/zini/pkg/eventbus"
	"github.com/subseq/zini/pkg/events"
	"github.com/subseq/zini/pkg/models"
	"github.com/subseq/zini/pkg/persistence"
)

var ErrJobNotFound = persistence.ErrJobNotFound

// Job manages the job lifecycle: dispatch, completion, and the denormalized
// job view. A job's status is never stored; it is derived from the presence
// of a result and open help requests.
type Job struct {
	persistence persistence.Persistence
	tracker     *Tracker
	publisher   eventbus.EventPublisher
}

// NewJob creates a new job lifecycle service. The tracker is used to
// advance the task's flow position on successful completion.
func NewJob(persistence persistence.Persistence, tracker *Tracker, publisher eventbus.EventPublisher) *Job {
	return &Job{
		persistence: persistence,
		tracker:     tracker,
		publisher:   publisher,
	}
}

// DispatchJobRequest contains the fields for dispatching a job.
type DispatchJobRequest struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
	TaskID    string `json:"task_id"    validate:"required,uuid"`
	Name      string `json:"name"       validate:"required"`
	CreatedBy string `json:"created_by" validate:"required,uuid"`
	Assignee  string `json:"assignee"   validate:"required,uuid"`
}

// Dispatch creates a running job against a task. The task must already be
// enrolled in at least one flow.
func (j *Job) Dispatch(ctx context.Context, req DispatchJobRequest) (*models.Job, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, NewValidationError("Dispatch", "JOB_NAME_REQUIRED", "job name is required", ErrInvalidRequest)
	}

	positions, err := j.persistence.PositionRepository().PositionsByTask(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to check task enrollment: %w", err)
	}

	if len(positions) == 0 {
		return nil, &ServiceError{
			Op:      "Dispatch",
			Code:    "TASK_NOT_ENROLLED",
			Message: fmt.Sprintf("task %s is not enrolled in any flow", req.TaskID),
			Err:     ErrTaskNotEnrolled,
		}
	}

	job := &models.Job{
		ID:        uuid.New().String(),
		ProjectID: req.ProjectID,
		TaskID:    req.TaskID,
		Name:      strings.TrimSpace(req.Name),
		CreatedBy: req.CreatedBy,
		Assignee:  req.Assignee,
		CreatedAt: time.Now().UTC(),
	}

	err = j.persistence.JobRepository().SaveJob(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to dispatch job: %w", err)
	}

	j.publish(ctx, job.ID, events.JobDispatched{
		BaseEvent: events.NewBaseEvent(events.JobDispatchedEvent),
		JobID:     job.ID,
		ProjectID: job.ProjectID,
		TaskID:    job.TaskID,
		JobName:   job.Name,
		Assignee:  job.Assignee,
	})

	return job, nil
}

// JobView is the denormalized per-job read model: the job row, its derived
// status, the result when completed, and the oldest unresolved help request.
type JobView struct {
	Job      *models.Job         `json:"job"`
	Status   models.JobStatus    `json:"status"`
	Result   *models.JobResult   `json:"result,omitempty"`
	OpenHelp int                 `json:"open_help"`
	NextHelp *models.HelpRequest `json:"next_help,omitempty"`
}

// FetchByID assembles the denormalized view of a job.
func (j *Job) FetchByID(ctx context.Context, jobID string) (*JobView, error) {
	job, err := j.persistence.JobRepository().JobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	view := &JobView{Job: job}

	result, err := j.persistence.JobRepository().ResultByJobID(ctx, jobID)
	if err != nil && !errors.Is(err, persistence.ErrJobResultNotFound) {
		return nil, err
	}

	view.Result = result

	view.OpenHelp, err = j.persistence.HelpRepository().OpenHelpCount(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if view.OpenHelp > 0 {
		view.NextHelp, err = j.persistence.HelpRepository().NextOpenHelp(ctx, jobID)
		if err != nil && !errors.Is(err, persistence.ErrHelpNotFound) {
			return nil, err
		}
	}

	view.Status = models.DeriveJobStatus(view.Result, view.OpenHelp)

	return view, nil
}

// JobItem is one row of a job listing with its derived status.
type JobItem struct {
	Job    *models.Job       `json:"job"`
	Status models.JobStatus  `json:"status"`
	Result *models.JobResult `json:"result,omitempty"`
}

// Query lists jobs matching the filter options, each with its derived
// status. Open help counts are resolved per row.
func (j *Job) Query(ctx context.Context, opts persistence.JobQueryOptions) ([]*JobItem, error) {
	listed, err := j.persistence.JobRepository().QueryJobs(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	items := make([]*JobItem, 0, len(listed))

	for _, row := range listed {
		openHelp, err := j.persistence.HelpRepository().OpenHelpCount(ctx, row.Job.ID)
		if err != nil {
			return nil, err
		}

		items = append(items, &JobItem{
			Job:    row.Job,
			Status: models.DeriveJobStatus(row.Result, openHelp),
			Result: row.Result,
		})
	}

	return items, nil
}

// AdvanceTarget names the flow position move to perform when a job
// completes successfully.
type AdvanceTarget struct {
	FlowID   string `json:"flow_id"    validate:"required,uuid"`
	ToNodeID string `json:"to_node_id" validate:"required,uuid"`
}

// CompleteJobRequest contains the fields for completing a job.
type CompleteJobRequest struct {
	JobID     string         `json:"job_id" validate:"required,uuid"`
	Succeeded bool           `json:"succeeded"`
	Log       string         `json:"log"`
	Advance   *AdvanceTarget `json:"advance,omitempty"`
}

// Complete records the job's write-once result. Every help request raised
// against the job must be resolved first. When the job succeeded and an
// advance target is given, the task's position moves along the flow.
func (j *Job) Complete(ctx context.Context, req CompleteJobRequest) (*JobView, error) {
	job, err := j.persistence.JobRepository().JobByID(ctx, req.JobID)
	if err != nil {
		return nil, err
	}

	openHelp, err := j.persistence.HelpRepository().OpenHelpCount(ctx, req.JobID)
	if err != nil {
		return nil, err
	}

	if openHelp > 0 {
		return nil, &ServiceError{
			Op:      "Complete",
			Code:    "HELP_STILL_OPEN",
			Message: fmt.Sprintf("job %s has %d unresolved help requests", req.JobID, openHelp),
			Err:     ErrHelpStillOpen,
		}
	}

	result := &models.JobResult{
		JobID:          req.JobID,
		CompletionTime: time.Now().UTC(),
		Succeeded:      req.Succeeded,
		Log:            req.Log,
	}

	err = j.persistence.JobRepository().SaveResult(ctx, result)
	if err != nil {
		return nil, err
	}

	if req.Succeeded && req.Advance != nil {
		_, err = j.tracker.Advance(ctx, job.TaskID, req.Advance.FlowID, req.Advance.ToNodeID)
		if err != nil {
			return nil, fmt.Errorf("job completed but position advance failed: %w", err)
		}
	}

	j.publish(ctx, req.JobID, events.JobCompleted{
		BaseEvent: events.NewBaseEvent(events.JobCompletedEvent),
		JobID:     req.JobID,
		TaskID:    job.TaskID,
		Succeeded: req.Succeeded,
	})

	return j.FetchByID(ctx, req.JobID)
}

func (j *Job) publish(ctx context.Context, key string, event eventbus.Event) {
	if j.publisher == nil {
		return
	}

	_ = j.publisher.Publish(ctx, key, event)
}
