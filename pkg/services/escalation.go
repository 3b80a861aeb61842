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

var ErrHelpNotFound = persistence.ErrHelpNotFound

// Escalation manages help requests raised against running jobs, their
// write-once resolutions, and the action log attached to each request.
type Escalation struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
}

// NewEscalation creates a new escalation service.
func NewEscalation(persistence persistence.Persistence, publisher eventbus.EventPublisher) *Escalation {
	return &Escalation{
		persistence: persistence,
		publisher:   publisher,
	}
}

// RaiseHelp opens a help request against a running job. Completed jobs
// cannot be escalated.
func (e *Escalation) RaiseHelp(ctx context.Context, jobID, request string) (*models.HelpRequest, error) {
	if strings.TrimSpace(request) == "" {
		return nil, NewValidationError("RaiseHelp", "REQUEST_REQUIRED", "help request text is required", ErrInvalidRequest)
	}

	job, err := e.persistence.JobRepository().JobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	_, err = e.persistence.JobRepository().ResultByJobID(ctx, jobID)
	if err == nil {
		return nil, &ServiceError{
			Op:      "RaiseHelp",
			Code:    "JOB_ALREADY_COMPLETED",
			Message: fmt.Sprintf("job %s already has a result", jobID),
			Err:     persistence.ErrJobAlreadyCompleted,
		}
	}

	if !errors.Is(err, persistence.ErrJobResultNotFound) {
		return nil, err
	}

	help := &models.HelpRequest{
		ID:      uuid.New().String(),
		JobID:   jobID,
		Request: request,
	}

	err = e.persistence.HelpRepository().SaveHelp(ctx, help)
	if err != nil {
		return nil, fmt.Errorf("failed to raise help request: %w", err)
	}

	e.publish(ctx, help.ID, events.HelpRaised{
		BaseEvent: events.NewBaseEvent(events.HelpRaisedEvent),
		HelpID:    help.ID,
		JobID:     jobID,
		TaskID:    job.TaskID,
	})

	return help, nil
}

// HelpView is the denormalized read model of a help request: the request,
// its resolution when resolved, and the recorded actions with their files.
type HelpView struct {
	Help       *models.HelpRequest       `json:"help"`
	Resolution *models.HelpResolution    `json:"resolution,omitempty"`
	Actions    []*models.ActionWithFiles `json:"actions"`
}

// FetchHelp assembles the denormalized view of a help request.
func (e *Escalation) FetchHelp(ctx context.Context, helpID string) (*HelpView, error) {
	help, err := e.persistence.HelpRepository().HelpByID(ctx, helpID)
	if err != nil {
		return nil, err
	}

	view := &HelpView{Help: help}

	resolution, err := e.persistence.HelpRepository().ResolutionByHelpID(ctx, helpID)
	if err != nil && !errors.Is(err, persistence.ErrHelpNotFound) {
		return nil, err
	}

	view.Resolution = resolution

	view.Actions, err = e.persistence.HelpRepository().ActionsByHelpID(ctx, helpID)
	if err != nil {
		return nil, err
	}

	return view, nil
}

// NextOpenHelp returns the oldest unresolved help request for the job, or
// ErrHelpNotFound when none remain.
func (e *Escalation) NextOpenHelp(ctx context.Context, jobID string) (*models.HelpRequest, error) {
	return e.persistence.HelpRepository().NextOpenHelp(ctx, jobID)
}

// OpenHelpCount reports how many unresolved help requests the job carries.
func (e *Escalation) OpenHelpCount(ctx context.Context, jobID string) (int, error) {
	return e.persistence.HelpRepository().OpenHelpCount(ctx, jobID)
}

// RecordAction appends an action to an unresolved help request's log,
// attaching the given file names.
func (e *Escalation) RecordAction(ctx context.Context, helpID, actionTaken string, fileNames []string) (*models.ActionWithFiles, error) {
	if strings.TrimSpace(actionTaken) == "" {
		return nil, NewValidationError("RecordAction", "ACTION_REQUIRED", "action text is required", ErrInvalidRequest)
	}

	help, err := e.persistence.HelpRepository().HelpByID(ctx, helpID)
	if err != nil {
		return nil, err
	}

	err = e.requireUnresolved(ctx, helpID)
	if err != nil {
		return nil, err
	}

	action := &models.ResolutionAction{
		ID:          uuid.New().String(),
		HelpID:      helpID,
		ActionTaken: actionTaken,
		CreatedAt:   time.Now().UTC(),
	}

	err = e.persistence.HelpRepository().SaveAction(ctx, action)
	if err != nil {
		return nil, fmt.Errorf("failed to record action: %w", err)
	}

	for _, fileName := range fileNames {
		err = e.persistence.HelpRepository().SaveFile(ctx, &models.ResolutionFile{
			ID:       uuid.New().String(),
			ActionID: action.ID,
			FileName: fileName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to attach file: %w", err)
		}
	}

	e.publish(ctx, helpID, events.HelpActionRecorded{
		BaseEvent: events.NewBaseEvent(events.HelpActionRecordedEvent),
		ActionID:  action.ID,
		HelpID:    helpID,
		JobID:     help.JobID,
	})

	if fileNames == nil {
		fileNames = []string{}
	}

	return &models.ActionWithFiles{Action: action, Files: fileNames}, nil
}

// AttachFile adds a single file to an existing action without touching the
// files already attached. The help request must be unresolved.
func (e *Escalation) AttachFile(ctx context.Context, actionID, fileName string) (*models.ResolutionFile, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, NewValidationError("AttachFile", "FILE_NAME_REQUIRED", "file name is required", ErrInvalidRequest)
	}

	action, err := e.persistence.HelpRepository().ActionByID(ctx, actionID)
	if err != nil {
		return nil, err
	}

	err = e.requireUnresolved(ctx, action.HelpID)
	if err != nil {
		return nil, err
	}

	file := &models.ResolutionFile{
		ID:       uuid.New().String(),
		ActionID: actionID,
		FileName: fileName,
	}

	err = e.persistence.HelpRepository().SaveFile(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to attach file: %w", err)
	}

	return file, nil
}

// UpdateAction rewrites an action's text and, when fileNames is non-nil,
// replaces its attached file list. The help request must be unresolved.
func (e *Escalation) UpdateAction(ctx context.Context, actionID, actionTaken string, fileNames []string) (*models.ResolutionAction, error) {
	if strings.TrimSpace(actionTaken) == "" {
		return nil, NewValidationError("UpdateAction", "ACTION_REQUIRED", "action text is required", ErrInvalidRequest)
	}

	action, err := e.persistence.HelpRepository().ActionByID(ctx, actionID)
	if err != nil {
		return nil, err
	}

	err = e.requireUnresolved(ctx, action.HelpID)
	if err != nil {
		return nil, err
	}

	action.ActionTaken = actionTaken

	err = e.persistence.HelpRepository().UpdateAction(ctx, action)
	if err != nil {
		return nil, fmt.Errorf("failed to update action: %w", err)
	}

	if fileNames != nil {
		err = e.persistence.HelpRepository().ReplaceFiles(ctx, actionID, fileNames)
		if err != nil {
			return nil, fmt.Errorf("failed to replace action files: %w", err)
		}
	}

	return action, nil
}

// DeleteAction removes an action and its attached files. The help request
// must be unresolved.
func (e *Escalation) DeleteAction(ctx context.Context, actionID string) error {
	action, err := e.persistence.HelpRepository().ActionByID(ctx, actionID)
	if err != nil {
		return err
	}

	err = e.requireUnresolved(ctx, action.HelpID)
	if err != nil {
		return err
	}

	return e.persistence.HelpRepository().DeleteAction(ctx, actionID)
}

// Resolve records the help request's write-once resolution.
func (e *Escalation) Resolve(ctx context.Context, helpID, result string) (*models.HelpResolution, error) {
	if strings.TrimSpace(result) == "" {
		return nil, NewValidationError("Resolve", "RESULT_REQUIRED", "resolution result is required", ErrInvalidRequest)
	}

	help, err := e.persistence.HelpRepository().HelpByID(ctx, helpID)
	if err != nil {
		return nil, err
	}

	resolution := &models.HelpResolution{
		HelpID: helpID,
		Result: result,
	}

	err = e.persistence.HelpRepository().SaveResolution(ctx, resolution)
	if err != nil {
		return nil, err
	}

	job, err := e.persistence.JobRepository().JobByID(ctx, help.JobID)
	if err != nil {
		return nil, err
	}

	e.publish(ctx, helpID, events.HelpResolved{
		BaseEvent: events.NewBaseEvent(events.HelpResolvedEvent),
		HelpID:    helpID,
		JobID:     help.JobID,
		TaskID:    job.TaskID,
	})

	return resolution, nil
}

func (e *Escalation) requireUnresolved(ctx context.Context, helpID string) error {
	_, err := e.persistence.HelpRepository().ResolutionByHelpID(ctx, helpID)
	if err == nil {
		return &ServiceError{
			Op:      "requireUnresolved",
			Code:    "HELP_ALREADY_RESOLVED",
			Message: fmt.Sprintf("help request %s is already resolved", helpID),
			Err:     persistence.ErrHelpAlreadyResolved,
		}
	}

	if !errors.Is(err, persistence.ErrHelpNotFound) {
		return err
	}

	return nil
}

func (e *Escalation) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	_ = e.publisher.Publish(ctx, key, event)
}
