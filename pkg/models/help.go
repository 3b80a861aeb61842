package models

import "time"

// HelpRequest is an escalation raised by a stalled job. A job may raise any
// number of help requests over its life, including several open at once;
// each stays open until a resolution is recorded for it.
type HelpRequest struct {
	ID      string `json:"id"`
	JobID   string `json:"job_id"`
	Request string `json:"request" validate:"required"`
}

// HelpResolution is the final human verdict on a help request. Its presence
// marks the request closed; it is write-once.
type HelpResolution struct {
	HelpID string `json:"help_id"`
	Result string `json:"result"`
}

// ResolutionAction is a discrete step taken by a human while resolving a
// help request. Actions are ordered by creation time.
type ResolutionAction struct {
	ID          string    `json:"id"`
	HelpID      string    `json:"help_id"`
	ActionTaken string    `json:"action_taken" validate:"required"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResolutionFile is file evidence attached to a resolution action.
type ResolutionFile struct {
	ID       string `json:"id"`
	ActionID string `json:"action_id"`
	FileName string `json:"file_name" validate:"required"`
}

// ActionWithFiles is the denormalized view of an action and its evidence.
type ActionWithFiles struct {
	Action *ResolutionAction `json:"action"`
	Files  []string          `json:"files"`
}
