// Package web provides HTTP handlers and REST API endpoints for the flow
// and job engines.
package web

// CreateNodeRequest represents the request body for creating a graph node.
type CreateNodeRequest struct {
	Name string `json:"name" validate:"required,min=1"`
}

// CreateEdgeRequest represents the request body for connecting two nodes.
type CreateEdgeRequest struct {
	FromNodeID string `json:"from_node_id" validate:"required,uuid"`
	ToNodeID   string `json:"to_node_id"   validate:"required,uuid"`
}

// CreateFlowRequest represents the request body for creating a flow
// definition. The name is stored uppercase.
type CreateFlowRequest struct {
	Name        string `json:"name"        validate:"required,min=1"`
	Description string `json:"description"`
	Owner       string `json:"owner"       validate:"required"`
}

// AssignNodeRequest represents the request body for assigning a node to a
// flow, setting its entry, or marking an exit.
type AssignNodeRequest struct {
	NodeID string `json:"node_id" validate:"required,uuid"`
}

// ReplaceExitsRequest represents the request body for swapping a flow's
// exit set.
type ReplaceExitsRequest struct {
	NodeIDs []string `json:"node_ids" validate:"required,min=1,dive,uuid"`
}

// AdvanceRequest represents the request body for moving a task's position.
type AdvanceRequest struct {
	ToNodeID string `json:"to_node_id" validate:"required,uuid"`
}

// DispatchJobRequest represents the request body for dispatching a job.
type DispatchJobRequest struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
	TaskID    string `json:"task_id"    validate:"required,uuid"`
	Name      string `json:"name"       validate:"required,min=1"`
	CreatedBy string `json:"created_by" validate:"required,uuid"`
	Assignee  string `json:"assignee"   validate:"required,uuid"`
}

// AdvanceTargetRequest names the position move to perform when a completed
// job succeeded.
type AdvanceTargetRequest struct {
	FlowID   string `json:"flow_id"    validate:"required,uuid"`
	ToNodeID string `json:"to_node_id" validate:"required,uuid"`
}

// CompleteJobRequest represents the request body for completing a job. The
// advance target is optional and only applied on success.
type CompleteJobRequest struct {
	Succeeded bool                  `json:"succeeded"`
	Log       string                `json:"log"`
	Advance   *AdvanceTargetRequest `json:"advance,omitempty"`
}

// RaiseHelpRequest represents the request body for escalating a job.
type RaiseHelpRequest struct {
	Request string `json:"request" validate:"required,min=1"`
}

// RecordActionRequest represents the request body for logging an action
// against a help request.
type RecordActionRequest struct {
	ActionTaken string   `json:"action_taken" validate:"required,min=1"`
	Files       []string `json:"files,omitempty"`
}

// UpdateActionRequest represents the request body for rewriting an action.
// A non-nil file list replaces the attached files.
type UpdateActionRequest struct {
	ActionTaken string   `json:"action_taken" validate:"required,min=1"`
	Files       []string `json:"files,omitempty"`
}

// AttachFileRequest represents the request body for attaching a single file
// to an existing action.
type AttachFileRequest struct {
	FileName string `json:"file_name" validate:"required,min=1"`
}

// ResolveHelpRequest represents the request body for resolving a help
// request. Resolutions are write-once.
type ResolveHelpRequest struct {
	Result string `json:"result" validate:"required,min=1"`
}
