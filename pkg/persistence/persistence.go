// Package persistence provides the data storage abstraction layer for the
// flow and job engines.
package persistence

import (
	"context"

	"github.com/subseq/zini/pkg/models"
)

type Persistence interface {
	GraphRepository() GraphRepository
	FlowRepository() FlowRepository
	PositionRepository() PositionRepository
	JobRepository() JobRepository
	HelpRepository() HelpRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// GraphRepository stores the globally shared workflow nodes and directed
// edges. The graph is append-only: no deletion is exposed, so historical
// flow definitions remain valid indefinitely.
type GraphRepository interface {
	SaveNode(ctx context.Context, node *models.Node) error
	NodeByID(ctx context.Context, id string) (*models.Node, error)
	Nodes(ctx context.Context) ([]*models.Node, error)

	// SaveEdge fails with ErrDuplicateEdge when the edge already exists and
	// ErrNodeNotFound when either endpoint is unknown.
	SaveEdge(ctx context.Context, edge models.Edge) error
	Edges(ctx context.Context) ([]models.Edge, error)
	Neighbors(ctx context.Context, nodeID string) ([]string, error)
}

// FlowRepository stores flow definitions and their assignment, entry, and
// exit records.
type FlowRepository interface {
	SaveFlow(ctx context.Context, flow *models.Flow) error
	FlowByID(ctx context.Context, id string) (*models.Flow, error)
	Flows(ctx context.Context) ([]*models.Flow, error)

	// AssignNode is idempotent: assigning an already-assigned node is a no-op.
	AssignNode(ctx context.Context, flowID, nodeID string) error
	Assignments(ctx context.Context, flowID string) ([]string, error)

	// SetEntry upserts the flow's single entry node.
	SetEntry(ctx context.Context, flowID, nodeID string) error

	MarkExit(ctx context.Context, flowID, nodeID string) error
	ReplaceExits(ctx context.Context, flowID string, nodeIDs []string) error
	Exits(ctx context.Context, flowID string) ([]string, error)
}

// PositionRepository stores per-(task, flow) position records. Advancing a
// position is a compare-and-set on the current node so concurrent callers
// cannot both succeed from a stale read.
type PositionRepository interface {
	// CreatePosition fails with ErrAlreadyEnrolled when a position already
	// exists for the (task, flow) pair.
	CreatePosition(ctx context.Context, position *models.TaskFlowPosition) error
	PositionByTaskFlow(ctx context.Context, taskID, flowID string) (*models.TaskFlowPosition, error)
	PositionsByTask(ctx context.Context, taskID string) ([]*models.TaskFlowPosition, error)

	// AdvancePosition updates the position only when the stored current node
	// still equals fromNodeID; otherwise it fails with ErrConcurrentUpdate,
	// which callers may retry.
	AdvancePosition(ctx context.Context, taskID, flowID, fromNodeID, toNodeID string) error
}

// JobQueryOptions filters and paginates job listings.
type JobQueryOptions struct {
	ProjectID string
	TaskID    string
	CreatedBy string
	Assignee  string
	Name      string // substring match
	Running   *bool  // true: no result yet; false: completed

	Page     int
	PageSize int
}

// JobListItem pairs a job with its result, when completed.
type JobListItem struct {
	Job    *models.Job       `json:"job"`
	Result *models.JobResult `json:"result,omitempty"`
}

// JobRepository stores jobs and their write-once results. The result
// uniqueness guard lives at the store level (primary key on job id), not
// only in application checks, to close the concurrent-completion race.
type JobRepository interface {
	SaveJob(ctx context.Context, job *models.Job) error
	JobByID(ctx context.Context, id string) (*models.Job, error)
	QueryJobs(ctx context.Context, opts JobQueryOptions) ([]*JobListItem, error)

	// SaveResult fails with ErrJobAlreadyCompleted when a result already
	// exists for the job.
	SaveResult(ctx context.Context, result *models.JobResult) error
	ResultByJobID(ctx context.Context, jobID string) (*models.JobResult, error)
}

// HelpRepository stores the job escalation chain: help requests, their
// write-once resolutions, resolution actions, and attached files.
type HelpRepository interface {
	SaveHelp(ctx context.Context, help *models.HelpRequest) error
	HelpByID(ctx context.Context, id string) (*models.HelpRequest, error)
	OpenHelpCount(ctx context.Context, jobID string) (int, error)
	NextOpenHelp(ctx context.Context, jobID string) (*models.HelpRequest, error)

	// SaveResolution fails with ErrHelpAlreadyResolved when the help request
	// already has a resolution.
	SaveResolution(ctx context.Context, resolution *models.HelpResolution) error
	ResolutionByHelpID(ctx context.Context, helpID string) (*models.HelpResolution, error)

	SaveAction(ctx context.Context, action *models.ResolutionAction) error
	ActionByID(ctx context.Context, id string) (*models.ResolutionAction, error)
	UpdateAction(ctx context.Context, action *models.ResolutionAction) error
	DeleteAction(ctx context.Context, id string) error
	ActionsByHelpID(ctx context.Context, helpID string) ([]*models.ActionWithFiles, error)

	SaveFile(ctx context.Context, file *models.ResolutionFile) error
	ReplaceFiles(ctx context.Context, actionID string, fileNames []string) error
}
