// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrNodeNotFound indicates a graph node was not found by the given identifier.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateEdge indicates the edge already exists. Duplicate edges are
	// a hard error so configuration mistakes surface early.
	ErrDuplicateEdge = errors.New("edge already exists")

	// ErrFlowNotFound indicates a flow was not found by the given identifier.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrPositionNotFound indicates no position exists for the (task, flow) pair.
	ErrPositionNotFound = errors.New("task flow position not found")

	// ErrAlreadyEnrolled indicates a position already exists for the (task, flow) pair.
	ErrAlreadyEnrolled = errors.New("task already enrolled in flow")

	// ErrConcurrentUpdate indicates a compare-and-set lost against a concurrent
	// writer. This is the only error class callers should retry.
	ErrConcurrentUpdate = errors.New("concurrent update detected")

	// ErrJobNotFound indicates a job was not found by the given identifier.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobResultNotFound indicates the job has no result yet.
	ErrJobResultNotFound = errors.New("job result not found")

	// ErrJobAlreadyCompleted indicates a result already exists for the job.
	ErrJobAlreadyCompleted = errors.New("job already completed")

	// ErrHelpNotFound indicates a help request was not found.
	ErrHelpNotFound = errors.New("help request not found")

	// ErrHelpAlreadyResolved indicates a resolution already exists for the help request.
	ErrHelpAlreadyResolved = errors.New("help request already resolved")

	// ErrActionNotFound indicates a resolution action was not found.
	ErrActionNotFound = errors.New("resolution action not found")
)

// FlowError wraps flow-related errors with additional context.
type FlowError struct {
	Op     string // Operation being performed (e.g., "AssignNode", "SetEntry")
	FlowID string
	NodeID string // Node ID if applicable
	Err    error
}

func (e *FlowError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s operation failed for flow %s, node %s: %v", e.Op, e.FlowID, e.NodeID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for flow %s: %v", e.Op, e.FlowID, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFlowError creates a new flow error with context.
func NewFlowError(op, flowID, nodeID string, err error) *FlowError {
	return &FlowError{
		Op:     op,
		FlowID: flowID,
		NodeID: nodeID,
		Err:    err,
	}
}

// PositionError wraps position-related errors with the (task, flow) key.
type PositionError struct {
	Op     string
	TaskID string
	FlowID string
	Err    error
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("%s operation failed for task %s in flow %s: %v", e.Op, e.TaskID, e.FlowID, e.Err)
}

func (e *PositionError) Unwrap() error {
	return e.Err
}

func (e *PositionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewPositionError creates a new position error with context.
func NewPositionError(op, taskID, flowID string, err error) *PositionError {
	return &PositionError{
		Op:     op,
		TaskID: taskID,
		FlowID: flowID,
		Err:    err,
	}
}

// JobError wraps job-related errors with additional context.
type JobError struct {
	Op    string
	JobID string
	Err   error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s operation failed for job %s: %v", e.Op, e.JobID, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

func (e *JobError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewJobError creates a new job error with context.
func NewJobError(op, jobID string, err error) *JobError {
	return &JobError{
		Op:    op,
		JobID: jobID,
		Err:   err,
	}
}

// IsNodeNotFound checks if an error indicates a graph node was not found.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsDuplicateEdge checks if an error indicates an edge already exists.
func IsDuplicateEdge(err error) bool {
	return errors.Is(err, ErrDuplicateEdge)
}

// IsFlowNotFound checks if an error indicates a flow was not found.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsConcurrentUpdate checks if an error indicates a lost compare-and-set.
// This is the only persistence error class safe to retry.
func IsConcurrentUpdate(err error) bool {
	return errors.Is(err, ErrConcurrentUpdate)
}

// IsJobNotFound checks if an error indicates a job was not found.
func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}
