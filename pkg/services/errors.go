// Package services provides the business logic layer over the flow graph,
// position tracker, and job lifecycle stores.
package services

import (
	"errors"
	"fmt"

	"github.com/subseq/zini/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrFlowNameRequired = errors.New("flow name is required")
	ErrNodeNameRequired = errors.New("node name is required")
	ErrEmptyOwner       = errors.New("owner cannot be empty")
	ErrSelfEdge         = errors.New("edge endpoints must differ")

	// Business Logic Conflicts (409 Conflict).
	ErrNodeNotAssigned   = errors.New("node is not assigned to the flow")
	ErrUnreachableExit   = errors.New("no exit node is reachable from the entry node")
	ErrNoEntryNode       = errors.New("flow has no entry node")
	ErrIllegalTransition = errors.New("no edge connects the current node to the target")
	ErrAlreadyTerminal   = errors.New("position is already at an exit node")
	ErrTaskNotEnrolled   = errors.New("task is not enrolled in the flow")
	ErrHelpStillOpen     = errors.New("job has unresolved help requests")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrFlowNameRequired) ||
		errors.Is(err, ErrNodeNameRequired) ||
		errors.Is(err, ErrEmptyOwner) ||
		errors.Is(err, ErrSelfEdge)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrNodeNotAssigned) ||
		errors.Is(err, ErrUnreachableExit) ||
		errors.Is(err, ErrNoEntryNode) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrAlreadyTerminal) ||
		errors.Is(err, ErrTaskNotEnrolled) ||
		errors.Is(err, ErrHelpStillOpen) ||
		errors.Is(err, persistence.ErrDuplicateEdge) ||
		errors.Is(err, persistence.ErrAlreadyEnrolled) ||
		errors.Is(err, persistence.ErrJobAlreadyCompleted) ||
		errors.Is(err, persistence.ErrHelpAlreadyResolved)
}

// IsNotFoundError checks if an error indicates a missing entity (HTTP 404).
func IsNotFoundError(err error) bool {
	return errors.Is(err, persistence.ErrNodeNotFound) ||
		errors.Is(err, persistence.ErrFlowNotFound) ||
		errors.Is(err, persistence.ErrPositionNotFound) ||
		errors.Is(err, persistence.ErrJobNotFound) ||
		errors.Is(err, persistence.ErrJobResultNotFound) ||
		errors.Is(err, persistence.ErrHelpNotFound) ||
		errors.Is(err, persistence.ErrActionNotFound)
}

// IsRetryable checks if an error is a transient conflict the caller may
// safely retry after re-reading state.
func IsRetryable(err error) bool {
	return errors.Is(err, persistence.ErrConcurrentUpdate)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
