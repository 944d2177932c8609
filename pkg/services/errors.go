// Package services provides the workflow and execution use cases behind the API and CLI.
package services

import (
	"errors"
	"fmt"

	"github.com/iverton053/ivertonai.com-sub010/pkg/graph"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/n8n"
	"github.com/iverton053/ivertonai.com-sub010/pkg/persistence"
	"github.com/iverton053/ivertonai.com-sub010/pkg/validation"
	"github.com/iverton053/ivertonai.com-sub010/pkg/workflow"
)

var (
	ErrWorkflowNotFound  = persistence.ErrWorkflowNotFound
	ErrExecutionNotFound = persistence.ErrTraceNotFound
	ErrValidationFailed  = validation.ErrValidationFailed
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidStatus        = errors.New("invalid workflow status")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")

	// Business Logic Conflicts (409 Conflict).
	ErrWorkflowNotActive   = workflow.ErrWorkflowNotActive
	ErrExecutionNotRunning = errors.New("execution is not running")
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
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, persistence.ErrInvalidOption) ||
		errors.Is(err, persistence.ErrInvalidID) ||
		errors.Is(err, graph.ErrInvalidStep) ||
		errors.Is(err, models.ErrInvalidKind) ||
		errors.Is(err, models.ErrInvalidSubtype) ||
		errors.Is(err, n8n.ErrMalformedDocument) ||
		errors.Is(err, n8n.ErrUnsupportedNodeType)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, graph.ErrUnknownStep)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, graph.ErrGraphLocked) ||
		errors.Is(err, graph.ErrDuplicateID) ||
		errors.Is(err, ErrWorkflowNotActive) ||
		errors.Is(err, ErrExecutionNotRunning) ||
		errors.Is(err, persistence.ErrTraceSealed) ||
		errors.Is(err, workflow.ErrTraceSealed) ||
		errors.Is(err, workflow.ErrAlreadyResumed)
}

// IsFailedValidation checks if an error carries a failing validation result (HTTP 422).
func IsFailedValidation(err error) bool {
	return errors.Is(err, ErrValidationFailed)
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
