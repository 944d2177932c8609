package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrTraceNotFound indicates an execution trace was not found.
	ErrTraceNotFound = errors.New("execution trace not found")

	// ErrTraceSealed indicates an attempt to overwrite a completed, failed or cancelled trace.
	ErrTraceSealed = errors.New("execution trace is sealed")

	// ErrInvalidID indicates an identifier that cannot be used as a storage key.
	ErrInvalidID = errors.New("invalid identifier")

	// ErrInvalidOption indicates an unsupported list option.
	ErrInvalidOption = errors.New("invalid list option")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// TraceError wraps execution trace errors with additional context.
type TraceError struct {
	Op      string
	TraceID string
	Err     error
}

func (e *TraceError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.TraceID, e.Err)
}

func (e *TraceError) Unwrap() error {
	return e.Err
}

func (e *TraceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewTraceError creates a new trace error with context.
func NewTraceError(op, traceID string, err error) *TraceError {
	return &TraceError{Op: op, TraceID: traceID, Err: err}
}

// NewInvalidOptionError reports an unsupported value for a list option.
func NewInvalidOptionError(option, value string) error {
	return fmt.Errorf("%w: %s=%q", ErrInvalidOption, option, value)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsTraceNotFound checks if an error indicates a trace was not found.
func IsTraceNotFound(err error) bool {
	return errors.Is(err, ErrTraceNotFound)
}

// IsTraceSealed checks if an error indicates a sealed trace was overwritten.
func IsTraceSealed(err error) bool {
	return errors.Is(err, ErrTraceSealed)
}
