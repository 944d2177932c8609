package graph

import (
	"errors"
	"fmt"
)

// Common graph errors.
var (
	ErrDuplicateID  = errors.New("duplicate step id")
	ErrUnknownStep  = errors.New("unknown step")
	ErrGraphLocked  = errors.New("workflow graph is locked")
	ErrNotValidated = errors.New("workflow has not passed validation")
	ErrInvalidStep  = errors.New("invalid step")
)

// DuplicateIDError is returned when a step id already exists in the graph.
type DuplicateIDError struct {
	StepID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDuplicateID, e.StepID)
}

func (e *DuplicateIDError) Unwrap() error {
	return ErrDuplicateID
}

// UnknownStepError is returned when an operation references a missing step.
type UnknownStepError struct {
	StepID string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnknownStep, e.StepID)
}

func (e *UnknownStepError) Unwrap() error {
	return ErrUnknownStep
}

// GraphLockedError is returned when a mutation is attempted on an active workflow.
type GraphLockedError struct {
	WorkflowID string
	Op         string
}

func (e *GraphLockedError) Error() string {
	return fmt.Sprintf("%s: cannot %s while workflow %s is active", ErrGraphLocked, e.Op, e.WorkflowID)
}

func (e *GraphLockedError) Unwrap() error {
	return ErrGraphLocked
}

// IsDuplicateID checks if the error is a duplicate id error.
func IsDuplicateID(err error) bool {
	return errors.Is(err, ErrDuplicateID)
}

// IsUnknownStep checks if the error is an unknown step error.
func IsUnknownStep(err error) bool {
	return errors.Is(err, ErrUnknownStep)
}

// IsGraphLocked checks if the error is a graph locked error.
func IsGraphLocked(err error) bool {
	return errors.Is(err, ErrGraphLocked)
}
