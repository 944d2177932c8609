package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKind is returned when a step kind is outside the closed set
	ErrInvalidKind = errors.New("invalid step kind")

	// ErrInvalidSubtype is returned when a trigger or action subtype is unknown
	ErrInvalidSubtype = errors.New("invalid step subtype")

	// ErrUnknownOperator is returned when a predicate uses an unsupported operator
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrInvalidSchedule is returned when a cron expression cannot be parsed
	ErrInvalidSchedule = errors.New("invalid schedule configuration")
)

// InvalidKindError reports the offending kind.
type InvalidKindError struct {
	Kind string
}

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidKind, e.Kind)
}

func (e *InvalidKindError) Unwrap() error {
	return ErrInvalidKind
}

// IsInvalidKind checks if the error is an invalid kind error.
func IsInvalidKind(err error) bool {
	return errors.Is(err, ErrInvalidKind)
}
