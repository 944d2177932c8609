package protocol

import (
	"context"
	"errors"
	"time"
)

// ErrStaleResume marks a branch that can never be resumed: its run is gone or
// sealed, or the suspension was already resumed.
var ErrStaleResume = errors.New("suspended branch cannot be resumed")

// ResumeRef identifies one suspended branch of a run.
type ResumeRef struct {
	ExecutionID  string    `json:"execution_id"`
	WorkflowID   string    `json:"workflow_id"`
	SuspensionID string    `json:"suspension_id"`
	DueAt        time.Time `json:"due_at"`
}

// ResumeQueue stores suspended branches until their due time.
type ResumeQueue interface {
	// Enqueue registers a suspended branch. Enqueueing the same ref twice is a no-op.
	Enqueue(ctx context.Context, ref ResumeRef) error
	// Claim removes and returns up to limit refs due at or before now.
	// A ref is handed to exactly one caller.
	Claim(ctx context.Context, now time.Time, limit int) ([]ResumeRef, error)
	// Len returns how many refs are waiting.
	Len(ctx context.Context) (int, error)
}

// Resumer re-enters the executor for a suspended branch. Errors wrapping
// ErrStaleResume are final; any other error may succeed on a later attempt.
type Resumer interface {
	Resume(ctx context.Context, executionID, suspensionID string) error
}
