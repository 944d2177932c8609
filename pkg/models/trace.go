package models

import "time"

// ExecutionStatus represents the state of a run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"   // Executing or waiting on a delay
	ExecutionStatusCompleted ExecutionStatus = "completed" // Queue drained, no pending suspensions
	ExecutionStatusFailed    ExecutionStatus = "failed"    // Stopped by an error, a timeout or the step limit
	ExecutionStatusCancelled ExecutionStatus = "cancelled" // Cancelled between step executions
)

// Sealed reports whether the status is terminal.
func (s ExecutionStatus) Sealed() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// StepStatus represents the state of one step execution.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepExecutionRecord is one attempt of one step.
type StepExecutionRecord struct {
	StepID       string         `json:"step_id"`
	Status       StepStatus     `json:"status"`
	Attempt      int            `json:"attempt"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	InputData    map[string]any `json:"input_data"`
	OutputData   map[string]any `json:"output_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Duration returns how long the attempt took, zero while unfinished.
func (r StepExecutionRecord) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}

	return r.CompletedAt.Sub(r.StartedAt)
}

// Suspension marks a branch parked on a delay step until DueAt.
type Suspension struct {
	ID        string     `json:"id"`
	StepID    string     `json:"step_id"`
	DueAt     time.Time  `json:"due_at"`
	CreatedAt time.Time  `json:"created_at"`
	ResumedAt *time.Time `json:"resumed_at,omitempty"`
}

// Pending reports whether the branch has not been resumed yet.
func (s Suspension) Pending() bool {
	return s.ResumedAt == nil
}

// IsDue checks if the suspension should be resumed at the given time.
func (s Suspension) IsDue(now time.Time) bool {
	return s.Pending() && !s.DueAt.After(now)
}

// ExecutionTrace is the record of one run of a workflow.
type ExecutionTrace struct {
	ID             string                 `json:"id"`
	WorkflowID     string                 `json:"workflow_id"`
	Status         ExecutionStatus        `json:"status"`
	StartedAt      time.Time              `json:"started_at"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
	StepExecutions []*StepExecutionRecord `json:"step_executions"`
	TriggerData    map[string]any         `json:"trigger_data"`
	RunData        map[string]any         `json:"run_data"`
	Suspensions    []*Suspension          `json:"suspensions,omitempty"`
	ActiveDuration time.Duration          `json:"active_duration"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	RetryCount     int                    `json:"retry_count"`
}

// Duration returns the wall time between start and seal, zero while running.
func (t *ExecutionTrace) Duration() time.Duration {
	if t.CompletedAt == nil {
		return 0
	}

	return t.CompletedAt.Sub(t.StartedAt)
}

// PendingSuspensions returns the suspensions not resumed yet.
func (t *ExecutionTrace) PendingSuspensions() []*Suspension {
	var pending []*Suspension

	for _, s := range t.Suspensions {
		if s.Pending() {
			pending = append(pending, s)
		}
	}

	return pending
}

// Suspension returns the suspension with the given id.
func (t *ExecutionTrace) Suspension(id string) (*Suspension, bool) {
	for _, s := range t.Suspensions {
		if s.ID == id {
			return s, true
		}
	}

	return nil, false
}

// RecordsFor returns every record of a step in trace order.
func (t *ExecutionTrace) RecordsFor(stepID string) []*StepExecutionRecord {
	var records []*StepExecutionRecord

	for _, r := range t.StepExecutions {
		if r.StepID == stepID {
			records = append(records, r)
		}
	}

	return records
}

// Seal moves the trace to a terminal status.
func (t *ExecutionTrace) Seal(status ExecutionStatus, at time.Time, message string) {
	t.Status = status
	t.CompletedAt = &at
	t.ErrorMessage = message
}

// Clone returns a deep copy of the trace.
func (t *ExecutionTrace) Clone() *ExecutionTrace {
	if t == nil {
		return nil
	}

	out := *t
	out.TriggerData = cloneMap(t.TriggerData)
	out.RunData = cloneMap(t.RunData)

	out.StepExecutions = make([]*StepExecutionRecord, len(t.StepExecutions))
	for i, r := range t.StepExecutions {
		record := *r
		record.InputData = cloneMap(r.InputData)
		record.OutputData = cloneMap(r.OutputData)
		out.StepExecutions[i] = &record
	}

	if t.Suspensions != nil {
		out.Suspensions = make([]*Suspension, len(t.Suspensions))
		for i, s := range t.Suspensions {
			suspension := *s
			out.Suspensions[i] = &suspension
		}
	}

	return &out
}
