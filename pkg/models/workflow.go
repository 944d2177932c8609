// Package models defines the core domain models for marketing-automation workflow graphs
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft  WorkflowStatus = "draft"  // Editable, not executable
	WorkflowStatusActive WorkflowStatus = "active" // Validated, executable, locked for edits
	WorkflowStatusPaused WorkflowStatus = "paused" // Editable, not executable
	WorkflowStatusError  WorkflowStatus = "error"  // A run failed under stop handling
)

// Editable reports whether steps and edges may be mutated in this status.
func (s WorkflowStatus) Editable() bool {
	return s == WorkflowStatusDraft || s == WorkflowStatusPaused || s == WorkflowStatusError
}

// ErrorHandling selects what happens after a step fails for good.
type ErrorHandling string

const (
	ErrorHandlingStop     ErrorHandling = "stop"
	ErrorHandlingContinue ErrorHandling = "continue"
	ErrorHandlingNotify   ErrorHandling = "notify"
)

// Settings holds the run policy of a workflow.
type Settings struct {
	TimeoutSeconds    int           `json:"timeout_seconds"     validate:"gte=0"`
	RetryCount        int           `json:"retry_count"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int           `json:"retry_delay_seconds" validate:"gte=0"`
	ErrorHandling     ErrorHandling `json:"error_handling"      validate:"omitempty,oneof=stop continue notify"`
}

// DefaultSettings returns the settings a new workflow starts with.
func DefaultSettings() Settings {
	return Settings{
		TimeoutSeconds:    300,
		RetryCount:        3,
		RetryDelaySeconds: 60,
		ErrorHandling:     ErrorHandlingStop,
	}
}

// Timeout returns the run timeout, zero meaning unbounded.
func (s Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// RetryDelay returns the pause between two attempts of a failing action.
func (s Settings) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelaySeconds) * time.Second
}

// Workflow is a named graph of steps with its settings and variables.
type Workflow struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"                               validate:"required,min=3"`
	Description          string         `json:"description"`
	Category             string         `json:"category"`
	Status               WorkflowStatus `json:"status"                             validate:"required,oneof=draft active paused error"`
	Steps                []*Step        `json:"steps"                              validate:"dive"`
	Variables            map[string]any `json:"variables"`
	Settings             Settings       `json:"settings"`
	TimeSavedPerRunHours float64        `json:"time_saved_per_run_hours,omitempty" validate:"gte=0"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// NewWorkflow returns an empty draft with default settings.
func NewWorkflow(id, name string) *Workflow {
	now := time.Now().UTC()

	return &Workflow{
		ID:        id,
		Name:      name,
		Status:    WorkflowStatusDraft,
		Steps:     []*Step{},
		Variables: map[string]any{},
		Settings:  DefaultSettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StepByID returns the step with the given id.
func (w *Workflow) StepByID(id string) (*Step, bool) {
	for _, step := range w.Steps {
		if step.ID == id {
			return step, true
		}
	}

	return nil, false
}

// Triggers returns every trigger step in declaration order.
func (w *Workflow) Triggers() []*Step {
	var triggers []*Step

	for _, step := range w.Steps {
		if step.Kind == StepKindTrigger {
			triggers = append(triggers, step)
		}
	}

	return triggers
}

// Clone returns a deep copy of the workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	out := *w
	out.Variables = cloneMap(w.Variables)

	out.Steps = make([]*Step, len(w.Steps))
	for i, step := range w.Steps {
		out.Steps[i] = step.Clone()
	}

	return &out
}
