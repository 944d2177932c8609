package web

import (
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/services"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
// Steps are optional; edges are taken from next_step_ids.
type CreateWorkflowRequest struct {
	Name                 string           `json:"name"                               validate:"required,min=3"`
	Description          string           `json:"description"`
	Category             string           `json:"category"`
	Variables            map[string]any   `json:"variables"`
	Settings             *models.Settings `json:"settings,omitempty"`
	TimeSavedPerRunHours float64          `json:"time_saved_per_run_hours,omitempty" validate:"gte=0"`
	Steps                []*models.Step   `json:"steps,omitempty"                    validate:"dive"`
}

func (r CreateWorkflowRequest) workflow() *models.Workflow {
	wf := &models.Workflow{
		Name:                 r.Name,
		Description:          r.Description,
		Category:             r.Category,
		Variables:            r.Variables,
		TimeSavedPerRunHours: r.TimeSavedPerRunHours,
		Steps:                r.Steps,
	}

	if r.Settings != nil {
		wf.Settings = *r.Settings
	}

	return wf
}

// UpdateWorkflowRequest represents the request body for updating an existing workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name                 *string          `json:"name,omitempty"                     validate:"omitempty,min=3"`
	Description          *string          `json:"description,omitempty"`
	Category             *string          `json:"category,omitempty"`
	Variables            map[string]any   `json:"variables,omitempty"`
	Settings             *models.Settings `json:"settings,omitempty"`
	TimeSavedPerRunHours *float64         `json:"time_saved_per_run_hours,omitempty" validate:"omitempty,gte=0"`
}

func (r UpdateWorkflowRequest) service() services.UpdateWorkflowRequest {
	return services.UpdateWorkflowRequest{
		Name:                 r.Name,
		Description:          r.Description,
		Category:             r.Category,
		Variables:            r.Variables,
		Settings:             r.Settings,
		TimeSavedPerRunHours: r.TimeSavedPerRunHours,
	}
}

// CreateStepRequest represents the request body for adding a step. Omitted
// configuration is filled from the factory defaults of kind and subtype.
type CreateStepRequest struct {
	ID        string                  `json:"id,omitempty"`
	Kind      models.StepKind         `json:"kind"                validate:"required,oneof=trigger action condition delay"`
	Subtype   string                  `json:"subtype,omitempty"`
	Name      string                  `json:"name,omitempty"`
	Trigger   *models.TriggerConfig   `json:"trigger,omitempty"`
	Action    *models.ActionConfig    `json:"action,omitempty"`
	Condition *models.ConditionConfig `json:"condition,omitempty"`
	Delay     *models.DelayConfig     `json:"delay,omitempty"`
	PositionX int                     `json:"position_x"`
	PositionY int                     `json:"position_y"`
}

func (r CreateStepRequest) service() services.CreateStepRequest {
	return services.CreateStepRequest{
		ID:        r.ID,
		Kind:      r.Kind,
		Subtype:   r.Subtype,
		Name:      r.Name,
		Trigger:   r.Trigger,
		Action:    r.Action,
		Condition: r.Condition,
		Delay:     r.Delay,
		PositionX: r.PositionX,
		PositionY: r.PositionY,
	}
}

// UpdateStepRequest represents the request body for updating a step. Kind
// and edges cannot be changed here.
type UpdateStepRequest struct {
	Name      *string                 `json:"name,omitempty"       validate:"omitempty,min=1"`
	Trigger   *models.TriggerConfig   `json:"trigger,omitempty"`
	Action    *models.ActionConfig    `json:"action,omitempty"`
	Condition *models.ConditionConfig `json:"condition,omitempty"`
	Delay     *models.DelayConfig     `json:"delay,omitempty"`
	PositionX *int                    `json:"position_x,omitempty"`
	PositionY *int                    `json:"position_y,omitempty"`
}

func (r UpdateStepRequest) service() services.UpdateStepRequest {
	return services.UpdateStepRequest{
		Name:      r.Name,
		Trigger:   r.Trigger,
		Action:    r.Action,
		Condition: r.Condition,
		Delay:     r.Delay,
		PositionX: r.PositionX,
		PositionY: r.PositionY,
	}
}

// ConnectionRequest names one directed edge.
type ConnectionRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to"   validate:"required"`
}

// RunRequest represents the request body for starting a run.
type RunRequest struct {
	TriggerData map[string]any `json:"trigger_data"`
}
