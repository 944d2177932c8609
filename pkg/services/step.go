package services

import (
	"context"

	"github.com/iverton053/ivertonai.com-sub010/pkg/graph"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
)

// CreateStepRequest represents the request to add a step. Configs left nil
// keep the defaults of the step kind.
type CreateStepRequest struct {
	ID        string
	Kind      models.StepKind
	Subtype   string
	Name      string
	Trigger   *models.TriggerConfig
	Action    *models.ActionConfig
	Condition *models.ConditionConfig
	Delay     *models.DelayConfig
	PositionX int
	PositionY int
}

// UpdateStepRequest represents the request to update an existing step.
// Configs only apply to a step of the matching kind.
type UpdateStepRequest struct {
	Name      *string
	Trigger   *models.TriggerConfig
	Action    *models.ActionConfig
	Condition *models.ConditionConfig
	Delay     *models.DelayConfig
	PositionX *int
	PositionY *int
}

// AddStep creates a step in an editable workflow.
func (w *Workflow) AddStep(ctx context.Context, workflowID string, req CreateStepRequest) (*models.Step, error) {
	step, err := models.NewStep(req.Kind, req.Subtype)
	if err != nil {
		return nil, err
	}

	if req.ID != "" {
		step.ID = req.ID
	}

	if req.Name != "" {
		step.Name = req.Name
	}

	step.PositionX = req.PositionX
	step.PositionY = req.PositionY
	applyConfig(step, req.Trigger, req.Action, req.Condition, req.Delay)

	wf, err := w.mutate(ctx, workflowID, func(store *graph.Store) error {
		return store.AddStep(step)
	})
	if err != nil {
		return nil, err
	}

	created, _ := wf.StepByID(step.ID)

	return created, nil
}

// UpdateStep edits name, config and position. Edges are untouched.
func (w *Workflow) UpdateStep(ctx context.Context, workflowID, stepID string, req UpdateStepRequest) (*models.Step, error) {
	wf, err := w.mutate(ctx, workflowID, func(store *graph.Store) error {
		return store.UpdateStep(stepID, func(step *models.Step) error {
			if req.Name != nil {
				step.Name = *req.Name
			}

			if req.PositionX != nil {
				step.PositionX = *req.PositionX
			}

			if req.PositionY != nil {
				step.PositionY = *req.PositionY
			}

			applyConfig(step, req.Trigger, req.Action, req.Condition, req.Delay)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	updated, _ := wf.StepByID(stepID)

	return updated, nil
}

// RemoveStep deletes a step and every edge touching it.
func (w *Workflow) RemoveStep(ctx context.Context, workflowID, stepID string) error {
	_, err := w.mutate(ctx, workflowID, func(store *graph.Store) error {
		return store.RemoveStep(stepID)
	})

	return err
}

// Connect adds the edge from -> to. Connecting twice is a no-op.
func (w *Workflow) Connect(ctx context.Context, workflowID, fromID, toID string) (*models.Workflow, error) {
	return w.mutate(ctx, workflowID, func(store *graph.Store) error {
		return store.Connect(fromID, toID)
	})
}

// Disconnect removes the edge from -> to. A missing edge is a no-op.
func (w *Workflow) Disconnect(ctx context.Context, workflowID, fromID, toID string) (*models.Workflow, error) {
	return w.mutate(ctx, workflowID, func(store *graph.Store) error {
		return store.Disconnect(fromID, toID)
	})
}

func applyConfig(step *models.Step, trigger *models.TriggerConfig, action *models.ActionConfig, condition *models.ConditionConfig, delay *models.DelayConfig) {
	switch {
	case step.Kind == models.StepKindTrigger && trigger != nil:
		config := *trigger
		if config.Conditions == nil {
			config.Conditions = []models.Predicate{}
		}

		step.Trigger = &config
	case step.Kind == models.StepKindAction && action != nil:
		config := *action
		if config.Parameters == nil {
			config.Parameters = map[string]any{}
		}

		step.Action = &config
	case step.Kind == models.StepKindCondition && condition != nil:
		config := *condition
		step.Condition = &config
	case step.Kind == models.StepKindDelay && delay != nil:
		config := *delay
		step.Delay = &config
	}
}
