// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"fmt"

	"github.com/iverton053/ivertonai.com-sub010/pkg/graph"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
)

// CreateTestStep creates a step of the given kind with factory defaults that can be overridden.
func CreateTestStep(id string, kind models.StepKind, overrides ...func(*models.Step)) *models.Step {
	step, err := models.NewStep(kind, "")
	if err != nil {
		panic(err)
	}

	step.ID = id
	step.Name = models.TitleCase(id)

	for _, override := range overrides {
		override(step)
	}

	return step
}

// WithAction sets the action type, service and parameters.
func WithAction(actionType models.ActionType, service string, params map[string]any) func(*models.Step) {
	return func(s *models.Step) {
		if params == nil {
			params = map[string]any{}
		}

		s.Action = &models.ActionConfig{ActionType: actionType, Service: service, Parameters: params}
	}
}

// WithCondition sets the primary predicate of a condition step.
func WithCondition(field string, operator models.ConditionOperator, value any) func(*models.Step) {
	return func(s *models.Step) {
		s.Condition = &models.ConditionConfig{
			Predicate: models.Predicate{Field: field, Operator: operator, Value: value},
		}
	}
}

// WithDelay sets the delay duration.
func WithDelay(duration float64, unit models.DelayUnit) func(*models.Step) {
	return func(s *models.Step) {
		s.Delay = &models.DelayConfig{Duration: duration, Unit: unit}
	}
}

// WithTriggerType sets the trigger type.
func WithTriggerType(triggerType models.TriggerType) func(*models.Step) {
	return func(s *models.Step) {
		s.Trigger.TriggerType = triggerType
	}
}

// WithPosition sets the editor position.
func WithPosition(x, y int) func(*models.Step) {
	return func(s *models.Step) {
		s.PositionX = x
		s.PositionY = y
	}
}

// WorkflowBuilder assembles workflows for tests through a graph store,
// so edges always respect the bidirectional invariant.
type WorkflowBuilder struct {
	store *graph.Store
}

// NewWorkflowBuilder starts a draft workflow with default settings.
func NewWorkflowBuilder(id string) *WorkflowBuilder {
	return &WorkflowBuilder{store: graph.NewStore(models.NewWorkflow(id, "Workflow "+id))}
}

// Step adds a prepared step.
func (b *WorkflowBuilder) Step(step *models.Step) *WorkflowBuilder {
	must(b.store.AddStep(step))

	return b
}

// Trigger adds a manual trigger.
func (b *WorkflowBuilder) Trigger(id string, overrides ...func(*models.Step)) *WorkflowBuilder {
	return b.Step(CreateTestStep(id, models.StepKindTrigger, overrides...))
}

// Action adds an action step.
func (b *WorkflowBuilder) Action(id string, actionType models.ActionType, params map[string]any) *WorkflowBuilder {
	return b.Step(CreateTestStep(id, models.StepKindAction, WithAction(actionType, "mock", params)))
}

// Condition adds a condition step.
func (b *WorkflowBuilder) Condition(id, field string, operator models.ConditionOperator, value any) *WorkflowBuilder {
	return b.Step(CreateTestStep(id, models.StepKindCondition, WithCondition(field, operator, value)))
}

// Delay adds a delay step.
func (b *WorkflowBuilder) Delay(id string, duration float64, unit models.DelayUnit) *WorkflowBuilder {
	return b.Step(CreateTestStep(id, models.StepKindDelay, WithDelay(duration, unit)))
}

// Connect adds the edge from -> to.
func (b *WorkflowBuilder) Connect(from, to string) *WorkflowBuilder {
	must(b.store.Connect(from, to))

	return b
}

// Chain connects the ids in sequence.
func (b *WorkflowBuilder) Chain(ids ...string) *WorkflowBuilder {
	for i := 1; i < len(ids); i++ {
		b.Connect(ids[i-1], ids[i])
	}

	return b
}

// Variable declares a workflow variable.
func (b *WorkflowBuilder) Variable(name string, value any) *WorkflowBuilder {
	wf := b.store.Workflow()
	wf.Variables[name] = value
	b.store = graph.NewStore(wf)

	return b
}

// Settings replaces the workflow settings.
func (b *WorkflowBuilder) Settings(settings models.Settings) *WorkflowBuilder {
	wf := b.store.Workflow()
	wf.Settings = settings
	b.store = graph.NewStore(wf)

	return b
}

// Workflow returns a copy of the workflow built so far.
func (b *WorkflowBuilder) Workflow() *models.Workflow {
	return b.store.Workflow()
}

// Active returns a copy of the workflow marked active.
func (b *WorkflowBuilder) Active() *models.Workflow {
	wf := b.store.Workflow()
	wf.Status = models.WorkflowStatusActive

	return wf
}

func must(err error) {
	if err != nil {
		panic(fmt.Sprintf("testutil: %v", err))
	}
}
