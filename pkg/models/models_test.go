package models

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Step factory

func TestNewStep_TriggerAndActionDefaults(t *testing.T) {
	trigger, err := NewStep(StepKindTrigger, "form_submission")
	require.NoError(t, err)
	assert.NotEmpty(t, trigger.ID)
	assert.Equal(t, "Form Submission", trigger.Name)
	require.NotNil(t, trigger.Trigger)
	assert.Equal(t, TriggerTypeFormSubmission, trigger.Trigger.TriggerType)
	assert.Empty(t, trigger.Trigger.Conditions)
	assert.Empty(t, trigger.NextStepIDs)
	assert.Empty(t, trigger.PrevStepIDs)

	action, err := NewStep(StepKindAction, "send_email")
	require.NoError(t, err)
	assert.Equal(t, "Send Email", action.Name)
	require.NotNil(t, action.Action)
	assert.Equal(t, ActionTypeSendEmail, action.Action.ActionType)
	assert.NotNil(t, action.Action.Parameters)
	assert.Empty(t, action.Action.Parameters)
}

func TestNewStep_ConditionAndDelayDefaults(t *testing.T) {
	condition, err := NewStep(StepKindCondition, "")
	require.NoError(t, err)
	require.NotNil(t, condition.Condition)
	assert.Equal(t, "", condition.Condition.Field)
	assert.Equal(t, OperatorEquals, condition.Condition.Operator)
	assert.Equal(t, "", condition.Condition.Value)

	delay, err := NewStep(StepKindDelay, "")
	require.NoError(t, err)
	require.NotNil(t, delay.Delay)
	assert.Equal(t, 1.0, delay.Delay.Duration)
	assert.Equal(t, DelayUnitHours, delay.Delay.Unit)
	assert.Equal(t, time.Hour, delay.Delay.Wait())
}

func TestNewStep_EmptySubtypeUsesDefaults(t *testing.T) {
	trigger, err := NewStep(StepKindTrigger, "")
	require.NoError(t, err)
	assert.Equal(t, TriggerTypeManual, trigger.Trigger.TriggerType)
	assert.Equal(t, "Manual", trigger.Name)

	action, err := NewStep(StepKindAction, "")
	require.NoError(t, err)
	assert.Equal(t, ActionTypeLog, action.Action.ActionType)
}

func TestNewStep_InvalidKind(t *testing.T) {
	_, err := NewStep(StepKind("loop"), "")
	require.Error(t, err)
	assert.True(t, IsInvalidKind(err))

	var kindErr *InvalidKindError
	require.True(t, errors.As(err, &kindErr))
	assert.Equal(t, "loop", kindErr.Kind)
}

func TestNewStep_InvalidSubtype(t *testing.T) {
	_, err := NewStep(StepKindAction, "launch_rocket")
	assert.ErrorIs(t, err, ErrInvalidSubtype)
	assert.False(t, IsInvalidKind(err))
}

func TestNewStep_UniqueIDs(t *testing.T) {
	a, err := NewStep(StepKindDelay, "")
	require.NoError(t, err)
	b, err := NewStep(StepKindDelay, "")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Send Slack Message", TitleCase("send_slack_message"))
	assert.Equal(t, "Crm Update", TitleCase("crm_update"))
	assert.Equal(t, "Log", TitleCase("log"))
	assert.Equal(t, "", TitleCase(""))
}

func TestKindFromString(t *testing.T) {
	kind, err := KindFromString("delay")
	require.NoError(t, err)
	assert.Equal(t, StepKindDelay, kind)

	_, err = KindFromString("Delay")
	assert.True(t, IsInvalidKind(err))
}

// Step validation and cloning

func TestStep_Validation(t *testing.T) {
	validate := validator.New()

	step, err := NewStep(StepKindAction, "create_task")
	require.NoError(t, err)
	assert.NoError(t, validate.Struct(step))

	step.Kind = "bogus"
	err = validate.Struct(step)
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))
	assert.Equal(t, "Kind", validationErrors[0].Field())
}

func TestStep_CloneIsDeep(t *testing.T) {
	step, err := NewStep(StepKindAction, "send_email")
	require.NoError(t, err)
	step.Action.Parameters["to"] = map[string]any{"email": "a@example.com"}
	step.NextStepIDs = append(step.NextStepIDs, "next")

	clone := step.Clone()
	clone.Action.Parameters["to"].(map[string]any)["email"] = "b@example.com"
	clone.NextStepIDs[0] = "other"

	assert.Equal(t, "a@example.com", step.Action.Parameters["to"].(map[string]any)["email"])
	assert.Equal(t, "next", step.NextStepIDs[0])
}

func TestWorkflow_CloneAndLookup(t *testing.T) {
	wf := NewWorkflow("wf-1", "Lead nurture")
	trigger, err := NewStep(StepKindTrigger, "manual")
	require.NoError(t, err)
	wf.Steps = append(wf.Steps, trigger)
	wf.Variables["client_name"] = "Acme"

	clone := wf.Clone()
	clone.Variables["client_name"] = "Other"
	clone.Steps[0].Name = "Renamed"

	found, ok := wf.StepByID(trigger.ID)
	require.True(t, ok)
	assert.Equal(t, "Manual", found.Name)
	assert.Equal(t, "Acme", wf.Variables["client_name"])
	assert.Len(t, wf.Triggers(), 1)

	_, ok = wf.StepByID("missing")
	assert.False(t, ok)
}

func TestWorkflowStatus_Editable(t *testing.T) {
	assert.True(t, WorkflowStatusDraft.Editable())
	assert.True(t, WorkflowStatusPaused.Editable())
	assert.False(t, WorkflowStatusActive.Editable())
}

// Conditions

func TestPredicate_Evaluate(t *testing.T) {
	data := map[string]any{
		"lead_score": 90,
		"email":      "jane@acme.io",
		"tags":       []any{"vip", "newsletter"},
		"lead":       map[string]any{"stage": "qualified"},
		"active":     true,
	}

	testCases := []struct {
		name      string
		predicate Predicate
		expected  bool
	}{
		{"greater than", Predicate{Field: "lead_score", Operator: OperatorGreaterThan, Value: 80}, true},
		{"greater than alias", Predicate{Field: "lead_score", Operator: ">", Value: 95}, false},
		{"less or equal with string number", Predicate{Field: "lead_score", Operator: OperatorLessOrEqual, Value: "90"}, true},
		{"equals number and float", Predicate{Field: "lead_score", Operator: OperatorEquals, Value: 90.0}, true},
		{"not equals", Predicate{Field: "email", Operator: OperatorNotEquals, Value: "x"}, true},
		{"contains string", Predicate{Field: "email", Operator: OperatorContains, Value: "@acme"}, true},
		{"contains list", Predicate{Field: "tags", Operator: OperatorContains, Value: "vip"}, true},
		{"not contains list", Predicate{Field: "tags", Operator: OperatorNotContains, Value: "cold"}, true},
		{"starts with", Predicate{Field: "email", Operator: OperatorStartsWith, Value: "jane"}, true},
		{"ends with", Predicate{Field: "email", Operator: OperatorEndsWith, Value: ".com"}, false},
		{"exists nested", Predicate{Field: "lead.stage", Operator: OperatorExists}, true},
		{"not exists", Predicate{Field: "lead.owner", Operator: OperatorNotExists}, true},
		{"in list", Predicate{Field: "lead.stage", Operator: OperatorIn, Value: []any{"new", "qualified"}}, true},
		{"bool equals string", Predicate{Field: "active", Operator: OperatorEquals, Value: "true"}, true},
		{"missing field compares false", Predicate{Field: "missing", Operator: OperatorGreaterThan, Value: 1}, false},
		{"type mismatch compares false", Predicate{Field: "tags", Operator: OperatorLessThan, Value: 1}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := tc.predicate.Evaluate(data)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestPredicate_UnknownOperator(t *testing.T) {
	_, err := Predicate{Field: "x", Operator: "matches"}.Evaluate(map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestConditionConfig_LogicalOperators(t *testing.T) {
	data := map[string]any{"score": 50, "country": "PT"}

	and := ConditionConfig{
		Predicate: Predicate{Field: "score", Operator: OperatorGreaterThan, Value: 40},
		Rules:     []Predicate{{Field: "country", Operator: OperatorEquals, Value: "US"}},
	}
	result, err := and.Evaluate(data)
	require.NoError(t, err)
	assert.False(t, result)

	or := and
	or.LogicalOperator = LogicalOr
	result, err = or.Evaluate(data)
	require.NoError(t, err)
	assert.True(t, result)
}

// Schedules and traces

func TestTriggerSchedule(t *testing.T) {
	from := time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)

	schedule, err := NewTriggerSchedule("wf-1", "step-1", "0 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC), schedule.NextDueAt)
	assert.False(t, schedule.IsDue(from))
	assert.True(t, schedule.IsDue(schedule.NextDueAt))

	schedule.Advance(schedule.NextDueAt)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), schedule.NextDueAt)

	_, err = NewTriggerSchedule("wf-1", "step-1", "not a cron", from)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestExecutionTrace_Helpers(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	resumed := start.Add(time.Hour)

	trace := &ExecutionTrace{
		ID:        "exec-1",
		Status:    ExecutionStatusRunning,
		StartedAt: start,
		StepExecutions: []*StepExecutionRecord{
			{StepID: "a", Status: StepStatusCompleted},
			{StepID: "b", Status: StepStatusFailed},
			{StepID: "a", Status: StepStatusCompleted},
		},
		Suspensions: []*Suspension{
			{ID: "s1", StepID: "d", DueAt: start.Add(time.Minute), ResumedAt: &resumed},
			{ID: "s2", StepID: "d", DueAt: start.Add(2 * time.Hour)},
		},
	}

	assert.Len(t, trace.RecordsFor("a"), 2)
	assert.Len(t, trace.PendingSuspensions(), 1)
	assert.False(t, trace.Suspensions[1].IsDue(start))
	assert.True(t, trace.Suspensions[1].IsDue(start.Add(3*time.Hour)))
	assert.Zero(t, trace.Duration())

	clone := trace.Clone()
	clone.StepExecutions[0].Status = StepStatusSkipped

	trace.Seal(ExecutionStatusCompleted, start.Add(time.Minute), "")
	assert.True(t, trace.Status.Sealed())
	assert.Equal(t, time.Minute, trace.Duration())
	assert.Equal(t, StepStatusCompleted, trace.StepExecutions[0].Status)
}
