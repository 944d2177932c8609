package file

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/persistence"
	"github.com/iverton053/ivertonai.com-sub010/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleWorkflow(id string) *models.Workflow {
	wf := testutil.NewWorkflowBuilder(id).
		Trigger("trigger").
		Condition("check", "lead_score", models.OperatorGreaterThan, 80).
		Action("assign", models.ActionTypeAssignLead, map[string]any{"team": "senior"}).
		Delay("wait", 2, models.DelayUnitDays).
		Chain("trigger", "check", "assign").
		Connect("check", "wait").
		Variable("client_name", "Acme").
		Workflow()
	wf.Category = "sales"

	return wf
}

func TestPersistence_HealthCheck(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, NewPersistence("file://"+dir).HealthCheck(context.Background()))
	assert.Error(t, NewPersistence(filepath.Join(dir, "missing")).HealthCheck(context.Background()))
	assert.NoError(t, NewPersistence(dir).Close(context.Background()))
}

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).WorkflowRepository()

	wf := sampleWorkflow("wf-1")
	require.NoError(t, repo.Save(ctx, wf))

	got, err := repo.GetByID(ctx, "wf-1")
	require.NoError(t, err)

	assert.Equal(t, wf.Name, got.Name)
	assert.Equal(t, "sales", got.Category)
	assert.Equal(t, "Acme", got.Variables["client_name"])
	require.Len(t, got.Steps, 4)

	check, ok := got.StepByID("check")
	require.True(t, ok)
	assert.Equal(t, []string{"assign", "wait"}, check.NextStepIDs)
	assert.Equal(t, []string{"trigger"}, check.PrevStepIDs)
	assert.Equal(t, models.OperatorGreaterThan, check.Condition.Operator)
	assert.InDelta(t, 80, check.Condition.Value, 0)

	wait, _ := got.StepByID("wait")
	assert.Equal(t, models.DelayUnitDays, wait.Delay.Unit)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestWorkflowRepository_NotFoundAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewWorkflowRepository(t.TempDir())

	_, err := repo.GetByID(ctx, "nope")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	require.NoError(t, repo.Save(ctx, sampleWorkflow("wf-1")))
	require.NoError(t, repo.Delete(ctx, "wf-1"))
	require.NoError(t, repo.Delete(ctx, "wf-1"))

	_, err = repo.GetByID(ctx, "wf-1")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_RejectsPathTraversal(t *testing.T) {
	ctx := context.Background()
	repo := NewWorkflowRepository(t.TempDir())

	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		wf := sampleWorkflow("ok")
		wf.ID = id

		assert.ErrorIs(t, repo.Save(ctx, wf), persistence.ErrInvalidID, id)

		_, err := repo.GetByID(ctx, id)
		assert.ErrorIs(t, err, persistence.ErrInvalidID, id)
	}
}

func TestWorkflowRepository_ListWorkflows(t *testing.T) {
	ctx := context.Background()
	repo := NewWorkflowRepository(t.TempDir())

	empty, err := repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{})
	require.NoError(t, err)
	assert.Empty(t, empty.Workflows)

	for i, name := range []string{"Charlie", "Alpha", "Bravo"} {
		wf := sampleWorkflow(name)
		wf.Name = name
		wf.CreatedAt = time.Date(2025, 1, i+1, 0, 0, 0, 0, time.UTC)

		if name == "Bravo" {
			wf.Status = models.WorkflowStatusActive
			wf.Category = "support"
		}

		require.NoError(t, repo.Save(ctx, wf))
	}

	byName, err := repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"}, names(byName.Workflows))
	assert.Equal(t, int64(3), byName.TotalCount)

	newest, err := repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bravo", "Alpha"}, names(newest.Workflows))
	assert.True(t, newest.HasNextPage)

	rest, err := repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Charlie"}, names(rest.Workflows))
	assert.False(t, rest.HasNextPage)

	active := models.WorkflowStatusActive
	filtered, err := repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{Status: &active})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bravo"}, names(filtered.Workflows))

	sales, err := repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{Category: "sales"})
	require.NoError(t, err)
	assert.Len(t, sales.Workflows, 2)

	_, err = repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{SortBy: "name; DROP TABLE workflows; --"})
	assert.ErrorIs(t, err, persistence.ErrInvalidOption)
}

func names(workflows []*models.Workflow) []string {
	out := make([]string, len(workflows))
	for i, wf := range workflows {
		out[i] = wf.Name
	}

	return out
}

func sampleTrace(id, workflowID string, startedAt time.Time) *models.ExecutionTrace {
	return &models.ExecutionTrace{
		ID:          id,
		WorkflowID:  workflowID,
		Status:      models.ExecutionStatusRunning,
		StartedAt:   startedAt,
		TriggerData: map[string]any{"email": "jane@acme.io"},
		RunData:     map[string]any{"email": "jane@acme.io"},
		StepExecutions: []*models.StepExecutionRecord{
			{StepID: "trigger", Status: models.StepStatusCompleted, Attempt: 1, StartedAt: startedAt},
			{StepID: "wait", Status: models.StepStatusRunning, Attempt: 1, StartedAt: startedAt},
		},
		Suspensions: []*models.Suspension{
			{ID: "s-1", StepID: "wait", DueAt: startedAt.Add(time.Hour), CreatedAt: startedAt},
		},
		ActiveDuration: 150 * time.Millisecond,
	}
}

func TestTraceRepository_SealedTracesAreImmutable(t *testing.T) {
	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).TraceRepository()
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	trace := sampleTrace("exec-1", "wf-1", start)
	require.NoError(t, repo.SaveTrace(ctx, trace))

	got, err := repo.GetTrace(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, got.Status)
	assert.Equal(t, 150*time.Millisecond, got.ActiveDuration)
	require.Len(t, got.Suspensions, 1)
	assert.True(t, got.Suspensions[0].DueAt.Equal(start.Add(time.Hour)))

	trace.Seal(models.ExecutionStatusCompleted, start.Add(time.Hour), "")
	require.NoError(t, repo.SaveTrace(ctx, trace))

	trace.Status = models.ExecutionStatusFailed
	err = repo.SaveTrace(ctx, trace)
	assert.True(t, persistence.IsTraceSealed(err))

	got, err = repo.GetTrace(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, got.Status)

	_, err = repo.GetTrace(ctx, "exec-2")
	assert.True(t, persistence.IsTraceNotFound(err))
}

func TestTraceRepository_Listing(t *testing.T) {
	ctx := context.Background()
	repo := NewTraceRepository(t.TempDir())
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	none, err := repo.TracesByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Empty(t, none)

	later := sampleTrace("b", "wf-1", start.Add(time.Minute))
	earlier := sampleTrace("a", "wf-1", start)
	other := sampleTrace("c", "wf-2", start)
	other.Seal(models.ExecutionStatusFailed, start, "timeout")

	for _, trace := range []*models.ExecutionTrace{later, earlier, other} {
		require.NoError(t, repo.SaveTrace(ctx, trace))
	}

	traces, err := repo.TracesByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, traces, 2)
	assert.Equal(t, "a", traces[0].ID)
	assert.Equal(t, "b", traces[1].ID)

	running, err := repo.RunningTraces(ctx)
	require.NoError(t, err)
	assert.Len(t, running, 2)
}
