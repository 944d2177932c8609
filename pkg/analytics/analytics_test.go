package analytics_test

import (
	"testing"
	"time"

	"github.com/iverton053/ivertonai.com-sub010/pkg/analytics"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func record(stepID string, status models.StepStatus, took time.Duration) *models.StepExecutionRecord {
	completed := start.Add(took)

	return &models.StepExecutionRecord{
		StepID:      stepID,
		Status:      status,
		Attempt:     1,
		StartedAt:   start,
		CompletedAt: &completed,
	}
}

func trace(status models.ExecutionStatus, offset, took time.Duration, records ...*models.StepExecutionRecord) *models.ExecutionTrace {
	t := &models.ExecutionTrace{
		ID:             "t",
		WorkflowID:     "wf",
		Status:         status,
		StartedAt:      start.Add(offset),
		StepExecutions: records,
		ActiveDuration: took / 2,
	}

	if status.Sealed() {
		completed := t.StartedAt.Add(took)
		t.CompletedAt = &completed
	}

	return t
}

func TestSummarize(t *testing.T) {
	traces := []*models.ExecutionTrace{
		trace(models.ExecutionStatusCompleted, 0, 10*time.Second),
		trace(models.ExecutionStatusCompleted, time.Hour, 20*time.Second),
		trace(models.ExecutionStatusFailed, 2*time.Hour, 30*time.Second),
		trace(models.ExecutionStatusCancelled, 3*time.Hour, 40*time.Second),
		trace(models.ExecutionStatusRunning, 4*time.Hour, 0),
		nil,
	}

	summary := analytics.Summarize(traces, 0.25)

	assert.Equal(t, 4, summary.ExecutionCount)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Cancelled)
	assert.InDelta(t, 50.0, summary.SuccessRate, 0.0001)
	assert.Equal(t, 25*time.Second, summary.AverageDuration)
	assert.Equal(t, 12500*time.Millisecond, summary.AverageActiveDuration)
	assert.InDelta(t, 1.0, summary.TimeSavedHours, 0.0001)
	require.NotNil(t, summary.LastExecutedAt)
	assert.Equal(t, start.Add(3*time.Hour), *summary.LastExecutedAt)
}

func TestSummarize_Empty(t *testing.T) {
	summary := analytics.Summarize(nil, 2)
	assert.Equal(t, analytics.Summary{}, summary)

	summary = analytics.Summarize([]*models.ExecutionTrace{trace(models.ExecutionStatusRunning, 0, 0)}, 2)
	assert.Zero(t, summary.ExecutionCount)
	assert.Zero(t, summary.TimeSavedHours)
}

func TestStepSummaries(t *testing.T) {
	traces := []*models.ExecutionTrace{
		trace(models.ExecutionStatusCompleted, 0, time.Minute,
			record("trigger", models.StepStatusCompleted, 0),
			record("send", models.StepStatusFailed, 2*time.Second),
			record("send", models.StepStatusCompleted, 4*time.Second),
			record("branch", models.StepStatusSkipped, 0),
		),
		trace(models.ExecutionStatusFailed, time.Hour, time.Minute,
			record("trigger", models.StepStatusCompleted, 0),
			record("send", models.StepStatusFailed, 6*time.Second),
		),
		trace(models.ExecutionStatusRunning, 2*time.Hour, 0,
			record("trigger", models.StepStatusCompleted, 0),
			record("wait", models.StepStatusRunning, 0),
		),
	}

	summaries := analytics.StepSummaries(traces)
	require.Len(t, summaries, 3)

	assert.Equal(t, "trigger", summaries[0].StepID)
	assert.Equal(t, 2, summaries[0].ExecutionCount)
	assert.InDelta(t, 100.0, summaries[0].SuccessRate, 0.0001)

	send := summaries[1]
	assert.Equal(t, "send", send.StepID)
	assert.Equal(t, 3, send.ExecutionCount)
	assert.Equal(t, 1, send.Completed)
	assert.Equal(t, 2, send.Failed)
	assert.InDelta(t, 100.0/3, send.SuccessRate, 0.0001)
	assert.Equal(t, 4*time.Second, send.AverageDuration)

	branch := summaries[2]
	assert.Equal(t, 1, branch.Skipped)
	assert.Zero(t, branch.ExecutionCount)
	assert.Zero(t, branch.SuccessRate)
}

func TestApplyStepStats(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("send", models.ActionTypeSendEmail, nil).
		Action("idle", models.ActionTypeLog, nil).
		Chain("trigger", "send").
		Workflow()

	traces := []*models.ExecutionTrace{
		trace(models.ExecutionStatusCompleted, 0, time.Minute,
			record("trigger", models.StepStatusCompleted, 0),
			record("send", models.StepStatusCompleted, 3*time.Second),
		),
	}

	updated := analytics.ApplyStepStats(wf, traces)

	send, _ := updated.StepByID("send")
	assert.Equal(t, models.StepStats{ExecutionCount: 1, SuccessRate: 100, AverageDuration: 3 * time.Second}, send.Stats)

	idle, _ := updated.StepByID("idle")
	assert.Equal(t, models.StepStats{}, idle.Stats)

	original, _ := wf.StepByID("send")
	assert.Zero(t, original.Stats.ExecutionCount)
}
