package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/iverton053/ivertonai.com-sub010/pkg/events"
	"github.com/iverton053/ivertonai.com-sub010/pkg/mocks"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/protocol"
	"github.com/iverton053/ivertonai.com-sub010/pkg/testutil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var startTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// recordingInvoker succeeds for every action except the ones listed in failures.
type recordingInvoker struct {
	mu       sync.Mutex
	calls    []models.ActionType
	params   []map[string]any
	failures map[models.ActionType]error
	output   map[models.ActionType]map[string]any
}

func (r *recordingInvoker) Invoke(_ context.Context, actionType models.ActionType, _ string, params map[string]any) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, actionType)
	r.params = append(r.params, params)

	if err, ok := r.failures[actionType]; ok {
		return nil, err
	}

	if out, ok := r.output[actionType]; ok {
		return out, nil
	}

	return map[string]any{"ok": true}, nil
}

func settings(retries int, handling models.ErrorHandling) models.Settings {
	return models.Settings{TimeoutSeconds: 300, RetryCount: retries, ErrorHandling: handling}
}

func summary(trace *models.ExecutionTrace) []string {
	out := make([]string, len(trace.StepExecutions))
	for i, record := range trace.StepExecutions {
		out[i] = fmt.Sprintf("%s:%s", record.StepID, record.Status)
	}

	return out
}

func newTestExecutor(invoker protocol.ActionInvoker, opts ...Option) *Executor {
	return NewExecutor(invoker, append([]Option{WithClock(clockwork.NewFakeClockAt(startTime))}, opts...)...)
}

func TestExecutor_LinearWorkflowCompletes(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("send_email", models.ActionTypeSendEmail, map[string]any{"to": "jane@acme.io"}).
		Chain("trigger", "send_email").
		Active()

	invoker := &recordingInvoker{}
	trace, err := newTestExecutor(invoker).Run(context.Background(), wf, map[string]any{"email": "jane@acme.io"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, trace.Status)
	assert.Equal(t, []string{"trigger:completed", "send_email:completed"}, summary(trace))
	assert.Equal(t, "wf", trace.WorkflowID)
	assert.Equal(t, startTime, trace.StartedAt)
	require.NotNil(t, trace.CompletedAt)
	assert.Empty(t, trace.ErrorMessage)

	triggerRecord := trace.StepExecutions[0]
	assert.Equal(t, map[string]any{"email": "jane@acme.io"}, triggerRecord.InputData)
	assert.Equal(t, map[string]any{"email": "jane@acme.io"}, triggerRecord.OutputData)
	assert.Equal(t, map[string]any{"ok": true}, trace.StepExecutions[1].OutputData)
}

func TestExecutor_ConditionRoutesTrueBranch(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Condition("check", "lead_score", models.OperatorGreaterThan, 80).
		Action("assign_senior", models.ActionTypeAssignLead, map[string]any{"team": "senior"}).
		Action("assign_junior", models.ActionTypeAssignLead, map[string]any{"team": "junior"}).
		Chain("trigger", "check", "assign_senior").
		Connect("check", "assign_junior").
		Active()

	invoker := &recordingInvoker{}
	trace, err := newTestExecutor(invoker).Run(context.Background(), wf, map[string]any{"lead_score": 90})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, trace.Status)
	assert.Equal(t, []string{
		"trigger:completed",
		"check:completed",
		"assign_junior:skipped",
		"assign_senior:completed",
	}, summary(trace))
	require.Len(t, invoker.params, 1)
	assert.Equal(t, "senior", invoker.params[0]["team"])
	assert.Equal(t, map[string]any{"result": true}, trace.StepExecutions[1].OutputData)
}

func TestExecutor_ConditionRoutesFalseBranch(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Condition("check", "lead_score", models.OperatorGreaterThan, 80).
		Action("assign_senior", models.ActionTypeAssignLead, nil).
		Action("assign_junior", models.ActionTypeAssignLead, nil).
		Chain("trigger", "check", "assign_senior").
		Connect("check", "assign_junior").
		Active()

	trace, err := newTestExecutor(&recordingInvoker{}).Run(context.Background(), wf, map[string]any{"lead_score": 12})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"trigger:completed",
		"check:completed",
		"assign_senior:skipped",
		"assign_junior:completed",
	}, summary(trace))
}

func TestExecutor_FalseConditionWithoutFalseBranchIsSkipped(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Condition("check", "vip", models.OperatorEquals, true).
		Action("notify_sales", models.ActionTypeSendSlackMessage, nil).
		Chain("trigger", "check", "notify_sales").
		Active()

	invoker := &recordingInvoker{}
	trace, err := newTestExecutor(invoker).Run(context.Background(), wf, map[string]any{"vip": false})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, trace.Status)
	assert.Equal(t, []string{"trigger:completed", "check:skipped"}, summary(trace))
	assert.Empty(t, invoker.calls)
}

func TestExecutor_DelaySuspendsAndResumes(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Delay("wait", 2, models.DelayUnitDays).
		Action("follow_up", models.ActionTypeSendEmail, nil).
		Chain("trigger", "wait", "follow_up").
		Active()

	invoker := &recordingInvoker{}
	executor := NewExecutor(invoker, WithClock(clock))

	trace, err := executor.Run(context.Background(), wf, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusRunning, trace.Status)
	assert.Nil(t, trace.CompletedAt)
	assert.Equal(t, []string{"trigger:completed", "wait:running"}, summary(trace))
	assert.Empty(t, trace.RecordsFor("follow_up"))
	require.Len(t, trace.Suspensions, 1)

	suspension := trace.Suspensions[0]
	assert.Equal(t, "wait", suspension.StepID)
	assert.Equal(t, startTime.Add(48*time.Hour), suspension.DueAt)
	assert.Empty(t, invoker.calls)

	clock.Advance(48 * time.Hour)

	resumed, err := executor.Resume(context.Background(), wf, trace, suspension.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
	assert.Equal(t, []string{"trigger:completed", "wait:completed", "follow_up:completed"}, summary(resumed))
	assert.NotNil(t, resumed.Suspensions[0].ResumedAt)
	assert.Empty(t, resumed.PendingSuspensions())

	// The input trace is untouched.
	assert.Equal(t, models.ExecutionStatusRunning, trace.Status)
	assert.True(t, trace.Suspensions[0].Pending())

	_, err = executor.Resume(context.Background(), wf, resumed, suspension.ID)
	assert.ErrorIs(t, err, ErrTraceSealed)
}

func TestExecutor_ResumeMisuse(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Delay("wait", 1, models.DelayUnitHours).
		Delay("later", 1, models.DelayUnitHours).
		Chain("trigger", "wait").
		Connect("trigger", "later").
		Active()

	executor := newTestExecutor(&recordingInvoker{})

	trace, err := executor.Run(context.Background(), wf, nil)
	require.NoError(t, err)
	require.Len(t, trace.Suspensions, 2)

	_, err = executor.Resume(context.Background(), wf, trace, "nope")
	assert.ErrorIs(t, err, ErrUnknownSuspension)

	other := wf.Clone()
	other.ID = "other"
	_, err = executor.Resume(context.Background(), other, trace, trace.Suspensions[0].ID)
	assert.ErrorIs(t, err, ErrWrongWorkflow)

	partial, err := executor.Resume(context.Background(), wf, trace, trace.Suspensions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, partial.Status)

	_, err = executor.Resume(context.Background(), wf, partial, trace.Suspensions[0].ID)
	assert.ErrorIs(t, err, ErrAlreadyResumed)

	done, err := executor.Resume(context.Background(), wf, partial, trace.Suspensions[1].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, done.Status)

	_, err = executor.Resume(context.Background(), nil, trace, "x")
	assert.ErrorIs(t, err, ErrWorkflowRequired)
	_, err = executor.Resume(context.Background(), wf, nil, "x")
	assert.ErrorIs(t, err, ErrTraceRequired)
}

func TestExecutor_ResolvesVariables(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("welcome", models.ActionTypeSendEmail, map[string]any{
			"subject": "Hi {{client_name}}",
			"to":      "{{trigger.email}}",
		}).
		Chain("trigger", "welcome").
		Variable("client_name", "Acme").
		Active()

	invoker := &mocks.MockActionInvoker{}
	invoker.On("Invoke", mock.Anything, models.ActionTypeSendEmail, "mock", map[string]any{
		"subject": "Hi Acme",
		"to":      "jane@acme.io",
	}).Return(map[string]any{"message_id": "m-1"}, nil).Once()

	trace, err := newTestExecutor(invoker).Run(context.Background(), wf, map[string]any{"email": "jane@acme.io"})
	require.NoError(t, err)

	invoker.AssertExpectations(t)
	assert.Equal(t, models.ExecutionStatusCompleted, trace.Status)
	assert.Equal(t, "Hi Acme", trace.StepExecutions[1].InputData["subject"])
	assert.Equal(t, "m-1", trace.RunData["message_id"])
	assert.Equal(t, map[string]any{"message_id": "m-1"}, trace.RunData["steps"].(map[string]any)["welcome"])
}

func TestExecutor_OutputsFeedLaterConditions(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("score", models.ActionTypeUpdateLeadScore, nil).
		Condition("hot", "steps.score.lead_score", models.OperatorGreaterOrEqual, 90).
		Action("alert", models.ActionTypeSendSlackMessage, nil).
		Action("nurture", models.ActionTypeAddToCampaign, nil).
		Chain("trigger", "score", "hot", "alert").
		Connect("hot", "nurture").
		Active()

	invoker := &recordingInvoker{output: map[models.ActionType]map[string]any{
		models.ActionTypeUpdateLeadScore: {"lead_score": 95},
	}}

	trace, err := newTestExecutor(invoker).Run(context.Background(), wf, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"trigger:completed",
		"score:completed",
		"hot:completed",
		"nurture:skipped",
		"alert:completed",
	}, summary(trace))
}

func TestExecutor_RetryBound(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("sync", models.ActionTypeUpdateCRM, nil).
		Chain("trigger", "sync").
		Settings(settings(2, models.ErrorHandlingStop)).
		Active()

	invoker := &recordingInvoker{failures: map[models.ActionType]error{
		models.ActionTypeUpdateCRM: errors.New("crm unavailable"),
	}}

	trace, err := newTestExecutor(invoker).Run(context.Background(), wf, nil)
	require.NoError(t, err)

	assert.Len(t, invoker.calls, 3)
	assert.Equal(t, 2, trace.RetryCount)
	assert.Equal(t, models.ExecutionStatusFailed, trace.Status)
	assert.Contains(t, trace.ErrorMessage, "crm unavailable")
	assert.Contains(t, trace.ErrorMessage, "sync")

	records := trace.RecordsFor("sync")
	require.Len(t, records, 3)

	for i, record := range records {
		assert.Equal(t, i+1, record.Attempt)
		assert.Equal(t, models.StepStatusFailed, record.Status)
		assert.Equal(t, "crm unavailable", record.ErrorMessage)
	}
}

func TestExecutor_RetryWaitsOnClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("sync", models.ActionTypeUpdateCRM, nil).
		Chain("trigger", "sync").
		Settings(models.Settings{TimeoutSeconds: 600, RetryCount: 1, RetryDelaySeconds: 30, ErrorHandling: models.ErrorHandlingStop}).
		Active()

	calls := 0
	invoker := protocol.ActionInvokerFunc(func(context.Context, models.ActionType, string, map[string]any) (map[string]any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("temporary")
		}

		return map[string]any{"synced": true}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	go func() {
		if err := clock.BlockUntilContext(ctx, 1); err == nil {
			clock.Advance(30 * time.Second)
		}
	}()

	trace, err := NewExecutor(invoker, WithClock(clock)).Run(ctx, wf, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, trace.Status)
	assert.Equal(t, []string{"trigger:completed", "sync:failed", "sync:completed"}, summary(trace))
	assert.Equal(t, 1, trace.RetryCount)
	assert.Equal(t, startTime.Add(30*time.Second), trace.StepExecutions[2].StartedAt)
}

func TestExecutor_StopHaltsEverything(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("broken", models.ActionTypeWebhook, nil).
		Action("sibling", models.ActionTypeLog, nil).
		Action("after", models.ActionTypeLog, nil).
		Chain("trigger", "broken", "after").
		Connect("trigger", "sibling").
		Settings(settings(0, models.ErrorHandlingStop)).
		Active()

	invoker := &recordingInvoker{failures: map[models.ActionType]error{models.ActionTypeWebhook: errors.New("502")}}

	trace, err := newTestExecutor(invoker).Run(context.Background(), wf, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, trace.Status)
	assert.Equal(t, []string{"trigger:completed", "broken:failed"}, summary(trace))
	assert.Equal(t, []models.ActionType{models.ActionTypeWebhook}, invoker.calls)
}

func TestExecutor_ContinueKeepsSiblingBranches(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("broken", models.ActionTypeWebhook, nil).
		Action("after_broken", models.ActionTypeLog, nil).
		Action("sibling", models.ActionTypeAddTag, nil).
		Action("after_sibling", models.ActionTypeCreateTask, nil).
		Chain("trigger", "broken", "after_broken").
		Chain("trigger", "sibling", "after_sibling").
		Settings(settings(0, models.ErrorHandlingContinue)).
		Active()

	invoker := &recordingInvoker{failures: map[models.ActionType]error{models.ActionTypeWebhook: errors.New("502")}}

	trace, err := newTestExecutor(invoker).Run(context.Background(), wf, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, trace.Status)
	assert.Equal(t, []string{
		"trigger:completed",
		"broken:failed",
		"sibling:completed",
		"after_sibling:completed",
	}, summary(trace))
	assert.Empty(t, trace.RecordsFor("after_broken"))
}

func TestExecutor_NotifyEmitsStepFailure(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("broken", models.ActionTypeWebhook, nil).
		Action("sibling", models.ActionTypeAddTag, nil).
		Chain("trigger", "broken").
		Connect("trigger", "sibling").
		Settings(settings(1, models.ErrorHandlingNotify)).
		Active()

	emitter := &mocks.MockNotificationEmitter{}
	emitter.On("Notify", mock.Anything, mock.MatchedBy(func(event events.Event) bool {
		failed, ok := event.(events.StepFailed)
		return ok && failed.StepID == "broken" && failed.Attempts == 2 && failed.Error == "502"
	})).Once()
	emitter.On("Notify", mock.Anything, mock.MatchedBy(func(event events.Event) bool {
		return event.GetType() == events.ExecutionCompletedEvent
	})).Once()

	invoker := &recordingInvoker{failures: map[models.ActionType]error{models.ActionTypeWebhook: errors.New("502")}}

	trace, err := newTestExecutor(invoker, WithEmitter(emitter)).Run(context.Background(), wf, nil)
	require.NoError(t, err)

	emitter.AssertExpectations(t)
	assert.Equal(t, models.ExecutionStatusCompleted, trace.Status)
	assert.Len(t, trace.RecordsFor("sibling"), 1)
}

func TestExecutor_CancellationDiscardsInFlightResult(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("slow", models.ActionTypeGenerateReport, nil).
		Action("next", models.ActionTypeLog, nil).
		Chain("trigger", "slow", "next").
		Active()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	invoker := protocol.ActionInvokerFunc(func(ctx context.Context, _ models.ActionType, _ string, _ map[string]any) (map[string]any, error) {
		cancel()
		assert.NoError(t, ctx.Err(), "in-flight action must not be interrupted")

		return map[string]any{"report": "done"}, nil
	})

	trace, err := newTestExecutor(invoker).Run(ctx, wf, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCancelled, trace.Status)
	assert.Equal(t, []string{"trigger:completed", "slow:skipped"}, summary(trace))
	assert.Nil(t, trace.StepExecutions[1].OutputData)
	assert.NotContains(t, trace.RunData, "report")
}

func TestExecutor_CancelledBeforeFirstStep(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("send", models.ActionTypeLog, nil).
		Chain("trigger", "send").
		Active()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	trace, err := newTestExecutor(&recordingInvoker{}).Run(ctx, wf, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCancelled, trace.Status)
	assert.Equal(t, []string{"trigger:completed"}, summary(trace))
}

func TestExecutor_Timeout(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("slow", models.ActionTypeGenerateReport, nil).
		Action("next", models.ActionTypeLog, nil).
		Chain("trigger", "slow", "next").
		Settings(settings(0, models.ErrorHandlingStop)).
		Active()

	invoker := protocol.ActionInvokerFunc(func(context.Context, models.ActionType, string, map[string]any) (map[string]any, error) {
		clock.Advance(10 * time.Minute)
		return map[string]any{}, nil
	})

	trace, err := NewExecutor(invoker, WithClock(clock)).Run(context.Background(), wf, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, trace.Status)
	assert.Equal(t, MessageTimeout, trace.ErrorMessage)
	assert.Equal(t, []string{"trigger:completed", "slow:completed"}, summary(trace))
}

func TestExecutor_TimeoutOnLastStep(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("slow", models.ActionTypeGenerateReport, nil).
		Chain("trigger", "slow").
		Settings(models.Settings{TimeoutSeconds: 60, ErrorHandling: models.ErrorHandlingStop}).
		Active()

	invoker := protocol.ActionInvokerFunc(func(context.Context, models.ActionType, string, map[string]any) (map[string]any, error) {
		clock.Advance(10 * time.Minute)
		return map[string]any{}, nil
	})

	trace, err := NewExecutor(invoker, WithClock(clock)).Run(context.Background(), wf, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, trace.Status)
	assert.Equal(t, MessageTimeout, trace.ErrorMessage)
	assert.Equal(t, 10*time.Minute, trace.ActiveDuration)
}

func TestExecutor_ActiveDurationMatchesWallTime(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("send", models.ActionTypeSendEmail, nil).
		Chain("trigger", "send").
		Settings(settings(0, models.ErrorHandlingStop)).
		Active()

	invoker := protocol.ActionInvokerFunc(func(context.Context, models.ActionType, string, map[string]any) (map[string]any, error) {
		clock.Advance(time.Minute)
		return map[string]any{}, nil
	})

	trace, err := NewExecutor(invoker, WithClock(clock)).Run(context.Background(), wf, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, trace.Status)
	assert.Equal(t, time.Minute, trace.Duration())
	assert.Equal(t, time.Minute, trace.ActiveDuration)
	assert.LessOrEqual(t, trace.ActiveDuration, trace.Duration())
}

func TestExecutor_TimeoutExcludesSuspendedTime(t *testing.T) {
	clock := clockwork.NewFakeClockAt(startTime)
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Delay("wait", 1, models.DelayUnitWeeks).
		Action("send", models.ActionTypeSendEmail, nil).
		Chain("trigger", "wait", "send").
		Settings(settings(0, models.ErrorHandlingStop)).
		Active()

	executor := NewExecutor(&recordingInvoker{}, WithClock(clock))

	trace, err := executor.Run(context.Background(), wf, nil)
	require.NoError(t, err)

	clock.Advance(7 * 24 * time.Hour)

	resumed, err := executor.Resume(context.Background(), wf, trace, trace.Suspensions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, resumed.Status)
	assert.Less(t, resumed.ActiveDuration, time.Minute)
}

func TestExecutor_TriggerConditions(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger", func(s *models.Step) {
			s.Trigger.TriggerType = models.TriggerTypeFormSubmission
			s.Trigger.Conditions = []models.Predicate{{Field: "form", Operator: models.OperatorEquals, Value: "demo"}}
		}).
		Action("send", models.ActionTypeSendEmail, nil).
		Chain("trigger", "send").
		Active()

	executor := newTestExecutor(&recordingInvoker{})

	trace, err := executor.Run(context.Background(), wf, map[string]any{"form": "newsletter"})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, trace.Status)
	assert.Equal(t, []string{"trigger:skipped"}, summary(trace))

	trace, err = executor.Run(context.Background(), wf, map[string]any{"form": "demo"})
	require.NoError(t, err)
	assert.Equal(t, []string{"trigger:completed", "send:completed"}, summary(trace))
}

func TestExecutor_StepLimitEndsRunawayLoops(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Condition("a", "x", models.OperatorEquals, 1).
		Condition("b", "x", models.OperatorEquals, 1).
		Chain("trigger", "a", "b", "a").
		Active()

	trace, err := newTestExecutor(&recordingInvoker{}, WithConfig(Config{MaxStepExecutions: 20})).
		Run(context.Background(), wf, map[string]any{"x": 1})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, trace.Status)
	assert.Equal(t, MessageStepLimit, trace.ErrorMessage)
	assert.Len(t, trace.StepExecutions, 21)
}

func TestExecutor_JoinRunsOnce(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("a", models.ActionTypeAddTag, nil).
		Action("b", models.ActionTypeUpdateCRM, nil).
		Action("join", models.ActionTypeLog, nil).
		Chain("trigger", "a", "join").
		Chain("trigger", "b", "join").
		Active()

	trace, err := newTestExecutor(&recordingInvoker{}).Run(context.Background(), wf, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"trigger:completed", "a:completed", "b:completed", "join:completed"}, summary(trace))
}

func TestExecutor_Deterministic(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Condition("check", "plan", models.OperatorIn, []any{"pro", "enterprise"}).
		Action("upsell", models.ActionTypeAddToCampaign, nil).
		Action("onboard", models.ActionTypeSendEmail, nil).
		Action("tag", models.ActionTypeAddTag, nil).
		Delay("wait", 3, models.DelayUnitDays).
		Chain("trigger", "check", "upsell", "tag").
		Connect("check", "onboard").
		Connect("trigger", "wait").
		Active()

	executor := newTestExecutor(&recordingInvoker{})
	data := map[string]any{"plan": "pro"}

	first, err := executor.Run(context.Background(), wf, data)
	require.NoError(t, err)
	second, err := executor.Run(context.Background(), wf, data)
	require.NoError(t, err)

	assert.Equal(t, summary(first), summary(second))
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, []string{
		"trigger:completed",
		"check:completed",
		"onboard:skipped",
		"wait:running",
		"upsell:completed",
		"tag:completed",
	}, summary(first))
}

func TestExecutor_Misuse(t *testing.T) {
	executor := newTestExecutor(&recordingInvoker{})

	_, err := executor.Run(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrWorkflowRequired)

	noTrigger := testutil.NewWorkflowBuilder("wf").Action("a", models.ActionTypeLog, nil).Active()
	_, err = executor.Run(context.Background(), noTrigger, nil)
	assert.ErrorIs(t, err, ErrNoTrigger)

	draft := testutil.NewWorkflowBuilder("wf").Trigger("trigger").Workflow()
	strict := newTestExecutor(&recordingInvoker{}, WithConfig(Config{RequireActive: true}))
	_, err = strict.Run(context.Background(), draft, nil)
	assert.ErrorIs(t, err, ErrWorkflowNotActive)

	_, err = executor.RunWithID(context.Background(), "", draft, nil)
	assert.ErrorIs(t, err, ErrExecutionIDRequired)

	trace, err := executor.RunWithID(context.Background(), "run-42", draft, nil)
	require.NoError(t, err)
	assert.Equal(t, "run-42", trace.ID)
}

func TestExecutor_InvokerPanicIsAFailedAttempt(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("boom", models.ActionTypeWebhook, nil).
		Chain("trigger", "boom").
		Settings(settings(0, models.ErrorHandlingStop)).
		Active()

	invoker := protocol.ActionInvokerFunc(func(context.Context, models.ActionType, string, map[string]any) (map[string]any, error) {
		panic("nil map")
	})

	trace, err := newTestExecutor(invoker).Run(context.Background(), wf, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, trace.Status)
	assert.Contains(t, trace.StepExecutions[1].ErrorMessage, "action panicked")
}
