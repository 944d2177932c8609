package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/iverton053/ivertonai.com-sub010/pkg/events"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/otelhelper"
	"github.com/iverton053/ivertonai.com-sub010/pkg/template"
	"go.opentelemetry.io/otel/attribute"
)

const (
	suspensionKey = "suspension_id"
	stepsKey      = "steps"
)

var (
	errTimeout   = errors.New(MessageTimeout)
	errCancelled = errors.New(MessageCancelled)
)

// outcome is what executing one step tells the run loop.
type outcome struct {
	next []string
	// failure is the final error of a failed step; error handling decides what happens next.
	failure error
	// halt ends the whole run (cancellation or timeout).
	halt error
}

// run is the state of one drain of the work queue: a fresh start or a resume.
type run struct {
	executor *Executor
	workflow *models.Workflow
	trace    *models.ExecutionTrace
	logger   *slog.Logger
	queue    []string
	pending  map[string]bool
	started  time.Time
	executed int
}

func (r *run) now() time.Time {
	return r.executor.clock.Now().UTC()
}

// elapsed is the active execution time of the trace including this segment.
func (r *run) elapsed() time.Duration {
	return r.trace.ActiveDuration + r.executor.clock.Since(r.started)
}

// fold adds the current segment to the active time of the trace and starts a new one.
func (r *run) fold() {
	now := r.executor.clock.Now()
	r.trace.ActiveDuration += now.Sub(r.started)
	r.started = now
}

// remaining is the time left before the run times out; ok is false without a timeout.
func (r *run) remaining() (time.Duration, bool) {
	timeout := r.workflow.Settings.Timeout()
	if timeout <= 0 {
		return 0, false
	}

	return timeout - r.elapsed(), true
}

func (r *run) enqueue(ids ...string) {
	for _, id := range ids {
		if r.pending[id] {
			continue
		}

		r.pending[id] = true
		r.queue = append(r.queue, id)
	}
}

// drain executes queued steps in FIFO order until the queue empties or the run halts.
func (r *run) drain(ctx context.Context, seed []string) {
	r.enqueue(seed...)

	for len(r.queue) > 0 {
		if err := r.interrupted(ctx); err != nil {
			r.halt(ctx, err)
			return
		}

		id := r.queue[0]
		r.queue = r.queue[1:]
		delete(r.pending, id)

		r.executed++
		if r.executed > r.executor.config.MaxStepExecutions {
			r.seal(ctx, models.ExecutionStatusFailed, MessageStepLimit)
			return
		}

		step, ok := r.workflow.StepByID(id)
		if !ok {
			r.recordMissing(id)

			if r.handleFailure(ctx, &models.Step{ID: id, Name: id}, fmt.Errorf("step %s does not exist", id), 1) {
				return
			}

			continue
		}

		result := r.execute(ctx, step)

		if result.halt != nil {
			r.halt(ctx, result.halt)
			return
		}

		if result.failure != nil {
			if r.handleFailure(ctx, step, result.failure, len(r.trace.RecordsFor(step.ID))) {
				return
			}

			continue
		}

		r.enqueue(result.next...)
	}

	if left, ok := r.remaining(); ok && left <= 0 {
		r.halt(ctx, errTimeout)
		return
	}

	r.fold()

	if pending := len(r.trace.PendingSuspensions()); pending > 0 {
		r.logger.InfoContext(ctx, "Workflow execution suspended", "pending_delays", pending)
		r.executor.notify(ctx, events.ExecutionStatusChanged{
			BaseEvent:    events.NewBaseEvent(events.ExecutionSuspendedEvent, r.workflow.ID, r.trace.ID),
			Status:       string(r.trace.Status),
			PendingDelay: pending,
		})

		return
	}

	r.seal(ctx, models.ExecutionStatusCompleted, "")
}

func (r *run) interrupted(ctx context.Context) error {
	if ctx.Err() != nil {
		return errCancelled
	}

	if left, ok := r.remaining(); ok && left <= 0 {
		return errTimeout
	}

	return nil
}

func (r *run) halt(ctx context.Context, err error) {
	if errors.Is(err, errTimeout) {
		r.seal(ctx, models.ExecutionStatusFailed, MessageTimeout)
		return
	}

	r.seal(ctx, models.ExecutionStatusCancelled, MessageCancelled)
}

func (r *run) seal(ctx context.Context, status models.ExecutionStatus, message string) {
	r.fold()
	r.trace.Seal(status, r.now(), message)

	for _, record := range r.trace.StepExecutions {
		if record.Status == models.StepStatusRunning && status != models.ExecutionStatusCompleted {
			completedAt := *r.trace.CompletedAt
			record.Status = models.StepStatusSkipped
			record.CompletedAt = &completedAt
			record.ErrorMessage = message
		}
	}

	logger := r.logger.With("status", status, "duration", r.trace.Duration())
	if message != "" {
		logger.WarnContext(ctx, "Workflow execution finished", "error", message)
	} else {
		logger.InfoContext(ctx, "Workflow execution finished")
	}

	eventType := events.ExecutionCompletedEvent

	switch status {
	case models.ExecutionStatusFailed:
		eventType = events.ExecutionFailedEvent
	case models.ExecutionStatusCancelled:
		eventType = events.ExecutionCancelledEvent
	}

	r.executor.notify(ctx, events.ExecutionStatusChanged{
		BaseEvent:    events.NewBaseEvent(eventType, r.workflow.ID, r.trace.ID),
		Status:       string(status),
		ErrorMessage: message,
		Duration:     r.trace.Duration(),
	})
}

// handleFailure applies the error handling policy. It reports whether the run is over.
func (r *run) handleFailure(ctx context.Context, step *models.Step, err error, attempts int) bool {
	mode := r.workflow.Settings.ErrorHandling
	logger := r.logger.With("step_id", step.ID, "error_handling", mode)

	switch mode {
	case models.ErrorHandlingContinue:
		logger.WarnContext(ctx, "Step failed, continuing with remaining branches", "error", err)
	case models.ErrorHandlingNotify:
		logger.WarnContext(ctx, "Step failed, notifying and continuing", "error", err)
		r.executor.notify(ctx, events.StepFailed{
			BaseEvent: events.NewBaseEvent(events.StepFailedEvent, r.workflow.ID, r.trace.ID),
			StepID:    step.ID,
			StepName:  step.Name,
			Attempts:  attempts,
			Error:     err.Error(),
		})
	default:
		logger.ErrorContext(ctx, "Step failed, stopping workflow execution", "error", err)
		r.seal(ctx, models.ExecutionStatusFailed, fmt.Sprintf("step %q (%s) failed: %v", step.Name, step.ID, err))

		return true
	}

	return false
}

func (r *run) execute(ctx context.Context, step *models.Step) outcome {
	ctx, span := otelhelper.StartSpan(ctx, r.executor.tracer, "workflow.step",
		attribute.String(otelhelper.ExecutionIDKey, r.trace.ID),
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepKindKey, string(step.Kind)),
		attribute.String(otelhelper.StepNameKey, step.Name),
	)
	defer span.End()

	var result outcome

	switch step.Kind {
	case models.StepKindCondition:
		result = r.executeCondition(step)
	case models.StepKindDelay:
		result = r.executeDelay(ctx, step)
	case models.StepKindAction:
		result = r.executeAction(ctx, step)
	default:
		result = r.fail(step, fmt.Errorf("%s step cannot run after the trigger", step.Kind))
	}

	if result.failure != nil {
		otelhelper.SetError(span, result.failure, attribute.String(otelhelper.StepIDKey, step.ID))
	}

	return result
}

func (r *run) start(step *models.Step, attempt int, input map[string]any) *models.StepExecutionRecord {
	record := &models.StepExecutionRecord{
		StepID:    step.ID,
		Status:    models.StepStatusRunning,
		Attempt:   attempt,
		StartedAt: r.now(),
		InputData: input,
	}
	r.trace.StepExecutions = append(r.trace.StepExecutions, record)

	return record
}

func (r *run) finish(record *models.StepExecutionRecord, status models.StepStatus, output map[string]any, message string) {
	completedAt := r.now()
	record.Status = status
	record.CompletedAt = &completedAt
	record.OutputData = output
	record.ErrorMessage = message
}

func (r *run) fail(step *models.Step, err error) outcome {
	record := r.start(step, 1, map[string]any{})
	r.finish(record, models.StepStatusFailed, nil, err.Error())

	return outcome{failure: err}
}

func (r *run) recordMissing(id string) {
	now := r.now()
	r.trace.StepExecutions = append(r.trace.StepExecutions, &models.StepExecutionRecord{
		StepID:       id,
		Status:       models.StepStatusFailed,
		Attempt:      1,
		StartedAt:    now,
		CompletedAt:  &now,
		InputData:    map[string]any{},
		ErrorMessage: fmt.Sprintf("step %s does not exist", id),
	})
}

// executeCondition routes to the first edge when the condition holds and to the
// second otherwise. The target of the branch not taken is recorded as skipped.
func (r *run) executeCondition(step *models.Step) outcome {
	if step.Condition == nil {
		return r.fail(step, fmt.Errorf("condition step has no configuration"))
	}

	config := step.Condition
	actual, _ := models.Lookup(r.trace.RunData, config.Field)

	record := r.start(step, 1, map[string]any{
		"field":    config.Field,
		"operator": string(config.Operator),
		"value":    config.Value,
		"actual":   actual,
	})

	holds, err := config.Evaluate(r.trace.RunData)
	if err != nil {
		r.finish(record, models.StepStatusFailed, nil, err.Error())
		return outcome{failure: err}
	}

	output := map[string]any{"result": holds}
	next := step.NextStepIDs

	var taken, notTaken string

	switch {
	case holds && len(next) > 0:
		taken = next[0]
		if len(next) > 1 {
			notTaken = next[1]
		}
	case !holds && len(next) > 1:
		taken, notTaken = next[1], next[0]
	case !holds:
		r.finish(record, models.StepStatusSkipped, output, "")
		r.logger.Debug("Condition is false without a false branch, skipping", "step_id", step.ID)

		return outcome{}
	}

	r.finish(record, models.StepStatusCompleted, output, "")

	if notTaken != "" && notTaken != taken && !r.pending[notTaken] {
		skipped := r.start(&models.Step{ID: notTaken}, 1, map[string]any{"condition_step_id": step.ID})
		r.finish(skipped, models.StepStatusSkipped, nil, MessageBranchSkipped)
	}

	if taken == "" {
		return outcome{}
	}

	return outcome{next: []string{taken}}
}

// executeDelay parks the branch. The scheduler resumes it at the due time.
func (r *run) executeDelay(ctx context.Context, step *models.Step) outcome {
	if step.Delay == nil {
		return r.fail(step, fmt.Errorf("delay step has no configuration"))
	}

	now := r.now()
	suspension := &models.Suspension{
		ID:        uuid.New().String(),
		StepID:    step.ID,
		DueAt:     now.Add(step.Delay.Wait()),
		CreatedAt: now,
	}
	r.trace.Suspensions = append(r.trace.Suspensions, suspension)

	r.start(step, 1, map[string]any{
		"duration":    step.Delay.Duration,
		"unit":        string(step.Delay.Unit),
		suspensionKey: suspension.ID,
	})

	r.logger.InfoContext(ctx, "Branch suspended on delay", "step_id", step.ID, "due_at", suspension.DueAt)

	return outcome{}
}

// executeAction invokes the action, retrying up to the configured count. Every
// attempt gets its own record.
func (r *run) executeAction(ctx context.Context, step *models.Step) outcome {
	if step.Action == nil {
		return r.fail(step, fmt.Errorf("action step has no configuration"))
	}

	resolver := template.Resolver{Variables: r.workflow.Variables, TriggerData: r.trace.TriggerData}

	params, unresolved := resolver.ResolveMap(step.Action.Parameters)
	if len(unresolved) > 0 {
		r.logger.WarnContext(ctx, "Unresolved placeholders in action parameters", "step_id", step.ID, "placeholders", unresolved)
	}

	settings := r.workflow.Settings
	attempts := max(settings.RetryCount, 0) + 1

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		record := r.start(step, attempt, models.CloneData(params))

		output, err := r.invoke(ctx, step, params)

		if ctx.Err() != nil {
			r.finish(record, models.StepStatusSkipped, nil, MessageRunCancelled)
			return outcome{halt: errCancelled}
		}

		if err == nil {
			r.finish(record, models.StepStatusCompleted, output, "")
			r.collect(step.ID, output)

			return outcome{next: step.NextStepIDs}
		}

		lastErr = err
		r.finish(record, models.StepStatusFailed, nil, err.Error())

		r.logger.WarnContext(ctx, "Action attempt failed",
			"step_id", step.ID,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)

		if attempt == attempts {
			break
		}

		r.trace.RetryCount++

		if halt := r.wait(ctx, settings.RetryDelay()); halt != nil {
			return outcome{halt: halt}
		}
	}

	return outcome{failure: lastErr}
}

// invoke calls the action invoker. In-flight invocations are not interrupted by
// cancellation; a panic inside the invoker is reported as a failed attempt.
func (r *run) invoke(ctx context.Context, step *models.Step, params map[string]any) (output map[string]any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("action panicked: %v", recovered)
		}
	}()

	ctx, span := otelhelper.StartSpan(context.WithoutCancel(ctx), r.executor.tracer, "workflow.action",
		attribute.String(otelhelper.ActionTypeKey, string(step.Action.ActionType)),
		attribute.String(otelhelper.ServiceKey, step.Action.Service),
	)
	defer span.End()

	if r.executor.invoker == nil {
		return nil, errors.New("no action invoker configured")
	}

	output, err = r.executor.invoker.Invoke(ctx, step.Action.ActionType, step.Action.Service, models.CloneData(params))
	if output == nil && err == nil {
		output = map[string]any{}
	}

	return output, err
}

// wait sleeps between retries on the executor clock. It returns a halt error when
// the run is cancelled or times out first.
func (r *run) wait(ctx context.Context, delay time.Duration) error {
	timedOut := false

	if left, ok := r.remaining(); ok && left < delay {
		delay = max(left, 0)
		timedOut = true
	}

	if delay > 0 {
		select {
		case <-ctx.Done():
			return errCancelled
		case <-r.executor.clock.After(delay):
		}
	}

	if ctx.Err() != nil {
		return errCancelled
	}

	if timedOut {
		return errTimeout
	}

	return nil
}

// collect makes an action output visible to later steps, both at the top level
// and under steps.<id>.
func (r *run) collect(stepID string, output map[string]any) {
	if r.trace.RunData == nil {
		r.trace.RunData = map[string]any{}
	}

	steps, ok := r.trace.RunData[stepsKey].(map[string]any)
	if !ok {
		steps = map[string]any{}
		r.trace.RunData[stepsKey] = steps
	}

	steps[stepID] = models.CloneData(output)

	for key, value := range output {
		if key == stepsKey {
			continue
		}

		r.trace.RunData[key] = value
	}
}
