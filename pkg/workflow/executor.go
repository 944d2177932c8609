// Package workflow executes workflow graphs and records their execution traces.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/iverton053/ivertonai.com-sub010/pkg/events"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/otelhelper"
	"github.com/iverton053/ivertonai.com-sub010/pkg/protocol"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxStepExecutions bounds how many steps one run may execute.
const DefaultMaxStepExecutions = 1000

// Config tunes the executor.
type Config struct {
	// MaxStepExecutions ends a run as failed once exceeded. Zero means the default.
	MaxStepExecutions int
	// RequireActive rejects workflows whose status is not active.
	RequireActive bool
}

func (c Config) normalize() Config {
	if c.MaxStepExecutions <= 0 {
		c.MaxStepExecutions = DefaultMaxStepExecutions
	}

	return c
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock replaces the wall clock.
func WithClock(clock clockwork.Clock) Option {
	return func(e *Executor) { e.clock = clock }
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) { e.tracer = tracer }
}

// WithEmitter sets where notify error handling sends events.
func WithEmitter(emitter protocol.NotificationEmitter) Option {
	return func(e *Executor) { e.emitter = emitter }
}

// WithConfig sets the executor configuration.
func WithConfig(config Config) Option {
	return func(e *Executor) { e.config = config.normalize() }
}

// Executor walks a workflow breadth-first from its trigger. It keeps no per-run
// state, so one Executor can serve concurrent runs.
type Executor struct {
	invoker protocol.ActionInvoker
	emitter protocol.NotificationEmitter
	clock   clockwork.Clock
	logger  *slog.Logger
	tracer  trace.Tracer
	config  Config
}

// NewExecutor creates an executor invoking actions through invoker.
func NewExecutor(invoker protocol.ActionInvoker, opts ...Option) *Executor {
	e := &Executor{
		invoker: invoker,
		emitter: protocol.NopEmitter{},
		clock:   clockwork.NewRealClock(),
		logger:  slog.Default(),
		tracer:  otelhelper.NoopTracer(),
		config:  Config{}.normalize(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("module", "workflow_executor")

	return e
}

// Run starts a new execution of wf. The returned trace is running while delay
// branches wait for Resume, otherwise it is sealed. The error is non-nil only for
// misuse such as a workflow without exactly one trigger.
func (e *Executor) Run(ctx context.Context, wf *models.Workflow, triggerData map[string]any) (*models.ExecutionTrace, error) {
	return e.RunWithID(ctx, uuid.New().String(), wf, triggerData)
}

// RunWithID is Run with a caller chosen trace id, so the run can be cancelled
// by id before it returns.
func (e *Executor) RunWithID(ctx context.Context, executionID string, wf *models.Workflow, triggerData map[string]any) (*models.ExecutionTrace, error) {
	if executionID == "" {
		return nil, ErrExecutionIDRequired
	}

	if wf == nil {
		return nil, ErrWorkflowRequired
	}

	if e.config.RequireActive && wf.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrWorkflowNotActive, wf.ID, wf.Status)
	}

	triggers := wf.Triggers()
	if len(triggers) != 1 {
		return nil, fmt.Errorf("%w: found %d", ErrNoTrigger, len(triggers))
	}

	trigger := triggers[0]
	now := e.clock.Now().UTC()

	if triggerData == nil {
		triggerData = map[string]any{}
	}

	tr := &models.ExecutionTrace{
		ID:             executionID,
		WorkflowID:     wf.ID,
		Status:         models.ExecutionStatusRunning,
		StartedAt:      now,
		StepExecutions: []*models.StepExecutionRecord{},
		TriggerData:    models.CloneData(triggerData),
		RunData:        models.CloneData(triggerData),
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, wf.ID),
		attribute.String(otelhelper.WorkflowNameKey, wf.Name),
		attribute.String(otelhelper.ExecutionIDKey, tr.ID),
	)
	defer span.End()

	logger := e.logger.With("workflow_id", wf.ID, "execution_id", tr.ID)
	logger.InfoContext(ctx, "Starting workflow execution", "trigger_id", trigger.ID)

	matched, err := matchTrigger(trigger, tr.TriggerData)

	record := &models.StepExecutionRecord{
		StepID:      trigger.ID,
		Status:      models.StepStatusCompleted,
		Attempt:     1,
		StartedAt:   now,
		CompletedAt: &now,
		InputData:   models.CloneData(tr.TriggerData),
		OutputData:  models.CloneData(tr.TriggerData),
	}
	tr.StepExecutions = append(tr.StepExecutions, record)

	switch {
	case err != nil:
		record.Status = models.StepStatusFailed
		record.OutputData = nil
		record.ErrorMessage = err.Error()
		tr.Seal(models.ExecutionStatusFailed, now, err.Error())
		otelhelper.SetError(span, err)

		return tr, nil
	case !matched:
		record.Status = models.StepStatusSkipped
		record.OutputData = nil
		tr.Seal(models.ExecutionStatusCompleted, now, "")
		logger.InfoContext(ctx, "Trigger conditions did not match, nothing to run")

		return tr, nil
	}

	r := e.newRun(wf, tr, logger)
	r.drain(ctx, trigger.NextStepIDs)

	return tr, nil
}

// Resume continues the branch parked on a delay step. previous is left
// untouched; the continued trace is returned.
func (e *Executor) Resume(ctx context.Context, wf *models.Workflow, previous *models.ExecutionTrace, suspensionID string) (*models.ExecutionTrace, error) {
	if wf == nil {
		return nil, ErrWorkflowRequired
	}

	if previous == nil {
		return nil, ErrTraceRequired
	}

	if previous.WorkflowID != wf.ID {
		return nil, fmt.Errorf("%w: %s", ErrWrongWorkflow, previous.WorkflowID)
	}

	if previous.Status.Sealed() {
		return nil, fmt.Errorf("%w: %s is %s", ErrTraceSealed, previous.ID, previous.Status)
	}

	original, ok := previous.Suspension(suspensionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSuspension, suspensionID)
	}

	if !original.Pending() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyResumed, suspensionID)
	}

	tr := previous.Clone()
	suspension, _ := tr.Suspension(suspensionID)
	now := e.clock.Now().UTC()
	suspension.ResumedAt = &now

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.resume",
		attribute.String(otelhelper.WorkflowIDKey, wf.ID),
		attribute.String(otelhelper.ExecutionIDKey, tr.ID),
		attribute.String(otelhelper.SuspensionIDKey, suspensionID),
	)
	defer span.End()

	logger := e.logger.With("workflow_id", wf.ID, "execution_id", tr.ID)
	logger.InfoContext(ctx, "Resuming suspended branch", "step_id", suspension.StepID, "due_at", suspension.DueAt)

	for i := len(tr.StepExecutions) - 1; i >= 0; i-- {
		record := tr.StepExecutions[i]
		if record.Status == models.StepStatusRunning && record.InputData[suspensionKey] == suspension.ID {
			record.Status = models.StepStatusCompleted
			record.CompletedAt = &now
			record.OutputData = map[string]any{
				"due_at":     suspension.DueAt.Format(time.RFC3339),
				"resumed_at": now.Format(time.RFC3339),
			}

			break
		}
	}

	r := e.newRun(wf, tr, logger)

	step, ok := wf.StepByID(suspension.StepID)
	if !ok {
		r.seal(ctx, models.ExecutionStatusFailed, fmt.Sprintf("delay step %s no longer exists", suspension.StepID))
		return tr, nil
	}

	r.drain(ctx, step.NextStepIDs)

	return tr, nil
}

func (e *Executor) newRun(wf *models.Workflow, tr *models.ExecutionTrace, logger *slog.Logger) *run {
	return &run{
		executor: e,
		workflow: wf,
		trace:    tr,
		logger:   logger,
		pending:  map[string]bool{},
		started:  e.clock.Now(),
	}
}

func (e *Executor) notify(ctx context.Context, event events.Event) {
	e.emitter.Notify(context.WithoutCancel(ctx), event)
}

func matchTrigger(trigger *models.Step, data map[string]any) (bool, error) {
	if trigger.Trigger == nil {
		return true, nil
	}

	for _, predicate := range trigger.Trigger.Conditions {
		ok, err := predicate.Evaluate(data)
		if err != nil {
			return false, err
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}
