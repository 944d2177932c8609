package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/iverton053/ivertonai.com-sub010/pkg/analytics"
	"github.com/iverton053/ivertonai.com-sub010/pkg/events"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/persistence"
	"github.com/iverton053/ivertonai.com-sub010/pkg/protocol"
	"github.com/iverton053/ivertonai.com-sub010/pkg/workflow"
	"github.com/jonboulle/clockwork"
)

// Execution runs workflows and keeps their traces.
type Execution struct {
	persistence persistence.Persistence
	workflows   *Workflow
	executor    *workflow.Executor
	queue       protocol.ResumeQueue
	emitter     protocol.NotificationEmitter
	clock       clockwork.Clock
	logger      *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

type ExecutionOption func(*Execution)

// WithEmitter sets where lifecycle notifications go.
func WithEmitter(emitter protocol.NotificationEmitter) ExecutionOption {
	return func(e *Execution) { e.emitter = emitter }
}

// WithResumeQueue sets where suspended branches are parked for the scheduler.
func WithResumeQueue(queue protocol.ResumeQueue) ExecutionOption {
	return func(e *Execution) { e.queue = queue }
}

func WithClock(clock clockwork.Clock) ExecutionOption {
	return func(e *Execution) { e.clock = clock }
}

// NewExecution creates a new execution service.
func NewExecution(
	persistence persistence.Persistence,
	workflows *Workflow,
	executor *workflow.Executor,
	logger *slog.Logger,
	opts ...ExecutionOption,
) *Execution {
	e := &Execution{
		persistence: persistence,
		workflows:   workflows,
		executor:    executor,
		emitter:     protocol.NopEmitter{},
		clock:       clockwork.NewRealClock(),
		logger:      logger.With("module", "execution_service"),
		running:     map[string]context.CancelFunc{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run executes an active workflow and stores its trace. Step failures are in
// the trace, not in the error.
func (e *Execution) Run(ctx context.Context, workflowID string, triggerData map[string]any) (*models.ExecutionTrace, error) {
	wf, err := e.workflows.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if wf.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrWorkflowNotActive, wf.ID, wf.Status)
	}

	executionID := uuid.New().String()

	runCtx, done := e.track(ctx, executionID)
	defer done()

	e.notify(ctx, events.ExecutionStartedEvent, wf.ID, executionID, models.ExecutionStatusRunning)

	trace, err := e.executor.RunWithID(runCtx, executionID, wf, triggerData)
	if err != nil {
		return nil, err
	}

	if err := e.record(ctx, wf, nil, trace); err != nil {
		return nil, err
	}

	return trace, nil
}

// RunScheduled starts a run for a fired schedule trigger.
func (e *Execution) RunScheduled(ctx context.Context, workflowID string, triggerData map[string]any) error {
	_, err := e.Run(ctx, workflowID, triggerData)
	return err
}

// Resume continues a branch parked on a delay step. Errors that no retry can
// fix wrap protocol.ErrStaleResume.
func (e *Execution) Resume(ctx context.Context, executionID, suspensionID string) error {
	previous, err := e.Get(ctx, executionID)
	if err != nil {
		return staleResume(err)
	}

	wf, err := e.workflows.FetchByID(ctx, previous.WorkflowID)
	if err != nil {
		return staleResume(err)
	}

	runCtx, done := e.track(ctx, executionID)
	defer done()

	e.notify(ctx, events.ExecutionResumedEvent, wf.ID, executionID, previous.Status)

	trace, err := e.executor.Resume(runCtx, wf, previous, suspensionID)
	if err != nil {
		return staleResume(err)
	}

	return staleResume(e.record(ctx, wf, previous, trace))
}

func staleResume(err error) error {
	switch {
	case err == nil:
		return nil
	case IsNotFoundError(err),
		errors.Is(err, persistence.ErrTraceSealed),
		errors.Is(err, workflow.ErrTraceSealed),
		errors.Is(err, workflow.ErrAlreadyResumed),
		errors.Is(err, workflow.ErrUnknownSuspension),
		errors.Is(err, workflow.ErrWrongWorkflow):
		return fmt.Errorf("%w: %w", protocol.ErrStaleResume, err)
	}

	return err
}

// CancelResult is the outcome of Cancel. A run waiting on delays is sealed
// right away and Trace holds it. A run executing in this process is only
// signalled: Pending is set and Trace is nil until the run stops.
type CancelResult struct {
	ExecutionID string
	Pending     bool
	Trace       *models.ExecutionTrace
}

// Cancel stops a run. An in-flight run stops before its next step; a run
// waiting on delays is sealed right away.
func (e *Execution) Cancel(ctx context.Context, executionID string) (*CancelResult, error) {
	e.mu.Lock()
	cancel, inFlight := e.running[executionID]
	e.mu.Unlock()

	if inFlight {
		cancel()
		e.logger.InfoContext(ctx, "Cancellation requested", "execution_id", executionID)

		return &CancelResult{ExecutionID: executionID, Pending: true}, nil
	}

	trace, err := e.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if trace.Status.Sealed() {
		return nil, fmt.Errorf("%w: %s is %s", ErrExecutionNotRunning, executionID, trace.Status)
	}

	trace.Seal(models.ExecutionStatusCancelled, e.clock.Now().UTC(), workflow.MessageCancelled)

	for _, record := range trace.StepExecutions {
		if record.Status == models.StepStatusRunning {
			record.Status = models.StepStatusSkipped
			record.CompletedAt = trace.CompletedAt
			record.ErrorMessage = workflow.MessageCancelled
		}
	}

	if err := e.persistence.TraceRepository().SaveTrace(ctx, trace); err != nil {
		return nil, fmt.Errorf("failed to save trace: %w", err)
	}

	e.notify(ctx, events.ExecutionCancelledEvent, trace.WorkflowID, trace.ID, trace.Status)

	return &CancelResult{ExecutionID: executionID, Trace: trace}, nil
}

// Get returns one trace.
func (e *Execution) Get(ctx context.Context, executionID string) (*models.ExecutionTrace, error) {
	return e.persistence.TraceRepository().GetTrace(ctx, executionID)
}

// ListByWorkflow returns the traces of a workflow ordered by start time.
func (e *Execution) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionTrace, error) {
	if _, err := e.workflows.FetchByID(ctx, workflowID); err != nil {
		return nil, err
	}

	return e.persistence.TraceRepository().TracesByWorkflow(ctx, workflowID)
}

// AnalyticsResponse holds the derived statistics of a workflow.
type AnalyticsResponse struct {
	WorkflowID string                  `json:"workflow_id"`
	Summary    analytics.Summary       `json:"summary"`
	Steps      []analytics.StepSummary `json:"steps"`
	Running    int                     `json:"running"`
}

// Analytics aggregates the sealed traces of a workflow.
func (e *Execution) Analytics(ctx context.Context, workflowID string) (*AnalyticsResponse, error) {
	wf, err := e.workflows.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	traces, err := e.persistence.TraceRepository().TracesByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load traces: %w", err)
	}

	running := 0
	for _, trace := range traces {
		if !trace.Status.Sealed() {
			running++
		}
	}

	return &AnalyticsResponse{
		WorkflowID: wf.ID,
		Summary:    analytics.Summarize(traces, wf.TimeSavedPerRunHours),
		Steps:      analytics.StepSummaries(traces),
		Running:    running,
	}, nil
}

// Running reports whether a run is executing in this process.
func (e *Execution) Running(executionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.running[executionID]

	return ok
}

func (e *Execution) track(ctx context.Context, executionID string) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.running[executionID] = cancel
	e.mu.Unlock()

	return runCtx, func() {
		e.mu.Lock()
		delete(e.running, executionID)
		e.mu.Unlock()
		cancel()
	}
}

// record stores the trace, parks the delay branches opened since previous and
// flags the workflow when a run failed under stop handling. previous is nil
// for a fresh run.
func (e *Execution) record(ctx context.Context, wf *models.Workflow, previous, trace *models.ExecutionTrace) error {
	ctx = context.WithoutCancel(ctx)
	logger := e.logger.With("workflow_id", wf.ID, "execution_id", trace.ID)

	if err := e.persistence.TraceRepository().SaveTrace(ctx, trace); err != nil {
		return fmt.Errorf("failed to save trace: %w", err)
	}

	if e.queue != nil {
		for _, suspension := range trace.PendingSuspensions() {
			if previous != nil {
				if _, known := previous.Suspension(suspension.ID); known {
					continue
				}
			}

			err := e.queue.Enqueue(ctx, protocol.ResumeRef{
				ExecutionID:  trace.ID,
				WorkflowID:   wf.ID,
				SuspensionID: suspension.ID,
				DueAt:        suspension.DueAt,
			})
			if err != nil {
				logger.ErrorContext(ctx, "Failed to park delay branch", "suspension_id", suspension.ID, "error", err)
			}
		}
	}

	stopped := trace.Status == models.ExecutionStatusFailed &&
		(wf.Settings.ErrorHandling == models.ErrorHandlingStop || wf.Settings.ErrorHandling == "")

	if stopped && wf.Status == models.WorkflowStatusActive {
		if err := e.workflows.MarkError(ctx, wf.ID); err != nil && !errors.Is(err, ErrWorkflowNotFound) {
			logger.ErrorContext(ctx, "Failed to mark workflow as errored", "error", err)
		} else {
			logger.WarnContext(ctx, "Workflow marked as errored after failed run", "error", trace.ErrorMessage)
		}
	}

	return nil
}

func (e *Execution) notify(ctx context.Context, eventType events.EventType, workflowID, executionID string, status models.ExecutionStatus) {
	e.emitter.Notify(context.WithoutCancel(ctx), events.ExecutionStatusChanged{
		BaseEvent: events.NewBaseEvent(eventType, workflowID, executionID),
		Status:    string(status),
	})
}
