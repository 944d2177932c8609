package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/iverton053/ivertonai.com-sub010/pkg/cmd"
	"github.com/iverton053/ivertonai.com-sub010/pkg/eventbus"
	"github.com/iverton053/ivertonai.com-sub010/pkg/events"
	"github.com/iverton053/ivertonai.com-sub010/pkg/otelhelper"
	"github.com/iverton053/ivertonai.com-sub010/pkg/persistence"
	"github.com/iverton053/ivertonai.com-sub010/pkg/protocol"
	"github.com/iverton053/ivertonai.com-sub010/pkg/registry"
	"github.com/iverton053/ivertonai.com-sub010/pkg/scheduler"
	"github.com/iverton053/ivertonai.com-sub010/pkg/services"
	"github.com/iverton053/ivertonai.com-sub010/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "iverton-workflows"

// runtime holds the collaborators of the long running commands.
type runtime struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	queue       protocol.ResumeQueue
	registry    *registry.Registry
	workflows   *services.Workflow
	executions  *services.Execution

	closers []func(ctx context.Context) error
}

func newRuntime(ctx context.Context, command *cli.Command, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{logger: logger}

	tracer := otelhelper.NoopTracer()

	if command.Bool("otel-enabled") {
		t, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}

		tracer = t
		rt.closers = append(rt.closers, shutdown)
	}

	p, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, rt.abort(ctx, err)
	}

	rt.persistence = p
	rt.closers = append(rt.closers, p.Close)

	bus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), logger)
	if err != nil {
		return nil, rt.abort(ctx, err)
	}

	rt.eventBus = bus
	rt.closers = append(rt.closers, func(context.Context) error { return bus.Close() })

	queue, closeQueue, err := cmd.NewResumeQueue(command.String("redis-url"), logger)
	if err != nil {
		return nil, rt.abort(ctx, err)
	}

	rt.queue = queue
	rt.closers = append(rt.closers, func(context.Context) error { return closeQueue() })

	emitter := eventbus.NewEmitter(bus, logger)

	rt.registry = cmd.NewRegistry(logger)
	executor := workflow.NewExecutor(rt.registry,
		workflow.WithLogger(logger),
		workflow.WithTracer(tracer),
		workflow.WithEmitter(emitter),
		workflow.WithConfig(workflow.Config{
			MaxStepExecutions: command.Int("max-step-executions"),
			RequireActive:     true,
		}),
	)

	rt.workflows = services.NewWorkflow(p, logger)
	rt.executions = services.NewExecution(p, rt.workflows, executor, logger,
		services.WithEmitter(emitter),
		services.WithResumeQueue(queue),
	)

	return rt, nil
}

// newScheduler resumes due delay branches and fires schedule triggers.
func (rt *runtime) newScheduler(command *cli.Command) *scheduler.Scheduler {
	return scheduler.New(rt.queue, rt.executions, rt.logger,
		scheduler.WithSchedules(rt.workflows, rt.executions),
		scheduler.WithConfig(scheduler.Config{PollInterval: pollInterval(command)}),
	)
}

// watchNotifications logs step failures reported under notify error handling.
func (rt *runtime) watchNotifications(ctx context.Context) error {
	err := rt.eventBus.Handle(events.StepFailedEvent, func(ctx context.Context, event events.Event) error {
		failed, ok := event.(*events.StepFailed)
		if !ok {
			return nil
		}

		rt.logger.WarnContext(ctx, "Step failed",
			"workflow_id", failed.WorkflowID,
			"execution_id", failed.ExecutionID,
			"step_id", failed.StepID,
			"attempts", failed.Attempts,
			"error", failed.Error,
		)

		return nil
	})
	if err != nil {
		return err
	}

	return rt.eventBus.Subscribe(ctx)
}

func (rt *runtime) abort(ctx context.Context, err error) error {
	return errors.Join(err, rt.Close(ctx))
}

// Close releases collaborators in reverse order of creation.
func (rt *runtime) Close(ctx context.Context) error {
	var errs []error

	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	rt.closers = nil

	return errors.Join(errs...)
}
