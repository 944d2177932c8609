package eventbus

import (
	"context"
	"log/slog"

	"github.com/iverton053/ivertonai.com-sub010/pkg/events"
)

// Emitter publishes executor notifications on an event bus. Publish failures are
// logged and never reach the run.
type Emitter struct {
	publisher EventPublisher
	logger    *slog.Logger
}

func NewEmitter(publisher EventPublisher, logger *slog.Logger) *Emitter {
	return &Emitter{publisher: publisher, logger: logger.With("module", "notification_emitter")}
}

func (e *Emitter) Notify(ctx context.Context, event events.Event) {
	if err := e.publisher.Publish(ctx, event.GetWorkflowID(), event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish notification",
			"event_type", event.GetType(),
			"event_id", event.GetID(),
			"workflow_id", event.GetWorkflowID(),
			"error", err,
		)
	}
}
