// Package eventbus carries workflow notifications over watermill publishers and subscribers.
package eventbus

import (
	"context"

	"github.com/iverton053/ivertonai.com-sub010/pkg/events"
)

type EventPublisher interface {
	Publish(ctx context.Context, key string, event events.Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event events.Event) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// TopicFor returns the topic an event type is published on.
func TopicFor(eventType events.EventType) string {
	if eventType == events.StepFailedEvent {
		return events.Topic
	}

	return events.WorkflowExecutionTopic
}

// newEvent returns an empty event of the given type to decode a payload into.
func newEvent(eventType events.EventType) (events.Event, bool) {
	switch eventType {
	case events.StepFailedEvent:
		return &events.StepFailed{}, true
	case events.ExecutionStartedEvent,
		events.ExecutionCompletedEvent,
		events.ExecutionFailedEvent,
		events.ExecutionCancelledEvent,
		events.ExecutionSuspendedEvent,
		events.ExecutionResumedEvent:
		return &events.ExecutionStatusChanged{}, true
	default:
		return nil, false
	}
}
