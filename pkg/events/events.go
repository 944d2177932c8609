// Package events defines notification events emitted during workflow runs.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topics.
const Topic = "iverton.notifications"                        // Step failure notifications
const WorkflowExecutionTopic = "iverton.workflow.executions" // Execution lifecycle events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Step events.
	StepFailedEvent EventType = "step.failed"

	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
	ExecutionSuspendedEvent EventType = "execution.suspended"
	ExecutionResumedEvent   EventType = "execution.resumed"
)

// Event is anything the notification emitter can publish.
type Event interface {
	GetType() EventType
	GetID() string
	GetWorkflowID() string
}

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	WorkflowID  string         `json:"workflow_id"`
	ExecutionID string         `json:"execution_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID, executionID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		WorkflowID:  workflowID,
		ExecutionID: executionID,
	}
}

func (b BaseEvent) GetID() string {
	return b.ID
}

func (b BaseEvent) GetWorkflowID() string {
	return b.WorkflowID
}

// StepFailed is emitted when a step fails for good under notify error handling.
type StepFailed struct {
	BaseEvent

	StepID   string `json:"step_id"`
	StepName string `json:"step_name"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

func (s StepFailed) GetType() EventType {
	return StepFailedEvent
}

// ExecutionStatusChanged reports an execution lifecycle transition.
type ExecutionStatusChanged struct {
	BaseEvent

	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	PendingDelay int           `json:"pending_delays,omitempty"`
}

func (e ExecutionStatusChanged) GetType() EventType {
	return e.Type
}
