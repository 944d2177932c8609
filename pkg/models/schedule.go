package models

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a 5-field cron expression (descriptors such as @daily are accepted).
func ParseSchedule(expression string) (cron.Schedule, error) {
	schedule, err := scheduleParser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, expression, err)
	}

	return schedule, nil
}

// TriggerSchedule tracks the next due time of a schedule trigger.
// The next execution time is precomputed so a poller only compares timestamps.
type TriggerSchedule struct {
	WorkflowID string    `json:"workflow_id" validate:"required"`
	StepID     string    `json:"step_id"     validate:"required"`
	Expression string    `json:"expression"  validate:"required"`
	NextDueAt  time.Time `json:"next_due_at"`

	schedule cron.Schedule
}

// NewTriggerSchedule creates a TriggerSchedule with the first due time after from.
func NewTriggerSchedule(workflowID, stepID, expression string, from time.Time) (*TriggerSchedule, error) {
	schedule, err := ParseSchedule(expression)
	if err != nil {
		return nil, err
	}

	return &TriggerSchedule{
		WorkflowID: workflowID,
		StepID:     stepID,
		Expression: expression,
		NextDueAt:  schedule.Next(from),
		schedule:   schedule,
	}, nil
}

// IsDue checks if this schedule is due for execution at the given time.
func (s *TriggerSchedule) IsDue(now time.Time) bool {
	return !s.NextDueAt.After(now)
}

// Advance moves NextDueAt past now.
func (s *TriggerSchedule) Advance(now time.Time) {
	s.NextDueAt = s.schedule.Next(now)
}
