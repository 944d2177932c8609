package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// StepKind is the closed set of step kinds.
type StepKind string

const (
	StepKindTrigger   StepKind = "trigger"   // Entry point of a run
	StepKindAction    StepKind = "action"    // Side effect through the action invoker
	StepKindCondition StepKind = "condition" // Two-way branch on run data
	StepKindDelay     StepKind = "delay"     // Scheduled resumption
)

// StepKinds lists every kind in declaration order.
var StepKinds = []StepKind{StepKindTrigger, StepKindAction, StepKindCondition, StepKindDelay}

// Valid reports whether k is one of the known kinds.
func (k StepKind) Valid() bool {
	switch k {
	case StepKindTrigger, StepKindAction, StepKindCondition, StepKindDelay:
		return true
	}

	return false
}

// KindFromString parses a step kind.
func KindFromString(s string) (StepKind, error) {
	kind := StepKind(s)
	if !kind.Valid() {
		return "", &InvalidKindError{Kind: s}
	}

	return kind, nil
}

// TriggerType enumerates what starts a run.
type TriggerType string

const (
	TriggerTypeManual          TriggerType = "manual"
	TriggerTypeFormSubmission  TriggerType = "form_submission"
	TriggerTypeEmailOpened     TriggerType = "email_opened"
	TriggerTypeLinkClicked     TriggerType = "link_clicked"
	TriggerTypeLeadScoreChange TriggerType = "lead_score_change"
	TriggerTypeDealStageChange TriggerType = "deal_stage_change"
	TriggerTypePageVisit       TriggerType = "page_visit"
	TriggerTypeSchedule        TriggerType = "schedule"
	TriggerTypeWebhook         TriggerType = "webhook"
	TriggerTypeCRMUpdate       TriggerType = "crm_update"
)

var triggerTypes = map[TriggerType]struct{}{
	TriggerTypeManual:          {},
	TriggerTypeFormSubmission:  {},
	TriggerTypeEmailOpened:     {},
	TriggerTypeLinkClicked:     {},
	TriggerTypeLeadScoreChange: {},
	TriggerTypeDealStageChange: {},
	TriggerTypePageVisit:       {},
	TriggerTypeSchedule:        {},
	TriggerTypeWebhook:         {},
	TriggerTypeCRMUpdate:       {},
}

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	_, ok := triggerTypes[t]

	return ok
}

// ActionType enumerates the side effects an action step can request.
type ActionType string

const (
	ActionTypeSendEmail        ActionType = "send_email"
	ActionTypeSendSMS          ActionType = "send_sms"
	ActionTypeSendSlackMessage ActionType = "send_slack_message"
	ActionTypeUpdateCRM        ActionType = "update_crm"
	ActionTypeCreateTask       ActionType = "create_task"
	ActionTypeAssignLead       ActionType = "assign_lead"
	ActionTypeUpdateLeadScore  ActionType = "update_lead_score"
	ActionTypeAddTag           ActionType = "add_tag"
	ActionTypeAddToCampaign    ActionType = "add_to_campaign"
	ActionTypeWebhook          ActionType = "webhook"
	ActionTypeGenerateReport   ActionType = "generate_report"
	ActionTypeLog              ActionType = "log"
)

var actionTypes = map[ActionType]struct{}{
	ActionTypeSendEmail:        {},
	ActionTypeSendSMS:          {},
	ActionTypeSendSlackMessage: {},
	ActionTypeUpdateCRM:        {},
	ActionTypeCreateTask:       {},
	ActionTypeAssignLead:       {},
	ActionTypeUpdateLeadScore:  {},
	ActionTypeAddTag:           {},
	ActionTypeAddToCampaign:    {},
	ActionTypeWebhook:          {},
	ActionTypeGenerateReport:   {},
	ActionTypeLog:              {},
}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	_, ok := actionTypes[t]

	return ok
}

// DelayUnit is the unit of a delay duration.
type DelayUnit string

const (
	DelayUnitMinutes DelayUnit = "minutes"
	DelayUnitHours   DelayUnit = "hours"
	DelayUnitDays    DelayUnit = "days"
	DelayUnitWeeks   DelayUnit = "weeks"
)

var delayUnits = map[DelayUnit]time.Duration{
	DelayUnitMinutes: time.Minute,
	DelayUnitHours:   time.Hour,
	DelayUnitDays:    24 * time.Hour,
	DelayUnitWeeks:   7 * 24 * time.Hour,
}

// Valid reports whether u is a known unit.
func (u DelayUnit) Valid() bool {
	_, ok := delayUnits[u]

	return ok
}

// Predicate is a single field comparison.
type Predicate struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    any               `json:"value"`
}

// WebhookConfig describes the inbound endpoint of a webhook trigger.
type WebhookConfig struct {
	Path   string `json:"path"`
	Method string `json:"method,omitempty"`
}

// TriggerConfig configures a trigger step.
type TriggerConfig struct {
	TriggerType TriggerType    `json:"trigger_type"`
	Conditions  []Predicate    `json:"conditions"`
	Schedule    string         `json:"schedule,omitempty"` // 5-field cron expression
	Webhook     *WebhookConfig `json:"webhook,omitempty"`
}

// ActionConfig configures an action step.
type ActionConfig struct {
	ActionType ActionType     `json:"action_type"`
	Service    string         `json:"service"`
	Parameters map[string]any `json:"parameters"`
}

// ConditionConfig configures a condition step. Rules are extra predicates
// joined to the primary one with LogicalOperator.
type ConditionConfig struct {
	Predicate
	LogicalOperator LogicalOperator `json:"logical_operator,omitempty"`
	Rules           []Predicate     `json:"rules,omitempty"`
}

// DelayConfig configures a delay step.
type DelayConfig struct {
	Duration float64   `json:"duration"`
	Unit     DelayUnit `json:"unit"`
}

// Wait converts the configured amount into a time.Duration.
func (d DelayConfig) Wait() time.Duration {
	return time.Duration(d.Duration * float64(delayUnits[d.Unit]))
}

// StepStats are derived execution statistics. They are recomputed from traces.
type StepStats struct {
	ExecutionCount  int           `json:"execution_count"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"average_duration"`
}

// Step is a single node of a workflow graph.
type Step struct {
	ID        string           `json:"id"                  validate:"required"`
	Kind      StepKind         `json:"kind"                validate:"required,oneof=trigger action condition delay"`
	Name      string           `json:"name"                validate:"required,min=1"`
	Trigger   *TriggerConfig   `json:"trigger,omitempty"`
	Action    *ActionConfig    `json:"action,omitempty"`
	Condition *ConditionConfig `json:"condition,omitempty"`
	Delay     *DelayConfig     `json:"delay,omitempty"`
	// NextStepIDs is ordered: for conditions index 0 is the true branch, index 1 the false branch.
	NextStepIDs []string  `json:"next_step_ids"`
	PrevStepIDs []string  `json:"prev_step_ids"`
	PositionX   int       `json:"position_x"`
	PositionY   int       `json:"position_y"`
	Stats       StepStats `json:"stats"`
}

// HasConfig reports whether the config matching the step kind is set.
func (s *Step) HasConfig() bool {
	switch s.Kind {
	case StepKindTrigger:
		return s.Trigger != nil
	case StepKindAction:
		return s.Action != nil
	case StepKindCondition:
		return s.Condition != nil
	case StepKindDelay:
		return s.Delay != nil
	}

	return false
}

// HasNext reports whether id is a downstream step.
func (s *Step) HasNext(id string) bool {
	return contains(s.NextStepIDs, id)
}

// HasPrev reports whether id is an upstream step.
func (s *Step) HasPrev(id string) bool {
	return contains(s.PrevStepIDs, id)
}

// Clone returns a deep copy of the step.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}

	out := *s
	out.NextStepIDs = append([]string{}, s.NextStepIDs...)
	out.PrevStepIDs = append([]string{}, s.PrevStepIDs...)

	if s.Trigger != nil {
		trigger := *s.Trigger
		trigger.Conditions = clonePredicates(s.Trigger.Conditions)

		if s.Trigger.Webhook != nil {
			webhook := *s.Trigger.Webhook
			trigger.Webhook = &webhook
		}

		out.Trigger = &trigger
	}

	if s.Action != nil {
		action := *s.Action
		action.Parameters = cloneMap(s.Action.Parameters)
		out.Action = &action
	}

	if s.Condition != nil {
		condition := *s.Condition
		condition.Value = cloneValue(s.Condition.Value)
		condition.Rules = clonePredicates(s.Condition.Rules)
		out.Condition = &condition
	}

	if s.Delay != nil {
		delay := *s.Delay
		out.Delay = &delay
	}

	return &out
}

// String implements fmt.Stringer.
func (s *Step) String() string {
	return fmt.Sprintf("%s(%s)", s.Kind, s.ID)
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}

	return false
}

func clonePredicates(in []Predicate) []Predicate {
	if in == nil {
		return nil
	}

	out := make([]Predicate, len(in))
	for i, p := range in {
		p.Value = cloneValue(p.Value)
		out[i] = p
	}

	return out
}

// CloneData deep copies a JSON-like map.
func CloneData(in map[string]any) map[string]any {
	return cloneMap(in)
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}

	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}

		return out
	case json.RawMessage:
		return append(json.RawMessage{}, typed...)
	default:
		return v
	}
}
