package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewStep builds a step of the given kind with kind-appropriate defaults.
// For triggers and actions subtype selects the trigger or action type and
// the default name; it is ignored for conditions and delays.
func NewStep(kind StepKind, subtype string) (*Step, error) {
	step := &Step{
		ID:          uuid.New().String(),
		Kind:        kind,
		NextStepIDs: []string{},
		PrevStepIDs: []string{},
	}

	switch kind {
	case StepKindTrigger:
		triggerType := TriggerType(subtype)
		if subtype == "" {
			triggerType = TriggerTypeManual
		}

		if !triggerType.Valid() {
			return nil, fmt.Errorf("%w: trigger type %q", ErrInvalidSubtype, subtype)
		}

		step.Name = TitleCase(string(triggerType))
		step.Trigger = &TriggerConfig{TriggerType: triggerType, Conditions: []Predicate{}}

		if triggerType == TriggerTypeWebhook {
			step.Trigger.Webhook = &WebhookConfig{Path: "/" + step.ID, Method: "POST"}
		}
	case StepKindAction:
		actionType := ActionType(subtype)
		if subtype == "" {
			actionType = ActionTypeLog
		}

		if !actionType.Valid() {
			return nil, fmt.Errorf("%w: action type %q", ErrInvalidSubtype, subtype)
		}

		step.Name = TitleCase(string(actionType))
		step.Action = &ActionConfig{ActionType: actionType, Parameters: map[string]any{}}
	case StepKindCondition:
		step.Name = "Condition"
		step.Condition = &ConditionConfig{
			Predicate: Predicate{Field: "", Operator: OperatorEquals, Value: ""},
		}
	case StepKindDelay:
		step.Name = "Delay"
		step.Delay = &DelayConfig{Duration: 1, Unit: DelayUnitHours}
	default:
		return nil, &InvalidKindError{Kind: string(kind)}
	}

	return step, nil
}

// TitleCase turns a snake_case identifier into a human label: "send_email" -> "Send Email".
func TitleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}

	return strings.Join(words, " ")
}
