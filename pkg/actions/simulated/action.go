// Package simulated stands in for the marketing and CRM services behind the
// non-webhook action types. Each call returns a plausible receipt without
// contacting anything, which keeps local runs and demos self contained.
package simulated

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/jonboulle/clockwork"
)

// receiptKeys names the id field returned per action type.
var receiptKeys = map[models.ActionType]string{
	models.ActionTypeSendEmail:        "message_id",
	models.ActionTypeSendSMS:          "message_id",
	models.ActionTypeSendSlackMessage: "message_ts",
	models.ActionTypeUpdateCRM:        "record_id",
	models.ActionTypeCreateTask:       "task_id",
	models.ActionTypeAssignLead:       "assignment_id",
	models.ActionTypeUpdateLeadScore:  "score_event_id",
	models.ActionTypeAddTag:           "tag_id",
	models.ActionTypeAddToCampaign:    "enrollment_id",
	models.ActionTypeGenerateReport:   "report_id",
}

// Types lists the action types this package simulates.
func Types() []models.ActionType {
	return []models.ActionType{
		models.ActionTypeSendEmail,
		models.ActionTypeSendSMS,
		models.ActionTypeSendSlackMessage,
		models.ActionTypeUpdateCRM,
		models.ActionTypeCreateTask,
		models.ActionTypeAssignLead,
		models.ActionTypeUpdateLeadScore,
		models.ActionTypeAddTag,
		models.ActionTypeAddToCampaign,
		models.ActionTypeGenerateReport,
	}
}

// Action simulates one action type.
type Action struct {
	actionType models.ActionType
	clock      clockwork.Clock
	logger     *slog.Logger
}

func NewAction(actionType models.ActionType, clock clockwork.Clock, logger *slog.Logger) *Action {
	return &Action{
		actionType: actionType,
		clock:      clock,
		logger:     logger.With("module", "simulated_action", "action_type", actionType),
	}
}

func (a *Action) Execute(ctx context.Context, service string, params map[string]any) (map[string]any, error) {
	if fail, _ := params["simulate_failure"].(string); fail != "" {
		return nil, fmt.Errorf("simulated %s failure: %s", a.actionType, fail)
	}

	key, ok := receiptKeys[a.actionType]
	if !ok {
		key = "id"
	}

	output := map[string]any{
		key:            uuid.New().String(),
		"status":       "simulated",
		"service":      service,
		"processed_at": a.clock.Now().UTC().Format(time.RFC3339),
	}

	if a.actionType == models.ActionTypeUpdateLeadScore {
		output["lead_score"] = leadScore(params)
	}

	a.logger.InfoContext(ctx, "Simulated action", "service", service, key, output[key])

	return output, nil
}

// leadScore applies params["delta"] to params["score"], or returns params["score"].
func leadScore(params map[string]any) float64 {
	score := number(params["score"])
	return score + number(params["delta"])
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
