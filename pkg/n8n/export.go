package n8n

import (
	"encoding/json"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
)

var nodeTypes = map[models.StepKind]string{
	models.StepKindTrigger:   NodeTypeTrigger,
	models.StepKindAction:    NodeTypeFunction,
	models.StepKindCondition: NodeTypeIf,
	models.StepKindDelay:     NodeTypeWait,
}

// Export converts wf into an n8n document. Step stats and timestamps are not exported.
func Export(wf *models.Workflow) *Document {
	doc := &Document{
		Name:        wf.Name,
		Nodes:       make([]Node, 0, len(wf.Steps)),
		Connections: map[string]NodeConnections{},
		Active:      wf.Status == models.WorkflowStatusActive,
		Settings: Settings{
			ExecutionOrder:       executionOrderV1,
			SaveManualExecutions: false,
			CallerPolicy:         callerPolicyOwner,
			ExecutionTimeout:     wf.Settings.TimeoutSeconds,
		},
		Meta: exportMeta(wf),
	}

	for _, step := range wf.Steps {
		node := Node{
			ID:          step.ID,
			Name:        step.Name,
			Type:        nodeTypes[step.Kind],
			TypeVersion: nodeTypeVersion,
			Position:    [2]int{step.PositionX, step.PositionY},
			Parameters:  exportParameters(step),
		}

		if step.Kind == models.StepKindAction {
			applyResilience(&node, wf.Settings)
		}

		doc.Nodes = append(doc.Nodes, node)

		if len(step.NextStepIDs) == 0 {
			continue
		}

		outputs := make([]Connection, 0, len(step.NextStepIDs))
		for _, next := range step.NextStepIDs {
			outputs = append(outputs, Connection{Node: next, Type: ConnectionMain, Index: 0})
		}

		doc.Connections[step.ID] = NodeConnections{Main: [][]Connection{outputs}}
	}

	return doc
}

// Marshal exports wf as indented JSON.
func Marshal(wf *models.Workflow) ([]byte, error) {
	return json.MarshalIndent(Export(wf), "", "  ")
}

func exportMeta(wf *models.Workflow) *Meta {
	retryCount := wf.Settings.RetryCount
	retryDelay := wf.Settings.RetryDelaySeconds

	return &Meta{
		WorkflowID:           wf.ID,
		Description:          wf.Description,
		Category:             wf.Category,
		Status:               string(wf.Status),
		Variables:            models.CloneData(wf.Variables),
		ErrorHandling:        string(wf.Settings.ErrorHandling),
		RetryCount:           &retryCount,
		RetryDelaySeconds:    &retryDelay,
		TimeSavedPerRunHours: wf.TimeSavedPerRunHours,
	}
}

func applyResilience(node *Node, settings models.Settings) {
	node.RetryOnFail = settings.RetryCount > 0
	node.MaxTries = settings.RetryCount + 1
	node.WaitBetweenTries = settings.RetryDelaySeconds * 1000

	if settings.ErrorHandling == models.ErrorHandlingStop || settings.ErrorHandling == "" {
		node.OnError = OnErrorStop
	} else {
		node.OnError = OnErrorContinue
	}
}

func exportParameters(step *models.Step) map[string]any {
	switch step.Kind {
	case models.StepKindTrigger:
		if step.Trigger == nil {
			return map[string]any{}
		}

		params := map[string]any{
			"triggerType": string(step.Trigger.TriggerType),
			"conditions":  exportPredicates(step.Trigger.Conditions),
		}

		if step.Trigger.Schedule != "" {
			params["schedule"] = step.Trigger.Schedule
		}

		if webhook := step.Trigger.Webhook; webhook != nil {
			params["webhook"] = map[string]any{"path": webhook.Path, "method": webhook.Method}
		}

		return params
	case models.StepKindAction:
		if step.Action == nil {
			return map[string]any{}
		}

		parameters := models.CloneData(step.Action.Parameters)
		if parameters == nil {
			parameters = map[string]any{}
		}

		return map[string]any{
			"actionType": string(step.Action.ActionType),
			"service":    step.Action.Service,
			"parameters": parameters,
		}
	case models.StepKindCondition:
		if step.Condition == nil {
			return map[string]any{}
		}

		params := exportPredicate(step.Condition.Predicate)

		if step.Condition.LogicalOperator != "" {
			params["logicalOperator"] = string(step.Condition.LogicalOperator)
		}

		if len(step.Condition.Rules) > 0 {
			params["rules"] = exportPredicates(step.Condition.Rules)
		}

		return params
	case models.StepKindDelay:
		if step.Delay == nil {
			return map[string]any{}
		}

		return map[string]any{"amount": step.Delay.Duration, "unit": string(step.Delay.Unit)}
	}

	return map[string]any{}
}

func exportPredicate(p models.Predicate) map[string]any {
	return map[string]any{
		"field":    p.Field,
		"operator": string(p.Operator),
		"value":    p.Value,
	}
}

func exportPredicates(predicates []models.Predicate) []any {
	out := make([]any, 0, len(predicates))
	for _, p := range predicates {
		out = append(out, exportPredicate(p))
	}

	return out
}
