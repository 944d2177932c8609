package n8n

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/iverton053/ivertonai.com-sub010/pkg/graph"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
)

type decodeFunc func(step *models.Step, params map[string]any) error

type nodeType struct {
	kind    models.StepKind
	subtype string
	decode  decodeFunc
}

// Node types accepted by Import: the ones Export writes plus their n8n-nodes-base counterparts.
var importTypes = map[string]nodeType{
	NodeTypeTrigger:  {models.StepKindTrigger, "", decodeTrigger},
	NodeTypeFunction: {models.StepKindAction, "", decodeAction},
	NodeTypeIf:       {models.StepKindCondition, "", decodeCondition},
	NodeTypeWait:     {models.StepKindDelay, "", decodeDelay},

	"n8n-nodes-base.manualTrigger":   {models.StepKindTrigger, string(models.TriggerTypeManual), decodeTrigger},
	"n8n-nodes-base.webhook":         {models.StepKindTrigger, string(models.TriggerTypeWebhook), decodeWebhookNode},
	"n8n-nodes-base.scheduleTrigger": {models.StepKindTrigger, string(models.TriggerTypeSchedule), decodeScheduleNode},
	"n8n-nodes-base.if":              {models.StepKindCondition, "", decodeCondition},
	"n8n-nodes-base.wait":            {models.StepKindDelay, "", decodeDelay},
	"n8n-nodes-base.function":        {models.StepKindAction, string(models.ActionTypeLog), decodeCodeNode},
	"n8n-nodes-base.code":            {models.StepKindAction, string(models.ActionTypeLog), decodeCodeNode},
	"n8n-nodes-base.httpRequest":     {models.StepKindAction, string(models.ActionTypeWebhook), decodeHTTPNode},
}

// Import reads an n8n document. Unknown node types fail with UnsupportedNodeTypeError.
func Import(data []byte) (*models.Workflow, error) {
	if err := checkStructure(data); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedDocumentError{Err: err}
	}

	return FromDocument(&doc)
}

// FromDocument builds a draft, paused or active workflow from doc. Edges are
// rebuilt through a graph store so both edge directions are consistent.
func FromDocument(doc *Document) (*models.Workflow, error) {
	if doc == nil {
		return nil, malformed("document is empty")
	}

	id := uuid.New().String()
	if doc.Meta != nil && doc.Meta.WorkflowID != "" {
		id = doc.Meta.WorkflowID
	}

	wf := models.NewWorkflow(id, doc.Name)
	importSettings(wf, doc)

	store := graph.NewStore(wf)
	ids := make(map[string]string, len(doc.Nodes))

	for _, node := range doc.Nodes {
		step, err := importNode(node)
		if err != nil {
			return nil, err
		}

		if err := store.AddStep(step); err != nil {
			return nil, &MalformedDocumentError{Err: err}
		}

		ids[step.ID] = step.ID
		if _, taken := ids[node.Name]; !taken {
			ids[node.Name] = step.ID
		}
	}

	if err := importConnections(store, doc, ids); err != nil {
		return nil, err
	}

	out := store.Workflow()
	out.Status = importStatus(doc)

	return out, nil
}

func importNode(node Node) (*models.Step, error) {
	nt, ok := importTypes[node.Type]
	if !ok {
		return nil, &UnsupportedNodeTypeError{Node: node.Name, Type: node.Type}
	}

	step, err := models.NewStep(nt.kind, nt.subtype)
	if err != nil {
		return nil, err
	}

	if node.ID != "" {
		step.ID = node.ID
	}

	step.Name = node.Name
	step.PositionX = node.Position[0]
	step.PositionY = node.Position[1]

	if err := nt.decode(step, node.Parameters); err != nil {
		return nil, &MalformedDocumentError{
			Problems: []string{fmt.Sprintf("node %q: %v", node.Name, err)},
			Err:      err,
		}
	}

	return step, nil
}

// importConnections walks nodes in declaration order so next_step_ids keep
// the document order. Keys and targets may be node ids or node names.
func importConnections(store *graph.Store, doc *Document, ids map[string]string) error {
	consumed := make(map[string]bool, len(doc.Connections))

	for _, node := range doc.Nodes {
		from := ids[node.ID]
		if node.ID == "" {
			from = ids[node.Name]
		}

		key := node.ID
		connections, ok := doc.Connections[key]

		if !ok {
			key = node.Name
			connections, ok = doc.Connections[key]
		}

		if !ok {
			continue
		}

		consumed[key] = true

		for _, group := range connections.Main {
			for _, conn := range group {
				to, known := ids[conn.Node]
				if !known {
					return malformed("connection from %q to unknown node %q", node.Name, conn.Node)
				}

				if err := store.Connect(from, to); err != nil {
					return &MalformedDocumentError{Err: err}
				}
			}
		}
	}

	for key := range doc.Connections {
		if !consumed[key] {
			return malformed("connections reference unknown node %q", key)
		}
	}

	return nil
}

func importStatus(doc *Document) models.WorkflowStatus {
	if doc.Active {
		return models.WorkflowStatusActive
	}

	if doc.Meta != nil {
		switch status := models.WorkflowStatus(doc.Meta.Status); status {
		case models.WorkflowStatusDraft, models.WorkflowStatusPaused, models.WorkflowStatusError:
			return status
		}
	}

	return models.WorkflowStatusDraft
}

// importSettings prefers meta, then falls back to the resilience options of
// the first action node.
func importSettings(wf *models.Workflow, doc *Document) {
	if doc.Meta != nil || doc.Settings.ExecutionTimeout > 0 {
		wf.Settings.TimeoutSeconds = max(doc.Settings.ExecutionTimeout, 0)
	}

	for _, node := range doc.Nodes {
		if node.MaxTries == 0 && node.OnError == "" {
			continue
		}

		if node.MaxTries > 0 {
			wf.Settings.RetryCount = node.MaxTries - 1
			wf.Settings.RetryDelaySeconds = node.WaitBetweenTries / 1000
		}

		switch {
		case node.OnError == OnErrorStop:
			wf.Settings.ErrorHandling = models.ErrorHandlingStop
		case strings.HasPrefix(node.OnError, "continue"):
			wf.Settings.ErrorHandling = models.ErrorHandlingContinue
		}

		break
	}

	meta := doc.Meta
	if meta == nil {
		return
	}

	wf.Description = meta.Description
	wf.Category = meta.Category
	wf.TimeSavedPerRunHours = meta.TimeSavedPerRunHours

	if meta.Variables != nil {
		wf.Variables = models.CloneData(meta.Variables)
	}

	if meta.ErrorHandling != "" {
		wf.Settings.ErrorHandling = models.ErrorHandling(meta.ErrorHandling)
	}

	if meta.RetryCount != nil {
		wf.Settings.RetryCount = *meta.RetryCount
	}

	if meta.RetryDelaySeconds != nil {
		wf.Settings.RetryDelaySeconds = *meta.RetryDelaySeconds
	}
}

// decodeInto overlays params onto target. Fields absent from params keep the
// values target already holds.
func decodeInto(params map[string]any, target any) error {
	if len(params) == 0 {
		return nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, target)
}

type triggerParams struct {
	TriggerType models.TriggerType    `json:"triggerType"`
	Conditions  []models.Predicate    `json:"conditions"`
	Schedule    string                `json:"schedule"`
	Webhook     *models.WebhookConfig `json:"webhook"`
}

func decodeTrigger(step *models.Step, params map[string]any) error {
	p := triggerParams{
		TriggerType: step.Trigger.TriggerType,
		Conditions:  step.Trigger.Conditions,
		Webhook:     step.Trigger.Webhook,
	}

	if err := decodeInto(params, &p); err != nil {
		return err
	}

	if p.Conditions == nil {
		p.Conditions = []models.Predicate{}
	}

	step.Trigger = &models.TriggerConfig{
		TriggerType: p.TriggerType,
		Conditions:  p.Conditions,
		Schedule:    p.Schedule,
		Webhook:     p.Webhook,
	}

	return nil
}

func decodeWebhookNode(step *models.Step, params map[string]any) error {
	if _, native := params["triggerType"]; native {
		return decodeTrigger(step, params)
	}

	if path, _ := params["path"].(string); path != "" {
		step.Trigger.Webhook.Path = "/" + strings.TrimPrefix(path, "/")
	}

	if method, _ := params["httpMethod"].(string); method != "" {
		step.Trigger.Webhook.Method = strings.ToUpper(method)
	}

	return nil
}

// decodeScheduleNode reads the first cron rule of an n8n schedule trigger.
func decodeScheduleNode(step *models.Step, params map[string]any) error {
	if _, native := params["triggerType"]; native {
		return decodeTrigger(step, params)
	}

	var p struct {
		Rule struct {
			Interval []struct {
				Field      string `json:"field"`
				Expression string `json:"expression"`
			} `json:"interval"`
		} `json:"rule"`
	}

	if err := decodeInto(params, &p); err != nil {
		return err
	}

	for _, interval := range p.Rule.Interval {
		if interval.Expression != "" {
			step.Trigger.Schedule = interval.Expression
			break
		}
	}

	return nil
}

type actionParams struct {
	ActionType models.ActionType `json:"actionType"`
	Service    string            `json:"service"`
	Parameters map[string]any    `json:"parameters"`
}

func decodeAction(step *models.Step, params map[string]any) error {
	p := actionParams{
		ActionType: step.Action.ActionType,
		Service:    step.Action.Service,
		Parameters: map[string]any{},
	}

	if err := decodeInto(params, &p); err != nil {
		return err
	}

	step.Action = &models.ActionConfig{
		ActionType: p.ActionType,
		Service:    p.Service,
		Parameters: p.Parameters,
	}

	return nil
}

// decodeCodeNode keeps the code of a foreign function node as log parameters.
func decodeCodeNode(step *models.Step, params map[string]any) error {
	if _, native := params["actionType"]; native {
		return decodeAction(step, params)
	}

	step.Action.Service = "n8n"
	step.Action.Parameters = models.CloneData(params)

	if step.Action.Parameters == nil {
		step.Action.Parameters = map[string]any{}
	}

	return nil
}

func decodeHTTPNode(step *models.Step, params map[string]any) error {
	if _, native := params["actionType"]; native {
		return decodeAction(step, params)
	}

	method, _ := params["method"].(string)
	if method == "" {
		method = "GET"
	}

	step.Action.Parameters = map[string]any{
		"url":    params["url"],
		"method": strings.ToUpper(method),
	}

	return nil
}

type conditionParams struct {
	Field           string                   `json:"field"`
	Operator        models.ConditionOperator `json:"operator"`
	Value           any                      `json:"value"`
	LogicalOperator models.LogicalOperator   `json:"logicalOperator"`
	Rules           []models.Predicate       `json:"rules"`
}

func decodeCondition(step *models.Step, params map[string]any) error {
	p := conditionParams{
		Field:    step.Condition.Field,
		Operator: step.Condition.Operator,
		Value:    step.Condition.Value,
	}

	if err := decodeInto(params, &p); err != nil {
		return err
	}

	step.Condition = &models.ConditionConfig{
		Predicate:       models.Predicate{Field: p.Field, Operator: p.Operator, Value: p.Value},
		LogicalOperator: p.LogicalOperator,
		Rules:           p.Rules,
	}

	return nil
}

type delayParams struct {
	Amount float64          `json:"amount"`
	Unit   models.DelayUnit `json:"unit"`
}

func decodeDelay(step *models.Step, params map[string]any) error {
	p := delayParams{Amount: step.Delay.Duration, Unit: step.Delay.Unit}

	if err := decodeInto(params, &p); err != nil {
		return err
	}

	step.Delay = &models.DelayConfig{Duration: p.Amount, Unit: p.Unit}

	return nil
}
