package n8n_test

import (
	"encoding/json"
	"testing"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/n8n"
	"github.com/iverton053/ivertonai.com-sub010/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leadNurture() *models.Workflow {
	wf := testutil.NewWorkflowBuilder("lead-nurture").
		Trigger("trigger", testutil.WithTriggerType(models.TriggerTypeFormSubmission), testutil.WithPosition(100, 200)).
		Delay("wait", 2, models.DelayUnitDays).
		Condition("opened", "email_opened", models.OperatorEquals, true).
		Action("follow_up", models.ActionTypeSendEmail, map[string]any{"subject": "Still interested, {{client_name}}?"}).
		Action("tag", models.ActionTypeAddTag, map[string]any{"tag": "cold", "weight": 3}).
		Chain("trigger", "wait", "opened", "follow_up").
		Connect("opened", "tag").
		Variable("client_name", "Acme").
		Settings(models.Settings{TimeoutSeconds: 600, RetryCount: 2, RetryDelaySeconds: 30, ErrorHandling: models.ErrorHandlingNotify}).
		Workflow()

	wf.Description = "Follow up on form leads"
	wf.Category = "lead_nurturing"
	wf.TimeSavedPerRunHours = 0.5

	return wf
}

func TestExport_Shape(t *testing.T) {
	doc := n8n.Export(leadNurture())

	assert.Equal(t, "lead-nurture", doc.Name)
	assert.False(t, doc.Active)
	assert.Equal(t, n8n.Settings{
		ExecutionOrder:       "v1",
		SaveManualExecutions: false,
		CallerPolicy:         "workflowsFromSameOwner",
		ExecutionTimeout:     600,
	}, doc.Settings)

	types := make([]string, len(doc.Nodes))
	for i, node := range doc.Nodes {
		types[i] = node.Type
		assert.Equal(t, 1, node.TypeVersion)
	}

	assert.Equal(t, []string{"trigger", "wait", "if", "function", "function"}, types)
	assert.Equal(t, [2]int{100, 200}, doc.Nodes[0].Position)

	assert.Equal(t, [][]n8n.Connection{{
		{Node: "follow_up", Type: "main", Index: 0},
		{Node: "tag", Type: "main", Index: 0},
	}}, doc.Connections["opened"].Main)
	assert.NotContains(t, doc.Connections, "follow_up")

	action := doc.Nodes[3]
	assert.True(t, action.RetryOnFail)
	assert.Equal(t, 3, action.MaxTries)
	assert.Equal(t, 30000, action.WaitBetweenTries)
	assert.Equal(t, n8n.OnErrorContinue, action.OnError)
	assert.Equal(t, "send_email", action.Parameters["actionType"])

	assert.Zero(t, doc.Nodes[1].MaxTries)
	assert.Equal(t, map[string]any{"amount": float64(2), "unit": "days"}, doc.Nodes[1].Parameters)
}

func TestExport_ActiveAndStopHandling(t *testing.T) {
	wf := testutil.NewWorkflowBuilder("wf").
		Trigger("trigger").
		Action("send", models.ActionTypeLog, nil).
		Chain("trigger", "send").
		Active()

	doc := n8n.Export(wf)
	assert.True(t, doc.Active)
	assert.Equal(t, n8n.OnErrorStop, doc.Nodes[1].OnError)
}

func TestRoundTrip_OwnExport(t *testing.T) {
	first, err := n8n.Marshal(leadNurture())
	require.NoError(t, err)

	imported, err := n8n.Import(first)
	require.NoError(t, err)

	second, err := n8n.Marshal(imported)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}

func TestRoundTrip_GraphIsPreserved(t *testing.T) {
	original := leadNurture()

	data, err := n8n.Marshal(original)
	require.NoError(t, err)

	imported, err := n8n.Import(data)
	require.NoError(t, err)

	assert.Equal(t, original.ID, imported.ID)
	assert.Equal(t, original.Settings, imported.Settings)
	assert.Equal(t, original.Variables, imported.Variables)
	assert.Equal(t, original.Category, imported.Category)
	assert.Equal(t, models.WorkflowStatusDraft, imported.Status)
	require.Len(t, imported.Steps, len(original.Steps))

	for i, step := range original.Steps {
		got := imported.Steps[i]
		assert.Equal(t, step.ID, got.ID)
		assert.Equal(t, step.Kind, got.Kind)
		assert.Equal(t, step.Name, got.Name)
		assert.Equal(t, step.PositionX, got.PositionX, step.ID)
		assert.Equal(t, step.PositionY, got.PositionY, step.ID)
		assert.Equal(t, step.NextStepIDs, got.NextStepIDs, step.ID)
		assert.ElementsMatch(t, step.PrevStepIDs, got.PrevStepIDs, step.ID)

		assert.JSONEq(t, configJSON(t, step.Trigger), configJSON(t, got.Trigger), step.ID)
		assert.JSONEq(t, configJSON(t, step.Action), configJSON(t, got.Action), step.ID)
		assert.JSONEq(t, configJSON(t, step.Condition), configJSON(t, got.Condition), step.ID)
		assert.JSONEq(t, configJSON(t, step.Delay), configJSON(t, got.Delay), step.ID)
	}

	// JSON numbers come back as float64.
	tag, _ := imported.StepByID("tag")
	assert.Equal(t, map[string]any{"tag": "cold", "weight": float64(3)}, tag.Action.Parameters)
}

func configJSON(t *testing.T, config any) string {
	t.Helper()

	data, err := json.Marshal(config)
	require.NoError(t, err)

	return string(data)
}

func TestImport_UnsupportedNodeType(t *testing.T) {
	data := []byte(`{
		"name": "slack",
		"nodes": [{"id": "a", "name": "Slack", "type": "n8n-nodes-base.slack", "position": [0, 0], "parameters": {}}],
		"connections": {}
	}`)

	_, err := n8n.Import(data)

	var unsupported *n8n.UnsupportedNodeTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "n8n-nodes-base.slack", unsupported.Type)
	assert.True(t, n8n.IsUnsupportedNodeType(err))
}

func TestImport_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"nodes": [`},
		{"missing nodes", `{"name": "x", "connections": {}}`},
		{"node without type", `{"nodes": [{"name": "a"}], "connections": {}}`},
		{"bad position", `{"nodes": [{"name": "a", "type": "if", "position": [1]}], "connections": {}}`},
		{"dangling target", `{"nodes": [{"id": "a", "name": "a", "type": "trigger"}], "connections": {"a": {"main": [[{"node": "ghost"}]]}}}`},
		{"dangling source", `{"nodes": [{"id": "a", "name": "a", "type": "trigger"}], "connections": {"ghost": {"main": [[{"node": "a"}]]}}}`},
		{"duplicate ids", `{"nodes": [{"id": "a", "name": "a", "type": "trigger"}, {"id": "a", "name": "b", "type": "wait"}], "connections": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n8n.Import([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, n8n.IsMalformedDocument(err), "%v", err)
		})
	}
}

func TestImport_NativeN8NNodes(t *testing.T) {
	data := []byte(`{
		"name": "Inbound lead",
		"active": true,
		"nodes": [
			{"id": "1", "name": "Webhook", "type": "n8n-nodes-base.webhook", "position": [0, 0],
			 "parameters": {"path": "lead", "httpMethod": "post"}},
			{"id": "2", "name": "Wait", "type": "n8n-nodes-base.wait", "position": [200, 0],
			 "parameters": {"amount": 15, "unit": "minutes"}},
			{"id": "3", "name": "Notify CRM", "type": "n8n-nodes-base.httpRequest", "position": [400, 0],
			 "parameters": {"url": "https://crm.example.com/hooks", "method": "post"},
			 "retryOnFail": true, "maxTries": 4, "waitBetweenTries": 5000, "onError": "continueErrorOutput"}
		],
		"connections": {
			"Webhook": {"main": [[{"node": "Wait", "type": "main", "index": 0}]]},
			"Wait": {"main": [[{"node": "Notify CRM", "type": "main", "index": 0}]]}
		}
	}`)

	wf, err := n8n.Import(data)
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowStatusActive, wf.Status)
	assert.Equal(t, 3, wf.Settings.RetryCount)
	assert.Equal(t, 5, wf.Settings.RetryDelaySeconds)
	assert.Equal(t, models.ErrorHandlingContinue, wf.Settings.ErrorHandling)

	trigger, _ := wf.StepByID("1")
	assert.Equal(t, models.TriggerTypeWebhook, trigger.Trigger.TriggerType)
	assert.Equal(t, &models.WebhookConfig{Path: "/lead", Method: "POST"}, trigger.Trigger.Webhook)
	assert.Equal(t, []string{"2"}, trigger.NextStepIDs)

	wait, _ := wf.StepByID("2")
	assert.Equal(t, &models.DelayConfig{Duration: 15, Unit: models.DelayUnitMinutes}, wait.Delay)
	assert.Equal(t, []string{"1"}, wait.PrevStepIDs)

	notify, _ := wf.StepByID("3")
	assert.Equal(t, models.ActionTypeWebhook, notify.Action.ActionType)
	assert.Equal(t, "POST", notify.Action.Parameters["method"])
	assert.Equal(t, []string{"2"}, notify.PrevStepIDs)
}

func TestMarshal_IsValidJSON(t *testing.T) {
	data, err := n8n.Marshal(leadNurture())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "nodes")
	assert.Contains(t, decoded, "connections")
	assert.Contains(t, decoded["settings"], "executionOrder")
}
