// Package n8n converts workflows to and from n8n-compatible JSON documents.
package n8n

// Node types written by Export.
const (
	NodeTypeTrigger   = "trigger"
	NodeTypeFunction  = "function"
	NodeTypeIf        = "if"
	NodeTypeWait      = "wait"
	ConnectionMain    = "main"
	nodeTypeVersion   = 1
	executionOrderV1  = "v1"
	callerPolicyOwner = "workflowsFromSameOwner"
)

// onError values understood by n8n.
const (
	OnErrorStop     = "stopWorkflow"
	OnErrorContinue = "continueRegularOutput"
)

type Document struct {
	Name        string                     `json:"name"`
	Nodes       []Node                     `json:"nodes"`
	Connections map[string]NodeConnections `json:"connections"`
	Active      bool                       `json:"active"`
	Settings    Settings                   `json:"settings"`
	Meta        *Meta                      `json:"meta,omitempty"`
}

type Node struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	TypeVersion int            `json:"typeVersion"`
	Position    [2]int         `json:"position"`
	Parameters  map[string]any `json:"parameters"`

	// Node level resilience options, set on action nodes.
	RetryOnFail      bool   `json:"retryOnFail,omitempty"`
	MaxTries         int    `json:"maxTries,omitempty"`
	WaitBetweenTries int    `json:"waitBetweenTries,omitempty"` // milliseconds
	OnError          string `json:"onError,omitempty"`
}

type NodeConnections struct {
	Main [][]Connection `json:"main"`
}

type Connection struct {
	Node  string `json:"node"`
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type Settings struct {
	ExecutionOrder       string `json:"executionOrder"`
	SaveManualExecutions bool   `json:"saveManualExecutions"`
	CallerPolicy         string `json:"callerPolicy"`
	ExecutionTimeout     int    `json:"executionTimeout,omitempty"` // seconds
}

// Meta keeps the workflow fields n8n has no place for.
type Meta struct {
	WorkflowID           string         `json:"workflowId,omitempty"`
	Description          string         `json:"description,omitempty"`
	Category             string         `json:"category,omitempty"`
	Status               string         `json:"status,omitempty"`
	Variables            map[string]any `json:"variables,omitempty"`
	ErrorHandling        string         `json:"errorHandling,omitempty"`
	RetryCount           *int           `json:"retryCount,omitempty"`
	RetryDelaySeconds    *int           `json:"retryDelaySeconds,omitempty"`
	TimeSavedPerRunHours float64        `json:"timeSavedPerRunHours,omitempty"`
}
