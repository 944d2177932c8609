package workflow

import "errors"

// Misuse errors returned by the executor. Step failures never surface here; they live in the trace.
var (
	ErrWorkflowRequired    = errors.New("workflow is required")
	ErrWorkflowNotActive   = errors.New("workflow is not active")
	ErrNoTrigger           = errors.New("workflow must have exactly one trigger step")
	ErrExecutionIDRequired = errors.New("execution id is required")
	ErrTraceRequired       = errors.New("execution trace is required")
	ErrTraceSealed         = errors.New("execution trace is sealed")
	ErrWrongWorkflow       = errors.New("execution trace belongs to another workflow")
	ErrUnknownSuspension   = errors.New("unknown suspension")
	ErrAlreadyResumed      = errors.New("suspension already resumed")
)

// Messages written to traces.
const (
	MessageTimeout       = "timeout"
	MessageCancelled     = "cancelled"
	MessageStepLimit     = "step execution limit exceeded"
	MessageRunCancelled  = "result discarded: run cancelled"
	MessageBranchSkipped = "branch not taken"
)
