// Package validation decides whether a workflow graph is executable.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Severity tells whether an issue blocks activation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// IssueCode identifies a validation rule.
type IssueCode string

const (
	CodeMissingTrigger         IssueCode = "missing_trigger"
	CodeMultipleTriggers       IssueCode = "multiple_triggers"
	CodeTriggerHasIncoming     IssueCode = "trigger_has_incoming"
	CodeUnreachableStep        IssueCode = "unreachable_step"
	CodeInfiniteLoop           IssueCode = "infinite_loop"
	CodeConditionWithoutBranch IssueCode = "condition_without_branch"
	CodeConditionExtraBranches IssueCode = "condition_extra_branches"
	CodeUnknownVariable        IssueCode = "unknown_variable"
	CodeUnknownStep            IssueCode = "unknown_step"
	CodeInconsistentEdge       IssueCode = "inconsistent_edge"
	CodeMissingConfig          IssueCode = "missing_config"
	CodeInvalidConfig          IssueCode = "invalid_config"
)

// Errors matched by issues through errors.Is.
var (
	ErrValidationFailed = errors.New("workflow validation failed")
	ErrWorkflowNil      = errors.New("workflow is required")
	ErrInfiniteLoop     = errors.New("infinite loop")
	ErrUnknownVariable  = errors.New("unknown variable")
	ErrUnknownStep      = errors.New("unknown step reference")
	ErrInvalidTrigger   = errors.New("invalid trigger setup")
	ErrInvalidBranching = errors.New("invalid condition branching")
	ErrInvalidConfig    = errors.New("invalid step configuration")
)

var codeErrors = map[IssueCode]error{
	CodeMissingTrigger:         ErrInvalidTrigger,
	CodeMultipleTriggers:       ErrInvalidTrigger,
	CodeTriggerHasIncoming:     ErrInvalidTrigger,
	CodeInfiniteLoop:           ErrInfiniteLoop,
	CodeConditionWithoutBranch: ErrInvalidBranching,
	CodeConditionExtraBranches: ErrInvalidBranching,
	CodeUnknownVariable:        ErrUnknownVariable,
	CodeUnknownStep:            ErrUnknownStep,
	CodeInconsistentEdge:       ErrUnknownStep,
	CodeMissingConfig:          ErrInvalidConfig,
	CodeInvalidConfig:          ErrInvalidConfig,
}

// Issue is one finding of the validator.
type Issue struct {
	Code     IssueCode `json:"code"`
	Severity Severity  `json:"severity"`
	StepID   string    `json:"step_id,omitempty"`
	StepIDs  []string  `json:"step_ids,omitempty"`
	Message  string    `json:"message"`
}

func (i Issue) Error() string {
	if i.StepID == "" {
		return fmt.Sprintf("%s: %s", i.Code, i.Message)
	}

	return fmt.Sprintf("%s: step %s: %s", i.Code, i.StepID, i.Message)
}

// Unwrap maps the issue to its error class.
func (i Issue) Unwrap() error {
	return codeErrors[i.Code]
}

// Result is the outcome of a validation pass.
type Result struct {
	OK       bool    `json:"ok"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Has reports whether an error or warning with the given code exists.
func (r *Result) Has(code IssueCode) bool {
	for _, issue := range r.Errors {
		if issue.Code == code {
			return true
		}
	}

	for _, issue := range r.Warnings {
		if issue.Code == code {
			return true
		}
	}

	return false
}

// Err returns nil for a passing result and a *FailedError otherwise.
func (r *Result) Err() error {
	if r.OK {
		return nil
	}

	return &FailedError{Result: r}
}

// FailedError carries a failing result across API boundaries.
type FailedError struct {
	Result *Result
}

func (e *FailedError) Error() string {
	messages := make([]string, len(e.Result.Errors))
	for i, issue := range e.Result.Errors {
		messages[i] = issue.Error()
	}

	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(messages, "; "))
}

// Unwrap exposes ErrValidationFailed and every blocking issue.
func (e *FailedError) Unwrap() []error {
	errs := []error{ErrValidationFailed}
	for _, issue := range e.Result.Errors {
		errs = append(errs, issue)
	}

	return errs
}

// AsFailed extracts the failing result from err.
func AsFailed(err error) (*Result, bool) {
	var failed *FailedError
	if errors.As(err, &failed) {
		return failed.Result, true
	}

	return nil, false
}
