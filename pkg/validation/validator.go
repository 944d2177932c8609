package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/template"
)

// Validator checks workflow graphs. It holds no state; one instance can be shared.
type Validator struct{}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate runs every rule over wf. Issues are reported in a fixed order: rule by rule,
// steps in declaration order, so two passes over the same graph give the same result.
func (v *Validator) Validate(wf *models.Workflow) (*Result, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	c := &checker{wf: wf, index: make(map[string]*models.Step, len(wf.Steps))}
	for _, step := range wf.Steps {
		c.index[step.ID] = step
	}

	c.checkReferences()
	c.checkTrigger()
	c.checkReachability()
	c.checkCycles()
	c.checkConditions()
	c.checkVariables()
	c.checkConfigs()

	return &Result{
		OK:       len(c.errors) == 0,
		Errors:   c.errors,
		Warnings: c.warnings,
	}, nil
}

type checker struct {
	wf       *models.Workflow
	index    map[string]*models.Step
	errors   []Issue
	warnings []Issue
}

func (c *checker) fail(code IssueCode, stepID, format string, args ...any) {
	c.errors = append(c.errors, Issue{
		Code:     code,
		Severity: SeverityError,
		StepID:   stepID,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *checker) warn(code IssueCode, stepID, format string, args ...any) {
	c.warnings = append(c.warnings, Issue{
		Code:     code,
		Severity: SeverityWarning,
		StepID:   stepID,
		Message:  fmt.Sprintf(format, args...),
	})
}

// checkReferences flags dangling edges and edges missing their inverse.
func (c *checker) checkReferences() {
	for _, step := range c.wf.Steps {
		for _, next := range step.NextStepIDs {
			target, ok := c.index[next]
			if !ok {
				c.fail(CodeUnknownStep, step.ID, "next step %q does not exist", next)
				continue
			}

			if !target.HasPrev(step.ID) {
				c.fail(CodeInconsistentEdge, step.ID, "step %q does not list %q as previous step", next, step.ID)
			}
		}

		for _, prev := range step.PrevStepIDs {
			source, ok := c.index[prev]
			if !ok {
				c.fail(CodeUnknownStep, step.ID, "previous step %q does not exist", prev)
				continue
			}

			if !source.HasNext(step.ID) {
				c.fail(CodeInconsistentEdge, step.ID, "step %q does not list %q as next step", prev, step.ID)
			}
		}
	}
}

func (c *checker) checkTrigger() {
	triggers := c.wf.Triggers()

	switch len(triggers) {
	case 0:
		c.fail(CodeMissingTrigger, "", "workflow has no trigger step")
	case 1:
	default:
		ids := make([]string, len(triggers))
		for i, trigger := range triggers {
			ids[i] = trigger.ID
		}

		c.errors = append(c.errors, Issue{
			Code:     CodeMultipleTriggers,
			Severity: SeverityError,
			StepID:   ids[0],
			StepIDs:  ids,
			Message:  fmt.Sprintf("workflow has %d trigger steps, expected exactly one", len(triggers)),
		})
	}

	for _, trigger := range triggers {
		if len(trigger.PrevStepIDs) > 0 {
			c.fail(CodeTriggerHasIncoming, trigger.ID, "trigger has incoming edges from %s", strings.Join(trigger.PrevStepIDs, ", "))
		}
	}
}

// checkReachability walks the graph breadth-first from the triggers.
func (c *checker) checkReachability() {
	triggers := c.wf.Triggers()
	if len(triggers) == 0 {
		return
	}

	reached := map[string]bool{}
	queue := make([]string, 0, len(c.wf.Steps))

	for _, trigger := range triggers {
		reached[trigger.ID] = true
		queue = append(queue, trigger.ID)
	}

	for len(queue) > 0 {
		current := c.index[queue[0]]
		queue = queue[1:]

		for _, next := range current.NextStepIDs {
			if _, ok := c.index[next]; ok && !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}

	for _, step := range c.wf.Steps {
		if !reached[step.ID] {
			c.warn(CodeUnreachableStep, step.ID, "step %q is not reachable from the trigger and will never run", step.Name)
		}
	}
}

// checkCycles rejects every cycle that cannot end. A cycle may only contain delay
// and condition steps, and one of its conditions must branch out of it.
func (c *checker) checkCycles() {
	for _, component := range c.stronglyConnected() {
		if !c.isCycle(component) {
			continue
		}

		members := map[string]bool{}
		for _, id := range component {
			members[id] = true
		}

		onlyWaits := true
		exits := false

		for _, id := range component {
			step := c.index[id]

			if step.Kind != models.StepKindDelay && step.Kind != models.StepKindCondition {
				onlyWaits = false
			}

			if step.Kind != models.StepKindCondition {
				continue
			}

			for _, next := range step.NextStepIDs {
				if _, ok := c.index[next]; ok && !members[next] {
					exits = true
				}
			}
		}

		if onlyWaits && exits {
			continue
		}

		reason := "it has no condition branching out of it"
		if !onlyWaits {
			reason = "only delay and condition steps may form a loop"
		}

		c.errors = append(c.errors, Issue{
			Code:     CodeInfiniteLoop,
			Severity: SeverityError,
			StepID:   component[0],
			StepIDs:  component,
			Message:  fmt.Sprintf("cycle %s never ends: %s", strings.Join(component, " -> "), reason),
		})
	}
}

func (c *checker) isCycle(component []string) bool {
	if len(component) > 1 {
		return true
	}

	return c.index[component[0]].HasNext(component[0])
}

// stronglyConnected runs Tarjan's algorithm. Components come out ordered by their
// first member in declaration order, members in declaration order too.
func (c *checker) stronglyConnected() [][]string {
	position := make(map[string]int, len(c.wf.Steps))
	for i, step := range c.wf.Steps {
		position[step.ID] = i
	}

	var (
		counter    int
		stack      []string
		onStack    = map[string]bool{}
		indexOf    = map[string]int{}
		lowLink    = map[string]int{}
		components [][]string
	)

	var connect func(id string)
	connect = func(id string) {
		indexOf[id] = counter
		lowLink[id] = counter
		counter++

		stack = append(stack, id)
		onStack[id] = true

		for _, next := range c.index[id].NextStepIDs {
			if _, ok := c.index[next]; !ok {
				continue
			}

			if _, visited := indexOf[next]; !visited {
				connect(next)
				lowLink[id] = min(lowLink[id], lowLink[next])
			} else if onStack[next] {
				lowLink[id] = min(lowLink[id], indexOf[next])
			}
		}

		if lowLink[id] != indexOf[id] {
			return
		}

		var component []string

		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)

			if top == id {
				break
			}
		}

		components = append(components, component)
	}

	for _, step := range c.wf.Steps {
		if _, visited := indexOf[step.ID]; !visited {
			connect(step.ID)
		}
	}

	for _, component := range components {
		sortByPosition(component, position)
	}

	sortComponents(components, position)

	return components
}

func (c *checker) checkConditions() {
	for _, step := range c.wf.Steps {
		if step.Kind != models.StepKindCondition {
			continue
		}

		switch n := len(step.NextStepIDs); {
		case n == 0:
			c.fail(CodeConditionWithoutBranch, step.ID, "condition %q has no outgoing branch", step.Name)
		case n > 2:
			c.warn(CodeConditionExtraBranches, step.ID,
				"condition %q has %d branches; only the first (true) and second (false) are routed", step.Name, n)
		}
	}
}

func (c *checker) checkVariables() {
	for _, step := range c.wf.Steps {
		if step.Kind != models.StepKindAction || step.Action == nil {
			continue
		}

		for _, name := range template.Placeholders(step.Action.Parameters) {
			if template.IsTriggerReference(name) {
				continue
			}

			if _, declared := c.wf.Variables[name]; !declared {
				c.fail(CodeUnknownVariable, step.ID, "parameter references undeclared variable {{%s}}", name)
			}
		}
	}
}

func (c *checker) checkConfigs() {
	for _, step := range c.wf.Steps {
		if !step.HasConfig() {
			c.fail(CodeMissingConfig, step.ID, "%s step has no %s configuration", step.Kind, step.Kind)
			continue
		}

		switch step.Kind {
		case models.StepKindTrigger:
			c.checkTriggerConfig(step)
		case models.StepKindAction:
			if !step.Action.ActionType.Valid() {
				c.fail(CodeInvalidConfig, step.ID, "unknown action type %q", step.Action.ActionType)
			}
		case models.StepKindCondition:
			c.checkConditionConfig(step)
		case models.StepKindDelay:
			if step.Delay.Duration <= 0 {
				c.fail(CodeInvalidConfig, step.ID, "delay duration must be positive, got %v", step.Delay.Duration)
			}

			if !step.Delay.Unit.Valid() {
				c.fail(CodeInvalidConfig, step.ID, "unknown delay unit %q", step.Delay.Unit)
			}
		}
	}
}

func (c *checker) checkTriggerConfig(step *models.Step) {
	config := step.Trigger

	if !config.TriggerType.Valid() {
		c.fail(CodeInvalidConfig, step.ID, "unknown trigger type %q", config.TriggerType)
	}

	if config.TriggerType == models.TriggerTypeSchedule && config.Schedule == "" {
		c.fail(CodeInvalidConfig, step.ID, "schedule trigger requires a cron expression")
	}

	if config.Schedule != "" {
		if _, err := models.ParseSchedule(config.Schedule); err != nil {
			c.fail(CodeInvalidConfig, step.ID, "%v", err)
		}
	}

	if config.TriggerType == models.TriggerTypeWebhook && (config.Webhook == nil || config.Webhook.Path == "") {
		c.fail(CodeInvalidConfig, step.ID, "webhook trigger requires a path")
	}

	for _, predicate := range config.Conditions {
		if !predicate.Operator.Valid() {
			c.fail(CodeInvalidConfig, step.ID, "trigger condition on %q uses unknown operator %q", predicate.Field, predicate.Operator)
		}
	}
}

func (c *checker) checkConditionConfig(step *models.Step) {
	config := step.Condition

	if config.Field == "" {
		c.fail(CodeInvalidConfig, step.ID, "condition field is required")
	}

	if !config.Operator.Valid() {
		c.fail(CodeInvalidConfig, step.ID, "unknown operator %q", config.Operator)
	}

	if !config.LogicalOperator.Valid() {
		c.fail(CodeInvalidConfig, step.ID, "unknown logical operator %q", config.LogicalOperator)
	}

	for _, rule := range config.Rules {
		if rule.Field == "" || !rule.Operator.Valid() {
			c.fail(CodeInvalidConfig, step.ID, "invalid rule on %q with operator %q", rule.Field, rule.Operator)
		}
	}
}

func sortByPosition(ids []string, position map[string]int) {
	slices.SortFunc(ids, func(a, b string) int { return position[a] - position[b] })
}

func sortComponents(components [][]string, position map[string]int) {
	slices.SortFunc(components, func(a, b []string) int { return position[a[0]] - position[b[0]] })
}
