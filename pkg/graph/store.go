// Package graph owns the steps and edges of a workflow and keeps them consistent under mutation.
package graph

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
)

// Store wraps a workflow and guards its graph. Every mutation checks its
// preconditions before touching anything, so a failed call leaves the graph unchanged.
type Store struct {
	mu       sync.RWMutex
	workflow *models.Workflow
	now      func() time.Time
}

// NewStore takes ownership of wf. Callers must not mutate wf afterwards.
func NewStore(wf *models.Workflow) *Store {
	if wf.Steps == nil {
		wf.Steps = []*models.Step{}
	}

	if wf.Variables == nil {
		wf.Variables = map[string]any{}
	}

	return &Store{workflow: wf, now: func() time.Time { return time.Now().UTC() }}
}

// Workflow returns a deep copy of the current workflow.
func (s *Store) Workflow() *models.Workflow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.workflow.Clone()
}

// Status returns the current lifecycle status.
func (s *Store) Status() models.WorkflowStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.workflow.Status
}

// Step returns a copy of the step with the given id.
func (s *Store) Step(id string) (*models.Step, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	step, ok := s.workflow.StepByID(id)
	if !ok {
		return nil, false
	}

	return step.Clone(), true
}

// Steps returns copies of every step in declaration order.
func (s *Store) Steps() []*models.Step {
	s.mu.RLock()
	defer s.mu.RUnlock()

	steps := make([]*models.Step, len(s.workflow.Steps))
	for i, step := range s.workflow.Steps {
		steps[i] = step.Clone()
	}

	return steps
}

// AddStep inserts a copy of step. Edges carried by step are ignored; use Connect.
func (s *Store) AddStep(step *models.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEditable("add step"); err != nil {
		return err
	}

	if step == nil || step.ID == "" {
		return fmt.Errorf("%w: step id is required", ErrInvalidStep)
	}

	if !step.Kind.Valid() {
		return &models.InvalidKindError{Kind: string(step.Kind)}
	}

	if _, exists := s.workflow.StepByID(step.ID); exists {
		return &DuplicateIDError{StepID: step.ID}
	}

	inserted := step.Clone()
	inserted.NextStepIDs = []string{}
	inserted.PrevStepIDs = []string{}

	s.workflow.Steps = append(s.workflow.Steps, inserted)
	s.touch()

	return nil
}

// UpdateStep applies fn to a copy of the step and stores the result.
// Identity and edges are preserved whatever fn does to them.
func (s *Store) UpdateStep(id string, fn func(step *models.Step) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEditable("update step"); err != nil {
		return err
	}

	index := s.indexOf(id)
	if index < 0 {
		return &UnknownStepError{StepID: id}
	}

	current := s.workflow.Steps[index]
	updated := current.Clone()

	if err := fn(updated); err != nil {
		return err
	}

	updated.ID = current.ID
	updated.Kind = current.Kind
	updated.NextStepIDs = append([]string{}, current.NextStepIDs...)
	updated.PrevStepIDs = append([]string{}, current.PrevStepIDs...)

	s.workflow.Steps[index] = updated
	s.touch()

	return nil
}

// RemoveStep deletes a step and every edge touching it.
func (s *Store) RemoveStep(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEditable("remove step"); err != nil {
		return err
	}

	index := s.indexOf(id)
	if index < 0 {
		return &UnknownStepError{StepID: id}
	}

	s.workflow.Steps = slices.Delete(s.workflow.Steps, index, index+1)

	for _, step := range s.workflow.Steps {
		step.NextStepIDs = without(step.NextStepIDs, id)
		step.PrevStepIDs = without(step.PrevStepIDs, id)
	}

	s.touch()

	return nil
}

// Connect adds the edge from -> to. Connecting an existing edge is a no-op.
func (s *Store) Connect(fromID, toID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEditable("connect steps"); err != nil {
		return err
	}

	from, to, err := s.endpoints(fromID, toID)
	if err != nil {
		return err
	}

	if from.HasNext(toID) {
		return nil
	}

	from.NextStepIDs = append(from.NextStepIDs, toID)
	if !to.HasPrev(fromID) {
		to.PrevStepIDs = append(to.PrevStepIDs, fromID)
	}

	s.touch()

	return nil
}

// Disconnect removes the edge from -> to. A missing edge is a no-op.
func (s *Store) Disconnect(fromID, toID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkEditable("disconnect steps"); err != nil {
		return err
	}

	from, to, err := s.endpoints(fromID, toID)
	if err != nil {
		return err
	}

	if !from.HasNext(toID) {
		return nil
	}

	from.NextStepIDs = without(from.NextStepIDs, toID)
	to.PrevStepIDs = without(to.PrevStepIDs, fromID)
	s.touch()

	return nil
}

// Activate locks the graph once check accepts a snapshot of the workflow.
func (s *Store) Activate(check func(wf *models.Workflow) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.workflow.Status == models.WorkflowStatusActive {
		return nil
	}

	if check == nil {
		return ErrNotValidated
	}

	if err := check(s.workflow.Clone()); err != nil {
		return err
	}

	s.workflow.Status = models.WorkflowStatusActive
	s.touch()

	return nil
}

// Pause unlocks an active workflow for editing.
func (s *Store) Pause() {
	s.setStatus(models.WorkflowStatusPaused)
}

// MarkError records that a run of the workflow failed. The graph becomes editable.
func (s *Store) MarkError() {
	s.setStatus(models.WorkflowStatusError)
}

func (s *Store) setStatus(status models.WorkflowStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.workflow.Status == status {
		return
	}

	s.workflow.Status = status
	s.touch()
}

func (s *Store) checkEditable(op string) error {
	if !s.workflow.Status.Editable() {
		return &GraphLockedError{WorkflowID: s.workflow.ID, Op: op}
	}

	return nil
}

func (s *Store) endpoints(fromID, toID string) (*models.Step, *models.Step, error) {
	from, ok := s.workflow.StepByID(fromID)
	if !ok {
		return nil, nil, &UnknownStepError{StepID: fromID}
	}

	to, ok := s.workflow.StepByID(toID)
	if !ok {
		return nil, nil, &UnknownStepError{StepID: toID}
	}

	return from, to, nil
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.workflow.Steps, func(step *models.Step) bool { return step.ID == id })
}

func (s *Store) touch() {
	s.workflow.UpdatedAt = s.now()
}

func without(ids []string, id string) []string {
	return slices.DeleteFunc(append([]string{}, ids...), func(candidate string) bool { return candidate == id })
}
