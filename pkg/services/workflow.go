package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/iverton053/ivertonai.com-sub010/pkg/graph"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/n8n"
	"github.com/iverton053/ivertonai.com-sub010/pkg/persistence"
	"github.com/iverton053/ivertonai.com-sub010/pkg/scheduler"
	"github.com/iverton053/ivertonai.com-sub010/pkg/validation"
)

type Workflow struct {
	persistence persistence.Persistence
	validator   *validation.Validator
	logger      *slog.Logger

	// mu serializes load-mutate-save cycles.
	mu sync.Mutex
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, logger *slog.Logger) *Workflow {
	return &Workflow{
		persistence: persistence,
		validator:   validation.New(),
		logger:      logger.With("module", "workflow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	Status   *models.WorkflowStatus
	Category string

	// Sorting
	SortBy    string
	SortOrder string
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// ListWorkflows retrieves workflows with filtering, sorting, and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if req.Status != nil && !validStatus(*req.Status) {
		return nil, NewValidationError("ListWorkflows", "INVALID_STATUS",
			fmt.Sprintf("invalid status '%s'", *req.Status), ErrInvalidStatus)
	}

	result, err := w.persistence.WorkflowRepository().ListWorkflows(ctx, persistence.ListWorkflowsOptions{
		Status:    req.Status,
		Category:  req.Category,
		Limit:     req.Limit,
		Offset:    req.Offset,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrInvalidOption) {
			return nil, NewValidationError("ListWorkflows", "INVALID_OPTION", err.Error(), err)
		}

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

// Create stores a new draft. Edges are taken from the steps' next_step_ids and
// rebuilt through a graph store; prev_step_ids are ignored.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	if strings.TrimSpace(workflow.Name) == "" {
		return nil, ErrWorkflowNameRequired
	}

	created, err := rebuild(uuid.New().String(), workflow)
	if err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, created); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Created workflow", "workflow_id", created.ID, "steps", len(created.Steps))

	return created, nil
}

// UpdateWorkflowRequest changes workflow metadata. Nil fields are left alone.
type UpdateWorkflowRequest struct {
	Name                 *string
	Description          *string
	Category             *string
	Variables            map[string]any
	Settings             *models.Settings
	TimeSavedPerRunHours *float64
}

// Update modifies an editable workflow.
func (w *Workflow) Update(ctx context.Context, workflowID string, req UpdateWorkflowRequest) (*models.Workflow, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	wf, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !wf.Status.Editable() {
		return nil, &graph.GraphLockedError{WorkflowID: wf.ID, Op: "update workflow"}
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, ErrWorkflowNameRequired
		}

		wf.Name = *req.Name
	}

	if req.Description != nil {
		wf.Description = *req.Description
	}

	if req.Category != nil {
		wf.Category = *req.Category
	}

	if req.Variables != nil {
		wf.Variables = models.CloneData(req.Variables)
	}

	if req.Settings != nil {
		wf.Settings = *req.Settings
	}

	if req.TimeSavedPerRunHours != nil {
		wf.TimeSavedPerRunHours = *req.TimeSavedPerRunHours
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return wf, nil
}

// Delete removes a workflow by its ID.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	if _, err := w.FetchByID(ctx, workflowID); err != nil {
		return err
	}

	err := w.persistence.WorkflowRepository().Delete(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// Validate checks the stored graph.
func (w *Workflow) Validate(ctx context.Context, workflowID string) (*validation.Result, error) {
	wf, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return w.validator.Validate(wf)
}

// Activate validates and locks the graph. A failing validation returns an
// error that validation.AsFailed unpacks.
func (w *Workflow) Activate(ctx context.Context, workflowID string) (*models.Workflow, error) {
	return w.mutate(ctx, workflowID, func(store *graph.Store) error {
		return store.Activate(func(wf *models.Workflow) error {
			result, err := w.validator.Validate(wf)
			if err != nil {
				return err
			}

			return result.Err()
		})
	})
}

// Pause unlocks an active workflow for editing.
func (w *Workflow) Pause(ctx context.Context, workflowID string) (*models.Workflow, error) {
	return w.mutate(ctx, workflowID, func(store *graph.Store) error {
		if store.Status() != models.WorkflowStatusActive {
			return NewValidationError("Pause", "INVALID_STATUS",
				fmt.Sprintf("cannot pause a %s workflow", store.Status()), ErrInvalidStatus)
		}

		store.Pause()

		return nil
	})
}

// MarkError records that a run failed under stop handling.
func (w *Workflow) MarkError(ctx context.Context, workflowID string) error {
	_, err := w.mutate(ctx, workflowID, func(store *graph.Store) error {
		store.MarkError()
		return nil
	})

	return err
}

// ExportN8N renders the workflow as an n8n document.
func (w *Workflow) ExportN8N(ctx context.Context, workflowID string) ([]byte, error) {
	wf, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return n8n.Marshal(wf)
}

// ImportN8N stores an n8n document as a new draft. The draft keeps the
// document's workflow id unless a workflow already uses it.
func (w *Workflow) ImportN8N(ctx context.Context, data []byte) (*models.Workflow, error) {
	imported, err := n8n.Import(data)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(imported.Name) == "" {
		return nil, ErrWorkflowNameRequired
	}

	switch _, err := w.FetchByID(ctx, imported.ID); {
	case err == nil, errors.Is(err, persistence.ErrInvalidID):
		imported.ID = uuid.New().String()
	case !errors.Is(err, ErrWorkflowNotFound):
		return nil, err
	}

	imported.Status = models.WorkflowStatusDraft

	if err := w.persistence.WorkflowRepository().Save(ctx, imported); err != nil {
		return nil, fmt.Errorf("failed to import workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "Imported n8n workflow", "workflow_id", imported.ID, "steps", len(imported.Steps))

	return imported, nil
}

// ScheduleTriggers lists the schedule triggers of active workflows.
func (w *Workflow) ScheduleTriggers(ctx context.Context) ([]scheduler.ScheduleRef, error) {
	active := models.WorkflowStatusActive
	refs := make([]scheduler.ScheduleRef, 0)

	for offset := 0; ; {
		page, err := w.persistence.WorkflowRepository().ListWorkflows(ctx, persistence.ListWorkflowsOptions{
			Status:    &active,
			Limit:     persistence.MaxListLimit,
			Offset:    offset,
			SortBy:    persistence.SortByCreatedAt,
			SortOrder: "asc",
		})
		if err != nil {
			return nil, err
		}

		for _, wf := range page.Workflows {
			for _, trigger := range wf.Triggers() {
				if trigger.Trigger != nil && trigger.Trigger.TriggerType == models.TriggerTypeSchedule && trigger.Trigger.Schedule != "" {
					refs = append(refs, scheduler.ScheduleRef{
						WorkflowID: wf.ID,
						StepID:     trigger.ID,
						Expression: trigger.Trigger.Schedule,
					})
				}
			}
		}

		if !page.HasNextPage {
			return refs, nil
		}

		offset += len(page.Workflows)
	}
}

// mutate loads a workflow, applies fn to a graph store over it and saves the result.
func (w *Workflow) mutate(ctx context.Context, workflowID string, fn func(store *graph.Store) error) (*models.Workflow, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	wf, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	store := graph.NewStore(wf)
	if err := fn(store); err != nil {
		return nil, err
	}

	updated := store.Workflow()

	if err := w.persistence.WorkflowRepository().Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return updated, nil
}

// rebuild copies workflow into a fresh draft with id, routing steps and edges through a graph store.
func rebuild(id string, workflow *models.Workflow) (*models.Workflow, error) {
	draft := models.NewWorkflow(id, workflow.Name)
	draft.Description = workflow.Description
	draft.Category = workflow.Category
	draft.TimeSavedPerRunHours = workflow.TimeSavedPerRunHours

	if workflow.Variables != nil {
		draft.Variables = models.CloneData(workflow.Variables)
	}

	if workflow.Settings != (models.Settings{}) {
		draft.Settings = workflow.Settings
	}

	store := graph.NewStore(draft)

	for _, step := range workflow.Steps {
		if step != nil && step.ID == "" {
			step.ID = uuid.New().String()
		}

		if err := store.AddStep(step); err != nil {
			return nil, err
		}
	}

	for _, step := range workflow.Steps {
		for _, next := range step.NextStepIDs {
			if err := store.Connect(step.ID, next); err != nil {
				return nil, err
			}
		}
	}

	return store.Workflow(), nil
}

func validStatus(status models.WorkflowStatus) bool {
	switch status {
	case models.WorkflowStatusDraft, models.WorkflowStatusActive, models.WorkflowStatusPaused, models.WorkflowStatusError:
		return true
	}

	return false
}
