package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// stepConfig is the kind-specific part of a step, stored as one JSONB column.
type stepConfig struct {
	Trigger   *models.TriggerConfig   `json:"trigger,omitempty"`
	Action    *models.ActionConfig    `json:"action,omitempty"`
	Condition *models.ConditionConfig `json:"condition,omitempty"`
	Delay     *models.DelayConfig     `json:"delay,omitempty"`
}

var sortColumns = map[string]string{
	persistence.SortByCreatedAt: "created_at",
	persistence.SortByUpdatedAt: "updated_at",
	persistence.SortByName:      "name",
}

const workflowColumns = `
	id
  , name
  , description
  , category
  , status
  , variables
  , settings
  , time_saved_per_run_hours
  , created_at
  , updated_at
`

type scanner interface {
	Scan(dest ...any) error
}

// ListWorkflows returns one page of workflows with their steps.
func (r *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return nil, err
	}

	where := []string{"deleted_at IS NULL"}
	args := []any{}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}

	if opts.Category != "" {
		args = append(args, opts.Category)
		where = append(where, "category = $"+strconv.Itoa(len(args)))
	}

	filter := strings.Join(where, " AND ")

	var totalCount int64

	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows WHERE "+filter, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	order := "ASC"
	if opts.SortOrder == "desc" {
		order = "DESC"
	}

	query := fmt.Sprintf("SELECT %s FROM workflows WHERE %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d",
		workflowColumns, filter, sortColumns[opts.SortBy], order, order, len(args)+1, len(args)+2)

	rows, err := r.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			closeRows(ctx, r.logger, rows)
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	closeRows(ctx, r.logger, rows)

	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	for _, workflow := range workflows {
		if err := r.loadSteps(ctx, workflow); err != nil {
			return nil, err
		}
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(workflows)) < totalCount,
	}, nil
}

// GetByID loads a workflow and its steps.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+workflowColumns+" FROM workflows WHERE id = $1 AND deleted_at IS NULL", id)

	workflow, err := r.scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if err := r.loadSteps(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Save upserts the workflow row and replaces its steps in one transaction.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	if workflow.ID == "" {
		return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrInvalidID)
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	variables, err := json.Marshal(orEmpty(workflow.Variables))
	if err != nil {
		return fmt.Errorf("failed to marshal variables: %w", err)
	}

	settings, err := json.Marshal(workflow.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (id, name, description, category, status, variables, settings,
			time_saved_per_run_hours, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			variables = EXCLUDED.variables,
			settings = EXCLUDED.settings,
			time_saved_per_run_hours = EXCLUDED.time_saved_per_run_hours,
			updated_at = EXCLUDED.updated_at,
			deleted_at = NULL
	`, workflow.ID, workflow.Name, workflow.Description, workflow.Category, string(workflow.Status),
		variables, settings, workflow.TimeSavedPerRunHours, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_steps WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to clear steps of workflow %s: %w", workflow.ID, err)
	}

	for position, step := range workflow.Steps {
		err = insertStep(ctx, tx, workflow.ID, position, step)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func insertStep(ctx context.Context, tx *sql.Tx, workflowID string, position int, step *models.Step) error {
	config, err := json.Marshal(stepConfig{
		Trigger:   step.Trigger,
		Action:    step.Action,
		Condition: step.Condition,
		Delay:     step.Delay,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal config of step %s: %w", step.ID, err)
	}

	next, err := json.Marshal(orEmptyIDs(step.NextStepIDs))
	if err != nil {
		return err
	}

	prev, err := json.Marshal(orEmptyIDs(step.PrevStepIDs))
	if err != nil {
		return err
	}

	stats, err := json.Marshal(step.Stats)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_steps (workflow_id, id, kind, name, config, next_step_ids, prev_step_ids,
			position_x, position_y, stats, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, workflowID, step.ID, string(step.Kind), step.Name, config, next, prev,
		step.PositionX, step.PositionY, stats, position)
	if err != nil {
		return fmt.Errorf("failed to save step %s: %w", step.ID, err)
	}

	return nil
}

// Delete soft deletes a workflow by setting its deleted_at timestamp.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

func (r *WorkflowRepository) scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow  models.Workflow
		status    string
		variables []byte
		settings  []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Category,
		&status,
		&variables,
		&settings,
		&workflow.TimeSavedPerRunHours,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.Status = models.WorkflowStatus(status)
	workflow.Steps = []*models.Step{}

	if err := json.Unmarshal(variables, &workflow.Variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}

	if err := json.Unmarshal(settings, &workflow.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	workflow.CreatedAt = workflow.CreatedAt.UTC()
	workflow.UpdatedAt = workflow.UpdatedAt.UTC()

	return &workflow, nil
}

func (r *WorkflowRepository) loadSteps(ctx context.Context, workflow *models.Workflow) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, name, config, next_step_ids, prev_step_ids, position_x, position_y, stats
		FROM workflow_steps
		WHERE workflow_id = $1
		ORDER BY sort_order
	`, workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to query steps of workflow %s: %w", workflow.ID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	for rows.Next() {
		var (
			step                      models.Step
			kind                      string
			config, next, prev, stats []byte
			cfg                       stepConfig
		)

		err := rows.Scan(&step.ID, &kind, &step.Name, &config, &next, &prev, &step.PositionX, &step.PositionY, &stats)
		if err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}

		step.Kind = models.StepKind(kind)

		if err := unmarshalColumns(step.ID,
			column{"config", config, &cfg},
			column{"next_step_ids", next, &step.NextStepIDs},
			column{"prev_step_ids", prev, &step.PrevStepIDs},
			column{"stats", stats, &step.Stats},
		); err != nil {
			return err
		}

		step.Trigger, step.Action, step.Condition, step.Delay = cfg.Trigger, cfg.Action, cfg.Condition, cfg.Delay
		workflow.Steps = append(workflow.Steps, &step)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating steps: %w", err)
	}

	return nil
}

type column struct {
	name   string
	raw    []byte
	target any
}

func unmarshalColumns(stepID string, columns ...column) error {
	for _, c := range columns {
		if err := json.Unmarshal(c.raw, c.target); err != nil {
			return fmt.Errorf("failed to unmarshal %s of step %s: %w", c.name, stepID, err)
		}
	}

	return nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}

func orEmptyIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}

	return ids
}
