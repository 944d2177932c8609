package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/persistence"
)

// TraceRepository stores execution traces as JSONB documents with indexed status columns.
type TraceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTraceRepository creates a new trace repository.
func NewTraceRepository(db *sql.DB, logger *slog.Logger) *TraceRepository {
	return &TraceRepository{db: db, logger: logger}
}

// SaveTrace upserts the trace. The update only applies while the stored row is running.
func (r *TraceRepository) SaveTrace(ctx context.Context, trace *models.ExecutionTrace) error {
	if trace.ID == "" {
		return persistence.NewTraceError("SaveTrace", trace.ID, persistence.ErrInvalidID)
	}

	data, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", trace.ID, err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO execution_traces (id, workflow_id, status, started_at, completed_at, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
		WHERE execution_traces.status = 'running'
	`, trace.ID, trace.WorkflowID, string(trace.Status), trace.StartedAt, trace.CompletedAt, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", trace.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewTraceError("SaveTrace", trace.ID, persistence.ErrTraceSealed)
	}

	return nil
}

// GetTrace loads one trace.
func (r *TraceRepository) GetTrace(ctx context.Context, id string) (*models.ExecutionTrace, error) {
	var data []byte

	err := r.db.QueryRowContext(ctx, "SELECT data FROM execution_traces WHERE id = $1", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewTraceError("GetTrace", id, persistence.ErrTraceNotFound)
		}

		return nil, fmt.Errorf("failed to query execution %s: %w", id, err)
	}

	return decodeTrace(id, data)
}

// TracesByWorkflow returns the traces of a workflow ordered by start time.
func (r *TraceRepository) TracesByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionTrace, error) {
	return r.query(ctx, "SELECT id, data FROM execution_traces WHERE workflow_id = $1 ORDER BY started_at, id", workflowID)
}

// RunningTraces returns every unsealed trace.
func (r *TraceRepository) RunningTraces(ctx context.Context) ([]*models.ExecutionTrace, error) {
	return r.query(ctx, "SELECT id, data FROM execution_traces WHERE status = 'running' ORDER BY started_at, id")
}

func (r *TraceRepository) query(ctx context.Context, query string, args ...any) ([]*models.ExecutionTrace, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	traces := make([]*models.ExecutionTrace, 0)

	for rows.Next() {
		var (
			id   string
			data []byte
		)

		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		trace, err := decodeTrace(id, data)
		if err != nil {
			return nil, err
		}

		traces = append(traces, trace)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return traces, nil
}

func decodeTrace(id string, data []byte) (*models.ExecutionTrace, error) {
	var trace models.ExecutionTrace

	if err := json.Unmarshal(data, &trace); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	return &trace, nil
}
