package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/persistence"
)

// TraceRepository handles execution trace file operations.
type TraceRepository struct {
	root string
	mu   sync.RWMutex
}

// NewTraceRepository creates a new trace repository.
func NewTraceRepository(root string) *TraceRepository {
	return &TraceRepository{root: root}
}

func (tr *TraceRepository) path(id string) string {
	return filepath.Join(tr.root, executionsDir, id+".json")
}

// SaveTrace writes the trace unless the stored copy is already sealed.
func (tr *TraceRepository) SaveTrace(_ context.Context, trace *models.ExecutionTrace) error {
	if err := validateID(trace.ID); err != nil {
		return persistence.NewTraceError("SaveTrace", trace.ID, err)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	existing, err := tr.read(trace.ID)

	switch {
	case err == nil && existing.Status.Sealed():
		return persistence.NewTraceError("SaveTrace", trace.ID, persistence.ErrTraceSealed)
	case err != nil && !persistence.IsTraceNotFound(err):
		return err
	}

	if err := os.MkdirAll(filepath.Join(tr.root, executionsDir), 0750); err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", trace.ID, err)
	}

	return writeFile(tr.path(trace.ID), data)
}

// GetTrace retrieves a trace by id.
func (tr *TraceRepository) GetTrace(_ context.Context, id string) (*models.ExecutionTrace, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewTraceError("GetTrace", id, err)
	}

	tr.mu.RLock()
	defer tr.mu.RUnlock()

	return tr.read(id)
}

func (tr *TraceRepository) read(id string) (*models.ExecutionTrace, error) {
	body, err := os.ReadFile(tr.path(id))
	if err != nil {
		if isNotExist(err) {
			return nil, persistence.NewTraceError("GetTrace", id, persistence.ErrTraceNotFound)
		}

		return nil, fmt.Errorf("failed to read execution %s: %w", id, err)
	}

	var trace models.ExecutionTrace

	if err := json.Unmarshal(body, &trace); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}

	return &trace, nil
}

// TracesByWorkflow returns the traces of one workflow ordered by start time.
func (tr *TraceRepository) TracesByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionTrace, error) {
	return tr.filter(ctx, func(trace *models.ExecutionTrace) bool {
		return trace.WorkflowID == workflowID
	})
}

// RunningTraces returns every trace that is not sealed.
func (tr *TraceRepository) RunningTraces(ctx context.Context) ([]*models.ExecutionTrace, error) {
	return tr.filter(ctx, func(trace *models.ExecutionTrace) bool {
		return !trace.Status.Sealed()
	})
}

func (tr *TraceRepository) filter(ctx context.Context, keep func(*models.ExecutionTrace) bool) ([]*models.ExecutionTrace, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	jsonFiles, err := fs.Glob(os.DirFS(filepath.Join(tr.root, executionsDir)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	traces := make([]*models.ExecutionTrace, 0)

	for _, file := range jsonFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		trace, err := tr.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if keep(trace) {
			traces = append(traces, trace)
		}
	}

	sort.SliceStable(traces, func(i, j int) bool {
		if !traces[i].StartedAt.Equal(traces[j].StartedAt) {
			return traces[i].StartedAt.Before(traces[j].StartedAt)
		}

		return traces[i].ID < traces[j].ID
	})

	return traces, nil
}
