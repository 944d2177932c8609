// Package persistence provides data storage abstraction layer for workflows and execution traces.
package persistence

import (
	"context"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
)

// Persistence is a storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	TraceRepository() TraceRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	// GetByID returns ErrWorkflowNotFound when no workflow has the id.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

// TraceRepository stores execution traces. A sealed trace is immutable: saving
// over it returns ErrTraceSealed.
type TraceRepository interface {
	SaveTrace(ctx context.Context, trace *models.ExecutionTrace) error
	// GetTrace returns ErrTraceNotFound when no trace has the id.
	GetTrace(ctx context.Context, id string) (*models.ExecutionTrace, error)
	// TracesByWorkflow returns the traces of a workflow ordered by start time.
	TracesByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionTrace, error)
	// RunningTraces returns every unsealed trace, ordered by start time.
	RunningTraces(ctx context.Context) ([]*models.ExecutionTrace, error)
}

// Sort fields accepted by ListWorkflows.
const (
	SortByCreatedAt = "created_at"
	SortByUpdatedAt = "updated_at"
	SortByName      = "name"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListWorkflowsOptions filters and paginates ListWorkflows.
type ListWorkflowsOptions struct {
	Status   *models.WorkflowStatus
	Category string

	Limit  int
	Offset int

	SortBy    string
	SortOrder string // "asc" or "desc"
}

// Normalize applies defaults and rejects unknown sort fields.
func (o ListWorkflowsOptions) Normalize() (ListWorkflowsOptions, error) {
	if o.Limit <= 0 || o.Limit > MaxListLimit {
		o.Limit = DefaultListLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	if o.SortBy == "" {
		o.SortBy = SortByCreatedAt
	}

	if o.SortOrder == "" {
		o.SortOrder = "desc"
	}

	switch o.SortBy {
	case SortByCreatedAt, SortByUpdatedAt, SortByName:
	default:
		return o, NewInvalidOptionError("sort_by", o.SortBy)
	}

	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		return o, NewInvalidOptionError("sort_order", o.SortOrder)
	}

	return o, nil
}

// WorkflowListResult is one page of workflows.
type WorkflowListResult struct {
	Workflows   []*models.Workflow
	TotalCount  int64
	HasNextPage bool
}
