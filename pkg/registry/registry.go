// Package registry dispatches action invocations to the handler registered for their type.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/protocol"
)

var ErrActionNotRegistered = errors.New("action type not registered")

// Registry is a protocol.ActionInvoker backed by per-type handlers.
type Registry struct {
	logger   *slog.Logger
	mu       sync.RWMutex
	handlers map[models.ActionType]protocol.ActionHandler
	fallback protocol.ActionHandler
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:   log.With("module", "action_registry"),
		handlers: make(map[models.ActionType]protocol.ActionHandler),
	}
}

// RegisterAction binds handler to actionType, replacing any earlier binding.
func (r *Registry) RegisterAction(actionType models.ActionType, handler protocol.ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[actionType] = handler
}

// SetFallback sets the handler used for types without their own handler.
func (r *Registry) SetFallback(handler protocol.ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.fallback = handler
}

// Types lists the action types with a dedicated handler, sorted.
func (r *Registry) Types() []models.ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]models.ActionType, 0, len(r.handlers))
	for actionType := range r.handlers {
		types = append(types, actionType)
	}

	slices.Sort(types)

	return types
}

func (r *Registry) Invoke(ctx context.Context, actionType models.ActionType, service string, params map[string]any) (map[string]any, error) {
	r.mu.RLock()
	handler, ok := r.handlers[actionType]
	if !ok {
		handler = r.fallback
	}
	r.mu.RUnlock()

	if handler == nil {
		return nil, fmt.Errorf("%w: %s", ErrActionNotRegistered, actionType)
	}

	r.logger.DebugContext(ctx, "Invoking action", "action_type", actionType, "service", service)

	output, err := handler.Execute(ctx, service, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", actionType, err)
	}

	return output, nil
}
