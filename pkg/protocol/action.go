// Package protocol defines the collaborators the workflow core talks to.
package protocol

import (
	"context"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
)

// ActionInvoker performs the side effect of an action step. Errors are treated
// as transient and retried according to the workflow settings.
type ActionInvoker interface {
	Invoke(ctx context.Context, actionType models.ActionType, service string, params map[string]any) (map[string]any, error)
}

// ActionInvokerFunc adapts a function to ActionInvoker.
type ActionInvokerFunc func(ctx context.Context, actionType models.ActionType, service string, params map[string]any) (map[string]any, error)

func (f ActionInvokerFunc) Invoke(ctx context.Context, actionType models.ActionType, service string, params map[string]any) (map[string]any, error) {
	return f(ctx, actionType, service, params)
}

// ActionHandler executes one action type on behalf of an ActionInvoker.
type ActionHandler interface {
	Execute(ctx context.Context, service string, params map[string]any) (map[string]any, error)
}

// ActionHandlerFunc adapts a function to ActionHandler.
type ActionHandlerFunc func(ctx context.Context, service string, params map[string]any) (map[string]any, error)

func (f ActionHandlerFunc) Execute(ctx context.Context, service string, params map[string]any) (map[string]any, error) {
	return f(ctx, service, params)
}
