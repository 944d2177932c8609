package mocks

import (
	"context"

	"github.com/iverton053/ivertonai.com-sub010/pkg/events"
	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockActionInvoker is a mock implementation of protocol.ActionInvoker interface.
type MockActionInvoker struct {
	mock.Mock
}

func (m *MockActionInvoker) Invoke(ctx context.Context, actionType models.ActionType, service string, params map[string]any) (map[string]any, error) {
	args := m.Called(ctx, actionType, service, params)

	var output map[string]any
	if args.Get(0) != nil {
		output = args.Get(0).(map[string]any)
	}

	return output, args.Error(1)
}

// MockNotificationEmitter is a mock implementation of protocol.NotificationEmitter interface.
type MockNotificationEmitter struct {
	mock.Mock
}

func (m *MockNotificationEmitter) Notify(ctx context.Context, event events.Event) {
	m.Called(ctx, event)
}
