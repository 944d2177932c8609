package protocol

import (
	"context"

	"github.com/iverton053/ivertonai.com-sub010/pkg/events"
)

// NotificationEmitter publishes events fire-and-forget. Implementations log
// their own failures; callers never see them.
type NotificationEmitter interface {
	Notify(ctx context.Context, event events.Event)
}

// NopEmitter drops every event.
type NopEmitter struct{}

func (NopEmitter) Notify(context.Context, events.Event) {}
