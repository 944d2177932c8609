package cmd

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/iverton053/ivertonai.com-sub010/pkg/models"
	"github.com/iverton053/ivertonai.com-sub010/pkg/persistence/file"
	"github.com/iverton053/ivertonai.com-sub010/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := []struct {
		url      string
		provider string
		location string
	}{
		{"./data", "file", "./data"},
		{"file://./data", "file", "./data"},
		{"postgres://user@localhost/iverton", "postgres", "user@localhost/iverton"},
		{"postgresql://localhost/iverton", "postgresql", "localhost/iverton"},
		{"mongodb://localhost", "file", "mongodb://localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			provider, location := parsePersistenceProvider(tt.url)
			assert.Equal(t, tt.provider, provider)
			assert.Equal(t, tt.location, location)
		})
	}
}

func TestNewPersistence_File(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")

	p, err := NewPersistence(context.Background(), slog.Default(), "file://"+root)
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)
	assert.NoError(t, p.Close(context.Background()))
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("gochannel", "", slog.Default())
	require.NoError(t, err)
	assert.NotEmpty(t, bus.GenerateID())
	assert.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", " , ", slog.Default())
	assert.Error(t, err)

	_, err = NewEventBus("rabbitmq", "", slog.Default())
	assert.ErrorContains(t, err, "unsupported event bus provider")
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry(slog.Default())

	types := reg.Types()
	assert.Contains(t, types, models.ActionTypeWebhook)
	assert.Contains(t, types, models.ActionTypeLog)
	assert.Contains(t, types, models.ActionTypeSendEmail)
	assert.Len(t, types, 12)

	output, err := reg.Invoke(context.Background(), models.ActionTypeSendEmail, "sendgrid", map[string]any{"to": "jane@acme.io"})
	require.NoError(t, err)
	assert.Equal(t, "simulated", output["status"])
}

func TestNewResumeQueue(t *testing.T) {
	queue, closeQueue, err := NewResumeQueue("", slog.Default())
	require.NoError(t, err)
	assert.IsType(t, &scheduler.MemoryQueue{}, queue)
	assert.NoError(t, closeQueue())

	_, _, err = NewResumeQueue("not a url", slog.Default())
	assert.Error(t, err)
}
