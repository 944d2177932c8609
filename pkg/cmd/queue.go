package cmd

import (
	"fmt"
	"log/slog"

	"github.com/iverton053/ivertonai.com-sub010/pkg/protocol"
	"github.com/iverton053/ivertonai.com-sub010/pkg/scheduler"
)

// NewResumeQueue returns a redis backed queue when redisURL is set, an
// in-process one otherwise. The in-process queue only serves a scheduler
// running in the same process.
func NewResumeQueue(redisURL string, logger *slog.Logger) (protocol.ResumeQueue, func() error, error) {
	if redisURL == "" {
		return scheduler.NewMemoryQueue(), func() error { return nil }, nil
	}

	client, err := scheduler.NewRedisClient(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return scheduler.NewRedisQueue(client, scheduler.DefaultRedisKey, logger), client.Close, nil
}
