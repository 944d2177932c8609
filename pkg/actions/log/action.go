// Package log implements the log action.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Action writes the message parameter to the logger.
type Action struct {
	logger *slog.Logger
}

func NewAction(logger *slog.Logger) *Action {
	return &Action{logger: logger.With("action_type", "log")}
}

// Execute logs params["message"] at params["level"] (default info).
func (a *Action) Execute(ctx context.Context, service string, params map[string]any) (map[string]any, error) {
	message := fmt.Sprint(params["message"])
	if params["message"] == nil {
		message = "workflow log step"
	}

	levelName, _ := params["level"].(string)

	var level slog.Level

	switch strings.ToLower(levelName) {
	case "", "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", levelName)
	}

	a.logger.Log(ctx, level, message, "service", service)

	return map[string]any{
		"logged":  true,
		"message": message,
		"level":   level.String(),
	}, nil
}
