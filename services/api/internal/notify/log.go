package notify

import (
	"context"
	"log/slog"
)

// Log writes notifications to a structured logger. It is used when no chat is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(ctx context.Context, message string) error {
	l.logger.InfoContext(ctx, "notification", "message", message)
	return nil
}
