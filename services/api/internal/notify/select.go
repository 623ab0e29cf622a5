package notify

import (
	"context"
	"log/slog"
)

// Notifier is implemented by every delivery channel in this package.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// New picks Telegram when both credentials are set and otherwise falls back to
// the logger. The fallback is reported on logger.
func New(token, chatID string, logger *slog.Logger, opts ...TelegramOption) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	tg, err := NewTelegram(token, chatID, opts...)
	if err != nil {
		logger.Warn("telegram not configured, notifications go to the log", "error", err)
		return NewLog(logger)
	}
	return tg
}
