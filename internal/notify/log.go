package notify

import (
	"context"
	"log/slog"
)

// Log writes events to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a notifier that logs events.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("notifier", "log")}
}

func (l *Log) Notify(ctx context.Context, e Event) error {
	level := slog.LevelInfo
	if e.Kind != KindSuccess {
		level = slog.LevelWarn
	}

	l.logger.Log(
		ctx, level, e.Title,
		"batch_id", e.BatchID,
		"kind", e.Kind,
		"message", e.Message,
		"total", e.Total,
		"succeeded", e.Succeeded,
		"failed", e.Failed,
		"cancelled", e.Cancelled,
		"interrupted", e.Interrupted,
	)
	return nil
}
