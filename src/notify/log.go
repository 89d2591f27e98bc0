package notify

import (
	"context"
	"log/slog"

	"budgee-monitor/src/monitor"
)

// LogDispatcher writes one structured log line per notification.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Name() string { return "log" }

func (d *LogDispatcher) Dispatch(ctx context.Context, n monitor.Notification) error {
	d.logger.InfoContext(ctx, "Notification",
		"notification_id", n.ID,
		"pass_id", n.PassID,
		"user_id", n.UserID,
		"kind", n.Kind,
		"occurred_at", n.OccurredAt,
		"payload", n.Payload)
	return nil
}
