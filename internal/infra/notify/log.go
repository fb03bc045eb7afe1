package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes alerts to the structured log. Used when no channel is
// configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log.With("component", "notify")}
}

func (l *LogNotifier) Send(_ context.Context, text string) error {
	l.log.Warn("ALERT", "text", text)
	return nil
}
