package audit

import (
	"context"
	"log/slog"
)

// LogStore writes audit events as structured log lines.
type LogStore struct {
	logger *slog.Logger
}

func NewLogStore(logger *slog.Logger) *LogStore {
	return &LogStore{logger: logger}
}

func (s *LogStore) Append(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "audit",
		"action", event.Action,
		"registration_id", event.RegistrationID,
		"email", event.Email,
		"reason", event.Reason,
		"request_id", event.RequestID,
		"timestamp", event.Timestamp,
	)
	return nil
}
