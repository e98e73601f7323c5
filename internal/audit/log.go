package audit

import (
	"context"
	"log/slog"
	"time"

	"bizhub.io/internal/obs"
)

// LogSink writes audit events as structured log entries.
type LogSink struct {
	Logger *slog.Logger
}

// Record emits one "audit" log entry.
func (s LogSink) Record(ctx context.Context, evt Event) error {
	evt, err := prepare(ctx, evt, time.Now())
	if err != nil {
		return err
	}
	logger := s.Logger
	if logger == nil {
		logger = obs.Logger()
	}
	attrs := []any{
		slog.String("type", "audit"),
		slog.String("event", evt.EventType),
		slog.String("severity", string(evt.Severity)),
		slog.Int("risk_score", evt.RiskScore),
		slog.String("actor_user_id", evt.ActorUserID),
		slog.Any("fields", evt.EventData),
	}
	if evt.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", evt.RequestID))
	}
	logger.InfoContext(ctx, "audit", attrs...)
	return nil
}
