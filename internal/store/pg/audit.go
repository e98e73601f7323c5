package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"bizhub.io/internal/audit"
)

func (s *Store) AppendAuditEvent(ctx context.Context, evt audit.Event) error {
	if s.db == nil {
		return errNoDB
	}
	data := []byte("{}")
	if len(evt.EventData) > 0 {
		bytes, err := json.Marshal(evt.EventData)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		data = bytes
	}
	_, err := s.db.ExecContext(ctx, `
		insert into security_audit_events (id, occurred_at, actor_user_id, event_type, severity, risk_score, request_id, event_data)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, evt.ID, evt.OccurredAt, evt.ActorUserID, evt.EventType, string(evt.Severity), evt.RiskScore, nullIfEmpty(evt.RequestID), data)
	return err
}
