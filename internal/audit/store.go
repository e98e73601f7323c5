package audit

import (
	"context"
	"fmt"
	"time"

	"bizhub.io/internal/ids"
)

// Appender persists audit events.
type Appender interface {
	AppendAuditEvent(ctx context.Context, evt Event) error
}

// StoreSink persists events through an Appender.
type StoreSink struct {
	Store Appender
	Now   func() time.Time
}

// Record assigns an id and timestamp and appends the event.
func (s StoreSink) Record(ctx context.Context, evt Event) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	evt, err := prepare(ctx, evt, now())
	if err != nil {
		return err
	}
	if evt.ID == "" {
		evt.ID = ids.New()
	}
	if err := s.Store.AppendAuditEvent(ctx, evt); err != nil {
		return fmt.Errorf("append audit event %s: %w", evt.EventType, err)
	}
	return nil
}
