// Package audit records security audit events. Sinks are fire-and-forget from
// the caller's perspective: a failed write is reported back as an error for
// logging but never blocks the operation that produced the event.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Severity grades an audit event.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Event is a single security audit record.
type Event struct {
	ID          string         `json:"id"`
	OccurredAt  time.Time      `json:"occurred_at"`
	ActorUserID string         `json:"actor_user_id"`
	EventType   string         `json:"event_type"`
	Severity    Severity       `json:"severity"`
	RiskScore   int            `json:"risk_score"`
	RequestID   string         `json:"request_id,omitempty"`
	EventData   map[string]any `json:"event_data"`
}

// Sink accepts audit events.
type Sink interface {
	Record(ctx context.Context, evt Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, evt Event) error

func (f SinkFunc) Record(ctx context.Context, evt Event) error { return f(ctx, evt) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })

var errEventType = errors.New("audit: event type is required")

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Multi fans an event out to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, evt Event) error {
		var errs []error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Record(ctx, evt); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

func prepare(ctx context.Context, evt Event, now time.Time) (Event, error) {
	evt.EventType = strings.TrimSpace(evt.EventType)
	if evt.EventType == "" {
		return Event{}, errEventType
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = now.UTC()
	}
	if evt.Severity == "" {
		evt.Severity = SeverityLow
	}
	if evt.RequestID == "" {
		evt.RequestID = RequestIDFromContext(ctx)
	}
	copied := make(map[string]any, len(evt.EventData))
	for k, v := range evt.EventData {
		copied[k] = v
	}
	evt.EventData = copied
	return evt, nil
}
