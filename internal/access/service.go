// Package access implements the access control service: email-domain
// restricted signup, invitation lifecycle and the registration gate.
package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bizhub.io/internal/audit"
	"bizhub.io/internal/ids"
	"bizhub.io/internal/obs"
)

const (
	defaultInvitationExpiry = 7 * 24 * time.Hour
	featureTag              = "access_control"
)

// Service evaluates access decisions against persisted configuration.
type Service struct {
	store         Store
	audit         audit.Sink
	logger        *slog.Logger
	now           func() time.Time
	newToken      func() (string, error)
	defaultExpiry time.Duration
}

// Option configures Service behavior.
type Option func(*Service) error

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithAuditSink sets where security audit events are written.
func WithAuditSink(sink audit.Sink) Option {
	return func(s *Service) error {
		if sink != nil {
			s.audit = sink
		}
		return nil
	}
}

// WithLogger sets the error-tracking logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithTokenGenerator replaces the invitation token source.
func WithTokenGenerator(fn func() (string, error)) Option {
	return func(s *Service) error {
		if fn != nil {
			s.newToken = fn
		}
		return nil
	}
}

// WithDefaultExpiry overrides the invitation lifetime used when a request does not set one.
func WithDefaultExpiry(d time.Duration) Option {
	return func(s *Service) error {
		if d <= 0 {
			return errors.New("access: default expiry must be positive")
		}
		s.defaultExpiry = d
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("access: store is required")
	}
	svc := &Service{
		store:         store,
		audit:         audit.LogSink{},
		logger:        obs.Logger(),
		now:           time.Now,
		newToken:      func() (string, error) { return ids.NewToken(ids.MinTokenBytes) },
		defaultExpiry: defaultInvitationExpiry,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// record writes an audit event; sink failures are logged and swallowed.
func (s *Service) record(ctx context.Context, evt audit.Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = s.now().UTC()
	}
	if err := s.audit.Record(ctx, evt); err != nil {
		s.logger.WarnContext(ctx, "audit write failed",
			slog.String("feature", featureTag),
			slog.String("event", evt.EventType),
			slog.String("actor", evt.ActorUserID),
			slog.Any("error", err),
		)
	}
}
