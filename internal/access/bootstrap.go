package access

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bizhub.io/internal/audit"
	"bizhub.io/internal/ids"
	"bizhub.io/internal/permission"
)

// UserCreator is implemented by stores that can insert account rows.
type UserCreator interface {
	CreateUser(ctx context.Context, id, email string, role permission.Role, dept permission.Department) error
}

// EnsureBootstrapAdmin creates a super_admin for email when no account
// exists yet. It reports whether a user was created.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, email string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := EmailDomain(email); !ok {
		return false, fmt.Errorf("%w: bootstrap email", ErrInvalidInput)
	}
	creator, ok := s.store.(UserCreator)
	if !ok {
		return false, fmt.Errorf("access: store %T cannot create users", s.store)
	}
	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	id := ids.New()
	if err := creator.CreateUser(ctx, id, email, permission.RoleSuperAdmin, permission.DepartmentAdmin); err != nil {
		return false, fmt.Errorf("create bootstrap admin: %w", err)
	}
	s.logger.InfoContext(ctx, "bootstrap admin created",
		slog.String("feature", featureTag),
		slog.String("user_id", id),
	)
	s.record(ctx, audit.Event{
		ActorUserID: id,
		EventType:   "user.bootstrap_admin",
		Severity:    audit.SeverityHigh,
		RiskScore:   60,
		EventData:   map[string]any{"email": email},
	})
	return true, nil
}
