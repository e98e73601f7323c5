package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bizhub.io/internal/audit"
	"bizhub.io/internal/permission"
)

// ResolvePermissions returns the user's role template permissions with their
// stored overrides applied.
func (s *Service) ResolvePermissions(ctx context.Context, userID string, role permission.Role, dept permission.Department) (permission.Set, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if role == permission.RoleSuperAdmin {
		return permission.UserPermissions(role, dept), nil
	}
	overrides, err := s.store.PermissionOverrides(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: permission overrides", ErrRetrieveFailed)
	}
	return permission.EffectivePermissions(role, dept, overrides), nil
}

// SetPermissionOverride grants or denies one permission for a user on top of
// their role template.
func (s *Service) SetPermissionOverride(ctx context.Context, userID string, o permission.Override, setBy string) error {
	userID = strings.TrimSpace(userID)
	setBy = strings.TrimSpace(setBy)
	if userID == "" || setBy == "" {
		return fmt.Errorf("%w: user_id and set_by are required", ErrInvalidInput)
	}
	if !o.Effect.Valid() {
		return fmt.Errorf("%w: unknown effect %q", ErrInvalidInput, o.Effect)
	}
	if !o.Permission.Department.Valid() || !o.Permission.Resource.Valid() || !o.Permission.Action.Valid() {
		return fmt.Errorf("%w: malformed permission %s", ErrInvalidInput, o.Permission)
	}
	if err := s.store.PutPermissionOverride(ctx, userID, o, setBy, s.now().UTC()); err != nil {
		return fmt.Errorf("%w: permission override", ErrUpdateFailed)
	}

	severity, risk := audit.SeverityMedium, 40
	if o.Effect == permission.EffectGrant && permission.IsSensitiveResource(o.Permission.Resource) {
		severity, risk = audit.SeverityHigh, 80
	}
	s.record(ctx, audit.Event{
		ActorUserID: setBy,
		EventType:   "permission.override.set",
		Severity:    severity,
		RiskScore:   risk,
		EventData: map[string]any{
			"user_id":    userID,
			"permission": o.Permission.String(),
			"effect":     string(o.Effect),
		},
	})
	return nil
}

// RemovePermissionOverride deletes one override.
func (s *Service) RemovePermissionOverride(ctx context.Context, userID string, p permission.Permission, removedBy string) error {
	userID = strings.TrimSpace(userID)
	removedBy = strings.TrimSpace(removedBy)
	if userID == "" || removedBy == "" {
		return fmt.Errorf("%w: user_id and removed_by are required", ErrInvalidInput)
	}
	if err := s.store.DeletePermissionOverride(ctx, userID, p); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: permission override", ErrNotFound)
		}
		return fmt.Errorf("%w: permission override", ErrUpdateFailed)
	}
	s.record(ctx, audit.Event{
		ActorUserID: removedBy,
		EventType:   "permission.override.removed",
		Severity:    audit.SeverityMedium,
		RiskScore:   30,
		EventData: map[string]any{
			"user_id":    userID,
			"permission": p.String(),
		},
	})
	return nil
}
