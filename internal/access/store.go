package access

import (
	"context"
	"time"

	"bizhub.io/internal/permission"
)

// SettingsStore persists keyed JSON settings rows.
type SettingsStore interface {
	// Setting returns ErrNotFound when key has never been written.
	Setting(ctx context.Context, key string) ([]byte, error)
	PutSetting(ctx context.Context, key string, value []byte, updatedBy string) error
}

// InvitationStore persists invitations keyed by token. The conditional
// transitions report false when the row exists but was not pending.
type InvitationStore interface {
	CreateInvitation(ctx context.Context, inv Invitation) error
	InvitationByToken(ctx context.Context, token string) (Invitation, error)
	ListInvitations(ctx context.Context, filter InvitationFilter, now time.Time) ([]Invitation, error)
	MarkInvitationExpired(ctx context.Context, token string, at time.Time) error
	AcceptInvitation(ctx context.Context, token, userID string, at time.Time) (bool, error)
	RevokeInvitation(ctx context.Context, token string, at time.Time) (bool, error)
	ExpirePendingInvitations(ctx context.Context, before time.Time) (int, error)
}

// UserCounter reports how many user accounts exist.
type UserCounter interface {
	CountUsers(ctx context.Context) (int64, error)
}

// OverrideStore persists per-user permission exceptions.
type OverrideStore interface {
	PermissionOverrides(ctx context.Context, userID string) ([]permission.Override, error)
	PutPermissionOverride(ctx context.Context, userID string, o permission.Override, setBy string, at time.Time) error
	DeletePermissionOverride(ctx context.Context, userID string, p permission.Permission) error
}

// Store is everything the service needs from persistence.
type Store interface {
	SettingsStore
	InvitationStore
	UserCounter
	OverrideStore
}
