// Package memory is an in-process implementation of the access stores, used
// for tests and single-node development runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bizhub.io/internal/access"
	"bizhub.io/internal/audit"
	"bizhub.io/internal/permission"
)

// User is the minimal account row the access service counts.
type User struct {
	ID         string
	Email      string
	Role       permission.Role
	Department permission.Department
	CreatedAt  time.Time
}

type setting struct {
	value     []byte
	updatedBy string
}

// Store implements access.Store and audit.Appender with in-process
// concurrency safety.
type Store struct {
	mu          sync.RWMutex
	settings    map[string]setting
	invitations map[string]access.Invitation // token -> invitation
	users       map[string]User
	overrides   map[string]map[permission.Permission]permission.Effect
	events      []audit.Event
}

var (
	_ access.Store       = (*Store)(nil)
	_ access.UserCreator = (*Store)(nil)
	_ audit.Appender     = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		settings:    make(map[string]setting),
		invitations: make(map[string]access.Invitation),
		users:       make(map[string]User),
		overrides:   make(map[string]map[permission.Permission]permission.Effect),
	}
}

func (s *Store) Setting(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.settings[key]
	if !ok {
		return nil, access.ErrNotFound
	}
	return append([]byte(nil), row.value...), nil
}

func (s *Store) PutSetting(ctx context.Context, key string, value []byte, updatedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = setting{value: append([]byte(nil), value...), updatedBy: updatedBy}
	return nil
}

func (s *Store) CreateInvitation(ctx context.Context, inv access.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invitations[inv.Token]; ok {
		return access.ErrConflict
	}
	s.invitations[inv.Token] = inv
	return nil
}

func (s *Store) InvitationByToken(ctx context.Context, token string) (access.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invitations[token]
	if !ok {
		return access.Invitation{}, access.ErrNotFound
	}
	return copyInvitation(inv), nil
}

// ListInvitations returns matches newest first.
func (s *Store) ListInvitations(ctx context.Context, filter access.InvitationFilter, now time.Time) ([]access.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]access.Invitation, 0, len(s.invitations))
	for _, inv := range s.invitations {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		if filter.InvitedBy != "" && inv.InvitedBy != filter.InvitedBy {
			continue
		}
		if !filter.IncludeExpired && inv.Expired(now) {
			continue
		}
		out = append(out, copyInvitation(inv))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) MarkInvitationExpired(ctx context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[token]
	if !ok {
		return access.ErrNotFound
	}
	if inv.Status == access.InvitationPending {
		inv.Status = access.InvitationExpired
		inv.UpdatedAt = at
		s.invitations[token] = inv
	}
	return nil
}

func (s *Store) AcceptInvitation(ctx context.Context, token, userID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[token]
	if !ok || inv.Status != access.InvitationPending || inv.Expired(at) {
		return false, nil
	}
	accepted := at
	inv.Status = access.InvitationAccepted
	inv.AcceptedAt = &accepted
	inv.AcceptedByUserID = userID
	inv.UpdatedAt = at
	s.invitations[token] = inv
	return true, nil
}

func (s *Store) RevokeInvitation(ctx context.Context, token string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invitations[token]
	if !ok || inv.Status != access.InvitationPending {
		return false, nil
	}
	inv.Status = access.InvitationRevoked
	inv.UpdatedAt = at
	s.invitations[token] = inv
	return true, nil
}

func (s *Store) ExpirePendingInvitations(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for token, inv := range s.invitations {
		if inv.Status != access.InvitationPending || !inv.ExpiresAt.Before(before) {
			continue
		}
		inv.Status = access.InvitationExpired
		inv.UpdatedAt = before
		s.invitations[token] = inv
		n++
	}
	return n, nil
}

// AddUser registers an account row. Email is unique case-insensitively.
func (s *Store) AddUser(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return access.ErrConflict
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return access.ErrConflict
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	return nil
}

// CreateUser registers an account with a lower-cased email.
func (s *Store) CreateUser(ctx context.Context, id, email string, role permission.Role, dept permission.Department) error {
	return s.AddUser(ctx, User{
		ID:         id,
		Email:      strings.ToLower(strings.TrimSpace(email)),
		Role:       role,
		Department: dept,
	})
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// PermissionOverrides returns the user's overrides ordered by permission.
func (s *Store) PermissionOverrides(ctx context.Context, userID string) ([]permission.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byPerm := s.overrides[userID]
	out := make([]permission.Override, 0, len(byPerm))
	for p, e := range byPerm {
		out = append(out, permission.Override{Permission: p, Effect: e})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Permission.String() < out[j].Permission.String() })
	return out, nil
}

func (s *Store) PutPermissionOverride(ctx context.Context, userID string, o permission.Override, setBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPerm, ok := s.overrides[userID]
	if !ok {
		byPerm = make(map[permission.Permission]permission.Effect)
		s.overrides[userID] = byPerm
	}
	byPerm[o.Permission] = o.Effect
	return nil
}

func (s *Store) DeletePermissionOverride(ctx context.Context, userID string, p permission.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPerm := s.overrides[userID]
	if _, ok := byPerm[p]; !ok {
		return access.ErrNotFound
	}
	delete(byPerm, p)
	if len(byPerm) == 0 {
		delete(s.overrides, userID)
	}
	return nil
}

func (s *Store) AppendAuditEvent(ctx context.Context, evt audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

// AuditEvents returns a copy of every appended event in order.
func (s *Store) AuditEvents() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event(nil), s.events...)
}

func copyInvitation(inv access.Invitation) access.Invitation {
	if inv.AcceptedAt != nil {
		at := *inv.AcceptedAt
		inv.AcceptedAt = &at
	}
	return inv
}
