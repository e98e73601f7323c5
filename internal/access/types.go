package access

import (
	"fmt"
	"strings"
	"time"

	"bizhub.io/internal/permission"
)

// SettingAllowedDomains is the settings key holding AllowedDomainsConfig.
const SettingAllowedDomains = "allowed_email_domains"

// AllowedDomainsConfig restricts self-service registration by email domain.
type AllowedDomainsConfig struct {
	Domains       []string `json:"domains"`
	RequireDomain bool     `json:"requireDomain"`
}

// DefaultAllowedDomains is the permissive configuration used when none is stored.
func DefaultAllowedDomains() AllowedDomainsConfig {
	return AllowedDomainsConfig{Domains: []string{}, RequireDomain: false}
}

// InvitationStatus is the invitation lifecycle state.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRevoked  InvitationStatus = "revoked"
	InvitationExpired  InvitationStatus = "expired"
)

// Valid reports whether s is a known status.
func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationPending, InvitationAccepted, InvitationRevoked, InvitationExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s InvitationStatus) Terminal() bool {
	return s == InvitationAccepted || s == InvitationRevoked || s == InvitationExpired
}

// ParseInvitationStatus validates a status filter value.
func ParseInvitationStatus(raw string) (InvitationStatus, error) {
	s := InvitationStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown invitation status %q", ErrInvalidInput, raw)
	}
	return s, nil
}

// Invitation grants one email address the right to register with a role.
type Invitation struct {
	ID               string           `json:"id"`
	Token            string           `json:"token"`
	Email            string           `json:"email"`
	Role             permission.Role  `json:"role"`
	InvitedBy        string           `json:"invited_by"`
	ExpiresAt        time.Time        `json:"expires_at"`
	Status           InvitationStatus `json:"status"`
	Notes            string           `json:"notes,omitempty"`
	AcceptedAt       *time.Time       `json:"accepted_at,omitempty"`
	AcceptedByUserID string           `json:"accepted_by_user_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Expired reports whether the invitation's expiry has passed at now.
func (inv Invitation) Expired(now time.Time) bool {
	return now.After(inv.ExpiresAt)
}

// InvitationRequest describes a new invitation. Zero ExpiresInDays means the
// service default; empty Role means employee.
type InvitationRequest struct {
	Email         string
	Role          permission.Role
	InvitedBy     string
	ExpiresInDays int
	Notes         string
}

// InvitationReceipt is returned to the inviter.
type InvitationReceipt struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InvitationFilter narrows Invitations. Expired rows (by expires_at) are
// hidden unless IncludeExpired is set.
type InvitationFilter struct {
	Status         InvitationStatus
	InvitedBy      string
	IncludeExpired bool
}

// Validation is the structured result of ValidateInvitation.
type Validation struct {
	Valid      bool        `json:"valid"`
	Invitation *Invitation `json:"invitation,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// Decision is the registration gate result. Reason is safe to show to end users.
type Decision struct {
	Allowed    bool        `json:"allowed"`
	Reason     string      `json:"reason"`
	Code       string      `json:"code"`
	Invitation *Invitation `json:"invitation,omitempty"`
}
