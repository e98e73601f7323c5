package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bizhub.io/internal/audit"
	"bizhub.io/internal/ids"
	"bizhub.io/internal/obs"
	"bizhub.io/internal/permission"
)

// MaxInvitationDays bounds InvitationRequest.ExpiresInDays.
const MaxInvitationDays = 365

const (
	ReasonInvitationNotFound = "Invitation not found"
	ReasonInvitationExpired  = "Invitation expired"
	ReasonEmailMismatch      = "Email does not match invitation"
)

// CreateInvitation issues a pending invitation with an unguessable token.
func (s *Service) CreateInvitation(ctx context.Context, req InvitationRequest) (InvitationReceipt, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, ok := EmailDomain(email); !ok || strings.HasPrefix(email, "@") {
		return InvitationReceipt{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	invitedBy := strings.TrimSpace(req.InvitedBy)
	if invitedBy == "" {
		return InvitationReceipt{}, fmt.Errorf("%w: invited_by is required", ErrInvalidInput)
	}
	role := req.Role
	if role == "" {
		role = permission.RoleEmployee
	}
	if !role.Valid() {
		return InvitationReceipt{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if req.ExpiresInDays < 0 || req.ExpiresInDays > MaxInvitationDays {
		return InvitationReceipt{}, fmt.Errorf("%w: expires_in_days must be between 0 and %d", ErrInvalidInput, MaxInvitationDays)
	}
	lifetime := s.defaultExpiry
	if req.ExpiresInDays > 0 {
		lifetime = time.Duration(req.ExpiresInDays) * 24 * time.Hour
	}

	token, err := s.newToken()
	if err != nil {
		return InvitationReceipt{}, fmt.Errorf("generate invitation token: %w", err)
	}
	if len(token) < 32 {
		return InvitationReceipt{}, errors.New("access: invitation token shorter than 32 characters")
	}

	now := s.now().UTC()
	inv := Invitation{
		ID:        ids.New(),
		Token:     token,
		Email:     email,
		Role:      role,
		InvitedBy: invitedBy,
		ExpiresAt: now.Add(lifetime),
		Status:    InvitationPending,
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return InvitationReceipt{}, fmt.Errorf("create invitation: %w", err)
	}
	obs.RecordInvitationTransition(string(InvitationPending))
	s.record(ctx, audit.Event{
		ActorUserID: invitedBy,
		EventType:   "invitation.created",
		Severity:    audit.SeverityLow,
		RiskScore:   10,
		EventData: map[string]any{
			"invitation_id": inv.ID,
			"email":         inv.Email,
			"role":          string(inv.Role),
			"expires_at":    inv.ExpiresAt.Format(time.RFC3339),
		},
	})
	return InvitationReceipt{ID: inv.ID, Token: inv.Token, ExpiresAt: inv.ExpiresAt}, nil
}

// ValidateInvitation checks token (and email when non-empty). An expired
// pending invitation is flipped to expired as a side effect. Errors are only
// returned for store failures; invalid invitations produce a reason.
func (s *Service) ValidateInvitation(ctx context.Context, token, email string) (Validation, error) {
	if token == "" {
		return Validation{Reason: ReasonInvitationNotFound}, nil
	}
	inv, err := s.store.InvitationByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return Validation{Reason: ReasonInvitationNotFound}, nil
	}
	if err != nil {
		return Validation{}, fmt.Errorf("load invitation: %w", err)
	}
	if inv.Status != InvitationPending {
		return Validation{Reason: "Invitation " + string(inv.Status)}, nil
	}
	now := s.now().UTC()
	if inv.Expired(now) {
		s.expire(ctx, inv.Token, now)
		return Validation{Reason: ReasonInvitationExpired}, nil
	}
	if email = strings.TrimSpace(email); email != "" && !strings.EqualFold(email, inv.Email) {
		return Validation{Reason: ReasonEmailMismatch}, nil
	}
	return Validation{Valid: true, Invitation: &inv}, nil
}

func (s *Service) expire(ctx context.Context, token string, now time.Time) {
	if err := s.store.MarkInvitationExpired(ctx, token, now); err != nil {
		s.logger.ErrorContext(ctx, "mark invitation expired",
			slog.String("feature", featureTag), slog.Any("error", err))
		return
	}
	obs.RecordInvitationTransition(string(InvitationExpired))
}

// AcceptInvitation transitions a pending, unexpired invitation to accepted.
// The store applies the transition conditionally, so a token can be accepted
// at most once even under concurrent calls.
func (s *Service) AcceptInvitation(ctx context.Context, token, userID string) error {
	userID = strings.TrimSpace(userID)
	if token == "" || userID == "" {
		return fmt.Errorf("%w: token and user_id are required", ErrInvalidInput)
	}
	now := s.now().UTC()
	ok, err := s.store.AcceptInvitation(ctx, token, userID, now)
	if err != nil {
		return fmt.Errorf("accept invitation: %w", err)
	}
	if !ok {
		return s.transitionRefused(ctx, token, now)
	}
	obs.RecordInvitationTransition(string(InvitationAccepted))
	s.record(ctx, audit.Event{
		ActorUserID: userID,
		EventType:   "invitation.accepted",
		Severity:    audit.SeverityLow,
		RiskScore:   0,
		EventData:   map[string]any{"accepted_by_user_id": userID},
	})
	return nil
}

// AcceptInvitationAs accepts token on behalf of the user signed in as email.
// The invitation's email must match; a mismatch leaves it pending.
func (s *Service) AcceptInvitationAs(ctx context.Context, token, userID, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: caller has no email", ErrEmailMismatch)
	}
	inv, err := s.store.InvitationByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: invitation", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load invitation: %w", err)
	}
	if !strings.EqualFold(email, inv.Email) {
		s.record(ctx, audit.Event{
			ActorUserID: strings.TrimSpace(userID),
			EventType:   "invitation.accept.email_mismatch",
			Severity:    audit.SeverityMedium,
			RiskScore:   50,
			EventData:   map[string]any{"invitation_id": inv.ID},
		})
		return ErrEmailMismatch
	}
	return s.AcceptInvitation(ctx, token, userID)
}

// RevokeInvitation transitions a pending invitation to revoked.
func (s *Service) RevokeInvitation(ctx context.Context, token, revokedBy string) error {
	revokedBy = strings.TrimSpace(revokedBy)
	if token == "" || revokedBy == "" {
		return fmt.Errorf("%w: token and revoked_by are required", ErrInvalidInput)
	}
	now := s.now().UTC()
	ok, err := s.store.RevokeInvitation(ctx, token, now)
	if err != nil {
		return fmt.Errorf("revoke invitation: %w", err)
	}
	if !ok {
		return s.transitionRefused(ctx, token, now)
	}
	obs.RecordInvitationTransition(string(InvitationRevoked))
	s.record(ctx, audit.Event{
		ActorUserID: revokedBy,
		EventType:   "invitation.revoked",
		Severity:    audit.SeverityLow,
		RiskScore:   10,
		EventData:   map[string]any{"revoked_by": revokedBy},
	})
	return nil
}

// transitionRefused explains why a conditional transition matched no row.
func (s *Service) transitionRefused(ctx context.Context, token string, now time.Time) error {
	inv, err := s.store.InvitationByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: invitation", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load invitation: %w", err)
	}
	switch {
	case inv.Status == InvitationPending && inv.Expired(now):
		s.expire(ctx, token, now)
		return ErrInvitationExpired
	case inv.Status == InvitationExpired:
		return ErrInvitationExpired
	default:
		return fmt.Errorf("%w: status %s", ErrInvitationNotPending, inv.Status)
	}
}

// Invitations lists invitations matching filter. It never mutates state.
func (s *Service) Invitations(ctx context.Context, filter InvitationFilter) ([]Invitation, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown invitation status %q", ErrInvalidInput, filter.Status)
	}
	filter.InvitedBy = strings.TrimSpace(filter.InvitedBy)
	list, err := s.store.ListInvitations(ctx, filter, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: invitations", ErrRetrieveFailed)
	}
	return list, nil
}

// CleanupExpiredInvitations expires every pending invitation past its expiry
// and returns how many changed. Failures are logged and reported as 0.
func (s *Service) CleanupExpiredInvitations(ctx context.Context) int {
	n, err := s.store.ExpirePendingInvitations(ctx, s.now().UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "cleanup expired invitations",
			slog.String("feature", featureTag), slog.Any("error", err))
		return 0
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "expired stale invitations", slog.Int("count", n))
		obs.RecordCleanupExpired(n)
	}
	return n
}
