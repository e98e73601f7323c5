package access

import (
	"context"
	"fmt"
	"log/slog"

	"bizhub.io/internal/obs"
)

// User-facing registration reasons.
const (
	ReasonFirstUser          = "First user setup"
	ReasonValidInvitation    = "Valid invitation"
	ReasonDomainAllowed      = "Email domain allowed"
	ReasonInvitationRequired = "Invitation required. This system only accepts invited users."
	ReasonStrictDomain       = "Access restricted to specific email domains. Please use a company email or request an invitation."
	ReasonDomainRestricted   = "Access restricted. Please use a company email or request an invitation."
	ReasonOpenSignup         = "Open signup enabled"
	ReasonCheckFailed        = "Access control check failed"
)

// CanUserRegister decides whether email may create an account. The order is
// fixed: bootstrap, invitation, then strict or permissive domain rules. Any
// internal failure denies.
func (s *Service) CanUserRegister(ctx context.Context, email, invitationToken string) Decision {
	d, err := s.decideRegistration(ctx, email, invitationToken)
	if err != nil {
		s.logger.ErrorContext(ctx, "registration check failed",
			slog.String("feature", featureTag),
			slog.Bool("has_invitation", invitationToken != ""),
			slog.Any("error", err),
		)
		d = Decision{Allowed: false, Reason: ReasonCheckFailed, Code: "error"}
	}
	obs.RecordRegistrationDecision(d.Allowed, d.Code)
	return d
}

func (s *Service) decideRegistration(ctx context.Context, email, token string) (Decision, error) {
	users, err := s.store.CountUsers(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("count users: %w", err)
	}
	if users == 0 {
		return Decision{Allowed: true, Reason: ReasonFirstUser, Code: "first_user"}, nil
	}

	// An unusable token falls through to the domain rules.
	if token != "" {
		v, err := s.ValidateInvitation(ctx, token, email)
		if err != nil {
			return Decision{}, err
		}
		if v.Valid {
			return Decision{Allowed: true, Reason: ReasonValidInvitation, Code: "invitation", Invitation: v.Invitation}, nil
		}
	}

	cfg, err := s.AllowedDomains(ctx)
	if err != nil {
		return Decision{}, err
	}
	matched := domainMatches(cfg.Domains, email)

	if cfg.RequireDomain {
		switch {
		case len(cfg.Domains) == 0:
			return Decision{Allowed: false, Reason: ReasonInvitationRequired, Code: "invitation_required"}, nil
		case matched:
			return Decision{Allowed: true, Reason: ReasonDomainAllowed, Code: "domain_allowed"}, nil
		default:
			return Decision{Allowed: false, Reason: ReasonStrictDomain, Code: "domain_restricted"}, nil
		}
	}

	if len(cfg.Domains) > 0 {
		if matched {
			return Decision{Allowed: true, Reason: ReasonDomainAllowed, Code: "domain_allowed"}, nil
		}
		return Decision{Allowed: false, Reason: ReasonDomainRestricted, Code: "domain_restricted"}, nil
	}
	return Decision{Allowed: true, Reason: ReasonOpenSignup, Code: "open_signup"}, nil
}
