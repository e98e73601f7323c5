package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bizhub.io/internal/audit"
)

// AllowedDomains loads the domain configuration, or the permissive default when
// it has never been written.
func (s *Service) AllowedDomains(ctx context.Context) (AllowedDomainsConfig, error) {
	raw, err := s.store.Setting(ctx, SettingAllowedDomains)
	if errors.Is(err, ErrNotFound) {
		return DefaultAllowedDomains(), nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "load allowed domains", slog.String("feature", featureTag), slog.Any("error", err))
		return AllowedDomainsConfig{}, fmt.Errorf("%w: allowed domains", ErrRetrieveFailed)
	}
	var cfg AllowedDomainsConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		s.logger.ErrorContext(ctx, "decode allowed domains", slog.String("feature", featureTag), slog.Any("error", err))
		return AllowedDomainsConfig{}, fmt.Errorf("%w: allowed domains", ErrRetrieveFailed)
	}
	if cfg.Domains == nil {
		cfg.Domains = []string{}
	}
	return cfg, nil
}

// UpdateAllowedDomains normalizes and stores cfg. Every call is audited, even
// when the stored value does not change.
func (s *Service) UpdateAllowedDomains(ctx context.Context, cfg AllowedDomainsConfig, updatedBy string) (AllowedDomainsConfig, error) {
	updatedBy = strings.TrimSpace(updatedBy)
	if updatedBy == "" {
		return AllowedDomainsConfig{}, fmt.Errorf("%w: updated_by is required", ErrInvalidInput)
	}
	cfg.Domains = NormalizeDomains(cfg.Domains)
	raw, err := json.Marshal(cfg)
	if err != nil {
		return AllowedDomainsConfig{}, fmt.Errorf("encode allowed domains: %w", err)
	}
	if err := s.store.PutSetting(ctx, SettingAllowedDomains, raw, updatedBy); err != nil {
		s.logger.ErrorContext(ctx, "store allowed domains",
			slog.String("feature", featureTag), slog.String("actor", updatedBy), slog.Any("error", err))
		return AllowedDomainsConfig{}, fmt.Errorf("%w: allowed domains", ErrUpdateFailed)
	}
	s.record(ctx, audit.Event{
		ActorUserID: updatedBy,
		EventType:   "access.allowed_domains.updated",
		Severity:    audit.SeverityMedium,
		RiskScore:   50,
		EventData: map[string]any{
			"domains":       cfg.Domains,
			"requireDomain": cfg.RequireDomain,
		},
	})
	return cfg, nil
}

// IsEmailDomainAllowed reports whether email may register by domain alone.
// Any failure to load configuration denies.
func (s *Service) IsEmailDomainAllowed(ctx context.Context, email string) bool {
	cfg, err := s.AllowedDomains(ctx)
	if err != nil {
		return false
	}
	if len(cfg.Domains) == 0 {
		return true
	}
	return domainMatches(cfg.Domains, email)
}

// NormalizeDomains lower-cases and trims domains, dropping blanks and duplicates.
func NormalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	seen := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// EmailDomain returns the lower-cased part after the '@'. Addresses without
// exactly one '@', or with an empty local part or domain, have no domain.
func EmailDomain(email string) (string, bool) {
	local, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "", false
	}
	return strings.ToLower(domain), true
}

func domainMatches(domains []string, email string) bool {
	domain, ok := EmailDomain(email)
	if !ok {
		return false
	}
	for _, d := range domains {
		if strings.ToLower(strings.TrimSpace(d)) == domain {
			return true
		}
	}
	return false
}
