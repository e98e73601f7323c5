// Package config provides configuration loading for the bizhub services.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvPostgresDSN = "BIZHUB_PG_DSN"
	EnvAuthSecret  = "BIZHUB_AUTH_SECRET"
	EnvHTTPAddr    = "BIZHUB_HTTP_ADDR"
	EnvLogLevel    = "BIZHUB_LOG_LEVEL"

	EnvBootstrapAdminEmail = "BIZHUB_BOOTSTRAP_ADMIN_EMAIL"
)

// Config is the complete service configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Auth        AuthConfig        `yaml:"auth"`
	Log         LogConfig         `yaml:"log"`
	Invitations InvitationsConfig `yaml:"invitations"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Bootstrap   BootstrapConfig   `yaml:"bootstrap"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustProxy takes client addresses from X-Forwarded-For / X-Real-IP.
	TrustProxy bool `yaml:"trust_proxy"`
}

// PostgresConfig configures persistence. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
	// PersistAudit writes audit events to security_audit_events as well as the log.
	PersistAudit bool `yaml:"persist_audit"`
	// AutoMigrate applies pending migrations at startup.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Secret   string        `yaml:"secret"`
	Issuer   string        `yaml:"issuer"`
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// LogConfig configures the shared logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// InvitationsConfig configures invitation lifetime and the cleanup sweep.
type InvitationsConfig struct {
	DefaultExpiry   time.Duration `yaml:"default_expiry"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RateLimitConfig bounds anonymous registration checks per client address.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BootstrapConfig seeds the first super_admin when no user exists.
type BootstrapConfig struct {
	AdminEmail string `yaml:"admin_email"`
}

// DefaultConfig returns a Config with development defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Postgres: PostgresConfig{
			AutoMigrate: true,
		},
		Auth: AuthConfig{
			Issuer:   "bizhub",
			TokenTTL: time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Invitations: InvitationsConfig{
			DefaultExpiry:   7 * 24 * time.Hour,
			CleanupInterval: time.Hour,
		},
		RateLimit: RateLimitConfig{
			RPS:   5,
			Burst: 10,
		},
	}
}

// LoadFromFile reads YAML from path on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Load returns defaults, overlaid with path (when non-empty) and then the
// environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the BIZHUB_* variables that are set and non-empty.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvPostgresDSN, &c.Postgres.DSN)
	set(EnvAuthSecret, &c.Auth.Secret)
	set(EnvHTTPAddr, &c.HTTP.Addr)
	set(EnvLogLevel, &c.Log.Level)
	set(EnvBootstrapAdminEmail, &c.Bootstrap.AdminEmail)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("http.shutdown_timeout must be positive"))
	}
	if len(c.Auth.Secret) < 32 {
		errs = append(errs, fmt.Errorf("auth.secret must be at least 32 bytes (set %s)", EnvAuthSecret))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	if c.Invitations.DefaultExpiry <= 0 {
		errs = append(errs, errors.New("invitations.default_expiry must be positive"))
	}
	if c.Invitations.CleanupInterval < 0 {
		errs = append(errs, errors.New("invitations.cleanup_interval must not be negative"))
	}
	if e := strings.TrimSpace(c.Bootstrap.AdminEmail); e != "" && strings.Count(e, "@") != 1 {
		errs = append(errs, fmt.Errorf("bootstrap.admin_email %q is not an email address", e))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("rate_limit.rps and rate_limit.burst must be positive"))
	}
	return errors.Join(errs...)
}
