// Package httpapi exposes the access control service over JSON/HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"bizhub.io/internal/access"
	"bizhub.io/internal/audit"
	"bizhub.io/internal/auth"
	"bizhub.io/internal/obs"
	"bizhub.io/internal/permission"
)

// ReadyChecker reports whether backing dependencies answer.
type ReadyChecker interface {
	Ping(ctx context.Context) error
}

// API is the HTTP layer.
type API struct {
	access   *access.Service
	verifier *auth.Verifier
	enforcer *Enforcer
	ready    ReadyChecker
	logger   *slog.Logger
	version  string
	rps      float64
	burst    int

	// trustProxy honours X-Forwarded-For / X-Real-IP for the client address.
	trustProxy bool
}

// Option configures API.
type Option func(*API)

// WithReadyCheck sets the dependency checked by /readyz.
func WithReadyCheck(p ReadyChecker) Option {
	return func(a *API) { a.ready = p }
}

// WithVersion sets the version reported by /healthz.
func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRegistrationLimit bounds registration checks per client address.
func WithRegistrationLimit(perSecond float64, burst int) Option {
	return func(a *API) {
		if perSecond > 0 && burst > 0 {
			a.rps, a.burst = perSecond, burst
		}
	}
}

// WithTrustedProxy takes the client address from proxy headers. Enable only
// behind a proxy that overwrites them; otherwise clients choose their own
// rate limit bucket.
func WithTrustedProxy(trust bool) Option {
	return func(a *API) { a.trustProxy = trust }
}

// WithAuditSink sets where authorization denials on audited resources are recorded.
func WithAuditSink(sink audit.Sink) Option {
	return func(a *API) {
		if sink != nil {
			a.enforcer.audit = sink
		}
	}
}

// New builds the API around the access service and token verifier.
func New(svc *access.Service, verifier *auth.Verifier, opts ...Option) (*API, error) {
	if svc == nil {
		return nil, errors.New("httpapi: access service is required")
	}
	if verifier == nil {
		return nil, errors.New("httpapi: token verifier is required")
	}
	a := &API{
		access:   svc,
		verifier: verifier,
		enforcer: NewEnforcer(svc, audit.LogSink{}),
		logger:   obs.Logger(),
		version:  "dev",
		rps:      5,
		burst:    10,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Handler returns the routed, instrumented http.Handler.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	if a.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(
		RequestID,
		a.LoggingJSON,
		middleware.Recoverer,
		SecurityHeaders,
		obs.Instrument,
	)

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.With(a.rateLimit).Post("/registration/check", a.handleRegistrationCheck)
		r.Get("/invitations/{token}", a.handleValidateInvitation)

		r.Group(func(r chi.Router) {
			r.Use(a.withAuth)
			r.Post("/invitations/{token}/accept", a.handleAcceptInvitation)
			r.Get("/me/permissions", a.handleMyPermissions)
			r.Get("/permissions/catalog", a.handleCatalog)

			e := a.enforcer
			r.Route("/admin", func(r chi.Router) {
				r.With(e.Require(permission.ResourceSystemSettings, permission.ActionRead)).Get("/allowed-domains", a.handleGetAllowedDomains)
				r.With(e.Require(permission.ResourceSystemSettings, permission.ActionUpdate)).Put("/allowed-domains", a.handleUpdateAllowedDomains)

				r.With(e.Require(permission.ResourceUsers, permission.ActionRead)).Get("/invitations", a.handleListInvitations)
				r.With(e.Require(permission.ResourceUsers, permission.ActionCreate)).Post("/invitations", a.handleCreateInvitation)
				r.With(e.Require(permission.ResourceUsers, permission.ActionUpdate)).Post("/invitations/cleanup", a.handleCleanupInvitations)
				r.With(e.Require(permission.ResourceUsers, permission.ActionUpdate)).Delete("/invitations/{token}", a.handleRevokeInvitation)

				r.With(e.Require(permission.ResourceRoles, permission.ActionUpdate)).Post("/users/{userID}/overrides", a.handleSetOverride)
				r.With(e.Require(permission.ResourceRoles, permission.ActionUpdate)).Delete("/users/{userID}/overrides/{permission}", a.handleRemoveOverride)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (a *API) rateLimit(next http.Handler) http.Handler {
	return RateLimit(next, a.burst, a.rps)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "bizhub-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.ready.Ping(ctx); err != nil {
			a.logger.WarnContext(r.Context(), "readiness check failed", slog.Any("error", err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
