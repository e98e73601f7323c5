package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"bizhub.io/internal/audit"
	"bizhub.io/internal/auth"
	"bizhub.io/internal/obs"
	"bizhub.io/internal/permission"
)

const authHeader = "Authorization"

// withAuth requires a valid bearer token and attaches the principal.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get(authHeader))
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		principal, err := a.verifier.Verify(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	})
}

// PermissionResolver returns a user's role permissions with stored overrides applied.
type PermissionResolver interface {
	ResolvePermissions(ctx context.Context, userID string, role permission.Role, dept permission.Department) (permission.Set, error)
}

// Enforcer guards routes with a resource/action permission check.
type Enforcer struct {
	perms PermissionResolver
	audit audit.Sink
}

// NewEnforcer returns an Enforcer checking routes against perms and recording
// denials on audited resources to sink.
func NewEnforcer(perms PermissionResolver, sink audit.Sink) *Enforcer {
	if sink == nil {
		sink = audit.Discard
	}
	return &Enforcer{perms: perms, audit: sink}
}

// Require rejects requests without a principal with 401 and principals
// lacking the permission, after overrides, with 403. A failure to resolve
// permissions denies with 503.
func (e *Enforcer) Require(resource permission.Resource, action permission.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			perms, err := e.perms.ResolvePermissions(r.Context(), principal.UserID, principal.Role, principal.Department)
			if err != nil {
				obs.RecordAuthorization(false)
				obs.Logger().ErrorContext(r.Context(), "resolve permissions",
					slog.String("user_id", principal.UserID), slog.Any("error", err))
				writeError(w, r, http.StatusServiceUnavailable, "authorization check failed")
				return
			}
			allowed := principal.Can(perms, resource, action)
			obs.RecordAuthorization(allowed)
			if allowed {
				next.ServeHTTP(w, r)
				return
			}
			if permission.RequiresAuditLog(resource) {
				e.recordDenial(r.Context(), principal, resource, action)
			}
			writeError(w, r, http.StatusForbidden, "insufficient permissions")
		})
	}
}

func (e *Enforcer) recordDenial(ctx context.Context, p auth.Principal, resource permission.Resource, action permission.Action) {
	severity, risk := audit.SeverityMedium, 40
	if permission.IsSensitiveResource(resource) {
		severity, risk = audit.SeverityHigh, 60
	}
	err := e.audit.Record(ctx, audit.Event{
		ActorUserID: p.UserID,
		EventType:   "authorization.denied",
		Severity:    severity,
		RiskScore:   risk,
		EventData: map[string]any{
			"role":       string(p.Role),
			"department": string(p.Department),
			"resource":   string(resource),
			"action":     string(action),
		},
	})
	if err != nil {
		obs.Logger().WarnContext(ctx, "audit write failed", slog.String("event", "authorization.denied"), slog.Any("error", err))
	}
}
