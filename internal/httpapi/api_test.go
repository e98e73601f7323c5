package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizhub.io/internal/access"
	"bizhub.io/internal/audit"
	"bizhub.io/internal/auth"
	"bizhub.io/internal/permission"
	"bizhub.io/internal/store/memory"
)

type testEnv struct {
	t        *testing.T
	srv      *httptest.Server
	store    *memory.Store
	verifier *auth.Verifier
	denials  []audit.Event
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store := memory.New()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := access.NewService(store, access.WithAuditSink(audit.Discard), access.WithLogger(quiet))
	require.NoError(t, err)
	verifier, err := auth.NewVerifier([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	env := &testEnv{t: t, store: store, verifier: verifier}
	sink := audit.SinkFunc(func(_ context.Context, evt audit.Event) error {
		env.denials = append(env.denials, evt)
		return nil
	})
	opts = append([]Option{WithLogger(quiet), WithAuditSink(sink)}, opts...)
	api, err := New(svc, verifier, opts...)
	require.NoError(t, err)
	env.srv = httptest.NewServer(api.Handler())
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) token(userID string, role permission.Role, dept permission.Department) string {
	e.t.Helper()
	return e.tokenWithEmail(userID, "", role, dept)
}

func (e *testEnv) tokenWithEmail(userID, email string, role permission.Role, dept permission.Department) string {
	e.t.Helper()
	tok, _, err := e.verifier.GenerateToken(auth.Principal{UserID: userID, Email: email, Role: role, Department: dept}, time.Hour)
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) do(method, path, token string, body any) *http.Response {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(e.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(r.Body).Decode(&v))
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, WithReadyCheck(stubPinger{}), WithVersion("1.2.3"))
	resp := env.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1.2.3", decode[map[string]any](t, resp)["version"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp = env.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	failing := newTestEnv(t, WithReadyCheck(stubPinger{err: io.ErrUnexpectedEOF}))
	resp = failing.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestRegistrationCheck(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodPost, "/v1/registration/check", "", map[string]string{"email": "founder@acme.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[access.Decision](t, resp)
	assert.True(t, d.Allowed)
	assert.Equal(t, access.ReasonFirstUser, d.Reason)

	resp = env.do(http.MethodPost, "/v1/registration/check", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(http.MethodPost, "/v1/registration/check", "", map[string]any{"email": "a@b.co", "extra": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminRoutesEnforcePermissions(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/v1/admin/allowed-domains", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(http.MethodGet, "/v1/admin/allowed-domains", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	employee := env.token("u-emp", permission.RoleEmployee, permission.DepartmentSales)
	resp = env.do(http.MethodGet, "/v1/admin/allowed-domains", employee, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Len(t, env.denials, 1)
	assert.Equal(t, "authorization.denied", env.denials[0].EventType)
	assert.Equal(t, audit.SeverityHigh, env.denials[0].Severity)

	manager := env.token("u-mgr", permission.RoleManager, permission.DepartmentSales)
	resp = env.do(http.MethodGet, "/v1/admin/invitations", manager, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(http.MethodPost, "/v1/admin/invitations", manager, map[string]string{"email": "x@acme.com"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := env.token("u-adm", permission.RoleAdmin, permission.DepartmentIT)
	resp = env.do(http.MethodGet, "/v1/admin/allowed-domains", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, access.DefaultAllowedDomains(), decode[access.AllowedDomainsConfig](t, resp))
}

func TestAllowedDomainsRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token("u-adm", permission.RoleAdmin, permission.DepartmentAdmin)
	require.NoError(t, env.store.AddUser(context.Background(), memory.User{ID: "u-adm", Email: "adm@acme.com"}))

	resp := env.do(http.MethodPut, "/v1/admin/allowed-domains", admin, map[string]any{
		"domains": []string{" ACME.com", "acme.com", ""}, "requireDomain": true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[access.AllowedDomainsConfig](t, resp)
	assert.Equal(t, []string{"acme.com"}, saved.Domains)

	resp = env.do(http.MethodPost, "/v1/registration/check", "", map[string]string{"email": "x@gmail.com"})
	d := decode[access.Decision](t, resp)
	assert.False(t, d.Allowed)
	assert.Equal(t, access.ReasonStrictDomain, d.Reason)
}

func TestInvitationFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.AddUser(ctx, memory.User{ID: "u-adm", Email: "adm@acme.com"}))
	admin := env.token("u-adm", permission.RoleAdmin, permission.DepartmentIT)

	resp := env.do(http.MethodPost, "/v1/admin/invitations", admin, map[string]any{
		"email": "Guest@Gmail.com", "role": "contractor", "expires_in_days": 3,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	receipt := decode[access.InvitationReceipt](t, resp)
	require.GreaterOrEqual(t, len(receipt.Token), 32)

	resp = env.do(http.MethodGet, "/v1/invitations/"+receipt.Token+"?email=guest@gmail.com", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[access.Validation](t, resp)
	require.True(t, v.Valid)
	assert.Equal(t, permission.RoleContractor, v.Invitation.Role)
	assert.Empty(t, v.Invitation.Token)

	resp = env.do(http.MethodPost, "/v1/registration/check", "", map[string]string{
		"email": "guest@gmail.com", "invitation_token": receipt.Token,
	})
	d := decode[access.Decision](t, resp)
	assert.True(t, d.Allowed)
	assert.Equal(t, access.ReasonValidInvitation, d.Reason)
	require.NotNil(t, d.Invitation)
	assert.Empty(t, d.Invitation.Token)

	resp = env.do(http.MethodGet, "/v1/admin/invitations?status=pending", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[map[string][]access.Invitation](t, resp)["invitations"]
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Token)

	guest := env.tokenWithEmail("u-guest", "guest@gmail.com", permission.RoleContractor, permission.DepartmentOperations)
	resp = env.do(http.MethodPost, "/v1/invitations/"+receipt.Token+"/accept", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = env.do(http.MethodPost, "/v1/invitations/"+receipt.Token+"/accept", guest, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(http.MethodPost, "/v1/invitations/"+receipt.Token+"/accept", guest, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(http.MethodDelete, "/v1/admin/invitations/"+receipt.Token, admin, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = env.do(http.MethodDelete, "/v1/admin/invitations/missing-token", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(http.MethodGet, "/v1/invitations/"+receipt.Token, "", nil)
	v = decode[access.Validation](t, resp)
	assert.False(t, v.Valid)
	assert.Equal(t, "Invitation accepted", v.Reason)
}

func TestAcceptRequiresInvitedEmail(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token("u-adm", permission.RoleAdmin, permission.DepartmentIT)

	resp := env.do(http.MethodPost, "/v1/admin/invitations", admin, map[string]any{"email": "bob@corp.com", "role": "viewer"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	receipt := decode[access.InvitationReceipt](t, resp)
	path := "/v1/invitations/" + receipt.Token + "/accept"

	mallory := env.tokenWithEmail("u-mal", "mallory@evil.com", permission.RoleViewer, permission.DepartmentSales)
	resp = env.do(http.MethodPost, path, mallory, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	noEmail := env.token("u-anon", permission.RoleViewer, permission.DepartmentSales)
	resp = env.do(http.MethodPost, path, noEmail, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(http.MethodGet, "/v1/invitations/"+receipt.Token, "", nil)
	assert.True(t, decode[access.Validation](t, resp).Valid, "rejected accept must leave the invitation pending")

	bob := env.tokenWithEmail("u-bob", "Bob@Corp.com", permission.RoleViewer, permission.DepartmentSales)
	resp = env.do(http.MethodPost, path, bob, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateInvitationRejectsOverlongExpiry(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token("u-adm", permission.RoleAdmin, permission.DepartmentIT)

	resp := env.do(http.MethodPost, "/v1/admin/invitations", admin, map[string]any{"email": "a@acme.com", "expires_in_days": 200000})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.do(http.MethodPost, "/v1/admin/invitations", admin, map[string]any{"email": "a@acme.com", "expires_in_days": access.MaxInvitationDays})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCreateInvitationValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token("u-adm", permission.RoleAdmin, permission.DepartmentIT)

	resp := env.do(http.MethodPost, "/v1/admin/invitations", admin, map[string]any{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.do(http.MethodPost, "/v1/admin/invitations", admin, map[string]any{"email": "a@acme.com", "role": "wizard"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.do(http.MethodPost, "/v1/admin/invitations", admin, map[string]any{"email": "a@acme.com", "role": "super_admin"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	root := env.token("u-root", permission.RoleSuperAdmin, permission.DepartmentExecutive)
	resp = env.do(http.MethodPost, "/v1/admin/invitations", root, map[string]any{"email": "a@acme.com", "role": "super_admin"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(http.MethodGet, "/v1/admin/invitations?status=bogus", admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.do(http.MethodPost, "/v1/admin/invitations/cleanup", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, decode[map[string]int](t, resp)["expired"])
}

func TestPermissionEndpoints(t *testing.T) {
	env := newTestEnv(t)
	admin := env.token("u-adm", permission.RoleAdmin, permission.DepartmentIT)
	viewer := env.token("u-view", permission.RoleViewer, permission.DepartmentSales)

	resp := env.do(http.MethodGet, "/v1/me/permissions", viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mine := decode[myPermissionsResponse](t, resp)
	assert.Contains(t, mine.Permissions, "sales:reports:read")
	assert.NotContains(t, mine.Permissions, "sales:reports:export")

	resp = env.do(http.MethodPost, "/v1/admin/users/u-view/overrides", admin, map[string]string{
		"permission": "sales:reports:export", "effect": "grant",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(http.MethodGet, "/v1/me/permissions", viewer, nil)
	mine = decode[myPermissionsResponse](t, resp)
	assert.Contains(t, mine.Permissions, "sales:reports:export")

	resp = env.do(http.MethodPost, "/v1/admin/users/u-view/overrides", admin, map[string]string{
		"permission": "sales:reports", "effect": "grant",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(http.MethodDelete, "/v1/admin/users/u-view/overrides/sales:reports:export", admin, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(http.MethodDelete, "/v1/admin/users/u-view/overrides/sales:reports:export", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(http.MethodPost, "/v1/admin/users/u-adm/overrides", viewer, map[string]string{
		"permission": "admin:system_settings:admin", "effect": "grant",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(http.MethodGet, "/v1/permissions/catalog", viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	catalog := decode[map[string]json.RawMessage](t, resp)
	var roles []catalogRole
	require.NoError(t, json.Unmarshal(catalog["roles"], &roles))
	assert.Len(t, roles, len(permission.AllRoles()))
	assert.True(t, strings.Contains(string(catalog["resources"]), `"sensitive":true`))
}

func TestDenyOverrideBlocksRoute(t *testing.T) {
	env := newTestEnv(t)
	root := env.token("u-root", permission.RoleSuperAdmin, permission.DepartmentExecutive)
	admin := env.token("u-adm", permission.RoleAdmin, permission.DepartmentIT)
	body := map[string]any{"domains": []string{"acme.com"}, "requireDomain": false}

	resp := env.do(http.MethodPut, "/v1/admin/allowed-domains", admin, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, p := range []string{"it:system_settings:update", "admin:system_settings:update"} {
		resp = env.do(http.MethodPost, "/v1/admin/users/u-adm/overrides", root, map[string]string{"permission": p, "effect": "deny"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp = env.do(http.MethodPut, "/v1/admin/allowed-domains", admin, body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = env.do(http.MethodGet, "/v1/admin/allowed-domains", admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(http.MethodDelete, "/v1/admin/users/u-adm/overrides/admin:system_settings:update", root, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(http.MethodPut, "/v1/admin/allowed-domains", admin, body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGrantOverrideOpensRoute(t *testing.T) {
	env := newTestEnv(t)
	root := env.token("u-root", permission.RoleSuperAdmin, permission.DepartmentExecutive)
	manager := env.token("u-mgr", permission.RoleManager, permission.DepartmentSales)

	resp := env.do(http.MethodPost, "/v1/admin/invitations/cleanup", manager, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(http.MethodPost, "/v1/admin/users/u-mgr/overrides", root, map[string]string{"permission": "sales:users:update", "effect": "grant"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(http.MethodPost, "/v1/admin/invitations/cleanup", manager, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	check := func(env *testEnv, forwarded string) int {
		raw, _ := json.Marshal(map[string]string{"email": "a@acme.com"})
		req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/v1/registration/check", bytes.NewReader(raw))
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", forwarded)
		resp, err := env.srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	direct := newTestEnv(t, WithRegistrationLimit(0.001, 1))
	assert.Equal(t, http.StatusOK, check(direct, "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, check(direct, "203.0.113.2"))

	proxied := newTestEnv(t, WithRegistrationLimit(0.001, 1), WithTrustedProxy(true))
	assert.Equal(t, http.StatusOK, check(proxied, "203.0.113.1"))
	assert.Equal(t, http.StatusOK, check(proxied, "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, check(proxied, "203.0.113.2"))
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(http.MethodGet, "/v1/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(http.MethodDelete, "/healthz", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}
