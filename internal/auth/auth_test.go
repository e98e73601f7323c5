package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"bizhub.io/internal/permission"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestVerifier(t *testing.T, now time.Time) *Verifier {
	t.Helper()
	v, err := NewVerifier(testSecret, WithIssuer("test-issuer"), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	return v
}

func TestGenerateAndVerify(t *testing.T) {
	now := time.Now().UTC()
	v := newTestVerifier(t, now)
	p := Principal{UserID: "user-42", Email: "Ann@Acme.com", Role: permission.RoleManager, Department: permission.DepartmentFinance}

	token, expiresAt, err := v.GenerateToken(p, 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if !expiresAt.After(now) {
		t.Fatalf("expected future expiration, got %v", expiresAt)
	}

	got, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	want := Principal{UserID: "user-42", Email: "ann@acme.com", Role: permission.RoleManager, Department: permission.DepartmentFinance}
	if got != want {
		t.Fatalf("unexpected principal: %#v", got)
	}
	perms := permission.UserPermissions(got.Role, got.Department)
	if !got.Can(perms, permission.ResourceExpenses, permission.ActionApprove) {
		t.Fatal("manager should approve expenses")
	}
	if got.Can(perms, permission.ResourceSystemSettings, permission.ActionUpdate) {
		t.Fatal("manager should not update system settings")
	}
}

func TestVerifyRejects(t *testing.T) {
	now := time.Now().UTC()
	v := newTestVerifier(t, now)
	p := Principal{UserID: "u1", Role: permission.RoleViewer, Department: permission.DepartmentSales}
	token, _, err := v.GenerateToken(p, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	later := newTestVerifier(t, now.Add(2*time.Minute))
	if _, err := later.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected expiry rejection, got %v", err)
	}

	other, _ := NewVerifier([]byte(strings.Repeat("z", 32)), WithIssuer("test-issuer"))
	if _, err := other.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected signature rejection, got %v", err)
	}

	wrongIssuer, _ := NewVerifier(testSecret, WithIssuer("someone-else"), WithClock(func() time.Time { return now }))
	if _, err := wrongIssuer.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected issuer rejection, got %v", err)
	}

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:       permission.Role("overlord"),
		Department: permission.DepartmentSales,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	})
	signed, err := forged.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := v.Verify(signed); err != ErrInvalidToken {
		t.Fatalf("expected unknown role rejection, got %v", err)
	}

	if _, err := v.Verify("   "); err != ErrInvalidToken {
		t.Fatalf("expected empty token rejection, got %v", err)
	}
}

func TestNewVerifierRequiresLongSecret(t *testing.T) {
	if _, err := NewVerifier([]byte("short")); err == nil {
		t.Fatal("expected short secret error")
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	v := newTestVerifier(t, time.Now())
	if _, _, err := v.GenerateToken(Principal{Role: permission.RoleViewer, Department: permission.DepartmentSales}, time.Minute); err == nil {
		t.Fatal("expected missing user id error")
	}
	if _, _, err := v.GenerateToken(Principal{UserID: "u", Role: permission.RoleViewer, Department: permission.DepartmentSales}, 0); err == nil {
		t.Fatal("expected ttl error")
	}
	if _, _, err := v.GenerateToken(Principal{UserID: "u", Role: "boss", Department: permission.DepartmentSales}, time.Minute); err == nil {
		t.Fatal("expected role error")
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  xyz ": "xyz",
		"BEARER t":     "t",
		"Basic abc":    "",
		"Bearer ":      "",
		"":             "",
	}
	for header, want := range cases {
		got, ok := BearerToken(header)
		if got != want || ok != (want != "") {
			t.Fatalf("BearerToken(%q) = %q, %v", header, got, ok)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if _, ok := PrincipalFromContext(ctx); ok {
		t.Fatal("unexpected principal in empty context")
	}
	p := Principal{UserID: "user-7", Role: permission.RoleAdmin, Department: permission.DepartmentIT}
	ctx = ContextWithPrincipal(ctx, p)
	got, ok := PrincipalFromContext(ctx)
	if !ok || got != p {
		t.Fatalf("unexpected principal: %#v ok=%v", got, ok)
	}

	if _, ok := PrincipalFromContext(ContextWithPrincipal(context.Background(), Principal{})); ok {
		t.Fatal("principal without user id must not authenticate")
	}
}
