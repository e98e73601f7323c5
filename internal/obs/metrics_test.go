package obs

import (
	"bytes"
	"log/slog"
	"testing"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                                "/",
		"/metrics":                                        "/metrics",
		"/v1/invitations/abc":                             "/v1/invitations/:token",
		"/v1/invitations/abc/accept":                      "/v1/invitations/:token/accept",
		"/v1/invitations/abc/extra":                       "/v1/invitations/abc/extra",
		"/v1/admin/invitations":                           "/v1/admin/invitations",
		"/v1/admin/invitations?status=x":                  "/v1/admin/invitations",
		"/v1/admin/invitations/tok123":                    "/v1/admin/invitations/:token",
		"/v1/admin/invitations/cleanup":                   "/v1/admin/invitations/cleanup",
		"/v1/admin/users/u1/overrides":                    "/v1/admin/users/:user_id/overrides",
		"/v1/admin/users/u1/overrides/sales:clients:read": "/v1/admin/users/:user_id/overrides/:permission",
		"/v1/registration/check":                          "/v1/registration/check",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, expected := range cases {
		if got := ParseLevel(input); got != expected {
			t.Fatalf("ParseLevel(%q)=%v, want %v", input, got, expected)
		}
	}
}

func TestSetLoggerSwapsShared(t *testing.T) {
	var buf bytes.Buffer
	prev := SetLogger(NewLogger(&buf, "info", "json"))
	defer SetLogger(prev)

	Logger().Info("hello", "k", "v")
	if !bytes.Contains(buf.Bytes(), []byte(`"msg":"hello"`)) {
		t.Fatalf("expected JSON entry, got %q", buf.String())
	}
	if SetLogger(nil) == nil {
		t.Fatal("SetLogger(nil) must keep the current logger")
	}
}
