package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizhub.io/internal/auth"
	"bizhub.io/internal/permission"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestPermissionsValidate(t *testing.T) {
	out, err := execute(t, "permissions", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "permission matrix ok")
}

func TestPermissionsShow(t *testing.T) {
	out, err := execute(t, "permissions", "show", "viewer", "sales")
	require.NoError(t, err)
	assert.Contains(t, out, "sales:reports:read\n")
	assert.NotContains(t, out, "finance:")

	_, err = execute(t, "permissions", "show", "wizard", "sales")
	assert.ErrorIs(t, err, permission.ErrUnknownValue)
}

func TestPermissionsCheck(t *testing.T) {
	out, err := execute(t, "permissions", "check", "manager", "operations:expenses:approve")
	require.NoError(t, err)
	assert.Equal(t, "manager operations:expenses:approve: true\n", out)

	out, err = execute(t, "permissions", "check", "employee", "admin:users:admin")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "false\n"))
}

func TestPermissionsRoles(t *testing.T) {
	out, err := execute(t, "permissions", "roles")
	require.NoError(t, err)
	for _, role := range permission.AllRoles() {
		assert.Contains(t, out, string(role))
	}
}

func TestTokenMintsVerifiableToken(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	out, err := execute(t, "token", "--secret", secret, "--user", "u-1", "--role", "admin", "--department", "it")
	require.NoError(t, err)

	v, err := auth.NewVerifier([]byte(secret), auth.WithIssuer("bizhub"))
	require.NoError(t, err)
	p, err := v.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.UserID)
	assert.Equal(t, permission.RoleAdmin, p.Role)
	assert.Equal(t, permission.DepartmentIT, p.Department)
}

func TestDatabaseCommandsRequireDSN(t *testing.T) {
	t.Setenv("BIZHUB_PG_DSN", "")
	_, err := execute(t, "domains", "get", "--dsn", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing DSN")
}
