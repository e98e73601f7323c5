// Command smoke exercises a running bizhub-api end to end: health, the
// registration gate and one invitation lifecycle.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"bizhub.io/internal/access"
	"bizhub.io/internal/auth"
	"bizhub.io/internal/config"
	"bizhub.io/internal/ids"
	"bizhub.io/internal/permission"
)

func main() {
	log.SetFlags(0)
	base := os.Getenv("BIZHUB_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	secret := os.Getenv(config.EnvAuthSecret)
	if secret == "" {
		log.Fatalf("missing %s", config.EnvAuthSecret)
	}

	verifier, err := auth.NewVerifier([]byte(secret))
	if err != nil {
		log.Fatalf("verifier: %v", err)
	}
	admin, _, err := verifier.GenerateToken(auth.Principal{
		UserID:     "smoke-" + ids.New(),
		Role:       permission.RoleAdmin,
		Department: permission.DepartmentIT,
	}, 5*time.Minute)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c := &client{base: base, http: &http.Client{Timeout: 5 * time.Second}}

	if err := c.call(ctx, http.MethodGet, "/healthz", "", nil, nil, http.StatusOK); err != nil {
		log.Fatalf("healthz: %v", err)
	}

	email := fmt.Sprintf("smoke-%s@example.invalid", ids.New())
	var receipt access.InvitationReceipt
	err = c.call(ctx, http.MethodPost, "/v1/admin/invitations", admin,
		map[string]any{"email": email, "role": "viewer", "expires_in_days": 1}, &receipt, http.StatusCreated)
	if err != nil {
		log.Fatalf("create invitation: %v", err)
	}

	var decision access.Decision
	err = c.call(ctx, http.MethodPost, "/v1/registration/check", "",
		map[string]any{"email": email, "invitation_token": receipt.Token}, &decision, http.StatusOK)
	if err != nil {
		log.Fatalf("registration check: %v", err)
	}
	if !decision.Allowed {
		log.Fatalf("invited email denied: %s", decision.Reason)
	}

	if err := c.call(ctx, http.MethodDelete, "/v1/admin/invitations/"+receipt.Token, admin, nil, nil, http.StatusOK); err != nil {
		log.Fatalf("revoke invitation: %v", err)
	}

	var v access.Validation
	if err := c.call(ctx, http.MethodGet, "/v1/invitations/"+receipt.Token, "", nil, &v, http.StatusOK); err != nil {
		log.Fatalf("validate invitation: %v", err)
	}
	if v.Valid {
		log.Fatalf("revoked invitation still valid")
	}

	fmt.Printf("bizhub-api smoke test passed: invitation=%s\n", receipt.ID)
}

type client struct {
	base string
	http *http.Client
}

func (c *client) call(ctx context.Context, method, path, token string, body, out any, want int) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: status %d, want %d: %s", method, path, resp.StatusCode, want, bytes.TrimSpace(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
