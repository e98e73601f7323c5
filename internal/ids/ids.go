// Package ids generates row identifiers and bearer-style secrets.
package ids

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// MinTokenBytes is the smallest entropy accepted by NewToken (256 bits).
const MinTokenBytes = 32

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	return ulid.Make().String()
}

// NewToken returns n bytes from crypto/rand encoded as unpadded base64url.
// n is raised to MinTokenBytes, so tokens are at least 43 characters long.
func NewToken(n int) (string, error) {
	if n < MinTokenBytes {
		n = MinTokenBytes
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
