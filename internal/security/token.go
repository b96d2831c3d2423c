package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewRefreshTokenValue returns an opaque 256-bit token from the CSPRNG.
func NewRefreshTokenValue() (string, error) {
	return randomString(32)
}

// NewAPIKey returns an opaque 512-bit service key from the CSPRNG.
func NewAPIKey() (string, error) {
	return randomString(64)
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokenPrefix is the only form of a credential that may appear in logs.
func TokenPrefix(token string) string {
	const n = 8
	if len(token) <= n {
		return token
	}
	return token[:n]
}
