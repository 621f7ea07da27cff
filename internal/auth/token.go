// token.go

// Secure random token generation, one-way token hashing, and the PKCE pair.
// All functions are stateless and safe for concurrent use.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// GenerateSecureToken returns byteLength bytes of cryptographically secure
// randomness, URL-safe base64 encoded.
func GenerateSecureToken(byteLength int) (string, error) {
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the URL-safe SHA-256 digest of a raw token.
// The digest is the storage key; the raw secret never touches storage.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateCodeVerifier returns a fresh PKCE code verifier (RFC 7636):
// 32 bytes of secure randomness, URL-safe encoded.
func GenerateCodeVerifier() (string, error) {
	return GenerateSecureToken(32)
}

// GenerateCodeChallenge derives the S256 code challenge for a verifier per
// RFC 7636: BASE64URL(SHA256(ASCII(verifier))), no padding. Deterministic.
func GenerateCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
