// password.go

// bcrypt password hashing, verification, and input validation.
package auth

import (
	"fmt"
	netmail "net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the configured production cost factor.
const DefaultBcryptCost = 12

// HashPassword returns the bcrypt hash of a plaintext password at the given
// cost. bcrypt embeds a per-password random salt in the output.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks plaintext password against a stored bcrypt hash.
// bcrypt's comparator is constant-time; never compare hash strings directly.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyPasswordHash is a precomputed bcrypt hash (cost 12) used to equalise
// timing when an account doesn't exist, so lookup misses and password
// mismatches are indistinguishable to a remote caller.
const dummyPasswordHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// verifyDummyPassword burns the same bcrypt work as a real verification.
func verifyDummyPassword(password string) {
	bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte(password))
}

// NormalizeEmail lower-cases and trims an email for storage and lookup.
// Emails are unique case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks format and length constraints; returns an error
// message or empty string. RFC 5321: min ~5 chars (a@b.c), max 254.
func ValidateEmail(email string) string {
	if email == "" {
		return "No email provided"
	}
	if len(email) < 5 {
		return "Email too short!"
	}
	if len(email) > 254 {
		return "Email too long!"
	}
	if _, err := netmail.ParseAddress(email); err != nil {
		return "Invalid email format"
	}
	return ""
}

// ValidatePassword checks length constraints; returns an error message or
// empty string. Min 8 runes (user-perceived chars), max 72 bytes -- bcrypt
// silently truncates beyond 72, so longer inputs are rejected outright.
func ValidatePassword(password string) string {
	if password == "" {
		return "No password provided!"
	}
	if utf8.RuneCountInString(password) < 8 {
		return "Password too short!"
	}
	if len(password) > 72 {
		return "Password too long!"
	}
	return ""
}
