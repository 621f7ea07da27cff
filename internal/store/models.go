// models.go -- Shared domain types for the store package.
// Used by both Postgres (durable store) and Redis (cache layer).
package store

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrCacheMiss is returned by SessionCache.Get when the key is not in Redis.
// Callers use errors.Is to distinguish a true miss from a Redis infrastructure failure.
var ErrCacheMiss = errors.New("cache miss")

// ErrResetNotFound is returned when a password reset token is missing or expired.
var ErrResetNotFound = errors.New("reset token not found")

// ErrResetAttemptsExceeded is returned when a reset token has burned through
// its attempt budget. The token is already deleted when this is returned.
var ErrResetAttemptsExceeded = errors.New("reset attempts exceeded")

// ErrStateNotFound is returned by OAuthStateStore.Consume when the state key
// is missing, expired, or was already consumed by an earlier callback.
var ErrStateNotFound = errors.New("oauth state not found")

// ErrRateLimiterUnavailable wraps Redis failures inside the rate limiter so
// callers can apply their fail-open/fail-closed policy.
var ErrRateLimiterUnavailable = errors.New("rate limiter unavailable")

// Principal is an account that can hold sessions: a Customer or a Staff
// member. The auth gateway is written against this interface so both tracks
// share one implementation.
type Principal interface {
	// PrincipalID returns the account's UUID.
	PrincipalID() uuid.UUID

	// PrincipalEmail returns the normalized (lower-case) email.
	PrincipalEmail() string

	// Credential returns the stored bcrypt hash, or nil when the account has
	// no password (OAuth-only, or migrated and pending a forced reset).
	Credential() *string

	// MustResetPassword reports whether login is blocked until the account
	// completes a password reset.
	MustResetPassword() bool

	// Disabled reports whether the account may no longer hold sessions
	// (staff deactivation). Customers are never disabled here.
	Disabled() bool
}

// Customer represents a row in the customers table.
// Nullable columns are pointers -- nil means SQL NULL.
type Customer struct {
	ID                    uuid.UUID
	Email                 string
	PasswordHash          *string
	FirstName             *string
	LastName              *string
	RequiresPasswordReset bool
	OAuthProvider         *string
	OAuthProviderID       *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (c *Customer) PrincipalID() uuid.UUID  { return c.ID }
func (c *Customer) PrincipalEmail() string  { return c.Email }
func (c *Customer) Credential() *string     { return c.PasswordHash }
func (c *Customer) MustResetPassword() bool { return c.RequiresPasswordReset }
func (c *Customer) Disabled() bool          { return false }

// Staff represents a row in the staff table.
type Staff struct {
	ID           uuid.UUID
	Email        string
	PasswordHash *string
	FullName     *string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s *Staff) PrincipalID() uuid.UUID  { return s.ID }
func (s *Staff) PrincipalEmail() string  { return s.Email }
func (s *Staff) Credential() *string     { return s.PasswordHash }
func (s *Staff) MustResetPassword() bool { return false }
func (s *Staff) Disabled() bool          { return !s.IsActive }

// Session represents a row in customer_sessions or staff_sessions.
// RevokedAt is set exactly once by Revoke and never cleared; a session is
// active iff RevokedAt is nil and CreatedAt is within the configured max age.
type Session struct {
	ID          uuid.UUID
	PrincipalID uuid.UUID
	CreatedAt   time.Time
	RevokedAt   *time.Time
}

// CachedSession is the JSON shape stored in Redis under a session-id key.
// A denormalized principal view -- enough for the request fast path; anything
// heavier goes back to Postgres.
type CachedSession struct {
	PrincipalID uuid.UUID `json:"principal_id"`
	Email       string    `json:"email"`
	CachedAt    time.Time `json:"cached_at"`
}

// ResetToken is the JSON payload stored under hash-of-token keys.
// Attempts only ever grows; the record is deleted at the attempt cap or on
// successful redemption.
type ResetToken struct {
	Email     string    `json:"email"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// OAuthState binds a PKCE code verifier to the state token for the duration
// of one OAuth round trip. Single-use: consumed with GETDEL at callback time.
type OAuthState struct {
	Provider     string    `json:"provider"`
	CodeVerifier string    `json:"code_verifier"`
	RedirectURI  string    `json:"redirect_uri"`
	CreatedAt    time.Time `json:"created_at"`
}

// RateLimitResult is the outcome of one Check call.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}
