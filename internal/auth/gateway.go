// gateway.go -- Credential and session lifecycle for one principal track.
//
// The service runs two Gateway instances, one over the customer directory
// and one over the staff directory. Track-specific behavior (forced password
// reset, deactivation) lives behind the store.Principal interface, so the
// lifecycle logic is written once.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/AryanTejani/backend-Lms-sub001/internal/store"
)

// PrincipalStore is the account directory for one track.
// Implemented by store.CustomerDirectory and store.StaffDirectory.
type PrincipalStore interface {
	FindByEmail(ctx context.Context, email string) (store.Principal, error)
	FindByID(ctx context.Context, id uuid.UUID) (store.Principal, error)
	Create(ctx context.Context, email, passwordHash string) (store.Principal, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// SessionStore is the durable session table for one track.
// Implemented by store.CustomerSessions and store.StaffSessions.
type SessionStore interface {
	Create(ctx context.Context, principalID uuid.UUID) (*store.Session, error)
	FindActiveWithPrincipal(ctx context.Context, sessionID uuid.UUID) (*store.Session, store.Principal, error)
	Revoke(ctx context.Context, sessionID uuid.UUID) error
	RevokeAllForPrincipal(ctx context.Context, principalID uuid.UUID) (int64, error)
}

// SessionCache is the Redis read-through cache for one track.
// Implemented by store.SessionCache.
type SessionCache interface {
	Get(ctx context.Context, sessionID uuid.UUID) (*store.CachedSession, error)
	Set(ctx context.Context, sessionID uuid.UUID, p store.Principal) error
	Invalidate(ctx context.Context, sessionID uuid.UUID) error
	InvalidateAllForPrincipal(ctx context.Context, principalID uuid.UUID) (int, error)
}

// Gateway owns signup, login, logout, and session validation for one track.
type Gateway struct {
	Track      string
	Principals PrincipalStore
	Sessions   SessionStore
	Cache      SessionCache
	BcryptCost int
}

// Signup registers a new account and opens its first session.
// Email must already be validated and is normalized here.
func (g *Gateway) Signup(ctx context.Context, email, password string) (store.Principal, *store.Session, error) {
	email = NormalizeEmail(email)

	hash, err := HashPassword(password, g.BcryptCost)
	if err != nil {
		return nil, nil, err
	}

	p, err := g.Principals.Create(ctx, email, hash)
	if err != nil {
		// The unique index on lower(email) is the authority on duplicates;
		// a pre-check would race with concurrent signups.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, nil, ErrEmailAlreadyExists
		}
		return nil, nil, fmt.Errorf("creating %s account: %w", g.Track, err)
	}

	sess, err := g.openSession(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("account created", "track", g.Track, "principal_id", p.PrincipalID())
	return p, sess, nil
}

// Login verifies credentials and opens a session. All credential failures
// surface as ErrInvalidCredentials; gate failures (forced reset,
// deactivation) are only reported after the password verified.
func (g *Gateway) Login(ctx context.Context, email, password string) (store.Principal, *store.Session, error) {
	email = NormalizeEmail(email)

	p, err := g.Principals.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			verifyDummyPassword(password)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("looking up %s by email: %w", g.Track, err)
	}

	cred := p.Credential()
	if cred == nil {
		// OAuth-only account, or one mid-migration with the hash cleared.
		verifyDummyPassword(password)
		if p.MustResetPassword() {
			return nil, nil, ErrPasswordResetRequired
		}
		return nil, nil, ErrInvalidCredentials
	}
	if !VerifyPassword(password, *cred) {
		return nil, nil, ErrInvalidCredentials
	}

	if p.MustResetPassword() {
		return nil, nil, ErrPasswordResetRequired
	}
	if p.Disabled() {
		return nil, nil, ErrAccountInactive
	}

	sess, err := g.openSession(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("login", "track", g.Track, "principal_id", p.PrincipalID())
	return p, sess, nil
}

// OpenSession creates a session for an already-authenticated principal
// (OAuth callback, post-reset login) and primes the cache.
func (g *Gateway) OpenSession(ctx context.Context, p store.Principal) (*store.Session, error) {
	return g.openSession(ctx, p)
}

func (g *Gateway) openSession(ctx context.Context, p store.Principal) (*store.Session, error) {
	sess, err := g.Sessions.Create(ctx, p.PrincipalID())
	if err != nil {
		return nil, fmt.Errorf("creating %s session: %w", g.Track, err)
	}
	// Cache priming is best-effort; a miss just means one extra DB read.
	if err := g.Cache.Set(ctx, sess.ID, p); err != nil {
		slog.Warn("session cache set failed", "track", g.Track, "error", err)
	}
	return sess, nil
}

// Logout revokes one session. The cache entry is removed first: if Redis is
// unreachable the whole operation fails, because revoking only the database
// row would leave a cache entry that keeps authenticating until its TTL.
func (g *Gateway) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if err := g.Cache.Invalidate(ctx, sessionID); err != nil {
		return fmt.Errorf("invalidating cached session: %w", err)
	}
	if err := g.Sessions.Revoke(ctx, sessionID); err != nil {
		return fmt.Errorf("revoking %s session: %w", g.Track, err)
	}
	slog.Info("logout", "track", g.Track, "session_id", sessionID)
	return nil
}

// RevokeAll revokes every session for a principal, database first, then the
// cache sweep. Used by logout-everywhere, password change, and reset.
func (g *Gateway) RevokeAll(ctx context.Context, principalID uuid.UUID) (int64, error) {
	revoked, err := g.Sessions.RevokeAllForPrincipal(ctx, principalID)
	if err != nil {
		return 0, fmt.Errorf("revoking %s sessions: %w", g.Track, err)
	}
	dropped, err := g.Cache.InvalidateAllForPrincipal(ctx, principalID)
	if err != nil {
		// DB rows are already revoked; stale cache entries expire at TTL.
		slog.Error("bulk cache invalidation failed", "track", g.Track,
			"principal_id", principalID, "error", err)
	}
	slog.Info("sessions revoked", "track", g.Track, "principal_id", principalID,
		"revoked", revoked, "cache_dropped", dropped)
	return revoked, nil
}

// ValidateSession resolves a session ID to its principal, consulting the
// cache first. Every validation failure is ErrSessionInvalid.
func (g *Gateway) ValidateSession(ctx context.Context, sessionID uuid.UUID) (store.Principal, error) {
	cached, err := g.Cache.Get(ctx, sessionID)
	if err == nil {
		return &cachedPrincipal{entry: cached}, nil
	}
	if !errors.Is(err, store.ErrCacheMiss) {
		// Redis trouble degrades to a DB read, not an auth failure.
		slog.Warn("session cache read failed", "track", g.Track, "error", err)
	}

	_, p, err := g.Sessions.FindActiveWithPrincipal(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("loading %s session: %w", g.Track, err)
	}

	if p.Disabled() {
		// Deactivated since the session was opened; retire the session so
		// it stops hitting this path.
		if err := g.Sessions.Revoke(ctx, sessionID); err != nil {
			slog.Warn("revoking session of deactivated account failed",
				"track", g.Track, "error", err)
		}
		if err := g.Cache.Invalidate(ctx, sessionID); err != nil {
			slog.Warn("invalidating session of deactivated account failed",
				"track", g.Track, "error", err)
		}
		return nil, ErrSessionInvalid
	}

	if err := g.Cache.Set(ctx, sessionID, p); err != nil {
		slog.Warn("session cache set failed", "track", g.Track, "error", err)
	}
	return p, nil
}

// ChangePassword verifies the current password, swaps in the new hash, and
// revokes every session. The caller re-authenticates afterwards.
func (g *Gateway) ChangePassword(ctx context.Context, principalID uuid.UUID, current, next string) error {
	p, err := g.Principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("looking up %s by id: %w", g.Track, err)
	}

	cred := p.Credential()
	if cred == nil || !VerifyPassword(current, *cred) {
		return ErrInvalidCredentials
	}
	if VerifyPassword(next, *cred) {
		return ErrPasswordSameAsOld
	}

	hash, err := HashPassword(next, g.BcryptCost)
	if err != nil {
		return err
	}
	if err := g.Principals.UpdatePassword(ctx, principalID, hash); err != nil {
		return fmt.Errorf("updating %s password: %w", g.Track, err)
	}

	if _, err := g.RevokeAll(ctx, principalID); err != nil {
		return err
	}
	return nil
}

// cachedPrincipal adapts a cache entry to store.Principal. Cache entries are
// only written for principals that passed every login gate, so the gate
// accessors report clean; staleness is bounded by the cache TTL.
type cachedPrincipal struct {
	entry *store.CachedSession
}

func (p *cachedPrincipal) PrincipalID() uuid.UUID  { return p.entry.PrincipalID }
func (p *cachedPrincipal) PrincipalEmail() string  { return p.entry.Email }
func (p *cachedPrincipal) Credential() *string     { return nil }
func (p *cachedPrincipal) MustResetPassword() bool { return false }
func (p *cachedPrincipal) Disabled() bool          { return false }

// CachedAt reports when the entry was written, for diagnostics.
func (p *cachedPrincipal) CachedAt() time.Time { return p.entry.CachedAt }
