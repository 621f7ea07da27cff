// reset.go -- Email-based password reset for one track.
//
// Customer track runs with RevealMissingAccount=false: every request after
// the cooldown gets the same generic success, whether or not the account
// exists. Staff track runs with RevealMissingAccount=true (the console is
// internal, enumeration is not a threat there).
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/AryanTejani/backend-Lms-sub001/internal/mail"
	"github.com/AryanTejani/backend-Lms-sub001/internal/store"
)

// ResetTokenStore is the Redis-backed token and cooldown state for one track.
// Implemented by store.PasswordResetStore.
type ResetTokenStore interface {
	Save(ctx context.Context, tokenHash, email string, ttl time.Duration) error
	Get(ctx context.Context, tokenHash string) (*store.ResetToken, error)
	RecordFailedAttempt(ctx context.Context, tokenHash string, maxAttempts int) (int, error)
	Delete(ctx context.Context, tokenHash string) error
	CooldownRemaining(ctx context.Context, email string) (time.Duration, error)
	StartCooldown(ctx context.Context, email string, d time.Duration) error
	ClearCooldown(ctx context.Context, email string) error
}

// ResetFlow coordinates the reset request / redeem lifecycle for one track.
type ResetFlow struct {
	Track      string
	Principals PrincipalStore
	Sessions   SessionStore
	Cache      SessionCache
	Tokens     ResetTokenStore
	Mailer     mail.Mailer

	TokenTTL    time.Duration
	Cooldown    time.Duration
	MaxAttempts int
	BcryptCost  int

	// RevealMissingAccount switches between the enumeration-resistant
	// customer behavior and the explicit staff behavior.
	RevealMissingAccount bool
}

// ResetRequestResult is the outcome of a reset request.
type ResetRequestResult struct {
	// CooldownRemaining is nonzero when the request was suppressed because
	// a recent request for the same email is still cooling down.
	CooldownRemaining time.Duration
}

// RequestReset starts a reset for the given email. A new token silently
// supersedes any outstanding one; only the newest link in the inbox works.
func (f *ResetFlow) RequestReset(ctx context.Context, email string) (*ResetRequestResult, error) {
	email = NormalizeEmail(email)

	remaining, err := f.Tokens.CooldownRemaining(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("checking reset cooldown: %w", err)
	}
	if remaining > 0 {
		return &ResetRequestResult{CooldownRemaining: remaining}, nil
	}

	// The cooldown starts whether or not the account exists; a per-email
	// timing difference here would leak existence.
	if err := f.Tokens.StartCooldown(ctx, email, f.Cooldown); err != nil {
		return nil, fmt.Errorf("starting reset cooldown: %w", err)
	}

	p, err := f.Principals.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if f.RevealMissingAccount {
				return nil, ErrAccountNotFound
			}
			slog.Info("reset requested for unknown email", "track", f.Track)
			return &ResetRequestResult{}, nil
		}
		return f.conceal(fmt.Errorf("looking up %s by email: %w", f.Track, err))
	}

	token, err := GenerateSecureToken(32)
	if err != nil {
		return f.conceal(err)
	}
	if err := f.Tokens.Save(ctx, HashToken(token), email, f.TokenTTL); err != nil {
		return f.conceal(fmt.Errorf("saving reset token: %w", err))
	}

	if err := f.Mailer.SendPasswordReset(ctx, email, token, f.TokenTTL); err != nil {
		// The token is live; the user can retry after the cooldown if the
		// mail never lands.
		slog.Error("reset email send failed", "track", f.Track, "error", err)
	}

	slog.Info("reset token issued", "track", f.Track, "principal_id", p.PrincipalID())
	return &ResetRequestResult{}, nil
}

// conceal downgrades a post-lookup failure to the generic success on the
// enumeration-resistant track. By this point the account is known to exist,
// so an error response would confirm that to the caller.
func (f *ResetFlow) conceal(err error) (*ResetRequestResult, error) {
	if !f.RevealMissingAccount {
		slog.Error("reset request failed after lookup", "track", f.Track, "error", err)
		return &ResetRequestResult{}, nil
	}
	return nil, err
}

// ResetPassword redeems a raw token and sets the new password. On success
// the token, the cooldown, and every open session for the account are gone.
func (f *ResetFlow) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	tokenHash := HashToken(rawToken)

	tok, err := f.Tokens.Get(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, store.ErrResetNotFound) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("loading reset token: %w", err)
	}
	if tok.Attempts >= f.MaxAttempts {
		// Normally unreachable: the attempt counter deletes the token when
		// it hits the cap. Guards against a stale entry.
		if err := f.Tokens.Delete(ctx, tokenHash); err != nil {
			slog.Warn("deleting exhausted reset token failed", "track", f.Track, "error", err)
		}
		return ErrResetMaxAttempts
	}

	p, err := f.Principals.FindByEmail(ctx, tok.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Account deleted between request and redeem.
			if derr := f.Tokens.Delete(ctx, tokenHash); derr != nil {
				slog.Warn("deleting orphaned reset token failed", "track", f.Track, "error", derr)
			}
			return ErrTokenInvalid
		}
		return fmt.Errorf("looking up %s by email: %w", f.Track, err)
	}

	if cred := p.Credential(); cred != nil && VerifyPassword(newPassword, *cred) {
		// Same-as-old burns an attempt like any other failed redeem, so it
		// cannot be used to probe the current password indefinitely.
		attempts, aerr := f.Tokens.RecordFailedAttempt(ctx, tokenHash, f.MaxAttempts)
		switch {
		case errors.Is(aerr, store.ErrResetAttemptsExceeded):
			slog.Info("reset token exhausted", "track", f.Track, "principal_id", p.PrincipalID())
		case aerr != nil && !errors.Is(aerr, store.ErrResetNotFound):
			slog.Warn("recording failed reset attempt failed", "track", f.Track, "error", aerr)
		default:
			slog.Info("reset rejected, password unchanged", "track", f.Track,
				"principal_id", p.PrincipalID(), "attempts", attempts)
		}
		return ErrPasswordSameAsOld
	}

	hash, err := HashPassword(newPassword, f.BcryptCost)
	if err != nil {
		return err
	}
	// UpdatePassword also clears any forced-reset flag on the account.
	if err := f.Principals.UpdatePassword(ctx, p.PrincipalID(), hash); err != nil {
		return fmt.Errorf("updating %s password: %w", f.Track, err)
	}

	if err := f.Tokens.Delete(ctx, tokenHash); err != nil {
		slog.Warn("deleting redeemed reset token failed", "track", f.Track, "error", err)
	}

	// Database revocation before the cache sweep: a session that survives in
	// cache expires at TTL, but a DB row left active would outlive the cache.
	revoked, err := f.Sessions.RevokeAllForPrincipal(ctx, p.PrincipalID())
	if err != nil {
		return fmt.Errorf("revoking %s sessions after reset: %w", f.Track, err)
	}
	dropped, err := f.Cache.InvalidateAllForPrincipal(ctx, p.PrincipalID())
	if err != nil {
		slog.Error("cache sweep after reset failed", "track", f.Track,
			"principal_id", p.PrincipalID(), "error", err)
	}

	if err := f.Tokens.ClearCooldown(ctx, tok.Email); err != nil {
		slog.Warn("clearing reset cooldown failed", "track", f.Track, "error", err)
	}

	slog.Info("password reset", "track", f.Track, "principal_id", p.PrincipalID(),
		"sessions_revoked", revoked, "cache_dropped", dropped)
	return nil
}
