// resetstore_test.go

// tests for reset token records, the atomic attempt counter, and cooldowns.
package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPasswordResetStoreTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("save and get round trip", func(t *testing.T) {
		rdb, _ := newTestRedis(t)
		s := NewPasswordResetStore(rdb, "customer")

		if err := s.Save(ctx, "hash-1", "alice@example.com", time.Hour); err != nil {
			t.Fatalf("Save: %v", err)
		}
		tok, err := s.Get(ctx, "hash-1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if tok.Email != "alice@example.com" || tok.Attempts != 0 {
			t.Errorf("token: %+v", tok)
		}
	})

	t.Run("unknown hash", func(t *testing.T) {
		rdb, _ := newTestRedis(t)
		s := NewPasswordResetStore(rdb, "customer")

		if _, err := s.Get(ctx, "never-saved"); !errors.Is(err, ErrResetNotFound) {
			t.Fatalf("expected ErrResetNotFound, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		rdb, mr := newTestRedis(t)
		s := NewPasswordResetStore(rdb, "customer")

		if err := s.Save(ctx, "hash-1", "alice@example.com", time.Hour); err != nil {
			t.Fatalf("Save: %v", err)
		}
		mr.FastForward(61 * time.Minute)
		if _, err := s.Get(ctx, "hash-1"); !errors.Is(err, ErrResetNotFound) {
			t.Fatalf("expected ErrResetNotFound, got %v", err)
		}
	})

	// One outstanding token per email: a fresh request kills the old link.
	t.Run("new save supersedes the outstanding token", func(t *testing.T) {
		rdb, _ := newTestRedis(t)
		s := NewPasswordResetStore(rdb, "customer")

		if err := s.Save(ctx, "hash-1", "alice@example.com", time.Hour); err != nil {
			t.Fatalf("first Save: %v", err)
		}
		if err := s.Save(ctx, "hash-2", "alice@example.com", time.Hour); err != nil {
			t.Fatalf("second Save: %v", err)
		}
		if _, err := s.Get(ctx, "hash-1"); !errors.Is(err, ErrResetNotFound) {
			t.Fatalf("superseded token should be gone, got %v", err)
		}
		if _, err := s.Get(ctx, "hash-2"); err != nil {
			t.Fatalf("newest token should remain: %v", err)
		}
	})

	t.Run("different emails do not interfere", func(t *testing.T) {
		rdb, _ := newTestRedis(t)
		s := NewPasswordResetStore(rdb, "customer")

		if err := s.Save(ctx, "hash-a", "alice@example.com", time.Hour); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := s.Save(ctx, "hash-b", "bob@example.com", time.Hour); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if _, err := s.Get(ctx, "hash-a"); err != nil {
			t.Errorf("alice's token should remain: %v", err)
		}
	})

	t.Run("tracks are namespaced", func(t *testing.T) {
		rdb, _ := newTestRedis(t)
		customer := NewPasswordResetStore(rdb, "customer")
		staff := NewPasswordResetStore(rdb, "staff")

		if err := customer.Save(ctx, "hash-1", "x@example.com", time.Hour); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if _, err := staff.Get(ctx, "hash-1"); !errors.Is(err, ErrResetNotFound) {
			t.Fatalf("staff namespace should not see customer tokens, got %v", err)
		}
	})
}

func TestRecordFailedAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("increments below the cap", func(t *testing.T) {
		rdb, _ := newTestRedis(t)
		s := NewPasswordResetStore(rdb, "customer")
		if err := s.Save(ctx, "hash-1", "alice@example.com", time.Hour); err != nil {
			t.Fatalf("Save: %v", err)
		}

		for want := 1; want <= 4; want++ {
			got, err := s.RecordFailedAttempt(ctx, "hash-1", 5)
			if err != nil {
				t.Fatalf("attempt %d: %v", want, err)
			}
			if got != want {
				t.Errorf("attempt count: expected %d, got %d", want, got)
			}
		}

		tok, err := s.Get(ctx, "hash-1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if tok.Attempts != 4 {
			t.Errorf("persisted attempts: expected 4, got %d", tok.Attempts)
		}
	})

	t.Run("cap deletes the token in the same call", func(t *testing.T) {
		rdb, _ := newTestRedis(t)
		s := NewPasswordResetStore(rdb, "customer")
		if err := s.Save(ctx, "hash-1", "alice@example.com", time.Hour); err != nil {
			t.Fatalf("Save: %v", err)
		}

		n, err := s.RecordFailedAttempt(ctx, "hash-1", 1)
		if !errors.Is(err, ErrResetAttemptsExceeded) {
			t.Fatalf("expected ErrResetAttemptsExceeded, got %v", err)
		}
		if n != 1 {
			t.Errorf("final attempt count: %d", n)
		}
		if _, err := s.Get(ctx, "hash-1"); !errors.Is(err, ErrResetNotFound) {
			t.Fatalf("exhausted token should be deleted, got %v", err)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		rdb, _ := newTestRedis(t)
		s := NewPasswordResetStore(rdb, "customer")

		if _, err := s.RecordFailedAttempt(ctx, "never-saved", 5); !errors.Is(err, ErrResetNotFound) {
			t.Fatalf("expected ErrResetNotFound, got %v", err)
		}
	})

	// The attempt rewrite must not refresh the token's expiry.
	t.Run("preserves the remaining TTL", func(t *testing.T) {
		rdb, mr := newTestRedis(t)
		s := NewPasswordResetStore(rdb, "customer")
		if err := s.Save(ctx, "hash-1", "alice@example.com", time.Hour); err != nil {
			t.Fatalf("Save: %v", err)
		}

		mr.FastForward(30 * time.Minute)
		if _, err := s.RecordFailedAttempt(ctx, "hash-1", 5); err != nil {
			t.Fatalf("RecordFailedAttempt: %v", err)
		}
		mr.FastForward(31 * time.Minute)
		if _, err := s.Get(ctx, "hash-1"); !errors.Is(err, ErrResetNotFound) {
			t.Fatalf("token should expire on the original schedule, got %v", err)
		}
	})
}

func TestResetCooldown(t *testing.T) {
	ctx := context.Background()

	t.Run("lifecycle", func(t *testing.T) {
		rdb, mr := newTestRedis(t)
		s := NewPasswordResetStore(rdb, "customer")

		remaining, err := s.CooldownRemaining(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("CooldownRemaining: %v", err)
		}
		if remaining != 0 {
			t.Errorf("fresh email should have no cooldown, got %v", remaining)
		}

		if err := s.StartCooldown(ctx, "alice@example.com", time.Minute); err != nil {
			t.Fatalf("StartCooldown: %v", err)
		}
		remaining, err = s.CooldownRemaining(ctx, "Alice@Example.com")
		if err != nil {
			t.Fatalf("CooldownRemaining: %v", err)
		}
		if remaining <= 0 || remaining > time.Minute {
			t.Errorf("remaining: %v", remaining)
		}

		mr.FastForward(61 * time.Second)
		remaining, err = s.CooldownRemaining(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("CooldownRemaining: %v", err)
		}
		if remaining != 0 {
			t.Errorf("cooldown should have expired, got %v", remaining)
		}
	})

	t.Run("clear lifts it early", func(t *testing.T) {
		rdb, _ := newTestRedis(t)
		s := NewPasswordResetStore(rdb, "customer")

		if err := s.StartCooldown(ctx, "alice@example.com", time.Minute); err != nil {
			t.Fatalf("StartCooldown: %v", err)
		}
		if err := s.ClearCooldown(ctx, "alice@example.com"); err != nil {
			t.Fatalf("ClearCooldown: %v", err)
		}
		remaining, err := s.CooldownRemaining(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("CooldownRemaining: %v", err)
		}
		if remaining != 0 {
			t.Errorf("cleared cooldown should be gone, got %v", remaining)
		}
	})
}
