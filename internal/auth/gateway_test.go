// gateway_test.go

// unit tests for the session lifecycle gateway over stateful mocks.
package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/AryanTejani/backend-Lms-sub001/internal/store"
	"github.com/AryanTejani/backend-Lms-sub001/internal/testutil"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

func seedCustomer(t *testing.T, email, password string) *store.Customer {
	t.Helper()
	id, err := uuid.NewV7()
	if err != nil {
		t.Fatalf("uuid: %v", err)
	}
	hash := mustHash(t, password)
	return &store.Customer{ID: id, Email: email, PasswordHash: &hash}
}

func newGateway(principals ...store.Principal) (*Gateway, *testutil.MockDirectory, *testutil.MockSessions, *testutil.MockCache) {
	dir := testutil.NewMockDirectory(principals...)
	sessions := testutil.NewMockSessions(dir)
	cache := testutil.NewMockCache()
	gw := &Gateway{
		Track:      "customer",
		Principals: dir,
		Sessions:   sessions,
		Cache:      cache,
		BcryptCost: bcrypt.MinCost,
	}
	return gw, dir, sessions, cache
}

// --- Signup ---

func TestGatewaySignup(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account, session, and cache entry", func(t *testing.T) {
		gw, dir, sessions, cache := newGateway()

		p, sess, err := gw.Signup(ctx, "New@Example.com", "hunter2hunter2")
		if err != nil {
			t.Fatalf("Signup: %v", err)
		}
		if p.PrincipalEmail() != "new@example.com" {
			t.Errorf("email not normalized: %q", p.PrincipalEmail())
		}
		if _, ok := dir.ByEmail["new@example.com"]; !ok {
			t.Error("account not persisted")
		}
		if sessions.ActiveCount(p.PrincipalID()) != 1 {
			t.Error("expected one active session")
		}
		if _, ok := cache.Entries[sess.ID]; !ok {
			t.Error("session not cached")
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		gw, _, _, _ := newGateway(seedCustomer(t, "taken@example.com", "password-1"))

		_, _, err := gw.Signup(ctx, "taken@example.com", "password-2")
		if !errors.Is(err, ErrEmailAlreadyExists) {
			t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
		}
	})

	t.Run("cache failure is non-fatal", func(t *testing.T) {
		gw, _, _, cache := newGateway()
		cache.SetErr = errors.New("redis down")

		_, _, err := gw.Signup(ctx, "new@example.com", "hunter2hunter2")
		if err != nil {
			t.Fatalf("Signup should tolerate cache failure, got %v", err)
		}
	})
}

// --- Login ---

func TestGatewayLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		c := seedCustomer(t, "alice@example.com", "correct-password")
		gw, _, sessions, cache := newGateway(c)

		p, sess, err := gw.Login(ctx, "Alice@Example.com", "correct-password")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if p.PrincipalID() != c.ID {
			t.Error("wrong principal returned")
		}
		if sessions.ActiveCount(c.ID) != 1 {
			t.Error("expected one active session")
		}
		if _, ok := cache.Entries[sess.ID]; !ok {
			t.Error("session not cached")
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		gw, _, sessions, _ := newGateway(seedCustomer(t, "alice@example.com", "correct-password"))

		_, _, err := gw.Login(ctx, "alice@example.com", "wrong-password")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		if len(sessions.Sessions) != 0 {
			t.Error("no session should be created on failed login")
		}
	})

	// Unknown account and wrong password must be the same error.
	t.Run("unknown email", func(t *testing.T) {
		gw, _, _, _ := newGateway()

		_, _, err := gw.Login(ctx, "ghost@example.com", "whatever-pass")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("forced reset blocks login after password verifies", func(t *testing.T) {
		c := seedCustomer(t, "migrated@example.com", "correct-password")
		c.RequiresPasswordReset = true
		gw, _, _, _ := newGateway(c)

		// Wrong password first: credentials error wins over the reset gate.
		_, _, err := gw.Login(ctx, "migrated@example.com", "wrong-password")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}

		_, _, err = gw.Login(ctx, "migrated@example.com", "correct-password")
		if !errors.Is(err, ErrPasswordResetRequired) {
			t.Fatalf("expected ErrPasswordResetRequired, got %v", err)
		}
	})

	t.Run("account with no password", func(t *testing.T) {
		id, _ := uuid.NewV7()
		c := &store.Customer{ID: id, Email: "oauth-only@example.com"}
		gw, _, _, _ := newGateway(c)

		_, _, err := gw.Login(ctx, "oauth-only@example.com", "any-password")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("deactivated staff", func(t *testing.T) {
		id, _ := uuid.NewV7()
		hash := mustHash(t, "correct-password")
		s := &store.Staff{ID: id, Email: "old@example.com", PasswordHash: &hash, IsActive: false}
		gw, _, _, _ := newGateway(s)

		_, _, err := gw.Login(ctx, "old@example.com", "correct-password")
		if !errors.Is(err, ErrAccountInactive) {
			t.Fatalf("expected ErrAccountInactive, got %v", err)
		}
	})
}

// --- Logout ---

func TestGatewayLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("clears cache and revokes the session", func(t *testing.T) {
		c := seedCustomer(t, "alice@example.com", "correct-password")
		gw, _, sessions, cache := newGateway(c)
		_, sess, err := gw.Login(ctx, "alice@example.com", "correct-password")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}

		if err := gw.Logout(ctx, sess.ID); err != nil {
			t.Fatalf("Logout: %v", err)
		}
		if _, ok := cache.Entries[sess.ID]; ok {
			t.Error("cache entry should be gone")
		}
		if sessions.ActiveCount(c.ID) != 0 {
			t.Error("session should be revoked")
		}
	})

	// If the cache invalidation fails the DB row must stay untouched;
	// a revoked row with a live cache entry would keep authenticating.
	t.Run("cache failure aborts the logout", func(t *testing.T) {
		c := seedCustomer(t, "alice@example.com", "correct-password")
		gw, _, sessions, cache := newGateway(c)
		_, sess, err := gw.Login(ctx, "alice@example.com", "correct-password")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}

		cache.InvalidateErr = errors.New("redis down")
		if err := gw.Logout(ctx, sess.ID); err == nil {
			t.Fatal("expected error when cache invalidation fails")
		}
		if sessions.ActiveCount(c.ID) != 1 {
			t.Error("session must not be revoked when the cache step failed")
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		c := seedCustomer(t, "alice@example.com", "correct-password")
		gw, _, _, _ := newGateway(c)
		_, sess, err := gw.Login(ctx, "alice@example.com", "correct-password")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}

		if err := gw.Logout(ctx, sess.ID); err != nil {
			t.Fatalf("first Logout: %v", err)
		}
		if err := gw.Logout(ctx, sess.ID); err != nil {
			t.Fatalf("second Logout should be a no-op, got %v", err)
		}
	})
}

// --- ValidateSession ---

func TestGatewayValidateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit skips the database", func(t *testing.T) {
		c := seedCustomer(t, "alice@example.com", "correct-password")
		gw, _, sessions, _ := newGateway(c)
		_, sess, err := gw.Login(ctx, "alice@example.com", "correct-password")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}

		// Poison the DB path; a cache hit must never reach it.
		sessions.FindErr = errors.New("db should not be queried")

		p, err := gw.ValidateSession(ctx, sess.ID)
		if err != nil {
			t.Fatalf("ValidateSession: %v", err)
		}
		if p.PrincipalID() != c.ID {
			t.Error("wrong principal from cache")
		}
	})

	t.Run("cache miss falls back to the database and repopulates", func(t *testing.T) {
		c := seedCustomer(t, "alice@example.com", "correct-password")
		gw, _, _, cache := newGateway(c)
		_, sess, err := gw.Login(ctx, "alice@example.com", "correct-password")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		delete(cache.Entries, sess.ID)

		p, err := gw.ValidateSession(ctx, sess.ID)
		if err != nil {
			t.Fatalf("ValidateSession: %v", err)
		}
		if p.PrincipalID() != c.ID {
			t.Error("wrong principal from database")
		}
		if _, ok := cache.Entries[sess.ID]; !ok {
			t.Error("cache should be repopulated after a miss")
		}
	})

	t.Run("cache infrastructure failure degrades to the database", func(t *testing.T) {
		c := seedCustomer(t, "alice@example.com", "correct-password")
		gw, _, _, cache := newGateway(c)
		_, sess, err := gw.Login(ctx, "alice@example.com", "correct-password")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		cache.GetErr = errors.New("redis down")
		cache.SetErr = errors.New("redis down")

		if _, err := gw.ValidateSession(ctx, sess.ID); err != nil {
			t.Fatalf("ValidateSession should survive a cache outage, got %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		gw, _, _, _ := newGateway()
		id, _ := uuid.NewV7()

		_, err := gw.ValidateSession(ctx, id)
		if !errors.Is(err, ErrSessionInvalid) {
			t.Fatalf("expected ErrSessionInvalid, got %v", err)
		}
	})

	t.Run("revoked session", func(t *testing.T) {
		c := seedCustomer(t, "alice@example.com", "correct-password")
		gw, _, _, _ := newGateway(c)
		_, sess, err := gw.Login(ctx, "alice@example.com", "correct-password")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if err := gw.Logout(ctx, sess.ID); err != nil {
			t.Fatalf("Logout: %v", err)
		}

		_, err = gw.ValidateSession(ctx, sess.ID)
		if !errors.Is(err, ErrSessionInvalid) {
			t.Fatalf("expected ErrSessionInvalid, got %v", err)
		}
	})

	t.Run("staff deactivated after login is revoked on sight", func(t *testing.T) {
		id, _ := uuid.NewV7()
		hash := mustHash(t, "correct-password")
		s := &store.Staff{ID: id, Email: "staff@example.com", PasswordHash: &hash, IsActive: true}
		gw, _, sessions, cache := newGateway(s)
		_, sess, err := gw.Login(ctx, "staff@example.com", "correct-password")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}

		// Deactivate and drop the cache entry so the DB path runs the gate.
		s.IsActive = false
		delete(cache.Entries, sess.ID)

		_, err = gw.ValidateSession(ctx, sess.ID)
		if !errors.Is(err, ErrSessionInvalid) {
			t.Fatalf("expected ErrSessionInvalid, got %v", err)
		}
		if sessions.ActiveCount(id) != 0 {
			t.Error("session of a deactivated account should be revoked")
		}
	})
}

// --- RevokeAll ---

func TestGatewayRevokeAll(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes every session and sweeps the cache", func(t *testing.T) {
		c := seedCustomer(t, "alice@example.com", "correct-password")
		gw, _, sessions, cache := newGateway(c)
		for i := 0; i < 3; i++ {
			if _, _, err := gw.Login(ctx, "alice@example.com", "correct-password"); err != nil {
				t.Fatalf("Login %d: %v", i, err)
			}
		}

		n, err := gw.RevokeAll(ctx, c.ID)
		if err != nil {
			t.Fatalf("RevokeAll: %v", err)
		}
		if n != 3 {
			t.Errorf("revoked: expected 3, got %d", n)
		}
		if sessions.ActiveCount(c.ID) != 0 {
			t.Error("all sessions should be revoked")
		}
		if len(cache.Entries) != 0 {
			t.Error("all cache entries should be swept")
		}
	})

	t.Run("cache sweep failure does not undo the revocation", func(t *testing.T) {
		c := seedCustomer(t, "alice@example.com", "correct-password")
		gw, _, sessions, cache := newGateway(c)
		if _, _, err := gw.Login(ctx, "alice@example.com", "correct-password"); err != nil {
			t.Fatalf("Login: %v", err)
		}
		cache.InvalidateAllErr = errors.New("redis down")

		if _, err := gw.RevokeAll(ctx, c.ID); err != nil {
			t.Fatalf("RevokeAll should tolerate a cache sweep failure, got %v", err)
		}
		if sessions.ActiveCount(c.ID) != 0 {
			t.Error("database revocation must stand")
		}
	})
}

// --- ChangePassword ---

func TestGatewayChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("success revokes every session", func(t *testing.T) {
		c := seedCustomer(t, "alice@example.com", "old-password-1")
		gw, _, sessions, _ := newGateway(c)
		if _, _, err := gw.Login(ctx, "alice@example.com", "old-password-1"); err != nil {
			t.Fatalf("Login: %v", err)
		}

		if err := gw.ChangePassword(ctx, c.ID, "old-password-1", "new-password-2"); err != nil {
			t.Fatalf("ChangePassword: %v", err)
		}
		if sessions.ActiveCount(c.ID) != 0 {
			t.Error("sessions should be revoked after password change")
		}
		if !VerifyPassword("new-password-2", *c.PasswordHash) {
			t.Error("new password should verify against the stored hash")
		}
	})

	t.Run("wrong current password", func(t *testing.T) {
		c := seedCustomer(t, "alice@example.com", "old-password-1")
		gw, _, _, _ := newGateway(c)

		err := gw.ChangePassword(ctx, c.ID, "not-the-password", "new-password-2")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("same as old", func(t *testing.T) {
		c := seedCustomer(t, "alice@example.com", "old-password-1")
		gw, _, _, _ := newGateway(c)

		err := gw.ChangePassword(ctx, c.ID, "old-password-1", "old-password-1")
		if !errors.Is(err, ErrPasswordSameAsOld) {
			t.Fatalf("expected ErrPasswordSameAsOld, got %v", err)
		}
	})
}
