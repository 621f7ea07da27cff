// middleware_test.go

// unit tests for the RequireAuth guard.
package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/AryanTejani/backend-Lms-sub001/internal/store"
	"github.com/AryanTejani/backend-Lms-sub001/internal/testutil"
)

func guardedEcho(gw *Gateway) (http.Handler, *store.Principal) {
	var captured store.Principal
	guard := &Guard{Track: "customer", Sessions: gw}
	h := guard.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			http.Error(w, "no principal", http.StatusInternalServerError)
			return
		}
		captured = p
		w.WriteHeader(http.StatusOK)
	}))
	return h, &captured
}

func TestRequireAuth(t *testing.T) {
	ctx := context.Background()
	c := seedCustomer(t, "alice@example.com", "correct-password")
	dir := testutil.NewMockDirectory(c)
	sessions := testutil.NewMockSessions(dir)
	cache := testutil.NewMockCache()
	gw := &Gateway{Track: "customer", Principals: dir, Sessions: sessions, Cache: cache, BcryptCost: bcrypt.MinCost}

	_, sess, err := gw.Login(ctx, "alice@example.com", "correct-password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	t.Run("valid cookie passes and injects context", func(t *testing.T) {
		h, captured := guardedEcho(gw)
		req := httptest.NewRequest("GET", "/me", nil)
		req.AddCookie(&http.Cookie{Name: "__Host-session", Value: sess.ID.String()})
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", rec.Code)
		}
		if (*captured).PrincipalID() != c.ID {
			t.Error("wrong principal in context")
		}
	})

	t.Run("bearer header works for non-browser clients", func(t *testing.T) {
		h, _ := guardedEcho(gw)
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+sess.ID.String())
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d", rec.Code)
		}
	})

	t.Run("missing credential", func(t *testing.T) {
		h, _ := guardedEcho(gw)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest("GET", "/me", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status: expected 401, got %d", rec.Code)
		}
	})

	t.Run("malformed session id", func(t *testing.T) {
		h, _ := guardedEcho(gw)
		req := httptest.NewRequest("GET", "/me", nil)
		req.AddCookie(&http.Cookie{Name: "__Host-session", Value: "not-a-uuid"})
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status: expected 401, got %d", rec.Code)
		}
	})

	t.Run("revoked session", func(t *testing.T) {
		_, revoked, err := gw.Login(ctx, "alice@example.com", "correct-password")
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if err := gw.Logout(ctx, revoked.ID); err != nil {
			t.Fatalf("Logout: %v", err)
		}

		h, _ := guardedEcho(gw)
		req := httptest.NewRequest("GET", "/me", nil)
		req.AddCookie(&http.Cookie{Name: "__Host-session", Value: revoked.ID.String()})
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status: expected 401, got %d", rec.Code)
		}
	})
}
