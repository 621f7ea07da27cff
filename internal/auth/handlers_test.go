// handlers_test.go

// HTTP-level tests for the track handlers: status codes, cookies, and the
// rate limit boundary. Flow logic is covered by the gateway and flow tests.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/AryanTejani/backend-Lms-sub001/internal/store"
	"github.com/AryanTejani/backend-Lms-sub001/internal/testutil"
)

func newHandler(principals ...store.Principal) (*Handler, *testutil.MockRateLimiter, *testutil.MockDirectory) {
	dir := testutil.NewMockDirectory(principals...)
	sessions := testutil.NewMockSessions(dir)
	cache := testutil.NewMockCache()
	gw := &Gateway{Track: "customer", Principals: dir, Sessions: sessions, Cache: cache, BcryptCost: bcrypt.MinCost}
	rl := &testutil.MockRateLimiter{}
	h := &Handler{
		Track: "customer",
		GW:    gw,
		Reset: &ResetFlow{
			Track:       "customer",
			Principals:  dir,
			Sessions:    sessions,
			Cache:       cache,
			Tokens:      testutil.NewMockResetTokens(),
			Mailer:      &testutil.MockMailer{},
			TokenTTL:    time.Hour,
			Cooldown:    time.Minute,
			MaxAttempts: 5,
			BcryptCost:  bcrypt.MinCost,
		},
		RL: rl,
		Limits: RateLimits{
			Login:  RatePolicy{Max: 10, Window: 10 * time.Minute},
			Signup: RatePolicy{Max: 5, Window: time.Hour},
			Reset:  RatePolicy{Max: 3, Window: time.Hour},
		},
		SessionMaxAge: 30 * 24 * time.Hour,
	}
	return h, rl, dir
}

func postJSON(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "__Host-session" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

// --- Signup ---

func TestHandlerSignup(t *testing.T) {
	t.Run("201 with session cookie", func(t *testing.T) {
		h, _, _ := newHandler()

		rec := postJSON(h.Signup, `{"email":"new@example.com","password":"hunter2hunter2"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status: expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		c := sessionCookie(t, rec)
		if !c.HttpOnly || !c.Secure {
			t.Error("session cookie must be HttpOnly and Secure")
		}
	})

	t.Run("duplicate email is 409 with a stable code", func(t *testing.T) {
		h, _, _ := newHandler(seedCustomer(t, "taken@example.com", "password-1"))

		rec := postJSON(h.Signup, `{"email":"taken@example.com","password":"password-2x"}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status: expected 409, got %d", rec.Code)
		}
		var body struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body.Error != "EMAIL_ALREADY_EXISTS" {
			t.Errorf("error code: %q", body.Error)
		}
	})

	t.Run("validation failures are 400", func(t *testing.T) {
		h, _, _ := newHandler()
		for _, body := range []string{
			`not json`,
			`{"email":"bad","password":"hunter2hunter2"}`,
			`{"email":"ok@example.com","password":"short"}`,
		} {
			if rec := postJSON(h.Signup, body); rec.Code != http.StatusBadRequest {
				t.Errorf("body %q: expected 400, got %d", body, rec.Code)
			}
		}
	})

	t.Run("rate limited is 429 with Retry-After", func(t *testing.T) {
		h, rl, _ := newHandler()
		rl.Deny = true

		rec := postJSON(h.Signup, `{"email":"new@example.com","password":"hunter2hunter2"}`)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("status: expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
	})

	// No account exists at signup time, so the limiter keys on the caller's
	// address rather than the submitted email.
	t.Run("limiter keyed by client address", func(t *testing.T) {
		h, rl, _ := newHandler()

		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"new@example.com","password":"hunter2hunter2"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:51234"
		rec := httptest.NewRecorder()
		h.Signup(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status: expected 201, got %d", rec.Code)
		}
		if len(rl.Keys) != 1 || rl.Keys[0] != "customer:signup:203.0.113.9" {
			t.Errorf("limiter keys: %v", rl.Keys)
		}
	})
}

// --- Login ---

func TestHandlerLogin(t *testing.T) {
	t.Run("200 with session cookie", func(t *testing.T) {
		h, rl, _ := newHandler(seedCustomer(t, "alice@example.com", "correct-password"))

		rec := postJSON(h.Login, `{"email":"alice@example.com","password":"correct-password"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		sessionCookie(t, rec)
		// Limiter keyed per track, endpoint, and normalized email.
		if len(rl.Keys) != 1 || rl.Keys[0] != "customer:login:alice@example.com" {
			t.Errorf("limiter keys: %v", rl.Keys)
		}
	})

	t.Run("bad credentials and malformed email look identical", func(t *testing.T) {
		h, _, _ := newHandler(seedCustomer(t, "alice@example.com", "correct-password"))

		wrong := postJSON(h.Login, `{"email":"alice@example.com","password":"wrong-password"}`)
		malformed := postJSON(h.Login, `{"email":"not-an-email","password":"whatever-pass"}`)
		if wrong.Code != http.StatusUnauthorized || malformed.Code != http.StatusUnauthorized {
			t.Fatalf("statuses: %d, %d", wrong.Code, malformed.Code)
		}
		if wrong.Body.String() != malformed.Body.String() {
			t.Error("responses must be indistinguishable")
		}
	})

	t.Run("rejected attempts never reach the password check", func(t *testing.T) {
		h, rl, dir := newHandler(seedCustomer(t, "alice@example.com", "correct-password"))
		rl.Deny = true
		dir.FindByEmailErr = errors.New("directory should not be queried")

		rec := postJSON(h.Login, `{"email":"alice@example.com","password":"correct-password"}`)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("status: expected 429, got %d", rec.Code)
		}
	})
}

// --- Me ---

func TestHandlerMe(t *testing.T) {
	// RFC 5322 allows quoted local parts; the response must stay valid JSON.
	t.Run("escapes stored emails", func(t *testing.T) {
		h, _, _ := newHandler()
		c := seedCustomer(t, `"al\"ice"@example.com`, "correct-password")

		req := httptest.NewRequest("GET", "/me", nil)
		req = req.WithContext(context.WithValue(req.Context(), principalKey, store.Principal(c)))
		rec := httptest.NewRecorder()
		h.Me(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status: expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body.Email != c.PrincipalEmail() {
			t.Errorf("email: %q", body.Email)
		}
	})
}

// --- Password reset request ---

func TestHandlerPasswordResetRequest(t *testing.T) {
	t.Run("200 generic message whether or not the account exists", func(t *testing.T) {
		h, _, _ := newHandler(seedCustomer(t, "alice@example.com", "password-1"))

		known := postJSON(h.PasswordResetRequest, `{"email":"alice@example.com"}`)
		unknown := postJSON(h.PasswordResetRequest, `{"email":"ghost@example.com"}`)
		if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
			t.Fatalf("statuses: %d, %d", known.Code, unknown.Code)
		}
		if known.Body.String() != unknown.Body.String() {
			t.Error("responses must be indistinguishable")
		}
	})

	t.Run("repeat inside the cooldown is 429", func(t *testing.T) {
		h, _, _ := newHandler(seedCustomer(t, "alice@example.com", "password-1"))

		if rec := postJSON(h.PasswordResetRequest, `{"email":"alice@example.com"}`); rec.Code != http.StatusOK {
			t.Fatalf("first request: %d", rec.Code)
		}
		rec := postJSON(h.PasswordResetRequest, `{"email":"alice@example.com"}`)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("status: expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Error("expected Retry-After header")
		}
	})
}

// --- Password reset confirm ---

func TestHandlerPasswordResetConfirm(t *testing.T) {
	t.Run("bad token is 400 with a stable code", func(t *testing.T) {
		h, _, _ := newHandler()

		rec := postJSON(h.PasswordResetConfirm, `{"token":"nope","new_password":"new-password-2"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status: expected 400, got %d", rec.Code)
		}
		var body struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if body.Error != "TOKEN_INVALID" {
			t.Errorf("error code: %q", body.Error)
		}
	})

	t.Run("missing fields are 400", func(t *testing.T) {
		h, _, _ := newHandler()
		for _, body := range []string{
			`{"new_password":"new-password-2"}`,
			`{"token":"tok","new_password":"short"}`,
		} {
			if rec := postJSON(h.PasswordResetConfirm, body); rec.Code != http.StatusBadRequest {
				t.Errorf("body %q: expected 400, got %d", body, rec.Code)
			}
		}
	})
}
