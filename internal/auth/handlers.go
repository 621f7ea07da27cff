// handlers.go -- HTTP handlers for one track's auth endpoints.
//
// The customer app and the staff console mount the same Handler type over
// different gateways; the OAuth handlers are only routed on the customer
// side, where Handler.OAuth is non-nil.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/AryanTejani/backend-Lms-sub001/internal/store"
)

// RateLimiter checks a sliding window counter for one key.
// Satisfied by *store.RateLimiter -- defined here per Go convention.
type RateLimiter interface {
	Check(ctx context.Context, key string, maxRequests int, window time.Duration) (store.RateLimitResult, error)
}

// RatePolicy is one endpoint's rate limit: at most Max requests per Window.
type RatePolicy struct {
	Max    int
	Window time.Duration
}

// RateLimits groups the per-endpoint policies for one track.
type RateLimits struct {
	Login  RatePolicy
	Signup RatePolicy
	Reset  RatePolicy
}

// sessionResponse is the body for every endpoint that opens a session.
type sessionResponse struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
}

// Handler holds the dependencies for one track's HTTP surface.
type Handler struct {
	Track  string
	GW     *Gateway
	Reset  *ResetFlow
	OAuth  *OAuthFlow // nil on the staff track
	RL     RateLimiter
	Limits RateLimits

	// SessionMaxAge caps the session cookie lifetime to match the server-side
	// session max age.
	SessionMaxAge time.Duration
}

// allow runs the rate limit check for one policy, keyed per track, endpoint,
// and subject: the normalized email where one account is the target (login,
// reset), the client address where none exists yet (signup). Returns false
// after writing the 429 when the caller is over budget. Limiter
// infrastructure failures follow the limiter's fail-open/fail-closed policy.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, op, subject string, p RatePolicy) bool {
	res, err := h.RL.Check(r.Context(), h.Track+":"+op+":"+subject, p.Max, p.Window)
	if err != nil {
		logError(r, "rate limiter check failed", "op", op, "error", err, "allowed", res.Allowed)
	}
	if !res.Allowed {
		logWarn(r, "rate limited", "track", h.Track, "op", op)
		RateLimited(w, res.ResetAt)
		return false
	}
	return true
}

// clientAddr extracts the caller's IP from RemoteAddr, dropping the port so
// one client maps to one limiter key across connections.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Signup handles POST /signup -- email + password registration.
// 201 with the principal id on success; a session cookie is set so the new
// account is immediately logged in.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		logWarn(r, "failed to decode signup input", "error", err)
		BadRequest(w, r, "error decoding request body")
		return
	}
	if msg := ValidateEmail(in.Email); msg != "" {
		BadRequest(w, r, msg)
		return
	}
	if msg := ValidatePassword(in.Password); msg != "" {
		BadRequest(w, r, msg)
		return
	}

	// Keyed by client address: no account exists yet, and an email key would
	// be sidestepped by rotating addresses. RealIP middleware has already
	// rewritten RemoteAddr behind a trusted proxy.
	if !h.allow(w, r, "signup", clientAddr(r), h.Limits.Signup) {
		return
	}

	p, sess, err := h.GW.Signup(r.Context(), in.Email, in.Password)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	SetSessionCookie(w, sess.ID, h.SessionMaxAge)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: p.PrincipalID().String(), SessionID: sess.ID.String()})
}

// Login handles POST /login -- email + password authentication.
// 200 with the principal id and a session cookie; 401 for bad credentials.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		logWarn(r, "failed to decode login input", "error", err)
		BadRequest(w, r, "error decoding request body")
		return
	}
	// Malformed email or missing password both collapse to the generic 401.
	if msg := ValidateEmail(in.Email); msg != "" {
		WriteDomainError(w, r, ErrInvalidCredentials)
		return
	}
	if in.Password == "" {
		WriteDomainError(w, r, ErrInvalidCredentials)
		return
	}

	// Rejected attempts never reach bcrypt.
	if !h.allow(w, r, "login", NormalizeEmail(in.Email), h.Limits.Login) {
		return
	}

	p, sess, err := h.GW.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	SetSessionCookie(w, sess.ID, h.SessionMaxAge)
	writeJSON(w, http.StatusOK, sessionResponse{ID: p.PrincipalID().String(), SessionID: sess.ID.String()})
}

// Logout handles POST /logout -- ends the authenticated session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := SessionIDFromContext(r.Context())
	if !ok {
		InternalServerError(w, r, errors.New("missing session context"))
		return
	}

	if err := h.GW.Logout(r.Context(), sessionID); err != nil {
		InternalServerError(w, r, err)
		return
	}

	ClearSessionCookie(w)
	OK(w, "logged out")
}

// LogoutAll handles POST /logout-all -- ends every session for the
// authenticated principal, on all devices.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		InternalServerError(w, r, errors.New("missing session context"))
		return
	}

	if _, err := h.GW.RevokeAll(r.Context(), p.PrincipalID()); err != nil {
		InternalServerError(w, r, err)
		return
	}

	ClearSessionCookie(w)
	OK(w, "logged out of all devices")
}

// Me handles GET /me -- returns the authenticated principal's identity.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		InternalServerError(w, r, errors.New("missing session context"))
		return
	}

	writeJSON(w, http.StatusOK, struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}{ID: p.PrincipalID().String(), Email: p.PrincipalEmail()})
}

// PasswordChange handles POST /password/change -- authenticated password
// update. Verifies the current password and revokes every session; the
// caller logs in again with the new password.
func (h *Handler) PasswordChange(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		logWarn(r, "failed to decode password change input", "error", err)
		BadRequest(w, r, "error decoding request body")
		return
	}
	if in.CurrentPassword == "" {
		BadRequest(w, r, "current_password required")
		return
	}
	if msg := ValidatePassword(in.NewPassword); msg != "" {
		BadRequest(w, r, msg)
		return
	}

	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		InternalServerError(w, r, errors.New("missing session context"))
		return
	}

	if err := h.GW.ChangePassword(r.Context(), p.PrincipalID(), in.CurrentPassword, in.NewPassword); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	ClearSessionCookie(w)
	OK(w, "password updated")
}

// PasswordResetRequest handles POST /password/reset -- starts the email
// reset flow. On the customer track the response never reveals whether the
// account exists; a request inside the cooldown window reports the wait.
func (h *Handler) PasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		BadRequest(w, r, "error decoding request body")
		return
	}
	if msg := ValidateEmail(in.Email); msg != "" {
		BadRequest(w, r, msg)
		return
	}

	// Keyed pre-lookup so the limiter itself cannot leak account existence.
	if !h.allow(w, r, "reset", NormalizeEmail(in.Email), h.Limits.Reset) {
		return
	}

	res, err := h.Reset.RequestReset(r.Context(), in.Email)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}
	if res.CooldownRemaining > 0 {
		RateLimited(w, time.Now().Add(res.CooldownRemaining))
		return
	}

	OK(w, "if that email exists, a reset link has been sent")
}

// PasswordResetConfirm handles POST /password/reset/confirm -- redeems the
// emailed token and sets the new password. Unauthenticated; possession of
// the token is the proof of ownership.
func (h *Handler) PasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		logWarn(r, "failed to decode reset confirm input", "error", err)
		BadRequest(w, r, "error decoding request body")
		return
	}
	if in.Token == "" {
		BadRequest(w, r, "token required")
		return
	}
	if msg := ValidatePassword(in.NewPassword); msg != "" {
		BadRequest(w, r, msg)
		return
	}

	if err := h.Reset.ResetPassword(r.Context(), in.Token, in.NewPassword); err != nil {
		WriteDomainError(w, r, err)
		return
	}

	OK(w, "password updated")
}

// OAuthRedirect handles GET /oauth/google -- starts the provider round trip.
func (h *Handler) OAuthRedirect(w http.ResponseWriter, r *http.Request) {
	url, err := h.OAuth.Begin(r.Context())
	if err != nil {
		InternalServerError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// OAuthCallback handles GET /oauth/google/callback -- completes the round
// trip and opens a session.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		WriteDomainError(w, r, ErrOAuthStateInvalid)
		return
	}

	p, sess, err := h.OAuth.Callback(r.Context(), state, code)
	if err != nil {
		WriteDomainError(w, r, err)
		return
	}

	SetSessionCookie(w, sess.ID, h.SessionMaxAge)
	writeJSON(w, http.StatusOK, sessionResponse{ID: p.PrincipalID().String(), SessionID: sess.ID.String()})
}
