// session.go

// Session cookie management. The cookie carries the bare session UUID; all
// authority lives server-side in Postgres and the Redis cache.
package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

const sessionCookieName = "__Host-session"

// SetSessionCookie writes the session cookie with HttpOnly, Secure,
// SameSite=Lax. The __Host- prefix pins it to this origin, path /.
func SetSessionCookie(w http.ResponseWriter, sessionID uuid.UUID, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
}

// ClearSessionCookie overwrites the session cookie with MaxAge=-1 to trigger
// browser deletion.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// sessionIDFromRequest extracts the session ID from the cookie or, for
// non-browser clients, from an Authorization: Bearer header. Returns the nil
// UUID when neither is present or the value does not parse.
func sessionIDFromRequest(r *http.Request) uuid.UUID {
	raw := ""
	if c, err := r.Cookie(sessionCookieName); err == nil {
		raw = c.Value
	}
	if raw == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			raw = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if raw == "" {
		return uuid.Nil
	}
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
