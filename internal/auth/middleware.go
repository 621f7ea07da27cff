// middleware.go

// Session authentication middleware, one Guard per track.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofrs/uuid/v5"

	"github.com/AryanTejani/backend-Lms-sub001/internal/store"
)

// SessionValidator resolves a session ID to its principal.
// Implemented by *Gateway.
type SessionValidator interface {
	ValidateSession(ctx context.Context, sessionID uuid.UUID) (store.Principal, error)
}

// contextKey is unexported to prevent collisions with other packages.
type contextKey string

const principalKey contextKey = "principal"
const sessionIDKey contextKey = "session_id"

// PrincipalFromContext retrieves the authenticated principal.
// Returns nil and false if RequireAuth hasn't run.
func PrincipalFromContext(ctx context.Context) (store.Principal, bool) {
	p, ok := ctx.Value(principalKey).(store.Principal)
	return p, ok
}

// SessionIDFromContext retrieves the validated session ID.
// Returns the nil UUID and false if RequireAuth hasn't run.
func SessionIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(sessionIDKey).(uuid.UUID)
	return id, ok
}

// Guard authenticates requests for one track's route subtree.
type Guard struct {
	Track    string
	Sessions SessionValidator
}

// RequireAuth validates the session cookie (or Bearer header) and injects
// the principal and session ID into context; 401 on any validation failure.
func (g *Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := sessionIDFromRequest(r)
		if sessionID == uuid.Nil {
			logWarn(r, "require auth failed", "track", g.Track, "reason", "missing_or_malformed_session")
			Unauthorized(w, r, "unauthorized")
			return
		}

		p, err := g.Sessions.ValidateSession(r.Context(), sessionID)
		if err != nil {
			var derr *Error
			if errors.As(err, &derr) {
				logWarn(r, "require auth failed", "track", g.Track, "reason", derr.Code)
				Unauthorized(w, r, "unauthorized")
				return
			}
			InternalServerError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, p)
		ctx = context.WithValue(ctx, sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
