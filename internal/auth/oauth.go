// oauth.go -- OAuth sign-in flow, customer track only.
//
// PKCE state lives in Redis for the duration of the redirect round-trip and
// is consumed atomically on callback, so a replayed state loses the race.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AryanTejani/backend-Lms-sub001/internal/oauth"
	"github.com/AryanTejani/backend-Lms-sub001/internal/store"
)

// OAuthStateStore is the transient PKCE state for in-flight authorizations.
// Implemented by store.OAuthStateStore.
type OAuthStateStore interface {
	Save(ctx context.Context, state string, st store.OAuthState) error
	Consume(ctx context.Context, state string) (*store.OAuthState, error)
}

// OAuthAccountResolver maps a verified provider identity to a customer row.
// Implemented by store.PostgresStore.
type OAuthAccountResolver interface {
	FindOrCreateOAuthCustomer(ctx context.Context, provider, providerID, email string) (*store.Customer, error)
}

// OAuthFlow drives the authorize-redirect / callback pair for one provider.
type OAuthFlow struct {
	Provider    oauth.Provider
	States      OAuthStateStore
	Accounts    OAuthAccountResolver
	Gateway     *Gateway
	RedirectURI string
}

// Begin generates state and the PKCE pair, stashes them, and returns the
// provider consent URL to redirect the browser to.
func (f *OAuthFlow) Begin(ctx context.Context) (string, error) {
	state, err := GenerateSecureToken(32)
	if err != nil {
		return "", err
	}
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return "", err
	}

	st := store.OAuthState{
		Provider:     f.Provider.Name(),
		CodeVerifier: verifier,
		RedirectURI:  f.RedirectURI,
		CreatedAt:    time.Now().UTC(),
	}
	if err := f.States.Save(ctx, state, st); err != nil {
		return "", fmt.Errorf("saving oauth state: %w", err)
	}

	return f.Provider.AuthCodeURL(state, GenerateCodeChallenge(verifier)), nil
}

// Callback completes the flow: consume the state, exchange the code with the
// stored verifier, resolve the account, and open a session.
func (f *OAuthFlow) Callback(ctx context.Context, state, code string) (store.Principal, *store.Session, error) {
	st, err := f.States.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, store.ErrStateNotFound) {
			return nil, nil, ErrOAuthStateInvalid
		}
		return nil, nil, fmt.Errorf("consuming oauth state: %w", err)
	}
	if st.Provider != f.Provider.Name() {
		return nil, nil, ErrOAuthStateInvalid
	}

	claims, err := f.Provider.Exchange(ctx, code, st.CodeVerifier)
	if err != nil {
		slog.Warn("oauth code exchange failed", "provider", f.Provider.Name(), "error", err)
		return nil, nil, ErrOAuthProviderError
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, nil, ErrOAuthEmailRequired
	}

	customer, err := f.Accounts.FindOrCreateOAuthCustomer(ctx,
		f.Provider.Name(), claims.Sub, NormalizeEmail(claims.Email))
	if err != nil {
		return nil, nil, fmt.Errorf("resolving oauth account: %w", err)
	}

	sess, err := f.Gateway.OpenSession(ctx, customer)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("oauth login", "provider", f.Provider.Name(), "principal_id", customer.ID)
	return customer, sess, nil
}
