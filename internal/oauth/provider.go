// provider.go -- Identity provider interface and normalized claims.
package oauth

import "context"

// Claims is the verified identity returned by a provider after code
// exchange. Every field comes from a signature-checked ID token; nothing
// here is client-supplied.
type Claims struct {
	Sub           string // provider-scoped stable user ID
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
}

// Provider is an OAuth2 / OIDC identity provider. PKCE (RFC 7636) is
// mandatory: AuthCodeURL embeds the code_challenge and Exchange presents
// the matching code_verifier.
type Provider interface {
	// Name is the provider identifier stored alongside linked accounts.
	Name() string

	// AuthCodeURL builds the consent page URL for the given state and
	// S256 code challenge.
	AuthCodeURL(state, codeChallenge string) string

	// Exchange trades the authorization code for verified claims.
	Exchange(ctx context.Context, code, codeVerifier string) (*Claims, error)
}
