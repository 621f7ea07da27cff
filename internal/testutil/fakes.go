// fakes.go
//
// Mocks for the auth package's non-store collaborators: mailer, rate
// limiter, reset token state, and the OAuth provider.
package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AryanTejani/backend-Lms-sub001/internal/oauth"
	"github.com/AryanTejani/backend-Lms-sub001/internal/store"
)

// SentMail is one recorded outbound email.
type SentMail struct {
	To        string
	Token     string
	ExpiresIn time.Duration
}

// MockMailer implements mail.Mailer, recording every send.
type MockMailer struct {
	SendErr error
	Sent    []SentMail

	mu sync.Mutex
}

func (m *MockMailer) SendPasswordReset(_ context.Context, toEmail, token string, expiresIn time.Duration) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, SentMail{To: toEmail, Token: token, ExpiresIn: expiresIn})
	m.mu.Unlock()
	return nil
}

// LastSent returns the most recent email, or nil if none were sent.
func (m *MockMailer) LastSent() *SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return nil
	}
	s := m.Sent[len(m.Sent)-1]
	return &s
}

// MockRateLimiter implements auth.RateLimiter. The zero value allows
// everything; set Deny to refuse, CheckErr to simulate Redis failure.
type MockRateLimiter struct {
	Deny     bool
	CheckErr error

	Keys []string

	mu sync.Mutex
}

func (m *MockRateLimiter) Check(_ context.Context, key string, maxRequests int, window time.Duration) (store.RateLimitResult, error) {
	m.mu.Lock()
	m.Keys = append(m.Keys, key)
	m.mu.Unlock()
	if m.CheckErr != nil {
		return store.RateLimitResult{Allowed: true}, m.CheckErr
	}
	if m.Deny {
		return store.RateLimitResult{Allowed: false, ResetAt: time.Now().Add(window)}, nil
	}
	return store.RateLimitResult{Allowed: true, Remaining: maxRequests - 1, ResetAt: time.Now().Add(window)}, nil
}

// MockResetTokens implements auth.ResetTokenStore in memory.
// TTLs are recorded but never enforced; tests control expiry by deleting.
type MockResetTokens struct {
	SaveErr     error
	GetErr      error
	AttemptErr  error
	DeleteErr   error
	CooldownErr error

	Tokens    map[string]*store.ResetToken // keyed by token hash
	Cooldowns map[string]time.Duration     // keyed by normalized email

	mu sync.Mutex
}

// NewMockResetTokens returns an empty MockResetTokens ready for use.
func NewMockResetTokens() *MockResetTokens {
	return &MockResetTokens{
		Tokens:    make(map[string]*store.ResetToken),
		Cooldowns: make(map[string]time.Duration),
	}
}

// Save mirrors the real store's one-outstanding-token-per-email rule.
func (m *MockResetTokens) Save(_ context.Context, tokenHash, email string, _ time.Duration) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, tok := range m.Tokens {
		if tok.Email == strings.ToLower(email) {
			delete(m.Tokens, hash)
		}
	}
	m.Tokens[tokenHash] = &store.ResetToken{Email: strings.ToLower(email), CreatedAt: time.Now()}
	return nil
}

func (m *MockResetTokens) Get(_ context.Context, tokenHash string) (*store.ResetToken, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Tokens[tokenHash]
	if !ok {
		return nil, store.ErrResetNotFound
	}
	return t, nil
}

func (m *MockResetTokens) RecordFailedAttempt(_ context.Context, tokenHash string, maxAttempts int) (int, error) {
	if m.AttemptErr != nil {
		return 0, m.AttemptErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Tokens[tokenHash]
	if !ok {
		return 0, store.ErrResetNotFound
	}
	t.Attempts++
	if t.Attempts >= maxAttempts {
		delete(m.Tokens, tokenHash)
		return t.Attempts, store.ErrResetAttemptsExceeded
	}
	return t.Attempts, nil
}

func (m *MockResetTokens) Delete(_ context.Context, tokenHash string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	delete(m.Tokens, tokenHash)
	m.mu.Unlock()
	return nil
}

func (m *MockResetTokens) CooldownRemaining(_ context.Context, email string) (time.Duration, error) {
	if m.CooldownErr != nil {
		return 0, m.CooldownErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Cooldowns[strings.ToLower(email)], nil
}

func (m *MockResetTokens) StartCooldown(_ context.Context, email string, d time.Duration) error {
	if m.CooldownErr != nil {
		return m.CooldownErr
	}
	m.mu.Lock()
	m.Cooldowns[strings.ToLower(email)] = d
	m.mu.Unlock()
	return nil
}

func (m *MockResetTokens) ClearCooldown(_ context.Context, email string) error {
	if m.CooldownErr != nil {
		return m.CooldownErr
	}
	m.mu.Lock()
	delete(m.Cooldowns, strings.ToLower(email))
	m.mu.Unlock()
	return nil
}

// MockStateStore implements auth.OAuthStateStore in memory with single-use
// consume semantics.
type MockStateStore struct {
	SaveErr    error
	ConsumeErr error

	States map[string]store.OAuthState

	mu sync.Mutex
}

// NewMockStateStore returns an empty MockStateStore ready for use.
func NewMockStateStore() *MockStateStore {
	return &MockStateStore{States: make(map[string]store.OAuthState)}
}

func (m *MockStateStore) Save(_ context.Context, state string, st store.OAuthState) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	m.States[state] = st
	m.mu.Unlock()
	return nil
}

func (m *MockStateStore) Consume(_ context.Context, state string) (*store.OAuthState, error) {
	if m.ConsumeErr != nil {
		return nil, m.ConsumeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.States[state]
	if !ok {
		return nil, store.ErrStateNotFound
	}
	delete(m.States, state)
	return &st, nil
}

// MockProvider implements oauth.Provider without any network calls.
// Exchange returns Claims for any code unless ExchangeErr is set.
type MockProvider struct {
	ProviderName string
	Claims       *oauth.Claims
	ExchangeErr  error

	// LastVerifier records the code_verifier presented to Exchange so tests
	// can assert the PKCE pair round-tripped.
	LastVerifier string
}

func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "google"
	}
	return m.ProviderName
}

func (m *MockProvider) AuthCodeURL(state, codeChallenge string) string {
	return "https://provider.example/auth?state=" + state + "&code_challenge=" + codeChallenge
}

func (m *MockProvider) Exchange(_ context.Context, code, codeVerifier string) (*oauth.Claims, error) {
	m.LastVerifier = codeVerifier
	if m.ExchangeErr != nil {
		return nil, m.ExchangeErr
	}
	return m.Claims, nil
}
