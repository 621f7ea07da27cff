// stores.go
//
// Shared mock implementations of the auth package's store interfaces.
// Imported by test files across packages to avoid duplicate mock definitions.
//
// Always stateful...maps behave like the real store. Use *Err fields to
// inject errors for specific operations.
package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/AryanTejani/backend-Lms-sub001/internal/store"
)

// MockDirectory implements auth.PrincipalStore for tests.
// Seeded principals are indexed by normalized email and by ID.
type MockDirectory struct {
	// Error injection...zero value means no error
	FindByEmailErr    error
	FindByIDErr       error
	CreateErr         error
	UpdatePasswordErr error

	ByEmail map[string]store.Principal
	ByID    map[uuid.UUID]store.Principal

	mu sync.Mutex
}

// NewMockDirectory returns a MockDirectory seeded with the given principals.
func NewMockDirectory(principals ...store.Principal) *MockDirectory {
	d := &MockDirectory{
		ByEmail: make(map[string]store.Principal),
		ByID:    make(map[uuid.UUID]store.Principal),
	}
	for _, p := range principals {
		d.ByEmail[strings.ToLower(p.PrincipalEmail())] = p
		d.ByID[p.PrincipalID()] = p
	}
	return d
}

func (d *MockDirectory) FindByEmail(_ context.Context, email string) (store.Principal, error) {
	if d.FindByEmailErr != nil {
		return nil, d.FindByEmailErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.ByEmail[strings.ToLower(email)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

func (d *MockDirectory) FindByID(_ context.Context, id uuid.UUID) (store.Principal, error) {
	if d.FindByIDErr != nil {
		return nil, d.FindByIDErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.ByID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return p, nil
}

// Create inserts a customer-shaped principal. Duplicate emails return the
// same unique-violation error the real store surfaces.
func (d *MockDirectory) Create(_ context.Context, email, passwordHash string) (store.Principal, error) {
	if d.CreateErr != nil {
		return nil, d.CreateErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.ByEmail[strings.ToLower(email)]; exists {
		return nil, &pgconn.PgError{Code: "23505", ConstraintName: "customers_email_key"}
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	c := &store.Customer{ID: id, Email: strings.ToLower(email), PasswordHash: &passwordHash}
	d.ByEmail[c.Email] = c
	d.ByID[c.ID] = c
	return c, nil
}

// UpdatePassword swaps the stored hash and clears any forced-reset flag,
// mirroring the real UPDATE.
func (d *MockDirectory) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	if d.UpdatePasswordErr != nil {
		return d.UpdatePasswordErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.ByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	switch v := p.(type) {
	case *store.Customer:
		v.PasswordHash = &passwordHash
		v.RequiresPasswordReset = false
	case *store.Staff:
		v.PasswordHash = &passwordHash
	}
	return nil
}

// MockSessions implements auth.SessionStore and auth.SessionJanitor.
// Principals must be seeded for FindActiveWithPrincipal to join against.
type MockSessions struct {
	// Error injection...zero value means no error
	CreateErr    error
	FindErr      error
	RevokeErr    error
	RevokeAllErr error
	CleanupErr   error

	Sessions   map[uuid.UUID]*store.Session
	Principals map[uuid.UUID]store.Principal
	MaxAge     time.Duration

	mu sync.Mutex
}

// NewMockSessions returns an empty session store joined to the given
// directory's principals, with a 30-day max age.
func NewMockSessions(dir *MockDirectory) *MockSessions {
	return &MockSessions{
		Sessions:   make(map[uuid.UUID]*store.Session),
		Principals: dir.ByID,
		MaxAge:     30 * 24 * time.Hour,
	}
}

func (m *MockSessions) Create(_ context.Context, principalID uuid.UUID) (*store.Session, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	sess := &store.Session{ID: id, PrincipalID: principalID, CreatedAt: time.Now()}
	m.mu.Lock()
	m.Sessions[id] = sess
	m.mu.Unlock()
	return sess, nil
}

func (m *MockSessions) FindActiveWithPrincipal(_ context.Context, sessionID uuid.UUID) (*store.Session, store.Principal, error) {
	if m.FindErr != nil {
		return nil, nil, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.Sessions[sessionID]
	if !ok || sess.RevokedAt != nil || time.Since(sess.CreatedAt) > m.MaxAge {
		return nil, nil, pgx.ErrNoRows
	}
	p, ok := m.Principals[sess.PrincipalID]
	if !ok {
		return nil, nil, pgx.ErrNoRows
	}
	return sess, p, nil
}

func (m *MockSessions) Revoke(_ context.Context, sessionID uuid.UUID) error {
	if m.RevokeErr != nil {
		return m.RevokeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.Sessions[sessionID]; ok && sess.RevokedAt == nil {
		now := time.Now()
		sess.RevokedAt = &now
	}
	return nil
}

func (m *MockSessions) RevokeAllForPrincipal(_ context.Context, principalID uuid.UUID) (int64, error) {
	if m.RevokeAllErr != nil {
		return 0, m.RevokeAllErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for _, sess := range m.Sessions {
		if sess.PrincipalID == principalID && sess.RevokedAt == nil {
			sess.RevokedAt = &now
			n++
		}
	}
	return n, nil
}

func (m *MockSessions) CleanupRevoked(_ context.Context, retention time.Duration, _ int) (int64, error) {
	if m.CleanupErr != nil {
		return 0, m.CleanupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-retention)
	var n int64
	for id, sess := range m.Sessions {
		if sess.RevokedAt != nil && sess.RevokedAt.Before(cutoff) {
			delete(m.Sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *MockSessions) CleanupExpired(_ context.Context, maxAge time.Duration, _ int) (int64, error) {
	if m.CleanupErr != nil {
		return 0, m.CleanupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-(maxAge + 24*time.Hour))
	var n int64
	for id, sess := range m.Sessions {
		if sess.CreatedAt.Before(cutoff) {
			delete(m.Sessions, id)
			n++
		}
	}
	return n, nil
}

// ActiveCount reports how many unrevoked sessions a principal holds.
func (m *MockSessions) ActiveCount(principalID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sess := range m.Sessions {
		if sess.PrincipalID == principalID && sess.RevokedAt == nil {
			n++
		}
	}
	return n
}

// MockCache implements auth.SessionCache for tests.
type MockCache struct {
	// Error injection...zero value means no error
	GetErr           error
	SetErr           error
	InvalidateErr    error
	InvalidateAllErr error

	Entries map[uuid.UUID]*store.CachedSession

	mu sync.Mutex
}

// NewMockCache returns an empty MockCache ready for use.
func NewMockCache() *MockCache {
	return &MockCache{Entries: make(map[uuid.UUID]*store.CachedSession)}
}

func (m *MockCache) Get(_ context.Context, sessionID uuid.UUID) (*store.CachedSession, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.Entries[sessionID]
	if !ok {
		return nil, store.ErrCacheMiss
	}
	return e, nil
}

func (m *MockCache) Set(_ context.Context, sessionID uuid.UUID, p store.Principal) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries[sessionID] = &store.CachedSession{
		PrincipalID: p.PrincipalID(),
		Email:       p.PrincipalEmail(),
		CachedAt:    time.Now(),
	}
	return nil
}

func (m *MockCache) Invalidate(_ context.Context, sessionID uuid.UUID) error {
	if m.InvalidateErr != nil {
		return m.InvalidateErr
	}
	m.mu.Lock()
	delete(m.Entries, sessionID)
	m.mu.Unlock()
	return nil
}

func (m *MockCache) InvalidateAllForPrincipal(_ context.Context, principalID uuid.UUID) (int, error) {
	if m.InvalidateAllErr != nil {
		return 0, m.InvalidateAllErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.Entries {
		if e.PrincipalID == principalID {
			delete(m.Entries, id)
			n++
		}
	}
	return n, nil
}
