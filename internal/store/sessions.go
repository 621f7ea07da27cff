// sessions.go -- Durable session rows for both tracks.
//
// customer_sessions and staff_sessions have identical shapes, so one
// sessionTable implementation serves both; the track types add the joined
// principal lookup, which is the only per-track query.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// sessionTable holds the session queries shared by both tracks.
// table is one of two compile-time constants, never user input, so it is
// safe to splice into query strings.
type sessionTable struct {
	db     *PostgresStore
	table  string
	maxAge time.Duration
}

// Create generates a time-ordered UUIDv7 id and inserts an unrevoked row.
func (t *sessionTable) Create(ctx context.Context, principalID uuid.UUID) (*Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}

	var sess Session
	err = t.db.pool.QueryRow(ctx,
		"INSERT INTO "+t.table+" (id, principal_id) VALUES ($1, $2) RETURNING id, principal_id, created_at, revoked_at",
		id, principalID,
	).Scan(&sess.ID, &sess.PrincipalID, &sess.CreatedAt, &sess.RevokedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return &sess, nil
}

// Revoke sets revoked_at exactly once. Revoking an already-revoked or
// missing session is a no-op, not an error.
func (t *sessionTable) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	_, err := t.db.pool.Exec(ctx,
		"UPDATE "+t.table+" SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL",
		sessionID)
	if err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

// RevokeAllForPrincipal bulk-revokes every unrevoked session for a principal
// and returns how many were revoked (0 if none).
func (t *sessionTable) RevokeAllForPrincipal(ctx context.Context, principalID uuid.UUID) (int64, error) {
	tag, err := t.db.pool.Exec(ctx,
		"UPDATE "+t.table+" SET revoked_at = now() WHERE principal_id = $1 AND revoked_at IS NULL",
		principalID)
	if err != nil {
		return 0, fmt.Errorf("revoking sessions for principal: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CleanupRevoked deletes sessions revoked longer than retention ago, at most
// batchSize rows per statement, looping until a short batch. Batching bounds
// lock duration and replication lag; never one unbounded DELETE.
func (t *sessionTable) CleanupRevoked(ctx context.Context, retention time.Duration, batchSize int) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return t.deleteBatched(ctx,
		"DELETE FROM "+t.table+" WHERE id IN (SELECT id FROM "+t.table+" WHERE revoked_at < $1 LIMIT $2)",
		cutoff, batchSize)
}

// CleanupExpired deletes sessions older than maxAge plus one day of slack,
// regardless of revocation -- covers sessions that were never logged out.
// Same batching discipline as CleanupRevoked.
func (t *sessionTable) CleanupExpired(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	cutoff := time.Now().Add(-(maxAge + 24*time.Hour))
	return t.deleteBatched(ctx,
		"DELETE FROM "+t.table+" WHERE id IN (SELECT id FROM "+t.table+" WHERE created_at < $1 LIMIT $2)",
		cutoff, batchSize)
}

func (t *sessionTable) deleteBatched(ctx context.Context, query string, cutoff time.Time, batchSize int) (int64, error) {
	var total int64
	for {
		tag, err := t.db.pool.Exec(ctx, query, cutoff, batchSize)
		if err != nil {
			return total, fmt.Errorf("deleting session batch: %w", err)
		}
		total += tag.RowsAffected()
		if tag.RowsAffected() < int64(batchSize) {
			return total, nil
		}
	}
}

// activeFilter is shared by the joined lookups: unrevoked and within max age.
const activeFilter = "s.id = $1 AND s.revoked_at IS NULL AND s.created_at > $2"

// CustomerSessions is the durable session store for the customer track.
type CustomerSessions struct {
	sessionTable
}

// NewCustomerSessions returns the session store over customer_sessions.
func NewCustomerSessions(db *PostgresStore, maxAge time.Duration) *CustomerSessions {
	return &CustomerSessions{sessionTable{db: db, table: "customer_sessions", maxAge: maxAge}}
}

// FindActiveWithPrincipal resolves an active session and its customer in a
// single joined round trip -- the request hot path.
// Returns pgx.ErrNoRows when the session is revoked, expired, or absent.
func (s *CustomerSessions) FindActiveWithPrincipal(ctx context.Context, sessionID uuid.UUID) (*Session, Principal, error) {
	row := s.db.pool.QueryRow(ctx, `
		SELECT s.id, s.principal_id, s.created_at, s.revoked_at, `+customerColumns2("c")+`
		FROM customer_sessions s
		JOIN customers c ON c.id = s.principal_id
		WHERE `+activeFilter,
		sessionID, time.Now().Add(-s.maxAge))

	var sess Session
	var c Customer
	err := row.Scan(&sess.ID, &sess.PrincipalID, &sess.CreatedAt, &sess.RevokedAt,
		&c.ID, &c.Email, &c.PasswordHash, &c.FirstName, &c.LastName,
		&c.RequiresPasswordReset, &c.OAuthProvider, &c.OAuthProviderID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, nil, err
	}
	return &sess, &c, nil
}

// StaffSessions is the durable session store for the staff track.
type StaffSessions struct {
	sessionTable
}

// NewStaffSessions returns the session store over staff_sessions.
func NewStaffSessions(db *PostgresStore, maxAge time.Duration) *StaffSessions {
	return &StaffSessions{sessionTable{db: db, table: "staff_sessions", maxAge: maxAge}}
}

// FindActiveWithPrincipal resolves an active session and its staff member in
// a single joined round trip.
// Returns pgx.ErrNoRows when the session is revoked, expired, or absent.
func (s *StaffSessions) FindActiveWithPrincipal(ctx context.Context, sessionID uuid.UUID) (*Session, Principal, error) {
	row := s.db.pool.QueryRow(ctx, `
		SELECT s.id, s.principal_id, s.created_at, s.revoked_at,
		       c.id, c.email, c.password_hash, c.full_name, c.role, c.is_active, c.created_at, c.updated_at
		FROM staff_sessions s
		JOIN staff c ON c.id = s.principal_id
		WHERE `+activeFilter,
		sessionID, time.Now().Add(-s.maxAge))

	var sess Session
	var st Staff
	err := row.Scan(&sess.ID, &sess.PrincipalID, &sess.CreatedAt, &sess.RevokedAt,
		&st.ID, &st.Email, &st.PasswordHash, &st.FullName, &st.Role, &st.IsActive, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, nil, err
	}
	return &sess, &st, nil
}

// customerColumns2 prefixes the customer column list with a table alias for
// use inside joins.
func customerColumns2(alias string) string {
	return alias + `.id, ` + alias + `.email, ` + alias + `.password_hash, ` +
		alias + `.first_name, ` + alias + `.last_name, ` + alias + `.requires_password_reset, ` +
		alias + `.oauth_provider, ` + alias + `.oauth_provider_id, ` + alias + `.created_at, ` + alias + `.updated_at`
}
