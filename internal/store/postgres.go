// Package store handles all database and cache interactions.
//
// postgres.go -- pgxpool connection setup and principal queries.
// One pool is created at startup and shared across all handlers.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore wraps a pgx connection pool for the relational store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a verified connection pool to PostgreSQL.
// Call once at startup from main.go; the returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool and releases all resources.
// Call via defer in main.go after creating the store.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

const customerColumns = `id, email, password_hash, first_name, last_name,
	requires_password_reset, oauth_provider, oauth_provider_id, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Email, &c.PasswordHash, &c.FirstName, &c.LastName,
		&c.RequiresPasswordReset, &c.OAuthProvider, &c.OAuthProviderID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCustomer inserts a new customer with email + password credentials.
// The caller generates the UUIDv7 and bcrypt hash before calling this.
// Returns the raw pgx error; callers inspect it for unique violations.
func (s *PostgresStore) CreateCustomer(ctx context.Context, id uuid.UUID, email, passwordHash string) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO customers (id, email, password_hash) VALUES ($1, $2, $3)",
		id, email, passwordHash)
	return err
}

// GetCustomerByEmail fetches a customer by normalized email.
// Returns pgx.ErrNoRows if no such account exists.
func (s *PostgresStore) GetCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	return scanCustomer(s.pool.QueryRow(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE lower(email) = lower($1)", email))
}

// GetCustomerByID fetches a customer by id. Returns pgx.ErrNoRows if absent.
func (s *PostgresStore) GetCustomerByID(ctx context.Context, id uuid.UUID) (*Customer, error) {
	return scanCustomer(s.pool.QueryRow(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id = $1", id))
}

// UpdateCustomerPassword stores a new bcrypt hash and clears the forced-reset
// flag -- completing a reset always unblocks login.
func (s *PostgresStore) UpdateCustomerPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE customers SET password_hash = $2, requires_password_reset = FALSE, updated_at = now()
		 WHERE id = $1`, id, passwordHash)
	return err
}

// FindOrCreateOAuthCustomer resolves an OAuth identity to a customer inside a
// single transaction. Three-way branch: existing link, existing email account
// (link it), or a brand-new account. The email row is locked FOR UPDATE and
// the insert uses ON CONFLICT DO NOTHING so two concurrent first-time
// callbacks for the same email converge on one row instead of creating two.
func (s *PostgresStore) FindOrCreateOAuthCustomer(ctx context.Context, provider, providerID, email string) (*Customer, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning oauth transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Returning user -- already has this OAuth identity.
	c, err := scanCustomer(tx.QueryRow(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE oauth_provider = $1 AND oauth_provider_id = $2",
		provider, providerID))
	if err == nil {
		return c, tx.Commit(ctx)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("looking up oauth customer: %w", err)
	}

	// Existing email account -- link this OAuth identity to it.
	c, err = scanCustomer(tx.QueryRow(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE lower(email) = lower($1) FOR UPDATE", email))
	if err == nil {
		if _, err := tx.Exec(ctx,
			`UPDATE customers SET oauth_provider = $2, oauth_provider_id = $3, updated_at = now()
			 WHERE id = $1 AND oauth_provider IS NULL`, c.ID, provider, providerID); err != nil {
			return nil, fmt.Errorf("linking oauth identity: %w", err)
		}
		return c, tx.Commit(ctx)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("looking up customer by email for oauth link: %w", err)
	}

	// New customer. ON CONFLICT covers the race where another callback with
	// the same email committed between our lookup and this insert.
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating customer id: %w", err)
	}
	tag, err := tx.Exec(ctx,
		`INSERT INTO customers (id, email, oauth_provider, oauth_provider_id)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (lower(email)) DO NOTHING`,
		id, email, provider, providerID)
	if err != nil {
		return nil, fmt.Errorf("creating oauth customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost the race; the committed row wins.
		c, err = scanCustomer(tx.QueryRow(ctx,
			"SELECT "+customerColumns+" FROM customers WHERE lower(email) = lower($1)", email))
		if err != nil {
			return nil, fmt.Errorf("re-reading customer after insert conflict: %w", err)
		}
		return c, tx.Commit(ctx)
	}

	c, err = scanCustomer(tx.QueryRow(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id = $1", id))
	if err != nil {
		return nil, fmt.Errorf("reading created oauth customer: %w", err)
	}
	return c, tx.Commit(ctx)
}

const staffColumns = `id, email, password_hash, full_name, role, is_active, created_at, updated_at`

func scanStaff(row pgx.Row) (*Staff, error) {
	var st Staff
	err := row.Scan(&st.ID, &st.Email, &st.PasswordHash, &st.FullName, &st.Role,
		&st.IsActive, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// CreateStaff inserts a new staff account. Staff accounts are provisioned by
// admins, never through public signup.
func (s *PostgresStore) CreateStaff(ctx context.Context, id uuid.UUID, email, passwordHash string) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO staff (id, email, password_hash) VALUES ($1, $2, $3)",
		id, email, passwordHash)
	return err
}

// GetStaffByEmail fetches a staff member by normalized email.
// Returns pgx.ErrNoRows if no such account exists.
func (s *PostgresStore) GetStaffByEmail(ctx context.Context, email string) (*Staff, error) {
	return scanStaff(s.pool.QueryRow(ctx,
		"SELECT "+staffColumns+" FROM staff WHERE lower(email) = lower($1)", email))
}

// GetStaffByID fetches a staff member by id. Returns pgx.ErrNoRows if absent.
func (s *PostgresStore) GetStaffByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return scanStaff(s.pool.QueryRow(ctx,
		"SELECT "+staffColumns+" FROM staff WHERE id = $1", id))
}

// UpdateStaffPassword stores a new bcrypt hash for a staff account.
func (s *PostgresStore) UpdateStaffPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := s.pool.Exec(ctx,
		"UPDATE staff SET password_hash = $2, updated_at = now() WHERE id = $1",
		id, passwordHash)
	return err
}
