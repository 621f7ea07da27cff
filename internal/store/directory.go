// directory.go -- Track-specific principal directories.
//
// The auth gateway is written against a single principal interface; these
// thin wrappers expose the customer and staff tables through it so one
// gateway implementation serves both tracks.
package store

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

// CustomerDirectory adapts customer queries to the principal shape the auth
// gateway consumes.
type CustomerDirectory struct {
	db *PostgresStore
}

// NewCustomerDirectory wraps the shared PostgresStore.
func NewCustomerDirectory(db *PostgresStore) *CustomerDirectory {
	return &CustomerDirectory{db: db}
}

func (d *CustomerDirectory) FindByEmail(ctx context.Context, email string) (Principal, error) {
	c, err := d.db.GetCustomerByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (d *CustomerDirectory) FindByID(ctx context.Context, id uuid.UUID) (Principal, error) {
	c, err := d.db.GetCustomerByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (d *CustomerDirectory) Create(ctx context.Context, email, passwordHash string) (Principal, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	if err := d.db.CreateCustomer(ctx, id, email, passwordHash); err != nil {
		return nil, err
	}
	return &Customer{ID: id, Email: email, PasswordHash: &passwordHash}, nil
}

func (d *CustomerDirectory) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return d.db.UpdateCustomerPassword(ctx, id, passwordHash)
}

// StaffDirectory adapts staff queries to the principal shape the auth
// gateway consumes.
type StaffDirectory struct {
	db *PostgresStore
}

// NewStaffDirectory wraps the shared PostgresStore.
func NewStaffDirectory(db *PostgresStore) *StaffDirectory {
	return &StaffDirectory{db: db}
}

func (d *StaffDirectory) FindByEmail(ctx context.Context, email string) (Principal, error) {
	st, err := d.db.GetStaffByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (d *StaffDirectory) FindByID(ctx context.Context, id uuid.UUID) (Principal, error) {
	st, err := d.db.GetStaffByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (d *StaffDirectory) Create(ctx context.Context, email, passwordHash string) (Principal, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	if err := d.db.CreateStaff(ctx, id, email, passwordHash); err != nil {
		return nil, err
	}
	return &Staff{ID: id, Email: email, PasswordHash: &passwordHash, IsActive: true}, nil
}

func (d *StaffDirectory) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return d.db.UpdateStaffPassword(ctx, id, passwordHash)
}
