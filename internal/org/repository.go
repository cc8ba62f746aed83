package org

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for organisation and user persistence.
// The abstraction allows mock implementations in unit tests.
type Repository interface {
	// GetByID retrieves an organisation by its unique identifier.
	// Returns ErrNotFound if the organisation does not exist.
	GetByID(ctx context.Context, id string) (*Organization, error)

	// List retrieves all organisations.
	List(ctx context.Context) ([]Organization, error)

	// Create inserts a new organisation.
	Create(ctx context.Context, o *Organization) error

	// Update modifies an existing organisation.
	// Returns ErrNotFound if the organisation does not exist.
	Update(ctx context.Context, o *Organization) error

	// Delete removes an organisation and all owned resources (cascades).
	Delete(ctx context.Context, id string) error

	// GetUserByEmail retrieves a user by email address for login.
	// Returns ErrNotFound if no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByID retrieves a user by its unique identifier.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// CreateUser inserts a new user.
	// Returns ErrDuplicateEmail if the email is already registered.
	CreateUser(ctx context.Context, u *User) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const orgColumns = `id, name, created_at, updated_at`

// GetByID retrieves an organisation by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = ?`

	o, err := scanOrganization(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying organization by id: %w", err)
	}
	return o, nil
}

// List retrieves all organisations ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying organizations: %w", err)
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning organization: %w", err)
		}
		orgs = append(orgs, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating organizations: %w", err)
	}
	return orgs, nil
}

// Create inserts a new organisation.
func (r *SQLiteRepository) Create(ctx context.Context, o *Organization) error {
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		o.ID,
		o.Name,
		o.CreatedAt.Format(time.RFC3339),
		o.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting organization: %w", err)
	}
	return nil
}

// Update modifies an existing organisation.
func (r *SQLiteRepository) Update(ctx context.Context, o *Organization) error {
	o.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		`UPDATE organizations SET name = ?, updated_at = ? WHERE id = ?`,
		o.Name,
		o.UpdatedAt.Format(time.RFC3339),
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("updating organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an organisation by ID. Foreign key cascades remove all
// owned connectors, devices, events, automations and locations.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting organization: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

const userColumns = `id, organization_id, email, password_hash, role, created_at, updated_at`

// GetUserByEmail retrieves a user by email address.
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return u, nil
}

// GetUserByID retrieves a user by its unique identifier.
func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying user by id: %w", err)
	}
	return u, nil
}

// CreateUser inserts a new user.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, organization_id, email, password_hash, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.OrganizationID,
		u.Email,
		u.PasswordHash,
		string(u.Role),
		u.CreatedAt.Format(time.RFC3339),
		u.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(scanner rowScanner) (*Organization, error) {
	var o Organization
	var createdAt, updatedAt string

	if err := scanner.Scan(&o.ID, &o.Name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var parseErr error
	o.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	o.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}
	return &o, nil
}

func scanUser(scanner rowScanner) (*User, error) {
	var u User
	var role string
	var createdAt, updatedAt string

	if err := scanner.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.PasswordHash, &role, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	u.Role = Role(role)

	var parseErr error
	u.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	u.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}
	return &u, nil
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
