package connector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for connector persistence operations.
type Repository interface {
	// GetByID retrieves a connector by its unique identifier.
	// Returns ErrNotFound if the connector does not exist.
	GetByID(ctx context.Context, id string) (*Connector, error)

	// List retrieves all connectors for an organisation.
	List(ctx context.Context, orgID string) ([]Connector, error)

	// ListAll retrieves all connectors across organisations.
	// Used by the sync scheduler and MQTT subscriber, which operate
	// system-wide.
	ListAll(ctx context.Context) ([]Connector, error)

	// Create inserts a new connector.
	// Returns ErrExists if a connector with the same ID already exists.
	Create(ctx context.Context, c *Connector) error

	// Update modifies an existing connector.
	// Returns ErrNotFound if the connector does not exist.
	Update(ctx context.Context, c *Connector) error

	// Delete removes a connector by ID. Devices owned by the connector
	// are removed by foreign key cascade.
	Delete(ctx context.Context, id string) error

	// SetEventsEnabled flips the live event ingestion flag.
	SetEventsEnabled(ctx context.Context, id string, enabled bool) error

	// SetOrganization reassigns a connector to a different organisation.
	// Admin-only operation.
	SetOrganization(ctx context.Context, id, orgID string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const connectorColumns = `id, organization_id, name, category, config, events_enabled, created_at, updated_at`

// GetByID retrieves a connector by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Connector, error) {
	query := `SELECT ` + connectorColumns + ` FROM connectors WHERE id = ?`

	c, err := scanConnector(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying connector by id: %w", err)
	}
	return c, nil
}

// List retrieves all connectors for an organisation, ordered by name.
func (r *SQLiteRepository) List(ctx context.Context, orgID string) ([]Connector, error) {
	query := `SELECT ` + connectorColumns + ` FROM connectors WHERE organization_id = ? ORDER BY name`
	return r.queryConnectors(ctx, query, orgID)
}

// ListAll retrieves all connectors across organisations.
func (r *SQLiteRepository) ListAll(ctx context.Context) ([]Connector, error) {
	query := `SELECT ` + connectorColumns + ` FROM connectors ORDER BY name`
	return r.queryConnectors(ctx, query)
}

// Create inserts a new connector.
func (r *SQLiteRepository) Create(ctx context.Context, c *Connector) error {
	configJSON, err := marshalConfig(c.Config)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO connectors (id, organization_id, name, category, config, events_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.OrganizationID,
		c.Name,
		string(c.Category),
		configJSON,
		boolToInt(c.EventsEnabled),
		c.CreatedAt.Format(time.RFC3339),
		c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting connector: %w", err)
	}
	return nil
}

// Update modifies an existing connector.
func (r *SQLiteRepository) Update(ctx context.Context, c *Connector) error {
	configJSON, err := marshalConfig(c.Config)
	if err != nil {
		return err
	}

	c.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE connectors SET name = ?, category = ?, config = ?, events_enabled = ?, updated_at = ?
		WHERE id = ?`,
		c.Name,
		string(c.Category),
		configJSON,
		boolToInt(c.EventsEnabled),
		c.UpdatedAt.Format(time.RFC3339),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating connector: %w", err)
	}
	return checkFound(result)
}

// Delete removes a connector by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM connectors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting connector: %w", err)
	}
	return checkFound(result)
}

// SetEventsEnabled flips the live event ingestion flag.
func (r *SQLiteRepository) SetEventsEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE connectors SET events_enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating events_enabled: %w", err)
	}
	return checkFound(result)
}

// SetOrganization reassigns a connector to a different organisation.
func (r *SQLiteRepository) SetOrganization(ctx context.Context, id, orgID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE connectors SET organization_id = ?, updated_at = ? WHERE id = ?`,
		orgID,
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("reassigning connector organization: %w", err)
	}
	return checkFound(result)
}

func (r *SQLiteRepository) queryConnectors(ctx context.Context, query string, args ...any) ([]Connector, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying connectors: %w", err)
	}
	defer rows.Close()

	var connectors []Connector
	for rows.Next() {
		c, err := scanConnector(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning connector: %w", err)
		}
		connectors = append(connectors, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connectors: %w", err)
	}
	return connectors, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnector(scanner rowScanner) (*Connector, error) {
	var c Connector
	var category, configJSON string
	var eventsEnabled int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&c.ID,
		&c.OrganizationID,
		&c.Name,
		&category,
		&configJSON,
		&eventsEnabled,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Category = Category(category)
	c.EventsEnabled = eventsEnabled != 0

	if err := json.Unmarshal([]byte(configJSON), &c.Config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	var parseErr error
	c.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	c.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &c, nil
}

func marshalConfig(config map[string]any) (string, error) {
	if config == nil {
		return "{}", nil
	}
	data, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("marshalling config: %w", err)
	}
	return string(data), nil
}

func checkFound(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
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
