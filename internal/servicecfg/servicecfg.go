// Package servicecfg stores per-organisation configurations for auxiliary
// external services (notification, AI, issue tracking).
//
// Each organisation holds at most one configuration row per service type;
// the config itself is an opaque JSON object whose keys depend on the
// service (API tokens, default targets and so on).
package servicecfg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type identifies an auxiliary external service.
type Type string

const (
	TypePushover    Type = "PUSHOVER"
	TypePushcut     Type = "PUSHCUT"
	TypeOpenWeather Type = "OPENWEATHER"
	TypeOpenAI      Type = "OPENAI"
	TypeLinear      Type = "LINEAR"
	TypeResend      Type = "RESEND"
)

// AllTypes returns all valid service types.
func AllTypes() []Type {
	return []Type{TypePushover, TypePushcut, TypeOpenWeather, TypeOpenAI, TypeLinear, TypeResend}
}

// IsValid reports whether the type is a known value.
func (t Type) IsValid() bool {
	switch t {
	case TypePushover, TypePushcut, TypeOpenWeather, TypeOpenAI, TypeLinear, TypeResend:
		return true
	}
	return false
}

var (
	// ErrNotFound indicates no configuration exists for the type.
	ErrNotFound = errors.New("servicecfg: not found")

	// ErrExists indicates the organisation already has a configuration
	// for the type.
	ErrExists = errors.New("servicecfg: already configured")

	// ErrInvalidType indicates an unknown service type.
	ErrInvalidType = errors.New("servicecfg: invalid service type")
)

// ServiceConfiguration holds one organisation's settings for one service.
type ServiceConfiguration struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	Type           Type           `json:"type"`
	Config         map[string]any `json:"config"`
	Enabled        bool           `json:"enabled"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// ConfigString returns a string value from the config, or "" when absent.
func (s *ServiceConfiguration) ConfigString(key string) string {
	if s.Config == nil {
		return ""
	}
	if v, ok := s.Config[key].(string); ok {
		return v
	}
	return ""
}

// Repository defines the interface for service configuration persistence.
type Repository interface {
	// GetByType retrieves an organisation's configuration for a service.
	GetByType(ctx context.Context, orgID string, t Type) (*ServiceConfiguration, error)

	// List retrieves all configurations for an organisation.
	List(ctx context.Context, orgID string) ([]ServiceConfiguration, error)

	// Create inserts a new configuration.
	// Returns ErrExists when the organisation already has one for the type.
	Create(ctx context.Context, s *ServiceConfiguration) error

	// Update modifies an existing configuration.
	Update(ctx context.Context, s *ServiceConfiguration) error

	// Delete removes a configuration by ID.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const columns = `id, organization_id, type, config, enabled, created_at, updated_at`

// GetByType retrieves an organisation's configuration for a service.
func (r *SQLiteRepository) GetByType(ctx context.Context, orgID string, t Type) (*ServiceConfiguration, error) {
	query := `SELECT ` + columns + ` FROM service_configurations WHERE organization_id = ? AND type = ?`

	s, err := scanConfiguration(r.db.QueryRowContext(ctx, query, orgID, string(t)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying service configuration: %w", err)
	}
	return s, nil
}

// List retrieves all configurations for an organisation, ordered by type.
func (r *SQLiteRepository) List(ctx context.Context, orgID string) ([]ServiceConfiguration, error) {
	query := `SELECT ` + columns + ` FROM service_configurations WHERE organization_id = ? ORDER BY type`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("querying service configurations: %w", err)
	}
	defer rows.Close()

	var configs []ServiceConfiguration
	for rows.Next() {
		s, err := scanConfiguration(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning service configuration: %w", err)
		}
		configs = append(configs, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating service configurations: %w", err)
	}
	return configs, nil
}

// Create inserts a new configuration.
func (r *SQLiteRepository) Create(ctx context.Context, s *ServiceConfiguration) error {
	if !s.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, s.Type)
	}

	configJSON, err := marshalConfig(s.Config)
	if err != nil {
		return err
	}

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO service_configurations (id, organization_id, type, config, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.OrganizationID,
		string(s.Type),
		configJSON,
		boolToInt(s.Enabled),
		s.CreatedAt.Format(time.RFC3339),
		s.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrExists
		}
		return fmt.Errorf("inserting service configuration: %w", err)
	}
	return nil
}

// Update modifies an existing configuration.
func (r *SQLiteRepository) Update(ctx context.Context, s *ServiceConfiguration) error {
	configJSON, err := marshalConfig(s.Config)
	if err != nil {
		return err
	}

	s.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE service_configurations SET config = ?, enabled = ?, updated_at = ? WHERE id = ?`,
		configJSON,
		boolToInt(s.Enabled),
		s.UpdatedAt.Format(time.RFC3339),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating service configuration: %w", err)
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

// Delete removes a configuration by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM service_configurations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting service configuration: %w", err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfiguration(scanner rowScanner) (*ServiceConfiguration, error) {
	var s ServiceConfiguration
	var serviceType, configJSON string
	var enabled int
	var createdAt, updatedAt string

	err := scanner.Scan(&s.ID, &s.OrganizationID, &serviceType, &configJSON, &enabled, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.Type = Type(serviceType)
	s.Enabled = enabled != 0

	if err := json.Unmarshal([]byte(configJSON), &s.Config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	var parseErr error
	s.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	s.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}
	return &s, nil
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
