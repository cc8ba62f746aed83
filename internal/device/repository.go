package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ListFilter narrows device listings. Zero values mean "no filter".
type ListFilter struct {
	// OrganizationID scopes the listing to one tenant (join through
	// connectors). Always set by API handlers.
	OrganizationID string

	// ConnectorID limits results to one connector.
	ConnectorID string

	// ConnectorCategory limits results to devices of one vendor
	// ("yolink", "piko", "genea").
	ConnectorCategory string

	// AreaID limits results to devices in one area.
	AreaID string

	// Type limits results to one standardised device type.
	Type Type
}

// Repository defines the interface for device persistence operations.
type Repository interface {
	// GetByID retrieves a device by its internal identifier.
	// Returns ErrNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// GetByExternalID retrieves a device by its (connector, vendor ID) key.
	// Returns ErrNotFound if the device does not exist.
	GetByExternalID(ctx context.Context, connectorID, deviceID string) (*Device, error)

	// List retrieves devices matching the filter, ordered by name.
	List(ctx context.Context, filter ListFilter) ([]Device, error)

	// ListByConnector retrieves all devices owned by a connector.
	ListByConnector(ctx context.Context, connectorID string) ([]Device, error)

	// Upsert inserts the device, or updates the existing row keyed by
	// (connector_id, device_id). An empty Status on the incoming device
	// preserves the stored status.
	Upsert(ctx context.Context, d *Device) error

	// DeleteStale removes devices of a connector whose vendor IDs are
	// absent from keep. Returns the number of devices removed.
	DeleteStale(ctx context.Context, connectorID string, keep []string) (int, error)

	// Delete removes a device by internal ID.
	Delete(ctx context.Context, id string) error

	// SetArea associates a device with an area (nil clears it).
	SetArea(ctx context.Context, id string, areaID *string) error

	// UpdateStatus sets only the canonical status of a device.
	UpdateStatus(ctx context.Context, id string, status DisplayState) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `d.id, d.connector_id, d.device_id, d.name, d.type, d.subtype,
	d.status, d.model, d.server_id, d.area_id, d.raw, d.created_at, d.updated_at`

// GetByID retrieves a device by its internal identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices d WHERE d.id = ?`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// GetByExternalID retrieves a device by its (connector, vendor ID) key.
func (r *SQLiteRepository) GetByExternalID(ctx context.Context, connectorID, deviceID string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices d WHERE d.connector_id = ? AND d.device_id = ?`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, connectorID, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by external id: %w", err)
	}
	return d, nil
}

// List retrieves devices matching the filter, ordered by name.
func (r *SQLiteRepository) List(ctx context.Context, filter ListFilter) ([]Device, error) {
	query := `SELECT ` + deviceColumns + `
		FROM devices d
		JOIN connectors c ON c.id = d.connector_id`

	var conditions []string
	var args []any

	if filter.OrganizationID != "" {
		conditions = append(conditions, "c.organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.ConnectorID != "" {
		conditions = append(conditions, "d.connector_id = ?")
		args = append(args, filter.ConnectorID)
	}
	if filter.ConnectorCategory != "" {
		conditions = append(conditions, "c.category = ?")
		args = append(args, filter.ConnectorCategory)
	}
	if filter.AreaID != "" {
		conditions = append(conditions, "d.area_id = ?")
		args = append(args, filter.AreaID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "d.type = ?")
		args = append(args, string(filter.Type))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY d.name"

	return r.queryDevices(ctx, query, args...)
}

// ListByConnector retrieves all devices owned by a connector.
func (r *SQLiteRepository) ListByConnector(ctx context.Context, connectorID string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices d WHERE d.connector_id = ? ORDER BY d.name`
	return r.queryDevices(ctx, query, connectorID)
}

// Upsert inserts the device, or updates the existing row keyed by
// (connector_id, device_id).
//
// An empty incoming Status preserves whatever status is already stored;
// the sync engine relies on this when a vendor state fetch fails or the
// raw state is unmapped.
func (r *SQLiteRepository) Upsert(ctx context.Context, d *Device) error {
	rawJSON, err := marshalRaw(d.Raw)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if d.ID == "" {
		d.ID = GenerateID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	query := `
		INSERT INTO devices (
			id, connector_id, device_id, name, type, subtype,
			status, model, server_id, area_id, raw, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (connector_id, device_id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			subtype = excluded.subtype,
			status = CASE WHEN excluded.status = '' THEN devices.status ELSE excluded.status END,
			model = excluded.model,
			server_id = excluded.server_id,
			raw = excluded.raw,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		d.ID,
		d.ConnectorID,
		d.DeviceID,
		d.Name,
		string(d.Type),
		nullableStr(d.Subtype),
		string(d.Status),
		nullableString(d.Model),
		nullableString(d.ServerID),
		nullableString(d.AreaID),
		rawJSON,
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}

	return nil
}

// DeleteStale removes devices of a connector whose vendor IDs are absent
// from keep. A nil or empty keep removes every device of the connector.
func (r *SQLiteRepository) DeleteStale(ctx context.Context, connectorID string, keep []string) (int, error) {
	query := `DELETE FROM devices WHERE connector_id = ?`
	args := []any{connectorID}

	if len(keep) > 0 {
		placeholders := strings.Repeat("?,", len(keep))
		placeholders = placeholders[:len(placeholders)-1]
		query += ` AND device_id NOT IN (` + placeholders + `)`
		for _, id := range keep {
			args = append(args, id)
		}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting stale devices: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

// Delete removes a device by internal ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
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

// SetArea associates a device with an area (nil clears it).
func (r *SQLiteRepository) SetArea(ctx context.Context, id string, areaID *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET area_id = ?, updated_at = ? WHERE id = ?`,
		nullableString(areaID),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device area: %w", err)
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

// UpdateStatus sets only the canonical status of a device.
func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id string, status DisplayState) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = ?, updated_at = ? WHERE id = ?`,
		string(status),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
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

func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var deviceType string
	var subtype, model, serverID, areaID, rawJSON sql.NullString
	var status string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.ConnectorID,
		&d.DeviceID,
		&d.Name,
		&deviceType,
		&subtype,
		&status,
		&model,
		&serverID,
		&areaID,
		&rawJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = Type(deviceType)
	d.Status = DisplayState(status)

	if subtype.Valid {
		d.Subtype = subtype.String
	}
	if model.Valid {
		d.Model = &model.String
	}
	if serverID.Valid {
		d.ServerID = &serverID.String
	}
	if areaID.Valid {
		d.AreaID = &areaID.String
	}

	if rawJSON.Valid && rawJSON.String != "" {
		if err := json.Unmarshal([]byte(rawJSON.String), &d.Raw); err != nil {
			return nil, fmt.Errorf("unmarshalling raw payload: %w", err)
		}
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	return &d, nil
}

func marshalRaw(raw map[string]any) (sql.NullString, error) {
	if raw == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshalling raw payload: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableStr returns a sql.NullString for optional plain strings.
func nullableStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
