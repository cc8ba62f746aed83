package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates the requested location or area does not exist.
var ErrNotFound = errors.New("location: not found")

// Repository defines the interface for location and area persistence.
type Repository interface {
	// GetLocation retrieves a location by ID.
	GetLocation(ctx context.Context, id string) (*Location, error)

	// ListLocations retrieves all locations for an organisation.
	ListLocations(ctx context.Context, orgID string) ([]Location, error)

	// CreateLocation inserts a new location.
	CreateLocation(ctx context.Context, l *Location) error

	// UpdateLocation modifies an existing location.
	UpdateLocation(ctx context.Context, l *Location) error

	// DeleteLocation removes a location and its areas (cascades).
	DeleteLocation(ctx context.Context, id string) error

	// GetArea retrieves an area by ID.
	GetArea(ctx context.Context, id string) (*Area, error)

	// ListAreas retrieves all areas for an organisation, optionally
	// filtered to one location (empty locationID means all).
	ListAreas(ctx context.Context, orgID, locationID string) ([]Area, error)

	// CreateArea inserts a new area.
	CreateArea(ctx context.Context, a *Area) error

	// UpdateArea modifies an existing area.
	UpdateArea(ctx context.Context, a *Area) error

	// DeleteArea removes an area. Devices in the area keep existing
	// with their area reference cleared.
	DeleteArea(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const locationColumns = `id, organization_id, name, address, latitude, longitude, created_at, updated_at`

// GetLocation retrieves a location by ID.
func (r *SQLiteRepository) GetLocation(ctx context.Context, id string) (*Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = ?`

	l, err := scanLocation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying location by id: %w", err)
	}
	return l, nil
}

// ListLocations retrieves all locations for an organisation, ordered by name.
func (r *SQLiteRepository) ListLocations(ctx context.Context, orgID string) ([]Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE organization_id = ? ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locations = append(locations, *l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating locations: %w", err)
	}
	return locations, nil
}

// CreateLocation inserts a new location.
func (r *SQLiteRepository) CreateLocation(ctx context.Context, l *Location) error {
	if l.ID == "" {
		l.ID = GenerateID()
	}
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO locations (id, organization_id, name, address, latitude, longitude, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID,
		l.OrganizationID,
		l.Name,
		nullableString(l.Address),
		nullableFloat(l.Latitude),
		nullableFloat(l.Longitude),
		l.CreatedAt.Format(time.RFC3339),
		l.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting location: %w", err)
	}
	return nil
}

// UpdateLocation modifies an existing location.
func (r *SQLiteRepository) UpdateLocation(ctx context.Context, l *Location) error {
	l.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE locations SET name = ?, address = ?, latitude = ?, longitude = ?, updated_at = ?
		WHERE id = ?`,
		l.Name,
		nullableString(l.Address),
		nullableFloat(l.Latitude),
		nullableFloat(l.Longitude),
		l.UpdatedAt.Format(time.RFC3339),
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("updating location: %w", err)
	}
	return checkFound(result)
}

// DeleteLocation removes a location by ID.
func (r *SQLiteRepository) DeleteLocation(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting location: %w", err)
	}
	return checkFound(result)
}

const areaColumns = `id, organization_id, location_id, name, created_at, updated_at`

// GetArea retrieves an area by ID.
func (r *SQLiteRepository) GetArea(ctx context.Context, id string) (*Area, error) {
	query := `SELECT ` + areaColumns + ` FROM areas WHERE id = ?`

	a, err := scanArea(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying area by id: %w", err)
	}
	return a, nil
}

// ListAreas retrieves all areas for an organisation, optionally filtered
// to one location.
func (r *SQLiteRepository) ListAreas(ctx context.Context, orgID, locationID string) ([]Area, error) {
	query := `SELECT ` + areaColumns + ` FROM areas WHERE organization_id = ?`
	args := []any{orgID}

	if locationID != "" {
		query += ` AND location_id = ?`
		args = append(args, locationID)
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying areas: %w", err)
	}
	defer rows.Close()

	var areas []Area
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning area: %w", err)
		}
		areas = append(areas, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating areas: %w", err)
	}
	return areas, nil
}

// CreateArea inserts a new area.
func (r *SQLiteRepository) CreateArea(ctx context.Context, a *Area) error {
	if a.ID == "" {
		a.ID = GenerateID()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO areas (id, organization_id, location_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.OrganizationID,
		a.LocationID,
		a.Name,
		a.CreatedAt.Format(time.RFC3339),
		a.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting area: %w", err)
	}
	return nil
}

// UpdateArea modifies an existing area.
func (r *SQLiteRepository) UpdateArea(ctx context.Context, a *Area) error {
	a.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE areas SET location_id = ?, name = ?, updated_at = ? WHERE id = ?`,
		a.LocationID,
		a.Name,
		a.UpdatedAt.Format(time.RFC3339),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating area: %w", err)
	}
	return checkFound(result)
}

// DeleteArea removes an area by ID.
func (r *SQLiteRepository) DeleteArea(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM areas WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting area: %w", err)
	}
	return checkFound(result)
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(scanner rowScanner) (*Location, error) {
	var l Location
	var address sql.NullString
	var latitude, longitude sql.NullFloat64
	var createdAt, updatedAt string

	err := scanner.Scan(
		&l.ID,
		&l.OrganizationID,
		&l.Name,
		&address,
		&latitude,
		&longitude,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if address.Valid {
		l.Address = &address.String
	}
	if latitude.Valid {
		l.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		l.Longitude = &longitude.Float64
	}

	var parseErr error
	l.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	l.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}
	return &l, nil
}

func scanArea(scanner rowScanner) (*Area, error) {
	var a Area
	var createdAt, updatedAt string

	err := scanner.Scan(&a.ID, &a.OrganizationID, &a.LocationID, &a.Name, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var parseErr error
	a.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	a.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}
	return &a, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
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
