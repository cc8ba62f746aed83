package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fusionbridge/fusion-bridge-core/internal/device"
)

// ErrNotFound indicates the requested event does not exist.
var ErrNotFound = errors.New("event: not found")

// PageRequest describes one page of an event listing.
type PageRequest struct {
	// Page is 1-based.
	Page     int
	PageSize int

	// Filters. Zero values mean "no filter".
	OrganizationID    string
	Categories        []Category
	ConnectorCategory string
	LocationID        string
	AreaID            string
	AlarmOnly         bool
}

// Page is one page of events plus the pagination metadata the API
// envelope carries.
type Page struct {
	Events      []Event
	HasNextPage bool
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Normalize clamps page and page size into valid bounds.
func (p *PageRequest) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
}

// Repository defines the interface for event persistence operations.
// Events are append-only: there is no update or delete.
type Repository interface {
	// Insert appends a new event.
	Insert(ctx context.Context, e *Event) error

	// GetByID retrieves an event by its unique identifier.
	GetByID(ctx context.Context, id string) (*Event, error)

	// List returns one page of events matching the request, newest
	// first. HasNextPage is true iff requesting the next page would
	// return at least one event.
	List(ctx context.Context, req PageRequest) (*Page, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const eventColumns = `e.id, e.organization_id, e.connector_id, e.connector_category,
	e.device_id, e.device_name, e.category, e.type, e.subtype, e.display_state,
	e.alarm, e.best_shot_url, e.payload, e.timestamp, e.created_at`

// Insert appends a new event.
func (r *SQLiteRepository) Insert(ctx context.Context, e *Event) error {
	if e.ID == "" {
		e.ID = GenerateID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.CreatedAt = time.Now().UTC()

	payloadJSON := "{}"
	if e.Payload != nil {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshalling payload: %w", err)
		}
		payloadJSON = string(data)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (
			id, organization_id, connector_id, connector_category,
			device_id, device_name, category, type, subtype, display_state,
			alarm, best_shot_url, payload, timestamp, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.OrganizationID,
		e.ConnectorID,
		e.ConnectorCategory,
		e.DeviceID,
		e.DeviceName,
		string(e.Category),
		e.Type,
		nullableStr(e.Subtype),
		nullableStr(string(e.DisplayState)),
		boolToInt(e.Alarm),
		nullableString(e.BestShotURL),
		payloadJSON,
		e.Timestamp.UTC().Format(time.RFC3339),
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// GetByID retrieves an event by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.id = ?`

	e, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying event by id: %w", err)
	}
	return e, nil
}

// List returns one page of events matching the request, newest first.
//
// The query fetches pageSize+1 rows; a full overflow row proves the next
// page is non-empty without a second COUNT query.
func (r *SQLiteRepository) List(ctx context.Context, req PageRequest) (*Page, error) {
	req.Normalize()

	query := `SELECT ` + eventColumns + ` FROM events e`

	var conditions []string
	var args []any

	if req.OrganizationID != "" {
		conditions = append(conditions, "e.organization_id = ?")
		args = append(args, req.OrganizationID)
	}
	if len(req.Categories) > 0 {
		placeholders := strings.Repeat("?,", len(req.Categories))
		conditions = append(conditions, "e.category IN ("+placeholders[:len(placeholders)-1]+")")
		for _, c := range req.Categories {
			args = append(args, string(c))
		}
	}
	if req.ConnectorCategory != "" {
		conditions = append(conditions, "e.connector_category = ?")
		args = append(args, req.ConnectorCategory)
	}
	// Device matching joins on (connector_id, device_id): vendor device
	// IDs are only unique within one connector.
	if req.AreaID != "" {
		conditions = append(conditions, `EXISTS (
			SELECT 1 FROM devices d
			WHERE d.connector_id = e.connector_id
			  AND d.device_id = e.device_id
			  AND d.area_id = ?)`)
		args = append(args, req.AreaID)
	}
	if req.LocationID != "" {
		conditions = append(conditions, `EXISTS (
			SELECT 1 FROM devices d
			JOIN areas a ON a.id = d.area_id
			WHERE d.connector_id = e.connector_id
			  AND d.device_id = e.device_id
			  AND a.location_id = ?)`)
		args = append(args, req.LocationID)
	}
	if req.AlarmOnly {
		conditions = append(conditions, "e.alarm = 1")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY e.timestamp DESC, e.id DESC LIMIT ? OFFSET ?"
	args = append(args, req.PageSize+1, (req.Page-1)*req.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	events, hasNext := trimPage(events, req.PageSize)
	return &Page{Events: events, HasNextPage: hasNext}, nil
}

// trimPage drops the overflow row fetched beyond pageSize and reports
// whether it existed (meaning the next page is non-empty).
func trimPage(events []Event, pageSize int) ([]Event, bool) {
	if len(events) > pageSize {
		return events[:pageSize], true
	}
	return events, false
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(scanner rowScanner) (*Event, error) {
	var e Event
	var category string
	var subtype, displayState, bestShotURL sql.NullString
	var alarm int
	var payloadJSON string
	var timestamp, createdAt string

	err := scanner.Scan(
		&e.ID,
		&e.OrganizationID,
		&e.ConnectorID,
		&e.ConnectorCategory,
		&e.DeviceID,
		&e.DeviceName,
		&category,
		&e.Type,
		&subtype,
		&displayState,
		&alarm,
		&bestShotURL,
		&payloadJSON,
		&timestamp,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	e.Category = Category(category)
	e.Alarm = alarm != 0

	if subtype.Valid {
		e.Subtype = subtype.String
	}
	if displayState.Valid {
		e.DisplayState = device.DisplayState(displayState.String)
	}
	if bestShotURL.Valid {
		e.BestShotURL = &bestShotURL.String
	}

	if payloadJSON != "" {
		if err := json.Unmarshal([]byte(payloadJSON), &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshalling payload: %w", err)
		}
	}

	var parseErr error
	e.Timestamp, parseErr = time.Parse(time.RFC3339, timestamp)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing timestamp: %w", parseErr)
	}
	e.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}

	return &e, nil
}

func nullableStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
