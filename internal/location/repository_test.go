package location

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the locations
// and areas tables, seeded for two organisations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE locations (
			id              TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			name            TEXT NOT NULL,
			address         TEXT,
			latitude        REAL,
			longitude       REAL,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);

		CREATE TABLE areas (
			id              TEXT PRIMARY KEY,
			organization_id TEXT NOT NULL,
			location_id     TEXT NOT NULL REFERENCES locations(id) ON DELETE CASCADE,
			name            TEXT NOT NULL,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);

		INSERT INTO locations (id, organization_id, name, address, latitude, longitude, created_at, updated_at) VALUES
			('loc-hq',    'org-1', 'Headquarters', '100 Main St, Springfield', 39.78, -89.65, '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z'),
			('loc-depot', 'org-1', 'Depot',        NULL,                       NULL,  NULL,   '2025-01-02T00:00:00Z', '2025-01-02T00:00:00Z'),
			('loc-other', 'org-2', 'Other Org HQ', NULL,                       NULL,  NULL,   '2025-01-03T00:00:00Z', '2025-01-03T00:00:00Z');

		INSERT INTO areas (id, organization_id, location_id, name, created_at, updated_at) VALUES
			('area-lobby',  'org-1', 'loc-hq',    'Lobby',     '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z'),
			('area-server', 'org-1', 'loc-hq',    'Server Room', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z'),
			('area-yard',   'org-1', 'loc-depot', 'Yard',      '2025-01-02T00:00:00Z', '2025-01-02T00:00:00Z');
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestGetLocation(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	l, err := repo.GetLocation(context.Background(), "loc-hq")
	if err != nil {
		t.Fatalf("GetLocation: %v", err)
	}

	if l.Name != "Headquarters" {
		t.Errorf("Name = %q, want %q", l.Name, "Headquarters")
	}
	if l.Address == nil || *l.Address != "100 Main St, Springfield" {
		t.Errorf("Address = %v, want 100 Main St, Springfield", l.Address)
	}
	if l.Latitude == nil || *l.Latitude != 39.78 {
		t.Errorf("Latitude = %v, want 39.78", l.Latitude)
	}
}

func TestGetLocation_NullFields(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	l, err := repo.GetLocation(context.Background(), "loc-depot")
	if err != nil {
		t.Fatalf("GetLocation: %v", err)
	}

	if l.Address != nil {
		t.Errorf("Address = %v, want nil", l.Address)
	}
	if l.Latitude != nil || l.Longitude != nil {
		t.Errorf("coordinates = %v/%v, want nil/nil", l.Latitude, l.Longitude)
	}
}

func TestGetLocation_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetLocation(context.Background(), "loc-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListLocations_ScopedToOrg(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	locations, err := repo.ListLocations(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if len(locations) != 2 {
		t.Fatalf("expected 2 locations for org-1, got %d", len(locations))
	}
	for _, l := range locations {
		if l.OrganizationID != "org-1" {
			t.Errorf("location %s belongs to %s", l.ID, l.OrganizationID)
		}
	}
}

func TestCreateLocation(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	address := "1600 Pennsylvania Ave NW, Washington DC"
	l := &Location{
		OrganizationID: "org-1",
		Name:           "Annex",
		Address:        &address,
	}
	if err := repo.CreateLocation(context.Background(), l); err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	if l.ID == "" {
		t.Fatal("CreateLocation should assign an ID")
	}
	if l.CreatedAt.IsZero() || l.UpdatedAt.IsZero() {
		t.Error("CreateLocation should set timestamps")
	}

	got, err := repo.GetLocation(context.Background(), l.ID)
	if err != nil {
		t.Fatalf("GetLocation after create: %v", err)
	}
	if got.Name != "Annex" {
		t.Errorf("Name = %q, want Annex", got.Name)
	}
	if got.Address == nil || *got.Address != address {
		t.Errorf("Address = %v, want %q", got.Address, address)
	}
}

func TestUpdateLocation(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	l, err := repo.GetLocation(context.Background(), "loc-depot")
	if err != nil {
		t.Fatalf("GetLocation: %v", err)
	}

	lat, lon := 40.71, -74.0
	l.Name = "North Depot"
	l.Latitude = &lat
	l.Longitude = &lon
	if err := repo.UpdateLocation(context.Background(), l); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}

	got, err := repo.GetLocation(context.Background(), "loc-depot")
	if err != nil {
		t.Fatalf("GetLocation after update: %v", err)
	}
	if got.Name != "North Depot" {
		t.Errorf("Name = %q, want North Depot", got.Name)
	}
	if got.Latitude == nil || *got.Latitude != lat {
		t.Errorf("Latitude = %v, want %v", got.Latitude, lat)
	}
}

func TestUpdateLocation_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	err := repo.UpdateLocation(context.Background(), &Location{ID: "loc-missing", Name: "Ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteLocation(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	if err := repo.DeleteLocation(context.Background(), "loc-depot"); err != nil {
		t.Fatalf("DeleteLocation: %v", err)
	}

	if _, err := repo.GetLocation(context.Background(), "loc-depot"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err after delete = %v, want ErrNotFound", err)
	}

	if err := repo.DeleteLocation(context.Background(), "loc-depot"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListAreas(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	areas, err := repo.ListAreas(context.Background(), "org-1", "")
	if err != nil {
		t.Fatalf("ListAreas: %v", err)
	}
	if len(areas) != 3 {
		t.Fatalf("expected 3 areas for org-1, got %d", len(areas))
	}
}

func TestListAreas_FilteredByLocation(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	areas, err := repo.ListAreas(context.Background(), "org-1", "loc-hq")
	if err != nil {
		t.Fatalf("ListAreas: %v", err)
	}
	if len(areas) != 2 {
		t.Fatalf("expected 2 areas for loc-hq, got %d", len(areas))
	}
	// Sorted by name
	if areas[0].Name != "Lobby" || areas[1].Name != "Server Room" {
		t.Errorf("areas = %q, %q; want Lobby, Server Room", areas[0].Name, areas[1].Name)
	}
}

func TestAreaCRUD(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	a := &Area{
		OrganizationID: "org-1",
		LocationID:     "loc-depot",
		Name:           "Loading Bay",
	}
	if err := repo.CreateArea(ctx, a); err != nil {
		t.Fatalf("CreateArea: %v", err)
	}
	if a.ID == "" {
		t.Fatal("CreateArea should assign an ID")
	}

	got, err := repo.GetArea(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetArea: %v", err)
	}
	if got.Name != "Loading Bay" || got.LocationID != "loc-depot" {
		t.Errorf("got %+v", got)
	}

	got.Name = "Loading Bay East"
	if err := repo.UpdateArea(ctx, got); err != nil {
		t.Fatalf("UpdateArea: %v", err)
	}
	updated, err := repo.GetArea(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetArea after update: %v", err)
	}
	if updated.Name != "Loading Bay East" {
		t.Errorf("Name = %q, want Loading Bay East", updated.Name)
	}

	if err := repo.DeleteArea(ctx, a.ID); err != nil {
		t.Fatalf("DeleteArea: %v", err)
	}
	if _, err := repo.GetArea(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err after delete = %v, want ErrNotFound", err)
	}
}

func TestGetArea_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetArea(context.Background(), "area-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
