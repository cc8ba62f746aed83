package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	_ "github.com/mattn/go-sqlite3"

	"github.com/fusionbridge/fusion-bridge-core/internal/auth"
	"github.com/fusionbridge/fusion-bridge-core/internal/automation"
	"github.com/fusionbridge/fusion-bridge-core/internal/connector"
	"github.com/fusionbridge/fusion-bridge-core/internal/device"
	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/linear"
	"github.com/fusionbridge/fusion-bridge-core/internal/event"
	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/config"
	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/database"
	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/logging"
	"github.com/fusionbridge/fusion-bridge-core/internal/location"
	"github.com/fusionbridge/fusion-bridge-core/internal/org"
	"github.com/fusionbridge/fusion-bridge-core/internal/servicecfg"
	"github.com/fusionbridge/fusion-bridge-core/internal/sync"
	_ "github.com/fusionbridge/fusion-bridge-core/migrations"
)

const (
	testJWTSecret = "test-secret-key-at-least-32-characters-long"
	testPassword  = "correct horse battery staple"
)

// testFixtures bundles the repositories and seeded identities the
// handler tests need.
type testFixtures struct {
	db          *sql.DB
	orgID       string
	otherOrgID  string
	adminToken  string
	memberToken string
	registry    *connector.Registry
	devices     *device.SQLiteRepository
	events      *event.SQLiteRepository
}

// testServer creates a Server backed by in-memory SQLite with the full
// schema applied, seeded with two organisations and two users.
func testServer(t *testing.T) (*Server, *testFixtures) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db := &database.DB{DB: sqlDB}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	log, err := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	ctx := context.Background()
	orgRepo := org.NewSQLiteRepository(sqlDB)
	connectorRepo := connector.NewSQLiteRepository(sqlDB)
	deviceRepo := device.NewSQLiteRepository(sqlDB)
	eventRepo := event.NewSQLiteRepository(sqlDB)
	locationRepo := location.NewSQLiteRepository(sqlDB)
	automationRepo := automation.NewSQLiteRepository(sqlDB)
	serviceCfgRepo := servicecfg.NewSQLiteRepository(sqlDB)

	registry := connector.NewRegistry(connectorRepo)
	if err := registry.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	fx := &testFixtures{
		db:         sqlDB,
		orgID:      "org-primary",
		otherOrgID: "org-other",
		registry:   registry,
		devices:    deviceRepo,
		events:     eventRepo,
	}

	for _, o := range []org.Organization{
		{ID: fx.orgID, Name: "Primary Org"},
		{ID: fx.otherOrgID, Name: "Other Org"},
	} {
		o := o
		if err := orgRepo.Create(ctx, &o); err != nil {
			t.Fatalf("Create org: %v", err)
		}
	}

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	admin := &org.User{
		ID:             "user-admin",
		OrganizationID: fx.orgID,
		Email:          "admin@example.com",
		PasswordHash:   hash,
		Role:           org.RoleAdmin,
	}
	member := &org.User{
		ID:             "user-member",
		OrganizationID: fx.orgID,
		Email:          "member@example.com",
		PasswordHash:   hash,
		Role:           org.RoleMember,
	}
	for _, u := range []*org.User{admin, member} {
		if err := orgRepo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	}

	fx.adminToken, err = auth.GenerateAccessToken(admin, testJWTSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	fx.memberToken, err = auth.GenerateAccessToken(member, testJWTSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	syncService := sync.New(registry, deviceRepo, eventRepo, sqlDB, sync.WithLogger(log))

	engine := automation.NewEngine(automationRepo, deviceRepo, registry, eventRepo, locationRepo)

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{
				Secret:         testJWTSecret,
				AccessTokenTTL: 15,
			},
		},
		Logger:      log,
		Orgs:        orgRepo,
		Connectors:  registry,
		Devices:     deviceRepo,
		Events:      eventRepo,
		Locations:   locationRepo,
		Automations: automationRepo,
		ServiceCfgs: serviceCfgRepo,
		SyncService: syncService,
		Engine:      engine,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return srv, fx
}

// doRequest runs a request through the router with an optional bearer
// token and returns the recorder.
func doRequest(t *testing.T, srv *Server, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(w, req)
	return w
}

// decodeEnvelope unmarshals a response body into the envelope shape.
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return resp
}

// ─── Health and Middleware ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeEnvelope(t, w)
	if resp["success"] != true {
		t.Errorf("success = %v, want true", resp["success"])
	}
	data := resp["data"].(map[string]any)
	if data["status"] != "ok" {
		t.Errorf("status = %v, want ok", data["status"])
	}
	if data["version"] != "test" {
		t.Errorf("version = %v, want test", data["version"])
	}
}

func TestHealth_ContentType(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/health", "", "")
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/health", "", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

// ─── Authentication ────────────────────────────────────────────────

func TestLogin_Success(t *testing.T) {
	srv, fx := testServer(t)

	body := `{"email": "admin@example.com", "password": "` + testPassword + `"}`
	w := doRequest(t, srv, http.MethodPost, "/api/auth/login", "", body)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeEnvelope(t, w)
	data := resp["data"].(map[string]any)
	if data["accessToken"] == "" {
		t.Error("expected a non-empty access token")
	}
	if data["organizationId"] != fx.orgID {
		t.Errorf("organizationId = %v, want %v", data["organizationId"], fx.orgID)
	}
	if data["role"] != "admin" {
		t.Errorf("role = %v, want admin", data["role"])
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	srv, _ := testServer(t)

	body := `{"email": "admin@example.com", "password": "wrong"}`
	w := doRequest(t, srv, http.MethodPost, "/api/auth/login", "", body)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("login status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	resp := decodeEnvelope(t, w)
	if resp["success"] != false {
		t.Errorf("success = %v, want false", resp["success"])
	}
}

func TestLogin_UnknownUserSameResponse(t *testing.T) {
	srv, _ := testServer(t)

	wrongPassword := doRequest(t, srv, http.MethodPost, "/api/auth/login", "",
		`{"email": "admin@example.com", "password": "wrong"}`)
	unknownUser := doRequest(t, srv, http.MethodPost, "/api/auth/login", "",
		`{"email": "nobody@example.com", "password": "wrong"}`)

	if wrongPassword.Code != unknownUser.Code {
		t.Errorf("status codes differ: %d vs %d", wrongPassword.Code, unknownUser.Code)
	}
	if wrongPassword.Body.String() != unknownUser.Body.String() {
		t.Errorf("bodies differ: %q vs %q", wrongPassword.Body.String(), unknownUser.Body.String())
	}
}

func TestProtectedRoute_RequiresToken(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/devices", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestProtectedRoute_RejectsGarbageToken(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/devices", "not-a-jwt", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestWSTicket_SingleUse(t *testing.T) {
	srv, fx := testServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/auth/ws-ticket", fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("ticket status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeEnvelope(t, w)
	ticket := resp["data"].(map[string]any)["ticket"].(string)
	if ticket == "" {
		t.Fatal("expected a non-empty ticket")
	}

	entry, ok := validateTicket(ticket)
	if !ok {
		t.Fatal("freshly issued ticket should validate")
	}
	if entry.orgID != fx.orgID {
		t.Errorf("ticket orgID = %q, want %q", entry.orgID, fx.orgID)
	}

	if _, ok := validateTicket(ticket); ok {
		t.Error("ticket should be single-use")
	}
}

func TestWebSocket_UpgradeWithTicketOnly(t *testing.T) {
	srv, fx := testServer(t)

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	// Browsers cannot attach Authorization headers to upgrade requests,
	// so the route must answer without a bearer token: a missing ticket
	// is rejected by the handler itself, not the auth middleware.
	resp, err := http.Get(ts.URL + "/api/ws")
	if err != nil {
		t.Fatalf("GET /api/ws: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if !strings.Contains(string(body), "ticket") {
		t.Errorf("expected ticket error from the handler, got %s", body)
	}

	w := doRequest(t, srv, http.MethodPost, "/api/auth/ws-ticket", fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("ticket status = %d, want %d", w.Code, http.StatusOK)
	}
	ticket := decodeEnvelope(t, w)["data"].(map[string]any)["ticket"].(string)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws?ticket=" + ticket
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("upgrade with ticket only failed: %v", err)
	}
	conn.Close()
}

// ─── Admin Scoping ─────────────────────────────────────────────────

func TestAdminRoute_RejectsMember(t *testing.T) {
	srv, fx := testServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/admin/trigger-migration", fx.memberToken, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// ─── Devices ───────────────────────────────────────────────────────

func TestListDevices_Empty(t *testing.T) {
	srv, fx := testServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/devices", fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeEnvelope(t, w)
	data := resp["data"].(map[string]any)
	if int(data["count"].(float64)) != 0 {
		t.Errorf("count = %v, want 0", data["count"])
	}
}

func TestGetDevice_OtherOrgHidden(t *testing.T) {
	srv, fx := testServer(t)
	ctx := context.Background()

	foreign := &connector.Connector{
		ID:             connector.GenerateID(),
		OrganizationID: fx.otherOrgID,
		Name:           "Foreign YoLink",
		Category:       connector.CategoryYoLink,
		Config:         map[string]any{"uaid": "ua", "secretKey": "sk"},
	}
	if err := fx.registry.Create(ctx, foreign); err != nil {
		t.Fatalf("Create connector: %v", err)
	}

	d := &device.Device{
		ID:          device.GenerateID(),
		ConnectorID: foreign.ID,
		DeviceID:    "ext-1",
		Name:        "Foreign Door",
		Type:        device.TypeDoorSensor,
	}
	if err := fx.devices.Upsert(ctx, d); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	w := doRequest(t, srv, http.MethodGet, "/api/devices/"+d.ID, fx.adminToken, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDevicesAction_UnknownAction(t *testing.T) {
	srv, fx := testServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/devices", fx.adminToken, `{"action": "reboot"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDevicesAction_CleanSyncOmitsErrors(t *testing.T) {
	srv, fx := testServer(t)

	// No connectors: the sweep processes nothing and fails nothing.
	w := doRequest(t, srv, http.MethodPost, "/api/devices", fx.adminToken, `{"action": "sync"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeEnvelope(t, w)
	if _, present := resp["errors"]; present {
		t.Errorf("clean sweep should omit the errors key, got %s", w.Body.String())
	}
}

// seedAssociationPair creates a YoLink door sensor and a Piko camera in
// the primary organisation and returns their internal IDs.
func seedAssociationPair(t *testing.T, fx *testFixtures) (doorID, cameraID string) {
	t.Helper()
	ctx := context.Background()

	yolinkConn := &connector.Connector{
		ID:             connector.GenerateID(),
		OrganizationID: fx.orgID,
		Name:           "Office YoLink",
		Category:       connector.CategoryYoLink,
		Config:         map[string]any{"uaid": "ua", "secretKey": "sk"},
	}
	pikoConn := &connector.Connector{
		ID:             connector.GenerateID(),
		OrganizationID: fx.orgID,
		Name:           "Office Piko",
		Category:       connector.CategoryPiko,
		Config:         map[string]any{"username": "u", "password": "p", "systemId": "sys"},
	}
	for _, c := range []*connector.Connector{yolinkConn, pikoConn} {
		if err := fx.registry.Create(ctx, c); err != nil {
			t.Fatalf("Create connector: %v", err)
		}
	}

	door := &device.Device{
		ID:          device.GenerateID(),
		ConnectorID: yolinkConn.ID,
		DeviceID:    "ext-door",
		Name:        "Front Door",
		Type:        device.TypeDoorSensor,
	}
	camera := &device.Device{
		ID:          device.GenerateID(),
		ConnectorID: pikoConn.ID,
		DeviceID:    "ext-cam",
		Name:        "Lobby Cam",
		Type:        device.TypeCamera,
	}
	for _, d := range []*device.Device{door, camera} {
		if err := fx.devices.Upsert(ctx, d); err != nil {
			t.Fatalf("Upsert device: %v", err)
		}
	}
	return door.ID, camera.ID
}

func TestDeviceCameraAssociationLifecycle(t *testing.T) {
	srv, fx := testServer(t)
	doorID, cameraID := seedAssociationPair(t, fx)

	w := doRequest(t, srv, http.MethodPost, "/api/devices/"+doorID+"/cameras/"+cameraID, fx.adminToken, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("associate status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	// Re-associating the same pair is a no-op, not a conflict.
	w = doRequest(t, srv, http.MethodPost, "/api/devices/"+doorID+"/cameras/"+cameraID, fx.adminToken, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("repeat associate status = %d, want %d", w.Code, http.StatusCreated)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/devices/"+doorID+"/cameras", fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeEnvelope(t, w)
	if int(resp["data"].(map[string]any)["count"].(float64)) != 1 {
		t.Errorf("camera count = %v, want 1", resp["data"])
	}

	w = doRequest(t, srv, http.MethodDelete, "/api/devices/"+doorID+"/cameras/"+cameraID, fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("dissociate status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/devices/"+doorID+"/cameras", fx.adminToken, "")
	resp = decodeEnvelope(t, w)
	if int(resp["data"].(map[string]any)["count"].(float64)) != 0 {
		t.Errorf("camera count after dissociation = %v, want 0", resp["data"])
	}
}

func TestAssociateCamera_RejectsNonCamera(t *testing.T) {
	srv, fx := testServer(t)
	doorID, _ := seedAssociationPair(t, fx)

	// The door sensor itself as target: not a camera.
	w := doRequest(t, srv, http.MethodPost, "/api/devices/"+doorID+"/cameras/"+doorID, fx.adminToken, "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

// ─── Connectors ────────────────────────────────────────────────────

func TestConnectorCRUD(t *testing.T) {
	srv, fx := testServer(t)

	// Create
	body := `{
		"name": "Warehouse YoLink",
		"category": "yolink",
		"config": {"uaid": "ua-123", "secretKey": "sk-456"}
	}`
	w := doRequest(t, srv, http.MethodPost, "/api/connectors", fx.adminToken, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	resp := decodeEnvelope(t, w)
	created := resp["data"].(map[string]any)
	id := created["id"].(string)
	if created["organizationId"] != fx.orgID {
		t.Errorf("organizationId = %v, want %v", created["organizationId"], fx.orgID)
	}

	// Get
	w = doRequest(t, srv, http.MethodGet, "/api/connectors/"+id, fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Code, http.StatusOK)
	}

	// Update
	w = doRequest(t, srv, http.MethodPut, "/api/connectors/"+id, fx.adminToken, `{
		"name": "Warehouse YoLink Renamed",
		"category": "yolink",
		"config": {"uaid": "ua-123", "secretKey": "sk-456"}
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	resp = decodeEnvelope(t, w)
	if resp["data"].(map[string]any)["name"] != "Warehouse YoLink Renamed" {
		t.Errorf("name not updated: %v", resp["data"])
	}

	// List
	w = doRequest(t, srv, http.MethodGet, "/api/connectors", fx.adminToken, "")
	resp = decodeEnvelope(t, w)
	if int(resp["data"].(map[string]any)["count"].(float64)) != 1 {
		t.Errorf("count = %v, want 1", resp["data"])
	}

	// Delete
	w = doRequest(t, srv, http.MethodDelete, "/api/connectors/"+id, fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/connectors/"+id, fx.adminToken, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestCreateConnector_MissingCredentials(t *testing.T) {
	srv, fx := testServer(t)

	body := `{"name": "Broken", "category": "yolink", "config": {}}`
	w := doRequest(t, srv, http.MethodPost, "/api/connectors", fx.adminToken, body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestConnector_OtherOrgHidden(t *testing.T) {
	srv, fx := testServer(t)
	ctx := context.Background()

	foreign := &connector.Connector{
		ID:             connector.GenerateID(),
		OrganizationID: fx.otherOrgID,
		Name:           "Foreign Genea",
		Category:       connector.CategoryGenea,
		Config:         map[string]any{"apiKey": "k", "locationUuid": "l"},
	}
	if err := fx.registry.Create(ctx, foreign); err != nil {
		t.Fatalf("Create connector: %v", err)
	}

	w := doRequest(t, srv, http.MethodGet, "/api/connectors/"+foreign.ID, fx.adminToken, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Events ────────────────────────────────────────────────────────

func TestListEvents_Pagination(t *testing.T) {
	srv, fx := testServer(t)
	ctx := context.Background()

	conn := &connector.Connector{
		ID:             connector.GenerateID(),
		OrganizationID: fx.orgID,
		Name:           "Office YoLink",
		Category:       connector.CategoryYoLink,
		Config:         map[string]any{"uaid": "ua", "secretKey": "sk"},
	}
	if err := fx.registry.Create(ctx, conn); err != nil {
		t.Fatalf("Create connector: %v", err)
	}

	for i := 0; i < 7; i++ {
		e := &event.Event{
			ID:                event.GenerateID(),
			OrganizationID:    fx.orgID,
			ConnectorID:       conn.ID,
			ConnectorCategory: "yolink",
			DeviceID:          "ext-1",
			DeviceName:        "Front Door",
			Category:          event.CategoryDeviceState,
			Type:              "door_sensor.open",
		}
		if err := fx.events.Insert(ctx, e); err != nil {
			t.Fatalf("Insert event: %v", err)
		}
	}

	w := doRequest(t, srv, http.MethodGet, "/api/events?page=1&pageSize=5", fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	resp := decodeEnvelope(t, w)
	events := resp["data"].([]any)
	if len(events) != 5 {
		t.Errorf("page length = %d, want 5", len(events))
	}

	pagination := resp["pagination"].(map[string]any)
	if int(pagination["itemsPerPage"].(float64)) != 5 {
		t.Errorf("itemsPerPage = %v, want 5", pagination["itemsPerPage"])
	}
	if int(pagination["currentPage"].(float64)) != 1 {
		t.Errorf("currentPage = %v, want 1", pagination["currentPage"])
	}
	if pagination["hasNextPage"] != true {
		t.Errorf("hasNextPage = %v, want true", pagination["hasNextPage"])
	}

	w = doRequest(t, srv, http.MethodGet, "/api/events?page=2&pageSize=5", fx.adminToken, "")
	resp = decodeEnvelope(t, w)
	events = resp["data"].([]any)
	if len(events) != 2 {
		t.Errorf("second page length = %d, want 2", len(events))
	}
	if resp["pagination"].(map[string]any)["hasNextPage"] != false {
		t.Error("second page should be the last")
	}
}

func TestListEvents_UnknownCategory(t *testing.T) {
	srv, fx := testServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/events?eventCategories=BOGUS", fx.adminToken, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Automations ───────────────────────────────────────────────────

func TestAutomationCRUD(t *testing.T) {
	srv, fx := testServer(t)

	body := `{
		"name": "Door alert",
		"enabled": true,
		"trigger": {"eventTypeFilter": "door_sensor.open", "connectorCategory": "yolink"},
		"actions": [{
			"type": "createEvent",
			"createEvent": {"category": "SECURITY", "eventType": "door.alert"}
		}]
	}`
	w := doRequest(t, srv, http.MethodPost, "/api/automations", fx.adminToken, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	resp := decodeEnvelope(t, w)
	id := resp["data"].(map[string]any)["id"].(string)

	w = doRequest(t, srv, http.MethodGet, "/api/automations/"+id, fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/automations/"+id+"/executions", fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("executions status = %d, want %d", w.Code, http.StatusOK)
	}
	resp = decodeEnvelope(t, w)
	if int(resp["data"].(map[string]any)["count"].(float64)) != 0 {
		t.Errorf("executions count = %v, want 0", resp["data"])
	}

	w = doRequest(t, srv, http.MethodDelete, "/api/automations/"+id, fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestCreateAutomation_NoActions(t *testing.T) {
	srv, fx := testServer(t)

	body := `{
		"name": "Empty",
		"enabled": true,
		"trigger": {"eventTypeFilter": "door_sensor.open"},
		"actions": []
	}`
	w := doRequest(t, srv, http.MethodPost, "/api/automations", fx.adminToken, body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

// ─── Locations and Areas ───────────────────────────────────────────

func TestLocationAndAreaCRUD(t *testing.T) {
	srv, fx := testServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/locations", fx.adminToken,
		`{"name": "Head Office"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create location status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	resp := decodeEnvelope(t, w)
	locationID := resp["data"].(map[string]any)["id"].(string)

	w = doRequest(t, srv, http.MethodPost, "/api/areas", fx.adminToken,
		`{"locationId": "`+locationID+`", "name": "Lobby"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create area status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	resp = decodeEnvelope(t, w)
	areaID := resp["data"].(map[string]any)["id"].(string)

	w = doRequest(t, srv, http.MethodGet, "/api/areas?locationId="+locationID, fx.adminToken, "")
	resp = decodeEnvelope(t, w)
	if int(resp["data"].(map[string]any)["count"].(float64)) != 1 {
		t.Errorf("area count = %v, want 1", resp["data"])
	}

	w = doRequest(t, srv, http.MethodDelete, "/api/areas/"+areaID, fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete area status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doRequest(t, srv, http.MethodDelete, "/api/locations/"+locationID, fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete location status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestCreateArea_UnknownLocation(t *testing.T) {
	srv, fx := testServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/areas", fx.adminToken,
		`{"locationId": "nope", "name": "Lobby"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

// ─── Service Configurations ────────────────────────────────────────

func TestServiceConfig_DuplicateType(t *testing.T) {
	srv, fx := testServer(t)

	body := `{"type": "PUSHOVER", "config": {"token": "t", "user": "u"}, "enabled": true}`
	w := doRequest(t, srv, http.MethodPost, "/api/service-configurations", fx.adminToken, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	w = doRequest(t, srv, http.MethodPost, "/api/service-configurations", fx.adminToken, body)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestServiceConfig_UnknownType(t *testing.T) {
	srv, fx := testServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/service-configurations", fx.adminToken,
		`{"type": "CARRIER_PIGEON", "config": {}}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

// ─── Linear Read Surface ───────────────────────────────────────────

type fakeIssueDirectory struct {
	teams   []linear.Team
	members []linear.Member
	issues  []linear.Issue
	teamID  string
}

func (f *fakeIssueDirectory) ListTeams(context.Context) ([]linear.Team, error) {
	return f.teams, nil
}

func (f *fakeIssueDirectory) ListMembers(context.Context) ([]linear.Member, error) {
	return f.members, nil
}

func (f *fakeIssueDirectory) ListIssues(_ context.Context, teamID string) ([]linear.Issue, error) {
	f.teamID = teamID
	return f.issues, nil
}

func TestLinearTeams_NotConfigured(t *testing.T) {
	srv, fx := testServer(t)

	w := doRequest(t, srv, http.MethodGet, "/api/linear/teams", fx.adminToken, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestLinearReadSurface(t *testing.T) {
	srv, fx := testServer(t)

	directory := &fakeIssueDirectory{
		teams:   []linear.Team{{ID: "team-1", Key: "OPS", Name: "Operations"}},
		members: []linear.Member{{ID: "mem-1", Name: "Dana", Email: "dana@example.com"}},
		issues:  []linear.Issue{{ID: "iss-1", Identifier: "OPS-1", Title: "Door offline"}},
	}
	srv.linearFactory = func(*servicecfg.ServiceConfiguration) IssueDirectory { return directory }

	body := `{"type": "LINEAR", "config": {"apiKey": "k", "teamId": "team-1"}, "enabled": true}`
	w := doRequest(t, srv, http.MethodPost, "/api/service-configurations", fx.adminToken, body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create config status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	w = doRequest(t, srv, http.MethodGet, "/api/linear/teams", fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("teams status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	resp := decodeEnvelope(t, w)
	if int(resp["data"].(map[string]any)["count"].(float64)) != 1 {
		t.Errorf("teams count = %v, want 1", resp["data"])
	}

	w = doRequest(t, srv, http.MethodGet, "/api/linear/members", fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("members status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/linear/teams/team-1/issues", fx.adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("issues status = %d, want %d", w.Code, http.StatusOK)
	}
	if directory.teamID != "team-1" {
		t.Errorf("issue listing queried team %q, want team-1", directory.teamID)
	}
}

// ─── WebSocket Hub ─────────────────────────────────────────────────

func TestHub_BroadcastScopedToOrg(t *testing.T) {
	srv, fx := testServer(t)
	hub := srv.Hub()

	mine := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 4),
		subscriptions: map[string]struct{}{ChannelEventCreated: {}},
		orgID:         fx.orgID,
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 4),
		subscriptions: map[string]struct{}{ChannelEventCreated: {}},
		orgID:         fx.otherOrgID,
	}
	hub.Register(mine)
	hub.Register(other)

	hub.Broadcast(fx.orgID, ChannelEventCreated, map[string]any{"hello": "world"})

	select {
	case <-mine.send:
	default:
		t.Error("client in the event's organisation should receive the broadcast")
	}
	select {
	case <-other.send:
		t.Error("client in another organisation should not receive the broadcast")
	default:
	}
}

func TestHub_ConnectorMute(t *testing.T) {
	srv, fx := testServer(t)
	hub := srv.Hub()

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 4),
		subscriptions: map[string]struct{}{ChannelEventCreated: {}},
		orgID:         fx.orgID,
	}
	hub.Register(client)

	evt := &event.Event{
		ID:             event.GenerateID(),
		OrganizationID: fx.orgID,
		ConnectorID:    "conn-1",
		Category:       event.CategoryDeviceState,
		Type:           "door_sensor.open",
	}

	hub.SetConnectorBroadcast("conn-1", false)
	hub.EventIngested(context.Background(), evt)
	select {
	case <-client.send:
		t.Error("muted connector should not broadcast")
	default:
	}

	hub.SetConnectorBroadcast("conn-1", true)
	hub.EventIngested(context.Background(), evt)
	select {
	case <-client.send:
	default:
		t.Error("unmuted connector should broadcast again")
	}
}
