package automation

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fusionbridge/fusion-bridge-core/internal/connector"
	"github.com/fusionbridge/fusion-bridge-core/internal/device"
	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/piko"
	"github.com/fusionbridge/fusion-bridge-core/internal/event"
	"github.com/fusionbridge/fusion-bridge-core/internal/location"
)

// ─── Mocks ───────────────────────────────────────────────────────────

type mockAutomationRepo struct {
	automations []Automation
	executions  []Execution
}

func (m *mockAutomationRepo) GetByID(_ context.Context, id string) (*Automation, error) {
	for i := range m.automations {
		if m.automations[i].ID == id {
			return &m.automations[i], nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockAutomationRepo) List(_ context.Context, orgID string) ([]Automation, error) {
	var out []Automation
	for _, a := range m.automations {
		if a.OrganizationID == orgID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAutomationRepo) ListEnabled(_ context.Context) ([]Automation, error) {
	var out []Automation
	for _, a := range m.automations {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAutomationRepo) Create(_ context.Context, a *Automation) error { return nil }
func (m *mockAutomationRepo) Update(_ context.Context, a *Automation) error { return nil }
func (m *mockAutomationRepo) Delete(_ context.Context, id string) error     { return nil }

func (m *mockAutomationRepo) RecordExecution(_ context.Context, e *Execution) error {
	m.executions = append(m.executions, *e)
	return nil
}

func (m *mockAutomationRepo) ListExecutions(_ context.Context, automationID string, limit int) ([]Execution, error) {
	return m.executions, nil
}

type mockDeviceRepo struct {
	devices []device.Device
	cameras map[string][]device.Device
}

func (m *mockDeviceRepo) GetByID(_ context.Context, id string) (*device.Device, error) {
	for i := range m.devices {
		if m.devices[i].ID == id {
			return &m.devices[i], nil
		}
	}
	return nil, device.ErrNotFound
}

func (m *mockDeviceRepo) GetByExternalID(_ context.Context, connectorID, deviceID string) (*device.Device, error) {
	for i := range m.devices {
		if m.devices[i].ConnectorID == connectorID && m.devices[i].DeviceID == deviceID {
			return &m.devices[i], nil
		}
	}
	return nil, device.ErrNotFound
}

func (m *mockDeviceRepo) ListAssociatedCameras(_ context.Context, deviceID string) ([]device.Device, error) {
	return m.cameras[deviceID], nil
}

type mockEventRepo struct {
	inserted []event.Event
	fail     bool
}

func (m *mockEventRepo) Insert(_ context.Context, e *event.Event) error {
	if m.fail {
		return errors.New("insert failed")
	}
	m.inserted = append(m.inserted, *e)
	return nil
}

func (m *mockEventRepo) GetByID(_ context.Context, id string) (*event.Event, error) {
	return nil, event.ErrNotFound
}

func (m *mockEventRepo) List(_ context.Context, req event.PageRequest) (*event.Page, error) {
	return &event.Page{}, nil
}

type mockLocationRepo struct {
	areas     map[string]*location.Area
	locations map[string]*location.Location
}

func (m *mockLocationRepo) GetLocation(_ context.Context, id string) (*location.Location, error) {
	if l, ok := m.locations[id]; ok {
		return l, nil
	}
	return nil, location.ErrNotFound
}

func (m *mockLocationRepo) ListLocations(_ context.Context, orgID string) ([]location.Location, error) {
	return nil, nil
}
func (m *mockLocationRepo) CreateLocation(_ context.Context, l *location.Location) error { return nil }
func (m *mockLocationRepo) UpdateLocation(_ context.Context, l *location.Location) error { return nil }
func (m *mockLocationRepo) DeleteLocation(_ context.Context, id string) error            { return nil }

func (m *mockLocationRepo) GetArea(_ context.Context, id string) (*location.Area, error) {
	if a, ok := m.areas[id]; ok {
		return a, nil
	}
	return nil, location.ErrNotFound
}

func (m *mockLocationRepo) ListAreas(_ context.Context, orgID, locationID string) ([]location.Area, error) {
	return nil, nil
}
func (m *mockLocationRepo) CreateArea(_ context.Context, a *location.Area) error { return nil }
func (m *mockLocationRepo) UpdateArea(_ context.Context, a *location.Area) error { return nil }
func (m *mockLocationRepo) DeleteArea(_ context.Context, id string) error        { return nil }

type mockConnectorRepo struct {
	connectors []connector.Connector
}

func (m *mockConnectorRepo) GetByID(_ context.Context, id string) (*connector.Connector, error) {
	for i := range m.connectors {
		if m.connectors[i].ID == id {
			return &m.connectors[i], nil
		}
	}
	return nil, connector.ErrNotFound
}

func (m *mockConnectorRepo) List(_ context.Context, orgID string) ([]connector.Connector, error) {
	return m.connectors, nil
}

func (m *mockConnectorRepo) ListAll(_ context.Context) ([]connector.Connector, error) {
	return m.connectors, nil
}

func (m *mockConnectorRepo) Create(_ context.Context, c *connector.Connector) error { return nil }
func (m *mockConnectorRepo) Update(_ context.Context, c *connector.Connector) error { return nil }
func (m *mockConnectorRepo) Delete(_ context.Context, id string) error              { return nil }
func (m *mockConnectorRepo) SetEventsEnabled(_ context.Context, id string, enabled bool) error {
	return nil
}
func (m *mockConnectorRepo) SetOrganization(_ context.Context, id, orgID string) error { return nil }

type fakePiko struct {
	calls  []bookmarkCall
	events []piko.GenericEvent
	fail   bool
}

type bookmarkCall struct {
	cameraID string
	name     string
	duration time.Duration
}

func (f *fakePiko) CreateBookmark(_ context.Context, cameraID, name, description string, start time.Time, duration time.Duration) error {
	if f.fail {
		return errors.New("bookmark failed")
	}
	f.calls = append(f.calls, bookmarkCall{cameraID: cameraID, name: name, duration: duration})
	return nil
}

func (f *fakePiko) CreateEvent(_ context.Context, e piko.GenericEvent) error {
	if f.fail {
		return errors.New("event injection failed")
	}
	f.events = append(f.events, e)
	return nil
}

// ─── Fixtures ────────────────────────────────────────────────────────

func newTestRegistry(t *testing.T, connectors ...connector.Connector) *connector.Registry {
	t.Helper()
	reg := connector.NewRegistry(&mockConnectorRepo{connectors: connectors})
	if err := reg.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache() error: %v", err)
	}
	return reg
}

func testEvent() *event.Event {
	return &event.Event{
		ID:                "evt-1",
		OrganizationID:    "org-1",
		ConnectorID:       "conn-yolink",
		ConnectorCategory: "yolink",
		DeviceID:          "ext-door-1",
		DeviceName:        "Front Door",
		Category:          event.CategoryDeviceState,
		Type:              "door_sensor.open",
		DisplayState:      device.DisplayStateOpen,
		Timestamp:         time.Now().UTC(),
	}
}

// ─── Tests ───────────────────────────────────────────────────────────

func TestEngineMatchesTriggerAndCreatesEvent(t *testing.T) {
	repo := &mockAutomationRepo{
		automations: []Automation{{
			ID:             "auto-1",
			OrganizationID: "org-1",
			Name:           "door alert",
			Enabled:        true,
			Trigger: Trigger{
				ConnectorCategory: "yolink",
				EventTypeFilter:   "door_sensor.*",
			},
			Actions: []Action{{
				Type: ActionCreateEvent,
				CreateEvent: &CreateEventAction{
					Category: "SECURITY",
					Type:     "alert.door_opened",
					Payload:  map[string]string{"source": "{{event.type}}"},
				},
			}},
		}},
	}
	events := &mockEventRepo{}
	devices := &mockDeviceRepo{}
	reg := newTestRegistry(t, connector.Connector{ID: "conn-yolink", Name: "YL", Category: connector.CategoryYoLink})

	engine := NewEngine(repo, devices, reg, events, &mockLocationRepo{})
	if err := engine.ReloadCache(context.Background()); err != nil {
		t.Fatalf("ReloadCache() error: %v", err)
	}

	engine.EventIngested(context.Background(), testEvent())

	if len(events.inserted) != 1 {
		t.Fatalf("inserted %d events, want 1", len(events.inserted))
	}
	derived := events.inserted[0]
	if derived.Type != "alert.door_opened" {
		t.Errorf("derived event type = %q, want alert.door_opened", derived.Type)
	}
	if derived.Category != event.CategorySecurity {
		t.Errorf("derived event category = %q, want SECURITY", derived.Category)
	}
	if derived.Payload["source"] != "door_sensor.open" {
		t.Errorf("payload source = %v, want door_sensor.open", derived.Payload["source"])
	}

	if len(repo.executions) != 1 {
		t.Fatalf("recorded %d executions, want 1", len(repo.executions))
	}
	if repo.executions[0].Status != ExecutionCompleted {
		t.Errorf("execution status = %q, want completed", repo.executions[0].Status)
	}
}

func TestEngineSkipsNonMatchingAutomations(t *testing.T) {
	repo := &mockAutomationRepo{
		automations: []Automation{
			{
				ID: "wrong-org", OrganizationID: "org-2", Enabled: true,
				Trigger: Trigger{},
				Actions: []Action{{Type: ActionCreateEvent, CreateEvent: &CreateEventAction{Type: "x"}}},
			},
			{
				ID: "wrong-connector", OrganizationID: "org-1", Enabled: true,
				Trigger: Trigger{SourceConnectorID: "conn-other"},
				Actions: []Action{{Type: ActionCreateEvent, CreateEvent: &CreateEventAction{Type: "x"}}},
			},
			{
				ID: "wrong-type", OrganizationID: "org-1", Enabled: true,
				Trigger: Trigger{EventTypeFilter: "leak_sensor.*"},
				Actions: []Action{{Type: ActionCreateEvent, CreateEvent: &CreateEventAction{Type: "x"}}},
			},
		},
	}
	events := &mockEventRepo{}
	reg := newTestRegistry(t)

	engine := NewEngine(repo, &mockDeviceRepo{}, reg, events, &mockLocationRepo{})
	if err := engine.ReloadCache(context.Background()); err != nil {
		t.Fatalf("ReloadCache() error: %v", err)
	}

	engine.EventIngested(context.Background(), testEvent())

	if len(events.inserted) != 0 {
		t.Errorf("inserted %d events, want 0", len(events.inserted))
	}
	if len(repo.executions) != 0 {
		t.Errorf("recorded %d executions, want 0", len(repo.executions))
	}
}

func TestEngineDeviceTypeFilter(t *testing.T) {
	repo := &mockAutomationRepo{
		automations: []Automation{{
			ID: "auto-1", OrganizationID: "org-1", Enabled: true,
			Trigger: Trigger{DeviceTypes: []string{"motion_sensor"}},
			Actions: []Action{{Type: ActionCreateEvent, CreateEvent: &CreateEventAction{Type: "x"}}},
		}},
	}
	devices := &mockDeviceRepo{devices: []device.Device{{
		ID: "dev-1", ConnectorID: "conn-yolink", DeviceID: "ext-door-1", Type: device.TypeDoorSensor,
	}}}
	events := &mockEventRepo{}

	engine := NewEngine(repo, devices, newTestRegistry(t), events, &mockLocationRepo{})
	if err := engine.ReloadCache(context.Background()); err != nil {
		t.Fatalf("ReloadCache() error: %v", err)
	}

	// Door sensor event against a motion-only automation.
	engine.EventIngested(context.Background(), testEvent())

	if len(events.inserted) != 0 {
		t.Errorf("inserted %d events, want 0", len(events.inserted))
	}
}

func TestEngineActionFailureDoesNotBlockLaterActions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := &mockAutomationRepo{
		automations: []Automation{{
			ID: "auto-1", OrganizationID: "org-1", Name: "mixed", Enabled: true,
			Actions: []Action{
				{Type: ActionCreateEvent, CreateEvent: &CreateEventAction{Type: "x"}},
				{Type: ActionSendHTTPRequest, SendHTTPRequest: &SendHTTPRequestAction{
					URL: srv.URL, Method: "GET",
				}},
			},
		}},
	}
	events := &mockEventRepo{fail: true}

	engine := NewEngine(repo, &mockDeviceRepo{}, newTestRegistry(t), events, &mockLocationRepo{})
	if err := engine.ReloadCache(context.Background()); err != nil {
		t.Fatalf("ReloadCache() error: %v", err)
	}

	engine.EventIngested(context.Background(), testEvent())

	if len(repo.executions) != 1 {
		t.Fatalf("recorded %d executions, want 1", len(repo.executions))
	}
	exec := repo.executions[0]
	if exec.Status != ExecutionPartial {
		t.Errorf("execution status = %q, want partial", exec.Status)
	}
	if len(exec.Failures) != 1 {
		t.Fatalf("recorded %d failures, want 1", len(exec.Failures))
	}
	if exec.Failures[0].Index != 0 || exec.Failures[0].ActionType != "createEvent" {
		t.Errorf("failure = %+v, want index 0 type createEvent", exec.Failures[0])
	}
}

func TestEngineHTTPRequestOmitsBodyForGet(t *testing.T) {
	var gotBody bool
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody = r.ContentLength > 0
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := &mockAutomationRepo{
		automations: []Automation{{
			ID: "auto-1", OrganizationID: "org-1", Enabled: true,
			Actions: []Action{{
				Type: ActionSendHTTPRequest,
				SendHTTPRequest: &SendHTTPRequestAction{
					URL:         srv.URL,
					Method:      "GET",
					ContentType: "application/json",
					Body:        `{"ignored": true}`,
				},
			}},
		}},
	}

	engine := NewEngine(repo, &mockDeviceRepo{}, newTestRegistry(t), &mockEventRepo{}, &mockLocationRepo{})
	if err := engine.ReloadCache(context.Background()); err != nil {
		t.Fatalf("ReloadCache() error: %v", err)
	}

	engine.EventIngested(context.Background(), testEvent())

	if gotBody {
		t.Errorf("GET request carried a body")
	}
	if gotContentType == "application/json" {
		t.Errorf("GET request carried the configured content type")
	}
	if repo.executions[0].Status != ExecutionCompleted {
		t.Errorf("execution status = %q, want completed", repo.executions[0].Status)
	}
}

func TestEngineHTTPRequestRendersBodyTemplate(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	repo := &mockAutomationRepo{
		automations: []Automation{{
			ID: "auto-1", OrganizationID: "org-1", Enabled: true,
			Actions: []Action{{
				Type: ActionSendHTTPRequest,
				SendHTTPRequest: &SendHTTPRequestAction{
					URL:         srv.URL,
					Method:      "POST",
					ContentType: "application/json",
					Body:        `{"type": "{{event.type}}"}`,
				},
			}},
		}},
	}

	engine := NewEngine(repo, &mockDeviceRepo{}, newTestRegistry(t), &mockEventRepo{}, &mockLocationRepo{})
	if err := engine.ReloadCache(context.Background()); err != nil {
		t.Fatalf("ReloadCache() error: %v", err)
	}

	engine.EventIngested(context.Background(), testEvent())

	want := `{"type": "door_sensor.open"}`
	if gotBody != want {
		t.Errorf("POST body = %q, want %q", gotBody, want)
	}
}

func TestEngineCreateBookmarkUsesAssociatedCamera(t *testing.T) {
	bookmarker := &fakePiko{}

	repo := &mockAutomationRepo{
		automations: []Automation{{
			ID: "auto-1", OrganizationID: "org-1", Enabled: true,
			Actions: []Action{{
				Type: ActionCreateBookmark,
				CreateBookmark: &CreateBookmarkAction{
					Name:            "{{device.name}} opened",
					DurationSeconds: 30,
				},
			}},
		}},
	}
	devices := &mockDeviceRepo{
		devices: []device.Device{
			{ID: "dev-door", ConnectorID: "conn-yolink", DeviceID: "ext-door-1", Name: "Front Door", Type: device.TypeDoorSensor},
			{ID: "dev-cam", ConnectorID: "conn-piko", DeviceID: "cam-42", Name: "Lobby Cam", Type: device.TypeCamera},
		},
		cameras: map[string][]device.Device{
			"dev-door": {{ID: "dev-cam", ConnectorID: "conn-piko", DeviceID: "cam-42", Type: device.TypeCamera}},
		},
	}
	reg := newTestRegistry(t,
		connector.Connector{ID: "conn-yolink", Category: connector.CategoryYoLink},
		connector.Connector{ID: "conn-piko", Category: connector.CategoryPiko},
	)

	engine := NewEngine(repo, devices, reg, &mockEventRepo{}, &mockLocationRepo{},
		WithPikoFactory(func(*connector.Connector) PikoActions { return bookmarker }))
	if err := engine.ReloadCache(context.Background()); err != nil {
		t.Fatalf("ReloadCache() error: %v", err)
	}

	engine.EventIngested(context.Background(), testEvent())

	if len(bookmarker.calls) != 1 {
		t.Fatalf("created %d bookmarks, want 1", len(bookmarker.calls))
	}
	call := bookmarker.calls[0]
	if call.cameraID != "cam-42" {
		t.Errorf("bookmark camera = %q, want cam-42", call.cameraID)
	}
	if call.name != "Front Door opened" {
		t.Errorf("bookmark name = %q, want rendered device name", call.name)
	}
	if call.duration != 30*time.Second {
		t.Errorf("bookmark duration = %v, want 30s", call.duration)
	}
}

func TestEngineCreateBookmarkWithoutCameraFails(t *testing.T) {
	repo := &mockAutomationRepo{
		automations: []Automation{{
			ID: "auto-1", OrganizationID: "org-1", Enabled: true,
			Actions: []Action{{
				Type:           ActionCreateBookmark,
				CreateBookmark: &CreateBookmarkAction{Name: "x", DurationSeconds: 10},
			}},
		}},
	}
	devices := &mockDeviceRepo{
		devices: []device.Device{
			{ID: "dev-door", ConnectorID: "conn-yolink", DeviceID: "ext-door-1", Type: device.TypeDoorSensor},
		},
	}

	engine := NewEngine(repo, devices, newTestRegistry(t), &mockEventRepo{}, &mockLocationRepo{},
		WithPikoFactory(func(*connector.Connector) PikoActions { return &fakePiko{} }))
	if err := engine.ReloadCache(context.Background()); err != nil {
		t.Fatalf("ReloadCache() error: %v", err)
	}

	engine.EventIngested(context.Background(), testEvent())

	if len(repo.executions) != 1 {
		t.Fatalf("recorded %d executions, want 1", len(repo.executions))
	}
	if repo.executions[0].Status != ExecutionFailed {
		t.Errorf("execution status = %q, want failed", repo.executions[0].Status)
	}
}

func TestEngineCreateEventInjectsIntoTargetSystem(t *testing.T) {
	pikoClient := &fakePiko{}

	repo := &mockAutomationRepo{
		automations: []Automation{{
			ID: "auto-1", OrganizationID: "org-1", Enabled: true,
			Actions: []Action{{
				Type: ActionCreateEvent,
				CreateEvent: &CreateEventAction{
					Category:          "SECURITY",
					Type:              "alert.{{event.type}}",
					Subtype:           "perimeter",
					TargetConnectorID: "conn-piko",
				},
			}},
		}},
	}
	events := &mockEventRepo{}
	reg := newTestRegistry(t,
		connector.Connector{ID: "conn-yolink", Category: connector.CategoryYoLink},
		connector.Connector{ID: "conn-piko", Category: connector.CategoryPiko},
	)

	engine := NewEngine(repo, &mockDeviceRepo{}, reg, events, &mockLocationRepo{},
		WithPikoFactory(func(*connector.Connector) PikoActions { return pikoClient }))
	if err := engine.ReloadCache(context.Background()); err != nil {
		t.Fatalf("ReloadCache() error: %v", err)
	}

	engine.EventIngested(context.Background(), testEvent())

	if len(events.inserted) != 1 {
		t.Fatalf("inserted %d events, want 1", len(events.inserted))
	}
	if len(pikoClient.events) != 1 {
		t.Fatalf("injected %d vendor events, want 1", len(pikoClient.events))
	}
	injected := pikoClient.events[0]
	if injected.Caption != "alert.door_sensor.open" {
		t.Errorf("vendor event caption = %q, want rendered type", injected.Caption)
	}
	if injected.Source != "Front Door" {
		t.Errorf("vendor event source = %q, want device name", injected.Source)
	}
	if injected.Description != "perimeter" {
		t.Errorf("vendor event description = %q, want perimeter", injected.Description)
	}
}

func TestEngineCreateEventRejectsNonPikoTarget(t *testing.T) {
	repo := &mockAutomationRepo{
		automations: []Automation{{
			ID: "auto-1", OrganizationID: "org-1", Enabled: true,
			Actions: []Action{{
				Type: ActionCreateEvent,
				CreateEvent: &CreateEventAction{
					Type:              "alert",
					TargetConnectorID: "conn-yolink",
				},
			}},
		}},
	}
	events := &mockEventRepo{}
	reg := newTestRegistry(t,
		connector.Connector{ID: "conn-yolink", Category: connector.CategoryYoLink},
	)

	engine := NewEngine(repo, &mockDeviceRepo{}, reg, events, &mockLocationRepo{},
		WithPikoFactory(func(*connector.Connector) PikoActions { return &fakePiko{} }))
	if err := engine.ReloadCache(context.Background()); err != nil {
		t.Fatalf("ReloadCache() error: %v", err)
	}

	engine.EventIngested(context.Background(), testEvent())

	if len(repo.executions) != 1 {
		t.Fatalf("recorded %d executions, want 1", len(repo.executions))
	}
	if repo.executions[0].Status != ExecutionFailed {
		t.Errorf("execution status = %q, want failed for non-piko target", repo.executions[0].Status)
	}
}
