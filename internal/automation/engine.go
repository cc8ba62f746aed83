package automation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fusionbridge/fusion-bridge-core/internal/connector"
	"github.com/fusionbridge/fusion-bridge-core/internal/device"
	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/piko"
	"github.com/fusionbridge/fusion-bridge-core/internal/event"
	"github.com/fusionbridge/fusion-bridge-core/internal/location"
)

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// PikoActions is the subset of the Piko driver the engine drives:
// bookmarks on cameras and generic events injected into the system log.
type PikoActions interface {
	CreateBookmark(ctx context.Context, cameraID, name, description string, start time.Time, duration time.Duration) error
	CreateEvent(ctx context.Context, e piko.GenericEvent) error
}

// PikoFactory builds a Piko client from a connector's credentials.
type PikoFactory func(conn *connector.Connector) PikoActions

// NewPikoFactory returns the production factory backed by the Piko
// driver.
func NewPikoFactory(baseURL string, timeout time.Duration) PikoFactory {
	return func(conn *connector.Connector) PikoActions {
		return piko.NewClient(
			baseURL,
			conn.ConfigString("systemId"),
			conn.ConfigString("username"),
			conn.ConfigString("password"),
			timeout,
		)
	}
}

// DeviceRepository is the subset of device persistence the engine uses.
type DeviceRepository interface {
	GetByID(ctx context.Context, id string) (*device.Device, error)
	GetByExternalID(ctx context.Context, connectorID, deviceID string) (*device.Device, error)
	ListAssociatedCameras(ctx context.Context, deviceID string) ([]device.Device, error)
}

// Engine matches ingested events against enabled automations and executes
// their actions.
//
// Automations are cached in memory and reloaded on CRUD; every event
// checks the cache only. Each qualifying event executes an automation
// exactly once, actions in order, and a failed action is recorded without
// blocking the actions after it.
type Engine struct {
	repo       Repository
	devices    DeviceRepository
	connectors *connector.Registry
	events     event.Repository
	locations  location.Repository
	logger     Logger

	pikoFactory PikoFactory
	http        *resty.Client

	cacheMu sync.RWMutex
	cache   []Automation
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithPikoFactory overrides the Piko client factory.
func WithPikoFactory(f PikoFactory) EngineOption {
	return func(e *Engine) { e.pikoFactory = f }
}

// WithHTTPClient overrides the HTTP client used by sendHttpRequest
// actions.
func WithHTTPClient(c *resty.Client) EngineOption {
	return func(e *Engine) { e.http = c }
}

// NewEngine creates an automation engine.
func NewEngine(repo Repository, devices DeviceRepository, connectors *connector.Registry, events event.Repository, locations location.Repository, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:       repo,
		devices:    devices,
		connectors: connectors,
		events:     events,
		locations:  locations,
		logger:     noopLogger{},
		http:       resty.New().SetTimeout(30 * time.Second),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReloadCache reloads enabled automations from the repository.
// Called on startup and after automation CRUD.
func (e *Engine) ReloadCache(ctx context.Context) error {
	automations, err := e.repo.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("loading automations: %w", err)
	}

	e.cacheMu.Lock()
	e.cache = automations
	e.cacheMu.Unlock()

	e.logger.Info("automation cache reloaded", "count", len(automations))
	return nil
}

// EventIngested dispatches one ingested event to every matching enabled
// automation. Implements the sync and MQTT event sink interface.
func (e *Engine) EventIngested(ctx context.Context, evt *event.Event) {
	e.cacheMu.RLock()
	automations := e.cache
	e.cacheMu.RUnlock()

	var triggered []Automation
	var triggerDevice *device.Device

	for i := range automations {
		a := &automations[i]
		if a.OrganizationID != evt.OrganizationID {
			continue
		}

		// Resolve the originating device lazily, once per event.
		if len(a.Trigger.DeviceTypes) > 0 && triggerDevice == nil {
			d, err := e.devices.GetByExternalID(ctx, evt.ConnectorID, evt.DeviceID)
			if err == nil {
				triggerDevice = d
			}
		}

		if matchTrigger(a.Trigger, evt, triggerDevice) {
			triggered = append(triggered, *a)
		}
	}

	for i := range triggered {
		e.execute(ctx, &triggered[i], evt)
	}
}

// matchTrigger reports whether an event qualifies for a trigger.
func matchTrigger(t Trigger, evt *event.Event, d *device.Device) bool {
	if t.SourceConnectorID != "" {
		if t.SourceConnectorID != evt.ConnectorID {
			return false
		}
	} else if t.ConnectorCategory != "" && t.ConnectorCategory != evt.ConnectorCategory {
		return false
	}

	if len(t.DeviceTypes) > 0 {
		if d == nil {
			return false
		}
		found := false
		for _, dt := range t.DeviceTypes {
			if dt == string(d.Type) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return matchEventType(t.EventTypeFilter, evt.Type)
}

// matchEventType matches an event type against a filter with an optional
// trailing "*" wildcard ("motion.*" matches "motion.detected").
func matchEventType(filter, eventType string) bool {
	if filter == "" || filter == "*" {
		return true
	}
	if strings.HasSuffix(filter, "*") {
		return strings.HasPrefix(eventType, strings.TrimSuffix(filter, "*"))
	}
	return filter == eventType
}

// execute runs one automation against one event, actions in order.
func (e *Engine) execute(ctx context.Context, a *Automation, evt *event.Event) {
	execution := &Execution{
		ID:           GenerateID(),
		AutomationID: a.ID,
		EventID:      evt.ID,
		Status:       ExecutionRunning,
		StartedAt:    time.Now().UTC(),
	}

	tmplCtx := e.buildTemplateContext(ctx, evt)

	for i, action := range a.Actions {
		if err := e.executeAction(ctx, a, evt, action, tmplCtx); err != nil {
			e.logger.Error("automation action failed",
				"automation_id", a.ID,
				"automation_name", a.Name,
				"action_index", i,
				"action_type", action.Type,
				"error", err,
			)
			execution.Failures = append(execution.Failures, ActionFailure{
				Index:      i,
				ActionType: string(action.Type),
				Error:      err.Error(),
			})
		}
	}

	now := time.Now().UTC()
	execution.CompletedAt = &now
	switch {
	case len(execution.Failures) == 0:
		execution.Status = ExecutionCompleted
	case len(execution.Failures) == len(a.Actions):
		execution.Status = ExecutionFailed
	default:
		execution.Status = ExecutionPartial
	}

	if err := e.repo.RecordExecution(ctx, execution); err != nil {
		e.logger.Error("recording automation execution failed",
			"automation_id", a.ID,
			"error", err,
		)
	}

	e.logger.Info("automation executed",
		"automation_id", a.ID,
		"automation_name", a.Name,
		"event_id", evt.ID,
		"status", execution.Status,
		"failures", len(execution.Failures),
	)
}

// buildTemplateContext resolves the event's surroundings for {{token}}
// substitution. Resolution failures degrade to missing tokens, never to
// an aborted execution.
func (e *Engine) buildTemplateContext(ctx context.Context, evt *event.Event) *TemplateContext {
	var d *device.Device
	if resolved, err := e.devices.GetByExternalID(ctx, evt.ConnectorID, evt.DeviceID); err == nil {
		d = resolved
	}

	var conn *connector.Connector
	if resolved, err := e.connectors.Get(ctx, evt.ConnectorID); err == nil {
		conn = resolved
	}

	var areaName, locationName string
	if d != nil && d.AreaID != nil {
		if area, err := e.locations.GetArea(ctx, *d.AreaID); err == nil {
			areaName = area.Name
			if loc, err := e.locations.GetLocation(ctx, area.LocationID); err == nil {
				locationName = loc.Name
			}
		}
	}

	return NewTemplateContext(evt, d, conn, areaName, locationName)
}

func (e *Engine) executeAction(ctx context.Context, a *Automation, evt *event.Event, action Action, tmplCtx *TemplateContext) error {
	switch action.Type {
	case ActionCreateEvent:
		return e.executeCreateEvent(ctx, a, evt, action.CreateEvent, tmplCtx)
	case ActionCreateBookmark:
		return e.executeCreateBookmark(ctx, evt, action.CreateBookmark, tmplCtx)
	case ActionSendHTTPRequest:
		return e.executeHTTPRequest(ctx, action.SendHTTPRequest, tmplCtx)
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

func (e *Engine) executeCreateEvent(ctx context.Context, a *Automation, evt *event.Event, cfg *CreateEventAction, tmplCtx *TemplateContext) error {
	if cfg == nil {
		return fmt.Errorf("createEvent configuration missing")
	}

	category := event.Category(tmplCtx.Render(cfg.Category))
	if !category.IsValid() {
		category = event.CategoryAnalytics
	}

	derived := &event.Event{
		OrganizationID:    a.OrganizationID,
		ConnectorID:       evt.ConnectorID,
		ConnectorCategory: evt.ConnectorCategory,
		DeviceID:          evt.DeviceID,
		DeviceName:        evt.DeviceName,
		Category:          category,
		Type:              tmplCtx.Render(cfg.Type),
		Subtype:           tmplCtx.Render(cfg.Subtype),
		Payload:           tmplCtx.RenderMap(cfg.Payload),
		Timestamp:         time.Now().UTC(),
	}

	if err := e.events.Insert(ctx, derived); err != nil {
		return fmt.Errorf("inserting derived event: %w", err)
	}

	// A target connector mirrors the event into that Piko system's own
	// event log, so it shows up in the vendor's timeline too.
	if cfg.TargetConnectorID != "" {
		if err := e.injectVendorEvent(ctx, cfg.TargetConnectorID, derived); err != nil {
			return fmt.Errorf("injecting vendor event: %w", err)
		}
	}
	return nil
}

// injectVendorEvent pushes a derived event into a Piko connector's event
// log through the vendor API.
func (e *Engine) injectVendorEvent(ctx context.Context, connectorID string, derived *event.Event) error {
	if e.pikoFactory == nil {
		return fmt.Errorf("piko client factory not configured")
	}

	conn, err := e.connectors.Get(ctx, connectorID)
	if err != nil {
		return fmt.Errorf("resolving target connector: %w", err)
	}
	if conn.Category != connector.CategoryPiko {
		return fmt.Errorf("target connector %s is not a piko system", connectorID)
	}

	return e.pikoFactory(conn).CreateEvent(ctx, piko.GenericEvent{
		Source:      derived.DeviceName,
		Caption:     derived.Type,
		Description: derived.Subtype,
	})
}

func (e *Engine) executeCreateBookmark(ctx context.Context, evt *event.Event, cfg *CreateBookmarkAction, tmplCtx *TemplateContext) error {
	if cfg == nil {
		return fmt.Errorf("createBookmark configuration missing")
	}
	if e.pikoFactory == nil {
		return fmt.Errorf("piko client factory not configured")
	}

	camera, err := e.resolveCamera(ctx, evt, cfg)
	if err != nil {
		return err
	}

	conn, err := e.connectors.Get(ctx, camera.ConnectorID)
	if err != nil {
		return fmt.Errorf("resolving camera connector: %w", err)
	}
	if conn.Category != connector.CategoryPiko {
		return fmt.Errorf("camera %s belongs to non-piko connector", camera.DeviceID)
	}

	client := e.pikoFactory(conn)
	duration := time.Duration(cfg.DurationSeconds) * time.Second

	err = client.CreateBookmark(ctx,
		camera.DeviceID,
		tmplCtx.Render(cfg.Name),
		tmplCtx.Render(cfg.Description),
		evt.Timestamp,
		duration,
	)
	if err != nil {
		return fmt.Errorf("creating bookmark on camera %s: %w", camera.DeviceID, err)
	}
	return nil
}

// resolveCamera picks the bookmark target: the explicitly configured
// camera, or the first camera associated with the triggering device.
func (e *Engine) resolveCamera(ctx context.Context, evt *event.Event, cfg *CreateBookmarkAction) (*device.Device, error) {
	if cfg.CameraDeviceID != "" {
		camera, err := e.devices.GetByID(ctx, cfg.CameraDeviceID)
		if err != nil {
			return nil, fmt.Errorf("resolving configured camera: %w", err)
		}
		return camera, nil
	}

	trigger, err := e.devices.GetByExternalID(ctx, evt.ConnectorID, evt.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("resolving triggering device: %w", err)
	}

	cameras, err := e.devices.ListAssociatedCameras(ctx, trigger.ID)
	if err != nil {
		return nil, fmt.Errorf("listing associated cameras: %w", err)
	}
	if len(cameras) == 0 {
		return nil, fmt.Errorf("device %s has no associated camera", trigger.DeviceID)
	}
	return &cameras[0], nil
}

func (e *Engine) executeHTTPRequest(ctx context.Context, cfg *SendHTTPRequestAction, tmplCtx *TemplateContext) error {
	if cfg == nil {
		return fmt.Errorf("sendHttpRequest configuration missing")
	}

	method := strings.ToUpper(cfg.Method)
	url := tmplCtx.Render(cfg.URL)

	req := e.http.R().SetContext(ctx)
	for _, h := range cfg.Headers {
		req.SetHeader(h.Key, tmplCtx.Render(h.Value))
	}

	// Body and content type apply only to methods that carry a body;
	// GET and DELETE requests go out bare.
	if httpMethodsWithBody[method] {
		if cfg.ContentType != "" {
			req.SetHeader("Content-Type", cfg.ContentType)
		}
		if cfg.Body != "" {
			req.SetBody(tmplCtx.Render(cfg.Body))
		}
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return fmt.Errorf("sending %s %s: %w", method, url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s %s returned %s", method, url, resp.Status())
	}
	return nil
}
