// Package sync reconciles vendor device inventories against the local
// database.
//
// Each pass fetches a connector's current device listing, upserts every
// device (computing the canonical display state through the mapping
// layer), deletes devices no longer present upstream and emits
// DEVICE_STATE events for observed status changes. A multi-connector
// sweep runs connectors sequentially; one connector's failure never
// aborts the rest.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/fusionbridge/fusion-bridge-core/internal/connector"
	"github.com/fusionbridge/fusion-bridge-core/internal/device"
	"github.com/fusionbridge/fusion-bridge-core/internal/event"
)

// Logger defines the logging interface used by the sync service.
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

// SyncFailure records one connector's failure during a sweep.
type SyncFailure struct {
	ConnectorName string `json:"connectorName"`
	Error         string `json:"error"`
}

// Result summarises one sweep.
type Result struct {
	Processed int           `json:"processed"`
	Failures  []SyncFailure `json:"errors,omitempty"`
}

// EventSink receives events produced during sync (state changes observed
// between passes). The automation engine and the WebSocket hub register
// as sinks.
type EventSink interface {
	EventIngested(ctx context.Context, e *event.Event)
}

// DeviceRepository is the subset of device persistence the sync service
// uses, including camera associations for Piko.
type DeviceRepository interface {
	device.Repository
	device.AssociationRepository
}

// Service reconciles vendor inventories for all connectors.
type Service struct {
	connectors *connector.Registry
	devices    DeviceRepository
	events     event.Repository
	logger     Logger

	yolinkFactory YoLinkFactory
	pikoFactory   PikoFactory
	geneaFactory  GeneaFactory

	pikoServers *pikoServerStore
	sinks       []EventSink
}

// New creates a sync service. Vendor client factories default to the real
// drivers; tests replace them with fakes.
func New(connectors *connector.Registry, devices DeviceRepository, events event.Repository, db dbExecutor, opts ...Option) *Service {
	s := &Service{
		connectors:  connectors,
		devices:     devices,
		events:      events,
		logger:      noopLogger{},
		pikoServers: &pikoServerStore{db: db},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithYoLinkFactory overrides the YoLink client factory.
func WithYoLinkFactory(f YoLinkFactory) Option {
	return func(s *Service) { s.yolinkFactory = f }
}

// WithPikoFactory overrides the Piko client factory.
func WithPikoFactory(f PikoFactory) Option {
	return func(s *Service) { s.pikoFactory = f }
}

// WithGeneaFactory overrides the Genea client factory.
func WithGeneaFactory(f GeneaFactory) Option {
	return func(s *Service) { s.geneaFactory = f }
}

// AddSink registers an event sink. Not safe to call after the service is
// in use.
func (s *Service) AddSink(sink EventSink) {
	s.sinks = append(s.sinks, sink)
}

// SyncAll sweeps every connector sequentially. Failures are collected per
// connector; the sweep always runs to completion.
func (s *Service) SyncAll(ctx context.Context) (*Result, error) {
	connectors, err := s.connectors.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing connectors: %w", err)
	}

	result := &Result{}
	for i := range connectors {
		conn := &connectors[i]

		processed, err := s.SyncConnector(ctx, conn)
		if err != nil {
			s.logger.Error("connector sync failed",
				"connector_id", conn.ID,
				"connector_name", conn.Name,
				"error", err,
			)
			result.Failures = append(result.Failures, SyncFailure{
				ConnectorName: conn.Name,
				Error:         err.Error(),
			})
			continue
		}
		result.Processed += processed
	}

	s.logger.Info("sync sweep complete",
		"connectors", len(connectors),
		"processed", result.Processed,
		"failures", len(result.Failures),
	)
	return result, nil
}

// SyncOrganization sweeps the connectors of one organisation.
func (s *Service) SyncOrganization(ctx context.Context, orgID string) (*Result, error) {
	connectors, err := s.connectors.List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("listing connectors: %w", err)
	}

	result := &Result{}
	for i := range connectors {
		conn := &connectors[i]

		processed, err := s.SyncConnector(ctx, conn)
		if err != nil {
			s.logger.Error("connector sync failed",
				"connector_id", conn.ID,
				"connector_name", conn.Name,
				"error", err,
			)
			result.Failures = append(result.Failures, SyncFailure{
				ConnectorName: conn.Name,
				Error:         err.Error(),
			})
			continue
		}
		result.Processed += processed
	}
	return result, nil
}

// SyncConnector reconciles one connector's devices. Returns the number of
// devices processed.
func (s *Service) SyncConnector(ctx context.Context, conn *connector.Connector) (int, error) {
	switch conn.Category {
	case connector.CategoryYoLink:
		return s.syncYoLink(ctx, conn)
	case connector.CategoryPiko:
		return s.syncPiko(ctx, conn)
	case connector.CategoryGenea:
		return s.syncGenea(ctx, conn)
	default:
		return 0, fmt.Errorf("unknown connector category %q", conn.Category)
	}
}

// TestConnector verifies a connector's credentials with a cheap vendor
// call, without persisting anything.
func (s *Service) TestConnector(ctx context.Context, conn *connector.Connector) error {
	switch conn.Category {
	case connector.CategoryYoLink:
		if s.yolinkFactory == nil {
			return fmt.Errorf("yolink client factory not configured")
		}
		if _, err := s.yolinkFactory(conn).GetDeviceList(ctx); err != nil {
			return fmt.Errorf("yolink connectivity test: %w", err)
		}
	case connector.CategoryPiko:
		if s.pikoFactory == nil {
			return fmt.Errorf("piko client factory not configured")
		}
		if _, err := s.pikoFactory(conn).ListServers(ctx); err != nil {
			return fmt.Errorf("piko connectivity test: %w", err)
		}
	case connector.CategoryGenea:
		if s.geneaFactory == nil {
			return fmt.Errorf("genea client factory not configured")
		}
		if _, err := s.geneaFactory(conn).ListDoors(ctx); err != nil {
			return fmt.Errorf("genea connectivity test: %w", err)
		}
	default:
		return fmt.Errorf("unknown connector category %q", conn.Category)
	}
	return nil
}

// bestShotFunc returns the URL of a video frame captured at the given
// instant. Camera upserts carry one so state-change events link to
// footage; everything else passes nil.
type bestShotFunc func(at time.Time) string

// upsertAndRecord stores one device and emits a DEVICE_STATE event when
// the observed canonical status differs from the stored one.
//
// The incoming device's Status may be empty (state unknown or unmapped);
// the repository preserves the previous stored status in that case and no
// event is emitted.
func (s *Service) upsertAndRecord(ctx context.Context, conn *connector.Connector, incoming *device.Device, bestShot bestShotFunc) error {
	var previous device.DisplayState
	existing, err := s.devices.GetByExternalID(ctx, conn.ID, incoming.DeviceID)
	if err == nil {
		previous = existing.Status
		incoming.ID = existing.ID
		incoming.AreaID = existing.AreaID
	}

	if err := s.devices.Upsert(ctx, incoming); err != nil {
		return fmt.Errorf("upserting device %s: %w", incoming.DeviceID, err)
	}

	if incoming.Status == "" || incoming.Status == previous {
		return nil
	}

	e := &event.Event{
		OrganizationID:    conn.OrganizationID,
		ConnectorID:       conn.ID,
		ConnectorCategory: string(conn.Category),
		DeviceID:          incoming.DeviceID,
		DeviceName:        incoming.Name,
		Category:          event.CategoryDeviceState,
		Type:              StateChangeType(incoming.Type, incoming.Status),
		DisplayState:      incoming.Status,
		Alarm:             IsAlarmState(incoming.Type, incoming.Status),
		Timestamp:         time.Now().UTC(),
	}
	if bestShot != nil {
		url := bestShot(e.Timestamp)
		e.BestShotURL = &url
	}
	if err := s.events.Insert(ctx, e); err != nil {
		return fmt.Errorf("recording state change event: %w", err)
	}

	s.notify(ctx, e)
	return nil
}

func (s *Service) notify(ctx context.Context, e *event.Event) {
	for _, sink := range s.sinks {
		sink.EventIngested(ctx, e)
	}
}

// StateChangeType derives the event type string from a device type and
// its new state, e.g. "door_sensor.open" or "door.locked".
func StateChangeType(t device.Type, state device.DisplayState) string {
	return fmt.Sprintf("%s.%s", t, normaliseStateToken(state))
}

// normaliseStateToken lowers a display state for use in event type strings.
func normaliseStateToken(state device.DisplayState) string {
	switch state {
	case device.DisplayStateMotion:
		return "motion"
	case device.DisplayStateIdle:
		return "idle"
	default:
		b := []byte(string(state))
		for i := range b {
			if b[i] >= 'A' && b[i] <= 'Z' {
				b[i] += 'a' - 'A'
			}
		}
		return string(b)
	}
}

// IsAlarmState marks states that should surface on alarm-only views.
func IsAlarmState(t device.Type, state device.DisplayState) bool {
	switch state {
	case device.DisplayStateLeak, device.DisplayStateMotion:
		return true
	case device.DisplayStateOpen:
		return t == device.TypeDoorSensor
	case device.DisplayStateOffline:
		return true
	default:
		return false
	}
}
