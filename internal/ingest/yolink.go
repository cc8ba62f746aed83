// Package ingest consumes push events from vendor clouds and folds them
// into the device and event stores. YoLink is the only push source:
// its cloud publishes device reports over MQTT, so state changes land
// within seconds instead of waiting for the next sync sweep.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/fusionbridge/fusion-bridge-core/internal/connector"
	"github.com/fusionbridge/fusion-bridge-core/internal/device"
	"github.com/fusionbridge/fusion-bridge-core/internal/event"
	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/mqtt"
	"github.com/fusionbridge/fusion-bridge-core/internal/sync"
)

// Logger defines the logging interface used by the ingestor.
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

// Broker is the subset of the MQTT client the ingestor uses.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// HomeResolver resolves a YoLink account's home identifier, which keys
// the account's MQTT topic tree.
type HomeResolver interface {
	GetHomeID(ctx context.Context) (string, error)
}

// HomeResolverFactory builds a YoLink client from a connector's
// credentials.
type HomeResolverFactory func(conn *connector.Connector) HomeResolver

// reportQoS is the QoS level for YoLink report subscriptions. YoLink's
// broker delivers reports at QoS 0.
const reportQoS = 0

// YoLinkIngestor subscribes to yl-home/{homeID}/+/report for every
// YoLink connector with events enabled and folds incoming reports into
// device status and the event log.
//
// Subscriptions follow the per-connector eventsEnabled flag: Refresh
// reconciles against the connector registry, and Enable/Disable flip a
// single connector without a full reconcile.
type YoLinkIngestor struct {
	broker     Broker
	connectors *connector.Registry
	devices    device.Repository
	events     event.Repository
	factory    HomeResolverFactory
	logger     Logger

	mu    gosync.Mutex
	subs  map[string]string // connector ID -> subscribed topic
	homes map[string]string // home ID -> connector ID

	sinkMu gosync.RWMutex
	sinks  []sync.EventSink
}

// NewYoLinkIngestor creates an ingestor. Call Refresh (or Start) to
// establish subscriptions.
func NewYoLinkIngestor(broker Broker, connectors *connector.Registry, devices device.Repository, events event.Repository, factory HomeResolverFactory, logger Logger) *YoLinkIngestor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &YoLinkIngestor{
		broker:     broker,
		connectors: connectors,
		devices:    devices,
		events:     events,
		factory:    factory,
		logger:     logger,
		subs:       make(map[string]string),
		homes:      make(map[string]string),
	}
}

// AddSink registers a sink notified for every ingested event.
func (y *YoLinkIngestor) AddSink(sink sync.EventSink) {
	y.sinkMu.Lock()
	y.sinks = append(y.sinks, sink)
	y.sinkMu.Unlock()
}

// Start establishes subscriptions for all eligible connectors.
func (y *YoLinkIngestor) Start(ctx context.Context) error {
	return y.Refresh(ctx)
}

// Refresh reconciles subscriptions against the connector registry:
// subscribes connectors that gained eventsEnabled, unsubscribes those
// that lost it or were deleted. Individual failures are logged and do
// not abort the reconcile.
func (y *YoLinkIngestor) Refresh(ctx context.Context) error {
	connectors, err := y.connectors.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("listing connectors: %w", err)
	}

	eligible := make(map[string]*connector.Connector)
	for i := range connectors {
		c := &connectors[i]
		if c.Category == connector.CategoryYoLink && c.EventsEnabled {
			eligible[c.ID] = c
		}
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	for id := range y.subs {
		if _, ok := eligible[id]; !ok {
			y.unsubscribeLocked(id)
		}
	}

	for id, c := range eligible {
		if _, ok := y.subs[id]; ok {
			continue
		}
		if err := y.subscribeLocked(ctx, c); err != nil {
			y.logger.Warn("yolink event subscription failed",
				"connector_id", id,
				"connector_name", c.Name,
				"error", err,
			)
		}
	}

	return nil
}

// Enable subscribes one connector's report topic. Used by the event
// toggle endpoint after the eventsEnabled flag is persisted.
func (y *YoLinkIngestor) Enable(ctx context.Context, connectorID string) error {
	c, err := y.connectors.Get(ctx, connectorID)
	if err != nil {
		return fmt.Errorf("resolving connector: %w", err)
	}
	if c.Category != connector.CategoryYoLink {
		return nil
	}

	y.mu.Lock()
	defer y.mu.Unlock()
	if _, ok := y.subs[connectorID]; ok {
		return nil
	}
	return y.subscribeLocked(ctx, c)
}

// Disable drops one connector's report subscription.
func (y *YoLinkIngestor) Disable(connectorID string) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.unsubscribeLocked(connectorID)
}

// Subscribed reports whether a connector currently has an active report
// subscription.
func (y *YoLinkIngestor) Subscribed(connectorID string) bool {
	y.mu.Lock()
	defer y.mu.Unlock()
	_, ok := y.subs[connectorID]
	return ok
}

func (y *YoLinkIngestor) subscribeLocked(ctx context.Context, c *connector.Connector) error {
	homeID, err := y.factory(c).GetHomeID(ctx)
	if err != nil {
		return fmt.Errorf("resolving home ID: %w", err)
	}

	topic := fmt.Sprintf("yl-home/%s/+/report", homeID)
	if err := y.broker.Subscribe(topic, reportQoS, y.handleReport); err != nil {
		return fmt.Errorf("subscribing %s: %w", topic, err)
	}

	y.subs[c.ID] = topic
	y.homes[homeID] = c.ID

	y.logger.Info("yolink event subscription established",
		"connector_id", c.ID,
		"connector_name", c.Name,
		"topic", topic,
	)
	return nil
}

func (y *YoLinkIngestor) unsubscribeLocked(connectorID string) {
	topic, ok := y.subs[connectorID]
	if !ok {
		return
	}
	if err := y.broker.Unsubscribe(topic); err != nil {
		y.logger.Warn("yolink event unsubscribe failed",
			"connector_id", connectorID,
			"topic", topic,
			"error", err,
		)
	}
	delete(y.subs, connectorID)
	for homeID, id := range y.homes {
		if id == connectorID {
			delete(y.homes, homeID)
		}
	}

	y.logger.Info("yolink event subscription removed", "connector_id", connectorID)
}

// yolinkReport is the wire shape of a YoLink MQTT report.
type yolinkReport struct {
	Event    string         `json:"event"`
	Time     int64          `json:"time"`
	MsgID    string         `json:"msgid"`
	DeviceID string         `json:"deviceId"`
	Data     map[string]any `json:"data"`
}

// handleReport processes one report message. Unknown devices and
// unmapped states are logged and skipped; a bad message never takes the
// subscription down.
func (y *YoLinkIngestor) handleReport(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	homeID := topicHomeID(topic)
	if homeID == "" {
		return fmt.Errorf("malformed report topic %q", topic)
	}

	y.mu.Lock()
	connectorID, ok := y.homes[homeID]
	y.mu.Unlock()
	if !ok {
		return fmt.Errorf("report for unknown home %s", homeID)
	}

	var report yolinkReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return fmt.Errorf("decoding report: %w", err)
	}
	if report.DeviceID == "" {
		return fmt.Errorf("report without device ID on %s", topic)
	}

	d, err := y.devices.GetByExternalID(ctx, connectorID, report.DeviceID)
	if err != nil {
		// Device not yet synced; the next sweep will pick it up.
		y.logger.Debug("report for unknown device",
			"connector_id", connectorID,
			"device_id", report.DeviceID,
			"event", report.Event,
		)
		return nil
	}

	raw := reportRawState(report.Data)
	if raw.State == "" && raw.Online == nil {
		return nil
	}

	mapped, ok := device.MapRawToDisplayState(d.Type, raw)
	if !ok {
		y.logger.Warn("unmapped device state in report",
			"device_id", report.DeviceID,
			"device_type", d.Type,
			"raw_state", raw.State,
		)
		return nil
	}

	if mapped == d.Status {
		return nil
	}

	if err := y.devices.UpdateStatus(ctx, d.ID, mapped); err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}

	conn, err := y.connectors.Get(ctx, connectorID)
	if err != nil {
		return fmt.Errorf("resolving connector: %w", err)
	}

	e := &event.Event{
		OrganizationID:    conn.OrganizationID,
		ConnectorID:       connectorID,
		ConnectorCategory: string(conn.Category),
		DeviceID:          d.DeviceID,
		DeviceName:        d.Name,
		Category:          event.CategoryDeviceState,
		Type:              sync.StateChangeType(d.Type, mapped),
		DisplayState:      mapped,
		Alarm:             sync.IsAlarmState(d.Type, mapped),
		Payload:           report.Data,
		Timestamp:         reportTimestamp(report.Time),
	}
	if err := y.events.Insert(ctx, e); err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	y.sinkMu.RLock()
	sinks := y.sinks
	y.sinkMu.RUnlock()
	for _, sink := range sinks {
		sink.EventIngested(ctx, e)
	}

	return nil
}

// topicHomeID extracts the home ID from yl-home/{homeID}/{deviceID}/report.
func topicHomeID(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 || parts[0] != "yl-home" {
		return ""
	}
	return parts[1]
}

// reportRawState pulls the vendor state out of a report's data block.
func reportRawState(data map[string]any) device.RawState {
	var raw device.RawState
	if s, ok := data["state"].(string); ok {
		raw.State = s
	}
	if online, ok := data["online"].(bool); ok {
		raw.Online = &online
	}
	return raw
}

// reportTimestamp converts YoLink's millisecond epoch to time.Time,
// falling back to now for reports without one.
func reportTimestamp(ms int64) time.Time {
	if ms <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}
