// Package telemetry feeds ingested events into the time-series store.
package telemetry

import (
	"context"
	"time"

	"github.com/fusionbridge/fusion-bridge-core/internal/event"
)

// EventWriter is the subset of the InfluxDB client the sink uses.
type EventWriter interface {
	WriteEventPoint(orgID, connectorCategory, eventCategory, eventType string, timestamp time.Time)
}

// EventSink writes one point per ingested event. Registered alongside
// the automation engine and the WebSocket hub; writes are batched and
// non-blocking so event ingestion never waits on InfluxDB.
type EventSink struct {
	writer EventWriter
}

// NewEventSink creates a telemetry sink around an InfluxDB client.
func NewEventSink(writer EventWriter) *EventSink {
	return &EventSink{writer: writer}
}

// EventIngested records the event on the "events" measurement.
func (s *EventSink) EventIngested(_ context.Context, e *event.Event) {
	s.writer.WriteEventPoint(
		e.OrganizationID,
		e.ConnectorCategory,
		string(e.Category),
		e.Type,
		e.Timestamp,
	)
}
