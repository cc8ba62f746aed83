// Package event provides the append-only event store for Fusion Bridge
// Core.
//
// Events arrive from vendor push channels (YoLink MQTT reports), pull
// sync passes and automation createEvent actions. They are never updated
// or deleted once written; the listing API pages through them newest
// first.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/fusionbridge/fusion-bridge-core/internal/device"
)

// Category classifies an event's broad purpose.
type Category string

const (
	CategoryDeviceState Category = "DEVICE_STATE"
	CategorySecurity    Category = "SECURITY"
	CategoryAnalytics   Category = "ANALYTICS"
	CategoryDiagnostics Category = "DIAGNOSTICS"
)

// AllCategories returns all valid event categories.
func AllCategories() []Category {
	return []Category{CategoryDeviceState, CategorySecurity, CategoryAnalytics, CategoryDiagnostics}
}

// IsValid reports whether the category is a known value.
func (c Category) IsValid() bool {
	switch c {
	case CategoryDeviceState, CategorySecurity, CategoryAnalytics, CategoryDiagnostics:
		return true
	}
	return false
}

// Event is one record in the append-only event stream.
type Event struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	ConnectorID    string `json:"connectorId"`

	// ConnectorCategory is denormalised onto the event so listing
	// filters don't join through connectors for every page.
	ConnectorCategory string `json:"connectorCategory"`

	// DeviceID is the vendor's identifier for the originating device.
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`

	Category Category `json:"category"`
	Type     string   `json:"type"`
	Subtype  string   `json:"subtype,omitempty"`

	// DisplayState is the device's canonical state at the time of the
	// event, when the event carried one.
	DisplayState device.DisplayState `json:"displayState,omitempty"`

	// Alarm marks events that should surface on alarm-only views.
	Alarm bool `json:"alarm"`

	// BestShotURL links to a camera frame captured for the event.
	BestShotURL *string `json:"bestShotUrl,omitempty"`

	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	CreatedAt time.Time      `json:"createdAt"`
}

// GenerateID creates a new UUID for an event.
func GenerateID() string {
	return uuid.New().String()
}
