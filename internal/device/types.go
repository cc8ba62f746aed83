// Package device provides device records and the canonical state-mapping
// layer for Fusion Bridge Core.
//
// Devices are discovered through vendor connectors during sync and keyed
// unique on (connector ID, external device ID). Each device carries a
// standardised type and a status drawn from the canonical DisplayState
// set, never a raw vendor string; the translation from vendor vocabulary
// lives in displaystate.go.
package device

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type is a vendor-agnostic device classification.
type Type string

const (
	TypeDoorSensor   Type = "door_sensor"
	TypeMotionSensor Type = "motion_sensor"
	TypeLeakSensor   Type = "leak_sensor"
	TypeSwitch       Type = "switch"
	TypeOutlet       Type = "outlet"
	TypeHub          Type = "hub"
	TypeCamera       Type = "camera"
	TypeServer       Type = "server"
	TypeDoor         Type = "door"
)

// AllTypes returns all valid device types.
func AllTypes() []Type {
	return []Type{
		TypeDoorSensor, TypeMotionSensor, TypeLeakSensor,
		TypeSwitch, TypeOutlet, TypeHub,
		TypeCamera, TypeServer,
		TypeDoor,
	}
}

// Device represents an external device discovered through a connector.
type Device struct {
	ID          string `json:"id"`
	ConnectorID string `json:"connectorId"`

	// DeviceID is the vendor's identifier for the device. Unique per
	// connector, not globally.
	DeviceID string `json:"deviceId"`

	Name    string `json:"name"`
	Type    Type   `json:"type"`
	Subtype string `json:"subtype,omitempty"`

	// Status is the current canonical display state, or empty when the
	// state is unknown (never a raw vendor value).
	Status DisplayState `json:"status"`

	Model *string `json:"model,omitempty"`

	// ServerID links a Piko camera to its media server.
	ServerID *string `json:"serverId,omitempty"`

	// AreaID associates the device with a physical area.
	AreaID *string `json:"areaId,omitempty"`

	// Raw holds the vendor's last reported payload for the device.
	Raw map[string]any `json:"raw,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DeepCopy returns a deep copy of the device.
func (d *Device) DeepCopy() *Device {
	copied := *d

	if d.Model != nil {
		v := *d.Model
		copied.Model = &v
	}
	if d.ServerID != nil {
		v := *d.ServerID
		copied.ServerID = &v
	}
	if d.AreaID != nil {
		v := *d.AreaID
		copied.AreaID = &v
	}

	if d.Raw != nil {
		data, err := json.Marshal(d.Raw)
		if err == nil {
			var raw map[string]any
			if json.Unmarshal(data, &raw) == nil {
				copied.Raw = raw
			}
		}
	}

	return &copied
}

// GenerateID creates a new UUID for a device.
func GenerateID() string {
	return uuid.New().String()
}
