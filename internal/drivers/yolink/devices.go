package yolink

import (
	"context"
	"encoding/json"
	"fmt"
)

// DeviceInfo is one entry from Home.getDeviceList.
type DeviceInfo struct {
	DeviceID  string `json:"deviceId"`
	DeviceUID string `json:"deviceUDID"`
	Name      string `json:"name"`
	Token     string `json:"token"`
	Type      string `json:"type"`
	ModelName string `json:"modelName"`
}

// DeviceState is the normalised result of a {Type}.getState call.
type DeviceState struct {
	// State is the vendor's raw state string ("open", "alert", ...).
	State string

	// Online is the reported connectivity flag when present.
	Online *bool

	// Battery is the battery level (0-4) when reported.
	Battery *int

	// Raw is the full state payload as returned by the API.
	Raw map[string]any
}

// GetHomeID returns the YoLink home identifier for the account. The MQTT
// report topic is derived from it (yl-home/{homeID}/+/report).
func (c *Client) GetHomeID(ctx context.Context) (string, error) {
	data, err := c.call(ctx, map[string]any{"method": "Home.getGeneralInfo"})
	if err != nil {
		return "", err
	}

	id, ok := data["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("yolink: home info missing id")
	}
	return id, nil
}

// GetDeviceList returns all devices registered to the account's home.
func (c *Client) GetDeviceList(ctx context.Context) ([]DeviceInfo, error) {
	data, err := c.call(ctx, map[string]any{"method": "Home.getDeviceList"})
	if err != nil {
		return nil, err
	}

	rawDevices, ok := data["devices"]
	if !ok {
		return nil, fmt.Errorf("yolink: device list missing devices field")
	}

	// Round-trip through JSON to decode the loosely typed RPC payload
	// into the typed struct.
	encoded, err := json.Marshal(rawDevices)
	if err != nil {
		return nil, fmt.Errorf("yolink: encoding device list: %w", err)
	}

	var devices []DeviceInfo
	if err := json.Unmarshal(encoded, &devices); err != nil {
		return nil, fmt.Errorf("yolink: decoding device list: %w", err)
	}
	return devices, nil
}

// GetDeviceState fetches the live state of one device. The RPC method is
// derived from the device's vendor type (DoorSensor.getState and so on).
func (c *Client) GetDeviceState(ctx context.Context, d DeviceInfo) (*DeviceState, error) {
	data, err := c.call(ctx, map[string]any{
		"method":       d.Type + ".getState",
		"targetDevice": d.DeviceID,
		"token":        d.Token,
	})
	if err != nil {
		return nil, err
	}

	state := &DeviceState{Raw: data}

	if online, ok := data["online"].(bool); ok {
		state.Online = &online
	}

	// Most sensor types nest the state under data.state; the state
	// itself is either a plain string or an object with a "state" key.
	switch s := data["state"].(type) {
	case string:
		state.State = s
	case map[string]any:
		if inner, ok := s["state"].(string); ok {
			state.State = inner
		}
		if battery, ok := s["battery"].(float64); ok {
			b := int(battery)
			state.Battery = &b
		}
	}

	return state, nil
}
