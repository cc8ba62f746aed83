package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/fusionbridge/fusion-bridge-core/internal/connector"
	"github.com/fusionbridge/fusion-bridge-core/internal/device"
	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/yolink"
)

// YoLinkAPI is the subset of the YoLink driver the sync service uses.
type YoLinkAPI interface {
	GetDeviceList(ctx context.Context) ([]yolink.DeviceInfo, error)
	GetDeviceState(ctx context.Context, d yolink.DeviceInfo) (*yolink.DeviceState, error)
}

// YoLinkFactory builds a YoLink client from a connector's credentials.
type YoLinkFactory func(conn *connector.Connector) YoLinkAPI

// NewYoLinkFactory returns the production factory using the real driver.
func NewYoLinkFactory(baseURL string, timeout time.Duration) YoLinkFactory {
	return func(conn *connector.Connector) YoLinkAPI {
		return yolink.NewClient(baseURL, conn.ConfigString("uaid"), conn.ConfigString("secretKey"), timeout)
	}
}

// yolinkTypeMap translates YoLink's vendor device types into standardised
// types. Unknown vendor types fall back to hub.
var yolinkTypeMap = map[string]device.Type{
	"DoorSensor":   device.TypeDoorSensor,
	"MotionSensor": device.TypeMotionSensor,
	"LeakSensor":   device.TypeLeakSensor,
	"Switch":       device.TypeSwitch,
	"Outlet":       device.TypeOutlet,
	"Hub":          device.TypeHub,
	"SpeakerHub":   device.TypeHub,
}

// syncYoLink reconciles a YoLink connector's devices.
//
// The device list gives metadata only; a second per-device getState call
// determines the canonical status. A state-fetch failure is non-fatal:
// the device metadata is still upserted with its status left unchanged.
func (s *Service) syncYoLink(ctx context.Context, conn *connector.Connector) (int, error) {
	if s.yolinkFactory == nil {
		return 0, fmt.Errorf("yolink client factory not configured")
	}
	client := s.yolinkFactory(conn)

	vendorDevices, err := client.GetDeviceList(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching yolink device list: %w", err)
	}

	keep := make([]string, 0, len(vendorDevices))
	for _, vd := range vendorDevices {
		keep = append(keep, vd.DeviceID)

		deviceType, ok := yolinkTypeMap[vd.Type]
		if !ok {
			s.logger.Warn("unknown yolink device type",
				"connector_id", conn.ID,
				"device_id", vd.DeviceID,
				"vendor_type", vd.Type,
			)
			deviceType = device.TypeHub
		}

		d := &device.Device{
			ConnectorID: conn.ID,
			DeviceID:    vd.DeviceID,
			Name:        vd.Name,
			Type:        deviceType,
			Subtype:     vd.Type,
		}
		if vd.ModelName != "" {
			model := vd.ModelName
			d.Model = &model
		}

		state, stateErr := client.GetDeviceState(ctx, vd)
		if stateErr != nil {
			s.logger.Warn("yolink state fetch failed, keeping previous status",
				"connector_id", conn.ID,
				"device_id", vd.DeviceID,
				"error", stateErr,
			)
		} else {
			d.Raw = state.Raw

			display, mapped := device.MapRawToDisplayState(deviceType, device.RawState{
				State:  state.State,
				Online: state.Online,
			})
			if mapped {
				d.Status = display
			} else if state.State != "" {
				s.logger.Warn("unmapped yolink raw state",
					"connector_id", conn.ID,
					"device_id", vd.DeviceID,
					"raw_state", state.State,
				)
			}
		}

		if err := s.upsertAndRecord(ctx, conn, d, nil); err != nil {
			return 0, err
		}
	}

	removed, err := s.devices.DeleteStale(ctx, conn.ID, keep)
	if err != nil {
		return 0, fmt.Errorf("removing stale yolink devices: %w", err)
	}
	if removed > 0 {
		s.logger.Info("removed stale yolink devices", "connector_id", conn.ID, "count", removed)
	}

	return len(vendorDevices), nil
}
