package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/fusionbridge/fusion-bridge-core/internal/connector"
	"github.com/fusionbridge/fusion-bridge-core/internal/device"
	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/piko"
)

// PikoAPI is the subset of the Piko driver the sync service uses.
type PikoAPI interface {
	ListServers(ctx context.Context) ([]piko.Server, error)
	ListCameras(ctx context.Context) ([]piko.Camera, error)
	BestShotURL(cameraID string, at time.Time) string
}

// PikoFactory builds a Piko client from a connector's credentials.
type PikoFactory func(conn *connector.Connector) PikoAPI

// NewPikoFactory returns the production factory using the real driver.
func NewPikoFactory(baseURL string, timeout time.Duration) PikoFactory {
	return func(conn *connector.Connector) PikoAPI {
		return piko.NewClient(
			baseURL,
			conn.ConfigString("systemId"),
			conn.ConfigString("username"),
			conn.ConfigString("password"),
			timeout,
		)
	}
}

// syncPiko reconciles a Piko connector's servers and cameras.
//
// Servers sync first so every camera's ServerID resolves against a
// current server inventory. Both are stored as devices; the server
// inventory is additionally tracked in piko_servers for name lookups.
func (s *Service) syncPiko(ctx context.Context, conn *connector.Connector) (int, error) {
	if s.pikoFactory == nil {
		return 0, fmt.Errorf("piko client factory not configured")
	}
	client := s.pikoFactory(conn)

	servers, err := client.ListServers(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching piko servers: %w", err)
	}

	keep := make([]string, 0, len(servers))
	for _, srv := range servers {
		keep = append(keep, srv.ID)

		if err := s.pikoServers.upsert(ctx, conn.ID, srv); err != nil {
			return 0, err
		}

		d := &device.Device{
			ConnectorID: conn.ID,
			DeviceID:    srv.ID,
			Name:        srv.Name,
			Type:        device.TypeServer,
		}
		s.applyConnectivityState(conn, d, srv.Status)

		if err := s.upsertAndRecord(ctx, conn, d, nil); err != nil {
			return 0, err
		}
	}

	if err := s.pikoServers.deleteStale(ctx, conn.ID, keep); err != nil {
		return 0, err
	}

	cameras, err := client.ListCameras(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching piko cameras: %w", err)
	}

	for _, cam := range cameras {
		keep = append(keep, cam.ID)

		d := &device.Device{
			ConnectorID: conn.ID,
			DeviceID:    cam.ID,
			Name:        cam.Name,
			Type:        device.TypeCamera,
		}
		if cam.ServerID != "" {
			serverID := cam.ServerID
			d.ServerID = &serverID
		}
		if cam.Model != "" {
			model := cam.Model
			d.Model = &model
		}
		s.applyConnectivityState(conn, d, cam.Status)

		// Camera state changes carry a frame link at the event instant.
		shot := func(at time.Time) string { return client.BestShotURL(cam.ID, at) }

		if err := s.upsertAndRecord(ctx, conn, d, shot); err != nil {
			return 0, err
		}
	}

	removed, err := s.devices.DeleteStale(ctx, conn.ID, keep)
	if err != nil {
		return 0, fmt.Errorf("removing stale piko devices: %w", err)
	}
	if removed > 0 {
		s.logger.Info("removed stale piko devices", "connector_id", conn.ID, "count", removed)
	}

	return len(servers) + len(cameras), nil
}

// applyConnectivityState maps a Piko resource status onto the device, or
// logs a warning when the vendor status is unmapped.
func (s *Service) applyConnectivityState(conn *connector.Connector, d *device.Device, rawStatus string) {
	display, mapped := device.MapRawToDisplayState(d.Type, device.RawState{State: rawStatus})
	if mapped {
		d.Status = display
		return
	}
	if rawStatus != "" {
		s.logger.Warn("unmapped piko status",
			"connector_id", conn.ID,
			"device_id", d.DeviceID,
			"raw_state", rawStatus,
		)
	}
}
