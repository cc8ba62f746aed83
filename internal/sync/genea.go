package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/fusionbridge/fusion-bridge-core/internal/connector"
	"github.com/fusionbridge/fusion-bridge-core/internal/device"
	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/genea"
)

// GeneaAPI is the subset of the Genea driver the sync service uses.
type GeneaAPI interface {
	ListDoors(ctx context.Context) ([]genea.Door, error)
}

// GeneaFactory builds a Genea client from a connector's credentials.
type GeneaFactory func(conn *connector.Connector) GeneaAPI

// NewGeneaFactory returns the production factory using the real driver.
func NewGeneaFactory(baseURL string, timeout time.Duration) GeneaFactory {
	return func(conn *connector.Connector) GeneaAPI {
		return genea.NewClient(baseURL, conn.ConfigString("apiKey"), conn.ConfigString("locationUuid"), timeout)
	}
}

// syncGenea reconciles a Genea connector's doors. Door lock and online
// flags map directly onto Locked/Unlocked/Offline.
func (s *Service) syncGenea(ctx context.Context, conn *connector.Connector) (int, error) {
	if s.geneaFactory == nil {
		return 0, fmt.Errorf("genea client factory not configured")
	}
	client := s.geneaFactory(conn)

	doors, err := client.ListDoors(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching genea doors: %w", err)
	}

	keep := make([]string, 0, len(doors))
	for _, door := range doors {
		keep = append(keep, door.UUID)

		d := &device.Device{
			ConnectorID: conn.ID,
			DeviceID:    door.UUID,
			Name:        door.Name,
			Type:        device.TypeDoor,
		}
		if door.Model != "" {
			model := door.Model
			d.Model = &model
		}

		display, mapped := device.MapRawToDisplayState(device.TypeDoor, device.RawState{State: door.RawState()})
		if mapped {
			d.Status = display
		} else {
			s.logger.Warn("unmapped genea door state",
				"connector_id", conn.ID,
				"device_id", door.UUID,
				"raw_state", door.RawState(),
			)
		}

		if err := s.upsertAndRecord(ctx, conn, d, nil); err != nil {
			return 0, err
		}
	}

	removed, err := s.devices.DeleteStale(ctx, conn.ID, keep)
	if err != nil {
		return 0, fmt.Errorf("removing stale genea doors: %w", err)
	}
	if removed > 0 {
		s.logger.Info("removed stale genea doors", "connector_id", conn.ID, "count", removed)
	}

	return len(doors), nil
}
