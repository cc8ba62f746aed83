package device

import (
	"context"
	"fmt"
	"time"
)

// CameraAssociation links a sensor or door device to a camera that covers
// it. Automations use associations to resolve which camera receives a
// bookmark when a non-camera device raises an event.
type CameraAssociation struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"deviceId"`
	CameraDeviceID string    `json:"cameraDeviceId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AssociationRepository defines camera association persistence. Satisfied
// by SQLiteRepository; mocked in automation engine tests.
type AssociationRepository interface {
	AssociateCamera(ctx context.Context, deviceID, cameraDeviceID string) error
	DissociateCamera(ctx context.Context, deviceID, cameraDeviceID string) error
	ListAssociatedCameras(ctx context.Context, deviceID string) ([]Device, error)
}

// AssociateCamera links a device to a camera. Duplicate associations are
// ignored.
func (r *SQLiteRepository) AssociateCamera(ctx context.Context, deviceID, cameraDeviceID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO camera_associations (id, device_id, camera_device_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (device_id, camera_device_id) DO NOTHING`,
		GenerateID(),
		deviceID,
		cameraDeviceID,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting camera association: %w", err)
	}
	return nil
}

// DissociateCamera removes the link between a device and a camera.
func (r *SQLiteRepository) DissociateCamera(ctx context.Context, deviceID, cameraDeviceID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM camera_associations WHERE device_id = ? AND camera_device_id = ?`,
		deviceID, cameraDeviceID,
	)
	if err != nil {
		return fmt.Errorf("deleting camera association: %w", err)
	}
	return nil
}

// ListAssociatedCameras returns the cameras linked to a device.
func (r *SQLiteRepository) ListAssociatedCameras(ctx context.Context, deviceID string) ([]Device, error) {
	query := `SELECT ` + deviceColumns + `
		FROM devices d
		JOIN camera_associations ca ON ca.camera_device_id = d.id
		WHERE ca.device_id = ?
		ORDER BY d.name`
	return r.queryDevices(ctx, query, deviceID)
}
