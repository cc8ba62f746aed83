package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fusionbridge/fusion-bridge-core/internal/device"
)

// handleListDevices returns the caller's devices, with optional query
// filters.
//
// Query parameters:
//   - connectorId: filter by connector
//   - connectorCategory: filter by vendor (yolink, piko, genea)
//   - areaId: filter by area
//   - type: filter by standardised device type
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := device.ListFilter{
		OrganizationID:    callerOrgID(r),
		ConnectorID:       q.Get("connectorId"),
		ConnectorCategory: q.Get("connectorCategory"),
		AreaID:            q.Get("areaId"),
		Type:              device.Type(q.Get("type")),
	}

	devices, err := s.devices.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("device listing failed", "error", err)
		respondInternalError(w, "failed to list devices")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// devicesActionRequest is the request body for POST /api/devices.
type devicesActionRequest struct {
	Action string `json:"action"`
}

// handleDevicesAction dispatches on the action field. The only action is
// "sync": a full sweep of the caller's connectors. Per-connector
// failures ride alongside success:true so a partially healthy sweep
// still reports what it processed.
func (s *Server) handleDevicesAction(w http.ResponseWriter, r *http.Request) {
	var req devicesActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if req.Action != "sync" {
		respondBadRequest(w, "unknown action: "+req.Action)
		return
	}
	if s.syncService == nil {
		respondInternalError(w, "sync service unavailable")
		return
	}

	result, err := s.syncService.SyncOrganization(r.Context(), callerOrgID(r))
	if err != nil {
		s.logger.Error("device sync failed", "error", err)
		respondInternalError(w, "sync failed")
		return
	}

	respondSyncResult(w, map[string]any{"processed": result.Processed}, result.Failures)
}

// handleGetDevice returns a single device by internal ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.resolveDevice(r.Context(), id, callerOrgID(r))
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			respondNotFound(w, "device not found")
			return
		}
		s.logger.Error("device lookup failed", "device_id", id, "error", err)
		respondInternalError(w, "failed to load device")
		return
	}

	respond(w, http.StatusOK, d)
}

// handleListDeviceCameras returns the cameras associated with a device.
func (s *Server) handleListDeviceCameras(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.resolveDevice(r.Context(), id, callerOrgID(r))
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			respondNotFound(w, "device not found")
			return
		}
		s.logger.Error("device lookup failed", "device_id", id, "error", err)
		respondInternalError(w, "failed to load device")
		return
	}

	cameras, err := s.devices.ListAssociatedCameras(r.Context(), d.ID)
	if err != nil {
		s.logger.Error("camera association listing failed", "device_id", d.ID, "error", err)
		respondInternalError(w, "failed to list associated cameras")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"cameras": cameras,
		"count":   len(cameras),
	})
}

// handleAssociateCamera links a device to a camera. The camera must be a
// camera-type device in the caller's organisation; duplicate links are
// accepted silently.
func (s *Server) handleAssociateCamera(w http.ResponseWriter, r *http.Request) {
	d, camera, ok := s.resolveAssociationPair(w, r)
	if !ok {
		return
	}

	if err := s.devices.AssociateCamera(r.Context(), d.ID, camera.ID); err != nil {
		s.logger.Error("camera association failed",
			"device_id", d.ID, "camera_id", camera.ID, "error", err)
		respondInternalError(w, "failed to associate camera")
		return
	}

	respond(w, http.StatusCreated, map[string]any{
		"deviceId":       d.ID,
		"cameraDeviceId": camera.ID,
	})
}

// handleDissociateCamera removes the link between a device and a camera.
func (s *Server) handleDissociateCamera(w http.ResponseWriter, r *http.Request) {
	d, camera, ok := s.resolveAssociationPair(w, r)
	if !ok {
		return
	}

	if err := s.devices.DissociateCamera(r.Context(), d.ID, camera.ID); err != nil {
		s.logger.Error("camera dissociation failed",
			"device_id", d.ID, "camera_id", camera.ID, "error", err)
		respondInternalError(w, "failed to dissociate camera")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"deviceId":       d.ID,
		"cameraDeviceId": camera.ID,
	})
}

// resolveAssociationPair loads the device and camera named in the route,
// both scoped to the caller's organisation, and writes the error response
// itself when either side does not hold up.
func (s *Server) resolveAssociationPair(w http.ResponseWriter, r *http.Request) (*device.Device, *device.Device, bool) {
	orgID := callerOrgID(r)

	d, err := s.resolveDevice(r.Context(), chi.URLParam(r, "id"), orgID)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			respondNotFound(w, "device not found")
			return nil, nil, false
		}
		s.logger.Error("device lookup failed", "error", err)
		respondInternalError(w, "failed to load device")
		return nil, nil, false
	}

	camera, err := s.resolveDevice(r.Context(), chi.URLParam(r, "cameraId"), orgID)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			respondNotFound(w, "camera not found")
			return nil, nil, false
		}
		s.logger.Error("camera lookup failed", "error", err)
		respondInternalError(w, "failed to load camera")
		return nil, nil, false
	}
	if camera.Type != device.TypeCamera {
		respondValidationError(w, "target device is not a camera")
		return nil, nil, false
	}

	return d, camera, true
}
