package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fusionbridge/fusion-bridge-core/internal/location"
)

// locationRequest is the request body for location create/update.
type locationRequest struct {
	Name    string  `json:"name"`
	Address *string `json:"address"`
}

// areaRequest is the request body for area create/update.
type areaRequest struct {
	LocationID string `json:"locationId"`
	Name       string `json:"name"`
}

// handleListLocations returns the caller's locations.
func (s *Server) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := s.locations.ListLocations(r.Context(), callerOrgID(r))
	if err != nil {
		s.logger.Error("location listing failed", "error", err)
		respondInternalError(w, "failed to list locations")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"locations": locations,
		"count":     len(locations),
	})
}

// handleCreateLocation creates a location, geocoding its address when
// one is supplied.
func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondValidationError(w, "name is required")
		return
	}

	l := &location.Location{
		ID:             location.GenerateID(),
		OrganizationID: callerOrgID(r),
		Name:           req.Name,
		Address:        req.Address,
	}
	s.geocodeLocation(r, l)

	if err := s.locations.CreateLocation(r.Context(), l); err != nil {
		s.logger.Error("location creation failed", "error", err)
		respondInternalError(w, "failed to create location")
		return
	}
	respond(w, http.StatusCreated, l)
}

// handleGetLocation returns a single location.
func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	l, ok := s.loadLocation(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, l)
}

// handleUpdateLocation updates a location's name and address. A
// changed address is re-geocoded; clearing it clears the coordinates.
func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	l, ok := s.loadLocation(w, r)
	if !ok {
		return
	}

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondValidationError(w, "name is required")
		return
	}

	addressChanged := !equalAddress(l.Address, req.Address)
	l.Name = req.Name
	l.Address = req.Address
	if addressChanged {
		l.Latitude = nil
		l.Longitude = nil
		s.geocodeLocation(r, l)
	}

	if err := s.locations.UpdateLocation(r.Context(), l); err != nil {
		s.logger.Error("location update failed", "location_id", l.ID, "error", err)
		respondInternalError(w, "failed to update location")
		return
	}
	respond(w, http.StatusOK, l)
}

// handleDeleteLocation removes a location.
func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	l, ok := s.loadLocation(w, r)
	if !ok {
		return
	}

	if err := s.locations.DeleteLocation(r.Context(), l.ID); err != nil {
		s.logger.Error("location deletion failed", "location_id", l.ID, "error", err)
		respondInternalError(w, "failed to delete location")
		return
	}
	respond(w, http.StatusOK, map[string]any{"deleted": l.ID})
}

// handleListAreas returns areas for the caller, optionally filtered to
// one location via the locationId query parameter.
func (s *Server) handleListAreas(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("locationId")

	areas, err := s.locations.ListAreas(r.Context(), callerOrgID(r), locationID)
	if err != nil {
		s.logger.Error("area listing failed", "error", err)
		respondInternalError(w, "failed to list areas")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"areas": areas,
		"count": len(areas),
	})
}

// handleCreateArea creates an area within one of the caller's
// locations.
func (s *Server) handleCreateArea(w http.ResponseWriter, r *http.Request) {
	var req areaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondValidationError(w, "name is required")
		return
	}
	if req.LocationID == "" {
		respondValidationError(w, "locationId is required")
		return
	}

	parent, err := s.locations.GetLocation(r.Context(), req.LocationID)
	if err != nil || parent.OrganizationID != callerOrgID(r) {
		respondValidationError(w, "locationId does not reference a known location")
		return
	}

	a := &location.Area{
		ID:             location.GenerateID(),
		OrganizationID: callerOrgID(r),
		LocationID:     parent.ID,
		Name:           req.Name,
	}

	if err := s.locations.CreateArea(r.Context(), a); err != nil {
		s.logger.Error("area creation failed", "error", err)
		respondInternalError(w, "failed to create area")
		return
	}
	respond(w, http.StatusCreated, a)
}

// handleUpdateArea renames an area.
func (s *Server) handleUpdateArea(w http.ResponseWriter, r *http.Request) {
	a, ok := s.loadArea(w, r)
	if !ok {
		return
	}

	var req areaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondValidationError(w, "name is required")
		return
	}

	a.Name = req.Name
	if err := s.locations.UpdateArea(r.Context(), a); err != nil {
		s.logger.Error("area update failed", "area_id", a.ID, "error", err)
		respondInternalError(w, "failed to update area")
		return
	}
	respond(w, http.StatusOK, a)
}

// handleDeleteArea removes an area. Devices assigned to it fall back
// to unassigned.
func (s *Server) handleDeleteArea(w http.ResponseWriter, r *http.Request) {
	a, ok := s.loadArea(w, r)
	if !ok {
		return
	}

	if err := s.locations.DeleteArea(r.Context(), a.ID); err != nil {
		s.logger.Error("area deletion failed", "area_id", a.ID, "error", err)
		respondInternalError(w, "failed to delete area")
		return
	}
	respond(w, http.StatusOK, map[string]any{"deleted": a.ID})
}

// geocodeLocation fills in coordinates for a location's address.
// Geocoding failures are logged and the location saved without
// coordinates.
func (s *Server) geocodeLocation(r *http.Request, l *location.Location) {
	if s.geocoder == nil || l.Address == nil || strings.TrimSpace(*l.Address) == "" {
		return
	}

	lat, lon, err := s.geocoder.Geocode(r.Context(), *l.Address)
	if err != nil {
		s.logger.Warn("geocoding failed", "address", *l.Address, "error", err)
		return
	}
	l.Latitude = &lat
	l.Longitude = &lon
}

func equalAddress(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// loadLocation resolves the {id} URL parameter to a location in the
// caller's organisation.
func (s *Server) loadLocation(w http.ResponseWriter, r *http.Request) (*location.Location, bool) {
	id := chi.URLParam(r, "id")

	l, err := s.locations.GetLocation(r.Context(), id)
	if err != nil {
		if errors.Is(err, location.ErrNotFound) {
			respondNotFound(w, "location not found")
			return nil, false
		}
		s.logger.Error("location lookup failed", "location_id", id, "error", err)
		respondInternalError(w, "failed to load location")
		return nil, false
	}

	if l.OrganizationID != callerOrgID(r) {
		respondNotFound(w, "location not found")
		return nil, false
	}
	return l, true
}

// loadArea resolves the {id} URL parameter to an area in the caller's
// organisation.
func (s *Server) loadArea(w http.ResponseWriter, r *http.Request) (*location.Area, bool) {
	id := chi.URLParam(r, "id")

	a, err := s.locations.GetArea(r.Context(), id)
	if err != nil {
		if errors.Is(err, location.ErrNotFound) {
			respondNotFound(w, "area not found")
			return nil, false
		}
		s.logger.Error("area lookup failed", "area_id", id, "error", err)
		respondInternalError(w, "failed to load area")
		return nil, false
	}

	if a.OrganizationID != callerOrgID(r) {
		respondNotFound(w, "area not found")
		return nil, false
	}
	return a, true
}
