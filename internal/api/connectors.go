package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fusionbridge/fusion-bridge-core/internal/connector"
)

// connectorRequest is the request body for connector create/update.
type connectorRequest struct {
	Name          string             `json:"name"`
	Category      connector.Category `json:"category"`
	Config        map[string]any     `json:"config"`
	EventsEnabled bool               `json:"eventsEnabled"`
}

// handleListConnectors returns the caller's connectors.
func (s *Server) handleListConnectors(w http.ResponseWriter, r *http.Request) {
	connectors, err := s.connectors.List(r.Context(), callerOrgID(r))
	if err != nil {
		s.logger.Error("connector listing failed", "error", err)
		respondInternalError(w, "failed to list connectors")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"connectors": connectors,
		"count":      len(connectors),
	})
}

// handleCreateConnector creates a connector for the caller's organisation.
func (s *Server) handleCreateConnector(w http.ResponseWriter, r *http.Request) {
	var req connectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}

	c := &connector.Connector{
		OrganizationID: callerOrgID(r),
		Name:           req.Name,
		Category:       req.Category,
		Config:         req.Config,
		EventsEnabled:  req.EventsEnabled,
	}

	if err := connector.ValidateConnector(c); err != nil {
		respondValidationError(w, err.Error())
		return
	}

	if err := s.connectors.Create(r.Context(), c); err != nil {
		if errors.Is(err, connector.ErrExists) {
			respondConflict(w, "connector already exists")
			return
		}
		s.logger.Error("connector creation failed", "error", err)
		respondInternalError(w, "failed to create connector")
		return
	}

	respond(w, http.StatusCreated, c)
}

// handleGetConnector returns a single connector.
func (s *Server) handleGetConnector(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadConnector(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, c)
}

// handleUpdateConnector replaces a connector's mutable fields.
func (s *Server) handleUpdateConnector(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadConnector(w, r)
	if !ok {
		return
	}

	var req connectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}

	c.Name = req.Name
	c.Category = req.Category
	c.Config = req.Config
	c.EventsEnabled = req.EventsEnabled

	if err := connector.ValidateConnector(c); err != nil {
		respondValidationError(w, err.Error())
		return
	}

	if err := s.connectors.Update(r.Context(), c); err != nil {
		s.logger.Error("connector update failed", "connector_id", c.ID, "error", err)
		respondInternalError(w, "failed to update connector")
		return
	}

	respond(w, http.StatusOK, c)
}

// handleDeleteConnector removes a connector; its devices cascade.
func (s *Server) handleDeleteConnector(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadConnector(w, r)
	if !ok {
		return
	}

	if s.toggler != nil {
		s.toggler.Disable(c.ID)
	}

	if err := s.connectors.Delete(r.Context(), c.ID); err != nil {
		s.logger.Error("connector deletion failed", "connector_id", c.ID, "error", err)
		respondInternalError(w, "failed to delete connector")
		return
	}

	respond(w, http.StatusOK, map[string]any{"deleted": c.ID})
}

// handleTestConnector verifies a connector's credentials with a cheap
// vendor call.
func (s *Server) handleTestConnector(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadConnector(w, r)
	if !ok {
		return
	}
	if s.syncService == nil {
		respondInternalError(w, "sync service unavailable")
		return
	}

	if err := s.syncService.TestConnector(r.Context(), c); err != nil {
		respond(w, http.StatusOK, map[string]any{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}

	respond(w, http.StatusOK, map[string]any{"connected": true})
}

// loadConnector resolves the {id} URL parameter to a connector in the
// caller's organisation, writing the error response itself when that
// fails.
func (s *Server) loadConnector(w http.ResponseWriter, r *http.Request) (*connector.Connector, bool) {
	id := chi.URLParam(r, "id")

	c, err := s.connectors.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, connector.ErrNotFound) {
			respondNotFound(w, "connector not found")
			return nil, false
		}
		s.logger.Error("connector lookup failed", "connector_id", id, "error", err)
		respondInternalError(w, "failed to load connector")
		return nil, false
	}

	if c.OrganizationID != callerOrgID(r) {
		respondNotFound(w, "connector not found")
		return nil, false
	}
	return c, true
}
