package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fusionbridge/fusion-bridge-core/internal/connector"
)

// connectorToggleRequest is the request body for the mqtt-toggle and
// websocket-toggle endpoints.
type connectorToggleRequest struct {
	ConnectorID string `json:"connectorId"`
	Enabled     bool   `json:"enabled"`
}

// handleMQTTToggle enables or disables live MQTT event ingestion for a
// YoLink connector.
func (s *Server) handleMQTTToggle(w http.ResponseWriter, r *http.Request) {
	var req connectorToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if req.ConnectorID == "" {
		respondValidationError(w, "connectorId is required")
		return
	}

	c, err := s.connectors.Get(r.Context(), req.ConnectorID)
	if err != nil || c.OrganizationID != callerOrgID(r) {
		respondNotFound(w, "connector not found")
		return
	}
	if c.Category != connector.CategoryYoLink {
		respondValidationError(w, "live events are only available for YoLink connectors")
		return
	}

	if err := s.connectors.SetEventsEnabled(r.Context(), c.ID, req.Enabled); err != nil {
		s.logger.Error("events flag update failed", "connector_id", c.ID, "error", err)
		respondInternalError(w, "failed to update connector")
		return
	}

	if s.toggler != nil {
		if req.Enabled {
			if err := s.toggler.Enable(r.Context(), c.ID); err != nil {
				s.logger.Error("mqtt subscription failed", "connector_id", c.ID, "error", err)
				respondInternalError(w, "failed to start live event subscription")
				return
			}
		} else {
			s.toggler.Disable(c.ID)
		}
	}

	s.logger.Info("mqtt ingestion toggled", "connector_id", c.ID, "enabled", req.Enabled)
	respond(w, http.StatusOK, map[string]any{
		"connectorId": c.ID,
		"enabled":     req.Enabled,
	})
}

// handleWebSocketToggle enables or disables WebSocket broadcasts for a
// connector's events. Ingestion continues either way, only the push to
// dashboard clients is muted.
func (s *Server) handleWebSocketToggle(w http.ResponseWriter, r *http.Request) {
	var req connectorToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if req.ConnectorID == "" {
		respondValidationError(w, "connectorId is required")
		return
	}

	c, err := s.connectors.Get(r.Context(), req.ConnectorID)
	if err != nil || c.OrganizationID != callerOrgID(r) {
		respondNotFound(w, "connector not found")
		return
	}

	s.Hub().SetConnectorBroadcast(c.ID, req.Enabled)
	s.logger.Info("websocket broadcast toggled", "connector_id", c.ID, "enabled", req.Enabled)
	respond(w, http.StatusOK, map[string]any{
		"connectorId": c.ID,
		"enabled":     req.Enabled,
	})
}

// setOrganizationRequest is the request body for the admin connector
// reassignment endpoint.
type setOrganizationRequest struct {
	OrganizationID string `json:"organizationId"`
}

// handleSetConnectorOrganization moves a connector (and its devices and
// events, which follow the connector) to another organisation.
func (s *Server) handleSetConnectorOrganization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if req.OrganizationID == "" {
		respondValidationError(w, "organizationId is required")
		return
	}

	if _, err := s.orgs.GetByID(r.Context(), req.OrganizationID); err != nil {
		respondValidationError(w, "organizationId does not reference a known organisation")
		return
	}

	if err := s.connectors.SetOrganization(r.Context(), id, req.OrganizationID); err != nil {
		if errors.Is(err, connector.ErrNotFound) {
			respondNotFound(w, "connector not found")
			return
		}
		s.logger.Error("connector reassignment failed", "connector_id", id, "error", err)
		respondInternalError(w, "failed to reassign connector")
		return
	}

	s.logger.Info("connector reassigned",
		"connector_id", id,
		"organization_id", req.OrganizationID,
	)
	respond(w, http.StatusOK, map[string]any{
		"connectorId":    id,
		"organizationId": req.OrganizationID,
	})
}

// handleTriggerMigration runs pending database migrations on demand.
func (s *Server) handleTriggerMigration(w http.ResponseWriter, r *http.Request) {
	if s.migrator == nil || s.db == nil {
		respondBadRequest(w, "migrations are not available")
		return
	}

	if err := s.migrator(r.Context(), s.db); err != nil {
		s.logger.Error("migration run failed", "error", err)
		respondInternalError(w, "migration failed")
		return
	}

	s.logger.Info("migrations applied via admin endpoint")
	respond(w, http.StatusOK, map[string]any{"migrated": true})
}
