package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fusionbridge/fusion-bridge-core/internal/servicecfg"
)

// serviceConfigRequest is the request body for service configuration
// create/update.
type serviceConfigRequest struct {
	Type    servicecfg.Type `json:"type"`
	Config  map[string]any  `json:"config"`
	Enabled bool            `json:"enabled"`
}

// handleListServiceConfigs returns the caller's service configurations.
func (s *Server) handleListServiceConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.serviceCfgs.List(r.Context(), callerOrgID(r))
	if err != nil {
		s.logger.Error("service configuration listing failed", "error", err)
		respondInternalError(w, "failed to list service configurations")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"serviceConfigurations": configs,
		"count":                 len(configs),
	})
}

// handleCreateServiceConfig creates a service configuration. Each
// organisation can hold at most one per service type.
func (s *Server) handleCreateServiceConfig(w http.ResponseWriter, r *http.Request) {
	var req serviceConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if !req.Type.IsValid() {
		respondValidationError(w, fmt.Sprintf("unknown service type %q", req.Type))
		return
	}

	cfg := &servicecfg.ServiceConfiguration{
		OrganizationID: callerOrgID(r),
		Type:           req.Type,
		Config:         req.Config,
		Enabled:        req.Enabled,
	}

	if err := s.serviceCfgs.Create(r.Context(), cfg); err != nil {
		if errors.Is(err, servicecfg.ErrExists) {
			respondConflict(w, fmt.Sprintf("a %s configuration already exists", req.Type))
			return
		}
		s.logger.Error("service configuration creation failed", "type", req.Type, "error", err)
		respondInternalError(w, "failed to create service configuration")
		return
	}
	respond(w, http.StatusCreated, cfg)
}

// handleUpdateServiceConfig replaces a configuration's settings. The
// service type is fixed at creation.
func (s *Server) handleUpdateServiceConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.loadServiceConfig(w, r)
	if !ok {
		return
	}

	var req serviceConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	if req.Type != "" && req.Type != cfg.Type {
		respondValidationError(w, "service type cannot be changed")
		return
	}

	cfg.Config = req.Config
	cfg.Enabled = req.Enabled

	if err := s.serviceCfgs.Update(r.Context(), cfg); err != nil {
		s.logger.Error("service configuration update failed", "config_id", cfg.ID, "error", err)
		respondInternalError(w, "failed to update service configuration")
		return
	}
	respond(w, http.StatusOK, cfg)
}

// handleDeleteServiceConfig removes a service configuration.
func (s *Server) handleDeleteServiceConfig(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.loadServiceConfig(w, r)
	if !ok {
		return
	}

	if err := s.serviceCfgs.Delete(r.Context(), cfg.ID); err != nil {
		s.logger.Error("service configuration deletion failed", "config_id", cfg.ID, "error", err)
		respondInternalError(w, "failed to delete service configuration")
		return
	}
	respond(w, http.StatusOK, map[string]any{"deleted": cfg.ID})
}

// loadServiceConfig resolves the {id} URL parameter to one of the
// caller's service configurations.
func (s *Server) loadServiceConfig(w http.ResponseWriter, r *http.Request) (*servicecfg.ServiceConfiguration, bool) {
	id := chi.URLParam(r, "id")

	configs, err := s.serviceCfgs.List(r.Context(), callerOrgID(r))
	if err != nil {
		s.logger.Error("service configuration lookup failed", "config_id", id, "error", err)
		respondInternalError(w, "failed to load service configuration")
		return nil, false
	}

	for i := range configs {
		if configs[i].ID == id {
			return &configs[i], true
		}
	}
	respondNotFound(w, "service configuration not found")
	return nil, false
}
