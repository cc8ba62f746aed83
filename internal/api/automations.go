package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fusionbridge/fusion-bridge-core/internal/automation"
)

// automationRequest is the request body for automation create/update.
type automationRequest struct {
	Name    string             `json:"name"`
	Enabled bool               `json:"enabled"`
	Trigger automation.Trigger `json:"trigger"`
	Actions []automation.Action `json:"actions"`
}

// handleListAutomations returns the caller's automations.
func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	automations, err := s.automations.List(r.Context(), callerOrgID(r))
	if err != nil {
		s.logger.Error("automation listing failed", "error", err)
		respondInternalError(w, "failed to list automations")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"automations": automations,
		"count":       len(automations),
	})
}

// handleCreateAutomation creates an automation and reloads the engine
// cache.
func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	var req automationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}

	a := &automation.Automation{
		OrganizationID: callerOrgID(r),
		Name:           req.Name,
		Enabled:        req.Enabled,
		Trigger:        req.Trigger,
		Actions:        req.Actions,
	}

	if err := automation.Validate(a); err != nil {
		respondValidationError(w, err.Error())
		return
	}

	if err := s.automations.Create(r.Context(), a); err != nil {
		s.logger.Error("automation creation failed", "error", err)
		respondInternalError(w, "failed to create automation")
		return
	}

	s.reloadEngine(r)
	respond(w, http.StatusCreated, a)
}

// handleGetAutomation returns a single automation.
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	a, ok := s.loadAutomation(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, a)
}

// handleUpdateAutomation replaces an automation's mutable fields and
// reloads the engine cache.
func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	a, ok := s.loadAutomation(w, r)
	if !ok {
		return
	}

	var req automationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}

	a.Name = req.Name
	a.Enabled = req.Enabled
	a.Trigger = req.Trigger
	a.Actions = req.Actions

	if err := automation.Validate(a); err != nil {
		respondValidationError(w, err.Error())
		return
	}

	if err := s.automations.Update(r.Context(), a); err != nil {
		s.logger.Error("automation update failed", "automation_id", a.ID, "error", err)
		respondInternalError(w, "failed to update automation")
		return
	}

	s.reloadEngine(r)
	respond(w, http.StatusOK, a)
}

// handleDeleteAutomation removes an automation and reloads the engine
// cache.
func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	a, ok := s.loadAutomation(w, r)
	if !ok {
		return
	}

	if err := s.automations.Delete(r.Context(), a.ID); err != nil {
		s.logger.Error("automation deletion failed", "automation_id", a.ID, "error", err)
		respondInternalError(w, "failed to delete automation")
		return
	}

	s.reloadEngine(r)
	respond(w, http.StatusOK, map[string]any{"deleted": a.ID})
}

// handleListExecutions returns recent executions of one automation.
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	a, ok := s.loadAutomation(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	executions, err := s.automations.ListExecutions(r.Context(), a.ID, limit)
	if err != nil {
		s.logger.Error("execution listing failed", "automation_id", a.ID, "error", err)
		respondInternalError(w, "failed to list executions")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"executions": executions,
		"count":      len(executions),
	})
}

// reloadEngine refreshes the engine's automation cache after CRUD.
func (s *Server) reloadEngine(r *http.Request) {
	if s.engine == nil {
		return
	}
	if err := s.engine.ReloadCache(r.Context()); err != nil {
		s.logger.Warn("automation cache reload failed", "error", err)
	}
}

// loadAutomation resolves the {id} URL parameter to an automation in
// the caller's organisation.
func (s *Server) loadAutomation(w http.ResponseWriter, r *http.Request) (*automation.Automation, bool) {
	id := chi.URLParam(r, "id")

	a, err := s.automations.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, automation.ErrNotFound) {
			respondNotFound(w, "automation not found")
			return nil, false
		}
		s.logger.Error("automation lookup failed", "automation_id", id, "error", err)
		respondInternalError(w, "failed to load automation")
		return nil, false
	}

	if a.OrganizationID != callerOrgID(r) {
		respondNotFound(w, "automation not found")
		return nil, false
	}
	return a, true
}
