package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/linear"
	"github.com/fusionbridge/fusion-bridge-core/internal/servicecfg"
)

// defaultLinearTimeout bounds a Linear API call when no factory was
// supplied at wiring time.
const defaultLinearTimeout = 15 * time.Second

// IssueDirectory is the read surface of the Linear driver backing the
// dashboard's team, member and issue pickers.
type IssueDirectory interface {
	ListTeams(ctx context.Context) ([]linear.Team, error)
	ListMembers(ctx context.Context) ([]linear.Member, error)
	ListIssues(ctx context.Context, teamID string) ([]linear.Issue, error)
}

// IssueDirectoryFactory builds a Linear client from an organisation's
// service configuration.
type IssueDirectoryFactory func(cfg *servicecfg.ServiceConfiguration) IssueDirectory

// linearDirectory resolves the caller's Linear client, or writes the
// error response and returns false when the integration is not set up.
func (s *Server) linearDirectory(w http.ResponseWriter, r *http.Request) (IssueDirectory, bool) {
	cfg, err := s.serviceCfgs.GetByType(r.Context(), callerOrgID(r), servicecfg.TypeLinear)
	if err != nil {
		if errors.Is(err, servicecfg.ErrNotFound) {
			respondNotFound(w, "linear integration is not configured")
			return nil, false
		}
		s.logger.Error("loading linear configuration", "error", err)
		respondInternalError(w, "failed to load linear configuration")
		return nil, false
	}
	if !cfg.Enabled {
		respondNotFound(w, "linear integration is disabled")
		return nil, false
	}

	return s.linearFactory(cfg), true
}

// handleListLinearTeams returns the workspace's teams.
func (s *Server) handleListLinearTeams(w http.ResponseWriter, r *http.Request) {
	directory, ok := s.linearDirectory(w, r)
	if !ok {
		return
	}

	teams, err := directory.ListTeams(r.Context())
	if err != nil {
		s.logger.Error("listing linear teams", "error", err)
		respondInternalError(w, "failed to list teams")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"teams": teams,
		"count": len(teams),
	})
}

// handleListLinearMembers returns the workspace's members.
func (s *Server) handleListLinearMembers(w http.ResponseWriter, r *http.Request) {
	directory, ok := s.linearDirectory(w, r)
	if !ok {
		return
	}

	members, err := directory.ListMembers(r.Context())
	if err != nil {
		s.logger.Error("listing linear members", "error", err)
		respondInternalError(w, "failed to list members")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"members": members,
		"count":   len(members),
	})
}

// handleListLinearIssues returns a team's open issues.
func (s *Server) handleListLinearIssues(w http.ResponseWriter, r *http.Request) {
	directory, ok := s.linearDirectory(w, r)
	if !ok {
		return
	}

	issues, err := directory.ListIssues(r.Context(), chi.URLParam(r, "teamId"))
	if err != nil {
		s.logger.Error("listing linear issues", "error", err)
		respondInternalError(w, "failed to list issues")
		return
	}

	respond(w, http.StatusOK, map[string]any{
		"issues": issues,
		"count":  len(issues),
	})
}
