package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/fusionbridge/fusion-bridge-core/internal/event"
)

// handleListEvents returns one page of the caller's events, newest first.
//
// Query parameters:
//   - page, pageSize: pagination (1-based page)
//   - eventCategories: comma-separated category filter
//   - connectorCategory: vendor filter
//   - locationId, areaId: location scoping
//   - alarmEventsOnly: "true" restricts to alarm events
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := event.PageRequest{
		Page:              queryInt(q.Get("page")),
		PageSize:          queryInt(q.Get("pageSize")),
		OrganizationID:    callerOrgID(r),
		ConnectorCategory: q.Get("connectorCategory"),
		LocationID:        q.Get("locationId"),
		AreaID:            q.Get("areaId"),
		AlarmOnly:         q.Get("alarmEventsOnly") == "true",
	}

	if raw := q.Get("eventCategories"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			category := event.Category(strings.TrimSpace(c))
			if !category.IsValid() {
				respondBadRequest(w, "unknown event category: "+string(category))
				return
			}
			req.Categories = append(req.Categories, category)
		}
	}

	req.Normalize()

	page, err := s.events.List(r.Context(), req)
	if err != nil {
		s.logger.Error("event listing failed", "error", err)
		respondInternalError(w, "failed to list events")
		return
	}

	respondList(w, page.Events, req.PageSize, req.Page, page.HasNextPage)
}

// eventsActionRequest is the request body for POST /api/events.
type eventsActionRequest struct {
	Action string `json:"action"`
}

// handleEventsAction dispatches on the action field; "sync" runs the
// same sweep as the devices endpoint (connectivity state changes land
// as events).
func (s *Server) handleEventsAction(w http.ResponseWriter, r *http.Request) {
	var req eventsActionRequest
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
		s.logger.Error("event sync failed", "error", err)
		respondInternalError(w, "sync failed")
		return
	}

	respondSyncResult(w, map[string]any{"processed": result.Processed}, result.Failures)
}

// queryInt parses a positive integer query value, returning 0 for
// anything else (Normalize applies defaults).
func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
