package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket upgrade. Browsers cannot attach Authorization headers
		// to upgrade requests, so this sits outside the bearer middleware;
		// the handler authenticates with a single-use ticket instead.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires a logged-in caller
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleDevicesAction)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/cameras", s.handleListDeviceCameras)
					r.Post("/cameras/{cameraId}", s.handleAssociateCamera)
					r.Delete("/cameras/{cameraId}", s.handleDissociateCamera)
				})
			})

			r.Route("/events", func(r chi.Router) {
				r.Get("/", s.handleListEvents)
				r.Post("/", s.handleEventsAction)
			})

			r.Route("/connectors", func(r chi.Router) {
				r.Get("/", s.handleListConnectors)
				r.Post("/", s.handleCreateConnector)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetConnector)
					r.Put("/", s.handleUpdateConnector)
					r.Delete("/", s.handleDeleteConnector)
					r.Post("/test", s.handleTestConnector)
				})
			})

			r.Route("/automations", func(r chi.Router) {
				r.Get("/", s.handleListAutomations)
				r.Post("/", s.handleCreateAutomation)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetAutomation)
					r.Put("/", s.handleUpdateAutomation)
					r.Delete("/", s.handleDeleteAutomation)
					r.Get("/executions", s.handleListExecutions)
				})
			})

			r.Route("/locations", func(r chi.Router) {
				r.Get("/", s.handleListLocations)
				r.Post("/", s.handleCreateLocation)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetLocation)
					r.Put("/", s.handleUpdateLocation)
					r.Delete("/", s.handleDeleteLocation)
				})
			})

			r.Route("/areas", func(r chi.Router) {
				r.Get("/", s.handleListAreas)
				r.Post("/", s.handleCreateArea)

				r.Route("/{id}", func(r chi.Router) {
					r.Put("/", s.handleUpdateArea)
					r.Delete("/", s.handleDeleteArea)
				})
			})

			r.Route("/service-configurations", func(r chi.Router) {
				r.Get("/", s.handleListServiceConfigs)
				r.Post("/", s.handleCreateServiceConfig)

				r.Route("/{id}", func(r chi.Router) {
					r.Put("/", s.handleUpdateServiceConfig)
					r.Delete("/", s.handleDeleteServiceConfig)
				})
			})

			// Linear read surface for the dashboard's team and issue pickers
			r.Route("/linear", func(r chi.Router) {
				r.Get("/teams", s.handleListLinearTeams)
				r.Get("/members", s.handleListLinearMembers)
				r.Get("/teams/{teamId}/issues", s.handleListLinearIssues)
			})

			r.Post("/mqtt-toggle", s.handleMQTTToggle)
			r.Post("/websocket-toggle", s.handleWebSocketToggle)

			// Admin-only operations
			r.Route("/admin", func(r chi.Router) {
				r.Use(s.adminMiddleware)
				r.Patch("/connectors/{id}/organization", s.handleSetConnectorOrganization)
				r.Post("/trigger-migration", s.handleTriggerMigration)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
