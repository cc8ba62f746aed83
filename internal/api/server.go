// Package api provides the HTTP REST API and WebSocket server for
// Fusion Bridge.
//
// It exposes connector, device, event, automation and location
// management to the dashboard, plus a WebSocket channel pushing state
// changes and new events to connected clients.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fusionbridge/fusion-bridge-core/internal/automation"
	"github.com/fusionbridge/fusion-bridge-core/internal/connector"
	"github.com/fusionbridge/fusion-bridge-core/internal/device"
	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/linear"
	"github.com/fusionbridge/fusion-bridge-core/internal/event"
	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/config"
	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/logging"
	"github.com/fusionbridge/fusion-bridge-core/internal/location"
	"github.com/fusionbridge/fusion-bridge-core/internal/org"
	"github.com/fusionbridge/fusion-bridge-core/internal/servicecfg"
	"github.com/fusionbridge/fusion-bridge-core/internal/sync"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// EventToggler flips live event ingestion for one connector. Implemented
// by the YoLink MQTT ingestor; optional, since MQTT may be disabled.
type EventToggler interface {
	Enable(ctx context.Context, connectorID string) error
	Disable(connectorID string)
}

// Geocoder resolves a street address to coordinates for location
// enrichment. Implemented by the Census driver.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lon float64, err error)
}

// Migrator applies pending database migrations. Used by the admin
// trigger-migration endpoint.
type Migrator func(ctx context.Context, db *sql.DB) error

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Orgs        org.Repository
	Connectors  *connector.Registry
	Devices     sync.DeviceRepository
	Events      event.Repository
	Locations   location.Repository
	Automations automation.Repository
	ServiceCfgs servicecfg.Repository

	SyncService *sync.Service
	Engine      *automation.Engine
	Toggler     EventToggler          // optional
	Geocoder    Geocoder              // optional
	Linear      IssueDirectoryFactory // optional, defaults to the real driver
	DB          *sql.DB
	Migrator    Migrator

	ExternalHub *Hub // if set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for Fusion Bridge.
type Server struct {
	cfg    config.APIConfig
	wsCfg  config.WebSocketConfig
	secCfg config.SecurityConfig
	logger *logging.Logger

	orgs        org.Repository
	connectors  *connector.Registry
	devices     sync.DeviceRepository
	events      event.Repository
	locations   location.Repository
	automations automation.Repository
	serviceCfgs servicecfg.Repository

	syncService   *sync.Service
	engine        *automation.Engine
	toggler       EventToggler
	geocoder      Geocoder
	linearFactory IssueDirectoryFactory
	db            *sql.DB
	migrator      Migrator

	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Connectors == nil {
		return nil, fmt.Errorf("connector registry is required")
	}
	if deps.Devices == nil || deps.Events == nil {
		return nil, fmt.Errorf("device and event repositories are required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		orgs:        deps.Orgs,
		connectors:  deps.Connectors,
		devices:     deps.Devices,
		events:      deps.Events,
		locations:   deps.Locations,
		automations: deps.Automations,
		serviceCfgs: deps.ServiceCfgs,
		syncService:   deps.SyncService,
		engine:        deps.Engine,
		toggler:       deps.Toggler,
		geocoder:      deps.Geocoder,
		linearFactory: deps.Linear,
		db:            deps.DB,
		migrator:      deps.Migrator,
		version:       deps.Version,
	}

	if s.linearFactory == nil {
		s.linearFactory = func(cfg *servicecfg.ServiceConfiguration) IssueDirectory {
			return linear.NewClient("", cfg.ConfigString("apiKey"), false, defaultLinearTimeout)
		}
	}

	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Hub returns the server's WebSocket hub, creating it if needed. The
// hub doubles as an event sink for sync and MQTT ingestion, so main
// wiring may need it before Start.
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It builds the router, starts the WebSocket hub and ticket cleanup,
// and launches the HTTP listener in a background goroutine. Stop with
// Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	go s.cleanTicketsLoop(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds
// for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// resolveDevice loads a device and verifies it belongs to the caller's
// organisation (through its connector).
func (s *Server) resolveDevice(ctx context.Context, id, orgID string) (*device.Device, error) {
	d, err := s.devices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	conn, err := s.connectors.Get(ctx, d.ConnectorID)
	if err != nil {
		return nil, err
	}
	if conn.OrganizationID != orgID {
		return nil, device.ErrNotFound
	}
	return d, nil
}
