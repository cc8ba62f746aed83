// Fusion Bridge Core - Physical Security Integration Platform
//
// This is the main entry point for the Fusion Bridge Core application.
// Fusion Bridge unifies physical-security vendors behind one API:
//   - YoLink sensors (door, motion, leak) with live MQTT ingestion
//   - Piko VMS servers and cameras
//   - Genea access-control doors
//
// Devices and events from every vendor land in a common model, scoped to
// organisations, with automations reacting to events as they arrive.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/fusionbridge/fusion-bridge-core/migrations"

	"github.com/fusionbridge/fusion-bridge-core/internal/api"
	"github.com/fusionbridge/fusion-bridge-core/internal/automation"
	"github.com/fusionbridge/fusion-bridge-core/internal/connector"
	"github.com/fusionbridge/fusion-bridge-core/internal/device"
	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/census"
	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/linear"
	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/yolink"
	"github.com/fusionbridge/fusion-bridge-core/internal/event"
	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/config"
	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/database"
	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/influxdb"
	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/logging"
	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/mqtt"
	"github.com/fusionbridge/fusion-bridge-core/internal/ingest"
	"github.com/fusionbridge/fusion-bridge-core/internal/location"
	"github.com/fusionbridge/fusion-bridge-core/internal/notify"
	"github.com/fusionbridge/fusion-bridge-core/internal/org"
	"github.com/fusionbridge/fusion-bridge-core/internal/servicecfg"
	"github.com/fusionbridge/fusion-bridge-core/internal/sync"
	"github.com/fusionbridge/fusion-bridge-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// defaultVendorTimeout bounds a single vendor API call when the config
// leaves sync.vendor_timeout unset.
const defaultVendorTimeout = 30 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear wiring: each block initialises one subsystem
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Fusion Bridge Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log, err = logging.New(cfg.Logging, version)
	if err != nil {
		return fmt.Errorf("initialising logger: %w", err)
	}
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database (runs pending migrations)
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", db.Path())

	// Repositories
	orgRepo := org.NewSQLiteRepository(db.DB)
	connectorRepo := connector.NewSQLiteRepository(db.DB)
	deviceRepo := device.NewSQLiteRepository(db.DB)
	eventRepo := event.NewSQLiteRepository(db.DB)
	locationRepo := location.NewSQLiteRepository(db.DB)
	automationRepo := automation.NewSQLiteRepository(db.DB)
	serviceCfgRepo := servicecfg.NewSQLiteRepository(db.DB)

	// Connector registry with cached credentials
	registry := connector.NewRegistry(connectorRepo)
	registry.SetLogger(log)
	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading connector registry: %w", refreshErr)
	}

	vendorTimeout := time.Duration(cfg.Sync.VendorTimeout) * time.Second
	if vendorTimeout <= 0 {
		vendorTimeout = defaultVendorTimeout
	}

	// Sync service with real vendor drivers
	syncService := sync.New(registry, deviceRepo, eventRepo, db.DB,
		sync.WithLogger(log),
		sync.WithYoLinkFactory(sync.NewYoLinkFactory(cfg.Services.YoLinkBaseURL, vendorTimeout)),
		sync.WithPikoFactory(sync.NewPikoFactory("", vendorTimeout)),
		sync.WithGeneaFactory(sync.NewGeneaFactory(cfg.Services.GeneaBaseURL, vendorTimeout)),
	)

	// Automation engine reacting to ingested events
	engine := automation.NewEngine(automationRepo, deviceRepo, registry, eventRepo, locationRepo,
		automation.WithLogger(log),
		automation.WithPikoFactory(automation.NewPikoFactory("", vendorTimeout)),
	)
	if reloadErr := engine.ReloadCache(ctx); reloadErr != nil {
		return fmt.Errorf("loading automations: %w", reloadErr)
	}
	syncService.AddSink(engine)

	// Notifier: alarm pushes and offline issues per organisation config
	notifier := notify.New(serviceCfgRepo,
		notify.WithLogger(log),
		notify.WithTimeout(vendorTimeout),
		notify.WithLinearMockData(cfg.Services.LinearUseMockData),
		notify.WithServiceBaseURLs(
			cfg.Services.PushoverBaseURL,
			cfg.Services.PushcutBaseURL,
			cfg.Services.OpenAIBaseURL,
			cfg.Services.LinearBaseURL,
		),
	)
	syncService.AddSink(notifier)

	// Connect to the YoLink MQTT broker for push ingestion (optional)
	var ingestor *ingest.YoLinkIngestor
	if cfg.MQTT.Broker.Host != "" {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		resolverFactory := func(conn *connector.Connector) ingest.HomeResolver {
			return yolink.NewClient(cfg.Services.YoLinkBaseURL, conn.ConfigString("uaid"), conn.ConfigString("secretKey"), vendorTimeout)
		}
		ingestor = ingest.NewYoLinkIngestor(mqttClient, registry, deviceRepo, eventRepo, resolverFactory, log)
		ingestor.AddSink(engine)
		ingestor.AddSink(notifier)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected, refreshing report subscriptions")
			if refreshErr := ingestor.Refresh(context.Background()); refreshErr != nil {
				log.Error("report resubscription failed", "error", refreshErr)
			}
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		if startErr := ingestor.Start(ctx); startErr != nil {
			return fmt.Errorf("starting YoLink ingestion: %w", startErr)
		}
		log.Info("YoLink push ingestion started")
	} else {
		log.Info("MQTT disabled, push ingestion off")
	}

	// Connect to InfluxDB for event telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		eventSink := telemetry.NewEventSink(influxClient)
		syncService.AddSink(eventSink)
		if ingestor != nil {
			ingestor.AddSink(eventSink)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Background sync scheduler (manual sync via API works regardless)
	if cfg.Sync.Enabled {
		scheduler := sync.NewScheduler(syncService, cfg.Sync.Cron, log)
		if startErr := scheduler.Start(ctx); startErr != nil {
			return fmt.Errorf("starting sync scheduler: %w", startErr)
		}
		defer scheduler.Stop()
	} else {
		log.Info("sync scheduler disabled")
	}

	// API server with WebSocket hub
	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Orgs:        orgRepo,
		Connectors:  registry,
		Devices:     deviceRepo,
		Events:      eventRepo,
		Locations:   locationRepo,
		Automations: automationRepo,
		ServiceCfgs: serviceCfgRepo,
		SyncService: syncService,
		Engine:      engine,
		Geocoder: &censusGeocoder{
			client: census.NewClient(cfg.Services.CensusBaseURL, vendorTimeout),
		},
		Linear: func(sc *servicecfg.ServiceConfiguration) api.IssueDirectory {
			return linear.NewClient(cfg.Services.LinearBaseURL, sc.ConfigString("apiKey"),
				cfg.Services.LinearUseMockData, vendorTimeout)
		},
		DB: db.DB,
		Migrator: func(ctx context.Context, _ *sql.DB) error {
			return db.Migrate(ctx)
		},
		Version: version,
	}
	if ingestor != nil {
		deps.Toggler = ingestor
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// The hub doubles as an event sink pushing to dashboard clients
	hub := server.Hub()
	syncService.AddSink(hub)
	if ingestor != nil {
		ingestor.AddSink(hub)
	}

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Sync scheduler
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("Fusion Bridge Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FUSION_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FUSION_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// censusGeocoder adapts the Census driver to the API server's Geocoder
// interface.
type censusGeocoder struct {
	client *census.Client
}

func (g *censusGeocoder) Geocode(ctx context.Context, address string) (float64, float64, error) {
	coords, err := g.client.Geocode(ctx, address)
	if err != nil {
		return 0, 0, err
	}
	return coords.Latitude, coords.Longitude, nil
}
