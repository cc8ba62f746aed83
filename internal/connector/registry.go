package connector

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides connector management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups; the
// sync engine and automation engine resolve connectors on every pass and
// every event, so lookups must not hit the database.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Connector
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new connector registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Connector),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all connectors from the repository into the cache.
// This should be called on application startup and after CRUD operations.
func (r *Registry) RefreshCache(ctx context.Context) error {
	connectors, err := r.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("loading connectors: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Connector, len(connectors))
	for i := range connectors {
		c := connectors[i]
		r.cache[c.ID] = c.DeepCopy()
	}

	r.logger.Info("connector cache refreshed", "count", len(connectors))
	return nil
}

// Get retrieves a connector by ID.
// Returns ErrNotFound if the connector does not exist.
// The returned connector is a deep copy; callers can safely modify it.
func (r *Registry) Get(ctx context.Context, id string) (*Connector, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	c, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = c.DeepCopy()
	r.cacheMu.Unlock()

	return c, nil
}

// List retrieves all connectors for an organisation.
// The returned connectors are deep copies.
func (r *Registry) List(ctx context.Context, orgID string) ([]Connector, error) {
	r.cacheMu.RLock()
	if len(r.cache) > 0 {
		connectors := make([]Connector, 0, len(r.cache))
		for _, c := range r.cache {
			if c.OrganizationID == orgID {
				connectors = append(connectors, *c.DeepCopy())
			}
		}
		r.cacheMu.RUnlock()
		return connectors, nil
	}
	r.cacheMu.RUnlock()

	return r.repo.List(ctx, orgID)
}

// ListAll retrieves all connectors across organisations.
func (r *Registry) ListAll(ctx context.Context) ([]Connector, error) {
	r.cacheMu.RLock()
	if len(r.cache) > 0 {
		connectors := make([]Connector, 0, len(r.cache))
		for _, c := range r.cache {
			connectors = append(connectors, *c.DeepCopy())
		}
		r.cacheMu.RUnlock()
		return connectors, nil
	}
	r.cacheMu.RUnlock()

	return r.repo.ListAll(ctx)
}

// Create validates and inserts a new connector, then updates the cache.
func (r *Registry) Create(ctx context.Context, c *Connector) error {
	if c.ID == "" {
		c.ID = GenerateID()
	}

	if err := ValidateConnector(c); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, c); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[c.ID] = c.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("connector created", "connector_id", c.ID, "category", c.Category)
	return nil
}

// Update validates and modifies an existing connector, then updates the cache.
func (r *Registry) Update(ctx context.Context, c *Connector) error {
	if err := ValidateConnector(c); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, c); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[c.ID] = c.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("connector updated", "connector_id", c.ID)
	return nil
}

// Delete removes a connector and invalidates the cache entry.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("connector deleted", "connector_id", id)
	return nil
}

// SetEventsEnabled flips the live event ingestion flag and refreshes the
// cached entry.
func (r *Registry) SetEventsEnabled(ctx context.Context, id string, enabled bool) error {
	if err := r.repo.SetEventsEnabled(ctx, id, enabled); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if c, ok := r.cache[id]; ok {
		c.EventsEnabled = enabled
	}
	r.cacheMu.Unlock()

	r.logger.Info("connector events toggled", "connector_id", id, "enabled", enabled)
	return nil
}

// SetOrganization reassigns a connector to a different organisation and
// refreshes the cached entry.
func (r *Registry) SetOrganization(ctx context.Context, id, orgID string) error {
	if err := r.repo.SetOrganization(ctx, id, orgID); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if c, ok := r.cache[id]; ok {
		c.OrganizationID = orgID
	}
	r.cacheMu.Unlock()

	r.logger.Info("connector reassigned", "connector_id", id, "organization_id", orgID)
	return nil
}
