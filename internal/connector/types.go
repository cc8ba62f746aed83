// Package connector manages vendor connector configurations.
//
// A connector is a credentialed link to one vendor account: a YoLink home,
// a Piko cloud system or a Genea location. Devices are discovered through
// their connector during sync, and every device and event row points back
// at the connector that produced it.
package connector

import (
	"encoding/json"
	"time"
)

// Category identifies which vendor a connector talks to.
type Category string

const (
	CategoryYoLink Category = "yolink"
	CategoryPiko   Category = "piko"
	CategoryGenea  Category = "genea"
)

// AllCategories returns all valid connector categories.
func AllCategories() []Category {
	return []Category{CategoryYoLink, CategoryPiko, CategoryGenea}
}

// IsValid reports whether the category is a known value.
func (c Category) IsValid() bool {
	switch c {
	case CategoryYoLink, CategoryPiko, CategoryGenea:
		return true
	}
	return false
}

// Connector represents a configured vendor integration.
type Connector struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organizationId"`
	Name           string   `json:"name"`
	Category       Category `json:"category"`

	// Config holds vendor credentials and settings as an opaque JSON
	// object. Its required keys depend on Category, see validation.go.
	Config map[string]any `json:"config"`

	// EventsEnabled controls whether live event ingestion (MQTT for
	// YoLink, webhooks for others) is active for this connector.
	EventsEnabled bool `json:"eventsEnabled"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConfigString returns a string value from the connector config, or ""
// when absent or not a string.
func (c *Connector) ConfigString(key string) string {
	if c.Config == nil {
		return ""
	}
	if v, ok := c.Config[key].(string); ok {
		return v
	}
	return ""
}

// DeepCopy returns a deep copy of the connector.
// Used by the registry to prevent cache mutation by callers.
func (c *Connector) DeepCopy() *Connector {
	copied := *c
	if c.Config != nil {
		// Round-trip through JSON for a safe deep copy of nested values.
		data, err := json.Marshal(c.Config)
		if err == nil {
			var cfg map[string]any
			if json.Unmarshal(data, &cfg) == nil {
				copied.Config = cfg
			}
		}
	}
	return &copied
}
