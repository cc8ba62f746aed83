// Package location provides physical locations and areas.
//
// A location is an address (optionally geocoded to coordinates); areas
// subdivide a location and devices attach to areas. Both are scoped to
// an organisation.
package location

import (
	"time"

	"github.com/google/uuid"
)

// Location represents a physical site belonging to an organisation.
type Location struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organizationId"`
	Name           string   `json:"name"`
	Address        *string  `json:"address,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Area represents a named zone within a location.
type Area struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organizationId"`
	LocationID     string `json:"locationId"`
	Name           string `json:"name"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GenerateID creates a new UUID for a location or area.
func GenerateID() string {
	return uuid.New().String()
}
