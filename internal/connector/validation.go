package connector

import (
	"fmt"

	"github.com/google/uuid"
)

const maxNameLength = 100

// requiredConfigKeys lists the config keys each category must provide.
// Values are vendor credentials, stored as opaque JSON and passed to the
// matching driver at sync time.
var requiredConfigKeys = map[Category][]string{
	CategoryYoLink: {"uaid", "secretKey"},
	CategoryPiko:   {"username", "password", "systemId"},
	CategoryGenea:  {"apiKey", "locationUuid"},
}

// ValidateConnector performs validation on a connector.
// Returns an error describing the first validation failure found.
func ValidateConnector(c *Connector) error {
	if c == nil {
		return fmt.Errorf("connector: nil connector")
	}

	if c.Name == "" {
		return fmt.Errorf("connector: name is required")
	}
	if len(c.Name) > maxNameLength {
		return fmt.Errorf("connector: name exceeds %d characters", maxNameLength)
	}

	if c.OrganizationID == "" {
		return fmt.Errorf("connector: organization is required")
	}

	if !c.Category.IsValid() {
		return fmt.Errorf("connector: invalid category %q", c.Category)
	}

	for _, key := range requiredConfigKeys[c.Category] {
		if c.ConfigString(key) == "" {
			return fmt.Errorf("connector: config key %q is required for category %s", key, c.Category)
		}
	}

	return nil
}

// GenerateID creates a new UUID for a connector.
func GenerateID() string {
	return uuid.New().String()
}
