// Package genea implements the Genea access-control API driver.
//
// Genea exposes a REST API keyed by a location-scoped API key. Fusion
// Bridge reads door hardware and its lock/online status; door control
// stays in Genea's own tooling.
package genea

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is Genea's production API endpoint.
const DefaultBaseURL = "https://api.sequr.io"

// Client is a Genea API client for one connector's credentials.
type Client struct {
	http         *resty.Client
	locationUUID string
}

// NewClient creates a Genea client. An empty baseURL uses the production
// endpoint.
func NewClient(baseURL, apiKey, locationUUID string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:         http,
		locationUUID: locationUUID,
	}
}

// Door is one access-controlled door at the location.
type Door struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	IsLocked bool   `json:"is_locked"`
	IsOnline bool   `json:"is_online"`
	Model    string `json:"hardware_model"`
}

type doorListResponse struct {
	Data []Door `json:"data"`
}

// ListDoors returns all doors at the connector's location.
func (c *Client) ListDoors(ctx context.Context) ([]Door, error) {
	var result doorListResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get(fmt.Sprintf("/v2/location/%s/door", c.locationUUID))
	if err != nil {
		return nil, fmt.Errorf("genea: listing doors: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("genea: listing doors failed: %s", resp.Status())
	}
	return result.Data, nil
}

// RawState returns the door's state vocabulary for the mapping layer.
// An offline door reports its connectivity; an online door reports its
// lock position.
func (d Door) RawState() string {
	if !d.IsOnline {
		return "offline"
	}
	if d.IsLocked {
		return "locked"
	}
	return "unlocked"
}
