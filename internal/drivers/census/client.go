// Package census implements the US Census Bureau geocoding driver.
//
// Locations entered with a street address are enriched with coordinates
// through the Census one-line address endpoint. The service is free and
// unauthenticated.
package census

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the Census geocoding service endpoint.
const DefaultBaseURL = "https://geocoding.geo.census.gov"

// ErrNoMatch indicates the address did not geocode to any location.
var ErrNoMatch = errors.New("census: no match for address")

// Client is a Census geocoding client.
type Client struct {
	http *resty.Client
}

// NewClient creates a Census client. An empty baseURL uses the production
// endpoint.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
	}
}

// Coordinates is a geocoded point.
type Coordinates struct {
	Latitude  float64
	Longitude float64

	// MatchedAddress is the normalised address the point resolves to.
	MatchedAddress string
}

type geocodeResponse struct {
	Result struct {
		AddressMatches []struct {
			MatchedAddress string `json:"matchedAddress"`
			Coordinates    struct {
				X float64 `json:"x"` // longitude
				Y float64 `json:"y"` // latitude
			} `json:"coordinates"`
		} `json:"addressMatches"`
	} `json:"result"`
}

// Geocode resolves a one-line street address to coordinates.
// Returns ErrNoMatch when the service finds no candidate.
func (c *Client) Geocode(ctx context.Context, address string) (*Coordinates, error) {
	var result geocodeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"address":   address,
			"benchmark": "Public_AR_Current",
			"format":    "json",
		}).
		SetResult(&result).
		Get("/geocoder/locations/onelineaddress")
	if err != nil {
		return nil, fmt.Errorf("census: geocoding address: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("census: geocoding failed: %s", resp.Status())
	}

	if len(result.Result.AddressMatches) == 0 {
		return nil, ErrNoMatch
	}

	match := result.Result.AddressMatches[0]
	return &Coordinates{
		Latitude:       match.Coordinates.Y,
		Longitude:      match.Coordinates.X,
		MatchedAddress: match.MatchedAddress,
	}, nil
}
