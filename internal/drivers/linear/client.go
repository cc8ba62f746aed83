// Package linear implements the Linear issue-tracking API driver.
//
// Linear speaks GraphQL over a single POST endpoint. The driver covers
// the operations the dashboard uses: listing teams, members and issues,
// and creating issues from events. With mock data enabled (the
// LINEAR_USE_MOCK_DATA toggle) every operation returns canned fixtures
// and performs no network calls.
package linear

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is Linear's production GraphQL endpoint.
const DefaultBaseURL = "https://api.linear.app/graphql"

// Client is a Linear API client for one organisation's API key.
type Client struct {
	http    *resty.Client
	useMock bool
}

// NewClient creates a Linear client. An empty baseURL uses the production
// endpoint; useMock short-circuits all calls to fixtures.
func NewClient(baseURL, apiKey string, useMock bool, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:    http,
		useMock: useMock,
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// query executes one GraphQL operation, decoding data into out.
func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	var result graphqlResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(graphqlRequest{Query: query, Variables: variables}).
		SetResult(&result).
		Post("")
	if err != nil {
		return fmt.Errorf("linear: executing query: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("linear: query failed: %s", resp.Status())
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("linear: %s", result.Errors[0].Message)
	}

	if err := json.Unmarshal(result.Data, out); err != nil {
		return fmt.Errorf("linear: decoding response: %w", err)
	}
	return nil
}
