// Package piko implements the Piko VMS cloud API driver.
//
// Piko systems are reached through the vendor's cloud relay using the
// system ID from the connector config. Authentication is a bearer session
// token obtained from username/password credentials.
package piko

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// relayURLFormat builds the cloud relay base URL for a system.
const relayURLFormat = "https://%s.relay.vmsproxy.com"

// Client is a Piko API client for one connector's credentials.
// Safe for concurrent use; the session token is refreshed lazily.
type Client struct {
	http     *resty.Client
	username string
	password string

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a Piko client for a cloud system. A non-empty baseURL
// overrides the relay URL (used to point at test servers).
func NewClient(baseURL, systemID, username, password string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = fmt.Sprintf(relayURLFormat, systemID)
	}

	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:     http,
		username: username,
		password: password,
	}
}

// sessionTTL is how long a login token is reused before re-authenticating.
const sessionTTL = 30 * time.Minute

type loginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	SetCookie bool   `json:"setCookie"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// session returns a valid bearer token, logging in when absent or expired.
func (c *Client) session(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	var result loginResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(loginRequest{Username: c.username, Password: c.password}).
		SetResult(&result).
		Post("/rest/v2/login/sessions")
	if err != nil {
		return "", fmt.Errorf("piko: logging in: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("piko: login failed: %s", resp.Status())
	}
	if result.Token == "" {
		return "", fmt.Errorf("piko: login response missing token")
	}

	c.token = result.Token
	c.tokenExpiry = time.Now().Add(sessionTTL)
	return c.token, nil
}

// get performs an authenticated GET, decoding the response into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	token, err := c.session(ctx)
	if err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("piko: GET %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("piko: GET %s failed: %s", path, resp.Status())
	}
	return nil
}

// post performs an authenticated POST with a JSON body.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	token, err := c.session(ctx)
	if err != nil {
		return err
	}

	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body)
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Post(path)
	if err != nil {
		return fmt.Errorf("piko: POST %s: %w", path, err)
	}
	if resp.IsError() {
		return fmt.Errorf("piko: POST %s failed: %s", path, resp.Status())
	}
	return nil
}
