// Package yolink implements the YoLink cloud API driver.
//
// YoLink exposes a single RPC-style endpoint (/open/yolink/v2/api) where
// the request body's "method" field selects the operation, authenticated
// by an OAuth client-credentials token. Live events arrive separately
// over MQTT, see internal/infrastructure/mqtt.
package yolink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is YoLink's production API endpoint.
const DefaultBaseURL = "https://api.yosmart.com"

// Client is a YoLink API client for one connector's credentials.
// Safe for concurrent use; the access token is refreshed lazily.
type Client struct {
	http      *resty.Client
	uaid      string
	secretKey string

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a YoLink client. An empty baseURL uses the production
// endpoint.
func NewClient(baseURL, uaid, secretKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:      http,
		uaid:      uaid,
		secretKey: secretKey,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// token returns a valid access token, refreshing it when absent or within
// a minute of expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	var result tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     c.uaid,
			"client_secret": c.secretKey,
		}).
		SetResult(&result).
		Post("/open/yolink/token")
	if err != nil {
		return "", fmt.Errorf("yolink: requesting token: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("yolink: token request failed: %s", resp.Status())
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("yolink: token response missing access_token")
	}

	c.accessToken = result.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// apiResponse is the envelope YoLink wraps around every RPC response.
type apiResponse struct {
	Code string         `json:"code"`
	Desc string         `json:"desc"`
	Data map[string]any `json:"data"`
}

const codeSuccess = "000000"

// call performs one RPC against the YoLink API.
func (c *Client) call(ctx context.Context, body map[string]any) (map[string]any, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	body["time"] = time.Now().UnixMilli()

	var result apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(body).
		SetResult(&result).
		Post("/open/yolink/v2/api")
	if err != nil {
		return nil, fmt.Errorf("yolink: calling %v: %w", body["method"], err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("yolink: %v failed: %s", body["method"], resp.Status())
	}
	if result.Code != codeSuccess {
		return nil, fmt.Errorf("yolink: %v returned code %s: %s", body["method"], result.Code, result.Desc)
	}

	return result.Data, nil
}
