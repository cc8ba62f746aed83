// Package push implements the Pushover and Pushcut notification drivers.
//
// Both services take a single authenticated POST per notification; they
// share this package because automations treat them interchangeably as
// "send a push".
package push

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Default production endpoints.
const (
	DefaultPushoverBaseURL = "https://api.pushover.net"
	DefaultPushcutBaseURL  = "https://api.pushcut.io"
)

// Notification is one push message.
type Notification struct {
	Title   string
	Message string

	// URL is an optional link attached to the notification.
	URL string
}

// PushoverClient sends notifications through Pushover.
type PushoverClient struct {
	http    *resty.Client
	token   string
	userKey string
}

// NewPushoverClient creates a Pushover client from an application token
// and user/group key.
func NewPushoverClient(baseURL, token, userKey string, timeout time.Duration) *PushoverClient {
	if baseURL == "" {
		baseURL = DefaultPushoverBaseURL
	}

	return &PushoverClient{
		http:    resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		token:   token,
		userKey: userKey,
	}
}

type pushoverResponse struct {
	Status int      `json:"status"`
	Errors []string `json:"errors"`
}

// Send delivers one notification.
func (c *PushoverClient) Send(ctx context.Context, n Notification) error {
	form := map[string]string{
		"token":   c.token,
		"user":    c.userKey,
		"title":   n.Title,
		"message": n.Message,
	}
	if n.URL != "" {
		form["url"] = n.URL
	}

	var result pushoverResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		Post("/1/messages.json")
	if err != nil {
		return fmt.Errorf("pushover: sending notification: %w", err)
	}
	if resp.IsError() || result.Status != 1 {
		if len(result.Errors) > 0 {
			return fmt.Errorf("pushover: %s", result.Errors[0])
		}
		return fmt.Errorf("pushover: notification failed: %s", resp.Status())
	}
	return nil
}

// PushcutClient sends notifications through Pushcut.
type PushcutClient struct {
	http *resty.Client
}

// NewPushcutClient creates a Pushcut client from an API key.
func NewPushcutClient(baseURL, apiKey string, timeout time.Duration) *PushcutClient {
	if baseURL == "" {
		baseURL = DefaultPushcutBaseURL
	}

	return &PushcutClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("API-Key", apiKey).
			SetHeader("Content-Type", "application/json"),
	}
}

type pushcutRequest struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Send delivers one notification to the named Pushcut notification slot.
func (c *PushcutClient) Send(ctx context.Context, notificationName string, n Notification) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(pushcutRequest{Title: n.Title, Text: n.Message}).
		Post("/v1/notifications/" + notificationName)
	if err != nil {
		return fmt.Errorf("pushcut: sending notification: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("pushcut: notification failed: %s", resp.Status())
	}
	return nil
}
