// Package openai implements a minimal OpenAI chat-completions client used
// to summarise event activity for notifications.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is OpenAI's production API endpoint.
const DefaultBaseURL = "https://api.openai.com"

const defaultModel = "gpt-4o-mini"

// Client is an OpenAI API client.
type Client struct {
	http  *resty.Client
	model string
}

// NewClient creates an OpenAI client. Empty baseURL and model use the
// production endpoint and default model.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}

	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+apiKey).
		SetHeader("Content-Type", "application/json")

	return &Client{http: http, model: model}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Summarise asks the model to condense the given event digest into a
// short human-readable summary suitable for a push notification.
func (c *Client) Summarise(ctx context.Context, digest string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []message{
			{
				Role: "system",
				Content: "You summarise physical security event digests into two or three plain " +
					"sentences for a facilities manager. Mention device names and counts, skip IDs.",
			},
			{Role: "user", Content: digest},
		},
	}

	var result chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("openai: requesting summary: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("openai: summary request failed: %s", resp.Status())
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: summary response empty")
	}

	return result.Choices[0].Message.Content, nil
}
