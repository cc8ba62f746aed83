package piko

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

func queryEscape(s string) string {
	return url.QueryEscape(s)
}

// Server is one media server in a Piko system.
type Server struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Camera is one camera resource in a Piko system.
type Camera struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	ServerID string `json:"serverId"`
	Model    string `json:"model"`
	Vendor   string `json:"vendor"`
}

// ListServers returns all media servers in the system.
func (c *Client) ListServers(ctx context.Context) ([]Server, error) {
	var servers []Server
	if err := c.get(ctx, "/rest/v2/servers", &servers); err != nil {
		return nil, err
	}
	return servers, nil
}

// ListCameras returns all cameras in the system. Each camera carries the
// ID of the server currently hosting it.
func (c *Client) ListCameras(ctx context.Context) ([]Camera, error) {
	var cameras []Camera
	if err := c.get(ctx, "/rest/v2/devices?deviceType=Camera", &cameras); err != nil {
		return nil, err
	}
	return cameras, nil
}

// GenericEvent is a system-wide event injected into the Piko event log.
type GenericEvent struct {
	Source      string `json:"source"`
	Caption     string `json:"caption"`
	Description string `json:"description"`
}

// CreateEvent injects a generic event into the Piko system's event log.
func (c *Client) CreateEvent(ctx context.Context, e GenericEvent) error {
	path := fmt.Sprintf("/api/createEvent?source=%s&caption=%s&description=%s",
		queryEscape(e.Source), queryEscape(e.Caption), queryEscape(e.Description))
	return c.get(ctx, path, nil)
}

// Bookmark marks a time span on one camera's recorded footage.
type Bookmark struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	StartTimeMs int64  `json:"startTimeMs"`
	DurationMs  int64  `json:"durationMs"`
}

// CreateBookmark creates a bookmark on a camera, starting at start for
// the given duration.
func (c *Client) CreateBookmark(ctx context.Context, cameraID, name, description string, start time.Time, duration time.Duration) error {
	bookmark := Bookmark{
		Name:        name,
		Description: description,
		StartTimeMs: start.UnixMilli(),
		DurationMs:  duration.Milliseconds(),
	}
	path := fmt.Sprintf("/rest/v2/devices/%s/bookmarks", cameraID)
	return c.post(ctx, path, bookmark, nil)
}

// BestShotURL returns the URL of a camera frame at the given instant.
// The URL requires the caller's own session for retrieval; it is stored
// on events for the dashboard to resolve.
func (c *Client) BestShotURL(cameraID string, at time.Time) string {
	return fmt.Sprintf("%s/rest/v2/devices/%s/image?timestampMs=%d",
		c.http.BaseURL, cameraID, at.UnixMilli())
}
