// Package automation provides event-triggered automations.
//
// An automation pairs a trigger (which events qualify) with an ordered
// list of actions. Actions carry template strings whose {{token}}
// placeholders are substituted from the triggering event at execution
// time. Each qualifying event executes an automation at most once; a
// failed action is recorded but never blocks the actions after it.
package automation

import (
	"time"

	"github.com/google/uuid"
)

// Trigger decides which events an automation responds to.
type Trigger struct {
	// SourceConnectorID restricts to one connector. Empty means any
	// connector (subject to ConnectorCategory).
	SourceConnectorID string `json:"sourceConnectorId,omitempty"`

	// ConnectorCategory restricts to one vendor when no specific
	// connector is set.
	ConnectorCategory string `json:"connectorCategory,omitempty"`

	// DeviceTypes restricts to events from devices of these
	// standardised types. Empty means any type.
	DeviceTypes []string `json:"deviceTypes,omitempty"`

	// EventTypeFilter matches the event type, with a trailing "*"
	// wildcard ("motion.*" matches "motion.detected"). Empty matches
	// everything.
	EventTypeFilter string `json:"eventTypeFilter,omitempty"`
}

// ActionType identifies what an action does.
type ActionType string

const (
	ActionCreateEvent     ActionType = "createEvent"
	ActionCreateBookmark  ActionType = "createBookmark"
	ActionSendHTTPRequest ActionType = "sendHttpRequest"
)

// IsValid reports whether the action type is a known value.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionCreateEvent, ActionCreateBookmark, ActionSendHTTPRequest:
		return true
	}
	return false
}

// Action is one step of an automation. Exactly one of the typed
// configurations is set, matching Type.
type Action struct {
	Type ActionType `json:"type"`

	CreateEvent     *CreateEventAction     `json:"createEvent,omitempty"`
	CreateBookmark  *CreateBookmarkAction  `json:"createBookmark,omitempty"`
	SendHTTPRequest *SendHTTPRequestAction `json:"sendHttpRequest,omitempty"`
}

// CreateEventAction appends a new event to the store. All string fields
// are templated. When TargetConnectorID names a Piko connector, the
// rendered event is additionally injected into that system's event log.
type CreateEventAction struct {
	Category          string            `json:"category"`
	Type              string            `json:"eventType"`
	Subtype           string            `json:"subtype,omitempty"`
	Payload           map[string]string `json:"payload,omitempty"`
	TargetConnectorID string            `json:"targetConnectorId,omitempty"`
}

// CreateBookmarkAction creates a bookmark on a Piko camera. Name and
// Description are templated. When CameraDeviceID is empty the camera is
// resolved through the triggering device's camera associations.
type CreateBookmarkAction struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	DurationSeconds int    `json:"durationSeconds"`
	CameraDeviceID  string `json:"cameraDeviceId,omitempty"`
}

// Header is one HTTP header on a sendHttpRequest action. Values are
// templated.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SendHTTPRequestAction performs an HTTP call to an external endpoint.
// URL, header values and Body are templated. Body and ContentType apply
// only to POST, PUT and PATCH requests; they are omitted for GET and
// DELETE.
type SendHTTPRequestAction struct {
	URL         string   `json:"url"`
	Method      string   `json:"method"`
	Headers     []Header `json:"headers,omitempty"`
	ContentType string   `json:"contentType,omitempty"`
	Body        string   `json:"body,omitempty"`
}

// Automation is a stored trigger/actions pair.
type Automation struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Enabled        bool      `json:"enabled"`
	Trigger        Trigger   `json:"trigger"`
	Actions        []Action  `json:"actions"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ExecutionStatus is the outcome of one automation run.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionPartial   ExecutionStatus = "partial"
)

// ActionFailure records one failed action within an execution.
type ActionFailure struct {
	Index      int    `json:"index"`
	ActionType string `json:"actionType"`
	Error      string `json:"error"`
}

// Execution records one automation run against one event.
type Execution struct {
	ID           string          `json:"id"`
	AutomationID string          `json:"automationId"`
	EventID      string          `json:"eventId"`
	Status       ExecutionStatus `json:"status"`
	Failures     []ActionFailure `json:"failures,omitempty"`
	StartedAt    time.Time       `json:"startedAt"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
}

// GenerateID creates a new UUID for an automation or execution.
func GenerateID() string {
	return uuid.New().String()
}
