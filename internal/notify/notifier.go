// Package notify pushes alarm events out to an organisation's configured
// notification services and files tracker issues for devices that drop
// offline.
//
// The Notifier registers as an event sink alongside the automation engine
// and the WebSocket hub. Which services fire is driven entirely by the
// organisation's service configurations: no Pushover row, no push. Send
// failures are logged and never propagate into event ingestion.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fusionbridge/fusion-bridge-core/internal/device"
	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/linear"
	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/openai"
	"github.com/fusionbridge/fusion-bridge-core/internal/drivers/push"
	"github.com/fusionbridge/fusion-bridge-core/internal/event"
	"github.com/fusionbridge/fusion-bridge-core/internal/servicecfg"
)

// Logger is the logging interface the notifier depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Pusher sends one push notification.
type Pusher interface {
	Send(ctx context.Context, n push.Notification) error
}

// Summariser condenses an event digest into a short human-readable
// message.
type Summariser interface {
	Summarise(ctx context.Context, digest string) (string, error)
}

// IssueCreator files a tracker issue.
type IssueCreator interface {
	CreateIssue(ctx context.Context, teamID, title, description string) (*linear.Issue, error)
}

// Factories build clients from an organisation's service configuration.
// Tests replace them with fakes.
type (
	PusherFactory     func(cfg *servicecfg.ServiceConfiguration) Pusher
	SummariserFactory func(cfg *servicecfg.ServiceConfiguration) Summariser
	IssueFactory      func(cfg *servicecfg.ServiceConfiguration) IssueCreator
)

// pushcutPusher binds a Pushcut client to its notification slot so it
// satisfies the same Pusher interface as Pushover.
type pushcutPusher struct {
	client *push.PushcutClient
	name   string
}

func (p *pushcutPusher) Send(ctx context.Context, n push.Notification) error {
	return p.client.Send(ctx, p.name, n)
}

// Notifier fans ingested events out to configured services.
type Notifier struct {
	configs servicecfg.Repository
	logger  Logger
	timeout time.Duration

	pushoverFactory   PusherFactory
	pushcutFactory    PusherFactory
	summariserFactory SummariserFactory
	issueFactory      IssueFactory

	pushoverBaseURL string
	pushcutBaseURL  string
	openaiBaseURL   string
	linearBaseURL   string
	linearUseMock   bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the notifier logger.
func WithLogger(l Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// WithTimeout bounds each outbound service call.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) { n.timeout = d }
}

// WithLinearMockData routes Linear calls to canned fixtures.
func WithLinearMockData(useMock bool) Option {
	return func(n *Notifier) { n.linearUseMock = useMock }
}

// WithServiceBaseURLs overrides the service endpoints. Empty strings use
// each driver's production default.
func WithServiceBaseURLs(pushover, pushcut, openaiURL, linearURL string) Option {
	return func(n *Notifier) {
		n.pushoverBaseURL = pushover
		n.pushcutBaseURL = pushcut
		n.openaiBaseURL = openaiURL
		n.linearBaseURL = linearURL
	}
}

// WithPushoverFactory overrides the Pushover client factory.
func WithPushoverFactory(f PusherFactory) Option {
	return func(n *Notifier) { n.pushoverFactory = f }
}

// WithPushcutFactory overrides the Pushcut client factory.
func WithPushcutFactory(f PusherFactory) Option {
	return func(n *Notifier) { n.pushcutFactory = f }
}

// WithSummariserFactory overrides the OpenAI client factory.
func WithSummariserFactory(f SummariserFactory) Option {
	return func(n *Notifier) { n.summariserFactory = f }
}

// WithIssueFactory overrides the Linear client factory.
func WithIssueFactory(f IssueFactory) Option {
	return func(n *Notifier) { n.issueFactory = f }
}

// New creates a notifier. Client factories default to the real drivers.
func New(configs servicecfg.Repository, opts ...Option) *Notifier {
	n := &Notifier{
		configs: configs,
		logger:  noopLogger{},
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}

	if n.pushoverFactory == nil {
		n.pushoverFactory = func(cfg *servicecfg.ServiceConfiguration) Pusher {
			return push.NewPushoverClient(n.pushoverBaseURL, cfg.ConfigString("token"), cfg.ConfigString("userKey"), n.timeout)
		}
	}
	if n.pushcutFactory == nil {
		n.pushcutFactory = func(cfg *servicecfg.ServiceConfiguration) Pusher {
			return &pushcutPusher{
				client: push.NewPushcutClient(n.pushcutBaseURL, cfg.ConfigString("apiKey"), n.timeout),
				name:   cfg.ConfigString("notificationName"),
			}
		}
	}
	if n.summariserFactory == nil {
		n.summariserFactory = func(cfg *servicecfg.ServiceConfiguration) Summariser {
			return openai.NewClient(n.openaiBaseURL, cfg.ConfigString("apiKey"), cfg.ConfigString("model"), n.timeout)
		}
	}
	if n.issueFactory == nil {
		n.issueFactory = func(cfg *servicecfg.ServiceConfiguration) IssueCreator {
			return linear.NewClient(n.linearBaseURL, cfg.ConfigString("apiKey"), n.linearUseMock, n.timeout)
		}
	}
	return n
}

// EventIngested routes one event to the organisation's services. Alarm
// events become push notifications; devices dropping offline become
// tracker issues.
func (n *Notifier) EventIngested(ctx context.Context, e *event.Event) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	if e.Alarm {
		n.sendPushes(ctx, e)
	}
	if e.DisplayState == device.DisplayStateOffline {
		n.fileOfflineIssue(ctx, e)
	}
}

func (n *Notifier) sendPushes(ctx context.Context, e *event.Event) {
	message := n.composeMessage(ctx, e)
	notification := push.Notification{
		Title:   fmt.Sprintf("Alarm: %s", e.DeviceName),
		Message: message,
	}

	for _, target := range []struct {
		serviceType servicecfg.Type
		factory     PusherFactory
	}{
		{servicecfg.TypePushover, n.pushoverFactory},
		{servicecfg.TypePushcut, n.pushcutFactory},
	} {
		cfg, ok := n.enabledConfig(ctx, e.OrganizationID, target.serviceType)
		if !ok {
			continue
		}

		if err := target.factory(cfg).Send(ctx, notification); err != nil {
			n.logger.Error("push notification failed",
				"service", string(target.serviceType),
				"organization_id", e.OrganizationID,
				"event_id", e.ID,
				"error", err)
			continue
		}
		n.logger.Debug("push notification sent",
			"service", string(target.serviceType), "event_id", e.ID)
	}
}

// composeMessage builds the notification body, routed through the
// organisation's OpenAI summariser when one is configured.
func (n *Notifier) composeMessage(ctx context.Context, e *event.Event) string {
	digest := fmt.Sprintf("%s reported %s (%s) at %s",
		e.DeviceName, e.Type, e.DisplayState, e.Timestamp.Format(time.RFC3339))

	cfg, ok := n.enabledConfig(ctx, e.OrganizationID, servicecfg.TypeOpenAI)
	if !ok {
		return digest
	}

	summary, err := n.summariserFactory(cfg).Summarise(ctx, digest)
	if err != nil {
		n.logger.Warn("event summarisation failed, sending digest",
			"organization_id", e.OrganizationID, "error", err)
		return digest
	}
	return summary
}

func (n *Notifier) fileOfflineIssue(ctx context.Context, e *event.Event) {
	cfg, ok := n.enabledConfig(ctx, e.OrganizationID, servicecfg.TypeLinear)
	if !ok {
		return
	}

	title := fmt.Sprintf("Device offline: %s", e.DeviceName)
	description := fmt.Sprintf("Device %s (%s connector) went offline at %s.",
		e.DeviceName, e.ConnectorCategory, e.Timestamp.Format(time.RFC3339))

	issue, err := n.issueFactory(cfg).CreateIssue(ctx, cfg.ConfigString("teamId"), title, description)
	if err != nil {
		n.logger.Error("filing offline issue failed",
			"organization_id", e.OrganizationID, "device_id", e.DeviceID, "error", err)
		return
	}
	n.logger.Info("offline issue filed",
		"device_id", e.DeviceID, "issue_id", issue.ID)
}

// enabledConfig fetches an organisation's configuration for a service,
// returning false when it is absent or disabled.
func (n *Notifier) enabledConfig(ctx context.Context, orgID string, t servicecfg.Type) (*servicecfg.ServiceConfiguration, bool) {
	cfg, err := n.configs.GetByType(ctx, orgID, t)
	if err != nil {
		if !errors.Is(err, servicecfg.ErrNotFound) {
			n.logger.Error("loading service configuration",
				"service", string(t), "organization_id", orgID, "error", err)
		}
		return nil, false
	}
	if !cfg.Enabled {
		return nil, false
	}
	return cfg, true
}
