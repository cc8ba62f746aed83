package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for Fusion Bridge's event ingestion.
//
// All methods are safe for concurrent use. Subscriptions are restored
// automatically after a reconnect.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	// subscriptions remembers what to re-subscribe after a reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the subset of logging.Logger the client uses for handler
// failures.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription captures one topic registration.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler receives one inbound message.
//
// Handlers are invoked in separate goroutines by the paho library and
// should not block for extended periods. A returned error is logged but
// does not affect message acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker and waits for the session to come up.
//
// Auto-reconnect with exponential backoff is configured from cfg. When
// cfg.Broker.StatusTopic is set, a last-will message and online/offline
// status publishing are enabled on that topic.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)
	if cfg.Broker.StatusTopic != "" {
		configureLWT(opts, cfg.Broker.StatusTopic, cfg.Broker.ClientID)
	}

	c := &Client{
		cfg:           cfg,
		options:       opts,
		subscriptions: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnectHandler runs asynchronously and may not have executed
	// yet; set connected here so IsConnected() is true on return.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

// handleConnect runs on initial connect and every reconnect.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.restoreSubscriptions()
	c.publishOnlineStatus()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions replays every tracked topic registration against
// the fresh session.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		// A failed replay is retried on the next reconnect.
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// publishOnlineStatus announces the service on the status topic, when
// one is configured.
func (c *Client) publishOnlineStatus() {
	if c.cfg.Broker.StatusTopic == "" {
		return
	}
	payload := buildOnlinePayload(c.cfg.Broker.ClientID)
	c.client.Publish(c.cfg.Broker.StatusTopic, byte(c.cfg.QoS), true, payload)
}

// Close gracefully disconnects from the MQTT broker, publishing a
// graceful offline status first when a status topic is configured.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() && c.cfg.Broker.StatusTopic != "" {
		payload := buildOfflinePayload(c.cfg.Broker.ClientID)
		token := c.client.Publish(c.cfg.Broker.StatusTopic, byte(c.cfg.QoS), true, payload)
		token.WaitTimeout(defaultOpTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck reports whether the broker session is currently up.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked on initial connect and every
// reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger enables logging of handler errors and recovered panics.
// Without one they are dropped.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler adapts a MessageHandler to paho's signature, containing
// panics and logging handler errors.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("panic in MQTT handler",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler failed",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
