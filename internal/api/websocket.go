package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fusionbridge/fusion-bridge-core/internal/event"
	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/config"
	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/logging"
	"github.com/fusionbridge/fusion-bridge-core/internal/org"
)

// Message types on the WebSocket wire.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// Channels clients can subscribe to.
	ChannelEventCreated       = "event.created"
	ChannelDeviceStateChanged = "device.state_changed"

	// wsSendBufferSize bounds each client's outbound queue; broadcasts to
	// a full queue are dropped rather than blocking the hub.
	wsSendBufferSize = 256
)

// WSMessage is the envelope for every frame in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload carries the channel list for subscribe and
// unsubscribe frames.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub tracks connected dashboard clients and fans events out to those in
// the event's organisation. It also implements the event sink interface,
// so the sync service and the MQTT ingestor push straight into it.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex

	// muted lists connectors whose broadcasts are suppressed through the
	// websocket-toggle endpoint. Events are still ingested and stored.
	muted   map[string]struct{}
	mutedMu sync.RWMutex
}

// WSClient is one connected dashboard session.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
	// Identity copied from the single-use ticket at upgrade time.
	userID string
	orgID  string
	role   org.Role
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin filtering already happened in the CORS middleware.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
		muted:   make(map[string]struct{}),
	}
}

// Run blocks until the context ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// Unregister removes a client. The send channel is closed by whichever
// caller actually removed the entry; a second Unregister for the same
// client is a no-op, so shutdown and readPump exit can race safely.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, present := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if present {
		close(client.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// SetConnectorBroadcast mutes or unmutes one connector's broadcasts.
func (h *Hub) SetConnectorBroadcast(connectorID string, enabled bool) {
	h.mutedMu.Lock()
	if enabled {
		delete(h.muted, connectorID)
	} else {
		h.muted[connectorID] = struct{}{}
	}
	h.mutedMu.Unlock()
}

// ConnectorBroadcastEnabled reports whether a connector's events reach
// clients.
func (h *Hub) ConnectorBroadcastEnabled(connectorID string) bool {
	h.mutedMu.RLock()
	defer h.mutedMu.RUnlock()
	_, muted := h.muted[connectorID]
	return !muted
}

// Broadcast delivers a payload on the given channel to every subscribed
// client of the organisation. The recipient list is snapshotted under the
// hub lock and sends happen after it is released, so a slow client never
// stalls registration.
func (h *Hub) Broadcast(orgID, channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding broadcast", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	recipients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		if client.orgID == orgID {
			recipients = append(recipients, client)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range recipients {
		if client.isSubscribed(channel) {
			client.trySend(data)
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("broadcast delivered", "channel", channel, "recipients", delivered)
	}
}

// EventIngested pushes a freshly ingested event to dashboard clients.
// Everything goes out on event.created; device-state events additionally
// produce a compact device.state_changed frame. Muted connectors are
// skipped entirely.
func (h *Hub) EventIngested(_ context.Context, evt *event.Event) {
	if !h.ConnectorBroadcastEnabled(evt.ConnectorID) {
		return
	}

	h.Broadcast(evt.OrganizationID, ChannelEventCreated, evt)
	if evt.Category != event.CategoryDeviceState {
		return
	}
	h.Broadcast(evt.OrganizationID, ChannelDeviceStateChanged, map[string]any{
		"deviceId":     evt.DeviceID,
		"deviceName":   evt.DeviceName,
		"connectorId":  evt.ConnectorID,
		"displayState": evt.DisplayState,
		"alarm":        evt.Alarm,
		"timestamp":    evt.Timestamp.UTC().Format(time.RFC3339),
	})
}

// ClientCount returns how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

// handleWebSocket upgrades the connection. Auth is a single-use ticket in
// the query string, issued by POST /auth/ws-ticket, because browsers
// cannot attach Authorization headers to upgrade requests.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		respondUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := validateTicket(ticket)
	if !ok {
		respondUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.Hub(),
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		userID:        entry.userID,
		orgID:         entry.orgID,
		role:          entry.role,
	}

	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readDeadlineWindow is how long a connection may stay silent before the
// read side gives up: one ping interval plus the pong grace period.
func readDeadlineWindow(cfg config.WebSocketConfig) time.Duration {
	return time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
}

// readPump consumes frames until the connection drops, then unregisters
// the client.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	window := readDeadlineWindow(cfg)
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	//nolint:errcheck // deadline errors surface on the next read
	c.conn.SetReadDeadline(time.Now().Add(window))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(window))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		// Any inbound frame counts as liveness; some browsers never answer
		// protocol pings.
		//nolint:errcheck // deadline errors surface on the next read
		c.conn.SetReadDeadline(time.Now().Add(window))
		c.handleMessage(raw)
	}
}

// writePump drains the send queue and keeps the connection alive with
// periodic pings.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, open := <-c.send:
			if !open {
				//nolint:errcheck // connection is going away regardless
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // a stuck deadline shows up as a write error
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // a stuck deadline shows up as a write error
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(raw []byte) {
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		channels, ok := decodeChannels(msg)
		if !ok {
			c.sendError(msg.ID, "invalid subscribe payload")
			return
		}
		c.mu.Lock()
		for _, ch := range channels {
			c.subscriptions[ch] = struct{}{}
		}
		c.mu.Unlock()
		c.hub.logger.Info("websocket client subscribed", "channels", channels)
		c.sendResponse(msg.ID, WSTypeResponse, map[string]any{"subscribed": channels})
	case WSTypeUnsubscribe:
		channels, ok := decodeChannels(msg)
		if !ok {
			c.sendError(msg.ID, "invalid unsubscribe payload")
			return
		}
		c.mu.Lock()
		for _, ch := range channels {
			delete(c.subscriptions, ch)
		}
		c.mu.Unlock()
		c.sendResponse(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// decodeChannels re-decodes a frame's payload as a channel list.
func decodeChannels(msg WSMessage) ([]string, bool) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, false
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, false
	}
	return sub.Channels, true
}

// trySend queues data for the client. A full queue drops the frame and a
// closed channel (client torn down mid-broadcast) is absorbed.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on closed channel during teardown
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
