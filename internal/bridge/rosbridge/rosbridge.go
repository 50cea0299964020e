// Package rosbridge implements bridge.Client over the rosbridge v2
// JSON-over-WebSocket protocol, adapted from the Home Assistant
// WebSocket client: a dialed gorilla/websocket connection, a
// background read loop that demultiplexes inbound frames, and a
// subscription table that is replayed after a reconnect.
package rosbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/nugget/simreq/internal/bridge"
)

// opMessage is the generic rosbridge v2 envelope: {"op": "...", ...}.
// Subscribe/unsubscribe frames carry topic and type; publish frames
// additionally carry msg.
type opMessage struct {
	Op    string          `json:"op"`
	ID    string          `json:"id,omitempty"`
	Topic string          `json:"topic,omitempty"`
	Type  string          `json:"type,omitempty"`
	Msg   json.RawMessage `json:"msg,omitempty"`
}

type subscriptionKey struct {
	topic       string
	messageType string
}

// Client is a bridge.Client backed by one rosbridge WebSocket
// connection. A single subscription op is sent the first time any
// handler registers for a (topic, messageType) pair; it is unsubscribed
// only once the last handler for that pair is removed.
type Client struct {
	url    string
	logger *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	subMu    sync.Mutex
	handlers map[subscriptionKey][]*bridge.Handler

	nextID atomic.Int64
}

// New constructs a Client for the given rosbridge WebSocket URL
// (ws://host:port or wss://host:port). Connect must be called before
// RegisterMessageHandler can deliver anything.
func New(wsURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:      wsURL,
		logger:   logger,
		handlers: make(map[subscriptionKey][]*bridge.Handler),
	}
}

// Connect dials the rosbridge WebSocket and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("rosbridge: parse url: %w", err)
	}

	dialer := websocket.Dialer{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("rosbridge: dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	go c.readLoop()

	c.resubscribeAll()
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) RegisterMessageHandler(topic, messageType string, handler *bridge.Handler) error {
	key := subscriptionKey{topic, messageType}

	c.subMu.Lock()
	existing := len(c.handlers[key])
	c.handlers[key] = append(c.handlers[key], handler)
	c.subMu.Unlock()

	if existing == 0 {
		return c.send(opMessage{Op: "subscribe", ID: c.newID(), Topic: topic, Type: messageType})
	}
	return nil
}

func (c *Client) RemoveMessageHandler(topic, messageType string, handler *bridge.Handler) error {
	key := subscriptionKey{topic, messageType}

	c.subMu.Lock()
	handlers := c.handlers[key]
	removed := false
	for i, h := range handlers {
		if h == handler {
			c.handlers[key] = append(handlers[:i], handlers[i+1:]...)
			removed = true
			break
		}
	}
	remaining := len(c.handlers[key])
	c.subMu.Unlock()

	if !removed {
		return fmt.Errorf("rosbridge: no such handler registered for %s/%s", topic, messageType)
	}
	if remaining == 0 {
		return c.send(opMessage{Op: "unsubscribe", ID: c.newID(), Topic: topic, Type: messageType})
	}
	return nil
}

func (c *Client) send(m opMessage) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("rosbridge: not connected")
	}
	return conn.WriteJSON(m)
}

func (c *Client) newID() string {
	return fmt.Sprintf("simreq-%d", c.nextID.Add(1))
}

// readLoop demultiplexes inbound "publish" frames to every handler
// registered for the frame's (topic, type).
func (c *Client) readLoop() {
	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			return
		}

		var msg opMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("rosbridge connection closed normally")
				return
			}
			c.logger.Error("rosbridge read error, connection lost", "error", err)
			return
		}

		if msg.Op != "publish" {
			continue
		}

		var decoded bridge.Message
		if err := json.Unmarshal(msg.Msg, &decoded); err != nil {
			c.logger.Warn("rosbridge: failed to decode message", "topic", msg.Topic, "error", err)
			continue
		}

		c.subMu.Lock()
		hs := append([]*bridge.Handler(nil), c.handlers[subscriptionKey{msg.Topic, msg.Type}]...)
		c.subMu.Unlock()

		for _, h := range hs {
			(*h)(decoded)
		}
	}
}

// resubscribeAll re-sends a subscribe op for every topic/type pair that
// currently has at least one live handler, for use after Connect
// re-establishes a connection that had prior subscriptions.
func (c *Client) resubscribeAll() {
	c.subMu.Lock()
	keys := make([]subscriptionKey, 0, len(c.handlers))
	for k, hs := range c.handlers {
		if len(hs) > 0 {
			keys = append(keys, k)
		}
	}
	c.subMu.Unlock()

	for _, k := range keys {
		if err := c.send(opMessage{Op: "subscribe", ID: c.newID(), Topic: k.topic, Type: k.messageType}); err != nil {
			c.logger.Error("rosbridge: failed to restore subscription", "topic", k.topic, "error", err)
		}
	}
}

var _ bridge.Client = (*Client)(nil)
