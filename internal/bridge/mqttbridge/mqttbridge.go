// Package mqttbridge implements bridge.Client over MQTT: a long-lived
// ConnectionManager, a single inbound-message callback that
// demultiplexes to per-topic handlers, and resubscription driven by
// autopaho's own OnConnectionUp hook rather than a hand-rolled
// reconnect loop.
package mqttbridge

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nugget/simreq/internal/bridge"
)

// Config names the broker to dial and the client identity to present.
type Config struct {
	Broker   string // e.g. "mqtt://host:1883" or "mqtts://host:8883"
	Username string
	Password string
	ClientID string
}

type subscriptionKey struct {
	topic       string
	messageType string
}

// Client is a bridge.Client backed by one MQTT broker connection.
// messageType has no wire meaning for MQTT (unlike rosbridge's typed
// topics); it is kept purely as a local multiplexing key so a topic
// can carry independently-typed requirement subscriptions if needed.
type Client struct {
	cfg    Config
	logger *slog.Logger

	cm *autopaho.ConnectionManager

	mu         sync.Mutex
	handlers   map[subscriptionKey][]*bridge.Handler
	subscribed map[string]bool
}

// New constructs a Client but does not connect. Call Connect to dial
// the broker.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		logger:     logger,
		handlers:   make(map[subscriptionKey][]*bridge.Handler),
		subscribed: make(map[string]bool),
	}
}

// Connect dials the broker and blocks until the first connection (or
// ctx's deadline) completes; subsequent reconnects and resubscription
// are handled by autopaho in the background.
func (c *Client) Connect(ctx context.Context) error {
	brokerURL, err := url.Parse(c.cfg.Broker)
	if err != nil {
		return fmt.Errorf("mqttbridge: parse broker url: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: c.cfg.Username,
		ConnectPassword: []byte(c.cfg.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			c.logger.Info("mqttbridge connected", "broker", c.cfg.Broker)
			c.resubscribeAll(cm)
		},
		OnConnectError: func(err error) {
			c.logger.Warn("mqttbridge connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.ClientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqttbridge: connect: %w", err)
	}
	c.cm = cm

	cm.AddOnPublishReceived(func(pr autopaho.PublishReceived) (bool, error) {
		c.deliver(pr.Packet.Topic, pr.Packet.Payload)
		return true, nil
	})

	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		c.logger.Warn("mqttbridge initial connection timed out, retrying in background", "error", err)
	}
	return nil
}

// Close disconnects from the broker.
func (c *Client) Close(ctx context.Context) error {
	if c.cm == nil {
		return nil
	}
	return c.cm.Disconnect(ctx)
}

func (c *Client) RegisterMessageHandler(topic, messageType string, handler *bridge.Handler) error {
	key := subscriptionKey{topic, messageType}

	c.mu.Lock()
	firstForTopic := !c.subscribed[topic]
	c.handlers[key] = append(c.handlers[key], handler)
	c.subscribed[topic] = true
	c.mu.Unlock()

	if firstForTopic && c.cm != nil {
		return c.subscribeTopic(topic)
	}
	return nil
}

func (c *Client) RemoveMessageHandler(topic, messageType string, handler *bridge.Handler) error {
	key := subscriptionKey{topic, messageType}

	c.mu.Lock()
	handlers := c.handlers[key]
	removed := false
	for i, h := range handlers {
		if h == handler {
			c.handlers[key] = append(handlers[:i], handlers[i+1:]...)
			removed = true
			break
		}
	}
	anyLeftForTopic := false
	for k, hs := range c.handlers {
		if k.topic == topic && len(hs) > 0 {
			anyLeftForTopic = true
			break
		}
	}
	if !anyLeftForTopic {
		c.subscribed[topic] = false
	}
	c.mu.Unlock()

	if !removed {
		return fmt.Errorf("mqttbridge: no such handler registered for %s/%s", topic, messageType)
	}
	if !anyLeftForTopic && c.cm != nil {
		_, err := c.cm.Unsubscribe(context.Background(), &paho.Unsubscribe{Topics: []string{topic}})
		return err
	}
	return nil
}

func (c *Client) subscribeTopic(topic string) error {
	_, err := c.cm.Subscribe(context.Background(), &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: 0}},
	})
	return err
}

func (c *Client) resubscribeAll(cm *autopaho.ConnectionManager) {
	c.mu.Lock()
	topics := make([]string, 0, len(c.subscribed))
	for topic, on := range c.subscribed {
		if on {
			topics = append(topics, topic)
		}
	}
	c.mu.Unlock()

	for _, topic := range topics {
		if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: 0}},
		}); err != nil {
			c.logger.Error("mqttbridge: failed to restore subscription", "topic", topic, "error", err)
		}
	}
}

// deliver decodes a JSON payload and fans it out to every handler
// registered on topic, regardless of the messageType key they were
// registered under (MQTT carries no type on the wire).
func (c *Client) deliver(topic string, payload []byte) {
	var decoded bridge.Message
	if err := json.Unmarshal(payload, &decoded); err != nil {
		c.logger.Warn("mqttbridge: failed to decode payload", "topic", topic, "error", err)
		return
	}

	c.mu.Lock()
	var hs []*bridge.Handler
	for k, handlers := range c.handlers {
		if k.topic == topic {
			hs = append(hs, handlers...)
		}
	}
	c.mu.Unlock()

	for _, h := range hs {
		(*h)(decoded)
	}
}

var _ bridge.Client = (*Client)(nil)
