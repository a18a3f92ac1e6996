package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lightnode/internal/protocol"
)

// Client wraps paho.mqtt.golang for the light node's single session.
//
// Unlike a long-lived service client it never reconnects on its own; Open
// makes exactly one bounded attempt and the caller owns the retry policy.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   pahomqtt.Client
	clientID string

	// connected tracks the state observed through paho callbacks.
	connected bool
	connMu    sync.RWMutex

	onConnectionLost func(err error)
	callbackMu       sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked on paho's goroutines and must not block.
type MessageHandler func(topic string, payload []byte) error

// New creates a disconnected client. No network traffic happens until Open.
func New(cfg config.MQTTConfig, clientID string) *Client {
	c := &Client{clientID: clientID}

	opts := buildClientOptions(cfg, clientID)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.setConnected(true)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Open makes one connect attempt, bounded by ctx and the connect timeout.
func (c *Client) Open(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}

	timeout := defaultConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(timeout):
		c.abandon()
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	case <-ctx.Done():
		c.abandon()
		return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect callback runs asynchronously; mark connected here so
	// IsConnected is true as soon as Open returns.
	c.setConnected(true)
	return nil
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(protocol.TopicStatus, qosAtMostOnce, false, protocol.StatusOffline)
		token.WaitTimeout(defaultPublishTimeout)
		c.client.Disconnect(defaultDisconnectQuiesce)
	}
	c.setConnected(false)
	return nil
}

// IsConnected reports whether the session is up.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// Publish sends payload at QoS 0, not retained.
func (c *Client) Publish(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qosAtMostOnce, false, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers handler for topic at QoS 0. Subscriptions do not
// survive a disconnect; the session manager resubscribes on every open.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, qosAtMostOnce, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// SetOnConnectionLost sets a callback invoked when an open session drops.
func (c *Client) SetOnConnectionLost(callback func(err error)) {
	c.callbackMu.Lock()
	c.onConnectionLost = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for handler errors and panics.
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

// abandon cancels a connect attempt that is still in flight so a late
// CONNACK cannot leave a session the caller believes failed. Disconnect(0)
// returns at once; paho tears the attempt down when it completes.
func (c *Client) abandon() {
	c.client.Disconnect(0)
	c.setConnected(false)
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

func (c *Client) handleConnectionLost(err error) {
	c.setConnected(false)

	c.callbackMu.RLock()
	callback := c.onConnectionLost
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(handler, msg.Topic(), msg.Payload())
	}
}

func (c *Client) dispatch(handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", topic,
					"panic", r,
				)
			}
		}
	}()

	if err := handler(topic, payload); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler returned error",
				"topic", topic,
				"error", err,
			)
		}
	}
}
