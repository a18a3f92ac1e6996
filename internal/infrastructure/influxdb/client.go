package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	// Transitions are rare, so small batches flushed often keep the
	// dashboard close to live without holding points in memory.
	defaultBatchSize     = 20
	defaultFlushInterval = 10 // seconds
)

// Client writes connectivity telemetry points tagged with the node's
// device ID. Writes never block the control goroutine: points are batched
// by the library and failures arrive on the error callback.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	deviceID string

	connected   atomic.Bool
	writeErrors atomic.Uint64

	mu      sync.RWMutex
	onError func(err error)
}

// Connect creates the client and pings the server once. A node without a
// reachable InfluxDB still runs; main treats the error as a warning.
//
// Parameters:
//   - ctx: Bounds the initial ping together with the connect timeout
//   - cfg: InfluxDB configuration from config.yaml
//   - deviceID: Tag value attached to every point
func Connect(ctx context.Context, cfg config.InfluxDBConfig, deviceID string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		deviceID: deviceID,
	}
	c.connected.Store(true)
	go c.drainErrors(c.writeAPI.Errors())

	return c, nil
}

// clientOptions maps the batch settings, falling back to defaults for
// non-positive values.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flushSec := uint(defaultFlushInterval)
	if cfg.FlushInterval > 0 {
		flushSec = uint(cfg.FlushInterval)
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(flushSec * uint(time.Second/time.Millisecond))
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

// drainErrors counts async write failures and forwards them to the callback.
func (c *Client) drainErrors(errs <-chan error) {
	for err := range errs {
		c.writeErrors.Add(1)

		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()
		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError registers a callback for async write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// WriteErrors returns how many batches failed to write.
func (c *Client) WriteErrors() uint64 {
	return c.writeErrors.Load()
}

// IsConnected reports whether the client is open. It is not a liveness
// probe; use HealthCheck for that.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(checkCtx, c.client); err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	return nil
}

// Flush sends buffered points now. It is a no-op after Close.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}

// Close flushes pending points and releases the client. Safe to call twice.
func (c *Client) Close() error {
	if !c.connected.CompareAndSwap(true, false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
