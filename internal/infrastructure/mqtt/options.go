package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lightnode/internal/protocol"
)

// Connection constants.
const (
	// defaultConnectTimeout bounds a single connect attempt.
	defaultConnectTimeout = 5 * time.Second

	// defaultPublishTimeout bounds a publish or subscribe round trip.
	defaultPublishTimeout = 2 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// qosAtMostOnce is the only QoS the node uses.
	qosAtMostOnce = 0

	tlsMinVersion = tls.VersionTLS12
)

// buildClientOptions creates paho options for the light node.
//
// Reconnection is disabled: the session manager decides when to retry so
// it can gate attempts on wireless connectivity and bound them.
func buildClientOptions(cfg config.MQTTConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(defaultConnectTimeout)

	keepAlive := time.Duration(cfg.KeepAlive) * time.Second
	if keepAlive <= 0 {
		keepAlive = 60 * time.Second
	}
	opts.SetKeepAlive(keepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	configureLWT(opts)
	return opts
}

// configureLWT makes the broker announce light/status=offline when the
// node drops without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions) {
	opts.SetWill(protocol.TopicStatus, protocol.StatusOffline, qosAtMostOnce, false)
}
