package main

import (
	"context"

	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lightnode/internal/light"
	"github.com/nerrad567/gray-logic-lightnode/internal/link"
	"github.com/nerrad567/gray-logic-lightnode/internal/session"
)

// sessionBroker adapts the infrastructure MQTT client to session.Broker.
// The difference is the Subscribe handler signature:
//   - Infrastructure mqtt: func(topic, payload []byte) error
//   - Session manager expects: func(topic, payload []byte)
type sessionBroker struct {
	client *mqtt.Client
}

// Open implements session.Broker.
func (b *sessionBroker) Open(ctx context.Context) error {
	return b.client.Open(ctx)
}

// Close implements session.Broker.
func (b *sessionBroker) Close() error {
	return b.client.Close()
}

// IsConnected implements session.Broker.
func (b *sessionBroker) IsConnected() bool {
	return b.client.IsConnected()
}

// Publish implements session.Broker.
func (b *sessionBroker) Publish(topic string, payload []byte) error {
	return b.client.Publish(topic, payload)
}

// Subscribe implements session.Broker.
func (b *sessionBroker) Subscribe(topic string, deliver func(topic string, payload []byte)) error {
	return b.client.Subscribe(topic, func(t string, p []byte) error {
		deliver(t, p)
		return nil
	})
}

var _ session.Broker = (*sessionBroker)(nil)

// stateWriter is the subset of the InfluxDB client the notifier uses.
type stateWriter interface {
	WriteLinkState(from, to string, retries int)
	WriteSessionState(state string, attempts int)
	WriteLightState(on bool, brightness, mode int)
}

// influxNotifier turns transitions into time-series points. The counters
// are read when a transition happens, on the control goroutine.
type influxNotifier struct {
	client   stateWriter
	retries  func() int
	attempts func() int
}

// LinkChanged implements orchestrator.Notifier.
func (n *influxNotifier) LinkChanged(from, to link.State) {
	n.client.WriteLinkState(from.String(), to.String(), n.retries())
}

// SessionChanged implements orchestrator.Notifier.
func (n *influxNotifier) SessionChanged(_, to session.State) {
	n.client.WriteSessionState(to.String(), n.attempts())
}

// LightChanged implements orchestrator.Notifier.
func (n *influxNotifier) LightChanged(s light.Snapshot) {
	n.client.WriteLightState(s.On, s.Brightness, s.Mode)
}
