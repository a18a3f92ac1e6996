package session

import (
	"context"

	"github.com/nerrad567/gray-logic-lightnode/internal/protocol"
)

// Broker is the publish/subscribe transport.
type Broker interface {
	// Open makes one bounded connection attempt.
	Open(ctx context.Context) error

	// Close tears the session down.
	Close() error

	// IsConnected reports whether the transport still holds a session.
	IsConnected() bool

	// Publish sends payload at-most-once.
	Publish(topic string, payload []byte) error

	// Subscribe routes messages on topic to deliver. deliver is called on
	// transport goroutines.
	Subscribe(topic string, deliver func(topic string, payload []byte)) error
}

// LinkStatus is the view of the wireless link the session is gated on.
type LinkStatus interface {
	IsConnected() bool
	IsProvisioning() bool
}

// CommandHandler receives decoded commands on the control goroutine.
type CommandHandler func(cmd protocol.Command)

// Announcer supplies the status burst published after every open.
type Announcer func() []protocol.Message

// Logger defines the logging interface for the session manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
