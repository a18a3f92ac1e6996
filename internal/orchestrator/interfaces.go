package orchestrator

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-lightnode/internal/light"
	"github.com/nerrad567/gray-logic-lightnode/internal/link"
	"github.com/nerrad567/gray-logic-lightnode/internal/protocol"
	"github.com/nerrad567/gray-logic-lightnode/internal/session"
)

// Link is the wireless link manager as seen by the loop.
type Link interface {
	Begin(ctx context.Context)
	Update(ctx context.Context)
	ForceReconnect(ctx context.Context)
	StartProvisioning(ctx context.Context)
	OnStateChange(fn func(from, to link.State))

	State() link.State
	IsProvisioning() bool
	RetryCount() int
	NetworkName() string
	Address() string
}

// Session is the MQTT session manager as seen by the loop.
type Session interface {
	Tick(ctx context.Context)
	Drain()
	Publish(topic, payload string) error
	ResetAttempts()
	SetCommandHandler(h session.CommandHandler)
	SetAnnouncer(a session.Announcer)
	OnStateChange(fn func(from, to session.State))

	State() session.State
	Attempts() int
	Exhausted() bool
}

// Notifier receives every link, session and lamp change.
type Notifier interface {
	LinkChanged(from, to link.State)
	SessionChanged(from, to session.State)
	LightChanged(s light.Snapshot)
}

// Metrics receives loop measurements.
type Metrics interface {
	ObserveTick(d time.Duration)
	ObserveCounters(linkRetries, sessionAttempts int)
	CommandApplied(kind, origin string)
}

// Logger defines the logging interface for the orchestrator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

type noopMetrics struct{}

func (noopMetrics) ObserveTick(time.Duration)     {}
func (noopMetrics) ObserveCounters(int, int)      {}
func (noopMetrics) CommandApplied(string, string) {}

// announce builds the post-open status burst from the lamp state.
func announce(c *light.Controller) session.Announcer {
	return func() []protocol.Message {
		s := c.Snapshot()
		return protocol.StatusBurst(s.On, s.Brightness, s.Mode)
	}
}
