package link

import "context"

// Radio is the association primitive of the wireless stack.
//
// Calls must return within a bounded time; the manager runs them on the
// control goroutine.
type Radio interface {
	// Join starts associating with the named network.
	Join(ctx context.Context, name, secret string) error

	// Reconnect retries association with the last joined network.
	Reconnect(ctx context.Context) error

	// Leave tears down any association.
	Leave(ctx context.Context) error

	// Associated reports whether the interface is associated and addressed.
	Associated() bool

	// NetworkName returns the currently associated network, or "".
	NetworkName() string

	// Address returns the interface address, or "".
	Address() string
}

// Provisioner is the zero-touch credential exchange. Completion is polled.
type Provisioner interface {
	Start(ctx context.Context) error
	Stop() error
	Done() bool
	Result() (name, secret string)
}

// RestartFunc performs a full device restart. It may return if the
// restart is asynchronous; the manager stops acting either way.
type RestartFunc func(reason string)

// Logger defines the logging interface for the link manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
