package provisioning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-lightnode/internal/credentials"
)

// Advertiser announces the node while provisioning is open.
type Advertiser interface {
	Advertise(ctx context.Context) error
	Withdraw() error
}

// Logger defines the logging interface for the exchange.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Exchange is a one-shot credential hand-off window.
//
// Thread Safety:
//   - Start, Stop, Done and Result are called from the control goroutine;
//     Submit and Snapshot from API handlers. All are safe for concurrent use.
type Exchange struct {
	advertiser Advertiser
	logger     Logger

	mu        sync.Mutex
	active    bool
	done      bool
	name      string
	secret    string
	openedAt  time.Time
	submitted time.Time
}

// NewExchange creates a closed exchange. A nil advertiser disables mDNS.
func NewExchange(advertiser Advertiser) *Exchange {
	return &Exchange{advertiser: advertiser, logger: noopLogger{}}
}

// SetLogger sets the logger for the exchange.
func (e *Exchange) SetLogger(logger Logger) {
	e.logger = logger
}

// Start opens the window and begins advertising. Any previous result is
// discarded. An advertising failure is logged; submissions still work.
func (e *Exchange) Start(ctx context.Context) error {
	e.mu.Lock()
	e.active = true
	e.done = false
	e.name, e.secret = "", ""
	e.openedAt = time.Now()
	e.mu.Unlock()

	if e.advertiser != nil {
		if err := e.advertiser.Advertise(ctx); err != nil {
			e.logger.Warn("mDNS advertisement failed", "error", err)
		}
	}
	return nil
}

// Stop closes the window and withdraws the advertisement.
func (e *Exchange) Stop() error {
	e.mu.Lock()
	wasActive := e.active
	e.active = false
	e.mu.Unlock()

	if wasActive && e.advertiser != nil {
		if err := e.advertiser.Withdraw(); err != nil {
			return fmt.Errorf("withdrawing advertisement: %w", err)
		}
	}
	return nil
}

// Submit hands credentials to the node.
func (e *Exchange) Submit(name, secret string) error {
	c := credentials.Credentials{NetworkName: name, Secret: secret}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return ErrNotActive
	}
	if e.done {
		return ErrAlreadyComplete
	}
	e.name, e.secret = name, secret
	e.done = true
	e.submitted = time.Now()

	e.logger.Info("credentials submitted", "network", name)
	return nil
}

// Done reports whether credentials were submitted in the current window.
func (e *Exchange) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active && e.done
}

// Result returns the submitted credentials.
func (e *Exchange) Result() (name, secret string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name, e.secret
}

// Snapshot is the exchange state exposed to the operator API.
type Snapshot struct {
	Active    bool      `json:"active"`
	Done      bool      `json:"done"`
	OpenedAt  time.Time `json:"opened_at,omitempty"`
	Submitted time.Time `json:"submitted_at,omitempty"`
}

// Snapshot returns the exchange state without the secret.
func (e *Exchange) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Active:    e.active,
		Done:      e.done,
		OpenedAt:  e.openedAt,
		Submitted: e.submitted,
	}
}
