package orchestrator

import (
	"errors"

	"github.com/nerrad567/gray-logic-lightnode/internal/protocol"
)

// ErrBusy is returned by Submit when the request queue is full.
var ErrBusy = errors.New("orchestrator: request queue full")

// RequestKind identifies an operator request.
type RequestKind int

const (
	// RequestReconnect tears the link down and rejoins with stored credentials.
	RequestReconnect RequestKind = iota + 1

	// RequestProvisioning opens the provisioning window.
	RequestProvisioning

	// RequestFactoryReset clears stored credentials and restarts.
	RequestFactoryReset

	// RequestSessionReset re-arms an exhausted session retry budget.
	RequestSessionReset

	// RequestCommand applies Command to the lamp.
	RequestCommand
)

// String returns the lower-case request name.
func (k RequestKind) String() string {
	switch k {
	case RequestReconnect:
		return "reconnect"
	case RequestProvisioning:
		return "provisioning"
	case RequestFactoryReset:
		return "factory_reset"
	case RequestSessionReset:
		return "session_reset"
	case RequestCommand:
		return "command"
	default:
		return "unknown"
	}
}

// Request is an operator action executed on the control goroutine.
type Request struct {
	Kind    RequestKind
	Command protocol.Command
}

// Submit queues r for the next Tick. It is safe to call from any goroutine.
func (o *Orchestrator) Submit(r Request) error {
	select {
	case o.requests <- r:
		return nil
	default:
		return ErrBusy
	}
}
