package orchestrator

import (
	"time"

	"github.com/nerrad567/gray-logic-lightnode/internal/light"
)

// LinkStatus is the link part of a Status.
type LinkStatus struct {
	State        string `json:"state"`
	Network      string `json:"network,omitempty"`
	Address      string `json:"address,omitempty"`
	Retries      int    `json:"retries"`
	Provisioning bool   `json:"provisioning"`
}

// SessionStatus is the session part of a Status.
type SessionStatus struct {
	State     string `json:"state"`
	Attempts  int    `json:"attempts"`
	Exhausted bool   `json:"exhausted"`
}

// Status is an immutable view of the node published after every tick.
type Status struct {
	Link       LinkStatus     `json:"link"`
	Session    SessionStatus  `json:"session"`
	Light      light.Snapshot `json:"light"`
	Restarting bool           `json:"restarting"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// sameState reports whether a and b differ only in UpdatedAt.
func sameState(a, b *Status) bool {
	if a == nil || b == nil {
		return a == b
	}
	x, y := *a, *b
	x.UpdatedAt, y.UpdatedAt = time.Time{}, time.Time{}
	return x == y
}

// Status returns the latest published status. It is safe to call from
// any goroutine and never returns nil.
func (o *Orchestrator) Status() Status {
	if s := o.status.Load(); s != nil {
		return *s
	}
	return Status{}
}

func (o *Orchestrator) publishStatus() {
	next := &Status{
		Link: LinkStatus{
			State:        o.link.State().String(),
			Network:      o.link.NetworkName(),
			Address:      o.link.Address(),
			Retries:      o.link.RetryCount(),
			Provisioning: o.link.IsProvisioning(),
		},
		Session: SessionStatus{
			State:     o.session.State().String(),
			Attempts:  o.session.Attempts(),
			Exhausted: o.session.Exhausted(),
		},
		Light:      o.light.Snapshot(),
		Restarting: o.restarting,
		UpdatedAt:  o.clock.Now(),
	}

	prev := o.status.Swap(next)
	if o.onStatus != nil && !sameState(prev, next) {
		o.onStatus(*next)
	}
}
