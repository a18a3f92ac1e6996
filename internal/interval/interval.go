// Package interval provides the elapsed-time gates that pace the node's
// periodic work.
//
// A Gate answers one question: has at least Period elapsed since the last
// time it fired? Gates never block and never spawn goroutines; the
// orchestrator polls them from its tick.
package interval

import (
	"sync"
	"time"
)

// Clock is the monotonic time source gates read.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock. time.Now carries a monotonic reading,
// so comparisons are immune to wall clock steps.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock that only moves when told to.
//
// Thread Safety:
//   - Safe for concurrent use.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current frozen instant.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Gate fires at most once per period.
//
// A gate that has never fired is due immediately. Gates are not safe for
// concurrent use; each belongs to a single owner.
type Gate struct {
	clock  Clock
	period time.Duration
	last   time.Time
	fired  bool
}

// NewGate creates a gate with the given period. A nil clock means SystemClock.
func NewGate(clock Clock, period time.Duration) *Gate {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Gate{clock: clock, period: period}
}

// Due reports whether the period has elapsed since the last mark.
func (g *Gate) Due() bool {
	if !g.fired {
		return true
	}
	return g.clock.Now().Sub(g.last) >= g.period
}

// Ready reports whether the gate is due and, if so, marks it.
func (g *Gate) Ready() bool {
	if !g.Due() {
		return false
	}
	g.Mark()
	return true
}

// Mark records now as the last firing.
func (g *Gate) Mark() {
	g.last = g.clock.Now()
	g.fired = true
}

// Reset forgets the last firing so the gate is due again.
func (g *Gate) Reset() {
	g.fired = false
	g.last = time.Time{}
}

// Elapsed returns the time since the last mark, or zero if never marked.
func (g *Gate) Elapsed() time.Duration {
	if !g.fired {
		return 0
	}
	return g.clock.Now().Sub(g.last)
}

// Period returns the configured period.
func (g *Gate) Period() time.Duration {
	return g.period
}
