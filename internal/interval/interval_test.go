package interval

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestGate_FirstCallIsDue(t *testing.T) {
	g := NewGate(NewManualClock(epoch), 10*time.Second)

	if !g.Due() {
		t.Error("Due() on fresh gate = false, want true")
	}
	if !g.Ready() {
		t.Error("Ready() on fresh gate = false, want true")
	}
	if g.Due() {
		t.Error("Due() right after Ready() = true, want false")
	}
}

func TestGate_FiresOncePerPeriod(t *testing.T) {
	clock := NewManualClock(epoch)
	g := NewGate(clock, 2*time.Second)
	g.Mark()

	tests := []struct {
		advance time.Duration
		want    bool
	}{
		{500 * time.Millisecond, false},
		{1499 * time.Millisecond, false},
		{1 * time.Millisecond, true}, // exactly 2s
		{1 * time.Second, false},
		{1 * time.Second, true},
		{10 * time.Second, true},
	}

	for i, tt := range tests {
		clock.Advance(tt.advance)
		if got := g.Ready(); got != tt.want {
			t.Errorf("step %d: Ready() = %v, want %v", i, got, tt.want)
		}
	}
}

func TestGate_ResetAndElapsed(t *testing.T) {
	clock := NewManualClock(epoch)
	g := NewGate(clock, 5*time.Second)

	if got := g.Elapsed(); got != 0 {
		t.Errorf("Elapsed() before mark = %v, want 0", got)
	}

	g.Mark()
	clock.Advance(3 * time.Second)
	if got := g.Elapsed(); got != 3*time.Second {
		t.Errorf("Elapsed() = %v, want 3s", got)
	}
	if g.Due() {
		t.Error("Due() = true before period elapsed")
	}

	g.Reset()
	if !g.Due() {
		t.Error("Due() after Reset() = false, want true")
	}
	if g.Period() != 5*time.Second {
		t.Errorf("Period() = %v, want 5s", g.Period())
	}
}

func TestNewGate_NilClock(t *testing.T) {
	g := NewGate(nil, time.Hour)
	if !g.Ready() {
		t.Error("Ready() on fresh gate = false, want true")
	}
	if g.Ready() {
		t.Error("Ready() twice within an hour = true, want false")
	}
}
