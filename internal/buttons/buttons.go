// Package buttons turns the lamp's three push buttons into press events.
//
// Lines are active-low with the internal pull-up enabled, so a press is a
// falling edge. The kernel debounces where the chip supports it and a
// software guard drops edges closer together than the debounce period.
package buttons

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/config"
)

// Button identifies a physical button.
type Button int

const (
	Power Button = iota + 1
	Up
	Down
)

// String returns the lower-case button name.
func (b Button) String() string {
	switch b {
	case Power:
		return "power"
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

const (
	defaultDebounce = 50 * time.Millisecond
	eventBuffer     = 8
)

// Source delivers button presses from GPIO event handlers to the control
// goroutine.
type Source struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line

	offsets  map[int]Button
	debounce time.Duration
	now      func() time.Time

	mu        sync.Mutex
	lastPress map[Button]time.Time

	events  chan Button
	dropped atomic.Uint64
}

func newSource(offsets map[int]Button, debounce time.Duration) *Source {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Source{
		offsets:   offsets,
		debounce:  debounce,
		now:       time.Now,
		lastPress: make(map[Button]time.Time),
		events:    make(chan Button, eventBuffer),
	}
}

// Open requests the configured lines on the GPIO chip.
func Open(cfg config.ButtonsConfig) (*Source, error) {
	offsets := map[int]Button{cfg.Power: Power, cfg.Up: Up, cfg.Down: Down}
	if len(offsets) != 3 {
		return nil, fmt.Errorf("buttons: power, up and down must use distinct lines")
	}
	s := newSource(offsets, time.Duration(cfg.DebounceMS)*time.Millisecond)

	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("opening gpio chip %s: %w", cfg.Chip, err)
	}
	s.chip = chip

	for offset := range offsets {
		line, err := chip.RequestLine(offset,
			gpiocdev.AsInput,
			gpiocdev.WithPullUp,
			gpiocdev.WithFallingEdge,
			gpiocdev.WithDebounce(s.debounce),
			gpiocdev.WithEventHandler(s.handle),
		)
		if err != nil {
			s.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, fmt.Errorf("requesting gpio line %d: %w", offset, err)
		}
		s.lines = append(s.lines, line)
	}
	return s, nil
}

// Events returns the press channel. Presses are dropped when it is full.
func (s *Source) Events() <-chan Button {
	return s.events
}

// Dropped returns how many presses were discarded on overflow.
func (s *Source) Dropped() uint64 {
	return s.dropped.Load()
}

// Close releases the lines and the chip.
func (s *Source) Close() error {
	var errs []error
	for _, line := range s.lines {
		errs = append(errs, line.Close())
	}
	s.lines = nil
	if s.chip != nil {
		errs = append(errs, s.chip.Close())
		s.chip = nil
	}
	return errors.Join(errs...)
}

func (s *Source) handle(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventFallingEdge {
		return
	}
	b, ok := s.offsets[evt.Offset]
	if !ok {
		return
	}

	now := s.now()
	s.mu.Lock()
	last, seen := s.lastPress[b]
	if seen && now.Sub(last) < s.debounce {
		s.mu.Unlock()
		return
	}
	s.lastPress[b] = now
	s.mu.Unlock()

	select {
	case s.events <- b:
	default:
		s.dropped.Add(1)
	}
}
