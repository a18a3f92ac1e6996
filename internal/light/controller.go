package light

import (
	"github.com/nerrad567/gray-logic-lightnode/internal/protocol"
)

// Lamp modes.
const (
	ModeOff    = 0
	ModeWhite  = 1
	ModeYellow = 2
	ModeBoth   = 3
)

// MaxDuty is the full-scale PWM duty value.
const MaxDuty = 255

const (
	defaultBrightness = 50
	defaultStep       = 10
)

// Snapshot is the lamp state.
type Snapshot struct {
	On         bool `json:"on"`
	Brightness int  `json:"brightness"`
	Mode       int  `json:"mode"`
}

// Change describes one state change for telemetry.
type Change struct {
	Snapshot
	StateChanged      bool
	BrightnessChanged bool
}

// Actuator drives the two PWM channels. Duty values are 0..MaxDuty.
type Actuator interface {
	Apply(white, yellow int) error
}

// Logger defines the logging interface for the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Options holds controller tunables.
type Options struct {
	// DefaultBrightness is used by TurnOn when nothing was saved.
	DefaultBrightness int

	// Step is the Increase/Decrease increment.
	Step int
}

// Controller owns the lamp state. It is not safe for concurrent use; the
// orchestrator calls it from the control goroutine.
type Controller struct {
	act    Actuator
	logger Logger
	opts   Options

	state Snapshot
	saved int

	listeners []func(Change)
}

// NewController creates a Controller with the lamp off and mode 0.
func NewController(act Actuator, opts Options) *Controller {
	if opts.DefaultBrightness <= 0 {
		opts.DefaultBrightness = defaultBrightness
	}
	if opts.Step <= 0 {
		opts.Step = defaultStep
	}
	return &Controller{act: act, logger: noopLogger{}, opts: opts}
}

// SetLogger sets the controller logger.
func (c *Controller) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// OnChange registers fn to be called after every state change.
func (c *Controller) OnChange(fn func(Change)) {
	c.listeners = append(c.listeners, fn)
}

// Snapshot returns the current lamp state.
func (c *Controller) Snapshot() Snapshot {
	return c.state
}

// TurnOn lights the lamp at the saved brightness.
func (c *Controller) TurnOn() {
	if c.saved == 0 {
		c.saved = c.opts.DefaultBrightness
	}
	c.state.On = true
	c.state.Brightness = c.saved
	c.write()
	c.notify(true, true)
}

// TurnOff darkens the lamp, remembering the brightness for the next TurnOn.
func (c *Controller) TurnOff() {
	c.state.On = false
	c.saved = c.state.Brightness
	c.state.Brightness = 0
	c.write()
	c.notify(true, false)
}

// Toggle turns the lamp off, or advances the mode and turns it on.
func (c *Controller) Toggle() {
	if c.state.On {
		c.TurnOff()
		return
	}
	c.AdvanceMode()
	c.TurnOn()
}

// AdvanceMode rotates 1→2→3→1. Mode 0 advances to 1.
func (c *Controller) AdvanceMode() {
	c.state.Mode++
	if c.state.Mode > ModeBoth {
		c.state.Mode = ModeWhite
	}
}

// Increase raises brightness by one step, or turns the lamp on when off.
func (c *Controller) Increase() {
	if !c.state.On {
		c.TurnOn()
		return
	}
	c.setBrightness(c.state.Brightness + c.opts.Step)
}

// Decrease lowers brightness by one step. It does nothing when off.
func (c *Controller) Decrease() {
	if !c.state.On {
		return
	}
	c.setBrightness(c.state.Brightness - c.opts.Step)
}

// SetLevel sets and remembers the brightness. The on/off state and mode
// are unchanged. While off no output is driven: the lamp stays dark and
// the level takes effect at the next TurnOn.
func (c *Controller) SetLevel(brightness int) {
	brightness = protocol.ClampBrightness(brightness)
	c.saved = brightness
	c.setBrightness(brightness)
}

func (c *Controller) setBrightness(b int) {
	c.state.Brightness = protocol.ClampBrightness(b)
	c.write()
	c.notify(false, true)
}

func (c *Controller) write() {
	white, yellow := Outputs(c.state)
	if err := c.act.Apply(white, yellow); err != nil {
		c.logger.Warn("actuator write failed", "error", err)
		return
	}
	c.logger.Debug("light output",
		"on", c.state.On,
		"brightness", c.state.Brightness,
		"mode", c.state.Mode,
		"white", white,
		"yellow", yellow,
	)
}

func (c *Controller) notify(stateChanged, brightnessChanged bool) {
	ch := Change{Snapshot: c.state, StateChanged: stateChanged, BrightnessChanged: brightnessChanged}
	for _, fn := range c.listeners {
		fn(ch)
	}
}

// Duty maps brightness 0..100 to PWM duty 0..MaxDuty.
func Duty(brightness int) int {
	return protocol.ClampBrightness(brightness) * MaxDuty / protocol.MaxBrightness
}

// Outputs returns the white and yellow duty for s.
func Outputs(s Snapshot) (white, yellow int) {
	if !s.On || s.Brightness == 0 {
		return 0, 0
	}
	d := Duty(s.Brightness)
	switch s.Mode {
	case ModeWhite:
		return d, 0
	case ModeYellow:
		return 0, d
	case ModeBoth:
		return d, d
	default:
		return 0, 0
	}
}
