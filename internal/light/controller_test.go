package light

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingActuator struct {
	writes [][2]int
	err    error
}

func (a *recordingActuator) Apply(white, yellow int) error {
	a.writes = append(a.writes, [2]int{white, yellow})
	return a.err
}

func (a *recordingActuator) last() [2]int {
	return a.writes[len(a.writes)-1]
}

func newTestController() (*Controller, *recordingActuator, *[]Change) {
	act := &recordingActuator{}
	c := NewController(act, Options{})
	var changes []Change
	c.OnChange(func(ch Change) { changes = append(changes, ch) })
	return c, act, &changes
}

// ============================================================================
// Output mapping
// ============================================================================

func TestOutputs(t *testing.T) {
	tests := []struct {
		name       string
		s          Snapshot
		white, yel int
	}{
		{"off", Snapshot{On: false, Brightness: 80, Mode: ModeBoth}, 0, 0},
		{"zero brightness", Snapshot{On: true, Brightness: 0, Mode: ModeWhite}, 0, 0},
		{"mode zero", Snapshot{On: true, Brightness: 100, Mode: ModeOff}, 0, 0},
		{"white", Snapshot{On: true, Brightness: 100, Mode: ModeWhite}, 255, 0},
		{"yellow", Snapshot{On: true, Brightness: 100, Mode: ModeYellow}, 0, 255},
		{"both half", Snapshot{On: true, Brightness: 50, Mode: ModeBoth}, 127, 127},
		{"unknown mode", Snapshot{On: true, Brightness: 50, Mode: 7}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, y := Outputs(tt.s)
			if w != tt.white || y != tt.yel {
				t.Errorf("Outputs(%+v) = (%d, %d), want (%d, %d)", tt.s, w, y, tt.white, tt.yel)
			}
		})
	}
}

func TestDuty(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 0}, {10, 25}, {50, 127}, {100, 255}, {150, 255}, {-5, 0},
	}
	for _, tt := range tests {
		if got := Duty(tt.in); got != tt.want {
			t.Errorf("Duty(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// ============================================================================
// Controller behaviour
// ============================================================================

func TestTurnOn_DefaultBrightness(t *testing.T) {
	c, act, changes := newTestController()
	c.AdvanceMode()
	c.TurnOn()

	s := c.Snapshot()
	if !s.On || s.Brightness != 50 || s.Mode != ModeWhite {
		t.Errorf("Snapshot() = %+v, want on/50/white", s)
	}
	if act.last() != [2]int{127, 0} {
		t.Errorf("last write = %v, want [127 0]", act.last())
	}
	if len(*changes) != 1 || !(*changes)[0].StateChanged || !(*changes)[0].BrightnessChanged {
		t.Errorf("changes = %+v, want one state+brightness change", *changes)
	}
}

func TestTurnOff_RestoresOnNextTurnOn(t *testing.T) {
	c, act, _ := newTestController()
	c.Toggle()
	c.SetLevel(80)
	c.TurnOff()

	if s := c.Snapshot(); s.On || s.Brightness != 0 {
		t.Errorf("Snapshot() after off = %+v, want off/0", s)
	}
	if act.last() != [2]int{0, 0} {
		t.Errorf("last write = %v, want dark", act.last())
	}

	c.TurnOn()
	if got := c.Snapshot().Brightness; got != 80 {
		t.Errorf("Brightness after on = %d, want 80", got)
	}
}

func TestToggle_AdvancesModeWhenTurningOn(t *testing.T) {
	c, _, _ := newTestController()

	wantModes := []int{ModeWhite, ModeWhite, ModeYellow, ModeYellow, ModeBoth, ModeBoth, ModeWhite}
	for i, want := range wantModes {
		c.Toggle()
		if got := c.Snapshot().Mode; got != want {
			t.Errorf("toggle %d: Mode = %d, want %d", i+1, got, want)
		}
	}
}

func TestIncreaseDecrease(t *testing.T) {
	c, _, _ := newTestController()

	c.Decrease()
	if c.Snapshot().On {
		t.Fatal("Decrease() turned the lamp on")
	}

	c.Increase()
	if s := c.Snapshot(); !s.On || s.Brightness != 50 {
		t.Errorf("Increase() while off = %+v, want on/50", s)
	}

	for i := 0; i < 10; i++ {
		c.Increase()
	}
	if got := c.Snapshot().Brightness; got != 100 {
		t.Errorf("Brightness = %d, want clamp at 100", got)
	}

	for i := 0; i < 12; i++ {
		c.Decrease()
	}
	if s := c.Snapshot(); s.Brightness != 0 || !s.On {
		t.Errorf("Snapshot() = %+v, want on/0", s)
	}
}

func TestSetLevel_KeepsOnStateAndMode(t *testing.T) {
	c, act, changes := newTestController()

	c.SetLevel(60)
	if s := c.Snapshot(); s.On || s.Mode != ModeOff {
		t.Errorf("SetLevel() while off changed state: %+v", s)
	}
	if act.last() != [2]int{0, 0} {
		t.Errorf("SetLevel() while off lit the lamp: %v", act.last())
	}
	last := (*changes)[len(*changes)-1]
	if last.StateChanged || !last.BrightnessChanged {
		t.Errorf("change = %+v, want brightness only", last)
	}

	c.Toggle()
	if got := c.Snapshot().Brightness; got != 60 {
		t.Errorf("Brightness after on = %d, want 60", got)
	}

	c.SetLevel(250)
	if got := c.Snapshot().Brightness; got != 100 {
		t.Errorf("SetLevel(250) Brightness = %d, want 100", got)
	}
}

func TestController_ActuatorErrorKeepsState(t *testing.T) {
	act := &recordingActuator{err: errors.New("ebusy")}
	c := NewController(act, Options{DefaultBrightness: 30, Step: 5})
	c.Toggle()

	if s := c.Snapshot(); !s.On || s.Brightness != 30 {
		t.Errorf("Snapshot() = %+v, want on/30", s)
	}
	c.Increase()
	if got := c.Snapshot().Brightness; got != 35 {
		t.Errorf("Brightness = %d, want 35", got)
	}
}

// ============================================================================
// SysfsPWM
// ============================================================================

func fakeChip(t *testing.T) string {
	t.Helper()
	chip := t.TempDir()
	for _, ch := range []string{"pwm0", "pwm1"} {
		if err := os.MkdirAll(filepath.Join(chip, ch), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	return chip
}

func readAttr(t *testing.T, chip, ch, attr string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(chip, ch, attr))
	if err != nil {
		t.Fatalf("reading %s/%s: %v", ch, attr, err)
	}
	return strings.TrimSpace(string(b))
}

func TestSysfsPWM_OpenApplyClose(t *testing.T) {
	chip := fakeChip(t)
	p := NewSysfsPWM(chip, 0, 1, 25500)

	if err := p.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := readAttr(t, chip, "pwm0", "period"); got != "25500" {
		t.Errorf("period = %s, want 25500", got)
	}
	if got := readAttr(t, chip, "pwm1", "enable"); got != "1" {
		t.Errorf("enable = %s, want 1", got)
	}

	if err := p.Apply(255, 51); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := readAttr(t, chip, "pwm0", "duty_cycle"); got != "25500" {
		t.Errorf("white duty_cycle = %s, want 25500", got)
	}
	if got := readAttr(t, chip, "pwm1", "duty_cycle"); got != "5100" {
		t.Errorf("yellow duty_cycle = %s, want 5100", got)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := readAttr(t, chip, "pwm0", "enable"); got != "0" {
		t.Errorf("enable after Close = %s, want 0", got)
	}
}

func TestSysfsPWM_MissingChip(t *testing.T) {
	p := NewSysfsPWM(filepath.Join(t.TempDir(), "absent"), 0, 1, 1000)
	if err := p.Open(); err == nil {
		t.Error("Open() error = nil, want error for missing chip")
	}
}
