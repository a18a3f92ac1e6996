package light

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LogActuator records outputs in the log instead of driving hardware.
type LogActuator struct {
	Logger interface {
		Info(msg string, args ...any)
	}
}

// Apply implements Actuator.
func (a LogActuator) Apply(white, yellow int) error {
	if a.Logger != nil {
		a.Logger.Info("pwm", "white", white, "yellow", yellow)
	}
	return nil
}

// SysfsPWM drives two channels of a Linux PWM chip through /sys/class/pwm.
type SysfsPWM struct {
	chip     string
	white    int
	yellow   int
	periodNS int
}

// exportSettle is how long the kernel may take to create a channel
// directory after export.
const exportSettle = 100 * time.Millisecond

// attrPerm only matters when the attribute does not exist yet, which on a
// real sysfs tree means the write fails anyway.
const attrPerm = 0o644

// NewSysfsPWM returns an actuator for chip (e.g. /sys/class/pwm/pwmchip0).
func NewSysfsPWM(chip string, white, yellow, periodNS int) *SysfsPWM {
	return &SysfsPWM{chip: chip, white: white, yellow: yellow, periodNS: periodNS}
}

// Open exports both channels, sets the period and enables them at duty 0.
func (p *SysfsPWM) Open() error {
	for _, ch := range []int{p.white, p.yellow} {
		if err := p.export(ch); err != nil {
			return err
		}
		if err := p.writeAttr(ch, "duty_cycle", 0); err != nil {
			return err
		}
		if err := p.writeAttr(ch, "period", p.periodNS); err != nil {
			return err
		}
		if err := p.writeAttr(ch, "enable", 1); err != nil {
			return err
		}
	}
	return nil
}

// Apply implements Actuator.
func (p *SysfsPWM) Apply(white, yellow int) error {
	if err := p.writeAttr(p.white, "duty_cycle", p.dutyNS(white)); err != nil {
		return err
	}
	return p.writeAttr(p.yellow, "duty_cycle", p.dutyNS(yellow))
}

// Close darkens and disables both channels.
func (p *SysfsPWM) Close() error {
	var errs []error
	for _, ch := range []int{p.white, p.yellow} {
		errs = append(errs,
			p.writeAttr(ch, "duty_cycle", 0),
			p.writeAttr(ch, "enable", 0),
		)
	}
	return errors.Join(errs...)
}

func (p *SysfsPWM) dutyNS(duty int) int {
	if duty < 0 {
		duty = 0
	}
	if duty > MaxDuty {
		duty = MaxDuty
	}
	return duty * p.periodNS / MaxDuty
}

func (p *SysfsPWM) channelDir(ch int) string {
	return filepath.Join(p.chip, "pwm"+strconv.Itoa(ch))
}

func (p *SysfsPWM) export(ch int) error {
	if _, err := os.Stat(p.channelDir(ch)); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking pwm channel %d: %w", ch, err)
	}
	if err := os.WriteFile(filepath.Join(p.chip, "export"), []byte(strconv.Itoa(ch)), attrPerm); err != nil {
		return fmt.Errorf("exporting pwm channel %d: %w", ch, err)
	}
	time.Sleep(exportSettle)
	return nil
}

func (p *SysfsPWM) writeAttr(ch int, attr string, v int) error {
	path := filepath.Join(p.channelDir(ch), attr)
	if err := os.WriteFile(path, []byte(strconv.Itoa(v)), attrPerm); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
