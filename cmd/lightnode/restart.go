package main

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/logging"
)

// Restart modes (system.restart_mode).
const (
	restartModeExit   = "exit"
	restartModeReboot = "reboot"
)

// exitRestart is the exit status after a requested restart (EX_TEMPFAIL),
// so the service manager starts the daemon again.
const exitRestart = 75

// rebootTimeout bounds the reboot request.
const rebootTimeout = 10 * time.Second

// restartError is returned by run when a component asked for a restart.
type restartError struct {
	reason string
	mode   string
}

func (e *restartError) Error() string {
	return fmt.Sprintf("restart requested: %s", e.reason)
}

// restarter is the device restart capability handed to the link manager
// and the orchestrator. The first request wins; later ones are ignored.
type restarter struct {
	mode   string
	cancel context.CancelFunc
	logger *logging.Logger

	mu        sync.Mutex
	reason    string
	requested bool
	hooks     []func(reason string)
}

func newRestarter(mode string, cancel context.CancelFunc, logger *logging.Logger) *restarter {
	if mode == "" {
		mode = restartModeExit
	}
	return &restarter{mode: mode, cancel: cancel, logger: logger}
}

// onRequest registers fn to run once when a restart is first requested.
func (r *restarter) onRequest(fn func(reason string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

// Request records reason and stops the daemon. It matches link.RestartFunc.
func (r *restarter) Request(reason string) {
	r.mu.Lock()
	if r.requested {
		r.mu.Unlock()
		r.logger.Debug("restart already requested", "reason", reason)
		return
	}
	r.requested = true
	r.reason = reason
	hooks := append([]func(string){}, r.hooks...)
	r.mu.Unlock()

	r.logger.Warn("device restart requested", "reason", reason, "mode", r.mode)
	for _, fn := range hooks {
		fn(reason)
	}
	r.cancel()
}

// Reason returns the first requested reason.
func (r *restarter) Reason() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason, r.requested
}

// rebootHost asks systemd to reboot the machine.
func rebootHost() error {
	ctx, cancel := context.WithTimeout(context.Background(), rebootTimeout)
	defer cancel()
	if out, err := exec.CommandContext(ctx, "systemctl", "reboot").CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl reboot: %w: %s", err, out)
	}
	return nil
}
