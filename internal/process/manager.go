package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/config"
)

// Status represents the current state of the supervised daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// maxConsecutiveProbeFailures is how many failed health probes kill the daemon.
const maxConsecutiveProbeFailures = 3

// Config describes a supervised daemon.
type Config struct {
	Name   string
	Binary string
	Args   []string

	// RestartDelay is the wait between an unexpected exit and the restart.
	RestartDelay time.Duration

	// MaxRestartAttempts limits restart attempts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long Stop waits after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// Probe reports daemon health. Nil means running is healthy.
	Probe         func(ctx context.Context) error
	ProbeInterval time.Duration
}

// ForSupplicant builds the supervision config for wpa_supplicant on the
// configured interface. The probe pings the daemon through wpa_cli.
func ForSupplicant(w config.WirelessConfig) Config {
	s := w.Supplicant
	args := []string{"-i", w.Interface, "-c", s.ConfigFile}
	if s.Driver != "" {
		args = append(args, "-D", s.Driver)
	}
	if w.ControlDir != "" {
		args = append(args, "-C", w.ControlDir)
	}

	cliArgs := []string{"-i", w.Interface}
	if w.ControlDir != "" {
		cliArgs = append([]string{"-p", w.ControlDir}, cliArgs...)
	}
	cliArgs = append(cliArgs, "ping")

	return Config{
		Name:               "wpa_supplicant",
		Binary:             s.Binary,
		Args:               args,
		RestartDelay:       time.Duration(s.RestartDelaySeconds) * time.Second,
		MaxRestartAttempts: s.MaxRestartAttempts,
		Probe: func(ctx context.Context) error {
			out, err := exec.CommandContext(ctx, w.WPACLI, cliArgs...).Output() //nolint:gosec // Paths come from validated config
			if err != nil {
				return fmt.Errorf("wpa_cli ping: %w", err)
			}
			if !bytesHasPong(out) {
				return fmt.Errorf("wpa_cli ping: unexpected reply %q", out)
			}
			return nil
		},
		ProbeInterval: 30 * time.Second,
	}
}

func bytesHasPong(out []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "PONG" {
			return true
		}
	}
	return false
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Supervisor keeps one daemon running.
type Supervisor struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	restarts      int
	lastError     error
	startedAt     time.Time
	stopRequested bool
	done          chan struct{}
}

// NewSupervisor creates a stopped supervisor. Zero durations take defaults.
func NewSupervisor(cfg Config) *Supervisor {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 5 * time.Second
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 10 * time.Second
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 30 * time.Second
	}
	return &Supervisor{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Start launches the daemon and begins watching it.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusRunning || s.status == StatusStarting {
		s.mu.Unlock()
		return fmt.Errorf("%s is already running", s.config.Name)
	}
	s.status = StatusStarting
	s.stopRequested = false
	s.done = make(chan struct{})
	s.mu.Unlock()

	if err := s.launch(ctx); err != nil {
		s.mu.Lock()
		s.status = StatusFailed
		s.lastError = err
		close(s.done)
		s.mu.Unlock()
		return err
	}

	go s.watch(ctx)
	return nil
}

func (s *Supervisor) launch(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.config.Binary, s.config.Args...) //nolint:gosec // Binary path comes from validated config

	// Own process group so Stop can signal any children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", s.config.Name, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.status = StatusRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	go s.relay("stdout", stdout)
	go s.relay("stderr", stderr)

	s.logger.Info("daemon started", "name", s.config.Name, "pid", cmd.Process.Pid)
	return nil
}

// relay logs each line the daemon writes.
func (s *Supervisor) relay(stream string, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s.logger.Debug("daemon output",
			"name", s.config.Name,
			"stream", stream,
			"line", sc.Text(),
		)
	}
}

// wait blocks until the daemon exits or fails its probe repeatedly.
func (s *Supervisor) wait(ctx context.Context, cmd *exec.Cmd) error {
	exitCh := make(chan error, 1)
	go func() { exitCh <- cmd.Wait() }()

	if s.config.Probe == nil {
		return <-exitCh
	}

	ticker := time.NewTicker(s.config.ProbeInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case err := <-exitCh:
			return err
		case <-ctx.Done():
			return <-exitCh
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := s.config.Probe(probeCtx)
			cancel()

			if err == nil {
				failures = 0
				continue
			}
			failures++
			s.logger.Warn("daemon probe failed",
				"name", s.config.Name,
				"error", err,
				"consecutive_failures", failures,
			)
			if failures >= maxConsecutiveProbeFailures {
				s.logger.Error("daemon unresponsive, killing", "name", s.config.Name)
				if cmd.Process != nil {
					_ = cmd.Process.Kill() //nolint:errcheck // Exit is observed below
				}
				<-exitCh
				return fmt.Errorf("killed after %d failed probes", failures)
			}
		}
	}
}

// watch restarts the daemon after unexpected exits.
func (s *Supervisor) watch(ctx context.Context) {
	defer close(s.done)

	for {
		s.mu.RLock()
		cmd := s.cmd
		s.mu.RUnlock()

		err := s.wait(ctx, cmd)

		s.mu.Lock()
		stopRequested := s.stopRequested || ctx.Err() != nil
		if stopRequested {
			s.status = StatusStopped
		} else {
			s.status = StatusFailed
			s.lastError = err
			s.restarts++
		}
		attempt := s.restarts
		s.mu.Unlock()

		if stopRequested {
			s.logger.Info("daemon stopped", "name", s.config.Name)
			return
		}

		s.logger.Warn("daemon exited unexpectedly", "name", s.config.Name, "error", err)

		if s.config.MaxRestartAttempts > 0 && attempt > s.config.MaxRestartAttempts {
			s.logger.Error("daemon restart budget exhausted",
				"name", s.config.Name,
				"attempts", attempt-1,
			)
			return
		}

		s.logger.Info("restarting daemon",
			"name", s.config.Name,
			"attempt", attempt,
			"delay", s.config.RestartDelay,
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.config.RestartDelay):
		}

		s.mu.RLock()
		stopRequested = s.stopRequested
		s.mu.RUnlock()
		if stopRequested {
			return
		}

		if err := s.launch(ctx); err != nil {
			s.logger.Error("daemon restart failed", "name", s.config.Name, "error", err)
			s.mu.Lock()
			s.lastError = err
			s.mu.Unlock()
			return
		}
	}
}

// Stop sends SIGTERM to the daemon's process group and escalates to
// SIGKILL after GracefulTimeout.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.status != StatusRunning && s.status != StatusStarting {
		s.mu.Unlock()
		return nil
	}
	s.stopRequested = true
	cmd := s.cmd
	done := s.done
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil || done == nil {
		return nil
	}

	pid := cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Warn("SIGTERM failed", "name", s.config.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.config.GracefulTimeout):
		s.logger.Warn("graceful stop timed out, sending SIGKILL", "name", s.config.Name)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing %s: %w", s.config.Name, err)
	}
	<-done
	return nil
}

// Status returns the current status of the daemon.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// IsRunning reports whether the daemon is running.
func (s *Supervisor) IsRunning() bool {
	return s.Status() == StatusRunning
}

// Stats is a point-in-time view of the supervised daemon.
type Stats struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	Restarts  int           `json:"restarts"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the daemon.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Name:     s.config.Name,
		Status:   s.status,
		Restarts: s.restarts,
	}
	if s.cmd != nil && s.cmd.Process != nil && s.status == StatusRunning {
		st.PID = s.cmd.Process.Pid
		st.Uptime = time.Since(s.startedAt)
	}
	if s.lastError != nil {
		st.LastError = s.lastError.Error()
	}
	return st
}
