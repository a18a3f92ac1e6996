package wireless

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/config"
)

// wpaStateCompleted is the wpa_state value of a finished association.
const wpaStateCompleted = "COMPLETED"

// Logger defines the logging interface for the wireless backend.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Status is the parsed output of "wpa_cli status".
type Status struct {
	State     string
	SSID      string
	IPAddress string
}

// Supplicant drives wpa_supplicant for one interface.
//
// Thread Safety:
//   - Safe for concurrent use; the API reads status while the control
//     loop joins and reconnects.
type Supplicant struct {
	iface      string
	cli        string
	controlDir string
	timeout    time.Duration
	runner     Runner
	ifaces     Interfaces
	logger     Logger

	mu   sync.Mutex
	last Status
}

// NewSupplicant creates a backend for the configured interface.
func NewSupplicant(cfg config.WirelessConfig, runner Runner, ifaces Interfaces) *Supplicant {
	timeout := cfg.CallTimeout()
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Supplicant{
		iface:      cfg.Interface,
		cli:        cfg.WPACLI,
		controlDir: cfg.ControlDir,
		timeout:    timeout,
		runner:     runner,
		ifaces:     ifaces,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the backend.
func (s *Supplicant) SetLogger(logger Logger) {
	s.logger = logger
}

// Join replaces any configured network with name/secret and selects it.
// An empty secret configures an open network.
func (s *Supplicant) Join(ctx context.Context, name, secret string) error {
	if err := s.ifaces.SetUp(s.iface); err != nil {
		return err
	}

	if _, err := s.call(ctx, "remove_network", "all"); err != nil {
		return err
	}

	out, err := s.raw(ctx, "add_network")
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(lastLine(out))
	if err != nil {
		return fmt.Errorf("%w: add_network returned %q", ErrCommandFailed, lastLine(out))
	}

	idStr := strconv.Itoa(id)
	steps := [][]string{
		{"set_network", idStr, "ssid", quote(name)},
	}
	if secret == "" {
		steps = append(steps, []string{"set_network", idStr, "key_mgmt", "NONE"})
	} else {
		steps = append(steps, []string{"set_network", idStr, "psk", quote(secret)})
	}
	steps = append(steps, []string{"select_network", idStr})

	for _, step := range steps {
		if _, err := s.call(ctx, step...); err != nil {
			return err
		}
	}

	// Persisting into wpa_supplicant.conf is best effort; the node keeps
	// its own credential record.
	if _, err := s.call(ctx, "save_config"); err != nil {
		s.logger.Debug("save_config failed", "error", err)
	}
	return nil
}

// Reconnect asks wpa_supplicant to retry the selected network.
func (s *Supplicant) Reconnect(ctx context.Context) error {
	_, err := s.call(ctx, "reconnect")
	return err
}

// Leave disconnects and stops automatic reassociation.
func (s *Supplicant) Leave(ctx context.Context) error {
	_, err := s.call(ctx, "disconnect")
	return err
}

// Associated reports whether the association is complete and an IPv4
// address is assigned. It refreshes the cached status.
func (s *Supplicant) Associated() bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	st, err := s.Status(ctx)
	if err != nil {
		s.logger.Debug("status query failed", "error", err)
		return false
	}
	return st.State == wpaStateCompleted && st.IPAddress != ""
}

// NetworkName returns the SSID from the last status query.
func (s *Supplicant) NetworkName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.SSID
}

// Address returns the IPv4 address from the last status query.
func (s *Supplicant) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.IPAddress
}

// Status queries wpa_cli status. When wpa_cli does not report an address
// the interface is asked over netlink.
func (s *Supplicant) Status(ctx context.Context) (Status, error) {
	out, err := s.raw(ctx, "status")
	if err != nil {
		return Status{}, err
	}
	st := parseStatus(out)
	if st.IPAddress == "" && st.State == wpaStateCompleted {
		if ip, err := s.ifaces.IPv4(s.iface); err == nil {
			st.IPAddress = ip
		} else {
			s.logger.Warn("address lookup failed", "interface", s.iface, "error", err)
		}
	}

	s.mu.Lock()
	s.last = st
	s.mu.Unlock()
	return st, nil
}

// call runs a wpa_cli command that answers OK or FAIL.
func (s *Supplicant) call(ctx context.Context, args ...string) ([]byte, error) {
	out, err := s.raw(ctx, args...)
	if err != nil {
		return out, err
	}
	if reply := lastLine(out); reply != "OK" {
		return out, fmt.Errorf("%w: %s: %q", ErrCommandFailed, args[0], reply)
	}
	return out, nil
}

func (s *Supplicant) raw(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	full := make([]string, 0, len(args)+4)
	if s.controlDir != "" {
		full = append(full, "-p", s.controlDir)
	}
	full = append(full, "-i", s.iface)
	full = append(full, args...)

	out, err := s.runner.Run(ctx, s.cli, full...)
	if err != nil {
		return out, fmt.Errorf("wpa_cli %s: %w", args[0], err)
	}
	return out, nil
}

func parseStatus(out []byte) Status {
	var st Status
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "wpa_state":
			st.State = value
		case "ssid":
			st.SSID = value
		case "ip_address":
			st.IPAddress = value
		}
	}
	return st
}

// lastLine returns the final non-empty line, skipping wpa_cli's
// "Selected interface" banner.
func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// quote wraps a value in double quotes as wpa_cli expects for strings.
func quote(v string) string {
	return `"` + v + `"`
}
