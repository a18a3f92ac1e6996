package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"

	"github.com/nerrad567/gray-logic-lightnode/internal/auth"
	"github.com/nerrad567/gray-logic-lightnode/internal/credentials"
	"github.com/nerrad567/gray-logic-lightnode/internal/history"
	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lightnode/internal/light"
	"github.com/nerrad567/gray-logic-lightnode/internal/link"
	"github.com/nerrad567/gray-logic-lightnode/internal/session"
)

// writeConfig writes a config that needs no hardware: no API, no buttons,
// a log actuator and a wpa_cli path that does not exist.
func writeConfig(t *testing.T, extra string) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	content := `
device:
  id: test-node
storage:
  backend: file
  path: ` + filepath.Join(dir, "credentials.bin") + `
database:
  path: ` + filepath.Join(dir, "lightnode.db") + `
  wal_mode: true
  busy_timeout: 5
wireless:
  wpa_cli: ` + filepath.Join(dir, "missing-wpa_cli") + `
  call_timeout_ms: 200
provisioning:
  advertise: false
api:
  enabled: false
logging:
  level: error
  format: text
` + extra

	path = filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path, dir
}

// ============================================================================
// run
// ============================================================================

func TestRun_InvalidConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx, "/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_InvalidStorageBackend(t *testing.T) {
	path, _ := writeConfig(t, "")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	bad := strings.Replace(string(data), "backend: file", "backend: floppy", 1)
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatal(err)
	}
	err = run(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "storage.backend") {
		t.Fatalf("run() error = %v, want storage.backend validation error", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	path, dir := writeConfig(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := run(ctx, path); err != nil {
		t.Fatalf("run() error = %v, want nil on shutdown", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "lightnode.db")); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

func TestRun_ProvisioningTimeoutRestarts(t *testing.T) {
	path, dir := writeConfig(t, `
scheduler:
  tick_ms: 1
  link_check_interval: 20ms
  session_check_interval: 20ms
`)
	// Replace the default provisioning section with a short timeout.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	short := strings.Replace(string(data), "  advertise: false", "  advertise: false\n  timeout: 50ms", 1)
	if err := os.WriteFile(path, []byte(short), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = run(ctx, path)
	var restart *restartError
	if !errors.As(err, &restart) {
		t.Fatalf("run() error = %v, want *restartError", err)
	}
	if restart.reason != link.ReasonProvisioningTimeout {
		t.Errorf("reason = %q, want %q", restart.reason, link.ReasonProvisioningTimeout)
	}
	if restart.mode != restartModeExit {
		t.Errorf("mode = %q, want %q", restart.mode, restartModeExit)
	}

	db, err := database.Open(context.Background(), database.Config{Path: filepath.Join(dir, "lightnode.db")})
	if err != nil {
		t.Fatalf("reopening database: %v", err)
	}
	defer db.Close()

	events, err := history.NewJournal(db.DB).Recent(context.Background(), 20)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	var sawProvisioning, sawRestart bool
	for _, e := range events {
		if e.Source == history.SourceLink && e.To == link.Provisioning.String() {
			sawProvisioning = true
		}
		if e.Source == history.SourceSystem && e.Detail == link.ReasonProvisioningTimeout {
			sawRestart = true
		}
	}
	if !sawProvisioning || !sawRestart {
		t.Errorf("journal = %+v, want provisioning transition and restart entry", events)
	}
}

// ============================================================================
// Helpers
// ============================================================================

func TestClientID(t *testing.T) {
	cfg := config.Default()
	cfg.Device.ID = "lamp-7"

	got := clientID(cfg)
	if !strings.HasPrefix(got, "lamp-7-") || len(got) != len("lamp-7-")+clientIDSuffixLen {
		t.Errorf("clientID() = %q, want lamp-7-<%d chars>", got, clientIDSuffixLen)
	}
	if other := clientID(cfg); other == got {
		t.Errorf("clientID() returned %q twice, want a random suffix", got)
	}

	cfg.MQTT.Broker.ClientID = "fixed-id"
	if got := clientID(cfg); got != "fixed-id" {
		t.Errorf("clientID() = %q, want fixed-id", got)
	}
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	db, err := database.Open(context.Background(), database.Config{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("database.Open() error: %v", err)
	}
	defer db.Close()

	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(dir, "credentials.bin")

	store, err := openStore(cfg, db)
	if err != nil {
		t.Fatalf("openStore(file) error: %v", err)
	}
	if _, ok := store.(*credentials.FileStore); !ok {
		t.Errorf("openStore(file) = %T, want *credentials.FileStore", store)
	}

	cfg.Storage.Backend = "sqlite"
	store, err = openStore(cfg, db)
	if err != nil {
		t.Fatalf("openStore(sqlite) error: %v", err)
	}
	if _, ok := store.(*credentials.SQLiteStore); !ok {
		t.Errorf("openStore(sqlite) = %T, want *credentials.SQLiteStore", store)
	}

	cfg.Storage.Backend = "floppy"
	if _, err := openStore(cfg, db); err == nil {
		t.Error("openStore(floppy): expected error")
	}
}

func TestOpenActuator(t *testing.T) {
	cfg := config.Default().Light

	act, closeFn, err := openActuator(cfg, logging.Discard())
	if err != nil {
		t.Fatalf("openActuator(log) error: %v", err)
	}
	closeFn()
	if _, ok := act.(light.LogActuator); !ok {
		t.Errorf("openActuator(log) = %T, want light.LogActuator", act)
	}

	cfg.Actuator = "sysfs"
	cfg.PWM.Chip = filepath.Join(t.TempDir(), "missing-pwmchip")
	if _, _, err := openActuator(cfg, logging.Discard()); err == nil {
		t.Error("openActuator(sysfs) with a missing chip: expected error")
	}
}

// ============================================================================
// Restarter
// ============================================================================

func TestRestarter_FirstRequestWins(t *testing.T) {
	cancels := 0
	r := newRestarter("", func() { cancels++ }, logging.Discard())

	var seen []string
	r.onRequest(func(reason string) { seen = append(seen, reason) })

	if _, ok := r.Reason(); ok {
		t.Fatal("Reason() reports a restart before any request")
	}

	r.Request(link.ReasonProvisioningComplete)
	r.Request("factory reset")

	reason, ok := r.Reason()
	if !ok || reason != link.ReasonProvisioningComplete {
		t.Errorf("Reason() = %q, %v, want %q, true", reason, ok, link.ReasonProvisioningComplete)
	}
	if len(seen) != 1 {
		t.Errorf("hooks ran %d times, want 1", len(seen))
	}
	if cancels != 1 {
		t.Errorf("cancel called %d times, want 1", cancels)
	}
	if r.mode != restartModeExit {
		t.Errorf("mode = %q, want default %q", r.mode, restartModeExit)
	}
}

func TestRestartError(t *testing.T) {
	err := error(&restartError{reason: "factory reset", mode: restartModeReboot})
	if !strings.Contains(err.Error(), "factory reset") {
		t.Errorf("Error() = %q, want reason included", err.Error())
	}
}

// ============================================================================
// Adapters
// ============================================================================

func TestSessionBroker_Disconnected(t *testing.T) {
	cfg := config.Default()
	b := &sessionBroker{client: mqtt.New(cfg.MQTT, "adapter-test")}

	if b.IsConnected() {
		t.Error("IsConnected() = true before Open")
	}
	if err := b.Publish("light/state", []byte("on")); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	err := b.Subscribe("led002", func(string, []byte) {})
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
}

type recordingWriter struct {
	links    []string
	sessions []string
	lights   []light.Snapshot
}

func (w *recordingWriter) WriteLinkState(from, to string, retries int) {
	w.links = append(w.links, from+">"+to+"#"+string(rune('0'+retries)))
}

func (w *recordingWriter) WriteSessionState(state string, attempts int) {
	w.sessions = append(w.sessions, state+"#"+string(rune('0'+attempts)))
}

func (w *recordingWriter) WriteLightState(on bool, brightness, mode int) {
	w.lights = append(w.lights, light.Snapshot{On: on, Brightness: brightness, Mode: mode})
}

func TestInfluxNotifier(t *testing.T) {
	w := &recordingWriter{}
	n := &influxNotifier{
		client:   w,
		retries:  func() int { return 3 },
		attempts: func() int { return 2 },
	}

	n.LinkChanged(link.Connecting, link.Connected)
	n.SessionChanged(session.Closed, session.Open)
	n.LightChanged(light.Snapshot{On: true, Brightness: 60, Mode: 2})

	if len(w.links) != 1 || w.links[0] != "connecting>connected#3" {
		t.Errorf("links = %v, want [connecting>connected#3]", w.links)
	}
	if len(w.sessions) != 1 || w.sessions[0] != "open#2" {
		t.Errorf("sessions = %v, want [open#2]", w.sessions)
	}
	if len(w.lights) != 1 || w.lights[0] != (light.Snapshot{On: true, Brightness: 60, Mode: 2}) {
		t.Errorf("lights = %v", w.lights)
	}
}

// ============================================================================
// Command line
// ============================================================================

// parse runs the kong parser over args without exiting the test binary.
func parse(t *testing.T, args ...string) (*cli, *kong.Context, error) {
	t.Helper()
	var c cli
	parser, err := kong.New(&c,
		kong.Name("lightnode"),
		kong.Vars{"version": "test"},
		kong.Writers(io.Discard, io.Discard),
		kong.Exit(func(int) {}),
	)
	if err != nil {
		t.Fatalf("kong.New() error: %v", err)
	}
	kctx, err := parser.Parse(args)
	return &c, kctx, err
}

func TestCLI_DefaultsToRun(t *testing.T) {
	t.Setenv("LIGHTNODE_CONFIG", "")
	os.Unsetenv("LIGHTNODE_CONFIG")

	c, kctx, err := parse(t)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := kctx.Command(); got != "run" {
		t.Errorf("Command() = %q, want run", got)
	}
	if c.Config != "configs/config.yaml" {
		t.Errorf("Config = %q, want configs/config.yaml", c.Config)
	}
}

func TestCLI_ConfigFromEnv(t *testing.T) {
	t.Setenv("LIGHTNODE_CONFIG", "/etc/lightnode/config.yaml")

	c, _, err := parse(t, "run")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if c.Config != "/etc/lightnode/config.yaml" {
		t.Errorf("Config = %q, want value from LIGHTNODE_CONFIG", c.Config)
	}
}

func TestCLI_TokenFlags(t *testing.T) {
	c, kctx, err := parse(t, "-c", "node.yaml", "token", "--subject", "alice", "--role", "owner", "--ttl", "1h")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := kctx.Command(); got != "token" {
		t.Errorf("Command() = %q, want token", got)
	}
	if c.Config != "node.yaml" || c.Token.Subject != "alice" || c.Token.Role != "owner" || c.Token.TTL != time.Hour {
		t.Errorf("parsed = %+v / %+v", c.Config, c.Token)
	}
}

func TestCLI_TokenRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing subject", []string{"token"}},
		{"unknown role", []string{"token", "--subject", "a", "--role", "root"}},
		{"bad ttl", []string{"token", "--subject", "a", "--ttl", "soon"}},
		{"unknown flag", []string{"token", "--subject", "a", "--bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := parse(t, tt.args...); err == nil {
				t.Errorf("Parse(%v) succeeded, want error", tt.args)
			}
		})
	}
}

func TestTokenCmd_Mint(t *testing.T) {
	path, _ := writeConfig(t, "")
	secret := strings.Repeat("s", 40)
	t.Setenv("LIGHTNODE_API_JWT_SECRET", secret)

	var out bytes.Buffer
	cmd := &tokenCmd{Subject: "alice", Role: "owner", TTL: time.Hour}
	if err := cmd.mint(path, &out); err != nil {
		t.Fatalf("mint() error: %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(out.String()), "test-node", secret)
	if err != nil {
		t.Fatalf("ParseToken() error: %v", err)
	}
	if claims.Subject != "alice" || claims.Role != auth.RoleOwner {
		t.Errorf("claims = %s/%s, want alice/owner", claims.Subject, claims.Role)
	}
}

func TestTokenCmd_MintErrors(t *testing.T) {
	path, _ := writeConfig(t, "")

	tests := []struct {
		name   string
		secret string
		path   string
		cmd    tokenCmd
	}{
		{"no secret", "", path, tokenCmd{Subject: "a", Role: "operator"}},
		{"unknown role", strings.Repeat("s", 40), path, tokenCmd{Subject: "a", Role: "root"}},
		{"missing config", strings.Repeat("s", 40), "/nonexistent/config.yaml", tokenCmd{Subject: "a", Role: "viewer"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LIGHTNODE_API_JWT_SECRET", tt.secret)
			var out bytes.Buffer
			if err := tt.cmd.mint(tt.path, &out); err == nil {
				t.Errorf("mint() succeeded, want error")
			}
		})
	}
}
