package mqtt

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lightnode/internal/protocol"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "lightnode-test",
		},
		KeepAlive: 30,
	}
}

// ============================================================================
// Option building
// ============================================================================

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(testConfig(), "light-001")

	if len(opts.Servers) != 1 {
		t.Fatalf("len(Servers) = %d, want 1", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers[0] = %q, want tcp://127.0.0.1:1883", got)
	}
	if opts.ClientID != "light-001" {
		t.Errorf("ClientID = %q, want light-001", opts.ClientID)
	}
	if opts.AutoReconnect {
		t.Error("AutoReconnect should be disabled")
	}
	if opts.ConnectRetry {
		t.Error("ConnectRetry should be disabled")
	}
	if opts.KeepAlive != 30 {
		t.Errorf("KeepAlive = %d, want 30", opts.KeepAlive)
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want empty", opts.Username)
	}
}

func TestBuildClientOptions_TLSAndAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	cfg.Auth.Username = "lamp"
	cfg.Auth.Password = "pw"

	opts := buildClientOptions(cfg, "light-001")

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Fatal("TLSConfig should be set")
	}
	if opts.Username != "lamp" || opts.Password != "pw" {
		t.Errorf("credentials = %q/%q, want lamp/pw", opts.Username, opts.Password)
	}
}

func TestBuildClientOptions_DefaultKeepAlive(t *testing.T) {
	cfg := testConfig()
	cfg.KeepAlive = 0

	opts := buildClientOptions(cfg, "light-001")
	if opts.KeepAlive != 60 {
		t.Errorf("KeepAlive = %d, want 60", opts.KeepAlive)
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig(), "light-001")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled should be true")
	}
	if opts.WillTopic != protocol.TopicStatus {
		t.Errorf("WillTopic = %q, want %q", opts.WillTopic, protocol.TopicStatus)
	}
	if string(opts.WillPayload) != protocol.StatusOffline {
		t.Errorf("WillPayload = %q, want %q", opts.WillPayload, protocol.StatusOffline)
	}
	if opts.WillQos != 0 {
		t.Errorf("WillQos = %d, want 0", opts.WillQos)
	}
	if opts.WillRetained {
		t.Error("WillRetained should be false")
	}
}

// ============================================================================
// Disconnected client behaviour
// ============================================================================

func TestClient_NewIsDisconnected(t *testing.T) {
	c := New(testConfig(), "light-001")
	if c.IsConnected() {
		t.Error("IsConnected() = true before Open")
	}
}

func TestClient_PublishNotConnected(t *testing.T) {
	c := New(testConfig(), "light-001")

	err := c.Publish(protocol.TopicState, []byte("on"))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestClient_PublishEmptyTopic(t *testing.T) {
	c := New(testConfig(), "light-001")

	err := c.Publish("", []byte("on"))
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestClient_SubscribeValidation(t *testing.T) {
	c := New(testConfig(), "light-001")
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", noop, ErrInvalidTopic},
		{"nil handler", "led002", nil, ErrSubscribeFailed},
		{"not connected", "led002", noop, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_CloseWhenDisconnected(t *testing.T) {
	c := New(testConfig(), "light-001")
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestClient_OpenRefused(t *testing.T) {
	// Grab a free port then release it so nothing is listening there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := testConfig()
	cfg.Broker.Port = port
	c := New(cfg, "light-001")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = c.Open(ctx)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Open() error = %v, want ErrConnectionFailed", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after failed Open")
	}
}

func TestClient_OpenTimeoutAbandonsAttempt(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	// The broker answers only after Open has given up.
	release := make(chan struct{})
	closed := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		<-release
		if _, err := conn.Write([]byte{0x20, 0x02, 0x00, 0x00}); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(3 * time.Second)) //nolint:errcheck // Test helper
		for {
			if _, err := conn.Read(buf); err != nil {
				var ne net.Error
				if !errors.As(err, &ne) || !ne.Timeout() {
					close(closed)
				}
				return
			}
		}
	}()

	cfg := testConfig()
	cfg.Broker.Port = ln.Addr().(*net.TCPAddr).Port
	c := New(cfg, "light-001")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := c.Open(ctx); !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Open() error = %v, want ErrConnectionFailed", err)
	}
	close(release)

	select {
	case <-closed:
	case <-time.After(4 * time.Second):
		t.Fatal("late session was not torn down after Open timed out")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after a timed out Open")
	}
}

// ============================================================================
// Handler dispatch
// ============================================================================

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) Error(msg string, _ ...any) { l.record(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record(msg) }

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.msgs {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

func TestClient_DispatchRecoversPanic(t *testing.T) {
	c := New(testConfig(), "light-001")
	logger := &recordingLogger{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error {
		panic("boom")
	}, "led002", []byte("on"))

	if !logger.contains("panic") {
		t.Error("expected panic to be logged")
	}
}

func TestClient_DispatchLogsHandlerError(t *testing.T) {
	c := New(testConfig(), "light-001")
	logger := &recordingLogger{}
	c.SetLogger(logger)

	c.dispatch(func(string, []byte) error {
		return errors.New("queue full")
	}, "led002", []byte("on"))

	if !logger.contains("handler returned error") {
		t.Error("expected handler error to be logged")
	}
}

func TestClient_DispatchDeliversPayload(t *testing.T) {
	c := New(testConfig(), "light-001")

	var gotTopic, gotPayload string
	c.dispatch(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return nil
	}, "led002", []byte("50#1"))

	if gotTopic != "led002" || gotPayload != "50#1" {
		t.Errorf("handler got (%q, %q), want (led002, 50#1)", gotTopic, gotPayload)
	}
}

func TestClient_ConnectionLostCallback(t *testing.T) {
	c := New(testConfig(), "light-001")
	c.setConnected(true)

	var called error
	c.SetOnConnectionLost(func(err error) { called = err })

	lost := errors.New("keepalive timeout")
	c.handleConnectionLost(lost)

	if called != lost {
		t.Errorf("callback err = %v, want %v", called, lost)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after connection lost")
	}
}
