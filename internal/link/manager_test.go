package link

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-lightnode/internal/credentials"
	"github.com/nerrad567/gray-logic-lightnode/internal/interval"
	"github.com/nerrad567/gray-logic-lightnode/internal/provisioning"
)

// ============================================================================
// Mocks
// ============================================================================

type mockStore struct {
	creds   credentials.Credentials
	loadErr error
	saveErr error
	saved   []credentials.Credentials
}

func (s *mockStore) Load(context.Context) (credentials.Credentials, error) {
	return s.creds, s.loadErr
}

func (s *mockStore) Save(_ context.Context, c credentials.Credentials) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.creds = c
	s.saved = append(s.saved, c)
	return nil
}

func (s *mockStore) Clear(context.Context) error {
	s.creds = credentials.Credentials{}
	return nil
}

func (s *mockStore) IsConfigured(context.Context) bool {
	return s.loadErr == nil && s.creds.Usable()
}

type mockRadio struct {
	associated bool
	joins      []string
	reconnects int
	leaves     int
}

func (r *mockRadio) Join(_ context.Context, name, _ string) error {
	r.joins = append(r.joins, name)
	return nil
}
func (r *mockRadio) Reconnect(context.Context) error { r.reconnects++; return nil }
func (r *mockRadio) Leave(context.Context) error     { r.leaves++; r.associated = false; return nil }
func (r *mockRadio) Associated() bool                { return r.associated }
func (r *mockRadio) NetworkName() string             { return "HomeNet" }
func (r *mockRadio) Address() string                 { return "192.168.1.50" }

type mockProvisioner struct {
	started int
	stopped int
	done    bool
	name    string
	secret  string
}

func (p *mockProvisioner) Start(context.Context) error   { p.started++; return nil }
func (p *mockProvisioner) Stop() error                   { p.stopped++; return nil }
func (p *mockProvisioner) Done() bool                    { return p.done }
func (p *mockProvisioner) Result() (name, secret string) { return p.name, p.secret }

type fixture struct {
	mgr      *Manager
	store    *mockStore
	radio    *mockRadio
	prov     *mockProvisioner
	clock    *interval.ManualClock
	restarts []string
}

func newFixture(t *testing.T, creds credentials.Credentials) *fixture {
	t.Helper()
	f := &fixture{
		store: &mockStore{creds: creds},
		radio: &mockRadio{},
		prov:  &mockProvisioner{},
		clock: interval.NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.mgr = NewManager(Deps{
		Store:       f.store,
		Radio:       f.radio,
		Provisioner: f.prov,
		Restart:     func(reason string) { f.restarts = append(f.restarts, reason) },
		Clock:       f.clock,
	}, DefaultOptions())
	return f
}

var homeNet = credentials.Credentials{NetworkName: "HomeNet", Secret: "pw", Configured: true}

// ============================================================================
// Begin
// ============================================================================

func TestBegin_Unconfigured(t *testing.T) {
	tests := []struct {
		name  string
		creds credentials.Credentials
	}{
		{"empty record", credentials.Credentials{}},
		{"flag unset", credentials.Credentials{NetworkName: "HomeNet", Secret: "pw"}},
		{"configured with empty name", credentials.Credentials{Configured: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.creds)
			var seen []State
			f.mgr.OnStateChange(func(_, to State) { seen = append(seen, to) })

			f.mgr.Begin(context.Background())

			if f.mgr.State() != Provisioning {
				t.Errorf("State() = %v, want provisioning", f.mgr.State())
			}
			for _, s := range seen {
				if s == Connecting {
					t.Error("unconfigured Begin passed through connecting")
				}
			}
			if len(f.radio.joins) != 0 {
				t.Errorf("Join called %d times, want 0", len(f.radio.joins))
			}
			if f.prov.started != 1 {
				t.Errorf("provisioner started %d times, want 1", f.prov.started)
			}
		})
	}
}

func TestBegin_UnreadableStore(t *testing.T) {
	f := newFixture(t, homeNet)
	f.store.loadErr = errors.New("io error")

	f.mgr.Begin(context.Background())

	if f.mgr.State() != Provisioning {
		t.Errorf("State() = %v, want provisioning", f.mgr.State())
	}
}

func TestBegin_ConfiguredConnects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, homeNet)

	f.mgr.Begin(ctx)

	if f.mgr.State() != Connecting {
		t.Fatalf("State() after Begin = %v, want connecting", f.mgr.State())
	}
	if len(f.radio.joins) != 1 || f.radio.joins[0] != "HomeNet" {
		t.Errorf("joins = %v, want [HomeNet]", f.radio.joins)
	}

	// Not yet associated: first reconnect waits a full interval after the join.
	f.clock.Advance(time.Second)
	f.mgr.Update(ctx)
	if f.radio.reconnects != 0 {
		t.Errorf("reconnects = %d within interval of join, want 0", f.radio.reconnects)
	}

	f.clock.Advance(5 * time.Second)
	f.mgr.Update(ctx)
	if f.mgr.RetryCount() != 1 {
		t.Errorf("RetryCount() = %d, want 1", f.mgr.RetryCount())
	}

	f.radio.associated = true
	f.mgr.Update(ctx)

	if f.mgr.State() != Connected {
		t.Errorf("State() = %v, want connected", f.mgr.State())
	}
	if f.mgr.RetryCount() != 0 {
		t.Errorf("RetryCount() = %d, want 0 after connecting", f.mgr.RetryCount())
	}
	if f.mgr.NetworkName() != "HomeNet" || f.mgr.Address() == "" {
		t.Errorf("NetworkName() = %q, Address() = %q", f.mgr.NetworkName(), f.mgr.Address())
	}
}

// ============================================================================
// Update
// ============================================================================

func TestUpdate_ConnectedTransitionFiresOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, homeNet)
	f.mgr.Begin(ctx)

	var transitions []string
	f.mgr.OnStateChange(func(from, to State) {
		transitions = append(transitions, from.String()+">"+to.String())
	})

	f.radio.associated = true
	for i := 0; i < 5; i++ {
		f.mgr.Update(ctx)
	}

	if len(transitions) != 1 || transitions[0] != "connecting>connected" {
		t.Errorf("transitions = %v, want [connecting>connected]", transitions)
	}
}

func TestUpdate_LossThenReconnect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, homeNet)
	f.mgr.Begin(ctx)
	f.radio.associated = true
	f.mgr.Update(ctx)

	f.radio.associated = false
	f.clock.Advance(10 * time.Second)
	f.mgr.Update(ctx)

	if f.mgr.State() != Disconnected {
		t.Errorf("State() = %v, want disconnected", f.mgr.State())
	}
	if f.radio.reconnects != 1 {
		t.Errorf("reconnects = %d, want 1", f.radio.reconnects)
	}
	if f.mgr.NetworkName() != "" {
		t.Errorf("NetworkName() = %q while disconnected, want empty", f.mgr.NetworkName())
	}
}

func TestUpdate_RateLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, homeNet)
	f.mgr.Begin(ctx)

	// 30 seconds of updates every 100ms: one attempt per 5s interval.
	for i := 0; i < 300; i++ {
		f.clock.Advance(100 * time.Millisecond)
		f.mgr.Update(ctx)
	}

	if f.radio.reconnects != 6 {
		t.Errorf("reconnects = %d over 30s, want 6", f.radio.reconnects)
	}
}

func TestUpdate_EscalatesOnAttemptAfterBudget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, homeNet)
	f.mgr.Begin(ctx)

	for i := 1; i <= 10; i++ {
		f.clock.Advance(5 * time.Second)
		f.mgr.Update(ctx)
		if f.mgr.State() == Provisioning {
			t.Fatalf("escalated after %d attempts, want 11", i)
		}
	}
	if f.radio.reconnects != 10 {
		t.Fatalf("reconnects = %d, want 10", f.radio.reconnects)
	}

	f.clock.Advance(5 * time.Second)
	f.mgr.Update(ctx)

	if f.mgr.State() != Provisioning {
		t.Errorf("State() after 11th attempt = %v, want provisioning", f.mgr.State())
	}
	if f.radio.reconnects != 10 {
		t.Errorf("11th attempt issued a reconnect, reconnects = %d", f.radio.reconnects)
	}
	if f.mgr.RetryCount() != 0 {
		t.Errorf("RetryCount() = %d on entering provisioning, want 0", f.mgr.RetryCount())
	}
}

// ============================================================================
// Provisioning
// ============================================================================

func TestProvisioning_CompletePersistsAndRestarts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, credentials.Credentials{})
	f.mgr.Begin(ctx)

	f.mgr.Update(ctx)
	if len(f.restarts) != 0 {
		t.Fatalf("restarted before provisioning finished: %v", f.restarts)
	}

	f.prov.done = true
	f.prov.name = "NewNet"
	f.prov.secret = "newpass"
	f.mgr.Update(ctx)

	if len(f.store.saved) != 1 {
		t.Fatalf("saved %d records, want 1", len(f.store.saved))
	}
	want := credentials.Credentials{NetworkName: "NewNet", Secret: "newpass", Configured: true}
	if f.store.saved[0] != want {
		t.Errorf("saved = %+v, want %+v", f.store.saved[0], want)
	}
	if len(f.restarts) != 1 || f.restarts[0] != ReasonProvisioningComplete {
		t.Errorf("restarts = %v, want [%q]", f.restarts, ReasonProvisioningComplete)
	}

	// Inert after restart.
	f.mgr.Update(ctx)
	f.mgr.ForceReconnect(ctx)
	if len(f.restarts) != 1 || len(f.radio.joins) != 0 {
		t.Errorf("manager acted after restart: restarts=%v joins=%v", f.restarts, f.radio.joins)
	}
	if !f.mgr.Restarting() {
		t.Error("Restarting() = false after restart")
	}
}

func TestProvisioning_Timeout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, credentials.Credentials{})
	f.mgr.Begin(ctx)

	f.clock.Advance(179 * time.Second)
	f.mgr.Update(ctx)
	if len(f.restarts) != 0 {
		t.Fatalf("restarted before timeout: %v", f.restarts)
	}

	f.clock.Advance(time.Second)
	f.mgr.Update(ctx)
	if len(f.restarts) != 1 || f.restarts[0] != ReasonProvisioningTimeout {
		t.Errorf("restarts = %v, want [%q]", f.restarts, ReasonProvisioningTimeout)
	}
	if len(f.store.saved) != 0 {
		t.Error("timeout persisted credentials")
	}
}

func TestProvisioning_InvalidResultRestartsWithoutSaving(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, credentials.Credentials{})
	f.mgr.Begin(ctx)

	f.prov.done = true
	f.prov.name = strings.Repeat("x", 64)
	f.mgr.Update(ctx)

	if len(f.store.saved) != 0 {
		t.Error("over-length credentials were saved")
	}
	if len(f.restarts) != 1 || f.restarts[0] != ReasonProvisioningFailed {
		t.Errorf("restarts = %v, want [%q]", f.restarts, ReasonProvisioningFailed)
	}
}

func TestStopProvisioning_ResumesReconnection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, homeNet)
	f.mgr.StartProvisioning(ctx)

	f.mgr.StopProvisioning()

	if f.mgr.State() != Disconnected {
		t.Errorf("State() = %v, want disconnected", f.mgr.State())
	}
	if f.prov.stopped != 1 {
		t.Errorf("provisioner stopped %d times, want 1", f.prov.stopped)
	}

	f.mgr.Update(ctx)
	if f.radio.reconnects != 1 {
		t.Errorf("reconnects = %d after stop, want 1", f.radio.reconnects)
	}
}

func TestStartProvisioning_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, homeNet)

	f.mgr.StartProvisioning(ctx)
	f.mgr.StartProvisioning(ctx)

	if f.prov.started != 1 {
		t.Errorf("provisioner started %d times, want 1", f.prov.started)
	}
	if !f.mgr.IsProvisioning() {
		t.Error("IsProvisioning() = false")
	}
}

// ============================================================================
// Operator actions
// ============================================================================

func TestForceReconnect_ResetsRetryCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, homeNet)
	f.mgr.Begin(ctx)

	for i := 0; i < 7; i++ {
		f.clock.Advance(5 * time.Second)
		f.mgr.Update(ctx)
	}
	if f.mgr.RetryCount() != 7 {
		t.Fatalf("RetryCount() = %d, want 7", f.mgr.RetryCount())
	}

	f.mgr.ForceReconnect(ctx)

	if f.mgr.RetryCount() != 0 {
		t.Errorf("RetryCount() after ForceReconnect = %d, want 0", f.mgr.RetryCount())
	}
	if f.mgr.State() != Connecting {
		t.Errorf("State() = %v, want connecting", f.mgr.State())
	}
	if f.radio.leaves != 1 || len(f.radio.joins) != 2 {
		t.Errorf("leaves = %d joins = %d, want 1 and 2", f.radio.leaves, len(f.radio.joins))
	}
}

func TestForceReconnect_FromProvisioning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, homeNet)
	f.mgr.StartProvisioning(ctx)

	f.mgr.ForceReconnect(ctx)

	if f.prov.stopped != 1 {
		t.Errorf("provisioner stopped %d times, want 1", f.prov.stopped)
	}
	if f.mgr.State() != Connecting {
		t.Errorf("State() = %v, want connecting", f.mgr.State())
	}
}

func TestForceReconnect_FromProvisioningWithoutCredentials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, credentials.Credentials{})
	f.mgr.StartProvisioning(ctx)

	f.mgr.ForceReconnect(ctx)

	if f.mgr.State() != Provisioning {
		t.Fatalf("State() = %v, want provisioning", f.mgr.State())
	}
	if f.prov.started != 2 || f.prov.stopped != 1 {
		t.Errorf("provisioner started/stopped = %d/%d, want 2/1", f.prov.started, f.prov.stopped)
	}
}

func TestForceReconnect_ExchangeStaysOpen(t *testing.T) {
	ctx := context.Background()
	exchange := provisioning.NewExchange(nil)
	mgr := NewManager(Deps{
		Store:       &mockStore{},
		Radio:       &mockRadio{},
		Provisioner: exchange,
		Clock:       interval.NewManualClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}, DefaultOptions())

	mgr.Begin(ctx)
	if !exchange.Snapshot().Active {
		t.Fatal("exchange not active after Begin without credentials")
	}

	mgr.ForceReconnect(ctx)

	if !exchange.Snapshot().Active {
		t.Error("exchange closed after ForceReconnect while provisioning")
	}
	if err := exchange.Submit("HomeNet", "password"); err != nil {
		t.Errorf("Submit() error = %v, want nil", err)
	}
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, homeNet)
	f.mgr.Begin(ctx)
	f.radio.associated = true
	f.mgr.Update(ctx)

	f.mgr.Disconnect(ctx)

	if f.mgr.State() != Disconnected || f.mgr.IsConnected() {
		t.Errorf("State() = %v after Disconnect", f.mgr.State())
	}
	if f.mgr.Associated() {
		t.Error("Associated() = true after Disconnect")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{Connected, "connected"},
		{Provisioning, "provisioning"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
