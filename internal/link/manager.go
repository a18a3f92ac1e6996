package link

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-lightnode/internal/credentials"
	"github.com/nerrad567/gray-logic-lightnode/internal/interval"
)

// Restart reasons passed to RestartFunc.
const (
	ReasonProvisioningComplete = "provisioning complete"
	ReasonProvisioningTimeout  = "provisioning timeout"
	ReasonProvisioningFailed   = "provisioning failed"
)

// Options tunes the reconnection policy.
type Options struct {
	// ReconnectInterval is the minimum time between reconnection attempts.
	ReconnectInterval time.Duration

	// MaxReconnectAttempts is the retry budget. The attempt after the
	// budget is spent escalates to provisioning.
	MaxReconnectAttempts int

	// ProvisioningTimeout bounds how long provisioning runs before a restart.
	ProvisioningTimeout time.Duration
}

// DefaultOptions returns the firmware's reconnection policy.
func DefaultOptions() Options {
	return Options{
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 10,
		ProvisioningTimeout:  180 * time.Second,
	}
}

// Deps are the collaborators a Manager drives.
type Deps struct {
	Store       credentials.Store
	Radio       Radio
	Provisioner Provisioner
	Restart     RestartFunc
	Clock       interval.Clock
	Logger      Logger
}

// Manager is the association state machine.
type Manager struct {
	store   credentials.Store
	radio   Radio
	prov    Provisioner
	restart RestartFunc
	clock   interval.Clock
	logger  Logger
	opts    Options

	state         State
	retries       int
	reconnectGate *interval.Gate
	provGate      *interval.Gate
	inert         bool

	observers []func(from, to State)
}

// NewManager creates a Manager in the Disconnected state. Zero option
// fields take their defaults.
func NewManager(deps Deps, opts Options) *Manager {
	def := DefaultOptions()
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = def.ReconnectInterval
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if opts.ProvisioningTimeout <= 0 {
		opts.ProvisioningTimeout = def.ProvisioningTimeout
	}
	if deps.Clock == nil {
		deps.Clock = interval.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.Restart == nil {
		deps.Restart = func(string) {}
	}

	return &Manager{
		store:         deps.Store,
		radio:         deps.Radio,
		prov:          deps.Provisioner,
		restart:       deps.Restart,
		clock:         deps.Clock,
		logger:        deps.Logger,
		opts:          opts,
		state:         Disconnected,
		reconnectGate: interval.NewGate(deps.Clock, opts.ReconnectInterval),
		provGate:      interval.NewGate(deps.Clock, opts.ProvisioningTimeout),
	}
}

// OnStateChange registers fn to be called on every state transition.
// Observers run synchronously on the caller's goroutine.
func (m *Manager) OnStateChange(fn func(from, to State)) {
	m.observers = append(m.observers, fn)
}

// Begin starts the lifecycle: provisioning when no usable credentials are
// stored, otherwise an association attempt.
func (m *Manager) Begin(ctx context.Context) {
	if !m.store.IsConfigured(ctx) {
		m.logger.Info("no stored credentials, starting provisioning")
		m.StartProvisioning(ctx)
		return
	}
	m.Connect(ctx)
}

// Update advances the state machine. Call it periodically.
func (m *Manager) Update(ctx context.Context) {
	if m.inert {
		return
	}

	if m.state == Provisioning {
		m.updateProvisioning(ctx)
		return
	}

	if m.radio.Associated() {
		if m.state != Connected {
			m.setState(Connected)
			m.retries = 0
			m.logger.Info("link connected",
				"network", m.radio.NetworkName(),
				"address", m.radio.Address(),
			)
		}
		return
	}

	if m.state == Connected {
		m.setState(Disconnected)
		m.logger.Warn("link lost")
	}
	m.attemptReconnect(ctx)
}

func (m *Manager) updateProvisioning(ctx context.Context) {
	if m.prov.Done() {
		name, secret := m.prov.Result()
		creds := credentials.Credentials{NetworkName: name, Secret: secret, Configured: true}
		if err := creds.Validate(); err != nil {
			m.logger.Error("provisioned credentials rejected", "error", err)
			m.doRestart(ReasonProvisioningFailed)
			return
		}
		if err := m.store.Save(ctx, creds); err != nil {
			m.logger.Error("saving provisioned credentials failed", "error", err)
			m.doRestart(ReasonProvisioningFailed)
			return
		}
		m.logger.Info("provisioning complete", "network", name)
		m.doRestart(ReasonProvisioningComplete)
		return
	}

	if m.provGate.Due() {
		m.logger.Warn("provisioning timed out", "after", m.opts.ProvisioningTimeout)
		m.doRestart(ReasonProvisioningTimeout)
	}
}

// attemptReconnect issues at most one attempt per reconnect interval.
func (m *Manager) attemptReconnect(ctx context.Context) {
	if !m.reconnectGate.Ready() {
		return
	}

	m.retries++
	if m.retries > m.opts.MaxReconnectAttempts {
		m.logger.Warn("reconnect attempts exhausted, starting provisioning",
			"attempts", m.retries-1,
		)
		m.StartProvisioning(ctx)
		return
	}

	m.logger.Info("reconnecting",
		"attempt", m.retries,
		"max", m.opts.MaxReconnectAttempts,
	)
	if err := m.radio.Reconnect(ctx); err != nil {
		m.logger.Warn("reconnect request failed", "attempt", m.retries, "error", err)
	}
}

// Connect loads the stored credentials and starts an association attempt.
// Without usable credentials it starts provisioning instead.
func (m *Manager) Connect(ctx context.Context) {
	if m.inert {
		return
	}

	creds, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Error("loading credentials failed", "error", err)
	}
	if err != nil || !creds.Usable() {
		m.StartProvisioning(ctx)
		return
	}

	m.logger.Info("joining network", "network", creds.NetworkName)
	if err := m.radio.Join(ctx, creds.NetworkName, creds.Secret); err != nil {
		// The reconnection algorithm retries from here.
		m.logger.Warn("join request failed", "network", creds.NetworkName, "error", err)
	}
	m.setState(Connecting)
	m.retries = 0
	m.reconnectGate.Mark()
}

// Disconnect tears down the association.
func (m *Manager) Disconnect(ctx context.Context) {
	if m.inert {
		return
	}
	if err := m.radio.Leave(ctx); err != nil {
		m.logger.Warn("leave request failed", "error", err)
	}
	m.setState(Disconnected)
}

// ForceReconnect drops the association, clears the retry count and
// connects again. It is the operator's way out of a stuck state.
func (m *Manager) ForceReconnect(ctx context.Context) {
	if m.inert {
		return
	}
	if m.state == Provisioning {
		m.stopExchange()
		// Connect may fall straight back into provisioning, which must
		// then reopen the exchange.
		m.setState(Disconnected)
	}
	if err := m.radio.Leave(ctx); err != nil {
		m.logger.Warn("leave request failed", "error", err)
	}
	m.retries = 0
	m.Connect(ctx)
}

// StartProvisioning drops any association and opens the provisioning exchange.
func (m *Manager) StartProvisioning(ctx context.Context) {
	if m.inert || m.state == Provisioning {
		return
	}

	m.setState(Provisioning)
	m.retries = 0
	m.provGate.Mark()

	if err := m.radio.Leave(ctx); err != nil {
		m.logger.Warn("leave request failed", "error", err)
	}
	if err := m.prov.Start(ctx); err != nil {
		// The timeout still applies, so a broken exchange ends in a restart.
		m.logger.Error("starting provisioning failed", "error", err)
		return
	}
	m.logger.Info("provisioning started", "timeout", m.opts.ProvisioningTimeout)
}

// StopProvisioning closes the provisioning exchange and returns to
// Disconnected so the reconnection algorithm resumes.
func (m *Manager) StopProvisioning() {
	if m.inert || m.state != Provisioning {
		return
	}
	m.stopExchange()
	m.setState(Disconnected)
	m.reconnectGate.Reset()
	m.logger.Info("provisioning stopped")
}

func (m *Manager) stopExchange() {
	if err := m.prov.Stop(); err != nil {
		m.logger.Warn("stopping provisioning failed", "error", err)
	}
}

func (m *Manager) doRestart(reason string) {
	m.inert = true
	m.stopExchange()
	m.logger.Warn("restarting device", "reason", reason)
	m.restart(reason)
}

func (m *Manager) setState(to State) {
	from := m.state
	if from == to {
		return
	}
	m.state = to
	for _, fn := range m.observers {
		fn(from, to)
	}
}

// State returns the current association state.
func (m *Manager) State() State { return m.state }

// Associated reports the radio's association status directly.
func (m *Manager) Associated() bool { return m.radio.Associated() }

// IsConnected reports whether the state is Connected.
func (m *Manager) IsConnected() bool { return m.state == Connected }

// IsProvisioning reports whether the provisioning exchange is active.
func (m *Manager) IsProvisioning() bool { return m.state == Provisioning }

// RetryCount returns the reconnection attempts since the last reset.
func (m *Manager) RetryCount() int { return m.retries }

// Restarting reports whether a restart has been requested.
func (m *Manager) Restarting() bool { return m.inert }

// NetworkName returns the associated network name, or "" when not connected.
func (m *Manager) NetworkName() string {
	if m.state != Connected {
		return ""
	}
	return m.radio.NetworkName()
}

// Address returns the interface address, or "" when not connected.
func (m *Manager) Address() string {
	if m.state != Connected {
		return ""
	}
	return m.radio.Address()
}
