package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-lightnode/internal/interval"
	"github.com/nerrad567/gray-logic-lightnode/internal/protocol"
)

// DefaultCommandTopic is the command topic used when none is configured.
const DefaultCommandTopic = "led002"

// defaultQueueSize bounds the inbound message queue.
const defaultQueueSize = 32

// Options tunes the session retry policy.
type Options struct {
	// RetryInterval is the minimum time between open attempts.
	RetryInterval time.Duration

	// MaxAttempts is the open budget. Once spent the manager stops trying
	// until ResetAttempts is called or ResetAfter elapses.
	MaxAttempts int

	// CommandTopic is the only inbound topic the manager acts on.
	CommandTopic string

	// ResetAfter re-arms the budget this long after exhaustion. Zero keeps
	// the manager idle until an explicit reset.
	ResetAfter time.Duration

	// QueueSize bounds inbound messages awaiting the next Tick.
	QueueSize int
}

// DefaultOptions returns the firmware's session policy.
func DefaultOptions() Options {
	return Options{
		RetryInterval: 5 * time.Second,
		MaxAttempts:   10,
		CommandTopic:  DefaultCommandTopic,
		QueueSize:     defaultQueueSize,
	}
}

// Deps are the collaborators a Manager drives.
type Deps struct {
	Broker Broker
	Link   LinkStatus
	Clock  interval.Clock
	Logger Logger
}

type inbound struct {
	topic   string
	payload []byte
}

// Manager owns the session lifecycle. Apart from Deliver and Dropped, its
// methods must be called from the control goroutine.
type Manager struct {
	broker Broker
	link   LinkStatus
	clock  interval.Clock
	logger Logger
	opts   Options

	state       State
	attempts    int
	exhausted   bool
	exhaustedAt time.Time
	retryGate   *interval.Gate

	handler   CommandHandler
	announcer Announcer
	observers []func(from, to State)

	queue   chan inbound
	dropped atomic.Uint64
}

// NewManager creates a Manager with the session Closed. Zero option
// fields take their defaults.
func NewManager(deps Deps, opts Options) *Manager {
	def := DefaultOptions()
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = def.RetryInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.CommandTopic == "" {
		opts.CommandTopic = def.CommandTopic
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if deps.Clock == nil {
		deps.Clock = interval.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	return &Manager{
		broker:    deps.Broker,
		link:      deps.Link,
		clock:     deps.Clock,
		logger:    deps.Logger,
		opts:      opts,
		state:     Closed,
		retryGate: interval.NewGate(deps.Clock, opts.RetryInterval),
		queue:     make(chan inbound, opts.QueueSize),
	}
}

// SetCommandHandler registers the receiver of decoded commands.
func (m *Manager) SetCommandHandler(h CommandHandler) {
	m.handler = h
}

// SetAnnouncer registers the source of the post-open status burst.
func (m *Manager) SetAnnouncer(a Announcer) {
	m.announcer = a
}

// OnStateChange registers fn to be called on every state transition.
func (m *Manager) OnStateChange(fn func(from, to State)) {
	m.observers = append(m.observers, fn)
}

// Tick advances the session. It does nothing while the link is down or
// provisioning.
func (m *Manager) Tick(ctx context.Context) {
	if !m.link.IsConnected() || m.link.IsProvisioning() {
		return
	}

	if m.state == Open && !m.broker.IsConnected() {
		m.logger.Warn("session lost")
		m.setState(Closed)
	}
	if m.state == Open {
		return
	}
	m.attemptOpen(ctx)
}

func (m *Manager) attemptOpen(ctx context.Context) {
	if m.exhausted {
		if m.opts.ResetAfter <= 0 || m.clock.Now().Sub(m.exhaustedAt) < m.opts.ResetAfter {
			return
		}
		m.logger.Info("session retry budget re-armed", "after", m.opts.ResetAfter)
		m.ResetAttempts()
	}

	if !m.retryGate.Ready() {
		return
	}

	m.attempts++
	if m.attempts > m.opts.MaxAttempts {
		m.exhausted = true
		m.exhaustedAt = m.clock.Now()
		m.logger.Warn("session retry budget exhausted, giving up",
			"max_attempts", m.opts.MaxAttempts,
		)
		return
	}

	m.logger.Debug("opening session",
		"attempt", m.attempts,
		"max_attempts", m.opts.MaxAttempts,
	)
	if err := m.broker.Open(ctx); err != nil {
		m.logger.Warn("session open failed",
			"attempt", m.attempts,
			"max_attempts", m.opts.MaxAttempts,
			"error", err,
		)
		return
	}

	m.attempts = 0
	if err := m.broker.Subscribe(m.opts.CommandTopic, m.Deliver); err != nil {
		m.logger.Warn("command subscription failed",
			"topic", m.opts.CommandTopic,
			"error", err,
		)
	}
	m.setState(Open)
	m.logger.Info("session open", "command_topic", m.opts.CommandTopic)
	m.announce()
}

func (m *Manager) announce() {
	if m.announcer == nil {
		return
	}
	for _, msg := range m.announcer() {
		if err := m.Publish(msg.Topic, msg.Payload); err != nil {
			m.logger.Debug("status publish failed", "topic", msg.Topic, "error", err)
		}
	}
}

// Publish sends payload on topic at-most-once.
func (m *Manager) Publish(topic, payload string) error {
	if m.state != Open {
		return ErrSessionClosed
	}
	return m.broker.Publish(topic, []byte(payload))
}

// Deliver queues an inbound message for the next Drain. It is safe to call
// from any goroutine and drops the message when the queue is full.
func (m *Manager) Deliver(topic string, payload []byte) {
	msg := inbound{topic: topic, payload: append([]byte(nil), payload...)}
	select {
	case m.queue <- msg:
	default:
		m.dropped.Add(1)
	}
}

// Dropped returns how many inbound messages were discarded on overflow.
func (m *Manager) Dropped() uint64 {
	return m.dropped.Load()
}

// Drain hands every queued inbound message to OnMessage. The control loop
// calls it on every pass, independent of the Tick cadence, so commands
// apply within one loop period.
func (m *Manager) Drain() {
	for {
		select {
		case msg := <-m.queue:
			m.OnMessage(msg.topic, msg.payload)
		default:
			return
		}
	}
}

// OnMessage decodes a command payload and hands it to the command
// handler. Other topics and unrecognised payloads are ignored.
func (m *Manager) OnMessage(topic string, payload []byte) {
	if topic != m.opts.CommandTopic {
		return
	}
	cmd, ok := protocol.Decode(payload)
	if !ok {
		m.logger.Debug("ignoring unrecognised command", "payload", string(payload))
		return
	}
	if m.handler != nil {
		m.handler(cmd)
	}
}

// Close ends the session. Used on shutdown.
func (m *Manager) Close() error {
	err := m.broker.Close()
	m.setState(Closed)
	return err
}

// ResetAttempts clears the attempt counter and any exhaustion so the next
// Tick may try again immediately.
func (m *Manager) ResetAttempts() {
	m.attempts = 0
	m.exhausted = false
	m.retryGate.Reset()
}

// Attempts returns the open attempts made since the last success or reset.
func (m *Manager) Attempts() int { return m.attempts }

// Exhausted reports whether the manager has stopped attempting.
func (m *Manager) Exhausted() bool { return m.exhausted }

// State returns the session state.
func (m *Manager) State() State { return m.state }

// IsOpen reports whether the session is open.
func (m *Manager) IsOpen() bool { return m.state == Open }

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
