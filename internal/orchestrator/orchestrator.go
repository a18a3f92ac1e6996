package orchestrator

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-lightnode/internal/buttons"
	"github.com/nerrad567/gray-logic-lightnode/internal/credentials"
	"github.com/nerrad567/gray-logic-lightnode/internal/interval"
	"github.com/nerrad567/gray-logic-lightnode/internal/light"
	"github.com/nerrad567/gray-logic-lightnode/internal/link"
	"github.com/nerrad567/gray-logic-lightnode/internal/protocol"
	"github.com/nerrad567/gray-logic-lightnode/internal/session"
)

// ReasonFactoryReset is passed to the restart capability after a reset.
const ReasonFactoryReset = "factory reset"

// Command origins reported to Metrics.
const (
	OriginMQTT   = "mqtt"
	OriginButton = "button"
	OriginAPI    = "api"
)

const requestQueueSize = 16

// Options sets the loop cadences.
type Options struct {
	// TickInterval is how often Run calls Tick.
	TickInterval time.Duration

	// LinkCheckInterval paces link Update calls.
	LinkCheckInterval time.Duration

	// SessionCheckInterval paces session Tick calls.
	SessionCheckInterval time.Duration
}

// DefaultOptions returns the firmware cadences.
func DefaultOptions() Options {
	return Options{
		TickInterval:         10 * time.Millisecond,
		LinkCheckInterval:    10 * time.Second,
		SessionCheckInterval: 2 * time.Second,
	}
}

// Deps are the components the loop drives.
type Deps struct {
	Link      Link
	Session   Session
	Light     *light.Controller
	Store     credentials.Store
	Restart   link.RestartFunc
	Buttons   <-chan buttons.Button
	Notifiers []Notifier
	Metrics   Metrics
	Clock     interval.Clock
	Logger    Logger

	// OnStatus is called from the control goroutine whenever the
	// published status changes. It must not block.
	OnStatus func(Status)
}

// Orchestrator ties the link, the session and the lamp together.
type Orchestrator struct {
	link      Link
	session   Session
	light     *light.Controller
	store     credentials.Store
	restart   link.RestartFunc
	buttons   <-chan buttons.Button
	notifiers []Notifier
	metrics   Metrics
	clock     interval.Clock
	logger    Logger
	opts      Options

	linkGate    *interval.Gate
	sessionGate *interval.Gate
	restarting  bool

	requests chan Request
	status   atomic.Pointer[Status]
	onStatus func(Status)
}

// New wires the components together. Zero option fields take their defaults.
func New(deps Deps, opts Options) *Orchestrator {
	def := DefaultOptions()
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.LinkCheckInterval <= 0 {
		opts.LinkCheckInterval = def.LinkCheckInterval
	}
	if opts.SessionCheckInterval <= 0 {
		opts.SessionCheckInterval = def.SessionCheckInterval
	}
	if deps.Clock == nil {
		deps.Clock = interval.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Restart == nil {
		deps.Restart = func(string) {}
	}

	o := &Orchestrator{
		link:        deps.Link,
		session:     deps.Session,
		light:       deps.Light,
		store:       deps.Store,
		restart:     deps.Restart,
		buttons:     deps.Buttons,
		notifiers:   deps.Notifiers,
		metrics:     deps.Metrics,
		clock:       deps.Clock,
		logger:      deps.Logger,
		opts:        opts,
		linkGate:    interval.NewGate(deps.Clock, opts.LinkCheckInterval),
		sessionGate: interval.NewGate(deps.Clock, opts.SessionCheckInterval),
		requests:    make(chan Request, requestQueueSize),
		onStatus:    deps.OnStatus,
	}

	o.session.SetCommandHandler(func(cmd protocol.Command) {
		o.apply(cmd, OriginMQTT)
	})
	o.session.SetAnnouncer(announce(o.light))

	o.link.OnStateChange(o.linkChanged)
	o.session.OnStateChange(func(from, to session.State) {
		for _, n := range o.notifiers {
			n.SessionChanged(from, to)
		}
	})
	o.light.OnChange(o.lightChanged)

	return o
}

// Run starts the link lifecycle and ticks until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.Begin(ctx)

	ticker := time.NewTicker(o.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// Begin starts the link lifecycle. The first link and session checks
// happen one full interval later.
func (o *Orchestrator) Begin(ctx context.Context) {
	o.link.Begin(ctx)
	o.linkGate.Mark()
	o.sessionGate.Mark()
	o.publishStatus()
}

// Tick runs one pass of the loop.
func (o *Orchestrator) Tick(ctx context.Context) {
	if o.restarting {
		return
	}
	start := time.Now()

	o.drainRequests(ctx)
	if o.restarting {
		return
	}
	o.drainButtons()
	o.session.Drain()

	if o.linkGate.Ready() {
		o.link.Update(ctx)
	}
	if !o.link.IsProvisioning() && o.sessionGate.Ready() {
		o.session.Tick(ctx)
	}

	o.metrics.ObserveCounters(o.link.RetryCount(), o.session.Attempts())
	o.metrics.ObserveTick(time.Since(start))
	o.publishStatus()
}

func (o *Orchestrator) drainRequests(ctx context.Context) {
	for {
		select {
		case r := <-o.requests:
			o.handleRequest(ctx, r)
			if o.restarting {
				return
			}
		default:
			return
		}
	}
}

func (o *Orchestrator) handleRequest(ctx context.Context, r Request) {
	o.logger.Info("operator request", "kind", r.Kind.String())

	switch r.Kind {
	case RequestReconnect:
		o.link.ForceReconnect(ctx)
	case RequestProvisioning:
		o.link.StartProvisioning(ctx)
	case RequestSessionReset:
		o.session.ResetAttempts()
	case RequestCommand:
		o.apply(r.Command, OriginAPI)
	case RequestFactoryReset:
		if err := o.store.Clear(ctx); err != nil {
			o.logger.Warn("clearing credentials failed", "error", err)
		}
		o.restarting = true
		o.publishStatus()
		o.restart(ReasonFactoryReset)
	default:
		o.logger.Warn("unknown operator request", "kind", int(r.Kind))
	}
}

func (o *Orchestrator) drainButtons() {
	if o.buttons == nil {
		return
	}
	for {
		select {
		case b := <-o.buttons:
			o.press(b)
		default:
			return
		}
	}
}

func (o *Orchestrator) press(b buttons.Button) {
	o.logger.Debug("button pressed", "button", b.String())
	switch b {
	case buttons.Power:
		o.light.Toggle()
	case buttons.Up:
		o.light.Increase()
	case buttons.Down:
		o.light.Decrease()
	default:
		return
	}
	o.metrics.CommandApplied(b.String(), OriginButton)
}

// apply maps a decoded command to the lamp. "on" only acts on a lamp that
// is off, advancing its mode first. A level command applies brightness
// only; its mode token is not used.
func (o *Orchestrator) apply(cmd protocol.Command, origin string) {
	switch cmd.Kind {
	case protocol.TurnOn:
		if !o.light.Snapshot().On {
			o.light.AdvanceMode()
			o.light.TurnOn()
		}
	case protocol.TurnOff:
		o.light.TurnOff()
	case protocol.SetLevel:
		o.light.SetLevel(cmd.Brightness)
	default:
		return
	}
	o.metrics.CommandApplied(cmd.Kind.String(), origin)
}

func (o *Orchestrator) linkChanged(from, to link.State) {
	// A fresh association is the event that re-arms a session that gave up.
	if to == link.Connected && o.session.Exhausted() {
		o.logger.Info("link connected, re-arming session retries")
		o.session.ResetAttempts()
	}
	for _, n := range o.notifiers {
		n.LinkChanged(from, to)
	}
}

func (o *Orchestrator) lightChanged(ch light.Change) {
	if ch.StateChanged {
		o.publish(protocol.TopicState, protocol.StateLabel(ch.On))
	}
	if ch.BrightnessChanged && ch.On {
		o.publish(protocol.TopicBrightness, strconv.Itoa(ch.Brightness))
	}
	for _, n := range o.notifiers {
		n.LightChanged(ch.Snapshot)
	}
}

func (o *Orchestrator) publish(topic, payload string) {
	if err := o.session.Publish(topic, payload); err != nil {
		o.logger.Debug("telemetry dropped", "topic", topic, "error", err)
	}
}
