// Package metrics exposes the node's connectivity state to Prometheus.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-lightnode/internal/light"
	"github.com/nerrad567/gray-logic-lightnode/internal/link"
	"github.com/nerrad567/gray-logic-lightnode/internal/session"
)

const namespace = "lightnode"

var linkStates = []link.State{link.Disconnected, link.Connecting, link.Connected, link.Provisioning}

// Recorder holds the node's Prometheus collectors on a private registry.
type Recorder struct {
	reg *prom.Registry

	linkState         *prom.GaugeVec
	linkTransitions   *prom.CounterVec
	linkRetries       prom.Gauge
	sessionOpen       prom.Gauge
	sessionOpens      prom.Counter
	sessionAttempts   prom.Gauge
	lightOn           prom.Gauge
	lightBrightness   prom.Gauge
	lightMode         prom.Gauge
	commandsTotal     *prom.CounterVec
	tickDuration      prom.Histogram
	restartsRequested *prom.CounterVec
}

// NewRecorder constructs and registers the collectors. A nil registry
// gets a fresh one that also carries the Go and process collectors.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
		reg.MustRegister(
			promcollect.NewGoCollector(),
			promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}),
		)
	}
	r := &Recorder{reg: reg}

	r.linkState = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "link_state",
		Help:      "1 for the current wireless link state, 0 otherwise",
	}, []string{"state"})
	r.linkTransitions = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "link_transitions_total",
		Help:      "Wireless link transitions by target state",
	}, []string{"to"})
	r.linkRetries = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "link_reconnect_attempts",
		Help:      "Reconnect attempts since the link was last connected",
	})
	r.sessionOpen = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "session_open",
		Help:      "1 while the MQTT session is open",
	})
	r.sessionOpens = prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "session_opens_total",
		Help:      "Successful MQTT session opens",
	})
	r.sessionAttempts = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "session_open_attempts",
		Help:      "Session open attempts since the last success or reset",
	})
	r.lightOn = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "light_on",
		Help:      "1 while the lamp is on",
	})
	r.lightBrightness = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "light_brightness",
		Help:      "Lamp brightness 0..100",
	})
	r.lightMode = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "light_mode",
		Help:      "Lamp mode (0 off, 1 white, 2 yellow, 3 both)",
	})
	r.commandsTotal = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Commands applied by kind and origin",
	}, []string{"kind", "origin"})
	r.tickDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Duration of orchestrator ticks",
		Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5},
	})
	r.restartsRequested = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "restarts_requested_total",
		Help:      "Device restarts requested by reason",
	}, []string{"reason"})

	reg.MustRegister(
		r.linkState, r.linkTransitions, r.linkRetries,
		r.sessionOpen, r.sessionOpens, r.sessionAttempts,
		r.lightOn, r.lightBrightness, r.lightMode,
		r.commandsTotal, r.tickDuration, r.restartsRequested,
	)

	r.setLinkState(link.Disconnected)
	return r
}

// Registry returns the registry the collectors live on.
func (r *Recorder) Registry() *prom.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// LinkChanged implements the orchestrator's notifier.
func (r *Recorder) LinkChanged(_, to link.State) {
	r.setLinkState(to)
	r.linkTransitions.WithLabelValues(to.String()).Inc()
}

// SessionChanged implements the orchestrator's notifier.
func (r *Recorder) SessionChanged(_, to session.State) {
	if to == session.Open {
		r.sessionOpen.Set(1)
		r.sessionOpens.Inc()
		return
	}
	r.sessionOpen.Set(0)
}

// LightChanged implements the orchestrator's notifier.
func (r *Recorder) LightChanged(s light.Snapshot) {
	on := 0.0
	if s.On {
		on = 1
	}
	r.lightOn.Set(on)
	r.lightBrightness.Set(float64(s.Brightness))
	r.lightMode.Set(float64(s.Mode))
}

// ObserveCounters records the retry counters after a tick.
func (r *Recorder) ObserveCounters(linkRetries, sessionAttempts int) {
	r.linkRetries.Set(float64(linkRetries))
	r.sessionAttempts.Set(float64(sessionAttempts))
}

// ObserveTick records how long one orchestrator tick took.
func (r *Recorder) ObserveTick(d time.Duration) {
	r.tickDuration.Observe(d.Seconds())
}

// CommandApplied counts a command by kind and origin (mqtt, button, api).
func (r *Recorder) CommandApplied(kind, origin string) {
	r.commandsTotal.WithLabelValues(kind, origin).Inc()
}

// RestartRequested counts a restart by reason.
func (r *Recorder) RestartRequested(reason string) {
	r.restartsRequested.WithLabelValues(reason).Inc()
}

func (r *Recorder) setLinkState(current link.State) {
	for _, s := range linkStates {
		v := 0.0
		if s == current {
			v = 1
		}
		r.linkState.WithLabelValues(s.String()).Set(v)
	}
}
