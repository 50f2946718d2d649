// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "liftlink"

// Set holds the client's instrumentation. A nil *Set disables all
// recording, so callers never branch on whether metrics are wired.
type Set struct {
	cycles        prometheus.Counter
	overruns      prometheus.Counter
	commandsSent  prometheus.Counter
	framesKept    prometheus.Counter
	decodeDrops   prometheus.Counter
	reconnects    prometheus.Counter
	cycleDuration prometheus.Histogram
}

// New registers the client's collectors with reg.
func New(reg prometheus.Registerer) *Set {
	factory := promauto.With(reg)

	return &Set{
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "cycles_total",
			Help:      "Control cycles executed.",
		}),
		overruns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "overruns_total",
			Help:      "Control cycles that exceeded the configured period.",
		}),
		commandsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "commands_sent_total",
			Help:      "Downlink commands successfully sent.",
		}),
		framesKept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "frames_kept_total",
			Help:      "Uplink frames applied to the telemetry snapshot.",
		}),
		decodeDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "decode_drops_total",
			Help:      "Uplink frames dropped as malformed.",
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "reconnects_total",
			Help:      "Reconnect attempts against the lift endpoint.",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "cycle_duration_seconds",
			Help:      "Control cycle wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}
}

func (s *Set) IncCycle() {
	if s == nil {
		return
	}
	s.cycles.Inc()
}

func (s *Set) IncOverrun() {
	if s == nil {
		return
	}
	s.overruns.Inc()
}

func (s *Set) IncCommandSent() {
	if s == nil {
		return
	}
	s.commandsSent.Inc()
}

func (s *Set) IncFrameKept() {
	if s == nil {
		return
	}
	s.framesKept.Inc()
}

func (s *Set) IncDecodeDrop() {
	if s == nil {
		return
	}
	s.decodeDrops.Inc()
}

func (s *Set) IncReconnect() {
	if s == nil {
		return
	}
	s.reconnects.Inc()
}

func (s *Set) ObserveCycle(d time.Duration) {
	if s == nil {
		return
	}
	s.cycleDuration.Observe(d.Seconds())
}
