package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sidecar",
			Subsystem: "backend",
			Name:      "probes_total",
			Help:      "Number of liveness probes by result (live or down).",
		}, []string{"result"},
	)
	spawnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sidecar",
			Subsystem: "backend",
			Name:      "spawns_total",
			Help:      "Number of backend spawn attempts by result (spawned, skipped, failed).",
		}, []string{"result"},
	)
	outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sidecar",
			Subsystem: "supervisor",
			Name:      "outcomes_total",
			Help:      "Number of supervision sequences by terminal outcome.",
		}, []string{"outcome"},
	)
	waitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sidecar",
			Subsystem: "supervisor",
			Name:      "wait_duration_seconds",
			Help:      "Time from launch to terminal state.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"outcome"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sidecar",
			Subsystem: "supervisor",
			Name:      "state_transitions_total",
			Help:      "Number of supervisor state transitions.",
		}, []string{"from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sidecar",
			Subsystem: "supervisor",
			Name:      "current_state",
			Help:      "Current supervisor state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	backendCPU = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sidecar",
			Subsystem: "backend",
			Name:      "cpu_percent",
			Help:      "Last sampled CPU usage of the spawned backend.",
		},
	)
	backendRSS = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sidecar",
			Subsystem: "backend",
			Name:      "memory_rss_bytes",
			Help:      "Last sampled resident memory of the spawned backend.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{probesTotal, spawnsTotal, outcomesTotal, waitDuration, stateTransitions, currentState, backendCPU, backendRSS}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// already registered with the default registry: keep existing
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncProbe(live bool) {
	if regOK.Load() {
		result := "down"
		if live {
			result = "live"
		}
		probesTotal.WithLabelValues(result).Inc()
	}
}

func IncSpawn(result string) {
	if regOK.Load() {
		spawnsTotal.WithLabelValues(result).Inc()
	}
}

func ObserveOutcome(outcome string, seconds float64) {
	if regOK.Load() {
		outcomesTotal.WithLabelValues(outcome).Inc()
		waitDuration.WithLabelValues(outcome).Observe(seconds)
	}
}

func RecordStateTransition(from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(from, to).Inc()
		currentState.WithLabelValues(from).Set(0)
		currentState.WithLabelValues(to).Set(1)
	}
}

func SetBackendUsage(cpuPercent float64, rss uint64) {
	if regOK.Load() {
		backendCPU.Set(cpuPercent)
		backendRSS.Set(float64(rss))
	}
}
