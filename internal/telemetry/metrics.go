// Package telemetry exposes dictation latency metrics over Prometheus and
// exports cycle traces through OpenTelemetry.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voyc"

// Metrics holds the dictation collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	stageLatency *prometheus.HistogramVec
	cycles       *prometheus.CounterVec
	thresholds   *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	providerErrs *prometheus.CounterVec
	audioSeconds prometheus.Histogram
}

// NewMetrics registers every collector plus the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		stageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_seconds",
			Help:      "Latency of each dictation stage.",
			Buckets:   []float64{.025, .05, .1, .25, .5, 1, 1.5, 2, 3, 5, 10},
		}, []string{"stage"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Dictation cycles by outcome.",
		}, []string{"outcome"}),
		thresholds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "latency_threshold_exceeded_total",
			Help:      "Cycles whose latency exceeded a configured threshold.",
		}, []string{"threshold"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Accepted state machine transitions.",
		}, []string{"from", "to"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Transcript deliveries by outcome.",
		}, []string{"outcome"}),
		providerErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider failures by provider and kind.",
		}, []string{"provider", "kind"}),
		audioSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "captured_audio_seconds",
			Help:      "Duration of audio captured per cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
	}

	reg.MustRegister(
		m.stageLatency,
		m.cycles,
		m.thresholds,
		m.transitions,
		m.deliveries,
		m.providerErrs,
		m.audioSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// All recorders below are no-ops on a nil receiver.

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) CycleFinished(outcome string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ThresholdExceeded(threshold string) {
	if m == nil {
		return
	}
	m.thresholds.WithLabelValues(threshold).Inc()
}

func (m *Metrics) Transition(from string, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Delivery(outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ProviderError(provider string, kind string) {
	if m == nil {
		return
	}
	m.providerErrs.WithLabelValues(provider, kind).Inc()
}

func (m *Metrics) CapturedAudio(d time.Duration) {
	if m == nil {
		return
	}
	m.audioSeconds.Observe(d.Seconds())
}
