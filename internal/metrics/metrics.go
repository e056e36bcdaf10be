// internal/metrics/metrics.go

// Package metrics exposes Prometheus instrumentation for analysis runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pulse"

// Metrics holds all service collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	RunsStarted    *prometheus.CounterVec
	RunsFinished   *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	SignalsDropped *prometheus.CounterVec
	Volatility     prometheus.Gauge

	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: reg}
	initRunMetrics(m, promauto.With(reg))
	initProviderMetrics(m, promauto.With(reg))
	return m
}

func initRunMetrics(m *Metrics, f promauto.Factory) {
	m.RunsStarted = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_started_total",
		Help:      "Analysis runs started",
	}, []string{"variant"})

	m.RunsFinished = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_finished_total",
		Help:      "Analysis runs finished by outcome (complete, cancelled, or error kind)",
	}, []string{"variant", "outcome"})

	m.StageDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each pipeline stage",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"variant", "stage"})

	m.SignalsDropped = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signals_dropped_total",
		Help:      "Signals removed before scoring, by reason",
	}, []string{"reason"})

	m.Volatility = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "snapshot_volatility",
		Help:      "Volatility of the latest completed sentiment run",
	})
}

func initProviderMetrics(m *Metrics, f promauto.Factory) {
	m.ProviderRequests = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Outbound provider calls by provider and outcome",
	}, []string{"provider", "outcome"})

	m.ProviderDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_duration_seconds",
		Help:      "Outbound provider call latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"provider"})
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RunStarted counts a new run
func (m *Metrics) RunStarted(variant string) {
	m.RunsStarted.WithLabelValues(variant).Inc()
}

// RunFinished counts a finished run by outcome
func (m *Metrics) RunFinished(variant, outcome string) {
	m.RunsFinished.WithLabelValues(variant, outcome).Inc()
}

// StageCompleted records how long a stage took
func (m *Metrics) StageCompleted(variant, stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(variant, stage).Observe(d.Seconds())
}

// SignalsRemoved adds n dropped signals under reason
func (m *Metrics) SignalsRemoved(reason string, n int) {
	if n <= 0 {
		return
	}
	m.SignalsDropped.WithLabelValues(reason).Add(float64(n))
}

// VolatilityObserved records the latest volatility score
func (m *Metrics) VolatilityObserved(v int) {
	m.Volatility.Set(float64(v))
}

// ProviderCall records one outbound provider request
func (m *Metrics) ProviderCall(provider string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}
