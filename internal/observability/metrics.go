package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Attempt and upload outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeFailed  = "failed"
)

// Metrics holds the prometheus collectors for report generation.
// Each instance owns its registry so tests and multiple servers do not collide.
type Metrics struct {
	registry *prometheus.Registry

	attempts      *prometheus.CounterVec
	duration      prometheus.Histogram
	chartFailures prometheus.Counter
	uploads       *prometheus.CounterVec
	inFlight      prometheus.Gauge
	cleaned       prometheus.Counter
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_generation_attempts_total",
			Help: "Report generation attempts by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "report_generation_duration_seconds",
			Help:    "Wall time of a full report generation including retries.",
			Buckets: []float64{5, 15, 30, 60, 120, 240, 480, 900},
		}),
		chartFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "report_chart_wait_failures_total",
			Help: "Chart selectors that did not appear before their timeout.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "report_uploads_total",
			Help: "Artifact upload attempts by outcome.",
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "report_jobs_in_flight",
			Help: "Report generations currently running.",
		}),
		cleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "report_jobs_cleaned_total",
			Help: "Job rows removed by the expiry sweep.",
		}),
	}
	m.registry.MustRegister(
		m.attempts, m.duration, m.chartFailures, m.uploads, m.inFlight, m.cleaned,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry (used by tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Nil-safe recorders: components accept a nil *Metrics.

func (m *Metrics) ObserveAttempt(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) AddChartFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chartFailures.Add(float64(n))
}

func (m *Metrics) ObserveUpload(outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}

func (m *Metrics) AddCleaned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.cleaned.Add(float64(n))
}
