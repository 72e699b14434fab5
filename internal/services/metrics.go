package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Metrics groups the engine's Prometheus collectors.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	fetcherLatency  *prometheus.HistogramVec
	fetcherErrors   *prometheus.CounterVec
	fetcherTimeouts *prometheus.CounterVec
	auditEntries    *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

func NewMetrics(logger *logrus.Logger) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total number of recommendation requests by mode and outcome",
		}, []string{"mode", "outcome"}),

		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recommendation_latency_seconds",
			Help:    "Recommendation request latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"mode"}),

		fetcherLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recommendation_fetcher_latency_seconds",
			Help:    "Candidate fetcher latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 1.5},
		}, []string{"strategy"}),

		fetcherErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_fetcher_errors_total",
			Help: "Candidate fetcher failures by strategy",
		}, []string{"strategy"}),

		fetcherTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_fetcher_timeouts_total",
			Help: "Fetchers that did not complete before the fetch deadline",
		}, []string{"strategy"}),

		auditEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_audit_entries_total",
			Help: "Impression audit entries by outcome (written, dropped, failed)",
		}, []string{"outcome"}),

		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recommendation_audit_breaker_state",
			Help: "Audit sink circuit breaker state (0 = closed, 1 = half-open, 2 = open)",
		}, []string{"sink"}),
	}

	m.requests = register(logger, m.requests).(*prometheus.CounterVec)
	m.requestLatency = register(logger, m.requestLatency).(*prometheus.HistogramVec)
	m.fetcherLatency = register(logger, m.fetcherLatency).(*prometheus.HistogramVec)
	m.fetcherErrors = register(logger, m.fetcherErrors).(*prometheus.CounterVec)
	m.fetcherTimeouts = register(logger, m.fetcherTimeouts).(*prometheus.CounterVec)
	m.auditEntries = register(logger, m.auditEntries).(*prometheus.CounterVec)
	m.breakerState = register(logger, m.breakerState).(*prometheus.GaugeVec)

	return m
}

// register adds c to the default registry, reusing the collector that is
// already registered under the same descriptor.
func register(logger *logrus.Logger, c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		logger.WithError(err).Warn("Failed to register metric")
	}
	return c
}

func (m *Metrics) observeRequest(mode string, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(mode, outcome).Inc()
	m.requestLatency.WithLabelValues(mode).Observe(seconds)
}

func (m *Metrics) observeFetcher(strategy string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.fetcherLatency.WithLabelValues(strategy).Observe(seconds)
	if err != nil {
		m.fetcherErrors.WithLabelValues(strategy).Inc()
	}
}

func (m *Metrics) fetcherTimedOut(strategy string) {
	if m == nil {
		return
	}
	m.fetcherTimeouts.WithLabelValues(strategy).Inc()
}

func (m *Metrics) auditOutcome(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.auditEntries.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) setBreakerState(sink string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(sink).Set(state)
}
