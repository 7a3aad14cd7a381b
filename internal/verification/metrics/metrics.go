package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for age verification.
type Metrics struct {
	Submitted        *prometheus.CounterVec
	Outcomes         *prometheus.CounterVec
	Rejections       *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	Recovered        prometheus.Counter
}

// New registers and returns verification metrics collectors.
func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_verification_submitted_total",
			Help: "Verification requests accepted, labeled by method",
		}, []string{"method"}),
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_verification_outcomes_total",
			Help: "Verification requests reaching a terminal status",
		}, []string{"method", "status"}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_verification_refused_total",
			Help: "Submissions refused before processing (blocked, geo_restricted, already_verified)",
		}, []string{"reason"}),
		ProviderFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_verification_provider_failures_total",
			Help: "Provider calls that failed after retries, labeled by error category",
		}, []string{"method", "category"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guardian_verification_provider_latency_seconds",
			Help:    "Latency of provider checks in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		Recovered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "guardian_verification_recovered_total",
			Help: "Stalled processing requests returned to pending",
		}),
	}
}

func (m *Metrics) IncrementSubmitted(method string) {
	m.Submitted.WithLabelValues(method).Inc()
}

func (m *Metrics) IncrementOutcome(method, status string) {
	m.Outcomes.WithLabelValues(method, status).Inc()
}

func (m *Metrics) IncrementRefused(reason string) {
	m.Rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementProviderFailure(method, category string) {
	m.ProviderFailures.WithLabelValues(method, category).Inc()
}

func (m *Metrics) ObserveProviderLatency(method string, durationSeconds float64) {
	m.ProviderLatency.WithLabelValues(method).Observe(durationSeconds)
}

func (m *Metrics) IncrementRecovered() {
	m.Recovered.Inc()
}
