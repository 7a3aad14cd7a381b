package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the scanning pipeline.
type Metrics struct {
	Scans        *prometheus.CounterVec
	Violations   *prometheus.CounterVec
	Failures     *prometheus.CounterVec
	ScanDuration prometheus.Histogram
	CircuitState *prometheus.GaugeVec
}

func New() *Metrics {
	return &Metrics{
		Scans: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_scans_total",
			Help: "Completed scans labeled by content type and action",
		}, []string{"content_type", "action"}),
		Violations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_scan_violations_total",
			Help: "Violations found labeled by type and source",
		}, []string{"type", "source"}),
		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_scan_failures_total",
			Help: "Analyses that failed and forced a fail-closed quarantine",
		}, []string{"analysis"}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "guardian_scan_duration_seconds",
			Help:    "End-to-end scan latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		CircuitState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "guardian_classifier_circuit_state",
			Help: "Classifier circuit state (0 closed, 1 open, 2 half open)",
		}, []string{"classifier"}),
	}
}

func (m *Metrics) IncrementScan(contentType, action string) {
	m.Scans.WithLabelValues(contentType, action).Inc()
}

func (m *Metrics) IncrementViolation(violationType, source string) {
	m.Violations.WithLabelValues(violationType, source).Inc()
}

func (m *Metrics) IncrementFailure(analysis string) {
	m.Failures.WithLabelValues(analysis).Inc()
}

func (m *Metrics) ObserveScanDuration(seconds float64) {
	m.ScanDuration.Observe(seconds)
}

func (m *Metrics) SetCircuitState(classifier string, state int) {
	m.CircuitState.WithLabelValues(classifier).Set(float64(state))
}
