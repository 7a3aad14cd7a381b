package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the offender ledger.
type Metrics struct {
	ViolationsRecorded  *prometheus.CounterVec
	DuplicateViolations *prometheus.CounterVec
	ThresholdCrossed    *prometheus.CounterVec
	StatusChanges       *prometheus.CounterVec
	IncrementLatency    prometheus.Histogram
}

// New registers and returns ledger metrics collectors.
func New() *Metrics {
	return &Metrics{
		ViolationsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_ledger_violations_recorded_total",
			Help: "Total violations counted against subjects, labeled by source",
		}, []string{"source"}),
		DuplicateViolations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_ledger_duplicate_violations_total",
			Help: "Violations ignored because their idempotency key was already counted",
		}, []string{"source"}),
		ThresholdCrossed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_ledger_threshold_crossed_total",
			Help: "Subjects moved to suspended by reaching the escalation threshold",
		}, []string{"kind"}),
		StatusChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_ledger_status_changes_total",
			Help: "Explicit status changes (suspend, ban, reset)",
		}, []string{"status"}),
		IncrementLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "guardian_ledger_increment_latency_seconds",
			Help:    "Latency of ledger increments in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementViolations(source string) {
	m.ViolationsRecorded.WithLabelValues(source).Inc()
}

func (m *Metrics) IncrementDuplicates(source string) {
	m.DuplicateViolations.WithLabelValues(source).Inc()
}

func (m *Metrics) IncrementThresholdCrossed(kind string) {
	m.ThresholdCrossed.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementStatusChanges(status string) {
	m.StatusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveIncrementLatency(durationSeconds float64) {
	m.IncrementLatency.Observe(durationSeconds)
}
