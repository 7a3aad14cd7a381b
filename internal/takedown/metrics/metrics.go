package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the takedown workflow.
type Metrics struct {
	Submitted      prometheus.Counter
	Outcomes       *prometheus.CounterVec
	Failures       prometheus.Counter
	CounterNotices prometheus.Counter
	Restorations   *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "guardian_takedowns_submitted_total",
			Help: "Takedown notices accepted",
		}),
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_takedown_outcomes_total",
			Help: "Takedown status transitions, labeled by status and reason",
		}, []string{"status", "reason"}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "guardian_takedown_processing_failures_total",
			Help: "Takedowns left in place after a processing failure",
		}),
		CounterNotices: promauto.NewCounter(prometheus.CounterOpts{
			Name: "guardian_counter_notices_total",
			Help: "Counter-notices accepted",
		}),
		Restorations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_restorations_total",
			Help: "Scheduled restorations by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementSubmitted() {
	m.Submitted.Inc()
}

func (m *Metrics) IncrementOutcome(status, reason string) {
	m.Outcomes.WithLabelValues(status, reason).Inc()
}

func (m *Metrics) IncrementFailure() {
	m.Failures.Inc()
}

func (m *Metrics) IncrementCounterNotice() {
	m.CounterNotices.Inc()
}

func (m *Metrics) IncrementRestoration(outcome string) {
	m.Restorations.WithLabelValues(outcome).Inc()
}
