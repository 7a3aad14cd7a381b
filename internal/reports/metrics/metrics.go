package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for report intake.
type Metrics struct {
	Submitted  *prometheus.CounterVec
	Duplicates prometheus.Counter
	Actions    *prometheus.CounterVec
	Outcomes   *prometheus.CounterVec
	Failures   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_reports_submitted_total",
			Help: "Reports accepted, labeled by priority",
		}, []string{"priority"}),
		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "guardian_reports_duplicate_total",
			Help: "Resubmissions answered with the original report",
		}),
		Actions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_report_actions_total",
			Help: "Moderation actions executed, labeled by action and whether automated",
		}, []string{"action", "automated"}),
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_report_outcomes_total",
			Help: "Status reached after automated processing",
		}, []string{"status"}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "guardian_report_processing_failures_total",
			Help: "Reports left pending after a processing failure",
		}),
	}
}

func (m *Metrics) IncrementSubmitted(priority string) {
	m.Submitted.WithLabelValues(priority).Inc()
}

func (m *Metrics) IncrementDuplicate() {
	m.Duplicates.Inc()
}

func (m *Metrics) IncrementAction(action string, automated bool) {
	label := "false"
	if automated {
		label = "true"
	}
	m.Actions.WithLabelValues(action, label).Inc()
}

func (m *Metrics) IncrementOutcome(status string) {
	m.Outcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementFailure() {
	m.Failures.Inc()
}
