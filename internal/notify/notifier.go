package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"guardian/pkg/platform/middleware/requesttime"
	"guardian/pkg/platform/retry"
	"guardian/pkg/platform/tracer"
)

// Metrics counts notification deliveries.
type Metrics struct {
	Delivered *prometheus.CounterVec
	Attempts  prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Delivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_notifications_total",
			Help: "Notifications handed to sinks, labeled by kind and outcome",
		}, []string{"kind", "outcome"}),
		Attempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "guardian_notification_attempts_total",
			Help: "Individual delivery attempts including retries",
		}),
	}
}

// Notifier delivers through a sink with per-attempt timeouts and backoff.
// Each member of a Fanout is retried on its own, so a failing sink never
// causes a repeat delivery through a healthy one.
type Notifier struct {
	sinks    []Sink
	backoff  retry.Backoff
	attempts int
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics
	tracer  tracer.Tracer
}

type Option func(*Notifier)

func WithBackoff(b retry.Backoff) Option {
	return func(n *Notifier) {
		n.backoff = b
	}
}

// WithMaxAttempts bounds the number of sends per sink, first try included.
// It takes precedence over Backoff.MaxRetries whatever the option order.
func WithMaxAttempts(attempts int) Option {
	return func(n *Notifier) {
		if attempts > 0 {
			n.attempts = attempts
		}
	}
}

// WithTimeout bounds each delivery attempt.
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(n *Notifier) {
		n.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(n *Notifier) {
		n.tracer = t
	}
}

func NewNotifier(sink Sink, opts ...Option) *Notifier {
	n := &Notifier{
		timeout: 5 * time.Second,
		logger:  slog.Default(),
		tracer:  tracer.NewNoop(),
	}
	switch s := sink.(type) {
	case nil:
	case Fanout:
		n.sinks = s
	default:
		n.sinks = []Sink{s}
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.attempts > 0 {
		n.backoff.MaxRetries = n.attempts - 1
		if n.backoff.MaxRetries == 0 {
			n.backoff.MaxRetries = -1
		}
	}
	return n
}

// Notify delivers n to every sink, retrying transient failures per sink. A
// nil Notifier is a no-op so components can run without notifications
// configured. The returned error joins the sinks that never succeeded.
func (nt *Notifier) Notify(ctx context.Context, n Notification) error {
	if nt == nil || len(nt.sinks) == 0 {
		return nil
	}
	n = Prepare(n, requesttime.Now(ctx))

	ctx, span := nt.tracer.Start(ctx, "notify.send",
		tracer.String("notification.kind", string(n.Kind)),
		tracer.String("notification.reference_id", n.ReferenceID),
	)

	errs := make([]error, len(nt.sinks))
	var g errgroup.Group
	for i, sink := range nt.sinks {
		g.Go(func() error {
			errs[i] = nt.deliver(ctx, sink, i, n)
			return nil
		})
	}
	_ = g.Wait()
	err := errors.Join(errs...)
	span.End(err)

	outcome := "delivered"
	if err != nil {
		outcome = "failed"
		nt.logger.ErrorContext(ctx, "notification undeliverable",
			"notification_id", n.ID,
			"kind", n.Kind,
			"reference_id", n.ReferenceID,
			"error", err,
		)
	}
	if nt.metrics != nil {
		nt.metrics.Delivered.WithLabelValues(string(n.Kind), outcome).Inc()
	}
	return err
}

func (nt *Notifier) deliver(ctx context.Context, sink Sink, index int, n Notification) error {
	return retry.Do(ctx, nt.backoff, nil, func(ctx context.Context, attempt int) error {
		if nt.metrics != nil {
			nt.metrics.Attempts.Inc()
		}
		attemptCtx, cancel := context.WithTimeout(ctx, nt.timeout)
		defer cancel()
		err := sink.Send(attemptCtx, n)
		if err != nil {
			nt.logger.WarnContext(ctx, "notification attempt failed",
				"notification_id", n.ID,
				"kind", n.Kind,
				"sink", index,
				"attempt", attempt+1,
				"error", err,
			)
		}
		return err
	})
}
