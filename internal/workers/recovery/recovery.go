package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"guardian/pkg/platform/middleware/requesttime"
)

// VerificationRecoverer returns verifications stuck in processing to pending.
type VerificationRecoverer interface {
	RecoverStalled(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// Reprocessor re-runs automated processing for records left pending after a
// failure.
type Reprocessor interface {
	ReprocessStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// Result summarizes one recovery run.
type Result struct {
	RecoveredVerifications int
	ReprocessedReports     int
	ReprocessedTakedowns   int
}

// Service periodically recovers stalled and failed requests.
type Service struct {
	verifications VerificationRecoverer
	reports       Reprocessor
	takedowns     Reprocessor
	interval      time.Duration
	staleAfter    time.Duration
	batchSize     int
	now           func() time.Time
	logger        *slog.Logger
}

type Option func(*Service)

// WithInterval overrides the run interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithStaleAfter sets how long a request may sit before it is recovered.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(verifications VerificationRecoverer, reports, takedowns Reprocessor, opts ...Option) (*Service, error) {
	if verifications == nil || reports == nil || takedowns == nil {
		return nil, fmt.Errorf("verifications, reports, and takedowns are required")
	}
	svc := &Service{
		verifications: verifications,
		reports:       reports,
		takedowns:     takedowns,
		interval:      time.Minute,
		staleAfter:    10 * time.Minute,
		batchSize:     100,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs recovery periodically until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "recovery run failed", "error", err)
			}
			if res != (Result{}) {
				s.logger.InfoContext(ctx, "recovery run completed",
					"verifications", res.RecoveredVerifications,
					"reports", res.ReprocessedReports,
					"takedowns", res.ReprocessedTakedowns,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce recovers everything older than the stale threshold. A failing
// component does not stop the others; errors are joined.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	now := s.now()
	ctx = requesttime.WithTime(ctx, now)
	cutoff := now.Add(-s.staleAfter)
	var res Result
	var errs []error

	n, err := s.verifications.RecoverStalled(ctx, cutoff, s.batchSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("recover stalled verifications: %w", err))
	} else {
		res.RecoveredVerifications = n
	}

	n, err = s.reports.ReprocessStale(ctx, cutoff, s.batchSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("reprocess stale reports: %w", err))
	} else {
		res.ReprocessedReports = n
	}

	n, err = s.takedowns.ReprocessStale(ctx, cutoff, s.batchSize)
	if err != nil {
		errs = append(errs, fmt.Errorf("reprocess stale takedowns: %w", err))
	} else {
		res.ReprocessedTakedowns = n
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}
