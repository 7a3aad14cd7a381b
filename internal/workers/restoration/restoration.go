// Package restoration executes counter-notice restorations once their
// waiting period has passed.
package restoration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"guardian/pkg/platform/middleware/requesttime"
)

// Executor restores content whose restoration is due.
type Executor interface {
	ExecuteDueRestorations(ctx context.Context, limit int) (int, error)
}

// Service periodically executes due restorations.
type Service struct {
	executor  Executor
	interval  time.Duration
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

type Option func(*Service)

func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
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

func New(executor Executor, opts ...Option) (*Service, error) {
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	svc := &Service{
		executor:  executor,
		interval:  5 * time.Minute,
		batchSize: 100,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs the scheduler until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "restoration run failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.InfoContext(ctx, "restorations executed", "count", n)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce drains due restorations in batches and returns how many were
// executed. It stops when a batch restores nothing, so restorations that
// keep failing wait for the next tick.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	ctx = requesttime.WithTime(ctx, s.now())
	total := 0
	for {
		n, err := s.executor.ExecuteDueRestorations(ctx, s.batchSize)
		total += n
		if err != nil {
			return total, fmt.Errorf("execute due restorations: %w", err)
		}
		if n < s.batchSize {
			return total, nil
		}
	}
}
