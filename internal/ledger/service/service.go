package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"guardian/internal/actionlog"
	"guardian/internal/ledger/metrics"
	"guardian/internal/ledger/models"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/middleware/requesttime"
	"guardian/pkg/platform/sentinel"
)

// Store defines the persistence interface for offender records.
// Error Contract:
// - Find and Reset return sentinel.ErrNotFound when no record exists
// - Increment and SetStatus create the record when missing
// - SetStatus never moves a banned subject and reports Changed=false instead
type Store interface {
	Increment(ctx context.Context, v models.Violation, threshold int) (*models.Outcome, error)
	Find(ctx context.Context, subject models.Subject) (*models.Record, error)
	SetStatus(ctx context.Context, subject models.Subject, status models.Status, entry models.HistoryEntry) (*models.StatusChange, error)
	Reset(ctx context.Context, subject models.Subject, entry models.HistoryEntry) (*models.Record, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
}

const defaultThreshold = 3

type Option func(*Service)

// Service is the single writer of repeat-offender records.
type Service struct {
	store     Store
	actions   *actionlog.Recorder
	metrics   *metrics.Metrics
	logger    *slog.Logger
	threshold int
}

func New(store Store, opts ...Option) *Service {
	svc := &Service{
		store:     store,
		logger:    slog.Default(),
		threshold: defaultThreshold,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithThreshold sets the violation count at which an active subject is
// suspended. Non-positive values keep the default of 3.
func WithThreshold(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.threshold = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithActionLog(r *actionlog.Recorder) Option {
	return func(s *Service) {
		s.actions = r
	}
}

// Threshold returns the configured escalation threshold.
func (s *Service) Threshold() int {
	return s.threshold
}

// RecordViolation counts one violation against a subject. A repeated
// idempotency key leaves the record unchanged and reports Duplicate.
func (s *Service) RecordViolation(ctx context.Context, v models.Violation) (*models.Outcome, error) {
	if err := v.Subject.Validate(); err != nil {
		return nil, err
	}
	if v.Source == "" {
		return nil, dErrors.NewValidation(dErrors.FieldError{Field: "source", Reason: "required"})
	}
	if v.IdempotencyKey == "" {
		v.IdempotencyKey = string(v.Source) + ":" + v.ReferenceID + ":" + v.Action
	}
	if v.RecordedAt.IsZero() {
		v.RecordedAt = requesttime.Now(ctx)
	}

	start := time.Now()
	outcome, err := s.store.Increment(ctx, v, s.threshold)
	if s.metrics != nil {
		s.metrics.ObserveIncrementLatency(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record violation")
	}

	if outcome.Duplicate {
		if s.metrics != nil {
			s.metrics.IncrementDuplicates(string(v.Source))
		}
		s.logger.InfoContext(ctx, "duplicate violation ignored",
			"subject", v.Subject.Key(),
			"idempotency_key", v.IdempotencyKey,
		)
		return outcome, nil
	}

	if s.metrics != nil {
		s.metrics.IncrementViolations(string(v.Source))
	}
	s.logger.InfoContext(ctx, "violation recorded",
		"subject", v.Subject.Key(),
		"source", v.Source,
		"reference_id", v.ReferenceID,
		"violation_count", outcome.Record.ViolationCount,
	)

	if outcome.Crossed {
		if s.metrics != nil {
			s.metrics.IncrementThresholdCrossed(string(v.Subject.Kind))
		}
		s.logger.WarnContext(ctx, "escalation threshold reached",
			"subject", v.Subject.Key(),
			"violation_count", outcome.Record.ViolationCount,
			"threshold", s.threshold,
		)
		s.actions.Record(ctx, actionlog.Entry{
			Component:  actionlog.ComponentLedger,
			RequestID:  v.ReferenceID,
			OwnerID:    v.Subject.ID,
			Action:     actionlog.ActionUserSuspended,
			FromStatus: string(models.StatusActive),
			ToStatus:   string(models.StatusSuspended),
			Automated:  true,
			Note:       fmt.Sprintf("violation count %d reached threshold %d", outcome.Record.ViolationCount, s.threshold),
		})
	}
	return outcome, nil
}

// Get returns the record for subject or a not_found error.
func (s *Service) Get(ctx context.Context, subject models.Subject) (*models.Record, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	record, err := s.store.Find(ctx, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no ledger record for subject")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger record")
	}
	return record, nil
}

// Count returns the subject's violation count; unknown subjects have zero.
func (s *Service) Count(ctx context.Context, subject models.Subject) (int, error) {
	record, err := s.store.Find(ctx, subject)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, nil
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger count")
	}
	return record.ViolationCount, nil
}

// Suspend moves a subject to suspended. A banned subject stays banned.
func (s *Service) Suspend(ctx context.Context, subject models.Subject, source models.Source, referenceID string) (*models.Record, error) {
	return s.setStatus(ctx, subject, models.StatusSuspended, source, referenceID, actionlog.ActionUserSuspended)
}

// Ban permanently bans a subject. Only an administrative reset lifts it.
func (s *Service) Ban(ctx context.Context, subject models.Subject, source models.Source, referenceID string) (*models.Record, error) {
	return s.setStatus(ctx, subject, models.StatusBanned, source, referenceID, actionlog.ActionUserBanned)
}

func (s *Service) setStatus(ctx context.Context, subject models.Subject, status models.Status, source models.Source, referenceID, action string) (*models.Record, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	// The banned/unchanged guard runs inside the store's per-subject lock.
	change, err := s.store.SetStatus(ctx, subject, status, s.historyEntry(ctx, source, referenceID, action))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update ledger status")
	}
	if !change.Changed {
		return change.Record, nil
	}
	from := change.From
	if s.metrics != nil {
		s.metrics.IncrementStatusChanges(string(status))
	}
	s.actions.Record(ctx, actionlog.Entry{
		Component:  actionlog.ComponentLedger,
		RequestID:  referenceID,
		OwnerID:    subject.ID,
		Action:     action,
		FromStatus: string(from),
		ToStatus:   string(status),
		Automated:  source != models.SourceAdmin,
	})
	s.logger.InfoContext(ctx, "ledger status changed",
		"subject", subject.Key(),
		"from", from,
		"to", status,
	)
	return change.Record, nil
}

// Reset zeroes the count and reactivates the subject. History is kept.
func (s *Service) Reset(ctx context.Context, subject models.Subject, actor string) (*models.Record, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	record, err := s.store.Reset(ctx, subject, s.historyEntry(ctx, models.SourceAdmin, actor, actionlog.ActionLedgerReset))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no ledger record for subject")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset ledger record")
	}
	if s.metrics != nil {
		s.metrics.IncrementStatusChanges(string(models.StatusActive))
	}
	s.actions.Record(ctx, actionlog.Entry{
		Component: actionlog.ComponentLedger,
		RequestID: subject.Key(),
		OwnerID:   subject.ID,
		Action:    actionlog.ActionLedgerReset,
		ToStatus:  string(models.StatusActive),
		Actor:     actor,
	})
	s.logger.InfoContext(ctx, "ledger record reset",
		"subject", subject.Key(),
		"actor", actor,
	)
	return record, nil
}

// StatusCounts reports how many subjects are in each status.
func (s *Service) StatusCounts(ctx context.Context) (map[models.Status]int, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count ledger records")
	}
	return counts, nil
}

// historyEntry builds a non-counting entry. Administrative entries get a
// fresh key so they never collide with violation keys.
func (s *Service) historyEntry(ctx context.Context, source models.Source, referenceID, action string) models.HistoryEntry {
	return models.HistoryEntry{
		Source:         source,
		ReferenceID:    referenceID,
		Action:         action,
		IdempotencyKey: action + ":" + uuid.NewString(),
		RecordedAt:     requesttime.Now(ctx),
	}
}
