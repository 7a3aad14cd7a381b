package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"guardian/internal/actionlog"
	"guardian/internal/content"
	ledgermodels "guardian/internal/ledger/models"
	"guardian/internal/notify"
	"guardian/internal/scanning/hashes"
	"guardian/internal/takedown/metrics"
	"guardian/internal/takedown/models"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/middleware/requesttime"
	"guardian/pkg/platform/sentinel"
	platformsync "guardian/pkg/platform/sync"
	"guardian/pkg/platform/tracer"
)

// Store persists takedowns, counter-notices, and scheduled restorations.
// Error Contract:
// - Find* return sentinel.ErrNotFound when absent
// - Update returns sentinel.ErrInvalidState when the stored status differs from expected
// - CreateCounterNotice returns sentinel.ErrConflict when the takedown already has one
// - CancelRestoration and CompleteRestoration return sentinel.ErrInvalidState unless scheduled
type Store interface {
	Create(ctx context.Context, t *models.Takedown) error
	FindByID(ctx context.Context, takedownID id.TakedownID) (*models.Takedown, error)
	Update(ctx context.Context, t *models.Takedown, expected models.Status) error
	ListStale(ctx context.Context, status models.Status, cutoff time.Time, limit int) ([]*models.Takedown, error)
	CountRejectedByEmail(ctx context.Context, email string) (int, error)
	CreateCounterNotice(ctx context.Context, cn *models.CounterNotice, r *models.Restoration) error
	FindCounterNotice(ctx context.Context, noticeID id.CounterNoticeID) (*models.CounterNotice, error)
	FindRestoration(ctx context.Context, restorationID id.RestorationID) (*models.Restoration, error)
	CancelRestoration(ctx context.Context, noticeID id.CounterNoticeID, note string) (*models.Restoration, error)
	ListDueRestorations(ctx context.Context, now time.Time, limit int) ([]*models.Restoration, error)
	CompleteRestoration(ctx context.Context, restorationID id.RestorationID, now time.Time) error
	Stats(ctx context.Context) (*models.Stats, error)
}

// WorksRegistry looks up fingerprints of known copyrighted works.
type WorksRegistry interface {
	Lookup(ctx context.Context, hash string) (*hashes.Entry, error)
}

// Ledger is the repeat-offender ledger.
type Ledger interface {
	RecordViolation(ctx context.Context, v ledgermodels.Violation) (*ledgermodels.Outcome, error)
}

// Policy holds the takedown toggles.
type Policy struct {
	LegalReviewEnabled bool
	// DefaultDecision applies when legal review is disabled: "approve" or "reject".
	DefaultDecision         string
	RestorationBusinessDays int
	FalseClaimEmails        []string
	// MaxRejectedClaims rejected notices from one email mark it a false
	// claimant. Zero disables the check.
	MaxRejectedClaims int
	Timeout           time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		LegalReviewEnabled:      true,
		DefaultDecision:         "reject",
		RestorationBusinessDays: 10,
		MaxRejectedClaims:       5,
		Timeout:                 3 * time.Second,
	}
}

type Option func(*Service)

// Service is the single writer of takedowns and counter-notices.
type Service struct {
	store    Store
	catalog  content.Catalog
	ledger   Ledger
	works    WorksRegistry
	notifier *notify.Notifier
	actions  *actionlog.Recorder
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	logger   *slog.Logger
	policy   Policy
	locks    *platformsync.ShardedMutex
}

func New(store Store, catalog content.Catalog, ledger Ledger, opts ...Option) *Service {
	svc := &Service{
		store:   store,
		catalog: catalog,
		ledger:  ledger,
		logger:  slog.Default(),
		tracer:  tracer.NewNoop(),
		policy:  DefaultPolicy(),
		locks:   platformsync.NewShardedMutex(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithPolicy replaces the policy; unset durations and counts keep their
// defaults.
func WithPolicy(p Policy) Option {
	return func(s *Service) {
		def := DefaultPolicy()
		if p.DefaultDecision == "" {
			p.DefaultDecision = def.DefaultDecision
		}
		if p.RestorationBusinessDays <= 0 {
			p.RestorationBusinessDays = def.RestorationBusinessDays
		}
		if p.Timeout <= 0 {
			p.Timeout = def.Timeout
		}
		emails := make([]string, 0, len(p.FalseClaimEmails))
		for _, e := range p.FalseClaimEmails {
			emails = append(emails, strings.ToLower(strings.TrimSpace(e)))
		}
		p.FalseClaimEmails = emails
		s.policy = p
	}
}

// WithWorksRegistry enables Content-ID matching.
func WithWorksRegistry(r WorksRegistry) Option {
	return func(s *Service) {
		s.works = r
	}
}

func WithNotifier(n *notify.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithActionLog(r *actionlog.Recorder) Option {
	return func(s *Service) {
		s.actions = r
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

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// Submit records a takedown notice and runs automated processing.
func (s *Service) Submit(ctx context.Context, req *models.SubmitRequest) (*models.Takedown, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	t := &models.Takedown{
		ID: id.NewTakedownID(),
		Reporter: models.Reporter{
			Name:    req.Reporter.Name,
			Email:   req.Reporter.Email,
			Address: req.Reporter.Address,
			Phone:   req.Reporter.Phone,
			Company: req.Reporter.Company,
		},
		CopyrightOwner:  req.CopyrightOwner,
		WorkTitle:       req.WorkTitle,
		WorkDescription: req.WorkDescription,
		ContentID:       req.ContentID,
		Evidence:        req.Evidence,
		Attestations:    models.Attestations(req.Attestations),
		Signature:       req.Signature,
		Status:          models.StatusPending,
		SubmittedAt:     requesttime.Now(ctx),
	}
	if t.Evidence == nil {
		t.Evidence = []string{}
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store takedown")
	}
	if s.metrics != nil {
		s.metrics.IncrementSubmitted()
	}
	s.record(ctx, t, actionlog.Entry{
		Action:    actionlog.ActionSubmitted,
		ToStatus:  string(models.StatusPending),
		Automated: true,
	})
	s.logger.InfoContext(ctx, "takedown submitted",
		"takedown_id", t.ID,
		"content_id", t.ContentID,
	)
	return s.processByID(ctx, t.ID)
}

// Get returns a takedown by id.
func (s *Service) Get(ctx context.Context, takedownID id.TakedownID) (*models.Takedown, error) {
	return s.find(ctx, takedownID)
}

func (s *Service) find(ctx context.Context, takedownID id.TakedownID) (*models.Takedown, error) {
	t, err := s.store.FindByID(ctx, takedownID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "takedown not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read takedown")
	}
	return t, nil
}

// Stats aggregates takedowns for the dashboard.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate takedowns")
	}
	return stats, nil
}

// ReprocessStale re-runs processing for takedowns left pending since
// before cutoff. It returns how many left pending.
func (s *Service) ReprocessStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.store.ListStale(ctx, models.StatusPending, cutoff, limit)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stale takedowns")
	}
	advanced := 0
	for _, candidate := range stale {
		t, err := s.processByID(ctx, candidate.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to reprocess takedown",
				"takedown_id", candidate.ID,
				"error", err,
			)
			continue
		}
		if t.Status != models.StatusPending {
			advanced++
		}
	}
	return advanced, nil
}

func (s *Service) record(ctx context.Context, t *models.Takedown, e actionlog.Entry) {
	e.Component = actionlog.ComponentTakedown
	e.RequestID = t.ID.String()
	e.OwnerID = t.ContentOwnerID
	s.actions.Record(ctx, e)
}

func (s *Service) update(ctx context.Context, next *models.Takedown, expected models.Status) error {
	if err := s.store.Update(ctx, next, expected); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("takedown is no longer %s", expected))
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "takedown not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update takedown")
	}
	return nil
}
