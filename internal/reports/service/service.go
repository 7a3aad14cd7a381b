package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"guardian/internal/actionlog"
	"guardian/internal/content"
	ledgermodels "guardian/internal/ledger/models"
	"guardian/internal/notify"
	"guardian/internal/reports/idempotency"
	"guardian/internal/reports/metrics"
	"guardian/internal/reports/models"
	scanmodels "guardian/internal/scanning/models"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/middleware/requesttime"
	"guardian/pkg/platform/sentinel"
	platformsync "guardian/pkg/platform/sync"
	"guardian/pkg/platform/tracer"
)

// Store persists reports.
// Error Contract:
// - FindByID returns sentinel.ErrNotFound when absent
// - Update returns sentinel.ErrInvalidState when the stored status differs from expected
type Store interface {
	Create(ctx context.Context, r *models.Report) error
	FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	Update(ctx context.Context, r *models.Report, expected models.Status) error
	ListByStatus(ctx context.Context, statuses []models.Status, limit int) ([]*models.Report, error)
	ListStale(ctx context.Context, status models.Status, cutoff time.Time, limit int) ([]*models.Report, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Idempotency holds dedupe reservations.
type Idempotency interface {
	Reserve(ctx context.Context, key string, reportID id.ReportID, now time.Time, ttl time.Duration) (id.ReportID, bool, error)
	Release(ctx context.Context, key string) error
}

// Scanner runs the content scanning pipeline over a catalog item.
type Scanner interface {
	ScanItem(ctx context.Context, item *content.Item) (*scanmodels.ScanResult, error)
}

// Ledger is the repeat-offender ledger.
type Ledger interface {
	RecordViolation(ctx context.Context, v ledgermodels.Violation) (*ledgermodels.Outcome, error)
	Count(ctx context.Context, subject ledgermodels.Subject) (int, error)
	Suspend(ctx context.Context, subject ledgermodels.Subject, source ledgermodels.Source, referenceID string) (*ledgermodels.Record, error)
	Ban(ctx context.Context, subject ledgermodels.Subject, source ledgermodels.Source, referenceID string) (*ledgermodels.Record, error)
	Threshold() int
}

// Policy holds the report thresholds and toggles.
type Policy struct {
	AutoRemoveThreshold float64
	// EscalationThreshold of zero uses the ledger's threshold.
	EscalationThreshold int
	HumanReviewEnabled  bool
	DefaultDecision     models.Action
	DedupeWindow        time.Duration
	CatalogTimeout      time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		AutoRemoveThreshold: 0.9,
		HumanReviewEnabled:  true,
		DefaultDecision:     models.ActionDismiss,
		DedupeWindow:        24 * time.Hour,
		CatalogTimeout:      3 * time.Second,
	}
}

type Option func(*Service)

// Service is the single writer of reports: it takes intake, runs the
// automated pipeline, and executes moderation actions.
type Service struct {
	store    Store
	catalog  content.Catalog
	scanner  Scanner
	ledger   Ledger
	idem     Idempotency
	notifier *notify.Notifier
	actions  *actionlog.Recorder
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	logger   *slog.Logger
	policy   Policy
	locks    *platformsync.ShardedMutex
	keyLocks *platformsync.ShardedMutex
}

func New(store Store, catalog content.Catalog, scanner Scanner, ledger Ledger, opts ...Option) *Service {
	svc := &Service{
		store:    store,
		catalog:  catalog,
		scanner:  scanner,
		ledger:   ledger,
		idem:     idempotency.NewInMemory(),
		logger:   slog.Default(),
		tracer:   tracer.NewNoop(),
		policy:   DefaultPolicy(),
		locks:    platformsync.NewShardedMutex(),
		keyLocks: platformsync.NewShardedMutex(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithPolicy replaces the policy; unset fields keep their defaults.
func WithPolicy(p Policy) Option {
	return func(s *Service) {
		def := DefaultPolicy()
		if p.AutoRemoveThreshold <= 0 {
			p.AutoRemoveThreshold = def.AutoRemoveThreshold
		}
		if p.DefaultDecision == "" {
			p.DefaultDecision = def.DefaultDecision
		}
		if p.DedupeWindow <= 0 {
			p.DedupeWindow = def.DedupeWindow
		}
		if p.CatalogTimeout <= 0 {
			p.CatalogTimeout = def.CatalogTimeout
		}
		s.policy = p
	}
}

func WithIdempotency(i Idempotency) Option {
	return func(s *Service) {
		s.idem = i
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

func (s *Service) escalationThreshold() int {
	if s.policy.EscalationThreshold > 0 {
		return s.policy.EscalationThreshold
	}
	return s.ledger.Threshold()
}

// Submit records a report and runs the automated pipeline. A resubmission
// by the same reporter about the same content within the dedupe window
// returns the original report untouched. Anonymous reporters are hidden
// in the returned copy as everywhere else.
func (s *Service) Submit(ctx context.Context, req *models.SubmitRequest) (*models.Report, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r, duplicate, err := s.create(ctx, req)
	if err != nil {
		return nil, err
	}
	if !duplicate {
		if r, err = s.processByID(ctx, r.ID); err != nil {
			return nil, err
		}
	}
	return r.Public(), nil
}

func (s *Service) create(ctx context.Context, req *models.SubmitRequest) (*models.Report, bool, error) {
	key := idempotency.Key(req.ContentID, req.ReporterID)
	s.keyLocks.Lock(key)
	defer s.keyLocks.Unlock(key)

	now := requesttime.Now(ctx)
	reportID := id.NewReportID()
	holder, reserved, err := s.idem.Reserve(ctx, key, reportID, now, s.policy.DedupeWindow)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check for a duplicate report")
	}
	if !reserved {
		original, err := s.store.FindByID(ctx, holder)
		switch {
		case err == nil:
			if s.metrics != nil {
				s.metrics.IncrementDuplicate()
			}
			s.logger.InfoContext(ctx, "duplicate report returned original",
				"report_id", original.ID,
				"content_id", original.ContentID,
			)
			return original, true, nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read original report")
		}
		// The holder was never stored; take the key over.
		if err := s.idem.Release(ctx, key); err != nil {
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to release stale dedupe key")
		}
		if _, reserved, err = s.idem.Reserve(ctx, key, reportID, now, s.policy.DedupeWindow); err != nil || !reserved {
			return nil, false, dErrors.Wrap(err, dErrors.CodeConflict, "report is being submitted concurrently")
		}
	}

	r := &models.Report{
		ID:          reportID,
		ReporterID:  req.ReporterID,
		Anonymous:   req.Anonymous,
		ContentID:   req.ContentID,
		Category:    req.Category,
		Severity:    req.Severity,
		Priority:    models.PriorityFor(req.Category, req.Severity),
		Reason:      req.Reason,
		Description: req.Description,
		Evidence:    req.Evidence,
		Status:      models.StatusPending,
		SubmittedAt: now,
	}
	if r.Evidence == nil {
		r.Evidence = []string{}
	}
	if err := s.store.Create(ctx, r); err != nil {
		if rerr := s.idem.Release(ctx, key); rerr != nil {
			s.logger.WarnContext(ctx, "failed to release dedupe key", "key", key, "error", rerr)
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store report")
	}

	if s.metrics != nil {
		s.metrics.IncrementSubmitted(string(r.Priority))
	}
	s.record(ctx, r, actionlog.Entry{
		Action:    actionlog.ActionSubmitted,
		ToStatus:  string(models.StatusPending),
		Automated: true,
	})
	s.logger.InfoContext(ctx, "report submitted",
		"report_id", r.ID,
		"content_id", r.ContentID,
		"priority", r.Priority,
	)
	return r, false, nil
}

// Get returns a report with anonymous reporters hidden.
func (s *Service) Get(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	r, err := s.find(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return r.Public(), nil
}

func (s *Service) find(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	r, err := s.store.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read report")
	}
	return r, nil
}

// ReviewQueue lists reports awaiting a moderator, most urgent and oldest first.
func (s *Service) ReviewQueue(ctx context.Context, limit int) ([]*models.Report, error) {
	reports, err := s.store.ListByStatus(ctx, []models.Status{models.StatusEscalated, models.StatusUnderReview}, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list review queue")
	}
	out := make([]*models.Report, len(reports))
	for i, r := range reports {
		out[i] = r.Public()
	}
	return out, nil
}

// Stats aggregates reports for the dashboard.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate reports")
	}
	return stats, nil
}

// ReprocessStale re-runs the pipeline for reports left pending since
// before cutoff. It returns how many left pending.
func (s *Service) ReprocessStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.store.ListStale(ctx, models.StatusPending, cutoff, limit)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stale reports")
	}
	advanced := 0
	for _, candidate := range stale {
		r, err := s.processByID(ctx, candidate.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to reprocess report",
				"report_id", candidate.ID,
				"error", err,
			)
			continue
		}
		if r.Status != models.StatusPending {
			advanced++
		}
	}
	return advanced, nil
}

func (s *Service) record(ctx context.Context, r *models.Report, e actionlog.Entry) {
	e.Component = actionlog.ComponentReport
	e.RequestID = r.ID.String()
	e.OwnerID = r.ContentOwnerID
	s.actions.Record(ctx, e)
}

func (s *Service) update(ctx context.Context, next *models.Report, expected models.Status) error {
	if err := s.store.Update(ctx, next, expected); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("report is no longer %s", expected))
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "report not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update report")
	}
	return nil
}
