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
	"guardian/internal/scanning/classifier"
	"guardian/internal/scanning/hashes"
	"guardian/internal/scanning/metrics"
	"guardian/internal/scanning/models"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/middleware/requesttime"
	"guardian/pkg/platform/sentinel"
	strutil "guardian/pkg/platform/strings"
	"guardian/pkg/platform/tracer"
)

// Store persists scan results.
// Error Contract:
// - FindByID returns sentinel.ErrNotFound when absent
type Store interface {
	Save(ctx context.Context, r *models.ScanResult) error
	FindByID(ctx context.Context, scanID id.ScanID) (*models.ScanResult, error)
	CountByAction(ctx context.Context) (map[models.Action]int, error)
}

// HashRegistry looks up payload fingerprints. Lookup returns
// sentinel.ErrNotFound for unregistered hashes.
type HashRegistry interface {
	Lookup(ctx context.Context, hash string) (*hashes.Entry, error)
}

const (
	defaultTimeout  = 5 * time.Second
	defaultMinScore = 0.5
	minorAge        = 18

	declaredMinorConfidence = 0.90
	minorTagConfidence      = 0.75
	hashMatchConfidence     = 0.99
)

// DefaultMinorKeywords flag tags that suggest a minor is depicted.
var DefaultMinorKeywords = []string{"teen", "underage", "minor", "schoolgirl", "schoolboy", "preteen", "jailbait"}

type Option func(*Service)

// Service runs the content scanning pipeline. It fails closed: any analysis
// that errors, panics, or times out yields a quarantine held for review.
type Service struct {
	store         Store
	classifier    classifier.Classifier
	illegal       HashRegistry
	actions       *actionlog.Recorder
	metrics       *metrics.Metrics
	tracer        tracer.Tracer
	logger        *slog.Logger
	timeout       time.Duration
	minScore      float64
	minorKeywords []string
}

func New(store Store, c classifier.Classifier, opts ...Option) *Service {
	svc := &Service{
		store:         store,
		classifier:    c,
		logger:        slog.Default(),
		tracer:        tracer.NewNoop(),
		timeout:       defaultTimeout,
		minScore:      defaultMinScore,
		minorKeywords: strutil.NormalizeTerms(DefaultMinorKeywords),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithHashRegistry sets the known-illegal-content registry.
func WithHashRegistry(r HashRegistry) Option {
	return func(s *Service) {
		s.illegal = r
	}
}

// WithTimeout bounds the whole analysis fan-out.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMinorKeywords replaces the tag list used by metadata analysis.
func WithMinorKeywords(terms []string) Option {
	return func(s *Service) {
		if norm := strutil.NormalizeTerms(terms); len(norm) > 0 {
			s.minorKeywords = norm
		}
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

// Scan validates req, analyzes the content, and persists the result.
func (s *Service) Scan(ctx context.Context, req *models.ScanRequest) (*models.ScanResult, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.run(ctx, classifier.Input{
		ContentID: req.ContentID,
		Type:      req.Type,
		Payload:   req.Payload,
		Metadata:  req.Metadata,
	})
}

// ScanItem scans a catalog item on behalf of another workflow.
func (s *Service) ScanItem(ctx context.Context, item *content.Item) (*models.ScanResult, error) {
	if item == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "content item is required")
	}
	return s.run(ctx, classifier.Input{
		ContentID: item.ID,
		Type:      item.Type,
		Payload:   item.Payload,
		Metadata:  item.Metadata,
	})
}

// Get returns a persisted scan result.
func (s *Service) Get(ctx context.Context, scanID id.ScanID) (*models.ScanResult, error) {
	r, err := s.store.FindByID(ctx, scanID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "scan result not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read scan result")
	}
	return r, nil
}

// ActionCounts reports persisted scans per action.
func (s *Service) ActionCounts(ctx context.Context) (map[models.Action]int, error) {
	counts, err := s.store.CountByAction(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count scan results")
	}
	return counts, nil
}

func (s *Service) run(ctx context.Context, in classifier.Input) (*models.ScanResult, error) {
	ctx, span := s.tracer.Start(ctx, "scanning.scan",
		tracer.String("content_id", in.ContentID),
		tracer.String("content_type", string(in.Type)),
	)
	start := time.Now()

	result := &models.ScanResult{
		ID:          id.NewScanID(),
		ContentID:   in.ContentID,
		ContentType: in.Type,
		ScannedAt:   requesttime.Now(ctx),
	}

	found := s.analyze(ctx, in)
	result.Violations = found.violations()
	if failures := found.failures(); len(failures) > 0 {
		result.Failure = strings.Join(failures, "; ")
		result.Violations = append(result.Violations, models.Violation{
			Type:     models.ViolationOther,
			Severity: models.SeverityHigh,
			Evidence: []string{"pipeline_failure: " + result.Failure},
			Source:   models.SourcePipeline,
		})
	}
	result.Decide()

	span.SetAttributes(
		tracer.String("action", string(result.Action)),
		tracer.Int("violations", len(result.Violations)),
		tracer.Bool("failed", result.Failed()),
	)

	if err := s.store.Save(ctx, result); err != nil {
		span.End(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist scan result")
	}
	span.End(nil)

	s.observe(ctx, result, time.Since(start))
	return result, nil
}

func (s *Service) observe(ctx context.Context, r *models.ScanResult, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.IncrementScan(string(r.ContentType), string(r.Action))
		s.metrics.ObserveScanDuration(elapsed.Seconds())
		for _, v := range r.Violations {
			s.metrics.IncrementViolation(string(v.Type), string(v.Source))
		}
	}

	s.actions.Record(ctx, actionlog.Entry{
		Component: actionlog.ComponentScanning,
		RequestID: r.ID.String(),
		OwnerID:   r.ContentID,
		Action:    "scan_" + string(r.Action),
		ToStatus:  string(r.Action),
		Automated: true,
		Note:      r.Failure,
	})

	if r.Failed() {
		s.logger.WarnContext(ctx, "scan failed closed",
			"scan_id", r.ID,
			"content_id", r.ContentID,
			"failure", r.Failure,
		)
		return
	}
	s.logger.InfoContext(ctx, "content scanned",
		"scan_id", r.ID,
		"content_id", r.ContentID,
		"action", r.Action,
		"violations", len(r.Violations),
	)
}

// violationFromScore keeps classifier scores at or above the minimum.
func (s *Service) violationFromScore(score classifier.Score) (models.Violation, bool) {
	if score.Confidence < s.minScore {
		return models.Violation{}, false
	}
	t := score.Type
	if !t.IsValid() {
		t = models.ViolationOther
	}
	evidence := score.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	return models.Violation{
		Type:       t,
		Severity:   models.SeverityFor(t, score.Confidence),
		Confidence: score.Confidence,
		Evidence:   evidence,
		Source:     models.SourceClassifier,
	}, true
}

func analysisFailure(analysis string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return analysis + " timed out"
	}
	return fmt.Sprintf("%s failed: %v", analysis, err)
}
