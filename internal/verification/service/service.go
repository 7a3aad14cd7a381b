package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"guardian/internal/actionlog"
	"guardian/internal/verification/metrics"
	"guardian/internal/verification/models"
	"guardian/internal/verification/providers"
	"guardian/internal/verification/registry"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/dependency"
	"guardian/pkg/platform/middleware/requesttime"
	"guardian/pkg/platform/retry"
	"guardian/pkg/platform/sentinel"
	platformsync "guardian/pkg/platform/sync"
	"guardian/pkg/platform/tracer"
)

// Store persists verification requests.
// Error Contract:
// - FindByID and FindActiveApproval return sentinel.ErrNotFound when absent
// - Update returns sentinel.ErrInvalidState when the stored status differs from expected
type Store interface {
	Create(ctx context.Context, r *models.Request) error
	FindByID(ctx context.Context, reqID id.VerificationID) (*models.Request, error)
	FindActiveApproval(ctx context.Context, subject id.SubjectID, now time.Time) (*models.Request, error)
	Update(ctx context.Context, r *models.Request, expected models.Status) error
	ListStale(ctx context.Context, status models.Status, cutoff time.Time, limit int) ([]*models.Request, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
}

// Blocklist holds subjects that may not verify.
type Blocklist interface {
	Block(ctx context.Context, subject id.SubjectID, reason string, at time.Time) error
	Unblock(ctx context.Context, subject id.SubjectID) error
	IsBlocked(ctx context.Context, subject id.SubjectID) (bool, error)
}

// SubjectRegistry is the fast verified-subject lookup.
type SubjectRegistry interface {
	Register(ctx context.Context, e registry.Entry) error
	Lookup(ctx context.Context, subject id.SubjectID, now time.Time) (*registry.Entry, error)
	Remove(ctx context.Context, subject id.SubjectID) error
}

// ProviderRegistry resolves the provider for a method.
type ProviderRegistry interface {
	Get(method models.Method) (providers.Provider, bool)
}

// Policy holds the verification thresholds and country rules.
type Policy struct {
	MinConfidence    float64
	StrongTTL        time.Duration
	PaymentTTL       time.Duration
	AllowedCountries []string
	BlockedCountries []string
	ProviderTimeout  time.Duration
}

// DefaultPolicy returns the built-in thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MinConfidence:   0.6,
		StrongTTL:       365 * 24 * time.Hour,
		PaymentTTL:      30 * 24 * time.Hour,
		ProviderTimeout: 10 * time.Second,
	}
}

type Option func(*Service)

// Service manages the verification request lifecycle.
type Service struct {
	store     Store
	providers ProviderRegistry
	blocklist Blocklist
	registry  SubjectRegistry
	actions   *actionlog.Recorder
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
	logger    *slog.Logger
	policy    Policy
	backoff   retry.Backoff
	locks     *platformsync.ShardedMutex
}

func New(store Store, providerRegistry ProviderRegistry, opts ...Option) *Service {
	svc := &Service{
		store:     store,
		providers: providerRegistry,
		logger:    slog.Default(),
		tracer:    tracer.NewNoop(),
		policy:    DefaultPolicy(),
		backoff:   retry.Backoff{MaxRetries: 2},
		locks:     platformsync.NewShardedMutex(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithPolicy replaces the policy. Zero durations keep their defaults.
func WithPolicy(p Policy) Option {
	return func(s *Service) {
		def := DefaultPolicy()
		if p.StrongTTL <= 0 {
			p.StrongTTL = def.StrongTTL
		}
		if p.PaymentTTL <= 0 {
			p.PaymentTTL = def.PaymentTTL
		}
		if p.ProviderTimeout <= 0 {
			p.ProviderTimeout = def.ProviderTimeout
		}
		s.policy = p
	}
}

func WithBlocklist(b Blocklist) Option {
	return func(s *Service) {
		s.blocklist = b
	}
}

func WithSubjectRegistry(r SubjectRegistry) Option {
	return func(s *Service) {
		s.registry = r
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

// WithBackoff configures provider retries for retryable dependency errors.
func WithBackoff(b retry.Backoff) Option {
	return func(s *Service) {
		s.backoff = b
	}
}

// Submit validates and runs a verification request. Provider failures do
// not fail the call: the request comes back pending with a failure reason.
func (s *Service) Submit(ctx context.Context, req *models.SubmitRequest) (*models.Request, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.ValidateAt(requesttime.Now(ctx)); err != nil {
		return nil, err
	}
	subject := id.SubjectID(req.SubjectID)

	if err := s.checkEligibility(ctx, subject, req.Fields.Country); err != nil {
		return nil, err
	}

	s.locks.Lock(string(subject))
	defer s.locks.Unlock(string(subject))

	now := requesttime.Now(ctx)
	if err := s.ensureNotVerified(ctx, subject, now); err != nil {
		return nil, err
	}

	r := &models.Request{
		ID:          id.NewVerificationID(),
		SubjectID:   subject,
		Method:      req.Method,
		Status:      models.StatusPending,
		Priority:    req.Method.Priority(),
		Fields:      req.UserFields(),
		Data:        req.Data,
		SubmittedAt: now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification request")
	}
	if s.metrics != nil {
		s.metrics.IncrementSubmitted(string(r.Method))
	}
	s.record(ctx, r, actionlog.ActionSubmitted, "", models.StatusPending, "")
	s.logger.InfoContext(ctx, "verification submitted",
		"verification_id", r.ID,
		"subject_id", subject,
		"method", r.Method,
	)

	return s.process(ctx, r)
}

func (s *Service) checkEligibility(ctx context.Context, subject id.SubjectID, country string) error {
	if s.blocklist != nil {
		blocked, err := s.blocklist.IsBlocked(ctx, subject)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check block list")
		}
		if blocked {
			s.refused(ctx, subject, "blocked")
			return dErrors.New(dErrors.CodeBlocked, "subject is blocked from verification")
		}
	}
	if !s.countryAllowed(country) {
		s.refused(ctx, subject, "geo_restricted")
		return dErrors.New(dErrors.CodeGeoRestricted, fmt.Sprintf("verification is not available in %s", country))
	}
	return nil
}

// countryAllowed rejects blocked countries, and any country outside a
// non-empty allow list.
func (s *Service) countryAllowed(country string) bool {
	if slices.Contains(s.policy.BlockedCountries, country) {
		return false
	}
	if len(s.policy.AllowedCountries) > 0 && !slices.Contains(s.policy.AllowedCountries, country) {
		return false
	}
	return true
}

// ensureNotVerified consults the registry first and the store as the
// source of truth. Callers hold the subject lock.
func (s *Service) ensureNotVerified(ctx context.Context, subject id.SubjectID, now time.Time) error {
	if s.registry != nil {
		entry, err := s.registry.Lookup(ctx, subject, now)
		switch {
		case err == nil && entry != nil:
			s.refused(ctx, subject, "already_verified")
			return dErrors.New(dErrors.CodeAlreadyVerified, "subject already holds an unexpired approval")
		case err != nil && !errors.Is(err, sentinel.ErrNotFound):
			s.logger.WarnContext(ctx, "verified-subject registry lookup failed, falling back to store",
				"subject_id", subject,
				"error", err,
			)
		}
	}
	_, err := s.store.FindActiveApproval(ctx, subject, now)
	if err == nil {
		s.refused(ctx, subject, "already_verified")
		return dErrors.New(dErrors.CodeAlreadyVerified, "subject already holds an unexpired approval")
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing approvals")
	}
	return nil
}

func (s *Service) refused(ctx context.Context, subject id.SubjectID, reason string) {
	if s.metrics != nil {
		s.metrics.IncrementRefused(reason)
	}
	s.logger.InfoContext(ctx, "verification refused",
		"subject_id", subject,
		"reason", reason,
	)
}

// process moves a pending request through the provider check. Callers
// hold the subject lock.
func (s *Service) process(ctx context.Context, r *models.Request) (*models.Request, error) {
	started := requesttime.Now(ctx)
	next := r.Clone()
	next.Status = models.StatusProcessing
	next.ProcessingStartedAt = &started
	next.Attempts++
	next.FailureReason = ""
	if err := s.update(ctx, next, models.StatusPending); err != nil {
		return nil, err
	}
	s.record(ctx, next, actionlog.ActionTransition, models.StatusPending, models.StatusProcessing, "")

	evidence, err := s.verify(ctx, next)
	if err != nil {
		return s.fail(ctx, next, err)
	}
	return s.complete(ctx, next, evidence)
}

func (s *Service) verify(ctx context.Context, r *models.Request) (*providers.Evidence, error) {
	provider, ok := s.providers.Get(r.Method)
	if !ok {
		return nil, dependency.NewError(dependency.Internal, "verification_provider",
			fmt.Sprintf("no provider registered for method %s", r.Method), nil)
	}

	ctx, span := s.tracer.Start(ctx, "verification.provider",
		tracer.String("method", string(r.Method)),
		tracer.String("provider", provider.ID()),
		tracer.String("subject", tracer.HashSubject(string(r.SubjectID))),
	)
	start := time.Now()

	var evidence *providers.Evidence
	err := retry.Do(ctx, s.backoff, dependency.IsRetryable, func(ctx context.Context, attempt int) error {
		callCtx, cancel := context.WithTimeout(ctx, s.policy.ProviderTimeout)
		defer cancel()
		ev, err := provider.Verify(callCtx, providers.Input{
			SubjectID: string(r.SubjectID),
			Method:    r.Method,
			Fields:    r.Fields,
			Data:      r.Data,
		})
		if err != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return dependency.FromTransport(callCtx, provider.ID(), err)
			}
			return err
		}
		evidence = ev
		return nil
	})
	if err == nil && evidence == nil {
		err = dependency.NewError(dependency.BadData, provider.ID(), "provider returned no evidence", nil)
	}
	span.End(err)
	if s.metrics != nil {
		s.metrics.ObserveProviderLatency(string(r.Method), time.Since(start).Seconds())
	}
	return evidence, err
}

// fail returns the request to pending with the failure noted. It is never
// approved on the way.
func (s *Service) fail(ctx context.Context, r *models.Request, cause error) (*models.Request, error) {
	next := r.Clone()
	next.Status = models.StatusPending
	next.FailureReason = failureReason(cause)
	if err := s.update(ctx, next, models.StatusProcessing); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementProviderFailure(string(r.Method), string(dependency.CategoryOf(cause)))
	}
	s.record(ctx, next, actionlog.ActionProcessingFailed, models.StatusProcessing, models.StatusPending, next.FailureReason)
	s.logger.WarnContext(ctx, "verification provider failed",
		"verification_id", r.ID,
		"method", r.Method,
		"attempts", next.Attempts,
		"error", cause,
	)
	return next, nil
}

func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || dependency.CategoryOf(err) == dependency.Timeout {
		return "provider timed out"
	}
	return "provider error: " + err.Error()
}

func (s *Service) complete(ctx context.Context, r *models.Request, ev *providers.Evidence) (*models.Request, error) {
	now := requesttime.Now(ctx)
	result := s.evaluate(r, ev.Confidence, ev.Flags, now)

	next := r.Clone()
	next.Result = result
	next.ResolvedAt = &now
	if result.Verified {
		next.Status = models.StatusApproved
		expires := now.Add(s.ttlFor(r.Method))
		next.ExpiresAt = &expires
	} else {
		next.Status = models.StatusRejected
	}
	if err := s.update(ctx, next, models.StatusProcessing); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeAlreadyVerified) {
			return nil, err
		}
		// Another instance approved the subject while this check ran.
		next.Status = models.StatusRejected
		next.ExpiresAt = nil
		next.Result.Verified = false
		next.FailureReason = "subject already verified"
		if uerr := s.update(ctx, next, models.StatusProcessing); uerr != nil {
			return nil, uerr
		}
		s.finish(ctx, next, models.StatusProcessing, true)
		return nil, err
	}
	s.finish(ctx, next, models.StatusProcessing, true)
	return next, nil
}

// evaluate computes age, verdict, flags, and risk for a completed check.
func (s *Service) evaluate(r *models.Request, confidence float64, providerFlags []string, now time.Time) *models.Result {
	age, adult := 0, false
	if dob, err := r.Fields.BirthDate(); err == nil {
		age = id.AgeOn(dob, now)
		adult = id.IsOver18(dob, now)
	}
	flags := append([]string(nil), providerFlags...)
	if !adult {
		flags = append(flags, models.FlagUnderage)
	} else if confidence < s.policy.MinConfidence && !slices.Contains(flags, models.FlagInvalidDocumentFormat) {
		flags = append(flags, models.FlagLowConfidence)
	}
	return &models.Result{
		Verified:   adult && confidence >= s.policy.MinConfidence,
		Age:        age,
		Confidence: confidence,
		RiskScore:  models.RiskScore(confidence, flags),
		Flags:      flags,
	}
}

func (s *Service) ttlFor(m models.Method) time.Duration {
	if m.IsStrong() {
		return s.policy.StrongTTL
	}
	return s.policy.PaymentTTL
}

// finish records a terminal transition and registers approvals.
func (s *Service) finish(ctx context.Context, r *models.Request, from models.Status, automated bool) {
	if r.Status == models.StatusApproved && s.registry != nil {
		err := s.registry.Register(ctx, registry.Entry{
			SubjectID: r.SubjectID,
			RequestID: r.ID,
			Method:    r.Method,
			ExpiresAt: *r.ExpiresAt,
		})
		if err != nil {
			// The store still answers AlreadyVerified; only the fast path is lost.
			s.logger.WarnContext(ctx, "failed to register verified subject",
				"verification_id", r.ID,
				"subject_id", r.SubjectID,
				"error", err,
			)
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementOutcome(string(r.Method), string(r.Status))
	}
	entry := actionlog.Entry{
		Component:  actionlog.ComponentVerification,
		RequestID:  r.ID.String(),
		OwnerID:    string(r.SubjectID),
		Action:     actionlog.ActionTransition,
		FromStatus: string(from),
		ToStatus:   string(r.Status),
		Automated:  automated,
		Actor:      r.ReviewerID,
	}
	if r.Result != nil && len(r.Result.Flags) > 0 {
		entry.Note = fmt.Sprintf("flags: %v", r.Result.Flags)
	}
	s.actions.Record(ctx, entry)
	s.logger.InfoContext(ctx, "verification completed",
		"verification_id", r.ID,
		"subject_id", r.SubjectID,
		"status", r.Status,
		"automated", automated,
	)
}

// update writes r if the stored status still equals expected.
func (s *Service) update(ctx context.Context, r *models.Request, expected models.Status) error {
	if err := s.store.Update(ctx, r, expected); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "verification request not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("verification request is no longer %s", expected))
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.New(dErrors.CodeAlreadyVerified, "subject already has an active verification")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update verification request")
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, r *models.Request, action string, from, to models.Status, note string) {
	s.actions.Record(ctx, actionlog.Entry{
		Component:  actionlog.ComponentVerification,
		RequestID:  r.ID.String(),
		OwnerID:    string(r.SubjectID),
		Action:     action,
		FromStatus: string(from),
		ToStatus:   string(to),
		Automated:  true,
		Note:       note,
	})
}
