package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guardian/internal/actionlog"
	"guardian/internal/verification/models"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/middleware/requesttime"
	"guardian/pkg/platform/sentinel"
)

// Get returns the request as of now; approvals past expiry read as expired.
func (s *Service) Get(ctx context.Context, reqID id.VerificationID) (*models.Request, error) {
	r, err := s.find(ctx, reqID)
	if err != nil {
		return nil, err
	}
	return r.View(requesttime.Now(ctx)), nil
}

func (s *Service) find(ctx context.Context, reqID id.VerificationID) (*models.Request, error) {
	r, err := s.store.FindByID(ctx, reqID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read verification request")
	}
	return r, nil
}

// SubjectStatus reports whether subject holds an unexpired approval.
func (s *Service) SubjectStatus(ctx context.Context, subject id.SubjectID) (*models.SubjectStatus, error) {
	now := requesttime.Now(ctx)
	out := &models.SubjectStatus{SubjectID: subject}

	if s.registry != nil {
		entry, err := s.registry.Lookup(ctx, subject, now)
		if err == nil && entry != nil {
			reqID := entry.RequestID
			expires := entry.ExpiresAt
			out.Verified = true
			out.RequestID = &reqID
			out.Method = entry.Method
			out.ExpiresAt = &expires
			return out, nil
		}
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "verified-subject registry lookup failed, falling back to store",
				"subject_id", subject,
				"error", err,
			)
		}
	}

	r, err := s.store.FindActiveApproval(ctx, subject, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return out, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read subject status")
	}
	reqID := r.ID
	out.Verified = true
	out.RequestID = &reqID
	out.Method = r.Method
	out.ExpiresAt = r.ExpiresAt
	return out, nil
}

// Retry re-runs the provider check for a pending request.
func (s *Service) Retry(ctx context.Context, reqID id.VerificationID) (*models.Request, error) {
	r, err := s.find(ctx, reqID)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(string(r.SubjectID))
	defer s.locks.Unlock(string(r.SubjectID))

	// Re-read under the subject lock; a concurrent call may have moved it.
	r, err = s.find(ctx, reqID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusPending {
		return nil, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("only pending requests can be retried, request is %s", r.Status))
	}
	if err := s.ensureNotVerified(ctx, r.SubjectID, requesttime.Now(ctx)); err != nil {
		return nil, err
	}
	return s.process(ctx, r)
}

// Decide applies a reviewer's verdict to a pending request. Approval still
// requires an adult birth date and no other unexpired approval.
func (s *Service) Decide(ctx context.Context, reqID id.VerificationID, reviewerID string, decision *models.DecisionRequest) (*models.Request, error) {
	if decision == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "decision is required")
	}
	decision.Normalize()
	if err := decision.Validate(); err != nil {
		return nil, err
	}

	r, err := s.find(ctx, reqID)
	if err != nil {
		return nil, err
	}

	s.locks.Lock(string(r.SubjectID))
	defer s.locks.Unlock(string(r.SubjectID))

	r, err = s.find(ctx, reqID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusPending {
		return nil, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("only pending requests can be decided, request is %s", r.Status))
	}

	now := requesttime.Now(ctx)
	next := r.Clone()
	next.ReviewerID = reviewerID
	next.ResolvedAt = &now
	next.FailureReason = ""

	switch decision.Decision {
	case "approve":
		if err := s.ensureNotVerified(ctx, r.SubjectID, now); err != nil {
			return nil, err
		}
		next.Result = s.evaluate(r, 1, []string{models.FlagReviewerDecision}, now)
		if !next.Result.Verified {
			return nil, dErrors.New(dErrors.CodeInvalidState, "subject is under the minimum age and cannot be approved")
		}
		next.Status = models.StatusApproved
		expires := now.Add(s.ttlFor(r.Method))
		next.ExpiresAt = &expires
	default:
		next.Result = s.evaluate(r, 1, []string{models.FlagReviewerDecision}, now)
		next.Result.Verified = false
		next.Status = models.StatusRejected
	}

	if err := s.update(ctx, next, models.StatusPending); err != nil {
		return nil, err
	}
	s.finish(ctx, next, models.StatusPending, false)
	if decision.Note != "" {
		s.actions.Record(ctx, actionlog.Entry{
			Component: actionlog.ComponentVerification,
			RequestID: next.ID.String(),
			OwnerID:   string(next.SubjectID),
			Action:    "reviewer_note",
			Actor:     reviewerID,
			Note:      decision.Note,
		})
	}
	return next, nil
}

// Block adds subject to the block list.
func (s *Service) Block(ctx context.Context, subject id.SubjectID, reason, actor string) error {
	if s.blocklist == nil {
		return dErrors.New(dErrors.CodeInternal, "block list is not configured")
	}
	if subject == "" {
		return dErrors.NewValidation(dErrors.FieldError{Field: "subject_id", Reason: "required"})
	}
	if err := s.blocklist.Block(ctx, subject, reason, requesttime.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to block subject")
	}
	s.actions.Record(ctx, actionlog.Entry{
		Component: actionlog.ComponentVerification,
		RequestID: string(subject),
		OwnerID:   string(subject),
		Action:    "subject_blocked",
		Actor:     actor,
		Note:      reason,
	})
	s.logger.InfoContext(ctx, "subject blocked",
		"subject_id", subject,
		"actor", actor,
	)
	return nil
}

// Unblock removes subject from the block list.
func (s *Service) Unblock(ctx context.Context, subject id.SubjectID, actor string) error {
	if s.blocklist == nil {
		return dErrors.New(dErrors.CodeInternal, "block list is not configured")
	}
	if err := s.blocklist.Unblock(ctx, subject); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "subject is not blocked")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unblock subject")
	}
	s.actions.Record(ctx, actionlog.Entry{
		Component: actionlog.ComponentVerification,
		RequestID: string(subject),
		OwnerID:   string(subject),
		Action:    "subject_unblocked",
		Actor:     actor,
	})
	s.logger.InfoContext(ctx, "subject unblocked",
		"subject_id", subject,
		"actor", actor,
	)
	return nil
}

// RecoverStalled returns requests stuck in processing since before cutoff
// to pending, noting why. It returns how many were recovered.
func (s *Service) RecoverStalled(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.store.ListStale(ctx, models.StatusProcessing, cutoff, limit)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stalled verifications")
	}

	recovered := 0
	for _, candidate := range stale {
		ok, err := s.recoverOne(ctx, candidate.ID, candidate.SubjectID, cutoff)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to recover stalled verification",
				"verification_id", candidate.ID,
				"error", err,
			)
			continue
		}
		if ok {
			recovered++
		}
	}
	return recovered, nil
}

func (s *Service) recoverOne(ctx context.Context, reqID id.VerificationID, subject id.SubjectID, cutoff time.Time) (bool, error) {
	s.locks.Lock(string(subject))
	defer s.locks.Unlock(string(subject))

	r, err := s.find(ctx, reqID)
	if err != nil {
		return false, err
	}
	if r.Status != models.StatusProcessing || r.ProcessingStartedAt == nil || !r.ProcessingStartedAt.Before(cutoff) {
		return false, nil
	}

	next := r.Clone()
	next.Status = models.StatusPending
	next.FailureReason = "processing stalled; returned to pending"
	if err := s.update(ctx, next, models.StatusProcessing); err != nil {
		return false, err
	}
	if s.metrics != nil {
		s.metrics.IncrementRecovered()
	}
	s.record(ctx, next, actionlog.ActionProcessingFailed, models.StatusProcessing, models.StatusPending, next.FailureReason)
	s.logger.InfoContext(ctx, "stalled verification returned to pending",
		"verification_id", r.ID,
		"subject_id", r.SubjectID,
	)
	return true, nil
}

// StatusCounts reports stored requests per status.
func (s *Service) StatusCounts(ctx context.Context) (map[models.Status]int, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count verification requests")
	}
	return counts, nil
}
