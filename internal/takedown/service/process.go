package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"

	"guardian/internal/actionlog"
	"guardian/internal/content"
	ledgermodels "guardian/internal/ledger/models"
	"guardian/internal/notify"
	"guardian/internal/takedown/models"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/middleware/requesttime"
	"guardian/pkg/platform/sentinel"
	"guardian/pkg/platform/tracer"
)

func (s *Service) processByID(ctx context.Context, takedownID id.TakedownID) (*models.Takedown, error) {
	key := takedownID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	t, err := s.find(ctx, takedownID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusPending {
		return t, nil
	}

	ctx, span := s.tracer.Start(ctx, "takedown.process",
		tracer.String("takedown_id", key),
		tracer.String("content_id", t.ContentID),
	)
	out, err := s.process(ctx, t)
	if out != nil {
		span.SetAttributes(tracer.String("status", string(out.Status)))
	}
	span.End(err)
	return out, err
}

// process runs the automated checks in order: the content must exist and
// still be up, the claimant must look genuine, the owner's ledger is charged, and a
// Content-ID match approves outright. Anything else waits for legal.
func (s *Service) process(ctx context.Context, t *models.Takedown) (*models.Takedown, error) {
	item, err := s.fetch(ctx, t.ContentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return s.reject(ctx, t, models.ReasonContentNotFound, "", "")
		}
		return s.fail(ctx, t, fmt.Sprintf("content fetch failed: %v", err))
	}
	t.ContentOwnerID = item.OwnerID
	if item.Removed {
		return s.closeAlreadyRemoved(ctx, t)
	}

	if !reporterInformationSufficient(t.Reporter) {
		return s.reject(ctx, t, models.ReasonReporterInformation, "", "")
	}
	suspect, err := s.suspectedFalseClaim(ctx, t.Reporter.Email)
	if err != nil {
		return s.fail(ctx, t, fmt.Sprintf("claimant history lookup failed: %v", err))
	}
	if suspect {
		return s.reject(ctx, t, models.ReasonSuspectedFalseClaim, "", "")
	}

	if err := s.chargeOwner(ctx, t); err != nil {
		return s.fail(ctx, t, fmt.Sprintf("ledger update failed: %v", err))
	}

	if s.works != nil {
		matched, err := s.matchWork(ctx, t, item)
		if err != nil {
			return s.fail(ctx, t, fmt.Sprintf("content-id lookup failed: %v", err))
		}
		if matched {
			return s.automatedExecute(ctx, t, models.ReasonContentIDMatch)
		}
	}

	if s.policy.LegalReviewEnabled {
		return s.holdForReview(ctx, t)
	}
	if s.policy.DefaultDecision == "approve" {
		return s.automatedExecute(ctx, t, models.ReasonDefaultDecision)
	}
	return s.reject(ctx, t, models.ReasonDefaultDecision, "", "")
}

func (s *Service) fetch(ctx context.Context, contentID string) (*content.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
	defer cancel()
	return s.catalog.Fetch(ctx, contentID)
}

// reporterInformationSufficient rejects claimants whose contact details
// could not support a legal notice.
func reporterInformationSufficient(r models.Reporter) bool {
	if utf8.RuneCountInString(r.Name) < 2 || utf8.RuneCountInString(r.Address) < 10 {
		return false
	}
	addr, err := mail.ParseAddress(r.Email)
	if err != nil {
		return false
	}
	_, domain, ok := strings.Cut(addr.Address, "@")
	return ok && strings.Contains(domain, ".")
}

// suspectedFalseClaim flags known abusers and claimants with a history of
// rejected notices.
func (s *Service) suspectedFalseClaim(ctx context.Context, email string) (bool, error) {
	if slices.Contains(s.policy.FalseClaimEmails, email) {
		return true, nil
	}
	if s.policy.MaxRejectedClaims <= 0 {
		return false, nil
	}
	rejected, err := s.store.CountRejectedByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	return rejected >= s.policy.MaxRejectedClaims, nil
}

// chargeOwner counts the takedown against the content owner once. The
// suspension that follows a crossed threshold stands whatever legal later
// decides about this notice.
func (s *Service) chargeOwner(ctx context.Context, t *models.Takedown) error {
	if t.ContentOwnerID == "" {
		return nil
	}
	ref := t.ID.String()
	outcome, err := s.ledger.RecordViolation(ctx, ledgermodels.Violation{
		Subject:        ledgermodels.User(t.ContentOwnerID),
		Source:         ledgermodels.SourceTakedown,
		ReferenceID:    ref,
		Action:         "copyright_takedown",
		IdempotencyKey: "takedown:" + ref,
		RecordedAt:     requesttime.Now(ctx),
	})
	if err != nil {
		return err
	}
	if outcome.Crossed {
		_ = s.notifier.Notify(ctx, notify.Notification{
			Kind:        notify.KindUserSuspended,
			Recipient:   t.ContentOwnerID,
			Subject:     "Your account was suspended",
			Body:        "Your account was suspended after repeated copyright notices.",
			ReferenceID: ref,
		})
	}
	return nil
}

func (s *Service) matchWork(ctx context.Context, t *models.Takedown, item *content.Item) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
	defer cancel()
	entry, err := s.works.Lookup(ctx, content.Fingerprint(item.Payload))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	t.ContentIDMatch = true
	t.MatchReference = entry.Reference
	return true, nil
}

func (s *Service) automatedExecute(ctx context.Context, t *models.Takedown, reason string) (*models.Takedown, error) {
	out, err := s.execute(ctx, t, reason, "", "")
	if err != nil && dErrors.HasCode(err, dErrors.CodeProcessingFailure) {
		return s.fail(ctx, t, failureReason(err))
	}
	return out, err
}

func failureReason(err error) string {
	if cause := errors.Unwrap(err); cause != nil {
		return err.Error() + ": " + cause.Error()
	}
	return err.Error()
}

func (s *Service) holdForReview(ctx context.Context, t *models.Takedown) (*models.Takedown, error) {
	next := t.Clone()
	next.Status = models.StatusUnderReview
	next.FailureReason = ""
	if err := s.update(ctx, next, models.StatusPending); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementOutcome(string(next.Status), "")
	}
	s.record(ctx, next, actionlog.Entry{
		Action:     actionlog.ActionTransition,
		FromStatus: string(models.StatusPending),
		ToStatus:   string(next.Status),
		Automated:  true,
	})
	s.logger.InfoContext(ctx, "takedown held for legal review", "takedown_id", next.ID)
	return next, nil
}

// closeAlreadyRemoved resolves a notice against content that is already
// down. Nothing is removed and the owner's ledger is not charged again.
func (s *Service) closeAlreadyRemoved(ctx context.Context, t *models.Takedown) (*models.Takedown, error) {
	now := requesttime.Now(ctx)
	next := t.Clone()
	next.Status = models.StatusResolved
	next.ResolutionReason = models.ReasonAlreadyRemoved
	next.FailureReason = ""
	next.ResolvedAt = &now
	if err := s.update(ctx, next, t.Status); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementOutcome(string(next.Status), next.ResolutionReason)
	}
	s.record(ctx, next, actionlog.Entry{
		Action:     actionlog.ActionTransition,
		FromStatus: string(t.Status),
		ToStatus:   string(next.Status),
		Automated:  true,
		Note:       next.ResolutionReason,
	})
	s.logger.InfoContext(ctx, "takedown closed, content already removed",
		"takedown_id", next.ID,
		"content_id", next.ContentID,
	)
	return next, nil
}

// reject closes the takedown; actor is empty for automated rejections.
func (s *Service) reject(ctx context.Context, t *models.Takedown, reason, actor, note string) (*models.Takedown, error) {
	from := t.Status
	now := requesttime.Now(ctx)
	next := t.Clone()
	next.Status = models.StatusRejected
	next.ResolutionReason = reason
	next.FailureReason = ""
	next.ReviewerID = actor
	next.ResolvedAt = &now
	if err := s.update(ctx, next, from); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementOutcome(string(next.Status), reason)
	}
	s.record(ctx, next, actionlog.Entry{
		Action:     actionlog.ActionTransition,
		FromStatus: string(from),
		ToStatus:   string(next.Status),
		Automated:  actor == "",
		Actor:      actor,
		Note:       joinNote(reason, note),
	})
	s.logger.InfoContext(ctx, "takedown rejected",
		"takedown_id", next.ID,
		"reason", reason,
	)
	return next, nil
}

// execute removes the content and resolves the takedown. The removal runs
// first; when it fails the stored takedown is untouched and the error
// carries CodeProcessingFailure.
func (s *Service) execute(ctx context.Context, t *models.Takedown, reason, actor, note string) (*models.Takedown, error) {
	from := t.Status
	ref := t.ID.String()

	rctx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
	err := s.catalog.Remove(rctx, t.ContentID, "copyright takedown "+ref)
	cancel()
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeProcessingFailure, "content removal failed")
	}

	now := requesttime.Now(ctx)
	next := t.Clone()
	next.Status = models.StatusResolved
	next.ResolutionReason = reason
	next.FailureReason = ""
	next.ReviewerID = actor
	next.ResolvedAt = &now
	if err := s.update(ctx, next, from); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementOutcome(string(next.Status), reason)
	}
	automated := actor == ""
	s.record(ctx, next, actionlog.Entry{
		Action:     actionlog.ActionTransition,
		FromStatus: string(from),
		ToStatus:   string(models.StatusApproved),
		Automated:  automated,
		Actor:      actor,
		Note:       joinNote(reason, note),
	})
	s.record(ctx, next, actionlog.Entry{
		Action:     actionlog.ActionContentRemoved,
		FromStatus: string(models.StatusApproved),
		ToStatus:   string(next.Status),
		Automated:  automated,
		Actor:      actor,
	})
	s.logger.InfoContext(ctx, "takedown executed",
		"takedown_id", next.ID,
		"content_id", next.ContentID,
		"reason", reason,
	)
	_ = s.notifier.Notify(ctx, notify.Notification{
		Kind:        notify.KindTakedownExecuted,
		Recipient:   next.ContentOwnerID,
		Subject:     "Your content was removed after a copyright notice",
		Body:        fmt.Sprintf("Content %s was removed following a notice from %s about %q. You may file a counter-notice.", next.ContentID, next.CopyrightOwner, next.WorkTitle),
		ReferenceID: ref,
	})
	return next, nil
}

// fail leaves the takedown where it was and records why.
func (s *Service) fail(ctx context.Context, t *models.Takedown, reason string) (*models.Takedown, error) {
	next := t.Clone()
	next.FailureReason = reason
	if err := s.update(ctx, next, t.Status); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementFailure()
	}
	s.record(ctx, next, actionlog.Entry{
		Action:    actionlog.ActionProcessingFailed,
		Automated: true,
		Note:      reason,
	})
	s.logger.WarnContext(ctx, "takedown processing failed",
		"takedown_id", next.ID,
		"reason", reason,
	)
	return next, nil
}

func joinNote(reason, note string) string {
	if note == "" {
		return reason
	}
	return reason + ": " + note
}
