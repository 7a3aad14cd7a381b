package service

import (
	"context"
	"errors"
	"fmt"

	"guardian/internal/actionlog"
	"guardian/internal/content"
	ledgermodels "guardian/internal/ledger/models"
	"guardian/internal/notify"
	"guardian/internal/reports/models"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/middleware/requesttime"
	"guardian/pkg/platform/sentinel"
	"guardian/pkg/platform/tracer"
)

// processByID runs the automated pipeline under the report lock. Reports
// no longer pending are returned as stored.
func (s *Service) processByID(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	key := reportID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	r, err := s.find(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.StatusPending {
		return r, nil
	}

	ctx, span := s.tracer.Start(ctx, "reports.process",
		tracer.String("report_id", key),
		tracer.String("content_id", r.ContentID),
	)
	out, err := s.process(ctx, r)
	if out != nil {
		span.SetAttributes(tracer.String("status", string(out.Status)))
	}
	span.End(err)
	return out, err
}

// process fetches and scans the content, then decides: confident matches
// are removed, repeat offenders go to legal, and the rest wait for review
// or get the default decision. Any failure leaves the report pending with
// a reason so it is picked up again.
func (s *Service) process(ctx context.Context, r *models.Report) (*models.Report, error) {
	item, err := s.fetch(ctx, r.ContentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return s.execute(ctx, r, models.ActionDismiss, true, "", "content not found")
		}
		return s.fail(ctx, r, fmt.Sprintf("content fetch failed: %v", err))
	}
	r.ContentOwnerID = item.OwnerID

	scan, err := s.scanner.ScanItem(ctx, item)
	if err != nil {
		return s.fail(ctx, r, fmt.Sprintf("content scan failed: %v", err))
	}
	if scan.Failed() {
		return s.fail(ctx, r, "content scan failed: "+scan.Failure)
	}
	r.AutomatedConfidence = scan.Confidence

	if scan.Confidence > s.policy.AutoRemoveThreshold {
		return s.automated(ctx, r, models.ActionRemoveContent,
			fmt.Sprintf("removed automatically at confidence %.2f", scan.Confidence))
	}

	if r.ContentOwnerID != "" {
		count, err := s.ledger.Count(ctx, ledgermodels.User(r.ContentOwnerID))
		if err != nil {
			return s.fail(ctx, r, fmt.Sprintf("ledger lookup failed: %v", err))
		}
		if count >= s.escalationThreshold() {
			return s.automated(ctx, r, models.ActionEscalateLegal,
				fmt.Sprintf("owner has %d recorded violations", count))
		}
	}

	if s.policy.HumanReviewEnabled {
		return s.queueForReview(ctx, r)
	}
	return s.automated(ctx, r, s.policy.DefaultDecision, "default decision applied")
}

func (s *Service) automated(ctx context.Context, r *models.Report, action models.Action, note string) (*models.Report, error) {
	out, err := s.execute(ctx, r, action, true, "", note)
	if err != nil && dErrors.HasCode(err, dErrors.CodeProcessingFailure) {
		return s.fail(ctx, r, failureReason(err))
	}
	return out, err
}

func failureReason(err error) string {
	if cause := errors.Unwrap(err); cause != nil {
		return err.Error() + ": " + cause.Error()
	}
	return err.Error()
}

func (s *Service) fetch(ctx context.Context, contentID string) (*content.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.policy.CatalogTimeout)
	defer cancel()
	return s.catalog.Fetch(ctx, contentID)
}

func (s *Service) queueForReview(ctx context.Context, r *models.Report) (*models.Report, error) {
	next := r.Clone()
	next.Status = models.StatusUnderReview
	next.FailureReason = ""
	if err := s.update(ctx, next, models.StatusPending); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementOutcome(string(next.Status))
	}
	s.record(ctx, next, actionlog.Entry{
		Action:     actionlog.ActionTransition,
		FromStatus: string(models.StatusPending),
		ToStatus:   string(next.Status),
		Automated:  true,
	})
	s.logger.InfoContext(ctx, "report queued for review",
		"report_id", next.ID,
		"confidence", next.AutomatedConfidence,
	)
	return next, nil
}

// fail keeps the report pending and records why.
func (s *Service) fail(ctx context.Context, r *models.Report, reason string) (*models.Report, error) {
	next := r.Clone()
	next.FailureReason = reason
	if err := s.update(ctx, next, models.StatusPending); err != nil {
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
	s.logger.WarnContext(ctx, "report processing failed",
		"report_id", next.ID,
		"reason", reason,
	)
	return next, nil
}

// execute applies a moderation action and moves the report to the
// action's outcome. Side effects run before the status change; a failed
// side effect returns CodeProcessingFailure and leaves the stored report
// as it was. Repeating an action is safe: removals are idempotent and
// ledger increments carry a per-report key.
func (s *Service) execute(ctx context.Context, r *models.Report, action models.Action, automated bool, actor, note string) (*models.Report, error) {
	from := r.Status
	next := r.Clone()
	owner := r.ContentOwnerID
	subject := ledgermodels.User(owner)
	ref := r.ID.String()

	if action == models.ActionRemoveContent {
		rctx, cancel := context.WithTimeout(ctx, s.policy.CatalogTimeout)
		err := s.catalog.Remove(rctx, r.ContentID, "report "+ref)
		cancel()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeProcessingFailure, "content removal failed")
		}
		next.Actions.ContentRemoved = true
	}

	crossed := false
	if action.Counts() && owner != "" {
		outcome, err := s.ledger.RecordViolation(ctx, ledgermodels.Violation{
			Subject:        subject,
			Source:         ledgermodels.SourceReport,
			ReferenceID:    ref,
			Action:         string(action),
			IdempotencyKey: "report:" + ref + ":" + string(action),
			RecordedAt:     requesttime.Now(ctx),
		})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeProcessingFailure, "ledger update failed")
		}
		crossed = outcome.Crossed
	}

	switch action {
	case models.ActionWarnUser:
		next.Actions.UserWarned = true
	case models.ActionSuspendUser, models.ActionBanUser:
		if owner == "" {
			return nil, dErrors.New(dErrors.CodeProcessingFailure, "content owner is unknown")
		}
		var err error
		if action == models.ActionBanUser {
			_, err = s.ledger.Ban(ctx, subject, ledgermodels.SourceReport, ref)
			next.Actions.UserBanned = true
		} else {
			_, err = s.ledger.Suspend(ctx, subject, ledgermodels.SourceReport, ref)
			next.Actions.UserSuspended = true
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeProcessingFailure, "account action failed")
		}
	case models.ActionEscalateLegal:
		next.Actions.EscalatedToLegal = true
	}

	next.Status = action.Outcome()
	next.FailureReason = ""
	next.ResolutionNote = note
	if actor != "" {
		next.ReviewerID = actor
	}
	if next.Status.IsTerminal() {
		now := requesttime.Now(ctx)
		next.ResolvedAt = &now
	}
	if err := s.update(ctx, next, from); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementAction(string(action), automated)
		if automated {
			s.metrics.IncrementOutcome(string(next.Status))
		}
	}
	s.record(ctx, next, actionlog.Entry{
		Action:     actionName(action),
		FromStatus: string(from),
		ToStatus:   string(next.Status),
		Automated:  automated,
		Actor:      actor,
		Note:       note,
	})
	s.logger.InfoContext(ctx, "report action executed",
		"report_id", next.ID,
		"action", action,
		"automated", automated,
		"status", next.Status,
	)
	s.announce(ctx, next, action, crossed)
	return next, nil
}

func actionName(a models.Action) string {
	switch a {
	case models.ActionRemoveContent:
		return actionlog.ActionContentRemoved
	case models.ActionWarnUser:
		return actionlog.ActionUserWarned
	case models.ActionSuspendUser:
		return actionlog.ActionUserSuspended
	case models.ActionBanUser:
		return actionlog.ActionUserBanned
	case models.ActionEscalateLegal:
		return actionlog.ActionEscalatedToLegal
	default:
		return actionlog.ActionDismissed
	}
}

// announce is best effort; the notifier logs its own failures.
func (s *Service) announce(ctx context.Context, r *models.Report, action models.Action, crossed bool) {
	ref := r.ID.String()
	owner := r.ContentOwnerID
	send := func(n notify.Notification) {
		n.ReferenceID = ref
		_ = s.notifier.Notify(ctx, n)
	}

	switch action {
	case models.ActionRemoveContent:
		send(notify.Notification{
			Kind:      notify.KindContentRemoved,
			Recipient: owner,
			Subject:   "Your content was removed",
			Body:      fmt.Sprintf("Content %s was removed following a %s report.", r.ContentID, r.Category),
		})
	case models.ActionWarnUser:
		send(notify.Notification{
			Kind:      notify.KindUserWarned,
			Recipient: owner,
			Subject:   "Community guidelines warning",
			Body:      fmt.Sprintf("Content %s was reported for %s.", r.ContentID, r.Category),
		})
	case models.ActionSuspendUser:
		crossed = true
	case models.ActionBanUser:
		send(notify.Notification{
			Kind:      notify.KindUserBanned,
			Recipient: owner,
			Subject:   "Your account was banned",
			Body:      "Your account was banned for repeated violations.",
		})
	case models.ActionEscalateLegal:
		send(notify.Notification{
			Kind:    notify.KindLegalEscalation,
			Subject: fmt.Sprintf("Report %s escalated", ref),
			Body:    fmt.Sprintf("Content %s owned by %s was escalated: %s", r.ContentID, owner, r.ResolutionNote),
			Attributes: map[string]string{
				"content_id": r.ContentID,
				"owner_id":   owner,
				"category":   string(r.Category),
			},
		})
	}

	if crossed && action != models.ActionBanUser && owner != "" {
		send(notify.Notification{
			Kind:      notify.KindUserSuspended,
			Recipient: owner,
			Subject:   "Your account was suspended",
			Body:      "Your account was suspended for repeated violations.",
		})
	}
}
