package service

import (
	"context"
	"errors"
	"fmt"

	"guardian/internal/actionlog"
	"guardian/internal/notify"
	"guardian/internal/takedown/models"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/middleware/requesttime"
	"guardian/pkg/platform/sentinel"
)

// SubmitCounterNotice disputes a resolved takedown. The claimant is told,
// and restoration of the content is scheduled after the waiting period;
// the takedown itself stays resolved.
func (s *Service) SubmitCounterNotice(ctx context.Context, takedownID id.TakedownID, req *models.CounterNoticeRequest) (*models.CounterNotice, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := takedownID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	t, err := s.find(ctx, takedownID)
	if err != nil {
		return nil, err
	}
	switch t.Status {
	case models.StatusResolved:
		if t.ResolutionReason == models.ReasonAlreadyRemoved {
			return nil, dErrors.New(dErrors.CodeInvalidState, "nothing was removed under this takedown")
		}
	case models.StatusRejected:
		return nil, dErrors.New(dErrors.CodeInvalidState, "a counter-notice cannot be filed against a rejected takedown")
	default:
		return nil, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("takedown has not been actioned, it is %s", t.Status))
	}

	now := requesttime.Now(ctx)
	restoreAt := models.AddBusinessDays(now, s.policy.RestorationBusinessDays)
	cn := &models.CounterNotice{
		ID:                id.NewCounterNoticeID(),
		OriginalRequestID: t.ID,
		Respondent: models.Respondent{
			Name:    req.Respondent.Name,
			Email:   req.Respondent.Email,
			Address: req.Respondent.Address,
			Phone:   req.Respondent.Phone,
		},
		Statement:    req.Statement,
		Attestations: models.CounterAttestations(req.Attestations),
		Signature:    req.Signature,
		Status:       models.CounterRestorationScheduled,
		RestoreAt:    restoreAt,
		SubmittedAt:  now,
	}
	restoration := &models.Restoration{
		ID:              id.NewRestorationID(),
		TakedownID:      t.ID,
		CounterNoticeID: cn.ID,
		ContentID:       t.ContentID,
		DueAt:           restoreAt,
		Status:          models.RestorationScheduled,
	}
	if err := s.store.CreateCounterNotice(ctx, cn, restoration); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, dErrors.New(dErrors.CodeConflict, "a counter-notice was already filed for this takedown")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "takedown not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store counter-notice")
	}

	if s.metrics != nil {
		s.metrics.IncrementCounterNotice()
	}
	s.record(ctx, t, actionlog.Entry{
		Action:    actionlog.ActionRestorationPlanned,
		Automated: true,
		Note:      fmt.Sprintf("counter-notice %s, restore at %s", cn.ID, restoreAt.Format("2006-01-02")),
	})
	s.logger.InfoContext(ctx, "counter-notice filed",
		"takedown_id", t.ID,
		"counter_notice_id", cn.ID,
		"restore_at", restoreAt,
	)

	ref := t.ID.String()
	_ = s.notifier.Notify(ctx, notify.Notification{
		Kind:        notify.KindCounterNoticeFiled,
		Email:       t.Reporter.Email,
		Subject:     fmt.Sprintf("Counter-notice filed against your takedown of %q", t.WorkTitle),
		Body:        fmt.Sprintf("%s disputes the takedown. The content will be restored on %s unless you notify us that you have filed a court action.", cn.Respondent.Name, restoreAt.Format("2006-01-02")),
		ReferenceID: ref,
		Attributes:  map[string]string{"counter_notice_id": cn.ID.String()},
	})
	if t.ContentOwnerID != "" {
		_ = s.notifier.Notify(ctx, notify.Notification{
			Kind:        notify.KindRestorationScheduled,
			Recipient:   t.ContentOwnerID,
			Subject:     "Restoration scheduled",
			Body:        fmt.Sprintf("Content %s is scheduled to be restored on %s.", t.ContentID, restoreAt.Format("2006-01-02")),
			ReferenceID: ref,
		})
	}
	return cn, nil
}

// GetCounterNotice returns a counter-notice by id.
func (s *Service) GetCounterNotice(ctx context.Context, noticeID id.CounterNoticeID) (*models.CounterNotice, error) {
	cn, err := s.store.FindCounterNotice(ctx, noticeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "counter-notice not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read counter-notice")
	}
	return cn, nil
}

// CancelRestoration halts a scheduled restoration, typically because the
// claimant filed suit within the waiting period.
func (s *Service) CancelRestoration(ctx context.Context, noticeID id.CounterNoticeID, actor string, req *models.CancelRestorationRequest) (*models.Restoration, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cn, err := s.GetCounterNotice(ctx, noticeID)
	if err != nil {
		return nil, err
	}
	key := cn.OriginalRequestID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	r, err := s.store.CancelRestoration(ctx, noticeID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.New(dErrors.CodeInvalidState, "restoration is no longer scheduled")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "restoration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel restoration")
	}

	if s.metrics != nil {
		s.metrics.IncrementRestoration("cancelled")
	}
	s.actions.Record(ctx, actionlog.Entry{
		Component: actionlog.ComponentTakedown,
		RequestID: cn.OriginalRequestID.String(),
		Action:    actionlog.ActionRestorationHalted,
		Actor:     actor,
		Note:      req.Reason,
	})
	s.logger.InfoContext(ctx, "restoration cancelled",
		"counter_notice_id", noticeID,
		"takedown_id", cn.OriginalRequestID,
		"actor", actor,
	)
	return r, nil
}

// ExecuteDueRestorations restores content whose waiting period has ended.
// A failed restore stays scheduled for the next run. It returns how many
// were restored.
func (s *Service) ExecuteDueRestorations(ctx context.Context, limit int) (int, error) {
	due, err := s.store.ListDueRestorations(ctx, requesttime.Now(ctx), limit)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list due restorations")
	}
	restored := 0
	for _, r := range due {
		ok, err := s.restore(ctx, r)
		if err != nil {
			if s.metrics != nil {
				s.metrics.IncrementRestoration("failed")
			}
			s.logger.WarnContext(ctx, "restoration failed",
				"restoration_id", r.ID,
				"content_id", r.ContentID,
				"error", err,
			)
			continue
		}
		if ok {
			restored++
		}
	}
	return restored, nil
}

func (s *Service) restore(ctx context.Context, due *models.Restoration) (bool, error) {
	key := due.TakedownID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	// Re-read under the lock; it may have been cancelled since listing.
	r, err := s.store.FindRestoration(ctx, due.ID)
	if err != nil {
		return false, err
	}
	if r.Status != models.RestorationScheduled {
		return false, nil
	}

	rctx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
	err = s.catalog.Restore(rctx, r.ContentID)
	cancel()
	if err != nil {
		return false, fmt.Errorf("restore content: %w", err)
	}

	now := requesttime.Now(ctx)
	if err := s.store.CompleteRestoration(ctx, r.ID, now); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return false, nil
		}
		return false, fmt.Errorf("complete restoration: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncrementRestoration("executed")
	}
	t, err := s.store.FindByID(ctx, r.TakedownID)
	owner := ""
	if err == nil {
		owner = t.ContentOwnerID
	}
	s.actions.Record(ctx, actionlog.Entry{
		Component: actionlog.ComponentTakedown,
		RequestID: r.TakedownID.String(),
		OwnerID:   owner,
		Action:    actionlog.ActionContentRestored,
		Automated: true,
		Note:      "counter-notice " + r.CounterNoticeID.String(),
	})
	s.logger.InfoContext(ctx, "content restored",
		"restoration_id", r.ID,
		"takedown_id", r.TakedownID,
		"content_id", r.ContentID,
	)
	if owner != "" {
		_ = s.notifier.Notify(ctx, notify.Notification{
			Kind:        notify.KindContentRestored,
			Recipient:   owner,
			Subject:     "Your content was restored",
			Body:        fmt.Sprintf("Content %s was restored after your counter-notice.", r.ContentID),
			ReferenceID: r.TakedownID.String(),
		})
	}
	return true, nil
}
