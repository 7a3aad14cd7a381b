package service

import (
	"context"
	"errors"
	"fmt"

	"guardian/internal/reports/models"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/sentinel"
)

// Decide applies a reviewer's action to a report awaiting review, an
// escalated report, or one left pending by a processing failure.
func (s *Service) Decide(ctx context.Context, reportID id.ReportID, reviewerID string, decision *models.DecisionRequest) (*models.Report, error) {
	if decision == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "decision is required")
	}
	decision.Normalize()
	if err := decision.Validate(); err != nil {
		return nil, err
	}

	key := reportID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	r, err := s.find(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !r.Decidable() {
		return nil, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("report cannot be decided while %s", r.Status))
	}
	action := decision.Action
	if action == models.ActionEscalateLegal && r.Status == models.StatusEscalated {
		return nil, dErrors.New(dErrors.CodeInvalidState, "report is already escalated")
	}

	if r.ContentOwnerID == "" && action != models.ActionDismiss {
		item, err := s.fetch(ctx, r.ContentID)
		switch {
		case err == nil:
			r.ContentOwnerID = item.OwnerID
		case errors.Is(err, sentinel.ErrNotFound):
			if action != models.ActionEscalateLegal {
				return nil, dErrors.New(dErrors.CodeInvalidState, "reported content no longer exists")
			}
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeProcessingFailure, "content fetch failed")
		}
	}

	out, err := s.execute(ctx, r, action, false, reviewerID, decision.Note)
	if err != nil {
		return nil, err
	}
	return out.Public(), nil
}
