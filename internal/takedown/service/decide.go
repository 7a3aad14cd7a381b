package service

import (
	"context"
	"errors"
	"fmt"

	"guardian/internal/takedown/models"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/sentinel"
)

// Decide records legal staff's verdict on a takedown under review, or on
// one left pending by a processing failure. Approval executes the takedown.
func (s *Service) Decide(ctx context.Context, takedownID id.TakedownID, reviewerID string, decision *models.DecisionRequest) (*models.Takedown, error) {
	if decision == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "decision is required")
	}
	decision.Normalize()
	if err := decision.Validate(); err != nil {
		return nil, err
	}

	key := takedownID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	t, err := s.find(ctx, takedownID)
	if err != nil {
		return nil, err
	}
	if !t.Decidable() {
		return nil, dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("takedown cannot be decided while %s", t.Status))
	}

	if decision.Decision == "reject" {
		return s.reject(ctx, t, models.ReasonLegalReview, reviewerID, decision.Note)
	}

	if t.ContentOwnerID == "" {
		item, err := s.fetch(ctx, t.ContentID)
		switch {
		case err == nil:
			t.ContentOwnerID = item.OwnerID
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeInvalidState, "targeted content no longer exists")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeProcessingFailure, "content fetch failed")
		}
	}
	return s.execute(ctx, t, models.ReasonLegalReview, reviewerID, decision.Note)
}
