package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"guardian/internal/actionlog"
	"guardian/internal/content"
	ledgermodels "guardian/internal/ledger/models"
	ledgerservice "guardian/internal/ledger/service"
	ledgerstore "guardian/internal/ledger/store"
	"guardian/internal/notify"
	"guardian/internal/scanning/hashes"
	"guardian/internal/takedown/models"
	"guardian/internal/takedown/store"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/middleware/requesttime"
)

// testNow is a Monday.
var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

var pirated = []byte("feature film frames")

type flakyCatalog struct {
	*content.MemoryCatalog
	fetchErr  error
	removeErr error
}

func (c *flakyCatalog) Fetch(ctx context.Context, contentID string) (*content.Item, error) {
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return c.MemoryCatalog.Fetch(ctx, contentID)
}

func (c *flakyCatalog) Remove(ctx context.Context, contentID, reason string) error {
	if c.removeErr != nil {
		return c.removeErr
	}
	return c.MemoryCatalog.Remove(ctx, contentID, reason)
}

type TakedownServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemoryStore
	catalog *flakyCatalog
	works   *hashes.InMemoryRegistry
	ledger  *ledgerservice.Service
	sink    *notify.MemorySink
	actions *actionlog.InMemoryStore
	service *Service
}

func TestTakedownServiceSuite(t *testing.T) {
	suite.Run(t, new(TakedownServiceSuite))
}

func (s *TakedownServiceSuite) SetupTest() {
	s.ctx = requesttime.WithTime(context.Background(), testNow)
	s.store = store.NewInMemoryStore()
	s.catalog = &flakyCatalog{MemoryCatalog: content.NewMemoryCatalog()}
	s.works = hashes.NewInMemoryRegistry(hashes.Copyright)
	s.ledger = ledgerservice.New(ledgerstore.NewInMemoryStore())
	s.sink = notify.NewMemorySink()
	s.actions = actionlog.NewInMemoryStore()
	s.service = s.newService(DefaultPolicy())

	s.catalog.Put(content.Item{ID: "content-1", OwnerID: "owner-1", Type: content.TypeVideo, Payload: []byte("home video")})
	s.catalog.Put(content.Item{ID: "content-2", OwnerID: "owner-1", Type: content.TypeVideo, Payload: pirated})
	s.Require().NoError(s.works.Add(s.ctx, hashes.Entry{Hash: content.Fingerprint(pirated), Reference: "work-77"}))
}

func (s *TakedownServiceSuite) newService(p Policy) *Service {
	return New(s.store, s.catalog, s.ledger,
		WithPolicy(p),
		WithWorksRegistry(s.works),
		WithNotifier(notify.NewNotifier(s.sink, notify.WithMaxAttempts(1))),
		WithActionLog(actionlog.NewRecorder(s.actions)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func notice(contentID string) *models.SubmitRequest {
	return &models.SubmitRequest{
		Reporter: models.ReporterFields{
			Name:    "Rights Holder",
			Email:   "legal@studio.example",
			Address: "100 Studio Way, Burbank",
		},
		CopyrightOwner: "Studio Pictures",
		WorkTitle:      "The Feature",
		ContentID:      contentID,
		Evidence:       []string{"https://studio.example/feature"},
		Attestations: models.AttestationsFields{
			GoodFaith: true, Accuracy: true, PerjuryStatement: true, Authorization: true,
		},
		Signature: "/Rights Holder/",
	}
}

func counterNotice() *models.CounterNoticeRequest {
	return &models.CounterNoticeRequest{
		Respondent: models.RespondentFields{Name: "Uploader", Email: "uploader@example.com", Address: "2 Side Street, Springfield"},
		Statement:  "The video is my own recording.",
		Attestations: models.CounterAttestationsFields{
			GoodFaith: true, PerjuryStatement: true, ConsentToJurisdiction: true,
		},
	}
}

func (s *TakedownServiceSuite) ownerCount() int {
	n, err := s.ledger.Count(s.ctx, ledgermodels.User("owner-1"))
	s.Require().NoError(err)
	return n
}

func (s *TakedownServiceSuite) removed(contentID string) bool {
	item, err := s.catalog.MemoryCatalog.Fetch(s.ctx, contentID)
	s.Require().NoError(err)
	return item.Removed
}

func (s *TakedownServiceSuite) resolvedTakedown() *models.Takedown {
	t, err := s.service.Submit(s.ctx, notice("content-2"))
	s.Require().NoError(err)
	s.Require().Equal(models.StatusResolved, t.Status)
	return t
}

func (s *TakedownServiceSuite) TestValidation() {
	s.Run("missing perjury statement", func() {
		req := notice("content-1")
		req.Attestations.PerjuryStatement = false
		_, err := s.service.Submit(s.ctx, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal([]string{"attestations.perjury_statement"}, dErrors.FieldNames(err))
	})

	s.Run("missing claimant details", func() {
		req := notice("content-1")
		req.Reporter = models.ReporterFields{}
		req.WorkTitle = ""
		_, err := s.service.Submit(s.ctx, req)
		s.ElementsMatch([]string{"reporter.name", "reporter.email", "reporter.address", "work_title"}, dErrors.FieldNames(err))
	})
}

func (s *TakedownServiceSuite) TestHeldForLegalReview() {
	t, err := s.service.Submit(s.ctx, notice("content-1"))
	s.Require().NoError(err)

	s.Equal(models.StatusUnderReview, t.Status)
	s.Equal("owner-1", t.ContentOwnerID)
	s.False(t.ContentIDMatch)
	s.Nil(t.ResolvedAt)
	s.Equal(1, s.ownerCount())
	s.False(s.removed("content-1"))
}

func (s *TakedownServiceSuite) TestAutomatedRejections() {
	cases := []struct {
		name   string
		mutate func(*models.SubmitRequest)
		reason string
	}{
		{"content absent", func(r *models.SubmitRequest) { r.ContentID = "content-gone" }, models.ReasonContentNotFound},
		{"address too short", func(r *models.SubmitRequest) { r.Reporter.Address = "PO Box 1" }, models.ReasonReporterInformation},
		{"single-letter name", func(r *models.SubmitRequest) { r.Reporter.Name = "X" }, models.ReasonReporterInformation},
		{"listed false claimant", func(r *models.SubmitRequest) { r.Reporter.Email = "troll@claims.example" }, models.ReasonSuspectedFalseClaim},
	}
	p := DefaultPolicy()
	p.FalseClaimEmails = []string{"Troll@Claims.example"}
	svc := s.newService(p)

	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := notice("content-1")
			tc.mutate(req)
			t, err := svc.Submit(s.ctx, req)
			s.Require().NoError(err)
			s.Equal(models.StatusRejected, t.Status)
			s.Equal(tc.reason, t.ResolutionReason)
			s.NotNil(t.ResolvedAt)
		})
	}
	s.Zero(s.ownerCount())
}

func (s *TakedownServiceSuite) TestRepeatedRejectionsMarkFalseClaimant() {
	p := DefaultPolicy()
	p.MaxRejectedClaims = 2
	svc := s.newService(p)

	for range 2 {
		t, err := svc.Submit(s.ctx, notice("content-gone"))
		s.Require().NoError(err)
		s.Require().Equal(models.StatusRejected, t.Status)
	}

	t, err := svc.Submit(s.ctx, notice("content-1"))
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, t.Status)
	s.Equal(models.ReasonSuspectedFalseClaim, t.ResolutionReason)
}

func (s *TakedownServiceSuite) TestContentIDMatchExecutes() {
	t, err := s.service.Submit(s.ctx, notice("content-2"))
	s.Require().NoError(err)

	s.Equal(models.StatusResolved, t.Status)
	s.True(t.ContentIDMatch)
	s.Equal("work-77", t.MatchReference)
	s.Equal(models.ReasonContentIDMatch, t.ResolutionReason)
	s.True(s.removed("content-2"))
	s.Equal(1, s.ownerCount())

	executed := s.sink.OfKind(notify.KindTakedownExecuted)
	s.Require().Len(executed, 1)
	s.Equal("owner-1", executed[0].Recipient)

	entries, err := actionlog.NewRecorder(s.actions).ListByRequest(s.ctx, t.ID.String())
	s.Require().NoError(err)
	var statuses []string
	for _, e := range entries {
		if e.ToStatus != "" {
			statuses = append(statuses, e.ToStatus)
		}
	}
	s.Equal([]string{"pending", "approved", "resolved"}, statuses)
}

func (s *TakedownServiceSuite) TestNoticeAgainstRemovedContent() {
	first := s.resolvedTakedown()
	s.Equal(1, s.ownerCount())
	executed := len(s.sink.OfKind(notify.KindTakedownExecuted))

	second, err := s.service.Submit(s.ctx, notice("content-2"))
	s.Require().NoError(err)

	s.NotEqual(first.ID, second.ID)
	s.Equal(models.StatusResolved, second.Status)
	s.Equal(models.ReasonAlreadyRemoved, second.ResolutionReason)
	s.Equal("owner-1", second.ContentOwnerID)
	s.False(second.ContentIDMatch)
	s.Equal(1, s.ownerCount())
	s.Len(s.sink.OfKind(notify.KindTakedownExecuted), executed)

	s.Run("the claimant is not counted as rejected", func() {
		n, err := s.store.CountRejectedByEmail(s.ctx, "legal@studio.example")
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("no counter-notice can be filed against it", func() {
		_, err := s.service.SubmitCounterNotice(s.ctx, second.ID, counterNotice())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *TakedownServiceSuite) TestThresholdSuspendsOwnerIndependently() {
	for _, ref := range []string{"r1", "r2"} {
		_, err := s.ledger.RecordViolation(s.ctx, ledgermodels.Violation{
			Subject: ledgermodels.User("owner-1"), Source: ledgermodels.SourceReport,
			ReferenceID: ref, Action: "remove_content",
		})
		s.Require().NoError(err)
	}

	t, err := s.service.Submit(s.ctx, notice("content-1"))
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, t.Status)

	rec, err := s.ledger.Get(s.ctx, ledgermodels.User("owner-1"))
	s.Require().NoError(err)
	s.Equal(3, rec.ViolationCount)
	s.Equal(ledgermodels.StatusSuspended, rec.Status)
	s.Len(s.sink.OfKind(notify.KindUserSuspended), 1)

	s.Run("rejecting the notice does not lift the suspension", func() {
		_, err := s.service.Decide(s.ctx, t.ID, "legal-1", &models.DecisionRequest{Decision: "reject"})
		s.Require().NoError(err)
		rec, err := s.ledger.Get(s.ctx, ledgermodels.User("owner-1"))
		s.Require().NoError(err)
		s.Equal(ledgermodels.StatusSuspended, rec.Status)
	})
}

func (s *TakedownServiceSuite) TestDefaultDecisionWithoutLegalReview() {
	p := DefaultPolicy()
	p.LegalReviewEnabled = false

	t, err := s.newService(p).Submit(s.ctx, notice("content-1"))
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, t.Status)
	s.Equal(models.ReasonDefaultDecision, t.ResolutionReason)

	p.DefaultDecision = "approve"
	t, err = s.newService(p).Submit(s.ctx, notice("content-1"))
	s.Require().NoError(err)
	s.Equal(models.StatusResolved, t.Status)
	s.True(s.removed("content-1"))
}

func (s *TakedownServiceSuite) TestProcessingFailures() {
	s.Run("catalog outage leaves the takedown pending", func() {
		s.catalog.fetchErr = errors.New("catalog unavailable")
		t, err := s.service.Submit(s.ctx, notice("content-1"))
		s.Require().NoError(err)
		s.Equal(models.StatusPending, t.Status)
		s.Contains(t.FailureReason, "content fetch failed")
		s.Zero(s.ownerCount())

		s.catalog.fetchErr = nil
		advanced, err := s.service.ReprocessStale(s.ctx, testNow.Add(time.Minute), 10)
		s.Require().NoError(err)
		s.Equal(1, advanced)

		got, err := s.service.Get(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusUnderReview, got.Status)
		s.Empty(got.FailureReason)
	})

	s.Run("removal failure is retried without double counting", func() {
		s.catalog.removeErr = errors.New("catalog read-only")
		t, err := s.service.Submit(s.ctx, notice("content-2"))
		s.Require().NoError(err)
		s.Equal(models.StatusPending, t.Status)
		s.Equal("content removal failed: catalog read-only", t.FailureReason)
		s.Equal(2, s.ownerCount())

		s.catalog.removeErr = nil
		_, err = s.service.ReprocessStale(s.ctx, testNow.Add(time.Minute), 10)
		s.Require().NoError(err)

		got, err := s.service.Get(s.ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusResolved, got.Status)
		s.Equal(2, s.ownerCount())
	})
}

func (s *TakedownServiceSuite) TestDecide() {
	held, err := s.service.Submit(s.ctx, notice("content-1"))
	s.Require().NoError(err)

	s.Run("approve executes", func() {
		t, err := s.service.Decide(s.ctx, held.ID, "legal-1", &models.DecisionRequest{Decision: " Approve ", Note: "verified ownership"})
		s.Require().NoError(err)
		s.Equal(models.StatusResolved, t.Status)
		s.Equal("legal-1", t.ReviewerID)
		s.Equal(models.ReasonLegalReview, t.ResolutionReason)
		s.True(s.removed("content-1"))
	})

	s.Run("closed takedowns cannot be decided", func() {
		_, err := s.service.Decide(s.ctx, held.ID, "legal-1", &models.DecisionRequest{Decision: "reject"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown takedown", func() {
		_, err := s.service.Decide(s.ctx, id.NewTakedownID(), "legal-1", &models.DecisionRequest{Decision: "reject"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("bad decision", func() {
		_, err := s.service.Decide(s.ctx, held.ID, "legal-1", &models.DecisionRequest{Decision: "maybe"})
		s.Equal([]string{"decision"}, dErrors.FieldNames(err))
	})
}

func (s *TakedownServiceSuite) TestCounterNoticeStates() {
	s.Run("unknown takedown", func() {
		_, err := s.service.SubmitCounterNotice(s.ctx, id.NewTakedownID(), counterNotice())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejected takedown", func() {
		rejected, err := s.service.Submit(s.ctx, notice("content-gone"))
		s.Require().NoError(err)
		_, err = s.service.SubmitCounterNotice(s.ctx, rejected.ID, counterNotice())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("takedown still under review", func() {
		held, err := s.service.Submit(s.ctx, notice("content-1"))
		s.Require().NoError(err)
		_, err = s.service.SubmitCounterNotice(s.ctx, held.ID, counterNotice())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("missing jurisdiction consent", func() {
		t := s.resolvedTakedown()
		req := counterNotice()
		req.Attestations.ConsentToJurisdiction = false
		_, err := s.service.SubmitCounterNotice(s.ctx, t.ID, req)
		s.Equal([]string{"attestations.consent_to_jurisdiction"}, dErrors.FieldNames(err))
	})
}

func (s *TakedownServiceSuite) TestCounterNoticeSchedulesRestoration() {
	t := s.resolvedTakedown()

	cn, err := s.service.SubmitCounterNotice(s.ctx, t.ID, counterNotice())
	s.Require().NoError(err)
	s.Equal(models.CounterRestorationScheduled, cn.Status)
	s.Equal(t.ID, cn.OriginalRequestID)
	s.Equal(time.Date(2026, 5, 18, 9, 0, 0, 0, time.UTC), cn.RestoreAt)

	filed := s.sink.OfKind(notify.KindCounterNoticeFiled)
	s.Require().Len(filed, 1)
	s.Equal("legal@studio.example", filed[0].Email)
	s.Len(s.sink.OfKind(notify.KindRestorationScheduled), 1)

	got, err := s.service.Get(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusResolved, got.Status)

	s.Run("only one counter-notice per takedown", func() {
		_, err := s.service.SubmitCounterNotice(s.ctx, t.ID, counterNotice())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("nothing is restored before the waiting period ends", func() {
		n, err := s.service.ExecuteDueRestorations(requesttime.WithTime(s.ctx, cn.RestoreAt.Add(-time.Minute)), 10)
		s.Require().NoError(err)
		s.Zero(n)
		s.True(s.removed("content-2"))
	})

	s.Run("due restoration puts the content back", func() {
		due := requesttime.WithTime(s.ctx, cn.RestoreAt)
		n, err := s.service.ExecuteDueRestorations(due, 10)
		s.Require().NoError(err)
		s.Equal(1, n)
		s.False(s.removed("content-2"))

		after, err := s.service.GetCounterNotice(s.ctx, cn.ID)
		s.Require().NoError(err)
		s.Equal(models.CounterRestored, after.Status)
		s.Require().NotNil(after.RestoredAt)
		s.Len(s.sink.OfKind(notify.KindContentRestored), 1)

		n, err = s.service.ExecuteDueRestorations(due, 10)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("a restored notice cannot be cancelled", func() {
		_, err := s.service.CancelRestoration(s.ctx, cn.ID, "legal-1", &models.CancelRestorationRequest{Reason: "suit filed"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *TakedownServiceSuite) TestCancelRestoration() {
	t := s.resolvedTakedown()
	cn, err := s.service.SubmitCounterNotice(s.ctx, t.ID, counterNotice())
	s.Require().NoError(err)

	r, err := s.service.CancelRestoration(s.ctx, cn.ID, "legal-1", &models.CancelRestorationRequest{Reason: "claimant filed suit"})
	s.Require().NoError(err)
	s.Equal(models.RestorationCancelled, r.Status)

	n, err := s.service.ExecuteDueRestorations(requesttime.WithTime(s.ctx, cn.RestoreAt.Add(time.Hour)), 10)
	s.Require().NoError(err)
	s.Zero(n)
	s.True(s.removed("content-2"))

	after, err := s.service.GetCounterNotice(s.ctx, cn.ID)
	s.Require().NoError(err)
	s.Equal(models.CounterRestorationCancelled, after.Status)

	s.Run("reason is required", func() {
		_, err := s.service.CancelRestoration(s.ctx, cn.ID, "legal-1", &models.CancelRestorationRequest{})
		s.Equal([]string{"reason"}, dErrors.FieldNames(err))
	})

	s.Run("unknown notice", func() {
		_, err := s.service.CancelRestoration(s.ctx, id.NewCounterNoticeID(), "legal-1", &models.CancelRestorationRequest{Reason: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	stats, err := s.service.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, stats.ByStatus[models.StatusResolved])
	s.Equal(1, stats.CounterNotices[models.CounterRestorationCancelled])
}
