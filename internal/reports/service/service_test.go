package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"guardian/internal/actionlog"
	"guardian/internal/content"
	ledgermodels "guardian/internal/ledger/models"
	ledgerservice "guardian/internal/ledger/service"
	ledgerstore "guardian/internal/ledger/store"
	"guardian/internal/notify"
	"guardian/internal/reports/models"
	"guardian/internal/reports/store"
	scanmodels "guardian/internal/scanning/models"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/middleware/requesttime"
	"guardian/pkg/testutil"
)

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type stubScanner struct {
	calls      atomic.Int32
	confidence map[string]float64
	failure    string
	err        error
}

func (s *stubScanner) ScanItem(_ context.Context, item *content.Item) (*scanmodels.ScanResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	res := &scanmodels.ScanResult{
		ID:          id.NewScanID(),
		ContentID:   item.ID,
		ContentType: item.Type,
		Confidence:  s.confidence[item.ID],
		Failure:     s.failure,
	}
	return res, nil
}

// flakyCatalog fails Fetch or Remove while the matching error is set.
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

type ReportServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemoryStore
	catalog *flakyCatalog
	scanner *stubScanner
	ledger  *ledgerservice.Service
	sink    *notify.MemorySink
	actions *actionlog.InMemoryStore
	service *Service
}

func TestReportServiceSuite(t *testing.T) {
	suite.Run(t, new(ReportServiceSuite))
}

func (s *ReportServiceSuite) SetupTest() {
	s.ctx = requesttime.WithTime(context.Background(), testNow)
	s.store = store.NewInMemoryStore()
	s.catalog = &flakyCatalog{MemoryCatalog: content.NewMemoryCatalog()}
	s.scanner = &stubScanner{confidence: map[string]float64{}}
	s.ledger = ledgerservice.New(ledgerstore.NewInMemoryStore())
	s.sink = notify.NewMemorySink()
	s.actions = actionlog.NewInMemoryStore()
	s.service = s.newService(DefaultPolicy())

	for _, item := range []content.Item{
		{ID: "content-1", OwnerID: "owner-1", Type: content.TypeText, Payload: []byte("one")},
		{ID: "content-2", OwnerID: "owner-1", Type: content.TypeText, Payload: []byte("two")},
		{ID: "content-3", OwnerID: "owner-1", Type: content.TypeText, Payload: []byte("three")},
		{ID: "content-9", OwnerID: "owner-9", Type: content.TypeImage, Payload: []byte("nine")},
	} {
		s.catalog.Put(item)
	}
}

func (s *ReportServiceSuite) newService(p Policy) *Service {
	return New(s.store, s.catalog, s.scanner, s.ledger,
		WithPolicy(p),
		WithNotifier(notify.NewNotifier(s.sink, notify.WithMaxAttempts(1))),
		WithActionLog(actionlog.NewRecorder(s.actions)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func report(contentID, reporterID string) *models.SubmitRequest {
	return &models.SubmitRequest{
		ReporterID:  reporterID,
		ContentID:   contentID,
		Category:    scanmodels.ViolationHateSpeech,
		Severity:    scanmodels.SeverityHigh,
		Reason:      "slur in caption",
		Description: "The caption targets a protected group.",
		Evidence:    []string{"screenshot-1", " screenshot-1 "},
	}
}

func (s *ReportServiceSuite) ownerCount(owner string) int {
	n, err := s.ledger.Count(s.ctx, ledgermodels.User(owner))
	s.Require().NoError(err)
	return n
}

func (s *ReportServiceSuite) TestAutomatedRemoval() {
	s.scanner.confidence["content-1"] = 0.95
	s.scanner.confidence["content-2"] = 0.95

	first, err := s.service.Submit(s.ctx, report("content-1", "reporter-1"))
	s.Require().NoError(err)
	second, err := s.service.Submit(s.ctx, report("content-2", "reporter-2"))
	s.Require().NoError(err)

	for _, r := range []*models.Report{first, second} {
		s.Equal(models.StatusResolved, r.Status)
		s.True(r.Actions.ContentRemoved)
		s.Equal("owner-1", r.ContentOwnerID)
		s.InDelta(0.95, r.AutomatedConfidence, 1e-9)
		s.Require().NotNil(r.ResolvedAt)
	}
	s.Equal(2, s.ownerCount("owner-1"))
	s.Len(s.sink.OfKind(notify.KindContentRemoved), 2)
	s.Empty(s.sink.OfKind(notify.KindUserSuspended))

	item, err := s.catalog.Fetch(s.ctx, "content-1")
	s.Require().NoError(err)
	s.True(item.Removed)

	s.Run("the increment that crosses the threshold suspends the owner", func() {
		s.scanner.confidence["content-3"] = 0.97
		_, err := s.service.Submit(s.ctx, report("content-3", "reporter-3"))
		s.Require().NoError(err)

		rec, err := s.ledger.Get(s.ctx, ledgermodels.User("owner-1"))
		s.Require().NoError(err)
		s.Equal(3, rec.ViolationCount)
		s.Equal(ledgermodels.StatusSuspended, rec.Status)
		s.Len(s.sink.OfKind(notify.KindUserSuspended), 1)
	})
}

func (s *ReportServiceSuite) TestBelowThresholdWaitsForReview() {
	s.scanner.confidence["content-1"] = 0.9

	res, err := s.service.Submit(s.ctx, report("content-1", "reporter-1"))
	s.Require().NoError(err)

	s.Equal(models.StatusUnderReview, res.Status)
	s.False(res.Actions.ContentRemoved)
	s.Equal(models.PriorityHigh, res.Priority)
	s.Equal([]string{"screenshot-1"}, res.Evidence)
	s.Zero(s.ownerCount("owner-1"))
	s.Empty(s.sink.Sent())

	queue, err := s.service.ReviewQueue(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(queue, 1)
	s.Equal(res.ID, queue[0].ID)
}

func (s *ReportServiceSuite) TestRepeatOffenderEscalates() {
	for i, ref := range []string{"a", "b", "c"} {
		_, err := s.ledger.RecordViolation(s.ctx, ledgermodels.Violation{
			Subject:        ledgermodels.User("owner-1"),
			Source:         ledgermodels.SourceTakedown,
			ReferenceID:    ref,
			Action:         "content_removed",
			IdempotencyKey: "seed:" + ref,
			RecordedAt:     testNow.Add(-time.Duration(i+1) * time.Hour),
		})
		s.Require().NoError(err)
	}
	s.scanner.confidence["content-1"] = 0.3

	res, err := s.service.Submit(s.ctx, report("content-1", "reporter-1"))
	s.Require().NoError(err)

	s.Equal(models.StatusEscalated, res.Status)
	s.True(res.Actions.EscalatedToLegal)
	s.Nil(res.ResolvedAt)
	s.Equal(4, s.ownerCount("owner-1"))

	legal := s.sink.OfKind(notify.KindLegalEscalation)
	s.Require().Len(legal, 1)
	s.Equal(res.ID.String(), legal[0].ReferenceID)
	s.Equal("owner-1", legal[0].Attributes["owner_id"])

	s.Run("an escalated report cannot be escalated again", func() {
		_, err := s.service.Decide(s.ctx, res.ID, "reviewer-1", &models.DecisionRequest{Action: models.ActionEscalateLegal})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("legal can resolve it with a ban", func() {
		out, err := s.service.Decide(s.ctx, res.ID, "legal-1", &models.DecisionRequest{Action: models.ActionBanUser, Note: "counsel approved"})
		s.Require().NoError(err)
		s.Equal(models.StatusResolved, out.Status)
		s.True(out.Actions.UserBanned)
		s.True(out.Actions.EscalatedToLegal)
		s.Equal("legal-1", out.ReviewerID)

		rec, err := s.ledger.Get(s.ctx, ledgermodels.User("owner-1"))
		s.Require().NoError(err)
		s.Equal(ledgermodels.StatusBanned, rec.Status)
		s.Len(s.sink.OfKind(notify.KindUserBanned), 1)
	})
}

func (s *ReportServiceSuite) TestDuplicateReturnsOriginal() {
	s.scanner.confidence["content-1"] = 0.95

	first, err := s.service.Submit(s.ctx, report("content-1", "reporter-1"))
	s.Require().NoError(err)
	again, err := s.service.Submit(requesttime.WithTime(s.ctx, testNow.Add(time.Hour)), report("content-1", "reporter-1"))
	s.Require().NoError(err)

	s.Equal(first.ID, again.ID)
	s.Equal(int32(1), s.scanner.calls.Load())
	s.Equal(1, s.ownerCount("owner-1"))

	stats, err := s.service.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, stats.ByStatus[models.StatusResolved])

	s.Run("a different reporter is not a duplicate", func() {
		other, err := s.service.Submit(s.ctx, report("content-1", "reporter-2"))
		s.Require().NoError(err)
		s.NotEqual(first.ID, other.ID)
	})

	s.Run("the window expires", func() {
		later := requesttime.WithTime(s.ctx, testNow.Add(25*time.Hour))
		fresh, err := s.service.Submit(later, report("content-1", "reporter-1"))
		s.Require().NoError(err)
		s.NotEqual(first.ID, fresh.ID)
	})
}

func (s *ReportServiceSuite) TestConcurrentDuplicatesCreateOneReport() {
	s.scanner.confidence["content-1"] = 0.95

	var mu sync.Mutex
	ids := map[id.ReportID]int{}
	result := testutil.RunConcurrent(25, func(int) error {
		r, err := s.service.Submit(s.ctx, report("content-1", "reporter-1"))
		if err != nil {
			return err
		}
		mu.Lock()
		ids[r.ID]++
		mu.Unlock()
		return nil
	})

	s.Equal(int32(25), result.Successes)
	s.Len(ids, 1, "every submitter gets the same report")
	s.Equal(int32(1), s.scanner.calls.Load())
	s.Equal(1, s.ownerCount("owner-1"))
	s.Len(s.sink.OfKind(notify.KindContentRemoved), 1)

	stats, err := s.service.Stats(s.ctx)
	s.Require().NoError(err)
	stored := 0
	for _, n := range stats.ByStatus {
		stored += n
	}
	s.Equal(1, stored)
}

func (s *ReportServiceSuite) TestAnonymousReporterIsHidden() {
	req := report("content-1", "reporter-secret")
	req.Anonymous = true

	res, err := s.service.Submit(s.ctx, req)
	s.Require().NoError(err)
	s.Empty(res.ReporterID)
	s.True(res.Anonymous)

	got, err := s.service.Get(s.ctx, res.ID)
	s.Require().NoError(err)
	s.Empty(got.ReporterID)

	stored, err := s.store.FindByID(s.ctx, res.ID)
	s.Require().NoError(err)
	s.Equal("reporter-secret", stored.ReporterID)

	s.Run("named reporters stay visible", func() {
		named, err := s.service.Submit(s.ctx, report("content-2", "reporter-named"))
		s.Require().NoError(err)
		s.Equal("reporter-named", named.ReporterID)
	})
}

func (s *ReportServiceSuite) TestProcessingFailuresStayPending() {
	s.Run("catalog outage", func() {
		s.catalog.fetchErr = errors.New("catalog unavailable")
		res, err := s.service.Submit(s.ctx, report("content-1", "reporter-1"))
		s.Require().NoError(err)
		s.Equal(models.StatusPending, res.Status)
		s.Contains(res.FailureReason, "content fetch failed")

		s.catalog.fetchErr = nil
		s.scanner.confidence["content-1"] = 0.95
		advanced, err := s.service.ReprocessStale(s.ctx, testNow.Add(time.Minute), 10)
		s.Require().NoError(err)
		s.Equal(1, advanced)

		got, err := s.service.Get(s.ctx, res.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusResolved, got.Status)
		s.Empty(got.FailureReason)
	})

	s.Run("failed scan", func() {
		s.scanner.failure = "classifier timed out"
		defer func() { s.scanner.failure = "" }()

		res, err := s.service.Submit(s.ctx, report("content-9", "reporter-1"))
		s.Require().NoError(err)
		s.Equal(models.StatusPending, res.Status)
		s.Equal("content scan failed: classifier timed out", res.FailureReason)
		s.Zero(s.ownerCount("owner-9"))
	})

	s.Run("removal failure leaves the ledger untouched", func() {
		s.catalog.removeErr = errors.New("catalog read-only")
		defer func() { s.catalog.removeErr = nil }()
		s.scanner.confidence["content-2"] = 0.99

		res, err := s.service.Submit(s.ctx, report("content-2", "reporter-7"))
		s.Require().NoError(err)
		s.Equal(models.StatusPending, res.Status)
		s.Contains(res.FailureReason, "content removal failed")
		s.Equal(1, s.ownerCount("owner-1"))
	})
}

func (s *ReportServiceSuite) TestMissingContentIsDismissed() {
	res, err := s.service.Submit(s.ctx, report("content-gone", "reporter-1"))
	s.Require().NoError(err)

	s.Equal(models.StatusDismissed, res.Status)
	s.Equal("content not found", res.ResolutionNote)
	s.Zero(s.scanner.calls.Load())
}

func (s *ReportServiceSuite) TestDefaultDecisionWithoutHumanReview() {
	p := DefaultPolicy()
	p.HumanReviewEnabled = false
	p.DefaultDecision = models.ActionWarnUser
	svc := s.newService(p)
	s.scanner.confidence["content-1"] = 0.4

	res, err := svc.Submit(s.ctx, report("content-1", "reporter-1"))
	s.Require().NoError(err)

	s.Equal(models.StatusResolved, res.Status)
	s.True(res.Actions.UserWarned)
	s.Equal(1, s.ownerCount("owner-1"))
	s.Len(s.sink.OfKind(notify.KindUserWarned), 1)
}

func (s *ReportServiceSuite) TestDecide() {
	s.scanner.confidence["content-1"] = 0.6
	pending, err := s.service.Submit(s.ctx, report("content-1", "reporter-1"))
	s.Require().NoError(err)
	s.Require().Equal(models.StatusUnderReview, pending.Status)

	s.Run("dismiss does not count", func() {
		s.scanner.confidence["content-2"] = 0.6
		other, err := s.service.Submit(s.ctx, report("content-2", "reporter-1"))
		s.Require().NoError(err)

		out, err := s.service.Decide(s.ctx, other.ID, "reviewer-1", &models.DecisionRequest{Action: " Dismiss "})
		s.Require().NoError(err)
		s.Equal(models.StatusDismissed, out.Status)
		s.Zero(s.ownerCount("owner-1"))
	})

	s.Run("remove content resolves and counts", func() {
		out, err := s.service.Decide(s.ctx, pending.ID, "reviewer-1", &models.DecisionRequest{Action: models.ActionRemoveContent, Note: "confirmed"})
		s.Require().NoError(err)
		s.Equal(models.StatusResolved, out.Status)
		s.True(out.Actions.ContentRemoved)
		s.Equal("confirmed", out.ResolutionNote)
		s.Equal(1, s.ownerCount("owner-1"))

		entries, err := actionlog.NewRecorder(s.actions).ListByRequest(s.ctx, pending.ID.String())
		s.Require().NoError(err)
		var manual []actionlog.Entry
		for _, e := range entries {
			if e.Action == actionlog.ActionContentRemoved {
				manual = append(manual, e)
			}
		}
		s.Require().Len(manual, 1)
		s.False(manual[0].Automated)
		s.Equal("reviewer-1", manual[0].Actor)
	})

	s.Run("resolved reports cannot be decided again", func() {
		_, err := s.service.Decide(s.ctx, pending.ID, "reviewer-2", &models.DecisionRequest{Action: models.ActionWarnUser})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown action is a validation error", func() {
		_, err := s.service.Decide(s.ctx, pending.ID, "reviewer-2", &models.DecisionRequest{Action: "shadowban"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal([]string{"action"}, dErrors.FieldNames(err))
	})

	s.Run("unknown report", func() {
		_, err := s.service.Decide(s.ctx, id.NewReportID(), "reviewer-2", &models.DecisionRequest{Action: models.ActionDismiss})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ReportServiceSuite) TestSubmitValidation() {
	_, err := s.service.Submit(s.ctx, &models.SubmitRequest{Category: "spam", Severity: "extreme"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.ElementsMatch([]string{"reporter_id", "content_id", "reason", "description", "category", "severity"}, dErrors.FieldNames(err))
}
