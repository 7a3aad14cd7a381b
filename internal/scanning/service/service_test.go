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
	"guardian/internal/scanning/classifier"
	"guardian/internal/scanning/hashes"
	"guardian/internal/scanning/models"
	"guardian/internal/scanning/store"
	id "guardian/pkg/domain"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/circuit"
	"guardian/pkg/platform/middleware/requesttime"
)

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type ScanningServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemoryStore
	illegal *hashes.InMemoryRegistry
	actions *actionlog.InMemoryStore
}

func TestScanningServiceSuite(t *testing.T) {
	suite.Run(t, new(ScanningServiceSuite))
}

func (s *ScanningServiceSuite) SetupTest() {
	s.ctx = requesttime.WithTime(context.Background(), testNow)
	s.store = store.NewInMemoryStore()
	s.illegal = hashes.NewInMemoryRegistry(hashes.Illegal)
	s.actions = actionlog.NewInMemoryStore()
}

func (s *ScanningServiceSuite) newService(c classifier.Classifier, opts ...Option) *Service {
	base := []Option{
		WithHashRegistry(s.illegal),
		WithActionLog(actionlog.NewRecorder(s.actions)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTimeout(200 * time.Millisecond),
	}
	return New(s.store, c, append(base, opts...)...)
}

func scores(list ...classifier.Score) classifier.Fixed {
	return classifier.Fixed{Scores: list}
}

func textRequest(body string) *models.ScanRequest {
	return &models.ScanRequest{ContentID: "content-1", Type: content.TypeText, Payload: []byte(body)}
}

func (s *ScanningServiceSuite) TestDecisionPriority() {
	cases := []struct {
		name   string
		scores []classifier.Score
		action models.Action
		review bool
	}{
		{"clean content is approved", nil, models.ActionApprove, false},
		{"scores below 0.5 are ignored", []classifier.Score{{Type: models.ViolationViolence, Confidence: 0.49}}, models.ActionApprove, false},
		{"low severity flags", []classifier.Score{{Type: models.ViolationViolence, Confidence: 0.6}}, models.ActionFlag, false},
		{"medium severity flags", []classifier.Score{{Type: models.ViolationHateSpeech, Confidence: 0.75}}, models.ActionFlag, false},
		{"aggregate above 0.8 quarantines", []classifier.Score{{Type: models.ViolationHateSpeech, Confidence: 0.85}}, models.ActionQuarantine, false},
		{"high severity quarantines for review", []classifier.Score{{Type: models.ViolationViolence, Confidence: 0.95}}, models.ActionQuarantine, true},
		{"child exploitation is critical and rejected", []classifier.Score{{Type: models.ViolationChildExploitation, Confidence: 0.55}}, models.ActionReject, true},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			res, err := s.newService(scores(tc.scores...)).Scan(s.ctx, textRequest("hello"))
			s.Require().NoError(err)
			s.Equal(tc.action, res.Action)
			s.Equal(tc.review, res.RequiresHumanReview)
			s.Empty(res.Failure)
		})
	}
}

func (s *ScanningServiceSuite) TestHashMatchRejects() {
	payload := []byte("known illegal bytes")
	s.Require().NoError(s.illegal.Add(s.ctx, hashes.Entry{Hash: content.Fingerprint(payload), Reference: "case-42"}))

	res, err := s.newService(scores()).Scan(s.ctx, &models.ScanRequest{
		ContentID: "content-9", Type: content.TypeImage, Payload: payload,
	})
	s.Require().NoError(err)

	s.Equal(models.ActionReject, res.Action)
	s.True(res.RequiresHumanReview)
	s.Require().Len(res.Violations, 1)
	v := res.Violations[0]
	s.Equal(models.ViolationChildExploitation, v.Type)
	s.Equal(models.SeverityCritical, v.Severity)
	s.Equal(models.SourceHashMatch, v.Source)
	s.InDelta(0.99, v.Confidence, 1e-9)
	s.Contains(v.Evidence, "reference:case-42")
	s.InDelta(0.99, res.Confidence, 1e-9)
}

func (s *ScanningServiceSuite) TestMetadataAnalysis() {
	s.Run("declared minor is critical", func() {
		age := 16
		req := textRequest("hello")
		req.Metadata = content.Metadata{DeclaredAge: &age}

		res, err := s.newService(scores()).Scan(s.ctx, req)
		s.Require().NoError(err)
		s.Equal(models.ActionReject, res.Action)
		s.Require().Len(res.Violations, 1)
		s.Equal(models.SeverityCritical, res.Violations[0].Severity)
		s.Equal(models.SourceMetadata, res.Violations[0].Source)
		s.InDelta(0.90, res.Violations[0].Confidence, 1e-9)
	})

	s.Run("minor keyword tag is high", func() {
		req := textRequest("hello")
		req.Metadata = content.Metadata{Tags: []string{"Beach", "TEEN"}}

		res, err := s.newService(scores()).Scan(s.ctx, req)
		s.Require().NoError(err)
		s.Equal(models.ActionQuarantine, res.Action)
		s.True(res.RequiresHumanReview)
		s.Require().Len(res.Violations, 1)
		s.Equal(models.ViolationChildExploitation, res.Violations[0].Type)
		s.Equal(models.SeverityHigh, res.Violations[0].Severity)
		s.Equal([]string{"tag:teen"}, res.Violations[0].Evidence)
	})

	s.Run("ordinary tags that contain a minor keyword pass", func() {
		req := textRequest("hello")
		req.Metadata = content.Metadata{Tags: []string{"canteen", "nineteen", "minority", "Preteenish"}}

		res, err := s.newService(scores()).Scan(s.ctx, req)
		s.Require().NoError(err)
		s.Equal(models.ActionApprove, res.Action)
		s.Empty(res.Violations)
	})

	s.Run("adult declared age passes", func() {
		age := 30
		req := textRequest("hello")
		req.Metadata = content.Metadata{DeclaredAge: &age}

		res, err := s.newService(scores()).Scan(s.ctx, req)
		s.Require().NoError(err)
		s.Equal(models.ActionApprove, res.Action)
	})
}

func (s *ScanningServiceSuite) TestFailClosed() {
	failing := map[string]classifier.Classifier{
		"error": classifier.Func(func(context.Context, classifier.Input) ([]classifier.Score, error) {
			return nil, errors.New("model unavailable")
		}),
		"panic": classifier.Func(func(context.Context, classifier.Input) ([]classifier.Score, error) {
			panic("nil tensor")
		}),
		"timeout": classifier.Func(func(context.Context, classifier.Input) ([]classifier.Score, error) {
			time.Sleep(time.Second)
			return nil, nil
		}),
	}
	for name, c := range failing {
		s.Run(name, func() {
			res, err := s.newService(c, WithTimeout(50*time.Millisecond)).Scan(s.ctx, textRequest("hello"))
			s.Require().NoError(err)

			s.Equal(models.ActionQuarantine, res.Action)
			s.True(res.RequiresHumanReview)
			s.True(res.Failed())
			s.Require().NotEmpty(res.Violations)
			last := res.Violations[len(res.Violations)-1]
			s.Equal(models.ViolationOther, last.Type)
			s.Equal(models.SeverityHigh, last.Severity)
			s.Equal(models.SourcePipeline, last.Source)
		})
	}

	s.Run("open circuit", func() {
		breaker := circuit.New("classifier", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))
		breaker.RecordFailure()
		guarded := classifier.NewGuarded(scores(), breaker)

		res, err := s.newService(guarded).Scan(s.ctx, textRequest("hello"))
		s.Require().NoError(err)
		s.Equal(models.ActionQuarantine, res.Action)
		s.Contains(res.Failure, "circuit open")
	})

	s.Run("failure keeps what other analyses found", func() {
		payload := []byte("match me")
		s.Require().NoError(s.illegal.Add(s.ctx, hashes.Entry{Hash: content.Fingerprint(payload)}))
		broken := classifier.Func(func(context.Context, classifier.Input) ([]classifier.Score, error) {
			return nil, errors.New("down")
		})

		res, err := s.newService(broken).Scan(s.ctx, &models.ScanRequest{
			ContentID: "c", Type: content.TypeImage, Payload: payload,
		})
		s.Require().NoError(err)
		s.Equal(models.ActionQuarantine, res.Action)
		s.Len(res.Violations, 2)
		s.Equal(models.SourceHashMatch, res.Violations[0].Source)
	})
}

func (s *ScanningServiceSuite) TestKeywordClassifierEndToEnd() {
	res, err := s.newService(classifier.NewKeyword(nil)).Scan(s.ctx, textRequest("i will shoot up the place, bomb threat"))
	s.Require().NoError(err)
	s.Equal(models.ActionFlag, res.Action)
	s.Require().Len(res.Violations, 1)
	s.Equal(models.ViolationViolence, res.Violations[0].Type)
	s.Equal(models.SeverityMedium, res.Violations[0].Severity)
}

func (s *ScanningServiceSuite) TestValidation() {
	_, err := s.newService(scores()).Scan(s.ctx, &models.ScanRequest{Type: "audio"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.ElementsMatch([]string{"content_id", "content_type", "payload"}, dErrors.FieldNames(err))
}

func (s *ScanningServiceSuite) TestResultsArePersisted() {
	svc := s.newService(scores(classifier.Score{Type: models.ViolationViolence, Confidence: 0.6}))
	res, err := svc.Scan(s.ctx, textRequest("hello"))
	s.Require().NoError(err)
	s.Equal(testNow, res.ScannedAt)

	got, err := svc.Get(s.ctx, res.ID)
	s.Require().NoError(err)
	s.Equal(res, got)

	_, err = svc.Get(s.ctx, id.NewScanID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	entries := s.actions.All()
	s.Require().Len(entries, 1)
	s.Equal(actionlog.ComponentScanning, entries[0].Component)
	s.Equal("scan_flag", entries[0].Action)
	s.True(entries[0].Automated)
}

func (s *ScanningServiceSuite) TestScanItem() {
	svc := s.newService(scores(classifier.Score{Type: models.ViolationHateSpeech, Confidence: 0.95}))
	res, err := svc.ScanItem(s.ctx, &content.Item{ID: "item-1", OwnerID: "owner", Type: content.TypeVideo})
	s.Require().NoError(err)
	s.Equal("item-1", res.ContentID)
	s.Equal(models.ActionQuarantine, res.Action)
}
