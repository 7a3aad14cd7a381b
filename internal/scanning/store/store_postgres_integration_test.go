//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"guardian/internal/content"
	"guardian/internal/scanning/hashes"
	"guardian/internal/scanning/models"
	"guardian/internal/scanning/store"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
	"guardian/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "scan_results", "content_hashes"))
}

func (s *PostgresStoreSuite) TestSaveAndFind() {
	ctx := context.Background()
	r := &models.ScanResult{
		ID:          id.NewScanID(),
		ContentID:   "pg-content",
		ContentType: content.TypeImage,
		Violations: []models.Violation{{
			Type: models.ViolationChildExploitation, Severity: models.SeverityCritical,
			Confidence: 0.99, Evidence: []string{"hash:ncmec-7"}, Source: models.SourceHashMatch,
		}},
		Confidence:          0.99,
		RequiresHumanReview: true,
		Action:              models.ActionReject,
		ScannedAt:           time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.Save(ctx, r))

	got, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.Violations, got.Violations)
	s.Equal(models.ActionReject, got.Action)
	s.True(got.ScannedAt.Equal(r.ScannedAt))

	counts, err := s.store.CountByAction(ctx)
	s.Require().NoError(err)
	s.Equal(1, counts[models.ActionReject])

	_, err = s.store.FindByID(ctx, id.NewScanID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestHashRegistriesAreSeparate() {
	ctx := context.Background()
	illegal := hashes.NewPostgresRegistry(s.postgres.DB, hashes.Illegal)
	works := hashes.NewPostgresRegistry(s.postgres.DB, hashes.Copyright)
	hash := content.Fingerprint([]byte("payload"))

	s.Require().NoError(works.Add(ctx, hashes.Entry{Hash: hash, Reference: "work-1"}))

	e, err := works.Lookup(ctx, hash)
	s.Require().NoError(err)
	s.Equal(models.ViolationCopyright, e.Category)
	s.Equal("work-1", e.Reference)

	_, err = illegal.Lookup(ctx, hash)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
