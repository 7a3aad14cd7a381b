package stats

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgermodels "guardian/internal/ledger/models"
	reportmodels "guardian/internal/reports/models"
	scanmodels "guardian/internal/scanning/models"
	takedownmodels "guardian/internal/takedown/models"
	verificationmodels "guardian/internal/verification/models"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/middleware/requesttime"
)

type verifications struct{}

func (verifications) StatusCounts(context.Context) (map[verificationmodels.Status]int, error) {
	return map[verificationmodels.Status]int{verificationmodels.StatusApproved: 3, verificationmodels.StatusPending: 1}, nil
}

type scans struct{ err error }

func (s scans) ActionCounts(context.Context) (map[scanmodels.Action]int, error) {
	if s.err != nil {
		return nil, s.err
	}
	return map[scanmodels.Action]int{scanmodels.ActionApprove: 10, scanmodels.ActionQuarantine: 2}, nil
}

type reports struct{}

func (reports) Stats(context.Context) (*reportmodels.Stats, error) {
	return &reportmodels.Stats{
		ByStatus:      map[reportmodels.Status]int{reportmodels.StatusResolved: 2, reportmodels.StatusUnderReview: 1},
		ByCategory:    map[scanmodels.ViolationType]int{scanmodels.ViolationHateSpeech: 3},
		BySeverity:    map[scanmodels.Severity]int{scanmodels.SeverityMedium: 3},
		Resolved:      2,
		AvgResolution: 90*time.Second + 2*time.Millisecond,
	}, nil
}

type takedowns struct{}

func (takedowns) Stats(context.Context) (*takedownmodels.Stats, error) {
	return &takedownmodels.Stats{
		ByStatus:       map[takedownmodels.Status]int{takedownmodels.StatusResolved: 1},
		CounterNotices: map[takedownmodels.CounterStatus]int{takedownmodels.CounterRestorationScheduled: 1},
		Resolved:       1,
		AvgResolution:  2 * time.Hour,
	}, nil
}

type offenders struct{}

func (offenders) StatusCounts(context.Context) (map[ledgermodels.Status]int, error) {
	return map[ledgermodels.Status]int{ledgermodels.StatusActive: 4, ledgermodels.StatusSuspended: 1}, nil
}

func newService(scanErr error) *Service {
	return New(verifications{}, scans{err: scanErr}, reports{}, takedowns{}, offenders{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDashboard(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	ctx := requesttime.WithTime(context.Background(), now)

	t.Run("aggregates every component", func(t *testing.T) {
		d, err := newService(nil).Dashboard(ctx)
		require.NoError(t, err)

		assert.Equal(t, now, d.GeneratedAt)
		assert.Equal(t, 4, d.Verifications.Total)
		assert.Equal(t, 12, d.Scans.Total)
		assert.Equal(t, 2, d.Scans.ByAction[scanmodels.ActionQuarantine])
		assert.Equal(t, 3, d.Reports.Total)
		assert.Equal(t, 90.002, d.Reports.AvgResolutionSeconds)
		assert.Equal(t, 7200.0, d.Takedowns.AvgResolutionSeconds)
		assert.Equal(t, 1, d.Takedowns.CounterNotices[takedownmodels.CounterRestorationScheduled])
		assert.Equal(t, 5, d.Offenders.Total)
	})

	t.Run("a failing source fails the dashboard", func(t *testing.T) {
		_, err := newService(errors.New("scan store unavailable")).Dashboard(ctx)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func TestHandleDashboard(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(newService(nil), slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	reportsBody := body["reports"].(map[string]any)
	assert.Equal(t, float64(3), reportsBody["total"])
	assert.Equal(t, float64(1), reportsBody["by_status"].(map[string]any)["under_review"])
	assert.Equal(t, float64(1), body["offenders"].(map[string]any)["by_status"].(map[string]any)["suspended"])
}
