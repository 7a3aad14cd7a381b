// Package stats aggregates the per-component counts shown on the
// moderation dashboard.
package stats

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	ledgermodels "guardian/internal/ledger/models"
	reportmodels "guardian/internal/reports/models"
	scanmodels "guardian/internal/scanning/models"
	takedownmodels "guardian/internal/takedown/models"
	verificationmodels "guardian/internal/verification/models"
	dErrors "guardian/pkg/domain-errors"
	"guardian/pkg/platform/middleware/requesttime"
)

type VerificationSource interface {
	StatusCounts(ctx context.Context) (map[verificationmodels.Status]int, error)
}

type ScanSource interface {
	ActionCounts(ctx context.Context) (map[scanmodels.Action]int, error)
}

type ReportSource interface {
	Stats(ctx context.Context) (*reportmodels.Stats, error)
}

type TakedownSource interface {
	Stats(ctx context.Context) (*takedownmodels.Stats, error)
}

type LedgerSource interface {
	StatusCounts(ctx context.Context) (map[ledgermodels.Status]int, error)
}

type VerificationStats struct {
	Total    int                               `json:"total"`
	ByStatus map[verificationmodels.Status]int `json:"by_status"`
}

type ScanStats struct {
	Total    int                       `json:"total"`
	ByAction map[scanmodels.Action]int `json:"by_action"`
}

type ReportStats struct {
	Total                int                              `json:"total"`
	ByStatus             map[reportmodels.Status]int      `json:"by_status"`
	ByCategory           map[scanmodels.ViolationType]int `json:"by_category"`
	BySeverity           map[scanmodels.Severity]int      `json:"by_severity"`
	Resolved             int                              `json:"resolved"`
	AvgResolutionSeconds float64                          `json:"avg_resolution_seconds"`
}

type TakedownStats struct {
	Total                int                                  `json:"total"`
	ByStatus             map[takedownmodels.Status]int        `json:"by_status"`
	CounterNotices       map[takedownmodels.CounterStatus]int `json:"counter_notices"`
	Resolved             int                                  `json:"resolved"`
	AvgResolutionSeconds float64                              `json:"avg_resolution_seconds"`
}

type OffenderStats struct {
	Total    int                         `json:"total"`
	ByStatus map[ledgermodels.Status]int `json:"by_status"`
}

// Dashboard is the body of GET /v1/stats.
type Dashboard struct {
	GeneratedAt   time.Time         `json:"generated_at"`
	Verifications VerificationStats `json:"verifications"`
	Scans         ScanStats         `json:"scans"`
	Reports       ReportStats       `json:"reports"`
	Takedowns     TakedownStats     `json:"takedowns"`
	Offenders     OffenderStats     `json:"offenders"`
}

// Service reads every component concurrently; any failing source fails
// the whole dashboard.
type Service struct {
	verifications VerificationSource
	scans         ScanSource
	reports       ReportSource
	takedowns     TakedownSource
	ledger        LedgerSource
	logger        *slog.Logger
}

func New(verifications VerificationSource, scans ScanSource, reports ReportSource, takedowns TakedownSource, ledger LedgerSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		verifications: verifications,
		scans:         scans,
		reports:       reports,
		takedowns:     takedowns,
		ledger:        ledger,
		logger:        logger,
	}
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	out := &Dashboard{GeneratedAt: requesttime.Now(ctx)}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.verifications.StatusCounts(gctx)
		if err != nil {
			return err
		}
		out.Verifications = VerificationStats{Total: sum(counts), ByStatus: counts}
		return nil
	})
	g.Go(func() error {
		counts, err := s.scans.ActionCounts(gctx)
		if err != nil {
			return err
		}
		out.Scans = ScanStats{Total: sum(counts), ByAction: counts}
		return nil
	})
	g.Go(func() error {
		st, err := s.reports.Stats(gctx)
		if err != nil {
			return err
		}
		out.Reports = ReportStats{
			Total:                sum(st.ByStatus),
			ByStatus:             st.ByStatus,
			ByCategory:           st.ByCategory,
			BySeverity:           st.BySeverity,
			Resolved:             st.Resolved,
			AvgResolutionSeconds: seconds(st.AvgResolution),
		}
		return nil
	})
	g.Go(func() error {
		st, err := s.takedowns.Stats(gctx)
		if err != nil {
			return err
		}
		out.Takedowns = TakedownStats{
			Total:                sum(st.ByStatus),
			ByStatus:             st.ByStatus,
			CounterNotices:       st.CounterNotices,
			Resolved:             st.Resolved,
			AvgResolutionSeconds: seconds(st.AvgResolution),
		}
		return nil
	})
	g.Go(func() error {
		counts, err := s.ledger.StatusCounts(gctx)
		if err != nil {
			return err
		}
		out.Offenders = OffenderStats{Total: sum(counts), ByStatus: counts}
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "dashboard aggregation failed", "error", err)
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate statistics")
	}
	return out, nil
}

func sum[K comparable](m map[K]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// seconds rounds to milliseconds.
func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
