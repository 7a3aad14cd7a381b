package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"guardian/internal/reports/models"
	scanmodels "guardian/internal/scanning/models"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
)

// PostgresStore persists reports; evidence and actions are JSONB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const reportColumns = `id, reporter_id, anonymous, content_id, content_owner_id, category, severity, priority,
	reason, description, evidence, status, actions, automated_confidence, failure_reason, reviewer_id,
	resolution_note, submitted_at, resolved_at`

// priorityRank mirrors models.Priority.Rank for ORDER BY.
const priorityRank = `CASE priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END`

func (s *PostgresStore) Create(ctx context.Context, r *models.Report) error {
	evidence, actions, err := marshalJSONColumns(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, uuid.UUID(r.ID), r.ReporterID, r.Anonymous, r.ContentID, r.ContentOwnerID, string(r.Category),
		string(r.Severity), string(r.Priority), r.Reason, r.Description, evidence, string(r.Status), actions,
		r.AutomatedConfidence, r.FailureReason, r.ReviewerID, r.ResolutionNote, r.SubmittedAt, r.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	r, err := scanReport(s.db.QueryRowContext(ctx, `
		SELECT `+reportColumns+` FROM reports WHERE id = $1
	`, uuid.UUID(reportID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	return r, nil
}

// Update writes r only while the stored status equals expected.
func (s *PostgresStore) Update(ctx context.Context, r *models.Report, expected models.Status) error {
	evidence, actions, err := marshalJSONColumns(r)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE reports
		SET content_owner_id = $3, status = $4, actions = $5, automated_confidence = $6, failure_reason = $7,
			reviewer_id = $8, resolution_note = $9, resolved_at = $10, evidence = $11
		WHERE id = $1 AND status = $2
	`, uuid.UUID(r.ID), string(expected), r.ContentOwnerID, string(r.Status), actions, r.AutomatedConfidence,
		r.FailureReason, r.ReviewerID, r.ResolutionNote, r.ResolvedAt, evidence)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("report rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1)`, uuid.UUID(r.ID)).Scan(&exists); err != nil {
			return fmt.Errorf("check report: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, statuses []models.Status, limit int) ([]*models.Report, error) {
	if limit <= 0 {
		limit = 100
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	return s.list(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE status = ANY($1)
		ORDER BY `+priorityRank+` DESC, submitted_at
		LIMIT $2
	`, names, limit)
}

func (s *PostgresStore) ListStale(ctx context.Context, status models.Status, cutoff time.Time, limit int) ([]*models.Report, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.list(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE status = $1 AND submitted_at < $2
		ORDER BY submitted_at
		LIMIT $3
	`, string(status), cutoff, limit)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Report, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []*models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{
		ByStatus:   map[models.Status]int{},
		ByCategory: map[scanmodels.ViolationType]int{},
		BySeverity: map[scanmodels.Severity]int{},
	}
	rows, err := s.db.QueryContext(ctx, `SELECT status, category, severity, COUNT(*) FROM reports GROUP BY status, category, severity`)
	if err != nil {
		return nil, fmt.Errorf("count reports: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status, category, severity string
		var n int
		if err := rows.Scan(&status, &category, &severity, &n); err != nil {
			return nil, fmt.Errorf("scan report counts: %w", err)
		}
		stats.ByStatus[models.Status(status)] += n
		stats.ByCategory[scanmodels.ViolationType(category)] += n
		stats.BySeverity[scanmodels.Severity(severity)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var avgSeconds sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(EXTRACT(EPOCH FROM (resolved_at - submitted_at)))
		FROM reports WHERE resolved_at IS NOT NULL
	`).Scan(&stats.Resolved, &avgSeconds); err != nil {
		return nil, fmt.Errorf("average report resolution: %w", err)
	}
	if avgSeconds.Valid {
		stats.AvgResolution = time.Duration(avgSeconds.Float64 * float64(time.Second))
	}
	return stats, nil
}

func marshalJSONColumns(r *models.Report) (evidence, actions []byte, err error) {
	ev := r.Evidence
	if ev == nil {
		ev = []string{}
	}
	if evidence, err = json.Marshal(ev); err != nil {
		return nil, nil, fmt.Errorf("marshal evidence: %w", err)
	}
	if actions, err = json.Marshal(r.Actions); err != nil {
		return nil, nil, fmt.Errorf("marshal actions: %w", err)
	}
	return evidence, actions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r                                   models.Report
		reportID                            uuid.UUID
		category, severity, priority, state string
		evidence, actions                   []byte
		resolved                            sql.NullTime
	)
	if err := row.Scan(&reportID, &r.ReporterID, &r.Anonymous, &r.ContentID, &r.ContentOwnerID,
		&category, &severity, &priority, &r.Reason, &r.Description, &evidence, &state, &actions,
		&r.AutomatedConfidence, &r.FailureReason, &r.ReviewerID, &r.ResolutionNote, &r.SubmittedAt, &resolved); err != nil {
		return nil, err
	}
	r.ID = id.ReportID(reportID)
	r.Category = scanmodels.ViolationType(category)
	r.Severity = scanmodels.Severity(severity)
	r.Priority = models.Priority(priority)
	r.Status = models.Status(state)
	if err := json.Unmarshal(evidence, &r.Evidence); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	if err := json.Unmarshal(actions, &r.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	if resolved.Valid {
		t := resolved.Time
		r.ResolvedAt = &t
	}
	return &r, nil
}
