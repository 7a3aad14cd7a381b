package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"guardian/internal/content"
	"guardian/internal/scanning/models"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
)

// PostgresStore persists scan results; violations are stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, r *models.ScanResult) error {
	violations, err := json.Marshal(r.Violations)
	if err != nil {
		return fmt.Errorf("marshal violations: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scan_results (id, content_id, content_type, violations, confidence,
			requires_human_review, action, failure, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(r.ID), r.ContentID, string(r.ContentType), violations, r.Confidence,
		r.RequiresHumanReview, string(r.Action), r.Failure, r.ScannedAt)
	if err != nil {
		return fmt.Errorf("insert scan result: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, scanID id.ScanID) (*models.ScanResult, error) {
	var (
		r                   models.ScanResult
		rawID               uuid.UUID
		contentType, action string
		violations          []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, content_id, content_type, violations, confidence,
			requires_human_review, action, failure, scanned_at
		FROM scan_results WHERE id = $1
	`, uuid.UUID(scanID)).Scan(&rawID, &r.ContentID, &contentType, &violations, &r.Confidence,
		&r.RequiresHumanReview, &action, &r.Failure, &r.ScannedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find scan result: %w", err)
	}
	r.ID = id.ScanID(rawID)
	r.ContentType = content.Type(contentType)
	r.Action = models.Action(action)
	if err := json.Unmarshal(violations, &r.Violations); err != nil {
		return nil, fmt.Errorf("unmarshal violations: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) CountByAction(ctx context.Context) (map[models.Action]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT action, COUNT(*) FROM scan_results GROUP BY action`)
	if err != nil {
		return nil, fmt.Errorf("count scan results: %w", err)
	}
	defer rows.Close()
	out := map[models.Action]int{}
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("scan action count: %w", err)
		}
		out[models.Action(action)] = n
	}
	return out, rows.Err()
}
