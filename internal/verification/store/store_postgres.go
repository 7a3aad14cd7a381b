package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"guardian/internal/verification/models"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
)

// PostgresStore persists verification requests. Fields, data, and result
// are stored as JSONB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const requestColumns = `id, subject_id, method, status, priority, fields, data, result, attempts,
	failure_reason, reviewer_id, submitted_at, processing_started_at, resolved_at, expires_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.Request) error {
	fields, data, result, err := marshalJSONColumns(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verification_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, uuid.UUID(r.ID), string(r.SubjectID), string(r.Method), string(r.Status), string(r.Priority),
		fields, data, result, r.Attempts, r.FailureReason, r.ReviewerID,
		r.SubmittedAt, r.ProcessingStartedAt, r.ResolvedAt, r.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert verification request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, reqID id.VerificationID) (*models.Request, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM verification_requests WHERE id = $1
	`, uuid.UUID(reqID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification request: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindActiveApproval(ctx context.Context, subject id.SubjectID, now time.Time) (*models.Request, error) {
	r, err := scanRequest(s.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM verification_requests
		WHERE subject_id = $1 AND status = 'approved' AND expires_at > $2
		ORDER BY expires_at DESC
		LIMIT 1
	`, string(subject), now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active approval: %w", err)
	}
	return r, nil
}

// Update writes r only while the stored status equals expected. A new
// approval takes a per-subject advisory lock and fails with ErrConflict
// while another unexpired approval exists, so concurrent instances cannot
// both approve one subject.
func (s *PostgresStore) Update(ctx context.Context, r *models.Request, expected models.Status) error {
	fields, data, result, err := marshalJSONColumns(r)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin verification tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if at, approving := r.Approving(expected); approving {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(r.SubjectID)); err != nil {
			return fmt.Errorf("lock verification subject: %w", err)
		}
		var active bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM verification_requests
				WHERE subject_id = $1 AND id <> $2 AND status = 'approved' AND expires_at > $3
			)
		`, string(r.SubjectID), uuid.UUID(r.ID), at).Scan(&active); err != nil {
			return fmt.Errorf("check active approval: %w", err)
		}
		if active {
			return sentinel.ErrConflict
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE verification_requests
		SET status = $3, priority = $4, fields = $5, data = $6, result = $7, attempts = $8,
			failure_reason = $9, reviewer_id = $10, processing_started_at = $11, resolved_at = $12, expires_at = $13
		WHERE id = $1 AND status = $2
	`, uuid.UUID(r.ID), string(expected), string(r.Status), string(r.Priority), fields, data, result,
		r.Attempts, r.FailureReason, r.ReviewerID, r.ProcessingStartedAt, r.ResolvedAt, r.ExpiresAt)
	if err != nil {
		return fmt.Errorf("update verification request: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("verification rows affected: %w", err)
	}
	if rows == 0 {
		return s.missOrConflict(ctx, r.ID)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit verification update: %w", err)
	}
	return nil
}

func (s *PostgresStore) missOrConflict(ctx context.Context, reqID id.VerificationID) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM verification_requests WHERE id = $1)`, uuid.UUID(reqID)).Scan(&exists); err != nil {
		return fmt.Errorf("check verification request: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) ListStale(ctx context.Context, status models.Status, cutoff time.Time, limit int) ([]*models.Request, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM verification_requests
		WHERE status = $1 AND COALESCE(processing_started_at, submitted_at) < $2
		ORDER BY COALESCE(processing_started_at, submitted_at)
		LIMIT $3
	`, string(status), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale verification requests: %w", err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM verification_requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count verification requests: %w", err)
	}
	defer rows.Close()
	out := map[models.Status]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan verification count: %w", err)
		}
		out[models.Status(status)] = n
	}
	return out, rows.Err()
}

func marshalJSONColumns(r *models.Request) (fields, data, result []byte, err error) {
	if fields, err = json.Marshal(r.Fields); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal fields: %w", err)
	}
	if data, err = json.Marshal(r.Data); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal data: %w", err)
	}
	if r.Result != nil {
		if result, err = json.Marshal(r.Result); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal result: %w", err)
		}
	}
	return fields, data, result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var (
		r                                   models.Request
		reqID                               uuid.UUID
		subject, method, status, priority   string
		fields, data, result                []byte
		processingStarted, resolved, expiry sql.NullTime
	)
	if err := row.Scan(&reqID, &subject, &method, &status, &priority, &fields, &data, &result,
		&r.Attempts, &r.FailureReason, &r.ReviewerID, &r.SubmittedAt,
		&processingStarted, &resolved, &expiry); err != nil {
		return nil, err
	}
	r.ID = id.VerificationID(reqID)
	r.SubjectID = id.SubjectID(subject)
	r.Method = models.Method(method)
	r.Status = models.Status(status)
	r.Priority = models.Priority(priority)
	if err := json.Unmarshal(fields, &r.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	if err := json.Unmarshal(data, &r.Data); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	if len(result) > 0 {
		r.Result = &models.Result{}
		if err := json.Unmarshal(result, r.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	r.ProcessingStartedAt = nullTime(processingStarted)
	r.ResolvedAt = nullTime(resolved)
	r.ExpiresAt = nullTime(expiry)
	return &r, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// PostgresBlocklist persists blocked subjects.
type PostgresBlocklist struct {
	db *sql.DB
}

func NewPostgresBlocklist(db *sql.DB) *PostgresBlocklist {
	return &PostgresBlocklist{db: db}
}

func (b *PostgresBlocklist) Block(ctx context.Context, subject id.SubjectID, reason string, at time.Time) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO blocked_subjects (subject_id, reason, blocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (subject_id) DO UPDATE SET reason = EXCLUDED.reason
	`, string(subject), reason, at)
	if err != nil {
		return fmt.Errorf("block subject: %w", err)
	}
	return nil
}

func (b *PostgresBlocklist) Unblock(ctx context.Context, subject id.SubjectID) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM blocked_subjects WHERE subject_id = $1`, string(subject))
	if err != nil {
		return fmt.Errorf("unblock subject: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (b *PostgresBlocklist) IsBlocked(ctx context.Context, subject id.SubjectID) (bool, error) {
	var blocked bool
	err := b.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM blocked_subjects WHERE subject_id = $1)`, string(subject)).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("check blocked subject: %w", err)
	}
	return blocked, nil
}
