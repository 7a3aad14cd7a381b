package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"guardian/internal/takedown/models"
	id "guardian/pkg/domain"
	"guardian/pkg/platform/sentinel"
)

// PostgresStore persists takedowns, counter-notices, and scheduled
// restorations. Linked writes share a transaction.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const takedownColumns = `id, reporter, copyright_owner, work_title, work_description, content_id, content_owner_id,
	evidence, attestations, signature, status, resolution_reason, failure_reason, content_id_match,
	match_reference, reviewer_id, submitted_at, resolved_at`

const noticeColumns = `id, original_request_id, respondent, statement, attestations, signature, status,
	restore_at, restored_at, submitted_at`

const restorationColumns = `id, takedown_id, counter_notice_id, content_id, due_at, status, executed_at, note`

func (s *PostgresStore) Create(ctx context.Context, t *models.Takedown) error {
	reporter, evidence, attestations, err := marshalTakedown(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO takedowns (`+takedownColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, uuid.UUID(t.ID), reporter, t.CopyrightOwner, t.WorkTitle, t.WorkDescription, t.ContentID, t.ContentOwnerID,
		evidence, attestations, t.Signature, string(t.Status), t.ResolutionReason, t.FailureReason, t.ContentIDMatch,
		t.MatchReference, t.ReviewerID, t.SubmittedAt, t.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert takedown: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, takedownID id.TakedownID) (*models.Takedown, error) {
	t, err := scanTakedown(s.db.QueryRowContext(ctx, `
		SELECT `+takedownColumns+` FROM takedowns WHERE id = $1
	`, uuid.UUID(takedownID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find takedown: %w", err)
	}
	return t, nil
}

// Update writes t only while the stored status equals expected.
func (s *PostgresStore) Update(ctx context.Context, t *models.Takedown, expected models.Status) error {
	_, evidence, _, err := marshalTakedown(t)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE takedowns
		SET content_owner_id = $3, evidence = $4, status = $5, resolution_reason = $6, failure_reason = $7,
			content_id_match = $8, match_reference = $9, reviewer_id = $10, resolved_at = $11
		WHERE id = $1 AND status = $2
	`, uuid.UUID(t.ID), string(expected), t.ContentOwnerID, evidence, string(t.Status), t.ResolutionReason,
		t.FailureReason, t.ContentIDMatch, t.MatchReference, t.ReviewerID, t.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update takedown: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("takedown rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM takedowns WHERE id = $1)`, uuid.UUID(t.ID)).Scan(&exists); err != nil {
			return fmt.Errorf("check takedown: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) ListStale(ctx context.Context, status models.Status, cutoff time.Time, limit int) ([]*models.Takedown, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+takedownColumns+` FROM takedowns
		WHERE status = $1 AND submitted_at < $2
		ORDER BY submitted_at
		LIMIT $3
	`, string(status), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale takedowns: %w", err)
	}
	defer rows.Close()

	var out []*models.Takedown
	for rows.Next() {
		t, err := scanTakedown(rows)
		if err != nil {
			return nil, fmt.Errorf("scan takedown: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountRejectedByEmail(ctx context.Context, email string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM takedowns WHERE reporter->>'email' = $1 AND status = $2
	`, email, string(models.StatusRejected)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rejected takedowns: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CreateCounterNotice(ctx context.Context, cn *models.CounterNotice, r *models.Restoration) error {
	respondent, err := json.Marshal(cn.Respondent)
	if err != nil {
		return fmt.Errorf("marshal respondent: %w", err)
	}
	attestations, err := json.Marshal(cn.Attestations)
	if err != nil {
		return fmt.Errorf("marshal counter attestations: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM takedowns WHERE id = $1)`,
			uuid.UUID(cn.OriginalRequestID)).Scan(&exists); err != nil {
			return fmt.Errorf("check takedown: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO counter_notices (`+noticeColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (original_request_id) DO NOTHING
		`, uuid.UUID(cn.ID), uuid.UUID(cn.OriginalRequestID), respondent, cn.Statement, attestations, cn.Signature,
			string(cn.Status), cn.RestoreAt, cn.RestoredAt, cn.SubmittedAt)
		if err != nil {
			return fmt.Errorf("insert counter notice: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("counter notice rows affected: %w", err)
		}
		if inserted == 0 {
			return sentinel.ErrConflict
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scheduled_restorations (`+restorationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.UUID(r.ID), uuid.UUID(r.TakedownID), uuid.UUID(r.CounterNoticeID), r.ContentID, r.DueAt,
			string(r.Status), r.ExecutedAt, r.Note); err != nil {
			return fmt.Errorf("insert restoration: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) FindCounterNotice(ctx context.Context, noticeID id.CounterNoticeID) (*models.CounterNotice, error) {
	cn, err := scanNotice(s.db.QueryRowContext(ctx, `
		SELECT `+noticeColumns+` FROM counter_notices WHERE id = $1
	`, uuid.UUID(noticeID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find counter notice: %w", err)
	}
	return cn, nil
}

func (s *PostgresStore) FindRestoration(ctx context.Context, restorationID id.RestorationID) (*models.Restoration, error) {
	r, err := scanRestoration(s.db.QueryRowContext(ctx, `
		SELECT `+restorationColumns+` FROM scheduled_restorations WHERE id = $1
	`, uuid.UUID(restorationID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find restoration: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) CancelRestoration(ctx context.Context, noticeID id.CounterNoticeID, note string) (*models.Restoration, error) {
	var out *models.Restoration
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		r, err := scanRestoration(tx.QueryRowContext(ctx, `
			SELECT `+restorationColumns+` FROM scheduled_restorations
			WHERE counter_notice_id = $1
			FOR UPDATE
		`, uuid.UUID(noticeID)))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("lock restoration: %w", err)
		}
		if r.Status != models.RestorationScheduled {
			return sentinel.ErrInvalidState
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE scheduled_restorations SET status = $2, note = $3 WHERE id = $1
		`, uuid.UUID(r.ID), string(models.RestorationCancelled), note); err != nil {
			return fmt.Errorf("cancel restoration: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE counter_notices SET status = $2 WHERE id = $1
		`, uuid.UUID(noticeID), string(models.CounterRestorationCancelled)); err != nil {
			return fmt.Errorf("update counter notice: %w", err)
		}
		r.Status = models.RestorationCancelled
		r.Note = note
		out = r
		return nil
	})
	return out, err
}

func (s *PostgresStore) ListDueRestorations(ctx context.Context, now time.Time, limit int) ([]*models.Restoration, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+restorationColumns+` FROM scheduled_restorations
		WHERE status = $1 AND due_at <= $2
		ORDER BY due_at
		LIMIT $3
	`, string(models.RestorationScheduled), now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due restorations: %w", err)
	}
	defer rows.Close()

	var out []*models.Restoration
	for rows.Next() {
		r, err := scanRestoration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan restoration: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CompleteRestoration(ctx context.Context, restorationID id.RestorationID, now time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var noticeID uuid.UUID
		var status string
		err := tx.QueryRowContext(ctx, `
			SELECT counter_notice_id, status FROM scheduled_restorations WHERE id = $1 FOR UPDATE
		`, uuid.UUID(restorationID)).Scan(&noticeID, &status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("lock restoration: %w", err)
		}
		if models.RestorationStatus(status) != models.RestorationScheduled {
			return sentinel.ErrInvalidState
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE scheduled_restorations SET status = $2, executed_at = $3 WHERE id = $1
		`, uuid.UUID(restorationID), string(models.RestorationExecuted), now); err != nil {
			return fmt.Errorf("complete restoration: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE counter_notices SET status = $2, restored_at = $3 WHERE id = $1
		`, noticeID, string(models.CounterRestored), now); err != nil {
			return fmt.Errorf("update counter notice: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Stats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{
		ByStatus:       map[models.Status]int{},
		CounterNotices: map[models.CounterStatus]int{},
	}
	if err := countInto(ctx, s.db, `SELECT status, COUNT(*) FROM takedowns GROUP BY status`, func(status string, n int) {
		stats.ByStatus[models.Status(status)] = n
	}); err != nil {
		return nil, err
	}
	if err := countInto(ctx, s.db, `SELECT status, COUNT(*) FROM counter_notices GROUP BY status`, func(status string, n int) {
		stats.CounterNotices[models.CounterStatus(status)] = n
	}); err != nil {
		return nil, err
	}

	var avgSeconds sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(EXTRACT(EPOCH FROM (resolved_at - submitted_at)))
		FROM takedowns WHERE resolved_at IS NOT NULL
	`).Scan(&stats.Resolved, &avgSeconds); err != nil {
		return nil, fmt.Errorf("average takedown resolution: %w", err)
	}
	if avgSeconds.Valid {
		stats.AvgResolution = time.Duration(avgSeconds.Float64 * float64(time.Second))
	}
	return stats, nil
}

func countInto(ctx context.Context, db *sql.DB, query string, add func(string, int)) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("count takedowns: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return fmt.Errorf("scan takedown counts: %w", err)
		}
		add(status, n)
	}
	return rows.Err()
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin takedown tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit takedown tx: %w", err)
	}
	return nil
}

func marshalTakedown(t *models.Takedown) (reporter, evidence, attestations []byte, err error) {
	if reporter, err = json.Marshal(t.Reporter); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal reporter: %w", err)
	}
	ev := t.Evidence
	if ev == nil {
		ev = []string{}
	}
	if evidence, err = json.Marshal(ev); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal evidence: %w", err)
	}
	if attestations, err = json.Marshal(t.Attestations); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal attestations: %w", err)
	}
	return reporter, evidence, attestations, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTakedown(row rowScanner) (*models.Takedown, error) {
	var (
		t                                models.Takedown
		takedownID                       uuid.UUID
		reporter, evidence, attestations []byte
		status                           string
		resolved                         sql.NullTime
	)
	if err := row.Scan(&takedownID, &reporter, &t.CopyrightOwner, &t.WorkTitle, &t.WorkDescription, &t.ContentID,
		&t.ContentOwnerID, &evidence, &attestations, &t.Signature, &status, &t.ResolutionReason, &t.FailureReason,
		&t.ContentIDMatch, &t.MatchReference, &t.ReviewerID, &t.SubmittedAt, &resolved); err != nil {
		return nil, err
	}
	t.ID = id.TakedownID(takedownID)
	t.Status = models.Status(status)
	if err := json.Unmarshal(reporter, &t.Reporter); err != nil {
		return nil, fmt.Errorf("unmarshal reporter: %w", err)
	}
	if err := json.Unmarshal(evidence, &t.Evidence); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	if err := json.Unmarshal(attestations, &t.Attestations); err != nil {
		return nil, fmt.Errorf("unmarshal attestations: %w", err)
	}
	if resolved.Valid {
		at := resolved.Time
		t.ResolvedAt = &at
	}
	return &t, nil
}

func scanNotice(row rowScanner) (*models.CounterNotice, error) {
	var (
		cn                       models.CounterNotice
		noticeID, takedownID     uuid.UUID
		respondent, attestations []byte
		status                   string
		restored                 sql.NullTime
	)
	if err := row.Scan(&noticeID, &takedownID, &respondent, &cn.Statement, &attestations, &cn.Signature, &status,
		&cn.RestoreAt, &restored, &cn.SubmittedAt); err != nil {
		return nil, err
	}
	cn.ID = id.CounterNoticeID(noticeID)
	cn.OriginalRequestID = id.TakedownID(takedownID)
	cn.Status = models.CounterStatus(status)
	if err := json.Unmarshal(respondent, &cn.Respondent); err != nil {
		return nil, fmt.Errorf("unmarshal respondent: %w", err)
	}
	if err := json.Unmarshal(attestations, &cn.Attestations); err != nil {
		return nil, fmt.Errorf("unmarshal counter attestations: %w", err)
	}
	if restored.Valid {
		at := restored.Time
		cn.RestoredAt = &at
	}
	return &cn, nil
}

func scanRestoration(row rowScanner) (*models.Restoration, error) {
	var (
		r                                   models.Restoration
		restorationID, takedownID, noticeID uuid.UUID
		status                              string
		executed                            sql.NullTime
	)
	if err := row.Scan(&restorationID, &takedownID, &noticeID, &r.ContentID, &r.DueAt, &status, &executed, &r.Note); err != nil {
		return nil, err
	}
	r.ID = id.RestorationID(restorationID)
	r.TakedownID = id.TakedownID(takedownID)
	r.CounterNoticeID = id.CounterNoticeID(noticeID)
	r.Status = models.RestorationStatus(status)
	if executed.Valid {
		at := executed.Time
		r.ExecutedAt = &at
	}
	return &r, nil
}
