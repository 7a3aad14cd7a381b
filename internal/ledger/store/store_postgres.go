package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"guardian/internal/ledger/models"
	"guardian/pkg/platform/sentinel"
)

// PostgresStore persists offender records. Every mutation runs in a
// transaction holding the subject row FOR UPDATE.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) Increment(ctx context.Context, v models.Violation, threshold int) (*models.Outcome, error) {
	var outcome *models.Outcome
	err := s.withLockedRecord(ctx, v.Subject, true, func(tx *sql.Tx, record *models.Record) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO offender_history (subject_kind, subject_id, source, reference_id, action, idempotency_key, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (subject_kind, subject_id, idempotency_key) DO NOTHING
		`, string(v.Subject.Kind), v.Subject.ID, string(v.Source), v.ReferenceID, v.Action, v.IdempotencyKey, v.RecordedAt)
		if err != nil {
			return fmt.Errorf("insert offender history: %w", err)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("offender history rows affected: %w", err)
		}
		if inserted == 0 {
			outcome = &models.Outcome{Record: record, Duplicate: true}
			return nil
		}

		// Apply appends the entry we just inserted, keeping History in step.
		crossed := record.Apply(v, threshold)
		if err := updateRecord(ctx, tx, record); err != nil {
			return err
		}
		outcome = &models.Outcome{Record: record, Crossed: crossed}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, subject models.Subject, status models.Status, entry models.HistoryEntry) (*models.StatusChange, error) {
	var out *models.StatusChange
	err := s.withLockedRecord(ctx, subject, true, func(tx *sql.Tx, record *models.Record) error {
		from := record.Status
		if !record.MoveTo(status, entry) {
			out = &models.StatusChange{Record: record, From: from}
			return nil
		}
		if err := insertHistory(ctx, tx, subject, entry); err != nil {
			return err
		}
		if err := updateRecord(ctx, tx, record); err != nil {
			return err
		}
		out = &models.StatusChange{Record: record, From: from, Changed: true}
		return nil
	})
	return out, err
}

func (s *PostgresStore) Reset(ctx context.Context, subject models.Subject, entry models.HistoryEntry) (*models.Record, error) {
	var out *models.Record
	err := s.withLockedRecord(ctx, subject, false, func(tx *sql.Tx, record *models.Record) error {
		if err := insertHistory(ctx, tx, subject, entry); err != nil {
			return err
		}
		record.ViolationCount = 0
		record.Status = models.StatusActive
		record.History = append(record.History, entry)
		if err := updateRecord(ctx, tx, record); err != nil {
			return err
		}
		out = record
		return nil
	})
	return out, err
}

func (s *PostgresStore) Find(ctx context.Context, subject models.Subject) (*models.Record, error) {
	record, err := scanRecord(s.db.QueryRowContext(ctx, `
		SELECT subject_kind, subject_id, violation_count, first_violation_at, last_violation_at, status
		FROM offender_records
		WHERE subject_kind = $1 AND subject_id = $2
	`, string(subject.Kind), subject.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find offender record: %w", err)
	}
	if record.History, err = loadHistory(ctx, s.db, subject); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM offender_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count offenders by status: %w", err)
	}
	defer rows.Close()

	out := map[models.Status]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan offender status count: %w", err)
		}
		out[models.Status(status)] = n
	}
	return out, rows.Err()
}

// withLockedRecord opens a transaction, optionally creates the subject row,
// locks it, and hands the loaded record to fn. fn's error rolls back.
func (s *PostgresStore) withLockedRecord(ctx context.Context, subject models.Subject, create bool, fn func(*sql.Tx, *models.Record) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if create {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO offender_records (subject_kind, subject_id, status)
			VALUES ($1, $2, 'active')
			ON CONFLICT (subject_kind, subject_id) DO NOTHING
		`, string(subject.Kind), subject.ID); err != nil {
			return fmt.Errorf("ensure offender record: %w", err)
		}
	}

	record, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT subject_kind, subject_id, violation_count, first_violation_at, last_violation_at, status
		FROM offender_records
		WHERE subject_kind = $1 AND subject_id = $2
		FOR UPDATE
	`, string(subject.Kind), subject.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("lock offender record: %w", err)
	}
	if record.History, err = loadHistory(ctx, tx, subject); err != nil {
		return err
	}

	if err := fn(tx, record); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func insertHistory(ctx context.Context, exec dbExecutor, subject models.Subject, entry models.HistoryEntry) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO offender_history (subject_kind, subject_id, source, reference_id, action, idempotency_key, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, string(subject.Kind), subject.ID, string(entry.Source), entry.ReferenceID, entry.Action, entry.IdempotencyKey, entry.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert offender history: %w", err)
	}
	return nil
}

func updateRecord(ctx context.Context, exec dbExecutor, r *models.Record) error {
	_, err := exec.ExecContext(ctx, `
		UPDATE offender_records
		SET violation_count = $3, first_violation_at = $4, last_violation_at = $5, status = $6, updated_at = NOW()
		WHERE subject_kind = $1 AND subject_id = $2
	`, string(r.Subject.Kind), r.Subject.ID, r.ViolationCount, r.FirstViolationAt, r.LastViolationAt, string(r.Status))
	if err != nil {
		return fmt.Errorf("update offender record: %w", err)
	}
	return nil
}

func loadHistory(ctx context.Context, exec dbExecutor, subject models.Subject) ([]models.HistoryEntry, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT source, reference_id, action, idempotency_key, recorded_at
		FROM offender_history
		WHERE subject_kind = $1 AND subject_id = $2
		ORDER BY id
	`, string(subject.Kind), subject.ID)
	if err != nil {
		return nil, fmt.Errorf("load offender history: %w", err)
	}
	defer rows.Close()

	history := []models.HistoryEntry{}
	for rows.Next() {
		var h models.HistoryEntry
		var source string
		if err := rows.Scan(&source, &h.ReferenceID, &h.Action, &h.IdempotencyKey, &h.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan offender history: %w", err)
		}
		h.Source = models.Source(source)
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offender history: %w", err)
	}
	return history, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var r models.Record
	var kind, status string
	var first, last sql.NullTime
	if err := row.Scan(&kind, &r.Subject.ID, &r.ViolationCount, &first, &last, &status); err != nil {
		return nil, err
	}
	r.Subject.Kind = models.SubjectKind(kind)
	r.Status = models.Status(status)
	if first.Valid {
		t := first.Time
		r.FirstViolationAt = &t
	}
	if last.Valid {
		t := last.Time
		r.LastViolationAt = &t
	}
	return &r, nil
}

