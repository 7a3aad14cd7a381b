package actionlog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "guardian/pkg/domain"
)

// PostgresStore appends entries to the action_log table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_log (id, component, request_id, owner_id, action, from_status, to_status, automated, actor, note, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		uuid.UUID(entry.ID),
		string(entry.Component),
		entry.RequestID,
		entry.OwnerID,
		entry.Action,
		entry.FromStatus,
		entry.ToStatus,
		entry.Automated,
		entry.Actor,
		entry.Note,
		entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("append action log entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRequest(ctx context.Context, requestID string) ([]Entry, error) {
	return s.list(ctx, `WHERE request_id = $1`, requestID)
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string) ([]Entry, error) {
	return s.list(ctx, `WHERE owner_id = $1`, ownerID)
}

func (s *PostgresStore) list(ctx context.Context, where string, arg string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, component, request_id, owner_id, action, from_status, to_status, automated, actor, note, recorded_at
		FROM action_log `+where+`
		ORDER BY recorded_at, id
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("list action log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var entryID uuid.UUID
		var component string
		if err := rows.Scan(&entryID, &component, &e.RequestID, &e.OwnerID, &e.Action,
			&e.FromStatus, &e.ToStatus, &e.Automated, &e.Actor, &e.Note, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan action log entry: %w", err)
		}
		e.ID = id.ActionID(entryID)
		e.Component = Component(component)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action log: %w", err)
	}
	return entries, nil
}
