package hashes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"guardian/internal/scanning/models"
	"guardian/pkg/platform/sentinel"
)

// PostgresRegistry reads one named registry from content_hashes.
type PostgresRegistry struct {
	db   *sql.DB
	name Name
}

func NewPostgresRegistry(db *sql.DB, name Name) *PostgresRegistry {
	return &PostgresRegistry{db: db, name: name}
}

func (r *PostgresRegistry) Name() Name { return r.name }

func (r *PostgresRegistry) Add(ctx context.Context, e Entry) error {
	if e.Category == "" {
		e.Category = DefaultCategory(r.name)
	}
	added := sql.NullTime{Time: e.AddedAt, Valid: !e.AddedAt.IsZero()}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO content_hashes (registry, hash, category, reference, added_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		ON CONFLICT (registry, hash) DO UPDATE SET category = EXCLUDED.category, reference = EXCLUDED.reference
	`, string(r.name), strings.ToLower(e.Hash), string(e.Category), e.Reference, added)
	if err != nil {
		return fmt.Errorf("add content hash: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) Lookup(ctx context.Context, hash string) (*Entry, error) {
	var (
		e        Entry
		category string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT hash, category, reference, added_at FROM content_hashes
		WHERE registry = $1 AND hash = $2
	`, string(r.name), strings.ToLower(hash)).Scan(&e.Hash, &category, &e.Reference, &e.AddedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lookup content hash: %w", err)
	}
	e.Category = models.ViolationType(category)
	return &e, nil
}
