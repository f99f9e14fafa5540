package repository

import (
	"context"
	"database/sql"
	"errors"
)

// OverrideRepo stores manual re-categorizations keyed by transaction identity
// (merchant id, merchant name, or raw text).
type OverrideRepo struct{ db *sql.DB }

func NewOverrideRepo(db *sql.DB) *OverrideRepo { return &OverrideRepo{db: db} }

// Set upserts an override; idempotent.
func (r *OverrideRepo) Set(ctx context.Context, identity string, categoryID int) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO category_overrides(identity, category_id)
	VALUES(?, ?)
	ON CONFLICT(identity) DO UPDATE SET category_id=excluded.category_id
	`, identity, categoryID)
	return err
}

// Get returns the overriding category id for identity, if one exists.
func (r *OverrideRepo) Get(ctx context.Context, identity string) (int, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT category_id FROM category_overrides WHERE identity = ?`, identity)
	var id int
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}
