package repository

import (
	"context"
	"database/sql"
	"errors"
)

// CategoryRepo handles the source-supplied category catalog. Entries are only
// ever merged or updated, never deleted.
type CategoryRepo struct{ db *sql.DB }

func NewCategoryRepo(db *sql.DB) *CategoryRepo { return &CategoryRepo{db: db} }

func (r *CategoryRepo) Upsert(ctx context.Context, c Category) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO categories(category_id, path, icon_url)
	VALUES(?, ?, ?)
	ON CONFLICT(category_id) DO UPDATE SET path=excluded.path, icon_url=excluded.icon_url
	`, c.ID, c.Path, c.IconURL)
	return err
}

func (r *CategoryRepo) Get(ctx context.Context, id int) (*Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT category_id, path, icon_url FROM categories WHERE category_id = ?`, id)
	var c Category
	if err := row.Scan(&c.ID, &c.Path, &c.IconURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepo) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id, path, icon_url FROM categories ORDER BY category_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Path, &c.IconURL); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
