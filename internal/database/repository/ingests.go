package repository

import (
	"context"
	"database/sql"
	"time"
)

// IngestRepo records sync batch audit rows.
type IngestRepo struct{ db *sql.DB }

func NewIngestRepo(db *sql.DB) *IngestRepo { return &IngestRepo{db: db} }

func (r *IngestRepo) Record(ctx context.Context, in Ingest) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO ingests(id, item_id, added, skipped, failed, started_at, finished_at)
	VALUES(?, ?, ?, ?, ?, ?, ?)
	`, in.ID, in.ItemID, in.Added, in.Skipped, in.Failed,
		in.StartedAt.UTC().Format(time.RFC3339), in.FinishedAt.UTC().Format(time.RFC3339))
	return err
}

func (r *IngestRepo) List(ctx context.Context) ([]Ingest, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, item_id, added, skipped, failed, started_at, finished_at
	FROM ingests ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ingest
	for rows.Next() {
		var in Ingest
		var started string
		var finished sql.NullString
		if err := rows.Scan(&in.ID, &in.ItemID, &in.Added, &in.Skipped, &in.Failed, &started, &finished); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, started); err == nil {
			in.StartedAt = t
		}
		if finished.Valid {
			if t, err := time.Parse(time.RFC3339, finished.String); err == nil {
				in.FinishedAt = t
			}
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
