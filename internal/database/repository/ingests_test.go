package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIngestRecordAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewIngestRepo(db)

	started := time.Date(2024, time.January, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Record(ctx, Ingest{
		ID: "batch-1", ItemID: "item-1", Added: 3, Skipped: 1,
		StartedAt: started, FinishedAt: started.Add(2 * time.Second),
	}))

	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 3, got[0].Added)
	require.Equal(t, started, got[0].StartedAt)
	require.Equal(t, started.Add(2*time.Second), got[0].FinishedAt)
}

func TestIngestListToleratesNullFinish(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewIngestRepo(db)

	_, err := db.ExecContext(ctx, `
	INSERT INTO ingests(id, item_id, added, skipped, failed, started_at, finished_at)
	VALUES('batch-1', 'item-1', 0, 0, 0, '2024-01-05T10:00:00Z', NULL)`)
	require.NoError(t, err)

	got, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].FinishedAt.IsZero())
}