package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/txnql/internal/database"
	"github.com/jask/txnql/internal/database/repository"
)

func newTestResolver(t *testing.T) (*CategoryResolver, *sql.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	r := &CategoryResolver{
		Overrides:    repository.NewOverrideRepo(db),
		Categories:   repository.NewCategoryRepo(db),
		Transactions: repository.NewTransactionRepo(db),
	}
	return r, db
}

func seedCategory(t *testing.T, r *CategoryResolver, id int, path string) {
	t.Helper()
	require.NoError(t, r.Categories.Upsert(context.Background(), repository.Category{ID: id, Path: path}))
}

func TestIdentityKeyPrecedence(t *testing.T) {
	t.Parallel()

	key, field := IdentityKey("m1", "Blue Bottle", "BLUE BOTTLE OAK")
	require.Equal(t, "m1", key)
	require.Equal(t, repository.ByMerchantID, field)

	key, field = IdentityKey("", "Blue Bottle", "BLUE BOTTLE OAK")
	require.Equal(t, "Blue Bottle", key)
	require.Equal(t, repository.ByMerchantName, field)

	key, field = IdentityKey("", "", "BLUE BOTTLE OAK")
	require.Equal(t, "BLUE BOTTLE OAK", key)
	require.Equal(t, repository.ByRawText, field)
}

func TestResolvePrefersOverride(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newTestResolver(t)
	seedCategory(t, r, 130, "Food and Drink, Coffee Shop")
	seedCategory(t, r, 42, "Transfer, Wire")

	// no override: source default
	id, err := r.Resolve(ctx, "m1", "Blue Bottle", "BLUE BOTTLE OAK", 130)
	require.NoError(t, err)
	require.Equal(t, 130, id)

	require.NoError(t, r.SetOverride(ctx, "m1", 42))
	id, err = r.Resolve(ctx, "m1", "Blue Bottle", "BLUE BOTTLE OAK", 130)
	require.NoError(t, err)
	require.Equal(t, 42, id)

	// the override keys on merchant id, so a name-only identity misses it
	id, err = r.Resolve(ctx, "", "Blue Bottle", "BLUE BOTTLE OAK", 130)
	require.NoError(t, err)
	require.Equal(t, 130, id)
}

func TestResolveUnknownIDFallsBackToSentinel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newTestResolver(t)

	id, err := r.Resolve(ctx, "m1", "", "", 99999)
	require.NoError(t, err)
	require.Equal(t, database.UncategorizedID, id)

	path, err := r.PathFor(ctx, 99999)
	require.NoError(t, err)
	require.Equal(t, "Uncategorized", path)
}

func TestUpdateStoredCategoryBackfillsAndRecordsOverride(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, _ := newTestResolver(t)
	seedCategory(t, r, 42, "Transfer, Wire")

	merchant := "Blue Bottle"
	merchantID := "m1"
	for _, txid := range []string{"t1", "t2"} {
		added, err := r.Transactions.Insert(ctx, repository.Transaction{
			TransactionID: txid,
			AccountID:     "acc-1",
			Currency:      "USD",
			PostDate:      time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC),
			Channel:       "online",
			Amount:        decimal.NewFromFloat(12.5),
			Subtype:       "place",
			Merchant:      &merchant,
			MerchantID:    &merchantID,
			CategoryID:    130,
			CategoryPath:  "Food and Drink, Coffee Shop",
			RawText:       "BLUE BOTTLE OAK",
		})
		require.NoError(t, err)
		require.True(t, added)
	}

	n, err := r.UpdateStoredCategory(ctx, 42, "m1", "Blue Bottle", "BLUE BOTTLE OAK")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	got, err := r.Transactions.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, 42, got.CategoryID)
	require.Equal(t, "Transfer, Wire", got.CategoryPath)

	// future ingestion of the same merchant resolves to the override
	id, err := r.Resolve(ctx, "m1", "Blue Bottle", "NEW BLUE BOTTLE ROW", 130)
	require.NoError(t, err)
	require.Equal(t, 42, id)
}
