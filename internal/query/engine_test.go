package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/txnql/internal/database"
	"github.com/jask/txnql/internal/database/repository"
)

func newTestEngine(t *testing.T) (*Engine, *repository.TransactionRepo, *repository.AccountRepo) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	txRepo := repository.NewTransactionRepo(db)
	acctRepo := repository.NewAccountRepo(db)
	eng := &Engine{
		Transactions: txRepo,
		Accounts:     acctRepo,
		Log:          zerolog.Nop(),
		Now:          func() time.Time { return testNow },
	}
	return eng, txRepo, acctRepo
}

func insertRow(t *testing.T, repo *repository.TransactionRepo, id, account, merchant, text string, post time.Time, amount float64) {
	t.Helper()
	m := merchant
	added, err := repo.Insert(context.Background(), repository.Transaction{
		TransactionID: id,
		AccountID:     account,
		Currency:      "USD",
		PostDate:      post,
		Channel:       "in store",
		Amount:        decimal.NewFromFloat(amount),
		Subtype:       "place",
		Merchant:      &m,
		CategoryID:    130,
		CategoryPath:  "Food and Drink, Coffee Shop",
		RawText:       text,
	})
	require.NoError(t, err)
	require.True(t, added)
}

func TestEngineEmptyQueryReturnsNothing(t *testing.T) {
	t.Parallel()
	eng, txRepo, _ := newTestEngine(t)
	insertRow(t, txRepo, "t1", "acc-1", "Blue Bottle", "BLUE BOTTLE OAK", day(2024, time.January, 5), 12.5)

	rows, err := eng.Search(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEngineFreeTextAndDateFacets(t *testing.T) {
	t.Parallel()
	eng, txRepo, _ := newTestEngine(t)
	insertRow(t, txRepo, "t1", "acc-1", "Blue Bottle", "BLUE BOTTLE OAK", day(2024, time.February, 5), 12.5)
	insertRow(t, txRepo, "t2", "acc-1", "Blue Bottle", "BLUE BOTTLE SF", day(2024, time.March, 5), 9)

	rows, err := eng.Search(context.Background(), "blue dt:last-month")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "t1", rows[0].TransactionID)
}

func TestEngineAccountFacetFuzzyMatch(t *testing.T) {
	t.Parallel()
	eng, txRepo, acctRepo := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, acctRepo.Upsert(ctx, repository.Account{
		AccountID: "acc-1", Name: "Chase Checking", OfficialName: "Chase Total Checking", Subtype: "checking",
	}))
	require.NoError(t, acctRepo.Upsert(ctx, repository.Account{
		AccountID: "acc-2", Name: "Savings", OfficialName: "High Yield Savings", Subtype: "savings",
	}))
	insertRow(t, txRepo, "t1", "acc-1", "Blue Bottle", "BLUE BOTTLE OAK", day(2024, time.January, 5), 12.5)
	insertRow(t, txRepo, "t2", "acc-2", "Blue Bottle", "BLUE BOTTLE SF", day(2024, time.January, 6), 9)

	rows, err := eng.Search(ctx, "blue act:chase")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "t1", rows[0].TransactionID)

	// exact account id wins without fuzzy matching
	rows, err = eng.Search(ctx, "blue act:acc-2")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "t2", rows[0].TransactionID)

	// unmatched terms resolve to nothing rather than everything
	rows, err = eng.Search(ctx, "blue act:zzzzzzzz")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEngineMalformedMatchYieldsEmpty(t *testing.T) {
	t.Parallel()
	eng, txRepo, _ := newTestEngine(t)
	insertRow(t, txRepo, "t1", "acc-1", "Blue Bottle", "BLUE BOTTLE OAK", day(2024, time.January, 5), 12.5)

	// an unbalanced quote survives tokenization and the index rejects it
	rows, err := eng.Search(context.Background(), `"`)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestEngineFacetParseErrorPropagates(t *testing.T) {
	t.Parallel()
	eng, _, _ := newTestEngine(t)

	_, err := eng.Search(context.Background(), "coffee amtf:ten")
	var fe *FilterError
	require.ErrorAs(t, err, &fe)
}
