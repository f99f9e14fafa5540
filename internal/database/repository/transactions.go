package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidSearchSyntax marks a free-text term the full-text index rejected.
// Callers treat it as "no results", not a storage failure.
var ErrInvalidSearchSyntax = errors.New("invalid search syntax")

// IdentityField selects which transaction column an identity value matches.
type IdentityField int

const (
	ByMerchantID IdentityField = iota
	ByMerchantName
	ByRawText
)

func (f IdentityField) column() string {
	switch f {
	case ByMerchantID:
		return "merchant_id"
	case ByMerchantName:
		return "merchant"
	default:
		return "txntext"
	}
}

// SearchFilters is the compiled filter set for one query. Every non-zero
// field contributes exactly one AND-ed predicate.
type SearchFilters struct {
	MatchTerm     string // wildcarded FTS term; empty = no text restriction
	DateFrom      *time.Time
	DateTo        *time.Time
	AmountFrom    *int
	AmountTo      *int
	AccountIDs    []string
	CategoryLow   *int
	CategoryHigh  *int
	TransactionID string
	SortField     string // validated against sortColumns; empty = post
	SortAscending bool
}

// Empty reports whether no facet and no free-text term is active.
func (f SearchFilters) Empty() bool {
	return f.MatchTerm == "" &&
		f.DateFrom == nil && f.DateTo == nil &&
		f.AmountFrom == nil && f.AmountTo == nil &&
		len(f.AccountIDs) == 0 &&
		f.CategoryLow == nil &&
		f.TransactionID == ""
}

var sortColumns = map[string]string{
	"post":        "t.post",
	"auth":        "t.auth",
	"amount":      "t.amount",
	"merchant":    "t.merchant",
	"categories":  "t.categories",
	"category_id": "t.category_id",
	"txntext":     "t.txntext",
}

// SortColumn maps a user-supplied sort token to a real column.
func SortColumn(name string) (string, bool) {
	col, ok := sortColumns[strings.ToLower(strings.TrimSpace(name))]
	return col, ok
}

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

const txnColumns = `t.transaction_id, t.account_id, t.currency, t.post, t.auth, t.channel,
	t.amount, t.subtype, t.merchant, t.merchant_id, t.category_id, t.categories, t.txntext`

// Insert stores a transaction with insert-or-ignore semantics keyed on
// transaction_id. Returns false when the id was already present.
func (r *TransactionRepo) Insert(ctx context.Context, t Transaction) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
	INSERT OR IGNORE INTO transactions(
	 transaction_id, account_id, currency, post, auth, channel, amount, subtype,
	 merchant, merchant_id, category_id, categories, txntext)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		t.TransactionID, t.AccountID, t.Currency, t.PostDate.Format(time.DateOnly),
		nullableDate(t.AuthDate), t.Channel, t.Amount.InexactFloat64(), t.Subtype,
		t.Merchant, t.MerchantID, t.CategoryID, t.CategoryPath, t.RawText)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Get fetches a transaction by its provider id, or nil when absent.
func (r *TransactionRepo) Get(ctx context.Context, transactionID string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txnColumns+` FROM transactions t WHERE t.transaction_id = ?`, transactionID)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// ReassignCategory bulk-updates the category id and display path on every row
// whose identity column matches value. The FTS index follows via triggers.
func (r *TransactionRepo) ReassignCategory(ctx context.Context, field IdentityField, value string, categoryID int, path string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE transactions SET category_id = ?, categories = ? WHERE %s = ?`, field.column()),
		categoryID, path, value)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Search runs one parameterized query combining all active filters with AND
// semantics. An empty filter set is a deliberate no-op. With a free-text term,
// rows are ordered primarily by the weighted relevance score over the
// full-text index, tie-broken by the requested sort; otherwise by the sort
// alone (default post descending).
func (r *TransactionRepo) Search(ctx context.Context, f SearchFilters) ([]Transaction, error) {
	if f.Empty() {
		return nil, nil
	}

	var where []string
	var args []interface{}

	if f.DateFrom != nil {
		where = append(where, "t.post >= ?")
		args = append(args, f.DateFrom.Format(time.DateOnly))
	}
	if f.DateTo != nil {
		where = append(where, "t.post <= ?")
		args = append(args, f.DateTo.Format(time.DateOnly))
	}
	if f.AmountFrom != nil {
		where = append(where, "t.amount >= ?")
		args = append(args, *f.AmountFrom)
	}
	if f.AmountTo != nil {
		where = append(where, "t.amount <= ?")
		args = append(args, *f.AmountTo)
	}
	if len(f.AccountIDs) > 0 {
		where = append(where, "t.account_id IN ("+placeholders(len(f.AccountIDs))+")")
		for _, id := range f.AccountIDs {
			args = append(args, id)
		}
	}
	if f.TransactionID != "" {
		// exact lookup takes precedence over the category range
		where = append(where, "t.transaction_id = ?")
		args = append(args, f.TransactionID)
	} else if f.CategoryLow != nil && f.CategoryHigh != nil {
		where = append(where, "t.category_id >= ? AND t.category_id < ?")
		args = append(args, *f.CategoryLow, *f.CategoryHigh)
	}

	sortCol := "t.post"
	if f.SortField != "" {
		col, ok := SortColumn(f.SortField)
		if !ok {
			return nil, fmt.Errorf("unknown sort field %q", f.SortField)
		}
		sortCol = col
	}
	dir := "DESC"
	if f.SortAscending {
		dir = "ASC"
	}

	var query string
	if f.MatchTerm != "" {
		matchArgs := append([]interface{}{f.MatchTerm}, args...)
		query = `SELECT ` + txnColumns + `, rank(matchinfo(txn_fts)) AS score
		FROM transactions t JOIN txn_fts ON txn_fts.docid = t.id
		WHERE txn_fts MATCH ?`
		if len(where) > 0 {
			query += " AND " + strings.Join(where, " AND ")
		}
		query += fmt.Sprintf(" ORDER BY score DESC, %s %s", sortCol, dir)
		args = matchArgs
	} else {
		query = `SELECT ` + txnColumns + `, 0 AS score FROM transactions t`
		if len(where) > 0 {
			query += " WHERE " + strings.Join(where, " AND ")
		}
		query += fmt.Sprintf(" ORDER BY %s %s", sortCol, dir)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, matchErr(err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanSearchRow(rows)
		if err != nil {
			return nil, matchErr(err)
		}
		out = append(out, t)
	}
	return out, matchErr(rows.Err())
}

// matchErr classifies FTS MATCH parse failures as ErrInvalidSearchSyntax.
// sqlite may surface them from the prepare or only during row iteration, so
// every Search return path goes through here.
func matchErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "malformed MATCH") {
		return fmt.Errorf("%w: %v", ErrInvalidSearchSyntax, err)
	}
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullableDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.DateOnly)
}

// scanner handles both Row and Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row scanner) (Transaction, error) {
	return scanFields(row, false)
}

func scanSearchRow(row scanner) (Transaction, error) {
	return scanFields(row, true)
}

func scanFields(row scanner, withScore bool) (Transaction, error) {
	var t Transaction
	var post string
	var auth, merchant, merchantID sql.NullString
	var amount float64
	dest := []interface{}{
		&t.TransactionID, &t.AccountID, &t.Currency, &post, &auth, &t.Channel,
		&amount, &t.Subtype, &merchant, &merchantID, &t.CategoryID, &t.CategoryPath, &t.RawText,
	}
	if withScore {
		var score float64
		dest = append(dest, &score)
	}
	if err := row.Scan(dest...); err != nil {
		return Transaction{}, err
	}
	parsed, err := time.Parse(time.DateOnly, post)
	if err != nil {
		return Transaction{}, fmt.Errorf("parse post date %q: %w", post, err)
	}
	t.PostDate = parsed
	if auth.Valid {
		a, err := time.Parse(time.DateOnly, auth.String)
		if err != nil {
			return Transaction{}, fmt.Errorf("parse auth date %q: %w", auth.String, err)
		}
		t.AuthDate = &a
	}
	if merchant.Valid {
		t.Merchant = &merchant.String
	}
	if merchantID.Valid {
		t.MerchantID = &merchantID.String
	}
	t.Amount = decimal.NewFromFloat(amount)
	return t, nil
}
