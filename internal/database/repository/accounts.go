package repository

import (
	"context"
	"database/sql"
	"errors"
)

// AccountRepo handles accounts mirrored from the aggregation source.
type AccountRepo struct{ db *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

func (r *AccountRepo) Upsert(ctx context.Context, a Account) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO accounts(account_id, name, official_name, subtype, institution_id, item_id)
	VALUES(?, ?, ?, ?, ?, ?)
	ON CONFLICT(account_id) DO UPDATE SET
	 name=excluded.name, official_name=excluded.official_name, subtype=excluded.subtype,
	 institution_id=excluded.institution_id, item_id=excluded.item_id
	`, a.AccountID, a.Name, a.OfficialName, a.Subtype, a.InstitutionID, a.ItemID)
	return err
}

func (r *AccountRepo) Get(ctx context.Context, accountID string) (*Account, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT account_id, name, official_name, subtype, institution_id, item_id
	FROM accounts WHERE account_id = ?`, accountID)
	var a Account
	if err := row.Scan(&a.AccountID, &a.Name, &a.OfficialName, &a.Subtype, &a.InstitutionID, &a.ItemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT account_id, name, official_name, subtype, institution_id, item_id
	FROM accounts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.AccountID, &a.Name, &a.OfficialName, &a.Subtype, &a.InstitutionID, &a.ItemID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
