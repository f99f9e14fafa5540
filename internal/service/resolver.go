package service

import (
	"context"

	"github.com/jask/txnql/internal/database"
	"github.com/jask/txnql/internal/database/repository"
)

// CategoryResolver computes the effective category for a transaction,
// preferring a user override over the source-provided default, and owns the
// two explicit correction entry points.
type CategoryResolver struct {
	Overrides    *repository.OverrideRepo
	Categories   *repository.CategoryRepo
	Transactions *repository.TransactionRepo
}

// IdentityKey returns the override lookup key for a transaction and the
// column it matches. Resolution order is fixed: merchant id over merchant
// name over raw text.
func IdentityKey(merchantID, merchantName, rawText string) (string, repository.IdentityField) {
	if merchantID != "" {
		return merchantID, repository.ByMerchantID
	}
	if merchantName != "" {
		return merchantName, repository.ByMerchantName
	}
	return rawText, repository.ByRawText
}

// Resolve returns the effective category id: the override for the identity
// key when one exists, else the source default. The result is always a known
// catalog id; ids outside the hierarchy land on the sentinel.
func (r *CategoryResolver) Resolve(ctx context.Context, merchantID, merchantName, rawText string, sourceCategoryID int) (int, error) {
	key, _ := IdentityKey(merchantID, merchantName, rawText)
	if id, ok, err := r.Overrides.Get(ctx, key); err != nil {
		return 0, err
	} else if ok {
		return r.knownID(ctx, id)
	}
	return r.knownID(ctx, sourceCategoryID)
}

// PathFor returns the catalog display path for id, falling back to the
// sentinel node's path for unknown ids.
func (r *CategoryResolver) PathFor(ctx context.Context, id int) (string, error) {
	c, err := r.Categories.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if c == nil {
		c, err = r.Categories.Get(ctx, database.UncategorizedID)
		if err != nil {
			return "", err
		}
		if c == nil {
			return "Uncategorized", nil
		}
	}
	return c.Path, nil
}

func (r *CategoryResolver) knownID(ctx context.Context, id int) (int, error) {
	c, err := r.Categories.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if c == nil {
		return database.UncategorizedID, nil
	}
	return c.ID, nil
}

// SetOverride records a manual categorization for identity. It affects future
// ingestion only; pair with UpdateStoredCategory to backfill stored rows.
func (r *CategoryResolver) SetOverride(ctx context.Context, identity string, categoryID int) error {
	return r.Overrides.Set(ctx, identity, categoryID)
}

// UpdateStoredCategory bulk-corrects every stored row matching the resolved
// identity key and records the override so future ingestions agree. Returns
// the number of rows touched.
func (r *CategoryResolver) UpdateStoredCategory(ctx context.Context, categoryID int, merchantID, merchantName, rawText string) (int64, error) {
	key, field := IdentityKey(merchantID, merchantName, rawText)
	path, err := r.PathFor(ctx, categoryID)
	if err != nil {
		return 0, err
	}
	n, err := r.Transactions.ReassignCategory(ctx, field, key, categoryID, path)
	if err != nil {
		return 0, err
	}
	if err := r.Overrides.Set(ctx, key, categoryID); err != nil {
		return n, err
	}
	return n, nil
}
