package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jask/txnql/internal/database/repository"
	"github.com/jask/txnql/internal/icons"
	"github.com/jask/txnql/internal/plaid"
	"github.com/jask/txnql/internal/secrets"
	"github.com/rs/zerolog"
)

// SyncService pulls every linked item's changes from the provider and stores
// them. Ingestion is idempotent: re-running a batch counts already-stored
// rows as skipped rather than duplicating them.
type SyncService struct {
	Client       *plaid.Client
	Secrets      *secrets.Store
	Transactions *repository.TransactionRepo
	Accounts     *repository.AccountRepo
	Categories   *repository.CategoryRepo
	Ingests      *repository.IngestRepo
	Resolver     *CategoryResolver
	Icons        *icons.Cache
	Log          zerolog.Logger
}

type SyncResult struct {
	Added   int
	Skipped int
	Failed  int
}

// UpdateAll syncs every stored item. One item's failure is logged and does
// not abort the others; the first error is reported after all items ran.
func (s *SyncService) UpdateAll(ctx context.Context) (SyncResult, error) {
	items := map[string]plaid.Item{}
	if _, err := s.Secrets.Get("items", &items); err != nil {
		return SyncResult{}, fmt.Errorf("load items: %w", err)
	}
	if len(items) == 0 {
		return SyncResult{}, fmt.Errorf("no linked items")
	}

	var total SyncResult
	var firstErr error
	for id, item := range items {
		res, err := s.syncItem(ctx, &item)
		total.Added += res.Added
		total.Skipped += res.Skipped
		total.Failed += res.Failed
		if err != nil {
			s.Log.Error().Err(err).Str("item", id).Msg("item sync failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		items[id] = item
	}
	if err := s.Secrets.Set("items", items); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.Secrets.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.Icons != nil {
		if err := s.Icons.Flush(); err != nil {
			s.Log.Warn().Err(err).Msg("icon index flush failed")
		}
	}
	return total, firstErr
}

func (s *SyncService) syncItem(ctx context.Context, item *plaid.Item) (SyncResult, error) {
	started := time.Now().UTC()

	accounts, inst, err := s.Client.GetAccounts(ctx, item)
	if err != nil {
		return SyncResult{}, fmt.Errorf("accounts: %w", err)
	}
	instID := ""
	if inst != nil {
		instID = inst.InstitutionID
		s.ensureIcon(ctx, "bank", inst.Name, inst.Logo, inst.URL)
	}
	for _, a := range accounts {
		err := s.Accounts.Upsert(ctx, repository.Account{
			AccountID:     a.AccountID,
			Name:          a.Name,
			OfficialName:  a.OfficialName,
			Subtype:       a.Subtype,
			InstitutionID: instID,
			ItemID:        item.ItemID,
		})
		if err != nil {
			return SyncResult{}, fmt.Errorf("account %s: %w", a.AccountID, err)
		}
	}

	txns, err := s.Client.GetTransactions(ctx, item)
	if err != nil {
		return SyncResult{}, fmt.Errorf("transactions: %w", err)
	}

	var res SyncResult
	for _, t := range txns {
		s.refreshMetadata(ctx, t)
		added, err := s.saveTransaction(ctx, t)
		switch {
		case err != nil:
			res.Failed++
			s.Log.Warn().Err(err).Str("transaction", t.TransactionID).Msg("transaction skipped")
		case added:
			res.Added++
		default:
			res.Skipped++
		}
	}

	err = s.Ingests.Record(ctx, repository.Ingest{
		ID:         uuid.NewString(),
		ItemID:     item.ItemID,
		Added:      res.Added,
		Skipped:    res.Skipped,
		Failed:     res.Failed,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	})
	if err != nil {
		return res, fmt.Errorf("record ingest: %w", err)
	}
	s.Log.Info().
		Str("item", item.ItemID).
		Int("added", res.Added).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("item synced")
	return res, nil
}

// refreshMetadata keeps the category catalog and icon cache warm. Failures
// here never block storing the transaction itself.
func (s *SyncService) refreshMetadata(ctx context.Context, t plaid.Transaction) {
	if id := t.SourceCategoryID(); id != 0 && len(t.Category) > 0 {
		err := s.Categories.Upsert(ctx, repository.Category{
			ID:      id,
			Path:    strings.Join(t.Category, ", "),
			IconURL: t.CategoryIconURL,
		})
		if err != nil {
			s.Log.Warn().Err(err).Int("category", id).Msg("category refresh failed")
		}
	}
	if t.MerchantName != "" {
		s.ensureIcon(ctx, "merchant", t.MerchantName, t.LogoURL, t.Website)
	}
}

func (s *SyncService) ensureIcon(ctx context.Context, kind, name, src, website string) {
	if s.Icons == nil {
		return
	}
	if _, err := s.Icons.Ensure(ctx, kind, name, src, website); err != nil {
		s.Log.Debug().Err(err).Str("name", name).Msg("icon fetch failed")
	}
}

func (s *SyncService) saveTransaction(ctx context.Context, t plaid.Transaction) (bool, error) {
	post, err := time.Parse(time.DateOnly, t.Date)
	if err != nil {
		return false, fmt.Errorf("post date %q: %w", t.Date, err)
	}
	var auth *time.Time
	if t.AuthorizedDate != "" {
		d, err := time.Parse(time.DateOnly, t.AuthorizedDate)
		if err != nil {
			return false, fmt.Errorf("auth date %q: %w", t.AuthorizedDate, err)
		}
		auth = &d
	}
	catID, err := s.Resolver.Resolve(ctx, t.MerchantEntityID, t.MerchantName, t.Name, t.SourceCategoryID())
	if err != nil {
		return false, err
	}
	path, err := s.Resolver.PathFor(ctx, catID)
	if err != nil {
		return false, err
	}
	row := repository.Transaction{
		TransactionID: t.TransactionID,
		AccountID:     t.AccountID,
		Currency:      t.ISOCurrencyCode,
		PostDate:      post,
		AuthDate:      auth,
		Channel:       t.PaymentChannel,
		Amount:        t.Amount,
		Subtype:       t.TransactionType,
		CategoryID:    catID,
		CategoryPath:  path,
		RawText:       t.Name,
	}
	if t.MerchantName != "" {
		row.Merchant = &t.MerchantName
	}
	if t.MerchantEntityID != "" {
		row.MerchantID = &t.MerchantEntityID
	}
	return s.Transactions.Insert(ctx, row)
}
