package query

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"

	"github.com/jask/txnql/internal/database/repository"
)

// accountMatchThreshold is the minimum name similarity for a fuzzy account
// term to select an account.
const accountMatchThreshold = 0.5

// Engine turns raw query strings into ranked transaction rows.
type Engine struct {
	Transactions *repository.TransactionRepo
	Accounts     *repository.AccountRepo
	Log          zerolog.Logger

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Search parses raw, resolves the account term, and executes the compiled
// query. An empty query and an index-rejected free-text term both yield an
// empty result, the latter with a diagnostic log line; facet parse failures
// are returned to the caller.
func (e *Engine) Search(ctx context.Context, raw string) ([]repository.Transaction, error) {
	f, err := Parse(raw, e.now())
	if err != nil {
		return nil, err
	}

	if f.AccountTerm != "" {
		ids, err := e.resolveAccounts(ctx, f.AccountTerm)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			e.Log.Debug().Str("term", f.AccountTerm).Msg("no account matches term")
			return nil, nil
		}
		f.AccountIDs = ids
	}

	rows, err := e.Transactions.Search(ctx, f.SearchFilters)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidSearchSyntax) {
			e.Log.Warn().Str("term", f.MatchTerm).Msg("invalid query syntax")
			return nil, nil
		}
		return nil, err
	}
	return rows, nil
}

// resolveAccounts maps an account facet term to account ids: an exact id
// match wins, otherwise the term is fuzzy-matched against stored account
// names and the full match set is used.
func (e *Engine) resolveAccounts(ctx context.Context, term string) ([]string, error) {
	if a, err := e.Accounts.Get(ctx, term); err != nil {
		return nil, err
	} else if a != nil {
		return []string{a.AccountID}, nil
	}

	accounts, err := e.Accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, a := range accounts {
		if accountMatches(term, a) {
			ids = append(ids, a.AccountID)
		}
	}
	return ids, nil
}

func accountMatches(term string, a repository.Account) bool {
	t := strings.ToLower(term)
	for _, candidate := range []string{a.Name, a.OfficialName, a.Subtype} {
		c := strings.ToLower(candidate)
		if c == "" {
			continue
		}
		if strings.Contains(c, t) {
			return true
		}
		if similarity(t, c) >= accountMatchThreshold {
			return true
		}
	}
	return false
}

func similarity(a, b string) float64 {
	maxlen := len(a)
	if len(b) > maxlen {
		maxlen = len(b)
	}
	if maxlen == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxlen)
}
