package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jask/txnql/internal/database/repository"
)

// Kind selects how a facet token's value is parsed.
type Kind int

const (
	KindText Kind = iota
	KindDate
	KindNumber
)

// FilterError reports a facet token whose value could not be parsed. The
// whole query fails rather than partially applying filters.
type FilterError struct {
	Token string
	Value string
	Err   error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filter %s:%s: %v", e.Token, e.Value, e.Err)
}

func (e *FilterError) Unwrap() error { return e.Err }

// Value is one extracted facet value.
type Value struct {
	Present bool
	Text    string
	Date    time.Time
	Number  int
}

var spaceRe = regexp.MustCompile(`\s+`)

// Extract removes the first token:value occurrence from query and returns the
// remaining query plus the parsed value. A missing token is not an error; a
// malformed value for the requested kind is.
func Extract(query, token string, kind Kind) (string, Value, error) {
	re := regexp.MustCompile(`(?:^|\s)` + regexp.QuoteMeta(token) + `:(\S+)`)
	m := re.FindStringSubmatchIndex(query)
	if m == nil {
		return query, Value{}, nil
	}
	raw := query[m[2]:m[3]]
	rest := strings.TrimSpace(spaceRe.ReplaceAllString(query[:m[0]]+" "+query[m[1]:], " "))

	v := Value{Present: true, Text: raw}
	switch kind {
	case KindDate:
		d, err := ParseDate(raw)
		if err != nil {
			return query, Value{}, &FilterError{Token: token, Value: raw, Err: err}
		}
		v.Date = d
	case KindNumber:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return query, Value{}, &FilterError{Token: token, Value: raw, Err: fmt.Errorf("not an integer")}
		}
		v.Number = n
	}
	return rest, v, nil
}

var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"1/2/2006",
	"2-Jan-2006",
	"Jan-2-2006",
}

// ParseDate accepts the date spellings a facet value can carry. Values never
// contain spaces, so all layouts are single-word.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}

// Filters is the parsed form of a raw query string: the compiled facet set
// plus the account term, which needs storage access to resolve to ids.
type Filters struct {
	repository.SearchFilters
	AccountTerm string
}

// Parse splits a raw query string into a residual free-text match term and
// the structured filter set. Every recognized token is removed from the
// residual; parse failure of any facet fails the whole query.
func Parse(raw string, now time.Time) (Filters, error) {
	var f Filters
	rest := raw

	var dtf, dtt, amtf, amtt, srt, ord, act, cat, dt, txn Value
	var err error

	steps := []struct {
		token string
		kind  Kind
		out   *Value
	}{
		{"dtf", KindDate, &dtf},
		{"dtt", KindDate, &dtt},
		{"amtf", KindNumber, &amtf},
		{"amtt", KindNumber, &amtt},
		{"srt", KindText, &srt},
		{"ord", KindText, &ord},
		{"act", KindText, &act},
		{"cat", KindNumber, &cat},
		{"dt", KindText, &dt},
		{"txn", KindText, &txn},
	}
	for _, step := range steps {
		rest, *step.out, err = Extract(rest, step.token, step.kind)
		if err != nil {
			return Filters{}, err
		}
	}

	if dtf.Present {
		d := dtf.Date
		f.DateFrom = &d
	}
	if dtt.Present {
		d := dtt.Date
		f.DateTo = &d
	}
	if amtf.Present {
		n := amtf.Number
		f.AmountFrom = &n
	}
	if amtt.Present {
		n := amtt.Number
		f.AmountTo = &n
	}
	if srt.Present {
		if _, ok := repository.SortColumn(srt.Text); !ok {
			return Filters{}, &FilterError{Token: "srt", Value: srt.Text, Err: fmt.Errorf("unknown sort field")}
		}
		f.SortField = srt.Text
	}
	if ord.Present {
		switch strings.ToLower(ord.Text) {
		case "asc":
			f.SortAscending = true
		case "desc":
			f.SortAscending = false
		default:
			return Filters{}, &FilterError{Token: "ord", Value: ord.Text, Err: fmt.Errorf("want asc or desc")}
		}
	}
	if act.Present {
		f.AccountTerm = act.Text
	}
	if cat.Present {
		low, high := CategoryBounds(cat.Number)
		f.CategoryLow = &low
		f.CategoryHigh = &high
	}
	if txn.Present {
		f.TransactionID = txn.Text
	}
	if dt.Present {
		from, to, err := ResolveTimeframe(dt.Text, now)
		if err != nil {
			return Filters{}, &FilterError{Token: "dt", Value: dt.Text, Err: err}
		}
		// explicit dtf/dtt always win; the phrase only fills the gaps
		if f.DateFrom == nil {
			f.DateFrom = &from
		}
		if f.DateTo == nil {
			f.DateTo = &to
		}
	}

	f.MatchTerm = wildcardTerm(rest)
	return f, nil
}

// wildcardTerm suffixes every residual word with the FTS prefix marker. Words
// still containing a colon are structured fragments the grammar did not
// recognize; they pass through untouched.
func wildcardTerm(residual string) string {
	words := strings.Fields(residual)
	for i, w := range words {
		if !strings.Contains(w, ":") {
			words[i] = w + "*"
		}
	}
	return strings.Join(words, " ")
}
