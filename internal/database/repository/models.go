package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a stored transaction row. Facts are immutable once
// ingested; only the category fields change, via explicit reassignment.
type Transaction struct {
	TransactionID string
	AccountID     string
	Currency      string
	PostDate      time.Time
	AuthDate      *time.Time
	Channel       string
	Amount        decimal.Decimal
	Subtype       string
	Merchant      *string
	MerchantID    *string
	CategoryID    int
	CategoryPath  string
	RawText       string
}

// Account represents an account row, refreshed from the aggregation source.
type Account struct {
	AccountID     string
	Name          string
	OfficialName  string
	Subtype       string
	InstitutionID string
	ItemID        string
}

// Category is a node in the source-supplied hierarchy. Path is the
// root-to-leaf label list joined with commas.
type Category struct {
	ID      int
	Path    string
	IconURL string
}

// Ingest is an audit record for one sync batch.
type Ingest struct {
	ID         string
	ItemID     string
	Added      int
	Skipped    int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}
