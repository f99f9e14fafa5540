package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Item is one linked institution login: the access token gating its data and
// the sync cursor marking how far ingestion has progressed.
type Item struct {
	ItemID      string `json:"item_id"`
	AccessToken string `json:"access_token"`
	Cursor      string `json:"cursor,omitempty"`
}

type Account struct {
	AccountID    string `json:"account_id"`
	Name         string `json:"name"`
	OfficialName string `json:"official_name"`
	Subtype      string `json:"subtype"`
}

type Institution struct {
	InstitutionID string `json:"institution_id"`
	Name          string `json:"name"`
	Logo          string `json:"logo"`
	URL           string `json:"url"`
}

type Transaction struct {
	TransactionID    string          `json:"transaction_id"`
	AccountID        string          `json:"account_id"`
	ISOCurrencyCode  string          `json:"iso_currency_code"`
	Date             string          `json:"date"`
	AuthorizedDate   string          `json:"authorized_date"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentChannel   string          `json:"payment_channel"`
	TransactionType  string          `json:"transaction_type"`
	Name             string          `json:"name"`
	MerchantName     string          `json:"merchant_name"`
	MerchantEntityID string          `json:"merchant_entity_id"`
	LogoURL          string          `json:"logo_url"`
	Website          string          `json:"website"`
	CategoryID       string          `json:"category_id"`
	Category         []string        `json:"category"`
	CategoryIconURL  string          `json:"personal_finance_category_icon_url"`
}

// SourceCategoryID parses the provider's category id. Absent or non-numeric
// ids come back as 0.
func (t Transaction) SourceCategoryID() int {
	id, err := strconv.Atoi(t.CategoryID)
	if err != nil {
		return 0
	}
	return id
}

// Client is a minimal JSON-over-POST client for the transaction provider's
// API. BaseURL overrides the environment-derived endpoint in tests.
type Client struct {
	ClientID    string
	Secret      string
	UserID      string
	Environment string
	BaseURL     string

	HTTPClient *http.Client
	Log        zerolog.Logger
}

func New(clientID, secret, userID, environment string, log zerolog.Logger) *Client {
	return &Client{
		ClientID:    clientID,
		Secret:      secret,
		UserID:      userID,
		Environment: environment,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		Log:         log,
	}
}

func (c *Client) endpoint(path string) string {
	if c.BaseURL != "" {
		return c.BaseURL + path
	}
	return fmt.Sprintf("https://%s.plaid.com%s", c.Environment, path)
}

func (c *Client) post(ctx context.Context, path string, body map[string]any, out any) error {
	payload := map[string]any{
		"client_id": c.ClientID,
		"secret":    c.Secret,
	}
	for k, v := range body {
		payload[k] = v
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("post %s: decode: %w", path, err)
	}
	return nil
}

// GetAccounts lists the item's accounts and resolves its institution. The
// institution may be nil when the item carries no institution id.
func (c *Client) GetAccounts(ctx context.Context, item *Item) ([]Account, *Institution, error) {
	var result struct {
		Accounts []Account `json:"accounts"`
		Item     struct {
			InstitutionID string `json:"institution_id"`
		} `json:"item"`
	}
	err := c.post(ctx, "/accounts/get", map[string]any{"access_token": item.AccessToken}, &result)
	if err != nil {
		return nil, nil, err
	}
	if result.Item.InstitutionID == "" {
		return result.Accounts, nil, nil
	}
	inst, err := c.GetInstitutionByID(ctx, result.Item.InstitutionID)
	if err != nil {
		return nil, nil, err
	}
	return result.Accounts, inst, nil
}

func (c *Client) GetInstitutionByID(ctx context.Context, id string) (*Institution, error) {
	var result struct {
		Institution Institution `json:"institution"`
	}
	body := map[string]any{
		"institution_id": id,
		"country_codes":  []string{"US", "GB"},
		"options":        map[string]any{"include_optional_metadata": true},
	}
	if err := c.post(ctx, "/institutions/get_by_id", body, &result); err != nil {
		return nil, err
	}
	return &result.Institution, nil
}

// GetTransactions pulls every page of changes past the item's cursor and
// advances the cursor in place. The caller persists the updated cursor after
// the rows are stored.
func (c *Client) GetTransactions(ctx context.Context, item *Item) ([]Transaction, error) {
	var all []Transaction
	for {
		body := map[string]any{
			"access_token": item.AccessToken,
			"count":        500,
		}
		if item.Cursor != "" {
			body["cursor"] = item.Cursor
		}
		var result struct {
			Added      []Transaction `json:"added"`
			NextCursor string        `json:"next_cursor"`
			HasMore    bool          `json:"has_more"`
		}
		if err := c.post(ctx, "/transactions/sync", body, &result); err != nil {
			return nil, err
		}
		all = append(all, result.Added...)
		item.Cursor = result.NextCursor
		if !result.HasMore {
			break
		}
	}
	return all, nil
}

// GetLinkToken creates a link token for the interactive account-linking flow.
// A non-empty item scopes the token to re-authenticating that item.
func (c *Client) GetLinkToken(ctx context.Context, item *Item) (string, error) {
	body := map[string]any{
		"client_name":   "txnql",
		"language":      "en",
		"country_codes": []string{"US", "GB"},
		"user":          map[string]any{"client_user_id": c.UserID},
		"products":      []string{"transactions"},
	}
	if item != nil && item.AccessToken != "" {
		body["access_token"] = item.AccessToken
		delete(body, "products")
	}
	var result struct {
		LinkToken string `json:"link_token"`
	}
	if err := c.post(ctx, "/link/token/create", body, &result); err != nil {
		return "", err
	}
	return result.LinkToken, nil
}

// ExchangePublicToken trades the token produced by a completed link flow for
// a durable access token and its item id.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*Item, error) {
	var result struct {
		AccessToken string `json:"access_token"`
		ItemID      string `json:"item_id"`
	}
	body := map[string]any{"public_token": publicToken}
	if err := c.post(ctx, "/item/public_token/exchange", body, &result); err != nil {
		return nil, err
	}
	return &Item{ItemID: result.ItemID, AccessToken: result.AccessToken}, nil
}
