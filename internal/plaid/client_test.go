package plaid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New("cid", "sec", "uid", "sandbox", zerolog.Nop())
	c.BaseURL = srv.URL
	return c
}

func TestPostInjectsCredentials(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{}`))
	}))

	var out struct{}
	require.NoError(t, c.post(context.Background(), "/any", map[string]any{"k": "v"}, &out))
	require.Equal(t, "cid", got["client_id"])
	require.Equal(t, "sec", got["secret"])
	require.Equal(t, "v", got["k"])
}

func TestPostSurfacesErrorStatus(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error_code":"INVALID_ACCESS_TOKEN"}`, http.StatusBadRequest)
	}))

	var out struct{}
	err := c.post(context.Background(), "/any", nil, &out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 400")
	require.Contains(t, err.Error(), "INVALID_ACCESS_TOKEN")
}

func TestGetTransactionsFollowsCursor(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Cursor string `json:"cursor"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		resp := map[string]any{"next_cursor": "c2", "has_more": true, "added": []map[string]any{
			{"transaction_id": "t1", "amount": 1.25},
		}}
		if body.Cursor == "c2" {
			resp = map[string]any{"next_cursor": "c3", "has_more": false, "added": []map[string]any{
				{"transaction_id": "t2", "amount": 2},
			}}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))

	item := &Item{ItemID: "item-1", AccessToken: "tok"}
	txns, err := c.GetTransactions(context.Background(), item)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	require.Equal(t, "t1", txns[0].TransactionID)
	require.True(t, txns[0].Amount.Equal(decimal.NewFromFloat(1.25)))
	require.Equal(t, "c3", item.Cursor)
}

func TestSourceCategoryID(t *testing.T) {
	t.Parallel()

	require.Equal(t, 13005000, Transaction{CategoryID: "13005000"}.SourceCategoryID())
	require.Equal(t, 0, Transaction{CategoryID: ""}.SourceCategoryID())
	require.Equal(t, 0, Transaction{CategoryID: "n/a"}.SourceCategoryID())
}
