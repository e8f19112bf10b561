package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/ledgerd/internal/books"
	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/server"
	"github.com/simonvc/ledgerd/internal/store"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv := httptest.NewServer(server.New(books.New(st, books.DefaultOptions(), nil), server.Options{}, nil).Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL + "/")
}

func day(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func TestRoundTrip(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	co, err := c.CreateCompany(ctx, "Comercial Andina", "0991234567001", true)
	require.NoError(t, err)

	bank, err := c.CreateAccount(ctx, co.ID, AccountInput{Code: "1.1.01.02.01", Name: "Banco Pichincha", Type: ledger.TypeAsset, ParentCode: "1.1.01.02"})
	require.NoError(t, err)
	assert.Equal(t, 5, bank.Level)

	leaves, err := c.ListAccounts(ctx, co.ID, ledger.TypeAsset, true)
	require.NoError(t, err)
	assert.NotEmpty(t, leaves)
	for _, a := range leaves {
		assert.True(t, a.AcceptsMovement)
		assert.Equal(t, ledger.TypeAsset, a.Type)
	}

	post := true
	res, err := c.GenerateFromSale(ctx, co.ID, SaleInput{
		SaleDocument: ledger.SaleDocument{
			ID:                  "42",
			Customer:            ledger.Customer{ID: "c1", Name: "ACME S.A."},
			SettlementAccountID: bank.ID,
			PaymentMethod:       ledger.PayTransfer,
			Subtotal:            decimal.NewFromInt(100),
			TaxAmount:           decimal.NewFromInt(15),
			Total:               decimal.NewFromInt(115),
			Lines:               []ledger.DocumentLine{{Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100), TaxRate: decimal.NewFromInt(15)}},
		},
		Date:     "2026-03-10",
		AutoPost: &post,
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, ledger.StatePosted, res.Entry.State)

	bal, err := c.AccountBalance(ctx, co.ID, bank.ID, nil, day("2026-03-31"))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(115).Equal(bal.Balance))

	tb, err := c.TrialBalance(ctx, co.ID, day("2026-03-01"), day("2026-03-31"))
	require.NoError(t, err)
	assert.True(t, tb.Balanced)

	rev, err := c.CancelEntry(ctx, co.ID, res.Entry.ID, "auditor")
	require.NoError(t, err)
	assert.Equal(t, res.Entry.ID, rev.ReversalOf)

	entries, err := c.ListEntries(ctx, co.ID, ledger.StatePosted, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the reversal is still posted")

	vat, err := c.ResolveAccount(ctx, co.ID, ledger.PurposeTaxPayable, "5")
	require.NoError(t, err)
	assert.Equal(t, "2.1.01.01.03.02", vat.Account.Code)
	assert.Equal(t, "global_default", vat.Tier)

	_, err = c.ResolveAccount(ctx, co.ID, ledger.PurposeTaxPayable, "8")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
}

func TestAPIError(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, err := c.GetEntry(ctx, "missing", "nope")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)

	co, err := c.CreateCompany(ctx, "Beta", "", false)
	require.NoError(t, err)
	_, err = c.CreateEntry(ctx, co.ID, EntryInput{Description: "no date"})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, []string{"date failed required"}, apiErr.Details)
	assert.Contains(t, apiErr.Error(), "date failed required")
}
