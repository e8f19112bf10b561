// Package client is a small HTTP client for the ledgerd API, used by the
// CLI when it talks to a running server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/ledgerd/internal/generator"
	"github.com/simonvc/ledgerd/internal/ledger"
)

const dateLayout = "2006-01-02"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int      `json:"-"`
	Message string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error (%d): %s: %s", e.Status, e.Message, strings.Join(e.Details, "; "))
}

type AccountInput struct {
	Code              string               `json:"code"`
	Name              string               `json:"name"`
	Type              ledger.AccountType   `json:"type"`
	ParentID          string               `json:"parent_id,omitempty"`
	ParentCode        string               `json:"parent_code,omitempty"`
	RequiresAuxiliary bool                 `json:"requires_auxiliary,omitempty"`
	AuxiliaryKind     ledger.AuxiliaryKind `json:"auxiliary_kind,omitempty"`
}

type EntryInput struct {
	Date        string        `json:"date"`
	Reference   string        `json:"reference,omitempty"`
	Description string        `json:"description,omitempty"`
	User        string        `json:"user,omitempty"`
	Post        bool          `json:"post,omitempty"`
	Lines       []ledger.Line `json:"lines"`
}

// SaleInput is the body of a sales document: a SaleDocument with a plain
// calendar date.
type SaleInput struct {
	ledger.SaleDocument
	Date     string `json:"date"`
	AutoPost *bool  `json:"auto_post,omitempty"`
	User     string `json:"user,omitempty"`
}

func companyPath(companyID string, parts ...string) string {
	p := "/api/v1/companies/" + url.PathEscape(companyID)
	for _, s := range parts {
		p += "/" + url.PathEscape(s)
	}
	return p
}

func (c *Client) CreateCompany(ctx context.Context, name, taxID string, seed bool) (*ledger.Company, error) {
	body := map[string]any{"name": name, "tax_id": taxID, "seed_chart": seed}
	var result ledger.Company
	if err := c.post(ctx, "/api/v1/companies", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListCompanies(ctx context.Context) ([]ledger.Company, error) {
	var result []ledger.Company
	if err := c.get(ctx, "/api/v1/companies", &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) CreateAccount(ctx context.Context, companyID string, in AccountInput) (*ledger.Account, error) {
	var result ledger.Account
	if err := c.post(ctx, companyPath(companyID, "accounts"), in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListAccounts(ctx context.Context, companyID string, typ ledger.AccountType, leafOnly bool) ([]ledger.Account, error) {
	params := url.Values{}
	if typ != "" {
		params.Set("type", string(typ))
	}
	if leafOnly {
		params.Set("leaf", "true")
	}
	var result []ledger.Account
	if err := c.get(ctx, withQuery(companyPath(companyID, "accounts"), params), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetAccount(ctx context.Context, companyID, id string) (*ledger.Account, error) {
	var result ledger.Account
	if err := c.get(ctx, companyPath(companyID, "accounts", id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) SeedChart(ctx context.Context, companyID string) ([]ledger.Account, error) {
	var result []ledger.Account
	if err := c.post(ctx, companyPath(companyID, "accounts", "seed"), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) MoveAccount(ctx context.Context, companyID, id, parentID string) ([]ledger.Account, error) {
	var result []ledger.Account
	err := c.send(ctx, http.MethodPatch, companyPath(companyID, "accounts", id, "parent"), map[string]string{"parent_id": parentID}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) DeleteAccount(ctx context.Context, companyID, id string) error {
	return c.send(ctx, http.MethodDelete, companyPath(companyID, "accounts", id), nil, nil)
}

func (c *Client) AccountBalance(ctx context.Context, companyID, id string, from *time.Time, to time.Time) (*ledger.Balance, error) {
	params := url.Values{"to": {to.Format(dateLayout)}}
	if from != nil {
		params.Set("from", from.Format(dateLayout))
	}
	var result ledger.Balance
	if err := c.get(ctx, withQuery(companyPath(companyID, "accounts", id, "balance"), params), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GeneralLedger(ctx context.Context, companyID, id string, from, to time.Time) (*ledger.GeneralLedger, error) {
	var result ledger.GeneralLedger
	if err := c.get(ctx, withQuery(companyPath(companyID, "accounts", id, "ledger"), periodQuery(from, to)), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CreateEntry(ctx context.Context, companyID string, in EntryInput) (*ledger.Entry, error) {
	var result ledger.Entry
	if err := c.post(ctx, companyPath(companyID, "entries"), in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListEntries(ctx context.Context, companyID string, state ledger.EntryState, limit int) ([]ledger.Entry, error) {
	params := url.Values{}
	if state != "" {
		params.Set("state", string(state))
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}
	var result []ledger.Entry
	if err := c.get(ctx, withQuery(companyPath(companyID, "entries"), params), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetEntry(ctx context.Context, companyID, id string) (*ledger.Entry, error) {
	var result ledger.Entry
	if err := c.get(ctx, companyPath(companyID, "entries", id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) PostEntry(ctx context.Context, companyID, id, user string) (*ledger.Entry, error) {
	var result ledger.Entry
	if err := c.post(ctx, companyPath(companyID, "entries", id, "post"), map[string]string{"user": user}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelEntry returns the reversing entry.
func (c *Client) CancelEntry(ctx context.Context, companyID, id, user string) (*ledger.Entry, error) {
	var result ledger.Entry
	if err := c.post(ctx, companyPath(companyID, "entries", id, "cancel"), map[string]string{"user": user}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GenerateFromSale(ctx context.Context, companyID string, in SaleInput) (*generator.Result, error) {
	var result generator.Result
	if err := c.post(ctx, companyPath(companyID, "documents", "sales"), in, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) SetTaxMapping(ctx context.Context, companyID, rate, accountID, retentionAccountID string) (*ledger.TaxMapping, error) {
	body := map[string]string{"account_id": accountID, "retention_account_id": retentionAccountID}
	var result ledger.TaxMapping
	if err := c.send(ctx, http.MethodPut, companyPath(companyID, "tax-mappings", rate), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) SetAccountDefault(ctx context.Context, companyID string, purpose ledger.Purpose, accountID string) (*ledger.AccountDefault, error) {
	var result ledger.AccountDefault
	err := c.send(ctx, http.MethodPut, companyPath(companyID, "account-defaults", string(purpose)), map[string]string{"account_id": accountID}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Resolution is the account generation would use for a purpose, and the
// resolver tier that supplied it.
type Resolution struct {
	Purpose ledger.Purpose   `json:"purpose"`
	Rate    *decimal.Decimal `json:"rate,omitempty"`
	Tier    string           `json:"tier"`
	Account ledger.Account   `json:"account"`
}

// ResolveAccount leaves rate empty for purposes that are not keyed by one.
func (c *Client) ResolveAccount(ctx context.Context, companyID string, purpose ledger.Purpose, rate string) (*Resolution, error) {
	q := url.Values{"purpose": {string(purpose)}}
	if rate != "" {
		q.Set("rate", rate)
	}
	var result Resolution
	if err := c.get(ctx, withQuery(companyPath(companyID, "resolve"), q), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) TrialBalance(ctx context.Context, companyID string, from, to time.Time) (*ledger.TrialBalance, error) {
	var result ledger.TrialBalance
	if err := c.get(ctx, withQuery(companyPath(companyID, "reports", "trial-balance"), periodQuery(from, to)), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) IncomeStatement(ctx context.Context, companyID string, from, to time.Time) (*ledger.IncomeStatement, error) {
	var result ledger.IncomeStatement
	if err := c.get(ctx, withQuery(companyPath(companyID, "reports", "income-statement"), periodQuery(from, to)), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) BalanceSheet(ctx context.Context, companyID string, asOf time.Time) (*ledger.BalanceSheet, error) {
	params := url.Values{"as_of": {asOf.Format(dateLayout)}}
	var result ledger.BalanceSheet
	if err := c.get(ctx, withQuery(companyPath(companyID, "reports", "balance-sheet"), params), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CashFlow(ctx context.Context, companyID string, from, to time.Time) (*ledger.CashFlow, error) {
	var result ledger.CashFlow
	if err := c.get(ctx, withQuery(companyPath(companyID, "reports", "cash-flow"), periodQuery(from, to)), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ping checks that the server is up and its database reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}

func periodQuery(from, to time.Time) url.Values {
	return url.Values{"from": {from.Format(dateLayout)}, "to": {to.Format(dateLayout)}}
}

func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.send(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	return c.send(ctx, http.MethodPost, path, body, result)
}

func (c *Client) send(ctx context.Context, method, path string, body, result any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doRequest(req, result)
}

func (c *Client) doRequest(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(bodyBytes, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(bodyBytes))
		}
		return apiErr
	}

	if result != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
