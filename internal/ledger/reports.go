package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountTotals is the raw debit and credit sum of posted lines on one
// account over some window.
type AccountTotals struct {
	AccountID string          `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// Movement is one posted line joined with its entry header.
type Movement struct {
	EntryID          string          `json:"entry_id"`
	EntryNumber      string          `json:"entry_number"`
	Date             time.Time       `json:"date"`
	Reference        string          `json:"reference,omitempty"`
	EntryDescription string          `json:"entry_description"`
	LineID           string          `json:"line_id"`
	LineDescription  string          `json:"line_description"`
	AccountID        string          `json:"account_id"`
	Debit            decimal.Decimal `json:"debit"`
	Credit           decimal.Decimal `json:"credit"`
}

type Balance struct {
	AccountID string          `json:"account_id"`
	Type      AccountType     `json:"type"`
	From      *time.Time      `json:"from,omitempty"`
	To        time.Time       `json:"to"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Balance   decimal.Decimal `json:"balance"`
}

// ReconciliationWarning flags totals that should agree but do not. It is
// a report condition, never an error.
type ReconciliationWarning struct {
	Section    string          `json:"section"`
	Left       decimal.Decimal `json:"left"`
	Right      decimal.Decimal `json:"right"`
	Difference decimal.Decimal `json:"difference"`
	Message    string          `json:"message"`
}

type TrialBalanceRow struct {
	AccountID     string          `json:"account_id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Type          AccountType     `json:"type"`
	Level         int             `json:"level"`
	OpeningDebit  decimal.Decimal `json:"opening_debit"`
	OpeningCredit decimal.Decimal `json:"opening_credit"`
	PeriodDebit   decimal.Decimal `json:"period_debit"`
	PeriodCredit  decimal.Decimal `json:"period_credit"`
	ClosingDebit  decimal.Decimal `json:"closing_debit"`
	ClosingCredit decimal.Decimal `json:"closing_credit"`
}

type TrialBalance struct {
	CompanyID   string                  `json:"company_id"`
	From        time.Time               `json:"from"`
	To          time.Time               `json:"to"`
	Rows        []TrialBalanceRow       `json:"rows"`
	Totals      TrialBalanceRow         `json:"totals"`
	Balanced    bool                    `json:"balanced"`
	Warnings    []ReconciliationWarning `json:"warnings,omitempty"`
	GeneratedAt time.Time               `json:"generated_at"`
}

type StatementLine struct {
	AccountID string          `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Level     int             `json:"level"`
	Amount    decimal.Decimal `json:"amount"`
}

type IncomeStatement struct {
	CompanyID     string          `json:"company_id"`
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Income        []StatementLine `json:"income"`
	Expenses      []StatementLine `json:"expenses"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetIncome     decimal.Decimal `json:"net_income"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

type BalanceSheet struct {
	CompanyID                 string                  `json:"company_id"`
	AsOf                      time.Time               `json:"as_of"`
	Assets                    []StatementLine         `json:"assets"`
	Liabilities               []StatementLine         `json:"liabilities"`
	Equity                    []StatementLine         `json:"equity"`
	TotalAssets               decimal.Decimal         `json:"total_assets"`
	TotalLiabilities          decimal.Decimal         `json:"total_liabilities"`
	TotalEquity               decimal.Decimal         `json:"total_equity"`
	CurrentEarnings           decimal.Decimal         `json:"current_earnings"`
	TotalLiabilitiesAndEquity decimal.Decimal         `json:"total_liabilities_and_equity"`
	Difference                decimal.Decimal         `json:"difference"`
	Balanced                  bool                    `json:"balanced"`
	Warnings                  []ReconciliationWarning `json:"warnings,omitempty"`
	GeneratedAt               time.Time               `json:"generated_at"`
}

type GeneralLedgerRow struct {
	EntryID     string          `json:"entry_id"`
	Number      string          `json:"number"`
	Date        time.Time       `json:"date"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

type GeneralLedger struct {
	AccountID   string             `json:"account_id"`
	Code        string             `json:"code"`
	Name        string             `json:"name"`
	Type        AccountType        `json:"type"`
	From        time.Time          `json:"from"`
	To          time.Time          `json:"to"`
	Opening     decimal.Decimal    `json:"opening"`
	Rows        []GeneralLedgerRow `json:"rows"`
	TotalDebit  decimal.Decimal    `json:"total_debit"`
	TotalCredit decimal.Decimal    `json:"total_credit"`
	Closing     decimal.Decimal    `json:"closing"`
}

type CashActivity string

const (
	ActivityOperating CashActivity = "operating"
	ActivityInvesting CashActivity = "investing"
	ActivityFinancing CashActivity = "financing"
)

var AllActivities = []CashActivity{ActivityOperating, ActivityInvesting, ActivityFinancing}

type CashFlowItem struct {
	EntryID     string          `json:"entry_id"`
	Number      string          `json:"number"`
	Date        time.Time       `json:"date"`
	AccountCode string          `json:"account_code"`
	Description string          `json:"description"`
	Inflow      decimal.Decimal `json:"inflow"`
	Outflow     decimal.Decimal `json:"outflow"`
}

type CashFlowSection struct {
	Activity CashActivity    `json:"activity"`
	Items    []CashFlowItem  `json:"items"`
	Inflows  decimal.Decimal `json:"inflows"`
	Outflows decimal.Decimal `json:"outflows"`
	Net      decimal.Decimal `json:"net"`
}

type CashFlow struct {
	CompanyID    string                  `json:"company_id"`
	From         time.Time               `json:"from"`
	To           time.Time               `json:"to"`
	CashAccounts []string                `json:"cash_accounts"`
	Opening      decimal.Decimal         `json:"opening"`
	Sections     []CashFlowSection       `json:"sections"`
	NetChange    decimal.Decimal         `json:"net_change"`
	Closing      decimal.Decimal         `json:"closing"`
	BestEffort   bool                    `json:"best_effort"`
	Classifier   string                  `json:"classifier"`
	Warnings     []ReconciliationWarning `json:"warnings,omitempty"`
	GeneratedAt  time.Time               `json:"generated_at"`
}
