package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/ledgerd/internal/ledger"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func tot(id, debit, credit string) ledger.AccountTotals {
	return ledger.AccountTotals{AccountID: id, Debit: d(debit), Credit: d(credit)}
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{"want %s got %s", want, got.StringFixed(2)}, msgAndArgs...)...)
}

var accounts = []ledger.Account{
	{ID: "cash", Code: "1.1.01.01", Name: "Cash", Type: ledger.TypeAsset, AcceptsMovement: true, AuxiliaryKind: ledger.AuxCash},
	{ID: "bank", Code: "1.1.01.02", Name: "Banks", Type: ledger.TypeAsset, AcceptsMovement: true, AuxiliaryKind: ledger.AuxBank},
	{ID: "ar", Code: "1.1.02.01", Name: "Clients", Type: ledger.TypeAsset, AcceptsMovement: true, AuxiliaryKind: ledger.AuxClient},
	{ID: "vat", Code: "2.1.01.01.03.01", Name: "VAT Payable 15%", Type: ledger.TypeLiability, AcceptsMovement: true},
	{ID: "capital", Code: "3.1.01", Name: "Share Capital", Type: ledger.TypeEquity, AcceptsMovement: true},
	{ID: "sales", Code: "4.1.01", Name: "Sales", Type: ledger.TypeIncome, AcceptsMovement: true},
	{ID: "rent", Code: "5.2.01", Name: "Rent", Type: ledger.TypeExpense, AcceptsMovement: true},
}

func TestAccountBalanceSignsByNature(t *testing.T) {
	to := day("2026-03-31")

	asset := AccountBalance(accounts[0], tot("cash", "500", "120"), nil, to)
	assertDec(t, "380", asset.Balance)

	income := AccountBalance(accounts[5], tot("sales", "10", "310"), nil, to)
	assertDec(t, "300", income.Balance)

	liab := AccountBalance(accounts[3], tot("vat", "50", "20"), nil, to)
	assertDec(t, "-30", liab.Balance, "debit-heavy liability goes negative")
}

func TestTrialBalanceColumns(t *testing.T) {
	from, to := day("2026-02-01"), day("2026-02-28")
	opening := Index([]ledger.AccountTotals{
		tot("cash", "1000", "0"),
		tot("capital", "0", "1000"),
	})
	period := Index([]ledger.AccountTotals{
		tot("cash", "0", "200"),
		tot("bank", "115", "0"),
		tot("rent", "200", "0"),
		tot("sales", "0", "100"),
		tot("vat", "0", "15"),
	})

	tb := TrialBalance("co1", accounts, opening, period, from, to)

	require.Len(t, tb.Rows, 6, "ar has no activity")
	assert.True(t, tb.Balanced)
	assert.Empty(t, tb.Warnings)

	byID := map[string]ledger.TrialBalanceRow{}
	for _, r := range tb.Rows {
		byID[r.AccountID] = r
	}

	cash := byID["cash"]
	assertDec(t, "1000", cash.OpeningDebit)
	assertDec(t, "200", cash.PeriodCredit)
	assertDec(t, "800", cash.ClosingDebit)
	assertDec(t, "0", cash.ClosingCredit)

	capital := byID["capital"]
	assertDec(t, "1000", capital.OpeningCredit)
	assertDec(t, "1000", capital.ClosingCredit)

	sales := byID["sales"]
	assertDec(t, "0", sales.OpeningDebit)
	assertDec(t, "100", sales.ClosingCredit)

	assertDec(t, "1000", tb.Totals.OpeningDebit)
	assertDec(t, "1000", tb.Totals.OpeningCredit)
	assertDec(t, "315", tb.Totals.PeriodDebit)
	assertDec(t, "315", tb.Totals.PeriodCredit)
	assertDec(t, "1115", tb.Totals.ClosingDebit)
	assertDec(t, "1115", tb.Totals.ClosingCredit)
}

func TestTrialBalanceFlagsBrokenCrossFoot(t *testing.T) {
	period := Index([]ledger.AccountTotals{
		tot("cash", "100", "0"),
		tot("sales", "0", "90"),
	})

	tb := TrialBalance("co1", accounts, nil, period, day("2026-01-01"), day("2026-01-31"))

	assert.False(t, tb.Balanced)
	require.Len(t, tb.Warnings, 2)
	assert.Equal(t, "period", tb.Warnings[0].Section)
	assertDec(t, "10", tb.Warnings[0].Difference)
	assert.Equal(t, "closing", tb.Warnings[1].Section)
}

func TestIncomeStatement(t *testing.T) {
	period := Index([]ledger.AccountTotals{
		tot("sales", "0", "1000"),
		tot("rent", "300", "0"),
		tot("cash", "1000", "300"),
	})

	is := IncomeStatement("co1", accounts, period, day("2026-01-01"), day("2026-12-31"))

	require.Len(t, is.Income, 1)
	require.Len(t, is.Expenses, 1)
	assertDec(t, "1000", is.TotalIncome)
	assertDec(t, "300", is.TotalExpenses)
	assertDec(t, "700", is.NetIncome)
}

func TestBalanceSheetIncludesCurrentEarnings(t *testing.T) {
	cumulative := Index([]ledger.AccountTotals{
		tot("cash", "1000", "200"),
		tot("bank", "115", "0"),
		tot("capital", "0", "1000"),
		tot("sales", "0", "100"),
		tot("vat", "0", "15"),
		tot("rent", "200", "0"),
	})

	bs := BalanceSheet("co1", accounts, cumulative, day("2026-02-28"))

	assertDec(t, "915", bs.TotalAssets)
	assertDec(t, "15", bs.TotalLiabilities)
	assertDec(t, "1000", bs.TotalEquity)
	assertDec(t, "-100", bs.CurrentEarnings)
	assertDec(t, "915", bs.TotalLiabilitiesAndEquity)
	assertDec(t, "0", bs.Difference)
	assert.True(t, bs.Balanced)
	assert.Empty(t, bs.Warnings)
}

func TestBalanceSheetReportsDifference(t *testing.T) {
	cumulative := Index([]ledger.AccountTotals{
		tot("cash", "100", "0"),
		tot("capital", "0", "90"),
	})

	bs := BalanceSheet("co1", accounts, cumulative, day("2026-02-28"))

	assert.False(t, bs.Balanced)
	assertDec(t, "10", bs.Difference)
	require.Len(t, bs.Warnings, 1)
	assert.Equal(t, "balance_sheet", bs.Warnings[0].Section)
}

func TestGeneralLedgerRunningBalance(t *testing.T) {
	moves := []ledger.Movement{
		{EntryID: "e1", EntryNumber: "000001", Date: day("2026-01-05"), EntryDescription: "Sale", AccountID: "vat", Credit: d("15"), Debit: decimal.Zero},
		{EntryID: "e2", EntryNumber: "000002", Date: day("2026-01-10"), EntryDescription: "Sale", LineDescription: "VAT 15%", AccountID: "vat", Credit: d("30"), Debit: decimal.Zero},
		{EntryID: "e3", EntryNumber: "000003", Date: day("2026-01-20"), EntryDescription: "VAT settlement", AccountID: "vat", Debit: d("20"), Credit: decimal.Zero},
	}

	gl := GeneralLedger(accounts[3], tot("vat", "0", "5"), moves, day("2026-01-01"), day("2026-01-31"))

	assertDec(t, "5", gl.Opening)
	require.Len(t, gl.Rows, 3)
	assertDec(t, "20", gl.Rows[0].Balance)
	assertDec(t, "50", gl.Rows[1].Balance)
	assertDec(t, "30", gl.Rows[2].Balance)
	assert.Equal(t, "VAT 15%", gl.Rows[1].Description)
	assert.Equal(t, "Sale", gl.Rows[0].Description)
	assertDec(t, "30", gl.Closing)
	assertDec(t, "20", gl.TotalDebit)
	assertDec(t, "45", gl.TotalCredit)
}

func TestKeywordClassifier(t *testing.T) {
	c := DefaultKeywordClassifier()

	tests := []struct {
		desc string
		want ledger.CashActivity
	}{
		{"Sale invoice #001 - Acme", ledger.ActivityOperating},
		{"Bank loan disbursement", ledger.ActivityFinancing},
		{"Purchase of equipment", ledger.ActivityInvesting},
		{"Pago de préstamo bancario", ledger.ActivityFinancing},
		{"Compra de maquinaria", ledger.ActivityInvesting},
		{"Something unrecognised", ledger.ActivityOperating},
		{"Loan to buy equipment", ledger.ActivityFinancing},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(ledger.Movement{EntryDescription: tt.desc}))
		})
	}
}

func TestCashFlow(t *testing.T) {
	cash := CashAccounts(accounts, nil)
	require.Len(t, cash, 2)

	moves := []ledger.Movement{
		{EntryID: "e1", EntryDescription: "Sale invoice #1", AccountID: "bank", Debit: d("115"), Credit: decimal.Zero},
		{EntryID: "e2", EntryDescription: "Rent payment", AccountID: "cash", Debit: decimal.Zero, Credit: d("200")},
		{EntryID: "e3", EntryDescription: "Capital contribution from shareholder", AccountID: "bank", Debit: d("500"), Credit: decimal.Zero},
		{EntryID: "e4", EntryDescription: "Equipment purchase", AccountID: "bank", Debit: decimal.Zero, Credit: d("300")},
		{EntryID: "e5", EntryDescription: "Sale on credit", AccountID: "ar", Debit: d("50"), Credit: decimal.Zero},
	}

	cf := CashFlow("co1", cash, moves, d("1000"), d("1115"), DefaultKeywordClassifier(), day("2026-01-01"), day("2026-01-31"))

	assert.True(t, cf.BestEffort)
	assert.Equal(t, "keyword", cf.Classifier)
	assert.Equal(t, []string{"1.1.01.01", "1.1.01.02"}, cf.CashAccounts)
	require.Len(t, cf.Sections, 3)

	op, inv, fin := cf.Sections[0], cf.Sections[1], cf.Sections[2]
	assert.Equal(t, ledger.ActivityOperating, op.Activity)
	assertDec(t, "-85", op.Net)
	assertDec(t, "-300", inv.Net)
	assertDec(t, "500", fin.Net)
	assert.Len(t, op.Items, 2, "receivable movement is not cash")

	assertDec(t, "115", cf.NetChange)
	assertDec(t, "1115", cf.Closing)
	assert.Empty(t, cf.Warnings)
}

func TestCashFlowWarnsOnGap(t *testing.T) {
	cash := CashAccounts(accounts, []string{"1.1.02.01"})
	require.Len(t, cash, 3)

	cf := CashFlow("co1", cash, nil, d("100"), d("90"), DefaultKeywordClassifier(), day("2026-01-01"), day("2026-01-31"))

	require.Len(t, cf.Warnings, 1)
	assertDec(t, "10", cf.Warnings[0].Difference)
}
