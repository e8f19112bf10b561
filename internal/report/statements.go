package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/ledgerd/internal/ledger"
)

// IncomeStatement lists income and expense accounts with movement in the
// period. Net income is income less expenses.
func IncomeStatement(companyID string, accounts []ledger.Account, period map[string]ledger.AccountTotals, from, to time.Time) *ledger.IncomeStatement {
	is := &ledger.IncomeStatement{
		CompanyID:     companyID,
		From:          from,
		To:            to,
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
		GeneratedAt:   Now(),
	}

	for _, a := range accounts {
		if a.Type != ledger.TypeIncome && a.Type != ledger.TypeExpense {
			continue
		}
		t, ok := period[a.ID]
		if !ok {
			continue
		}
		amt := ledger.SignedBalance(a.Type, t.Debit, t.Credit)
		if amt.IsZero() {
			continue
		}
		line := statementLine(a, amt)
		if a.Type == ledger.TypeIncome {
			is.Income = append(is.Income, line)
			is.TotalIncome = is.TotalIncome.Add(amt)
		} else {
			is.Expenses = append(is.Expenses, line)
			is.TotalExpenses = is.TotalExpenses.Add(amt)
		}
	}

	is.NetIncome = is.TotalIncome.Sub(is.TotalExpenses)
	return is
}

// BalanceSheet arranges cumulative totals up to asOf. Income and expense
// accounts are not closed into equity, so their net shows as current
// earnings on the liabilities and equity side.
func BalanceSheet(companyID string, accounts []ledger.Account, cumulative map[string]ledger.AccountTotals, asOf time.Time) *ledger.BalanceSheet {
	bs := &ledger.BalanceSheet{
		CompanyID:        companyID,
		AsOf:             asOf,
		TotalAssets:      decimal.Zero,
		TotalLiabilities: decimal.Zero,
		TotalEquity:      decimal.Zero,
		CurrentEarnings:  decimal.Zero,
		GeneratedAt:      Now(),
	}

	for _, a := range accounts {
		t, ok := cumulative[a.ID]
		if !ok {
			continue
		}
		amt := ledger.SignedBalance(a.Type, t.Debit, t.Credit)
		if amt.IsZero() {
			continue
		}
		switch a.Type {
		case ledger.TypeAsset:
			bs.Assets = append(bs.Assets, statementLine(a, amt))
			bs.TotalAssets = bs.TotalAssets.Add(amt)
		case ledger.TypeLiability:
			bs.Liabilities = append(bs.Liabilities, statementLine(a, amt))
			bs.TotalLiabilities = bs.TotalLiabilities.Add(amt)
		case ledger.TypeEquity:
			bs.Equity = append(bs.Equity, statementLine(a, amt))
			bs.TotalEquity = bs.TotalEquity.Add(amt)
		case ledger.TypeIncome:
			bs.CurrentEarnings = bs.CurrentEarnings.Add(amt)
		case ledger.TypeExpense:
			bs.CurrentEarnings = bs.CurrentEarnings.Sub(amt)
		}
	}

	bs.TotalLiabilitiesAndEquity = bs.TotalLiabilities.Add(bs.TotalEquity).Add(bs.CurrentEarnings)
	bs.Difference = bs.TotalAssets.Sub(bs.TotalLiabilitiesAndEquity)
	bs.Balanced = ledger.NearlyEqual(bs.TotalAssets, bs.TotalLiabilitiesAndEquity)
	if !bs.Balanced {
		bs.Warnings = append(bs.Warnings, ledger.ReconciliationWarning{
			Section:    "balance_sheet",
			Left:       bs.TotalAssets,
			Right:      bs.TotalLiabilitiesAndEquity,
			Difference: bs.Difference,
			Message: fmt.Sprintf("assets %s differ from liabilities, equity and earnings %s",
				bs.TotalAssets.StringFixed(2), bs.TotalLiabilitiesAndEquity.StringFixed(2)),
		})
	}
	return bs
}

// GeneralLedger lists the account's movements in date order with a
// running balance signed by the account's nature.
func GeneralLedger(acct ledger.Account, opening ledger.AccountTotals, movements []ledger.Movement, from, to time.Time) *ledger.GeneralLedger {
	gl := &ledger.GeneralLedger{
		AccountID:   acct.ID,
		Code:        acct.Code,
		Name:        acct.Name,
		Type:        acct.Type,
		From:        from,
		To:          to,
		Opening:     ledger.SignedBalance(acct.Type, opening.Debit, opening.Credit),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}

	running := gl.Opening
	for _, m := range movements {
		running = running.Add(ledger.SignedBalance(acct.Type, m.Debit, m.Credit))
		desc := m.LineDescription
		if desc == "" {
			desc = m.EntryDescription
		}
		gl.Rows = append(gl.Rows, ledger.GeneralLedgerRow{
			EntryID:     m.EntryID,
			Number:      m.EntryNumber,
			Date:        m.Date,
			Reference:   m.Reference,
			Description: desc,
			Debit:       m.Debit,
			Credit:      m.Credit,
			Balance:     running,
		})
		gl.TotalDebit = gl.TotalDebit.Add(m.Debit)
		gl.TotalCredit = gl.TotalCredit.Add(m.Credit)
	}
	gl.Closing = running
	return gl
}

func statementLine(a ledger.Account, amt decimal.Decimal) ledger.StatementLine {
	return ledger.StatementLine{AccountID: a.ID, Code: a.Code, Name: a.Name, Level: a.Level, Amount: amt}
}
