// Package report turns posted movement totals into balances and
// statements. It does no I/O: the store supplies the sums and movements.
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/ledgerd/internal/ledger"
)

// Now is overridable in tests.
var Now = func() time.Time { return time.Now().UTC() }

// AccountBalance applies the nature sign convention to raw totals.
func AccountBalance(acct ledger.Account, totals ledger.AccountTotals, from *time.Time, to time.Time) ledger.Balance {
	return ledger.Balance{
		AccountID: acct.ID,
		Type:      acct.Type,
		From:      from,
		To:        to,
		Debit:     totals.Debit,
		Credit:    totals.Credit,
		Balance:   ledger.SignedBalance(acct.Type, totals.Debit, totals.Credit),
	}
}

// TrialBalance builds one row per account with an opening balance or
// period movement. opening holds totals dated before from; period holds
// totals dated from..to inclusive. Opening and closing nets are shown in
// the debit or credit column by sign.
func TrialBalance(companyID string, accounts []ledger.Account, opening, period map[string]ledger.AccountTotals, from, to time.Time) *ledger.TrialBalance {
	tb := &ledger.TrialBalance{
		CompanyID:   companyID,
		From:        from,
		To:          to,
		GeneratedAt: Now(),
	}
	tot := &tb.Totals
	tot.Name = "TOTALS"

	for _, a := range accounts {
		o, hasOpening := opening[a.ID]
		p, hasPeriod := period[a.ID]
		openNet := o.Debit.Sub(o.Credit)
		if (!hasOpening || openNet.IsZero()) && (!hasPeriod || (p.Debit.IsZero() && p.Credit.IsZero())) {
			continue
		}

		row := ledger.TrialBalanceRow{
			AccountID:    a.ID,
			Code:         a.Code,
			Name:         a.Name,
			Type:         a.Type,
			Level:        a.Level,
			PeriodDebit:  p.Debit,
			PeriodCredit: p.Credit,
		}
		row.OpeningDebit, row.OpeningCredit = split(openNet)
		row.ClosingDebit, row.ClosingCredit = split(openNet.Add(p.Debit).Sub(p.Credit))
		tb.Rows = append(tb.Rows, row)

		tot.OpeningDebit = tot.OpeningDebit.Add(row.OpeningDebit)
		tot.OpeningCredit = tot.OpeningCredit.Add(row.OpeningCredit)
		tot.PeriodDebit = tot.PeriodDebit.Add(row.PeriodDebit)
		tot.PeriodCredit = tot.PeriodCredit.Add(row.PeriodCredit)
		tot.ClosingDebit = tot.ClosingDebit.Add(row.ClosingDebit)
		tot.ClosingCredit = tot.ClosingCredit.Add(row.ClosingCredit)
	}

	tb.Warnings = append(tb.Warnings, crossFoot("opening", tot.OpeningDebit, tot.OpeningCredit)...)
	tb.Warnings = append(tb.Warnings, crossFoot("period", tot.PeriodDebit, tot.PeriodCredit)...)
	tb.Warnings = append(tb.Warnings, crossFoot("closing", tot.ClosingDebit, tot.ClosingCredit)...)
	tb.Balanced = len(tb.Warnings) == 0
	return tb
}

// split places a debit-minus-credit net in the debit column when positive
// and in the credit column when negative.
func split(net decimal.Decimal) (debit, credit decimal.Decimal) {
	if net.IsNegative() {
		return decimal.Zero, net.Neg()
	}
	return net, decimal.Zero
}

func crossFoot(section string, debit, credit decimal.Decimal) []ledger.ReconciliationWarning {
	if ledger.NearlyEqual(debit, credit) {
		return nil
	}
	return []ledger.ReconciliationWarning{{
		Section:    section,
		Left:       debit,
		Right:      credit,
		Difference: debit.Sub(credit),
		Message: fmt.Sprintf("%s debits %s and credits %s do not cross-foot; an entry is unbalanced or was altered after posting",
			section, debit.StringFixed(2), credit.StringFixed(2)),
	}}
}

// Index keys a slice of totals by account id.
func Index(totals []ledger.AccountTotals) map[string]ledger.AccountTotals {
	m := make(map[string]ledger.AccountTotals, len(totals))
	for _, t := range totals {
		m[t.AccountID] = t
	}
	return m
}
