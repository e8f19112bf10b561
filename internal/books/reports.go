package books

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/report"
)

// ComputeBalance returns the nature-signed balance of an account over
// from..to inclusive, or its lifetime balance up to to when from is nil.
func (s *Service) ComputeBalance(ctx context.Context, companyID, accountID string, from *time.Time, to time.Time) (*ledger.Balance, error) {
	if err := checkPeriod(from, to); err != nil {
		return nil, err
	}
	acct, err := s.GetAccount(ctx, companyID, accountID)
	if err != nil {
		return nil, err
	}
	totals, err := s.store.AccountTotals(ctx, accountID, from, to)
	if err != nil {
		return nil, err
	}
	b := report.AccountBalance(*acct, totals, from, to)
	return &b, nil
}

func (s *Service) TrialBalance(ctx context.Context, companyID string, from, to time.Time) (*ledger.TrialBalance, error) {
	if err := checkPeriod(&from, to); err != nil {
		return nil, err
	}
	chart, err := s.store.Chart(ctx, companyID)
	if err != nil {
		return nil, err
	}
	opening, err := s.store.CompanyTotals(ctx, companyID, nil, dayBefore(from))
	if err != nil {
		return nil, err
	}
	period, err := s.store.CompanyTotals(ctx, companyID, &from, to)
	if err != nil {
		return nil, err
	}

	tb := report.TrialBalance(companyID, chart.Accounts(), report.Index(opening), report.Index(period), from, to)
	s.logWarnings("trial balance", companyID, tb.Warnings)
	return tb, nil
}

func (s *Service) IncomeStatement(ctx context.Context, companyID string, from, to time.Time) (*ledger.IncomeStatement, error) {
	if err := checkPeriod(&from, to); err != nil {
		return nil, err
	}
	chart, err := s.store.Chart(ctx, companyID)
	if err != nil {
		return nil, err
	}
	period, err := s.store.CompanyTotals(ctx, companyID, &from, to)
	if err != nil {
		return nil, err
	}
	return report.IncomeStatement(companyID, chart.Accounts(), report.Index(period), from, to), nil
}

func (s *Service) BalanceSheet(ctx context.Context, companyID string, asOf time.Time) (*ledger.BalanceSheet, error) {
	chart, err := s.store.Chart(ctx, companyID)
	if err != nil {
		return nil, err
	}
	cumulative, err := s.store.CompanyTotals(ctx, companyID, nil, asOf)
	if err != nil {
		return nil, err
	}
	bs := report.BalanceSheet(companyID, chart.Accounts(), report.Index(cumulative), asOf)
	s.logWarnings("balance sheet", companyID, bs.Warnings)
	return bs, nil
}

func (s *Service) GeneralLedger(ctx context.Context, companyID, accountID string, from, to time.Time) (*ledger.GeneralLedger, error) {
	if err := checkPeriod(&from, to); err != nil {
		return nil, err
	}
	acct, err := s.GetAccount(ctx, companyID, accountID)
	if err != nil {
		return nil, err
	}
	opening, err := s.store.AccountTotals(ctx, accountID, nil, dayBefore(from))
	if err != nil {
		return nil, err
	}
	moves, err := s.store.Movements(ctx, acct.CompanyID, []string{accountID}, from, to)
	if err != nil {
		return nil, err
	}
	return report.GeneralLedger(*acct, opening, moves, from, to), nil
}

// CashFlow classifies cash movements of the period. The result is a best
// effort: classification relies on the configured Classifier.
func (s *Service) CashFlow(ctx context.Context, companyID string, from, to time.Time) (*ledger.CashFlow, error) {
	if err := checkPeriod(&from, to); err != nil {
		return nil, err
	}
	chart, err := s.store.Chart(ctx, companyID)
	if err != nil {
		return nil, err
	}
	cash := report.CashAccounts(chart.Accounts(), s.opts.CashCodes)
	ids := make([]string, 0, len(cash))
	for _, a := range cash {
		ids = append(ids, a.ID)
	}

	opening, err := s.cashBalance(ctx, companyID, ids, dayBefore(from))
	if err != nil {
		return nil, err
	}
	closing, err := s.cashBalance(ctx, companyID, ids, to)
	if err != nil {
		return nil, err
	}
	moves, err := s.store.Movements(ctx, companyID, ids, from, to)
	if err != nil {
		return nil, err
	}

	cf := report.CashFlow(companyID, cash, moves, opening, closing, s.opts.Classifier, from, to)
	s.logWarnings("cash flow", companyID, cf.Warnings)
	return cf, nil
}

func (s *Service) cashBalance(ctx context.Context, companyID string, ids []string, asOf time.Time) (decimal.Decimal, error) {
	totals, err := s.store.CompanyTotals(ctx, companyID, nil, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	sum := decimal.Zero
	for _, t := range totals {
		if want[t.AccountID] {
			sum = sum.Add(t.Debit).Sub(t.Credit)
		}
	}
	return sum, nil
}

func (s *Service) logWarnings(reportName, companyID string, warnings []ledger.ReconciliationWarning) {
	for _, w := range warnings {
		s.log.Warn("report does not reconcile",
			zap.String("report", reportName),
			zap.String("company_id", companyID),
			zap.String("section", w.Section),
			zap.String("difference", w.Difference.StringFixed(2)),
		)
	}
}

func checkPeriod(from *time.Time, to time.Time) error {
	if to.IsZero() {
		return &ledger.ValidationError{Problems: []string{"end date is required"}}
	}
	if from != nil && from.After(to) {
		return &ledger.ValidationError{Problems: []string{"start date is after end date"}}
	}
	return nil
}

func dayBefore(t time.Time) time.Time {
	return t.AddDate(0, 0, -1)
}
