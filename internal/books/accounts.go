package books

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/store"
)

func (s *Service) CreateCompany(ctx context.Context, c *ledger.Company, seed bool) error {
	if err := s.store.CreateCompany(ctx, c); err != nil {
		return err
	}
	s.log.Info("company created", zap.String("company_id", c.ID), zap.String("name", c.Name))
	if !seed {
		return nil
	}
	_, err := s.SeedChart(ctx, c.ID)
	return err
}

func (s *Service) GetCompany(ctx context.Context, id string) (*ledger.Company, error) {
	return s.store.GetCompany(ctx, id)
}

func (s *Service) ListCompanies(ctx context.Context) ([]ledger.Company, error) {
	return s.store.ListCompanies(ctx)
}

func (s *Service) Chart(ctx context.Context, companyID string) (*ledger.Chart, error) {
	return s.store.Chart(ctx, companyID)
}

func (s *Service) SeedChart(ctx context.Context, companyID string) ([]ledger.Account, error) {
	created, err := s.store.SeedChart(ctx, companyID)
	if err != nil {
		return nil, err
	}
	s.log.Info("chart seeded", zap.String("company_id", companyID), zap.Int("created", len(created)))
	return created, nil
}

func (s *Service) CreateAccount(ctx context.Context, acct *ledger.Account) error {
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return err
	}
	s.log.Info("account created",
		zap.String("company_id", acct.CompanyID),
		zap.String("account_id", acct.ID),
		zap.String("code", acct.Code),
		zap.Int("level", acct.Level),
	)
	return nil
}

func (s *Service) GetAccount(ctx context.Context, companyID, id string) (*ledger.Account, error) {
	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if companyID != "" && acct.CompanyID != companyID {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, id)
	}
	return acct, nil
}

func (s *Service) GetAccountByCode(ctx context.Context, companyID, code string) (*ledger.Account, error) {
	return s.store.GetAccountByCode(ctx, companyID, code)
}

func (s *Service) ListAccounts(ctx context.Context, filter store.AccountFilter) ([]ledger.Account, error) {
	return s.store.ListAccounts(ctx, filter)
}

// MoveAccount reparents an account and returns the accounts whose level or
// leaf flag changed.
func (s *Service) MoveAccount(ctx context.Context, companyID, id, newParentID string) ([]ledger.Account, error) {
	if _, err := s.GetAccount(ctx, companyID, id); err != nil {
		return nil, err
	}
	changed, err := s.store.MoveAccount(ctx, id, newParentID)
	if err != nil {
		return nil, err
	}
	s.log.Info("account moved",
		zap.String("account_id", id),
		zap.String("parent_id", newParentID),
		zap.Int("changed", len(changed)),
	)
	return changed, nil
}

func (s *Service) DeleteAccount(ctx context.Context, companyID, id string) error {
	if _, err := s.GetAccount(ctx, companyID, id); err != nil {
		return err
	}
	return s.store.DeleteAccount(ctx, id)
}

// SetTaxMapping routes a tax rate to a payable leaf account and optionally
// a VAT-retention receivable leaf.
func (s *Service) SetTaxMapping(ctx context.Context, m *ledger.TaxMapping) error {
	chart, err := s.store.Chart(ctx, m.CompanyID)
	if err != nil {
		return err
	}
	verr := &ledger.ValidationError{}
	if m.Rate.IsNegative() {
		verr.Add("rate cannot be negative")
	}
	checkPurposeAccount(verr, chart, m.AccountID, ledger.PurposeTaxPayable)
	if m.RetentionAccountID != "" {
		checkPurposeAccount(verr, chart, m.RetentionAccountID, ledger.PurposeIVARetention)
	}
	if err := verr.Err(); err != nil {
		return err
	}
	return s.store.SetTaxMapping(ctx, m)
}

func (s *Service) SetAccountDefault(ctx context.Context, d ledger.AccountDefault) error {
	if !ledger.ValidPurpose(d.Purpose) {
		return &ledger.ValidationError{Problems: []string{fmt.Sprintf("unknown purpose %q", d.Purpose)}}
	}
	chart, err := s.store.Chart(ctx, d.CompanyID)
	if err != nil {
		return err
	}
	verr := &ledger.ValidationError{}
	checkPurposeAccount(verr, chart, d.AccountID, d.Purpose)
	if err := verr.Err(); err != nil {
		return err
	}
	return s.store.SetAccountDefault(ctx, d)
}

func (s *Service) TaxMappings(ctx context.Context, companyID string) ([]ledger.TaxMapping, error) {
	return s.store.ListTaxMappings(ctx, companyID)
}

func (s *Service) AccountDefaults(ctx context.Context, companyID string) ([]ledger.AccountDefault, error) {
	return s.store.ListAccountDefaults(ctx, companyID)
}

func checkPurposeAccount(verr *ledger.ValidationError, chart *ledger.Chart, id string, p ledger.Purpose) {
	acct, ok := chart.Get(id)
	switch {
	case !ok:
		verr.Add("account %s not found in company %s", id, chart.CompanyID())
	case !acct.AcceptsMovement:
		verr.Add("account %s does not accept movement", acct.Code)
	case acct.Type != p.AccountType():
		verr.Add("account %s is %s, %s needs %s", acct.Code, acct.Type, p, p.AccountType())
	}
}
