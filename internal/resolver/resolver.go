// Package resolver maps an abstract account need (company, purpose and an
// optional tax rate) to a concrete movement-accepting account.
//
// Lookups walk three tiers and stop at the first hit:
//
//  1. the company's own tax-rate mapping and purpose defaults
//  2. the global default code tables
//  3. a structural search over the company chart by code prefix and type
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simonvc/ledgerd/internal/ledger"
)

type Tier int

const (
	TierCompanyMapping Tier = iota + 1
	TierGlobalDefault
	TierStructural
)

func (t Tier) String() string {
	switch t {
	case TierCompanyMapping:
		return "company_mapping"
	case TierGlobalDefault:
		return "global_default"
	case TierStructural:
		return "structural"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Source supplies per-company configuration. Missing rows are reported as
// nil or "" with a nil error.
type Source interface {
	Chart(ctx context.Context, companyID string) (*ledger.Chart, error)
	TaxMapping(ctx context.Context, companyID string, rate decimal.Decimal) (*ledger.TaxMapping, error)
	AccountDefault(ctx context.Context, companyID string, purpose ledger.Purpose) (string, error)
}

type Need struct {
	CompanyID string
	Purpose   ledger.Purpose
	Rate      *decimal.Decimal
}

// ForRate is a convenience for needs keyed by a tax rate.
func ForRate(companyID string, purpose ledger.Purpose, rate decimal.Decimal) Need {
	return Need{CompanyID: companyID, Purpose: purpose, Rate: &rate}
}

func (n Need) String() string {
	if n.Rate != nil {
		return fmt.Sprintf("%s@%s%%", n.Purpose, n.Rate.String())
	}
	return string(n.Purpose)
}

type Resolution struct {
	Account ledger.Account
	Tier    Tier
}

type Resolver struct {
	src      Source
	defaults Defaults
	log      *zap.Logger
}

func New(src Source, defaults Defaults, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{src: src, defaults: defaults.normalized(), log: log.Named("resolver")}
}

// Resolve loads the company chart and resolves need against it.
func (r *Resolver) Resolve(ctx context.Context, need Need) (*Resolution, error) {
	chart, err := r.src.Chart(ctx, need.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("load chart: %w", err)
	}
	return r.ResolveIn(ctx, chart, need)
}

// ResolveIn resolves need against an already loaded chart.
func (r *Resolver) ResolveIn(ctx context.Context, chart *ledger.Chart, need Need) (*Resolution, error) {
	tiers := []struct {
		tier Tier
		fn   func(context.Context, *ledger.Chart, Need) (*ledger.Account, error)
	}{
		{TierCompanyMapping, r.companyMapping},
		{TierGlobalDefault, r.globalDefault},
		{TierStructural, r.structural},
	}

	for _, t := range tiers {
		acct, err := t.fn(ctx, chart, need)
		if err != nil {
			return nil, err
		}
		if acct != nil {
			r.log.Debug("account resolved",
				zap.String("company_id", need.CompanyID),
				zap.String("need", need.String()),
				zap.String("tier", t.tier.String()),
				zap.String("account_code", acct.Code),
			)
			return &Resolution{Account: *acct, Tier: t.tier}, nil
		}
	}

	return nil, &ledger.AccountNotConfiguredError{CompanyID: need.CompanyID, Purpose: need.Purpose, Rate: need.Rate}
}

func (r *Resolver) companyMapping(ctx context.Context, chart *ledger.Chart, need Need) (*ledger.Account, error) {
	var candidates []string

	if need.Rate != nil && (need.Purpose == ledger.PurposeTaxPayable || need.Purpose == ledger.PurposeIVARetention) {
		m, err := r.src.TaxMapping(ctx, need.CompanyID, *need.Rate)
		if err != nil {
			return nil, fmt.Errorf("tax mapping: %w", err)
		}
		if m != nil {
			if need.Purpose == ledger.PurposeTaxPayable {
				candidates = append(candidates, m.AccountID)
			} else {
				candidates = append(candidates, m.RetentionAccountID)
			}
		}
	}

	// A rate-specific payable is never answered by the generic default: the
	// default cannot know which rate it stands for.
	if need.Purpose != ledger.PurposeTaxPayable || need.Rate == nil {
		id, err := r.src.AccountDefault(ctx, need.CompanyID, need.Purpose)
		if err != nil {
			return nil, fmt.Errorf("account default: %w", err)
		}
		candidates = append(candidates, id)
	}

	for _, id := range candidates {
		if id == "" {
			continue
		}
		acct, ok := chart.Get(id)
		if !ok || !r.usable(acct, need) {
			r.log.Warn("configured account is not usable",
				zap.String("company_id", need.CompanyID),
				zap.String("need", need.String()),
				zap.String("account_id", id),
			)
			continue
		}
		return acct, nil
	}
	return nil, nil
}

func (r *Resolver) globalDefault(_ context.Context, chart *ledger.Chart, need Need) (*ledger.Account, error) {
	var code string
	if need.Rate != nil && need.Purpose == ledger.PurposeTaxPayable {
		code = r.defaults.TaxRateCodes[ledger.RateKey(*need.Rate)]
	} else {
		code = r.defaults.PurposeCodes[need.Purpose]
	}
	if code == "" {
		return nil, nil
	}
	acct, ok := chart.ByCode(code)
	if !ok || !r.usable(acct, need) {
		return nil, nil
	}
	return acct, nil
}

func (r *Resolver) structural(_ context.Context, chart *ledger.Chart, need Need) (*ledger.Account, error) {
	var matches []ledger.Account
	for _, prefix := range r.defaults.PurposePrefixes[need.Purpose] {
		for _, a := range chart.Leaves() {
			if a.Type == need.Purpose.AccountType() && hasCodePrefix(a.Code, prefix) {
				matches = append(matches, a)
			}
		}
		if len(matches) > 0 {
			break
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	// A rate-keyed payable only matches an account that names its rate.
	if need.Rate != nil && need.Purpose == ledger.PurposeTaxPayable {
		label := need.Rate.String() + "%"
		for i := range matches {
			if strings.Contains(matches[i].Name, label) {
				return &matches[i], nil
			}
		}
		return nil, nil
	}
	return &matches[0], nil
}

func (r *Resolver) usable(a *ledger.Account, need Need) bool {
	return a.CompanyID == need.CompanyID && a.AcceptsMovement && a.Type == need.Purpose.AccountType()
}

// hasCodePrefix matches whole dotted segments: "1.1" matches "1.1" and
// "1.1.01" but not "1.10".
func hasCodePrefix(code, prefix string) bool {
	return code == prefix || strings.HasPrefix(code, prefix+".")
}
