package resolver

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/ledgerd/internal/ledger"
)

type fakeSource struct {
	chart    *ledger.Chart
	mappings map[string]*ledger.TaxMapping
	defaults map[ledger.Purpose]string
}

func (f *fakeSource) Chart(context.Context, string) (*ledger.Chart, error) {
	return f.chart, nil
}

func (f *fakeSource) TaxMapping(_ context.Context, _ string, rate decimal.Decimal) (*ledger.TaxMapping, error) {
	return f.mappings[ledger.RateKey(rate)], nil
}

func (f *fakeSource) AccountDefault(_ context.Context, _ string, p ledger.Purpose) (string, error) {
	return f.defaults[p], nil
}

// seedChart builds the default chart with ids equal to codes.
func seedChart(t *testing.T) *ledger.Chart {
	t.Helper()
	c := ledger.NewChart("co1", nil)
	for _, e := range ledger.DefaultChart {
		a := &ledger.Account{
			ID:        e.Code,
			CompanyID: "co1",
			Code:      e.Code,
			Name:      e.Name,
			Type:      e.Type,
			ParentID:  ledger.ParentCode(e.Code),
		}
		_, err := c.Insert(a)
		require.NoError(t, err)
	}
	return c
}

func newSource(t *testing.T) *fakeSource {
	return &fakeSource{
		chart:    seedChart(t),
		mappings: map[string]*ledger.TaxMapping{},
		defaults: map[ledger.Purpose]string{},
	}
}

func rate(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCompanyMappingWins(t *testing.T) {
	src := newSource(t)
	src.mappings["15"] = &ledger.TaxMapping{CompanyID: "co1", Rate: rate("15"), AccountID: "2.1.01.01.03.02", RetentionAccountID: "1.1.02.02"}
	src.defaults[ledger.PurposeRevenue] = "4.1.02"

	r := New(src, DefaultDefaults(), nil)

	res, err := r.Resolve(context.Background(), ForRate("co1", ledger.PurposeTaxPayable, rate("15.00")))
	require.NoError(t, err)
	assert.Equal(t, TierCompanyMapping, res.Tier)
	assert.Equal(t, "2.1.01.01.03.02", res.Account.Code)

	res, err = r.Resolve(context.Background(), ForRate("co1", ledger.PurposeIVARetention, rate("15")))
	require.NoError(t, err)
	assert.Equal(t, TierCompanyMapping, res.Tier)
	assert.Equal(t, "1.1.02.02", res.Account.Code)

	res, err = r.Resolve(context.Background(), Need{CompanyID: "co1", Purpose: ledger.PurposeRevenue})
	require.NoError(t, err)
	assert.Equal(t, "4.1.02", res.Account.Code)
}

func TestGlobalDefaultTier(t *testing.T) {
	r := New(newSource(t), DefaultDefaults(), nil)

	res, err := r.Resolve(context.Background(), ForRate("co1", ledger.PurposeTaxPayable, rate("5")))
	require.NoError(t, err)
	assert.Equal(t, TierGlobalDefault, res.Tier)
	assert.Equal(t, "2.1.01.01.03.02", res.Account.Code)

	res, err = r.Resolve(context.Background(), Need{CompanyID: "co1", Purpose: ledger.PurposeIRRetention})
	require.NoError(t, err)
	assert.Equal(t, "1.1.05.06", res.Account.Code)
}

func TestUnusableMappingFallsThrough(t *testing.T) {
	src := newSource(t)
	// a parent account never accepts movement
	src.defaults[ledger.PurposeRevenue] = "4.1"
	r := New(src, DefaultDefaults(), nil)

	res, err := r.Resolve(context.Background(), Need{CompanyID: "co1", Purpose: ledger.PurposeRevenue})
	require.NoError(t, err)
	assert.Equal(t, TierGlobalDefault, res.Tier)
	assert.Equal(t, "4.1.01", res.Account.Code)
}

func TestStructuralTierRespectsType(t *testing.T) {
	src := newSource(t)
	d := DefaultDefaults()
	d.TaxRateCodes = nil
	d.PurposeCodes = nil
	r := New(src, d, nil)

	res, err := r.Resolve(context.Background(), ForRate("co1", ledger.PurposeTaxPayable, rate("5")))
	require.NoError(t, err)
	assert.Equal(t, TierStructural, res.Tier)
	assert.Equal(t, "2.1.01.01.03.02", res.Account.Code, "prefers the account naming its rate")

	res, err = r.Resolve(context.Background(), Need{CompanyID: "co1", Purpose: ledger.PurposeCostOfSales})
	require.NoError(t, err)
	assert.Equal(t, ledger.TypeExpense, res.Account.Type)
	assert.Equal(t, "5.1.01", res.Account.Code)

	// an income-typed prefix never answers an expense need
	d.PurposePrefixes[ledger.PurposeCostOfSales] = []string{"4"}
	r = New(src, d, nil)
	_, err = r.Resolve(context.Background(), Need{CompanyID: "co1", Purpose: ledger.PurposeCostOfSales})
	assert.ErrorIs(t, err, ledger.ErrAccountNotConfigured)
}

func TestExhaustedChainIsTyped(t *testing.T) {
	r := New(&fakeSource{chart: ledger.NewChart("co1", nil)}, DefaultDefaults(), nil)
	_, err := r.Resolve(context.Background(), ForRate("co1", ledger.PurposeTaxPayable, rate("8")))
	var nc *ledger.AccountNotConfiguredError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, ledger.PurposeTaxPayable, nc.Purpose)
	require.NotNil(t, nc.Rate)
	assert.Equal(t, "8", nc.Rate.String())
}

func TestUnknownRateNeverBorrowsAnotherPayable(t *testing.T) {
	r := New(newSource(t), DefaultDefaults(), nil)

	// VAT payable leaves exist for 15% and 5% only.
	_, err := r.Resolve(context.Background(), ForRate("co1", ledger.PurposeTaxPayable, rate("8")))
	var nc *ledger.AccountNotConfiguredError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, "8", nc.Rate.String())

	// Naming the rate on a payable leaf makes it resolvable.
	src := newSource(t)
	_, err = src.chart.Insert(&ledger.Account{
		ID: "2.1.01.01.03.03", CompanyID: "co1", Code: "2.1.01.01.03.03",
		Name: "VAT Payable 8%", Type: ledger.TypeLiability, ParentID: "2.1.01.01.03",
	})
	require.NoError(t, err)
	res, err := New(src, DefaultDefaults(), nil).Resolve(context.Background(), ForRate("co1", ledger.PurposeTaxPayable, rate("8")))
	require.NoError(t, err)
	assert.Equal(t, TierStructural, res.Tier)
	assert.Equal(t, "2.1.01.01.03.03", res.Account.Code)
}

func TestMergeNormalizesRates(t *testing.T) {
	d := DefaultDefaults().Merge(Defaults{TaxRateCodes: map[string]string{"12.00": "2.1.01.01.03.09"}})
	assert.Equal(t, "2.1.01.01.03.09", d.TaxRateCodes["12"])
	assert.Equal(t, "2.1.01.01.03.01", d.TaxRateCodes["15"])
}

func TestHasCodePrefix(t *testing.T) {
	assert.True(t, hasCodePrefix("1.1.01", "1.1"))
	assert.True(t, hasCodePrefix("1.1", "1.1"))
	assert.False(t, hasCodePrefix("1.10", "1.1"))
}
