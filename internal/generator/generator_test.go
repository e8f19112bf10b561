package generator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/resolver"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type chartSource struct{ chart *ledger.Chart }

func (s chartSource) Chart(context.Context, string) (*ledger.Chart, error) { return s.chart, nil }
func (s chartSource) TaxMapping(context.Context, string, decimal.Decimal) (*ledger.TaxMapping, error) {
	return nil, nil
}
func (s chartSource) AccountDefault(context.Context, string, ledger.Purpose) (string, error) {
	return "", nil
}

// testChart seeds the default chart with ids equal to codes, skipping any
// code listed in without (and its descendants).
func testChart(t *testing.T, without ...string) *ledger.Chart {
	t.Helper()
	skip := map[string]bool{}
	for _, c := range without {
		skip[c] = true
	}
	c := ledger.NewChart("co1", nil)
	for _, e := range ledger.DefaultChart {
		if skip[e.Code] || skip[ledger.ParentCode(e.Code)] {
			skip[e.Code] = true
			continue
		}
		a := &ledger.Account{ID: e.Code, CompanyID: "co1", Code: e.Code, Name: e.Name, Type: e.Type, ParentID: ledger.ParentCode(e.Code)}
		_, err := c.Insert(a)
		require.NoError(t, err)
	}
	return c
}

func newGenerator(chart *ledger.Chart) *Generator {
	r := resolver.New(chartSource{chart: chart}, resolver.DefaultDefaults(), nil)
	return New(r, DefaultOptions(), nil)
}

func simpleSale() *ledger.SaleDocument {
	return &ledger.SaleDocument{
		ID:                  "42",
		Number:              "001-001-000000042",
		CompanyID:           "co1",
		Customer:            ledger.Customer{ID: "c1", Identification: "0991234567001", Name: "ACME S.A."},
		SettlementAccountID: "1.1.01.02",
		PaymentMethod:       ledger.PayTransfer,
		TransferDetail:      "ref 7781",
		Date:                time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Subtotal:            dec("100"),
		TaxAmount:           dec("15"),
		Total:               dec("115"),
		Lines: []ledger.DocumentLine{
			{Quantity: dec("1"), UnitPrice: dec("100"), TaxRate: dec("15")},
		},
	}
}

// amounts indexes debit and credit totals by account code.
func amounts(e *ledger.Entry) (map[string]decimal.Decimal, map[string]decimal.Decimal) {
	debits, credits := map[string]decimal.Decimal{}, map[string]decimal.Decimal{}
	for _, l := range e.Lines {
		debits[l.AccountCode] = debits[l.AccountCode].Add(l.Debit)
		credits[l.AccountCode] = credits[l.AccountCode].Add(l.Credit)
	}
	return debits, credits
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}

func TestSimpleSale(t *testing.T) {
	g := newGenerator(testChart(t))

	res, err := g.Build(context.Background(), simpleSale(), testChart(t))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Partial)
	assert.Empty(t, res.Omissions)

	e := res.Entry
	assert.Equal(t, "INV-42", e.Reference)
	assert.Equal(t, ledger.StateDraft, e.State)
	assert.Contains(t, e.Description, "ACME S.A.")
	assert.Contains(t, e.Description, "ref 7781")
	require.Len(t, e.Lines, 3)

	debits, credits := amounts(e)
	assertAmount(t, "115.00", debits["1.1.01.02"])
	assertAmount(t, "100.00", credits["4.1.01"])
	assertAmount(t, "15.00", credits["2.1.01.01.03.01"])
	assertAmount(t, "115.00", e.TotalDebit)
	assertAmount(t, "115.00", e.TotalCredit)

	settlement := e.Lines[0]
	assert.Equal(t, "0991234567001", settlement.AuxiliaryCode)
	assert.Equal(t, ledger.DocTypeInvoice, settlement.DocumentType)
	assert.Equal(t, "001-001-000000042", settlement.DocumentNumber)
}

func TestRetentionCustomer(t *testing.T) {
	chart := testChart(t)
	g := newGenerator(chart)

	doc := simpleSale()
	doc.Customer.RetentionAgent = true
	doc.Customer.IVARetentionRate = dec("30")
	doc.Customer.IRRetentionRate = dec("1")

	res, err := g.Build(context.Background(), doc, chart)
	require.NoError(t, err)
	assert.False(t, res.Partial)

	debits, credits := amounts(res.Entry)
	assertAmount(t, "109.50", debits["1.1.01.02"])
	assertAmount(t, "4.50", debits["1.1.05.05"])
	assertAmount(t, "1.00", debits["1.1.05.06"])
	assertAmount(t, "100.00", credits["4.1.01"])
	assertAmount(t, "15.00", credits["2.1.01.01.03.01"])
	assertAmount(t, "115.00", res.Entry.TotalDebit)
	assertAmount(t, "115.00", res.Entry.TotalCredit)

	for _, l := range res.Entry.Lines[1:3] {
		assert.Equal(t, ledger.DocTypeRetention, l.DocumentType)
		assert.Equal(t, "ACME S.A.", l.AuxiliaryName)
	}
}

func TestRetentionClassificationDefaults(t *testing.T) {
	chart := testChart(t)
	g := newGenerator(chart)

	doc := simpleSale()
	doc.Customer.RetentionAgent = true
	doc.Customer.Classification = ledger.ClassCompany

	res, err := g.Build(context.Background(), doc, chart)
	require.NoError(t, err)

	debits, _ := amounts(res.Entry)
	assertAmount(t, "10.50", debits["1.1.05.05"], "70% of the VAT")
	assertAmount(t, "1.00", debits["1.1.05.06"], "1% of the subtotal")
	assertAmount(t, "103.50", debits["1.1.01.02"])
}

func TestUnresolvedRetentionIsOmittedNotLost(t *testing.T) {
	chart := testChart(t, "1.1.05.05")
	g := newGenerator(chart)

	doc := simpleSale()
	doc.Customer.RetentionAgent = true
	doc.Customer.IVARetentionRate = dec("30")
	doc.Customer.IRRetentionRate = dec("1")

	res, err := g.Build(context.Background(), doc, chart)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	require.Len(t, res.Omissions, 1)

	o := res.Omissions[0]
	assert.Equal(t, ledger.PurposeIVARetention, o.Purpose)
	assertAmount(t, "4.50", o.Amount)
	assert.Equal(t, -1, o.LineIndex)
	assert.NotEmpty(t, o.Reason)

	debits, _ := amounts(res.Entry)
	assertAmount(t, "114.00", debits["1.1.01.02"], "only the recorded retention reduces the settlement")
	assert.True(t, res.Entry.IsBalanced())
}

func TestRevenueAndTaxGrouping(t *testing.T) {
	chart := testChart(t)
	g := newGenerator(chart)

	services := &ledger.Product{ID: "p1", RevenueAccountID: "4.1.02"}
	doc := simpleSale()
	doc.Lines = []ledger.DocumentLine{
		{Product: services, Quantity: dec("2"), UnitPrice: dec("20"), TaxRate: dec("15")},
		{Product: services, Quantity: dec("1"), UnitPrice: dec("20"), TaxRate: dec("5")},
		{Quantity: dec("1"), UnitPrice: dec("50"), Discount: dec("20"), TaxRate: dec("15")},
	}
	doc.Subtotal = dec("100")
	doc.TaxAmount = dec("13")
	doc.Total = dec("113")

	res, err := g.Build(context.Background(), doc, chart)
	require.NoError(t, err)

	_, credits := amounts(res.Entry)
	assertAmount(t, "60.00", credits["4.1.02"])
	assertAmount(t, "40.00", credits["4.1.01"])
	assertAmount(t, "12.00", credits["2.1.01.01.03.01"])
	assertAmount(t, "1.00", credits["2.1.01.01.03.02"])
	assertAmount(t, "113.00", res.Entry.TotalCredit)
	assert.True(t, res.Entry.IsBalanced())
}

func TestRoundingResidueIsAbsorbed(t *testing.T) {
	chart := testChart(t)
	g := newGenerator(chart)

	doc := simpleSale()
	doc.Lines = []ledger.DocumentLine{
		{Quantity: dec("1"), UnitPrice: dec("33.333"), TaxRate: dec("15")},
		{Quantity: dec("1"), UnitPrice: dec("33.333"), TaxRate: dec("15")},
		{Quantity: dec("1"), UnitPrice: dec("33.333"), TaxRate: dec("15")},
	}

	res, err := g.Build(context.Background(), doc, chart)
	require.NoError(t, err)

	_, credits := amounts(res.Entry)
	assertAmount(t, "100.00", credits["4.1.01"])
	assertAmount(t, "15.00", credits["2.1.01.01.03.01"])
}

func TestAggregateTaxWithoutLines(t *testing.T) {
	chart := testChart(t)
	g := newGenerator(chart)

	doc := simpleSale()
	doc.Lines = nil

	res, err := g.Build(context.Background(), doc, chart)
	require.NoError(t, err)
	require.Len(t, res.Entry.Lines, 3)

	_, credits := amounts(res.Entry)
	assertAmount(t, "100.00", credits["4.1.01"])
	assertAmount(t, "15.00", credits["2.1.01.01.03.01"], "effective rate 15% keys the payable account")
}

func TestCostOfSales(t *testing.T) {
	chart := testChart(t)
	g := newGenerator(chart)

	widget := &ledger.Product{ID: "w", TracksInventory: true, UnitCost: dec("40")}
	service := &ledger.Product{ID: "s", TracksInventory: false, UnitCost: dec("10")}
	doc := simpleSale()
	doc.Lines = []ledger.DocumentLine{
		{Product: widget, Quantity: dec("2"), UnitPrice: dec("45"), TaxRate: dec("15")},
		{Product: service, Quantity: dec("1"), UnitPrice: dec("10"), TaxRate: dec("15")},
	}

	res, err := g.Build(context.Background(), doc, chart)
	require.NoError(t, err)
	assert.False(t, res.Partial)

	debits, credits := amounts(res.Entry)
	assertAmount(t, "80.00", debits["5.1.01"])
	assertAmount(t, "80.00", credits["1.1.03.01"])
	assertAmount(t, "195.00", res.Entry.TotalDebit)
	assert.True(t, res.Entry.IsBalanced())
}

func TestCostOfSalesSkippedWithoutAccounts(t *testing.T) {
	chart := testChart(t, "1.1.03")
	g := newGenerator(chart)

	widget := &ledger.Product{ID: "w", TracksInventory: true, UnitCost: dec("40")}
	doc := simpleSale()
	doc.Lines = []ledger.DocumentLine{
		{Product: widget, Quantity: dec("2"), UnitPrice: dec("50"), TaxRate: dec("15")},
	}

	res, err := g.Build(context.Background(), doc, chart)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	require.Len(t, res.Omissions, 1)
	assert.Equal(t, ledger.PurposeInventory, res.Omissions[0].Purpose)
	assert.Equal(t, 0, res.Omissions[0].LineIndex)
	assertAmount(t, "80.00", res.Omissions[0].Amount)

	debits, _ := amounts(res.Entry)
	_, hasCost := debits["5.1.01"]
	assert.False(t, hasCost, "cost side is skipped together with inventory")
	assert.True(t, res.Entry.IsBalanced())
}

func TestMissingRevenueAccountIsFatal(t *testing.T) {
	chart := testChart(t, "4")
	g := newGenerator(chart)

	_, err := g.Build(context.Background(), simpleSale(), chart)
	var nc *ledger.AccountNotConfiguredError
	require.ErrorAs(t, err, &nc)
	assert.Equal(t, ledger.PurposeRevenue, nc.Purpose)
}

func TestMissingTaxAccountIsFatal(t *testing.T) {
	chart := testChart(t, "2.1.01.01.03")
	g := newGenerator(chart)

	_, err := g.Build(context.Background(), simpleSale(), chart)
	assert.ErrorIs(t, err, ledger.ErrAccountNotConfigured)
}

func TestValidation(t *testing.T) {
	chart := testChart(t)
	g := newGenerator(chart)

	tests := []struct {
		name   string
		mutate func(d *ledger.SaleDocument)
		want   string
	}{
		{"missing customer", func(d *ledger.SaleDocument) { d.Customer = ledger.Customer{} }, "customer.id"},
		{"missing payment method", func(d *ledger.SaleDocument) { d.PaymentMethod = "" }, "payment_method"},
		{"unknown payment method", func(d *ledger.SaleDocument) { d.PaymentMethod = "barter" }, "payment_method"},
		{"zero subtotal", func(d *ledger.SaleDocument) { d.Subtotal = decimal.Zero }, "subtotal"},
		{"zero total", func(d *ledger.SaleDocument) { d.Total = decimal.Zero }, "total must"},
		{"total mismatch", func(d *ledger.SaleDocument) { d.Total = dec("120") }, "does not equal"},
		{"unknown settlement", func(d *ledger.SaleDocument) { d.SettlementAccountID = "9.9" }, "not found"},
		{"parent settlement", func(d *ledger.SaleDocument) { d.SettlementAccountID = "1.1.01" }, "does not accept movement"},
		{"other company", func(d *ledger.SaleDocument) { d.CompanyID = "co2" }, "does not match chart company"},
		{"bad discount", func(d *ledger.SaleDocument) { d.Lines[0].Discount = dec("120") }, "discount"},
		{"lines off subtotal", func(d *ledger.SaleDocument) { d.Lines[0].UnitPrice = dec("90") }, "line totals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := simpleSale()
			tt.mutate(doc)
			_, err := g.Build(context.Background(), doc, chart)
			var verr *ledger.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Error(), tt.want)
		})
	}
}

func TestMainTaxRate(t *testing.T) {
	fallback := dec("15")

	doc := &ledger.SaleDocument{Lines: []ledger.DocumentLine{
		{TaxRate: dec("5")}, {TaxRate: dec("15")}, {TaxRate: dec("5")}, {TaxRate: dec("0")},
	}}
	assert.Equal(t, "5", MainTaxRate(doc, fallback).String())

	doc.Lines = []ledger.DocumentLine{{TaxRate: dec("5")}, {TaxRate: dec("15")}}
	assert.Equal(t, "15", MainTaxRate(doc, fallback).String(), "ties go to the higher rate")

	doc = &ledger.SaleDocument{Subtotal: dec("200"), TaxAmount: dec("24")}
	assert.Equal(t, "12", MainTaxRate(doc, fallback).String())

	doc = &ledger.SaleDocument{Subtotal: dec("200")}
	assert.Equal(t, "15", MainTaxRate(doc, fallback).String())
}
