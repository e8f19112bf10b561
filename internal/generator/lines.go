package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/resolver"
)

type resolved struct {
	acct *ledger.Account
	err  error
}

// builder carries the state of one Build call.
type builder struct {
	g         *Generator
	ctx       context.Context
	doc       *ledger.SaleDocument
	chart     *ledger.Chart
	cache     map[string]resolved
	mainRate  decimal.Decimal
	omissions []Omission
}

func (b *builder) resolve(need resolver.Need) (*ledger.Account, error) {
	key := need.String()
	if r, ok := b.cache[key]; ok {
		return r.acct, r.err
	}
	var r resolved
	res, err := b.g.resolver.ResolveIn(b.ctx, b.chart, need)
	if err != nil {
		r.err = err
	} else {
		acct := res.Account
		r.acct = &acct
	}
	b.cache[key] = r
	return r.acct, r.err
}

// resolveOptional returns a nil account and the reason when the need is
// not configured. Other failures are returned as errors.
func (b *builder) resolveOptional(need resolver.Need) (*ledger.Account, string, error) {
	acct, err := b.resolve(need)
	if errors.Is(err, ledger.ErrAccountNotConfigured) {
		return nil, err.Error(), nil
	}
	return acct, "", err
}

// productAccount returns the product-level account when it exists in the
// chart, accepts movement and has the nature the purpose requires.
func (b *builder) productAccount(id string, purpose ledger.Purpose) *ledger.Account {
	if id == "" {
		return nil
	}
	acct, ok := b.chart.Get(id)
	if !ok || !acct.AcceptsMovement || acct.Type != purpose.AccountType() {
		return nil
	}
	return acct
}

func (b *builder) omit(o Omission) {
	b.omissions = append(b.omissions, o)
}

func (b *builder) line(accountID string, amt decimal.Decimal, debit bool, desc, docType string) ledger.Line {
	docDate := b.doc.Date
	l := ledger.Line{
		AccountID:      accountID,
		Description:    desc,
		DocumentType:   docType,
		DocumentNumber: b.doc.DisplayNumber(),
		DocumentDate:   &docDate,
	}
	if acct, ok := b.chart.Get(accountID); ok {
		l.AccountCode = acct.Code
		if acct.RequiresAuxiliary && acct.AuxiliaryKind == ledger.AuxClient {
			l.AuxiliaryCode = b.doc.Customer.Identification
			l.AuxiliaryName = b.doc.Customer.Name
		}
	}
	if debit {
		l.Debit = ledger.Round(amt)
	} else {
		l.Credit = ledger.Round(amt)
	}
	return l
}

func (b *builder) customerLine(l ledger.Line) ledger.Line {
	l.AuxiliaryCode = b.doc.Customer.Identification
	l.AuxiliaryName = b.doc.Customer.Name
	return l
}

func (b *builder) retentionLines() ([]ledger.Line, error) {
	ivaRate, irRate := b.doc.Customer.RetentionRates()
	company := b.doc.CompanyID

	type retention struct {
		need   resolver.Need
		rate   decimal.Decimal
		amount decimal.Decimal
		label  string
	}
	var wanted []retention
	if ivaRate.IsPositive() {
		wanted = append(wanted, retention{
			need:   resolver.ForRate(company, ledger.PurposeIVARetention, b.mainRate),
			rate:   ivaRate,
			amount: ledger.Percent(b.doc.TaxAmount, ivaRate),
			label:  "VAT retention",
		})
	}
	if irRate.IsPositive() {
		wanted = append(wanted, retention{
			need:   resolver.Need{CompanyID: company, Purpose: ledger.PurposeIRRetention},
			rate:   irRate,
			amount: ledger.Percent(b.doc.Subtotal, irRate),
			label:  "Income tax retention",
		})
	}

	var lines []ledger.Line
	recorded := decimal.Zero
	for _, r := range wanted {
		if !r.amount.IsPositive() {
			continue
		}
		acct, reason, err := b.resolveOptional(r.need)
		if err != nil {
			return nil, err
		}
		if acct == nil {
			b.omit(Omission{Purpose: r.need.Purpose, Rate: r.need.Rate, LineIndex: -1, Amount: r.amount, Reason: reason})
			continue
		}
		recorded = recorded.Add(r.amount)
		lines = append(lines, b.customerLine(b.line(acct.ID, r.amount, true,
			fmt.Sprintf("%s %s%% - invoice #%s", r.label, r.rate.String(), b.doc.DisplayNumber()), ledger.DocTypeRetention)))
	}

	if !b.doc.Total.Sub(recorded).IsPositive() {
		return nil, &ledger.ValidationError{Problems: []string{
			fmt.Sprintf("retentions %s leave nothing to settle on total %s", recorded.StringFixed(2), b.doc.Total.StringFixed(2)),
		}}
	}
	return lines, nil
}

func (b *builder) revenueLines() ([]ledger.Line, error) {
	defaultRevenue := func() (*ledger.Account, error) {
		return b.resolve(resolver.Need{CompanyID: b.doc.CompanyID, Purpose: ledger.PurposeRevenue})
	}

	gr := newGroup()
	for _, l := range b.doc.Lines {
		net := l.Net()
		if net.IsZero() {
			continue
		}
		var acct *ledger.Account
		if l.Product != nil {
			acct = b.productAccount(l.Product.RevenueAccountID, ledger.PurposeRevenue)
		}
		if acct == nil {
			var err error
			if acct, err = defaultRevenue(); err != nil {
				return nil, err
			}
		}
		gr.add(acct.ID, net, acct.Name)
	}

	if len(gr.order) == 0 {
		acct, err := defaultRevenue()
		if err != nil {
			return nil, err
		}
		gr.add(acct.ID, b.doc.Subtotal, acct.Name)
	}
	gr.absorb(b.doc.Subtotal)

	var lines []ledger.Line
	for _, id := range gr.order {
		amt := gr.amount[id]
		if !amt.IsPositive() {
			continue
		}
		lines = append(lines, b.line(id, amt, false,
			fmt.Sprintf("%s - invoice #%s", gr.label[id], b.doc.DisplayNumber()), ledger.DocTypeInvoice))
	}
	return lines, nil
}

func (b *builder) taxLines() ([]ledger.Line, error) {
	gr := newGroup()
	for _, l := range b.doc.Lines {
		if tax := l.Tax(); tax.IsPositive() {
			gr.add(ledger.RateKey(l.TaxRate), tax, "")
		}
	}
	if len(gr.order) > 0 {
		gr.absorb(b.doc.TaxAmount)
	} else if b.doc.TaxAmount.IsPositive() {
		gr.add(ledger.RateKey(b.mainRate), b.doc.TaxAmount, "")
	}

	var lines []ledger.Line
	for _, key := range sortedRateKeys(gr) {
		amt := gr.amount[key]
		if !amt.IsPositive() {
			continue
		}
		rate, err := decimal.NewFromString(key)
		if err != nil {
			return nil, fmt.Errorf("tax rate key %q: %w", key, err)
		}
		acct, err := b.resolve(resolver.ForRate(b.doc.CompanyID, ledger.PurposeTaxPayable, rate))
		if err != nil {
			return nil, err
		}
		lines = append(lines, b.line(acct.ID, amt, false,
			fmt.Sprintf("VAT %s%% - invoice #%s", rate.String(), b.doc.DisplayNumber()), ledger.DocTypeInvoice))
	}
	return lines, nil
}

func (b *builder) costLines() ([]ledger.Line, error) {
	costs, stock := newGroup(), newGroup()

	for i, l := range b.doc.Lines {
		p := l.Product
		if p == nil || !p.TracksInventory || !p.UnitCost.IsPositive() {
			continue
		}
		cost := ledger.Round(l.Quantity.Mul(p.UnitCost))
		if !cost.IsPositive() {
			continue
		}

		costAcct := b.productAccount(p.CostAccountID, ledger.PurposeCostOfSales)
		if costAcct == nil {
			acct, reason, err := b.resolveOptional(resolver.Need{CompanyID: b.doc.CompanyID, Purpose: ledger.PurposeCostOfSales})
			if err != nil {
				return nil, err
			}
			if acct == nil {
				b.omit(Omission{Purpose: ledger.PurposeCostOfSales, LineIndex: i, Amount: cost,
					Reason: fmt.Sprintf("product %s: %s", p.ID, reason)})
				continue
			}
			costAcct = acct
		}

		invAcct := b.productAccount(p.InventoryAccountID, ledger.PurposeInventory)
		if invAcct == nil {
			acct, reason, err := b.resolveOptional(resolver.Need{CompanyID: b.doc.CompanyID, Purpose: ledger.PurposeInventory})
			if err != nil {
				return nil, err
			}
			if acct == nil {
				b.omit(Omission{Purpose: ledger.PurposeInventory, LineIndex: i, Amount: cost,
					Reason: fmt.Sprintf("product %s: %s", p.ID, reason)})
				continue
			}
			invAcct = acct
		}

		costs.add(costAcct.ID, cost, costAcct.Name)
		stock.add(invAcct.ID, cost, invAcct.Name)
	}

	var lines []ledger.Line
	for _, id := range costs.order {
		lines = append(lines, b.line(id, costs.amount[id], true,
			fmt.Sprintf("Cost of sales - invoice #%s", b.doc.DisplayNumber()), ledger.DocTypeInvoice))
	}
	for _, id := range stock.order {
		lines = append(lines, b.line(id, stock.amount[id], false,
			fmt.Sprintf("Inventory out - invoice #%s", b.doc.DisplayNumber()), ledger.DocTypeInvoice))
	}
	return lines, nil
}
