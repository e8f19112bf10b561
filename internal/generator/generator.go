// Package generator derives a balanced draft ledger entry from a sales
// invoice: settlement and retention debits, revenue and tax credits, and
// the cost-of-sales pair for inventory-tracked products.
package generator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/resolver"
)

type Options struct {
	// ReferencePrefix builds the idempotency key "<prefix>-<document id>".
	ReferencePrefix string
	// DefaultTaxRate keys an aggregate tax amount when neither the lines
	// nor the amounts reveal a rate.
	DefaultTaxRate decimal.Decimal
}

func DefaultOptions() Options {
	return Options{ReferencePrefix: "INV", DefaultTaxRate: decimal.NewFromInt(15)}
}

// AccountResolver is the subset of resolver.Resolver the generator needs.
type AccountResolver interface {
	ResolveIn(ctx context.Context, chart *ledger.Chart, need resolver.Need) (*resolver.Resolution, error)
}

type Omission = ledger.Omission

type Result struct {
	Entry     *ledger.Entry `json:"entry"`
	Created   bool          `json:"created"`
	Omissions []Omission    `json:"omissions,omitempty"`
	Partial   bool          `json:"partial"`
}

type Generator struct {
	resolver AccountResolver
	opts     Options
	validate *validator.Validate
	log      *zap.Logger
}

func New(r AccountResolver, opts Options, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ReferencePrefix == "" {
		opts.ReferencePrefix = DefaultOptions().ReferencePrefix
	}
	if !opts.DefaultTaxRate.IsPositive() {
		opts.DefaultTaxRate = DefaultOptions().DefaultTaxRate
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Generator{resolver: r, opts: opts, validate: v, log: log.Named("generator")}
}

// Reference is the idempotency key of the entry generated from doc.
func (g *Generator) Reference(doc *ledger.SaleDocument) string {
	return g.opts.ReferencePrefix + "-" + doc.ID
}

// Validate checks doc against the company chart and returns a
// *ledger.ValidationError listing every problem.
func (g *Generator) Validate(doc *ledger.SaleDocument, chart *ledger.Chart) error {
	verr := &ledger.ValidationError{}

	if err := g.validate.Struct(doc); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate document: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.Add("%s failed %s", strings.TrimPrefix(fe.Namespace(), "SaleDocument."), fe.Tag())
		}
	}

	if doc.CompanyID != "" && doc.CompanyID != chart.CompanyID() {
		verr.Add("document company %s does not match chart company %s", doc.CompanyID, chart.CompanyID())
	}
	if doc.SettlementAccountID != "" {
		acct, ok := chart.Get(doc.SettlementAccountID)
		switch {
		case !ok:
			verr.Add("settlement account %s not found", doc.SettlementAccountID)
		case !acct.AcceptsMovement:
			verr.Add("settlement account %s does not accept movement", acct.Code)
		}
	}

	if !doc.Subtotal.IsPositive() {
		verr.Add("subtotal must be greater than zero")
	}
	if !doc.Total.IsPositive() {
		verr.Add("total must be greater than zero")
	}
	if doc.TaxAmount.IsNegative() {
		verr.Add("tax amount cannot be negative")
	}
	if !ledger.NearlyEqual(doc.Total, doc.Subtotal.Add(doc.TaxAmount)) {
		verr.Add("total %s does not equal subtotal %s plus tax %s",
			doc.Total.StringFixed(2), doc.Subtotal.StringFixed(2), doc.TaxAmount.StringFixed(2))
	}

	hundred := decimal.NewFromInt(100)
	for i, l := range doc.Lines {
		if !l.Quantity.IsPositive() {
			verr.Add("line %d: quantity must be greater than zero", i+1)
		}
		if l.UnitPrice.IsNegative() {
			verr.Add("line %d: unit price cannot be negative", i+1)
		}
		if l.Discount.IsNegative() || l.Discount.GreaterThan(hundred) {
			verr.Add("line %d: discount must be between 0 and 100", i+1)
		}
		if l.TaxRate.IsNegative() {
			verr.Add("line %d: tax rate cannot be negative", i+1)
		}
	}

	if len(doc.Lines) > 0 && len(verr.Problems) == 0 {
		slack := ledger.Tolerance.Mul(decimal.NewFromInt(int64(len(doc.Lines))))
		net, tax := decimal.Zero, decimal.Zero
		for _, l := range doc.Lines {
			net = net.Add(l.Net())
			tax = tax.Add(l.Tax())
		}
		if net.Sub(doc.Subtotal).Abs().GreaterThan(slack) {
			verr.Add("line totals %s do not match subtotal %s", net.StringFixed(2), doc.Subtotal.StringFixed(2))
		}
		if tax.IsPositive() && tax.Sub(doc.TaxAmount).Abs().GreaterThan(slack) {
			verr.Add("line taxes %s do not match tax amount %s", tax.StringFixed(2), doc.TaxAmount.StringFixed(2))
		}
	}

	return verr.Err()
}

// Build validates doc and assembles the draft entry. The entry has no ID
// or number yet; the store assigns both on insert.
func (g *Generator) Build(ctx context.Context, doc *ledger.SaleDocument, chart *ledger.Chart) (*Result, error) {
	if err := g.Validate(doc, chart); err != nil {
		return nil, err
	}

	b := &builder{
		g:        g,
		ctx:      ctx,
		doc:      doc,
		chart:    chart,
		cache:    make(map[string]resolved),
		mainRate: MainTaxRate(doc, g.opts.DefaultTaxRate),
	}

	entry := &ledger.Entry{
		CompanyID:   doc.CompanyID,
		Date:        doc.Date,
		Reference:   g.Reference(doc),
		Description: describe(doc),
		State:       ledger.StateDraft,
	}

	retentions, err := b.retentionLines()
	if err != nil {
		return nil, err
	}
	recorded := decimal.Zero
	for _, l := range retentions {
		recorded = recorded.Add(l.Debit)
	}

	entry.Lines = append(entry.Lines, b.customerLine(b.line(doc.SettlementAccountID, doc.Total.Sub(recorded), true,
		fmt.Sprintf("%s - invoice #%s", doc.PaymentMethod.Label(), doc.DisplayNumber()), ledger.DocTypeInvoice)))
	entry.Lines = append(entry.Lines, retentions...)

	revenue, err := b.revenueLines()
	if err != nil {
		return nil, err
	}
	entry.Lines = append(entry.Lines, revenue...)

	tax, err := b.taxLines()
	if err != nil {
		return nil, err
	}
	entry.Lines = append(entry.Lines, tax...)

	cogs, err := b.costLines()
	if err != nil {
		return nil, err
	}
	entry.Lines = append(entry.Lines, cogs...)

	entry.RecomputeTotals()
	if !entry.IsBalanced() {
		return nil, &ledger.UnbalancedError{Reference: entry.Reference, Debit: entry.TotalDebit, Credit: entry.TotalCredit}
	}

	for _, o := range b.omissions {
		g.log.Warn("line omitted from generated entry",
			zap.String("document_id", doc.ID),
			zap.String("reference", entry.Reference),
			zap.String("purpose", string(o.Purpose)),
			zap.Int("line_index", o.LineIndex),
			zap.String("amount", o.Amount.StringFixed(2)),
			zap.String("reason", o.Reason),
		)
	}

	entry.Omissions = b.omissions
	return &Result{
		Entry:     entry,
		Created:   true,
		Omissions: b.omissions,
		Partial:   len(b.omissions) > 0,
	}, nil
}

// MainTaxRate is the most frequent positive line rate (ties go to the
// higher rate); else the effective rate tax/subtotal; else fallback.
func MainTaxRate(doc *ledger.SaleDocument, fallback decimal.Decimal) decimal.Decimal {
	counts := make(map[string]int)
	rates := make(map[string]decimal.Decimal)
	for _, l := range doc.Lines {
		if !l.TaxRate.IsPositive() {
			continue
		}
		k := ledger.RateKey(l.TaxRate)
		counts[k]++
		rates[k] = l.TaxRate
	}
	if len(counts) > 0 {
		var best string
		for k, n := range counts {
			switch {
			case best == "":
				best = k
			case n > counts[best]:
				best = k
			case n == counts[best] && rates[k].GreaterThan(rates[best]):
				best = k
			}
		}
		return rates[best]
	}
	if doc.TaxAmount.IsPositive() && doc.Subtotal.IsPositive() {
		return doc.TaxAmount.Mul(decimal.NewFromInt(100)).Div(doc.Subtotal).Round(2)
	}
	return fallback
}

func describe(doc *ledger.SaleDocument) string {
	desc := fmt.Sprintf("Sale invoice #%s - %s", doc.DisplayNumber(), doc.Customer.Name)
	if doc.PaymentMethod == ledger.PayTransfer && doc.TransferDetail != "" {
		desc += " (transfer: " + doc.TransferDetail + ")"
	}
	return desc
}

// group accumulates amounts per account while keeping first-seen order.
type group struct {
	order  []string
	amount map[string]decimal.Decimal
	label  map[string]string
}

func newGroup() *group {
	return &group{amount: make(map[string]decimal.Decimal), label: make(map[string]string)}
}

func (gr *group) add(key string, amt decimal.Decimal, label string) {
	if _, ok := gr.amount[key]; !ok {
		gr.order = append(gr.order, key)
		gr.label[key] = label
	}
	gr.amount[key] = gr.amount[key].Add(amt)
}

func (gr *group) total() decimal.Decimal {
	sum := decimal.Zero
	for _, v := range gr.amount {
		sum = sum.Add(v)
	}
	return sum
}

// absorb moves the difference between target and the group total onto the
// largest bucket so the group sums exactly to target.
func (gr *group) absorb(target decimal.Decimal) {
	diff := target.Sub(gr.total())
	if diff.IsZero() || len(gr.order) == 0 {
		return
	}
	largest := gr.order[0]
	for _, k := range gr.order[1:] {
		if gr.amount[k].GreaterThan(gr.amount[largest]) {
			largest = k
		}
	}
	gr.amount[largest] = gr.amount[largest].Add(diff)
}

func sortedRateKeys(gr *group) []string {
	keys := append([]string(nil), gr.order...)
	sort.SliceStable(keys, func(i, j int) bool {
		a, _ := decimal.NewFromString(keys[i])
		b, _ := decimal.NewFromString(keys[j])
		return a.GreaterThan(b)
	})
	return keys
}
