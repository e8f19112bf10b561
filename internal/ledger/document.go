package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Classification is the customer's tax-authority class. It decides the
// default retention rates of a retention agent.
type Classification string

const (
	ClassNatural           Classification = "natural"
	ClassObligated         Classification = "obligated"
	ClassCompany           Classification = "company"
	ClassPublicInstitution Classification = "public_institution"
	ClassRimpe             Classification = "rimpe"
)

type retentionRates struct {
	iva decimal.Decimal
	ir  decimal.Decimal
}

var defaultRetentionRates = map[Classification]retentionRates{
	ClassNatural:           {iva: decimal.NewFromInt(30), ir: decimal.NewFromInt(2)},
	ClassObligated:         {iva: decimal.NewFromInt(30), ir: decimal.NewFromInt(2)},
	ClassCompany:           {iva: decimal.NewFromInt(70), ir: decimal.NewFromInt(1)},
	ClassPublicInstitution: {iva: decimal.NewFromInt(100), ir: decimal.NewFromInt(1)},
	ClassRimpe:             {iva: decimal.NewFromInt(30), ir: decimal.NewFromInt(1)},
}

type PaymentMethod string

const (
	PayCash     PaymentMethod = "cash"
	PayCredit   PaymentMethod = "credit"
	PayTransfer PaymentMethod = "transfer"
	PayCard     PaymentMethod = "card"
	PayOther    PaymentMethod = "other"
)

// Label is the wording used on the settlement line description.
func (m PaymentMethod) Label() string {
	switch m {
	case PayCash:
		return "Cash sale"
	case PayCredit:
		return "Credit sale"
	case PayTransfer:
		return "Sale by bank transfer"
	case PayCard:
		return "Card sale"
	default:
		return "Sale"
	}
}

type Customer struct {
	ID               string          `json:"id" validate:"required"`
	Identification   string          `json:"identification"`
	Name             string          `json:"name" validate:"required"`
	RetentionAgent   bool            `json:"retention_agent"`
	Classification   Classification  `json:"classification,omitempty" validate:"omitempty,oneof=natural obligated company public_institution rimpe"`
	IVARetentionRate decimal.Decimal `json:"iva_retention_rate"`
	IRRetentionRate  decimal.Decimal `json:"ir_retention_rate"`
}

// RetentionRates returns the customer's VAT and income-tax retention
// percentages. A zero custom rate falls back to the classification default.
// Customers that are not retention agents withhold nothing.
func (c Customer) RetentionRates() (iva, ir decimal.Decimal) {
	if !c.RetentionAgent {
		return decimal.Zero, decimal.Zero
	}
	def := defaultRetentionRates[c.Classification]
	iva, ir = c.IVARetentionRate, c.IRRetentionRate
	if !iva.IsPositive() {
		iva = def.iva
	}
	if !ir.IsPositive() {
		ir = def.ir
	}
	return iva, ir
}

type Product struct {
	ID                 string          `json:"id" validate:"required"`
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	TracksInventory    bool            `json:"tracks_inventory"`
	RevenueAccountID   string          `json:"revenue_account_id,omitempty"`
	CostAccountID      string          `json:"cost_account_id,omitempty"`
	InventoryAccountID string          `json:"inventory_account_id,omitempty"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
}

type DocumentLine struct {
	Product     *Product        `json:"product,omitempty"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// Net is quantity × price less the percentage discount, rounded to cents.
func (l DocumentLine) Net() decimal.Decimal {
	gross := l.Quantity.Mul(l.UnitPrice)
	if l.Discount.IsPositive() {
		gross = gross.Mul(hundred.Sub(l.Discount)).Div(hundred)
	}
	return Round(gross)
}

func (l DocumentLine) Tax() decimal.Decimal {
	return Percent(l.Net(), l.TaxRate)
}

// SaleDocument is a sales invoice as handed over by the invoicing side.
type SaleDocument struct {
	ID                  string          `json:"id" validate:"required"`
	Number              string          `json:"number"`
	CompanyID           string          `json:"company_id" validate:"required"`
	Customer            Customer        `json:"customer"`
	SettlementAccountID string          `json:"settlement_account_id" validate:"required"`
	PaymentMethod       PaymentMethod   `json:"payment_method" validate:"required,oneof=cash credit transfer card other"`
	TransferDetail      string          `json:"transfer_detail,omitempty"`
	Date                time.Time       `json:"date" validate:"required"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	TaxAmount           decimal.Decimal `json:"tax_amount"`
	Total               decimal.Decimal `json:"total"`
	Lines               []DocumentLine  `json:"lines" validate:"dive"`
}

// DisplayNumber is the invoice number when set, else its id.
func (d *SaleDocument) DisplayNumber() string {
	if d.Number != "" {
		return d.Number
	}
	return d.ID
}
