package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TaxID     string    `json:"tax_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Purpose names the role an account plays in a generated entry.
type Purpose string

const (
	PurposeRevenue      Purpose = "revenue"
	PurposeTaxPayable   Purpose = "tax_payable"
	PurposeIVARetention Purpose = "iva_retention_receivable"
	PurposeIRRetention  Purpose = "ir_retention_receivable"
	PurposeCostOfSales  Purpose = "cost_of_sales"
	PurposeInventory    Purpose = "inventory"
)

var AllPurposes = []Purpose{
	PurposeRevenue,
	PurposeTaxPayable,
	PurposeIVARetention,
	PurposeIRRetention,
	PurposeCostOfSales,
	PurposeInventory,
}

// AccountType is the nature an account must have to serve the purpose.
func (p Purpose) AccountType() AccountType {
	switch p {
	case PurposeRevenue:
		return TypeIncome
	case PurposeTaxPayable:
		return TypeLiability
	case PurposeCostOfSales:
		return TypeExpense
	default:
		return TypeAsset
	}
}

func ValidPurpose(p Purpose) bool {
	for _, v := range AllPurposes {
		if v == p {
			return true
		}
	}
	return false
}

// TaxMapping routes a tax rate to its payable account and, optionally, to
// the receivable account for VAT withheld at that rate.
type TaxMapping struct {
	CompanyID          string          `json:"company_id"`
	Rate               decimal.Decimal `json:"rate"`
	AccountID          string          `json:"account_id"`
	RetentionAccountID string          `json:"retention_account_id,omitempty"`
}

type AccountDefault struct {
	CompanyID string  `json:"company_id"`
	Purpose   Purpose `json:"purpose"`
	AccountID string  `json:"account_id"`
}

// RateKey normalizes a rate for map lookups so that 15, 15.0 and 15.00
// share a key.
func RateKey(rate decimal.Decimal) string {
	return rate.Round(2).String()
}
