package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	TypeAsset     AccountType = "asset"
	TypeLiability AccountType = "liability"
	TypeEquity    AccountType = "equity"
	TypeIncome    AccountType = "income"
	TypeExpense   AccountType = "expense"
)

var AllTypes = []AccountType{
	TypeAsset,
	TypeLiability,
	TypeEquity,
	TypeIncome,
	TypeExpense,
}

// AuxiliaryKind tags an account that needs a sub-ledger reference on its lines.
type AuxiliaryKind string

const (
	AuxNone     AuxiliaryKind = ""
	AuxClient   AuxiliaryKind = "client"
	AuxSupplier AuxiliaryKind = "supplier"
	AuxEmployee AuxiliaryKind = "employee"
	AuxBank     AuxiliaryKind = "bank"
	AuxCash     AuxiliaryKind = "cash"
	AuxProduct  AuxiliaryKind = "product"
	AuxOther    AuxiliaryKind = "other"
)

var allAuxiliaryKinds = []AuxiliaryKind{AuxClient, AuxSupplier, AuxEmployee, AuxBank, AuxCash, AuxProduct, AuxOther}

type Account struct {
	ID                string        `json:"id"`
	CompanyID         string        `json:"company_id"`
	Code              string        `json:"code"`
	Name              string        `json:"name"`
	Type              AccountType   `json:"type"`
	ParentID          string        `json:"parent_id,omitempty"`
	Level             int           `json:"level"`
	AcceptsMovement   bool          `json:"accepts_movement"`
	RequiresAuxiliary bool          `json:"requires_auxiliary"`
	AuxiliaryKind     AuxiliaryKind `json:"auxiliary_kind,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// IsLeaf reports whether the account has no children. Leaf status and
// movement eligibility are the same flag.
func (a *Account) IsLeaf() bool {
	return a.AcceptsMovement
}

var codePattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)

// ValidCode checks the dotted numeric code format, e.g. "1.1.01.05".
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// Validate checks the fields a caller supplies. Level and leaf flags are
// owned by the Chart and are not checked here.
func (a *Account) Validate() error {
	if a.CompanyID == "" {
		return ErrCompanyRequired
	}
	if !ValidCode(a.Code) {
		return fmt.Errorf("%w: %q", ErrInvalidAccountCode, a.Code)
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrAccountNameRequired
	}
	if !ValidType(a.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidAccountType, a.Type)
	}
	if a.RequiresAuxiliary && !ValidAuxiliaryKind(a.AuxiliaryKind) {
		return fmt.Errorf("%w: %q", ErrInvalidAuxiliaryKind, a.AuxiliaryKind)
	}
	if !a.RequiresAuxiliary && a.AuxiliaryKind != AuxNone && !ValidAuxiliaryKind(a.AuxiliaryKind) {
		return fmt.Errorf("%w: %q", ErrInvalidAuxiliaryKind, a.AuxiliaryKind)
	}
	return nil
}

// TypeLabel returns a human-readable label for an account type.
func TypeLabel(t AccountType) string {
	switch t {
	case TypeAsset:
		return "Assets"
	case TypeLiability:
		return "Liabilities"
	case TypeEquity:
		return "Equity"
	case TypeIncome:
		return "Income"
	case TypeExpense:
		return "Expenses"
	default:
		return string(t)
	}
}

// IsDebitNormal reports whether the type carries its balance on the debit
// side. Assets and Expenses are debit-normal; Liabilities, Equity and Income
// are credit-normal.
func IsDebitNormal(t AccountType) bool {
	return t == TypeAsset || t == TypeExpense
}

// NormalBalance returns "Debit" or "Credit" for the account type.
func NormalBalance(t AccountType) string {
	if IsDebitNormal(t) {
		return "Debit"
	}
	return "Credit"
}

// SignedBalance applies the nature sign convention to raw movement totals.
func SignedBalance(t AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	if IsDebitNormal(t) {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

func ValidType(t AccountType) bool {
	for _, v := range AllTypes {
		if v == t {
			return true
		}
	}
	return false
}

func ValidAuxiliaryKind(k AuxiliaryKind) bool {
	for _, v := range allAuxiliaryKinds {
		if v == k {
			return true
		}
	}
	return false
}
