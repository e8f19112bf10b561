package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAccountCode   = errors.New("invalid account code")
	ErrInvalidAccountType   = errors.New("invalid account type")
	ErrInvalidAuxiliaryKind = errors.New("invalid auxiliary kind")
	ErrAccountNameRequired  = errors.New("account name is required")
	ErrCompanyRequired      = errors.New("company is required")
	ErrCompanyNotFound      = errors.New("company not found")
	ErrAccountNotFound      = errors.New("account not found")
	ErrDuplicateAccount     = errors.New("account already exists")
	ErrAccountInUse         = errors.New("account has ledger lines")
	ErrEntryNotFound        = errors.New("entry not found")
	ErrLineNotFound         = errors.New("line not found")
	ErrDuplicateReference   = errors.New("entry reference already used")

	ErrValidation           = errors.New("validation failed")
	ErrUnbalanced           = errors.New("entry does not balance")
	ErrAccountNotConfigured = errors.New("account not configured")
	ErrHierarchy            = errors.New("invalid account hierarchy")
	ErrInvalidState         = errors.New("invalid entry state")
)

// ValidationError lists every problem found in an input. Nothing is
// persisted when one is returned.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add records one problem.
func (e *ValidationError) Add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Err returns nil when no problem was recorded.
func (e *ValidationError) Err() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

type UnbalancedError struct {
	EntryID   string
	Number    string
	Reference string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

func (e *UnbalancedError) Error() string {
	ref := e.Reference
	if ref == "" {
		ref = e.Number
	}
	return fmt.Sprintf("%s: entry %s debit %s credit %s (difference %s)",
		ErrUnbalanced, ref, e.Debit.StringFixed(2), e.Credit.StringFixed(2), e.Debit.Sub(e.Credit).StringFixed(2))
}

func (e *UnbalancedError) Unwrap() error { return ErrUnbalanced }

type AccountNotConfiguredError struct {
	CompanyID string
	Purpose   Purpose
	Rate      *decimal.Decimal
}

func (e *AccountNotConfiguredError) Error() string {
	if e.Rate != nil {
		return fmt.Sprintf("%s: company %s purpose %s rate %s%%", ErrAccountNotConfigured, e.CompanyID, e.Purpose, e.Rate.String())
	}
	return fmt.Sprintf("%s: company %s purpose %s", ErrAccountNotConfigured, e.CompanyID, e.Purpose)
}

func (e *AccountNotConfiguredError) Unwrap() error { return ErrAccountNotConfigured }

type HierarchyError struct {
	AccountID string
	Reason    string
}

func (e *HierarchyError) Error() string {
	if e.AccountID == "" {
		return fmt.Sprintf("%s: %s", ErrHierarchy, e.Reason)
	}
	return fmt.Sprintf("%s: account %s: %s", ErrHierarchy, e.AccountID, e.Reason)
}

func (e *HierarchyError) Unwrap() error { return ErrHierarchy }

type InvalidStateError struct {
	EntryID string
	State   EntryState
	Action  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: cannot %s entry %s in state %s", ErrInvalidState, e.Action, e.EntryID, e.State)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }
