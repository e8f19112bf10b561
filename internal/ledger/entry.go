package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type EntryState string

const (
	StateDraft     EntryState = "draft"
	StatePosted    EntryState = "posted"
	StateCancelled EntryState = "cancelled"
)

// Document types stamped on generated lines.
const (
	DocTypeInvoice   = "INVOICE"
	DocTypeRetention = "RETENTION"
	DocTypeReversal  = "REVERSAL"
)

// NumberWidth is the zero-padded width of entry numbers.
const NumberWidth = 6

type Line struct {
	ID             string          `json:"id,omitempty"`
	EntryID        string          `json:"entry_id,omitempty"`
	AccountID      string          `json:"account_id"`
	AccountCode    string          `json:"account_code,omitempty"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	Description    string          `json:"description"`
	AuxiliaryCode  string          `json:"auxiliary_code,omitempty"`
	AuxiliaryName  string          `json:"auxiliary_name,omitempty"`
	DocumentType   string          `json:"document_type,omitempty"`
	DocumentNumber string          `json:"document_number,omitempty"`
	DocumentDate   *time.Time      `json:"document_date,omitempty"`
}

// Validate checks the one-sided amount rule: both sides non-negative and
// exactly one of them positive.
func (l *Line) Validate() error {
	v := &ValidationError{}
	if l.AccountID == "" {
		v.Add("line account is required")
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		v.Add("line amounts cannot be negative")
	}
	switch {
	case l.Debit.IsPositive() && l.Credit.IsPositive():
		v.Add("line cannot have both debit %s and credit %s", l.Debit.StringFixed(2), l.Credit.StringFixed(2))
	case !l.Debit.IsPositive() && !l.Credit.IsPositive():
		v.Add("line must have a debit or a credit amount")
	}
	return v.Err()
}

// Amount returns whichever side of the line is set.
func (l *Line) Amount() decimal.Decimal {
	if l.Debit.IsPositive() {
		return l.Debit
	}
	return l.Credit
}

func (l *Line) IsDebit() bool { return l.Debit.IsPositive() }

type Entry struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"company_id"`
	Number      string          `json:"number"`
	Date        time.Time       `json:"date"`
	Reference   string          `json:"reference,omitempty"`
	Description string          `json:"description"`
	State       EntryState      `json:"state"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	PostedBy    string          `json:"posted_by,omitempty"`
	PostedAt    *time.Time      `json:"posted_at,omitempty"`
	CancelledBy string          `json:"cancelled_by,omitempty"`
	CancelledAt *time.Time      `json:"cancelled_at,omitempty"`
	ReversalOf  string          `json:"reversal_of,omitempty"`
	ReversedBy  string          `json:"reversed_by,omitempty"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Lines       []Line          `json:"lines"`
	Omissions   []Omission      `json:"omissions,omitempty"`
}

// Omission records an amount left out of a generated entry because its
// account could not be resolved.
type Omission struct {
	Purpose   Purpose          `json:"purpose"`
	Rate      *decimal.Decimal `json:"rate,omitempty"`
	LineIndex int              `json:"line_index"`
	Amount    decimal.Decimal  `json:"amount"`
	Reason    string           `json:"reason"`
}

// IsPartial reports whether the entry was generated with omitted lines.
func (e *Entry) IsPartial() bool { return len(e.Omissions) > 0 }

// RecomputeTotals sets TotalDebit and TotalCredit from the owned lines.
func (e *Entry) RecomputeTotals() {
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range e.Lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	e.TotalDebit = Round(debit)
	e.TotalCredit = Round(credit)
}

func (e *Entry) IsBalanced() bool {
	return NearlyEqual(e.TotalDebit, e.TotalCredit)
}

// CheckEditable fails unless the entry is still a draft.
func (e *Entry) CheckEditable(action string) error {
	if e.State != StateDraft {
		return &InvalidStateError{EntryID: e.ID, State: e.State, Action: action}
	}
	return nil
}

// CheckPostable re-validates a draft before it becomes posted.
func (e *Entry) CheckPostable() error {
	if err := e.CheckEditable("post"); err != nil {
		return err
	}
	e.RecomputeTotals()
	if len(e.Lines) < 2 {
		return &ValidationError{Problems: []string{fmt.Sprintf("entry %s needs at least two lines to post", e.Number)}}
	}
	if !e.IsBalanced() {
		return &UnbalancedError{
			EntryID:   e.ID,
			Number:    e.Number,
			Reference: e.Reference,
			Debit:     e.TotalDebit,
			Credit:    e.TotalCredit,
		}
	}
	return nil
}

// ReversalReference is the reference given to the entry that cancels e.
func (e *Entry) ReversalReference() string {
	if e.Reference != "" {
		return "REV-" + e.Reference
	}
	return "REV-" + e.Number
}

// Reverse builds the draft that cancels e: same accounts, debit and
// credit swapped. Number and ID are assigned on insert.
func (e *Entry) Reverse(date time.Time, user string) *Entry {
	rev := &Entry{
		CompanyID:   e.CompanyID,
		Date:        date,
		Reference:   e.ReversalReference(),
		Description: fmt.Sprintf("Reversal of entry %s: %s", e.Number, e.Description),
		State:       StateDraft,
		CreatedBy:   user,
		ReversalOf:  e.ID,
	}
	docDate := e.Date
	for _, l := range e.Lines {
		rev.Lines = append(rev.Lines, Line{
			AccountID:      l.AccountID,
			AccountCode:    l.AccountCode,
			Debit:          l.Credit,
			Credit:         l.Debit,
			Description:    "REV - " + l.Description,
			AuxiliaryCode:  l.AuxiliaryCode,
			AuxiliaryName:  l.AuxiliaryName,
			DocumentType:   DocTypeReversal,
			DocumentNumber: e.Number,
			DocumentDate:   &docDate,
		})
	}
	rev.RecomputeTotals()
	return rev
}

// FormatEntryNumber zero-pads n to NumberWidth digits.
func FormatEntryNumber(n int64) string {
	return fmt.Sprintf("%0*d", NumberWidth, n)
}

// NextEntryNumber returns the number following last. An empty last yields
// the first number, 000001.
func NextEntryNumber(last string) (string, error) {
	if last == "" {
		return FormatEntryNumber(1), nil
	}
	n, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse entry number %q: %w", last, err)
	}
	return FormatEntryNumber(n + 1), nil
}
