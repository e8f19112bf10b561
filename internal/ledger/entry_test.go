package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestLineValidate(t *testing.T) {
	tests := []struct {
		name   string
		line   Line
		wantOK bool
	}{
		{"debit only", Line{AccountID: "a", Debit: dec("10")}, true},
		{"credit only", Line{AccountID: "a", Credit: dec("10")}, true},
		{"both sides", Line{AccountID: "a", Debit: dec("10"), Credit: dec("1")}, false},
		{"neither side", Line{AccountID: "a"}, false},
		{"negative", Line{AccountID: "a", Debit: dec("-5")}, false},
		{"no account", Line{Debit: dec("5")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.line.Validate()
			if tt.wantOK {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrValidation)
			}
		})
	}
}

func TestCheckPostable(t *testing.T) {
	e := &Entry{ID: "e1", Number: "000001", State: StateDraft, Lines: []Line{
		{AccountID: "a", Debit: dec("115")},
		{AccountID: "b", Credit: dec("100")},
	}}

	var uerr *UnbalancedError
	require.ErrorAs(t, e.CheckPostable(), &uerr)
	assert.True(t, uerr.Debit.Equal(dec("115")))
	assert.True(t, uerr.Credit.Equal(dec("100")))
	assert.Contains(t, uerr.Error(), "15.00")

	e.Lines = append(e.Lines, Line{AccountID: "c", Credit: dec("15")})
	require.NoError(t, e.CheckPostable())
	assert.True(t, e.TotalDebit.Equal(dec("115")))

	// within tolerance
	e.Lines[0].Debit = dec("115.005")
	assert.NoError(t, e.CheckPostable())

	e.State = StatePosted
	assert.ErrorIs(t, e.CheckPostable(), ErrInvalidState)
}

func TestCheckPostableNeedsLines(t *testing.T) {
	e := &Entry{State: StateDraft}
	assert.ErrorIs(t, e.CheckPostable(), ErrValidation)
}

func TestReverseSwapsSides(t *testing.T) {
	orig := &Entry{
		ID:          "e1",
		CompanyID:   "co1",
		Number:      "000007",
		Reference:   "INV-42",
		Description: "Sale invoice #42",
		Date:        date("2024-03-01"),
		State:       StatePosted,
		Lines: []Line{
			{AccountID: "bank", Debit: dec("115"), Description: "Cash sale"},
			{AccountID: "sales", Credit: dec("100"), Description: "Revenue"},
			{AccountID: "vat", Credit: dec("15"), Description: "VAT 15%"},
		},
	}
	orig.RecomputeTotals()

	rev := orig.Reverse(date("2024-03-05"), "auditor")
	assert.Equal(t, "REV-INV-42", rev.Reference)
	assert.Equal(t, "e1", rev.ReversalOf)
	assert.Equal(t, StateDraft, rev.State)
	require.Len(t, rev.Lines, 3)

	for i, l := range rev.Lines {
		assert.True(t, l.Debit.Equal(orig.Lines[i].Credit))
		assert.True(t, l.Credit.Equal(orig.Lines[i].Debit))
		assert.Equal(t, DocTypeReversal, l.DocumentType)
		assert.Equal(t, "000007", l.DocumentNumber)
		assert.Contains(t, l.Description, "REV - ")
	}
	assert.True(t, rev.TotalDebit.Equal(dec("115")))
	assert.True(t, rev.IsBalanced())

	orig.Reference = ""
	assert.Equal(t, "REV-000007", orig.ReversalReference())
}

func TestEntryNumbers(t *testing.T) {
	n, err := NextEntryNumber("")
	require.NoError(t, err)
	assert.Equal(t, "000001", n)

	n, err = NextEntryNumber("000041")
	require.NoError(t, err)
	assert.Equal(t, "000042", n)

	assert.Equal(t, "1000000", FormatEntryNumber(1000000))

	_, err = NextEntryNumber("abc")
	assert.Error(t, err)
}

func TestSignedBalance(t *testing.T) {
	debit, credit := dec("500"), dec("200")
	assert.True(t, SignedBalance(TypeAsset, debit, credit).Equal(dec("300")))
	assert.True(t, SignedBalance(TypeExpense, debit, credit).Equal(dec("300")))
	assert.True(t, SignedBalance(TypeLiability, debit, credit).Equal(dec("-300")))
	assert.True(t, SignedBalance(TypeEquity, debit, credit).Equal(dec("-300")))
	assert.True(t, SignedBalance(TypeIncome, debit, credit).Equal(dec("-300")))
}

func TestAccountValidate(t *testing.T) {
	a := Account{CompanyID: "co1", Code: "1.1.01", Name: "Cash", Type: TypeAsset}
	assert.NoError(t, a.Validate())

	bad := a
	bad.Code = "1..2"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAccountCode)

	bad = a
	bad.Type = "revenue"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAccountType)

	bad = a
	bad.RequiresAuxiliary = true
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAuxiliaryKind)

	bad.AuxiliaryKind = AuxBank
	assert.NoError(t, bad.Validate())
}
