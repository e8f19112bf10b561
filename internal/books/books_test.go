package books

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/ledgerd/internal/ledger"
	"github.com/simonvc/ledgerd/internal/resolver"
	"github.com/simonvc/ledgerd/internal/store"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	svc   *Service
	co    *ledger.Company
	accts map[string]ledger.Account
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := New(st, opts, nil)
	svc.now = func() time.Time { return day("2026-03-15") }

	ctx := context.Background()
	co := &ledger.Company{Name: "Comercial Andina"}
	require.NoError(t, svc.CreateCompany(ctx, co, true))

	list, err := svc.ListAccounts(ctx, store.AccountFilter{CompanyID: co.ID})
	require.NoError(t, err)
	accts := make(map[string]ledger.Account, len(list))
	for _, a := range list {
		accts[a.Code] = a
	}
	return &fixture{svc: svc, co: co, accts: accts}
}

func (f *fixture) id(code string) string { return f.accts[code].ID }

func (f *fixture) sale(id string) *ledger.SaleDocument {
	return &ledger.SaleDocument{
		ID:                  id,
		Number:              "001-001-" + id,
		CompanyID:           f.co.ID,
		Customer:            ledger.Customer{ID: "c1", Identification: "0991234567001", Name: "ACME S.A."},
		SettlementAccountID: f.id("1.1.01.02"),
		PaymentMethod:       ledger.PayTransfer,
		Date:                day("2026-03-10"),
		Subtotal:            dec("100"),
		TaxAmount:           dec("15"),
		Total:               dec("115"),
		Lines: []ledger.DocumentLine{
			{Quantity: dec("1"), UnitPrice: dec("100"), TaxRate: dec("15")},
		},
	}
}

func (f *fixture) balance(t *testing.T, code string) decimal.Decimal {
	t.Helper()
	b, err := f.svc.ComputeBalance(context.Background(), f.co.ID, f.id(code), nil, day("2026-12-31"))
	require.NoError(t, err)
	return b.Balance
}

func autoPost() Options {
	o := DefaultOptions()
	o.AutoPost = true
	return o
}

func TestSimpleSaleScenario(t *testing.T) {
	f := newFixture(t, autoPost())
	ctx := context.Background()

	res, err := f.svc.CreateEntryFromDocument(ctx, f.sale("1001"), GenerateOptions{User: "cashier"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.Partial)
	assert.Equal(t, ledger.StatePosted, res.Entry.State)
	assert.Equal(t, "INV-1001", res.Entry.Reference)
	assert.Equal(t, "000001", res.Entry.Number)

	assert.True(t, dec("115").Equal(f.balance(t, "1.1.01.02")))
	assert.True(t, dec("100").Equal(f.balance(t, "4.1.01")))
	assert.True(t, dec("15").Equal(f.balance(t, "2.1.01.01.03.01")))

	tb, err := f.svc.TrialBalance(ctx, f.co.ID, day("2026-03-01"), day("2026-03-31"))
	require.NoError(t, err)
	assert.True(t, tb.Balanced)
	assert.True(t, dec("115").Equal(tb.Totals.PeriodDebit))
	assert.True(t, dec("115").Equal(tb.Totals.PeriodCredit))
}

func TestGenerateIsIdempotent(t *testing.T) {
	f := newFixture(t, autoPost())
	ctx := context.Background()

	first, err := f.svc.CreateEntryFromDocument(ctx, f.sale("77"), GenerateOptions{})
	require.NoError(t, err)
	second, err := f.svc.CreateEntryFromDocument(ctx, f.sale("77"), GenerateOptions{})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)

	entries, err := f.svc.ListEntries(ctx, store.EntryFilter{CompanyID: f.co.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.True(t, dec("115").Equal(f.balance(t, "1.1.01.02")), "no double counting")
}

func TestGenerateConcurrentDuplicates(t *testing.T) {
	f := newFixture(t, autoPost())
	ctx := context.Background()

	const n = 8
	results := make([]*GenerateResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.CreateEntryFromDocument(ctx, f.sale("500"), GenerateOptions{})
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		if results[i].Created {
			created++
		}
		assert.Equal(t, results[0].Entry.ID, results[i].Entry.ID)
	}
	assert.Equal(t, 1, created)
}

func TestRetentionScenario(t *testing.T) {
	f := newFixture(t, autoPost())
	ctx := context.Background()

	doc := f.sale("2002")
	doc.Customer.RetentionAgent = true
	doc.Customer.IVARetentionRate = dec("30")
	doc.Customer.IRRetentionRate = dec("1")

	res, err := f.svc.CreateEntryFromDocument(ctx, doc, GenerateOptions{})
	require.NoError(t, err)
	assert.True(t, res.Entry.IsBalanced())

	assert.True(t, dec("109.50").Equal(f.balance(t, "1.1.01.02")))
	assert.True(t, dec("4.50").Equal(f.balance(t, "1.1.05.05")))
	assert.True(t, dec("1.00").Equal(f.balance(t, "1.1.05.06")))
}

func TestUnmappedTaxRateIsRejected(t *testing.T) {
	f := newFixture(t, autoPost())
	ctx := context.Background()

	doc := f.sale("2005")
	doc.TaxAmount = dec("8")
	doc.Total = dec("108")
	doc.Lines[0].TaxRate = dec("8")

	_, err := f.svc.CreateEntryFromDocument(ctx, doc, GenerateOptions{})
	require.ErrorIs(t, err, ledger.ErrAccountNotConfigured)

	entries, err := f.svc.ListEntries(ctx, store.EntryFilter{CompanyID: f.co.ID})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.True(t, f.balance(t, "2.1.01.01.03.01").IsZero(), "nothing lands on the 15% payable")
}

func TestReplayReportsStoredOmissions(t *testing.T) {
	f := newFixture(t, autoPost())
	ctx := context.Background()
	require.NoError(t, f.svc.DeleteAccount(ctx, f.co.ID, f.id("1.1.05.06")))

	doc := f.sale("2003")
	doc.Customer.RetentionAgent = true
	doc.Customer.IVARetentionRate = dec("30")
	doc.Customer.IRRetentionRate = dec("1")

	first, err := f.svc.CreateEntryFromDocument(ctx, doc, GenerateOptions{})
	require.NoError(t, err)
	require.True(t, first.Created)
	require.True(t, first.Partial)
	require.Len(t, first.Omissions, 1)
	assert.Equal(t, ledger.PurposeIRRetention, first.Omissions[0].Purpose)
	assert.True(t, dec("1.00").Equal(first.Omissions[0].Amount))

	again, err := f.svc.CreateEntryFromDocument(ctx, doc, GenerateOptions{})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Entry.ID, again.Entry.ID)
	assert.True(t, again.Partial)
	require.Len(t, again.Omissions, 1)
	assert.Equal(t, first.Omissions[0].Purpose, again.Omissions[0].Purpose)
	assert.True(t, first.Omissions[0].Amount.Equal(again.Omissions[0].Amount))
	assert.Equal(t, first.Omissions[0].Reason, again.Omissions[0].Reason)

	stored, err := f.svc.GetEntry(ctx, f.co.ID, first.Entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPartial())

	// A complete document replays as complete.
	full, err := f.svc.CreateEntryFromDocument(ctx, f.sale("2004"), GenerateOptions{})
	require.NoError(t, err)
	replay, err := f.svc.CreateEntryFromDocument(ctx, f.sale("2004"), GenerateOptions{})
	require.NoError(t, err)
	assert.False(t, full.Partial)
	assert.False(t, replay.Partial)
	assert.Empty(t, replay.Omissions)
}

func TestDraftThenPost(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	res, err := f.svc.CreateEntryFromDocument(ctx, f.sale("3"), GenerateOptions{})
	require.NoError(t, err)
	require.Equal(t, ledger.StateDraft, res.Entry.State)
	assert.True(t, f.balance(t, "1.1.01.02").IsZero(), "drafts do not count")

	var events []PostingEvent
	f.svc.OnPosting(func(_ context.Context, ev PostingEvent) error {
		events = append(events, ev)
		return nil
	})

	posted, err := f.svc.PostEntry(ctx, f.co.ID, res.Entry.ID, "approver")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatePosted, posted.State)
	assert.True(t, dec("115").Equal(f.balance(t, "1.1.01.02")))

	require.Len(t, events, 1)
	assert.Equal(t, EventPosted, events[0].Kind)
	parsed, err := uuid.Parse(events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	_, err = f.svc.PostEntry(ctx, f.co.ID, res.Entry.ID, "approver")
	assert.ErrorIs(t, err, ledger.ErrInvalidState)
}

func TestHookErrorDoesNotUndoPosting(t *testing.T) {
	f := newFixture(t, autoPost())
	ctx := context.Background()

	calls := 0
	f.svc.OnPosting(func(context.Context, PostingEvent) error { return errors.New("inventory offline") })
	f.svc.OnPosting(func(context.Context, PostingEvent) error { calls++; return nil })

	res, err := f.svc.CreateEntryFromDocument(ctx, f.sale("9"), GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatePosted, res.Entry.State)
	assert.Equal(t, 1, calls, "later hooks still run")
	assert.True(t, dec("115").Equal(f.balance(t, "1.1.01.02")))
}

func TestCancellationScenario(t *testing.T) {
	f := newFixture(t, autoPost())
	ctx := context.Background()

	res, err := f.svc.CreateEntryFromDocument(ctx, f.sale("11"), GenerateOptions{})
	require.NoError(t, err)

	var got []PostingEvent
	f.svc.OnPosting(func(_ context.Context, ev PostingEvent) error { got = append(got, ev); return nil })

	rev, err := f.svc.CancelEntry(ctx, f.co.ID, res.Entry.ID, "auditor")
	require.NoError(t, err)
	assert.Equal(t, "REV-INV-11", rev.Reference)
	assert.Equal(t, day("2026-03-15"), rev.Date)
	require.Len(t, rev.Lines, len(res.Entry.Lines))
	for i, l := range rev.Lines {
		assert.True(t, l.Debit.Equal(res.Entry.Lines[i].Credit))
		assert.True(t, l.Credit.Equal(res.Entry.Lines[i].Debit))
	}

	for _, code := range []string{"1.1.01.02", "4.1.01", "2.1.01.01.03.01"} {
		assert.True(t, f.balance(t, code).IsZero(), "%s nets to zero", code)
	}

	orig, err := f.svc.GetEntry(ctx, f.co.ID, res.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StateCancelled, orig.State)

	require.Len(t, got, 1)
	assert.Equal(t, EventCancelled, got[0].Kind)
	assert.Equal(t, rev.ID, got[0].Reversal.ID)

	_, err = f.svc.CancelEntry(ctx, f.co.ID, res.Entry.ID, "auditor")
	assert.ErrorIs(t, err, ledger.ErrInvalidState)

	// The same document is still recorded: regenerating is a no-op.
	again, err := f.svc.CreateEntryFromDocument(ctx, f.sale("11"), GenerateOptions{})
	require.NoError(t, err)
	assert.False(t, again.Created)
}

func TestSignConvention(t *testing.T) {
	f := newFixture(t, DefaultOptions())
	ctx := context.Background()

	post := func(debit, credit, amount, date string) {
		t.Helper()
		_, err := f.svc.CreateEntry(ctx, &ledger.Entry{
			CompanyID: f.co.ID,
			Date:      day(date),
			State:     ledger.StatePosted,
			Lines: []ledger.Line{
				{AccountID: f.id(debit), Debit: dec(amount)},
				{AccountID: f.id(credit), Credit: dec(amount)},
			},
		})
		require.NoError(t, err)
	}

	post("1.1.01.01", "2.1.02.01", "500", "2026-01-05")
	post("2.1.02.01", "1.1.01.01", "200", "2026-01-06")
	post("2.1.02.01", "1.1.01.02", "500", "2026-01-07")
	post("1.1.01.02", "2.1.02.01", "200", "2026-01-08")

	assert.True(t, dec("300").Equal(f.balance(t, "1.1.01.01")), "asset 500/200")
	assert.True(t, dec("-300").Equal(f.balance(t, "1.1.01.02")))
	assert.True(t, dec("0").Equal(f.balance(t, "2.1.02.01")))

	from := day("2026-01-06")
	b, err := f.svc.ComputeBalance(ctx, f.co.ID, f.id("1.1.01.01"), &from, day("2026-01-31"))
	require.NoError(t, err)
	assert.True(t, dec("-200").Equal(b.Balance), "window excludes the opening debit")
}

func TestStatements(t *testing.T) {
	f := newFixture(t, autoPost())
	ctx := context.Background()

	_, err := f.svc.CreateEntry(ctx, &ledger.Entry{
		CompanyID:   f.co.ID,
		Date:        day("2026-02-01"),
		Description: "Capital contribution from shareholder",
		State:       ledger.StatePosted,
		Lines: []ledger.Line{
			{AccountID: f.id("1.1.01.02"), Debit: dec("1000")},
			{AccountID: f.id("3.1.01"), Credit: dec("1000")},
		},
	})
	require.NoError(t, err)
	_, err = f.svc.CreateEntryFromDocument(ctx, f.sale("1"), GenerateOptions{})
	require.NoError(t, err)
	_, err = f.svc.CreateEntry(ctx, &ledger.Entry{
		CompanyID:   f.co.ID,
		Date:        day("2026-03-20"),
		Description: "Payroll March",
		State:       ledger.StatePosted,
		Lines: []ledger.Line{
			{AccountID: f.id("5.2.01"), Debit: dec("40")},
			{AccountID: f.id("1.1.01.02"), Credit: dec("40")},
		},
	})
	require.NoError(t, err)

	is, err := f.svc.IncomeStatement(ctx, f.co.ID, day("2026-03-01"), day("2026-03-31"))
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(is.TotalIncome))
	assert.True(t, dec("40").Equal(is.TotalExpenses))
	assert.True(t, dec("60").Equal(is.NetIncome))

	bs, err := f.svc.BalanceSheet(ctx, f.co.ID, day("2026-03-31"))
	require.NoError(t, err)
	assert.True(t, bs.Balanced)
	assert.True(t, dec("1075").Equal(bs.TotalAssets))
	assert.True(t, dec("60").Equal(bs.CurrentEarnings))

	tb, err := f.svc.TrialBalance(ctx, f.co.ID, day("2026-03-01"), day("2026-03-31"))
	require.NoError(t, err)
	assert.True(t, tb.Balanced)
	assert.True(t, dec("1000").Equal(tb.Totals.OpeningDebit))

	gl, err := f.svc.GeneralLedger(ctx, f.co.ID, f.id("1.1.01.02"), day("2026-03-01"), day("2026-03-31"))
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(gl.Opening))
	require.Len(t, gl.Rows, 2)
	assert.True(t, dec("1075").Equal(gl.Closing))

	cf, err := f.svc.CashFlow(ctx, f.co.ID, day("2026-03-01"), day("2026-03-31"))
	require.NoError(t, err)
	assert.True(t, cf.BestEffort)
	assert.True(t, dec("1000").Equal(cf.Opening))
	assert.True(t, dec("75").Equal(cf.NetChange))
	assert.True(t, dec("1075").Equal(cf.Closing))
	assert.Empty(t, cf.Warnings)

	_, err = f.svc.TrialBalance(ctx, f.co.ID, day("2026-04-01"), day("2026-03-01"))
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestAccountDefaultSteersGenerator(t *testing.T) {
	f := newFixture(t, autoPost())
	ctx := context.Background()

	err := f.svc.SetAccountDefault(ctx, ledger.AccountDefault{CompanyID: f.co.ID, Purpose: ledger.PurposeRevenue, AccountID: f.id("1.1.01.01")})
	assert.ErrorIs(t, err, ledger.ErrValidation, "revenue needs an income account")

	require.NoError(t, f.svc.SetAccountDefault(ctx, ledger.AccountDefault{CompanyID: f.co.ID, Purpose: ledger.PurposeRevenue, AccountID: f.id("4.1.02")}))

	_, err = f.svc.CreateEntryFromDocument(ctx, f.sale("5"), GenerateOptions{})
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(f.balance(t, "4.1.02")))

	r, err := f.svc.Resolve(ctx, resolver.Need{CompanyID: f.co.ID, Purpose: ledger.PurposeRevenue})
	require.NoError(t, err)
	assert.Equal(t, resolver.TierCompanyMapping, r.Tier)
}

func TestTaxMappingOverridesGlobalDefault(t *testing.T) {
	f := newFixture(t, autoPost())
	ctx := context.Background()

	err := f.svc.SetTaxMapping(ctx, &ledger.TaxMapping{CompanyID: f.co.ID, Rate: dec("15"), AccountID: f.id("4.1.01")})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	require.NoError(t, f.svc.SetTaxMapping(ctx, &ledger.TaxMapping{CompanyID: f.co.ID, Rate: dec("15"), AccountID: f.id("2.1.01.01.03.02")}))
	_, err = f.svc.CreateEntryFromDocument(ctx, f.sale("6"), GenerateOptions{})
	require.NoError(t, err)
	assert.True(t, dec("15").Equal(f.balance(t, "2.1.01.01.03.02")))
}

func TestCompanyScoping(t *testing.T) {
	f := newFixture(t, autoPost())
	ctx := context.Background()

	res, err := f.svc.CreateEntryFromDocument(ctx, f.sale("8"), GenerateOptions{})
	require.NoError(t, err)

	_, err = f.svc.GetEntry(ctx, "other-company", res.Entry.ID)
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)
	_, err = f.svc.GetAccount(ctx, "other-company", f.id("4.1.01"))
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	doc := f.sale("8b")
	doc.CompanyID = ""
	_, err = f.svc.CreateEntryFromDocument(ctx, doc, GenerateOptions{})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}
