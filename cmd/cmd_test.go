package cmd

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/ledgerd/internal/config"
	"github.com/simonvc/ledgerd/internal/ledger"
)

// Account ids (not codes) never reach the client, so a nil client is fine.
func TestParseLine(t *testing.T) {
	ctx := context.Background()

	l, err := parseLine(ctx, nil, "co", "acct-1:D:1,250.50:opening cash")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", l.AccountID)
	assert.True(t, decimal.RequireFromString("1250.50").Equal(l.Debit))
	assert.True(t, l.Credit.IsZero())
	assert.Equal(t, "opening cash", l.Description)

	l, err = parseLine(ctx, nil, "co", "acct-2:credit:10")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(l.Credit))
	assert.Empty(t, l.Description)

	l, err = parseLine(ctx, nil, "co", "acct-3:C:5:note: with colon")
	require.NoError(t, err)
	assert.Equal(t, "note: with colon", l.Description)

	for _, bad := range []string{"acct-1:D", "acct-1:X:10", "acct-1:D:ten"} {
		_, err := parseLine(ctx, nil, "co", bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatSigned(t *testing.T) {
	assert.Equal(t, "1,000.00", formatSigned(decimal.NewFromInt(1000)))
	assert.Equal(t, "(40.50)", formatSigned(decimal.RequireFromString("-40.5")))
	assert.Equal(t, "", blankZero(decimal.RequireFromString("0.001")))
	assert.Equal(t, "0.01", blankZero(decimal.RequireFromString("0.01")))
}

func TestPeriodFlags(t *testing.T) {
	from, to, err := periodFlags("", "2026-03-20")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", from.Format(dateLayout))
	assert.Equal(t, "2026-03-20", to.Format(dateLayout))

	from, _, err = periodFlags("2026-01-01", "2026-03-20")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", from.Format(dateLayout))

	_, _, err = periodFlags("", "20/03/2026")
	assert.ErrorContains(t, err, "--to")
}

func TestBooksOptionsCashFlowKeywords(t *testing.T) {
	c := &config.Config{
		CashFlow: config.CashFlowConfig{
			CashCodes:         []string{"1.1.01.09"},
			FinancingKeywords: []string{"crowdfunding"},
		},
	}
	opts, err := booksOptions(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.01.09"}, opts.CashCodes)

	classify := func(desc string) ledger.CashActivity {
		return opts.Classifier.Classify(ledger.Movement{EntryDescription: desc})
	}
	assert.Equal(t, ledger.ActivityFinancing, classify("Crowdfunding round"))
	assert.Equal(t, ledger.ActivityOperating, classify("Bank loan"), "configured list replaces the default")
	assert.Equal(t, ledger.ActivityInvesting, classify("Purchase of equipment"))
	assert.Equal(t, ledger.ActivityOperating, classify("Monthly rent"))

	c.Resolver.PurposeCodes = map[string]string{"nonsense": "1"}
	_, err = booksOptions(c)
	assert.Error(t, err)
}
