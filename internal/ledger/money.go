package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest difference treated as equal when comparing
// monetary totals.
var Tolerance = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// Round rounds an amount to cents using banker's rounding.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// NearlyEqual reports whether a and b differ by less than Tolerance.
func NearlyEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Tolerance)
}

// Percent returns base × rate / 100 rounded to cents.
func Percent(base, rate decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(rate).Div(hundred))
}

// ToCents converts an amount to integer minor units for storage.
func ToCents(d decimal.Decimal) int64 {
	return Round(d).Shift(2).IntPart()
}

// FromCents converts stored minor units back to an amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// FormatAmount renders an amount with thousands separators, e.g. 1,234.50.
func FormatAmount(d decimal.Decimal) string {
	s := Round(d).Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() && !Round(d).IsZero() {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
