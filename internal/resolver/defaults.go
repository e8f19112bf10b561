package resolver

import (
	"github.com/shopspring/decimal"

	"github.com/simonvc/ledgerd/internal/ledger"
)

// Defaults holds the global tier tables and the structural prefixes.
type Defaults struct {
	// TaxRateCodes maps a rate (e.g. "15") to the payable account code.
	TaxRateCodes map[string]string
	// PurposeCodes maps a purpose to an account code.
	PurposeCodes map[ledger.Purpose]string
	// PurposePrefixes lists code prefixes searched in order by the
	// structural tier.
	PurposePrefixes map[ledger.Purpose][]string
}

func DefaultDefaults() Defaults {
	return Defaults{
		TaxRateCodes: map[string]string{
			"15": "2.1.01.01.03.01",
			"5":  "2.1.01.01.03.02",
		},
		PurposeCodes: map[ledger.Purpose]string{
			ledger.PurposeRevenue:      "4.1.01",
			ledger.PurposeIVARetention: "1.1.05.05",
			ledger.PurposeIRRetention:  "1.1.05.06",
			ledger.PurposeCostOfSales:  "5.1.01",
			ledger.PurposeInventory:    "1.1.03.01",
		},
		PurposePrefixes: map[ledger.Purpose][]string{
			ledger.PurposeRevenue:      {"4.1", "4"},
			ledger.PurposeTaxPayable:   {"2.1.01.01.03"},
			ledger.PurposeIVARetention: {"1.1.05.05", "1.1.02.06"},
			ledger.PurposeIRRetention:  {"1.1.05.06", "1.1.02.07"},
			ledger.PurposeCostOfSales:  {"5.1"},
			ledger.PurposeInventory:    {"1.1.03"},
		},
	}
}

// Merge overlays non-empty entries of o onto d.
func (d Defaults) Merge(o Defaults) Defaults {
	out := d.normalized()
	for k, v := range o.TaxRateCodes {
		if rate, err := decimal.NewFromString(k); err == nil {
			k = ledger.RateKey(rate)
		}
		out.TaxRateCodes[k] = v
	}
	for k, v := range o.PurposeCodes {
		out.PurposeCodes[k] = v
	}
	for k, v := range o.PurposePrefixes {
		if len(v) > 0 {
			out.PurposePrefixes[k] = v
		}
	}
	return out
}

// normalized returns a copy with rate keys in RateKey form and no nil maps.
func (d Defaults) normalized() Defaults {
	out := Defaults{
		TaxRateCodes:    make(map[string]string, len(d.TaxRateCodes)),
		PurposeCodes:    make(map[ledger.Purpose]string, len(d.PurposeCodes)),
		PurposePrefixes: make(map[ledger.Purpose][]string, len(d.PurposePrefixes)),
	}
	for k, v := range d.TaxRateCodes {
		if rate, err := decimal.NewFromString(k); err == nil {
			k = ledger.RateKey(rate)
		}
		out.TaxRateCodes[k] = v
	}
	for k, v := range d.PurposeCodes {
		out.PurposeCodes[k] = v
	}
	for k, v := range d.PurposePrefixes {
		out.PurposePrefixes[k] = append([]string(nil), v...)
	}
	return out
}
