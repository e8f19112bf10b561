package ledger

import "strings"

// ChartEntry is a template row of the default chart of accounts.
type ChartEntry struct {
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Type          AccountType   `json:"type"`
	AuxiliaryKind AuxiliaryKind `json:"auxiliary_kind,omitempty"`
}

// DefaultChart is the seed chart for a new company. Rows are ordered so
// that every parent precedes its children.
var DefaultChart = []ChartEntry{
	// Assets
	{Code: "1", Name: "Assets", Type: TypeAsset},
	{Code: "1.1", Name: "Current Assets", Type: TypeAsset},
	{Code: "1.1.01", Name: "Cash and Cash Equivalents", Type: TypeAsset},
	{Code: "1.1.01.01", Name: "Cash on Hand", Type: TypeAsset, AuxiliaryKind: AuxCash},
	{Code: "1.1.01.02", Name: "Banks", Type: TypeAsset, AuxiliaryKind: AuxBank},
	{Code: "1.1.02", Name: "Receivables", Type: TypeAsset},
	{Code: "1.1.02.01", Name: "Trade Receivables", Type: TypeAsset, AuxiliaryKind: AuxClient},
	{Code: "1.1.02.02", Name: "Card Receivables", Type: TypeAsset},
	{Code: "1.1.03", Name: "Inventories", Type: TypeAsset},
	{Code: "1.1.03.01", Name: "Merchandise Inventory", Type: TypeAsset, AuxiliaryKind: AuxProduct},
	{Code: "1.1.05", Name: "Tax Assets", Type: TypeAsset},
	{Code: "1.1.05.01", Name: "VAT Paid on Purchases", Type: TypeAsset},
	{Code: "1.1.05.05", Name: "VAT Withheld by Customers", Type: TypeAsset},
	{Code: "1.1.05.06", Name: "Income Tax Withheld by Customers", Type: TypeAsset},
	{Code: "1.2", Name: "Non-current Assets", Type: TypeAsset},
	{Code: "1.2.01", Name: "Property and Equipment", Type: TypeAsset},
	{Code: "1.2.01.01", Name: "Equipment and Machinery", Type: TypeAsset},
	{Code: "1.2.01.02", Name: "Vehicles", Type: TypeAsset},
	{Code: "1.2.01.03", Name: "Buildings", Type: TypeAsset},

	// Liabilities
	{Code: "2", Name: "Liabilities", Type: TypeLiability},
	{Code: "2.1", Name: "Current Liabilities", Type: TypeLiability},
	{Code: "2.1.01", Name: "Operating Payables", Type: TypeLiability},
	{Code: "2.1.01.01", Name: "Payables and Taxes", Type: TypeLiability},
	{Code: "2.1.01.01.01", Name: "Trade Payables", Type: TypeLiability, AuxiliaryKind: AuxSupplier},
	{Code: "2.1.01.01.02", Name: "Payroll Payable", Type: TypeLiability, AuxiliaryKind: AuxEmployee},
	{Code: "2.1.01.01.03", Name: "VAT Payable", Type: TypeLiability},
	{Code: "2.1.01.01.03.01", Name: "VAT Payable 15%", Type: TypeLiability},
	{Code: "2.1.01.01.03.02", Name: "VAT Payable 5%", Type: TypeLiability},
	{Code: "2.1.02", Name: "Short-term Bank Loans", Type: TypeLiability},
	{Code: "2.1.02.01", Name: "Bank Credit Lines", Type: TypeLiability, AuxiliaryKind: AuxBank},
	{Code: "2.2", Name: "Non-current Liabilities", Type: TypeLiability},
	{Code: "2.2.01", Name: "Long-term Loans", Type: TypeLiability},

	// Equity
	{Code: "3", Name: "Equity", Type: TypeEquity},
	{Code: "3.1", Name: "Capital", Type: TypeEquity},
	{Code: "3.1.01", Name: "Paid-in Capital", Type: TypeEquity},
	{Code: "3.3", Name: "Retained Earnings", Type: TypeEquity},
	{Code: "3.3.01", Name: "Accumulated Profits", Type: TypeEquity},

	// Income
	{Code: "4", Name: "Income", Type: TypeIncome},
	{Code: "4.1", Name: "Operating Income", Type: TypeIncome},
	{Code: "4.1.01", Name: "Sales of Goods", Type: TypeIncome},
	{Code: "4.1.02", Name: "Services Rendered", Type: TypeIncome},
	{Code: "4.2", Name: "Other Income", Type: TypeIncome},
	{Code: "4.2.01", Name: "Interest Earned", Type: TypeIncome},

	// Expenses
	{Code: "5", Name: "Costs and Expenses", Type: TypeExpense},
	{Code: "5.1", Name: "Cost of Sales", Type: TypeExpense},
	{Code: "5.1.01", Name: "Cost of Goods Sold", Type: TypeExpense},
	{Code: "5.2", Name: "Operating Expenses", Type: TypeExpense},
	{Code: "5.2.01", Name: "Salaries and Wages", Type: TypeExpense},
	{Code: "5.2.02", Name: "Rent", Type: TypeExpense},
	{Code: "5.2.03", Name: "Utilities", Type: TypeExpense},
	{Code: "5.3", Name: "Financial Expenses", Type: TypeExpense},
	{Code: "5.3.01", Name: "Interest Expense", Type: TypeExpense},
}

// ParentCode drops the last dotted segment, e.g. "1.1.01" -> "1.1".
// Root codes return "".
func ParentCode(code string) string {
	i := strings.LastIndexByte(code, '.')
	if i < 0 {
		return ""
	}
	return code[:i]
}

// LookupChartEntry finds a template row by code.
func LookupChartEntry(code string) *ChartEntry {
	for i := range DefaultChart {
		if DefaultChart[i].Code == code {
			return &DefaultChart[i]
		}
	}
	return nil
}
