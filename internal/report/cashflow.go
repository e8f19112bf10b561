package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simonvc/ledgerd/internal/ledger"
)

// Classifier assigns a cash movement to an activity. Implementations are
// heuristics; the cash-flow report is always marked best effort.
type Classifier interface {
	Name() string
	Classify(m ledger.Movement) ledger.CashActivity
}

// KeywordClassifier matches lower-cased entry and line descriptions
// against keyword lists. Financing is checked before investing. Anything
// unmatched is operating.
type KeywordClassifier struct {
	Financing []string
	Investing []string
}

func DefaultKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		Financing: []string{
			"loan", "financing", "capital", "shareholder", "partner", "dividend",
			"interest", "debt", "bond", "equity",
			"prestamo", "préstamo", "financiamiento", "socio", "dividendo", "interes", "interés", "deuda", "bonos", "patrimonio",
		},
		Investing: []string{
			"fixed asset", "equipment", "machinery", "property", "land", "building", "investment", "vehicle", "technology",
			"activo fijo", "equipo", "maquinaria", "propiedad", "terreno", "edificio", "inversion", "inversión", "inmueble", "vehiculo", "vehículo",
		},
	}
}

func (k *KeywordClassifier) Name() string { return "keyword" }

func (k *KeywordClassifier) Classify(m ledger.Movement) ledger.CashActivity {
	text := strings.ToLower(m.EntryDescription + " " + m.LineDescription)
	switch {
	case containsAny(text, k.Financing):
		return ledger.ActivityFinancing
	case containsAny(text, k.Investing):
		return ledger.ActivityInvesting
	default:
		return ledger.ActivityOperating
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(text, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// CashFlow classifies period movements on the cash accounts. opening and
// closing are the combined cash balances before from and at to; a gap
// between closing and opening plus the net change is reported as a
// warning.
func CashFlow(companyID string, cash []ledger.Account, movements []ledger.Movement, opening, closing decimal.Decimal, c Classifier, from, to time.Time) *ledger.CashFlow {
	cf := &ledger.CashFlow{
		CompanyID:   companyID,
		From:        from,
		To:          to,
		Opening:     opening,
		NetChange:   decimal.Zero,
		BestEffort:  true,
		Classifier:  c.Name(),
		GeneratedAt: Now(),
	}

	codes := make(map[string]string, len(cash))
	for _, a := range cash {
		codes[a.ID] = a.Code
		cf.CashAccounts = append(cf.CashAccounts, a.Code)
	}

	sections := make(map[ledger.CashActivity]*ledger.CashFlowSection, len(ledger.AllActivities))
	for _, act := range ledger.AllActivities {
		sections[act] = &ledger.CashFlowSection{Activity: act, Inflows: decimal.Zero, Outflows: decimal.Zero, Net: decimal.Zero}
	}

	for _, m := range movements {
		code, ok := codes[m.AccountID]
		if !ok {
			continue
		}
		desc := m.EntryDescription
		if m.LineDescription != "" {
			desc = m.LineDescription
		}
		s := sections[c.Classify(m)]
		if s == nil {
			s = sections[ledger.ActivityOperating]
		}
		s.Items = append(s.Items, ledger.CashFlowItem{
			EntryID:     m.EntryID,
			Number:      m.EntryNumber,
			Date:        m.Date,
			AccountCode: code,
			Description: desc,
			Inflow:      m.Debit,
			Outflow:     m.Credit,
		})
		s.Inflows = s.Inflows.Add(m.Debit)
		s.Outflows = s.Outflows.Add(m.Credit)
	}

	for _, act := range ledger.AllActivities {
		s := sections[act]
		s.Net = s.Inflows.Sub(s.Outflows)
		cf.NetChange = cf.NetChange.Add(s.Net)
		cf.Sections = append(cf.Sections, *s)
	}
	cf.Closing = cf.Opening.Add(cf.NetChange)

	if !ledger.NearlyEqual(cf.Closing, closing) {
		cf.Warnings = append(cf.Warnings, ledger.ReconciliationWarning{
			Section:    "cash_flow",
			Left:       cf.Closing,
			Right:      closing,
			Difference: cf.Closing.Sub(closing),
			Message: fmt.Sprintf("opening plus net change %s differs from closing cash %s",
				cf.Closing.StringFixed(2), closing.StringFixed(2)),
		})
	}
	return cf
}

// CashAccounts picks asset leaves tagged as cash or bank, plus any account
// whose code is listed in extraCodes.
func CashAccounts(accounts []ledger.Account, extraCodes []string) []ledger.Account {
	extra := make(map[string]bool, len(extraCodes))
	for _, c := range extraCodes {
		extra[c] = true
	}
	var out []ledger.Account
	for _, a := range accounts {
		if a.Type != ledger.TypeAsset || !a.AcceptsMovement {
			continue
		}
		if a.AuxiliaryKind == ledger.AuxCash || a.AuxiliaryKind == ledger.AuxBank || extra[a.Code] {
			out = append(out, a)
		}
	}
	return out
}
