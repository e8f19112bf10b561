package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/simonvc/ledgerd/internal/ledger"
)

// Lines of posted entries count towards balances. Cancelled entries stay in
// the books; their posted reversal offsets them.
const postedStates = `('posted','cancelled')`

// AccountTotals sums posted lines of one account dated from..to inclusive,
// or up to to when from is nil.
func (s *Store) AccountTotals(ctx context.Context, accountID string, from *time.Time, to time.Time) (ledger.AccountTotals, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return ledger.AccountTotals{}, err
	}

	query := `SELECT COALESCE(SUM(l.debit_cents), 0), COALESCE(SUM(l.credit_cents), 0)
		FROM ledger_lines l
		JOIN ledger_entries e ON e.id = l.entry_id
		WHERE l.account_id = ? AND e.state IN ` + postedStates + ` AND e.date <= ?`
	args := []any{accountID, to.Format(dateLayout)}
	if from != nil {
		query += ` AND e.date >= ?`
		args = append(args, from.Format(dateLayout))
	}

	var debit, credit int64
	if err := s.reader.QueryRowContext(ctx, query, args...).Scan(&debit, &credit); err != nil {
		return ledger.AccountTotals{}, fmt.Errorf("account totals: %w", err)
	}
	return ledger.AccountTotals{AccountID: accountID, Debit: ledger.FromCents(debit), Credit: ledger.FromCents(credit)}, nil
}

// CompanyTotals sums posted lines per account of a company, over the same
// window rules as AccountTotals. Accounts without movement are omitted.
func (s *Store) CompanyTotals(ctx context.Context, companyID string, from *time.Time, to time.Time) ([]ledger.AccountTotals, error) {
	query := `SELECT l.account_id, SUM(l.debit_cents), SUM(l.credit_cents)
		FROM ledger_lines l
		JOIN ledger_entries e ON e.id = l.entry_id
		WHERE e.company_id = ? AND e.state IN ` + postedStates + ` AND e.date <= ?`
	args := []any{companyID, to.Format(dateLayout)}
	if from != nil {
		query += ` AND e.date >= ?`
		args = append(args, from.Format(dateLayout))
	}
	query += ` GROUP BY l.account_id`

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("company totals: %w", err)
	}
	defer rows.Close()

	var out []ledger.AccountTotals
	for rows.Next() {
		var t ledger.AccountTotals
		var debit, credit int64
		if err := rows.Scan(&t.AccountID, &debit, &credit); err != nil {
			return nil, fmt.Errorf("scan totals: %w", err)
		}
		t.Debit = ledger.FromCents(debit)
		t.Credit = ledger.FromCents(credit)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Movements lists posted lines on accountIDs dated from..to inclusive, in
// date then entry-number order.
func (s *Store) Movements(ctx context.Context, companyID string, accountIDs []string, from, to time.Time) ([]ledger.Movement, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(accountIDs)), ",")
	args := []any{companyID, from.Format(dateLayout), to.Format(dateLayout)}
	for _, id := range accountIDs {
		args = append(args, id)
	}

	rows, err := s.reader.QueryContext(ctx,
		`SELECT e.id, e.number, e.date, e.reference, e.description, l.id, l.description, l.account_id, l.debit_cents, l.credit_cents
		FROM ledger_lines l
		JOIN ledger_entries e ON e.id = l.entry_id
		WHERE e.company_id = ? AND e.state IN `+postedStates+` AND e.date >= ? AND e.date <= ?
			AND l.account_id IN (`+placeholders+`)
		ORDER BY e.date, CAST(e.number AS INTEGER), l.rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("movements: %w", err)
	}
	defer rows.Close()

	var out []ledger.Movement
	for rows.Next() {
		var m ledger.Movement
		var date string
		var debit, credit int64
		if err := rows.Scan(&m.EntryID, &m.EntryNumber, &date, &m.Reference, &m.EntryDescription,
			&m.LineID, &m.LineDescription, &m.AccountID, &debit, &credit); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		m.Date, _ = time.Parse(dateLayout, date)
		m.Debit = ledger.FromCents(debit)
		m.Credit = ledger.FromCents(credit)
		out = append(out, m)
	}
	return out, rows.Err()
}
