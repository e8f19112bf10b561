package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simonvc/ledgerd/internal/ledger"
)

// numberRetries bounds how often entry creation retries after another
// process claimed the same number.
const numberRetries = 3

const entryColumns = `id, company_id, number, date, reference, description, state, created_by, created_at,
	posted_by, posted_at, cancelled_by, cancelled_at, reversal_of, reversed_by, total_debit_cents, total_credit_cents`

// CreateEntry assigns the next company number and inserts the entry with
// its lines in one transaction. An entry handed in as StatePosted is
// posted inside that same transaction.
func (s *Store) CreateEntry(ctx context.Context, e *ledger.Entry) error {
	post := e.State == ledger.StatePosted
	var err error
	for attempt := 0; attempt < numberRetries; attempt++ {
		err = s.withTx(ctx, func(tx *sql.Tx) error {
			return insertEntry(ctx, tx, e, post)
		})
		if !uniqueViolation(err, "ledger_entries.number") {
			return err
		}
	}
	return fmt.Errorf("assign entry number: %w", err)
}

func insertEntry(ctx context.Context, tx *sql.Tx, e *ledger.Entry, post bool) error {
	if _, err := getCompany(ctx, tx, e.CompanyID); err != nil {
		return err
	}
	if e.Date.IsZero() {
		return &ledger.ValidationError{Problems: []string{"entry date is required"}}
	}

	e.State = ledger.StateDraft
	e.ID = uuid.Must(uuid.NewV7()).String()
	e.CreatedAt = time.Now().UTC()

	verr := &ledger.ValidationError{}
	for i := range e.Lines {
		if err := checkLine(ctx, tx, e.CompanyID, &e.Lines[i]); err != nil {
			var lv *ledger.ValidationError
			if !errors.As(err, &lv) {
				return err
			}
			for _, p := range lv.Problems {
				verr.Add("line %d: %s", i+1, p)
			}
		}
	}
	if err := verr.Err(); err != nil {
		return err
	}

	var last string
	err := tx.QueryRowContext(ctx,
		`SELECT number FROM ledger_entries WHERE company_id = ? ORDER BY CAST(number AS INTEGER) DESC LIMIT 1`,
		e.CompanyID).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read last entry number: %w", err)
	}
	if e.Number, err = ledger.NextEntryNumber(last); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, company_id, number, date, reference, description, state, created_by, created_at, reversal_of)
		 VALUES (?, ?, ?, ?, ?, ?, 'draft', ?, ?, ?)`,
		e.ID, e.CompanyID, e.Number, e.Date.Format(dateLayout), e.Reference, e.Description,
		e.CreatedBy, e.CreatedAt.Format(time.RFC3339Nano), nullString(e.ReversalOf),
	)
	if uniqueViolation(err, "ledger_entries.reference") {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateReference, e.Reference)
	}
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	for i := range e.Lines {
		if err := insertLine(ctx, tx, e.ID, &e.Lines[i]); err != nil {
			return fmt.Errorf("insert line %d: %w", i+1, err)
		}
	}

	for i, o := range e.Omissions {
		if err := insertOmission(ctx, tx, e.ID, i, o); err != nil {
			return fmt.Errorf("insert omission %d: %w", i+1, err)
		}
	}

	if err := syncTotals(ctx, tx, e); err != nil {
		return err
	}
	if post {
		return postEntry(ctx, tx, e, e.CreatedBy)
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, id string) (*ledger.Entry, error) {
	return loadEntry(ctx, s.reader, id)
}

// GetEntryByReference finds an entry by its idempotency key.
func (s *Store) GetEntryByReference(ctx context.Context, companyID, reference string) (*ledger.Entry, error) {
	var id string
	err := s.reader.QueryRowContext(ctx,
		`SELECT id FROM ledger_entries WHERE company_id = ? AND reference = ?`, companyID, reference,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reference %s", ledger.ErrEntryNotFound, reference)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry by reference: %w", err)
	}
	return loadEntry(ctx, s.reader, id)
}

// ListEntries returns entry headers without lines, newest number first.
func (s *Store) ListEntries(ctx context.Context, filter EntryFilter) ([]ledger.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE company_id = ?`
	args := []any{filter.CompanyID}

	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	if filter.From != nil {
		query += ` AND date >= ?`
		args = append(args, filter.From.Format(dateLayout))
	}
	if filter.To != nil {
		query += ` AND date <= ?`
		args = append(args, filter.To.Format(dateLayout))
	}

	query += ` ORDER BY CAST(number AS INTEGER) DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
		}
	}

	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// AddLine appends a line to a draft entry and returns the updated entry.
func (s *Store) AddLine(ctx context.Context, entryID string, l *ledger.Line) (*ledger.Entry, error) {
	return s.mutateDraft(ctx, entryID, "add line", func(tx *sql.Tx, e *ledger.Entry) error {
		if err := checkLine(ctx, tx, e.CompanyID, l); err != nil {
			return err
		}
		return insertLine(ctx, tx, e.ID, l)
	})
}

// UpdateLine replaces the fields of an existing line on a draft entry.
func (s *Store) UpdateLine(ctx context.Context, entryID, lineID string, l *ledger.Line) (*ledger.Entry, error) {
	return s.mutateDraft(ctx, entryID, "update line", func(tx *sql.Tx, e *ledger.Entry) error {
		if err := checkLine(ctx, tx, e.CompanyID, l); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE ledger_lines SET account_id = ?, debit_cents = ?, credit_cents = ?, description = ?,
				auxiliary_code = ?, auxiliary_name = ?, document_type = ?, document_number = ?, document_date = ?
			 WHERE id = ? AND entry_id = ?`,
			l.AccountID, ledger.ToCents(l.Debit), ledger.ToCents(l.Credit), l.Description,
			l.AuxiliaryCode, l.AuxiliaryName, l.DocumentType, l.DocumentNumber, nullDate(l.DocumentDate),
			lineID, e.ID,
		)
		if err != nil {
			return fmt.Errorf("update line: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ledger.ErrLineNotFound, lineID)
		}
		l.ID, l.EntryID = lineID, e.ID
		return nil
	})
}

func (s *Store) RemoveLine(ctx context.Context, entryID, lineID string) (*ledger.Entry, error) {
	return s.mutateDraft(ctx, entryID, "remove line", func(tx *sql.Tx, e *ledger.Entry) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM ledger_lines WHERE id = ? AND entry_id = ?`, lineID, e.ID)
		if err != nil {
			return fmt.Errorf("delete line: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ledger.ErrLineNotFound, lineID)
		}
		return nil
	})
}

// mutateDraft loads a draft, applies fn and recomputes the totals from the
// stored lines as the last step of the same transaction.
func (s *Store) mutateDraft(ctx context.Context, entryID, action string, fn func(tx *sql.Tx, e *ledger.Entry) error) (*ledger.Entry, error) {
	var out *ledger.Entry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		e, err := loadEntry(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if err := e.CheckEditable(action); err != nil {
			return err
		}
		if err := fn(tx, e); err != nil {
			return err
		}
		if out, err = loadEntry(ctx, tx, entryID); err != nil {
			return err
		}
		return syncTotals(ctx, tx, out)
	})
	return out, err
}

// PostEntry re-validates the draft and flips it to posted in one
// transaction.
func (s *Store) PostEntry(ctx context.Context, id, user string) (*ledger.Entry, error) {
	var e *ledger.Entry
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if e, err = loadEntry(ctx, tx, id); err != nil {
			return err
		}
		return postEntry(ctx, tx, e, user)
	})
	return e, err
}

func postEntry(ctx context.Context, tx *sql.Tx, e *ledger.Entry, user string) error {
	if err := e.CheckPostable(); err != nil {
		return err
	}
	postedAt := time.Now().UTC()
	_, err := tx.ExecContext(ctx,
		`UPDATE ledger_entries SET total_debit_cents = ?, total_credit_cents = ?, state = 'posted', posted_by = ?, posted_at = ?
		 WHERE id = ?`,
		ledger.ToCents(e.TotalDebit), ledger.ToCents(e.TotalCredit), user, postedAt.Format(time.RFC3339Nano), e.ID,
	)
	if err != nil {
		return fmt.Errorf("post entry %s: %w", e.Number, err)
	}
	e.State = ledger.StatePosted
	e.PostedBy = user
	e.PostedAt = &postedAt
	return nil
}

// CancelEntry marks a posted entry cancelled and records a posted
// reversing entry dated date. The original is kept unchanged otherwise.
func (s *Store) CancelEntry(ctx context.Context, id, user string, date time.Time) (original, reversal *ledger.Entry, err error) {
	for attempt := 0; attempt < numberRetries; attempt++ {
		err = s.withTx(ctx, func(tx *sql.Tx) error {
			var err error
			if original, err = loadEntry(ctx, tx, id); err != nil {
				return err
			}
			if original.State != ledger.StatePosted {
				return &ledger.InvalidStateError{EntryID: original.ID, State: original.State, Action: "cancel"}
			}

			reversal = original.Reverse(date, user)
			if err := insertEntry(ctx, tx, reversal, true); err != nil {
				return fmt.Errorf("insert reversal: %w", err)
			}

			cancelledAt := time.Now().UTC()
			_, err = tx.ExecContext(ctx,
				`UPDATE ledger_entries SET state = 'cancelled', cancelled_by = ?, cancelled_at = ?, reversed_by = ? WHERE id = ?`,
				user, cancelledAt.Format(time.RFC3339Nano), reversal.ID, original.ID,
			)
			if err != nil {
				return fmt.Errorf("cancel entry %s: %w", original.Number, err)
			}
			original.State = ledger.StateCancelled
			original.CancelledBy = user
			original.CancelledAt = &cancelledAt
			original.ReversedBy = reversal.ID
			return nil
		})
		if !uniqueViolation(err, "ledger_entries.number") {
			break
		}
	}
	if err != nil {
		return nil, nil, err
	}
	return original, reversal, nil
}

// DeleteDraft removes a draft entry and its lines.
func (s *Store) DeleteDraft(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		e, err := loadEntry(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := e.CheckEditable("delete"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
		return nil
	})
}

// checkLine validates amounts and that the account is a leaf of companyID.
// It fills in AccountCode.
func checkLine(ctx context.Context, q queryer, companyID string, l *ledger.Line) error {
	l.Debit = ledger.Round(l.Debit)
	l.Credit = ledger.Round(l.Credit)
	if err := l.Validate(); err != nil {
		return err
	}

	acct, err := getAccount(ctx, q, l.AccountID)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return &ledger.ValidationError{Problems: []string{fmt.Sprintf("account %s not found", l.AccountID)}}
	}
	if err != nil {
		return err
	}

	verr := &ledger.ValidationError{}
	if acct.CompanyID != companyID {
		verr.Add("account %s belongs to another company", acct.Code)
	}
	if !acct.AcceptsMovement {
		verr.Add("account %s does not accept movement", acct.Code)
	}
	if acct.RequiresAuxiliary && l.AuxiliaryCode == "" {
		verr.Add("account %s requires an auxiliary %s reference", acct.Code, acct.AuxiliaryKind)
	}
	l.AccountCode = acct.Code
	return verr.Err()
}

func insertLine(ctx context.Context, tx *sql.Tx, entryID string, l *ledger.Line) error {
	l.ID = uuid.Must(uuid.NewV7()).String()
	l.EntryID = entryID
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_lines (id, entry_id, account_id, debit_cents, credit_cents, description,
			auxiliary_code, auxiliary_name, document_type, document_number, document_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, entryID, l.AccountID, ledger.ToCents(l.Debit), ledger.ToCents(l.Credit), l.Description,
		l.AuxiliaryCode, l.AuxiliaryName, l.DocumentType, l.DocumentNumber, nullDate(l.DocumentDate),
	)
	if err != nil {
		return fmt.Errorf("insert line: %w", err)
	}
	return nil
}

// syncTotals recomputes the header totals from the stored lines.
func syncTotals(ctx context.Context, tx *sql.Tx, e *ledger.Entry) error {
	var debit, credit int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(debit_cents), 0), COALESCE(SUM(credit_cents), 0) FROM ledger_lines WHERE entry_id = ?`, e.ID,
	).Scan(&debit, &credit)
	if err != nil {
		return fmt.Errorf("sum lines: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE ledger_entries SET total_debit_cents = ?, total_credit_cents = ? WHERE id = ?`, debit, credit, e.ID); err != nil {
		return fmt.Errorf("update totals: %w", err)
	}
	e.TotalDebit = ledger.FromCents(debit)
	e.TotalCredit = ledger.FromCents(credit)
	return nil
}

func loadEntry(ctx context.Context, q queryer, id string) (*ledger.Entry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrEntryNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT l.id, l.entry_id, l.account_id, a.code, l.debit_cents, l.credit_cents, l.description,
			l.auxiliary_code, l.auxiliary_name, l.document_type, l.document_number, l.document_date
		 FROM ledger_lines l JOIN accounts a ON a.id = l.account_id
		 WHERE l.entry_id = ? ORDER BY l.rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l ledger.Line
		var debit, credit int64
		var docDate sql.NullString
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.AccountCode, &debit, &credit, &l.Description,
			&l.AuxiliaryCode, &l.AuxiliaryName, &l.DocumentType, &l.DocumentNumber, &docDate); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		l.Debit = ledger.FromCents(debit)
		l.Credit = ledger.FromCents(credit)
		l.DocumentDate = parseDate(docDate)
		e.Lines = append(e.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if e.Omissions, err = loadOmissions(ctx, q, id); err != nil {
		return nil, err
	}
	return e, nil
}

func insertOmission(ctx context.Context, tx *sql.Tx, entryID string, pos int, o ledger.Omission) error {
	var rate sql.NullString
	if o.Rate != nil {
		rate = sql.NullString{String: o.Rate.String(), Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO entry_omissions (entry_id, position, purpose, rate, line_index, amount_cents, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entryID, pos, string(o.Purpose), rate, o.LineIndex, ledger.ToCents(o.Amount), o.Reason,
	)
	return err
}

func loadOmissions(ctx context.Context, q queryer, entryID string) ([]ledger.Omission, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT purpose, rate, line_index, amount_cents, reason
		 FROM entry_omissions WHERE entry_id = ? ORDER BY position`, entryID)
	if err != nil {
		return nil, fmt.Errorf("get omissions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Omission
	for rows.Next() {
		var o ledger.Omission
		var rate sql.NullString
		var amount int64
		if err := rows.Scan(&o.Purpose, &rate, &o.LineIndex, &amount, &o.Reason); err != nil {
			return nil, fmt.Errorf("scan omission: %w", err)
		}
		if rate.Valid {
			r, err := decimal.NewFromString(rate.String)
			if err != nil {
				return nil, fmt.Errorf("parse omission rate %q: %w", rate.String, err)
			}
			o.Rate = &r
		}
		o.Amount = ledger.FromCents(amount)
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanEntry(row scanner) (*ledger.Entry, error) {
	var e ledger.Entry
	var date, createdAt string
	var postedBy, postedAt, cancelledBy, cancelledAt, reversalOf, reversedBy sql.NullString
	var debit, credit int64
	err := row.Scan(&e.ID, &e.CompanyID, &e.Number, &date, &e.Reference, &e.Description, &e.State,
		&e.CreatedBy, &createdAt, &postedBy, &postedAt, &cancelledBy, &cancelledAt, &reversalOf, &reversedBy,
		&debit, &credit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	e.Date, _ = time.Parse(dateLayout, date)
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	e.PostedBy = postedBy.String
	e.PostedAt = parseTime(postedAt)
	e.CancelledBy = cancelledBy.String
	e.CancelledAt = parseTime(cancelledAt)
	e.ReversalOf = reversalOf.String
	e.ReversedBy = reversedBy.String
	e.TotalDebit = ledger.FromCents(debit)
	e.TotalCredit = ledger.FromCents(credit)
	return &e, nil
}
