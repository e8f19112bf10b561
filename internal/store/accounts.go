package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/simonvc/ledgerd/internal/ledger"
)

const accountColumns = `id, company_id, code, name, type, parent_id, level, accepts_movement, requires_auxiliary, auxiliary_kind, created_at`

// Chart loads the company's chart of accounts.
func (s *Store) Chart(ctx context.Context, companyID string) (*ledger.Chart, error) {
	return loadChart(ctx, s.reader, companyID)
}

// CreateAccount inserts acct under its ParentID. Level and the leaf flag
// are computed here; a parent that was a leaf stops accepting movement in
// the same transaction.
func (s *Store) CreateAccount(ctx context.Context, acct *ledger.Account) error {
	if err := acct.Validate(); err != nil {
		return err
	}
	if acct.ID == "" {
		acct.ID = uuid.Must(uuid.NewV7()).String()
	}
	acct.CreatedAt = time.Now().UTC()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		chart, err := loadChart(ctx, tx, acct.CompanyID)
		if err != nil {
			return err
		}
		return insertAccount(ctx, tx, chart, acct)
	})
}

func insertAccount(ctx context.Context, tx *sql.Tx, chart *ledger.Chart, acct *ledger.Account) error {
	if acct.ParentID != "" {
		if err := checkParentUnused(ctx, tx, acct.ID, acct.ParentID); err != nil {
			return err
		}
	}
	changed, err := chart.Insert(acct)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		acct.ID, acct.CompanyID, acct.Code, acct.Name, string(acct.Type), nullString(acct.ParentID),
		acct.Level, boolToInt(acct.AcceptsMovement), boolToInt(acct.RequiresAuxiliary), string(acct.AuxiliaryKind),
		acct.CreatedAt.Format(time.RFC3339Nano),
	)
	if uniqueViolation(err, "accounts.code") {
		return fmt.Errorf("%w: code %s", ledger.ErrDuplicateAccount, acct.Code)
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return updateTree(ctx, tx, changed, acct.ID)
}

// MoveAccount reparents an account (to the root when newParentID is empty)
// and returns every account whose level or leaf flag changed.
func (s *Store) MoveAccount(ctx context.Context, id, newParentID string) ([]ledger.Account, error) {
	var changed []ledger.Account
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		acct, err := getAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		chart, err := loadChart(ctx, tx, acct.CompanyID)
		if err != nil {
			return err
		}
		if newParentID != "" && newParentID != acct.ParentID {
			if err := checkParentUnused(ctx, tx, id, newParentID); err != nil {
				return err
			}
		}
		changed, err = chart.Reparent(id, newParentID)
		if err != nil {
			return err
		}
		return updateTree(ctx, tx, changed, "")
	})
	return changed, err
}

// DeleteAccount removes a leaf account that has never been used on a line.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		acct, err := getAccount(ctx, tx, id)
		if err != nil {
			return err
		}

		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_lines WHERE account_id = ?`, id).Scan(&count); err != nil {
			return fmt.Errorf("check lines: %w", err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s has %d lines", ledger.ErrAccountInUse, acct.Code, count)
		}

		chart, err := loadChart(ctx, tx, acct.CompanyID)
		if err != nil {
			return err
		}
		changed, err := chart.Remove(id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tax_account_mappings WHERE account_id = ? OR retention_account_id = ?`, id, id); err != nil {
			return fmt.Errorf("delete tax mappings: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM account_defaults WHERE account_id = ?`, id); err != nil {
			return fmt.Errorf("delete account defaults: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return updateTree(ctx, tx, changed, "")
	})
}

// SeedChart inserts every DefaultChart account whose code the company does
// not have yet and returns the accounts created.
func (s *Store) SeedChart(ctx context.Context, companyID string) ([]ledger.Account, error) {
	var created []ledger.Account
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		chart, err := loadChart(ctx, tx, companyID)
		if err != nil {
			return err
		}
		for _, ce := range ledger.DefaultChart {
			if _, ok := chart.ByCode(ce.Code); ok {
				continue
			}
			acct := &ledger.Account{
				ID:                uuid.Must(uuid.NewV7()).String(),
				CompanyID:         companyID,
				Code:              ce.Code,
				Name:              ce.Name,
				Type:              ce.Type,
				AuxiliaryKind:     ce.AuxiliaryKind,
				RequiresAuxiliary: ce.AuxiliaryKind == ledger.AuxClient || ce.AuxiliaryKind == ledger.AuxSupplier,
				CreatedAt:         time.Now().UTC(),
			}
			if pc := ledger.ParentCode(ce.Code); pc != "" {
				parent, ok := chart.ByCode(pc)
				if !ok {
					return &ledger.HierarchyError{AccountID: ce.Code, Reason: fmt.Sprintf("parent code %s missing from chart", pc)}
				}
				acct.ParentID = parent.ID
			}
			if err := insertAccount(ctx, tx, chart, acct); err != nil {
				return fmt.Errorf("seed %s: %w", ce.Code, err)
			}
			created = append(created, *acct)
		}
		return nil
	})
	return created, err
}

func (s *Store) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	return getAccount(ctx, s.reader, id)
}

func (s *Store) GetAccountByCode(ctx context.Context, companyID, code string) (*ledger.Account, error) {
	row := s.reader.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE company_id = ? AND code = ?`, companyID, code)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: code %s", ledger.ErrAccountNotFound, code)
	}
	return acct, err
}

func (s *Store) ListAccounts(ctx context.Context, filter AccountFilter) ([]ledger.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE company_id = ?`
	args := []any{filter.CompanyID}

	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.LeafOnly {
		query += ` AND accepts_movement = 1`
	}

	query += ` ORDER BY code`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET %d`, filter.Offset)
		}
	}

	return queryAccounts(ctx, s.reader, query, args...)
}

func getAccount(ctx context.Context, q queryer, id string) (*ledger.Account, error) {
	row := q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, id)
	}
	return acct, err
}

func loadChart(ctx context.Context, q queryer, companyID string) (*ledger.Chart, error) {
	if _, err := getCompany(ctx, q, companyID); err != nil {
		return nil, err
	}
	accounts, err := queryAccounts(ctx, q,
		`SELECT `+accountColumns+` FROM accounts WHERE company_id = ? ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	return ledger.NewChart(companyID, accounts), nil
}

// checkParentUnused refuses to place children under an account that
// already carries ledger lines, since it would stop accepting movement
// while holding a balance.
func checkParentUnused(ctx context.Context, q queryer, childID, parentID string) error {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_lines WHERE account_id = ?`, parentID).Scan(&count); err != nil {
		return fmt.Errorf("check parent lines: %w", err)
	}
	if count > 0 {
		return &ledger.HierarchyError{AccountID: childID, Reason: fmt.Sprintf("parent %s already has ledger lines", parentID)}
	}
	return nil
}

// updateTree persists the tree fields of changed accounts, skipping skipID
// which was just inserted.
func updateTree(ctx context.Context, tx *sql.Tx, changed []ledger.Account, skipID string) error {
	for _, a := range changed {
		if a.ID == skipID {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE accounts SET parent_id = ?, level = ?, accepts_movement = ? WHERE id = ?`,
			nullString(a.ParentID), a.Level, boolToInt(a.AcceptsMovement), a.ID)
		if err != nil {
			return fmt.Errorf("update account %s: %w", a.Code, err)
		}
	}
	return nil
}

func queryAccounts(ctx context.Context, q queryer, query string, args ...any) ([]ledger.Account, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acct)
	}
	return accounts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*ledger.Account, error) {
	var acct ledger.Account
	var parentID sql.NullString
	var accepts, requires int
	var createdAt string
	err := row.Scan(&acct.ID, &acct.CompanyID, &acct.Code, &acct.Name, &acct.Type, &parentID,
		&acct.Level, &accepts, &requires, &acct.AuxiliaryKind, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	acct.ParentID = parentID.String
	acct.AcceptsMovement = accepts == 1
	acct.RequiresAuxiliary = requires == 1
	acct.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &acct, nil
}
