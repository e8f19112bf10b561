package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/simonvc/ledgerd/internal/ledger"
)

// TaxMapping returns the company's mapping for rate, or nil when none is
// configured.
func (s *Store) TaxMapping(ctx context.Context, companyID string, rate decimal.Decimal) (*ledger.TaxMapping, error) {
	var m ledger.TaxMapping
	var rateKey string
	var retention sql.NullString
	err := s.reader.QueryRowContext(ctx,
		`SELECT company_id, rate, account_id, retention_account_id FROM tax_account_mappings WHERE company_id = ? AND rate = ?`,
		companyID, ledger.RateKey(rate),
	).Scan(&m.CompanyID, &rateKey, &m.AccountID, &retention)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tax mapping: %w", err)
	}
	m.Rate, _ = decimal.NewFromString(rateKey)
	m.RetentionAccountID = retention.String
	return &m, nil
}

// AccountDefault returns the account configured for purpose, or "".
func (s *Store) AccountDefault(ctx context.Context, companyID string, purpose ledger.Purpose) (string, error) {
	var id string
	err := s.reader.QueryRowContext(ctx,
		`SELECT account_id FROM account_defaults WHERE company_id = ? AND purpose = ?`,
		companyID, string(purpose),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get account default: %w", err)
	}
	return id, nil
}

func (s *Store) SetTaxMapping(ctx context.Context, m *ledger.TaxMapping) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkCompanyAccount(ctx, tx, m.CompanyID, m.AccountID); err != nil {
			return err
		}
		if m.RetentionAccountID != "" {
			if err := checkCompanyAccount(ctx, tx, m.CompanyID, m.RetentionAccountID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tax_account_mappings (company_id, rate, account_id, retention_account_id) VALUES (?, ?, ?, ?)
			 ON CONFLICT(company_id, rate) DO UPDATE SET account_id = excluded.account_id, retention_account_id = excluded.retention_account_id`,
			m.CompanyID, ledger.RateKey(m.Rate), m.AccountID, nullString(m.RetentionAccountID),
		)
		if err != nil {
			return fmt.Errorf("upsert tax mapping: %w", err)
		}
		return nil
	})
}

func (s *Store) SetAccountDefault(ctx context.Context, d ledger.AccountDefault) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkCompanyAccount(ctx, tx, d.CompanyID, d.AccountID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO account_defaults (company_id, purpose, account_id) VALUES (?, ?, ?)
			 ON CONFLICT(company_id, purpose) DO UPDATE SET account_id = excluded.account_id`,
			d.CompanyID, string(d.Purpose), d.AccountID,
		)
		if err != nil {
			return fmt.Errorf("upsert account default: %w", err)
		}
		return nil
	})
}

func (s *Store) ListTaxMappings(ctx context.Context, companyID string) ([]ledger.TaxMapping, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT company_id, rate, account_id, retention_account_id FROM tax_account_mappings WHERE company_id = ?`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list tax mappings: %w", err)
	}
	defer rows.Close()

	var out []ledger.TaxMapping
	for rows.Next() {
		var m ledger.TaxMapping
		var rateKey string
		var retention sql.NullString
		if err := rows.Scan(&m.CompanyID, &rateKey, &m.AccountID, &retention); err != nil {
			return nil, fmt.Errorf("scan tax mapping: %w", err)
		}
		m.Rate, _ = decimal.NewFromString(rateKey)
		m.RetentionAccountID = retention.String
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ListAccountDefaults(ctx context.Context, companyID string) ([]ledger.AccountDefault, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT company_id, purpose, account_id FROM account_defaults WHERE company_id = ? ORDER BY purpose`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list account defaults: %w", err)
	}
	defer rows.Close()

	var out []ledger.AccountDefault
	for rows.Next() {
		var d ledger.AccountDefault
		if err := rows.Scan(&d.CompanyID, &d.Purpose, &d.AccountID); err != nil {
			return nil, fmt.Errorf("scan account default: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func checkCompanyAccount(ctx context.Context, q queryer, companyID, accountID string) error {
	acct, err := getAccount(ctx, q, accountID)
	if err != nil {
		return err
	}
	if acct.CompanyID != companyID {
		return fmt.Errorf("%w: %s in company %s", ledger.ErrAccountNotFound, accountID, companyID)
	}
	return nil
}
