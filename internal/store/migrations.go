package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version < 1 {
		if err := migrateV1(ctx, tx); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}
	if version < 2 {
		if err := migrateV2(ctx, tx); err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
	}

	return tx.Commit()
}

func migrateV1(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS companies (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			tax_id     TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)`,

		`CREATE TABLE IF NOT EXISTS accounts (
			id                 TEXT PRIMARY KEY,
			company_id         TEXT NOT NULL REFERENCES companies(id),
			code               TEXT NOT NULL,
			name               TEXT NOT NULL,
			type               TEXT NOT NULL CHECK (type IN ('asset','liability','equity','income','expense')),
			parent_id          TEXT REFERENCES accounts(id),
			level              INTEGER NOT NULL DEFAULT 1,
			accepts_movement   INTEGER NOT NULL DEFAULT 1,
			requires_auxiliary INTEGER NOT NULL DEFAULT 0,
			auxiliary_kind     TEXT NOT NULL DEFAULT '',
			created_at         TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			UNIQUE (company_id, code)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_parent ON accounts(parent_id)`,

		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id                 TEXT PRIMARY KEY,
			company_id         TEXT NOT NULL REFERENCES companies(id),
			number             TEXT NOT NULL,
			date               TEXT NOT NULL,
			reference          TEXT NOT NULL DEFAULT '',
			description        TEXT NOT NULL DEFAULT '',
			state              TEXT NOT NULL DEFAULT 'draft' CHECK (state IN ('draft','posted','cancelled')),
			created_by         TEXT NOT NULL DEFAULT '',
			created_at         TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			posted_by          TEXT,
			posted_at          TEXT,
			cancelled_by       TEXT,
			cancelled_at       TEXT,
			reversal_of        TEXT REFERENCES ledger_entries(id),
			reversed_by        TEXT REFERENCES ledger_entries(id),
			total_debit_cents  INTEGER NOT NULL DEFAULT 0,
			total_credit_cents INTEGER NOT NULL DEFAULT 0,
			UNIQUE (company_id, number)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_reference ON ledger_entries(company_id, reference) WHERE reference != ''`,
		`CREATE INDEX IF NOT EXISTS idx_entries_date ON ledger_entries(company_id, date)`,

		`CREATE TABLE IF NOT EXISTS ledger_lines (
			id              TEXT PRIMARY KEY,
			entry_id        TEXT NOT NULL REFERENCES ledger_entries(id) ON DELETE CASCADE,
			account_id      TEXT NOT NULL REFERENCES accounts(id),
			debit_cents     INTEGER NOT NULL DEFAULT 0 CHECK (debit_cents >= 0),
			credit_cents    INTEGER NOT NULL DEFAULT 0 CHECK (credit_cents >= 0),
			description     TEXT NOT NULL DEFAULT '',
			auxiliary_code  TEXT NOT NULL DEFAULT '',
			auxiliary_name  TEXT NOT NULL DEFAULT '',
			document_type   TEXT NOT NULL DEFAULT '',
			document_number TEXT NOT NULL DEFAULT '',
			document_date   TEXT,
			CHECK ((debit_cents > 0) != (credit_cents > 0))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lines_entry ON ledger_lines(entry_id)`,
		`CREATE INDEX IF NOT EXISTS idx_lines_account ON ledger_lines(account_id)`,

		`CREATE TABLE IF NOT EXISTS tax_account_mappings (
			company_id           TEXT NOT NULL REFERENCES companies(id),
			rate                 TEXT NOT NULL,
			account_id           TEXT NOT NULL REFERENCES accounts(id),
			retention_account_id TEXT REFERENCES accounts(id),
			PRIMARY KEY (company_id, rate)
		)`,

		`CREATE TABLE IF NOT EXISTS account_defaults (
			company_id TEXT NOT NULL REFERENCES companies(id),
			purpose    TEXT NOT NULL,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			PRIMARY KEY (company_id, purpose)
		)`,

		// Posting requires at least two lines and equal debit and credit sums.
		`CREATE TRIGGER IF NOT EXISTS trg_check_balance
		BEFORE UPDATE OF state ON ledger_entries
		WHEN NEW.state = 'posted' AND OLD.state = 'draft'
		BEGIN
			SELECT CASE
				WHEN (SELECT COUNT(*) FROM ledger_lines WHERE entry_id = NEW.id) < 2
				THEN RAISE(ABORT, 'entry needs at least two lines to post')
				WHEN (SELECT COALESCE(SUM(debit_cents), 0) - COALESCE(SUM(credit_cents), 0)
					FROM ledger_lines WHERE entry_id = NEW.id) != 0
				THEN RAISE(ABORT, 'entry lines do not balance')
			END;
		END`,

		// Only draft -> posted and posted -> cancelled are allowed.
		`CREATE TRIGGER IF NOT EXISTS trg_state_transition
		BEFORE UPDATE OF state ON ledger_entries
		WHEN OLD.state != NEW.state
			AND NOT (OLD.state = 'draft' AND NEW.state = 'posted')
			AND NOT (OLD.state = 'posted' AND NEW.state = 'cancelled')
		BEGIN
			SELECT RAISE(ABORT, 'invalid entry state transition');
		END`,

		`CREATE TRIGGER IF NOT EXISTS trg_immutable_entry_header
		BEFORE UPDATE OF company_id, number, date, reference, description, total_debit_cents, total_credit_cents ON ledger_entries
		WHEN OLD.state != 'draft'
		BEGIN
			SELECT RAISE(ABORT, 'cannot modify a posted entry');
		END`,

		`CREATE TRIGGER IF NOT EXISTS trg_immutable_entry_delete
		BEFORE DELETE ON ledger_entries
		WHEN OLD.state != 'draft'
		BEGIN
			SELECT RAISE(ABORT, 'cannot delete a posted entry');
		END`,

		`CREATE TRIGGER IF NOT EXISTS trg_immutable_lines_insert
		BEFORE INSERT ON ledger_lines
		WHEN (SELECT state FROM ledger_entries WHERE id = NEW.entry_id) != 'draft'
		BEGIN
			SELECT RAISE(ABORT, 'cannot add lines to a posted entry');
		END`,

		`CREATE TRIGGER IF NOT EXISTS trg_immutable_lines_update
		BEFORE UPDATE ON ledger_lines
		WHEN (SELECT state FROM ledger_entries WHERE id = OLD.entry_id) != 'draft'
		BEGIN
			SELECT RAISE(ABORT, 'cannot modify lines of a posted entry');
		END`,

		`CREATE TRIGGER IF NOT EXISTS trg_immutable_lines_delete
		BEFORE DELETE ON ledger_lines
		WHEN (SELECT state FROM ledger_entries WHERE id = OLD.entry_id) != 'draft'
		BEGIN
			SELECT RAISE(ABORT, 'cannot remove lines from a posted entry');
		END`,

		// Lines may only touch movement-accepting accounts of the entry's company.
		`CREATE TRIGGER IF NOT EXISTS trg_line_account
		BEFORE INSERT ON ledger_lines
		WHEN NOT EXISTS (
			SELECT 1 FROM accounts a JOIN ledger_entries e ON e.company_id = a.company_id
			WHERE a.id = NEW.account_id AND e.id = NEW.entry_id AND a.accepts_movement = 1
		)
		BEGIN
			SELECT RAISE(ABORT, 'line account must be a leaf of the entry company');
		END`,

		`INSERT INTO schema_version (version) VALUES (1)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

// migrateV2 keeps the lines a generated entry left out, so a replayed
// document still reports them.
func migrateV2(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entry_omissions (
			entry_id     TEXT NOT NULL REFERENCES ledger_entries(id) ON DELETE CASCADE,
			position     INTEGER NOT NULL,
			purpose      TEXT NOT NULL,
			rate         TEXT,
			line_index   INTEGER NOT NULL,
			amount_cents INTEGER NOT NULL,
			reason       TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (entry_id, position)
		)`,
		`INSERT INTO schema_version (version) VALUES (2)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}
