package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simonvc/ledgerd/internal/ledger"
)

func (s *Store) CreateCompany(ctx context.Context, c *ledger.Company) error {
	if strings.TrimSpace(c.Name) == "" {
		return &ledger.ValidationError{Problems: []string{"company name is required"}}
	}
	if c.ID == "" {
		c.ID = uuid.Must(uuid.NewV7()).String()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := s.writer.ExecContext(ctx,
		`INSERT INTO companies (id, name, tax_id, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.TaxID, c.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

func (s *Store) GetCompany(ctx context.Context, id string) (*ledger.Company, error) {
	return getCompany(ctx, s.reader, id)
}

func (s *Store) ListCompanies(ctx context.Context) ([]ledger.Company, error) {
	rows, err := s.reader.QueryContext(ctx, `SELECT id, name, tax_id, created_at FROM companies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var out []ledger.Company
	for rows.Next() {
		var c ledger.Company
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.TaxID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func getCompany(ctx context.Context, q queryer, id string) (*ledger.Company, error) {
	var c ledger.Company
	var createdAt string
	err := q.QueryRowContext(ctx,
		`SELECT id, name, tax_id, created_at FROM companies WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.TaxID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrCompanyNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &c, nil
}
