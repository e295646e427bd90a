// Package expenses stores ledger expense entries raised by other modules.
package expenses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizcore/internal/platform/db"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

// CategorySalary tags expenses raised by salary payments.
const CategorySalary = "SALARY"

// Expense is a single bookkeeping entry.
type Expense struct {
	ID           int64           `json:"id"`
	CompanyID    int64           `json:"company_id"`
	Category     string          `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	SourceModule string          `json:"source_module"`
	SourceID     string          `json:"source_id"`
	IncurredAt   time.Time       `json:"incurred_at"`
}

// Validate checks mandatory fields.
func (e Expense) Validate() error {
	if e.CompanyID <= 0 {
		return shared.Invalid("company_id", "is required")
	}
	if strings.TrimSpace(e.Category) == "" {
		return shared.Invalid("category", "is required")
	}
	if e.IncurredAt.IsZero() {
		return shared.Invalid("incurred_at", "is required")
	}
	return nil
}

// Store writes expenses through any pgx executor so callers can enlist it in
// their own transaction.
type Store struct {
	db db.DBTX
}

// NewStore binds the store to a pool or transaction.
func NewStore(conn db.DBTX) *Store {
	return &Store{db: conn}
}

// Save inserts the expense and returns it with its id.
func (s *Store) Save(ctx context.Context, e Expense) (Expense, error) {
	if err := e.Validate(); err != nil {
		return Expense{}, err
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO expenses (company_id, category, amount, description, source_module, source_id, incurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.CompanyID, e.Category, db.Numeric(e.Amount), e.Description, e.SourceModule, e.SourceID, e.IncurredAt,
	).Scan(&e.ID)
	if err != nil {
		return Expense{}, fmt.Errorf("expenses: insert: %w", err)
	}
	return e, nil
}

// DeleteBySource removes expenses raised by a source record.
func (s *Store) DeleteBySource(ctx context.Context, companyID int64, module, sourceID string) error {
	if module == "" || sourceID == "" {
		return errors.New("expenses: source module and id required")
	}
	_, err := s.db.Exec(ctx, `DELETE FROM expenses WHERE company_id = $1 AND source_module = $2 AND source_id = $3`, companyID, module, sourceID)
	if err != nil {
		return fmt.Errorf("expenses: delete by source: %w", err)
	}
	return nil
}

// Total sums a company's expenses of a category over [from, to).
func (s *Store) Total(ctx context.Context, companyID int64, category string, from, to time.Time) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM expenses
		WHERE company_id = $1 AND category = $2 AND incurred_at >= $3 AND incurred_at < $4`,
		companyID, category, from, to).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("expenses: total: %w", err)
	}
	return db.Decimal(total), nil
}
