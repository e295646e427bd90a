package payroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizcore/internal/expenses"
	"github.com/odyssey-erp/bizcore/internal/platform/db"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

// Repository persists salary records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn in a read-committed transaction so conditional row updates
// re-check their predicate after waiting on a concurrent writer.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, txRepo{db: tx, expenses: expenses.NewStore(tx), keys: shared.NewIdempotencyStore(tx)})
	})
}

const selectRecord = `
	SELECT id, reference, company_id, employee_id, base_salary, bonus, leaves_taken, free_leaves,
	       chargeable_leaves, working_days_used, deduction_amount, amount, payment_date, pay_period,
	       period_year, period_month, status, expense_id, created_at
	FROM salary_records`

// Get loads one salary record.
func (r *Repository) Get(ctx context.Context, companyID, id int64) (SalaryRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, selectRecord+` WHERE id = $1 AND company_id = $2`, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SalaryRecord{}, ErrRecordNotFound
		}
		return SalaryRecord{}, fmt.Errorf("payroll: get record: %w", err)
	}
	return rec, nil
}

// List returns salary records newest first.
func (r *Repository) List(ctx context.Context, companyID int64, filter ListFilter) ([]SalaryRecord, error) {
	where := []string{"company_id = $1"}
	args := []any{companyID}
	if filter.EmployeeID > 0 {
		args = append(args, filter.EmployeeID)
		where = append(where, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filter.Period != nil {
		args = append(args, filter.Period.Year, int(filter.Period.Month))
		where = append(where, fmt.Sprintf("period_year = $%d AND period_month = $%d", len(args)-1, len(args)))
	}
	rows, err := r.pool.Query(ctx, selectRecord+" WHERE "+strings.Join(where, " AND ")+" ORDER BY payment_date DESC, id DESC", args...)
	if err != nil {
		return nil, fmt.Errorf("payroll: list records: %w", err)
	}
	defer rows.Close()
	out := []SalaryRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ExpenseTotal sums expenses of category incurred in [from, to).
func (r *Repository) ExpenseTotal(ctx context.Context, companyID int64, category string, from, to time.Time) (decimal.Decimal, error) {
	return expenses.NewStore(r.pool).Total(ctx, companyID, category, from, to)
}

type txRepo struct {
	db       db.DBTX
	expenses *expenses.Store
	keys     *shared.IdempotencyStore
}

func (t txRepo) ClaimKey(ctx context.Context, key string) error {
	return t.keys.CheckAndInsert(ctx, key, idempotencyModule)
}

func (t txRepo) ReleaseKey(ctx context.Context, key string) error {
	return t.keys.Delete(ctx, key)
}

func (t txRepo) SaveExpense(ctx context.Context, e expenses.Expense) (expenses.Expense, error) {
	return t.expenses.Save(ctx, e)
}

func (t txRepo) InsertRecord(ctx context.Context, rec SalaryRecord) (SalaryRecord, error) {
	err := t.db.QueryRow(ctx, `
		INSERT INTO salary_records (reference, company_id, employee_id, base_salary, bonus, leaves_taken,
		    free_leaves, chargeable_leaves, working_days_used, deduction_amount, amount, payment_date,
		    pay_period, period_year, period_month, status, expense_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at`,
		rec.Reference, rec.CompanyID, rec.EmployeeID, db.Numeric(rec.BaseSalary), db.Numeric(rec.Bonus),
		rec.LeavesTaken, rec.FreeLeaves, rec.ChargeableLeaves, db.Numeric(rec.WorkingDaysUsed),
		db.Numeric(rec.DeductionAmount), db.Numeric(rec.Amount), rec.PaymentDate, rec.PayPeriod,
		rec.Period.Year, int(rec.Period.Month), rec.Status, rec.ExpenseID,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return SalaryRecord{}, ErrAlreadyPaid
		}
		return SalaryRecord{}, fmt.Errorf("payroll: insert record: %w", err)
	}
	return rec, nil
}

func (t txRepo) DeleteRecord(ctx context.Context, companyID, id int64) (SalaryRecord, error) {
	rec, err := scanRecord(t.db.QueryRow(ctx, `DELETE FROM salary_records WHERE id = $1 AND company_id = $2
		RETURNING id, reference, company_id, employee_id, base_salary, bonus, leaves_taken, free_leaves,
		          chargeable_leaves, working_days_used, deduction_amount, amount, payment_date, pay_period,
		          period_year, period_month, status, expense_id, created_at`, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SalaryRecord{}, ErrRecordNotFound
		}
		return SalaryRecord{}, fmt.Errorf("payroll: delete record: %w", err)
	}
	return rec, nil
}

func (t txRepo) DeleteExpenses(ctx context.Context, companyID int64, sourceID string) error {
	return t.expenses.DeleteBySource(ctx, companyID, idempotencyModule, sourceID)
}

func scanRecord(row pgx.Row) (SalaryRecord, error) {
	var (
		rec                                         SalaryRecord
		base, bonus, workingDays, deduction, amount pgtype.Numeric
		month                                       int
		expenseID                                   pgtype.Int8
		paymentDate, createdAt                      time.Time
	)
	err := row.Scan(&rec.ID, &rec.Reference, &rec.CompanyID, &rec.EmployeeID, &base, &bonus,
		&rec.LeavesTaken, &rec.FreeLeaves, &rec.ChargeableLeaves, &workingDays, &deduction, &amount,
		&paymentDate, &rec.PayPeriod, &rec.Period.Year, &month, &rec.Status, &expenseID, &createdAt)
	if err != nil {
		return SalaryRecord{}, err
	}
	rec.BaseSalary = db.Decimal(base)
	rec.Bonus = db.Decimal(bonus)
	rec.WorkingDaysUsed = db.Decimal(workingDays)
	rec.DeductionAmount = db.Decimal(deduction)
	rec.Amount = db.Decimal(amount)
	rec.Period.Month = time.Month(month)
	rec.PaymentDate = paymentDate
	rec.CreatedAt = createdAt
	if expenseID.Valid {
		id := expenseID.Int64
		rec.ExpenseID = &id
	}
	return rec, nil
}
