package employees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/bizcore/internal/platform/db"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

// Repository persists employees in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	q    queries
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: queries{db: pool}}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetForUpdate(ctx context.Context, companyID, id int64) (Employee, error)
	Update(ctx context.Context, emp Employee) error
	AppendSalaryHistory(ctx context.Context, employeeID int64, change SalaryChange) error
	SoftDelete(ctx context.Context, companyID, id int64, at time.Time) error
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, queries{db: tx})
	})
}

// Insert stores a new employee.
func (r *Repository) Insert(ctx context.Context, emp Employee) (Employee, error) {
	err := r.q.db.QueryRow(ctx, `
		INSERT INTO employees (company_id, full_name, email, department, position, salary, free_leaves_per_month, working_days_per_week)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		emp.CompanyID, emp.FullName, emp.Email, emp.Department, emp.Position,
		db.Numeric(emp.Salary), emp.FreeLeavesPerMonth, emp.WorkingDaysPerWeek,
	).Scan(&emp.ID, &emp.CreatedAt, &emp.UpdatedAt)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Employee{}, fmt.Errorf("employees: email %q: %w", emp.Email, shared.ErrDuplicate)
		}
		return Employee{}, fmt.Errorf("employees: insert: %w", err)
	}
	return emp, nil
}

// Get loads an active employee with full salary history.
func (r *Repository) Get(ctx context.Context, companyID, id int64) (Employee, error) {
	emp, err := r.q.get(ctx, companyID, id, false)
	if err != nil {
		return Employee{}, err
	}
	emp.SalaryHistory, err = r.SalaryHistory(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	return emp, nil
}

// ListActive lists employees that are not soft-deleted.
func (r *Repository) ListActive(ctx context.Context, companyID int64) ([]Employee, error) {
	rows, err := r.q.db.Query(ctx, selectEmployee+` WHERE company_id = $1 AND deleted_at IS NULL ORDER BY id`, companyID)
	if err != nil {
		return nil, fmt.Errorf("employees: list: %w", err)
	}
	defer rows.Close()
	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, emp)
	}
	return out, rows.Err()
}

// SalaryHistory returns every recorded salary change in insertion order.
func (r *Repository) SalaryHistory(ctx context.Context, employeeID int64) ([]SalaryChange, error) {
	rows, err := r.q.db.Query(ctx, `SELECT amount, changed_at FROM employee_salary_history WHERE employee_id = $1 ORDER BY id`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("employees: salary history: %w", err)
	}
	defer rows.Close()
	history := []SalaryChange{}
	for rows.Next() {
		var amount pgtype.Numeric
		var change SalaryChange
		if err := rows.Scan(&amount, &change.ChangeDate); err != nil {
			return nil, err
		}
		change.Amount = db.Decimal(amount)
		history = append(history, change)
	}
	return history, rows.Err()
}

type queries struct {
	db db.DBTX
}

const selectEmployee = `
	SELECT id, company_id, full_name, email, department, position, salary,
	       free_leaves_per_month, working_days_per_week, deleted_at, created_at, updated_at
	FROM employees`

func (q queries) get(ctx context.Context, companyID, id int64, forUpdate bool) (Employee, error) {
	query := selectEmployee + ` WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	emp, err := scanEmployee(q.db.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrEmployeeNotFound
		}
		return Employee{}, err
	}
	return emp, nil
}

func (q queries) GetForUpdate(ctx context.Context, companyID, id int64) (Employee, error) {
	return q.get(ctx, companyID, id, true)
}

func (q queries) Update(ctx context.Context, emp Employee) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE employees
		SET full_name = $3, email = $4, department = $5, position = $6, salary = $7,
		    free_leaves_per_month = $8, working_days_per_week = $9, updated_at = NOW()
		WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL`,
		emp.ID, emp.CompanyID, emp.FullName, emp.Email, emp.Department, emp.Position,
		db.Numeric(emp.Salary), emp.FreeLeavesPerMonth, emp.WorkingDaysPerWeek)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return fmt.Errorf("employees: email %q: %w", emp.Email, shared.ErrDuplicate)
		}
		return fmt.Errorf("employees: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func (q queries) AppendSalaryHistory(ctx context.Context, employeeID int64, change SalaryChange) error {
	_, err := q.db.Exec(ctx, `INSERT INTO employee_salary_history (employee_id, amount, changed_at) VALUES ($1, $2, $3)`,
		employeeID, db.Numeric(change.Amount), change.ChangeDate)
	if err != nil {
		return fmt.Errorf("employees: append salary history: %w", err)
	}
	return nil
}

func (q queries) SoftDelete(ctx context.Context, companyID, id int64, at time.Time) error {
	tag, err := q.db.Exec(ctx, `UPDATE employees SET deleted_at = $3, updated_at = $3 WHERE id = $1 AND company_id = $2 AND deleted_at IS NULL`, id, companyID, at)
	if err != nil {
		return fmt.Errorf("employees: soft delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

func scanEmployee(row pgx.Row) (Employee, error) {
	var emp Employee
	var salary pgtype.Numeric
	var deletedAt pgtype.Timestamptz
	err := row.Scan(&emp.ID, &emp.CompanyID, &emp.FullName, &emp.Email, &emp.Department, &emp.Position,
		&salary, &emp.FreeLeavesPerMonth, &emp.WorkingDaysPerWeek, &deletedAt, &emp.CreatedAt, &emp.UpdatedAt)
	if err != nil {
		return Employee{}, err
	}
	emp.Salary = db.Decimal(salary)
	if deletedAt.Valid {
		emp.DeletedAt = &deletedAt.Time
	}
	return emp, nil
}
