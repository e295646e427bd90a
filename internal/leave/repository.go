package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/bizcore/internal/employees"
	"github.com/odyssey-erp/bizcore/internal/platform/db"
)

// Repository persists leave requests in PostgreSQL.
type Repository struct {
	db db.DBTX
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// FindApproved lists approved intervals of the employee overlapping [start, end].
func (r *Repository) FindApproved(ctx context.Context, companyID, employeeID int64, start, end time.Time) ([]Interval, error) {
	rows, err := r.db.Query(ctx, `
		SELECT start_date, end_date
		FROM leave_requests
		WHERE company_id = $1 AND employee_id = $2 AND status = $3 AND start_date <= $5 AND end_date >= $4
		ORDER BY start_date, id`,
		companyID, employeeID, StatusApproved, pgDate(start), pgDate(end))
	if err != nil {
		return nil, fmt.Errorf("leave: find approved: %w", err)
	}
	defer rows.Close()

	var out []Interval
	for rows.Next() {
		var s, e pgtype.Date
		if err := rows.Scan(&s, &e); err != nil {
			return nil, err
		}
		out = append(out, Interval{Start: s.Time, End: e.Time})
	}
	return out, rows.Err()
}

// Insert stores a new pending request. The employee must be an active member
// of req.CompanyID.
func (r *Repository) Insert(ctx context.Context, req Request) (Request, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO leave_requests (company_id, employee_id, start_date, end_date, status, reason)
		SELECT e.company_id, e.id, $3, $4, $5, $6
		FROM employees e
		WHERE e.id = $2 AND e.company_id = $1 AND e.deleted_at IS NULL
		RETURNING id, created_at`,
		req.CompanyID, req.EmployeeID, pgDate(req.StartDate), pgDate(req.EndDate), req.Status, req.Reason,
	).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, employees.ErrEmployeeNotFound
		}
		return Request{}, fmt.Errorf("leave: insert: %w", err)
	}
	return req, nil
}

// Get loads a request scoped by company.
func (r *Repository) Get(ctx context.Context, companyID, id int64) (Request, error) {
	var req Request
	var s, e pgtype.Date
	var decidedBy pgtype.Int8
	var decidedAt pgtype.Timestamptz
	err := r.db.QueryRow(ctx, `
		SELECT id, company_id, employee_id, start_date, end_date, status, reason, decided_by, decided_at, created_at
		FROM leave_requests WHERE id = $1 AND company_id = $2`, id, companyID,
	).Scan(&req.ID, &req.CompanyID, &req.EmployeeID, &s, &e, &req.Status, &req.Reason, &decidedBy, &decidedAt, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrRequestNotFound
		}
		return Request{}, err
	}
	req.StartDate, req.EndDate = s.Time, e.Time
	if decidedBy.Valid {
		req.DecidedBy = &decidedBy.Int64
	}
	if decidedAt.Valid {
		req.DecidedAt = &decidedAt.Time
	}
	return req, nil
}

// Decide moves a pending request to status. Only PENDING rows are updated.
func (r *Repository) Decide(ctx context.Context, companyID, id int64, status Status, actorID int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leave_requests
		SET status = $3, decided_by = $4, decided_at = $5
		WHERE id = $1 AND company_id = $2 AND status = 'PENDING'`,
		id, companyID, status, actorID, at)
	if err != nil {
		return fmt.Errorf("leave: decide: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func pgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: Date(t), Valid: !t.IsZero()}
}
