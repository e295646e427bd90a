package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/bizcore/internal/employees"
	"github.com/odyssey-erp/bizcore/internal/expenses"
	"github.com/odyssey-erp/bizcore/internal/leave"
	"github.com/odyssey-erp/bizcore/internal/shared"
	"github.com/odyssey-erp/bizcore/jobs"
)

const idempotencyModule = "payroll"

// RepositoryPort abstracts salary record persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, id int64) (SalaryRecord, error)
	List(ctx context.Context, companyID int64, filter ListFilter) ([]SalaryRecord, error)
	ExpenseTotal(ctx context.Context, companyID int64, category string, from, to time.Time) (decimal.Decimal, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	SaveExpense(ctx context.Context, e expenses.Expense) (expenses.Expense, error)
	InsertRecord(ctx context.Context, rec SalaryRecord) (SalaryRecord, error)
	DeleteRecord(ctx context.Context, companyID, id int64) (SalaryRecord, error)
	DeleteExpenses(ctx context.Context, companyID int64, sourceID string) error
	// ClaimKey fails with shared.ErrIdempotencyConflict when key is taken.
	ClaimKey(ctx context.Context, key string) error
	ReleaseKey(ctx context.Context, key string) error
}

// EmployeeReader loads active employees.
type EmployeeReader interface {
	Get(ctx context.Context, companyID, id int64) (employees.Employee, error)
	List(ctx context.Context, companyID int64) ([]employees.Employee, error)
}

// LeaveCounter counts approved leave days inside a window.
type LeaveCounter interface {
	ChargeableDaysFor(ctx context.Context, companyID, employeeID int64, window leave.Window) (int, error)
}

// LockerPort serialises payroll runs.
type LockerPort interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// AuditPort records audit trail entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// PayslipNotifier queues payslip notices after a payment commits.
type PayslipNotifier interface {
	EnqueuePayslipNotice(ctx context.Context, payload jobs.PayslipNoticePayload) error
}

// MetricsRecorder counts payment outcomes.
type MetricsRecorder interface {
	ObservePayrollPayment(result string)
	ObservePayrollRun(result RunResult)
}

// ServiceConfig tunes payroll runs.
type ServiceConfig struct {
	Concurrency int
	LockTTL     time.Duration
}

// Service computes and records salary payments.
type Service struct {
	repo      RepositoryPort
	employees EmployeeReader
	leaves    LeaveCounter
	locker    LockerPort
	audit     AuditPort
	notifier  PayslipNotifier
	metrics   MetricsRecorder
	cfg       ServiceConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, emps EmployeeReader, leaves LeaveCounter, locker LockerPort, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		employees: emps,
		leaves:    leaves,
		locker:    locker,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// SetAudit injects the audit logger.
func (s *Service) SetAudit(audit AuditPort) { s.audit = audit }

// SetNotifier injects the payslip notifier.
func (s *Service) SetNotifier(n PayslipNotifier) { s.notifier = n }

// SetMetrics injects the metrics recorder.
func (s *Service) SetMetrics(m MetricsRecorder) { s.metrics = m }

// PayableSalary previews the salary of an employee for a period without persisting.
func (s *Service) PayableSalary(ctx context.Context, companyID, employeeID int64, period Period, bonus decimal.Decimal) (Preview, error) {
	if err := period.Validate(); err != nil {
		return Preview{}, err
	}
	emp, err := s.employees.Get(ctx, companyID, employeeID)
	if err != nil {
		return Preview{}, err
	}
	c, err := s.compute(ctx, emp, period, bonus)
	if err != nil {
		return Preview{}, err
	}
	return Preview{EmployeeID: emp.ID, Computation: c}, nil
}

// PaySalary computes the salary and persists the record with its expense entry
// in one transaction. A second payment for the same period is rejected.
func (s *Service) PaySalary(ctx context.Context, input PayInput) (rec SalaryRecord, err error) {
	if input.EmployeeID <= 0 {
		return SalaryRecord{}, shared.Invalid("employee_id", "is required")
	}
	if err := input.Period.Validate(); err != nil {
		return SalaryRecord{}, err
	}
	if input.Bonus.IsNegative() {
		return SalaryRecord{}, shared.Invalid("bonus", "must not be negative")
	}
	if input.PaymentDate.IsZero() {
		input.PaymentDate = s.now().UTC()
	}
	defer func() {
		if s.metrics == nil {
			return
		}
		switch {
		case err == nil:
			s.metrics.ObservePayrollPayment("paid")
		case errors.Is(err, ErrAlreadyPaid):
			s.metrics.ObservePayrollPayment("duplicate")
		default:
			s.metrics.ObservePayrollPayment("error")
		}
	}()

	emp, err := s.employees.Get(ctx, input.CompanyID, input.EmployeeID)
	if err != nil {
		return SalaryRecord{}, err
	}

	c, err := s.compute(ctx, emp, input.Period, input.Bonus)
	if err != nil {
		return SalaryRecord{}, err
	}

	rec = recordFromComputation(input, c)
	key := paymentKey(input.CompanyID, input.EmployeeID, input.Period)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ClaimKey(ctx, key); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return ErrAlreadyPaid
			}
			return fmt.Errorf("payroll: claim payment key: %w", err)
		}
		expense, err := tx.SaveExpense(ctx, expenses.Expense{
			CompanyID:    input.CompanyID,
			Category:     expenses.CategorySalary,
			Amount:       rec.Amount,
			Description:  fmt.Sprintf("Salary %s for %s", rec.PayPeriod, emp.FullName),
			SourceModule: idempotencyModule,
			SourceID:     rec.Reference.String(),
			IncurredAt:   rec.PaymentDate,
		})
		if err != nil {
			return err
		}
		rec.ExpenseID = &expense.ID
		saved, err := tx.InsertRecord(ctx, rec)
		if err != nil {
			return err
		}
		rec = saved
		return nil
	})
	if err != nil {
		return SalaryRecord{}, err
	}

	s.logger.Info("salary paid",
		slog.Int64("employee_id", rec.EmployeeID),
		slog.String("period", rec.PayPeriod),
		slog.String("amount", rec.Amount.String()))
	s.record(ctx, input.CompanyID, input.ActorID, "payroll.paid", rec.ID, map[string]any{
		"employee_id": rec.EmployeeID,
		"period":      rec.PayPeriod,
		"amount":      rec.Amount.String(),
	})
	s.notify(ctx, emp, rec)
	return rec, nil
}

// RunPayroll pays every active employee of a company for the period. Runs for
// the same company and period are serialised with a redis lock.
func (s *Service) RunPayroll(ctx context.Context, companyID int64, period Period) (RunResult, error) {
	if err := period.Validate(); err != nil {
		return RunResult{}, err
	}
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, shared.PayrollRunLockKey(companyID, period.Label()), s.cfg.LockTTL)
		if err != nil {
			return RunResult{}, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("release payroll lock", slog.Int64("company_id", companyID), slog.Any("error", err))
			}
		}()
	}

	emps, err := s.employees.List(ctx, companyID)
	if err != nil {
		return RunResult{}, err
	}

	items := make([]RunItem, len(emps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, emp := range emps {
		g.Go(func() error {
			rec, err := s.PaySalary(gctx, PayInput{CompanyID: companyID, EmployeeID: emp.ID, Period: period})
			switch {
			case err == nil:
				items[i] = RunItem{EmployeeID: emp.ID, Status: RunItemPaid, Record: &rec}
			case errors.Is(err, ErrAlreadyPaid):
				items[i] = RunItem{EmployeeID: emp.ID, Status: RunItemSkipped, Error: err.Error()}
			default:
				items[i] = RunItem{EmployeeID: emp.ID, Status: RunItemFailed, Error: shared.UserSafeMessage(err)}
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return RunResult{}, err
	}

	result := RunResult{CompanyID: companyID, Period: period.Label(), Items: items}
	for _, item := range items {
		switch item.Status {
		case RunItemPaid:
			result.Paid++
		case RunItemSkipped:
			result.Skipped++
		case RunItemFailed:
			result.Failed++
		}
	}
	s.logger.Info("payroll run finished",
		slog.Int64("company_id", companyID),
		slog.String("period", result.Period),
		slog.Int("paid", result.Paid),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed))
	if s.metrics != nil {
		s.metrics.ObservePayrollRun(result)
	}
	return result, nil
}

// ListRecords returns salary records of a company, newest first.
func (s *Service) ListRecords(ctx context.Context, companyID int64, filter ListFilter) ([]SalaryRecord, error) {
	if filter.Period != nil {
		if err := filter.Period.Validate(); err != nil {
			return nil, err
		}
	}
	return s.repo.List(ctx, companyID, filter)
}

// SalaryExpenseTotal sums salary expenses booked in [from, to).
func (s *Service) SalaryExpenseTotal(ctx context.Context, companyID int64, from, to time.Time) (decimal.Decimal, error) {
	if companyID <= 0 {
		return decimal.Zero, shared.ErrTenantMissing
	}
	if !to.After(from) {
		return decimal.Zero, shared.Invalid("to", "must be after from")
	}
	return s.repo.ExpenseTotal(ctx, companyID, expenses.CategorySalary, from, to)
}

// DeleteRecord removes a salary record and its expense so the period can be paid again.
func (s *Service) DeleteRecord(ctx context.Context, companyID, id, actorID int64) error {
	var deleted SalaryRecord
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.DeleteRecord(ctx, companyID, id)
		if err != nil {
			return err
		}
		deleted = rec
		if err := tx.DeleteExpenses(ctx, companyID, rec.Reference.String()); err != nil {
			return err
		}
		return tx.ReleaseKey(ctx, paymentKey(companyID, rec.EmployeeID, rec.Period))
	})
	if err != nil {
		return err
	}
	s.record(ctx, companyID, actorID, "payroll.deleted", id, map[string]any{
		"employee_id": deleted.EmployeeID,
		"period":      deleted.PayPeriod,
	})
	return nil
}

func (s *Service) compute(ctx context.Context, emp employees.Employee, period Period, bonus decimal.Decimal) (Computation, error) {
	days, err := s.leaves.ChargeableDaysFor(ctx, emp.CompanyID, emp.ID, period.Window())
	if err != nil {
		return Computation{}, fmt.Errorf("payroll: leave days: %w", err)
	}
	free := emp.FreeLeavesPerMonth
	return ComputeSalary(Profile{
		AnnualSalary:       emp.Salary,
		FreeLeavesPerMonth: &free,
		WorkingDaysPerWeek: emp.WorkingDaysPerWeek,
	}, days, bonus, period), nil
}

func (s *Service) notify(ctx context.Context, emp employees.Employee, rec SalaryRecord) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.EnqueuePayslipNotice(ctx, jobs.PayslipNoticePayload{
		CompanyID:    rec.CompanyID,
		EmployeeID:   emp.ID,
		EmployeeName: emp.FullName,
		Email:        emp.Email,
		Reference:    rec.Reference.String(),
		Period:       rec.PayPeriod,
		Amount:       rec.Amount.String(),
	})
	if err != nil {
		s.logger.Warn("enqueue payslip notice", slog.Int64("employee_id", emp.ID), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, companyID, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "salary_record",
		EntityID:  strconv.FormatInt(id, 10),
		Meta:      meta,
		At:        s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func paymentKey(companyID, employeeID int64, period Period) string {
	return fmt.Sprintf("payroll:pay:%d:%d:%s", companyID, employeeID, period.Label())
}
