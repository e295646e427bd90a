package employees

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/bizcore/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Insert(ctx context.Context, emp Employee) (Employee, error)
	Get(ctx context.Context, companyID, id int64) (Employee, error)
	ListActive(ctx context.Context, companyID int64) ([]Employee, error)
	SalaryHistory(ctx context.Context, employeeID int64) ([]SalaryChange, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort records audit trail entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates employee records and salary history.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

// Create registers an employee applying the default leave and working-week policy.
func (s *Service) Create(ctx context.Context, input CreateInput) (Employee, error) {
	emp := Employee{
		CompanyID:          input.CompanyID,
		FullName:           strings.TrimSpace(input.FullName),
		Email:              strings.ToLower(strings.TrimSpace(input.Email)),
		Department:         strings.TrimSpace(input.Department),
		Position:           strings.TrimSpace(input.Position),
		Salary:             input.Salary,
		FreeLeavesPerMonth: DefaultFreeLeavesPerMonth,
		WorkingDaysPerWeek: DefaultWorkingDaysPerWeek,
	}
	if input.FreeLeavesPerMonth != nil {
		emp.FreeLeavesPerMonth = *input.FreeLeavesPerMonth
	}
	if input.WorkingDaysPerWeek != nil {
		emp.WorkingDaysPerWeek = *input.WorkingDaysPerWeek
	}
	if emp.FullName == "" {
		return Employee{}, shared.Invalid("full_name", "is required")
	}
	if emp.Email == "" {
		return Employee{}, shared.Invalid("email", "is required")
	}
	if err := validatePolicy(emp.Salary, emp.FreeLeavesPerMonth, emp.WorkingDaysPerWeek); err != nil {
		return Employee{}, err
	}
	created, err := s.repo.Insert(ctx, emp)
	if err != nil {
		return Employee{}, err
	}
	created.SalaryHistory = []SalaryChange{}
	s.record(ctx, created.CompanyID, 0, "employee.created", created.ID, nil)
	return created, nil
}

// Get returns an active employee including salary history.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Employee, error) {
	return s.repo.Get(ctx, companyID, id)
}

// List returns active employees of a company.
func (s *Service) List(ctx context.Context, companyID int64) ([]Employee, error) {
	return s.repo.ListActive(ctx, companyID)
}

// Update applies field changes. A salary change appends the superseded value
// to the history in the same transaction as the row update.
func (s *Service) Update(ctx context.Context, companyID, id int64, input UpdateInput) (Employee, error) {
	var updated Employee
	var salaryChanged bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		emp, err := tx.GetForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		applyUpdate(&emp, input)
		if input.Salary != nil {
			salaryChanged = TrackSalaryChange(&emp, *input.Salary, s.now().UTC())
		}
		if emp.FullName == "" {
			return shared.Invalid("full_name", "must not be empty")
		}
		if emp.Email == "" {
			return shared.Invalid("email", "must not be empty")
		}
		if err := validatePolicy(emp.Salary, emp.FreeLeavesPerMonth, emp.WorkingDaysPerWeek); err != nil {
			return err
		}
		if salaryChanged {
			change := emp.SalaryHistory[len(emp.SalaryHistory)-1]
			if err := tx.AppendSalaryHistory(ctx, emp.ID, change); err != nil {
				return err
			}
		}
		if err := tx.Update(ctx, emp); err != nil {
			return err
		}
		updated = emp
		return nil
	})
	if err != nil {
		return Employee{}, err
	}
	if salaryChanged {
		s.logger.Info("employee salary changed",
			slog.Int64("employee_id", id),
			slog.String("salary", updated.Salary.String()))
		s.record(ctx, companyID, input.ActorID, "employee.salary_changed", id, map[string]any{
			"salary": updated.Salary.String(),
		})
	}
	return s.repo.Get(ctx, companyID, id)
}

// SoftDelete marks the employee deleted; records referencing it are kept.
func (s *Service) SoftDelete(ctx context.Context, companyID, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SoftDelete(ctx, companyID, id, s.now().UTC())
	})
	if err != nil {
		return err
	}
	s.record(ctx, companyID, actorID, "employee.deleted", id, nil)
	return nil
}

// SalaryHistory returns the full history of an active employee in insertion order.
func (s *Service) SalaryHistory(ctx context.Context, companyID, id int64) ([]SalaryChange, error) {
	if _, err := s.repo.Get(ctx, companyID, id); err != nil {
		return nil, err
	}
	return s.repo.SalaryHistory(ctx, id)
}

func applyUpdate(emp *Employee, input UpdateInput) {
	if input.FullName != nil {
		emp.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.Email != nil {
		emp.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.Department != nil {
		emp.Department = strings.TrimSpace(*input.Department)
	}
	if input.Position != nil {
		emp.Position = strings.TrimSpace(*input.Position)
	}
	if input.FreeLeavesPerMonth != nil {
		emp.FreeLeavesPerMonth = *input.FreeLeavesPerMonth
	}
	if input.WorkingDaysPerWeek != nil {
		emp.WorkingDaysPerWeek = *input.WorkingDaysPerWeek
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
		Entity:    "employee",
		EntityID:  strconv.FormatInt(id, 10),
		Meta:      meta,
		At:        s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
