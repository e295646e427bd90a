package leave

import (
	"context"
	"log/slog"
	"time"

	"github.com/odyssey-erp/bizcore/internal/employees"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	FindApproved(ctx context.Context, companyID, employeeID int64, start, end time.Time) ([]Interval, error)
	Insert(ctx context.Context, req Request) (Request, error)
	Get(ctx context.Context, companyID, id int64) (Request, error)
	Decide(ctx context.Context, companyID, id int64, status Status, actorID int64, at time.Time) error
}

// EmployeeReader resolves active employees within a company.
type EmployeeReader interface {
	Get(ctx context.Context, companyID, id int64) (employees.Employee, error)
}

// Service manages the leave request lifecycle.
type Service struct {
	repo      RepositoryPort
	employees EmployeeReader
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, emps EmployeeReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, employees: emps, logger: logger, now: time.Now}
}

// Submit records a pending leave request for an active employee of the
// company.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (Request, error) {
	if input.EmployeeID <= 0 {
		return Request{}, shared.Invalid("employee_id", "is required")
	}
	if input.StartDate.IsZero() || input.EndDate.IsZero() {
		return Request{}, shared.Invalid("start_date", "start and end dates are required")
	}
	if Date(input.EndDate).Before(Date(input.StartDate)) {
		return Request{}, ErrInvalidRange
	}
	if _, err := s.employees.Get(ctx, input.CompanyID, input.EmployeeID); err != nil {
		return Request{}, err
	}
	return s.repo.Insert(ctx, Request{
		CompanyID:  input.CompanyID,
		EmployeeID: input.EmployeeID,
		StartDate:  Date(input.StartDate),
		EndDate:    Date(input.EndDate),
		Status:     StatusPending,
		Reason:     input.Reason,
	})
}

// Decide approves or rejects a pending request.
func (s *Service) Decide(ctx context.Context, input DecisionInput) (Request, error) {
	if input.Status != StatusApproved && input.Status != StatusRejected {
		return Request{}, shared.Invalid("status", "must be APPROVED or REJECTED")
	}
	if err := s.repo.Decide(ctx, input.CompanyID, input.RequestID, input.Status, input.ActorID, s.now().UTC()); err != nil {
		if _, getErr := s.repo.Get(ctx, input.CompanyID, input.RequestID); getErr != nil {
			return Request{}, getErr
		}
		return Request{}, err
	}
	s.logger.Info("leave request decided",
		slog.Int64("request_id", input.RequestID),
		slog.String("status", string(input.Status)))
	return s.repo.Get(ctx, input.CompanyID, input.RequestID)
}

// ApprovedIntervals returns approved leave intervals overlapping the window.
// Requests filed under another company never count.
func (s *Service) ApprovedIntervals(ctx context.Context, companyID, employeeID int64, window Window) ([]Interval, error) {
	return s.repo.FindApproved(ctx, companyID, employeeID, window.Start, window.End)
}

// ChargeableDaysFor loads approved leave and counts the in-window days.
func (s *Service) ChargeableDaysFor(ctx context.Context, companyID, employeeID int64, window Window) (int, error) {
	intervals, err := s.ApprovedIntervals(ctx, companyID, employeeID, window)
	if err != nil {
		return 0, err
	}
	return ChargeableDays(window, intervals), nil
}
