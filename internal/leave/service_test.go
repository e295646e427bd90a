package leave

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizcore/internal/employees"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

type fakeEmployees struct {
	byID map[int64]employees.Employee
}

func (f *fakeEmployees) Get(ctx context.Context, companyID, id int64) (employees.Employee, error) {
	emp, ok := f.byID[id]
	if !ok || emp.CompanyID != companyID || !emp.Active() {
		return employees.Employee{}, employees.ErrEmployeeNotFound
	}
	return emp, nil
}

// staff has employees 1 and 7 in company 1 and employee 8 in company 2.
func staff() *fakeEmployees {
	return &fakeEmployees{byID: map[int64]employees.Employee{
		1: {ID: 1, CompanyID: 1},
		7: {ID: 7, CompanyID: 1},
		8: {ID: 8, CompanyID: 2},
	}}
}

type memoryRepo struct {
	requests map[int64]Request
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{requests: make(map[int64]Request)}
}

func (r *memoryRepo) FindApproved(ctx context.Context, companyID, employeeID int64, start, end time.Time) ([]Interval, error) {
	var out []Interval
	for id := int64(1); id <= r.nextID; id++ {
		req, ok := r.requests[id]
		if !ok || req.CompanyID != companyID || req.EmployeeID != employeeID || req.Status != StatusApproved {
			continue
		}
		if req.StartDate.After(end) || req.EndDate.Before(start) {
			continue
		}
		out = append(out, Interval{Start: req.StartDate, End: req.EndDate})
	}
	return out, nil
}

func (r *memoryRepo) Insert(ctx context.Context, req Request) (Request, error) {
	r.nextID++
	req.ID = r.nextID
	req.CreatedAt = time.Now()
	r.requests[req.ID] = req
	return req, nil
}

func (r *memoryRepo) Get(ctx context.Context, companyID, id int64) (Request, error) {
	req, ok := r.requests[id]
	if !ok || req.CompanyID != companyID {
		return Request{}, ErrRequestNotFound
	}
	return req, nil
}

func (r *memoryRepo) Decide(ctx context.Context, companyID, id int64, status Status, actorID int64, at time.Time) error {
	req, ok := r.requests[id]
	if !ok || req.CompanyID != companyID || req.Status != StatusPending {
		return ErrInvalidTransition
	}
	req.Status = status
	req.DecidedBy = &actorID
	req.DecidedAt = &at
	r.requests[id] = req
	return nil
}

func TestSubmitRejectsInvertedRange(t *testing.T) {
	svc := NewService(newMemoryRepo(), staff(), nil)
	_, err := svc.Submit(context.Background(), SubmitInput{
		CompanyID:  1,
		EmployeeID: 1,
		StartDate:  date(2025, time.March, 5),
		EndDate:    date(2025, time.March, 4),
	})
	require.ErrorIs(t, err, ErrInvalidRange)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestOnlyApprovedLeaveIsChargeable(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staff(), nil)
	ctx := context.Background()

	approved, err := svc.Submit(ctx, SubmitInput{CompanyID: 1, EmployeeID: 7, StartDate: date(2025, time.February, 28), EndDate: date(2025, time.March, 3)})
	require.NoError(t, err)
	rejected, err := svc.Submit(ctx, SubmitInput{CompanyID: 1, EmployeeID: 7, StartDate: date(2025, time.March, 10), EndDate: date(2025, time.March, 14)})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, SubmitInput{CompanyID: 1, EmployeeID: 7, StartDate: date(2025, time.March, 20), EndDate: date(2025, time.March, 20)})
	require.NoError(t, err)

	got, err := svc.Decide(ctx, DecisionInput{CompanyID: 1, RequestID: approved.ID, Status: StatusApproved, ActorID: 99})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, got.Status)
	_, err = svc.Decide(ctx, DecisionInput{CompanyID: 1, RequestID: rejected.ID, Status: StatusRejected, ActorID: 99})
	require.NoError(t, err)

	days, err := svc.ChargeableDaysFor(ctx, 1, 7, MonthWindow(2025, time.March))
	require.NoError(t, err)
	require.Equal(t, 3, days)
}

func TestSubmitRejectsEmployeeOfAnotherCompany(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staff(), nil)

	_, err := svc.Submit(context.Background(), SubmitInput{
		CompanyID:  1,
		EmployeeID: 8,
		StartDate:  date(2025, time.March, 3),
		EndDate:    date(2025, time.March, 7),
	})
	require.ErrorIs(t, err, employees.ErrEmployeeNotFound)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.requests)
}

func TestLeaveFiledUnderAnotherCompanyIsNotChargeable(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staff(), nil)
	ctx := context.Background()

	// a row that bypassed Submit, e.g. written before company scoping existed
	repo.nextID++
	repo.requests[repo.nextID] = Request{
		ID:         repo.nextID,
		CompanyID:  2,
		EmployeeID: 7,
		StartDate:  date(2025, time.March, 3),
		EndDate:    date(2025, time.March, 7),
		Status:     StatusApproved,
	}

	days, err := svc.ChargeableDaysFor(ctx, 1, 7, MonthWindow(2025, time.March))
	require.NoError(t, err)
	require.Zero(t, days)

	days, err = svc.ChargeableDaysFor(ctx, 2, 7, MonthWindow(2025, time.March))
	require.NoError(t, err)
	require.Equal(t, 5, days)
}

func TestDecideTwiceFails(t *testing.T) {
	svc := NewService(newMemoryRepo(), staff(), nil)
	ctx := context.Background()
	req, err := svc.Submit(ctx, SubmitInput{CompanyID: 1, EmployeeID: 1, StartDate: date(2025, time.March, 1), EndDate: date(2025, time.March, 1)})
	require.NoError(t, err)

	_, err = svc.Decide(ctx, DecisionInput{CompanyID: 1, RequestID: req.ID, Status: StatusApproved})
	require.NoError(t, err)
	_, err = svc.Decide(ctx, DecisionInput{CompanyID: 1, RequestID: req.ID, Status: StatusRejected})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDecideUnknownRequest(t *testing.T) {
	svc := NewService(newMemoryRepo(), staff(), nil)
	_, err := svc.Decide(context.Background(), DecisionInput{CompanyID: 1, RequestID: 42, Status: StatusApproved})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDecideRejectsPendingStatus(t *testing.T) {
	svc := NewService(newMemoryRepo(), staff(), nil)
	_, err := svc.Decide(context.Background(), DecisionInput{CompanyID: 1, RequestID: 1, Status: StatusPending})
	require.ErrorIs(t, err, shared.ErrValidation)
}
