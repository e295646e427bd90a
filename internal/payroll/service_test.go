package payroll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizcore/internal/employees"
	"github.com/odyssey-erp/bizcore/internal/expenses"
	"github.com/odyssey-erp/bizcore/internal/leave"
	"github.com/odyssey-erp/bizcore/internal/shared"
	"github.com/odyssey-erp/bizcore/jobs"
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

func (f *fakeEmployees) List(ctx context.Context, companyID int64) ([]employees.Employee, error) {
	var out []employees.Employee
	for id := int64(1); id <= int64(len(f.byID)); id++ {
		emp, ok := f.byID[id]
		if ok && emp.CompanyID == companyID && emp.Active() {
			out = append(out, emp)
		}
	}
	return out, nil
}

type fakeLeaves struct {
	mu        sync.Mutex
	intervals map[int64][]leave.Interval
	companies []int64
}

func (f *fakeLeaves) ChargeableDaysFor(ctx context.Context, companyID, employeeID int64, window leave.Window) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.companies = append(f.companies, companyID)
	return leave.ChargeableDays(window, f.intervals[employeeID]), nil
}

type memoryRepo struct {
	mu       sync.Mutex
	records  map[int64]SalaryRecord
	expenses map[int64]expenses.Expense
	keys     map[string]bool
	nextID   int64
	nextExp  int64

	failInsert error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		records:  make(map[int64]SalaryRecord),
		expenses: make(map[int64]expenses.Expense),
		keys:     make(map[string]bool),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{
		repo:     r,
		records:  make(map[int64]SalaryRecord),
		expenses: make(map[int64]expenses.Expense),
		keys:     make(map[string]bool),
	}
	for k, v := range r.records {
		tx.records[k] = v
	}
	for k, v := range r.expenses {
		tx.expenses[k] = v
	}
	for k := range r.keys {
		tx.keys[k] = true
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.records = tx.records
	r.expenses = tx.expenses
	r.keys = tx.keys
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, companyID, id int64) (SalaryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.CompanyID != companyID {
		return SalaryRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

func (r *memoryRepo) List(ctx context.Context, companyID int64, filter ListFilter) ([]SalaryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []SalaryRecord{}
	for id := r.nextID; id >= 1; id-- {
		rec, ok := r.records[id]
		if !ok || rec.CompanyID != companyID {
			continue
		}
		if filter.EmployeeID > 0 && rec.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.Period != nil && rec.Period != *filter.Period {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *memoryRepo) ExpenseTotal(ctx context.Context, companyID int64, category string, from, to time.Time) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, e := range r.expenses {
		if e.CompanyID == companyID && e.Category == category && !e.IncurredAt.Before(from) && e.IncurredAt.Before(to) {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

type memoryTx struct {
	repo     *memoryRepo
	records  map[int64]SalaryRecord
	expenses map[int64]expenses.Expense
	keys     map[string]bool
}

func (tx *memoryTx) ClaimKey(ctx context.Context, key string) error {
	if tx.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	tx.keys[key] = true
	return nil
}

func (tx *memoryTx) ReleaseKey(ctx context.Context, key string) error {
	delete(tx.keys, key)
	return nil
}

func (tx *memoryTx) SaveExpense(ctx context.Context, e expenses.Expense) (expenses.Expense, error) {
	if err := e.Validate(); err != nil {
		return expenses.Expense{}, err
	}
	tx.repo.nextExp++
	e.ID = tx.repo.nextExp
	tx.expenses[e.ID] = e
	return e, nil
}

func (tx *memoryTx) InsertRecord(ctx context.Context, rec SalaryRecord) (SalaryRecord, error) {
	if tx.repo.failInsert != nil {
		return SalaryRecord{}, tx.repo.failInsert
	}
	for _, existing := range tx.records {
		if existing.EmployeeID == rec.EmployeeID && existing.Period == rec.Period {
			return SalaryRecord{}, ErrAlreadyPaid
		}
	}
	tx.repo.nextID++
	rec.ID = tx.repo.nextID
	rec.CreatedAt = time.Now()
	tx.records[rec.ID] = rec
	return rec, nil
}

func (tx *memoryTx) DeleteRecord(ctx context.Context, companyID, id int64) (SalaryRecord, error) {
	rec, ok := tx.records[id]
	if !ok || rec.CompanyID != companyID {
		return SalaryRecord{}, ErrRecordNotFound
	}
	delete(tx.records, id)
	return rec, nil
}

func (tx *memoryTx) DeleteExpenses(ctx context.Context, companyID int64, sourceID string) error {
	for id, e := range tx.expenses {
		if e.CompanyID == companyID && e.SourceID == sourceID {
			delete(tx.expenses, id)
		}
	}
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	payloads []jobs.PayslipNoticePayload
}

func (n *recordingNotifier) EnqueuePayslipNotice(ctx context.Context, payload jobs.PayslipNoticePayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, payload)
	return nil
}

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) ObservePayrollPayment(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[result]++
}

func (m *countingMetrics) ObservePayrollRun(result RunResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts["run"]++
}

type fixture struct {
	svc      *Service
	repo     *memoryRepo
	emps     *fakeEmployees
	leaves   *fakeLeaves
	notifier *recordingNotifier
	metrics  *countingMetrics
}

func newFixture(t *testing.T, locker LockerPort) *fixture {
	t.Helper()
	one := 1
	f := &fixture{
		repo: newMemoryRepo(),
		emps: &fakeEmployees{byID: map[int64]employees.Employee{
			1: {ID: 1, CompanyID: 10, FullName: "Ada", Email: "ada@example.com", Salary: dec("312000"), FreeLeavesPerMonth: one, WorkingDaysPerWeek: 6},
			2: {ID: 2, CompanyID: 10, FullName: "Grace", Email: "grace@example.com", Salary: dec("264000"), FreeLeavesPerMonth: one, WorkingDaysPerWeek: 5},
			3: {ID: 3, CompanyID: 10, FullName: "Linus", Email: "linus@example.com", Salary: dec("120000"), FreeLeavesPerMonth: one, WorkingDaysPerWeek: 6},
		}},
		leaves:   &fakeLeaves{intervals: map[int64][]leave.Interval{}},
		notifier: &recordingNotifier{},
		metrics:  &countingMetrics{counts: map[string]int{}},
	}
	f.svc = NewService(f.repo, f.emps, f.leaves, locker, ServiceConfig{Concurrency: 2}, nil)
	f.svc.SetNotifier(f.notifier)
	f.svc.SetMetrics(f.metrics)
	f.svc.now = func() time.Time { return time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC) }
	return f
}

var march = Period{Year: 2025, Month: time.March}

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPayableSalaryUsesApprovedLeave(t *testing.T) {
	f := newFixture(t, nil)
	f.leaves.intervals[1] = []leave.Interval{{Start: day(time.February, 28), End: day(time.March, 2)}}

	preview, err := f.svc.PayableSalary(context.Background(), 10, 1, march, decimal.Zero)
	require.NoError(t, err)
	require.Equal(t, 2, preview.TotalLeaves)
	require.Equal(t, 1, preview.ChargeableLeaves)
	require.True(t, preview.FinalSalary.Equal(dec("25000")), preview.FinalSalary.String())
	require.Empty(t, f.repo.records)
	require.Equal(t, []int64{10}, f.leaves.companies)
}

func TestPaySalaryPersistsRecordAndExpense(t *testing.T) {
	f := newFixture(t, nil)
	f.leaves.intervals[1] = []leave.Interval{{Start: day(time.March, 10), End: day(time.March, 12)}}

	rec, err := f.svc.PaySalary(context.Background(), PayInput{CompanyID: 10, EmployeeID: 1, Period: march, Bonus: dec("500")})
	require.NoError(t, err)
	require.True(t, rec.Amount.Equal(dec("24500")), rec.Amount.String())
	require.True(t, rec.DeductionAmount.Equal(dec("2000")))
	require.Equal(t, "2025-03", rec.PayPeriod)
	require.Equal(t, StatusPaid, rec.Status)
	require.NotNil(t, rec.ExpenseID)

	exp := f.repo.expenses[*rec.ExpenseID]
	require.Equal(t, expenses.CategorySalary, exp.Category)
	require.True(t, exp.Amount.Equal(rec.Amount))
	require.Equal(t, rec.Reference.String(), exp.SourceID)

	require.Len(t, f.notifier.payloads, 1)
	require.Equal(t, "24500", f.notifier.payloads[0].Amount)
	require.Equal(t, 1, f.metrics.counts["paid"])
}

func TestPaySalaryRejectsDoublePayment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 1, Period: march})
	require.NoError(t, err)
	_, err = f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 1, Period: march})
	require.ErrorIs(t, err, ErrAlreadyPaid)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, f.repo.records, 1)
	require.Len(t, f.repo.expenses, 1)
	require.Equal(t, 1, f.metrics.counts["duplicate"])
}

func TestPaySalaryUniqueConstraintBackstopReleasesKey(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 1, Period: march})
	require.NoError(t, err)

	// key lost, e.g. cleaned up by retention
	delete(f.repo.keys, paymentKey(10, 1, march))
	_, err = f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 1, Period: march})
	require.ErrorIs(t, err, ErrAlreadyPaid)
	require.Len(t, f.repo.expenses, 1)
	require.Empty(t, f.repo.keys)
}

func TestPaySalaryFailedTransactionDoesNotHoldKey(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.repo.failInsert = errors.New("connection reset")

	_, err := f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 1, Period: march})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAlreadyPaid)
	require.Empty(t, f.repo.keys)
	require.Empty(t, f.repo.expenses)

	f.repo.failInsert = nil
	rec, err := f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 1, Period: march})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, rec.Status)
	require.True(t, f.repo.keys[paymentKey(10, 1, march)])
}

func TestPaySalaryRejectsSoftDeletedEmployee(t *testing.T) {
	f := newFixture(t, nil)
	deletedAt := time.Now()
	emp := f.emps.byID[3]
	emp.DeletedAt = &deletedAt
	f.emps.byID[3] = emp

	_, err := f.svc.PaySalary(context.Background(), PayInput{CompanyID: 10, EmployeeID: 3, Period: march})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, f.repo.keys)
}

func TestPaySalaryValidatesInput(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 1, Period: Period{Year: 2025, Month: 0}})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 1, Period: march, Bonus: dec("-1")})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.svc.PaySalary(ctx, PayInput{CompanyID: 10, Period: march})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteRecordAllowsRepayment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec, err := f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 1, Period: march})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteRecord(ctx, 10, rec.ID, 99))
	require.Empty(t, f.repo.records)
	require.Empty(t, f.repo.expenses)
	require.Empty(t, f.repo.keys)
	require.ErrorIs(t, f.svc.DeleteRecord(ctx, 10, rec.ID, 99), shared.ErrNotFound)

	_, err = f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 1, Period: march})
	require.NoError(t, err)
}

func TestListRecordsFilters(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	april := Period{Year: 2025, Month: time.April}
	for _, p := range []Period{march, april} {
		_, err := f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 1, Period: p})
		require.NoError(t, err)
	}
	_, err := f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 2, Period: march})
	require.NoError(t, err)

	all, err := f.svc.ListRecords(ctx, 10, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	onlyMarch, err := f.svc.ListRecords(ctx, 10, ListFilter{Period: &march})
	require.NoError(t, err)
	require.Len(t, onlyMarch, 2)

	onlyAda, err := f.svc.ListRecords(ctx, 10, ListFilter{EmployeeID: 1})
	require.NoError(t, err)
	require.Len(t, onlyAda, 2)
}

func TestRunPayrollPaysEveryActiveEmployee(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := newFixture(t, shared.NewLocker(client))
	ctx := context.Background()

	_, err := f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 2, Period: march})
	require.NoError(t, err)

	result, err := f.svc.RunPayroll(ctx, 10, march)
	require.NoError(t, err)
	require.Equal(t, "2025-03", result.Period)
	require.Equal(t, 2, result.Paid)
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, 0, result.Failed)
	require.Len(t, result.Items, 3)
	require.Equal(t, RunItemSkipped, result.Items[1].Status)
	require.Len(t, f.repo.records, 3)
	require.False(t, mr.Exists(shared.PayrollRunLockKey(10, "2025-03")))
}

func TestRunPayrollRefusesConcurrentRun(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	f := newFixture(t, shared.NewLocker(client))
	require.NoError(t, mr.Set(shared.PayrollRunLockKey(10, "2025-03"), "other"))

	_, err := f.svc.RunPayroll(context.Background(), 10, march)
	require.ErrorIs(t, err, shared.ErrLockHeld)
	require.Empty(t, f.repo.records)
}

func TestSalaryExpenseTotalSumsPaymentsInRange(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 1, Period: march})
	require.NoError(t, err)
	_, err = f.svc.PaySalary(ctx, PayInput{CompanyID: 10, EmployeeID: 2, Period: march})
	require.NoError(t, err)

	total, err := f.svc.SalaryExpenseTotal(ctx, 10, day(time.April, 1), day(time.May, 1))
	require.NoError(t, err)
	require.True(t, total.Equal(dec("48000")), total.String())

	total, err = f.svc.SalaryExpenseTotal(ctx, 10, day(time.March, 1), day(time.April, 1))
	require.NoError(t, err)
	require.True(t, total.IsZero())

	_, err = f.svc.SalaryExpenseTotal(ctx, 10, day(time.April, 1), day(time.April, 1))
	require.ErrorIs(t, err, shared.ErrValidation)
}
