package payroll

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizcore/internal/shared"
)

// StatusPaid is the only status a persisted salary record carries.
const StatusPaid = "PAID"

// SalaryRecord is an immutable pay event.
type SalaryRecord struct {
	ID               int64           `json:"id"`
	Reference        uuid.UUID       `json:"reference"`
	CompanyID        int64           `json:"company_id"`
	EmployeeID       int64           `json:"employee_id"`
	BaseSalary       decimal.Decimal `json:"base_salary"`
	Bonus            decimal.Decimal `json:"bonus"`
	LeavesTaken      int             `json:"leaves_taken"`
	FreeLeaves       int             `json:"free_leaves"`
	ChargeableLeaves int             `json:"chargeable_leaves"`
	WorkingDaysUsed  decimal.Decimal `json:"working_days_used"`
	DeductionAmount  decimal.Decimal `json:"deduction_amount"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentDate      time.Time       `json:"payment_date"`
	PayPeriod        string          `json:"pay_period"`
	Period           Period          `json:"-"`
	Status           string          `json:"status"`
	ExpenseID        *int64          `json:"expense_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PayInput requests payment of one employee for one period.
type PayInput struct {
	CompanyID   int64
	EmployeeID  int64
	Period      Period
	Bonus       decimal.Decimal
	PaymentDate time.Time
	ActorID     int64
}

// Preview is the payable salary of an employee before payment.
type Preview struct {
	EmployeeID int64 `json:"employee_id"`
	Computation
}

// RunItemStatus describes the outcome for one employee in a payroll run.
type RunItemStatus string

const (
	RunItemPaid    RunItemStatus = "PAID"
	RunItemSkipped RunItemStatus = "SKIPPED"
	RunItemFailed  RunItemStatus = "FAILED"
)

// RunItem is the per-employee result of RunPayroll.
type RunItem struct {
	EmployeeID int64         `json:"employee_id"`
	Status     RunItemStatus `json:"status"`
	Record     *SalaryRecord `json:"record,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// RunResult summarises a payroll run.
type RunResult struct {
	CompanyID int64     `json:"company_id"`
	Period    string    `json:"period"`
	Paid      int       `json:"paid"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Items     []RunItem `json:"items"`
}

// ListFilter narrows ListRecords.
type ListFilter struct {
	EmployeeID int64
	Period     *Period
}

var (
	// ErrAlreadyPaid is returned when the employee was paid for the period.
	ErrAlreadyPaid = fmt.Errorf("payroll: salary already paid for period: %w", shared.ErrConflict)
	// ErrRecordNotFound indicates a missing salary record.
	ErrRecordNotFound = fmt.Errorf("payroll: salary record %w", shared.ErrNotFound)
)

func recordFromComputation(input PayInput, c Computation) SalaryRecord {
	return SalaryRecord{
		Reference:        uuid.New(),
		CompanyID:        input.CompanyID,
		EmployeeID:       input.EmployeeID,
		BaseSalary:       c.BaseSalary,
		Bonus:            c.Bonus,
		LeavesTaken:      c.TotalLeaves,
		FreeLeaves:       c.FreeLeaves,
		ChargeableLeaves: c.ChargeableLeaves,
		WorkingDaysUsed:  c.WorkingDaysUsed,
		DeductionAmount:  c.Deduction,
		Amount:           c.FinalSalary,
		PaymentDate:      input.PaymentDate,
		PayPeriod:        input.Period.Label(),
		Period:           input.Period,
		Status:           StatusPaid,
	}
}
