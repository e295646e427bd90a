package employees

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizcore/internal/shared"
)

const (
	// DefaultFreeLeavesPerMonth applies when an employee has no explicit allowance.
	DefaultFreeLeavesPerMonth = 1
	// DefaultWorkingDaysPerWeek applies when an employee has no explicit policy.
	DefaultWorkingDaysPerWeek = 6
)

// Employee is a company staff member. Salary is annual.
type Employee struct {
	ID                 int64           `json:"id"`
	CompanyID          int64           `json:"company_id"`
	FullName           string          `json:"full_name"`
	Email              string          `json:"email"`
	Department         string          `json:"department"`
	Position           string          `json:"position"`
	Salary             decimal.Decimal `json:"salary"`
	FreeLeavesPerMonth int             `json:"free_leaves_per_month"`
	WorkingDaysPerWeek int             `json:"working_days_per_week"`
	SalaryHistory      []SalaryChange  `json:"salary_history"`
	DeletedAt          *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// SalaryChange records a salary value that was replaced at ChangeDate.
type SalaryChange struct {
	Amount     decimal.Decimal `json:"amount"`
	ChangeDate time.Time       `json:"change_date"`
}

// Active reports whether the employee has not been soft-deleted.
func (e Employee) Active() bool {
	return e.DeletedAt == nil
}

// CreateInput describes a new employee.
type CreateInput struct {
	CompanyID          int64
	FullName           string
	Email              string
	Department         string
	Position           string
	Salary             decimal.Decimal
	FreeLeavesPerMonth *int
	WorkingDaysPerWeek *int
}

// UpdateInput carries optional field changes. Nil fields are left untouched.
type UpdateInput struct {
	FullName           *string
	Email              *string
	Department         *string
	Position           *string
	Salary             *decimal.Decimal
	FreeLeavesPerMonth *int
	WorkingDaysPerWeek *int
	ActorID            int64
}

// ErrEmployeeNotFound indicates a missing or soft-deleted employee.
var ErrEmployeeNotFound = fmt.Errorf("employees: employee %w", shared.ErrNotFound)

func validatePolicy(salary decimal.Decimal, freeLeaves, workingDays int) error {
	if salary.IsNegative() {
		return shared.Invalid("salary", "must not be negative")
	}
	if freeLeaves < 0 {
		return shared.Invalid("free_leaves_per_month", "must not be negative")
	}
	if workingDays < 1 || workingDays > 7 {
		return shared.Invalid("working_days_per_week", "must be between 1 and 7")
	}
	return nil
}
