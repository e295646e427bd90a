package employees

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackSalaryChange sets newSalary on emp. When it differs from the stored
// salary the superseded value is appended to the history and true is returned;
// the new entry is the last element of emp.SalaryHistory.
func TrackSalaryChange(emp *Employee, newSalary decimal.Decimal, now time.Time) bool {
	if emp.Salary.Equal(newSalary) {
		return false
	}
	emp.SalaryHistory = append(emp.SalaryHistory, SalaryChange{Amount: emp.Salary, ChangeDate: now})
	emp.Salary = newSalary
	return true
}
