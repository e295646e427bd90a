package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizcore/internal/leave"
	"github.com/odyssey-erp/bizcore/internal/shared"
)

const (
	defaultFreeLeaves  = 1
	defaultWorkingDays = 6
)

var (
	monthsPerYear = decimal.NewFromInt(12)
	weeksPerMonth = decimal.RequireFromString("4.33")
)

// averageWorkingDays maps a working-week length to average working days per month.
var averageWorkingDays = map[int]decimal.Decimal{
	4: decimal.NewFromInt(18),
	5: decimal.NewFromInt(22),
	6: decimal.NewFromInt(26),
	7: decimal.NewFromInt(30),
}

// Profile is the salary policy of one employee.
type Profile struct {
	AnnualSalary       decimal.Decimal
	FreeLeavesPerMonth *int
	WorkingDaysPerWeek int
}

// Period identifies a pay month.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// Validate checks the period is a real calendar month.
func (p Period) Validate() error {
	if p.Year < 1970 || p.Year > 9999 {
		return shared.Invalid("year", "must be between 1970 and 9999")
	}
	if p.Month < time.January || p.Month > time.December {
		return shared.Invalid("month", "must be between 1 and 12")
	}
	return nil
}

// Label renders the period as YYYY-MM.
func (p Period) Label() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Window returns the inclusive calendar window of the period.
func (p Period) Window() leave.Window {
	return leave.MonthWindow(p.Year, p.Month)
}

// ParsePeriod parses a YYYY-MM label.
func ParsePeriod(label string) (Period, error) {
	t, err := time.Parse("2006-01", label)
	if err != nil {
		return Period{}, shared.Invalid("period", "must be formatted YYYY-MM")
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Computation is the itemised result of a salary proration.
type Computation struct {
	Period           Period          `json:"period"`
	BaseSalary       decimal.Decimal `json:"base_salary"`
	Bonus            decimal.Decimal `json:"bonus"`
	TotalLeaves      int             `json:"total_leaves"`
	FreeLeaves       int             `json:"free_leaves"`
	ChargeableLeaves int             `json:"chargeable_leaves"`
	WorkingDaysUsed  decimal.Decimal `json:"working_days_used"`
	DailySalary      decimal.Decimal `json:"daily_salary"`
	Deduction        decimal.Decimal `json:"deduction"`
	FinalSalary      decimal.Decimal `json:"final_salary"`
}

// AverageWorkingDays returns the divisor used for the daily rate. Unlisted
// week lengths use n*4.33 without rounding; zero falls back to a six-day week.
func AverageWorkingDays(workingDaysPerWeek int) decimal.Decimal {
	if workingDaysPerWeek <= 0 {
		workingDaysPerWeek = defaultWorkingDays
	}
	if avg, ok := averageWorkingDays[workingDaysPerWeek]; ok {
		return avg
	}
	return decimal.NewFromInt(int64(workingDaysPerWeek)).Mul(weeksPerMonth)
}

// ComputeSalary prorates one month of the annual salary against leave taken in
// the period. Amounts are rounded half away from zero to whole currency units.
func ComputeSalary(profile Profile, totalLeaveDays int, bonus decimal.Decimal, period Period) Computation {
	free := defaultFreeLeaves
	if profile.FreeLeavesPerMonth != nil && *profile.FreeLeavesPerMonth >= 0 {
		free = *profile.FreeLeavesPerMonth
	}
	if totalLeaveDays < 0 {
		totalLeaveDays = 0
	}
	chargeable := totalLeaveDays - free
	if chargeable < 0 {
		chargeable = 0
	}

	avg := AverageWorkingDays(profile.WorkingDaysPerWeek)
	monthly := profile.AnnualSalary.Div(monthsPerYear)
	daily := monthly.Div(avg)
	deduction := daily.Mul(decimal.NewFromInt(int64(chargeable))).Round(0)
	base := monthly.Round(0)
	final := base.Sub(deduction).Add(bonus).Round(0)

	return Computation{
		Period:           period,
		BaseSalary:       base,
		Bonus:            bonus,
		TotalLeaves:      totalLeaveDays,
		FreeLeaves:       free,
		ChargeableLeaves: chargeable,
		WorkingDaysUsed:  avg,
		DailySalary:      daily,
		Deduction:        deduction,
		FinalSalary:      final,
	}
}
