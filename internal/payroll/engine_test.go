package payroll

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeSalaryProration(t *testing.T) {
	profile := Profile{AnnualSalary: dec("312000"), FreeLeavesPerMonth: intPtr(1), WorkingDaysPerWeek: 6}

	got := ComputeSalary(profile, 3, decimal.Zero, Period{Year: 2025, Month: time.March})

	require.True(t, got.BaseSalary.Equal(dec("26000")), got.BaseSalary.String())
	require.True(t, got.WorkingDaysUsed.Equal(dec("26")))
	require.Equal(t, 2, got.ChargeableLeaves)
	require.True(t, got.DailySalary.Equal(dec("1000")), got.DailySalary.String())
	require.True(t, got.Deduction.Equal(dec("2000")))
	require.True(t, got.FinalSalary.Equal(dec("24000")))
}

func TestComputeSalaryNoChargeableLeave(t *testing.T) {
	profile := Profile{AnnualSalary: dec("312000"), FreeLeavesPerMonth: intPtr(2), WorkingDaysPerWeek: 5}
	bonus := dec("1500")

	for _, leaves := range []int{0, 1, 2} {
		got := ComputeSalary(profile, leaves, bonus, Period{Year: 2025, Month: time.March})
		require.Equal(t, 0, got.ChargeableLeaves)
		require.True(t, got.Deduction.IsZero())
		require.True(t, got.FinalSalary.Equal(got.BaseSalary.Add(bonus)), "leaves=%d", leaves)
	}
}

func TestComputeSalaryUnlistedWeekUsesUnroundedDivisor(t *testing.T) {
	profile := Profile{AnnualSalary: dec("155880"), FreeLeavesPerMonth: intPtr(0), WorkingDaysPerWeek: 3}

	got := ComputeSalary(profile, 1, decimal.Zero, Period{Year: 2025, Month: time.March})

	require.True(t, got.WorkingDaysUsed.Equal(dec("12.99")), got.WorkingDaysUsed.String())
	require.True(t, got.BaseSalary.Equal(dec("12990")))
	require.True(t, got.DailySalary.Equal(dec("1000")), got.DailySalary.String())
	require.True(t, got.Deduction.Equal(dec("1000")))
	require.True(t, got.FinalSalary.Equal(dec("11990")))
}

func TestAverageWorkingDays(t *testing.T) {
	cases := map[int]string{
		4: "18",
		5: "22",
		6: "26",
		7: "30",
		0: "26",
		3: "12.99",
		2: "8.66",
	}
	for days, want := range cases {
		require.True(t, AverageWorkingDays(days).Equal(dec(want)), "days=%d", days)
	}
}

func TestComputeSalaryDefaultsFreeLeaves(t *testing.T) {
	profile := Profile{AnnualSalary: dec("312000"), WorkingDaysPerWeek: 6}

	got := ComputeSalary(profile, 1, decimal.Zero, Period{Year: 2025, Month: time.March})
	require.Equal(t, 1, got.FreeLeaves)
	require.Equal(t, 0, got.ChargeableLeaves)

	negative := Profile{AnnualSalary: dec("312000"), FreeLeavesPerMonth: intPtr(-3), WorkingDaysPerWeek: 6}
	got = ComputeSalary(negative, 2, decimal.Zero, Period{Year: 2025, Month: time.March})
	require.Equal(t, 1, got.FreeLeaves)
	require.Equal(t, 1, got.ChargeableLeaves)
}

func TestComputeSalaryRoundsHalfAwayFromZero(t *testing.T) {
	// 30006 / 12 = 2500.5
	profile := Profile{AnnualSalary: dec("30006"), FreeLeavesPerMonth: intPtr(1), WorkingDaysPerWeek: 6}

	got := ComputeSalary(profile, 0, decimal.Zero, Period{Year: 2025, Month: time.March})
	require.True(t, got.BaseSalary.Equal(dec("2501")), got.BaseSalary.String())
}

func TestPeriodHelpers(t *testing.T) {
	p, err := ParsePeriod("2025-02")
	require.NoError(t, err)
	require.Equal(t, Period{Year: 2025, Month: time.February}, p)
	require.Equal(t, "2025-02", p.Label())

	w := p.Window()
	require.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), w.Start)
	require.Equal(t, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC), w.End)

	_, err = ParsePeriod("2025/02")
	require.Error(t, err)
	require.Error(t, Period{Year: 2025, Month: 13}.Validate())
}
