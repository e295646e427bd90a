package leave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestChargeableDaysClipsToWindow(t *testing.T) {
	window := MonthWindow(2025, time.March)
	intervals := []Interval{{Start: date(2025, time.February, 28), End: date(2025, time.March, 3)}}

	require.Equal(t, 3, ChargeableDays(window, intervals))
}

func TestChargeableDaysSingleDayCountsOne(t *testing.T) {
	window := MonthWindow(2025, time.March)
	require.Equal(t, 1, ChargeableDays(window, []Interval{{Start: date(2025, time.March, 10), End: date(2025, time.March, 10)}}))
}

func TestChargeableDaysOutsideWindowContributesZero(t *testing.T) {
	window := MonthWindow(2025, time.March)
	intervals := []Interval{
		{Start: date(2025, time.January, 5), End: date(2025, time.January, 9)},
		{Start: date(2025, time.April, 1), End: date(2025, time.April, 2)},
	}
	require.Equal(t, 0, ChargeableDays(window, intervals))
	require.Equal(t, 0, ChargeableDays(window, nil))
}

func TestChargeableDaysOverlappingIntervalsAreNotDeduplicated(t *testing.T) {
	window := MonthWindow(2025, time.March)
	intervals := []Interval{
		{Start: date(2025, time.March, 10), End: date(2025, time.March, 12)},
		{Start: date(2025, time.March, 11), End: date(2025, time.March, 13)},
	}
	require.Equal(t, 6, ChargeableDays(window, intervals))
}

func TestChargeableDaysSpanningWholeMonth(t *testing.T) {
	window := MonthWindow(2024, time.February)
	intervals := []Interval{{Start: date(2024, time.January, 20), End: date(2024, time.March, 10)}}
	require.Equal(t, 29, ChargeableDays(window, intervals))
}

func TestChargeableDaysIgnoresTimeOfDay(t *testing.T) {
	window := Window{Start: date(2025, time.March, 1), End: date(2025, time.March, 31)}
	start := time.Date(2025, time.March, 3, 17, 30, 0, 0, time.UTC)
	end := time.Date(2025, time.March, 4, 8, 0, 0, 0, time.UTC)
	require.Equal(t, 2, ChargeableDays(window, []Interval{{Start: start, End: end}}))
}

func TestMonthWindowBounds(t *testing.T) {
	w := MonthWindow(2025, time.December)
	require.Equal(t, date(2025, time.December, 1), w.Start)
	require.Equal(t, date(2025, time.December, 31), w.End)
}
