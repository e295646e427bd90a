package leave

import "time"

const day = 24 * time.Hour

// Date truncates t to its calendar day in UTC, keeping the wall-clock date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthWindow returns the window covering every day of the month.
func MonthWindow(year int, month time.Month) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 1, -1)}
}

// Clip intersects the interval with the window. ok is false when they do not overlap.
func (w Window) Clip(iv Interval) (Interval, bool) {
	start := Date(iv.Start)
	if ws := Date(w.Start); ws.After(start) {
		start = ws
	}
	end := Date(iv.End)
	if we := Date(w.End); we.Before(end) {
		end = we
	}
	if start.After(end) {
		return Interval{}, false
	}
	return Interval{Start: start, End: end}, true
}

// Days counts calendar days in the interval, both ends inclusive.
func (iv Interval) Days() int {
	diff := Date(iv.End).Sub(Date(iv.Start))
	if diff < 0 {
		diff = -diff
	}
	return int(diff/day) + 1
}

// ChargeableDays sums the in-window days of every approved interval. Overlapping
// intervals are counted independently, each one contributes its own days.
func ChargeableDays(window Window, intervals []Interval) int {
	total := 0
	for _, iv := range intervals {
		clipped, ok := window.Clip(iv)
		if !ok {
			continue
		}
		total += clipped.Days()
	}
	return total
}
