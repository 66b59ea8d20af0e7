package services

import "time"

// PercentChange returns the relative change from prev to cur in percent.
// A zero previous value returns 0 regardless of cur, so deltas over a
// quiet prior window read as "no change" instead of infinity.
func PercentChange(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}

// PriorPeriod returns the window of equal length immediately preceding
// from. The boundary day is shared with the current window: combined with
// the inclusive range filter this matches the dashboard's delta semantics.
func PriorPeriod(from, to time.Time) (time.Time, time.Time) {
	from, to = DateOnly(from), DateOnly(to)
	return from.Add(-to.Sub(from)), from
}
