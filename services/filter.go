package services

import (
	"time"

	"dre-insights/models"
)

// DateOnly strips the time-of-day component, leaving a comparable calendar
// date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Slice returns the records whose transaction date falls in the inclusive
// [from, to] range. Only the calendar date is compared; time-of-day is
// ignored on both sides. A from date after the to date yields an empty
// result, not an error. Every aggregation composes with this and never
// expects pre-filtered input.
func Slice(records []*models.Transaction, from, to time.Time) []*models.Transaction {
	from, to = DateOnly(from), DateOnly(to)

	out := make([]*models.Transaction, 0, len(records))
	for _, r := range records {
		d := DateOnly(r.TxTS)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}
