package services

import (
	"testing"
	"time"

	"dre-insights/models"
)

func TestSliceInclusiveBounds(t *testing.T) {
	records := []*models.Transaction{
		{TxNumber: "T-1", TxTS: time.Date(2024, 1, 1, 0, 0, 1, 0, time.UTC)},
		{TxNumber: "T-2", TxTS: time.Date(2024, 1, 3, 23, 59, 59, 0, time.UTC)},
		{TxNumber: "T-3", TxTS: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)},
	}

	got := Slice(records, date("2024-01-01"), date("2024-01-03"))
	if len(got) != 2 {
		t.Fatalf("Slice: got %d records, want 2", len(got))
	}
	if got[0].TxNumber != "T-1" || got[1].TxNumber != "T-2" {
		t.Errorf("Slice order: got %s, %s", got[0].TxNumber, got[1].TxNumber)
	}
}

func TestSliceIgnoresTimeOfDay(t *testing.T) {
	records := []*models.Transaction{
		{TxNumber: "T-1", TxTS: time.Date(2024, 1, 2, 18, 30, 0, 0, time.UTC)},
	}

	// Bounds carry a late time-of-day; only the calendar date matters.
	from := time.Date(2024, 1, 2, 23, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC)
	if got := Slice(records, from, to); len(got) != 1 {
		t.Errorf("Slice: got %d records, want 1", len(got))
	}
}

func TestSliceInvertedRange(t *testing.T) {
	records := []*models.Transaction{
		{TxNumber: "T-1", TxTS: date("2024-01-02")},
	}
	if got := Slice(records, date("2024-01-05"), date("2024-01-01")); len(got) != 0 {
		t.Errorf("inverted range: got %d records, want 0", len(got))
	}
}

func TestSlicePreservesOrder(t *testing.T) {
	records := []*models.Transaction{
		{TxNumber: "T-3", TxTS: date("2024-01-03")},
		{TxNumber: "T-1", TxTS: date("2024-01-01")},
		{TxNumber: "T-2", TxTS: date("2024-01-02")},
	}
	got := Slice(records, date("2024-01-01"), date("2024-01-03"))
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[0].TxNumber != "T-3" || got[1].TxNumber != "T-1" || got[2].TxNumber != "T-2" {
		t.Errorf("input order not preserved: %s, %s, %s",
			got[0].TxNumber, got[1].TxNumber, got[2].TxNumber)
	}
}
