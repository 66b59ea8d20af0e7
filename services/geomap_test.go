package services

import (
	"math"
	"testing"

	"dre-insights/models"
)

func coordTx(day string, value float64, lat, lon float64) *models.Transaction {
	r := mkTx("T", day, value)
	r.Latitude, r.Longitude = &lat, &lon
	return r
}

func TestGeoBucketsNormalization(t *testing.T) {
	records := []*models.Transaction{
		coordTx("2024-01-01", 100, 25.1, 55.1),
		coordTx("2024-01-01", 300, 25.2, 55.2),
		coordTx("2024-01-01", 200, 25.3, 55.3),
	}
	if err := Augment(records, 1.0); err != nil {
		t.Fatalf("augment: %v", err)
	}

	got := GeoBuckets(records, GeoTotalValue)
	if len(got) != 3 {
		t.Fatalf("got %d buckets, want 3", len(got))
	}
	// Ordered by latitude: values 100, 300, 200 → norms 0, 1, 0.5.
	if got[0].Norm != 0 {
		t.Errorf("min bucket norm: got %v, want 0", got[0].Norm)
	}
	if got[1].Norm != 1 {
		t.Errorf("max bucket norm: got %v, want 1", got[1].Norm)
	}
	if got[2].Norm != 0.5 {
		t.Errorf("middle bucket norm: got %v, want 0.5", got[2].Norm)
	}
	for _, b := range got {
		if b.Norm < 0 || b.Norm > 1 {
			t.Errorf("norm out of [0,1]: %+v", b)
		}
	}
}

func TestGeoBucketsDegenerateCase(t *testing.T) {
	records := []*models.Transaction{
		coordTx("2024-01-01", 10, 25.1, 55.1),
		coordTx("2024-01-01", 10, 25.2, 55.2),
	}
	if err := Augment(records, 1.0); err != nil {
		t.Fatalf("augment: %v", err)
	}

	got := GeoBuckets(records, GeoTotalValue)
	if len(got) != 2 {
		t.Fatalf("got %d buckets, want 2", len(got))
	}
	for _, b := range got {
		if b.Norm != 0.5 {
			t.Errorf("degenerate norm: got %v, want 0.5", b.Norm)
		}
	}
}

func TestGeoBucketsGroupsByExactPair(t *testing.T) {
	records := []*models.Transaction{
		coordTx("2024-01-01", 100, 25.1, 55.1),
		coordTx("2024-01-01", 50, 25.1, 55.1),
		coordTx("2024-01-01", 70, 25.2, 55.2),
	}
	if err := Augment(records, 1.0); err != nil {
		t.Fatalf("augment: %v", err)
	}

	got := GeoBuckets(records, GeoCount)
	if len(got) != 2 {
		t.Fatalf("got %d buckets, want 2", len(got))
	}
	if got[0].Value != 2 || got[1].Value != 1 {
		t.Errorf("counts: got %v, %v — want 2, 1", got[0].Value, got[1].Value)
	}
}

func TestGeoBucketsSkipsUnjoinedRecords(t *testing.T) {
	joined := coordTx("2024-01-01", 100, 25.1, 55.1)
	unjoined := mkTx("T-X", "2024-01-01", 999)
	records := []*models.Transaction{joined, unjoined}
	if err := Augment(records, 1.0); err != nil {
		t.Fatalf("augment: %v", err)
	}

	got := GeoBuckets(records, GeoTotalValue)
	if len(got) != 1 {
		t.Fatalf("got %d buckets, want 1", len(got))
	}
	if got[0].Value != 100 {
		t.Errorf("bucket value: got %v, want 100 (unjoined record leaked in)", got[0].Value)
	}
}

func TestGeoBucketsSkipsUndefinedMedians(t *testing.T) {
	priced := coordTx("2024-01-01", 100, 25.1, 55.1)
	priced.PropSizeSqm = 50
	unknown := coordTx("2024-01-01", 100, 25.2, 55.2) // no size → NaN price
	records := []*models.Transaction{priced, unknown}
	if err := Augment(records, 1.0); err != nil {
		t.Fatalf("augment: %v", err)
	}

	got := GeoBuckets(records, GeoMedianPriceSqm)
	if len(got) != 1 {
		t.Fatalf("got %d buckets, want 1 (NaN group must be dropped)", len(got))
	}
	if got[0].Value != 2 {
		t.Errorf("median bucket: got %v, want 2", got[0].Value)
	}
	if math.IsNaN(got[0].Norm) {
		t.Error("norm must never be NaN")
	}
}

func TestParseGeoMetric(t *testing.T) {
	if ParseGeoMetric("count") != GeoCount {
		t.Error("count not recognized")
	}
	if ParseGeoMetric("price_sqm") != GeoMedianPriceSqm {
		t.Error("price_sqm not recognized")
	}
	if ParseGeoMetric("bogus") != GeoTotalValue {
		t.Error("unknown metric must default to tx value")
	}
}
