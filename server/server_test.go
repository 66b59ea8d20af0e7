package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dre-insights/config"
	"dre-insights/models"
	"dre-insights/services"
	"dre-insights/utils"
)

type fakeLoader struct {
	records []*models.Transaction
	calls   int
}

func (f *fakeLoader) Load() ([]*models.Transaction, error) {
	f.calls++
	return f.records, nil
}

type fakeAreaStore struct {
	areas []models.Area
	puts  int
}

func (f *fakeAreaStore) Areas() ([]models.Area, error) { return f.areas, nil }

func (f *fakeAreaStore) PersistAreas(areas []models.Area) error {
	f.areas = areas
	f.puts++
	return nil
}

func serverTx(t *testing.T, number, day string, value float64) *models.Transaction {
	t.Helper()
	ts, err := time.Parse("2006-01-02", day)
	if err != nil {
		t.Fatalf("bad day %q: %v", day, err)
	}
	return &models.Transaction{
		TxNumber: number,
		TxTS:     ts,
		TxType:   "Sales",
		PropType: "Unit",
		Area:     "dubai marina",
		Project:  "Marina Heights",
		TxValue:  value,
	}
}

func newTestServer(t *testing.T, records []*models.Transaction) (*Server, *fakeLoader, *fakeAreaStore) {
	t.Helper()
	if err := services.Augment(records, 1.0); err != nil {
		t.Fatalf("augment: %v", err)
	}

	cfg := &config.Config{TopN: 5, CacheTTLSeconds: 60}
	loader := &fakeLoader{records: records}
	areas := &fakeAreaStore{areas: []models.Area{
		{Area: "dubai marina", Latitude: 25.08, Longitude: 55.14},
	}}

	srv := New(cfg, utils.NewLogger(), loader, areas)
	if err := srv.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return srv, loader, areas
}

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestSummaryEndpoint(t *testing.T) {
	records := []*models.Transaction{
		serverTx(t, "T-1", "2024-01-01", 100),
		serverTx(t, "T-2", "2024-01-02", 300),
	}
	srv, _, _ := newTestServer(t, records)
	h := srv.Handler()

	rec := get(t, h, "/api/summary?from=2024-01-01&to=2024-01-03")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var got summaryJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TxCount != 2 {
		t.Errorf("tx_count: got %d, want 2", got.TxCount)
	}
	if got.TotalValueUSD.Value == nil || *got.TotalValueUSD.Value != 400 {
		t.Errorf("total value: got %v, want 400", got.TotalValueUSD.Value)
	}
	if got.From != "2024-01-01" || got.To != "2024-01-03" {
		t.Errorf("echoed window: %s → %s", got.From, got.To)
	}
}

func TestSummaryUndefinedMetricsAreNull(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := get(t, h, "/api/summary?from=2024-01-01&to=2024-01-03")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var got summaryJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.LargestTxUSD.Value != nil {
		t.Errorf("largest tx over empty window: got %v, want null", *got.LargestTxUSD.Value)
	}
	if got.MedianPriceSqm.Value != nil {
		t.Errorf("median over empty window: got %v, want null", *got.MedianPriceSqm.Value)
	}
}

func TestBadDateRejected(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	h := srv.Handler()

	for _, url := range []string{
		"/api/summary?from=01-01-2024",
		"/api/charts/by-type?to=yesterday",
	} {
		if rec := get(t, h, url); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", url, rec.Code)
		}
	}
}

func TestMapEndpoint(t *testing.T) {
	records := []*models.Transaction{
		serverTx(t, "T-1", "2024-01-01", 100),
		serverTx(t, "T-2", "2024-01-02", 100),
	}
	lat1, lon1 := 25.1, 55.1
	lat2, lon2 := 25.2, 55.2
	records[0].Latitude, records[0].Longitude = &lat1, &lon1
	records[1].Latitude, records[1].Longitude = &lat2, &lon2
	srv, _, _ := newTestServer(t, records)
	h := srv.Handler()

	rec := get(t, h, "/api/map?from=2024-01-01&to=2024-01-03&metric=count")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}

	var got []models.GeoBucket
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d buckets, want 2", len(got))
	}
	// Equal counts: both buckets sit at the degenerate midpoint.
	for _, b := range got {
		if b.Norm != 0.5 {
			t.Errorf("norm: got %v, want 0.5", b.Norm)
		}
	}
}

func TestResponseCaching(t *testing.T) {
	records := []*models.Transaction{serverTx(t, "T-1", "2024-01-01", 100)}
	srv, _, _ := newTestServer(t, records)
	h := srv.Handler()

	const url = "/api/summary?from=2024-01-01&to=2024-01-03"
	first := get(t, h, url)
	if srv.cache.Len() != 1 {
		t.Fatalf("cache entries after first hit: got %d, want 1", srv.cache.Len())
	}
	second := get(t, h, url)
	if first.Body.String() != second.Body.String() {
		t.Error("cached response differs from original")
	}

	// A refresh stamps a new version; the old entry no longer matches.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status: got %d", rec.Code)
	}
	get(t, h, url)
	if srv.cache.Len() != 2 {
		t.Errorf("cache entries after refresh: got %d, want 2 (new version key)", srv.cache.Len())
	}
}

func TestRefreshSwapsVersion(t *testing.T) {
	records := []*models.Transaction{serverTx(t, "T-1", "2024-01-01", 100)}
	srv, loader, _ := newTestServer(t, records)
	h := srv.Handler()

	before := srv.Version()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status: got %d", rec.Code)
	}
	if srv.Version() == before {
		t.Error("version unchanged after refresh")
	}
	if loader.calls != 2 {
		t.Errorf("loader calls: got %d, want 2", loader.calls)
	}
}

func TestGetAreas(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := get(t, h, "/api/areas")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var got []models.Area
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Area != "dubai marina" {
		t.Errorf("areas: got %+v", got)
	}
}

func TestPutAreas(t *testing.T) {
	srv, loader, store := newTestServer(t, nil)
	h := srv.Handler()
	before := srv.Version()

	body := `[{"area":"palm jumeirah","latitude":25.11,"longitude":55.13}]`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/areas", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	if store.puts != 1 {
		t.Errorf("persist calls: got %d, want 1", store.puts)
	}
	if len(store.areas) != 1 || store.areas[0].Area != "palm jumeirah" {
		t.Errorf("stored areas: got %+v", store.areas)
	}
	// An area edit changes the join result, so the snapshot must reload.
	if srv.Version() == before {
		t.Error("version unchanged after area edit")
	}
	if loader.calls != 2 {
		t.Errorf("loader calls: got %d, want 2", loader.calls)
	}
}

func TestPutAreasRejectsBadPayload(t *testing.T) {
	srv, _, store := newTestServer(t, nil)
	h := srv.Handler()

	for _, body := range []string{"", "not json", "[]"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/areas", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: got %d, want 400", body, rec.Code)
		}
	}
	if store.puts != 0 {
		t.Errorf("bad payloads must not reach the store: %d writes", store.puts)
	}
}

func TestHealthz(t *testing.T) {
	records := []*models.Transaction{serverTx(t, "T-1", "2024-01-01", 100)}
	srv, _, _ := newTestServer(t, records)
	h := srv.Handler()

	rec := get(t, h, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "ok" {
		t.Errorf("status field: got %v", got["status"])
	}
	if got["records"].(float64) != 1 {
		t.Errorf("records field: got %v", got["records"])
	}
}
