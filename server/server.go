package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"dre-insights/config"
	"dre-insights/models"
	"dre-insights/services"
	"dre-insights/storage"
	"dre-insights/utils"
)

// Loader produces a fresh, fully augmented record snapshot.
type Loader interface {
	Load() ([]*models.Transaction, error)
}

// Server exposes the aggregation library as a JSON API over an immutable
// in-memory snapshot. Each reload swaps the whole snapshot and stamps a
// new version; the version keys the response cache, so stale entries die
// with the data that produced them.
type Server struct {
	cfg      *config.Config
	logger   *utils.Logger
	loader   Loader
	areas    storage.AreaStore
	insights *services.InsightService
	cache    *Cache

	mu      sync.RWMutex
	records []*models.Transaction
	version string
}

// New creates a Server; call Reload before serving.
func New(cfg *config.Config, logger *utils.Logger, loader Loader, areas storage.AreaStore) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		loader:   loader,
		areas:    areas,
		insights: services.NewInsightService(logger, cfg.TopN),
		cache:    NewCache(cfg.CacheTTL()),
	}
}

// Reload swaps in a freshly loaded snapshot under a new version.
func (s *Server) Reload() error {
	records, err := s.loader.Load()
	if err != nil {
		return fmt.Errorf("server: reload: %w", err)
	}

	s.mu.Lock()
	s.records = records
	s.version = uuid.NewString()
	s.mu.Unlock()

	s.logger.Info("[server] Snapshot reloaded — %d records, version %s",
		len(records), s.Version())
	return nil
}

// Records returns the current snapshot. Callers must treat it as
// read-only.
func (s *Server) Records() []*models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// Version returns the current snapshot version.
func (s *Server) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Server) snapshot() ([]*models.Transaction, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records, s.version
}

// Handler returns the API routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/summary", s.cached(s.buildSummary))
	mux.HandleFunc("GET /api/charts/by-type", s.cached(s.buildByType))
	mux.HandleFunc("GET /api/charts/by-rooms", s.cached(s.buildByRooms))
	mux.HandleFunc("GET /api/charts/by-registration", s.cached(s.buildByRegistration))
	mux.HandleFunc("GET /api/charts/by-payment", s.cached(s.buildByPayment))
	mux.HandleFunc("GET /api/charts/median-price", s.cached(s.buildMedianPrice))
	mux.HandleFunc("GET /api/top/transactions", s.cached(s.buildTopTransactions))
	mux.HandleFunc("GET /api/top/projects", s.cached(s.buildTopProjects))
	mux.HandleFunc("GET /api/map", s.cached(s.buildMap))

	mux.HandleFunc("GET /api/areas", s.handleGetAreas)
	mux.HandleFunc("PUT /api/areas", s.handlePutAreas)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	return mux
}

// cached wraps a payload builder with the response memo: identical
// requests against the same snapshot version serve the rendered bytes.
func (s *Server) cached(build func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, version := s.snapshot()
		key := r.URL.RequestURI() + "|" + version

		if body, ok := s.cache.Get(key); ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)
			return
		}

		payload, err := build(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		body, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("[server] Marshal %s failed: %v", r.URL.Path, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		s.cache.Set(key, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

// parseRange reads from/to query params, defaulting to the trailing week.
func parseRange(r *http.Request) (time.Time, time.Time, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -7)

	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, fmt.Errorf("bad 'to' date %q, want YYYY-MM-DD", v)
		}
		to = t
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, fmt.Errorf("bad 'from' date %q, want YYYY-MM-DD", v)
		}
		from = t
	}
	return from, to, nil
}

func parseN(r *http.Request) int {
	var n int
	if _, err := fmt.Sscanf(r.URL.Query().Get("n"), "%d", &n); err != nil {
		return 0
	}
	return n
}

// fptr maps NaN to nil so undefined metrics serialize as JSON null.
func fptr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

type metricJSON struct {
	Value    *float64 `json:"value"`
	DeltaPct float64  `json:"delta_pct"`
}

type summaryJSON struct {
	From           string     `json:"from"`
	To             string     `json:"to"`
	TxCount        int        `json:"tx_count"`
	TxCountDelta   float64    `json:"tx_count_delta_pct"`
	TotalValueUSD  metricJSON `json:"total_value_usd"`
	MedianPriceSqm metricJSON `json:"median_price_sqm"`
	MedianRental   metricJSON `json:"median_rental_value"`
	LargestTxUSD   metricJSON `json:"largest_tx_usd"`

	TopTransactions []models.TopTransaction `json:"top_transactions"`
	TopProjects     []models.TopProject     `json:"top_projects"`
}

func (s *Server) buildSummary(r *http.Request) (any, error) {
	from, to, err := parseRange(r)
	if err != nil {
		return nil, err
	}
	records, _ := s.snapshot()
	rep := s.insights.Generate(records, from, to)

	return summaryJSON{
		From:           rep.From.Format("2006-01-02"),
		To:             rep.To.Format("2006-01-02"),
		TxCount:        rep.TxCount,
		TxCountDelta:   rep.TxCountDelta,
		TotalValueUSD:  metricJSON{fptr(rep.TotalValueUSD), rep.TotalDelta},
		MedianPriceSqm: metricJSON{fptr(rep.MedianPriceSqm), rep.MedianDelta},
		MedianRental:   metricJSON{fptr(rep.MedianRental), rep.RentalDelta},
		LargestTxUSD:   metricJSON{fptr(rep.LargestTxUSD), rep.LargestDelta},

		TopTransactions: rep.TopTransactions,
		TopProjects:     rep.TopProjects,
	}, nil
}

func (s *Server) buildByType(r *http.Request) (any, error) {
	from, to, err := parseRange(r)
	if err != nil {
		return nil, err
	}
	records, _ := s.snapshot()
	return services.TxByType(records, from, to), nil
}

func (s *Server) buildByRooms(r *http.Request) (any, error) {
	from, to, err := parseRange(r)
	if err != nil {
		return nil, err
	}
	records, _ := s.snapshot()
	return services.ByRoomType(records, from, to), nil
}

func (s *Server) buildByRegistration(r *http.Request) (any, error) {
	from, to, err := parseRange(r)
	if err != nil {
		return nil, err
	}
	records, _ := s.snapshot()
	return services.ByRegType(records, from, to), nil
}

func (s *Server) buildByPayment(r *http.Request) (any, error) {
	from, to, err := parseRange(r)
	if err != nil {
		return nil, err
	}
	records, _ := s.snapshot()
	return services.ByPaymentType(records, from, to), nil
}

type dateMedianJSON struct {
	TxDate string   `json:"tx_date"`
	Median *float64 `json:"median_price_sqm"`
}

func (s *Server) buildMedianPrice(r *http.Request) (any, error) {
	from, to, err := parseRange(r)
	if err != nil {
		return nil, err
	}
	records, _ := s.snapshot()

	series := services.MedianPriceSqmByDate(records, from, to)
	out := make([]dateMedianJSON, 0, len(series))
	for _, p := range series {
		out = append(out, dateMedianJSON{TxDate: p.TxDate, Median: fptr(p.Median)})
	}
	return out, nil
}

func (s *Server) buildTopTransactions(r *http.Request) (any, error) {
	from, to, err := parseRange(r)
	if err != nil {
		return nil, err
	}
	records, _ := s.snapshot()
	return services.TopTransactions(records, from, to, parseN(r)), nil
}

func (s *Server) buildTopProjects(r *http.Request) (any, error) {
	from, to, err := parseRange(r)
	if err != nil {
		return nil, err
	}
	records, _ := s.snapshot()
	return services.TopProjects(records, from, to, parseN(r)), nil
}

func (s *Server) buildMap(r *http.Request) (any, error) {
	from, to, err := parseRange(r)
	if err != nil {
		return nil, err
	}
	metric := services.ParseGeoMetric(r.URL.Query().Get("metric"))

	records, _ := s.snapshot()
	subset := services.Slice(records, from, to)
	return services.GeoBuckets(subset, metric), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	records, version := s.snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"records": len(records),
		"version": version,
	})
}

func (s *Server) handleGetAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := s.areas.Areas()
	if err != nil {
		s.logger.Error("[server] Load areas failed: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, areas)
}

// handlePutAreas replaces the coordinates reference table and reloads the
// snapshot, since the join result changed.
func (s *Server) handlePutAreas(w http.ResponseWriter, r *http.Request) {
	var areas []models.Area
	if err := json.NewDecoder(r.Body).Decode(&areas); err != nil {
		http.Error(w, "bad areas payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(areas) == 0 {
		http.Error(w, "areas payload is empty", http.StatusBadRequest)
		return
	}

	if err := s.areas.PersistAreas(areas); err != nil {
		s.logger.Error("[server] Persist areas failed: %v", err)
		http.Error(w, "persist failed", http.StatusInternalServerError)
		return
	}
	if err := s.Reload(); err != nil {
		s.logger.Error("[server] Reload after area edit failed: %v", err)
		http.Error(w, "reload failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"saved": len(areas), "version": s.Version()})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.Reload(); err != nil {
		s.logger.Error("[server] Refresh failed: %v", err)
		http.Error(w, "refresh failed", http.StatusInternalServerError)
		return
	}
	records, version := s.snapshot()
	writeJSON(w, http.StatusOK, map[string]any{"records": len(records), "version": version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
