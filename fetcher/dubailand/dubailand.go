package dubailand

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"dre-insights/config"
	"dre-insights/utils"
)

const defaultExportURL = "https://gateway.dubailand.gov.ae/open-data/transactions/export/csv"

// maxChunkDays bounds one export request; longer ranges are split so a
// single slow response cannot stall the whole refresh.
const maxChunkDays = 31

// fieldLabels maps DLD source columns to the short names used across the
// rest of the system. The export endpoint echoes them back as CSV headers,
// so the cleaner binds against the values of this map.
var fieldLabels = map[string]string{
	"TRANSACTION_NUMBER":  "tx_number",
	"INSTANCE_DATE":       "tx_ts",
	"GROUP_EN":            "tx_type",
	"PROCEDURE_EN":        "tx_subtype",
	"IS_OFFPLAN_EN":       "reg_type",
	"IS_FREE_HOLD_EN":     "is_free_hold",
	"USAGE_EN":            "usage",
	"AREA_EN":             "area",
	"PROP_TYPE_EN":        "prop_type",
	"PROP_SB_TYPE_EN":     "prop_subtype",
	"TRANS_VALUE":         "tx_value",
	"PROCEDURE_AREA":      "tx_size_sqm",
	"ACTUAL_AREA":         "prop_size_sqm",
	"ROOMS_EN":            "rooms",
	"PARKING":             "parking",
	"NEAREST_METRO_EN":    "near_metro",
	"NEAREST_MALL_EN":     "near_mall",
	"NEAREST_LANDMARK_EN": "near_landmark",
	"TOTAL_BUYER":         "buy_count",
	"TOTAL_SELLER":        "sell_count",
	"MASTER_PROJECT_EN":   "master_project",
	"PROJECT_EN":          "project",
}

type dateRange struct {
	from, to time.Time
}

func (r dateRange) key() string {
	return r.from.Format("2006-01-02") + "/" + r.to.Format("2006-01-02")
}

// Fetcher downloads CSV exports from the DLD open-data endpoint.
type Fetcher struct {
	cfg    *config.Config
	logger *utils.Logger
	pool   *utils.WorkerPool
	seen   *utils.StringSet
	retry  *utils.RetryConfig
	client *http.Client

	// exportURL is overridable in tests.
	exportURL string
}

// New creates a ready-to-use Fetcher.
func New(cfg *config.Config, logger *utils.Logger) *Fetcher {
	return &Fetcher{
		cfg:    cfg,
		logger: logger,
		pool:   utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		seen:   utils.NewStringSet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		client:    &http.Client{Timeout: 5 * time.Minute},
		exportURL: defaultExportURL,
	}
}

// Fetch downloads the export for the inclusive [from, to] range, splitting
// long ranges into month-sized chunks fetched concurrently through the
// rate-limited pool. It returns the paths of all CSV files written; on
// partial failure the successful paths are returned alongside the error.
func (f *Fetcher) Fetch(from, to time.Time) ([]string, error) {
	if err := os.MkdirAll(f.cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("fetch: create data dir: %w", err)
	}

	chunks := splitRange(from, to, maxChunkDays)
	f.logger.Info("[dubailand] Fetching %s → %s in %d chunk(s)",
		from.Format("2006-01-02"), to.Format("2006-01-02"), len(chunks))

	var (
		mu    sync.Mutex
		paths []string
		errs  []error
	)

	for _, ch := range chunks {
		ch := ch
		if !f.seen.Add(ch.key()) {
			f.logger.Debug("[dubailand] Chunk %s already fetched — skipping", ch.key())
			continue
		}

		f.pool.Submit(func() {
			path := filepath.Join(f.cfg.DataDir, fmt.Sprintf(
				"dubailand-tx-%s-to-%s.csv",
				ch.from.Format("2006-01-02"), ch.to.Format("2006-01-02")))

			err := f.retry.Do("fetch "+ch.key(), func() error {
				return f.download(ch, path)
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			paths = append(paths, path)
			f.logger.Info("[dubailand] Saved chunk %s → %s", ch.key(), path)
		})
	}
	f.pool.Wait()

	return paths, errors.Join(errs...)
}

// download performs one export request and streams the CSV body to path.
func (f *Fetcher) download(ch dateRange, path string) error {
	payload := map[string]any{
		"parameters": map[string]string{
			"P_FROM_DATE":    ch.from.Format("01/02/2006"),
			"P_TO_DATE":      ch.to.Format("01/02/2006"),
			"P_GROUP_ID":     "",
			"P_IS_OFFPLAN":   "",
			"P_IS_FREE_HOLD": "",
			"P_AREA_ID":      "",
			"P_USAGE_ID":     "",
			"P_PROP_TYPE_ID": "",
			"P_TAKE":         "-1",
			"P_SKIP":         "",
			"P_SORT":         "TRANSACTION_NUMBER_ASC",
		},
		"command": "transactions",
		"labels":  fieldLabels,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("fetch: marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, f.exportURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("fetch: build request: %w", err)
	}
	setBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: post export: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch: export returned %s", resp.Status)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("fetch: create %q: %w", path, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return fmt.Errorf("fetch: write %q: %w", path, err)
	}
	return out.Close()
}

// setBrowserHeaders mimics the browser session the gateway expects;
// requests without them are rejected.
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Origin", "https://dubailand.gov.ae")
	req.Header.Set("Referer", "https://dubailand.gov.ae/")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
}

// splitRange cuts the inclusive [from, to] date range into consecutive
// chunks of at most maxDays days. An inverted range yields no chunks.
func splitRange(from, to time.Time, maxDays int) []dateRange {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	var chunks []dateRange
	for cur := from; !cur.After(to); {
		end := cur.AddDate(0, 0, maxDays-1)
		if end.After(to) {
			end = to
		}
		chunks = append(chunks, dateRange{from: cur, to: end})
		cur = end.AddDate(0, 0, 1)
	}
	return chunks
}
