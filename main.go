package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"dre-insights/config"
	"dre-insights/fetcher/dubailand"
	"dre-insights/models"
	"dre-insights/server"
	"dre-insights/services"
	"dre-insights/storage"
	"dre-insights/utils"
)

func main() {
	fetchFlag := flag.Bool("fetch", false, "download a fresh DLD export before serving")
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := utils.NewLogger()
	if *debugFlag {
		logger.EnableDebug()
	}
	cfg := config.Load()

	logger.Info("=== DRE Insights Dashboard starting ===")
	logger.Info("Config — db: %s | usd rate: %.4f | listen: %s | refresh: %dm | cache: %ds",
		cfg.DBPath, cfg.USDRate, cfg.ListenAddr, cfg.RefreshMinutes, cfg.CacheTTLSeconds)

	store, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to open SQLite store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.EnsureAreas(cfg.AreasCSVPath); err != nil {
		logger.Error("Failed to seed areas table: %v", err)
		os.Exit(1)
	}

	if *fetchFlag {
		if err := runIngest(cfg, logger, store); err != nil {
			logger.Error("Ingest failed: %v", err)
			os.Exit(1)
		}
	}

	loader := &recordLoader{store: store, cfg: cfg, logger: logger}
	srv := server.New(cfg, logger, loader, store)
	if err := srv.Reload(); err != nil {
		logger.Error("Initial load failed: %v", err)
		logger.Error("Run with -fetch to download an export first")
		os.Exit(1)
	}

	records := srv.Records()
	logger.Info("Loaded %d transactions", len(records))

	// Trailing-week console report.
	to := time.Now()
	from := to.AddDate(0, 0, -7)
	insightSvc := services.NewInsightService(logger, cfg.TopN)
	insightSvc.Print(insightSvc.Generate(records, from, to))

	if cfg.ExportToPostgres {
		exportToPostgres(cfg, logger, records)
	}

	go refreshLoop(cfg, logger, srv)

	logger.Info("Serving API on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Handler()); err != nil {
		logger.Error("Server stopped: %v", err)
		os.Exit(1)
	}
}

// runIngest downloads the configured date range, cleans it and replaces
// the transaction table.
func runIngest(cfg *config.Config, logger *utils.Logger, store *storage.SQLiteStore) error {
	f := dubailand.New(cfg, logger)
	from, to := cfg.FetchRange()

	paths, err := f.Fetch(from, to)
	if err != nil {
		if len(paths) == 0 {
			return err
		}
		logger.Warn("Partial fetch — continuing with %d file(s): %v", len(paths), err)
	}

	cleaner := services.NewCleaner(logger)
	var all []*models.Transaction
	for _, p := range paths {
		header, rows, err := storage.ReadExport(p)
		if err != nil {
			return err
		}
		all = append(all, cleaner.Clean(header, rows)...)
	}

	if len(all) == 0 {
		logger.Error("No transactions survived cleaning. Exiting.")
		os.Exit(1)
	}

	logger.Info("Storing %d transactions", len(all))
	return store.ReplaceTransactions(all)
}

func exportToPostgres(cfg *config.Config, logger *utils.Logger, records []*models.Transaction) {
	pg, err := storage.NewPostgresWriter(cfg.DSN())
	if err != nil {
		logger.Error("PostgreSQL export connect failed: %v", err)
		return
	}
	defer pg.Close()

	if err := pg.Write(records); err != nil {
		logger.Error("PostgreSQL export failed: %v", err)
		return
	}
	logger.Info("Exported %d transactions to PostgreSQL", len(records))
}

func refreshLoop(cfg *config.Config, logger *utils.Logger, srv *server.Server) {
	if cfg.RefreshMinutes <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(cfg.RefreshMinutes) * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		if err := srv.Reload(); err != nil {
			logger.Error("Periodic reload failed: %v", err)
		}
	}
}

// recordLoader reads the joined dataset from the store and applies
// augmentation, producing the immutable snapshot the server serves.
type recordLoader struct {
	store  *storage.SQLiteStore
	cfg    *config.Config
	logger *utils.Logger
}

func (l *recordLoader) Load() ([]*models.Transaction, error) {
	records, err := l.store.LoadJoined()
	if err != nil {
		return nil, err
	}
	if err := services.Augment(records, l.cfg.USDRate); err != nil {
		return nil, err
	}

	unmatched := 0
	for _, r := range records {
		if r.Latitude == nil {
			unmatched++
		}
	}
	if unmatched > 0 {
		l.logger.Warn("%d record(s) reference areas missing from the coordinates table — they are excluded from the map layer only", unmatched)
	}
	return records, nil
}
