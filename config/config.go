package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DBPath       string
	DataDir      string
	AreasCSVPath string

	// USDRate converts AED transaction values to USD. Injected here rather
	// than hardcoded in the transform so a rate provider can replace it.
	USDRate float64

	ListenAddr      string
	CacheTTLSeconds int
	RefreshMinutes  int
	TopN            int

	FetchFrom string // YYYY-MM-DD, default 30 days back
	FetchTo   string // YYYY-MM-DD, default today

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	ExportToPostgres bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		DBPath:       getEnv("DB_PATH", "./data/dre.db"),
		DataDir:      getEnv("DATA_DIR", "./data"),
		AreasCSVPath: getEnv("AREAS_CSV_PATH", "./res/dubai-areas.csv"),

		USDRate: getEnvFloat("USD_AED_RATE", 3.6725),

		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 300),
		RefreshMinutes:  getEnvInt("REFRESH_MINUTES", 5),
		TopN:            getEnvInt("TOP_N", 5),

		FetchFrom: getEnv("FETCH_FROM", ""),
		FetchTo:   getEnv("FETCH_TO", ""),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "dre"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "dre_insights"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		ExportToPostgres: getEnvBool("EXPORT_TO_POSTGRES", false),
	}
}

// DSN returns the PostgreSQL connection string for the optional export sink.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// CacheTTL returns the response cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// FetchRange resolves FETCH_FROM/FETCH_TO into concrete dates, defaulting
// to the trailing 30 days. Malformed values fall back to the defaults.
func (c *Config) FetchRange() (time.Time, time.Time) {
	to := time.Now()
	from := to.AddDate(0, 0, -30)
	if t, err := time.Parse("2006-01-02", c.FetchTo); err == nil {
		to = t
	}
	if t, err := time.Parse("2006-01-02", c.FetchFrom); err == nil {
		from = t
	}
	return from, to
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
