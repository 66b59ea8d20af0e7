package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"dre-insights/models"
)

// PostgresWriter exports the cleaned transaction dataset to PostgreSQL so
// external BI tools can read it. The embedded SQLite store stays the
// source of truth; this sink is optional.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id             SERIAL PRIMARY KEY,
			tx_number      VARCHAR(64)  NOT NULL,
			tx_ts          TIMESTAMPTZ  NOT NULL,
			tx_type        TEXT         NOT NULL DEFAULT '',
			reg_type       TEXT         NOT NULL DEFAULT '',
			usage          TEXT         NOT NULL DEFAULT '',
			area           TEXT         NOT NULL DEFAULT '',
			prop_type      TEXT         NOT NULL DEFAULT '',
			prop_subtype   TEXT         NOT NULL DEFAULT '',
			tx_value       NUMERIC(16,2) NOT NULL DEFAULT 0,
			prop_size_sqm  NUMERIC(12,2) NOT NULL DEFAULT 0,
			rooms          TEXT         NOT NULL DEFAULT '',
			master_project TEXT         NOT NULL DEFAULT '',
			project        TEXT         NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_ts        ON transactions(tx_ts);
		CREATE INDEX IF NOT EXISTS idx_transactions_area      ON transactions(area);
		CREATE INDEX IF NOT EXISTS idx_transactions_prop_type ON transactions(prop_type);
	`)
	return err
}

// Clear deletes all previously exported transactions.
func (pw *PostgresWriter) Clear() error {
	_, err := pw.db.Exec("DELETE FROM transactions")
	if err != nil {
		return fmt.Errorf("postgres: clear: %w", err)
	}
	return nil
}

// Write batch-inserts ALL transactions, clearing old data first.
func (pw *PostgresWriter) Write(txs []*models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	if err := pw.Clear(); err != nil {
		return err
	}

	const batchSize = 50
	for i := 0; i < len(txs); i += batchSize {
		end := i + batchSize
		if end > len(txs) {
			end = len(txs)
		}
		if err := pw.insertBatch(txs[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(batch []*models.Transaction) error {
	const cols = 13
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*cols)

	for idx, t := range batch {
		base := idx * cols
		placeholders := make([]string, cols)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			t.TxNumber, t.TxTS, t.TxType, t.RegType, t.Usage, t.Area,
			t.PropType, t.PropSubtype, t.TxValue, t.PropSizeSqm,
			t.Rooms, t.MasterProject, t.Project)
	}

	query := fmt.Sprintf(`
		INSERT INTO transactions (tx_number, tx_ts, tx_type, reg_type, usage,
			area, prop_type, prop_subtype, tx_value, prop_size_sqm, rooms,
			master_project, project)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	_, err := pw.db.Exec(query, valueArgs...)
	return err
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
