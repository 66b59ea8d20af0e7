package storage

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"dre-insights/models"
)

const (
	txTable    = "dubailand_tx"
	areasTable = "dubai_areas"

	tsLayout = "2006-01-02 15:04:05"
)

// SQLiteStore owns the embedded analytical database file: the transaction
// table refreshed per ingest and the small user-editable areas table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("sqlite: create data dir: %w", err)
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureAreas seeds the areas table from the bundled CSV, but only when
// the table does not exist yet — user edits made through the API survive
// restarts.
func (s *SQLiteStore) EnsureAreas(csvPath string) error {
	var name string
	err := s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, areasTable,
	).Scan(&name)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: check areas table: %w", err)
	}

	areas, err := readAreasCSV(csvPath)
	if err != nil {
		return err
	}
	return s.PersistAreas(areas)
}

// Areas returns the coordinates reference table ordered by area name.
func (s *SQLiteStore) Areas() ([]models.Area, error) {
	rows, err := s.db.Query(
		`SELECT area, latitude, longitude FROM ` + areasTable + ` ORDER BY area ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query areas: %w", err)
	}
	defer rows.Close()

	var areas []models.Area
	for rows.Next() {
		var a models.Area
		if err := rows.Scan(&a.Area, &a.Latitude, &a.Longitude); err != nil {
			return nil, fmt.Errorf("sqlite: scan area: %w", err)
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

// PersistAreas atomically replaces the areas table: drop, recreate and
// bulk insert inside one transaction, so readers only ever see a complete
// snapshot. Area names are lower-cased — they are the join key.
func (s *SQLiteStore) PersistAreas(areas []models.Area) error {
	for _, a := range areas {
		if strings.TrimSpace(a.Area) == "" {
			return fmt.Errorf("sqlite: area with empty name")
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DROP TABLE IF EXISTS ` + areasTable); err != nil {
		return fmt.Errorf("sqlite: drop areas: %w", err)
	}
	if _, err := tx.Exec(`CREATE TABLE ` + areasTable + ` (
		area      TEXT PRIMARY KEY,
		latitude  REAL,
		longitude REAL
	)`); err != nil {
		return fmt.Errorf("sqlite: create areas: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO ` + areasTable + ` (area, latitude, longitude) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare areas insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range areas {
		key := strings.ToLower(strings.TrimSpace(a.Area))
		if _, err := stmt.Exec(key, a.Latitude, a.Longitude); err != nil {
			return fmt.Errorf("sqlite: insert area %q: %w", a.Area, err)
		}
	}
	return tx.Commit()
}

// ReplaceTransactions drops and recreates the transaction table from a
// fresh export, inside one transaction.
func (s *SQLiteStore) ReplaceTransactions(txs []*models.Transaction) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.Exec(`DROP TABLE IF EXISTS ` + txTable); err != nil {
		return fmt.Errorf("sqlite: drop transactions: %w", err)
	}
	if _, err := dbTx.Exec(`CREATE TABLE ` + txTable + ` (
		tx_number      TEXT,
		tx_ts          TEXT,
		tx_type        TEXT,
		tx_subtype     TEXT,
		reg_type       TEXT,
		is_free_hold   TEXT,
		usage          TEXT,
		area           TEXT,
		prop_type      TEXT,
		prop_subtype   TEXT,
		tx_value       REAL,
		tx_size_sqm    REAL,
		prop_size_sqm  REAL,
		rooms          TEXT,
		parking        TEXT,
		near_metro     TEXT,
		near_mall      TEXT,
		near_landmark  TEXT,
		buy_count      INTEGER,
		sell_count     INTEGER,
		master_project TEXT,
		project        TEXT
	)`); err != nil {
		return fmt.Errorf("sqlite: create transactions: %w", err)
	}

	stmt, err := dbTx.Prepare(`INSERT INTO ` + txTable + ` (
		tx_number, tx_ts, tx_type, tx_subtype, reg_type, is_free_hold, usage,
		area, prop_type, prop_subtype, tx_value, tx_size_sqm, prop_size_sqm,
		rooms, parking, near_metro, near_mall, near_landmark, buy_count,
		sell_count, master_project, project
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare tx insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		if _, err := stmt.Exec(
			t.TxNumber, t.TxTS.Format(tsLayout), t.TxType, t.TxSubtype,
			t.RegType, t.IsFreeHold, t.Usage, t.Area, t.PropType,
			t.PropSubtype, t.TxValue, t.TxSizeSqm, t.PropSizeSqm, t.Rooms,
			t.Parking, t.NearMetro, t.NearMall, t.NearLandmark, t.BuyCount,
			t.SellCount, t.MasterProject, t.Project,
		); err != nil {
			return fmt.Errorf("sqlite: insert tx %q: %w", t.TxNumber, err)
		}
	}
	return dbTx.Commit()
}

// LoadJoined returns all transactions left-joined against the areas table
// on the lower-cased area name, ordered by timestamp. Rows whose area is
// missing from the reference table keep nil coordinates: they stay visible
// to every non-geospatial aggregation and only the map layer skips them.
func (s *SQLiteStore) LoadJoined() ([]*models.Transaction, error) {
	rows, err := s.db.Query(`
		SELECT tx.tx_number, tx.tx_ts, tx.tx_type, tx.tx_subtype, tx.reg_type,
		       tx.is_free_hold, tx.usage, tx.area, tx.prop_type, tx.prop_subtype,
		       tx.tx_value, tx.tx_size_sqm, tx.prop_size_sqm, tx.rooms,
		       tx.parking, tx.near_metro, tx.near_mall, tx.near_landmark,
		       tx.buy_count, tx.sell_count, tx.master_project, tx.project,
		       da.area, da.latitude, da.longitude
		FROM ` + txTable + ` tx
		LEFT JOIN ` + areasTable + ` da ON LOWER(tx.area) = da.area
		ORDER BY tx.tx_ts ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query joined: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		t := &models.Transaction{}
		var ts string
		var areaNorm sql.NullString
		var lat, lon sql.NullFloat64

		if err := rows.Scan(
			&t.TxNumber, &ts, &t.TxType, &t.TxSubtype, &t.RegType,
			&t.IsFreeHold, &t.Usage, &t.Area, &t.PropType, &t.PropSubtype,
			&t.TxValue, &t.TxSizeSqm, &t.PropSizeSqm, &t.Rooms,
			&t.Parking, &t.NearMetro, &t.NearMall, &t.NearLandmark,
			&t.BuyCount, &t.SellCount, &t.MasterProject, &t.Project,
			&areaNorm, &lat, &lon,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan tx: %w", err)
		}

		t.TxTS, err = time.Parse(tsLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("sqlite: bad timestamp %q for tx %q: %w", ts, t.TxNumber, err)
		}
		if areaNorm.Valid {
			t.AreaNorm = areaNorm.String
		}
		if lat.Valid && lon.Valid {
			latV, lonV := lat.Float64, lon.Float64
			t.Latitude, t.Longitude = &latV, &lonV
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// readAreasCSV parses the bundled seed file. The file may or may not
// carry a header row; the first row is skipped when its latitude cell
// does not parse.
func readAreasCSV(path string) ([]models.Area, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("areas csv: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("areas csv: read %q: %w", path, err)
	}

	var areas []models.Area
	for i, rec := range records {
		if len(rec) < 3 {
			continue
		}
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if latErr != nil || lonErr != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("areas csv: bad coordinates on line %d", i+1)
		}
		areas = append(areas, models.Area{
			Area:      strings.ToLower(strings.TrimSpace(rec[0])),
			Latitude:  lat,
			Longitude: lon,
		})
	}
	if len(areas) == 0 {
		return nil, fmt.Errorf("areas csv: no rows in %q", path)
	}
	return areas, nil
}
