package services

import (
	"strconv"
	"strings"
	"time"

	"dre-insights/models"
	"dre-insights/utils"
)

// txTimestampLayouts are the timestamp shapes observed across DLD exports.
var txTimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006 03:04:05 PM",
	"01/02/2006",
}

// Cleaner converts raw CSV export rows into typed Transactions.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean binds the export's header row to transaction fields and parses
// every data row. A row without a parsable timestamp is dropped — an
// undefined date poisons every downstream range filter — and counted in a
// summary log line. Empty or malformed numeric cells become zero; the
// augmenter later turns a zero property size into an unknown price, never
// an error.
func (c *Cleaner) Clean(header []string, rows [][]string) []*models.Transaction {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	result := make([]*models.Transaction, 0, len(rows))
	dropped := 0

	for _, row := range rows {
		ts, err := parseTimestamp(cell(row, "tx_ts"))
		if err != nil {
			c.logger.Debug("[cleaner] Dropping row with bad timestamp %q (tx %s)",
				cell(row, "tx_ts"), cell(row, "tx_number"))
			dropped++
			continue
		}

		result = append(result, &models.Transaction{
			TxNumber:      cell(row, "tx_number"),
			TxTS:          ts,
			TxType:        cell(row, "tx_type"),
			TxSubtype:     cell(row, "tx_subtype"),
			RegType:       cell(row, "reg_type"),
			IsFreeHold:    cell(row, "is_free_hold"),
			Usage:         cell(row, "usage"),
			Area:          cell(row, "area"),
			PropType:      cell(row, "prop_type"),
			PropSubtype:   cell(row, "prop_subtype"),
			TxValue:       parseFloatCell(cell(row, "tx_value")),
			TxSizeSqm:     parseFloatCell(cell(row, "tx_size_sqm")),
			PropSizeSqm:   parseFloatCell(cell(row, "prop_size_sqm")),
			Rooms:         cell(row, "rooms"),
			Parking:       cell(row, "parking"),
			NearMetro:     cell(row, "near_metro"),
			NearMall:      cell(row, "near_mall"),
			NearLandmark:  cell(row, "near_landmark"),
			BuyCount:      parseIntCell(cell(row, "buy_count")),
			SellCount:     parseIntCell(cell(row, "sell_count")),
			MasterProject: cell(row, "master_project"),
			Project:       cell(row, "project"),
		})
	}

	c.logger.Info("[cleaner] Cleaned %d → %d transactions (dropped %d)",
		len(rows), len(result), dropped)
	return result
}

func parseTimestamp(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range txTimestampLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseFloatCell parses a numeric cell, tolerating comma grouping. Empty
// or malformed cells become 0.
func parseFloatCell(raw string) float64 {
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseIntCell(raw string) int {
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// some exports render counts as "2.0"
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return n
}
