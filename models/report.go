package models

import "time"

// TypeDateCount is one stacked-bar cell: transactions of a property type on
// a given date bucket.
type TypeDateCount struct {
	PropType string `json:"prop_type"`
	TxDate   string `json:"tx_date"`
	Count    int    `json:"count"`
}

// DateMedian is one point of the median price-per-sqm time series.
// Median is NaN when no record on that date has a defined price.
type DateMedian struct {
	TxDate string
	Median float64
}

// RoomCount is one row of the rooms breakdown.
type RoomCount struct {
	Rooms string `json:"rooms"`
	Count int    `json:"count"`
}

// TopTransaction is one row of the ranked transactions table.
type TopTransaction struct {
	Project     string  `json:"project"`
	Area        string  `json:"area"`
	TxValueUSD  float64 `json:"tx_value_usd"`
	ValueLabel  string  `json:"tx_value_usd_label"`
	TxSizeSqm   float64 `json:"tx_size_sqm"`
	PropSubtype string  `json:"prop_subtype"`
}

// TopProject is one row of the ranked projects table. UnitsSold is the
// transaction count; TxValueUSD aggregates their USD values.
type TopProject struct {
	Project    string  `json:"project"`
	UnitsSold  int     `json:"units_sold"`
	TxValueUSD float64 `json:"tx_value_usd"`
	ValueLabel string  `json:"tx_value_usd_label"`
}

// GeoBucket is one coordinate group for the map layer. Norm is the chosen
// metric min-max normalized into [0,1] across all buckets.
type GeoBucket struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Value     float64 `json:"value"`
	Norm      float64 `json:"norm"`
}

// InsightReport holds the headline metrics for a date range with
// period-over-period deltas against the equal-length prior window.
// Scalar values may be NaN when the range is empty.
type InsightReport struct {
	From time.Time
	To   time.Time

	TxCount        int
	TxCountDelta   float64
	TotalValueUSD  float64
	TotalDelta     float64
	MedianPriceSqm float64
	MedianDelta    float64
	MedianRental   float64
	RentalDelta    float64
	LargestTxUSD   float64
	LargestDelta   float64

	TopTransactions []TopTransaction
	TopProjects     []TopProject
}
