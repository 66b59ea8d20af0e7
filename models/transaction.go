package models

import "time"

// Transaction is one property transaction from the Dubai Land Department
// open-data export, joined against the areas reference table and augmented
// with derived fields after load. Once augmented, records are never mutated;
// every aggregation is a pure read.
type Transaction struct {
	// Identity. TxNumber is not guaranteed unique across source exports.
	TxNumber string
	TxTS     time.Time

	// Classification (free-text categories from the source).
	TxType      string
	TxSubtype   string
	RegType     string
	IsFreeHold  string
	Usage       string
	PropType    string
	PropSubtype string
	Rooms       string

	// Magnitude. Sizes may be zero when the source omits them.
	TxValue     float64 // local currency (AED)
	TxSizeSqm   float64
	PropSizeSqm float64
	BuyCount    int
	SellCount   int

	// Location. AreaNorm/Latitude/Longitude come from the coordinates
	// reference table; they stay empty/nil when the area name is unknown
	// there, which excludes the record from the map layer only.
	Area      string
	AreaNorm  string
	Latitude  *float64
	Longitude *float64

	// Neighborhood metadata carried through from the export.
	Parking      string
	NearMetro    string
	NearMall     string
	NearLandmark string

	// Project metadata (may be empty).
	MasterProject string
	Project       string

	// Derived fields, set once by services.Augment.
	WeekNumber int     // ISO week of TxTS
	TxDate     string  // YYYY-MM-DD bucket for time-series grouping
	TxValueUSD float64 // TxValue converted at the configured rate
	PriceSqm   float64 // TxValueUSD / PropSizeSqm; NaN when size unknown
}

// Area is one row of the user-editable coordinates reference table.
// Names are stored lower-cased and act as the join key.
type Area struct {
	Area      string  `json:"area"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
