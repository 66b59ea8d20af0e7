package services

import (
	"math"
	"sort"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"dre-insights/models"
)

// DefaultTopN is the ranking size used when callers pass n <= 0.
const DefaultTopN = 5

// landPropType marks land sales, which are excluded from the ranked
// transaction tables.
const landPropType = "Land"

var usd = message.NewPrinter(language.English)

// FormatUSD renders a USD amount with comma grouping and no decimals.
// NaN renders empty.
func FormatUSD(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return usd.Sprintf("%.0f", v)
}

// Count returns the number of transactions in the inclusive date range.
func Count(records []*models.Transaction, from, to time.Time) int {
	return len(Slice(records, from, to))
}

// TotalValue returns the summed USD value of transactions in range, 0 when
// the range is empty.
func TotalValue(records []*models.Transaction, from, to time.Time) float64 {
	var total float64
	for _, r := range Slice(records, from, to) {
		total += r.TxValueUSD
	}
	return total
}

// MedianPriceSqm returns the median USD price per square meter over the
// range. Records with an unknown price (missing property size) are
// ignored; NaN when none remain.
func MedianPriceSqm(records []*models.Transaction, from, to time.Time) float64 {
	var vals []float64
	for _, r := range Slice(records, from, to) {
		if !math.IsNaN(r.PriceSqm) {
			vals = append(vals, r.PriceSqm)
		}
	}
	return median(vals)
}

// MedianRentalValue returns the median rental transaction value for the
// range. The rental dataset is not wired in yet, so this is a constant 0.
// TODO: compute from the DLD rental export once it is ingested.
func MedianRentalValue(records []*models.Transaction, from, to time.Time) float64 {
	return 0.0
}

// LargestTx returns the largest USD transaction value in range, NaN when
// the range is empty.
func LargestTx(records []*models.Transaction, from, to time.Time) float64 {
	largest := math.NaN()
	for _, r := range Slice(records, from, to) {
		if math.IsNaN(largest) || r.TxValueUSD > largest {
			largest = r.TxValueUSD
		}
	}
	return largest
}

// TxByType counts transactions per (property type, date bucket) pair,
// ordered by date then type for stacked-bar charts. Categories absent from
// the range are simply absent — never zero-filled.
func TxByType(records []*models.Transaction, from, to time.Time) []models.TypeDateCount {
	type key struct{ propType, date string }
	counts := make(map[key]int)
	for _, r := range Slice(records, from, to) {
		counts[key{r.PropType, r.TxDate}]++
	}

	out := make([]models.TypeDateCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, models.TypeDateCount{PropType: k.propType, TxDate: k.date, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TxDate != out[j].TxDate {
			return out[i].TxDate < out[j].TxDate
		}
		return out[i].PropType < out[j].PropType
	})
	return out
}

// ByRegType counts transactions per registration type. Keys are kept
// exactly as they appear in the source data.
func ByRegType(records []*models.Transaction, from, to time.Time) map[string]int {
	counts := make(map[string]int)
	for _, r := range Slice(records, from, to) {
		counts[r.RegType]++
	}
	return counts
}

// ByPaymentType counts transactions per payment/transaction type.
func ByPaymentType(records []*models.Transaction, from, to time.Time) map[string]int {
	counts := make(map[string]int)
	for _, r := range Slice(records, from, to) {
		counts[r.TxType]++
	}
	return counts
}

// MedianPriceSqmByDate returns one median price-per-sqm point per distinct
// date bucket present in the range, ordered by date. A date whose records
// all lack a defined price still appears, with a NaN median.
func MedianPriceSqmByDate(records []*models.Transaction, from, to time.Time) []models.DateMedian {
	byDate := make(map[string][]float64)
	for _, r := range Slice(records, from, to) {
		vals := byDate[r.TxDate]
		if !math.IsNaN(r.PriceSqm) {
			vals = append(vals, r.PriceSqm)
		}
		byDate[r.TxDate] = vals
	}

	out := make([]models.DateMedian, 0, len(byDate))
	for date, vals := range byDate {
		out = append(out, models.DateMedian{TxDate: date, Median: median(vals)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TxDate < out[j].TxDate })
	return out
}

// TopTransactions returns the n highest-value transactions in range,
// excluding land sales, sorted descending by USD value. Ties keep their
// original record order; fewer than n qualifying records returns them all.
func TopTransactions(records []*models.Transaction, from, to time.Time, n int) []models.TopTransaction {
	if n <= 0 {
		n = DefaultTopN
	}

	var qualified []*models.Transaction
	for _, r := range Slice(records, from, to) {
		if r.PropType == landPropType {
			continue
		}
		qualified = append(qualified, r)
	}
	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].TxValueUSD > qualified[j].TxValueUSD
	})
	if len(qualified) > n {
		qualified = qualified[:n]
	}

	out := make([]models.TopTransaction, 0, len(qualified))
	for _, r := range qualified {
		out = append(out, models.TopTransaction{
			Project:     r.Project,
			Area:        r.Area,
			TxValueUSD:  r.TxValueUSD,
			ValueLabel:  FormatUSD(r.TxValueUSD),
			TxSizeSqm:   r.TxSizeSqm,
			PropSubtype: r.PropSubtype,
		})
	}
	return out
}

// TopProjects returns the n projects with the most transactions in range,
// with their aggregate USD value, sorted descending by unit count. Ties
// keep first-appearance order.
func TopProjects(records []*models.Transaction, from, to time.Time, n int) []models.TopProject {
	if n <= 0 {
		n = DefaultTopN
	}

	idx := make(map[string]int)
	var projects []models.TopProject
	for _, r := range Slice(records, from, to) {
		i, ok := idx[r.Project]
		if !ok {
			i = len(projects)
			idx[r.Project] = i
			projects = append(projects, models.TopProject{Project: r.Project})
		}
		projects[i].UnitsSold++
		projects[i].TxValueUSD += r.TxValueUSD
	}

	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].UnitsSold > projects[j].UnitsSold
	})
	if len(projects) > n {
		projects = projects[:n]
	}
	for i := range projects {
		projects[i].ValueLabel = FormatUSD(projects[i].TxValueUSD)
	}
	return projects
}

// ByRoomType counts transactions per room category, sorted descending by
// the category label.
func ByRoomType(records []*models.Transaction, from, to time.Time) []models.RoomCount {
	counts := make(map[string]int)
	for _, r := range Slice(records, from, to) {
		counts[r.Rooms]++
	}

	out := make([]models.RoomCount, 0, len(counts))
	for rooms, n := range counts {
		out = append(out, models.RoomCount{Rooms: rooms, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rooms > out[j].Rooms })
	return out
}

// median returns the middle value of vals (mean of the two middles for
// even lengths), NaN for an empty input. The input is not modified.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
