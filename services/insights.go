package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"dre-insights/models"
	"dre-insights/utils"
)

// InsightService composes the aggregation library into the headline report
// printed at startup and served by the summary endpoint.
type InsightService struct {
	logger *utils.Logger
	topN   int
}

// NewInsightService creates an InsightService ranking topN rows.
func NewInsightService(logger *utils.Logger, topN int) *InsightService {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &InsightService{logger: logger, topN: topN}
}

// Generate computes the headline metrics for [from, to] with deltas
// against the equal-length prior window. Every reducer receives the full
// record set and applies the range filter itself.
func (s *InsightService) Generate(records []*models.Transaction, from, to time.Time) *models.InsightReport {
	prevFrom, prevTo := PriorPeriod(from, to)

	r := &models.InsightReport{From: from, To: to}

	r.TxCount = Count(records, from, to)
	r.TxCountDelta = PercentChange(
		float64(Count(records, prevFrom, prevTo)), float64(r.TxCount))

	r.TotalValueUSD = TotalValue(records, from, to)
	r.TotalDelta = PercentChange(
		TotalValue(records, prevFrom, prevTo), r.TotalValueUSD)

	r.MedianPriceSqm = MedianPriceSqm(records, from, to)
	r.MedianDelta = nanSafeChange(
		MedianPriceSqm(records, prevFrom, prevTo), r.MedianPriceSqm)

	r.MedianRental = MedianRentalValue(records, from, to)
	r.RentalDelta = PercentChange(
		MedianRentalValue(records, prevFrom, prevTo), r.MedianRental)

	r.LargestTxUSD = LargestTx(records, from, to)
	r.LargestDelta = nanSafeChange(
		LargestTx(records, prevFrom, prevTo), r.LargestTxUSD)

	r.TopTransactions = TopTransactions(records, from, to, s.topN)
	r.TopProjects = TopProjects(records, from, to, s.topN)

	return r
}

// nanSafeChange treats an undefined side as "no delta" so empty prior
// windows render as 0% rather than NaN%.
func nanSafeChange(prev, cur float64) float64 {
	if math.IsNaN(prev) || math.IsNaN(cur) {
		return 0
	}
	return PercentChange(prev, cur)
}

// Print renders the report to the console.
func (s *InsightService) Print(r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 DRE INSIGHTS — %s → %s\033[0m\n",
		r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Headline Metrics (vs. prior period)\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Transactions          : \033[1m%d\033[0m (%+.1f%%)\n", r.TxCount, r.TxCountDelta)
	fmt.Printf("  Total value           : \033[1;32m$%s\033[0m (%+.1f%%)\n",
		FormatUSD(r.TotalValueUSD), r.TotalDelta)
	fmt.Printf("  Median price / sq. m. : \033[1;32m%s\033[0m (%+.1f%%)\n",
		usdOrNA(r.MedianPriceSqm), r.MedianDelta)
	fmt.Printf("  Median rental value   : \033[1;32m%s\033[0m (%+.1f%%)\n",
		usdOrNA(r.MedianRental), r.RentalDelta)
	fmt.Printf("  Largest transaction   : \033[1;31m%s\033[0m (%+.1f%%)\n",
		usdOrNA(r.LargestTxUSD), r.LargestDelta)
	fmt.Println()

	fmt.Printf("\033[1;33m  Top %d Transactions\033[0m\n", s.topN)
	fmt.Printf("  %s\n", thin)
	if len(r.TopTransactions) == 0 {
		fmt.Printf("  No transactions in range\n")
	}
	for i, t := range r.TopTransactions {
		project := t.Project
		if project == "" {
			project = "(no project)"
		}
		fmt.Printf("  \033[1m%d.\033[0m %-28s %-16s \033[1;32m$%s\033[0m\n",
			i+1, truncate(project, 26), truncate(t.Area, 15), t.ValueLabel)
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Top %d Projects by Units Sold\033[0m\n", s.topN)
	fmt.Printf("  %s\n", thin)
	if len(r.TopProjects) == 0 {
		fmt.Printf("  No projects in range\n")
	}
	for i, p := range r.TopProjects {
		project := p.Project
		if project == "" {
			project = "(no project)"
		}
		fmt.Printf("  \033[1m%d.\033[0m %-28s %4d units  \033[1;32m$%s\033[0m\n",
			i+1, truncate(project, 26), p.UnitsSold, p.ValueLabel)
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func usdOrNA(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return "$" + FormatUSD(v)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
