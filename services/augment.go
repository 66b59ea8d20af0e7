package services

import (
	"fmt"
	"math"

	"dre-insights/models"
)

// Augment populates the derived fields on every record: the ISO week
// number, the YYYY-MM-DD date bucket, the USD-converted value, and the USD
// price per square meter. It is idempotent — reapplying it yields the same
// values. A record without a timestamp is a structural error and aborts
// before anything is written; an unknown property size is not, and leaves
// PriceSqm as NaN for callers to treat as "unknown".
func Augment(records []*models.Transaction, usdRate float64) error {
	if usdRate <= 0 {
		return fmt.Errorf("augment: invalid USD conversion rate %v", usdRate)
	}

	for i, r := range records {
		if r.TxTS.IsZero() {
			return fmt.Errorf("augment: record %d (tx %q) has no timestamp", i, r.TxNumber)
		}
	}

	for _, r := range records {
		_, week := r.TxTS.ISOWeek()
		r.WeekNumber = week
		r.TxDate = r.TxTS.Format("2006-01-02")
		r.TxValueUSD = r.TxValue / usdRate
		if r.PropSizeSqm > 0 {
			r.PriceSqm = r.TxValueUSD / r.PropSizeSqm
		} else {
			r.PriceSqm = math.NaN()
		}
	}
	return nil
}
