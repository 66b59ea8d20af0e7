package services

import (
	"math"
	"sort"

	"dre-insights/models"
)

// GeoMetric selects the value encoded per coordinate group on the map.
type GeoMetric string

const (
	GeoCount          GeoMetric = "count"
	GeoTotalValue     GeoMetric = "tx_value_usd"
	GeoMedianPriceSqm GeoMetric = "price_sqm"
)

// GeoBuckets groups an already-sliced record subset by exact coordinate
// pair, computes the chosen metric per group, and min-max normalizes it
// into [0,1] for color/elevation encoding. Records that failed the area
// join (nil coordinates) are skipped, as are groups whose metric is
// undefined. When every group carries the same value, normalization would
// divide by zero; the output is pinned to 0.5 instead. Buckets are ordered
// by (latitude, longitude).
func GeoBuckets(records []*models.Transaction, metric GeoMetric) []models.GeoBucket {
	type key struct{ lat, lon float64 }
	groups := make(map[key][]*models.Transaction)
	for _, r := range records {
		if r.Latitude == nil || r.Longitude == nil {
			continue
		}
		k := key{*r.Latitude, *r.Longitude}
		groups[k] = append(groups[k], r)
	}

	out := make([]models.GeoBucket, 0, len(groups))
	for k, g := range groups {
		v := groupMetric(g, metric)
		if math.IsNaN(v) {
			continue
		}
		out = append(out, models.GeoBucket{Latitude: k.lat, Longitude: k.lon, Value: v})
	}
	if len(out) == 0 {
		return out
	}

	lo, hi := out[0].Value, out[0].Value
	for _, b := range out[1:] {
		if b.Value < lo {
			lo = b.Value
		}
		if b.Value > hi {
			hi = b.Value
		}
	}
	for i := range out {
		if hi == lo {
			out[i].Norm = 0.5
		} else {
			out[i].Norm = (out[i].Value - lo) / (hi - lo)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Latitude != out[j].Latitude {
			return out[i].Latitude < out[j].Latitude
		}
		return out[i].Longitude < out[j].Longitude
	})
	return out
}

func groupMetric(g []*models.Transaction, metric GeoMetric) float64 {
	switch metric {
	case GeoTotalValue:
		var total float64
		for _, r := range g {
			total += r.TxValueUSD
		}
		return total
	case GeoMedianPriceSqm:
		var vals []float64
		for _, r := range g {
			if !math.IsNaN(r.PriceSqm) {
				vals = append(vals, r.PriceSqm)
			}
		}
		return median(vals)
	default:
		return float64(len(g))
	}
}

// ParseGeoMetric maps a query-string value to a GeoMetric, defaulting to
// transaction value.
func ParseGeoMetric(s string) GeoMetric {
	switch GeoMetric(s) {
	case GeoCount, GeoTotalValue, GeoMedianPriceSqm:
		return GeoMetric(s)
	default:
		return GeoTotalValue
	}
}
