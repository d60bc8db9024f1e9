package metrics

import (
	"math"

	"github.com/samber/lo"

	"admira-report/internal/models"
)

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Derive returns raw plus every metric the profile computes from it.
// Ratios always come from summed components, so callers aggregate raw
// values first and derive once.
func (c *Calculator) Derive(raw models.Metrics, profile Profile) models.Metrics {
	out := make(models.Metrics, len(raw)+16)
	for key, value := range raw {
		out[key] = value
	}

	spend := raw[models.MetricAmountSpent]
	impressions := raw[models.MetricImpressions]
	linkClicks := raw[models.MetricLinkClicks]

	out[models.MetricCostPerResult] = c.safeDivide(spend, raw[profile.PrimaryResult])
	out[models.MetricCTR] = c.safeDivide(linkClicks, impressions) * 100
	out[models.MetricCPC] = c.safeDivide(spend, linkClicks)
	out[models.MetricCPM] = c.safeDivide(spend, impressions) * 1000
	out[models.MetricFrequency] = c.safeDivide(impressions, raw[models.MetricReach])

	if profile.Revenue {
		revenue := raw[models.MetricPurchaseValue]
		out[models.MetricROAS] = c.safeDivide(revenue, spend)
		out[models.MetricAOV] = c.safeDivide(revenue, raw[models.MetricPurchases])
	}

	for i := 1; i < len(profile.Funnel); i++ {
		from, to := profile.Funnel[i-1], profile.Funnel[i]
		out[FunnelKey(from, to)] = c.safeDivide(raw[to], raw[from]) * 100
	}

	return out
}

// Compare pairs every metric present in either period. Missing values count
// as 0 and growth against a zero previous value is reported as 0, so "no
// data" and "no growth" look the same.
func (c *Calculator) Compare(current, previous models.Metrics) []models.ComparisonEntry {
	keys := lo.Union(lo.Keys(current), lo.Keys(previous))
	sortByCatalog(keys)

	entries := make([]models.ComparisonEntry, 0, len(keys))
	for _, key := range keys {
		cur, prev := c.finite(current[key]), c.finite(previous[key])
		entry := models.ComparisonEntry{
			Metric:         key,
			Label:          key,
			Current:        cur,
			Previous:       prev,
			Delta:          cur - prev,
			GrowthPercent:  c.growth(cur, prev),
			HigherIsBetter: true,
		}
		if def, ok := Lookup(key); ok {
			entry.Label = def.Label
			entry.Unit = def.Unit
			entry.HigherIsBetter = def.HigherIsBetter
		}
		entries = append(entries, entry)
	}
	return entries
}

func (c *Calculator) growth(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

func (c *Calculator) finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func (c *Calculator) safeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	result := numerator / denominator
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0
	}
	return result
}
