package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"admira-report/internal/models"
)

var ErrUnknownObjective = errors.New("unknown objective")

// Units tell the rendering layer how to format a value.
const (
	UnitCurrency = "currency"
	UnitCount    = "count"
	UnitPercent  = "percent"
	UnitRatio    = "ratio"
)

// Definition is the static identity of a metric.
type Definition struct {
	Key            string
	Label          string
	Unit           string
	HigherIsBetter bool
}

// Profile holds the derivation rules for one advertising objective.
type Profile struct {
	Objective     models.Objective
	Name          string
	PrimaryResult string
	RawMetrics    []string
	// Funnel stages in order; a conversion rate is derived per adjacent pair.
	Funnel  []string
	Revenue bool
}

var profiles = []Profile{
	{
		Objective:     models.ObjectiveCTWA,
		Name:          "Click to WhatsApp",
		PrimaryResult: models.MetricMessagingStarted,
		RawMetrics: []string{
			models.MetricAmountSpent, models.MetricImpressions, models.MetricReach,
			models.MetricLinkClicks, models.MetricMessagingStarted,
		},
		Funnel: []string{models.MetricImpressions, models.MetricLinkClicks, models.MetricMessagingStarted},
	},
	{
		Objective:     models.ObjectiveCPAS,
		Name:          "Collaborative Performance Advertising Solution",
		PrimaryResult: models.MetricAddsToCart,
		RawMetrics: []string{
			models.MetricAmountSpent, models.MetricImpressions, models.MetricReach,
			models.MetricLinkClicks, models.MetricContentViews, models.MetricAddsToCart,
			models.MetricPurchases, models.MetricPurchaseValue,
		},
		Funnel: []string{
			models.MetricImpressions, models.MetricLinkClicks, models.MetricContentViews,
			models.MetricAddsToCart, models.MetricPurchases,
		},
		Revenue: true,
	},
	{
		Objective:     models.ObjectiveCTLPToWA,
		Name:          "Click to Landing Page to WhatsApp",
		PrimaryResult: models.MetricCheckoutsInitiated,
		RawMetrics: []string{
			models.MetricAmountSpent, models.MetricImpressions, models.MetricReach,
			models.MetricLinkClicks, models.MetricLandingPageViews, models.MetricContentViews,
			models.MetricCheckoutsInitiated,
		},
		Funnel: []string{
			models.MetricImpressions, models.MetricLinkClicks, models.MetricContentViews,
			models.MetricCheckoutsInitiated,
		},
	},
	{
		Objective:     models.ObjectiveCTLPToPurchase,
		Name:          "Click to Landing Page to Purchase",
		PrimaryResult: models.MetricPurchases,
		RawMetrics: []string{
			models.MetricAmountSpent, models.MetricImpressions, models.MetricReach,
			models.MetricLinkClicks, models.MetricLandingPageViews, models.MetricContentViews,
			models.MetricAddsToCart, models.MetricCheckoutsInitiated, models.MetricPurchases,
			models.MetricPurchaseValue,
		},
		Funnel: []string{
			models.MetricImpressions, models.MetricLinkClicks, models.MetricContentViews,
			models.MetricAddsToCart, models.MetricPurchases,
		},
		Revenue: true,
	},
}

var rawDefinitions = []Definition{
	{models.MetricAmountSpent, "Amount Spent", UnitCurrency, true},
	{models.MetricImpressions, "Impressions", UnitCount, true},
	{models.MetricReach, "Reach", UnitCount, true},
	{models.MetricLinkClicks, "Link Clicks", UnitCount, true},
	{models.MetricLandingPageViews, "Landing Page Views", UnitCount, true},
	{models.MetricContentViews, "Content Views", UnitCount, true},
	{models.MetricAddsToCart, "Adds to Cart", UnitCount, true},
	{models.MetricCheckoutsInitiated, "Checkouts Initiated", UnitCount, true},
	{models.MetricPurchases, "Purchases", UnitCount, true},
	{models.MetricPurchaseValue, "Purchase Value", UnitCurrency, true},
	{models.MetricMessagingStarted, "Messaging Conversations Started", UnitCount, true},
}

var derivedDefinitions = []Definition{
	{models.MetricCostPerResult, "Cost per Result", UnitCurrency, false},
	{models.MetricCTR, "CTR (Link Click-Through Rate)", UnitPercent, true},
	{models.MetricCPC, "CPC (Cost per Link Click)", UnitCurrency, false},
	{models.MetricCPM, "CPM (Cost per 1,000 Impressions)", UnitCurrency, false},
	{models.MetricFrequency, "Frequency", UnitRatio, false},
	{models.MetricROAS, "ROAS (Return on Ad Spend)", UnitRatio, true},
	{models.MetricAOV, "AOV (Average Order Value)", UnitCurrency, true},
}

// catalog is every known metric in declaration order.
var (
	catalog      []Definition
	catalogIndex map[string]int
)

func init() {
	catalog = append(catalog, rawDefinitions...)
	catalog = append(catalog, derivedDefinitions...)

	labels := make(map[string]string, len(rawDefinitions))
	for _, d := range rawDefinitions {
		labels[d.Key] = d.Label
	}
	seen := make(map[string]bool)
	for _, p := range profiles {
		for i := 1; i < len(p.Funnel); i++ {
			key := FunnelKey(p.Funnel[i-1], p.Funnel[i])
			if seen[key] {
				continue
			}
			seen[key] = true
			catalog = append(catalog, Definition{
				Key:            key,
				Label:          fmt.Sprintf("%s → %s", labels[p.Funnel[i-1]], labels[p.Funnel[i]]),
				Unit:           UnitPercent,
				HigherIsBetter: true,
			})
		}
	}

	catalogIndex = make(map[string]int, len(catalog))
	for i, d := range catalog {
		catalogIndex[d.Key] = i
	}
}

// FunnelKey names the conversion rate between two adjacent stages.
func FunnelKey(from, to string) string {
	return "cvr_" + from + "_to_" + to
}

// ProfileFor looks up the rules for an objective, case-insensitively.
func ProfileFor(objective models.Objective) (Profile, error) {
	want := models.Objective(strings.ToLower(strings.TrimSpace(string(objective))))
	for _, p := range profiles {
		if p.Objective == want {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnknownObjective, objective)
}

// Profiles returns every objective profile in a stable order.
func Profiles() []Profile {
	return append([]Profile(nil), profiles...)
}

// Lookup returns the definition for a metric key.
func Lookup(key string) (Definition, bool) {
	i, ok := catalogIndex[key]
	if !ok {
		return Definition{}, false
	}
	return catalog[i], true
}

// MetricKeys lists, in catalog order, every metric Derive produces for p.
func (p Profile) MetricKeys() []string {
	keys := append([]string(nil), p.RawMetrics...)
	keys = append(keys,
		models.MetricCostPerResult, models.MetricCTR, models.MetricCPC,
		models.MetricCPM, models.MetricFrequency,
	)
	if p.Revenue {
		keys = append(keys, models.MetricROAS, models.MetricAOV)
	}
	for i := 1; i < len(p.Funnel); i++ {
		keys = append(keys, FunnelKey(p.Funnel[i-1], p.Funnel[i]))
	}
	sortByCatalog(keys)
	return keys
}

// Info describes the profile for API clients.
func (p Profile) Info() models.ObjectiveInfo {
	return models.ObjectiveInfo{
		Objective:     p.Objective,
		Name:          p.Name,
		PrimaryResult: p.PrimaryResult,
		Funnel:        append([]string(nil), p.Funnel...),
		Revenue:       p.Revenue,
		Metrics:       p.MetricKeys(),
	}
}

// sortByCatalog orders keys by declaration; unknown keys go last,
// alphabetically.
func sortByCatalog(keys []string) {
	sort.SliceStable(keys, func(a, b int) bool {
		ia, okA := catalogIndex[keys[a]]
		ib, okB := catalogIndex[keys[b]]
		switch {
		case okA && okB:
			return ia < ib
		case okA != okB:
			return okA
		default:
			return keys[a] < keys[b]
		}
	})
}
