package breakdown

import (
	"sort"
	"strings"

	"admira-report/internal/metrics"
	"admira-report/internal/models"
	"admira-report/internal/transformer"
)

const (
	UnknownLabel = "Unknown"
	TotalLabel   = "Total"
)

// Header spellings of the segment label column per dimension.
var labelAliases = map[models.Dimension][]string{
	models.DimensionAge:        {"Age", "Usia", "Umur"},
	models.DimensionGender:     {"Gender", "Jenis kelamin"},
	models.DimensionRegion:     {"Region", "Wilayah", "Country", "Negara"},
	models.DimensionPlatform:   {"Platform"},
	models.DimensionPlacement:  {"Placement", "Penempatan"},
	models.DimensionObjective:  {"Objective", "Tujuan", "Campaign objective"},
	models.DimensionAdCreative: {"Ad name", "Nama iklan", "Ad creative", "Ad"},
}

// LabelColumn returns the header used to group rows of a dimension.
func LabelColumn(dim models.Dimension, rows []models.Row) (string, bool) {
	aliases := labelAliases[dim]
	for _, row := range rows {
		if key, ok := transformer.ResolveColumn(row, aliases); ok {
			return key, true
		}
	}
	return "", false
}

type Aggregator struct {
	calculator *metrics.Calculator
	aliases    transformer.ColumnAliases
}

func NewAggregator(calculator *metrics.Calculator, aliases transformer.ColumnAliases) *Aggregator {
	return &Aggregator{
		calculator: calculator,
		aliases:    aliases,
	}
}

type group struct {
	label string
	rows  []models.Row
}

// Aggregate groups rows by labelColumn, sums raw metrics per group and
// derives ratios from those sums. Shares and the total row always cover
// every group, so callers may truncate Segments freely.
func (a *Aggregator) Aggregate(rows []models.Row, labelColumn, primaryMetric string, profile metrics.Profile) (models.BreakdownTable, models.ExtractionQuality) {
	aliases := a.aliases.Subset(profile.RawMetrics)

	var groups []*group
	byLabel := make(map[string]*group)
	for _, row := range rows {
		label := strings.TrimSpace(row[labelColumn])
		if label == "" {
			label = UnknownLabel
		}
		g, ok := byLabel[label]
		if !ok {
			g = &group{label: label}
			byLabel[label] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, row)
	}

	segments := make([]models.BreakdownRow, 0, len(groups))
	shareBase := 0.0
	for _, g := range groups {
		raw, _ := transformer.Extract(g.rows, aliases)
		derived := a.calculator.Derive(raw, profile)
		shareBase += derived[primaryMetric]
		segments = append(segments, models.BreakdownRow{
			Label:   g.label,
			Metrics: derived,
		})
	}

	for i := range segments {
		segments[i].SharePercent = share(segments[i].Metrics[primaryMetric], shareBase)
	}

	sort.SliceStable(segments, func(i, j int) bool {
		x, y := segments[i].Metrics, segments[j].Metrics
		if x[primaryMetric] != y[primaryMetric] {
			return x[primaryMetric] > y[primaryMetric]
		}
		if x[models.MetricAmountSpent] != y[models.MetricAmountSpent] {
			return x[models.MetricAmountSpent] > y[models.MetricAmountSpent]
		}
		return segments[i].Label < segments[j].Label
	})

	totalRaw, quality := transformer.Extract(rows, aliases)
	total := models.BreakdownRow{
		Label:        TotalLabel,
		Metrics:      a.calculator.Derive(totalRaw, profile),
		SharePercent: share(shareBase, shareBase),
	}

	return models.BreakdownTable{
		LabelColumn:   labelColumn,
		PrimaryMetric: primaryMetric,
		Segments:      segments,
		Total:         total,
		SegmentCount:  len(segments),
	}, quality
}

func share(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}
