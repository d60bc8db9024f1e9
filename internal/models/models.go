package models

import (
	"time"
)

// Row is one parsed CSV record keyed by the header exactly as exported.
type Row map[string]string

// UploadedFile is a single export as received from the upload layer.
type UploadedFile struct {
	Name    string `json:"filename"`
	Content []byte `json:"content"`
}

// Dimension is a breakdown axis of a Meta Ads export.
type Dimension string

const (
	DimensionAge        Dimension = "age"
	DimensionGender     Dimension = "gender"
	DimensionRegion     Dimension = "region"
	DimensionPlatform   Dimension = "platform"
	DimensionPlacement  Dimension = "placement"
	DimensionObjective  Dimension = "objective"
	DimensionAdCreative Dimension = "ad-creative"
)

// Dimensions lists every breakdown in report order.
var Dimensions = []Dimension{
	DimensionAge,
	DimensionGender,
	DimensionRegion,
	DimensionPlatform,
	DimensionPlacement,
	DimensionObjective,
	DimensionAdCreative,
}

// Objective selects the derivation rules for a report.
type Objective string

const (
	ObjectiveCTWA           Objective = "ctwa"
	ObjectiveCPAS           Objective = "cpas"
	ObjectiveCTLPToWA       Objective = "ctlptowa"
	ObjectiveCTLPToPurchase Objective = "ctlptopurchase"
)

// RetentionType only changes period labels.
type RetentionType string

const (
	RetentionWeekOverWeek   RetentionType = "wow"
	RetentionMonthOverMonth RetentionType = "mom"
)

// Period identifies one half of a comparison.
type Period string

const (
	PeriodCurrent  Period = "this_period"
	PeriodPrevious Period = "last_period"
)

// Metrics maps a canonical metric name to its value. Values are finite and
// never negative.
type Metrics map[string]float64

// PeriodDataset is one period's uploads after partitioning and parsing.
type PeriodDataset struct {
	MainFile       string
	MainRows       []Row
	Breakdowns     map[Dimension][]Row
	BreakdownFiles map[Dimension][]string
	// Files matched neither the main heuristics nor a breakdown keyword.
	Dropped []string
}

// Data Quality Tracking Structures
type ExtractionQuality struct {
	RowsRead       int      `json:"rows_read"`
	InvalidCells   int      `json:"invalid_cells"`
	NegativeCells  int      `json:"negative_cells"`
	MissingColumns []string `json:"missing_columns,omitempty"`
}

// Merge folds other into q.
func (q *ExtractionQuality) Merge(other ExtractionQuality) {
	q.RowsRead += other.RowsRead
	q.InvalidCells += other.InvalidCells
	q.NegativeCells += other.NegativeCells
	seen := make(map[string]bool, len(q.MissingColumns))
	for _, c := range q.MissingColumns {
		seen[c] = true
	}
	for _, c := range other.MissingColumns {
		if !seen[c] {
			q.MissingColumns = append(q.MissingColumns, c)
			seen[c] = true
		}
	}
}

// ComparisonEntry is one headline metric compared across periods.
type ComparisonEntry struct {
	Metric         string  `json:"metric"`
	Label          string  `json:"label"`
	Unit           string  `json:"unit"`
	Current        float64 `json:"current"`
	Previous       float64 `json:"previous"`
	Delta          float64 `json:"delta"`
	GrowthPercent  float64 `json:"growth_percent"`
	HigherIsBetter bool    `json:"higher_is_better"`
}

// BreakdownRow is one segment of a dimension, or the dimension total.
type BreakdownRow struct {
	Label        string  `json:"label"`
	Metrics      Metrics `json:"metrics"`
	SharePercent float64 `json:"share_percent"`
}

// BreakdownTable holds ranked segments and the total over every segment.
type BreakdownTable struct {
	Dimension     Dimension      `json:"dimension"`
	LabelColumn   string         `json:"label_column"`
	PrimaryMetric string         `json:"primary_metric"`
	Segments      []BreakdownRow `json:"segments"`
	Total         BreakdownRow   `json:"total"`
	// SegmentCount is the number of segments before any display truncation.
	SegmentCount int `json:"segment_count"`
}

// Top returns a copy of the table showing at most n segments. Shares and
// the total row are left as computed over the full dataset.
func (t BreakdownTable) Top(n int) BreakdownTable {
	if n <= 0 || n >= len(t.Segments) {
		return t
	}
	out := t
	out.Segments = append([]BreakdownRow(nil), t.Segments[:n]...)
	return out
}

// BreakdownComparison pairs a dimension's tables for both periods. Either
// side is nil when that period had no file for the dimension.
type BreakdownComparison struct {
	Dimension Dimension       `json:"dimension"`
	Current   *BreakdownTable `json:"current,omitempty"`
	Previous  *BreakdownTable `json:"previous,omitempty"`
}

// PeriodLabels are display strings chosen by the retention type.
type PeriodLabels struct {
	Retention     string `json:"retention"`
	Current       string `json:"current"`
	Previous      string `json:"previous"`
	CurrentLocal  string `json:"current_local"`
	PreviousLocal string `json:"previous_local"`
}

// PeriodSummary describes what was read for one period.
type PeriodSummary struct {
	Period           Period            `json:"period"`
	Label            string            `json:"label"`
	MainFile         string            `json:"main_file"`
	FileCount        int               `json:"file_count"`
	MainRows         int               `json:"main_rows"`
	ReportingStart   *time.Time        `json:"reporting_start,omitempty"`
	ReportingEnd     *time.Time        `json:"reporting_end,omitempty"`
	Dimensions       []Dimension       `json:"dimensions"`
	DroppedFiles     []string          `json:"dropped_files,omitempty"`
	Quality          ExtractionQuality `json:"quality"`
	// BreakdownQuality covers every breakdown file of the period.
	BreakdownQuality ExtractionQuality `json:"breakdown_quality"`
}

// Report is the full computation result handed to the rendering layer.
type Report struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Objective     Objective             `json:"objective"`
	Retention     RetentionType         `json:"retention"`
	Labels        PeriodLabels          `json:"labels"`
	PrimaryResult string                `json:"primary_result"`
	GeneratedAt   time.Time             `json:"generated_at"`
	Current       PeriodSummary         `json:"current"`
	Previous      PeriodSummary         `json:"previous"`
	Comparison    []ComparisonEntry     `json:"comparison"`
	Breakdowns    []BreakdownComparison `json:"breakdowns"`
	Warnings      []string              `json:"warnings,omitempty"`
}

// API response structures
type ReportResponse struct {
	Status      string  `json:"status"`
	Report      *Report `json:"report"`
	DurationMs  int64   `json:"duration_ms"`
	Delivered   bool    `json:"delivered"`
	ProcessedAt string  `json:"processed_at"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Period  Period   `json:"period,omitempty"`
	File    string   `json:"file,omitempty"`
	Details []string `json:"details,omitempty"`
}

// ObjectiveInfo describes a derivation profile for clients choosing one.
type ObjectiveInfo struct {
	Objective     Objective `json:"objective"`
	Name          string    `json:"name"`
	PrimaryResult string    `json:"primary_result"`
	Funnel        []string  `json:"funnel"`
	Revenue       bool      `json:"revenue"`
	Metrics       []string  `json:"metrics"`
}

// DeliveryEnvelope is what gets posted to the render sink.
type DeliveryEnvelope struct {
	ReportID    string  `json:"report_id"`
	DeliveredAt string  `json:"delivered_at"`
	Report      *Report `json:"report"`
}
