package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"admira-report/internal/breakdown"
	"admira-report/internal/metrics"
	"admira-report/internal/models"
	"admira-report/internal/parser"
	"admira-report/internal/selector"
	"admira-report/internal/transformer"
)

// Request is one report generation as received from a transport.
type Request struct {
	Name       string               `validate:"max=200"`
	Objective  models.Objective     `validate:"required,oneof=ctwa cpas ctlptowa ctlptopurchase"`
	Retention  models.RetentionType `validate:"required,oneof=wow mom"`
	TopN       int                  `validate:"min=0,max=100"`
	ThisPeriod []models.UploadedFile
	LastPeriod []models.UploadedFile
}

func (r *Request) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Objective = models.Objective(strings.ToLower(strings.TrimSpace(string(r.Objective))))
	r.Retention = models.RetentionType(strings.ToLower(strings.TrimSpace(string(r.Retention))))
}

type Options struct {
	MaxUploadBytes int64
	MaxFileRows    int
	TopN           int
}

type Builder struct {
	parser     *parser.Parser
	calculator *metrics.Calculator
	aggregator *breakdown.Aggregator
	aliases    transformer.ColumnAliases
	validate   *validator.Validate
	maxBytes   int64
	topN       int
	logger     *logrus.Logger
	now        func() time.Time
}

func NewBuilder(opts Options, logger *logrus.Logger) *Builder {
	calculator := metrics.NewCalculator()
	return &Builder{
		parser:     parser.New(opts.MaxFileRows),
		calculator: calculator,
		aggregator: breakdown.NewAggregator(calculator, transformer.DefaultAliases),
		aliases:    transformer.DefaultAliases,
		validate:   validator.New(),
		maxBytes:   opts.MaxUploadBytes,
		topN:       opts.TopN,
		logger:     logger,
		now:        time.Now,
	}
}

type periodResult struct {
	summary  models.PeriodSummary
	metrics  models.Metrics
	tables   map[models.Dimension]*models.BreakdownTable
	warnings []string
}

// Build computes the headline comparison and breakdown tables. A failure in
// either period aborts the whole report.
func (b *Builder) Build(ctx context.Context, req Request) (*models.Report, error) {
	startTime := time.Now()
	req.normalize()
	if err := b.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	profile, err := metrics.ProfileFor(req.Objective)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var (
		current, previous       *periodResult
		currentErr, previousErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		current, currentErr = b.buildPeriod(gctx, models.PeriodCurrent, req.ThisPeriod, profile)
		return currentErr
	})
	g.Go(func() error {
		previous, previousErr = b.buildPeriod(gctx, models.PeriodPrevious, req.LastPeriod, profile)
		return previousErr
	})
	if err := g.Wait(); err != nil {
		return nil, b.firstError(ctx, currentErr, previousErr)
	}

	labels := labelsFor(req.Retention)
	current.summary.Label = labels.Current
	previous.summary.Label = labels.Previous

	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s %s Report", profile.Name, labels.Retention)
	}
	topN := req.TopN
	if topN == 0 {
		topN = b.topN
	}

	report := &models.Report{
		ID:            uuid.NewString(),
		Name:          name,
		Objective:     profile.Objective,
		Retention:     req.Retention,
		Labels:        labels,
		PrimaryResult: profile.PrimaryResult,
		GeneratedAt:   b.now().UTC(),
		Current:       current.summary,
		Previous:      previous.summary,
		Comparison:    b.calculator.Compare(current.metrics, previous.metrics),
		Breakdowns:    []models.BreakdownComparison{},
	}

	for _, dim := range models.Dimensions {
		cur, prev := current.tables[dim], previous.tables[dim]
		if cur == nil && prev == nil {
			continue
		}
		report.Breakdowns = append(report.Breakdowns, models.BreakdownComparison{
			Dimension: dim,
			Current:   truncate(cur, topN),
			Previous:  truncate(prev, topN),
		})
	}

	for _, w := range current.warnings {
		report.Warnings = append(report.Warnings, labels.Current+": "+w)
	}
	for _, w := range previous.warnings {
		report.Warnings = append(report.Warnings, labels.Previous+": "+w)
	}

	b.logger.WithFields(logrus.Fields{
		"report_id":   report.ID,
		"objective":   report.Objective,
		"retention":   report.Retention,
		"metrics":     len(report.Comparison),
		"breakdowns":  len(report.Breakdowns),
		"warnings":    len(report.Warnings),
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Report built")

	return report, nil
}

// loadPeriod partitions a period's uploads and parses every file it keeps.
func (b *Builder) loadPeriod(ctx context.Context, period models.Period, files []models.UploadedFile) (*models.PeriodDataset, error) {
	if len(files) == 0 {
		return nil, &PeriodError{Period: period, Err: ErrNoMainFileFound}
	}
	for _, f := range files {
		if b.maxBytes > 0 && int64(len(f.Content)) > b.maxBytes {
			return nil, &PeriodError{Period: period, File: f.Name, Err: fmt.Errorf("%w (%d bytes)", ErrUploadTooLarge, b.maxBytes)}
		}
	}

	plan, err := selector.Partition(files)
	if err != nil {
		return nil, &PeriodError{Period: period, Err: ErrNoMainFileFound}
	}

	mainRows, err := b.parser.ParseFile(plan.Main)
	if err != nil {
		return nil, &PeriodError{Period: period, File: plan.Main.Name, Err: err}
	}
	if len(mainRows) == 0 {
		return nil, &PeriodError{Period: period, File: plan.Main.Name, Err: ErrNoDataForPeriod}
	}

	dataset := &models.PeriodDataset{
		MainFile:       plan.Main.Name,
		MainRows:       mainRows,
		Breakdowns:     make(map[models.Dimension][]models.Row),
		BreakdownFiles: make(map[models.Dimension][]string),
		Dropped:        plan.Dropped,
	}
	for _, dim := range models.Dimensions {
		for _, f := range plan.Breakdowns[dim] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			rows, err := b.parser.ParseFile(f)
			if err != nil {
				return nil, &PeriodError{Period: period, File: f.Name, Err: err}
			}
			dataset.Breakdowns[dim] = append(dataset.Breakdowns[dim], rows...)
			dataset.BreakdownFiles[dim] = append(dataset.BreakdownFiles[dim], f.Name)
		}
	}
	return dataset, nil
}

func (b *Builder) buildPeriod(ctx context.Context, period models.Period, files []models.UploadedFile, profile metrics.Profile) (*periodResult, error) {
	dataset, err := b.loadPeriod(ctx, period, files)
	if err != nil {
		return nil, err
	}

	aliases := b.aliases.Subset(profile.RawMetrics)
	raw, quality := transformer.Extract(dataset.MainRows, aliases)

	result := &periodResult{
		metrics: b.calculator.Derive(raw, profile),
		tables:  make(map[models.Dimension]*models.BreakdownTable),
		summary: models.PeriodSummary{
			Period:       period,
			MainFile:     dataset.MainFile,
			FileCount:    len(files),
			MainRows:     len(dataset.MainRows),
			Dimensions:   []models.Dimension{},
			DroppedFiles: dataset.Dropped,
			Quality:      quality,
		},
	}
	if start, end, ok := transformer.ReportingRange(dataset.MainRows); ok {
		result.summary.ReportingStart = &start
		result.summary.ReportingEnd = &end
	}

	for _, name := range dataset.Dropped {
		result.warnings = append(result.warnings, fmt.Sprintf("%s matched no breakdown and was ignored", name))
	}
	result.warnings = append(result.warnings, qualityWarnings(dataset.MainFile, quality)...)

	for _, dim := range models.Dimensions {
		names, ok := dataset.BreakdownFiles[dim]
		if !ok {
			continue
		}
		source := fmt.Sprintf("%s breakdown (%s)", dim, strings.Join(names, ", "))
		rows := dataset.Breakdowns[dim]
		if len(rows) == 0 {
			result.warnings = append(result.warnings, source+" has no rows")
			continue
		}

		labelColumn, ok := breakdown.LabelColumn(dim, rows)
		if !ok {
			result.warnings = append(result.warnings, fmt.Sprintf("%s has no %s column and was skipped", source, dim))
			continue
		}

		table, dimQuality := b.aggregator.Aggregate(rows, labelColumn, profile.PrimaryResult, profile)
		table.Dimension = dim
		result.tables[dim] = &table
		result.summary.Dimensions = append(result.summary.Dimensions, dim)
		result.summary.BreakdownQuality.Merge(dimQuality)
		result.warnings = append(result.warnings, qualityWarnings(source, dimQuality)...)
	}

	if len(dataset.Dropped) > 0 {
		b.logger.WithFields(logrus.Fields{
			"period":  period,
			"dropped": dataset.Dropped,
		}).Warn("Uploaded files matched no breakdown")
	}
	if bq := result.summary.BreakdownQuality; bq.InvalidCells > 0 || bq.NegativeCells > 0 || len(bq.MissingColumns) > 0 {
		b.logger.WithFields(logrus.Fields{
			"period":          period,
			"invalid_cells":   bq.InvalidCells,
			"negative_cells":  bq.NegativeCells,
			"missing_columns": bq.MissingColumns,
		}).Warn("Breakdown data quality issues detected")
	}

	return result, nil
}

// qualityWarnings describes values that were counted as 0 in source.
func qualityWarnings(source string, quality models.ExtractionQuality) []string {
	var warnings []string
	if len(quality.MissingColumns) > 0 {
		warnings = append(warnings, fmt.Sprintf("%s has no column for %s; counted as 0",
			source, strings.Join(quality.MissingColumns, ", ")))
	}
	if quality.InvalidCells > 0 || quality.NegativeCells > 0 {
		warnings = append(warnings, fmt.Sprintf("%s has %d unreadable and %d negative values; counted as 0",
			source, quality.InvalidCells, quality.NegativeCells))
	}
	return warnings
}

// firstError prefers the current period's failure and hides cancellations
// caused by the other period failing.
func (b *Builder) firstError(ctx context.Context, errs ...error) error {
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			canceled = err
			continue
		}
		return err
	}
	return canceled
}

func truncate(table *models.BreakdownTable, n int) *models.BreakdownTable {
	if table == nil {
		return nil
	}
	top := table.Top(n)
	return &top
}

func labelsFor(retention models.RetentionType) models.PeriodLabels {
	if retention == models.RetentionMonthOverMonth {
		return models.PeriodLabels{
			Retention:     "Month-over-Month",
			Current:       "This Month",
			Previous:      "Last Month",
			CurrentLocal:  "Bulan Ini",
			PreviousLocal: "Bulan Lalu",
		}
	}
	return models.PeriodLabels{
		Retention:     "Week-over-Week",
		Current:       "This Week",
		Previous:      "Last Week",
		CurrentLocal:  "Minggu Ini",
		PreviousLocal: "Minggu Lalu",
	}
}
