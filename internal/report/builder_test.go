package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admira-report/internal/models"
	"admira-report/internal/parser"
)

func newTestBuilder(opts Options) *Builder {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	b := NewBuilder(opts, logger)
	b.now = func() time.Time { return time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC) }
	return b
}

func csvFile(name string, lines ...string) models.UploadedFile {
	return models.UploadedFile{Name: name, Content: []byte(strings.Join(lines, "\n") + "\n")}
}

func entry(t *testing.T, r *models.Report, metric string) models.ComparisonEntry {
	t.Helper()
	for _, e := range r.Comparison {
		if e.Metric == metric {
			return e
		}
	}
	t.Fatalf("metric %s missing", metric)
	return models.ComparisonEntry{}
}

func TestBuildEndToEnd(t *testing.T) {
	b := newTestBuilder(Options{TopN: 2})

	req := Request{
		Name:      "  Client A  ",
		Objective: "CTLPtoPurchase",
		Retention: "mom",
		ThisPeriod: []models.UploadedFile{
			csvFile("march-age.csv",
				"Age,Amount spent (IDR),Purchases",
				"18-24,200000,3",
				"25-34,600000,8",
				"35-44,300000,3",
				"45-54,100000,1",
			),
			csvFile("march-export.csv",
				"Reporting starts,Reporting ends,Amount spent (IDR),Purchases",
				"2024-03-01,2024-03-31,\"1,200,000\",15",
			),
			csvFile("notes.csv", "x", "1"),
		},
		LastPeriod: []models.UploadedFile{
			csvFile("feb-export.csv",
				"Amount spent (IDR),Purchases",
				"\"1,000,000\",10",
			),
		},
	}

	r, err := b.Build(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "Client A", r.Name)
	assert.Equal(t, models.ObjectiveCTLPToPurchase, r.Objective)
	assert.Equal(t, "This Month", r.Labels.Current)
	assert.Equal(t, "Bulan Lalu", r.Labels.PreviousLocal)
	assert.Equal(t, models.MetricPurchases, r.PrimaryResult)

	cpr := entry(t, r, models.MetricCostPerResult)
	assert.InDelta(t, 80000, cpr.Current, 1e-6)
	assert.InDelta(t, 100000, cpr.Previous, 1e-6)
	assert.InDelta(t, -20, cpr.GrowthPercent, 1e-9)
	assert.False(t, cpr.HigherIsBetter)

	assert.Equal(t, "march-export.csv", r.Current.MainFile)
	assert.Equal(t, 3, r.Current.FileCount)
	require.NotNil(t, r.Current.ReportingStart)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *r.Current.ReportingStart)
	assert.Equal(t, []string{"notes.csv"}, r.Current.DroppedFiles)
	assert.Equal(t, []models.Dimension{models.DimensionAge}, r.Current.Dimensions)

	require.Len(t, r.Breakdowns, 1)
	age := r.Breakdowns[0]
	assert.Equal(t, models.DimensionAge, age.Dimension)
	assert.Nil(t, age.Previous)
	require.NotNil(t, age.Current)
	require.Len(t, age.Current.Segments, 2)
	assert.Equal(t, 4, age.Current.SegmentCount)
	assert.Equal(t, "25-34", age.Current.Segments[0].Label)
	assert.InDelta(t, 8.0/15.0*100, age.Current.Segments[0].SharePercent, 1e-9)
	assert.Equal(t, 15.0, age.Current.Total.Metrics[models.MetricPurchases])
	assert.Equal(t, 1200000.0, age.Current.Total.Metrics[models.MetricAmountSpent])

	joined := strings.Join(r.Warnings, "\n")
	assert.Contains(t, joined, "This Month: notes.csv matched no breakdown")
}

func TestBuildMissingMainFile(t *testing.T) {
	b := newTestBuilder(Options{})

	_, err := b.Build(context.Background(), Request{
		Objective:  models.ObjectiveCTWA,
		Retention:  models.RetentionWeekOverWeek,
		ThisPeriod: []models.UploadedFile{csvFile("main.csv", "Amount spent (IDR)", "10")},
	})

	var periodErr *PeriodError
	require.ErrorAs(t, err, &periodErr)
	assert.Equal(t, models.PeriodPrevious, periodErr.Period)
	assert.ErrorIs(t, err, ErrNoMainFileFound)
	assert.Contains(t, err.Error(), "main, data, report, summary")
}

func TestBuildNoDataForPeriod(t *testing.T) {
	b := newTestBuilder(Options{})

	_, err := b.Build(context.Background(), Request{
		Objective:  models.ObjectiveCPAS,
		Retention:  models.RetentionWeekOverWeek,
		ThisPeriod: []models.UploadedFile{csvFile("main.csv", "Amount spent (IDR)", "10")},
		LastPeriod: []models.UploadedFile{csvFile("main.csv", "Amount spent (IDR)")},
	})

	var periodErr *PeriodError
	require.ErrorAs(t, err, &periodErr)
	assert.Equal(t, models.PeriodPrevious, periodErr.Period)
	assert.Equal(t, "main.csv", periodErr.File)
	assert.ErrorIs(t, err, ErrNoDataForPeriod)
}

func TestBuildMalformedBreakdownAbortsPeriod(t *testing.T) {
	b := newTestBuilder(Options{})

	_, err := b.Build(context.Background(), Request{
		Objective: models.ObjectiveCTWA,
		Retention: models.RetentionWeekOverWeek,
		ThisPeriod: []models.UploadedFile{
			csvFile("main.csv", "Amount spent (IDR)", "10"),
			csvFile("gender.csv", "Gender,Amount spent (IDR)", "male,1,2"),
		},
		LastPeriod: []models.UploadedFile{csvFile("main.csv", "Amount spent (IDR)", "10")},
	})

	var malformed *parser.MalformedCSVError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "gender.csv", malformed.File)

	var periodErr *PeriodError
	require.ErrorAs(t, err, &periodErr)
	assert.Equal(t, models.PeriodCurrent, periodErr.Period)
}

func TestBuildRejectsOversizedUpload(t *testing.T) {
	b := newTestBuilder(Options{MaxUploadBytes: 16})

	_, err := b.Build(context.Background(), Request{
		Objective:  models.ObjectiveCTWA,
		Retention:  models.RetentionWeekOverWeek,
		ThisPeriod: []models.UploadedFile{csvFile("main.csv", "Amount spent (IDR)", "10")},
		LastPeriod: []models.UploadedFile{csvFile("main.csv", "x", "1")},
	})

	assert.ErrorIs(t, err, ErrUploadTooLarge)
}

func TestBuildRejectsInvalidRequest(t *testing.T) {
	b := newTestBuilder(Options{})
	files := []models.UploadedFile{csvFile("main.csv", "Amount spent (IDR)", "10")}

	tests := []Request{
		{Objective: "reach", Retention: models.RetentionWeekOverWeek, ThisPeriod: files, LastPeriod: files},
		{Objective: models.ObjectiveCTWA, Retention: "yoy", ThisPeriod: files, LastPeriod: files},
		{Objective: models.ObjectiveCTWA, Retention: models.RetentionWeekOverWeek, TopN: -1, ThisPeriod: files, LastPeriod: files},
	}
	for i, req := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			_, err := b.Build(context.Background(), req)
			assert.True(t, errors.Is(err, ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestBuildMissingColumnsWarn(t *testing.T) {
	b := newTestBuilder(Options{})
	files := []models.UploadedFile{csvFile("main.csv", "Amount spent (IDR),Impressions", "10,100")}

	r, err := b.Build(context.Background(), Request{
		Objective:  models.ObjectiveCTWA,
		Retention:  models.RetentionWeekOverWeek,
		ThisPeriod: files,
		LastPeriod: files,
	})
	require.NoError(t, err)

	assert.Contains(t, r.Current.Quality.MissingColumns, models.MetricMessagingStarted)
	assert.Contains(t, strings.Join(r.Warnings, "\n"), "no column for")
	for _, e := range r.Comparison {
		assert.Zero(t, e.GrowthPercent, e.Metric)
	}
	assert.Equal(t, "Week-over-Week", r.Labels.Retention)
	assert.Empty(t, r.Breakdowns)
}

func TestBuildWarnsOnBreakdownQuality(t *testing.T) {
	b := newTestBuilder(Options{})
	mainFile := csvFile("main.csv",
		"Amount spent (IDR),Impressions,Reach,Link clicks,Content views,Adds to cart,Purchases,Purchases conversion value",
		"1000,100,80,10,8,4,2,500",
	)

	r, err := b.Build(context.Background(), Request{
		Objective: models.ObjectiveCPAS,
		Retention: models.RetentionWeekOverWeek,
		ThisPeriod: []models.UploadedFile{
			mainFile,
			csvFile("age.csv",
				"Age,Spent budget,Impressions,Reach,Link clicks,Content views,Adds to cart,Purchases,Purchases conversion value",
				"18-24,600,60,50,6,5,3,abc,300",
				"25-34,400,40,30,4,3,1,2,200",
			),
		},
		LastPeriod: []models.UploadedFile{mainFile},
	})
	require.NoError(t, err)

	assert.Empty(t, r.Current.Quality.MissingColumns)
	assert.Zero(t, r.Current.Quality.InvalidCells)
	assert.Equal(t, []string{models.MetricAmountSpent}, r.Current.BreakdownQuality.MissingColumns)
	assert.Equal(t, 1, r.Current.BreakdownQuality.InvalidCells)
	assert.Equal(t, 2, r.Current.BreakdownQuality.RowsRead)

	joined := strings.Join(r.Warnings, "\n")
	assert.Contains(t, joined, "This Week: age breakdown (age.csv) has no column for amount_spent; counted as 0")
	assert.Contains(t, joined, "This Week: age breakdown (age.csv) has 1 unreadable and 0 negative values; counted as 0")
	assert.NotContains(t, joined, "Last Week")

	require.Len(t, r.Breakdowns, 1)
	assert.Equal(t, 2.0, r.Breakdowns[0].Current.Total.Metrics[models.MetricPurchases])
}

func TestLoadPeriodBuildsDataset(t *testing.T) {
	b := newTestBuilder(Options{})

	dataset, err := b.loadPeriod(context.Background(), models.PeriodCurrent, []models.UploadedFile{
		csvFile("gender-feed.csv", "Gender,Purchases", "female,2"),
		csvFile("summary.csv", "Amount spent (IDR)", "10", "20"),
		csvFile("gender-stories.csv", "Gender,Purchases", "male,1", "female,1"),
		csvFile("readme.csv", "x", "1"),
	})
	require.NoError(t, err)

	assert.Equal(t, "summary.csv", dataset.MainFile)
	assert.Len(t, dataset.MainRows, 2)
	assert.Equal(t, []string{"gender-feed.csv", "gender-stories.csv"}, dataset.BreakdownFiles[models.DimensionGender])
	assert.Len(t, dataset.Breakdowns[models.DimensionGender], 3)
	assert.Equal(t, []string{"readme.csv"}, dataset.Dropped)
}
