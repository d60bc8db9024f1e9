package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admira-report/internal/models"
)

func files(names ...string) []models.UploadedFile {
	out := make([]models.UploadedFile, len(names))
	for i, n := range names {
		out[i] = models.UploadedFile{Name: n}
	}
	return out
}

func TestSelectMain(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"single non-breakdown file", []string{"report-age.csv", "report-gender.csv", "weekly-export.csv"}, "weekly-export.csv"},
		{"longest name fallback", []string{"a.csv", "bb.csv"}, "bb.csv"},
		{"main keyword beats length", []string{"campaign-export-week-12.csv", "main.csv"}, "main.csv"},
		{"earliest on equal length", []string{"x1.csv", "x2.csv"}, "x1.csv"},
		{"case insensitive keywords", []string{"Meta-AGE.csv", "Totals.CSV"}, "Totals.CSV"},
		{"all breakdowns fall back to keyword", []string{"age.csv", "summary-gender.csv"}, "summary-gender.csv"},
		{"all breakdowns fall back to length", []string{"age.csv", "gender.csv"}, "gender.csv"},
		{"single file", []string{"platform.csv"}, "platform.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectMain(files(tt.files...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestSelectMainEmpty(t *testing.T) {
	_, err := SelectMain(nil)
	assert.ErrorIs(t, err, ErrNoMainFile)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		filename string
		want     models.Dimension
		ok       bool
	}{
		{"report-age.csv", models.DimensionAge, true},
		{"Gender Breakdown.csv", models.DimensionGender, true},
		{"region_jan.csv", models.DimensionRegion, true},
		{"platform.csv", models.DimensionPlatform, true},
		{"placement.csv", models.DimensionPlacement, true},
		{"objective.csv", models.DimensionObjective, true},
		{"ad-creative.csv", models.DimensionAdCreative, true},
		{"AdCreative.csv", models.DimensionAdCreative, true},
		{"top-creatives.csv", models.DimensionAdCreative, true},
		{"weekly.csv", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := Classify(tt.filename)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPartition(t *testing.T) {
	plan, err := Partition(files("age.csv", "main.csv", "gender.csv", "notes.csv", "age-part2.csv"))
	require.NoError(t, err)

	assert.Equal(t, "main.csv", plan.Main.Name)
	assert.Len(t, plan.Breakdowns[models.DimensionAge], 2)
	assert.Len(t, plan.Breakdowns[models.DimensionGender], 1)
	assert.NotContains(t, plan.Breakdowns, models.DimensionRegion)
	assert.Equal(t, []string{"notes.csv"}, plan.Dropped)
}

func TestPartitionMainNotClassified(t *testing.T) {
	plan, err := Partition(files("age.csv"))
	require.NoError(t, err)
	assert.Equal(t, "age.csv", plan.Main.Name)
	assert.Empty(t, plan.Breakdowns)
	assert.Empty(t, plan.Dropped)
}
