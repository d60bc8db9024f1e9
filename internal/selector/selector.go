package selector

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"admira-report/internal/models"
)

var ErrNoMainFile = errors.New("no main file found")

// MainFilePatterns is shown to users when no main file can be picked.
var MainFilePatterns = []string{"main", "data", "report", "summary"}

// Any of these in a filename marks it as a breakdown export.
var breakdownKeywords = []string{
	"age", "gender", "region", "platform", "placement",
	"objective", "ad-creative", "creative", "adcreative",
}

// Checked in order: specific names before substrings of other words.
var dimensionKeywords = []struct {
	keyword   string
	dimension models.Dimension
}{
	{"ad-creative", models.DimensionAdCreative},
	{"adcreative", models.DimensionAdCreative},
	{"creative", models.DimensionAdCreative},
	{"placement", models.DimensionPlacement},
	{"platform", models.DimensionPlatform},
	{"objective", models.DimensionObjective},
	{"region", models.DimensionRegion},
	{"gender", models.DimensionGender},
	{"age", models.DimensionAge},
}

// Plan is one period's uploads split into roles.
type Plan struct {
	Main       models.UploadedFile
	Breakdowns map[models.Dimension][]models.UploadedFile
	Dropped    []string
}

// SelectMain picks the main metrics file. Names without a breakdown keyword
// are preferred; among several, one containing main/data/report/summary
// wins, then the longest name. The length rule is only a heuristic for the
// most descriptive export name.
func SelectMain(files []models.UploadedFile) (models.UploadedFile, error) {
	_, file, err := selectMain(files)
	return file, err
}

func selectMain(files []models.UploadedFile) (int, models.UploadedFile, error) {
	if len(files) == 0 {
		return -1, models.UploadedFile{}, ErrNoMainFile
	}

	pool := lo.Filter(lo.Range(len(files)), func(i int, _ int) bool {
		return !isBreakdownName(files[i].Name)
	})
	if len(pool) == 0 {
		pool = lo.Range(len(files))
	}

	if len(pool) > 1 {
		preferred := lo.Filter(pool, func(i int, _ int) bool {
			return containsAny(normalizeName(files[i].Name), MainFilePatterns)
		})
		if len(preferred) > 0 {
			pool = preferred
		}
	}

	// MaxBy keeps the earliest upload on equal lengths.
	idx := lo.MaxBy(pool, func(a, b int) bool {
		return len(normalizeName(files[a].Name)) > len(normalizeName(files[b].Name))
	})
	return idx, files[idx], nil
}

// Classify maps a breakdown filename to its dimension.
func Classify(filename string) (models.Dimension, bool) {
	name := normalizeName(filename)
	for _, k := range dimensionKeywords {
		if strings.Contains(name, k.keyword) {
			return k.dimension, true
		}
	}
	return "", false
}

// Partition selects the main file and classifies the rest. Files that match
// no dimension are listed in Dropped.
func Partition(files []models.UploadedFile) (Plan, error) {
	mainIdx, main, err := selectMain(files)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Main:       main,
		Breakdowns: make(map[models.Dimension][]models.UploadedFile),
	}
	for i, file := range files {
		if i == mainIdx {
			continue
		}
		dim, ok := Classify(file.Name)
		if !ok {
			plan.Dropped = append(plan.Dropped, file.Name)
			continue
		}
		plan.Breakdowns[dim] = append(plan.Breakdowns[dim], file)
	}
	return plan, nil
}

func isBreakdownName(filename string) bool {
	return containsAny(normalizeName(filename), breakdownKeywords)
}

func normalizeName(filename string) string {
	return strings.ToLower(filepath.Base(strings.TrimSpace(filename)))
}

func containsAny(s string, keywords []string) bool {
	return lo.SomeBy(keywords, func(k string) bool {
		return strings.Contains(s, k)
	})
}
