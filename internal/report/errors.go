package report

import (
	"errors"
	"fmt"
	"strings"

	"admira-report/internal/models"
	"admira-report/internal/selector"
)

var (
	ErrInvalidRequest  = errors.New("invalid report request")
	ErrNoMainFileFound = errors.New("no main file found")
	ErrNoDataForPeriod = errors.New("no data for period")
	ErrUploadTooLarge  = errors.New("upload exceeds the size limit")
)

// PeriodError ties a failure to the period and file the user must fix.
type PeriodError struct {
	Period models.Period
	File   string
	Err    error
}

func (e *PeriodError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s", e.Period)
	if e.File != "" {
		fmt.Fprintf(&b, " (%s)", e.File)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if errors.Is(e.Err, ErrNoMainFileFound) {
		fmt.Fprintf(&b, "; upload a main export, ideally named with one of: %s",
			strings.Join(selector.MainFilePatterns, ", "))
	}
	return b.String()
}

func (e *PeriodError) Unwrap() error {
	return e.Err
}
