package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"admira-report/internal/models"
)

var ErrTooManyRows = errors.New("file exceeds the maximum number of rows")

// MalformedCSVError reports an export that cannot be turned into rows.
type MalformedCSVError struct {
	File   string
	Line   int
	Reason string
}

func (e *MalformedCSVError) Error() string {
	var b strings.Builder
	b.WriteString("malformed csv")
	if e.File != "" {
		fmt.Fprintf(&b, " %q", e.File)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

type Parser struct {
	maxRows int
}

// New returns a parser rejecting files with more than maxRows data rows.
// Zero disables the limit.
func New(maxRows int) *Parser {
	return &Parser{maxRows: maxRows}
}

// Parse reads CSV text without a row limit.
func Parse(text string) ([]models.Row, error) {
	return New(0).Parse(text)
}

// ParseFile picks the reader from the file extension and tags errors with
// the file name.
func (p *Parser) ParseFile(file models.UploadedFile) ([]models.Row, error) {
	var (
		rows []models.Row
		err  error
	)
	switch strings.ToLower(filepath.Ext(file.Name)) {
	case ".xlsx", ".xlsm":
		rows, err = p.parseWorkbook(file.Content)
	default:
		rows, err = p.Parse(string(file.Content))
	}
	if err != nil {
		var malformed *MalformedCSVError
		if errors.As(err, &malformed) && malformed.File == "" {
			malformed.File = file.Name
		}
		return nil, fmt.Errorf("failed to parse %s: %w", file.Name, err)
	}
	return rows, nil
}

// Parse splits CSV text into rows keyed by the first non-empty line.
// Data lines must have exactly as many fields as the header; lines holding
// only whitespace or empty fields are skipped.
func (p *Parser) Parse(text string) ([]models.Row, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	text, skipped := skipBlankLines(text)

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = detectDelimiter(text)
	reader.LazyQuotes = true
	// Field counts are checked below so whitespace-only lines can be skipped.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &MalformedCSVError{Reason: "missing header row"}
	}
	if err != nil {
		return nil, wrapReadError(err, skipped)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, wrapReadError(err, skipped)
		}
		if isBlank(record) {
			continue
		}
		if len(record) != len(header) {
			line, _ := reader.FieldPos(0)
			return nil, &MalformedCSVError{Line: line + skipped, Reason: "field count does not match the header"}
		}
		if p.maxRows > 0 && len(records) >= p.maxRows {
			return nil, fmt.Errorf("%w (%d)", ErrTooManyRows, p.maxRows)
		}
		records = append(records, record)
	}

	return buildRows(header, records)
}

func (p *Parser) parseWorkbook(content []byte) ([]models.Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, &MalformedCSVError{Reason: fmt.Sprintf("unreadable workbook: %v", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &MalformedCSVError{Reason: "workbook has no sheets"}
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &MalformedCSVError{Reason: fmt.Sprintf("unreadable sheet %q: %v", sheets[0], err)}
	}

	start := 0
	for start < len(all) && isBlank(all[start]) {
		start++
	}
	if start == len(all) {
		return nil, &MalformedCSVError{Reason: "missing header row"}
	}
	header := all[start]
	records := all[start+1:]
	if p.maxRows > 0 && len(records) > p.maxRows {
		return nil, fmt.Errorf("%w (%d)", ErrTooManyRows, p.maxRows)
	}

	// excelize drops trailing empty cells, so short rows are padded.
	padded := make([][]string, 0, len(records))
	for i, record := range records {
		if isBlank(record) {
			continue
		}
		if len(record) < len(header) {
			record = append(record, make([]string, len(header)-len(record))...)
		} else if len(record) > len(header) {
			if !isBlank(record[len(header):]) {
				return nil, &MalformedCSVError{
					Line:   start + i + 2,
					Reason: fmt.Sprintf("expected %d fields, found %d", len(header), len(record)),
				}
			}
			record = record[:len(header)]
		}
		padded = append(padded, record)
	}

	return buildRows(header, padded)
}

func buildRows(header []string, records [][]string) ([]models.Row, error) {
	keys := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	named := 0
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		keys[i] = h
		named++
	}
	if named == 0 {
		return nil, &MalformedCSVError{Line: 1, Reason: "header row is empty"}
	}

	rows := make([]models.Row, 0, len(records))
	for _, record := range records {
		row := make(models.Row, named)
		for i, key := range keys {
			if key == "" {
				continue
			}
			row[key] = record[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func wrapReadError(err error, skipped int) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &MalformedCSVError{Line: parseErr.Line + skipped, Reason: parseErr.Err.Error()}
	}
	return &MalformedCSVError{Reason: err.Error()}
}

// skipBlankLines drops leading whitespace-only lines and reports how many
// were removed so error line numbers stay relative to the original text.
func skipBlankLines(text string) (string, int) {
	skipped := 0
	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			if strings.TrimSpace(text) == "" {
				return "", skipped
			}
			return text, skipped
		}
		if strings.TrimSpace(text[:idx]) != "" {
			return text, skipped
		}
		text = text[idx+1:]
		skipped++
	}
}

// detectDelimiter counts candidate separators outside quotes on the header line.
func detectDelimiter(text string) rune {
	counts := map[rune]int{}
	inQuotes := false
	for _, r := range text {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		if r == '\n' {
			break
		}
		switch r {
		case ',', ';', '\t':
			counts[r]++
		}
	}

	best := ','
	for _, candidate := range []rune{';', '\t'} {
		if counts[candidate] > counts[best] {
			best = candidate
		}
	}
	return best
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
