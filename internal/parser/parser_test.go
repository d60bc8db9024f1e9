package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"admira-report/internal/models"
)

func TestParseRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 7, 50} {
		t.Run(fmt.Sprintf("%d rows", n), func(t *testing.T) {
			var b strings.Builder
			b.WriteString("Campaign name,Amount spent (IDR),Impressions\n")
			for i := 0; i < n; i++ {
				fmt.Fprintf(&b, "campaign %d,%d,%d\n", i, i*1000, i*10)
			}

			rows, err := Parse(b.String())
			require.NoError(t, err)
			require.Len(t, rows, n)
			for i, row := range rows {
				assert.Len(t, row, 3)
				assert.Equal(t, fmt.Sprintf("campaign %d", i), row["Campaign name"])
				assert.Contains(t, row, "Amount spent (IDR)")
				assert.Contains(t, row, "Impressions")
			}
		})
	}
}

func TestParseQuotedFields(t *testing.T) {
	text := "Ad name,Amount spent (IDR)\n\"Promo, Ramadan\",\"1,250,000\"\n\"Line one\nline two\",500\n"

	rows, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Promo, Ramadan", rows[0]["Ad name"])
	assert.Equal(t, "1,250,000", rows[0]["Amount spent (IDR)"])
	assert.Equal(t, "Line one\nline two", rows[1]["Ad name"])
}

func TestParseStripsBOMAndLeadingBlankLines(t *testing.T) {
	rows, err := Parse("\ufeff\n  \nAge,Reach\n18-24,100\n")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "18-24", rows[0]["Age"])
	assert.Equal(t, "100", rows[0]["Reach"])
}

func TestParseDetectsDelimiter(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"semicolon", "Gender;Reach;Impressions\nfemale;10;\"1,5\"\n"},
		{"tab", "Gender\tReach\tImpressions\nfemale\t10\t1,5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Parse(tt.text)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "female", rows[0]["Gender"])
			assert.Equal(t, "1,5", rows[0]["Impressions"])
		})
	}
}

func TestParseRejectsFieldCountMismatch(t *testing.T) {
	_, err := Parse("a,b\n1,2\n1,2,3\n")

	var malformed *MalformedCSVError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 3, malformed.Line)
	assert.Contains(t, malformed.Error(), "field count")
}

func TestParseSkipsWhitespaceOnlyLines(t *testing.T) {
	rows, err := Parse("Age,Purchases\n18-24,3\n   \n25-34,5\n , \n\t\n")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "18-24", rows[0]["Age"])
	assert.Equal(t, "25-34", rows[1]["Age"])
}

func TestParseRejectsFieldCountMismatchAfterBlankLine(t *testing.T) {
	_, err := Parse("a,b\n1,2\n   \n1\n")

	var malformed *MalformedCSVError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 4, malformed.Line)
}

func TestParseRejectsMissingHeader(t *testing.T) {
	for _, text := range []string{"", "\n\n", ",,\n1,2,3\n"} {
		_, err := Parse(text)
		var malformed *MalformedCSVError
		assert.ErrorAs(t, err, &malformed, "text %q", text)
	}
}

func TestParseRowLimit(t *testing.T) {
	_, err := New(2).Parse("a\n1\n2\n3\n")
	assert.True(t, errors.Is(err, ErrTooManyRows))

	rows, err := New(3).Parse("a\n1\n2\n3\n")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestParseFileTagsFileName(t *testing.T) {
	p := New(0)
	_, err := p.ParseFile(models.UploadedFile{Name: "main.csv", Content: []byte("a,b\n1\n")})

	var malformed *MalformedCSVError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "main.csv", malformed.File)
}

func TestParseFileWorkbook(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]string{"Age", "Amount spent (IDR)", "Purchases"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]string{"18-24", "150000", "3"}))
	// Trailing empty cell is dropped by excelize and padded back.
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]string{"25-34", "90000"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	rows, err := New(0).ParseFile(models.UploadedFile{Name: "age.XLSX", Content: buf.Bytes()})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "150000", rows[0]["Amount spent (IDR)"])
	assert.Equal(t, "", rows[1]["Purchases"])
}
