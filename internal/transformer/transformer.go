package transformer

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"admira-report/internal/models"
)

// ColumnAliases maps a canonical metric to the header spellings it may use,
// most preferred first.
type ColumnAliases map[string][]string

// DefaultAliases covers English and Indonesian Meta Ads Manager exports.
var DefaultAliases = ColumnAliases{
	models.MetricAmountSpent: {
		"Amount spent (IDR)", "Amount spent", "Spend", "Cost",
		"Jumlah yang dibelanjakan (IDR)", "Jumlah yang dibelanjakan",
	},
	models.MetricImpressions: {"Impressions", "Impresi", "Tayangan"},
	models.MetricReach:       {"Reach", "Jangkauan"},
	models.MetricLinkClicks:  {"Link clicks", "Klik tautan", "Outbound clicks", "Clicks"},
	models.MetricLandingPageViews: {
		"Landing page views", "Website landing page views", "Tayangan halaman landas",
	},
	models.MetricContentViews: {
		"Content views", "Website content views", "Views of content",
		"Tayangan konten", "Tayangan konten situs web",
	},
	models.MetricAddsToCart: {
		"Adds to cart", "Website adds to cart", "Add to cart",
		"Penambahan ke keranjang", "Penambahan ke keranjang situs web",
	},
	models.MetricCheckoutsInitiated: {
		"Checkouts initiated", "Website checkouts initiated",
		"Checkout dimulai", "Checkout yang dimulai di situs web",
	},
	models.MetricPurchases: {
		"Purchases", "Website purchases", "Pembelian", "Pembelian di situs web",
	},
	models.MetricPurchaseValue: {
		"Purchases conversion value", "Website purchases conversion value",
		"Purchase conversion value", "Purchase value",
		"Nilai konversi pembelian", "Nilai konversi pembelian di situs web",
	},
	models.MetricMessagingStarted: {
		"Messaging conversations started", "Messaging conversations",
		"Percakapan dengan pesan dimulai", "Percakapan pesan dimulai",
	},
}

// Subset returns the aliases for the given canonical names only.
func (a ColumnAliases) Subset(names []string) ColumnAliases {
	out := make(ColumnAliases, len(names))
	for _, name := range names {
		if spellings, ok := a[name]; ok {
			out[name] = spellings
		} else {
			out[name] = nil
		}
	}
	return out
}

var currencySuffix = regexp.MustCompile(`\s*\([A-Z]{3}\)\s*$`)

// normalizeHeader makes "Amount spent (IDR)" and "amount  Spent" equal.
func normalizeHeader(h string) string {
	h = currencySuffix.ReplaceAllString(strings.TrimSpace(h), "")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// headerIndex maps normalized header names to the row's original keys.
type headerIndex map[string]string

func indexRow(row models.Row) headerIndex {
	index := make(headerIndex, len(row))
	for key := range row {
		n := normalizeHeader(key)
		// Collisions such as two currency columns resolve deterministically.
		if existing, ok := index[n]; ok && existing < key {
			continue
		}
		index[n] = key
	}
	return index
}

// resolve returns the row's header matching the first usable alias.
func (i headerIndex) resolve(row models.Row, aliases []string) (string, bool) {
	for _, alias := range aliases {
		if _, ok := row[alias]; ok {
			return alias, true
		}
	}
	for _, alias := range aliases {
		if key, ok := i[normalizeHeader(alias)]; ok {
			return key, true
		}
	}
	return "", false
}

// ResolveColumn finds which of the aliases a row uses.
func ResolveColumn(row models.Row, aliases []string) (string, bool) {
	return indexRow(row).resolve(row, aliases)
}

var currencyMarkers = []string{"IDR", "USD", "EUR", "RP", "$", "€", "£"}

// ParseNumber coerces an exported cell into a number. Thousands separators,
// currency markers and a trailing percent sign are stripped. Blank or
// unparseable input yields 0 and false; a typo'd cell silently becomes 0.
//
// Commas are always grouping. Dots are grouping only when a value has more
// than one of them or carries an Rp/IDR marker, so a bare "1.234" is 1.234
// while "1.234.567" is 1234567. Decimal commas ("1.234.567,89") are not
// supported and yield 0 and false.
func ParseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	rupiah := false
	upper := strings.ToUpper(s)
	for _, marker := range currencyMarkers {
		if strings.HasPrefix(upper, marker) {
			s = strings.TrimPrefix(s[len(marker):], ".")
			rupiah = marker == "RP" || marker == "IDR"
			break
		}
	}
	if !negative && strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	s = strings.TrimSuffix(s, "%")

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ",", "")
	} else if strings.Count(s, ".") > 1 || (rupiah && strings.Contains(s, ".")) {
		// 1.234.567 style grouping; rupiah amounts carry no decimals
		s = strings.ReplaceAll(s, ".", "")
	}
	if s == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	if negative {
		value = -value
	}
	return value, true
}

// Extract sums every aliased column over rows. Each canonical name is
// present in the result; columns absent from every row are 0 and listed in
// the quality's MissingColumns. Ratios are never read or averaged here.
func Extract(rows []models.Row, aliases ColumnAliases) (models.Metrics, models.ExtractionQuality) {
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(models.Metrics, len(names))
	for _, name := range names {
		values[name] = 0
	}
	quality := models.ExtractionQuality{RowsRead: len(rows)}
	found := make(map[string]bool, len(names))

	for _, row := range rows {
		index := indexRow(row)
		for _, name := range names {
			key, ok := index.resolve(row, aliases[name])
			if !ok {
				continue
			}
			found[name] = true
			values[name] += normalizeCell(row[key], &quality)
		}
	}

	if len(rows) > 0 {
		for _, name := range names {
			if !found[name] {
				quality.MissingColumns = append(quality.MissingColumns, name)
			}
		}
	}
	return values, quality
}

func normalizeCell(raw string, quality *models.ExtractionQuality) float64 {
	value, ok := ParseNumber(raw)
	if !ok {
		if strings.TrimSpace(raw) != "" && strings.TrimSpace(raw) != "-" {
			quality.InvalidCells++
		}
		return 0
	}
	if value < 0 {
		quality.NegativeCells++
		return 0
	}
	return value
}

var (
	reportingStartAliases = []string{"Reporting starts", "Reporting start", "Awal pelaporan"}
	reportingEndAliases   = []string{"Reporting ends", "Reporting end", "Akhir pelaporan"}
)

// ReportingRange returns the earliest start and latest end date found in
// the rows' reporting columns.
func ReportingRange(rows []models.Row) (start, end time.Time, ok bool) {
	for _, row := range rows {
		index := indexRow(row)
		if key, found := index.resolve(row, reportingStartAliases); found {
			if d, valid := parseDate(row[key]); valid && (start.IsZero() || d.Before(start)) {
				start = d
			}
		}
		if key, found := index.resolve(row, reportingEndAliases); found {
			if d, valid := parseDate(row[key]); valid && (end.IsZero() || d.After(end)) {
				end = d
			}
		}
	}
	return start, end, !start.IsZero() && !end.IsZero()
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// Handle different date formats
	formats := []string{
		"2006-01-02",
		"2006/01/02",
		"02/01/2006",
		"Jan 2, 2006",
		"2 Jan 2006",
	}

	for _, format := range formats {
		if date, err := time.Parse(format, s); err == nil {
			return date, true
		}
	}
	return time.Time{}, false
}
