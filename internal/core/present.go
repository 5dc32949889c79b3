package core

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DisplayDateLayout is the day/month/year form used for every rendered date.
const DisplayDateLayout = "02/01/2006"

// dateLayouts are the ISO-like inputs FormatDate understands, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

var (
	displayCurrency = money.GetCurrency(money.EUR)

	// fr-FR grouping: narrow no-break space between thousands, comma before
	// the cents and a no-break space ahead of the symbol.
	currencyFormatter = money.NewFormatter(
		displayCurrency.Fraction,
		",",
		"\u202f",
		displayCurrency.Grapheme,
		"1\u00a0$",
	)

	// amounts beyond this many minor units do not fit the formatter's int64
	maxMinorUnits = decimal.NewFromInt(math.MaxInt64)
)

// FormatCurrency renders value in euros with two decimals, e.g. "1 234,56 €".
// NaN and infinities come back as their plain numeric string.
func FormatCurrency(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	s, ok := formatDecimal(decimal.NewFromFloat(value))
	if !ok {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	return s
}

// FormatAmount formats a cell holding a number as currency. Cells that are
// not numbers are returned unchanged.
func FormatAmount(raw string) string {
	d, ok := parseNumber(raw)
	if !ok {
		return raw
	}
	s, ok := formatDecimal(d)
	if !ok {
		return raw
	}
	return s
}

func formatDecimal(d decimal.Decimal) (string, bool) {
	minor := d.Shift(int32(displayCurrency.Fraction)).Round(0)
	if minor.Abs().GreaterThan(maxMinorUnits) {
		return "", false
	}
	return currencyFormatter.Format(minor.IntPart()), true
}

// FormatDate renders an ISO-like date as dd/mm/yyyy. Input that does not
// parse is returned unchanged.
func FormatDate(value string) string {
	s := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DisplayDateLayout)
		}
	}
	return value
}

// CellFormatter picks the display form of a cell from its column name.
type CellFormatter struct {
	currency map[string]bool
	date     map[string]bool
}

// NewCellFormatter formats currencyColumns as amounts and dateColumns as
// dates. Column names match case-insensitively.
func NewCellFormatter(currencyColumns, dateColumns []string) CellFormatter {
	f := CellFormatter{
		currency: make(map[string]bool, len(currencyColumns)),
		date:     make(map[string]bool, len(dateColumns)),
	}
	for _, c := range currencyColumns {
		f.currency[strings.ToLower(c)] = true
	}
	for _, c := range dateColumns {
		f.date[strings.ToLower(c)] = true
	}
	return f
}

// Format returns the display form of value in column.
func (f CellFormatter) Format(column, value string) string {
	col := strings.ToLower(column)
	switch {
	case f.currency[col]:
		return FormatAmount(value)
	case f.date[col]:
		return FormatDate(value)
	default:
		return value
	}
}

// Apply returns a copy of c with every cell in display form.
func (f CellFormatter) Apply(c RecordCollection) RecordCollection {
	out := make([]Record, len(c.Records))
	for i, rec := range c.Records {
		formatted := make(Record, len(rec))
		for col, v := range rec {
			formatted[col] = f.Format(col, v)
		}
		out[i] = formatted
	}
	return c.derive(out)
}
