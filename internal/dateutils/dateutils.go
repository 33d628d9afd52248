// Package dateutils provides the date parsing shared by the statement
// extractors. Statements arrive with wildly inconsistent date formats; all of
// them converge to a plain calendar date here.
package dateutils

import (
	"fmt"
	"strings"
	"time"
)

// DateLayoutISO is the canonical storage layout for transaction dates.
const DateLayoutISO = "2006-01-02"

// statementFormats lists the formats seen across bank statement exports.
// Day-first formats come before month-first ones because the ambiguous
// numeric layouts are day-first in every supported source.
var statementFormats = []string{
	DateLayoutISO,
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"02/01/06",
	"2/1/2006",
	"02-Jan-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
}

// ParseStatementDate parses a statement date string, trying each supported
// layout in order.
func ParseStatementDate(dateStr string) (time.Time, error) {
	cleaned := strings.TrimSpace(dateStr)
	cleaned = strings.Trim(cleaned, `"'`)

	for _, format := range statementFormats {
		if t, err := time.Parse(format, cleaned); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %q", dateStr)
}

// MonthRange converts a YYYY-MM month string into its first and last day.
func MonthRange(month string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q: %w", month, err)
	}
	end := start.AddDate(0, 1, -1)
	return start, end, nil
}
