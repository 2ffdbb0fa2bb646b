package extraction

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateLayout is the normalized textual form every extracted date is
// reduced to before it reaches the ledger.
const DateLayout = "02-Jan-2006"

// datePattern matches numeric dates (12/10/2025, 2025-10-12) and
// day-month-name dates (12-Oct-2025, 12Oct2025) anywhere in the OCR text.
var datePattern = regexp.MustCompile(`(?i)\b(\d{1,4}[-/]\d{1,2}[-/]\d{1,4}|\d{1,2}[-/]?\w{3,}-?\d{2,4})\b`)

// ocrDateFixes repairs the digit zero misread for the letter O in month
// abbreviations before parsing is attempted.
var ocrDateFixes = strings.NewReplacer(
	"0ct", "Oct",
	"0ec", "Dec",
	"0ov", "Nov",
)

// dateLayouts are tried before falling back to the fuzzy parser. The
// day-month-name forms come first because that is how the canteen prints
// its slips. Ambiguous all-numeric dates resolve month-first; day-first
// readings only win when the month position cannot hold a month.
var dateLayouts = []string{
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"2-Jan-06",
	"02Jan2006",
	"2Jan2006",
	"02/Jan/2006",
	"2006-01-02",
	"01-02-2006",
	"1-2-2006",
	"01/02/2006",
	"2006/01/02",
}

// ExtractDate scans the recognized words for a date-like substring, applies
// the OCR confusion fixes and returns the first candidate that parses. A
// receipt without a readable date returns nil; that is not fatal for the
// record.
func ExtractDate(words []string) *time.Time {
	text := strings.Join(words, " ")

	for _, match := range datePattern.FindAllString(text, -1) {
		fixed := ocrDateFixes.Replace(match)
		if t, ok := parseDateCandidate(fixed); ok {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &t
		}
		slog.Debug("unparseable date candidate", "candidate", match)
	}

	return nil
}

// parseDateCandidate tries the known layouts first, then the fuzzy parser.
func parseDateCandidate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
