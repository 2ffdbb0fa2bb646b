package extraction

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numericPattern matches integer or decimal substrings with an optional
// sign inside a token.
var numericPattern = regexp.MustCompile(`[-+]?\d*\.\d+|\d+`)

// ExtractAmount scans the lower-half tokens for numeric substrings and
// returns the maximum value found. The largest number in the bottom half
// of the receipt is assumed to be the total. Returns an invalid
// NullDecimal when no numeric token exists.
func ExtractAmount(words []string) decimal.NullDecimal {
	var max decimal.Decimal
	found := false

	for _, word := range words {
		for _, match := range numericPattern.FindAllString(word, -1) {
			v, err := decimal.NewFromString(strings.TrimPrefix(match, "+"))
			if err != nil {
				continue
			}
			if !found || v.GreaterThan(max) {
				max = v
				found = true
			}
		}
	}

	return decimal.NullDecimal{Decimal: max, Valid: found}
}

// codePattern builds the matcher for employee codes: a known prefix
// followed by at least one more word character, anchored at the start of
// the token.
func codePattern(prefixes []string) *regexp.Regexp {
	quoted := make([]string, len(prefixes))
	for i, p := range prefixes {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)^(` + strings.Join(quoted, "|") + `)\w+`)
}

// ExtractEmployeeCode returns the first token prefixed by one of the known
// employee code families, or the empty string when none match.
func ExtractEmployeeCode(words []string, pattern *regexp.Regexp) string {
	for _, word := range words {
		if match := pattern.FindString(word); match != "" {
			return match
		}
	}
	return ""
}
