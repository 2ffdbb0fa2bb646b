package reconcile

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// normalizeMeal lowercases a meal label for set membership and grouping.
func normalizeMeal(meal string) string {
	return strings.ToLower(strings.TrimSpace(meal))
}

// implausibleAmount flags amounts the OCR likely over-read: missing
// values and integer parts with more than MaxAmountDigits digits. A
// canteen slip never totals past a two-digit-per-plate lunch window, so
// a 999 read alongside a run of 50s is a misread, not a meal.
func (r *Reconciler) implausibleAmount(amount decimal.NullDecimal) bool {
	if !amount.Valid {
		return true
	}
	digits := len(strconv.FormatInt(amount.Decimal.Abs().IntPart(), 10))
	return digits > r.cfg.MaxAmountDigits
}

// repairAmounts replaces missing or implausible amounts with the mode of
// all amounts observed for the same meal type. Meal types without a
// mode leave the record unresolved.
func (r *Reconciler) repairAmounts(records []*Record) {
	modes := make(map[string]decimal.Decimal)

	counts := make(map[string]map[string]int)
	values := make(map[string]map[string]decimal.Decimal)
	for _, rec := range records {
		if rec.MealType == "" || !rec.AmountPaid.Valid {
			continue
		}
		meal := normalizeMeal(rec.MealType)
		key := rec.AmountPaid.Decimal.String()
		if counts[meal] == nil {
			counts[meal] = make(map[string]int)
			values[meal] = make(map[string]decimal.Decimal)
		}
		counts[meal][key]++
		values[meal][key] = rec.AmountPaid.Decimal
	}

	for meal, byValue := range counts {
		keys := make([]string, 0, len(byValue))
		for key := range byValue {
			keys = append(keys, key)
		}
		// Deterministic tie-break: the smallest of the most frequent values
		sort.Slice(keys, func(i, j int) bool {
			return values[meal][keys[i]].LessThan(values[meal][keys[j]])
		})
		best := ""
		for _, key := range keys {
			if best == "" || byValue[key] > byValue[best] {
				best = key
			}
		}
		if best != "" {
			modes[meal] = values[meal][best]
		}
	}

	for _, rec := range records {
		if rec.MealType == "" || !r.implausibleAmount(rec.AmountPaid) {
			continue
		}
		if mode, ok := modes[normalizeMeal(rec.MealType)]; ok {
			rec.AmountPaid = decimal.NullDecimal{Decimal: mode, Valid: true}
		}
	}
}

// repairCode fixes OCR character confusions inside the body of codes from
// a known prefix family: the letter o read for 0 and s read for 5. The
// prefix itself is left untouched.
func repairCode(code string, prefixes []string) string {
	if code == "" {
		return code
	}
	lower := strings.ToLower(code)
	for _, prefix := range prefixes {
		p := strings.ToLower(prefix)
		if strings.HasPrefix(lower, p) && len(code) > len(p) {
			body := code[len(p):]
			body = strings.ReplaceAll(body, "o", "0")
			body = strings.ReplaceAll(body, "O", "0")
			body = strings.ReplaceAll(body, "s", "5")
			body = strings.ReplaceAll(body, "S", "5")
			return code[:len(p)] + body
		}
	}
	return code
}
