// Package reconcile joins extracted receipt records against the employee
// roster, repairs OCR artifacts in amounts and codes, and classifies each
// record into a match category that decides its reimbursement eligibility.
package reconcile

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quarkcity/meal-ledger/internal/config"
	"github.com/quarkcity/meal-ledger/internal/extraction"
	"github.com/quarkcity/meal-ledger/internal/recognition"
)

// Category summarizes how a record's employee code was reconciled against
// the roster.
type Category int

const (
	// CategoryUnresolved marks records whose roster identifier is missing;
	// eligibility and amount are deliberately left untouched
	CategoryUnresolved Category = 0
	// CategoryMatched marks records whose code matched the roster identifier
	CategoryMatched Category = 1
	// CategoryNotAMeal marks records without a meal-type value
	CategoryNotAMeal Category = 2
	// CategoryBackfilled marks records whose code was adopted from the roster
	CategoryBackfilled Category = 3
	// CategoryMismatched marks records whose code contradicted the roster
	CategoryMismatched Category = 4
)

const (
	commentNotAMeal   = "Not a Meal"
	commentMismatched = "Not Eligible (Employee code mismatched)"
	commentBackfilled = "Employee code not found from Slip (Code replaced from Employee Data sheet)"
	commentUnresolved = "Emp ID not Found Please update Employee Data."
)

// MonthYearLayout is the textual form of the month-year ledger column.
const MonthYearLayout = "2006-Jan"

// Record is a reconciled receipt ready for the ledger. Invariant: a
// positive reimbursement amount implies Eligible.
type Record struct {
	ImagePath    string
	Date         *time.Time
	EmployeeCode string
	AmountPaid   decimal.NullDecimal
	MealType     string
	Company      string

	UserID              string
	EmployeeName        string
	Eligible            bool
	ReimbursementAmount decimal.Decimal
	Comment             string
	Category            Category
	Day                 int
	MonthYear           string
}

// userIDPattern captures the employee folder segment of an image storage
// path, e.g. images/jdoe/October 2025/slip.png -> jdoe.
var userIDPattern = regexp.MustCompile(`images[/\\]([^/\\]+)[/\\]`)

// DeriveUserID extracts the uploading employee's folder segment from the
// image storage path, or empty when the path does not encode one.
func DeriveUserID(path string) string {
	m := userIDPattern.FindStringSubmatch(path)
	if len(m) == 2 {
		return m[1]
	}
	return ""
}

// Reconciler classifies extracted records against the roster.
type Reconciler struct {
	sim      recognition.Similarity
	cfg      config.Reconcile
	eligible map[string]bool
}

// NewReconciler creates a new Reconciler.
func NewReconciler(sim recognition.Similarity, cfg config.Reconcile) *Reconciler {
	eligible := make(map[string]bool, len(cfg.EligibleMeals))
	for _, meal := range cfg.EligibleMeals {
		eligible[normalizeMeal(meal)] = true
	}
	return &Reconciler{
		sim:      sim,
		cfg:      cfg,
		eligible: eligible,
	}
}

// Reconcile consumes the staged extractions and produces ledger-ready
// records: user id derivation, amount and code repair, eligibility, the
// category cascade and name fill. Per-record gaps become categories and
// comments, never errors; only a similarity model failure aborts.
func (r *Reconciler) Reconcile(ctx context.Context, records []*extraction.RawExtraction, roster []RosterEntry) ([]*Record, error) {
	byFolder := make(map[string]RosterEntry, len(roster))
	for _, entry := range roster {
		if entry.UserFolderID != "" {
			byFolder[entry.UserFolderID] = entry
		}
	}

	out := make([]*Record, 0, len(records))
	for _, raw := range records {
		rec := &Record{
			ImagePath:    raw.ImagePath,
			Date:         raw.Date,
			EmployeeCode: repairCode(raw.EmployeeCode, r.cfg.RepairPrefixes),
			AmountPaid:   raw.Amount,
			MealType:     raw.MealType,
			Company:      raw.Company,
			UserID:       DeriveUserID(raw.ImagePath),
		}

		if rec.Date != nil {
			rec.Day = rec.Date.Day()
			rec.MonthYear = rec.Date.Format(MonthYearLayout)
		}

		if r.eligible[normalizeMeal(rec.MealType)] {
			rec.Eligible = true
			rec.ReimbursementAmount = r.cfg.ReimbursementRate
		}

		out = append(out, rec)
	}

	r.repairAmounts(out)

	for _, rec := range out {
		entry, joined := byFolder[rec.UserID]
		if err := r.classify(ctx, rec, entry, joined); err != nil {
			return nil, err
		}
		if joined {
			if name := entry.DisplayName(); name != "" {
				rec.EmployeeName = name
			}
		}
	}

	return out, nil
}

// classify assigns exactly one category per record, evaluated in priority
// order. A mismatch forces the record ineligible.
func (r *Reconciler) classify(ctx context.Context, rec *Record, entry RosterEntry, joined bool) error {
	rosterID := ""
	if joined {
		rosterID = entry.EmployeeID
	}

	switch {
	case rec.MealType == "":
		rec.Category = CategoryNotAMeal
		rec.Comment = commentNotAMeal

	case rec.EmployeeCode != "" && rosterID != "":
		_, score, err := r.sim.MostSimilar(ctx, rec.EmployeeCode, []string{rosterID})
		if err != nil {
			return fmt.Errorf("scoring code %q against roster id %q: %w", rec.EmployeeCode, rosterID, err)
		}
		if score > r.cfg.SimilarityThreshold {
			rec.Category = CategoryMatched
		} else {
			rec.Category = CategoryMismatched
			rec.Comment = commentMismatched
			rec.Eligible = false
			rec.ReimbursementAmount = decimal.Zero
		}

	case rosterID != "":
		rec.EmployeeCode = rosterID
		rec.Category = CategoryBackfilled
		rec.Comment = commentBackfilled

	default:
		// Roster identifier missing: eligibility and amount stay as
		// precomputed, only the comment flags the gap
		rec.Category = CategoryUnresolved
		rec.Comment = commentUnresolved
	}

	return nil
}
