package ledger

import (
	"strconv"

	"github.com/quarkcity/meal-ledger/internal/extraction"
	"github.com/quarkcity/meal-ledger/internal/reconcile"
)

// ledgerHeader is the archive column order. Changing it triggers the
// header-mismatch rewrite path on the next merge.
var ledgerHeader = []string{
	"Date",
	"Code",
	"Emp Name",
	"Eligible for Reimbursement",
	"Reimbursement Amount",
	"Amount Paid",
	"Meal type",
	"Company",
	"Image_name",
	"day",
	"Month Year",
	"UserID",
	"Comment",
	"Category",
}

// Header returns the archive header row.
func Header() []string {
	header := make([]string, len(ledgerHeader))
	copy(header, ledgerHeader)
	return header
}

// Row renders one reconciled record as an archive row.
func Row(rec *reconcile.Record) []string {
	date := ""
	day := ""
	if rec.Date != nil {
		date = rec.Date.Format(extraction.DateLayout)
		day = strconv.Itoa(rec.Day)
	}

	eligible := "No"
	if rec.Eligible {
		eligible = "Yes"
	}

	amountPaid := ""
	if rec.AmountPaid.Valid {
		amountPaid = rec.AmountPaid.Decimal.String()
	}

	category := ""
	if rec.Category != reconcile.CategoryUnresolved {
		category = strconv.Itoa(int(rec.Category))
	}

	return []string{
		date,
		rec.EmployeeCode,
		rec.EmployeeName,
		eligible,
		rec.ReimbursementAmount.String(),
		amountPaid,
		rec.MealType,
		rec.Company,
		rec.ImagePath,
		day,
		rec.MonthYear,
		rec.UserID,
		rec.Comment,
		category,
	}
}

// Rows renders a batch of reconciled records.
func Rows(records []*reconcile.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Row(rec))
	}
	return rows
}
