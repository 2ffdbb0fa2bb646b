package reconcile

import "strings"

// RosterEntry is one row of the authoritative employee reference table.
// The user folder id names the Drive folder the employee uploads into.
type RosterEntry struct {
	EmployeeID   string
	FirstName    string
	LastName     string
	UserFolderID string
}

// DisplayName returns "First Last", tolerating missing parts.
func (e RosterEntry) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(e.FirstName) + " " + strings.TrimSpace(e.LastName))
}

// rosterAliases maps header spellings seen in the sheet to canonical
// column names.
var rosterAliases = map[string]string{
	"emp id":       "employee_id",
	"employee id":  "employee_id",
	"emp_id":       "employee_id",
	"first name":   "first_name",
	"firstname":    "first_name",
	"last name":    "last_name",
	"lastname":     "last_name",
	"userid":       "user_folder_id",
	"user id":      "user_folder_id",
	"user folder":  "user_folder_id",
	"folder id":    "user_folder_id",
}

// ParseRoster turns raw sheet rows (header first) into roster entries.
// Missing columns degrade to empty fields rather than failing; rows with
// neither an employee id nor a folder id are dropped.
func ParseRoster(rows [][]string) []RosterEntry {
	if len(rows) < 2 {
		return nil
	}

	columns := make(map[string]int)
	for i, name := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := rosterAliases[key]; ok {
			columns[canonical] = i
		}
	}

	cell := func(row []string, column string) string {
		idx, ok := columns[column]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	entries := make([]RosterEntry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		entry := RosterEntry{
			EmployeeID:   cell(row, "employee_id"),
			FirstName:    cell(row, "first_name"),
			LastName:     cell(row, "last_name"),
			UserFolderID: cell(row, "user_folder_id"),
		}
		if entry.EmployeeID == "" && entry.UserFolderID == "" {
			continue
		}
		entries = append(entries, entry)
	}

	return entries
}
