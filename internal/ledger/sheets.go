package ledger

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleSheet implements the Sheet interface against one worksheet of a
// Google Sheets spreadsheet.
type GoogleSheet struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
}

// NewGoogleSheet creates a Sheets client scoped to one worksheet using a
// service account credentials file.
func NewGoogleSheet(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*GoogleSheet, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if sheetName == "" {
		return nil, fmt.Errorf("sheet name is required")
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}

	return &GoogleSheet{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// NewGoogleSheetWithService creates a GoogleSheet over an existing
// service, for callers that share one client across worksheets.
func NewGoogleSheetWithService(svc *sheets.Service, spreadsheetID, sheetName string) *GoogleSheet {
	return &GoogleSheet{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}
}

// ReadAll returns every row of the worksheet.
func (g *GoogleSheet) ReadAll(ctx context.Context) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, g.rangeName()).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", g.sheetName, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, v := range raw {
			row[i] = fmt.Sprint(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AppendRows appends rows after the worksheet's current contents.
func (g *GoogleSheet) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		values[i] = cells
	}

	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, g.rangeName(), &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("appending to sheet %s: %w", g.sheetName, err)
	}
	return nil
}

// Clear removes all rows from the worksheet.
func (g *GoogleSheet) Clear(ctx context.Context) error {
	_, err := g.svc.Spreadsheets.Values.Clear(g.spreadsheetID, g.rangeName(), &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clearing sheet %s: %w", g.sheetName, err)
	}
	return nil
}

// rangeName quotes the sheet title for A1 notation; titles may contain
// spaces.
func (g *GoogleSheet) rangeName() string {
	return "'" + strings.ReplaceAll(g.sheetName, "'", "''") + "'"
}
