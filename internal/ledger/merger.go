// Package ledger persists reconciled records to the append-only archive
// sheet and compacts it, deduplicating on the (date, user id) pair with
// last-write-wins semantics.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
)

// Sheet defines the tabular primitive the merger runs against: read all
// rows, append rows, clear. The first row, when present, is the header.
type Sheet interface {
	// ReadAll returns every row currently in the sheet
	ReadAll(ctx context.Context) ([][]string, error)

	// AppendRows appends rows after the current contents
	AppendRows(ctx context.Context, rows [][]string) error

	// Clear removes all rows
	Clear(ctx context.Context) error
}

// Merger merges new ledger rows into the archive and compacts it.
type Merger struct {
	sheet Sheet
}

// NewMerger creates a new Merger.
func NewMerger(sheet Sheet) *Merger {
	return &Merger{sheet: sheet}
}

// Merge writes the new rows using the header-compatibility rules: an
// empty ledger gets header plus rows, a matching header in append mode
// gets rows only, anything else clears the sheet and rewrites it.
func (m *Merger) Merge(ctx context.Context, header []string, rows [][]string, appendMode bool) error {
	existing, err := m.sheet.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}

	switch {
	case len(existing) == 0:
		slog.Info("Ledger empty, writing header and rows", "rows", len(rows))
		return m.appendWithHeader(ctx, header, rows)

	case rowsEqual(existing[0], header) && appendMode:
		slog.Info("Ledger header matches, appending rows", "rows", len(rows))
		if err := m.sheet.AppendRows(ctx, rows); err != nil {
			return fmt.Errorf("appending ledger rows: %w", err)
		}
		return nil

	default:
		slog.Info("Ledger header mismatched or overwrite requested, rewriting", "rows", len(rows))
		if err := m.sheet.Clear(ctx); err != nil {
			return fmt.Errorf("clearing ledger: %w", err)
		}
		return m.appendWithHeader(ctx, header, rows)
	}
}

// Compact removes duplicate ledger entries, keeping the last occurrence
// per (date, user id) key. Compacting an already-compact ledger leaves
// its contents unchanged. This is the only operation that drops
// historical data.
func (m *Merger) Compact(ctx context.Context) error {
	existing, err := m.sheet.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}
	if len(existing) == 0 {
		return nil
	}

	header := existing[0]
	data := existing[1:]

	dateIdx := columnIndex(header, "Date")
	userIdx := columnIndex(header, "UserID")
	if dateIdx < 0 || userIdx < 0 {
		return fmt.Errorf("ledger header missing Date or UserID column")
	}

	kept := dedupeKeepLast(data, dateIdx, userIdx)
	if len(kept) == len(data) {
		slog.Info("Ledger already compact", "rows", len(data))
		return nil
	}

	slog.Info("Compacting ledger", "rows", len(data), "kept", len(kept))
	if err := m.sheet.Clear(ctx); err != nil {
		return fmt.Errorf("clearing ledger: %w", err)
	}
	return m.appendWithHeader(ctx, header, kept)
}

func (m *Merger) appendWithHeader(ctx context.Context, header []string, rows [][]string) error {
	all := make([][]string, 0, len(rows)+1)
	all = append(all, header)
	all = append(all, rows...)
	if err := m.sheet.AppendRows(ctx, all); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	return nil
}

// dedupeKeepLast drops earlier rows sharing a (date, user) key, keeping
// surviving rows in their original relative order.
func dedupeKeepLast(rows [][]string, dateIdx, userIdx int) [][]string {
	lastByKey := make(map[string]int, len(rows))
	for i, row := range rows {
		lastByKey[dedupeKey(row, dateIdx, userIdx)] = i
	}

	kept := make([][]string, 0, len(lastByKey))
	for i, row := range rows {
		if lastByKey[dedupeKey(row, dateIdx, userIdx)] == i {
			kept = append(kept, row)
		}
	}
	return kept
}

func dedupeKey(row []string, dateIdx, userIdx int) string {
	return cell(row, dateIdx) + "\x00" + cell(row, userIdx)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if col == name {
			return i
		}
	}
	return -1
}

func rowsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
