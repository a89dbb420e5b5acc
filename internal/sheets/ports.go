package sheets

import (
	"context"
	"fmt"
	"strings"
)

// InputMode selects how written values are interpreted by the backend.
type InputMode int

const (
	// Raw stores values as given; strings are never parsed as formulas.
	Raw InputMode = iota
	// UserEntered parses values as if typed into the UI, formulas included.
	UserEntered
)

func (m InputMode) String() string {
	if m == UserEntered {
		return "USER_ENTERED"
	}
	return "RAW"
}

// Ports for outbound adapters.
type (
	// Backend is the tabular store a ledger lives in. Every range is an A1
	// string qualified with its tab name (see A1).
	Backend interface {
		GetValues(ctx context.Context, rng string) (ValueRange, error)
		UpdateValues(ctx context.Context, rng string, values [][]any, mode InputMode) error
		// AppendValues writes rows after the last non-empty row of rng,
		// overwriting empty cells rather than inserting rows.
		AppendValues(ctx context.Context, rng string, values [][]any, mode InputMode) error
		ClearValues(ctx context.Context, rng string) error
		AddSheet(ctx context.Context, title string) error
		ListSheets(ctx context.Context) ([]string, error)
		// FormatCurrency applies a currency number format to the given grid ranges.
		FormatCurrency(ctx context.Context, title string, ranges []GridRange) error
	}
)

// ValueRange is the typed result of a range read. Values is empty, never nil
// checked by callers, when the range holds no data.
type ValueRange struct {
	Range  string
	Values [][]any
}

// Empty reports whether no cell in the range holds a value.
func (v ValueRange) Empty() bool {
	for _, row := range v.Values {
		for _, c := range row {
			if CellString(c) != "" {
				return false
			}
		}
	}
	return true
}

// Cell returns the value at the zero-based row and column relative to the
// range origin. Short rows and missing rows yield (nil, false).
func (v ValueRange) Cell(row, col int) (any, bool) {
	if row < 0 || row >= len(v.Values) {
		return nil, false
	}
	r := v.Values[row]
	if col < 0 || col >= len(r) {
		return nil, false
	}
	return r[col], true
}

// String returns the trimmed textual value of a cell, "" when absent.
func (v ValueRange) String(row, col int) string {
	c, _ := v.Cell(row, col)
	return CellString(c)
}

// CellString renders a cell value as trimmed text.
func CellString(c any) string {
	if c == nil {
		return ""
	}
	if s, ok := c.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(c))
}
