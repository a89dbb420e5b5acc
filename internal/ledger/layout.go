package ledger

import (
	"fmt"
	"strings"

	"expensebot/internal/sheets"
)

// Coordinates of a monthly ledger tab. Rows are one-based as in A1 notation.
const (
	HeaderRow         = 5
	DataStartRow      = 6
	BreakdownStartRow = 14

	rangeSummaryLabels = "F4:H4"
	rangeSummaryValues = "F5:H5"
	rangeFormulas      = "G5:H5"
	rangeTarget        = "F5"
	rangeHeader        = "A5:D5"
	rangeData          = "A6:D"
	rangeOldHeader     = "A1:C1"
	rangeOldData       = "A2:C"

	FormulaTotal  = "=SUM(C6:C)"
	FormulaRemain = "=F5-G5"
)

var (
	SummaryLabels = []string{"Target Expense", "Total Expenses", "Remain"}
	HeaderLabels  = []string{"Date", "Type", "Amount", "Description"}
	oldLabels     = []string{"Date", "Amount", "Description"}
)

// Format is the layout version of a ledger tab.
type Format int

const (
	FormatUnknown Format = iota
	FormatOld
	FormatNew
)

func (f Format) String() string {
	switch f {
	case FormatOld:
		return "old"
	case FormatNew:
		return "new"
	default:
		return "unknown"
	}
}

func labelRow(labels []string) [][]any {
	row := make([]any, len(labels))
	for i, l := range labels {
		row[i] = l
	}
	return [][]any{row}
}

// breakdownRange returns the F:G range holding n breakdown rows.
func breakdownRange(n int) string {
	return fmt.Sprintf("F%d:G%d", BreakdownStartRow, BreakdownStartRow+n-1)
}

// breakdownRows pairs each type with a SUMIF over the data rows keyed on its label cell.
func breakdownRows(types []string) [][]any {
	rows := make([][]any, 0, len(types))
	for i, t := range types {
		row := BreakdownStartRow + i
		rows = append(rows, []any{t, fmt.Sprintf("=SUMIF(B%d:B,F%d,C%d:C)", DataStartRow, row, DataStartRow)})
	}
	return rows
}

// currencyRanges are the numeric cells that get a currency format: the
// summary values, the amount column and the breakdown sums.
func currencyRanges(n int) []sheets.GridRange {
	return []sheets.GridRange{
		{StartRow: HeaderRow - 1, EndRow: HeaderRow, StartCol: 5, EndCol: 8},
		{StartRow: DataStartRow - 1, EndRow: -1, StartCol: 2, EndCol: 3},
		{StartRow: BreakdownStartRow - 1, EndRow: BreakdownStartRow - 1 + n, StartCol: 6, EndCol: 7},
	}
}

// matchLabels reports whether every cell in row contains the expected label,
// case-insensitively.
func matchLabels(vr sheets.ValueRange, row, col int, labels []string) bool {
	for i, l := range labels {
		got := strings.ToLower(vr.String(row, col+i))
		if got == "" || !strings.Contains(got, strings.ToLower(l)) {
			return false
		}
	}
	return true
}

// regions describes which parts of the new layout are present on a tab.
type regions struct {
	summary   bool
	header    bool
	breakdown bool
}

func (r regions) complete() bool { return r.summary && r.header && r.breakdown }

func (r regions) anyPresent() bool { return r.summary || r.header || r.breakdown }

// inspectRange covers rows 1 through the end of the breakdown in A:H.
func inspectRange(n int) string {
	return fmt.Sprintf("A1:H%d", BreakdownStartRow+n-1)
}

// readRegions derives format and region presence from an A1:H read.
func readRegions(vr sheets.ValueRange, types []string) (Format, regions) {
	var r regions
	r.summary = matchLabels(vr, 3, 5, SummaryLabels) && vr.String(4, 6) != "" && vr.String(4, 7) != ""
	r.header = matchLabels(vr, 4, 0, HeaderLabels)
	r.breakdown = len(types) > 0
	for i, t := range types {
		if !strings.EqualFold(vr.String(BreakdownStartRow-1+i, 5), t) {
			r.breakdown = false
			break
		}
	}
	switch {
	case r.anyPresent():
		return FormatNew, r
	case matchLabels(vr, 0, 0, oldLabels):
		return FormatOld, r
	default:
		return FormatUnknown, r
	}
}
