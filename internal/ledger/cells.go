package ledger

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensebot/internal/core"
	"expensebot/internal/sheets"
)

// serialEpoch is day zero of spreadsheet date serial numbers.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// amountFromCell reads a numeric cell. Numbers typed as text, with either
// decimal separator, are accepted; anything else yields ok=false.
func amountFromCell(v any) (core.Money, bool) {
	switch x := v.(type) {
	case float64:
		return core.MoneyFromFloat(x), true
	case int:
		return core.Money{Cents: int64(x) * 100}, true
	case int64:
		return core.Money{Cents: x * 100}, true
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), ",", ".")
		if s == "" {
			return core.Money{}, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return core.Money{}, false
		}
		return core.Money{Cents: d.Shift(2).Round(0).IntPart()}, true
	}
	return core.Money{}, false
}

// dateFromCell accepts ISO date strings and date serial numbers.
func dateFromCell(v any) (core.Date, bool) {
	switch x := v.(type) {
	case float64:
		if x <= 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return core.Date{}, false
		}
		return core.DateOf(serialEpoch.AddDate(0, 0, int(x))), true
	case string:
		d, err := core.ParseDate(x)
		if err != nil {
			return core.Date{}, false
		}
		return d, true
	}
	return core.Date{}, false
}

// rowToExpense converts a new-format data row. Short rows default the
// missing cells to empty or zero.
func rowToExpense(row []any) core.Expense {
	cell := func(i int) any {
		if i < len(row) {
			return row[i]
		}
		return nil
	}
	var e core.Expense
	e.Date, _ = dateFromCell(cell(0))
	if t := sheets.CellString(cell(1)); !strings.EqualFold(t, core.TypeNone) {
		e.Type = t
	}
	e.Amount, _ = amountFromCell(cell(2))
	e.Description = sheets.CellString(cell(3))
	return e
}

func blankRow(row []any) bool {
	for _, c := range row {
		if sheets.CellString(c) != "" {
			return false
		}
	}
	return true
}
