package ledger

import (
	"strings"
	"time"
)

const nameLayout = "Jan 2006"

// MonthlyLedgerName returns the tab name for t's calendar month, e.g. "Feb 2026".
func MonthlyLedgerName(t time.Time) string {
	return t.Format(nameLayout)
}

// IsMonthlyLedgerName reports whether name is exactly a MonthlyLedgerName output.
func IsMonthlyLedgerName(name string) bool {
	t, err := time.Parse(nameLayout, strings.TrimSpace(name))
	if err != nil {
		return false
	}
	return MonthlyLedgerName(t) == name
}
