package core

// TypeAmount represents an amount aggregated by expense type.
type TypeAmount struct {
	Name   string
	Amount Money
}

// Summary mirrors the summary region of a monthly ledger tab.
type Summary struct {
	Target Money
	Total  Money
	Remain Money
}

// SumAmounts adds up the amounts of the given expenses.
func SumAmounts(expenses []Expense) Money {
	var total Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// Breakdown groups expenses by catalog type, in catalog order. Uncategorised
// expenses are reported under TypeNone. Types with no expenses are included
// with a zero amount so the result always has one entry per catalog type.
func Breakdown(expenses []Expense) []TypeAmount {
	sums := make(map[string]int64, len(catalog))
	for _, e := range expenses {
		t := e.Type
		if t == "" || !IsType(t) {
			t = TypeNone
		}
		sums[t] += e.Amount.Cents
	}
	out := make([]TypeAmount, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, TypeAmount{Name: t, Amount: Money{Cents: sums[t]}})
	}
	return out
}
