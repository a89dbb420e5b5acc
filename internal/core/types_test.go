package core

import "testing"

func TestCatalogIsDuplicateFreeAndHasSentinel(t *testing.T) {
	seen := map[string]bool{}
	hasNone := false
	for _, ty := range Types() {
		if seen[ty] {
			t.Fatalf("duplicate type %q", ty)
		}
		seen[ty] = true
		if ty == TypeNone {
			hasNone = true
		}
	}
	if !hasNone {
		t.Fatal("catalog must contain the none sentinel")
	}
	if len(BreakdownTypes()) != len(Types())-1 {
		t.Fatalf("breakdown types should exclude only the sentinel")
	}
	for _, ty := range BreakdownTypes() {
		if ty == TypeNone {
			t.Fatal("breakdown types must not contain the sentinel")
		}
	}
}

func TestNormalizeType(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Super Market", "Super Market", true},
		{"super market", "Super Market", true},
		{"None", "", true},
		{"", "", true},
		{"Yachts", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeType(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("NormalizeType(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBreakdown(t *testing.T) {
	rows := []Expense{
		{Type: "Food", Amount: Money{Cents: 1000}},
		{Type: "Food", Amount: Money{Cents: 250}},
		{Type: "", Amount: Money{Cents: 300}},
	}
	got := Breakdown(rows)
	if len(got) != len(Types()) {
		t.Fatalf("expected one entry per type, got %d", len(got))
	}
	find := func(name string) int64 {
		for _, r := range got {
			if r.Name == name {
				return r.Amount.Cents
			}
		}
		return -1
	}
	if find("Food") != 1250 || find(TypeNone) != 300 || find("Bills") != 0 {
		t.Fatalf("unexpected breakdown: %+v", got)
	}
	if SumAmounts(rows).Cents != 1550 {
		t.Fatalf("unexpected sum")
	}
}
