package core

import "strings"

// TypeNone is the catalog sentinel for an uncategorised expense.
const TypeNone = "None"

// catalog order drives the breakdown section layout and the selection menu.
var catalog = []string{
	"Super Market",
	"Food",
	"Transport",
	"Bills",
	"Rent",
	"Health",
	"Shopping",
	"Entertainment",
	"Other",
	TypeNone,
}

// Types returns the full Type Catalog, sentinel included.
func Types() []string {
	return append([]string(nil), catalog...)
}

// BreakdownTypes returns the catalog without the TypeNone sentinel.
func BreakdownTypes() []string {
	out := make([]string, 0, len(catalog)-1)
	for _, t := range catalog {
		if t == TypeNone {
			continue
		}
		out = append(out, t)
	}
	return out
}

// IsType reports whether name is a catalog entry (exact match).
func IsType(name string) bool {
	for _, t := range catalog {
		if t == name {
			return true
		}
	}
	return false
}

// NormalizeType maps user input to the canonical catalog spelling.
// TypeNone and blank input map to "", meaning uncategorised.
func NormalizeType(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", true
	}
	for _, t := range catalog {
		if strings.EqualFold(t, name) {
			if t == TypeNone {
				return "", true
			}
			return t, true
		}
	}
	return "", false
}
