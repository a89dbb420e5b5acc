package sheets

import (
	"fmt"
	"strconv"
	"strings"
)

// GridRange is a zero-based, half-open rectangle. An end of -1 is unbounded.
type GridRange struct {
	StartRow, EndRow int
	StartCol, EndCol int
}

// A1 qualifies an A1 range with a quoted tab name: A1("Feb 2026", "A1:D5")
// returns 'Feb 2026'!A1:D5. An empty rng addresses the whole tab.
func A1(sheet, rng string) string {
	q := "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	if rng == "" {
		return q
	}
	return q + "!" + rng
}

// Cell formats a one-based row and zero-based column as an A1 cell, e.g. (5, 5) -> F5.
func Cell(row, col int) string {
	return ColumnName(col) + strconv.Itoa(row)
}

// ColumnName converts a zero-based column index to letters (0 -> A, 26 -> AA).
func ColumnName(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}

// SplitA1 separates a qualified range into its tab name and cell part.
func SplitA1(qualified string) (sheet, rng string) {
	if strings.HasPrefix(qualified, "'") {
		for i := 1; i < len(qualified); i++ {
			if qualified[i] != '\'' {
				continue
			}
			if i+1 < len(qualified) && qualified[i+1] == '\'' {
				i++
				continue
			}
			sheet = strings.ReplaceAll(qualified[1:i], "''", "'")
			rest := qualified[i+1:]
			return sheet, strings.TrimPrefix(rest, "!")
		}
		return strings.Trim(qualified, "'"), ""
	}
	if i := strings.LastIndexByte(qualified, '!'); i >= 0 {
		return qualified[:i], qualified[i+1:]
	}
	return qualified, ""
}

// ParseGrid parses the cell part of an A1 range ("A1", "A1:D5", "C6:C",
// "A:A") into a GridRange. An empty string covers the whole tab.
func ParseGrid(rng string) (GridRange, error) {
	if rng == "" {
		return GridRange{EndRow: -1, EndCol: -1}, nil
	}
	start, end, hasEnd := strings.Cut(strings.ToUpper(rng), ":")
	sr, sc, err := parseCell(start)
	if err != nil {
		return GridRange{}, err
	}
	g := GridRange{StartRow: 0, EndRow: -1, StartCol: 0, EndCol: -1}
	if sr >= 0 {
		g.StartRow = sr
	}
	if sc >= 0 {
		g.StartCol = sc
	}
	if !hasEnd {
		if sr < 0 || sc < 0 {
			return GridRange{}, fmt.Errorf("invalid range %q", rng)
		}
		g.EndRow, g.EndCol = sr+1, sc+1
		return g, nil
	}
	er, ec, err := parseCell(end)
	if err != nil {
		return GridRange{}, err
	}
	if er >= 0 {
		g.EndRow = er + 1
	}
	if ec >= 0 {
		g.EndCol = ec + 1
	}
	return g, nil
}

// parseCell returns zero-based row and column; -1 marks an omitted part.
func parseCell(s string) (row, col int, err error) {
	i := 0
	col = -1
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		if col < 0 {
			col = 0
		}
		col = col*26 + int(s[i]-'A'+1)
		i++
	}
	if col > 0 {
		col--
	}
	row = -1
	if i < len(s) {
		n, convErr := strconv.Atoi(s[i:])
		if convErr != nil || n < 1 {
			return 0, 0, fmt.Errorf("invalid cell %q", s)
		}
		row = n - 1
	}
	if row < 0 && col < 0 {
		return 0, 0, fmt.Errorf("invalid cell %q", s)
	}
	return row, col, nil
}
