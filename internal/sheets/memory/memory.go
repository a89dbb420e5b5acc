// Package memory is an in-process sheets.Backend used by tests and by the
// "memory" data backend for local development.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"expensebot/internal/sheets"
)

type Store struct {
	mu     sync.Mutex
	order  []string
	tabs   map[string]*tab
	calls  map[string]int
	format map[string][]sheets.GridRange

	// FailOn, when set, is consulted before every operation; a non-nil
	// return is reported as that operation's error.
	FailOn func(op, rng string) error
}

type tab struct {
	cells [][]any
}

var _ sheets.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		tabs:   map[string]*tab{},
		calls:  map[string]int{},
		format: map[string][]sheets.GridRange{},
	}
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Raw returns the stored (unevaluated) content of a single cell, e.g. Raw("Feb 2026", "G5").
func (s *Store) Raw(sheet, cell string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tabs[sheet]
	if !ok {
		return nil
	}
	g, err := sheets.ParseGrid(cell)
	if err != nil {
		return nil
	}
	return t.get(g.StartRow, g.StartCol)
}

// Formatted returns the ranges passed to FormatCurrency for a tab.
func (s *Store) Formatted(sheet string) []sheets.GridRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.GridRange(nil), s.format[sheet]...)
}

func (s *Store) enter(op, rng string) error {
	s.calls[op]++
	if s.FailOn != nil {
		if err := s.FailOn(op, rng); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) lookup(op, qualified string) (*tab, sheets.GridRange, error) {
	name, cells := sheets.SplitA1(qualified)
	t, ok := s.tabs[name]
	if !ok {
		return nil, sheets.GridRange{}, sheets.NewError(sheets.ErrSheetNotFound, op, fmt.Errorf("unable to parse range: %s", qualified))
	}
	g, err := sheets.ParseGrid(cells)
	if err != nil {
		return nil, sheets.GridRange{}, sheets.NewError(sheets.ErrBackend, op, err)
	}
	return t, g, nil
}

func (s *Store) GetValues(_ context.Context, rng string) (sheets.ValueRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("get", rng); err != nil {
		return sheets.ValueRange{}, err
	}
	t, g, err := s.lookup("get", rng)
	if err != nil {
		return sheets.ValueRange{}, err
	}
	endRow, endCol := g.EndRow, g.EndCol
	if endRow < 0 {
		endRow = len(t.cells)
	}
	var out [][]any
	for r := g.StartRow; r < endRow && r < len(t.cells); r++ {
		last := endCol
		if last < 0 || last > len(t.cells[r]) {
			last = len(t.cells[r])
		}
		var row []any
		for c := g.StartCol; c < last; c++ {
			v := t.eval(t.get(r, c), 0)
			if v == nil {
				v = ""
			}
			row = append(row, v)
		}
		row = trimRow(row)
		out = append(out, row)
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return sheets.ValueRange{Range: rng, Values: out}, nil
}

func (s *Store) UpdateValues(_ context.Context, rng string, values [][]any, mode sheets.InputMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("update", rng); err != nil {
		return err
	}
	t, g, err := s.lookup("update", rng)
	if err != nil {
		return err
	}
	t.write(g.StartRow, g.StartCol, values, mode)
	return nil
}

func (s *Store) AppendValues(_ context.Context, rng string, values [][]any, mode sheets.InputMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("append", rng); err != nil {
		return err
	}
	t, g, err := s.lookup("append", rng)
	if err != nil {
		return err
	}
	next := g.StartRow
	for r := g.StartRow; r < len(t.cells); r++ {
		last := g.EndCol
		if last < 0 || last > len(t.cells[r]) {
			last = len(t.cells[r])
		}
		for c := g.StartCol; c < last; c++ {
			if sheets.CellString(t.cells[r][c]) != "" {
				next = r + 1
				break
			}
		}
	}
	t.write(next, g.StartCol, values, mode)
	return nil
}

func (s *Store) ClearValues(_ context.Context, rng string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("clear", rng); err != nil {
		return err
	}
	t, g, err := s.lookup("clear", rng)
	if err != nil {
		return err
	}
	for r := g.StartRow; r < len(t.cells) && (g.EndRow < 0 || r < g.EndRow); r++ {
		for c := g.StartCol; c < len(t.cells[r]) && (g.EndCol < 0 || c < g.EndCol); c++ {
			t.cells[r][c] = nil
		}
	}
	return nil
}

func (s *Store) AddSheet(_ context.Context, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("add_sheet", title); err != nil {
		return err
	}
	if _, ok := s.tabs[title]; ok {
		return sheets.NewError(sheets.ErrDuplicateSheet, "add_sheet", fmt.Errorf("a sheet with the name %q already exists", title))
	}
	s.tabs[title] = &tab{}
	s.order = append(s.order, title)
	return nil
}

func (s *Store) ListSheets(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("list", ""); err != nil {
		return nil, err
	}
	return append([]string(nil), s.order...), nil
}

func (s *Store) FormatCurrency(_ context.Context, title string, ranges []sheets.GridRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter("format", title); err != nil {
		return err
	}
	if _, ok := s.tabs[title]; !ok {
		return sheets.NewError(sheets.ErrSheetNotFound, "format", fmt.Errorf("no sheet %q", title))
	}
	s.format[title] = append(s.format[title], ranges...)
	return nil
}

func (t *tab) get(r, c int) any {
	if r < 0 || r >= len(t.cells) || c < 0 || c >= len(t.cells[r]) {
		return nil
	}
	return t.cells[r][c]
}

func (t *tab) write(row, col int, values [][]any, mode sheets.InputMode) {
	for i, vals := range values {
		r := row + i
		for len(t.cells) <= r {
			t.cells = append(t.cells, nil)
		}
		for j, v := range vals {
			c := col + j
			for len(t.cells[r]) <= c {
				t.cells[r] = append(t.cells[r], nil)
			}
			t.cells[r][c] = normalize(v, mode)
		}
	}
}

// normalize mimics the backend's value input handling: numbers become
// float64, an empty string clears the cell and, for UserEntered, numeric
// strings are parsed.
func normalize(v any, mode sheets.InputMode) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case string:
		if x == "" {
			return nil
		}
		if mode == sheets.UserEntered && !strings.HasPrefix(x, "=") {
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f
			}
		}
		return x
	}
	return v
}

func trimRow(row []any) []any {
	for len(row) > 0 && sheets.CellString(row[len(row)-1]) == "" {
		row = row[:len(row)-1]
	}
	if len(row) == 0 {
		return []any{}
	}
	return row
}

var (
	reSum    = regexp.MustCompile(`^=SUM\(([A-Z]+\d*:[A-Z]+\d*)\)$`)
	reDiff   = regexp.MustCompile(`^=([A-Z]+\d+)-([A-Z]+\d+)$`)
	reSumIf  = regexp.MustCompile(`^=SUMIF\(([A-Z]+\d*:[A-Z]+\d*),([A-Z]+\d+),([A-Z]+\d*:[A-Z]+\d*)\)$`)
	maxDepth = 8
)

// eval evaluates the small set of formulas the ledger layout writes
// (SUM over a column, a cell difference, SUMIF by label). Anything else is
// returned verbatim.
func (t *tab) eval(v any, depth int) any {
	f, ok := v.(string)
	if !ok || !strings.HasPrefix(f, "=") || depth > maxDepth {
		return v
	}
	f = strings.ToUpper(strings.ReplaceAll(f, " ", ""))
	if m := reSum.FindStringSubmatch(f); m != nil {
		g, err := sheets.ParseGrid(m[1])
		if err != nil {
			return v
		}
		var sum float64
		t.each(g, func(r, c int) { sum += t.number(r, c, depth) })
		return sum
	}
	if m := reDiff.FindStringSubmatch(f); m != nil {
		a, errA := sheets.ParseGrid(m[1])
		b, errB := sheets.ParseGrid(m[2])
		if errA != nil || errB != nil {
			return v
		}
		return t.number(a.StartRow, a.StartCol, depth) - t.number(b.StartRow, b.StartCol, depth)
	}
	if m := reSumIf.FindStringSubmatch(f); m != nil {
		crit, errC := sheets.ParseGrid(m[1])
		key, errK := sheets.ParseGrid(m[2])
		sum, errS := sheets.ParseGrid(m[3])
		if errC != nil || errK != nil || errS != nil {
			return v
		}
		want := sheets.CellString(t.eval(t.get(key.StartRow, key.StartCol), depth+1))
		var total float64
		t.each(crit, func(r, c int) {
			if strings.EqualFold(sheets.CellString(t.get(r, c)), want) {
				total += t.number(sum.StartRow+(r-crit.StartRow), sum.StartCol, depth)
			}
		})
		return total
	}
	return v
}

func (t *tab) each(g sheets.GridRange, fn func(r, c int)) {
	for r := g.StartRow; r < len(t.cells) && (g.EndRow < 0 || r < g.EndRow); r++ {
		for c := g.StartCol; c < len(t.cells[r]) && (g.EndCol < 0 || c < g.EndCol); c++ {
			fn(r, c)
		}
	}
}

func (t *tab) number(r, c, depth int) float64 {
	switch x := t.eval(t.get(r, c), depth+1).(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err == nil {
			return f
		}
	}
	return 0
}
