// Package ledger maintains monthly expense tabs on a sheets.Backend: their
// layout (summary, header, breakdown), appends, totals and migrations.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/singleflight"

	"expensebot/internal/core"
	"expensebot/internal/log"
	"expensebot/internal/sheets"
)

// ErrOldLayout is returned by writes to a tab that still uses the old
// Date/Amount/Description layout.
var ErrOldLayout = errors.New("ledger uses the old layout and must be migrated")

// Result reports the outcome of an operation that may absorb cosmetic
// failures. Warnings never include a fatal error.
type Result struct {
	Created  bool
	Repaired []string
	Warnings []error
}

func (r *Result) warn(err error) {
	if err != nil {
		r.Warnings = append(r.Warnings, err)
	}
}

func (r *Result) merge(o Result) {
	r.Created = r.Created || o.Created
	r.Repaired = append(r.Repaired, o.Repaired...)
	r.Warnings = append(r.Warnings, o.Warnings...)
}

// MigrationResult reports what Migrate did to a tab.
type MigrationResult struct {
	Result
	From         Format
	RowsMigrated int
	RowsSkipped  int
}

type Manager struct {
	backend       sheets.Backend
	types         []string
	defaultTarget core.Money
	logger        *log.Logger
	creating      singleflight.Group
}

type Option func(*Manager)

func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithDefaultTarget sets the F5 target written when a tab is created.
func WithDefaultTarget(t core.Money) Option {
	return func(m *Manager) { m.defaultTarget = t }
}

func NewManager(backend sheets.Backend, opts ...Option) *Manager {
	m := &Manager{
		backend: backend,
		types:   core.BreakdownTypes(),
	}
	for _, o := range opts {
		o(m)
	}
	if m.logger == nil {
		m.logger = log.New(log.Config{Component: log.ComponentLedger})
	}
	return m
}

// DefaultTarget returns the target used for new tabs.
func (m *Manager) DefaultTarget() core.Money { return m.defaultTarget }

// Exists reports whether a tab named name is present.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	names, err := m.backend.ListSheets(ctx)
	if err != nil {
		return false, fmt.Errorf("list sheets: %w", err)
	}
	return slices.Contains(names, name), nil
}

// EnsureLedger creates and initializes the tab when it is absent. An existing
// tab is left untouched. A concurrent creation reported by the backend as a
// duplicate counts as already existing.
func (m *Manager) EnsureLedger(ctx context.Context, name string) (Result, error) {
	v, err, _ := m.creating.Do(name, func() (any, error) {
		return m.ensure(ctx, name)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (m *Manager) ensure(ctx context.Context, name string) (Result, error) {
	ok, err := m.Exists(ctx, name)
	if err != nil {
		return Result{}, err
	}
	if ok {
		return Result{}, nil
	}
	if err := m.backend.AddSheet(ctx, name); err != nil {
		if errors.Is(err, sheets.ErrDuplicateSheet) {
			m.logger.InfoContext(ctx, "Ledger created concurrently", log.FieldLedger, name)
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("create ledger %s: %w", name, err)
	}
	res, err := m.InitializeStructure(ctx, name, m.defaultTarget)
	if err != nil {
		return Result{}, err
	}
	res.Created = true
	m.logger.InfoContext(ctx, "Ledger created", log.FieldLedger, name, log.FieldAmountCents, m.defaultTarget.Cents)
	return res, nil
}

// InitializeStructure writes the summary labels, the summary values, the
// ledger header and the breakdown, then applies currency formatting. Only
// the formatting step may fail without failing the call.
func (m *Manager) InitializeStructure(ctx context.Context, name string, target core.Money) (Result, error) {
	var res Result
	if err := m.writeSummary(ctx, name, target); err != nil {
		return res, err
	}
	if err := m.writeHeader(ctx, name); err != nil {
		return res, err
	}
	if err := m.writeBreakdown(ctx, name); err != nil {
		return res, err
	}
	res.warn(m.format(ctx, name))
	return res, nil
}

func (m *Manager) writeSummary(ctx context.Context, name string, target core.Money) error {
	if err := m.backend.UpdateValues(ctx, sheets.A1(name, rangeSummaryLabels), labelRow(SummaryLabels), sheets.Raw); err != nil {
		return fmt.Errorf("write summary labels: %w", err)
	}
	values := [][]any{{target.Float(), FormulaTotal, FormulaRemain}}
	if err := m.backend.UpdateValues(ctx, sheets.A1(name, rangeSummaryValues), values, sheets.UserEntered); err != nil {
		return fmt.Errorf("write summary values: %w", err)
	}
	return nil
}

func (m *Manager) writeHeader(ctx context.Context, name string) error {
	if err := m.backend.UpdateValues(ctx, sheets.A1(name, rangeHeader), labelRow(HeaderLabels), sheets.Raw); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	return nil
}

func (m *Manager) writeBreakdown(ctx context.Context, name string) error {
	rng := sheets.A1(name, breakdownRange(len(m.types)))
	if err := m.backend.UpdateValues(ctx, rng, breakdownRows(m.types), sheets.UserEntered); err != nil {
		return fmt.Errorf("write breakdown: %w", err)
	}
	return nil
}

// format applies the currency format. Failures are logged and returned as
// a warning for the caller's Result.
func (m *Manager) format(ctx context.Context, name string) error {
	if err := m.backend.FormatCurrency(ctx, name, currencyRanges(len(m.types))); err != nil {
		m.logger.WarnContext(ctx, "Currency formatting failed", log.FieldLedger, name, log.FieldError, err)
		return fmt.Errorf("format %s: %w", name, err)
	}
	return nil
}

// reassertFormulas rewrites G5:H5. Failures are logged and returned as a warning.
func (m *Manager) reassertFormulas(ctx context.Context, name string) error {
	values := [][]any{{FormulaTotal, FormulaRemain}}
	if err := m.backend.UpdateValues(ctx, sheets.A1(name, rangeFormulas), values, sheets.UserEntered); err != nil {
		m.logger.WarnContext(ctx, "Summary formulas not re-asserted", log.FieldLedger, name, log.FieldError, err)
		return fmt.Errorf("re-assert summary: %w", err)
	}
	return nil
}

// inspect reads the layout area of a tab. A missing tab or a read failure
// is reported as FormatUnknown with no regions.
func (m *Manager) inspect(ctx context.Context, name string) (Format, regions, error) {
	vr, err := m.backend.GetValues(ctx, sheets.A1(name, inspectRange(len(m.types))))
	if err != nil {
		return FormatUnknown, regions{}, err
	}
	f, r := readRegions(vr, m.types)
	return f, r, nil
}

// DetectFormat classifies a tab by its header cells. It never fails: a
// missing, empty or unreadable tab is FormatUnknown.
func (m *Manager) DetectFormat(ctx context.Context, name string) Format {
	f, _, err := m.inspect(ctx, name)
	if err != nil && !errors.Is(err, sheets.ErrSheetNotFound) {
		m.logger.WarnContext(ctx, "Format detection failed", log.FieldLedger, name, log.FieldError, err)
	}
	return f
}

// Repair rewrites only the regions missing from a new-format tab. Result.Repaired
// names the regions that were written.
func (m *Manager) Repair(ctx context.Context, name string) (Result, error) {
	var res Result
	f, r, err := m.inspect(ctx, name)
	if err != nil {
		return res, fmt.Errorf("inspect %s: %w", name, err)
	}
	if f == FormatOld || r.complete() {
		return res, nil
	}
	if !r.summary {
		if err := m.repairSummary(ctx, name); err != nil {
			return res, err
		}
		res.Repaired = append(res.Repaired, "summary")
	}
	if !r.header {
		if err := m.writeHeader(ctx, name); err != nil {
			return res, err
		}
		res.Repaired = append(res.Repaired, "header")
	}
	if !r.breakdown {
		if err := m.writeBreakdown(ctx, name); err != nil {
			return res, err
		}
		res.Repaired = append(res.Repaired, "breakdown")
	}
	res.warn(m.format(ctx, name))
	m.logger.InfoContext(ctx, "Ledger repaired", log.FieldLedger, name, "regions", res.Repaired)
	return res, nil
}

// repairSummary keeps an existing target literal and rewrites the rest.
func (m *Manager) repairSummary(ctx context.Context, name string) error {
	target := m.defaultTarget
	vr, err := m.backend.GetValues(ctx, sheets.A1(name, rangeTarget))
	if err != nil {
		return fmt.Errorf("read target: %w", err)
	}
	if v, ok := vr.Cell(0, 0); ok {
		if t, ok := amountFromCell(v); ok {
			target = t
		}
	}
	return m.writeSummary(ctx, name, target)
}

// Migrate converts a tab to the new layout. A missing tab is created, a new
// tab only gets its missing regions repaired and an unknown tab is
// initialized from scratch. An old tab without preserve is cleared. With
// preserve, rows that carry a date, a nonzero amount and a description are
// moved to row 6 before the layout is written.
func (m *Manager) Migrate(ctx context.Context, name string, preserve bool) (MigrationResult, error) {
	var res MigrationResult
	ok, err := m.Exists(ctx, name)
	if err != nil {
		return res, err
	}
	if !ok {
		r, err := m.EnsureLedger(ctx, name)
		res.Result = r
		return res, err
	}
	res.From, _, err = m.inspect(ctx, name)
	if err != nil {
		return res, fmt.Errorf("inspect %s: %w", name, err)
	}
	switch res.From {
	case FormatNew:
		r, err := m.Repair(ctx, name)
		res.Result = r
		return res, err
	case FormatUnknown:
		r, err := m.InitializeStructure(ctx, name, m.defaultTarget)
		res.Result = r
		return res, err
	}

	if preserve {
		if err := m.relocateLegacyRows(ctx, name, &res); err != nil {
			return res, err
		}
	} else if err := m.backend.ClearValues(ctx, sheets.A1(name, "")); err != nil {
		return res, fmt.Errorf("clear legacy layout: %w", err)
	}
	r, err := m.InitializeStructure(ctx, name, m.defaultTarget)
	res.merge(r)
	if err != nil {
		return res, err
	}
	res.warn(m.reassertFormulas(ctx, name))
	m.logger.InfoContext(ctx, "Ledger migrated", log.FieldLedger, name,
		"rows_migrated", res.RowsMigrated, "rows_skipped", res.RowsSkipped)
	return res, nil
}

// relocateLegacyRows rewrites A:D of an old tab in a single update: the new
// header on row 5, the salvaged rows from row 6 and every other legacy cell
// blanked. Once it succeeds the tab reads as a partial new layout holding
// the rows, so an interrupted migration is finished by Repair.
func (m *Manager) relocateLegacyRows(ctx context.Context, name string, res *MigrationResult) error {
	vr, err := m.backend.GetValues(ctx, sheets.A1(name, rangeOldData))
	if err != nil {
		return fmt.Errorf("read legacy rows: %w", err)
	}
	var rows [][]any
	skipped := 0
	for _, row := range vr.Values {
		if blankRow(row) {
			continue
		}
		out, ok := salvage(row)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, out)
	}

	last := max(HeaderRow, len(vr.Values)+1, HeaderRow+len(rows))
	grid := make([][]any, last)
	for i := range grid {
		grid[i] = []any{"", "", "", ""}
	}
	grid[HeaderRow-1] = labelRow(HeaderLabels)[0]
	copy(grid[DataStartRow-1:], rows)

	if err := m.backend.UpdateValues(ctx, sheets.A1(name, fmt.Sprintf("A1:D%d", last)), grid, sheets.Raw); err != nil {
		return fmt.Errorf("write migrated rows: %w", err)
	}
	res.RowsMigrated = len(rows)
	res.RowsSkipped = skipped
	return nil
}

// salvage converts an old-format [date, amount, description] row.
func salvage(row []any) ([]any, bool) {
	if len(row) < 3 {
		return nil, false
	}
	d, ok := dateFromCell(row[0])
	if !ok {
		return nil, false
	}
	amt, ok := amountFromCell(row[1])
	if !ok || amt.Cents == 0 {
		return nil, false
	}
	desc := sheets.CellString(row[2])
	if desc == "" {
		return nil, false
	}
	return []any{d.String(), "", amt.Float(), desc}, true
}

// Reset discards every cell of the tab, creating it when absent, and writes
// a fresh layout with the given target. It does not ask for confirmation.
func (m *Manager) Reset(ctx context.Context, name string, target core.Money) (Result, error) {
	var res Result
	ok, err := m.Exists(ctx, name)
	if err != nil {
		return res, err
	}
	if ok {
		if err := m.backend.ClearValues(ctx, sheets.A1(name, "")); err != nil {
			return res, fmt.Errorf("clear %s: %w", name, err)
		}
	} else {
		err := m.backend.AddSheet(ctx, name)
		switch {
		case err == nil:
			res.Created = true
		case !errors.Is(err, sheets.ErrDuplicateSheet):
			return res, fmt.Errorf("create ledger %s: %w", name, err)
		}
	}
	r, err := m.InitializeStructure(ctx, name, target)
	res.merge(r)
	if err != nil {
		return res, err
	}
	m.logger.InfoContext(ctx, "Ledger reset", log.FieldLedger, name, log.FieldAmountCents, target.Cents)
	return res, nil
}

// AppendExpense ensures the tab exists and appends
// [date, type, amount, description]. The author is not stored.
func (m *Manager) AppendExpense(ctx context.Context, name string, e core.Expense) (Result, error) {
	if err := e.Validate(); err != nil {
		return Result{}, fmt.Errorf("validation failed: %w", err)
	}
	res, err := m.ensureWritable(ctx, name)
	if err != nil {
		return res, err
	}
	row := [][]any{{e.Date.String(), e.Type, e.Amount.Float(), e.Description}}
	if err := m.backend.AppendValues(ctx, sheets.A1(name, rangeData), row, sheets.Raw); err != nil {
		return res, fmt.Errorf("append expense: %w", err)
	}
	res.warn(m.reassertFormulas(ctx, name))
	return res, nil
}

// SetTarget overwrites the F5 literal, creating the tab if needed.
func (m *Manager) SetTarget(ctx context.Context, name string, target core.Money) (Result, error) {
	res, err := m.ensureWritable(ctx, name)
	if err != nil {
		return res, err
	}
	if err := m.backend.UpdateValues(ctx, sheets.A1(name, rangeTarget), [][]any{{target.Float()}}, sheets.Raw); err != nil {
		return res, fmt.Errorf("write target: %w", err)
	}
	res.warn(m.reassertFormulas(ctx, name))
	return res, nil
}

// ensureWritable is EnsureLedger for writers: an existing tab in the old
// layout is refused with ErrOldLayout.
func (m *Manager) ensureWritable(ctx context.Context, name string) (Result, error) {
	res, err := m.EnsureLedger(ctx, name)
	if err != nil || res.Created {
		return res, err
	}
	f, _, err := m.inspect(ctx, name)
	if err != nil {
		return res, fmt.Errorf("inspect %s: %w", name, err)
	}
	if f == FormatOld {
		m.logger.WarnContext(ctx, "Write refused on old layout", log.FieldLedger, name)
		return res, fmt.Errorf("%s: %w", name, ErrOldLayout)
	}
	return res, nil
}

// ReadExpenses returns the data rows of a tab in sheet order. A missing tab
// has no expenses.
func (m *Manager) ReadExpenses(ctx context.Context, name string) ([]core.Expense, error) {
	vr, err := m.backend.GetValues(ctx, sheets.A1(name, rangeData))
	if err != nil {
		if errors.Is(err, sheets.ErrSheetNotFound) {
			return []core.Expense{}, nil
		}
		return nil, fmt.Errorf("read expenses %s: %w", name, err)
	}
	out := make([]core.Expense, 0, len(vr.Values))
	for _, row := range vr.Values {
		if blankRow(row) {
			continue
		}
		out = append(out, rowToExpense(row))
	}
	return out, nil
}

// Ledgers lists the monthly tabs in backend order.
func (m *Manager) Ledgers(ctx context.Context) ([]string, error) {
	names, err := m.backend.ListSheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if IsMonthlyLedgerName(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

// ReadAllExpenses concatenates the expenses of every monthly tab.
func (m *Manager) ReadAllExpenses(ctx context.Context) ([]core.Expense, error) {
	names, err := m.Ledgers(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.Expense
	for _, n := range names {
		es, err := m.ReadExpenses(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, es...)
	}
	return out, nil
}

// Total sums the amounts currently stored in a tab.
func (m *Manager) Total(ctx context.Context, name string) (core.Money, error) {
	es, err := m.ReadExpenses(ctx, name)
	if err != nil {
		return core.Money{}, err
	}
	return core.SumAmounts(es), nil
}

// TotalAll sums the amounts of every monthly tab.
func (m *Manager) TotalAll(ctx context.Context) (core.Money, error) {
	es, err := m.ReadAllExpenses(ctx)
	if err != nil {
		return core.Money{}, err
	}
	return core.SumAmounts(es), nil
}

// ReadSummary returns the summary row as evaluated by the backend.
func (m *Manager) ReadSummary(ctx context.Context, name string) (core.Summary, error) {
	vr, err := m.backend.GetValues(ctx, sheets.A1(name, rangeSummaryValues))
	if err != nil {
		if errors.Is(err, sheets.ErrSheetNotFound) {
			return core.Summary{}, nil
		}
		return core.Summary{}, fmt.Errorf("read summary %s: %w", name, err)
	}
	var s core.Summary
	for i, dst := range []*core.Money{&s.Target, &s.Total, &s.Remain} {
		if v, ok := vr.Cell(0, i); ok {
			*dst, _ = amountFromCell(v)
		}
	}
	return s, nil
}

// ReadBreakdown sums the tab's expenses per catalog type.
func (m *Manager) ReadBreakdown(ctx context.Context, name string) ([]core.TypeAmount, error) {
	es, err := m.ReadExpenses(ctx, name)
	if err != nil {
		return nil, err
	}
	return core.Breakdown(es), nil
}
