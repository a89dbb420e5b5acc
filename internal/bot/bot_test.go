package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"expensebot/internal/access"
	"expensebot/internal/command"
	"expensebot/internal/core"
	"expensebot/internal/ledger"
	"expensebot/internal/log"
	"expensebot/internal/metrics"
	"expensebot/internal/sheets"
	"expensebot/internal/sheets/memory"
)

const (
	adminID = int64(1)
	userID  = int64(2)
	chatID  = int64(100)
	month   = "Feb 2026"
)

type fixture struct {
	bot   *Service
	store *memory.Store
	acl   *access.Ledger
	m     *ledger.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return time.Date(2026, time.February, 14, 18, 0, 0, 0, time.UTC) }

	store := memory.New()
	m := ledger.NewManager(store, ledger.WithLogger(log.Discard()), ledger.WithDefaultTarget(core.Money{Cents: 100000}))
	ls := ledger.NewService(m, ledger.WithClock(clock))
	acl := access.NewLedger(ctx, nil, adminID, log.Discard())
	if _, err := acl.Approve(ctx, userID); err != nil {
		t.Fatal(err)
	}
	n := 0
	b := New(ls, acl,
		WithParser(&command.Parser{Now: clock}),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
		WithLogger(log.Discard()),
		WithMetrics(metrics.New()),
		WithDefaultTarget(core.Money{Cents: 100000}),
	)
	return &fixture{bot: b, store: store, acl: acl, m: m}
}

func (f *fixture) send(from int64, text string) Reply {
	return f.bot.HandleMessage(context.Background(), Message{ChatID: chatID, UserID: from, Username: "user", Text: text})
}

func (f *fixture) pick(from int64, data string) Reply {
	return f.bot.HandleSelection(context.Background(), Selection{ChatID: chatID, UserID: from, Data: data})
}

func TestExpenseEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before, _ := f.m.Total(ctx, month)

	r := f.send(userID, "/expense 50 groceries")
	if r.Menu == nil || r.Menu.CorrelationID != "id-1" {
		t.Fatalf("expected category menu, got %+v", r)
	}
	if len(r.Menu.Choices) != len(core.Types())+1 || r.Menu.Choices[0].Label != "Super Market" {
		t.Fatalf("unexpected choices: %+v", r.Menu.Choices)
	}
	if f.store.Calls("add_sheet") != 0 {
		t.Fatal("nothing should be written before the category is chosen")
	}

	r = f.pick(userID, "id-1|Super Market")
	if !strings.Contains(r.Text, "Saved 50.00 (Super Market) to Feb 2026") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	rows, _ := f.m.ReadExpenses(ctx, month)
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %+v", rows)
	}
	got := rows[0]
	if got.Date.String() != "2026-02-14" || got.Type != "Super Market" || got.Amount.Cents != 5000 || got.Description != "groceries" {
		t.Fatalf("unexpected row: %+v", got)
	}
	after, _ := f.m.Total(ctx, month)
	if after.Cents-before.Cents != 5000 {
		t.Fatalf("total grew by %d cents", after.Cents-before.Cents)
	}
	if f.bot.Pending().Size() != 0 {
		t.Fatal("pending selection not consumed")
	}
}

func TestInvalidExpenseTouchesNothing(t *testing.T) {
	f := newFixture(t)
	r := f.send(userID, "/expense -10 rent")
	if r.Menu != nil || !strings.Contains(r.Text, "not a valid amount") {
		t.Fatalf("unexpected reply: %+v", r)
	}
	names, _ := f.store.ListSheets(context.Background())
	if len(names) != 0 || f.store.Calls("add_sheet") != 0 {
		t.Fatalf("parser failure reached the backend: %v", names)
	}

	r = f.send(userID, "/ex")
	if !strings.Contains(r.Text, "include an amount") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
}

func TestBotNameSuffixAndSkip(t *testing.T) {
	f := newFixture(t)
	r := f.send(userID, "/ex@ledger_bot   12.5   lunch   out")
	if r.Menu == nil || !strings.Contains(r.Text, "Description: lunch out") {
		t.Fatalf("unexpected reply: %+v", r)
	}
	r = f.pick(userID, "id-1|"+SkipChoice)
	if !strings.Contains(r.Text, "no category") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	rows, _ := f.m.ReadExpenses(context.Background(), month)
	if len(rows) != 1 || rows[0].Type != "" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestSetTargetThenTotal(t *testing.T) {
	f := newFixture(t)
	if r := f.send(userID, "/set_target 1000"); !strings.Contains(r.Text, "set to 1000.00") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	r := f.send(userID, "/total")
	if !strings.Contains(r.Text, "Total expenses for Feb 2026: 0.00") || !strings.Contains(r.Text, "Remain: 1000.00") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if r := f.send(userID, "/set_target abc"); !strings.Contains(r.Text, "positive number") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
}

func TestAuthorisation(t *testing.T) {
	f := newFixture(t)
	if r := f.send(99, "/total"); !strings.Contains(r.Text, "not authorised") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if r := f.send(99, "/expense 5 x"); r.Menu != nil {
		t.Fatal("unapproved user got a menu")
	}
	if f.store.Calls("list") != 0 {
		t.Fatal("denied commands must not reach the backend")
	}
	if r := f.send(userID, "/reset_sheet confirm"); !strings.Contains(r.Text, "Only the admin") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if r := f.send(99, "/whoami"); !strings.Contains(r.Text, "User id: 99") || !strings.Contains(r.Text, "Approved: no") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
}

func TestResetSheetNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	f.send(userID, "/expense 20 taxi")
	f.pick(userID, "id-1|Transport")

	if r := f.send(adminID, "/reset_sheet"); !strings.Contains(r.Text, "/reset_sheet confirm") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if f.store.Calls("clear") != 0 {
		t.Fatal("reset ran without confirmation")
	}
	if r := f.send(adminID, "/reset_sheet confirm 500"); !strings.Contains(r.Text, "Target: 500.00") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	rows, _ := f.m.ReadExpenses(context.Background(), month)
	sum, _ := f.m.ReadSummary(context.Background(), month)
	if len(rows) != 0 || sum.Target.Cents != 50000 {
		t.Fatalf("rows %+v target %v", rows, sum.Target)
	}
}

func TestSelectionEdgeCases(t *testing.T) {
	f := newFixture(t)
	if r := f.pick(userID, "id-404|Food"); !strings.Contains(r.Text, "please resubmit") || !r.Final {
		t.Fatalf("unexpected reply: %+v", r)
	}
	if r := f.pick(userID, "garbage"); !strings.Contains(r.Text, "resubmit") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}

	f.send(userID, "/expense 5 coffee")
	if _, err := f.acl.Approve(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	if r := f.pick(3, "id-1|Food"); !strings.Contains(r.Text, "Only the person") || r.Final {
		t.Fatalf("unexpected reply: %+v", r)
	}
	if r := f.pick(userID, "id-1|Groceries"); !strings.Contains(r.Text, "Unknown category") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if f.bot.Pending().Size() != 1 {
		t.Fatal("pending selection should survive rejected picks")
	}
	if r := f.pick(userID, "id-1|food"); !strings.Contains(r.Text, "(Food)") || !r.Final {
		t.Fatalf("unexpected reply: %+v", r)
	}
	if r := f.pick(userID, "id-1|Food"); !strings.Contains(r.Text, "please resubmit") {
		t.Fatalf("second pick should miss: %q", r.Text)
	}
}

func TestBackendFailureKeepsPendingExpense(t *testing.T) {
	f := newFixture(t)
	f.send(userID, "/expense 8 sandwich")
	f.store.FailOn = func(op, _ string) error {
		if op == "append" {
			return sheets.NewError(sheets.ErrBackend, "append", errors.New("connection reset"))
		}
		return nil
	}
	if r := f.pick(userID, "id-1|Food"); !strings.Contains(r.Text, "try again later") || r.Final {
		t.Fatalf("unexpected reply: %+v", r)
	}
	f.store.FailOn = nil
	if r := f.pick(userID, "id-1|Food"); !strings.Contains(r.Text, "Saved 8.00") {
		t.Fatalf("retry failed: %q", r.Text)
	}
}

func TestCredentialErrorsAreDistinct(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn = func(op, _ string) error {
		return sheets.NewError(sheets.ErrAuth, op, errors.New("invalid_grant"))
	}
	if r := f.send(userID, "/total_all"); !strings.Contains(r.Text, "credentials") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
}

func TestAdminCommands(t *testing.T) {
	f := newFixture(t)
	if r := f.send(adminID, "/approve 77"); r.Text != "User 77 approved." {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if r := f.send(adminID, "/approve 77"); !strings.Contains(r.Text, "already approved") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	r := f.send(adminID, "/users")
	if !strings.Contains(r.Text, "1 (admin)") || !strings.Contains(r.Text, "\n2") || !strings.Contains(r.Text, "\n77") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if r := f.send(adminID, "/revoke 77"); r.Text != "User 77 revoked." {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if r := f.send(adminID, "/revoke 1"); !strings.Contains(r.Text, "cannot be revoked") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if r := f.send(adminID, "/approve bob"); !strings.Contains(r.Text, "Usage") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if !f.acl.IsApproved(adminID) || f.acl.IsApproved(77) {
		t.Fatal("unexpected approval state")
	}
}

func TestBreakdownAndTotalAll(t *testing.T) {
	f := newFixture(t)
	if r := f.send(userID, "/breakdown"); !strings.Contains(r.Text, "No expenses") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	f.send(userID, "/ex 10 a")
	f.pick(userID, "id-1|Food")
	f.send(userID, "/ex 2.5 b")
	f.pick(userID, "id-2|skip")

	r := f.send(userID, "/breakdown")
	if !strings.Contains(r.Text, "Food: 10.00") || !strings.Contains(r.Text, "Uncategorised: 2.50") || !strings.Contains(r.Text, "Total: 12.50") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if r := f.send(userID, "/total_all"); !strings.HasSuffix(r.Text, "12.50") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
}

func TestMigrateCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.store.AddSheet(ctx, month)
	_ = f.store.UpdateValues(ctx, sheets.A1(month, "A1:C2"), [][]any{
		{"Date", "Amount", "Description"},
		{"2026-02-01", 30.0, "books"},
	}, sheets.Raw)

	if r := f.send(adminID, "/migrate"); !strings.Contains(r.Text, "1 rows kept, 0 skipped") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if r := f.send(adminID, "/migrate"); !strings.Contains(r.Text, "already uses the current layout") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if r := f.send(adminID, "/migrate maybe"); !strings.Contains(r.Text, "Usage") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
}

func TestOldLayoutBlocksSavingUntilMigrated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.store.AddSheet(ctx, month)
	_ = f.store.UpdateValues(ctx, sheets.A1(month, "A1:C2"), [][]any{
		{"Date", "Amount", "Description"},
		{"2026-02-01", 30.0, "books"},
	}, sheets.Raw)

	f.send(userID, "/expense 8 sandwich")
	if r := f.pick(userID, "id-1|Food"); !strings.Contains(r.Text, "/migrate") || r.Final {
		t.Fatalf("unexpected reply: %+v", r)
	}
	if r := f.send(adminID, "/set_target 500"); !strings.Contains(r.Text, "/migrate") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if f.store.Raw(month, "C6") != nil || f.store.Raw(month, "F5") != nil {
		t.Fatal("old layout was written to")
	}

	f.send(adminID, "/migrate")
	if r := f.pick(userID, "id-1|Food"); !strings.Contains(r.Text, "Saved 8.00") {
		t.Fatalf("retry after migrate failed: %q", r.Text)
	}
	if got, _ := f.m.Total(ctx, month); got.Cents != 3800 {
		t.Fatalf("total = %v", got)
	}
}

func TestNonCommandsAndUnknown(t *testing.T) {
	f := newFixture(t)
	if r := f.send(userID, "hello there"); r.Text != "" {
		t.Fatalf("plain text should be ignored, got %q", r.Text)
	}
	if r := f.send(userID, "/dance"); !strings.Contains(r.Text, "Unknown command") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
	if r := f.send(99, "/help"); !strings.Contains(r.Text, "/expense") {
		t.Fatalf("unexpected reply: %q", r.Text)
	}
}

func TestPendingExpiry(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.bot.pending.WithClock(func() time.Time { return now })
	f.send(userID, "/expense 3 gum")
	now = now.Add(48 * time.Hour)
	if r := f.pick(userID, "id-1|Food"); !strings.Contains(r.Text, "please resubmit") {
		t.Fatalf("expired selection accepted: %q", r.Text)
	}
}
