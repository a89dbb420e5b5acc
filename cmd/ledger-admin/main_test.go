package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"expensebot/internal/core"
	"expensebot/internal/ledger"
	"expensebot/internal/log"
	"expensebot/internal/sheets"
	"expensebot/internal/sheets/memory"
)

var now = time.Date(2026, time.March, 5, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T) (*ledger.Manager, *memory.Store) {
	t.Helper()
	store := memory.New()
	return ledger.NewManager(store, ledger.WithLogger(log.Discard()), ledger.WithDefaultTarget(core.Money{Cents: 50000})), store
}

func exec(t *testing.T, m *ledger.Manager, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), m, now, args, &out)
	return out.String(), err
}

func TestInitDetectAndList(t *testing.T) {
	m, _ := newManager(t)

	out, err := exec(t, m, "detect")
	if err != nil || out != "Mar 2026: missing\n" {
		t.Fatalf("detect = %q, %v", out, err)
	}
	out, err = exec(t, m, "init")
	if err != nil || !strings.Contains(out, "Mar 2026: created=true") {
		t.Fatalf("init = %q, %v", out, err)
	}
	out, err = exec(t, m, "detect", "-ledger", "Mar 2026")
	if err != nil || out != "Mar 2026: new\n" {
		t.Fatalf("detect = %q, %v", out, err)
	}
	if _, err := exec(t, m, "init", "-ledger", "Feb 2026"); err != nil {
		t.Fatal(err)
	}
	out, err = exec(t, m, "list")
	if err != nil || out != "Mar 2026\nFeb 2026\n" {
		t.Fatalf("list = %q, %v", out, err)
	}
}

func TestMigrateOldLayoutAndTotal(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()
	if err := store.AddSheet(ctx, "Mar 2026"); err != nil {
		t.Fatal(err)
	}
	rows := [][]any{
		{"Date", "Amount", "Description"},
		{"2026-03-01", 12.5, "lunch"},
		{"2026-03-02", 7, "bus"},
		{"", 3, "orphan"},
	}
	if err := store.UpdateValues(ctx, "'Mar 2026'!A1:C4", rows, sheets.Raw); err != nil {
		t.Fatal(err)
	}

	out, _ := exec(t, m, "detect")
	if out != "Mar 2026: old\n" {
		t.Fatalf("detect = %q", out)
	}
	out, err := exec(t, m, "init")
	if err != nil || !strings.Contains(out, "run migrate") {
		t.Fatalf("init on old layout = %q, %v", out, err)
	}
	out, err = exec(t, m, "migrate")
	if err != nil || out != "Mar 2026: from=old migrated=2 skipped=1\n" {
		t.Fatalf("migrate = %q, %v", out, err)
	}
	out, err = exec(t, m, "total")
	if err != nil || out != "Mar 2026: 19.50\n" {
		t.Fatalf("total = %q, %v", out, err)
	}
	out, err = exec(t, m, "total", "-all")
	if err != nil || out != "all: 19.50\n" {
		t.Fatalf("total -all = %q, %v", out, err)
	}
}

func TestResetNeedsConfirmation(t *testing.T) {
	m, _ := newManager(t)
	if _, err := m.AppendExpense(context.Background(), "Mar 2026", core.Expense{
		Date: core.NewDate(2026, 3, 1), Amount: core.Money{Cents: 900}, Description: "snack",
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := exec(t, m, "reset"); !errors.Is(err, errUsage) {
		t.Fatalf("reset without -yes = %v", err)
	}
	if _, err := exec(t, m, "reset", "-yes", "-target", "abc"); err == nil {
		t.Fatal("expected invalid target error")
	}
	out, err := exec(t, m, "reset", "-yes", "-target", "750")
	if err != nil || out != "Mar 2026 reset with target 750.00\n" {
		t.Fatalf("reset = %q, %v", out, err)
	}
	sum, err := m.ReadSummary(context.Background(), "Mar 2026")
	if err != nil || sum.Target.Cents != 75000 || sum.Total.Cents != 0 {
		t.Fatalf("summary after reset = %+v, %v", sum, err)
	}
}

func TestUsageErrors(t *testing.T) {
	m, _ := newManager(t)
	if _, err := exec(t, m); !errors.Is(err, errUsage) {
		t.Fatalf("no args = %v", err)
	}
	if _, err := exec(t, m, "explode"); !errors.Is(err, errUsage) {
		t.Fatalf("unknown command = %v", err)
	}
	if _, err := exec(t, m, "total", "-bogus"); !errors.Is(err, errUsage) {
		t.Fatalf("unknown flag = %v", err)
	}
	out, err := exec(t, m, "help")
	if err != nil || !strings.HasPrefix(out, "Usage: ledger-admin") {
		t.Fatalf("help = %q, %v", out, err)
	}
}
