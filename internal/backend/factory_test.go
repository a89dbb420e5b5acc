package backend

import (
	"context"
	"path/filepath"
	"testing"

	"expensebot/internal/config"
	"expensebot/internal/log"
	"expensebot/internal/sheets/memory"
	"expensebot/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{
		DataBackend:         "sheets",
		AccessStore:         "sqlite",
		GoogleSpreadsheetID: "sheet-id",
		SQLiteDBPath:        "/tmp/bot.db",
	})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SheetsBackend || cfg.AccessType != SQLiteAccess || cfg.GoogleSpreadsheetID != "sheet-id" {
		t.Fatalf("FromAppConfig() = %+v", cfg)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sqlite"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "memory", AccessStore: "redis"}); err == nil {
		t.Fatal("expected error for unknown access store")
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	f := NewFactory(log.Discard())
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if _, ok := res.Backend.(*memory.Store); !ok {
		t.Fatalf("CreateBackend() = %T, want *memory.Store", res.Backend)
	}
}

func TestCreateSheetsBackendRequiresSpreadsheet(t *testing.T) {
	f := NewFactory(log.Discard())
	if _, err := f.CreateBackend(context.Background(), Config{Type: SheetsBackend}); err == nil {
		t.Fatal("expected error without spreadsheet id")
	}
}

func TestCreateAccessStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := NewFactory(log.Discard())

	res, err := f.CreateAccessStore(ctx, Config{AccessType: FileAccess, ApprovedUsersFile: filepath.Join(dir, "users.json")})
	if err != nil {
		t.Fatalf("CreateAccessStore(file) error = %v", err)
	}
	if err := res.Store.Save(ctx, []int64{7, 8}); err != nil {
		t.Fatal(err)
	}
	ids, err := res.Store.Load(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("Load() = %v, %v", ids, err)
	}

	res, err = f.CreateAccessStore(ctx, Config{AccessType: SQLiteAccess, SQLiteDBPath: filepath.Join(dir, "bot.db")})
	if err != nil {
		t.Fatalf("CreateAccessStore(sqlite) error = %v", err)
	}
	defer res.Cleanup()
	if _, ok := res.Store.(*storage.SQLiteRepository); !ok {
		t.Fatalf("CreateAccessStore(sqlite) = %T", res.Store)
	}

	if _, err := f.CreateAccessStore(ctx, Config{AccessType: SQLiteAccess}); err == nil {
		t.Fatal("expected error without database path")
	}
}
