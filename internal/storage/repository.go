package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"expensebot/internal/access"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores approved users in SQLite. It implements access.Store.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ access.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements access.Store
func (r *SQLiteRepository) Load(ctx context.Context) ([]int64, error) {
	ids, err := r.queries.ListApprovedUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list approved users: %w", err)
	}
	return ids, nil
}

// Save implements access.Store. Ids already stored keep their position;
// new ids are appended in the given order and missing ids are deleted.
func (r *SQLiteRepository) Save(ctx context.Context, ids []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	current, err := q.ListApprovedUsers(ctx)
	if err != nil {
		return fmt.Errorf("list approved users: %w", err)
	}
	for _, id := range current {
		if !slices.Contains(ids, id) {
			if err := q.DeleteApprovedUser(ctx, id); err != nil {
				return fmt.Errorf("delete approved user %d: %w", id, err)
			}
		}
	}
	for _, id := range ids {
		if err := q.InsertApprovedUser(ctx, id); err != nil {
			return fmt.Errorf("insert approved user %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Approved users saved to SQLite", "count", len(ids))
	return nil
}
