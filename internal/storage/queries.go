package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const listApprovedUsers = `SELECT user_id FROM approved_users ORDER BY id`

func (q *Queries) ListApprovedUsers(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listApprovedUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertApprovedUser = `INSERT OR IGNORE INTO approved_users (user_id) VALUES (?)`

func (q *Queries) InsertApprovedUser(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, insertApprovedUser, userID)
	return err
}

const deleteApprovedUser = `DELETE FROM approved_users WHERE user_id = ?`

func (q *Queries) DeleteApprovedUser(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, deleteApprovedUser, userID)
	return err
}
