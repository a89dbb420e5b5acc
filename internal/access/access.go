// Package access keeps the set of chat users allowed to log expenses.
package access

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"expensebot/internal/log"
)

var (
	ErrAdminNotRevocable = errors.New("admin cannot be revoked")
	ErrInvalidIdentity   = errors.New("invalid user id")
)

// Store persists the approved ids as a flat ordered list.
type Store interface {
	Load(ctx context.Context) ([]int64, error)
	Save(ctx context.Context, ids []int64) error
}

// Ledger is the approved-user set plus an admin held outside it. The admin
// is always approved and cannot be revoked. Zero means no admin.
type Ledger struct {
	mu     sync.RWMutex
	admin  int64
	ids    []int64
	store  Store
	logger *log.Logger
}

// NewLedger loads the approved set from store. A load failure is logged and
// the ledger starts empty.
func NewLedger(ctx context.Context, store Store, admin int64, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentAccess})
	}
	l := &Ledger{admin: admin, store: store, logger: logger}
	if store == nil {
		return l
	}
	ids, err := store.Load(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Approved users not loaded, starting empty", log.FieldError, err)
		return l
	}
	for _, id := range ids {
		if id != 0 && !slices.Contains(l.ids, id) {
			l.ids = append(l.ids, id)
		}
	}
	logger.InfoContext(ctx, "Approved users loaded", "count", len(l.ids))
	return l
}

func (l *Ledger) Admin() int64 { return l.admin }

func (l *Ledger) HasAdmin() bool { return l.admin != 0 }

func (l *Ledger) IsAdmin(id int64) bool {
	return l.admin != 0 && id == l.admin
}

func (l *Ledger) IsApproved(id int64) bool {
	if l.IsAdmin(id) {
		return true
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.ids, id)
}

// List returns the approved ids in insertion order. The admin is not listed
// unless it was approved explicitly.
func (l *Ledger) List() []int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.ids)
}

// Approve adds id and persists the set. It reports whether the set changed.
// On a persistence failure the set is left unchanged.
func (l *Ledger) Approve(ctx context.Context, id int64) (bool, error) {
	if id <= 0 {
		return false, ErrInvalidIdentity
	}
	if l.IsAdmin(id) {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if slices.Contains(l.ids, id) {
		return false, nil
	}
	next := append(slices.Clone(l.ids), id)
	if err := l.save(ctx, next); err != nil {
		return false, err
	}
	l.ids = next
	l.logger.InfoContext(ctx, "User approved", log.FieldUserID, id, log.FieldOperation, log.OpApprove)
	return true, nil
}

// Revoke removes id and persists the set. Revoking the admin fails with
// ErrAdminNotRevocable.
func (l *Ledger) Revoke(ctx context.Context, id int64) (bool, error) {
	if l.IsAdmin(id) {
		return false, ErrAdminNotRevocable
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	i := slices.Index(l.ids, id)
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(l.ids), i, i+1)
	if err := l.save(ctx, next); err != nil {
		return false, err
	}
	l.ids = next
	l.logger.InfoContext(ctx, "User revoked", log.FieldUserID, id, log.FieldOperation, log.OpRevoke)
	return true, nil
}

func (l *Ledger) save(ctx context.Context, ids []int64) error {
	if l.store == nil {
		return nil
	}
	if err := l.store.Save(ctx, ids); err != nil {
		return fmt.Errorf("persist approved users: %w", err)
	}
	return nil
}
