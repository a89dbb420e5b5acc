package access

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"expensebot/internal/log"
)

const admin = 42

type failingStore struct {
	loadErr, saveErr error
	saved            [][]int64
}

func (s *failingStore) Load(context.Context) ([]int64, error) { return []int64{7, 8}, s.loadErr }

func (s *failingStore) Save(_ context.Context, ids []int64) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, slices.Clone(ids))
	return nil
}

func TestAdminAlwaysApproved(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, nil, admin, log.Discard())
	if !l.IsApproved(admin) || !l.IsAdmin(admin) {
		t.Fatal("admin must be approved without being listed")
	}
	if _, err := l.Revoke(ctx, admin); !errors.Is(err, ErrAdminNotRevocable) {
		t.Fatalf("expected ErrAdminNotRevocable, got %v", err)
	}
	if !l.IsApproved(admin) {
		t.Fatal("admin lost approval")
	}
	if added, _ := l.Approve(ctx, admin); added || len(l.List()) != 0 {
		t.Fatal("admin is held outside the set")
	}
}

func TestNoAdminConfigured(t *testing.T) {
	l := NewLedger(context.Background(), nil, 0, log.Discard())
	if l.HasAdmin() || l.IsApproved(0) || l.IsAdmin(0) {
		t.Fatal("zero must not act as an admin")
	}
}

func TestApproveRevokeIdempotent(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{}
	l := NewLedger(ctx, store, admin, log.Discard())

	if added, err := l.Approve(ctx, 9); err != nil || !added {
		t.Fatalf("approve: %v %v", added, err)
	}
	if added, _ := l.Approve(ctx, 9); added {
		t.Fatal("second approve should be a no-op")
	}
	if got := l.List(); !slices.Equal(got, []int64{7, 8, 9}) {
		t.Fatalf("list = %v", got)
	}
	if removed, err := l.Revoke(ctx, 7); err != nil || !removed {
		t.Fatalf("revoke: %v %v", removed, err)
	}
	if removed, _ := l.Revoke(ctx, 7); removed {
		t.Fatal("second revoke should be a no-op")
	}
	if l.IsApproved(7) {
		t.Fatal("revoked user still approved")
	}
	if len(store.saved) != 2 || !slices.Equal(store.saved[1], []int64{8, 9}) {
		t.Fatalf("unexpected saves: %v", store.saved)
	}
	if _, err := l.Approve(ctx, -1); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected invalid identity, got %v", err)
	}
}

func TestLoadFailureStartsEmpty(t *testing.T) {
	l := NewLedger(context.Background(), &failingStore{loadErr: errors.New("corrupt")}, admin, log.Discard())
	if len(l.List()) != 0 {
		t.Fatalf("expected empty set, got %v", l.List())
	}
}

func TestSaveFailureLeavesSetUnchanged(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, &failingStore{saveErr: errors.New("disk full")}, admin, log.Discard())
	if _, err := l.Approve(ctx, 9); err == nil {
		t.Fatal("expected save error")
	}
	if l.IsApproved(9) {
		t.Fatal("failed approve must not take effect")
	}
	if _, err := l.Revoke(ctx, 7); err == nil || !l.IsApproved(7) {
		t.Fatal("failed revoke must not take effect")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "approved.json")
	store := NewFileStore(path)

	ids, err := store.Load(ctx)
	if err != nil || len(ids) != 0 {
		t.Fatalf("missing file should load empty: %v %v", ids, err)
	}

	l := NewLedger(ctx, store, admin, log.Discard())
	_, _ = l.Approve(ctx, 3)
	_, _ = l.Approve(ctx, 1)
	_, _ = l.Approve(ctx, 2)
	_, _ = l.Revoke(ctx, 1)

	reloaded := NewLedger(ctx, store, admin, log.Discard())
	if got := reloaded.List(); !slices.Equal(got, []int64{3, 2}) {
		t.Fatalf("reloaded = %v", got)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approved.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).Load(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
	l := NewLedger(context.Background(), NewFileStore(path), admin, log.Discard())
	if len(l.List()) != 0 {
		t.Fatal("corrupt file should start empty")
	}
}
