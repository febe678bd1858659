package repository

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestSQLiteFallbackStoreGetSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "fallback.db")

	store, err := OpenSQLiteFallbackStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if _, ok, err := store.Get(ctx, "todos_u1"); err != nil || ok {
		t.Fatalf("Get on empty store = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	if err := store.Set(ctx, "todos_u1", `[{"id":"1"}]`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "todos_u1", `[]`); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}

	got, ok, err := store.Get(ctx, "todos_u1")
	if err != nil || !ok {
		t.Fatalf("Get = (ok=%v, err=%v)", ok, err)
	}
	if got != `[]` {
		t.Errorf("Get = %q, want %q", got, `[]`)
	}
}

func TestSQLiteFallbackStorePersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fallback.db")

	store, err := OpenSQLiteFallbackStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Set(ctx, "theme", "dark"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	store.Close()

	reopened, err := OpenSQLiteFallbackStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "theme")
	if err != nil || !ok || got != "dark" {
		t.Errorf("Get(theme) = (%q, %v, %v), want (dark, true, nil)", got, ok, err)
	}
}

func TestOpenSQLiteFallbackStoreRejectsEmptyPath(t *testing.T) {
	if _, err := OpenSQLiteFallbackStore("", zap.NewNop()); err == nil {
		t.Fatal("expected error for empty path")
	}
}
