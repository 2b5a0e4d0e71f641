package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/louisbranch/avalon/internal/services/avalon/storage"
	"github.com/louisbranch/avalon/internal/services/avalon/storage/storetest"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestStoreContract(t *testing.T) {
	t.Parallel()

	storetest.RunStoreContract(t, func(t *testing.T) storage.Store {
		return openTempStore(t)
	})
}

func TestReopenKeepsData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "avalon.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	ctx := context.Background()
	if err := store.PutMatch(ctx, storage.MatchRecord{ID: "m-1", Phase: "game_over", Winner: "evil"}); err != nil {
		t.Fatalf("put match: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	got, err := reopened.GetMatch(ctx, "m-1")
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.Winner != "evil" {
		t.Fatalf("winner = %q, want %q", got.Winner, "evil")
	}
}

func TestNilStoreIsNotConfigured(t *testing.T) {
	t.Parallel()

	var store *Store
	if err := store.PutMatch(context.Background(), storage.MatchRecord{ID: "m-1"}); err == nil {
		t.Fatal("expected not configured error")
	}
	if _, err := store.LatestEventSeq(context.Background(), "m-1"); err == nil {
		t.Fatal("expected not configured error for event seq")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "avalon.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
