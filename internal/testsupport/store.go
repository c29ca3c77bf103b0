package testsupport

import (
	"context"
	"testing"

	"shelfmark/internal/config"
	"shelfmark/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewBookmark creates a pending bookmark for tests using the provided store.
func NewBookmark(t testing.TB, st *store.Store, userID, url string) *store.Bookmark {
	t.Helper()

	bookmark, err := st.CreateBookmark(context.Background(), userID, url)
	if err != nil {
		t.Fatalf("store.CreateBookmark: %v", err)
	}
	return bookmark
}
