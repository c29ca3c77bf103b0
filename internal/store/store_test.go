package store_test

import (
	"context"
	"errors"
	"testing"

	"shelfmark/internal/store"
	"shelfmark/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	bookmark, err := st.CreateBookmark(ctx, "user-1", "https://example.com/article")
	if err != nil {
		t.Fatalf("CreateBookmark failed: %v", err)
	}
	if bookmark.ID == 0 {
		t.Fatal("expected bookmark ID to be assigned")
	}
	if bookmark.Status != store.StatusPending {
		t.Fatalf("expected pending status, got %s", bookmark.Status)
	}

	fetched, err := st.GetBookmark(ctx, bookmark.ID)
	if err != nil {
		t.Fatalf("GetBookmark failed: %v", err)
	}
	if fetched == nil || fetched.URL != "https://example.com/article" {
		t.Fatalf("unexpected fetched bookmark: %#v", fetched)
	}

	found, err := st.FindBookmarkByURL(ctx, "user-1", "https://example.com/article")
	if err != nil {
		t.Fatalf("FindBookmarkByURL failed: %v", err)
	}
	if found == nil || found.ID != bookmark.ID {
		t.Fatalf("expected to find inserted bookmark, got %#v", found)
	}
}

func TestCreateBookmarkRejectsDuplicatePerUser(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := st.CreateBookmark(ctx, "user-1", "https://example.com/a"); err != nil {
		t.Fatalf("CreateBookmark failed: %v", err)
	}
	_, err := st.CreateBookmark(ctx, "user-1", "https://example.com/a")
	if !errors.Is(err, store.ErrDuplicateBookmark) {
		t.Fatalf("expected ErrDuplicateBookmark, got %v", err)
	}

	// A different user may save the same URL.
	if _, err := st.CreateBookmark(ctx, "user-2", "https://example.com/a"); err != nil {
		t.Fatalf("CreateBookmark for second user failed: %v", err)
	}
}

func TestUpdateBookmarkPersistsEnrichment(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	bookmark := testsupport.NewBookmark(t, st, "user-1", "https://example.com/a")

	bookmark.Title = "Example Article"
	bookmark.Markdown = "# Example\n\nbody"
	if err := bookmark.Transition(store.StatusMarkdownReady); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if err := st.UpdateBookmark(ctx, bookmark); err != nil {
		t.Fatalf("UpdateBookmark failed: %v", err)
	}

	updated, err := st.GetBookmark(ctx, bookmark.ID)
	if err != nil {
		t.Fatalf("GetBookmark failed: %v", err)
	}
	if updated.Title != "Example Article" || updated.Status != store.StatusMarkdownReady {
		t.Fatalf("unexpected updated bookmark: %#v", updated)
	}
	if updated.Markdown == "" {
		t.Fatal("expected markdown to be persisted")
	}
}

func TestListBookmarksFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	a := testsupport.NewBookmark(t, st, "user-1", "https://example.com/a")
	b := testsupport.NewBookmark(t, st, "user-1", "https://example.com/b")
	testsupport.NewBookmark(t, st, "user-2", "https://example.com/c")

	b.SetFailed("fetch returned 404")
	if err := st.UpdateBookmark(ctx, b); err != nil {
		t.Fatalf("UpdateBookmark failed: %v", err)
	}

	all, err := st.ListBookmarks(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListBookmarks failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 bookmarks for user-1, got %d", len(all))
	}

	failed, err := st.ListBookmarks(ctx, "user-1", store.StatusFailed)
	if err != nil {
		t.Fatalf("ListBookmarks failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != b.ID {
		t.Fatalf("unexpected failed set: %#v", failed)
	}
	if failed[0].ErrorMessage != "fetch returned 404" {
		t.Fatalf("expected error message to persist, got %q", failed[0].ErrorMessage)
	}

	pending, err := st.ListBookmarks(ctx, "user-1", store.StatusPending)
	if err != nil {
		t.Fatalf("ListBookmarks failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != a.ID {
		t.Fatalf("unexpected pending set: %#v", pending)
	}
}

func TestResetForRetryOnlyAppliesToFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	bookmark := testsupport.NewBookmark(t, st, "user-1", "https://example.com/a")

	reset, err := st.ResetForRetry(ctx, bookmark.ID)
	if err != nil {
		t.Fatalf("ResetForRetry failed: %v", err)
	}
	if reset {
		t.Fatal("expected no reset for pending bookmark")
	}

	bookmark.SetFailed("boom")
	if err := st.UpdateBookmark(ctx, bookmark); err != nil {
		t.Fatalf("UpdateBookmark failed: %v", err)
	}

	reset, err = st.ResetForRetry(ctx, bookmark.ID)
	if err != nil {
		t.Fatalf("ResetForRetry failed: %v", err)
	}
	if !reset {
		t.Fatal("expected failed bookmark to reset")
	}

	updated, err := st.GetBookmark(ctx, bookmark.ID)
	if err != nil {
		t.Fatalf("GetBookmark failed: %v", err)
	}
	if updated.Status != store.StatusPending || updated.ErrorMessage != "" {
		t.Fatalf("unexpected bookmark after reset: %#v", updated)
	}
}

func TestBookmarkStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewBookmark(t, st, "user-1", "https://example.com/a")
	b := testsupport.NewBookmark(t, st, "user-1", "https://example.com/b")
	b.SetFailed("boom")
	if err := st.UpdateBookmark(ctx, b); err != nil {
		t.Fatalf("UpdateBookmark failed: %v", err)
	}

	stats, err := st.BookmarkStats(ctx, "user-1")
	if err != nil {
		t.Fatalf("BookmarkStats failed: %v", err)
	}
	if stats[store.StatusPending] != 1 || stats[store.StatusFailed] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}
