package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"shelfmark/internal/store"
	"shelfmark/internal/testsupport"
)

var errDifferentEntityIDs = errors.New("concurrent writers resolved to different entities")

func TestEnsureEntityCreatesOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	entity, created, err := st.EnsureEntity(ctx, "user-1", store.TypeBook, "The Hobbit", "the hobbit")
	if err != nil {
		t.Fatalf("EnsureEntity failed: %v", err)
	}
	if !created || entity.ID == 0 {
		t.Fatalf("expected new entity, got created=%v id=%d", created, entity.ID)
	}

	again, created, err := st.EnsureEntity(ctx, "user-1", store.TypeBook, "THE HOBBIT", "the hobbit")
	if err != nil {
		t.Fatalf("EnsureEntity failed: %v", err)
	}
	if created {
		t.Fatal("expected existing entity to be reused")
	}
	if again.ID != entity.ID {
		t.Fatalf("expected same entity id, got %d and %d", entity.ID, again.ID)
	}
	if again.Name != "The Hobbit" {
		t.Fatalf("expected first display name to win, got %q", again.Name)
	}
}

func TestEnsureEntityConcurrentWriters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	// All writers race on the same identity; the loser of the insert race
	// must refetch the winner's row instead of surfacing the unique
	// violation.
	const writers = 12
	var (
		wg           sync.WaitGroup
		createdCount atomic.Int32
		firstID      atomic.Int64
	)
	start := make(chan struct{})
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			entity, created, err := st.EnsureEntity(ctx, "user-1", store.TypeBook, "The Hobbit", "the hobbit")
			if err != nil {
				errs <- err
				return
			}
			if created {
				createdCount.Add(1)
			}
			firstID.CompareAndSwap(0, entity.ID)
			if entity.ID != firstID.Load() {
				errs <- errDifferentEntityIDs
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("EnsureEntity failed under contention: %v", err)
	}
	if got := createdCount.Load(); got != 1 {
		t.Fatalf("expected exactly one creation, got %d", got)
	}

	entities, err := st.ListEntities(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListEntities failed: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected a single entity row, got %d", len(entities))
	}
}

func TestEnsureEntitySeparatesTypeAndUser(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	book, _, err := st.EnsureEntity(ctx, "user-1", store.TypeBook, "Dune", "dune")
	if err != nil {
		t.Fatalf("EnsureEntity failed: %v", err)
	}
	movie, created, err := st.EnsureEntity(ctx, "user-1", store.TypeMovie, "Dune", "dune")
	if err != nil {
		t.Fatalf("EnsureEntity failed: %v", err)
	}
	if !created || movie.ID == book.ID {
		t.Fatal("expected distinct entities per type")
	}

	other, created, err := st.EnsureEntity(ctx, "user-2", store.TypeBook, "Dune", "dune")
	if err != nil {
		t.Fatalf("EnsureEntity failed: %v", err)
	}
	if !created || other.ID == book.ID {
		t.Fatal("expected distinct entities per user")
	}
}

func TestEnsureLinkFirstWriteWins(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	bookmark := testsupport.NewBookmark(t, st, "user-1", "https://example.com/a")
	entity, _, err := st.EnsureEntity(ctx, "user-1", store.TypeBook, "Dune", "dune")
	if err != nil {
		t.Fatalf("EnsureEntity failed: %v", err)
	}

	created, err := st.EnsureLink(ctx, &store.EntityBookmarkLink{
		EntityID:       entity.ID,
		BookmarkID:     bookmark.ID,
		Confidence:     0.9,
		Source:         store.SourceText,
		ContextSnippet: "a review of Dune",
	})
	if err != nil {
		t.Fatalf("EnsureLink failed: %v", err)
	}
	if !created {
		t.Fatal("expected first link to be created")
	}

	created, err = st.EnsureLink(ctx, &store.EntityBookmarkLink{
		EntityID:   entity.ID,
		BookmarkID: bookmark.ID,
		Confidence: 0.4,
		Source:     store.SourceImage,
	})
	if err != nil {
		t.Fatalf("EnsureLink failed: %v", err)
	}
	if created {
		t.Fatal("expected duplicate link to be a no-op")
	}

	link, err := st.GetLink(ctx, entity.ID, bookmark.ID)
	if err != nil {
		t.Fatalf("GetLink failed: %v", err)
	}
	if link == nil || link.Confidence != 0.9 || link.Source != store.SourceText {
		t.Fatalf("expected original evidence to survive, got %#v", link)
	}

	links, err := st.LinksForBookmark(ctx, bookmark.ID)
	if err != nil {
		t.Fatalf("LinksForBookmark failed: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
}

func TestAddImageIdempotentPerBookmarkURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	bookmark := testsupport.NewBookmark(t, st, "user-1", "https://example.com/a")

	created, err := st.AddImage(ctx, &store.BookmarkImage{
		ID:             "img-1",
		BookmarkID:     bookmark.ID,
		URL:            "https://example.com/cover.jpg",
		AltText:        "Dune book cover",
		Position:       0,
		HeuristicScore: 0.8,
		EstimatedType:  "book_cover",
	})
	if err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	if !created {
		t.Fatal("expected image to be created")
	}

	created, err = st.AddImage(ctx, &store.BookmarkImage{
		ID:         "img-2",
		BookmarkID: bookmark.ID,
		URL:        "https://example.com/cover.jpg",
	})
	if err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	if created {
		t.Fatal("expected duplicate URL for same bookmark to be skipped")
	}

	images, err := st.ImagesForBookmark(ctx, bookmark.ID)
	if err != nil {
		t.Fatalf("ImagesForBookmark failed: %v", err)
	}
	if len(images) != 1 || images[0].ID != "img-1" {
		t.Fatalf("unexpected images: %#v", images)
	}

	fetched, err := st.GetImage(ctx, "img-1")
	if err != nil {
		t.Fatalf("GetImage failed: %v", err)
	}
	if fetched == nil || fetched.EstimatedType != "book_cover" {
		t.Fatalf("unexpected image: %#v", fetched)
	}
}
