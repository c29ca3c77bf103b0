package store_test

import (
	"context"
	"testing"
	"time"

	"shelfmark/internal/store"
	"shelfmark/internal/testsupport"
)

func TestClaimNextDeliversOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, err := st.Enqueue(ctx, store.MessageTypeBookmarkIngestion, `{"bookmark_id":1}`)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := st.Enqueue(ctx, store.MessageTypeBookmarkIngestion, `{"bookmark_id":2}`); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	claimed, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest message, got %#v", claimed)
	}
	if claimed.Status != store.MessageProcessing || claimed.Attempts != 1 {
		t.Fatalf("unexpected claimed state: %#v", claimed)
	}

	second, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if second == nil || second.ID == claimed.ID {
		t.Fatalf("expected distinct second message, got %#v", second)
	}

	empty, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if empty != nil {
		t.Fatalf("expected empty queue, got %#v", empty)
	}
}

func TestClaimNextHonorsAvailability(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	msg, err := st.Enqueue(ctx, store.MessageTypeImageEntityExtraction, `{"image_id":"img-1"}`)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	claimed, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected immediate delivery")
	}

	if err := st.Requeue(ctx, msg.ID, time.Now().Add(time.Hour), "upstream 503"); err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}

	deferred, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if deferred != nil {
		t.Fatalf("expected message deferred into the future, got %#v", deferred)
	}

	stored, err := st.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if stored.Status != store.MessageQueued || stored.LastError != "upstream 503" {
		t.Fatalf("unexpected requeued state: %#v", stored)
	}

	if err := st.Requeue(ctx, msg.ID, time.Now().Add(-time.Second), "upstream 503"); err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}
	due, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if due == nil || due.ID != msg.ID {
		t.Fatalf("expected past-due message, got %#v", due)
	}
	if due.Attempts != 2 {
		t.Fatalf("expected attempts incremented on each claim, got %d", due.Attempts)
	}
}

func TestClaimNextDeliversWholeSecondAvailability(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	msg, err := st.Enqueue(ctx, store.MessageTypeBookmarkIngestion, `{"bookmark_id":1}`)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := st.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	// A zero-nanosecond availability must be deliverable right away. A
	// trimmed fractional format would make "...:05Z" compare greater than
	// the sub-second now, hiding the message until the next whole second.
	availableAt := time.Now().UTC().Truncate(time.Second)
	if err := st.Requeue(ctx, msg.ID, availableAt, "upstream 503"); err != nil {
		t.Fatalf("Requeue failed: %v", err)
	}

	due, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if due == nil || due.ID != msg.ID {
		t.Fatalf("expected whole-second availability to be due, got %#v", due)
	}
}

func TestMarkDoneAndMarkDead(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	done, err := st.Enqueue(ctx, store.MessageTypeBookmarkIngestion, `{"bookmark_id":1}`)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	dead, err := st.Enqueue(ctx, store.MessageTypeBookmarkIngestion, `{"bookmark_id":2}`)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := st.MarkDone(ctx, done.ID); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	if err := st.MarkDead(ctx, dead.ID, "fetch returned 404"); err != nil {
		t.Fatalf("MarkDead failed: %v", err)
	}

	claimed, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected no deliverable messages, got %#v", claimed)
	}

	stored, err := st.GetMessage(ctx, dead.ID)
	if err != nil {
		t.Fatalf("GetMessage failed: %v", err)
	}
	if stored.Status != store.MessageDead || stored.LastError != "fetch returned 404" {
		t.Fatalf("unexpected dead message: %#v", stored)
	}

	health, err := st.QueueStats(ctx)
	if err != nil {
		t.Fatalf("QueueStats failed: %v", err)
	}
	if health.Done != 1 || health.Dead != 1 || health.Queued != 0 {
		t.Fatalf("unexpected queue health: %#v", health)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := st.Enqueue(ctx, store.MessageTypeBookmarkIngestion, `{"bookmark_id":1}`); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	claimed, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected claim to succeed")
	}

	count, err := st.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 message reset, got %d", count)
	}

	reclaimed, err := st.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != claimed.ID {
		t.Fatalf("expected reset message to be deliverable, got %#v", reclaimed)
	}
	if reclaimed.Attempts != 2 {
		t.Fatalf("expected attempts to keep counting across resets, got %d", reclaimed.Attempts)
	}
}

func TestClearDone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	msg, err := st.Enqueue(ctx, store.MessageTypeBookmarkIngestion, `{"bookmark_id":1}`)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := st.MarkDone(ctx, msg.ID); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}

	removed, err := st.ClearDone(ctx)
	if err != nil {
		t.Fatalf("ClearDone failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}
