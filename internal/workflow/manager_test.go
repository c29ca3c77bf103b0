package workflow_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"shelfmark/internal/config"
	"shelfmark/internal/services"
	"shelfmark/internal/store"
	"shelfmark/internal/testsupport"
	"shelfmark/internal/workflow"
)

func newTestManager(t *testing.T, maxAttempts int) (*workflow.Manager, *store.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithRetryPolicy(0, 0, maxAttempts))
	cfg.Workflow.WorkerCount = 2
	cfg.Workflow.QueuePollInterval = 0
	st := testsupport.MustOpenStore(t, cfg)
	return workflow.NewManager(cfg, st, nil), st, cfg
}

func waitForMessage(t *testing.T, st *store.Store, id int64, status store.MessageStatus) *store.Message {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg, err := st.GetMessage(context.Background(), id)
		if err != nil {
			t.Fatalf("GetMessage failed: %v", err)
		}
		if msg != nil && msg.Status == status {
			return msg
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("message %d never reached status %s", id, status)
	return nil
}

func TestManagerProcessesMessage(t *testing.T) {
	manager, st, _ := newTestManager(t, 3)
	ctx := context.Background()

	var handled atomic.Int32
	manager.Register("test-type", workflow.HandlerFunc(func(ctx context.Context, msg *store.Message) error {
		handled.Add(1)
		return nil
	}))

	msg, err := st.Enqueue(ctx, "test-type", `{}`)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	waitForMessage(t, st, msg.ID, store.MessageDone)
	if handled.Load() != 1 {
		t.Fatalf("expected 1 handling, got %d", handled.Load())
	}
}

func TestManagerRetriesRetryableFailures(t *testing.T) {
	manager, st, _ := newTestManager(t, 5)
	ctx := context.Background()

	var attempts atomic.Int32
	manager.Register("flaky", workflow.HandlerFunc(func(ctx context.Context, msg *store.Message) error {
		if attempts.Add(1) < 3 {
			return services.Wrap(services.ErrRetryable, "test", "handle", "transient failure", nil)
		}
		return nil
	}))

	msg, err := st.Enqueue(ctx, "flaky", `{}`)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	final := waitForMessage(t, st, msg.ID, store.MessageDone)
	if attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts.Load())
	}
	if final.Attempts != 3 {
		t.Fatalf("expected attempt counter 3, got %d", final.Attempts)
	}
}

func TestManagerDeadLettersNonRetryable(t *testing.T) {
	manager, st, _ := newTestManager(t, 5)
	ctx := context.Background()

	var attempts atomic.Int32
	var mu sync.Mutex
	var failedMsg *store.Message
	var failedCause error

	manager.Register("doomed", workflow.HandlerFunc(func(ctx context.Context, msg *store.Message) error {
		attempts.Add(1)
		return services.Wrap(services.ErrNonRetryable, "test", "handle", "bad input", nil)
	}))
	manager.OnPermanentFailure(func(ctx context.Context, msg *store.Message, cause error) {
		mu.Lock()
		defer mu.Unlock()
		failedMsg = msg
		failedCause = cause
	})

	msg, err := st.Enqueue(ctx, "doomed", `{}`)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	final := waitForMessage(t, st, msg.ID, store.MessageDead)
	if attempts.Load() != 1 {
		t.Fatalf("expected single attempt for non-retryable, got %d", attempts.Load())
	}
	if final.LastError == "" {
		t.Fatal("expected last error recorded")
	}

	mu.Lock()
	defer mu.Unlock()
	if failedMsg == nil || failedMsg.ID != msg.ID {
		t.Fatalf("expected permanent failure hook invoked, got %#v", failedMsg)
	}
	if failedCause == nil {
		t.Fatal("expected cause passed to hook")
	}
}

func TestManagerDeadLettersAfterAttemptsExhausted(t *testing.T) {
	manager, st, _ := newTestManager(t, 2)
	ctx := context.Background()

	var attempts atomic.Int32
	manager.Register("always-transient", workflow.HandlerFunc(func(ctx context.Context, msg *store.Message) error {
		attempts.Add(1)
		return services.Wrap(services.ErrRetryable, "test", "handle", "still down", nil)
	}))

	msg, err := st.Enqueue(ctx, "always-transient", `{}`)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	waitForMessage(t, st, msg.ID, store.MessageDead)
	if attempts.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestManagerDeadLettersUnknownType(t *testing.T) {
	manager, st, _ := newTestManager(t, 3)
	ctx := context.Background()

	manager.Register("known", workflow.HandlerFunc(func(ctx context.Context, msg *store.Message) error {
		return nil
	}))

	msg, err := st.Enqueue(ctx, "unknown", `{}`)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	waitForMessage(t, st, msg.ID, store.MessageDead)
}

func TestManagerStartRequiresHandlers(t *testing.T) {
	manager, _, _ := newTestManager(t, 3)
	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("expected error starting without handlers")
	}
}

func TestManagerStartResetsStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryPolicy(0, 0, 3))
	cfg.Workflow.QueuePollInterval = 0
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	msg, err := st.Enqueue(ctx, "test-type", `{}`)
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := st.ClaimNext(ctx); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	manager := workflow.NewManager(cfg, st, nil)
	var handled atomic.Int32
	manager.Register("test-type", workflow.HandlerFunc(func(ctx context.Context, msg *store.Message) error {
		handled.Add(1)
		return nil
	}))

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	waitForMessage(t, st, msg.ID, store.MessageDone)
}

func TestManagerDoubleStart(t *testing.T) {
	manager, st, _ := newTestManager(t, 3)
	ctx := context.Background()

	manager.Register("test-type", workflow.HandlerFunc(func(ctx context.Context, msg *store.Message) error {
		return nil
	}))
	if _, err := st.Enqueue(ctx, "test-type", `{}`); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	if err := manager.Start(ctx); err == nil {
		t.Fatal("expected error on second start")
	}
}
