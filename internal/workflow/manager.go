package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"shelfmark/internal/config"
	"shelfmark/internal/logging"
	"shelfmark/internal/services"
	"shelfmark/internal/store"
)

// Handler processes one claimed queue message.
type Handler interface {
	Handle(ctx context.Context, msg *store.Message) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *store.Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg *store.Message) error {
	return f(ctx, msg)
}

// PermanentFailureHandler is invoked after a message is dead-lettered, with
// the error that exhausted it. Implementations mark the owning domain object
// failed and emit notifications.
type PermanentFailureHandler func(ctx context.Context, msg *store.Message, cause error)

// Manager coordinates queue processing across a bounded worker pool.
type Manager struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger

	pollInterval time.Duration
	workerCount  int
	maxAttempts  int
	baseDelay    time.Duration
	maxDelay     time.Duration

	handlers         map[string]Handler
	permanentFailure PermanentFailureHandler

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a workflow manager from configuration.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        st,
		logger:       logger.With(logging.String(logging.FieldComponent, "workflow")),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		workerCount:  cfg.Workflow.WorkerCount,
		maxAttempts:  cfg.Workflow.RetryMaxAttempts,
		baseDelay:    time.Duration(cfg.Workflow.RetryBaseDelay) * time.Second,
		maxDelay:     time.Duration(cfg.Workflow.RetryMaxDelay) * time.Second,
		handlers:     make(map[string]Handler),
	}
}

// Register binds a handler to a message type. Must be called before Start.
func (m *Manager) Register(messageType string, handler Handler) {
	m.handlers[messageType] = handler
}

// OnPermanentFailure installs the dead-letter hook. Must be called before
// Start.
func (m *Manager) OnPermanentFailure(handler PermanentFailureHandler) {
	m.permanentFailure = handler
}

// Start resets messages stranded in processing by a previous run and begins
// background workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	if len(m.handlers) == 0 {
		return errors.New("workflow handlers not configured")
	}

	reset, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		return fmt.Errorf("reset stuck messages: %w", err)
	}
	if reset > 0 {
		m.logger.Info("requeued messages stranded in processing", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	workers := m.workerCount
	if workers <= 0 {
		workers = 1
	}
	m.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i)
	}
	return nil
}

// Stop terminates background processing and waits for workers to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := m.store.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to claim next message",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_claim_failed"),
			)
			m.waitOrShutdown(ctx)
			continue
		}
		if msg == nil {
			m.waitOrShutdown(ctx)
			continue
		}

		m.dispatch(ctx, logger, msg)
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) dispatch(ctx context.Context, logger *slog.Logger, msg *store.Message) {
	msgLogger := logger.With(
		logging.Int64("message_id", msg.ID),
		logging.String(logging.FieldMessageType, msg.Type),
		logging.Int("attempt", msg.Attempts),
	)

	handler, ok := m.handlers[msg.Type]
	if !ok {
		msgLogger.Error("no handler registered for message type",
			logging.String(logging.FieldEventType, "queue_unknown_type"),
		)
		m.deadLetter(ctx, msgLogger, msg, fmt.Errorf("no handler for message type %q", msg.Type))
		return
	}

	err := handler.Handle(ctx, msg)
	if err == nil {
		if markErr := m.store.MarkDone(ctx, msg.ID); markErr != nil {
			msgLogger.Error("failed to mark message done", logging.Error(markErr))
		}
		return
	}
	if ctx.Err() != nil {
		// Shutdown mid-handling: leave the message in processing, the next
		// startup reset requeues it.
		return
	}

	if services.IsRetryable(err) && msg.Attempts < m.maxAttempts {
		delay := m.backoffDelay(msg.Attempts)
		msgLogger.Warn("message failed, scheduling retry",
			logging.Error(err),
			logging.Duration("retry_in", delay),
			logging.String(logging.FieldEventType, "queue_retry_scheduled"),
		)
		if requeueErr := m.store.Requeue(ctx, msg.ID, time.Now().Add(delay), err.Error()); requeueErr != nil {
			msgLogger.Error("failed to requeue message", logging.Error(requeueErr))
		}
		return
	}

	m.deadLetter(ctx, msgLogger, msg, err)
}

func (m *Manager) deadLetter(ctx context.Context, logger *slog.Logger, msg *store.Message, cause error) {
	logger.Error("message failed permanently",
		logging.Error(cause),
		logging.String(logging.FieldEventType, "queue_dead_letter"),
		logging.Alert("queue_message_dead"),
	)
	if err := m.store.MarkDead(ctx, msg.ID, cause.Error()); err != nil {
		logger.Error("failed to dead-letter message", logging.Error(err))
		return
	}
	if m.permanentFailure != nil {
		m.permanentFailure(ctx, msg, cause)
	}
}

// backoffDelay computes base * 2^(attempt-1) capped at the configured
// maximum. attempt is the delivery count that just failed.
func (m *Manager) backoffDelay(attempt int) time.Duration {
	if m.baseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := m.baseDelay
	for i := 1; i < attempt; i++ {
		if m.maxDelay > 0 && delay > m.maxDelay/2 {
			return m.maxDelay
		}
		delay *= 2
	}
	if m.maxDelay > 0 && delay > m.maxDelay {
		return m.maxDelay
	}
	return delay
}

// Health reports aggregate queue counts for status surfaces.
func (m *Manager) Health(ctx context.Context) (store.QueueHealth, error) {
	return m.store.QueueStats(ctx)
}
