package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"shelfmark/internal/analysis"
	"shelfmark/internal/catalog"
	"shelfmark/internal/extraction"
	"shelfmark/internal/logging"
	"shelfmark/internal/notifications"
	"shelfmark/internal/services"
	"shelfmark/internal/store"
	"shelfmark/internal/workflow"
)

// PageExtractor fetches a bookmarked page and converts it to markdown.
type PageExtractor interface {
	Extract(ctx context.Context, rawURL string) (*extraction.Document, error)
}

// ContentAnalyzer extracts entity mentions from markdown content.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, markdown string) (analysis.Result, error)
}

// ImageScanner identifies works depicted in a stored image.
type ImageScanner interface {
	Scan(ctx context.Context, image *store.BookmarkImage) ([]catalog.ExtractedEntity, error)
}

// Orchestrator wires the pipeline stages to the queue message types.
type Orchestrator struct {
	store     *store.Store
	extractor PageExtractor
	analyzer  ContentAnalyzer
	scanner   ImageScanner
	merger    *catalog.Merger
	notifier  notifications.Service
	chunker   Chunker
	logger    *slog.Logger
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithChunker installs a chunking backend. Defaults to NoopChunker.
func WithChunker(chunker Chunker) Option {
	return func(o *Orchestrator) {
		if chunker != nil {
			o.chunker = chunker
		}
	}
}

// NewOrchestrator constructs the pipeline orchestrator.
func NewOrchestrator(
	st *store.Store,
	extractor PageExtractor,
	analyzer ContentAnalyzer,
	scanner ImageScanner,
	notifier notifications.Service,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		store:     st,
		extractor: extractor,
		analyzer:  analyzer,
		scanner:   scanner,
		merger:    catalog.NewMerger(st, logger),
		notifier:  notifier,
		chunker:   NoopChunker{},
		logger:    logger.With(logging.String(logging.FieldComponent, "ingest")),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Register binds the orchestrator's handlers to the workflow manager.
func (o *Orchestrator) Register(manager *workflow.Manager) {
	manager.Register(store.MessageTypeBookmarkIngestion, workflow.HandlerFunc(o.HandleBookmarkIngestion))
	manager.Register(store.MessageTypeImageEntityExtraction, workflow.HandlerFunc(o.HandleImageEntityExtraction))
	manager.OnPermanentFailure(o.HandlePermanentFailure)
}

// SubmitBookmark creates a bookmark and enqueues its ingestion message.
func (o *Orchestrator) SubmitBookmark(ctx context.Context, userID, url string) (*store.Bookmark, error) {
	bookmark, err := o.store.CreateBookmark(ctx, userID, url)
	if err != nil {
		return nil, err
	}
	payload := BookmarkIngestionPayload{
		BookmarkID: bookmark.ID,
		URL:        bookmark.URL,
		UserID:     bookmark.UserID,
	}
	if err := o.enqueueIngestion(ctx, payload); err != nil {
		return nil, err
	}
	o.logger.Info("bookmark submitted",
		logging.Int64(logging.FieldBookmarkID, bookmark.ID),
		logging.String(logging.FieldUserID, userID),
	)
	return bookmark, nil
}

// ResubmitBookmark resets a failed bookmark to pending and enqueues a fresh
// ingestion message. Returns false when the bookmark was not failed.
func (o *Orchestrator) ResubmitBookmark(ctx context.Context, bookmarkID int64) (bool, error) {
	reset, err := o.store.ResetForRetry(ctx, bookmarkID)
	if err != nil {
		return false, err
	}
	if !reset {
		return false, nil
	}
	if err := o.enqueueIngestion(ctx, BookmarkIngestionPayload{BookmarkID: bookmarkID}); err != nil {
		return false, err
	}
	return true, nil
}

func (o *Orchestrator) enqueueIngestion(ctx context.Context, payload BookmarkIngestionPayload) error {
	encoded, err := EncodeBookmarkIngestionPayload(payload)
	if err != nil {
		return err
	}
	if _, err := o.store.Enqueue(ctx, store.MessageTypeBookmarkIngestion, encoded); err != nil {
		return fmt.Errorf("enqueue bookmark ingestion: %w", err)
	}
	return nil
}

// HandleBookmarkIngestion advances a bookmark through the pipeline stages.
// Each stage is guarded by the current status, so a redelivered message
// resumes where the previous attempt stopped.
func (o *Orchestrator) HandleBookmarkIngestion(ctx context.Context, msg *store.Message) error {
	var payload BookmarkIngestionPayload
	if err := decodePayload("ingest", msg.Payload, &payload); err != nil {
		return err
	}

	bookmark, err := o.store.GetBookmark(ctx, payload.BookmarkID)
	if err != nil {
		return err
	}
	if bookmark == nil {
		return services.Wrap(services.ErrNonRetryable, "ingest", "load",
			fmt.Sprintf("bookmark %d not found", payload.BookmarkID), nil)
	}

	ctx = services.WithBookmarkID(ctx, bookmark.ID)
	logger := o.logger.With(
		logging.Int64(logging.FieldBookmarkID, bookmark.ID),
		logging.String(logging.FieldUserID, bookmark.UserID),
	)

	for {
		switch bookmark.Status {
		case store.StatusPending:
			err = o.runExtraction(ctx, logger, bookmark, &payload)
		case store.StatusMarkdownReady:
			err = o.runAnalysis(ctx, logger, bookmark)
		case store.StatusContentReady:
			err = o.runChunking(ctx, logger, bookmark)
		case store.StatusChunksReady:
			err = o.finish(ctx, logger, bookmark)
		case store.StatusDone:
			return nil
		case store.StatusFailed:
			logger.Info("skipping message for failed bookmark")
			return nil
		default:
			return services.Wrap(services.ErrNonRetryable, "ingest", "dispatch",
				fmt.Sprintf("unknown bookmark status %q", bookmark.Status), nil)
		}
		if err != nil {
			return err
		}
	}
}

func (o *Orchestrator) runExtraction(ctx context.Context, logger *slog.Logger, bookmark *store.Bookmark, payload *BookmarkIngestionPayload) error {
	ctx = services.WithStage(ctx, "extraction")

	doc, err := o.loadDocument(ctx, bookmark, payload)
	if err != nil {
		return err
	}

	// Images are persisted before the status moves, and only images new to
	// this bookmark fan out. AddImage is idempotent across redeliveries.
	var created []*store.BookmarkImage
	for _, img := range doc.Images {
		record := &store.BookmarkImage{
			ID:             uuid.NewString(),
			BookmarkID:     bookmark.ID,
			URL:            img.URL,
			AltText:        img.AltText,
			Position:       img.Position,
			NearbyText:     img.NearbyText,
			HeuristicScore: img.HeuristicScore,
			EstimatedType:  img.EstimatedType,
		}
		added, err := o.store.AddImage(ctx, record)
		if err != nil {
			return err
		}
		if added {
			created = append(created, record)
		}
	}

	bookmark.Title = doc.Title
	bookmark.Markdown = doc.Markdown
	if err := bookmark.Transition(store.StatusMarkdownReady); err != nil {
		return err
	}
	if err := o.store.UpdateBookmark(ctx, bookmark); err != nil {
		return err
	}

	// Image fan-out is fire-and-forget: an enqueue failure degrades the
	// catalog but never blocks the text pipeline.
	for _, record := range created {
		payload, err := EncodeImageEntityExtraction(bookmark.ID, record.ID, bookmark.UserID)
		if err != nil {
			logger.Warn("failed to encode image message", logging.Error(err))
			continue
		}
		if _, err := o.store.Enqueue(ctx, store.MessageTypeImageEntityExtraction, payload); err != nil {
			logger.Warn("failed to enqueue image message",
				logging.Error(err),
				logging.String(logging.FieldImageID, record.ID),
			)
		}
	}

	logger.Info("content extracted",
		logging.String(logging.FieldStage, "extraction"),
		logging.Int("markdown_length", len(bookmark.Markdown)),
		logging.Int("image_count", len(doc.Images)),
	)
	return nil
}

// loadDocument prefers content the producer extracted client-side and falls
// back to fetching the page.
func (o *Orchestrator) loadDocument(ctx context.Context, bookmark *store.Bookmark, payload *BookmarkIngestionPayload) (*extraction.Document, error) {
	if payload == nil || strings.TrimSpace(payload.ExtractedContent) == "" {
		return o.extractor.Extract(ctx, bookmark.URL)
	}
	doc := &extraction.Document{
		Title:    payload.ExtractedTitle,
		Markdown: payload.ExtractedContent,
	}
	for i, img := range payload.ExtractedImages {
		if strings.TrimSpace(img.URL) == "" {
			continue
		}
		doc.Images = append(doc.Images, extraction.Image{
			URL:           img.URL,
			AltText:       img.AltText,
			Position:      i,
			EstimatedType: extraction.ImageTypeUnknown,
		})
	}
	return doc, nil
}

func (o *Orchestrator) runAnalysis(ctx context.Context, logger *slog.Logger, bookmark *store.Bookmark) error {
	ctx = services.WithStage(ctx, "analysis")

	result, err := o.analyzer.Analyze(ctx, bookmark.Markdown)
	if err != nil {
		return err
	}

	if result.Title != "" {
		bookmark.Title = result.Title
	}
	if result.Summary != "" {
		bookmark.Summary = result.Summary
	}

	merged, err := o.merger.Merge(ctx, bookmark, store.SourceText, "", result.Entities)
	if err != nil {
		return err
	}

	if err := bookmark.Transition(store.StatusContentReady); err != nil {
		return err
	}
	if err := o.store.UpdateBookmark(ctx, bookmark); err != nil {
		return err
	}

	logger.Info("content analyzed",
		logging.String(logging.FieldStage, "analysis"),
		logging.Int("entities_created", merged.Created),
		logging.Int("entities_linked", merged.Linked),
		logging.Int("entities_skipped", merged.Skipped),
	)
	return nil
}

func (o *Orchestrator) runChunking(ctx context.Context, logger *slog.Logger, bookmark *store.Bookmark) error {
	ctx = services.WithStage(ctx, "chunking")

	if err := o.chunker.Chunk(ctx, bookmark); err != nil {
		return err
	}
	if err := bookmark.Transition(store.StatusChunksReady); err != nil {
		return err
	}
	if err := o.store.UpdateBookmark(ctx, bookmark); err != nil {
		return err
	}

	logger.Info("content chunked", logging.String(logging.FieldStage, "chunking"))
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, bookmark *store.Bookmark) error {
	if err := bookmark.Transition(store.StatusDone); err != nil {
		return err
	}
	if err := o.store.UpdateBookmark(ctx, bookmark); err != nil {
		return err
	}

	entityCount := 0
	if links, err := o.store.LinksForBookmark(ctx, bookmark.ID); err == nil {
		entityCount = len(links)
	}
	if err := o.notifier.NotifyBookmarkEnriched(ctx, bookmark.Title, entityCount); err != nil {
		logger.Warn("failed to send enrichment notification", logging.Error(err))
	}

	logger.Info("bookmark enriched",
		logging.String(logging.FieldEventType, "bookmark_done"),
		logging.Int("entity_count", entityCount),
	)
	return nil
}

// HandleImageEntityExtraction runs the vision pass over one stored image and
// merges its findings into the catalog.
func (o *Orchestrator) HandleImageEntityExtraction(ctx context.Context, msg *store.Message) error {
	var payload ImageEntityExtractionPayload
	if err := decodePayload("imagescan", msg.Payload, &payload); err != nil {
		return err
	}

	image, err := o.store.GetImage(ctx, payload.ImageID)
	if err != nil {
		return err
	}
	if image == nil {
		return services.Wrap(services.ErrNonRetryable, "imagescan", "load",
			fmt.Sprintf("image %s not found", payload.ImageID), nil)
	}

	bookmark, err := o.store.GetBookmark(ctx, image.BookmarkID)
	if err != nil {
		return err
	}
	if bookmark == nil {
		return services.Wrap(services.ErrNonRetryable, "imagescan", "load",
			fmt.Sprintf("bookmark %d not found", image.BookmarkID), nil)
	}
	if bookmark.Status == store.StatusFailed {
		o.logger.Info("skipping image for failed bookmark",
			logging.Int64(logging.FieldBookmarkID, bookmark.ID),
			logging.String(logging.FieldImageID, image.ID),
		)
		return nil
	}

	ctx = services.WithBookmarkID(ctx, bookmark.ID)
	mentions, err := o.scanner.Scan(ctx, image)
	if err != nil {
		return err
	}

	merged, err := o.merger.Merge(ctx, bookmark, store.SourceImage, image.ID, mentions)
	if err != nil {
		return err
	}

	o.logger.Info("image entities merged",
		logging.Int64(logging.FieldBookmarkID, bookmark.ID),
		logging.String(logging.FieldImageID, image.ID),
		logging.Int("entities_created", merged.Created),
		logging.Int("entities_linked", merged.Linked),
	)
	return nil
}

// HandlePermanentFailure is the workflow dead-letter hook. A dead bookmark
// ingestion marks its bookmark failed; a dead image extraction only loses
// that image's contribution.
func (o *Orchestrator) HandlePermanentFailure(ctx context.Context, msg *store.Message, cause error) {
	switch msg.Type {
	case store.MessageTypeBookmarkIngestion:
		var payload BookmarkIngestionPayload
		if err := decodePayload("ingest", msg.Payload, &payload); err != nil {
			return
		}
		bookmark, err := o.store.GetBookmark(ctx, payload.BookmarkID)
		if err != nil || bookmark == nil || bookmark.Status.IsTerminal() {
			return
		}
		bookmark.SetFailed(truncateError(cause))
		if err := o.store.UpdateBookmark(ctx, bookmark); err != nil {
			o.logger.Error("failed to mark bookmark failed",
				logging.Error(err),
				logging.Int64(logging.FieldBookmarkID, bookmark.ID),
			)
			return
		}
		if err := o.notifier.NotifyBookmarkFailed(ctx, bookmark.URL, bookmark.ErrorMessage); err != nil {
			o.logger.Warn("failed to send failure notification", logging.Error(err))
		}
	case store.MessageTypeImageEntityExtraction:
		var payload ImageEntityExtractionPayload
		if err := decodePayload("imagescan", msg.Payload, &payload); err != nil {
			return
		}
		o.logger.Warn("image extraction failed permanently",
			logging.Int64(logging.FieldBookmarkID, payload.BookmarkID),
			logging.String(logging.FieldImageID, payload.ImageID),
			logging.Error(cause),
		)
	}
}

func truncateError(err error) string {
	if err == nil {
		return "unknown failure"
	}
	message := strings.TrimSpace(err.Error())
	const limit = 500
	if len(message) > limit {
		message = message[:limit] + "..."
	}
	return message
}
