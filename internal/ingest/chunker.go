package ingest

import (
	"context"

	"shelfmark/internal/store"
)

// Chunker splits enriched markdown into retrieval chunks. The pipeline calls
// it between content_ready and chunks_ready; downstream search indexing plugs
// in here.
type Chunker interface {
	Chunk(ctx context.Context, bookmark *store.Bookmark) error
}

// NoopChunker satisfies Chunker without producing chunks. Used until an
// indexing backend is wired in.
type NoopChunker struct{}

// Chunk is a no-op.
func (NoopChunker) Chunk(ctx context.Context, bookmark *store.Bookmark) error {
	return nil
}
