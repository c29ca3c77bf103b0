// Package ingest orchestrates the bookmark enrichment pipeline. It owns the
// queue message handlers: bookmark ingestion walks a bookmark through
// extraction, analysis, chunking, and completion, and image entity extraction
// runs the vision pass over one discovered image.
package ingest
