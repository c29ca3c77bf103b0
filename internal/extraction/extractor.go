package extraction

import (
	"bytes"
	"context"
	"net/url"

	"golang.org/x/net/html"

	"shelfmark/internal/config"
	"shelfmark/internal/services"
)

// Document is the extracted representation of a bookmarked page.
type Document struct {
	Title    string
	Markdown string
	Images   []Image
}

// Extractor fetches a page and converts it into a Document.
type Extractor struct {
	fetcher   *Fetcher
	maxImages int
}

// NewExtractor constructs an Extractor from fetch configuration.
func NewExtractor(cfg config.Fetch, opts ...FetcherOption) *Extractor {
	return &Extractor{
		fetcher:   NewFetcher(cfg, opts...),
		maxImages: cfg.MaxImages,
	}
}

// Extract fetches rawURL and produces its markdown content and candidate
// images. An unparsable HTML payload is a permanent failure.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Document, error) {
	page, err := e.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, services.Wrap(services.ErrNonRetryable, "extraction", "parse", "parse html", err)
	}

	base, err := url.Parse(page.FinalURL)
	if err != nil {
		base = nil
	}

	collector := newImageCollector(e.maxImages)
	markdown := convertToMarkdown(doc, base, collector)

	title := extractTitle(doc)
	if title == "" {
		title = page.FinalURL
	}

	return &Document{
		Title:    title,
		Markdown: markdown,
		Images:   collector.images,
	}, nil
}
