package extraction

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shelfmark/internal/config"
	"shelfmark/internal/services"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultMaxBodyBytes = 8 * 1024 * 1024
	defaultUserAgent    = "Mozilla/5.0 (compatible; shelfmark/1.0)"
)

// Page is the raw result of fetching a bookmarked URL.
type Page struct {
	URL      string
	FinalURL string
	HTML     []byte
}

// Fetcher retrieves page content over HTTP with a bounded body size.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
}

// FetcherOption customizes the fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// NewFetcher constructs a Fetcher from fetch configuration.
func NewFetcher(cfg config.Fetch, opts ...FetcherOption) *Fetcher {
	timeout := defaultFetchTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	fetcher := &Fetcher{
		client:       &http.Client{Timeout: timeout},
		userAgent:    strings.TrimSpace(cfg.UserAgent),
		maxBodyBytes: cfg.MaxBodyBytes,
	}
	if fetcher.userAgent == "" {
		fetcher.userAgent = defaultUserAgent
	}
	if fetcher.maxBodyBytes <= 0 {
		fetcher.maxBodyBytes = defaultMaxBodyBytes
	}
	for _, opt := range opts {
		opt(fetcher)
	}
	return fetcher
}

// Fetch retrieves the page at rawURL. A malformed URL or a non-HTML response
// is a permanent validation failure; network errors and upstream status codes
// surface as-is for the queue runtime to classify.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, services.Wrap(services.ErrNonRetryable, "extraction", "fetch", "invalid url", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, services.Wrap(services.ErrNonRetryable, "extraction", "fetch",
			fmt.Sprintf("unsupported url scheme %q", parsed.Scheme), nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", parsed.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("fetch %s: %w", parsed.Host, &services.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		})
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContentType(contentType) {
		return nil, services.Wrap(services.ErrNonRetryable, "extraction", "fetch",
			fmt.Sprintf("unsupported content type %q", contentType), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", parsed.Host, err)
	}

	finalURL := parsed.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Page{URL: rawURL, FinalURL: finalURL, HTML: body}, nil
}

func isHTMLContentType(contentType string) bool {
	// An absent header is treated as HTML; servers that omit it usually
	// serve pages.
	value := strings.ToLower(strings.TrimSpace(contentType))
	if value == "" {
		return true
	}
	return strings.HasPrefix(value, "text/html") || strings.HasPrefix(value, "application/xhtml+xml")
}
