package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when the daemon reports a missing resource.
var ErrNotFound = errors.New("not found")

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// ClientOption customizes the API client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// NewClient builds a client for the daemon listening at bind. The bind value
// comes straight from configuration, so a bare host:port is accepted.
func NewClient(bind, token string, opts ...ClientOption) *Client {
	base := strings.TrimSpace(bind)
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{
		baseURL: strings.TrimRight(base, "/"),
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateBookmark submits a URL for enrichment. When the bookmark already
// exists for this user the existing row is returned with created=false.
func (c *Client) CreateBookmark(ctx context.Context, userID, rawURL string) (Bookmark, bool, error) {
	body, err := json.Marshal(CreateBookmarkRequest{UserID: userID, URL: rawURL})
	if err != nil {
		return Bookmark{}, false, fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/bookmarks", nil, bytes.NewReader(body))
	if err != nil {
		return Bookmark{}, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusConflict:
		var payload BookmarkResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return Bookmark{}, false, fmt.Errorf("decode response: %w", err)
		}
		return payload.Bookmark, resp.StatusCode == http.StatusCreated, nil
	default:
		return Bookmark{}, false, c.responseError(resp)
	}
}

// ListBookmarks fetches bookmarks for a user, optionally filtered by status.
func (c *Client) ListBookmarks(ctx context.Context, userID string, statuses ...string) ([]Bookmark, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	for _, status := range statuses {
		query.Add("status", status)
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/bookmarks", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.responseError(resp)
	}
	var payload BookmarkListResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return payload.Bookmarks, nil
}

// GetBookmark fetches one bookmark with its catalog links and images.
func (c *Client) GetBookmark(ctx context.Context, id int64) (*BookmarkDetailResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/bookmarks/"+strconv.FormatInt(id, 10), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.responseError(resp)
	}
	var payload BookmarkDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &payload, nil
}

// RetryBookmark asks the daemon to re-run a failed bookmark.
func (c *Client) RetryBookmark(ctx context.Context, id int64) (*RetryResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/bookmarks/"+strconv.FormatInt(id, 10)+"/retry", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.responseError(resp)
	}
	var payload RetryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &payload, nil
}

// ListEntities fetches the catalog for a user, optionally filtered by type.
func (c *Client) ListEntities(ctx context.Context, userID string, types ...string) ([]Entity, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	for _, entityType := range types {
		query.Add("type", entityType)
	}
	resp, err := c.do(ctx, http.MethodGet, "/api/entities", query, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.responseError(resp)
	}
	var payload EntityListResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return payload.Entities, nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/status", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, c.responseError(resp)
	}
	var payload DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &payload, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, errors.New("daemon API address is not configured")
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon request failed (is the daemon running?): %w", err)
	}
	return resp, nil
}

func (c *Client) responseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload ErrorResponse
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("daemon returned %d", resp.StatusCode)
}
