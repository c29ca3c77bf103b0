package store

import (
	"strings"
	"time"
)

// BookmarkStatus represents the enrichment lifecycle of a bookmark.
type BookmarkStatus string

const (
	StatusPending       BookmarkStatus = "pending"
	StatusMarkdownReady BookmarkStatus = "markdown_ready"
	StatusContentReady  BookmarkStatus = "content_ready"
	StatusChunksReady   BookmarkStatus = "chunks_ready"
	StatusDone          BookmarkStatus = "done"
	StatusFailed        BookmarkStatus = "failed"
)

var allStatuses = []BookmarkStatus{
	StatusPending,
	StatusMarkdownReady,
	StatusContentReady,
	StatusChunksReady,
	StatusDone,
	StatusFailed,
}

// AllStatuses returns the ordered list of known bookmark statuses.
func AllStatuses() []BookmarkStatus {
	cp := make([]BookmarkStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known BookmarkStatus.
func ParseStatus(value string) (BookmarkStatus, bool) {
	normalized := BookmarkStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether a status ends the pipeline for a bookmark.
func (s BookmarkStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Bookmark is one saved URL per user, tracked through enrichment.
type Bookmark struct {
	ID           int64
	UserID       string
	URL          string
	Title        string
	Summary      string
	Markdown     string
	Status       BookmarkStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SetFailed marks the bookmark as terminally failed with a diagnostic message.
func (b *Bookmark) SetFailed(message string) {
	b.Status = StatusFailed
	b.ErrorMessage = message
}

// EntityType classifies a catalog entity.
type EntityType string

const (
	TypeBook   EntityType = "book"
	TypeMovie  EntityType = "movie"
	TypeTVShow EntityType = "tv_show"
)

// ParseEntityType converts a string into a known EntityType.
func ParseEntityType(value string) (EntityType, bool) {
	normalized := EntityType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case TypeBook, TypeMovie, TypeTVShow:
		return normalized, true
	}
	return "", false
}

// Entity is one distinct creative work in a user's catalog, deduplicated by
// (user, type, normalized name).
type Entity struct {
	ID             int64
	UserID         string
	Type           EntityType
	Name           string
	NormalizedName string
	Status         string
	CreatedAt      time.Time
}

// LinkSource records which extraction pass produced an entity-bookmark link.
type LinkSource string

const (
	SourceText  LinkSource = "text"
	SourceImage LinkSource = "image"
)

// EntityBookmarkLink is evidence that an entity was found in a bookmark.
// Link rows are write-once: the first extraction pass to find a pair wins.
type EntityBookmarkLink struct {
	EntityID       int64
	BookmarkID     int64
	Confidence     float64
	Source         LinkSource
	SourceImageID  string
	ContextSnippet string
	HintsJSON      string
	CreatedAt      time.Time
}

// BookmarkImage is an image discovered during content extraction, persisted so
// the image-entity-extraction message only needs to carry its ID.
type BookmarkImage struct {
	ID             string
	BookmarkID     int64
	URL            string
	AltText        string
	Position       int
	NearbyText     string
	HeuristicScore float64
	EstimatedType  string
	CreatedAt      time.Time
}

// MessageStatus is the queue lifecycle of a message.
type MessageStatus string

const (
	MessageQueued     MessageStatus = "queued"
	MessageProcessing MessageStatus = "processing"
	MessageDone       MessageStatus = "done"
	MessageDead       MessageStatus = "dead"
)

// Queue message types.
const (
	MessageTypeBookmarkIngestion     = "bookmark-ingestion"
	MessageTypeImageEntityExtraction = "image-entity-extraction"
)

// Message is one queued unit of work.
type Message struct {
	ID          int64
	Type        string
	Payload     string
	Status      MessageStatus
	Attempts    int
	AvailableAt time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// QueueHealth describes aggregated message counts per lifecycle state.
type QueueHealth struct {
	Queued     int
	Processing int
	Done       int
	Dead       int
}
