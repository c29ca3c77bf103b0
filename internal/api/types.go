package api

// DefaultUserID scopes requests that do not name a user. Multi-user
// deployments pass explicit user IDs; the CLI defaults to this one.
const DefaultUserID = "default"

// Bookmark describes a saved bookmark in a transport-friendly format.
type Bookmark struct {
	ID           int64  `json:"id"`
	UserID       string `json:"userId"`
	URL          string `json:"url"`
	Title        string `json:"title,omitempty"`
	Summary      string `json:"summary,omitempty"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// Entity describes a catalog entry.
type Entity struct {
	ID             int64  `json:"id"`
	UserID         string `json:"userId"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	NormalizedName string `json:"normalizedName"`
	Status         string `json:"status"`
	BookmarkCount  int    `json:"bookmarkCount"`
	CreatedAt      string `json:"createdAt,omitempty"`
}

// EntityLink captures the provenance of an entity appearing on a bookmark.
type EntityLink struct {
	EntityID       int64   `json:"entityId"`
	EntityType     string  `json:"entityType"`
	EntityName     string  `json:"entityName"`
	Confidence     float64 `json:"confidence"`
	Source         string  `json:"source"`
	SourceImageID  string  `json:"sourceImageId,omitempty"`
	ContextSnippet string  `json:"contextSnippet,omitempty"`
}

// Image describes an image discovered on a bookmarked page.
type Image struct {
	ID             string  `json:"id"`
	URL            string  `json:"url"`
	AltText        string  `json:"altText,omitempty"`
	Position       int     `json:"position"`
	HeuristicScore float64 `json:"heuristicScore"`
	EstimatedType  string  `json:"estimatedType,omitempty"`
}

// QueueHealth summarizes the message queue by status.
type QueueHealth struct {
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Done       int `json:"done"`
	Dead       int `json:"dead"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool           `json:"running"`
	PID           int            `json:"pid"`
	DatabasePath  string         `json:"databasePath"`
	LockFilePath  string         `json:"lockFilePath"`
	Queue         QueueHealth    `json:"queue"`
	BookmarkStats map[string]int `json:"bookmarkStats"`
}

// CreateBookmarkRequest is the body of POST /api/bookmarks.
type CreateBookmarkRequest struct {
	UserID string `json:"userId"`
	URL    string `json:"url"`
}

// BookmarkResponse wraps a single bookmark.
type BookmarkResponse struct {
	Bookmark Bookmark `json:"bookmark"`
}

// BookmarkListResponse wraps a collection of bookmarks.
type BookmarkListResponse struct {
	Bookmarks []Bookmark `json:"bookmarks"`
}

// BookmarkDetailResponse carries a bookmark with its catalog links and images.
type BookmarkDetailResponse struct {
	Bookmark Bookmark     `json:"bookmark"`
	Entities []EntityLink `json:"entities"`
	Images   []Image      `json:"images"`
}

// EntityListResponse wraps a collection of catalog entities.
type EntityListResponse struct {
	Entities []Entity `json:"entities"`
}

// RetryResponse reports whether a retry request applied.
type RetryResponse struct {
	Retried  bool     `json:"retried"`
	Bookmark Bookmark `json:"bookmark"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
