package api

import (
	"time"

	"shelfmark/internal/store"
)

// FromBookmark converts a store bookmark into its transport form.
func FromBookmark(b *store.Bookmark) Bookmark {
	if b == nil {
		return Bookmark{}
	}
	return Bookmark{
		ID:           b.ID,
		UserID:       b.UserID,
		URL:          b.URL,
		Title:        b.Title,
		Summary:      b.Summary,
		Status:       string(b.Status),
		ErrorMessage: b.ErrorMessage,
		CreatedAt:    formatTimestamp(b.CreatedAt),
		UpdatedAt:    formatTimestamp(b.UpdatedAt),
	}
}

// FromBookmarks converts a slice of store bookmarks.
func FromBookmarks(bookmarks []*store.Bookmark) []Bookmark {
	if len(bookmarks) == 0 {
		return nil
	}
	out := make([]Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		out = append(out, FromBookmark(b))
	}
	return out
}

// FromEntity converts a store entity. The link count is supplied by the
// caller since the store keeps it in a separate table.
func FromEntity(e *store.Entity, bookmarkCount int) Entity {
	if e == nil {
		return Entity{}
	}
	return Entity{
		ID:             e.ID,
		UserID:         e.UserID,
		Type:           string(e.Type),
		Name:           e.Name,
		NormalizedName: e.NormalizedName,
		Status:         e.Status,
		BookmarkCount:  bookmarkCount,
		CreatedAt:      formatTimestamp(e.CreatedAt),
	}
}

// FromLink converts a store link, joining in the entity's identity.
func FromLink(link *store.EntityBookmarkLink, entity *store.Entity) EntityLink {
	out := EntityLink{}
	if link != nil {
		out.EntityID = link.EntityID
		out.Confidence = link.Confidence
		out.Source = string(link.Source)
		out.SourceImageID = link.SourceImageID
		out.ContextSnippet = link.ContextSnippet
	}
	if entity != nil {
		out.EntityType = string(entity.Type)
		out.EntityName = entity.Name
	}
	return out
}

// FromImage converts a store bookmark image.
func FromImage(img *store.BookmarkImage) Image {
	if img == nil {
		return Image{}
	}
	return Image{
		ID:             img.ID,
		URL:            img.URL,
		AltText:        img.AltText,
		Position:       img.Position,
		HeuristicScore: img.HeuristicScore,
		EstimatedType:  img.EstimatedType,
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
