package ingest

import (
	"encoding/json"
	"fmt"

	"shelfmark/internal/services"
)

// BookmarkIngestionPayload is the body of a bookmark-ingestion message.
// URL and UserID duplicate the bookmark row for observability; the row is
// authoritative. A producer that already extracted the page (for example a
// browser-side capture) may inline its content and images, and the pipeline
// skips the fetch.
type BookmarkIngestionPayload struct {
	BookmarkID       int64           `json:"bookmark_id"`
	URL              string          `json:"url,omitempty"`
	UserID           string          `json:"user_id,omitempty"`
	ExtractedTitle   string          `json:"extracted_title,omitempty"`
	ExtractedContent string          `json:"extracted_content,omitempty"`
	ExtractedImages  []ProvidedImage `json:"extracted_images,omitempty"`
}

// ProvidedImage is a pre-extracted image supplied inline by the producer.
type ProvidedImage struct {
	URL     string `json:"url"`
	AltText string `json:"alt_text,omitempty"`
}

// ImageEntityExtractionPayload is the body of an image-entity-extraction
// message. The image row carries the URL and page context; UserID rides along
// so the message stays self-describing for queue inspection.
type ImageEntityExtractionPayload struct {
	BookmarkID int64  `json:"bookmark_id"`
	ImageID    string `json:"image_id"`
	UserID     string `json:"user_id,omitempty"`
}

// decodePayload unmarshals a message body. A payload that does not decode
// can never succeed, so it fails closed.
func decodePayload(stage, raw string, target any) error {
	if err := json.Unmarshal([]byte(raw), target); err != nil {
		return services.Wrap(services.ErrNonRetryable, stage, "decode", "malformed message payload", err)
	}
	return nil
}

// EncodeBookmarkIngestion renders a minimal payload for a bookmark-ingestion
// message.
func EncodeBookmarkIngestion(bookmarkID int64) (string, error) {
	return EncodeBookmarkIngestionPayload(BookmarkIngestionPayload{BookmarkID: bookmarkID})
}

// EncodeBookmarkIngestionPayload renders a fully-specified ingestion payload.
func EncodeBookmarkIngestionPayload(payload BookmarkIngestionPayload) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode bookmark ingestion payload: %w", err)
	}
	return string(encoded), nil
}

// EncodeImageEntityExtraction renders the payload for an
// image-entity-extraction message.
func EncodeImageEntityExtraction(bookmarkID int64, imageID, userID string) (string, error) {
	encoded, err := json.Marshal(ImageEntityExtractionPayload{BookmarkID: bookmarkID, ImageID: imageID, UserID: userID})
	if err != nil {
		return "", fmt.Errorf("encode image extraction payload: %w", err)
	}
	return string(encoded), nil
}
