// Package imagescan identifies creative works depicted in bookmark images
// using a vision-capable LLM.
package imagescan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shelfmark/internal/catalog"
	"shelfmark/internal/logging"
	"shelfmark/internal/services"
	"shelfmark/internal/services/llm"
	"shelfmark/internal/store"
)

// visionPrompt instructs the model to identify works shown in an image.
const visionPrompt = `You are an entity identification system. Given an image from a web page, identify any book, movie, or TV show the image depicts (a book cover, a movie poster, a promotional still).

Respond with JSON only, in this exact shape:
{
  "entities": [
    {
      "type": "book" | "movie" | "tv_show",
      "name": "canonical title of the work",
      "confidence": 0.0-1.0
    }
  ]
}

Rules:
- Only name works you can actually identify from the image. Do not guess
  from genre or style alone.
- Use the canonical published title for "name".
- If the image depicts no identifiable work, return an empty "entities"
  array.`

// VisionCompleter is the LLM surface the scanner needs.
type VisionCompleter interface {
	CompleteJSONWithImage(ctx context.Context, systemPrompt, userPrompt, imageURL string) (string, error)
}

// Scanner identifies entities in discovered bookmark images.
type Scanner struct {
	completer VisionCompleter
	logger    *slog.Logger
}

// NewScanner constructs a Scanner backed by the given vision completer.
func NewScanner(completer VisionCompleter, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{completer: completer, logger: logger}
}

type visionPayload struct {
	Entities []struct {
		Type       string  `json:"type"`
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"entities"`
}

// Scan identifies works depicted in the given image. The page context stored
// with the image (alt text, surrounding prose, heuristic estimate) is passed
// to the model as hints. A malformed payload is a transient failure.
func (s *Scanner) Scan(ctx context.Context, image *store.BookmarkImage) ([]catalog.ExtractedEntity, error) {
	if image == nil {
		return nil, fmt.Errorf("scan: image is nil")
	}

	content, err := s.completer.CompleteJSONWithImage(ctx, visionPrompt, buildContextPrompt(image), image.URL)
	if err != nil {
		return nil, fmt.Errorf("scan image %s: %w", image.ID, err)
	}

	var payload visionPayload
	if err := llm.DecodeLLMJSON(content, &payload); err != nil {
		return nil, services.Wrap(services.ErrRetryable, "imagescan", "decode", "parse vision payload", err)
	}

	var mentions []catalog.ExtractedEntity
	for _, raw := range payload.Entities {
		entityType, ok := store.ParseEntityType(raw.Type)
		if !ok {
			continue
		}
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			continue
		}
		confidence := raw.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		mentions = append(mentions, catalog.ExtractedEntity{
			Type:       entityType,
			Name:       name,
			Confidence: confidence,
		})
	}

	s.logger.Info("image scanned",
		logging.String("image_id", image.ID),
		logging.Int("entity_count", len(mentions)),
	)
	return mentions, nil
}

// buildContextPrompt summarizes what the extraction pass recorded about the
// image so the model can disambiguate similar covers.
func buildContextPrompt(image *store.BookmarkImage) string {
	var parts []string
	if image.AltText != "" {
		parts = append(parts, "Alt text: "+image.AltText)
	}
	if image.NearbyText != "" {
		parts = append(parts, "Surrounding page text: "+image.NearbyText)
	}
	if image.EstimatedType != "" && image.EstimatedType != "unknown" {
		parts = append(parts, "Page heuristics suggest this is a "+strings.ReplaceAll(image.EstimatedType, "_", " ")+".")
	}
	if len(parts) == 0 {
		return "Identify any creative work shown in this image."
	}
	return strings.Join(parts, "\n")
}
