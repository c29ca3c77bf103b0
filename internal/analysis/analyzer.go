package analysis

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

const (
	// minContentLength guards against firing the LLM at pages with no
	// meaningful prose (redirect stubs, paywall shells).
	minContentLength = 100

	// maxContentLength bounds the prompt; longer markdown is truncated.
	maxContentLength = 48000

	truncationMarker = "\n\n[content truncated]"
)

// Completer is the LLM surface the analyzer needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Result is the outcome of analyzing a bookmark's markdown.
type Result struct {
	Title    string
	Summary  string
	Entities []catalog.ExtractedEntity
}

// Analyzer extracts entity mentions from markdown content.
type Analyzer struct {
	completer Completer
	logger    *slog.Logger
}

// NewAnalyzer constructs an Analyzer backed by the given completer.
func NewAnalyzer(completer Completer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{completer: completer, logger: logger}
}

type extractionPayload struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Entities []struct {
		Type       string            `json:"type"`
		Name       string            `json:"name"`
		Confidence float64           `json:"confidence"`
		Context    string            `json:"context"`
		Hints      map[string]string `json:"hints"`
	} `json:"entities"`
}

// Analyze extracts entity mentions from markdown. Short content produces an
// empty result without calling the model. A malformed model payload is a
// transient failure: the same prompt usually decodes on redelivery.
func (a *Analyzer) Analyze(ctx context.Context, markdown string) (Result, error) {
	var result Result

	trimmed := strings.TrimSpace(markdown)
	if len(trimmed) < minContentLength {
		a.logger.Debug("content too short for analysis", logging.Int("length", len(trimmed)))
		return result, nil
	}
	if len(trimmed) > maxContentLength {
		trimmed = trimmed[:maxContentLength] + truncationMarker
	}

	content, err := a.completer.CompleteJSON(ctx, entityExtractionPrompt, trimmed)
	if err != nil {
		return result, fmt.Errorf("analyze content: %w", err)
	}

	var payload extractionPayload
	if err := llm.DecodeLLMJSON(content, &payload); err != nil {
		return result, services.Wrap(services.ErrRetryable, "analysis", "decode", "parse extraction payload", err)
	}

	result.Title = strings.TrimSpace(payload.Title)
	result.Summary = strings.TrimSpace(payload.Summary)
	result.Entities = collectMentions(payload)

	a.logger.Info("content analyzed",
		logging.Int("entity_count", len(result.Entities)),
		logging.Int("content_length", len(trimmed)),
	)
	return result, nil
}

// collectMentions normalizes the raw payload, dropping unknown types and
// collapsing duplicate names to the highest-confidence occurrence. The
// confidence floor is not applied here; that belongs to the catalog merger.
func collectMentions(payload extractionPayload) []catalog.ExtractedEntity {
	type key struct {
		entityType store.EntityType
		name       string
	}
	index := make(map[key]int)
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

		mention := catalog.ExtractedEntity{
			Type:           entityType,
			Name:           name,
			Confidence:     confidence,
			ContextSnippet: strings.TrimSpace(raw.Context),
			Hints:          raw.Hints,
		}

		k := key{entityType: entityType, name: strings.ToLower(name)}
		if idx, exists := index[k]; exists {
			if mention.Confidence > mentions[idx].Confidence {
				mentions[idx] = mention
			}
			continue
		}
		index[k] = len(mentions)
		mentions = append(mentions, mention)
	}
	return mentions
}
