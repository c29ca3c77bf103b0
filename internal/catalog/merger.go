package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"shelfmark/internal/logging"
	"shelfmark/internal/store"
)

// MinLinkConfidence is the floor below which extracted entities are dropped
// instead of entering the catalog. The floor applies here for every source,
// so extraction passes never pre-filter.
const MinLinkConfidence = 0.5

// ExtractedEntity is one entity mention produced by a text or image
// extraction pass, before catalog resolution.
type ExtractedEntity struct {
	Type           store.EntityType
	Name           string
	Confidence     float64
	ContextSnippet string
	Hints          map[string]string
}

// Result summarizes one merge batch.
type Result struct {
	Created int // entities newly added to the catalog
	Linked  int // links recorded against the bookmark
	Skipped int // mentions dropped below the confidence floor or malformed
}

// Merger resolves extracted entity mentions against a user's catalog. Inserts
// are optimistic and links are first-write-wins, so merging the same batch
// twice converges to the same rows.
type Merger struct {
	store  *store.Store
	logger *slog.Logger
}

// NewMerger constructs a Merger backed by the given store.
func NewMerger(st *store.Store, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Merger{store: st, logger: logger}
}

// Merge resolves a batch of mentions for one bookmark. sourceImageID is empty
// for text extraction. Mentions below the confidence floor are dropped, and
// duplicate mentions within the batch keep the highest-confidence occurrence.
func (m *Merger) Merge(ctx context.Context, bookmark *store.Bookmark, source store.LinkSource, sourceImageID string, mentions []ExtractedEntity) (Result, error) {
	var result Result
	if bookmark == nil {
		return result, fmt.Errorf("merge: bookmark is nil")
	}

	deduped := dedupeMentions(mentions, &result)

	for _, mention := range deduped {
		entity, created, err := m.store.EnsureEntity(ctx, bookmark.UserID, mention.Type, mention.Name, NormalizeName(mention.Name))
		if err != nil {
			return result, fmt.Errorf("merge: ensure entity %q: %w", mention.Name, err)
		}
		if created {
			result.Created++
			m.logger.Info("catalog entity created",
				logging.String("entity_name", entity.Name),
				logging.String("entity_type", string(entity.Type)),
				logging.Int64("entity_id", entity.ID),
			)
		}

		hintsJSON := ""
		if len(mention.Hints) > 0 {
			encoded, err := json.Marshal(mention.Hints)
			if err != nil {
				return result, fmt.Errorf("merge: encode hints for %q: %w", mention.Name, err)
			}
			hintsJSON = string(encoded)
		}

		linked, err := m.store.EnsureLink(ctx, &store.EntityBookmarkLink{
			EntityID:       entity.ID,
			BookmarkID:     bookmark.ID,
			Confidence:     mention.Confidence,
			Source:         source,
			SourceImageID:  sourceImageID,
			ContextSnippet: mention.ContextSnippet,
			HintsJSON:      hintsJSON,
		})
		if err != nil {
			return result, fmt.Errorf("merge: ensure link for %q: %w", mention.Name, err)
		}
		if linked {
			result.Linked++
		}
	}

	return result, nil
}

// dedupeMentions drops sub-floor and malformed mentions and collapses
// duplicates by (type, normalized name), keeping the highest confidence.
func dedupeMentions(mentions []ExtractedEntity, result *Result) []ExtractedEntity {
	type key struct {
		entityType store.EntityType
		name       string
	}
	index := make(map[key]int)
	kept := make([]ExtractedEntity, 0, len(mentions))

	for _, mention := range mentions {
		mention.Name = strings.TrimSpace(mention.Name)
		normalized := NormalizeName(mention.Name)
		if mention.Name == "" || normalized == "" {
			result.Skipped++
			continue
		}
		if _, ok := store.ParseEntityType(string(mention.Type)); !ok {
			result.Skipped++
			continue
		}
		if mention.Confidence < MinLinkConfidence {
			result.Skipped++
			continue
		}

		k := key{entityType: mention.Type, name: normalized}
		if idx, ok := index[k]; ok {
			if mention.Confidence > kept[idx].Confidence {
				kept[idx] = mention
			}
			continue
		}
		index[k] = len(kept)
		kept = append(kept, mention)
	}
	return kept
}
