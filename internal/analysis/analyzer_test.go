package analysis_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"shelfmark/internal/analysis"
	"shelfmark/internal/services"
	"shelfmark/internal/store"
)

type stubCompleter struct {
	response string
	err      error
	called   bool
	prompt   string
}

func (s *stubCompleter) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.called = true
	s.prompt = userPrompt
	return s.response, s.err
}

func longContent() string {
	return strings.Repeat("This page reviews several books in depth. ", 10)
}

func TestAnalyzeSkipsShortContent(t *testing.T) {
	completer := &stubCompleter{}
	analyzer := analysis.NewAnalyzer(completer, nil)

	result, err := analyzer.Analyze(context.Background(), "too short")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if completer.called {
		t.Fatal("expected no LLM call for short content")
	}
	if len(result.Entities) != 0 {
		t.Fatalf("expected empty result, got %#v", result)
	}
}

func TestAnalyzeParsesEntities(t *testing.T) {
	completer := &stubCompleter{response: `{
		"title": "Best Books",
		"summary": "A roundup of favorite reads.",
		"entities": [
			{"type": "book", "name": "The Hobbit", "confidence": 0.9, "context": "finally read The Hobbit", "hints": {"author": "J.R.R. Tolkien"}},
			{"type": "movie", "name": "Dune", "confidence": 0.3}
		]
	}`}
	analyzer := analysis.NewAnalyzer(completer, nil)

	result, err := analyzer.Analyze(context.Background(), longContent())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if result.Title != "Best Books" || result.Summary == "" {
		t.Fatalf("unexpected metadata: %#v", result)
	}
	if len(result.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(result.Entities))
	}
	first := result.Entities[0]
	if first.Type != store.TypeBook || first.Name != "The Hobbit" || first.Confidence != 0.9 {
		t.Fatalf("unexpected first entity: %#v", first)
	}
	if first.Hints["author"] != "J.R.R. Tolkien" {
		t.Fatalf("expected hints preserved, got %#v", first.Hints)
	}
	// Low-confidence mentions pass through; the catalog applies the floor.
	if result.Entities[1].Confidence != 0.3 {
		t.Fatalf("expected low-confidence mention kept, got %#v", result.Entities[1])
	}
}

func TestAnalyzeDedupesWithinResponse(t *testing.T) {
	completer := &stubCompleter{response: `{
		"entities": [
			{"type": "book", "name": "Dune", "confidence": 0.6},
			{"type": "book", "name": "dune", "confidence": 0.9},
			{"type": "movie", "name": "Dune", "confidence": 0.7}
		]
	}`}
	analyzer := analysis.NewAnalyzer(completer, nil)

	result, err := analyzer.Analyze(context.Background(), longContent())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(result.Entities) != 2 {
		t.Fatalf("expected book and movie entries, got %#v", result.Entities)
	}
	for _, entity := range result.Entities {
		if entity.Type == store.TypeBook && entity.Confidence != 0.9 {
			t.Fatalf("expected higher-confidence duplicate to win, got %#v", entity)
		}
	}
}

func TestAnalyzeDropsUnknownTypes(t *testing.T) {
	completer := &stubCompleter{response: `{
		"entities": [
			{"type": "album", "name": "Discovery", "confidence": 0.9},
			{"type": "tv_show", "name": "Severance", "confidence": 1.4}
		]
	}`}
	analyzer := analysis.NewAnalyzer(completer, nil)

	result, err := analyzer.Analyze(context.Background(), longContent())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(result.Entities) != 1 {
		t.Fatalf("expected unknown type dropped, got %#v", result.Entities)
	}
	if result.Entities[0].Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", result.Entities[0].Confidence)
	}
}

func TestAnalyzeMalformedPayloadIsRetryable(t *testing.T) {
	completer := &stubCompleter{response: `this is not json at all`}
	analyzer := analysis.NewAnalyzer(completer, nil)

	_, err := analyzer.Analyze(context.Background(), longContent())
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if !services.IsRetryable(err) {
		t.Fatalf("expected malformed payload to be retryable: %v", err)
	}
}

func TestAnalyzePropagatesCompleterError(t *testing.T) {
	wantErr := errors.New("upstream down")
	completer := &stubCompleter{err: wantErr}
	analyzer := analysis.NewAnalyzer(completer, nil)

	_, err := analyzer.Analyze(context.Background(), longContent())
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped completer error, got %v", err)
	}
}

func TestAnalyzeTruncatesLongContent(t *testing.T) {
	completer := &stubCompleter{response: `{"entities": []}`}
	analyzer := analysis.NewAnalyzer(completer, nil)

	huge := strings.Repeat("a", 60000)
	if _, err := analyzer.Analyze(context.Background(), huge); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(completer.prompt) > 48100 {
		t.Fatalf("expected prompt truncated, got %d chars", len(completer.prompt))
	}
	if !strings.Contains(completer.prompt, "[content truncated]") {
		t.Fatal("expected truncation marker in prompt")
	}
}
