package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"shelfmark/internal/services"
	"shelfmark/internal/services/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *llm.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return llm.NewClient(llm.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "test-model",
	})
}

func TestCompleteJSONReturnsContent(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["model"] != "test-model" {
			t.Fatalf("unexpected model: %v", req["model"])
		}
		if temp, ok := req["temperature"].(float64); !ok || temp != 0 {
			t.Fatalf("expected temperature 0, got %v", req["temperature"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"title\":\"Example\"}"}}]}`))
	})

	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}
	if content != `{"title":"Example"}` {
		t.Fatalf("unexpected content: %q", content)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
}

func TestCompleteJSONSurfacesHTTPStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *services.HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected HTTPStatusError 429, got %v", err)
	}
	if !services.IsRetryable(err) {
		t.Fatal("expected 429 to classify as retryable")
	}
}

func TestCompleteJSONClassifiesClientErrorNonRetryable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	if services.IsRetryable(err) {
		t.Fatal("expected 400 to classify as non-retryable")
	}
}

func TestCompleteJSONWithImageSendsContentParts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string          `json:"role"`
				Content json.RawMessage `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(req.Messages))
		}
		var parts []struct {
			Type     string `json:"type"`
			ImageURL *struct {
				URL string `json:"url"`
			} `json:"image_url"`
		}
		if err := json.Unmarshal(req.Messages[1].Content, &parts); err != nil {
			t.Fatalf("expected content parts array: %v", err)
		}
		found := false
		for _, part := range parts {
			if part.Type == "image_url" && part.ImageURL != nil && part.ImageURL.URL == "https://example.com/cover.jpg" {
				found = true
			}
		}
		if !found {
			t.Fatalf("image url part missing: %#v", parts)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"entities\":[]}"}}]}`))
	})

	content, err := client.CompleteJSONWithImage(context.Background(), "system", "describe", "https://example.com/cover.jpg")
	if err != nil {
		t.Fatalf("CompleteJSONWithImage failed: %v", err)
	}
	if content != `{"entities":[]}` {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestCompleteJSONEmptyContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":""},"finish_reason":"length"}]}`))
	})

	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestDecodeLLMJSONStripsCodeFences(t *testing.T) {
	var parsed struct {
		Title string `json:"title"`
	}
	payload := "```json\n{\"title\":\"Dune\"}\n```"
	if err := llm.DecodeLLMJSON(payload, &parsed); err != nil {
		t.Fatalf("DecodeLLMJSON failed: %v", err)
	}
	if parsed.Title != "Dune" {
		t.Fatalf("unexpected title: %q", parsed.Title)
	}
}

func TestDecodeLLMJSONExtractsEmbeddedObject(t *testing.T) {
	var parsed struct {
		OK bool `json:"ok"`
	}
	payload := "Here is the result: {\"ok\": true} hope that helps"
	if err := llm.DecodeLLMJSON(payload, &parsed); err != nil {
		t.Fatalf("DecodeLLMJSON failed: %v", err)
	}
	if !parsed.OK {
		t.Fatal("expected ok true")
	}
}
