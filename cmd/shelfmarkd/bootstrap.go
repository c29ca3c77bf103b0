package main

import (
	"log/slog"

	"shelfmark/internal/analysis"
	"shelfmark/internal/config"
	"shelfmark/internal/extraction"
	"shelfmark/internal/imagescan"
	"shelfmark/internal/ingest"
	"shelfmark/internal/notifications"
	"shelfmark/internal/services/llm"
	"shelfmark/internal/store"
)

func buildOrchestrator(cfg *config.Config, st *store.Store, logger *slog.Logger) *ingest.Orchestrator {
	textClient := llm.NewClient(llmClientConfig(cfg.LLM))
	visionClient := llm.NewClient(llmClientConfig(cfg.VisionLLM()))

	extractor := extraction.NewExtractor(cfg.Fetch)
	analyzer := analysis.NewAnalyzer(textClient, logger)
	scanner := imagescan.NewScanner(visionClient, logger)
	notifier := notifications.NewService(cfg)

	return ingest.NewOrchestrator(st, extractor, analyzer, scanner, notifier, logger)
}

func llmClientConfig(src config.LLM) llm.Config {
	return llm.Config{
		APIKey:         src.APIKey,
		BaseURL:        src.BaseURL,
		Model:          src.Model,
		TimeoutSeconds: src.TimeoutSeconds,
		MaxTokens:      src.MaxTokens,
	}
}
