package testsupport

import (
	"path/filepath"
	"testing"

	"shelfmark/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.LLM.APIKey = "test"
	cfg.DataDir = filepath.Join(base, "data")
	cfg.LogDir = filepath.Join(base, "logs")
	cfg.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithLLMBaseURL points the LLM client at a test server.
func WithLLMBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.LLM.BaseURL = url
	}
}

// WithVisionBaseURL points the vision client at a test server.
func WithVisionBaseURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Vision.BaseURL = url
	}
}

// WithRetryPolicy overrides the workflow retry parameters.
func WithRetryPolicy(baseDelaySeconds, maxDelaySeconds, maxAttempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.RetryBaseDelay = baseDelaySeconds
		cfg.Workflow.RetryMaxDelay = maxDelaySeconds
		cfg.Workflow.RetryMaxAttempts = maxAttempts
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.DataDir)
}
