package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shelfmark/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[llm]
api_key = "sk-test"
`)
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved = %q exists = %v", resolved, exists)
	}
	if cfg.Workflow.WorkerCount != 4 {
		t.Fatalf("worker count default = %d", cfg.Workflow.WorkerCount)
	}
	if cfg.Workflow.RetryBaseDelay != 5 || cfg.Workflow.RetryMaxDelay != 300 {
		t.Fatalf("retry defaults = %d/%d", cfg.Workflow.RetryBaseDelay, cfg.Workflow.RetryMaxDelay)
	}
	if cfg.LLM.Model == "" || cfg.LLM.BaseURL == "" {
		t.Fatal("llm defaults missing")
	}
	if strings.HasPrefix(cfg.DataDir, "~") {
		t.Fatalf("data dir not expanded: %q", cfg.DataDir)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	path := writeConfig(t, "")
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected missing api key error")
	}
}

func TestLoadRejectsBadRetryWindow(t *testing.T) {
	path := writeConfig(t, `
[llm]
api_key = "sk-test"

[workflow]
retry_base_delay = 60
retry_max_delay = 10
`)
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected retry window validation error")
	}
}

func TestVisionFallsBackToLLM(t *testing.T) {
	path := writeConfig(t, `
[llm]
api_key = "sk-test"
model = "text-model"

[vision]
model = "vision-model"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	vision := cfg.VisionLLM()
	if vision.APIKey != "sk-test" {
		t.Fatalf("vision api key = %q", vision.APIKey)
	}
	if vision.Model != "vision-model" {
		t.Fatalf("vision model = %q", vision.Model)
	}
	if vision.TimeoutSeconds != cfg.LLM.TimeoutSeconds {
		t.Fatalf("vision timeout = %d", vision.TimeoutSeconds)
	}
}
