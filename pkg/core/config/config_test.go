package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_DEEPSEEK_KEY", "sk-test-123")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
ai:
  active_provider: deepseek
  deepseek_api_key: "${TEST_DEEPSEEK_KEY}"
storage:
  postgres_dsn: "postgres://localhost/infounit"
feeds:
  - name: Example Feed
    url: https://example.com/rss
    category: tech
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AI.DeepSeekAPIKey != "sk-test-123" {
		t.Errorf("expected expanded api key, got %q", cfg.AI.DeepSeekAPIKey)
	}
	if cfg.Schedule.CycleIntervalMinutes != 30 {
		t.Errorf("expected default cycle interval 30, got %d", cfg.Schedule.CycleIntervalMinutes)
	}
	if cfg.Schedule.DefaultMode != "deep" {
		t.Errorf("expected default mode deep, got %q", cfg.Schedule.DefaultMode)
	}
	if len(cfg.Feeds) != 1 || cfg.Feeds[0].Name != "Example Feed" {
		t.Errorf("expected one feed parsed, got %+v", cfg.Feeds)
	}
}

func TestLoadLeavesUnresolvedVarLiteral(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("ai:\n  active_provider: \"${TOTALLY_UNSET_VAR}\"\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AI.ActiveProvider != "${TOTALLY_UNSET_VAR}" {
		t.Errorf("expected unresolved var left literal, got %q", cfg.AI.ActiveProvider)
	}
}
