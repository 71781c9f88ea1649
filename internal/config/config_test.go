package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: "9090"
  allowed_origins: ["http://localhost:5173"]
session:
  bus: redis
  tick: 500ms
genai:
  text_model: text-model
  variation_concurrency: 3
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || len(cfg.Server.AllowedOrigins) != 1 {
		t.Fatalf("unexpected server section %+v", cfg.Server)
	}
	if !cfg.RedisBus() {
		t.Fatalf("expected redis bus")
	}
	if got := TTLDuration(cfg.Session.Tick, time.Second); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms tick, got %v", got)
	}
	if cfg.GenAI.TextModel != "text-model" || cfg.GenAI.VariationConcurrency != 3 {
		t.Fatalf("unexpected genai section %+v", cfg.GenAI)
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("GENAI_API_KEY", "secret")
	t.Setenv("DATABASE_URL", "postgres://quiz@localhost/quizdb")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GenAI.APIKey != "secret" || cfg.Postgres.URL == "" {
		t.Fatalf("expected env overrides, got %+v", cfg)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.RedisBus() {
		t.Fatalf("memory bus is the default")
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("empty should fall back, got %v", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("invalid should fall back, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}
