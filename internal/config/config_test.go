package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StaleAfter != 24*time.Hour {
		t.Errorf("expected 24h staleness, got %v", cfg.StaleAfter)
	}
	if cfg.ContentWeight != 0.3 || cfg.CollaborativeWeight != 0.7 {
		t.Errorf("unexpected weights %v/%v", cfg.ContentWeight, cfg.CollaborativeWeight)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("unexpected addr %s", cfg.Addr())
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "port: 9090\ncache_ttl: 5m\nfactors: 20\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("FACTORS", "40")
	t.Setenv("STALE_AFTER", "2h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("expected port from file, got %d", cfg.Port)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("expected cache ttl from file, got %v", cfg.CacheTTL)
	}
	if cfg.Factors != 40 {
		t.Errorf("expected env to win, got %d", cfg.Factors)
	}
	if cfg.StaleAfter != 2*time.Hour {
		t.Errorf("expected 2h, got %v", cfg.StaleAfter)
	}
}

func TestValidateRejectsNegativeWeights(t *testing.T) {
	cfg := defaultConfig()
	cfg.ContentWeight = -0.1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error")
	}
}
