package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Oracle.MinPriceChangePercent != 0.5 {
		t.Fatalf("min price change = %f, want 0.5", cfg.Oracle.MinPriceChangePercent)
	}
	if cfg.Oracle.MaxTimeBetweenUpdates != 6*time.Hour {
		t.Fatalf("max interval = %v, want 6h", cfg.Oracle.MaxTimeBetweenUpdates)
	}
	if cfg.Oracle.MinTimeBetweenUpdates != 30*time.Minute {
		t.Fatalf("min interval = %v, want 30m", cfg.Oracle.MinTimeBetweenUpdates)
	}
	if cfg.Oracle.MinSourceCount != 3 {
		t.Fatalf("min sources = %d, want 3", cfg.Oracle.MinSourceCount)
	}
	if cfg.Schedule.PriceCycle == "" {
		t.Fatal("price cycle schedule missing a default")
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
app:
  name: btcoracle
  env: test
server:
  port: 9000
oracle:
  min_price_change_percent: 1.0
  min_time_between_updates: 15m
sources:
  - name: coingecko
    weight: 0.5
    enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Oracle.MinPriceChangePercent != 1.0 {
		t.Fatalf("min price change = %f, want 1.0", cfg.Oracle.MinPriceChangePercent)
	}
	if cfg.Oracle.MinTimeBetweenUpdates != 15*time.Minute {
		t.Fatalf("min interval = %v, want 15m", cfg.Oracle.MinTimeBetweenUpdates)
	}
	// Unset fields still receive defaults.
	if cfg.Oracle.MaxTimeBetweenUpdates != 6*time.Hour {
		t.Fatalf("max interval = %v, want default 6h", cfg.Oracle.MaxTimeBetweenUpdates)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Weight != 0.5 {
		t.Fatalf("sources not parsed: %+v", cfg.Sources)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ORACLE_MIN_SOURCE_COUNT", "5")
	t.Setenv("ORACLE_DRY_RUN", "true")

	path := writeConfig(t, "app:\n  name: btcoracle\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Oracle.MinSourceCount != 5 {
		t.Fatalf("min sources = %d, want env override 5", cfg.Oracle.MinSourceCount)
	}
	if !cfg.Oracle.DryRun {
		t.Fatal("dry run env override not applied")
	}
}

func TestLoad_InvalidIntervals(t *testing.T) {
	path := writeConfig(t, `
oracle:
  min_time_between_updates: 7h
  max_time_between_updates: 6h
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error when min interval exceeds max")
	}
}

func TestLoad_InvalidWeight(t *testing.T) {
	path := writeConfig(t, `
sources:
  - name: coingecko
    weight: 1.5
    enabled: true
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for a weight above 1")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}
