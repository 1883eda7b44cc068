package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if cfg.Quality.MinQualityScore != 0.7 {
		t.Errorf("min quality score = %v", cfg.Quality.MinQualityScore)
	}
	sum := cfg.Quality.Weights.MachineTranslation +
		cfg.Quality.Weights.LanguageDetection +
		cfg.Quality.Weights.Corruption
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("weights sum to %v, want 1.0", sum)
	}
	if len(cfg.Balance.Domains) != 8 {
		t.Errorf("default domains = %d, want 8", len(cfg.Balance.Domains))
	}
	var alloc float64
	for _, d := range cfg.Balance.Domains {
		alloc += d.Allocation
	}
	if diff := alloc - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("domain allocations sum to %v, want 1.0", alloc)
	}
}

func TestLoadOverridesAndKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
quality:
  min_token_count: 250
  min_quality_score: 0.8
balance:
  cache_ttl_seconds: 600
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Quality.MinTokenCount != 250 {
		t.Errorf("min token count = %d, want 250", cfg.Quality.MinTokenCount)
	}
	if cfg.Quality.MinQualityScore != 0.8 {
		t.Errorf("min quality score = %v, want 0.8", cfg.Quality.MinQualityScore)
	}
	if cfg.Balance.CacheTTLSeconds != 600 {
		t.Errorf("cache ttl = %d, want 600", cfg.Balance.CacheTTLSeconds)
	}
	// Untouched sections keep their defaults.
	if cfg.Quality.Weights.Corruption != 0.4 {
		t.Errorf("corruption weight = %v, want default", cfg.Quality.Weights.Corruption)
	}
	if len(cfg.Balance.Domains) != 8 {
		t.Errorf("domains = %d, want defaults", len(cfg.Balance.Domains))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidateRepairsOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Quality.MinQualityScore = 1.5
	cfg.Quality.MinTokenCount = -10
	cfg.Quality.Processing.Workers = 0
	cfg.Balance.Thresholds.GiniMax = 2.0
	cfg.Validate(nil)

	def := Default()
	if cfg.Quality.MinQualityScore != def.Quality.MinQualityScore {
		t.Errorf("min quality score = %v, want repaired to default", cfg.Quality.MinQualityScore)
	}
	if cfg.Quality.MinTokenCount != def.Quality.MinTokenCount {
		t.Errorf("min token count = %d, want repaired to default", cfg.Quality.MinTokenCount)
	}
	if cfg.Quality.Processing.Workers != def.Quality.Processing.Workers {
		t.Errorf("workers = %d, want repaired to default", cfg.Quality.Processing.Workers)
	}
	if cfg.Balance.Thresholds.GiniMax != def.Balance.Thresholds.GiniMax {
		t.Errorf("gini max = %v, want repaired to default", cfg.Balance.Thresholds.GiniMax)
	}
}

func TestDomainLookup(t *testing.T) {
	b := Default().Balance
	spec, ok := b.Domain("risk_management")
	if !ok {
		t.Fatal("risk_management missing from defaults")
	}
	if spec.Priority != "high" || spec.MinDocs != 90 {
		t.Errorf("spec = %+v", spec)
	}
	if _, ok := b.Domain("nonexistent"); ok {
		t.Error("unexpected lookup hit for unknown domain")
	}
	names := b.ValidDomains()
	if len(names) != 8 || names[0] != "crypto_derivatives" {
		t.Errorf("valid domains = %v", names)
	}
}
