package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromFileMergesValues(t *testing.T) {
	cfg := Default()
	path := writeTemp(t, `
batch_size: 100
completion_tolerance_bps: 250
leniency_threshold: 0.5
`)
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want 100", cfg.BatchSize)
	}
	if cfg.CompletionToleranceBPS != 250 {
		t.Errorf("CompletionToleranceBPS = %d, want 250", cfg.CompletionToleranceBPS)
	}
	if cfg.LeniencyThreshold != 0.5 {
		t.Errorf("LeniencyThreshold = %g, want 0.5", cfg.LeniencyThreshold)
	}
	// Untouched keys keep defaults.
	if cfg.FuzzyWindowDays != 30 {
		t.Errorf("FuzzyWindowDays = %d, want default 30", cfg.FuzzyWindowDays)
	}
}

func TestLoadFromFileNormalizesWeights(t *testing.T) {
	cfg := Default()
	path := writeTemp(t, `
weights:
  coding: 3
  documentation: 2
  payer_rules: 3
  historical: 2
`)
	if err := cfg.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	sum := cfg.Weights.Coding + cfg.Weights.Documentation + cfg.Weights.PayerRules + cfg.Weights.Historical
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("weights sum = %g, want 1.0", sum)
	}
	if math.Abs(cfg.Weights.Coding-0.3) > 1e-9 {
		t.Errorf("Coding weight = %g, want 0.3", cfg.Weights.Coding)
	}
}

func TestLoadFromFileRejectsBadThreshold(t *testing.T) {
	cfg := Default()
	path := writeTemp(t, "leniency_threshold: 1.5\n")
	if err := cfg.LoadFromFile(path); err == nil {
		t.Fatal("expected error for leniency_threshold > 1")
	}
}

func TestValidateModes(t *testing.T) {
	file := writeTemp(t, "ISA*00*\n")

	cfg := Default()
	cfg.FilePath = file
	cfg.Mode = "replay"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown mode")
	}

	cfg.Mode = ModeReprocess
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRequiresFile(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when FilePath is empty")
	}
}
