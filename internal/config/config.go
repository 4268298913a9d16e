package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Ingest modes. Upload rejects duplicate claims inside a file; reprocess
// skips claims that already exist in the database.
const (
	ModeUpload    = "upload"
	ModeReprocess = "reprocess"
)

// Config holds all runtime configuration for a claimload run.
type Config struct {
	DSN          string
	FilePath     string
	OriginatorID string
	LogFormat    string // "text" or "json"
	Mode         string // "upload" or "reprocess"
	Streaming    bool
	Force        bool // reprocess a file already marked transformed
	DryRun       bool

	BatchSize int `yaml:"batch_size"` // claims per flush in streaming mode

	// CompletionToleranceBPS is the payment-vs-charge tolerance, in basis
	// points, under which an episode counts as complete.
	CompletionToleranceBPS int64 `yaml:"completion_tolerance_bps"`

	// LeniencyThreshold is the share of an originator's files that must
	// omit a segment before its absence stops producing warnings.
	LeniencyThreshold float64 `yaml:"leniency_threshold"`

	// Fuzzy match windows for remittances without a usable control number.
	FuzzyAmountBPS  int64 `yaml:"fuzzy_amount_bps"`
	FuzzyWindowDays int   `yaml:"fuzzy_window_days"`

	// Risk component weights, normalized at load.
	Weights WeightConfig `yaml:"weights"`
}

// WeightConfig weights the four risk components.
type WeightConfig struct {
	Coding        float64 `yaml:"coding"`
	Documentation float64 `yaml:"documentation"`
	PayerRules    float64 `yaml:"payer_rules"`
	Historical    float64 `yaml:"historical"`
}

// Default returns a Config with the standard defaults applied.
func Default() Config {
	return Config{
		LogFormat:              "text",
		Mode:                   ModeUpload,
		BatchSize:              500,
		CompletionToleranceBPS: 100,
		LeniencyThreshold:      0.8,
		FuzzyAmountBPS:         100,
		FuzzyWindowDays:        30,
		Weights: WeightConfig{
			Coding:        0.3,
			Documentation: 0.2,
			PayerRules:    0.3,
			Historical:    0.2,
		},
	}
}

// yamlConfig is the on-disk YAML structure. Only tuning knobs live in the
// file; connection and file paths come from flags and the environment.
type yamlConfig struct {
	BatchSize              *int          `yaml:"batch_size"`
	CompletionToleranceBPS *int64        `yaml:"completion_tolerance_bps"`
	LeniencyThreshold      *float64      `yaml:"leniency_threshold"`
	FuzzyAmountBPS         *int64        `yaml:"fuzzy_amount_bps"`
	FuzzyWindowDays        *int          `yaml:"fuzzy_window_days"`
	Weights                *WeightConfig `yaml:"weights"`
}

// LoadFromFile reads a YAML config file and merges its values into Config.
// Absent keys keep their current values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if yc.BatchSize != nil {
		c.BatchSize = *yc.BatchSize
	}
	if yc.CompletionToleranceBPS != nil {
		c.CompletionToleranceBPS = *yc.CompletionToleranceBPS
	}
	if yc.LeniencyThreshold != nil {
		c.LeniencyThreshold = *yc.LeniencyThreshold
	}
	if yc.FuzzyAmountBPS != nil {
		c.FuzzyAmountBPS = *yc.FuzzyAmountBPS
	}
	if yc.FuzzyWindowDays != nil {
		c.FuzzyWindowDays = *yc.FuzzyWindowDays
	}
	if yc.Weights != nil {
		c.Weights = *yc.Weights
	}
	return c.validateTuning()
}

func (c *Config) validateTuning() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.CompletionToleranceBPS < 0 {
		return fmt.Errorf("completion_tolerance_bps must not be negative, got %d", c.CompletionToleranceBPS)
	}
	if c.LeniencyThreshold < 0 || c.LeniencyThreshold > 1 {
		return fmt.Errorf("leniency_threshold must be within [0, 1], got %g", c.LeniencyThreshold)
	}
	sum := c.Weights.Coding + c.Weights.Documentation + c.Weights.PayerRules + c.Weights.Historical
	if sum <= 0 {
		return fmt.Errorf("risk weights must sum to a positive value")
	}
	// Normalize so callers can treat the weights as shares.
	c.Weights.Coding /= sum
	c.Weights.Documentation /= sum
	c.Weights.PayerRules /= sum
	c.Weights.Historical /= sum
	return nil
}

// Validate checks required fields and returns an error if the config is invalid.
func (c *Config) Validate() error {
	if c.FilePath == "" {
		return fmt.Errorf("--file is required")
	}
	if _, err := os.Stat(c.FilePath); err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}
	if c.Mode != ModeUpload && c.Mode != ModeReprocess {
		return fmt.Errorf("unknown mode %q, want %q or %q", c.Mode, ModeUpload, ModeReprocess)
	}
	return c.validateTuning()
}

// ValidateWithDSN checks both file and DSN fields.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("--dsn or DATABASE_URL is required")
	}
	return nil
}
