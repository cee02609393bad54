// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
)

// Environment variables consulted when a value is not configured.
const (
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvGeminiKey   = "GEMINI_API_KEY"
	EnvDatabaseURL = "DATABASE_URL"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or come from CLI flags.
type Config struct {
	// Paths
	InputDir  string `json:"input_dir,omitempty"`  // Root of reports/{Company}/{Year}/*.pdf
	OutputDir string `json:"output_dir,omitempty"` // Per-report JSON records
	DataDir   string `json:"data_dir,omitempty"`   // Aggregated data.csv / data.xlsx

	// Model
	Provider string `json:"provider,omitempty" validate:"omitempty,oneof=openai gemini"`
	Model    string `json:"model,omitempty"`   // Overrides the provider's standard tier model
	APIKey   string `json:"api_key,omitempty"` // Falls back to OPENAI_API_KEY / GEMINI_API_KEY
	BaseURL  string `json:"base_url,omitempty" validate:"omitempty,url"`

	// Extraction
	ContentMode        string `json:"content_mode,omitempty" validate:"omitempty,oneof=image text"`
	DPI                int    `json:"dpi,omitempty" validate:"omitempty,min=36,max=600"`
	MaxConcurrent      int    `json:"max_concurrent,omitempty" validate:"omitempty,min=1,max=64"`
	MaxPagesPerScan    int    `json:"max_pages_per_scan,omitempty" validate:"omitempty,min=1,max=100"`
	MaxPasses          int    `json:"max_passes,omitempty" validate:"omitempty,min=1,max=20"`
	PassTimeoutSeconds int    `json:"pass_timeout_seconds,omitempty" validate:"omitempty,min=1"`

	// Storage and serving
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	Port        int    `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
	XLSX    bool `json:"xlsx,omitempty"`    // Also write data.xlsx
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		InputDir:           filepath.Join("data", "reports"),
		OutputDir:          "output",
		DataDir:            filepath.Join("data", "csv_data"),
		Provider:           "openai",
		ContentMode:        "image",
		DPI:                150,
		MaxConcurrent:      4,
		MaxPagesPerScan:    10,
		MaxPasses:          3,
		PassTimeoutSeconds: 120,
		Port:               8000,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.InputDir != "" {
		if info, err := os.Stat(c.InputDir); err == nil && !info.IsDir() {
			return fmt.Errorf("config error: input_dir is not a directory: %s", c.InputDir)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	for _, f := range []struct{ dst, def *string }{
		{&result.InputDir, &defaults.InputDir},
		{&result.OutputDir, &defaults.OutputDir},
		{&result.DataDir, &defaults.DataDir},
		{&result.Provider, &defaults.Provider},
		{&result.Model, &defaults.Model},
		{&result.APIKey, &defaults.APIKey},
		{&result.BaseURL, &defaults.BaseURL},
		{&result.ContentMode, &defaults.ContentMode},
		{&result.DatabaseURL, &defaults.DatabaseURL},
	} {
		if *f.dst == "" {
			*f.dst = *f.def
		}
	}

	// Int fields: use default if zero
	for _, f := range []struct{ dst, def *int }{
		{&result.DPI, &defaults.DPI},
		{&result.MaxConcurrent, &defaults.MaxConcurrent},
		{&result.MaxPagesPerScan, &defaults.MaxPagesPerScan},
		{&result.MaxPasses, &defaults.MaxPasses},
		{&result.PassTimeoutSeconds, &defaults.PassTimeoutSeconds},
		{&result.Port, &defaults.Port},
	} {
		if *f.dst == 0 {
			*f.dst = *f.def
		}
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ApplyEnv fills the API key and database URL from the environment when unset.
func (c *Config) ApplyEnv() {
	if c.APIKey == "" {
		c.APIKey = APIKeyFromEnv(c.Provider)
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv(EnvDatabaseURL)
	}
}

// APIKeyFromEnv returns the environment API key for provider ("" means openai).
func APIKeyFromEnv(provider string) string {
	if provider == "gemini" {
		return os.Getenv(EnvGeminiKey)
	}
	return os.Getenv(EnvOpenAIKey)
}

// PassTimeout returns the per-pass model timeout.
func (c *Config) PassTimeout() time.Duration {
	return time.Duration(c.PassTimeoutSeconds) * time.Second
}
