package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"input_dir": "reports",
		"provider": "gemini",
		"content_mode": "text",
		"max_concurrent": 8,
		"max_passes": 5,
		"verbose": true,
		"xlsx": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "reports", cfg.InputDir)
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, "text", cfg.ContentMode)
	assert.Equal(t, 8, cfg.MaxConcurrent)
	assert.Equal(t, 5, cfg.MaxPasses)
	assert.True(t, cfg.Verbose)
	assert.True(t, cfg.XLSX)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "empty", cfg: Config{}},
		{name: "defaults", cfg: Defaults()},
		{name: "unknown provider", cfg: Config{Provider: "anthropic"}, wantErr: true},
		{name: "unknown content mode", cfg: Config{ContentMode: "audio"}, wantErr: true},
		{name: "negative concurrency", cfg: Config{MaxConcurrent: -1}, wantErr: true},
		{name: "zero passes means default", cfg: Config{MaxPasses: 0}},
		{name: "too many passes", cfg: Config{MaxPasses: 50}, wantErr: true},
		{name: "dpi too low", cfg: Config{DPI: 10}, wantErr: true},
		{name: "bad port", cfg: Config{Port: 70000}, wantErr: true},
		{name: "bad base url", cfg: Config{BaseURL: "not a url"}, wantErr: true},
		{name: "input dir is a file", cfg: Config{InputDir: file}, wantErr: true},
		{name: "missing input dir is allowed", cfg: Config{InputDir: filepath.Join(t.TempDir(), "later")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "config error")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := &Config{
		OutputDir: "custom-out",
		MaxPasses: 5,
		Verbose:   true,
	}

	result := cfg.MergeWithDefaults(Defaults())

	assert.Equal(t, "custom-out", result.OutputDir)
	assert.Equal(t, 5, result.MaxPasses)
	assert.Equal(t, filepath.Join("data", "csv_data"), result.DataDir)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, 4, result.MaxConcurrent)
	assert.Equal(t, 10, result.MaxPagesPerScan)
	assert.Equal(t, 8000, result.Port)
	assert.True(t, result.Verbose)

	// Original is not modified.
	assert.Empty(t, cfg.DataDir)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvOpenAIKey, "sk-openai")
	t.Setenv(EnvGeminiKey, "gemini-key")
	t.Setenv(EnvDatabaseURL, "postgres://localhost/esg")

	cfg := &Config{Provider: "gemini"}
	cfg.ApplyEnv()
	assert.Equal(t, "gemini-key", cfg.APIKey)
	assert.Equal(t, "postgres://localhost/esg", cfg.DatabaseURL)

	cfg = &Config{APIKey: "explicit"}
	cfg.ApplyEnv()
	assert.Equal(t, "explicit", cfg.APIKey)

	assert.Equal(t, "sk-openai", APIKeyFromEnv(""))
	assert.Equal(t, "sk-openai", APIKeyFromEnv("openai"))
}

func TestPassTimeout(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 120*time.Second, cfg.PassTimeout())
}
