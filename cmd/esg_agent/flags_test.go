package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCommand(t *testing.T, args ...string) (*cobra.Command, *configFlags) {
	t.Helper()
	f := &configFlags{}
	cmd := &cobra.Command{Use: "test"}
	addStorageFlags(cmd, f)
	addModelFlags(cmd, f)
	cmd.Flags().StringVarP(&f.inputDir, "input-dir", "i", "", "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, f
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestResolveConfig_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("DATABASE_URL", "")
	cmd, f := newFlagCommand(t)

	cfg, err := resolveConfig(cmd, f)

	require.NoError(t, err)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, filepath.Join("data", "csv_data"), cfg.DataDir)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "image", cfg.ContentMode)
	assert.Equal(t, 3, cfg.MaxPasses)
	assert.Equal(t, 10, cfg.MaxPagesPerScan)
	assert.Equal(t, "sk-env", cfg.APIKey)
	assert.False(t, cfg.XLSX)
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gm-env")
	path := writeConfigFile(t, `{
		"output_dir": "from-file",
		"data_dir": "data-file",
		"provider": "gemini",
		"max_passes": 5,
		"xlsx": true
	}`)
	cmd, f := newFlagCommand(t, "--config", path, "--output-dir", "from-flag", "--max-passes", "2")

	cfg, err := resolveConfig(cmd, f)

	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.OutputDir)
	assert.Equal(t, "data-file", cfg.DataDir)
	assert.Equal(t, "gemini", cfg.Provider)
	assert.Equal(t, 2, cfg.MaxPasses)
	assert.True(t, cfg.XLSX, "file value kept when the flag is not set")
	assert.Equal(t, "gm-env", cfg.APIKey)
}

func TestResolveConfig_ExplicitFalseBool(t *testing.T) {
	path := writeConfigFile(t, `{"xlsx": true, "verbose": true}`)
	cmd, f := newFlagCommand(t, "--config", path, "--xlsx=false")

	cfg, err := resolveConfig(cmd, f)

	require.NoError(t, err)
	assert.False(t, cfg.XLSX)
	assert.True(t, cfg.Verbose)
}

func TestResolveConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown provider", []string{"--provider", "anthropic"}},
		{"unknown content mode", []string{"--content", "audio"}},
		{"dpi too low", []string{"--dpi", "10"}},
		{"missing config file", []string{"--config", filepath.Join(os.TempDir(), "does-not-exist.json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, f := newFlagCommand(t, tt.args...)
			_, err := resolveConfig(cmd, f)
			assert.Error(t, err)
		})
	}
}

func TestWriteOutput(t *testing.T) {
	var stdout bytes.Buffer
	require.NoError(t, writeOutput("", []byte(`{"a":1}`), &stdout))
	assert.Equal(t, "{\"a\":1}\n", stdout.String())

	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, writeOutput(path, []byte(`{}`), &stdout))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
