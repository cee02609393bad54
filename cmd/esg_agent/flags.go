package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/esg-extractor/internal/config"
)

// configFlags are shared by every command that builds a pipeline or reads the export.
// A flag only overrides the config file when it was set explicitly.
type configFlags struct {
	configPath  string
	inputDir    string
	outputDir   string
	dataDir     string
	provider    string
	model       string
	apiKey      string
	baseURL     string
	contentMode string
	dpi         int
	concurrent  int
	maxPages    int
	maxPasses   int
	passTimeout int
	databaseURL string
	port        int
	verbose     bool
	xlsx        bool
}

func addStorageFlags(cmd *cobra.Command, f *configFlags) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "Directory for per-report JSON records (default \"output\")")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "Directory for the aggregated data.csv (default \"data/csv_data\")")
	cmd.Flags().BoolVar(&f.xlsx, "xlsx", false, "Also write data.xlsx")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Print detailed debug information")
}

func addModelFlags(cmd *cobra.Command, f *configFlags) {
	cmd.Flags().StringVar(&f.provider, "provider", "", "Model provider: openai or gemini (default \"openai\")")
	cmd.Flags().StringVar(&f.model, "model", "", "Override the provider's standard extraction model")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "API key (defaults to OPENAI_API_KEY or GEMINI_API_KEY)")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "OpenAI-compatible endpoint override")
	cmd.Flags().StringVar(&f.contentMode, "content", "", "Page content sent to the model: image or text (default \"image\")")
	cmd.Flags().IntVar(&f.dpi, "dpi", 0, "Rendering resolution for image content (default 150)")
	cmd.Flags().IntVar(&f.maxPages, "max-pages", 0, "Pages per extraction pass (default 10)")
	cmd.Flags().IntVar(&f.maxPasses, "max-passes", 0, "Maximum extraction passes per report (default 3)")
	cmd.Flags().IntVar(&f.passTimeout, "pass-timeout", 0, "Seconds allowed for one model call (default 120)")
	cmd.Flags().StringVar(&f.databaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
}

// resolveConfig layers built-in defaults, the config file, explicit flags and the
// environment, then validates the result.
func resolveConfig(cmd *cobra.Command, f *configFlags) (config.Config, error) {
	var cfg config.Config
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	changed := cmd.Flags().Changed
	for _, o := range []struct {
		flag string
		dst  *string
		val  string
	}{
		{"input-dir", &cfg.InputDir, f.inputDir},
		{"output-dir", &cfg.OutputDir, f.outputDir},
		{"data-dir", &cfg.DataDir, f.dataDir},
		{"provider", &cfg.Provider, f.provider},
		{"model", &cfg.Model, f.model},
		{"api-key", &cfg.APIKey, f.apiKey},
		{"base-url", &cfg.BaseURL, f.baseURL},
		{"content", &cfg.ContentMode, f.contentMode},
		{"db-url", &cfg.DatabaseURL, f.databaseURL},
	} {
		if changed(o.flag) {
			*o.dst = o.val
		}
	}
	for _, o := range []struct {
		flag string
		dst  *int
		val  int
	}{
		{"dpi", &cfg.DPI, f.dpi},
		{"max-concurrent", &cfg.MaxConcurrent, f.concurrent},
		{"max-pages", &cfg.MaxPagesPerScan, f.maxPages},
		{"max-passes", &cfg.MaxPasses, f.maxPasses},
		{"pass-timeout", &cfg.PassTimeoutSeconds, f.passTimeout},
		{"port", &cfg.Port, f.port},
	} {
		if changed(o.flag) {
			*o.dst = o.val
		}
	}
	if changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if changed("xlsx") {
		cfg.XLSX = f.xlsx
	}

	cfg = cfg.MergeWithDefaults(config.Defaults())
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger writes text logs to w; verbose lowers the level to debug.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "" {
		_, err := stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
