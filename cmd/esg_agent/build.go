package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jonathan/esg-extractor/internal/config"
	"github.com/jonathan/esg-extractor/internal/db"
	"github.com/jonathan/esg-extractor/internal/extraction"
	"github.com/jonathan/esg-extractor/internal/fields"
	"github.com/jonathan/esg-extractor/internal/llm"
	"github.com/jonathan/esg-extractor/internal/observability"
	"github.com/jonathan/esg-extractor/internal/pdf"
	"github.com/jonathan/esg-extractor/internal/pipeline"
	"github.com/jonathan/esg-extractor/internal/ranking"
)

// ErrMissingAPIKey is returned when a command needs the model and no key is set.
var ErrMissingAPIKey = fmt.Errorf("API key is required (set %s or %s, or use --api-key)", config.EnvOpenAIKey, config.EnvGeminiKey)

// app holds the wired components for one command invocation.
type app struct {
	pipeline *pipeline.Pipeline
	database *db.DB
	client   llm.Client
}

// Close releases the model client and the database pool.
func (a *app) Close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.database != nil {
		a.database.Close()
	}
}

// connectDB opens and migrates the database when a URL is configured. A nil DB with a
// nil error means persistence is disabled.
func connectDB(ctx context.Context, cfg config.Config, logger *slog.Logger) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	logger.Info("db.connected")
	return database, nil
}

// newModel creates the provider client and the extractor that wraps it.
func newModel(ctx context.Context, cfg config.Config, registry *fields.Registry, logger *slog.Logger) (llm.Client, *llm.ESGExtractor, error) {
	if cfg.APIKey == "" {
		return nil, nil, ErrMissingAPIKey
	}
	provider, err := llm.ParseProvider(cfg.Provider)
	if err != nil {
		return nil, nil, err
	}

	llmCfg := llm.ConfigFor(provider)
	if cfg.Model != "" {
		llmCfg = llmCfg.WithModel(llm.TierStandard, cfg.Model)
	}
	llmCfg.BaseURL = cfg.BaseURL

	client, err := llm.NewClient(ctx, llmCfg, cfg.APIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s client: %w", provider, err)
	}
	ex := llm.NewESGExtractor(client, registry, llm.ESGExtractorOptions{Logger: logger})
	logger.Info("llm.ready", "provider", provider, "model", client.GetModel(llm.TierStandard))
	return client, ex, nil
}

// buildApp wires the full extraction pipeline from cfg.
func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger, onProgress pipeline.ProgressCallback) (*app, error) {
	registry := fields.DefaultRegistry()

	ranker, err := ranking.NewRanker(ranking.DefaultConfig())
	if err != nil {
		return nil, err
	}
	controller, err := extraction.NewController(registry, extraction.Options{
		MaxPasses:      cfg.MaxPasses,
		PageWindowSize: cfg.MaxPagesPerScan,
		PassTimeout:    cfg.PassTimeout(),
	}, logger)
	if err != nil {
		return nil, err
	}

	client, ex, err := newModel(ctx, cfg, registry, logger)
	if err != nil {
		return nil, err
	}
	a := &app{client: client}

	deps := pipeline.Deps{
		Registry:   registry,
		Ranker:     ranker,
		Controller: controller,
		Model:      func(company string) extraction.ModelCall { return ex.ForDocument(company) },
		Logger:     logger,
	}

	if cfg.ContentMode == pipeline.ContentImage {
		raster, err := pdf.NewPdftoppm()
		if err != nil {
			logger.Warn("pdf.rasterizer_unavailable", "err", err, "fallback", pipeline.ContentText)
		} else {
			deps.Rasterizer = raster
		}
	}
	if cfg.Verbose {
		deps.Printer = observability.NewPrinter(os.Stderr)
	}

	a.database, err = connectDB(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.database != nil {
		deps.Store = a.database
	}

	a.pipeline, err = pipeline.New(deps, pipeline.Options{
		OutputDir:     cfg.OutputDir,
		DataDir:       cfg.DataDir,
		ContentMode:   cfg.ContentMode,
		DPI:           cfg.DPI,
		MaxConcurrent: cfg.MaxConcurrent,
		XLSX:          cfg.XLSX,
		Verbose:       cfg.Verbose,
		OnProgress:    onProgress,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
