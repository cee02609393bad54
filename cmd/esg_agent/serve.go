package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/esg-extractor/internal/decisions"
	"github.com/jonathan/esg-extractor/internal/server"
	"github.com/jonathan/esg-extractor/internal/server/ratelimit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that processes uploaded reports and serves the aggregated data,
company summaries and reviewer decisions. Without an API key the data routes still work
and the processing routes return 500.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveFlags     configFlags
	serveUploadDir string
)

func init() {
	addStorageFlags(serveCmd, &serveFlags)
	addModelFlags(serveCmd, &serveFlags)
	serveCmd.Flags().IntVarP(&serveFlags.port, "port", "p", 0, "Port to listen on (default 8000)")
	serveCmd.Flags().IntVar(&serveFlags.concurrent, "max-concurrent", 0, "Reports processed at once per batch (default 4)")
	serveCmd.Flags().StringVar(&serveUploadDir, "upload-dir", "", "Directory for in-flight uploads (default OS temp dir)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd, &serveFlags)
	if err != nil {
		return err
	}
	ctx := context.Background()
	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)

	deps := server.Deps{
		Limiter: ratelimit.NewLimiter(ratelimit.LoadConfig()),
		Logger:  logger,
	}

	var closers []func()
	a, err := buildApp(ctx, cfg, logger, nil)
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		logger.Warn("server.processing_disabled", "reason", err.Error())
		database, err := connectDB(ctx, cfg, logger)
		if err != nil {
			return err
		}
		if database != nil {
			deps.Decisions = database
			closers = append(closers, database.Close)
		}
	case err != nil:
		return err
	default:
		deps.Pipeline = a.pipeline
		if a.database != nil {
			deps.Decisions = a.database
		}
		closers = append(closers, a.Close)
	}
	if deps.Decisions == nil {
		deps.Decisions = decisions.NewMemoryStore()
	}
	deps.OnShutdown = func() {
		for _, c := range closers {
			c()
		}
	}

	srv, err := server.New(server.Config{
		Port:      cfg.Port,
		OutputDir: cfg.OutputDir,
		DataDir:   cfg.DataDir,
		UploadDir: serveUploadDir,
	}, deps)
	if err != nil {
		deps.OnShutdown()
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
