package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/esg-extractor/internal/pipeline"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Extract every report under the input directory and rebuild the export",
	Long: `Finds every PDF under --input-dir (laid out as reports/{Company}/{Year}/*.pdf), extracts
each with bounded concurrency, saves one JSON record per report and rebuilds data.csv from
all saved records.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runBatchCmd,
}

var runFlags configFlags

func init() {
	addStorageFlags(runCommand, &runFlags)
	addModelFlags(runCommand, &runFlags)
	runCommand.Flags().StringVarP(&runFlags.inputDir, "input-dir", "i", "", "Root directory of report PDFs (default \"data/reports\")")
	runCommand.Flags().IntVarP(&runFlags.concurrent, "max-concurrent", "c", 0, "Reports processed at once (default 4)")

	rootCmd.AddCommand(runCommand)
}

func runBatchCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd, &runFlags)
	if err != nil {
		return err
	}

	paths, err := pipeline.FindPDFs(cfg.InputDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PDF files found in %s", cfg.InputDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	a, err := buildApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	batch, err := a.pipeline.RunBatch(ctx, paths)
	if batch != nil {
		printBatch(cmd.OutOrStdout(), batch)
	}
	if err != nil {
		if errors.Is(err, pipeline.ErrNoRecords) {
			return fmt.Errorf("%w (%d files)", err, len(paths))
		}
		return err
	}
	return nil
}

func printBatch(w io.Writer, batch *pipeline.BatchResult) {
	complete, insufficient, failed := batch.Counts()
	fmt.Fprintf(w, "Run %s: %d reports, %d complete, %d insufficient data, %d failed\n",
		batch.RunID, len(batch.Results), complete, insufficient, failed)
	for _, r := range batch.Results {
		if r.Err != nil {
			fmt.Fprintf(w, "  FAILED %s: %s\n", r.Path, r.Error)
		}
	}
	if batch.CSVPath != "" {
		fmt.Fprintf(w, "Wrote %d rows to %s\n", batch.Rows, batch.CSVPath)
	}
	if batch.XLSXPath != "" {
		fmt.Fprintf(w, "Wrote %s\n", batch.XLSXPath)
	}
}
