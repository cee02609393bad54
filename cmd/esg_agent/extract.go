package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract <report.pdf>",
	Short: "Extract one report and print its record as JSON",
	Long: `Runs the multi-pass extraction on a single PDF, saves the record under --output-dir and
prints the result (record, missing fields, pass reports) as JSON to stdout or --out.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

var (
	extractFlags   configFlags
	extractOutFile string
)

func init() {
	addStorageFlags(extractCmd, &extractFlags)
	addModelFlags(extractCmd, &extractFlags)
	extractCmd.Flags().StringVar(&extractOutFile, "out", "", "Write the JSON result to this file instead of stdout")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, &extractFlags)
	if err != nil {
		return err
	}
	if _, err := os.Stat(args[0]); err != nil {
		return fmt.Errorf("report not found: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, newLogger(cmd.ErrOrStderr(), cfg.Verbose), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.pipeline.ProcessDocument(ctx, args[0])
	if res.Err != nil {
		return res.Err
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return writeOutput(extractOutFile, data, cmd.OutOrStdout())
}
