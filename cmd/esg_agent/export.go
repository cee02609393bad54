package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/esg-extractor/internal/export"
	"github.com/jonathan/esg-extractor/internal/fields"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Rebuild data.csv (and data.xlsx) from saved JSON records",
	Long:  "Reads every record under --output-dir and rewrites the aggregated export in --data-dir without calling the model.",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var exportFlags configFlags

func init() {
	addStorageFlags(exportCmd, &exportFlags)
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd, &exportFlags)
	if err != nil {
		return err
	}

	agg, err := export.Rebuild(export.AggregateOptions{
		OutputDir: cfg.OutputDir,
		DataDir:   cfg.DataDir,
		Registry:  fields.DefaultRegistry(),
		XLSX:      cfg.XLSX,
		Logger:    newLogger(cmd.ErrOrStderr(), cfg.Verbose),
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %d rows to %s\n", len(agg.Rows), agg.CSVPath)
	if agg.XLSXPath != "" {
		fmt.Fprintf(out, "Wrote %s\n", agg.XLSXPath)
	}
	return nil
}
