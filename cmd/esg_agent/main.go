// Package main provides the esg_agent CLI: batch extraction of ESG metrics from
// sustainability report PDFs, single-report tools, re-export and the REST API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "esg_agent",
	Short: "ESG report extraction agent",
	Long: `esg_agent extracts Scope 1 and Scope 2 emissions, assurance, targets and action plans
from sustainability report PDFs. Pages are ranked by ESG keyword density and sent to a
vision or text model in windows until every required field is found.`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
