// Package main provides casectl, the operator CLI for ingesting case files
// and inspecting the case graph without going through the HTTP service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OFFIS-RIT/casegraph/internal/bootstrap"
	"github.com/OFFIS-RIT/casegraph/internal/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "casectl",
		Short: "Ingest case files and inspect the case graph",
		Long: `casectl runs the ingestion pipeline and the graph projection locally.

Configuration is read from the same environment variables and CONFIG_FILE
as the server and the worker.

Examples:
  casectl ingest cases.csv reports.xml     # Ingest local files
  casectl ingest --s3 uploads/2026/10      # Ingest every archived upload under a prefix
  casectl project case.json --detect       # Project a record and run detection
  casectl link-location <caseKey> <locKey> # Link a case to a location
  casectl detect <caseKey>                 # Run detection for a stored case
  casectl query "SELECT count(*) FROM cases" --count
`,
		SilenceUsage: true,
	}

	cmd.AddCommand(ingestCmd())
	cmd.AddCommand(projectCmd())
	cmd.AddCommand(linkLocationCmd())
	cmd.AddCommand(detectCmd())
	cmd.AddCommand(queryCmd())

	return cmd
}

// setup loads the configuration and returns a context canceled on SIGINT or
// SIGTERM.
func setup(cmd *cobra.Command) (context.Context, context.CancelFunc, *config.Config) {
	cfg := bootstrap.LoadConfig()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	return ctx, stop, cfg
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
