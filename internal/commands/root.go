// Package commands wires the CLI: ingest for one-shot imports, serve for
// the HTTP service, cache for category-cache administration.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "pennywise",
		Short: "Bank statement ingestion and categorization",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")

	rootCmd.AddCommand(newIngestCommand(&configPath))
	rootCmd.AddCommand(newServeCommand(&configPath))
	rootCmd.AddCommand(newCacheCommand(&configPath))

	return rootCmd
}
