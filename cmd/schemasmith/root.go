package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "schemasmith",
	Short: "Dynamic schema and API synthesis server",
	Long: `SchemaSmith turns entity definitions into storage and REST APIs at runtime.

Publish an entity definition and the server edits the schema document, runs
the migration/generation toolchain, swaps its data-access handle and mounts
CRUD routes for the new entity without restarting.

Quick start:
  schemasmith serve     # Start the server
  schemasmith validate  # Validate configuration

Management:
  schemasmith models    # Inspect registered entity definitions
  schemasmith token     # Mint a JWT for testing entity routes`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "schemasmith.yaml", "config file path")
}
