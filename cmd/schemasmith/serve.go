package main

import (
	"fmt"
	"os"

	"github.com/schemasmith/schemasmith/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the synthesis server",
	Long: `Start the SchemaSmith server.

The server will:
  - Load configuration from schemasmith.yaml (or --config)
  - Or load configuration from SCHEMASMITH_* environment variables
  - Restore the newest build artifact and mount routes for known entities
  - Accept publish/update/delete mutations on /models

Environment variables (for Docker deployments):
  SCHEMASMITH_DATA_DIR      - Data directory (default: data)
  SCHEMASMITH_DATABASE_DSN  - SQLite database path
  SCHEMASMITH_SERVER_PORT   - Server port (default: 8080)
  SCHEMASMITH_JWT_SECRET    - Token signing secret
  SCHEMASMITH_LOG_LEVEL     - Log level: debug, info, warn, error

Examples:
  schemasmith serve
  schemasmith serve --config /etc/schemasmith/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if _, err := os.Stat(path); err != nil {
		fmt.Println("Running with environment variables (no config file)")
		path = ""
	}

	app, err := bootstrap.New(path)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
