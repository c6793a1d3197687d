package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/schemasmith/schemasmith/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the SchemaSmith configuration file.

Checks:
  - YAML syntax is valid
  - Required fields are present and in range
  - Toolchain commands are configured

Examples:
  schemasmith validate
  schemasmith validate --config /etc/schemasmith/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", cfgFile)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Println("Configuration valid")
	if _, err := os.Stat(cfg.Schema.Path); err == nil {
		fmt.Println("Schema document present")
	} else {
		fmt.Println("Schema document absent (created on first publish)")
	}
	fmt.Printf("  Env:      %s\n", cfg.Env)
	fmt.Printf("  Listen:   %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Data dir: %s\n", cfg.DataDir)
	fmt.Printf("  Schema:   %s\n", cfg.Schema.Path)
	fmt.Printf("  Database: %s (%s)\n", cfg.Database.DSN, cfg.Database.Driver)
	fmt.Printf("  Apply:    %s\n", strings.Join(cfg.Tools.Apply, " "))
	fmt.Printf("  Generate: %s\n", strings.Join(cfg.Tools.Generate, " "))
	return nil
}
