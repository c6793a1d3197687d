package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/schemasmith/schemasmith/adapters/jsonstore"
	"github.com/schemasmith/schemasmith/config"
	"github.com/schemasmith/schemasmith/schemadoc"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect registered entity definitions",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			return err
		}
		store, err := jsonstore.New(cfg.ModelsDir())
		if err != nil {
			return err
		}

		defs, err := store.List(context.Background())
		if err != nil {
			return err
		}
		if len(defs) == 0 {
			fmt.Println("No entities registered.")
			return nil
		}

		for _, def := range defs {
			fmt.Printf("%-20s table=%-20s fields=%s\n",
				def.Name, def.TableName, strings.Join(def.FieldNames(), ","))
		}
		return nil
	},
}

var modelsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one entity definition and its schema block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			return err
		}
		store, err := jsonstore.New(cfg.ModelsDir())
		if err != nil {
			return err
		}

		def, err := store.Get(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Name:       %s\n", def.Name)
		fmt.Printf("Table:      %s\n", def.TableName)
		if def.OwnerField != "" {
			fmt.Printf("Owner:      %s\n", def.OwnerField)
		}
		for _, f := range def.Fields {
			flags := ""
			if f.Required {
				flags += " required"
			}
			if f.Unique {
				flags += " unique"
			}
			fmt.Printf("  %-16s %s%s\n", f.Name, f.Type, flags)
		}
		for role, actions := range def.RBAC {
			fmt.Printf("  rbac %-11s %s\n", role, strings.Join(actions, ","))
		}

		schema := schemadoc.NewEditor(cfg.Schema.Path)
		if block, ok := schema.Block(def.Name); ok {
			fmt.Printf("\n%s", block)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsShowCmd)
}
