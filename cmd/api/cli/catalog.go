package cli

import (
	"encoding/json"
	"fmt"

	"navconsole/internal/config"
	"navconsole/internal/server"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newCatalogCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the effective permission catalog",
		Long:  "Prints the route rules the gate enforces, from CATALOG_FILE or the built-in defaults.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			catalog, err := server.LoadCatalog(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(catalog.Rules())
			}
			raw, err := yaml.Marshal(catalog)
			if err != nil {
				return fmt.Errorf("encode catalog: %w", err)
			}
			_, err = out.Write(raw)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
