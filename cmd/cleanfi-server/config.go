package main

import (
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pendergraft/cleanfi/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the server configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return writeConfig(cmd.OutOrStdout(), cfg)
		},
	})
	return cmd
}

// writeConfig prints cfg with the database password masked.
func writeConfig(out io.Writer, cfg *config.Config) error {
	shown := *cfg
	if shown.Storage.Postgres.URL != "" {
		if u, err := url.Parse(shown.Storage.Postgres.URL); err == nil {
			shown.Storage.Postgres.URL = u.Redacted()
		} else {
			shown.Storage.Postgres.URL = "<unparseable>"
		}
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(shown); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}
