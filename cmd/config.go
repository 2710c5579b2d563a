package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/autofill-cli/internal/config"
)

const defaultConfigFile = "autofill.json"

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Shows or persists the effective configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Prints the effective configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			doc := config.Document(cfg)
			if cfg.Store.Postgres.URL != "" {
				doc["store"] = map[string]interface{}{
					"driver": cfg.Store.Driver,
					"postgres": map[string]string{
						"key": cfg.Store.Postgres.Key,
						"url": "<redacted>",
					},
				}
			}
			data, err := config.MarshalDocument(doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "save [file]",
		Short: "Writes the effective run options to a config file (default ./autofill.json)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			path := defaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s.\n", path)
			return nil
		},
	})
	return configCmd
}
