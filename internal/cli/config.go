package cli

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	appconfig "github.com/lewisedginton/present_ponder/internal/config"
)

const redacted = "********"

// ConfigCommand returns commands for inspecting configuration.
func ConfigCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"c"},
		Short:   "Configuration operations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Load and validate the configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := opts.loadConfig(); err != nil {
					return err
				}
				cmd.Println("Configuration is valid")
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as YAML, secrets redacted",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				out, err := yaml.Marshal(redact(*cfg))
				if err != nil {
					return err
				}
				cmd.Print(string(out))
				return nil
			},
		},
	)
	return cmd
}

// redact masks the secrets that are serialized to YAML.
func redact(cfg appconfig.AppConfig) appconfig.AppConfig {
	if cfg.Store.Postgres.Password != "" {
		cfg.Store.Postgres.Password = redacted
	}
	if cfg.Store.Postgres.URL != "" {
		cfg.Store.Postgres.URL = redacted
	}
	if cfg.Guest.RedisURL != "" {
		cfg.Guest.RedisURL = redacted
	}
	return cfg
}
