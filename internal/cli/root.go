// Package cli defines the present-ponder command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appconfig "github.com/lewisedginton/present_ponder/internal/config"
	pkgconfig "github.com/lewisedginton/present_ponder/pkg/config"
	"github.com/lewisedginton/present_ponder/pkg/logger"
)

// options are the persistent flags shared by every command.
type options struct {
	configFile string
	logLevel   string
	version    string
}

// NewRootCommand builds the root command with all subcommands attached.
func NewRootCommand(version string) *cobra.Command {
	opts := &options{version: version}

	root := &cobra.Command{
		Use:           "present-ponder",
		Short:         "Gift recommendation service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config-file", os.Getenv("CONFIG_FILE"),
		"Path to a YAML configuration file (env CONFIG_FILE)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Override the configured log level (debug, info, warn, error)")

	root.AddCommand(
		ServerCommand(opts),
		MigrateCommand(opts),
		ConfigCommand(opts),
		VersionCommand(opts),
	)
	return root
}

// loadConfig reads the YAML file when one is given, then the environment.
func (o *options) loadConfig() (*appconfig.AppConfig, error) {
	cfg := &appconfig.AppConfig{}
	var err error
	if o.configFile != "" {
		err = pkgconfig.GetConfig(cfg, o.configFile, false)
	} else {
		err = pkgconfig.GetConfigFromEnvVars(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.version != "" && cfg.Version == "dev" {
		cfg.Version = o.version
	}
	return cfg, nil
}

func newLogger(cfg *appconfig.AppConfig) logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:   cfg.GetLogLevel(),
		Format:  cfg.Logging.Format,
		Service: cfg.ServiceName,
	})
}
