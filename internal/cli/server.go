package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lewisedginton/present_ponder/internal/server"
	"github.com/lewisedginton/present_ponder/pkg/logger"
)

// ServerCommand returns the command that runs the HTTP service.
func ServerCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server", "s"},
		Short:   "Start the API server",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			cfg.LogConfig(log)

			s, err := server.New(cmd.Context(), cfg, log)
			if err != nil {
				log.Error("Failed to create server", logger.ErrorField(err))
				return fmt.Errorf("failed to create server: %w", err)
			}

			if err := s.Run(cmd.Context()); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			log.Info("Server exited gracefully")
			return nil
		},
	}
}
