package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lewisedginton/present_ponder/internal/persistence/postgres"
	"github.com/lewisedginton/present_ponder/pkg/logger"
)

// MigrateCommand returns the schema migration commands for the postgres store.
func MigrateCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, opts, func(m *postgres.MigrationManager) error {
					return m.Up()
				})
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations, one step by default",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps, err := parseSteps(args)
				if err != nil {
					return err
				}
				return withMigrator(cmd, opts, func(m *postgres.MigrationManager) error {
					return m.Down(steps)
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, opts, func(m *postgres.MigrationManager) error {
					v, dirty, err := m.Version()
					if err != nil {
						return err
					}
					cmd.Printf("schema version %d (dirty: %t)\n", v, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	steps, err := strconv.Atoi(args[0])
	if err != nil || steps < 1 {
		return 0, fmt.Errorf("steps must be a positive integer, got %q", args[0])
	}
	return steps, nil
}

func withMigrator(cmd *cobra.Command, opts *options, fn func(*postgres.MigrationManager) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Backend != "postgres" {
		return fmt.Errorf("migrations only apply to the postgres store, configured backend is %q", cfg.Store.Backend)
	}
	log := newLogger(cfg)

	pool, err := postgres.NewPool(cmd.Context(), cfg.Store.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	m := postgres.NewMigrationManager(pool, log)
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", logger.ErrorField(err))
		}
	}()
	return fn(m)
}
