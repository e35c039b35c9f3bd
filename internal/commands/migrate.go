package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Kerhoff/kasa/internal/config"
	"github.com/Kerhoff/kasa/pkg/logger"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(func(db *config.Database, cfg *config.Config) error {
					return db.Migrate(cfg.MigrationsPath)
				})
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations, one step by default",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n <= 0 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}
				return withDatabase(func(db *config.Database, cfg *config.Config) error {
					return db.MigrateDown(cfg.MigrationsPath, steps)
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(func(db *config.Database, cfg *config.Config) error {
					version, dirty, err := db.MigrationVersion(cfg.MigrationsPath)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)

	return cmd
}

func withDatabase(fn func(db *config.Database, cfg *config.Config) error) error {
	cfg, err := config.Load(true)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	db, err := config.NewDatabase(cfg.DatabaseURL, logger.New(cfg.LogLevel, cfg.LogFormat))
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	return fn(db, cfg)
}
