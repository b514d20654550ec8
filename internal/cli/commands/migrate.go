package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/docref/internal/cli/ui"
	"github.com/conduit-lang/docref/internal/orm/docstore/sqlstore"
)

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Provision the documents table of a SQL store",
		Long: `Run the embedded migrations that create the documents table.

Only the postgres, pgx, sqlite3 and mysql drivers use migrations.`,
	}

	cmd.AddCommand(newMigrateUpCommand())
	cmd.AddCommand(newMigrateDownCommand())
	cmd.AddCommand(newMigrateVersionCommand())

	return cmd
}

func newMigrateUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrate.Migrate) error {
				if err := m.Up(); err != nil {
					if errors.Is(err, migrate.ErrNoChange) {
						fmt.Fprint(cmd.OutOrStdout(), ui.Warning("no pending migrations", noColor))
						return nil
					}
					return fmt.Errorf("failed to apply migrations: %w", err)
				}
				ui.WriteSuccess(cmd.OutOrStdout(), "migrations applied", noColor)
				return nil
			})
		},
	}
}

func newMigrateDownCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		Long:  "Roll back the last applied migration. Rolling back the first one drops the documents table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrate.Migrate) error {
				if err := m.Steps(-1); err != nil {
					if errors.Is(err, migrate.ErrNoChange) || errors.Is(err, migrate.ErrNilVersion) {
						fmt.Fprint(cmd.OutOrStdout(), ui.Warning("nothing to roll back", noColor))
						return nil
					}
					return fmt.Errorf("failed to roll back: %w", err)
				}
				ui.WriteSuccess(cmd.OutOrStdout(), "rolled back one migration", noColor)
				return nil
			})
		},
	}
}

func newMigrateVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(m *migrate.Migrate) error {
				version, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
					return nil
				}
				if err != nil {
					return fmt.Errorf("failed to read migration version: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "version %d", version)
				if dirty {
					color.New(color.FgYellow).Fprint(cmd.OutOrStdout(), " (dirty)")
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
}

// withMigrator opens the configured SQL store and runs fn against its migrator
func withMigrator(ctx context.Context, fn func(m *migrate.Migrate) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	switch cfg.Store.Driver {
	case "postgres", "pgx", "sqlite3", "mysql":
	default:
		return fmt.Errorf("store driver %s has no migrations", cfg.Store.Driver)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := sqlstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN, sqlstore.WithLogger(logger))
	if err != nil {
		return err
	}
	defer store.Close()

	m, err := sqlstore.NewMigrator(store.DB(), store.Dialect())
	if err != nil {
		return err
	}
	return fn(m)
}
