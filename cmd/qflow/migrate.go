package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-queue-must-flow/internal/cli"
	"github.com/Veraticus/the-queue-must-flow/internal/config"
	"github.com/Veraticus/the-queue-must-flow/internal/storage"
	"github.com/Veraticus/the-queue-must-flow/internal/storage/postgres"
)

func migrateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

SQLite databases are snapshotted before any pending migration runs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetBool("status")
			if e.cfg.Database.Driver == config.DriverPostgres {
				return migratePostgres(cmd, e, status)
			}
			return migrateSQLite(cmd, e, status)
		},
	}

	cmd.Flags().Bool("status", false, "Show current migration status without applying changes")

	return cmd
}

func migrateSQLite(cmd *cobra.Command, e *env, status bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := storage.NewSQLiteStorage(e.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	current, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	if status {
		fmt.Fprintln(out, cli.FormatTitle("Database Migration Status"))
		fmt.Fprintf(out, "Database: %s\n", e.cfg.Database.Path)
		fmt.Fprintf(out, "Current version: %d\n", current)
		fmt.Fprintf(out, "Latest version: %d\n", storage.ExpectedSchemaVersion)
		return nil
	}

	if current >= storage.ExpectedSchemaVersion {
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Schema is up to date (version %d)", current)))
		return nil
	}

	if current > 0 {
		snapshots, err := store.Snapshots()
		if err != nil {
			return err
		}
		info, err := snapshots.Auto(ctx, "migrate")
		if err != nil {
			return fmt.Errorf("failed to snapshot before migrating: %w", err)
		}
		slog.Info("Created snapshot before migrating", "snapshot", info.ID)
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Migrated schema from version %d to %d", current, storage.ExpectedSchemaVersion)))
	return nil
}

func migratePostgres(cmd *cobra.Command, e *env, status bool) error {
	ctx := cmd.Context()

	store, err := postgres.New(ctx, e.cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if status {
		fmt.Fprintf(cmd.OutOrStdout(), "Latest version: %d\n", postgres.ExpectedSchemaVersion)
		return nil
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Database migrations completed"))
	return nil
}
