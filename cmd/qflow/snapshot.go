package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-queue-must-flow/internal/cli"
	"github.com/Veraticus/the-queue-must-flow/internal/config"
	"github.com/Veraticus/the-queue-must-flow/internal/storage"
)

func snapshotCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage database snapshots",
		Long: `Create, list, restore, and delete snapshots of the SQLite database.

Take one before risky changes such as bulk catalog imports.`,
		Example: `  qflow snapshot create --id before-import
  qflow snapshot list
  qflow snapshot restore before-import`,
	}

	cmd.AddCommand(createSnapshotCmd(e))
	cmd.AddCommand(listSnapshotsCmd(e))
	cmd.AddCommand(restoreSnapshotCmd(e))
	cmd.AddCommand(deleteSnapshotCmd(e))

	return cmd
}

// withSnapshots opens the SQLite store and hands fn its snapshot manager.
func withSnapshots(cmd *cobra.Command, e *env, fn func(*storage.SnapshotManager) error) error {
	if e.cfg.Database.Driver != config.DriverSQLite {
		return errors.New("snapshots are only available for sqlite databases")
	}

	store, err := storage.NewSQLiteStorage(e.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	manager, err := store.Snapshots()
	if err != nil {
		return err
	}
	return fn(manager)
}

func createSnapshotCmd(e *env) *cobra.Command {
	var id, description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSnapshots(cmd, e, func(m *storage.SnapshotManager) error {
				info, err := m.Create(cmd.Context(), id, description)
				if err != nil {
					return fmt.Errorf("failed to create snapshot: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
					"Created snapshot %s (%d requests, %d ledger records)", info.ID, info.Requests(), info.Records())))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "snapshot id (default: timestamped)")
	cmd.Flags().StringVar(&description, "description", "", "what the snapshot is for")

	return cmd
}

func listSnapshotsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSnapshots(cmd, e, func(m *storage.SnapshotManager) error {
				infos, err := m.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(infos) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No snapshots yet"))
					return nil
				}

				rows := make([][]string, len(infos))
				for i, info := range infos {
					kind := "manual"
					if info.IsAuto {
						kind = "auto"
					}
					rows[i] = []string{
						info.ID,
						info.CreatedAt.Local().Format("2006-01-02 15:04"),
						kind,
						fmt.Sprintf("%d", info.Requests()),
						fmt.Sprintf("%d", info.Records()),
						info.Description,
					}
				}
				fmt.Fprint(cmd.OutOrStdout(), cli.RenderTable(
					[]string{"ID", "CREATED", "KIND", "REQUESTS", "RECORDS", "DESCRIPTION"}, rows))
				return nil
			})
		},
	}
}

func restoreSnapshotCmd(e *env) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Replace the database with a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				ok, err := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).
					Confirm(cmd.Context(), "Restore "+args[0]+" and discard current data?")
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}

			return withSnapshots(cmd, e, func(m *storage.SnapshotManager) error {
				if err := m.Restore(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to restore snapshot: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Restored "+args[0]))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")

	return cmd
}

func deleteSnapshotCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshots(cmd, e, func(m *storage.SnapshotManager) error {
				if err := m.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted "+args[0]))
				return nil
			})
		},
	}
}
