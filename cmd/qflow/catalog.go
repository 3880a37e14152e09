package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-queue-must-flow/internal/admin"
	"github.com/Veraticus/the-queue-must-flow/internal/cli"
	"github.com/Veraticus/the-queue-must-flow/internal/config"
	"github.com/Veraticus/the-queue-must-flow/internal/storage"
)

func catalogCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage catalog items",
		Long:  `List catalog items, and as an admin add, edit, delete or bulk-import them.`,
	}

	cmd.AddCommand(listCatalogCmd(e))
	cmd.AddCommand(addCatalogCmd(e))
	cmd.AddCommand(updateCatalogCmd(e))
	cmd.AddCommand(deleteCatalogCmd(e))
	cmd.AddCommand(importCatalogCmd(e))

	return cmd
}

func listCatalogCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := e.openServices(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			items, err := svc.store.ListCatalogItems(cmd.Context())
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("The catalog is empty"))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.CatalogTable(items))
			return nil
		},
	}
}

func addCatalogCmd(e *env) *cobra.Command {
	var (
		in    admin.ItemInput
		price string
	)

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a catalog item",
		Example: `  qflow catalog add --as admin --id bandage --name "Bandage roll" --price 3.50`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			unitPrice, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid --price %q: %w", price, err)
			}
			in.UnitPrice = unitPrice

			svc, err := e.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			actor, err := e.resolveActor(ctx, svc.store)
			if err != nil {
				return err
			}

			item, err := svc.admin.AddItem(ctx, actor, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added %s (%s) at %s", item.Name, item.ID, item.UnitPrice.StringFixed(2))))
			return nil
		},
	}

	cmd.Flags().StringVar(&in.ID, "id", "", "item id (default: generated)")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&in.ImageRef, "image", "", "image reference")
	cmd.Flags().StringVar(&price, "price", "", "unit price")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func updateCatalogCmd(e *env) *cobra.Command {
	var name, description, image, price string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a catalog item",
		Long: `Edit a catalog item. Only the flags given are changed.

Price edits never touch ledger records already written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var patch admin.ItemPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("image") {
				patch.ImageRef = &image
			}
			if flags.Changed("price") {
				unitPrice, err := decimal.NewFromString(price)
				if err != nil {
					return fmt.Errorf("invalid --price %q: %w", price, err)
				}
				patch.UnitPrice = &unitPrice
			}

			svc, err := e.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			actor, err := e.resolveActor(ctx, svc.store)
			if err != nil {
				return err
			}

			item, err := svc.admin.UpdateItem(ctx, actor, args[0], patch)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Updated "+item.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&image, "image", "", "image reference")
	cmd.Flags().StringVar(&price, "price", "", "unit price")

	return cmd
}

func deleteCatalogCmd(e *env) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a catalog item",
		Long: `Delete a catalog item. Requests that still reference it can no longer
be completed, and history shows the bare item id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !yes {
				ok, err := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).Confirm(ctx, "Delete "+args[0]+"?")
				if err != nil || !ok {
					return err
				}
			}

			svc, err := e.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			actor, err := e.resolveActor(ctx, svc.store)
			if err != nil {
				return err
			}

			if err := svc.admin.DeleteItem(ctx, actor, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted "+args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")

	return cmd
}

func importCatalogCmd(e *env) *cobra.Command {
	var noSnapshot bool

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Bulk-add catalog items from YAML",
		Long: `Add every item listed in a YAML file:

  items:
    - id: paracetamol
      name: Paracetamol 500mg
      unit_price: "0.10"

Import stops at the first invalid item. SQLite databases are snapshotted first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(args[0]) // #nosec G304
			if err != nil {
				return fmt.Errorf("failed to open catalog file: %w", err)
			}
			defer func() { _ = f.Close() }()

			items, err := cli.ParseCatalog(f)
			if err != nil {
				return err
			}

			svc, err := e.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			actor, err := e.resolveActor(ctx, svc.store)
			if err != nil {
				return err
			}
			if err := requireAdmin(actor, "import catalog"); err != nil {
				return err
			}

			if sqlite, ok := svc.store.(*storage.SQLiteStorage); ok && !noSnapshot && e.cfg.Database.Driver == config.DriverSQLite {
				if snapshots, err := sqlite.Snapshots(); err == nil {
					if _, err := snapshots.Auto(ctx, "import"); err != nil {
						return fmt.Errorf("failed to snapshot before import: %w", err)
					}
				}
			}

			n, err := cli.ImportCatalog(ctx, svc.admin, actor, items, cmd.ErrOrStderr())
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("Imported %d of %d items", n, len(items))))
			return err
		},
	}

	cmd.Flags().BoolVar(&noSnapshot, "no-snapshot", false, "skip the automatic snapshot")

	return cmd
}
