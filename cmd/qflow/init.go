package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-queue-must-flow/internal/admin"
	"github.com/Veraticus/the-queue-must-flow/internal/cli"
)

func initCmd(e *env) *cobra.Command {
	var in admin.AccountInput

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database and its first administrator",
		Long: `Create the database schema and the first admin account.

This only works on a database without accounts. Every later account is
created by an admin with "qflow accounts add".`,
		Example: `  qflow init --id admin --name "Head of Stores" --credential 'correct horse'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			svc, err := e.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			prompter := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if in.ID == "" {
				if in.ID, err = prompter.PromptLine(ctx, "Admin account id"); err != nil {
					return err
				}
			}
			if in.DisplayName == "" {
				in.DisplayName = in.ID
			}
			if in.Credential == "" {
				if in.Credential, err = prompter.PromptLine(ctx, "Credential"); err != nil {
					return err
				}
			}

			account, err := svc.admin.Bootstrap(ctx, in)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created admin %s. Run commands with --as %s", account.ID, account.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&in.ID, "id", "", "admin account id")
	cmd.Flags().StringVar(&in.DisplayName, "name", "", "display name (default: the id)")
	cmd.Flags().StringVar(&in.Credential, "credential", "", "initial credential")

	return cmd
}
