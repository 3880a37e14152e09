package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-queue-must-flow/internal/admin"
	"github.com/Veraticus/the-queue-must-flow/internal/cli"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
)

func accountsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "Manage accounts",
		Long: `Manage the accounts that file requests.

Account class (internal or external) is copied onto every request and ledger
record. Access class (admin or user) decides who may administer the queue.`,
	}

	cmd.AddCommand(listAccountsCmd(e))
	cmd.AddCommand(addAccountCmd(e))
	cmd.AddCommand(updateAccountCmd(e))
	cmd.AddCommand(deleteAccountCmd(e))
	cmd.AddCommand(resetCredentialCmd(e))
	cmd.AddCommand(passwdCmd(e))

	return cmd
}

func listAccountsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := e.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			actor, err := e.resolveActor(ctx, svc.store)
			if err != nil {
				return err
			}
			if err := requireAdmin(actor, "list accounts"); err != nil {
				return err
			}

			accounts, err := svc.store.ListAccounts(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.AccountTable(accounts))
			return nil
		},
	}
}

func addAccountCmd(e *env) *cobra.Command {
	var (
		in            admin.AccountInput
		class, access string
	)

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Create an account",
		Example: `  qflow accounts add --as admin --id ward-a --name "Ward A" --class internal --credential 'first-login'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var err error
			if in.Class, err = model.ParseAccountClass(class); err != nil {
				return err
			}
			if in.Access, err = model.ParseAccessClass(access); err != nil {
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

			account, err := svc.admin.AddAccount(ctx, actor, in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created %s account %s; the credential must be changed at first use", account.Class, account.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&in.ID, "id", "", "account id")
	cmd.Flags().StringVar(&in.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&in.Credential, "credential", "", "initial credential")
	cmd.Flags().StringVar(&class, "class", string(model.ClassInternal), "account class (internal, external)")
	cmd.Flags().StringVar(&access, "access", string(model.AccessUser), "access class (admin, user)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("credential")

	return cmd
}

func updateAccountCmd(e *env) *cobra.Command {
	var name, class, access string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit an account",
		Long: `Edit an account. Only the flags given are changed.

A class change applies to new requests only; existing requests and ledger
records keep the class they were filed under.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var patch admin.AccountPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.DisplayName = &name
			}
			if flags.Changed("class") {
				c, err := model.ParseAccountClass(class)
				if err != nil {
					return err
				}
				patch.Class = &c
			}
			if flags.Changed("access") {
				a, err := model.ParseAccessClass(access)
				if err != nil {
					return err
				}
				patch.Access = &a
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

			account, err := svc.admin.UpdateAccount(ctx, actor, args[0], patch)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Updated "+account.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&class, "class", "", "account class (internal, external)")
	cmd.Flags().StringVar(&access, "access", "", "access class (admin, user)")

	return cmd
}

func deleteAccountCmd(e *env) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an account",
		Long:  `Delete an account. Its requests and ledger records are kept.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !yes {
				ok, err := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).Confirm(ctx, "Delete account "+args[0]+"?")
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

			if err := svc.admin.DeleteAccount(ctx, actor, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted "+args[0]))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")

	return cmd
}

func resetCredentialCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-credential <id>",
		Short: "Issue a temporary credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := e.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			actor, err := e.resolveActor(ctx, svc.store)
			if err != nil {
				return err
			}

			temp, err := svc.admin.ResetCredential(ctx, actor, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Temporary credential for "+args[0]+": "+temp))
			return nil
		},
	}
}

func passwdCmd(e *env) *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "passwd [id]",
		Short: "Change a credential",
		Long: `Change a credential. Without an id the acting account's own credential is
changed, which requires the current one. Admins may change any credential.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := e.openServices(ctx)
			if err != nil {
				return err
			}
			defer svc.Close()

			actor, err := e.resolveActor(ctx, svc.store)
			if err != nil {
				return err
			}

			id := actor.AccountID
			if len(args) == 1 {
				id = args[0]
			}

			prompter := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if current == "" && id == actor.AccountID {
				if current, err = prompter.PromptLine(ctx, "Current credential"); err != nil {
					return err
				}
			}
			if next == "" {
				if next, err = prompter.PromptLine(ctx, "New credential"); err != nil {
					return err
				}
			}

			if err := svc.admin.ChangeCredential(ctx, actor, id, current, next); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Credential changed for "+id))
			return nil
		},
	}

	cmd.Flags().StringVar(&current, "current", "", "current credential")
	cmd.Flags().StringVar(&next, "new", "", "new credential")

	return cmd
}
