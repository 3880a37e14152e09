package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-queue-must-flow/internal/cli"
	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
	"github.com/Veraticus/the-queue-must-flow/internal/tui"
	"github.com/Veraticus/the-queue-must-flow/internal/tui/themes"
)

func queueCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "File and work fulfillment requests",
		Long: `File requests and move them through the queue:

  pending → preparing → ready → completed
  (any of the first three) → cancelled

Completing a request writes its ledger record. Only admins move requests.`,
	}

	cmd.AddCommand(enqueueCmd(e))
	cmd.AddCommand(listQueueCmd(e))
	cmd.AddCommand(advanceCmd(e))
	cmd.AddCommand(stepCmd(e))
	cmd.AddCommand(cancelCmd(e))
	cmd.AddCommand(completeCmd(e))
	cmd.AddCommand(reviewCmd(e))
	cmd.AddCommand(boardCmd(e))

	return cmd
}

func enqueueCmd(e *env) *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:     "enqueue <item-id> <quantity>",
		Aliases: []string{"add"},
		Short:   "File a request",
		Long: `File a request for quantity units of a catalog item. Users file for
themselves; admins may file for another account with --account.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return common.NewValidationError("quantity", fmt.Sprintf("not a number: %q", args[1]))
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

			target := actor.AccountID
			if accountID != "" && accountID != actor.AccountID {
				if err := requireAdmin(actor, "file requests for another account"); err != nil {
					return err
				}
				target = accountID
			}

			req, err := svc.engine.Enqueue(ctx, args[0], qty, target)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Enqueued %s: %d x %s for %s", req.ID, req.Quantity, req.CatalogItemID, req.AccountID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "file for this account (admin only)")

	return cmd
}

func listQueueCmd(e *env) *cobra.Command {
	var (
		pending   bool
		accountID string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show active requests",
		Long: `Show active requests (pending, preparing or ready), oldest first.
Users see their own; admins see every account unless --account is given.`,
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

			scope := actor.AccountID
			if actor.IsAdmin() {
				scope = accountID
			} else if accountID != "" && accountID != actor.AccountID {
				return requireAdmin(actor, "view another account's requests")
			}

			var rows []query.RequestRow
			switch {
			case pending && scope == "":
				rows, err = svc.queries.PendingAll(ctx)
			case pending:
				rows, err = svc.queries.PendingForAccount(ctx, scope)
			case scope == "":
				rows, err = svc.queries.ActiveAll(ctx)
			default:
				rows, err = svc.queries.ActiveForAccount(ctx, scope)
			}
			if err != nil {
				return err
			}

			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing in the queue"))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), cli.RequestTable(rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "only requests not yet started")
	cmd.Flags().StringVar(&accountID, "account", "", "only this account (admin only)")

	return cmd
}

// transitionCmd builds the admin-only commands that move one request.
func transitionCmd(e *env, use, short, operation string, args cobra.PositionalArgs,
	run func(cmd *cobra.Command, svc *services, args []string) error,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
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
			if err := requireAdmin(actor, operation); err != nil {
				return err
			}
			return run(cmd, svc, args)
		},
	}
}

func printTransition(cmd *cobra.Command, req *model.QueueRequest) {
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s is now %s", req.ID, cli.FormatStatus(req.Status))))
}

func printRecord(cmd *cobra.Command, record *model.TransactionRecord) {
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("%s Ledger record %s: %d x %s = %s",
		cli.LedgerIcon, record.ID, record.Quantity, record.CatalogItemID, record.Value.StringFixed(2))))
}

func advanceCmd(e *env) *cobra.Command {
	return transitionCmd(e, "advance <request-id> <status>", "Move a request to a status",
		"advance requests", cobra.ExactArgs(2),
		func(cmd *cobra.Command, svc *services, args []string) error {
			target, err := model.ParseStatus(args[1])
			if err != nil {
				return common.NewValidationError("status", err.Error())
			}
			req, err := svc.engine.Advance(cmd.Context(), args[0], target)
			if err != nil {
				return err
			}
			printTransition(cmd, req)
			if req.Status == model.StatusCompleted {
				record, err := svc.store.GetRecordByRequest(cmd.Context(), req.ID)
				if err != nil {
					return err
				}
				printRecord(cmd, record)
			}
			return nil
		})
}

func stepCmd(e *env) *cobra.Command {
	return transitionCmd(e, "step <request-id>...", "Move requests one status forward",
		"advance requests", cobra.MinimumNArgs(1),
		func(cmd *cobra.Command, svc *services, args []string) error {
			for _, id := range args {
				req, err := svc.engine.Step(cmd.Context(), id)
				if err != nil {
					return err
				}
				printTransition(cmd, req)
				if req.Status == model.StatusCompleted {
					record, err := svc.store.GetRecordByRequest(cmd.Context(), req.ID)
					if err != nil {
						return err
					}
					printRecord(cmd, record)
				}
			}
			return nil
		})
}

func cancelCmd(e *env) *cobra.Command {
	return transitionCmd(e, "cancel <request-id>...", "Cancel requests",
		"cancel requests", cobra.MinimumNArgs(1),
		func(cmd *cobra.Command, svc *services, args []string) error {
			for _, id := range args {
				req, err := svc.engine.Cancel(cmd.Context(), id)
				if err != nil {
					return err
				}
				printTransition(cmd, req)
			}
			return nil
		})
}

func completeCmd(e *env) *cobra.Command {
	return transitionCmd(e, "complete <request-id>...", "Complete ready requests",
		"complete requests", cobra.MinimumNArgs(1),
		func(cmd *cobra.Command, svc *services, args []string) error {
			for _, id := range args {
				record, err := svc.engine.Complete(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(id+" completed"))
				printRecord(cmd, record)
			}
			return nil
		})
}

func reviewCmd(e *env) *cobra.Command {
	var pending bool

	cmd := transitionCmd(e, "review", "Walk through the board interactively",
		"advance requests", cobra.NoArgs,
		func(cmd *cobra.Command, svc *services, _ []string) error {
			ctx := cli.NewInterruptHandler(cmd.OutOrStdout()).
				HandleInterrupts(cmd.Context(), "Nothing was lost: every choice is saved as it is made.")

			load := svc.queries.ActiveAll
			if pending {
				load = svc.queries.PendingAll
			}
			rows, err := load(ctx)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing in the queue"))
				return nil
			}

			prompter := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			err = prompter.Review(ctx, svc.engine, rows)
			prompter.ShowCompletion()
			return err
		})

	cmd.Flags().BoolVar(&pending, "pending", false, "only requests not yet started")

	return cmd
}

func boardCmd(e *env) *cobra.Command {
	var (
		readOnly bool
		theme    string
	)

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Live queue board",
		Long: `Full-screen board of every active request, reloaded every
queue.poll_interval. Admins can step or cancel the selected request.`,
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

			opts := []tui.Option{
				tui.WithPollInterval(e.cfg.Queue.PollInterval),
				tui.WithTheme(themes.ByName(theme)),
			}
			if actor.IsAdmin() && !readOnly {
				opts = append(opts, tui.WithTransitioner(svc.engine))
			}
			return tui.Run(ctx, svc.queries, opts...)
		},
	}

	cmd.Flags().BoolVar(&readOnly, "read-only", false, "disable step and cancel keys")
	cmd.Flags().StringVar(&theme, "theme", "default", "color theme (default, catppuccin)")

	return cmd
}
