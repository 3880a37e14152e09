package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-queue-must-flow/internal/cli"
)

func summaryCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show queue and ledger counters",
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

			sum, err := svc.queries.Summary(ctx, actor.AccountID)
			if err != nil {
				return err
			}

			var b strings.Builder
			if actor.IsAdmin() {
				fmt.Fprintf(&b, "Pending:       %d\n", sum.PendingTotal)
				fmt.Fprintf(&b, "Active:        %d\n", sum.ActiveTotal)
				fmt.Fprintf(&b, "Completed:     %d\n", sum.RecordCount)
				fmt.Fprintf(&b, "Ledger total:  %s %s", sum.LedgerTotal.StringFixed(2), e.cfg.Ledger.Currency)
			} else {
				fmt.Fprintf(&b, "Your pending:  %d\n", sum.AccountPending)
				fmt.Fprintf(&b, "Your active:   %d\n", sum.AccountActive)
				fmt.Fprintf(&b, "Completed:     %d\n", sum.AccountRecordCount)
				fmt.Fprintf(&b, "Ledger total:  %s %s\n", sum.AccountLedgerTotal.StringFixed(2), e.cfg.Ledger.Currency)
				fmt.Fprintf(&b, "Queue pending: %d", sum.PendingTotal)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(cli.ChartIcon+" Summary", b.String()))
			return nil
		},
	}
}
