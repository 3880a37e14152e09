package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-queue-must-flow/internal/cli"
	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/config"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/ofx"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
	"github.com/Veraticus/the-queue-must-flow/internal/service"
	"github.com/Veraticus/the-queue-must-flow/internal/sheets"
)

const dateLayout = "2006-01-02"

// historyFlags are the filters shared by list and export.
type historyFlags struct {
	search    string
	class     string
	sortBy    string
	since     string
	until     string
	accountID string
	ascending bool
}

func (f *historyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.search, "search", "", "match item or account name or id")
	cmd.Flags().StringVar(&f.class, "class", "", "only this account class (internal, external)")
	cmd.Flags().StringVar(&f.sortBy, "sort", "", "sort column ("+sortFieldNames()+")")
	cmd.Flags().BoolVar(&f.ascending, "asc", false, "sort ascending")
	cmd.Flags().StringVar(&f.since, "since", "", "completed on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.until, "until", "", "completed on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.accountID, "account", "", "only this account (admin only)")
}

func sortFieldNames() string {
	fields := query.SortFields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func (f *historyFlags) options() (query.HistoryOptions, error) {
	opts := query.HistoryOptions{Search: f.search, Ascending: f.ascending}

	sortBy, err := query.ParseSortField(f.sortBy)
	if err != nil {
		return opts, err
	}
	opts.SortBy = sortBy

	if f.class != "" {
		class, err := model.ParseAccountClass(f.class)
		if err != nil {
			return opts, common.NewValidationError("class", err.Error())
		}
		opts.AccountClass = class
	}

	if f.since != "" {
		since, err := time.Parse(dateLayout, f.since)
		if err != nil {
			return opts, common.NewValidationError("since", "expected YYYY-MM-DD")
		}
		opts.Since = &since
	}
	if f.until != "" {
		until, err := time.Parse(dateLayout, f.until)
		if err != nil {
			return opts, common.NewValidationError("until", "expected YYYY-MM-DD")
		}
		// Whole day, inclusive.
		until = until.Add(24*time.Hour - time.Nanosecond)
		opts.Until = &until
	}
	return opts, nil
}

// scope returns the account whose history the actor may see: their own for
// users, --account or everything for admins.
func (f *historyFlags) scope(actor service.Actor) (string, error) {
	if actor.IsAdmin() {
		return f.accountID, nil
	}
	if f.accountID != "" && f.accountID != actor.AccountID {
		return "", requireAdmin(actor, "view another account's history")
	}
	return actor.AccountID, nil
}

func (f *historyFlags) load(ctx context.Context, svc *services, actor service.Actor) ([]query.HistoryRow, string, error) {
	opts, err := f.options()
	if err != nil {
		return nil, "", err
	}
	scope, err := f.scope(actor)
	if err != nil {
		return nil, "", err
	}

	var rows []query.HistoryRow
	if scope == "" {
		rows, err = svc.queries.HistoryAll(ctx, opts)
	} else {
		rows, err = svc.queries.HistoryForAccount(ctx, scope, opts)
	}
	return rows, scope, err
}

func historyCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"ledger"},
		Short:   "Browse and export the ledger",
	}

	cmd.AddCommand(listHistoryCmd(e))
	cmd.AddCommand(exportCmd(e))
	cmd.AddCommand(authCmd(e))
	cmd.AddCommand(reconcileCmd(e))

	return cmd
}

func listHistoryCmd(e *env) *cobra.Command {
	var (
		flags   historyFlags
		page    int
		perPage int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show completed requests",
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

			rows, _, err := flags.load(ctx, svc, actor)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No ledger records match"))
				return nil
			}

			total := query.TotalValue(rows)
			shown, current, pages := query.Paginate(rows, page, perPage)
			fmt.Fprint(cmd.OutOrStdout(), cli.HistoryTable(shown, total))
			if pages > 1 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("Page %d of %d (%d records)", current, pages, len(rows))))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&page, "page", 1, "page to show")
	cmd.Flags().IntVar(&perPage, "per-page", query.DefaultPageSize, "records per page")

	return cmd
}

func exportCmd(e *env) *cobra.Command {
	var (
		flags  historyFlags
		format string
		output string
		title  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the ledger to OFX or Google Sheets",
		Long: `Export matching ledger records.

  --format ofx     one account's records as an OFX bank statement
  --format sheets  records into the configured Google spreadsheet`,
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

			rows, scope, err := flags.load(ctx, svc, actor)
			if err != nil {
				return err
			}

			switch format {
			case "ofx":
				if scope == "" {
					return common.NewValidationError("account", "an OFX statement covers one account")
				}
				return exportOFX(cmd, rows, scope, output, e.cfg.Ledger.Currency)
			case "sheets":
				if title == "" {
					title = "Ledger " + time.Now().Format(dateLayout)
				}
				return exportSheets(ctx, cmd, e, sheets.NewLedgerExport(title, rows))
			default:
				return common.NewValidationError("format", fmt.Sprintf("unknown format %q", format))
			}
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "ofx", "export format (ofx, sheets)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "OFX output file (default: stdout)")
	cmd.Flags().StringVar(&title, "title", "", "Sheets export title")

	return cmd
}

func exportOFX(cmd *cobra.Command, rows []query.HistoryRow, accountID, output, currency string) error {
	w := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output) //nolint:gosec // user-chosen output path
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				slog.Warn("failed to close export file", "error", err)
			}
		}()
		w = f
	}

	if err := ofx.WriteStatement(w, rows, ofx.StatementOptions{AccountID: accountID, Currency: currency}); err != nil {
		return fmt.Errorf("failed to write statement: %w", err)
	}
	if output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Wrote %d records to %s", len(rows), output)))
	}
	return nil
}

func exportSheets(ctx context.Context, cmd *cobra.Command, e *env, export sheets.LedgerExport) error {
	sheetsCfg, err := config.LoadSheetsConfig(e.v)
	if err != nil {
		return fmt.Errorf("google sheets not configured (run 'qflow history auth'): %w", err)
	}

	writer, err := sheets.NewWriter(ctx, *sheetsCfg, slog.Default())
	if err != nil {
		return err
	}

	url, err := writer.WriteLedger(ctx, export)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %d records to %s", len(export.Rows), url)))
	return nil
}

func authCmd(e *env) *cobra.Command {
	var callback string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Google Sheets exports",
		Long: `Run the OAuth consent flow for Google Sheets and save the token.
Needs sheets.client_id and sheets.client_secret (or GOOGLE_SHEETS_CLIENT_ID
and GOOGLE_SHEETS_CLIENT_SECRET).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientID := e.v.GetString("sheets.client_id")
			if clientID == "" {
				clientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
			}
			clientSecret := e.v.GetString("sheets.client_secret")
			if clientSecret == "" {
				clientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
			}
			if clientID == "" || clientSecret == "" {
				return fmt.Errorf("%w: sheets client id and secret", common.ErrMissingConfig)
			}

			tokenFile := config.SheetsTokenFile(e.v)
			if _, err := sheets.AuthenticateOAuth2Interactive(cmd.Context(), sheets.OAuth2Config{
				ClientID:     clientID,
				ClientSecret: clientSecret,
				TokenFile:    tokenFile,
				CallbackAddr: callback,
			}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Token saved to "+tokenFile))
			return nil
		},
	}

	cmd.Flags().StringVar(&callback, "callback", "localhost:8080", "address for the OAuth callback")

	return cmd
}

func reconcileCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <statement.ofx>",
		Short: "Check an OFX statement against the ledger",
		Long: `Read a statement written by 'history export --format ofx' (or edited
by another tool) and report lines that no longer match the ledger.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open statement: %w", err)
			}
			defer f.Close()

			lines, err := ofx.ReadStatement(f)
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

			records, err := svc.store.ListTransactionRecords(ctx, service.RecordFilter{})
			if err != nil {
				return err
			}
			byID := make(map[string]model.TransactionRecord, len(records))
			for _, r := range records {
				byID[r.ID] = r
			}

			problems := reconcile(lines, byID, actor)
			out := cmd.OutOrStdout()
			if len(problems) == 0 {
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("All %d statement lines match the ledger", len(lines))))
				return nil
			}
			for _, p := range problems {
				fmt.Fprintln(out, cli.FormatWarning(p))
			}
			return fmt.Errorf("%d of %d statement lines do not match", len(problems), len(lines))
		},
	}
}

// reconcile lists the statement lines that are missing from the ledger,
// disagree with it, or belong to an account the actor may not see.
func reconcile(lines []ofx.StatementLine, byID map[string]model.TransactionRecord, actor service.Actor) []string {
	var problems []string
	for _, line := range lines {
		record, ok := byID[line.FiTID]
		if !ok || (!actor.IsAdmin() && record.AccountID != actor.AccountID) {
			problems = append(problems, fmt.Sprintf("%s: no such ledger record", line.FiTID))
			continue
		}
		// Statement amounts are debits.
		if !line.Amount.Neg().Equal(record.Value) {
			problems = append(problems, fmt.Sprintf("%s: amount %s, ledger value %s",
				line.FiTID, line.Amount.Neg().StringFixed(2), record.Value.StringFixed(2)))
		}
		if line.AccountID != "" && line.AccountID != record.AccountID {
			problems = append(problems, fmt.Sprintf("%s: statement account %s, ledger account %s",
				line.FiTID, line.AccountID, record.AccountID))
		}
	}
	return problems
}
