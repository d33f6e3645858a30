package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/reconcile"
)

func newReconCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recon",
		Aliases: []string{"reconcile"},
		Short:   "Reconcile bank statements against the books",
	}
	cmd.AddCommand(
		newReconCreateCommand(dir),
		newReconListCommand(dir),
		newReconAutoCommand(dir),
		newReconMatchCommand(dir),
		newReconMarkCommand(dir, "bank-only", "Record a statement line with no book counterpart", "statement-item-id"),
		newReconMarkCommand(dir, "book-only", "Record a book transaction the bank has not cleared", "transaction-id"),
		newReconUnmatchCommand(dir),
		newReconSummaryCommand(dir),
		newReconCompleteCommand(dir),
	)
	return cmd
}

func newReconCreateCommand(dir *string) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "create <statement-id>",
		Short: "Open a reconciliation for a statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				rec, err := a.recon.CreateReconciliation(cmd.Context(), args[0], notes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s (book %s, bank %s)\n", rec.ID,
					a.money(rec.BookBalance), a.money(rec.BankBalance))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	return cmd
}

func newReconListCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list [statement-id]",
		Short: "List reconciliations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			statementID := ""
			if len(args) > 0 {
				statementID = args[0]
			}
			return withApp(cmd.Context(), *dir, func(a *app) error {
				recs, err := a.recon.List(cmd.Context(), statementID)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSTATEMENT\tACCOUNT\tPERIOD\tSTATUS\tRECORDS")
				for _, r := range recs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s..%s\t%s\t%d\n", r.ID, r.StatementID, r.AccountCode,
						r.PeriodStart.Format(model.DateFormat), r.PeriodEnd.Format(model.DateFormat),
						a.label(string(r.Status)), len(r.Items))
				}
				return w.Flush()
			})
		},
	}
}

func newReconAutoCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "auto <reconciliation-id>",
		Short: "Pair statement lines with book transactions automatically",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				n, err := a.recon.AutoMatch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Matched %d\n", n)
				return nil
			})
		},
	}
}

func newReconMatchCommand(dir *string) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "match <reconciliation-id> <statement-item-id> <transaction-id>",
		Short: "Pair a statement line with a transaction by hand",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				r, err := a.recon.ManualMatch(cmd.Context(), args[0], args[1], args[2], notes)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Matched %s to %s", r.StatementItemID, r.TransactionID)
				if !r.Discrepancy.IsZero() {
					fmt.Fprintf(cmd.OutOrStdout(), " (discrepancy %s)", a.money(r.Discrepancy))
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "why the pair belongs together")
	return cmd
}

func newReconMarkCommand(dir *string, use, short, target string) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   use + " <reconciliation-id> <" + target + ">",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				if use == "bank-only" {
					return a.recon.MarkBankOnly(cmd.Context(), args[0], args[1], notes)
				}
				return a.recon.MarkBookOnly(cmd.Context(), args[0], args[1], notes)
			})
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "explanation, e.g. bank charge or uncleared cheque")
	return cmd
}

func newReconUnmatchCommand(dir *string) *cobra.Command {
	var byTransaction bool

	cmd := &cobra.Command{
		Use:   "unmatch <reconciliation-id> <statement-item-id>",
		Short: "Remove the record for a statement line or, with --transaction, a transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				if byTransaction {
					return a.recon.UnmatchTransaction(cmd.Context(), args[0], args[1])
				}
				return a.recon.Unmatch(cmd.Context(), args[0], args[1])
			})
		},
	}
	cmd.Flags().BoolVar(&byTransaction, "transaction", false, "the second argument is a transaction id")
	return cmd
}

func newReconSummaryCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <reconciliation-id>",
		Short: "Show adjusted balances and outstanding items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				sum, err := a.recon.Summary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printSummary(cmd.OutOrStdout(), sum)
			})
		},
	}
}

func newReconCompleteCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <reconciliation-id>",
		Short: "Close a fully reconciled statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dir, func(a *app) error {
				sum, err := a.recon.Complete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printSummary(cmd.OutOrStdout(), sum)
			})
		},
	}
}

func (a *app) printSummary(out io.Writer, sum reconcile.Summary) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Reconciliation\t%s\t\n", sum.ReconciliationID)
	fmt.Fprintf(w, "Status\t%s\t\n", a.label(string(sum.Status)))
	fmt.Fprintf(w, "Bank balance\t%s\t\n", a.money(sum.BankBalance))
	fmt.Fprintf(w, "Book balance\t%s\t\n", a.money(sum.BookBalance))
	fmt.Fprintf(w, "Adjusted bank\t%s\t\n", a.money(sum.AdjustedBankBalance))
	fmt.Fprintf(w, "Adjusted book\t%s\t\n", a.money(sum.AdjustedBookBalance))
	fmt.Fprintf(w, "Discrepancy\t%s\t\n", a.money(sum.Discrepancy))
	fmt.Fprintf(w, "Difference\t%s\t\n", a.money(sum.Difference))
	fmt.Fprintf(w, "Matched\t%d\t\n", sum.MatchedCount)
	fmt.Fprintf(w, "Bank only\t%d\t\n", sum.BankOnlyCount)
	fmt.Fprintf(w, "Book only\t%d\t\n", sum.BookOnlyCount)
	fmt.Fprintf(w, "Unmatched bank\t%d\t\n", sum.UnmatchedBankCount)
	fmt.Fprintf(w, "Unmatched book\t%d\t\n", sum.UnmatchedBookCount)
	if err := w.Flush(); err != nil {
		return err
	}
	if len(sum.OutstandingItems) > 0 {
		fmt.Fprintf(out, "Outstanding statement lines: %s\n", strings.Join(sum.OutstandingItems, ", "))
	}
	if len(sum.OutstandingTransactions) > 0 {
		fmt.Fprintf(out, "Outstanding transactions: %s\n", strings.Join(sum.OutstandingTransactions, ", "))
	}
	return nil
}
